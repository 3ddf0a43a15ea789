// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resilience guards calls to the exposure backend.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/timeshift/internal/metrics"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrOpen is returned without calling the guarded function.
var ErrOpen = errors.New("resilience: breaker open")

// Settings configures a Breaker. Zero values pick the defaults.
type Settings struct {
	Name      string
	Threshold int           // consecutive failures before opening, default 3
	Cooldown  time.Duration // time spent open before a probe, default 30s

	// IsFailure decides whether err is a backend fault. Business rejections
	// should return false so they never move the breaker.
	IsFailure func(error) bool
	Now       func() time.Time
}

// Snapshot is a point-in-time view of a Breaker.
type Snapshot struct {
	State    State
	Failures int
	OpenedAt time.Time
}

// Breaker opens after Threshold consecutive failures. Once Cooldown has
// elapsed exactly one probe call is admitted; its outcome closes or reopens
// the breaker while concurrent callers keep getting ErrOpen.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	isFailure func(error) bool
	now       func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

func NewBreaker(s Settings) *Breaker {
	if s.Threshold <= 0 {
		s.Threshold = 3
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.IsFailure == nil {
		s.IsFailure = func(err error) bool { return err != nil }
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	b := &Breaker{
		name:      s.Name,
		threshold: s.Threshold,
		cooldown:  s.Cooldown,
		isFailure: s.IsFailure,
		now:       s.Now,
		state:     StateClosed,
	}
	metrics.SetBreakerState(b.name, string(StateClosed))
	return b
}

// Do runs fn unless the breaker is open. Errors caused by ctx ending are
// neither failures nor successes.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	probe, err := b.admit()
	if err != nil {
		metrics.IncBreakerRejected(b.name)
		return err
	}

	err = fn(ctx)
	switch {
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		b.release(probe)
	case err != nil && b.isFailure(err):
		b.onFailure(probe)
	default:
		b.onSuccess()
	}
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, ErrOpen
		}
		b.setState(StateHalfOpen)
	}
	if b.probing {
		return false, ErrOpen
	}
	b.probing = true
	return true, nil
}

func (b *Breaker) release(probe bool) {
	if !probe {
		return
	}
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

func (b *Breaker) onFailure(probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.openedAt = b.now()
		b.setState(StateOpen)
	}
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	b.failures = 0
	b.setState(StateClosed)
}

// setState requires b.mu.
func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	metrics.RecordBreakerTransition(b.name, string(b.state), string(s))
	b.state = s
	metrics.SetBreakerState(b.name, string(s))
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{State: b.state, Failures: b.failures, OpenedAt: b.openedAt}
}

func (b *Breaker) State() State {
	return b.Snapshot().State
}
