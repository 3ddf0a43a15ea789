// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package gate runs the "is this instant playable" check that guards every
// engine seek.
//
// The success path is a continuation: onGranted runs only after a grant.
// Denial, timeout and failure never call it. They resolve the Pending with an
// explicit Result and are reported on the OnFailure side channel, where the
// session stops playback. A newer Check supersedes the one in flight, so a
// late grant for an old instant can never issue a stale seek.
package gate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/domain/playback/ports"
	xglog "github.com/ManuGH/timeshift/internal/log"
	"github.com/ManuGH/timeshift/internal/metrics"
)

// DefaultTimeout bounds one entitlement round-trip.
const DefaultTimeout = 10 * time.Second

var (
	// ErrGateTimeout is the cause recorded when no verdict arrives in time.
	ErrGateTimeout = errors.New("gate: entitlement check timed out")
	// ErrSuperseded is the cause recorded when a newer check replaced this one.
	ErrSuperseded = errors.New("gate: superseded by a newer check")
	// ErrClosed is returned by checks started after Close.
	ErrClosed = errors.New("gate: closed")
)

// Result is the terminal state of one check.
type Result string

const (
	Granted    Result = "granted"
	Denied     Result = "denied"
	TimedOut   Result = "timeout"
	Superseded Result = "superseded"
	Failed     Result = "failed"
)

// Outcome describes a finished check.
type Outcome struct {
	Instant int64
	Result  Result
	Verdict model.Verdict
	Err     error
	Took    time.Duration
}

// Pending is the handle of one check. It resolves exactly once.
type Pending struct {
	done    chan struct{}
	outcome Outcome
}

func resolved(o Outcome) *Pending {
	p := &Pending{done: make(chan struct{}), outcome: o}
	close(p.done)
	return p
}

// Done is closed once the outcome is known.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Outcome returns the outcome and whether the check has finished.
func (p *Pending) Outcome() (Outcome, bool) {
	select {
	case <-p.done:
		return p.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the check finishes or ctx is done.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Option configures a Gate.
type Option func(*Gate)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithFailureHandler sets the side channel for Denied, TimedOut and Failed.
func WithFailureHandler(fn func(Outcome)) Option {
	return func(g *Gate) { g.onFailure = fn }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// Gate serialises entitlement checks for one playback source.
type Gate struct {
	checker   ports.EntitlementChecker
	timeout   time.Duration
	onFailure func(Outcome)
	logger    zerolog.Logger

	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelCauseFunc
	closed  bool
	running sync.WaitGroup
}

// New creates a gate. A nil checker grants every instant synchronously.
func New(checker ports.EntitlementChecker, opts ...Option) *Gate {
	g := &Gate{
		checker: checker,
		timeout: DefaultTimeout,
		logger:  xglog.WithComponent("gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether a checker is configured.
func (g *Gate) Enabled() bool {
	return g != nil && g.checker != nil
}

// SetTimeout changes the timeout for checks started afterwards.
func (g *Gate) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	g.mu.Lock()
	g.timeout = d
	g.mu.Unlock()
}

// Check asks whether instant may be played and runs onGranted only on a grant.
func (g *Gate) Check(ctx context.Context, instant int64, onGranted func()) *Pending {
	if !g.Enabled() {
		metrics.RecordGateCheck(string(Granted), 0)
		if onGranted != nil {
			onGranted()
		}
		return resolved(Outcome{Instant: instant, Result: Granted})
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return resolved(Outcome{Instant: instant, Result: Failed, Err: ErrClosed})
	}
	if g.cancel != nil {
		g.cancel(ErrSuperseded)
	}
	g.seq++
	seq := g.seq
	checkCtx, cancel := context.WithCancelCause(ctx)
	g.cancel = cancel
	timeout := g.timeout
	g.running.Add(1)
	g.mu.Unlock()

	p := &Pending{done: make(chan struct{})}
	go g.run(checkCtx, cancel, seq, timeout, instant, onGranted, p)
	return p
}

func (g *Gate) run(ctx context.Context, cancel context.CancelCauseFunc, seq uint64, timeout time.Duration,
	instant int64, onGranted func(), p *Pending) {
	defer g.running.Done()
	defer cancel(nil)

	start := time.Now()
	timeoutCtx, stop := context.WithTimeoutCause(ctx, timeout, ErrGateTimeout)
	defer stop()

	type reply struct {
		verdict model.Verdict
		err     error
	}
	replies := make(chan reply, 1)
	go func() {
		v, err := g.checker.CheckEntitlement(timeoutCtx, instant)
		replies <- reply{verdict: v, err: err}
	}()

	out := Outcome{Instant: instant}
	select {
	case r := <-replies:
		out.Verdict = r.verdict
		out.Err = r.err
		switch {
		case timeoutCtx.Err() != nil:
			out.Result, out.Err = interrupted(timeoutCtx)
		case r.err != nil:
			out.Result = Failed
		case r.verdict.Granted:
			out.Result = Granted
		default:
			out.Result = Denied
		}
	case <-timeoutCtx.Done():
		out.Result, out.Err = interrupted(timeoutCtx)
	}

	// A grant that lost the race against a newer check is dropped.
	if out.Result == Granted && !g.claim(seq) {
		out.Result, out.Err = Superseded, ErrSuperseded
	}
	if out.Result != Granted {
		g.release(seq)
	}
	out.Took = time.Since(start)
	p.outcome = out

	metrics.RecordGateCheck(string(out.Result), out.Took)
	g.report(out)

	if out.Result == Granted && onGranted != nil {
		onGranted()
	}
	close(p.done)
}

// interrupted maps the cancellation cause. An abandoned check (superseded,
// gate closed, caller gone) is not a playback failure.
func interrupted(ctx context.Context) (Result, error) {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, ErrGateTimeout), errors.Is(cause, context.DeadlineExceeded):
		return TimedOut, cause
	case errors.Is(cause, ErrSuperseded), errors.Is(cause, ErrClosed), errors.Is(cause, context.Canceled):
		return Superseded, cause
	default:
		return Failed, cause
	}
}

// claim marks seq as the settled check if it is still the latest one.
func (g *Gate) claim(seq uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seq != g.seq {
		return false
	}
	g.cancel = nil
	return true
}

func (g *Gate) release(seq uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seq == g.seq {
		g.cancel = nil
	}
}

func (g *Gate) report(out Outcome) {
	ev := g.logger.Debug()
	switch out.Result {
	case Denied, TimedOut, Failed:
		ev = g.logger.Warn().Err(out.Err)
	}
	ev.Str(xglog.FieldEvent, "gate."+string(out.Result)).
		Int64(xglog.FieldRequestedMs, out.Instant).
		Str(xglog.FieldReason, out.Verdict.Reason).
		Dur("took", out.Took).
		Msg("entitlement check finished")

	switch out.Result {
	case Denied, TimedOut, Failed:
		if g.onFailure != nil {
			g.onFailure(out)
		}
	}
}

// Close cancels the in-flight check and waits for it to finish. Later checks
// resolve as Failed with ErrClosed.
func (g *Gate) Close() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.closed = true
	if g.cancel != nil {
		g.cancel(ErrClosed)
		g.cancel = nil
	}
	g.mu.Unlock()
	g.running.Wait()
}
