// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/timeshift/internal/log"
	"github.com/ManuGH/timeshift/internal/metrics"
)

const (
	defaultBuffer = 64
	dropLogEvery  = 100
)

// ErrSubscriberFull is returned by Publish when at least one subscriber's
// buffer was full and missed the message.
var ErrSubscriberFull = errors.New("bus: subscriber buffer full")

// MemoryBus is an in-process pub/sub. Publish never blocks: a subscriber
// whose buffer is full misses the message and the drop is counted.
// Subscriptions end on Close or when their subscribe context is done.
type MemoryBus struct {
	buffer  int
	dropped atomic.Uint64

	mu   sync.RWMutex
	subs map[string][]*memSub
}

var _ Bus = (*MemoryBus)(nil)

func NewMemoryBus() *MemoryBus {
	return NewMemoryBusWithBuffer(defaultBuffer)
}

// NewMemoryBusWithBuffer sets the per-subscriber channel capacity.
func NewMemoryBusWithBuffer(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &MemoryBus{buffer: buffer, subs: make(map[string][]*memSub)}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return errors.New("bus: nil publish context")
	}
	if err := ctx.Err(); err != nil {
		b.drop(topic, dropReason(err))
		return fmt.Errorf("bus: publish %q: %w", topic, err)
	}

	b.mu.RLock()
	subs := append([]*memSub(nil), b.subs[topic]...)
	b.mu.RUnlock()

	full := 0
	for _, s := range subs {
		if !s.offer(msg) {
			full++
			b.drop(topic, "full")
		}
	}
	if full > 0 {
		return fmt.Errorf("bus: publish %q: %d of %d: %w", topic, full, len(subs), ErrSubscriberFull)
	}
	metrics.IncBusPublished(topic)
	return nil
}

func dropReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "canceled"
}

func (b *MemoryBus) drop(topic, reason string) {
	metrics.IncBusDropReason(topic, reason)
	if n := b.dropped.Add(1); n%dropLogEvery == 1 {
		logger := log.WithComponent("bus")
		logger.Warn().
			Str("topic", topic).
			Str(log.FieldReason, reason).
			Uint64("dropped", n).
			Msg("bus message dropped")
	}
}

// Subscribe registers a buffered subscription on topic.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &memSub{bus: b, topic: topic, ch: make(chan Message, b.buffer)}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	s.stop = context.AfterFunc(ctx, func() { _ = s.Close() })
	return s, nil
}

// Subscribers reports the live subscriptions on topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *MemoryBus) remove(s *memSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.subs[s.topic][:0]
	for _, other := range b.subs[s.topic] {
		if other != s {
			kept = append(kept, other)
		}
	}
	if len(kept) == 0 {
		delete(b.subs, s.topic)
	} else {
		b.subs[s.topic] = kept
	}
}

type memSub struct {
	bus   *MemoryBus
	topic string
	ch    chan Message
	stop  func() bool
	once  sync.Once

	// mu orders offers against close(ch).
	mu     sync.Mutex
	closed bool
}

func (s *memSub) C() <-chan Message { return s.ch }

// offer delivers msg without blocking. A closed subscription counts as
// delivered.
func (s *memSub) offer(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *memSub) Close() error {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.bus.remove(s)

		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	return nil
}
