// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"sync"

	"github.com/ManuGH/timeshift/internal/bus"
	"github.com/ManuGH/timeshift/internal/domain/playback/model"
)

// collector gathers warnings and session events for the report. Program
// service warnings reach it directly; session warnings and events arrive over
// the bus.
type collector struct {
	mu       sync.Mutex
	warnings []WarningReport
	events   []string
	subs     []bus.Subscriber
}

func newCollector(ctx context.Context, b *bus.MemoryBus) *collector {
	c := &collector{}
	for _, topic := range []string{model.TopicWarning, model.TopicSession} {
		sub, err := b.Subscribe(ctx, topic)
		if err != nil {
			continue
		}
		c.subs = append(c.subs, sub)
	}
	return c
}

// Warn records w. It implements ports.WarningSink.
func (c *collector) Warn(_ context.Context, w model.Warning) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, WarningReport{Code: w.Code(), Message: w.Message()})
}

// drain reads everything already published and closes the subscriptions.
func (c *collector) drain() ([]WarningReport, []string) {
	for _, sub := range c.subs {
	loop:
		for {
			select {
			case msg, ok := <-sub.C():
				if !ok {
					break loop
				}
				c.record(msg)
			default:
				break loop
			}
		}
		_ = sub.Close()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]WarningReport{}, c.warnings...), append([]string{}, c.events...)
}

func (c *collector) record(msg bus.Message) {
	switch m := msg.(type) {
	case model.Warning:
		c.Warn(context.Background(), m)
	case model.SessionEvent:
		c.mu.Lock()
		c.events = append(c.events, string(m.Type))
		c.mu.Unlock()
	}
}
