// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus carries playback warnings and session events to observers.
package bus

import "context"

// Message is any published event, typically model.Warning or model.SessionEvent.
type Message = any

type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}

type Subscriber interface {
	C() <-chan Message
	Close() error
}
