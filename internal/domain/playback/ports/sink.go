// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"context"

	"github.com/ManuGH/timeshift/internal/domain/playback/model"
)

// WarningSink receives non-fatal warnings.
type WarningSink interface {
	Warn(ctx context.Context, w model.Warning)
}

// WarningSinkFunc adapts a function to WarningSink.
type WarningSinkFunc func(ctx context.Context, w model.Warning)

func (f WarningSinkFunc) Warn(ctx context.Context, w model.Warning) { f(ctx, w) }

// Rerouter handles seeks that need a fresh entitlement and source load for
// the requested instant instead of a seek within the current manifest.
type Rerouter interface {
	RerouteToInstant(ctx context.Context, ts int64) error
}

// Bus defines the event bus used to publish warnings and session events.
type Bus interface {
	Publish(ctx context.Context, topic string, event any) error
}
