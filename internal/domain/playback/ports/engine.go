// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ports defines the boundaries of the playback policy layer: the media
// engine, the entitlement backend and the program service.
package ports

import (
	"context"

	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/timeline"
)

// Timeline is the read side of the media engine. Values are pulled on demand
// and never cached by the policy layer.
type Timeline interface {
	SeekableTimeRanges() []timeline.Range
	SeekablePositionRanges() []timeline.Range
	// PlayheadTime is the current wall-clock playhead, if known.
	PlayheadTime() (int64, bool)
	// PlayheadPosition is the current stream-relative playhead, if known.
	PlayheadPosition() (int64, bool)
	// IsLiveTail reports whether the loaded manifest is still growing.
	IsLiveTail() bool
}

// Seeker issues primitive seeks. Seeks are synchronous once invoked.
type Seeker interface {
	SeekToTime(ts int64)
	SeekToPosition(position int64)
}

// Loader loads media for a source at a resolved start offset.
type Loader interface {
	Load(ctx context.Context, src model.Source, offset model.StartOffset) error
	Stop()
}

// Engine is the full media engine collaborator.
type Engine interface {
	Timeline
	Seeker
	Loader
}
