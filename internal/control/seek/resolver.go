// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package seek

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ManuGH/timeshift/internal/control/gate"
	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/domain/playback/ports"
	xglog "github.com/ManuGH/timeshift/internal/log"
	"github.com/ManuGH/timeshift/internal/metrics"
	"github.com/ManuGH/timeshift/internal/timeline"
)

// ReasonNotTimeBased marks a time seek on a source that only knows positions.
const ReasonNotTimeBased Reason = "NOT_TIME_BASED_SOURCE"

// ReasonNoReference marks a position seek without a playhead reference pair.
const ReasonNoReference Reason = "NO_REFERENCE_POINT"

// ErrNoRerouter is returned when a decision needs a fresh source but nothing
// can provide one.
var ErrNoRerouter = errors.New("seek: no rerouter configured")

// Engine is the part of the playback engine the resolver reads and drives.
type Engine interface {
	ports.Timeline
	ports.Seeker
}

// Gate is satisfied by *gate.Gate.
type Gate interface {
	Check(ctx context.Context, instant int64, onGranted func()) *gate.Pending
}

// Config wires a Resolver. Engine and Source are required.
type Config struct {
	Engine   Engine
	Source   model.Source
	Gate     Gate
	Rerouter ports.Rerouter
	Sink     ports.WarningSink

	// TimeBehindLive is read on every seek so reloaded config applies at once.
	TimeBehindLive func() int64

	Logger *zerolog.Logger
}

// Resolver executes seek decisions for one loaded source. Callers serialise
// calls; the gate is the only part that runs asynchronously.
type Resolver struct {
	engine   Engine
	source   model.Source
	gate     Gate
	rerouter ports.Rerouter
	sink     ports.WarningSink
	tbl      func() int64
	logger   zerolog.Logger
}

// Result carries the decision and, for Seek and GoLive, the gate handle. The
// engine seek happens only once Pending resolves Granted.
type Result struct {
	Decision
	Pending *gate.Pending
}

func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		engine:   cfg.Engine,
		source:   cfg.Source,
		gate:     cfg.Gate,
		rerouter: cfg.Rerouter,
		sink:     cfg.Sink,
		tbl:      cfg.TimeBehindLive,
	}
	if r.gate == nil {
		r.gate = gate.New(nil)
	}
	if r.tbl == nil {
		r.tbl = func() int64 { return 0 }
	}
	if cfg.Logger != nil {
		r.logger = *cfg.Logger
	} else {
		r.logger = xglog.WithComponent("seek")
	}
	r.logger = r.logger.With().
		Str(xglog.FieldAssetID, cfg.Source.AssetID).
		Str(xglog.FieldChannelID, cfg.Source.ProgramServiceChannelID()).
		Logger()
	return r
}

// Source returns the source the resolver was built for.
func (r *Resolver) Source() model.Source {
	return r.source
}

// SeekToTime resolves and executes a seek to wall-clock ts.
func (r *Resolver) SeekToTime(ctx context.Context, ts int64) (Result, error) {
	if !r.source.IsUnifiedPackager() {
		r.warn(ctx, model.TimeSeekInNonTimeBasedSource(ts))
		return Result{Decision: Decision{Action: ActionNone, Reason: ReasonNotTimeBased}}, nil
	}

	classification := r.source.Classify(r.engine.IsLiveTail())
	d := Decide(Request{
		Requested:      ts,
		Ranges:         r.engine.SeekableTimeRanges(),
		Classification: classification,
		TimeBehindLive: r.tbl(),
	})
	return r.execute(ctx, classification, d, func(target int64) func() {
		return func() { r.engine.SeekToTime(target) }
	}, identity)
}

// SeekToPosition converts position to wall-clock time through the current
// playhead sample. Without that sample the request is dropped with a warning.
func (r *Resolver) SeekToPosition(ctx context.Context, position int64) (Result, error) {
	refTime, okTime := r.engine.PlayheadTime()
	refPos, okPos := r.engine.PlayheadPosition()
	if !okTime || !okPos {
		r.warn(ctx, model.NoReferencePoint(position))
		return Result{Decision: Decision{Action: ActionNone, Reason: ReasonNoReference}}, nil
	}
	toTime := func(p int64) int64 { return timeline.TimestampFromPosition(p, refTime, refPos) }

	if r.source.IsUnifiedPackager() {
		return r.SeekToTime(ctx, toTime(position))
	}

	// Legacy manifests are position based: decide on positions, gate on the
	// equivalent instant, seek by position.
	classification := r.source.Classify(r.engine.IsLiveTail())
	d := Decide(Request{
		Requested:      position,
		Ranges:         r.engine.SeekablePositionRanges(),
		Classification: classification,
		TimeBehindLive: r.tbl(),
	})
	return r.execute(ctx, classification, d, func(target int64) func() {
		return func() { r.engine.SeekToPosition(target) }
	}, toTime)
}

// GoLive seeks to the live edge of the first seekable range.
func (r *Resolver) GoLive(ctx context.Context) (Result, error) {
	classification := r.source.Classify(r.engine.IsLiveTail())

	if r.source.IsUnifiedPackager() {
		window, _, err := timeline.First(r.engine.SeekableTimeRanges())
		if err != nil {
			r.warn(ctx, model.NoSeekableRange())
			return Result{Decision: Decision{Action: ActionNone, Reason: ReasonNoSeekableRange}}, nil
		}
		d := Decision{Action: ActionGoLive, Target: window.End, Reason: ReasonWithinLiveDelta}
		return r.execute(ctx, classification, d, func(target int64) func() {
			return func() { r.engine.SeekToTime(target) }
		}, identity)
	}

	window, _, err := timeline.First(r.engine.SeekablePositionRanges())
	if err != nil {
		r.warn(ctx, model.NoSeekableRange())
		return Result{Decision: Decision{Action: ActionNone, Reason: ReasonNoSeekableRange}}, nil
	}
	refTime, okTime := r.engine.PlayheadTime()
	refPos, okPos := r.engine.PlayheadPosition()
	if !okTime || !okPos {
		r.warn(ctx, model.NoReferencePoint(window.End))
		return Result{Decision: Decision{Action: ActionNone, Reason: ReasonNoReference}}, nil
	}
	d := Decision{Action: ActionGoLive, Target: window.End, Reason: ReasonWithinLiveDelta}
	return r.execute(ctx, classification, d, func(target int64) func() {
		return func() { r.engine.SeekToPosition(target) }
	}, func(p int64) int64 { return timeline.TimestampFromPosition(p, refTime, refPos) })
}

func identity(v int64) int64 { return v }

// execute carries out d. seekTo builds the engine call for a target in the
// decision's domain; instantOf maps that target to the wall-clock instant used
// for gating and rerouting.
func (r *Resolver) execute(ctx context.Context, classification model.Classification, d Decision,
	seekTo func(int64) func(), instantOf func(int64) int64) (Result, error) {
	metrics.RecordSeekDecision(string(d.Action), string(classification))
	for _, w := range d.Warnings {
		r.warn(ctx, w)
	}

	log := xglog.WithContext(ctx, r.logger)
	ev := log.Debug().
		Str(xglog.FieldEvent, "seek."+string(d.Action)).
		Str(xglog.FieldClassification, string(classification)).
		Str(xglog.FieldReason, string(d.Reason))
	if d.Action != ActionNone {
		ev = ev.Int64(xglog.FieldTargetMs, d.Target)
	}
	ev.Msg("seek resolved")

	res := Result{Decision: d}
	switch d.Action {
	case ActionSeek, ActionGoLive:
		res.Pending = r.gate.Check(ctx, instantOf(d.Target), seekTo(d.Target))
	case ActionReroute:
		if r.rerouter == nil {
			return res, ErrNoRerouter
		}
		instant := instantOf(d.Target)
		if err := r.rerouter.RerouteToInstant(ctx, instant); err != nil {
			return res, fmt.Errorf("reroute to %d: %w", instant, err)
		}
	}
	return res, nil
}

func (r *Resolver) warn(ctx context.Context, w model.Warning) {
	metrics.RecordWarning(w.Code())
	log := xglog.WithContext(ctx, r.logger)
	log.Info().
		Str(xglog.FieldEvent, "seek.warning").
		Str("code", w.Code()).
		Msg(w.Message())
	if r.sink != nil {
		r.sink.Warn(ctx, w)
	}
}
