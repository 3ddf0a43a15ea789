// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package seek resolves a requested seek against the engine's seekable window
// and the live edge, then drives it through the entitlement gate.
package seek

import (
	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/timeline"
)

// Action is what the executor must do with a decision.
type Action string

const (
	// ActionNone issues nothing. Warnings say why.
	ActionNone Action = "none"
	// ActionSeek gates Target and seeks there.
	ActionSeek Action = "seek"
	// ActionGoLive gates the live edge and seeks there.
	ActionGoLive Action = "go_live"
	// ActionReroute leaves the loaded manifest and asks for a fresh source at Target.
	ActionReroute Action = "reroute"
)

type Reason string

const (
	ReasonNoSeekableRange   Reason = "NO_SEEKABLE_RANGE"
	ReasonBeforeWindow      Reason = "BEFORE_WINDOW_REROUTE"
	ReasonWithinLiveDelta   Reason = "BEYOND_EDGE_WITHIN_LIVE_DELTA"
	ReasonBeyondLivePoint   Reason = "BEYOND_LIVE_POINT"
	ReasonBeyondStaticRange Reason = "BEYOND_WINDOW_REROUTE"
	ReasonInRange           Reason = "IN_RANGE"
)

// Request is one seek-to-time evaluation. Ranges must be read from the engine
// right before deciding.
type Request struct {
	Requested      int64
	Ranges         []timeline.Range
	Classification model.Classification
	TimeBehindLive int64
}

type Decision struct {
	Action   Action
	Target   int64
	Reason   Reason
	Warnings []model.Warning
}

// Decide is one algorithm for every stream classification. Only the branch past
// the end of the window depends on whether the stream is live.
func Decide(req Request) Decision {
	var d Decision

	window, discontinuous, err := timeline.First(req.Ranges)
	if err != nil {
		d.Action, d.Reason = ActionNone, ReasonNoSeekableRange
		d.Warnings = append(d.Warnings, model.NoSeekableRange())
		return d
	}
	if discontinuous {
		d.Warnings = append(d.Warnings, model.DiscontinuousRanges())
	}

	t := req.Requested
	switch {
	case t < window.Start:
		// The manifest window can shift; a fresh source decides what T means.
		d.Action, d.Target, d.Reason = ActionReroute, t, ReasonBeforeWindow

	case t > window.End && req.Classification.IsLive():
		if timeline.WithinLiveDelta(t, window.End, req.TimeBehindLive) {
			d.Action, d.Target, d.Reason = ActionGoLive, window.End, ReasonWithinLiveDelta
		} else {
			d.Action, d.Reason = ActionNone, ReasonBeyondLivePoint
			d.Warnings = append(d.Warnings, model.SeekBeyondLivePoint(t, window.End))
		}

	case t > window.End:
		d.Action, d.Target, d.Reason = ActionReroute, t, ReasonBeyondStaticRange

	default:
		d.Action, d.Target, d.Reason = ActionSeek, t, ReasonInRange
	}
	return d
}
