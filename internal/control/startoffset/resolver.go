// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package startoffset decides where playback starts before the engine loads
// media. Resolve is a pure function of its input.
package startoffset

import (
	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/timeline"
)

// ReasonCode explains which table entry produced the offset.
type ReasonCode string

const (
	ReasonDefaultLiveEdge       ReasonCode = "DEFAULT_LIVE_EDGE"
	ReasonDefaultSegmentStart   ReasonCode = "DEFAULT_SEGMENT_START"
	ReasonDefaultLegacyLocator  ReasonCode = "DEFAULT_LEGACY_LOCATOR"
	ReasonBeginningSegmentStart ReasonCode = "BEGINNING_SEGMENT_START"
	ReasonBeginningLegacy       ReasonCode = "BEGINNING_LEGACY_LOCATOR"
	ReasonBookmarkOffset        ReasonCode = "BOOKMARK_OFFSET"
	ReasonCustomPosition        ReasonCode = "CUSTOM_POSITION"
	ReasonCustomTime            ReasonCode = "CUSTOM_TIME"
)

// FallbackCode explains why a policy fell through to default resolution.
type FallbackCode string

const (
	FallbackNone               FallbackCode = ""
	FallbackBookmarkAbsent     FallbackCode = "BOOKMARK_ABSENT"
	FallbackBookmarkChannel    FallbackCode = "BOOKMARK_IGNORED_FOR_CHANNEL"
	FallbackPositionOutOfRange FallbackCode = "CUSTOM_POSITION_OUT_OF_RANGE"
	FallbackPositionUnknown    FallbackCode = "CUSTOM_POSITION_RANGE_UNKNOWN"
	FallbackTimeOutOfRange     FallbackCode = "CUSTOM_TIME_OUT_OF_RANGE"
	FallbackTimeUnknown        FallbackCode = "CUSTOM_TIME_RANGE_UNKNOWN"
	FallbackUnknownPolicy      FallbackCode = "UNKNOWN_POLICY"
)

// Input is everything the table is keyed on. Ranges are the engine's seekable
// ranges at resolution time; nil means not yet known.
type Input struct {
	Kind           model.StreamKind
	Policy         model.StartPolicy
	Entitlement    model.Entitlement
	PositionRanges []timeline.Range
	TimeRanges     []timeline.Range
}

// Decision is the resolved offset.
type Decision struct {
	Offset   model.StartOffset
	Reason   ReasonCode
	Fallback FallbackCode
}

// Resolve maps the input to exactly one start offset. It never fails:
// unusable custom values and missing bookmarks fall through to the default
// entry for the same stream.
func Resolve(in Input) Decision {
	switch in.Policy.Kind {
	case model.PlayFromDefaultBehaviour, "":
		return resolveDefault(in, FallbackNone)

	case model.PlayFromBeginningKind:
		if in.Entitlement.IsUnifiedPackager() {
			return Decision{Offset: model.ByPosition(model.SegmentLength), Reason: ReasonBeginningSegmentStart}
		}
		return Decision{Offset: model.UseDefault(), Reason: ReasonBeginningLegacy}

	case model.PlayFromBookmarkKind:
		if in.Kind == model.StreamChannel {
			return resolveDefault(in, FallbackBookmarkChannel)
		}
		if off := in.Entitlement.LastViewedOffsetMs; off != nil {
			return Decision{Offset: model.ByPosition(*off), Reason: ReasonBookmarkOffset}
		}
		return resolveDefault(in, FallbackBookmarkAbsent)

	case model.PlayFromCustomPosition:
		if len(in.PositionRanges) == 0 {
			return resolveDefault(in, FallbackPositionUnknown)
		}
		if !timeline.ContainsAny(in.PositionRanges, in.Policy.Value) {
			return resolveDefault(in, FallbackPositionOutOfRange)
		}
		return Decision{Offset: model.ByPosition(in.Policy.Value), Reason: ReasonCustomPosition}

	case model.PlayFromCustomTime:
		if len(in.TimeRanges) == 0 {
			return resolveDefault(in, FallbackTimeUnknown)
		}
		if !timeline.ContainsAny(in.TimeRanges, in.Policy.Value) {
			return resolveDefault(in, FallbackTimeOutOfRange)
		}
		return Decision{Offset: model.ByTime(in.Policy.Value), Reason: ReasonCustomTime}
	}
	return resolveDefault(in, FallbackUnknownPolicy)
}

func resolveDefault(in Input, fallback FallbackCode) Decision {
	d := Decision{Fallback: fallback}
	live := in.Kind == model.StreamChannel || in.Entitlement.Live
	switch {
	case !in.Entitlement.IsUnifiedPackager():
		d.Offset, d.Reason = model.UseDefault(), ReasonDefaultLegacyLocator
	case live:
		d.Offset, d.Reason = model.UseDefault(), ReasonDefaultLiveEdge
	default:
		d.Offset, d.Reason = model.ByPosition(model.SegmentLength), ReasonDefaultSegmentStart
	}
	return d
}
