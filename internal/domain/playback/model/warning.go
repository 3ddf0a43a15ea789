// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "fmt"

// WarningKind is a stable machine-readable warning code.
type WarningKind string

const (
	WarnNoSeekableRange             WarningKind = "SEEK_NO_SEEKABLE_RANGE"
	WarnDiscontinuousRanges         WarningKind = "SEEK_DISCONTINUOUS_RANGES"
	WarnSeekBeyondLivePoint         WarningKind = "SEEK_BEYOND_LIVE_POINT"
	WarnNoReferencePoint            WarningKind = "SEEK_NO_REFERENCE_POINT"
	WarnTimeSeekInNonTimeBased      WarningKind = "SEEK_TIME_IN_NON_TIME_BASED_SOURCE"
	WarnProgramLookupFailed         WarningKind = "PROGRAM_SERVICE_LOOKUP_FAILED"
	WarnGapInEpg                    WarningKind = "PROGRAM_SERVICE_GAP_IN_EPG"
	WarnEntitlementValidationFailed WarningKind = "PROGRAM_SERVICE_VALIDATION_FAILED"
)

// Warning is a non-fatal, observable condition. Fields beyond Kind are set
// only where they apply.
type Warning struct {
	Kind      WarningKind `json:"kind"`
	Requested int64       `json:"requested,omitempty"`
	LivePoint int64       `json:"livePoint,omitempty"`
	ChannelID string      `json:"channelId,omitempty"`
	ProgramID string      `json:"programId,omitempty"`
	Err       error       `json:"-"`
}

// Code returns the stable warning code.
func (w Warning) Code() string {
	return string(w.Kind)
}

// Message renders a human readable description for logs.
func (w Warning) Message() string {
	switch w.Kind {
	case WarnNoSeekableRange:
		return "seek failed: no seekable range reported"
	case WarnDiscontinuousRanges:
		return "seekable ranges are discontinuous, using the first range"
	case WarnSeekBeyondLivePoint:
		return fmt.Sprintf("seek to %d is beyond the live point %d", w.Requested, w.LivePoint)
	case WarnNoReferencePoint:
		return fmt.Sprintf("seek to position %d ignored: no playhead reference available", w.Requested)
	case WarnTimeSeekInNonTimeBased:
		return fmt.Sprintf("seeking by unix timestamp %d in a non-timebased source", w.Requested)
	case WarnProgramLookupFailed:
		return fmt.Sprintf("program service failed to fetch the program at %d on %s: %v", w.Requested, w.ChannelID, w.Err)
	case WarnGapInEpg:
		return fmt.Sprintf("program service encountered a gap in the epg at %d on %s", w.Requested, w.ChannelID)
	case WarnEntitlementValidationFailed:
		return fmt.Sprintf("program service failed to validate program %s on %s: %v", w.ProgramID, w.ChannelID, w.Err)
	}
	return string(w.Kind)
}

func NoSeekableRange() Warning {
	return Warning{Kind: WarnNoSeekableRange}
}

func DiscontinuousRanges() Warning {
	return Warning{Kind: WarnDiscontinuousRanges}
}

func SeekBeyondLivePoint(requested, livePoint int64) Warning {
	return Warning{Kind: WarnSeekBeyondLivePoint, Requested: requested, LivePoint: livePoint}
}

func NoReferencePoint(position int64) Warning {
	return Warning{Kind: WarnNoReferencePoint, Requested: position}
}

func TimeSeekInNonTimeBasedSource(ts int64) Warning {
	return Warning{Kind: WarnTimeSeekInNonTimeBased, Requested: ts}
}

func ProgramLookupFailed(ts int64, channelID string, err error) Warning {
	return Warning{Kind: WarnProgramLookupFailed, Requested: ts, ChannelID: channelID, Err: err}
}

func GapInEpg(ts int64, channelID string) Warning {
	return Warning{Kind: WarnGapInEpg, Requested: ts, ChannelID: channelID}
}

func EntitlementValidationFailed(programID, channelID string, err error) Warning {
	return Warning{Kind: WarnEntitlementValidationFailed, ProgramID: programID, ChannelID: channelID, Err: err}
}
