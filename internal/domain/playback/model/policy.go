// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "fmt"

// StartPolicyKind enumerates the caller-selected start behaviours.
type StartPolicyKind string

const (
	PlayFromDefaultBehaviour StartPolicyKind = "default"
	PlayFromBeginningKind    StartPolicyKind = "beginning"
	PlayFromBookmarkKind     StartPolicyKind = "bookmark"
	PlayFromCustomPosition   StartPolicyKind = "custom_position"
	PlayFromCustomTime       StartPolicyKind = "custom_time"
)

// StartPolicy is selected once before playback starts.
type StartPolicy struct {
	Kind StartPolicyKind `json:"kind"`

	// Value is the position (CustomPosition) or wall-clock timestamp (CustomTime).
	Value int64 `json:"value,omitempty"`
}

func PlayFromDefault() StartPolicy         { return StartPolicy{Kind: PlayFromDefaultBehaviour} }
func PlayFromBeginning() StartPolicy       { return StartPolicy{Kind: PlayFromBeginningKind} }
func PlayFromBookmark() StartPolicy        { return StartPolicy{Kind: PlayFromBookmarkKind} }
func PlayFromPosition(p int64) StartPolicy { return StartPolicy{Kind: PlayFromCustomPosition, Value: p} }
func PlayFromTime(ts int64) StartPolicy    { return StartPolicy{Kind: PlayFromCustomTime, Value: ts} }

// IsDefault reports whether the policy is the default behaviour.
func (p StartPolicy) IsDefault() bool { return p.Kind == PlayFromDefaultBehaviour || p.Kind == "" }

func (p StartPolicy) String() string {
	switch p.Kind {
	case PlayFromCustomPosition, PlayFromCustomTime:
		return fmt.Sprintf("%s(%d)", p.Kind, p.Value)
	case "":
		return string(PlayFromDefaultBehaviour)
	}
	return string(p.Kind)
}

// StartOffsetKind is the tag of a resolved StartOffset.
type StartOffsetKind string

const (
	OffsetUseDefault StartOffsetKind = "use_default"
	OffsetByPosition StartOffsetKind = "by_position"
	OffsetByTime     StartOffsetKind = "by_time"
)

// StartOffset is the resolver output consumed by the engine at load time.
// Exactly one kind is set; Value is meaningless for OffsetUseDefault.
type StartOffset struct {
	Kind  StartOffsetKind `json:"kind"`
	Value int64           `json:"value,omitempty"`
}

func UseDefault() StartOffset        { return StartOffset{Kind: OffsetUseDefault} }
func ByPosition(p int64) StartOffset { return StartOffset{Kind: OffsetByPosition, Value: p} }
func ByTime(ts int64) StartOffset    { return StartOffset{Kind: OffsetByTime, Value: ts} }

// Position returns the start position and whether this offset is position based.
func (o StartOffset) Position() (int64, bool) {
	return o.Value, o.Kind == OffsetByPosition
}

// Time returns the start timestamp and whether this offset is time based.
func (o StartOffset) Time() (int64, bool) {
	return o.Value, o.Kind == OffsetByTime
}

func (o StartOffset) String() string {
	if o.Kind == OffsetUseDefault {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s(%d)", o.Kind, o.Value)
}

// PlaybackProperties are the per-session caller options.
type PlaybackProperties struct {
	PlayFrom StartPolicy `json:"playFrom"`

	// TimeBehindLiveMs is the live-edge tolerance; 0 when unset.
	TimeBehindLiveMs int64 `json:"timeBehindLiveMs,omitempty"`
}
