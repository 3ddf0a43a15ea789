// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "strings"

// SegmentLength is the minimum safe start position (ms) into a unified-packager
// stream. Starting at exactly 0 hits edge artifacts at the manifest start.
const SegmentLength int64 = 6000

// unifiedPackagerMarker identifies unified packager manifests in a media locator.
const unifiedPackagerMarker = ".isml"

// Entitlement is the backend grant for one playback session. It is immutable
// after issuance.
type Entitlement struct {
	PlayToken    string       `json:"playToken"`
	MediaLocator string       `json:"mediaLocator"`
	ProgramID    string       `json:"programId,omitempty"`
	ChannelID    string       `json:"channelId,omitempty"`
	Live         bool         `json:"live"`
	Variant      MediaVariant `json:"variant,omitempty"`

	// LastViewedOffsetMs is the position-based bookmark.
	LastViewedOffsetMs *int64 `json:"lastViewedOffset,omitempty"`
	// LastViewedTimeMs is the wall-clock bookmark.
	LastViewedTimeMs *int64 `json:"lastViewedTime,omitempty"`
}

// LocatorKind derives the media locator kind from the media locator URL.
func (e Entitlement) LocatorKind() MediaLocatorKind {
	if strings.Contains(e.MediaLocator, unifiedPackagerMarker) {
		return LocatorUnifiedPackager
	}
	return LocatorLegacyPipe
}

// IsUnifiedPackager is shorthand for LocatorKind() == LocatorUnifiedPackager.
func (e Entitlement) IsUnifiedPackager() bool {
	return e.LocatorKind() == LocatorUnifiedPackager
}
