// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package model holds the value types shared by the playback policy layer.
package model

// StreamKind identifies the source variant. It is fixed at construction.
type StreamKind string

const (
	StreamChannel StreamKind = "CHANNEL"
	StreamProgram StreamKind = "PROGRAM"
)

// Classification drives the live-edge branch of seek resolution.
type Classification string

const (
	// AlwaysLive is a perpetually growing channel manifest.
	AlwaysLive Classification = "ALWAYS_LIVE"
	// LiveTail is a program manifest that is still growing and abuts the live edge.
	LiveTail Classification = "LIVE_TAIL"
	// OnDemand is a static (fully materialised) catch-up manifest.
	OnDemand Classification = "ON_DEMAND"
)

// IsLive reports whether seeks past the window end are treated against the live edge.
func (c Classification) IsLive() bool {
	return c == AlwaysLive || c == LiveTail
}

// MediaLocatorKind tells how offsets into the manifest are expressed.
type MediaLocatorKind string

const (
	LocatorUnifiedPackager MediaLocatorKind = "UNIFIED_PACKAGER"
	LocatorLegacyPipe      MediaLocatorKind = "LEGACY_PIPE"
)

// MediaVariant selects the media flavour requested from the entitlement backend.
type MediaVariant string

const (
	VariantDefault     MediaVariant = ""
	VariantUnencrypted MediaVariant = "UNENCRYPTED"
)

// SessionState is the coarse playback session lifecycle.
type SessionState string

const (
	SessionNew      SessionState = "NEW"
	SessionStarting SessionState = "STARTING"
	SessionPlaying  SessionState = "PLAYING"
	SessionStopped  SessionState = "STOPPED"
	SessionFailed   SessionState = "FAILED"
)

// IsTerminal returns true if the state is a final state.
func (s SessionState) IsTerminal() bool {
	switch s {
	case SessionStopped, SessionFailed:
		return true
	}
	return false
}
