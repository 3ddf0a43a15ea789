// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// Bus topics used by the session.
const (
	TopicWarning = "playback.warning"
	TopicSession = "playback.session"
)

// SessionEventType describes a session-level event.
type SessionEventType string

const (
	EventStarted  SessionEventType = "started"
	EventSeeked   SessionEventType = "seeked"
	EventReloaded SessionEventType = "reloaded"
	EventStopped  SessionEventType = "stopped"
	EventError    SessionEventType = "error"
)

// SessionEvent is published on TopicSession.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	SessionID string           `json:"sessionId"`
	AssetID   string           `json:"assetId,omitempty"`
	OffsetMs  int64            `json:"offsetMs,omitempty"`
	Err       error            `json:"-"`
}
