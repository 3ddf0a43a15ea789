// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldAssetID   = "asset_id"
	FieldChannelID = "channel_id"
	FieldProgramID = "program_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldService   = "service"
	FieldVersion   = "version"

	// Playback fields
	FieldRequestedMs    = "requested_ms"
	FieldTargetMs       = "target_ms"
	FieldLivePointMs    = "live_point_ms"
	FieldRangeStartMs   = "range_start_ms"
	FieldRangeEndMs     = "range_end_ms"
	FieldClassification = "classification"
	FieldPolicy         = "policy"
	FieldReason         = "reason"
	FieldVariant        = "variant"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Network fields
	FieldBaseURL    = "base_url"
	FieldHTTPStatus = "http_status"
)
