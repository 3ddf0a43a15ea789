// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	AssetIDKey    = "playback.asset_id"
	ChannelIDKey  = "playback.channel_id"
	StreamKindKey = "playback.stream_kind"
	VariantKey    = "playback.variant"
	InstantKey    = "playback.instant_ms"
	AttemptKey    = "backend.attempt"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// EntitlementAttributes describes an entitlement request. Empty values are
// omitted.
func EntitlementAttributes(kind, assetID, channelID, variant string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if kind != "" {
		attrs = append(attrs, attribute.String(StreamKindKey, kind))
	}
	if assetID != "" {
		attrs = append(attrs, attribute.String(AssetIDKey, assetID))
	}
	if channelID != "" {
		attrs = append(attrs, attribute.String(ChannelIDKey, channelID))
	}
	if variant != "" {
		attrs = append(attrs, attribute.String(VariantKey, variant))
	}
	return attrs
}

// LookupAttributes describes a lookup-by-instant call.
func LookupAttributes(channelID string, instantMs int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ChannelIDKey, channelID),
		attribute.Int64(InstantKey, instantMs),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
