// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestEntitlementAttributes_OmitsEmpty(t *testing.T) {
	attrs := EntitlementAttributes("PROGRAM", "p1", "", "")
	assert.Equal(t, []attribute.KeyValue{
		attribute.String(StreamKindKey, "PROGRAM"),
		attribute.String(AssetIDKey, "p1"),
	}, attrs)
}

func TestLookupAttributes(t *testing.T) {
	attrs := LookupAttributes("ch1", 9000)
	assert.Len(t, attrs, 2)
	assert.Equal(t, int64(9000), attrs[1].Value.AsInt64())
}

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("GET", "/v2/play", 403)
	assert.Equal(t, int64(403), attrs[2].Value.AsInt64())
}
