// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, vec.WithLabelValues(labels...).Write(m))
	return m.GetCounter().GetValue()
}

func TestRecordStartOffset_IncrementsCounter(t *testing.T) {
	initial := counterValue(t, startOffsetTotal, "bookmark", "by_position", "BOOKMARK_OFFSET")

	RecordStartOffset("bookmark", "by_position", "BOOKMARK_OFFSET")

	assert.Equal(t, initial+1, counterValue(t, startOffsetTotal, "bookmark", "by_position", "BOOKMARK_OFFSET"))
}

func TestRecordStartOffset_NormalizesLabels(t *testing.T) {
	initial := counterValue(t, startOffsetTotal, "unknown", "unknown", "unknown")

	RecordStartOffset("weird", "sideways", "not-a-reason")

	assert.Equal(t, initial+1, counterValue(t, startOffsetTotal, "unknown", "unknown", "unknown"))
}

func TestRecordSeekDecision(t *testing.T) {
	initial := counterValue(t, seekDecisionTotal, "go_live", "always_live")
	RecordSeekDecision("GO_LIVE", "ALWAYS_LIVE")
	assert.Equal(t, initial+1, counterValue(t, seekDecisionTotal, "go_live", "always_live"))
}

func TestRecordEntitlementRequest_DefaultVariant(t *testing.T) {
	initial := counterValue(t, entitlementRequestsTotal, "default", "denied")
	RecordEntitlementRequest("", "denied")
	assert.Equal(t, initial+1, counterValue(t, entitlementRequestsTotal, "default", "denied"))
}

func TestRecordGateCheck(t *testing.T) {
	initial := counterValue(t, gateChecksTotal, "superseded")
	RecordGateCheck("superseded", 5*time.Millisecond)
	assert.Equal(t, initial+1, counterValue(t, gateChecksTotal, "superseded"))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "transport_error", statusClass(0))
	assert.Equal(t, "4xx", statusClass(403))
	assert.Equal(t, "2xx", statusClass(200))
}
