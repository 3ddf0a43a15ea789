// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	startOffsetTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeshift_start_offset_total",
		Help: "Total number of start offset resolutions by policy, resolved kind and reason",
	}, []string{"policy", "kind", "reason"})

	seekDecisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeshift_seek_decisions_total",
		Help: "Total number of seek decisions by action and stream classification",
	}, []string{"action", "classification"})

	seekWarningTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeshift_seek_warnings_total",
		Help: "Total number of playback warnings by code",
	}, []string{"code"})
)

// RecordStartOffset records one start offset resolution.
func RecordStartOffset(policy, kind, reason string) {
	startOffsetTotal.WithLabelValues(
		normalizePolicyLabel(policy),
		normalizeOffsetKindLabel(kind),
		normalizeReasonLabel(reason),
	).Inc()
}

// RecordSeekDecision records one seek decision.
func RecordSeekDecision(action, classification string) {
	seekDecisionTotal.WithLabelValues(
		normalizeActionLabel(action),
		normalizeClassificationLabel(classification),
	).Inc()
}

// RecordWarning records one emitted playback warning.
func RecordWarning(code string) {
	code = strings.TrimSpace(code)
	if code == "" {
		code = "unknown"
	}
	seekWarningTotal.WithLabelValues(code).Inc()
}

func normalizePolicyLabel(policy string) string {
	switch p := strings.ToLower(strings.TrimSpace(policy)); p {
	case "default", "beginning", "bookmark", "custom_position", "custom_time":
		return p
	default:
		return "unknown"
	}
}

func normalizeOffsetKindLabel(kind string) string {
	switch k := strings.ToLower(strings.TrimSpace(kind)); k {
	case "use_default", "by_position", "by_time":
		return k
	default:
		return "unknown"
	}
}

func normalizeActionLabel(action string) string {
	switch a := strings.ToLower(strings.TrimSpace(action)); a {
	case "none", "seek", "go_live", "reroute":
		return a
	default:
		return "unknown"
	}
}

func normalizeClassificationLabel(c string) string {
	switch v := strings.ToLower(strings.TrimSpace(c)); v {
	case "always_live", "live_tail", "on_demand":
		return v
	default:
		return "unknown"
	}
}

// Reason codes are upper snake case and bounded by the resolvers; anything
// else collapses to unknown to keep cardinality fixed.
func normalizeReasonLabel(reason string) string {
	r := strings.TrimSpace(reason)
	if r == "" || len(r) > 64 || strings.ToUpper(r) != r {
		return "unknown"
	}
	return r
}
