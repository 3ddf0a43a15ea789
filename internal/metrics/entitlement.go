// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entitlementRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeshift_entitlement_requests_total",
		Help: "Entitlement acquisition attempts by media variant and result",
	}, []string{"variant", "result"})

	gateChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeshift_gate_checks_total",
		Help: "Entitlement gate checks by result",
	}, []string{"result"})

	gateCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "timeshift_gate_check_duration_seconds",
		Help:    "Duration of entitlement gate round-trips",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	backendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timeshift_backend_request_duration_seconds",
		Help:    "Entitlement backend request latency by route and status class",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status_class"})

	backendRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeshift_backend_retries_total",
		Help: "Retried entitlement backend requests by route",
	}, []string{"route"})

	programLookupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeshift_program_lookup_total",
		Help: "Program lookups by cache result",
	}, []string{"cache"})
)

// RecordEntitlementRequest records one entitlement acquisition attempt.
func RecordEntitlementRequest(variant, result string) {
	if variant == "" {
		variant = "default"
	}
	entitlementRequestsTotal.WithLabelValues(strings.ToLower(variant), normalizeResultLabel(result)).Inc()
}

// RecordGateCheck records a finished gate check and its latency.
func RecordGateCheck(result string, took time.Duration) {
	gateChecksTotal.WithLabelValues(normalizeResultLabel(result)).Inc()
	gateCheckDuration.Observe(took.Seconds())
}

// RecordBackendRequest records one backend HTTP attempt.
func RecordBackendRequest(route string, status int, took time.Duration, retried bool) {
	backendRequestDuration.WithLabelValues(route, statusClass(status)).Observe(took.Seconds())
	if retried {
		backendRetriesTotal.WithLabelValues(route).Inc()
	}
}

// RecordProgramLookup records a program lookup cache hit or miss.
func RecordProgramLookup(hit bool) {
	label := "miss"
	if hit {
		label = "hit"
	}
	programLookupTotal.WithLabelValues(label).Inc()
}

func normalizeResultLabel(result string) string {
	switch r := strings.ToLower(strings.TrimSpace(result)); r {
	case "success", "granted", "denied", "timeout", "superseded", "failed", "fallback_success", "fallback_failed", "error":
		return r
	default:
		return "unknown"
	}
}

func statusClass(status int) string {
	if status <= 0 {
		return "transport_error"
	}
	return strconv.Itoa(status/100) + "xx"
}
