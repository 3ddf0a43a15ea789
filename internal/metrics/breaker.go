// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "timeshift_breaker_state",
		Help: "Breaker state by name: 0 closed, 1 half-open, 2 open",
	}, []string{"name"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeshift_breaker_transitions_total",
		Help: "Breaker state transitions",
	}, []string{"name", "from", "to"})

	breakerRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeshift_breaker_rejected_total",
		Help: "Calls refused without reaching the backend",
	}, []string{"name"})
)

func SetBreakerState(name, state string) {
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	breakerState.WithLabelValues(name).Set(v)
}

func RecordBreakerTransition(name, from, to string) {
	breakerTransitions.WithLabelValues(name, from, to).Inc()
}

func IncBreakerRejected(name string) {
	breakerRejected.WithLabelValues(name).Inc()
}
