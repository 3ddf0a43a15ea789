// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	busPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeshift_bus_published_total",
		Help: "Messages delivered to every subscriber of a topic",
	}, []string{"topic"})

	busDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeshift_bus_dropped_total",
		Help: "Messages a subscriber missed, by reason (full, timeout, canceled)",
	}, []string{"topic", "reason"})
)

func IncBusPublished(topic string) {
	busPublished.WithLabelValues(orUnknown(topic)).Inc()
}

func IncBusDropReason(topic, reason string) {
	busDropped.WithLabelValues(orUnknown(topic), orUnknown(reason)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
