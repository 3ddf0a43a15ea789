// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	playbackKindChannel = "channel"
	playbackKindProgram = "program"
	playbackKindUnknown = "unknown"

	playbackOutcomeOK      = "ok"
	playbackOutcomeFailed  = "failed"
	playbackOutcomeAborted = "aborted"

	playbackStageAcquire = "acquire"
	playbackStageLoad    = "load"
	playbackStageGate    = "gate"
	playbackStageReroute = "reroute"
	playbackStageUnknown = "unknown"
)

var (
	playbackStartSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timeshift_playback_start_seconds",
		Help:    "Time from start request to engine load, including entitlement acquisition",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 20},
	}, []string{"kind", "outcome"})

	playbackStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeshift_playback_start_total",
		Help: "Playback start attempts by stream kind",
	}, []string{"kind"})

	playbackErrorTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeshift_playback_error_total",
		Help: "Playback errors by stream kind and stage",
	}, []string{"kind", "stage"})
)

// IncPlaybackStart counts one start attempt.
func IncPlaybackStart(kind string) {
	playbackStartTotal.WithLabelValues(normalizePlaybackKindLabel(kind)).Inc()
}

// ObservePlaybackStart records how long a start took.
func ObservePlaybackStart(kind, outcome string, took time.Duration) {
	playbackStartSeconds.WithLabelValues(
		normalizePlaybackKindLabel(kind),
		normalizePlaybackOutcomeLabel(outcome),
	).Observe(took.Seconds())
}

// IncPlaybackError counts a playback-ending error at stage.
func IncPlaybackError(kind, stage string) {
	playbackErrorTotal.WithLabelValues(
		normalizePlaybackKindLabel(kind),
		normalizePlaybackStageLabel(stage),
	).Inc()
}

func normalizePlaybackKindLabel(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case playbackKindChannel:
		return playbackKindChannel
	case playbackKindProgram:
		return playbackKindProgram
	default:
		return playbackKindUnknown
	}
}

func normalizePlaybackOutcomeLabel(outcome string) string {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case playbackOutcomeOK, playbackOutcomeFailed, playbackOutcomeAborted:
		return strings.ToLower(strings.TrimSpace(outcome))
	default:
		return playbackOutcomeFailed
	}
}

func normalizePlaybackStageLabel(stage string) string {
	switch s := strings.ToLower(strings.TrimSpace(stage)); s {
	case playbackStageAcquire, playbackStageLoad, playbackStageGate, playbackStageReroute:
		return s
	default:
		return playbackStageUnknown
	}
}
