// Package metrics exposes Prometheus collectors for the installation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EmotionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glow_emotion_transitions_total",
			Help: "Stable emotion transitions committed by the stabilizer",
		},
		[]string{"emotion"},
	)

	TouchEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glow_touch_events_total",
			Help: "Completed touches (press followed by release)",
		},
	)

	TouchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "glow_touch_duration_seconds",
			Help:    "Duration of completed touches in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glow_store_writes_total",
			Help: "Event store writes by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	StoreDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glow_store_dropped_total",
			Help: "Events dropped because the recorder was full or closed",
		},
	)

	LightEffects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glow_light_effects_total",
			Help: "Light effects started, by effect",
		},
		[]string{"effect"},
	)

	LightStepErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glow_light_step_errors_total",
			Help: "LED frames skipped because the device write failed",
		},
	)

	PollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glow_poll_errors_total",
			Help: "Transient sensing errors by poll loop",
		},
		[]string{"loop"},
	)

	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "glow_ws_clients",
			Help: "Connected websocket clients",
		},
	)
)
