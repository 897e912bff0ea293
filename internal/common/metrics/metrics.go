// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_evaluations_total",
			Help: "Total number of alert evaluations by outcome",
		},
		[]string{"outcome"}, // triggered, not_triggered, skipped_no_price, error
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "alert_cycle_duration_seconds",
			Help: "Duration of one full evaluation cycle in seconds",
		},
	)

	CycleRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_cycle_runs_total",
			Help: "Total number of evaluation cycle runs by result",
		},
		[]string{"result"}, // ok, error
	)

	DispatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivery_attempts_total",
			Help: "Total delivery attempts by channel and result",
		},
		[]string{"channel", "result"},
	)

	DispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_total",
			Help: "Total dispatch units processed by terminal status",
		},
		[]string{"status"}, // sent, failed, dropped
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notification_dispatch_duration_seconds",
			Help: "Duration of dispatch processing including retries",
		},
		[]string{"channel"},
	)
)
