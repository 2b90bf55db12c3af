package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Publication metrics
	Publishes       *prometheus.CounterVec
	PublishLatency  prometheus.Histogram
	HandlerFailures *prometheus.CounterVec

	// Recap metrics
	SessionRecaps prometheus.Counter
	DayRecaps     prometheus.Counter

	// Delivery metrics
	Deliveries prometheus.Counter
}

// InitMetrics initializes the Prometheus metrics. The pending queue is
// exposed as a gauge that reads the live index.
func InitMetrics(queue *PendingQueue) *Metrics {
	metrics := &Metrics{
		// Publish transitions by kind and trigger (scheduled vs forced)
		Publishes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nightpress_publishes_total",
			Help: "Total number of records transitioned to published",
		}, []string{"kind", "trigger"}),

		// Time from scheduled publish to actual transition
		PublishLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "nightpress_publish_lag_seconds",
			Help:    "Delay between scheduledPublishAt and the publish transition",
			Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120, 300},
		}),

		// Publish-bus handler failures by handler name
		HandlerFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nightpress_publish_handler_failures_total",
			Help: "Total number of swallowed publish handler failures",
		}, []string{"handler"}),

		SessionRecaps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nightpress_session_recaps_total",
			Help: "Total number of session recaps generated",
		}),

		DayRecaps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nightpress_day_recaps_total",
			Help: "Total number of day recaps generated",
		}),

		Deliveries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nightpress_deliveries_queued_total",
			Help: "Total number of conversation deliveries queued",
		}),
	}

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "nightpress_pending_records",
			Help: "Current number of records in the pending queue",
		},
		func() float64 {
			if queue != nil {
				return float64(queue.Len())
			}
			return 0
		},
	))

	return metrics
}
