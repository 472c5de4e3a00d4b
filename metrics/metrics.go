package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus instruments.
type Metrics struct {
	JobsSubmitted     prometheus.Counter
	JobsProcessed     *prometheus.CounterVec
	ProcessingSeconds prometheus.Histogram
	QueueDepth        prometheus.Gauge
}

// New registers the service instruments on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		JobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "nlp_jobs_submitted_total",
			Help: "Jobs accepted for asynchronous processing.",
		}),
		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nlp_jobs_processed_total",
			Help: "Jobs finished by the worker, labeled by final status.",
		}, []string{"status"}),
		ProcessingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nlp_job_processing_seconds",
			Help:    "Wall time spent processing one job.",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nlp_queue_depth",
			Help: "Pending jobs in the processing queue at last observation.",
		}),
	}
}
