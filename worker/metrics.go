package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// workerMetrics instruments handler execution. A nil registerer keeps
// the metrics local (unregistered), which is what tests want.
type workerMetrics struct {
	finishedTotal *prometheus.CounterVec
	duration      prometheus.Histogram
}

func newWorkerMetrics(reg prometheus.Registerer, queueName string) *workerMetrics {
	m := &workerMetrics{
		finishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "conveyor_worker_jobs_finished_total",
			Help:        "Jobs finished by this worker, by outcome.",
			ConstLabels: prometheus.Labels{"queue": queueName},
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "conveyor_worker_handler_duration_seconds",
			Help:        "Handler execution time.",
			ConstLabels: prometheus.Labels{"queue": queueName},
			Buckets:     prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.finishedTotal, m.duration)
	}
	return m
}

func (m *workerMetrics) finished(outcome string) {
	m.finishedTotal.WithLabelValues(outcome).Inc()
}

func (m *workerMetrics) observeDuration(d time.Duration) {
	m.duration.Observe(d.Seconds())
}
