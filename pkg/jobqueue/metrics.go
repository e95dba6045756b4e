package jobqueue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	enqueueTotal  *prometheus.CounterVec
	dispatchTotal *prometheus.CounterVec
	deadTotal     *prometheus.CounterVec

	dispatchLatency *prometheus.HistogramVec

	pending      *prometheus.GaugeVec
	locked       *prometheus.GaugeVec
	workerLeader *prometheus.GaugeVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		enqueueTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobqueue",
			Name:      "enqueue_total",
			Help:      "Total number of job enqueue operations.",
		}, []string{"table", "topic"}),
		dispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobqueue",
			Name:      "dispatch_total",
			Help:      "Total number of job dispatch operations.",
		}, []string{"table", "topic", "result"}),
		deadTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobqueue",
			Name:      "dead_total",
			Help:      "Total number of jobs that first entered dead state.",
		}, []string{"table", "topic"}),
		dispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jobqueue",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency distribution for job dispatch.",
			Buckets: []float64{
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10,
				30, 60, 120, 300,
			},
		}, []string{"table", "topic", "result"}),
		pending: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "jobqueue",
			Name:      "pending",
			Help:      "Current number of pending (uncompleted) jobs.",
		}, []string{"table"}),
		locked: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "jobqueue",
			Name:      "locked",
			Help:      "Current number of locked (uncompleted) jobs.",
		}, []string{"table"}),
		workerLeader: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "jobqueue",
			Name:      "worker_leader",
			Help:      "Whether current instance holds leader lock for a table (1/0).",
		}, []string{"table"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
