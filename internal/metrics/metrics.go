package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "pgxntester"

var (
	ResultAcceptedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_accepted_total",
			Help:      "Total number of result submissions persisted.",
		},
	)

	ResultRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_rejected_total",
			Help:      "Total number of rejected result submissions, labeled by reason.",
		},
		[]string{"reason"},
	)

	QueueRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_requests_total",
			Help:      "Total number of work queue computations.",
		},
	)

	QueueItemsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_items_returned",
			Help:      "Number of pending items returned per queue request.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	RateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		ResultAcceptedTotal,
		ResultRejectedTotal,
		QueueRequestsTotal,
		QueueItemsReturned,
		RateLimitHitsTotal,
	)
}
