package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts answer calls by outcome.
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fortressd",
		Subsystem: "retrieval",
		Name:      "queries_total",
		Help:      "Total number of answer calls by outcome",
	}, []string{"result"})

	// QueryDuration observes end-to-end answer latency.
	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fortressd",
		Subsystem: "retrieval",
		Name:      "query_duration_seconds",
		Help:      "Answer pipeline duration in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)
