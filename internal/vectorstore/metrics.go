// Package vectorstore provides Prometheus metrics for index operations.
package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AppendsTotal counts append operations.
	// Labels: result (success, error, embedding_error)
	AppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fortressd",
			Subsystem: "vectorstore",
			Name:      "appends_total",
			Help:      "Total number of index append operations",
		},
		[]string{"result"},
	)

	// PassagesAppended counts passages written to indexes.
	PassagesAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fortressd",
			Subsystem: "vectorstore",
			Name:      "passages_appended_total",
			Help:      "Total number of passages appended across all namespaces",
		},
	)

	// AppendDuration tracks append latency including embedding calls.
	AppendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fortressd",
			Subsystem: "vectorstore",
			Name:      "append_duration_seconds",
			Help:      "Duration of index append operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// SearchesTotal counts search operations.
	// Labels: result (success, error)
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fortressd",
			Subsystem: "vectorstore",
			Name:      "searches_total",
			Help:      "Total number of similarity search operations",
		},
		[]string{"result"},
	)

	// SearchDuration tracks search latency including query embedding.
	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fortressd",
			Subsystem: "vectorstore",
			Name:      "search_duration_seconds",
			Help:      "Duration of similarity search operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
