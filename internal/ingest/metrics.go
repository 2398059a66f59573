package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestionsTotal counts ingestion calls by outcome.
	IngestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fortressd",
		Subsystem: "ingest",
		Name:      "ingestions_total",
		Help:      "Total number of ingestion calls by outcome",
	}, []string{"result"})

	// ChunksIngested counts passages written to the index.
	ChunksIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fortressd",
		Subsystem: "ingest",
		Name:      "chunks_ingested_total",
		Help:      "Total number of passages appended by ingestion",
	})

	// IngestDuration observes end-to-end ingestion latency.
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fortressd",
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "Ingestion duration in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)
