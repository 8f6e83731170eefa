package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the audio pipeline.
type Metrics struct {
	ChunksIngested prometheus.Counter
	IngestFailures prometheus.Counter

	Merges             *prometheus.CounterVec // result: success|failure
	MergeStrategyUsed  *prometheus.CounterVec // strategy name
	MergeChunksSkipped prometheus.Counter
	MergeDuration      prometheus.Histogram
}

// New registers all instruments on reg. Tests pass a fresh
// prometheus.NewRegistry so parallel packages never collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChunksIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "assistant_audio_chunks_ingested_total",
			Help: "Audio chunks accepted and stored remotely",
		}),
		IngestFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "assistant_audio_ingest_failures_total",
			Help: "Chunk uploads rejected with an error",
		}),
		Merges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_audio_merges_total",
			Help: "Reconciliation runs by outcome",
		}, []string{"result"}),
		MergeStrategyUsed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_audio_merge_strategy_total",
			Help: "Which merge strategy produced the artifact",
		}, []string{"strategy"}),
		MergeChunksSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "assistant_audio_merge_chunks_skipped_total",
			Help: "Chunks skipped during staging because retrieval failed",
		}),
		MergeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "assistant_audio_merge_duration_seconds",
			Help:    "Wall time of successful reconciliation runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
}
