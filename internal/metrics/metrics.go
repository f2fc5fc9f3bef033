package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deployguide",
			Name:      "generations_total",
			Help:      "Total number of deployment guide generations by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deployguide",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a generation including the upstream round trip",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"outcome"},
	)

	ArtifactSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "deployguide",
			Name:      "artifact_size_bytes",
			Help:      "Size of written deployment guides in bytes",
			Buckets:   prometheus.ExponentialBuckets(512, 2, 10), // 512B to 256KB
		},
	)

	ArtifactsDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deployguide",
			Name:      "artifacts_deleted_total",
			Help:      "Total number of artifacts deleted by reason",
		},
		[]string{"reason"}, // single, all, retention
	)
)

// ObserveGeneration records one finished generation.
func ObserveGeneration(platform, outcome string, elapsed time.Duration) {
	GenerationsTotal.WithLabelValues(platform, outcome).Inc()
	GenerationDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
