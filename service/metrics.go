package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("astsim.service")

// Comparison outcomes
const (
	outcomeFiltered = "filtered"
	outcomeCompared = "compared"
	outcomeSkipped  = "skipped"
)

var (
	// comparisonsTotal counts pair comparisons by outcome
	comparisonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "astsim_comparisons_total",
		Help: "Total submission pair comparisons by outcome",
	}, []string{"outcome"})

	// comparisonDuration tracks the exact comparison of pairs that passed the filter
	comparisonDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "astsim_comparison_duration_seconds",
		Help:    "Edit distance and matching duration per pair in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "astsim_batch_duration_seconds",
		Help:    "Batch analysis duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	segmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "astsim_segments_total",
		Help: "Total matched segments kept after overlap resolution",
	})

	// cacheBuilds counts cache misses that built a tree or a vector
	cacheBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "astsim_cache_builds_total",
		Help: "Submission cache builds by kind",
	}, []string{"kind"})

	analysisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "astsim_analysis_errors_total",
		Help: "Analysis errors by code",
	}, []string{"code"})
)

func startBatchSpan(ctx context.Context, msg string, assignmentID int64, submissions int) (context.Context, trace.Span) {
	return tracer.Start(ctx, msg,
		trace.WithAttributes(
			attribute.Int64("astsim.assignment_id", assignmentID),
			attribute.Int("astsim.submissions", submissions),
		),
	)
}

func startPairSpan(ctx context.Context, from, to int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "SimilarityService.comparePair",
		trace.WithAttributes(
			attribute.Int64("astsim.from_submission", from),
			attribute.Int64("astsim.to_submission", to),
		),
	)
}
