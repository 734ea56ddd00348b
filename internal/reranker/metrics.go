package reranker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/ragd/internal/reranker"

// Metrics holds reranking metrics.
type Metrics struct {
	meter     metric.Meter
	logger    *zap.Logger
	duration  metric.Float64Histogram
	fallbacks metric.Int64Counter
}

// NewMetrics creates reranker metrics.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"ragd.reranker.duration_seconds",
		metric.WithDescription("Duration of a rerank call by strategy"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.fallbacks, err = m.meter.Int64Counter(
		"ragd.reranker.fallbacks_total",
		metric.WithDescription("Times a strategy fell back to retrieval-order scores, by strategy and scope (item, call)"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		m.logger.Warn("failed to create fallbacks counter", zap.Error(err))
	}
}

// RecordDuration records one rerank call.
func (m *Metrics) RecordDuration(ctx context.Context, strategy Strategy, duration time.Duration) {
	if m.duration == nil {
		return
	}
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("strategy", string(strategy)),
	))
}

// RecordFallback counts a degradation. scope is "item" for a single chunk
// falling back and "call" for the whole rerank.
func (m *Metrics) RecordFallback(ctx context.Context, strategy Strategy, scope string) {
	if m.fallbacks == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", string(strategy)),
		attribute.String("scope", scope),
	))
}
