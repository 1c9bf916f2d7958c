package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// RepositoryMetricsMeterName is the name used for the repository metrics meter
	RepositoryMetricsMeterName = "github.com/simpleindex/simple-repository-server/repository"
)

// Repository operation names used as metric attributes
const (
	OperationProjectList = "project_list"
	OperationProjectPage = "project_page"
	OperationResource    = "resource"
)

// RepositoryMetrics holds the OpenTelemetry instruments for repository
// operation metrics
type RepositoryMetrics struct {
	operationDuration metric.Float64Histogram
	operationsTotal   metric.Int64Counter
}

// NewRepositoryMetrics creates a new RepositoryMetrics instance with the given
// meter provider. If provider is nil, it returns nil (no-op metrics).
func NewRepositoryMetrics(provider metric.MeterProvider) (*RepositoryMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RepositoryMetricsMeterName)

	operationDuration, err := meter.Float64Histogram(
		"simple_repo_operation_duration_seconds",
		metric.WithDescription("Duration of repository operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	operationsTotal, err := meter.Int64Counter(
		"simple_repo_operations_total",
		metric.WithDescription("Total number of repository operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	return &RepositoryMetrics{
		operationDuration: operationDuration,
		operationsTotal:   operationsTotal,
	}, nil
}

// RecordOperation records one repository operation with its outcome, which
// is "ok", "not_found", "upstream_error" or "invalid_data".
func (m *RepositoryMetrics) RecordOperation(ctx context.Context, operation, outcome string, duration time.Duration) {
	if m == nil || m.operationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	}

	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.operationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
