package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys, kept as constants for consistency.
const (
	attrMethod   = "method"
	attrPath     = "path"
	attrStatus   = "status"
	attrProvider = "provider"
	attrResult   = "result"
)

// Result values recorded on provider metrics.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics provides methods for recording observability metrics. The zero
// value is a no-op recorder, so callers never need nil checks around
// individual instruments.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Provider fetch metrics
	fetchesTotal    metric.Int64Counter
	fetchedMessages metric.Int64Counter
	fetchDuration   metric.Float64Histogram

	// OAuth metrics
	tokenRefreshTotal metric.Int64Counter
}

// NewMetrics creates a Metrics instance with all instruments registered
// on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.fetchesTotal, err = meter.Int64Counter(
		"mail_fetches_total",
		metric.WithDescription("Total number of per-account mail fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_fetches_total counter: %w", err)
	}

	m.fetchedMessages, err = meter.Int64Counter(
		"mail_fetched_messages_total",
		metric.WithDescription("Total number of messages returned by provider fetches"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_fetched_messages_total counter: %w", err)
	}

	m.fetchDuration, err = meter.Float64Histogram(
		"mail_fetch_duration_seconds",
		metric.WithDescription("Per-account fetch duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_fetch_duration_seconds histogram: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refreshes"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status
// code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.Int(attrStatus, statusCode),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordFetch records a per-account fetch with its provider, result, and
// number of messages returned.
func (m *Metrics) RecordFetch(ctx context.Context, provider, result string, messages int) {
	if m == nil || m.fetchesTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrProvider, provider),
		attribute.String(attrResult, result),
	}

	m.fetchesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if messages > 0 {
		m.fetchedMessages.Add(ctx, int64(messages),
			metric.WithAttributes(attribute.String(attrProvider, provider)))
	}
}

// RecordFetchDuration records how long a per-account fetch took.
func (m *Metrics) RecordFetchDuration(ctx context.Context, provider string, duration time.Duration) {
	if m == nil || m.fetchDuration == nil {
		return // Instrumentation not initialized
	}

	m.fetchDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String(attrProvider, provider)))
}

// RecordTokenRefresh records an OAuth token refresh attempt.
// Result should be ResultSuccess or ResultError.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, provider, result string) {
	if m == nil || m.tokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrResult, result),
	))
}
