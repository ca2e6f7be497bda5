package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	require.NotNil(t, p.Metrics())

	// The no-op recorder must accept calls without panicking.
	p.Metrics().RecordFetch(context.Background(), "gmail", ResultSuccess, 5)
	p.Metrics().RecordTokenRefresh(context.Background(), "gmail", ResultSuccess)
	p.Metrics().RecordHTTPRequest(context.Background(), "POST", "/api/emails", 200, 10*time.Millisecond)
	p.Metrics().RecordFetchDuration(context.Background(), "imap", time.Second)

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderEnabled(t *testing.T) {
	ctx := context.Background()
	p, err := NewProvider(ctx, Config{
		ServiceName:    "sharedbox-test",
		ServiceVersion: "0.0.1",
		Enabled:        true,
	})
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(ctx) }()

	assert.True(t, p.Enabled())
	require.NotNil(t, p.Metrics())

	// Recording should not error or panic with real instruments.
	p.Metrics().RecordFetch(ctx, "microsoft-oauth", ResultError, 0)
	p.Metrics().RecordFetchDuration(ctx, "microsoft-oauth", 250*time.Millisecond)
	p.Metrics().RecordTokenRefresh(ctx, "gmail-oauth", ResultError)
	p.Metrics().RecordHTTPRequest(ctx, "GET", "/health", 200, time.Millisecond)
}

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	// All recorders must be nil-safe.
	m.RecordFetch(context.Background(), "imap", ResultSuccess, 1)
	m.RecordFetchDuration(context.Background(), "imap", time.Second)
	m.RecordTokenRefresh(context.Background(), "imap", ResultSuccess)
	m.RecordHTTPRequest(context.Background(), "GET", "/", 200, time.Second)
}
