package mailfeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTimeoutReturnsResult(t *testing.T) {
	v, err := WithTimeout(context.Background(), "op", time.Second,
		func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestWithTimeoutPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := WithTimeout(context.Background(), "op", time.Second,
		func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}

func TestWithTimeoutExpires(t *testing.T) {
	started := make(chan struct{})
	_, err := WithTimeout(context.Background(), "slow op", 20*time.Millisecond,
		func(ctx context.Context) (string, error) {
			close(started)
			<-ctx.Done()
			return "too late", ctx.Err()
		})

	<-started
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "slow op", timeoutErr.Op)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.After)
}

func TestWithTimeoutCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithTimeout(ctx, "op", time.Second,
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeoutAbandonedOpDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := WithTimeout(context.Background(), "stuck op", 10*time.Millisecond,
		func(context.Context) (int, error) {
			// Ignores cancellation, like a blocking dial.
			<-release
			return 0, nil
		})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "timeout must not wait for the stuck op")
}
