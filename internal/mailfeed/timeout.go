package mailfeed

import (
	"context"
	"time"
)

// Recommended deadlines for guarded IMAP operations. OAuth adapters rely
// on their HTTP client's own deadline instead.
const (
	ConnectTimeout = 10 * time.Second
	FetchTimeout   = 20 * time.Second
)

// WithTimeout races op against a deadline. If the timer fires first the
// operation is abandoned: its goroutine finishes on its own and the
// eventual result is discarded. The op receives a context that is
// cancelled on timeout so cooperative operations can stop early.
func WithTimeout[T any](ctx context.Context, op string, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so the abandoned goroutine never leaks on timeout.
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(opCtx)
		done <- outcome{value: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.value, out.err
	case <-timer.C:
		var zero T
		return zero, &TimeoutError{Op: op, After: d}
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
