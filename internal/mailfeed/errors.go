package mailfeed

import (
	"fmt"
	"time"
)

// ConfigError is the one hard failure of an aggregation call: no usable
// accounts were supplied and no fallback configuration exists.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// TimeoutError reports that a guarded provider operation exceeded its
// deadline. It fails only the account it occurred on.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

// ParseError reports a single-message decode failure. The adapter
// substitutes a placeholder record so the message list keeps its shape.
type ParseError struct {
	MessageID string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing message %s: %v", e.MessageID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ProviderAPIError wraps any other adapter-level failure. The
// orchestrator degrades the account to an empty result and continues.
type ProviderAPIError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderAPIError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderAPIError) Unwrap() error { return e.Err }
