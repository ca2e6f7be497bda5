// Package logging provides structured logging utilities for the sharedbox service.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (email anonymization, token masking)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithProvider(slog.Default(), "gmail")
//	logger.Info("fetched page",
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("token refreshed",
//	    logging.UserHash(account.Email))
//
// # Security Considerations
//
// User emails are hashed to prevent PII leakage while allowing correlation,
// and access tokens are never logged directly.
package logging
