// Package instrumentation provides OpenTelemetry metrics for the
// sharedbox service, exported through the Prometheus registry.
//
// The Provider wires an OTel meter provider to a Prometheus exporter;
// the Metrics recorder offers typed record methods for HTTP requests,
// per-account mail fetches, and OAuth token refreshes. A zero-value
// Metrics is a safe no-op, so instrumentation can be disabled without
// conditional call sites.
package instrumentation
