// Package server provides the HTTP surface over the aggregation engine:
// the API routes, health endpoints for Kubernetes probes, and a
// dedicated Prometheus metrics listener.
//
// The API is deliberately thin glue. Fetch results are 200-shaped with
// whatever succeeded; only configuration problems map to client errors.
package server
