// Package observability provides structured logging and metrics
// for the QnA gateway.
//
// This package implements:
//   - Structured logging (zap-based), JSON in production and console in development
//   - Prometheus metrics for routing attempts, failures and cooldowns
//
// Every provider attempt made by the router is instrumented.
package observability
