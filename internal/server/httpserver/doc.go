// Package httpserver provides the admin HTTP server.
//
// This package implements the admin surface using stdlib net/http:
//
//   - Health endpoints: /health, /ready
//   - Metrics endpoint: /metrics
//   - Admin endpoints: /admin/v1/status, /admin/v1/snapshots
//
// Features:
//
//   - Middleware chain: RequestID, Recover, AccessLog
//   - Graceful shutdown with configurable timeout
//   - Prometheus metrics integration
package httpserver
