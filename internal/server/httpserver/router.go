// Package httpserver provides the admin HTTP server.
package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/slatekv/slatekv-go/internal/server/httpserver/handler"
	"github.com/slatekv/slatekv-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Store is the keyspace surface reported by status endpoints.
	Store handler.Store

	// Snapshots handles on-demand snapshot operations.
	Snapshots handler.Snapshots

	// Metrics serves the /metrics endpoint. Nil disables it.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// EnableAccessLog logs one line per completed request.
	EnableAccessLog bool
}

// NewRouter creates and configures the HTTP router with all routes
// and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	h := handler.New(cfg.Store, cfg.Snapshots, cfg.Logger)

	middlewares := []Middleware{
		RequestID(),
		Recover(cfg.Logger),
	}
	if cfg.EnableAccessLog {
		middlewares = append(middlewares, AccessLog(cfg.Logger))
	}

	mux := http.NewServeMux()

	// Health endpoints skip the access log to keep probe noise out.
	probeHandler := Chain(h, RequestID(), Recover(cfg.Logger))
	mux.Handle("GET /health", probeHandler)
	mux.Handle("GET /ready", probeHandler)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), Recover(cfg.Logger)))
	}

	adminHandler := Chain(h, middlewares...)
	mux.Handle("GET /admin/v1/status", adminHandler)
	mux.Handle("POST /admin/v1/snapshots", adminHandler)
	mux.Handle("GET /admin/v1/snapshots", adminHandler)

	return mux
}
