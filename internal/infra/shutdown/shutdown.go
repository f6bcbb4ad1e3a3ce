// Package shutdown coordinates orderly teardown: the server registers
// hooks for each subsystem (listener, admin endpoint, storage engine)
// and the handler runs them, newest first, once SIGINT or SIGTERM
// arrives. Running dependents before their dependencies lets in-flight
// commands drain before the engine seals the WAL.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Handler collects teardown hooks and runs them on the first
// termination signal.
type Handler struct {
	timeout time.Duration
	hooks   []func(context.Context) error
	mu      sync.Mutex
	done    chan struct{}
}

// NewHandler returns a Handler whose hooks share a single deadline of
// timeout once teardown begins.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		hooks:   make([]func(context.Context) error, 0),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a teardown hook. Hooks run in reverse
// registration order, so register in dependency order.
func (h *Handler) OnShutdown(hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// Wait blocks until SIGINT or SIGTERM, then runs every registered hook
// under the shared deadline. All hooks run even when earlier ones
// fail; the last error wins.
func (h *Handler) Wait() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]func(context.Context) error, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var lastErr error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			lastErr = err
		}
	}

	close(h.done)
	return lastErr
}

// Done is closed after every hook has run.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
