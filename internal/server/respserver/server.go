// Package respserver provides the TCP line protocol server.
//
// Each accepted connection is served by its own goroutine that reads
// commands one at a time and writes exactly one reply per command, in
// order. Pipelined commands are handled sequentially on the same
// goroutine, so replies can never interleave.
package respserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/slatekv/slatekv-go/internal/command"
	"github.com/slatekv/slatekv-go/internal/telemetry/metric"
)

// Config holds the protocol server configuration.
type Config struct {
	// Address is the TCP listen address.
	Address string
	// ReadTimeout bounds reading a single command once its first
	// byte has arrived (default: 30s).
	ReadTimeout time.Duration
	// WriteTimeout bounds writing a response (default: 30s).
	WriteTimeout time.Duration
	// IdleTimeout bounds the wait for the next command (default: 5m).
	IdleTimeout time.Duration
	// RateLimit is the maximum number of commands per second per
	// client IP. Zero disables rate limiting.
	RateLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      "127.0.0.1:31337",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
		RateLimit:    0,
	}
}

// Server accepts client connections and feeds their commands to the
// interpreter.
type Server struct {
	cfg     *Config
	interp  *command.Interpreter
	logger  *slog.Logger
	metrics *metric.Registry
	limiter *ipLimiter

	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a Server. metrics may be nil.
func New(cfg *Config, interp *command.Interpreter, metrics *metric.Registry, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *ipLimiter
	if cfg.RateLimit > 0 {
		limiter = newIPLimiter(cfg.RateLimit)
	}

	return &Server{
		cfg:     cfg,
		interp:  interp,
		logger:  logger,
		metrics: metrics,
		limiter: limiter,
	}
}

// Start binds the listener and begins accepting connections. It
// returns once the listener is bound; the accept loop runs in the
// background until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	s.ln = ln
	s.running.Store(true)

	s.logger.Info("protocol server listening", "address", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
			s.logger.Error("accept loop failed", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown closes the listener and waits for in-flight connections,
// bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var firstErr error
	if s.ln != nil {
		if err := s.ln.Close(); err != nil {
			firstErr = err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		if s.metrics != nil {
			s.metrics.ConnectionsTotal.Inc()
			s.metrics.ConnectionsActive.Inc()
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				if s.metrics != nil {
					s.metrics.ConnectionsActive.Dec()
				}
			}()
			s.serveConn(ctx, c)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, c net.Conn) {
	defer c.Close()

	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)

	readTimeout := s.cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}
	idleTimeout := s.cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 5 * time.Minute
	}

	writeAndFlush := func(r command.Reply) bool {
		if err := c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return false
		}
		if err := WriteReply(bw, r); err != nil {
			return false
		}
		return bw.Flush() == nil
	}

	for {
		// First byte waits out the idle timeout; connections may sit
		// quiet between commands.
		if err := c.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}
		if _, err := br.Peek(1); err != nil {
			s.logReadError(c, err)
			return
		}

		// After the first byte, tighten to the per-command read
		// timeout so a half-sent command cannot hold the connection.
		if err := c.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		args, err := ReadCommand(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Debug("connection timed out", "remote", c.RemoteAddr())
				return
			}
			if errors.Is(err, ErrLimitExceeded) {
				s.logger.Warn("protocol limit exceeded", "remote", c.RemoteAddr(), "error", err)
				writeAndFlush(command.ErrReply("ERR protocol limit exceeded"))
				return
			}
			writeAndFlush(command.ErrReply("ERR protocol error: " + err.Error()))
			return
		}

		if len(args) == 0 {
			// Blank inline line; just read the next command.
			continue
		}

		if s.limiter != nil && !s.limiter.allow(c.RemoteAddr()) {
			if s.metrics != nil {
				s.metrics.RateLimitedTotal.Inc()
			}
			if !writeAndFlush(command.ErrReply("ERR rate limit exceeded")) {
				return
			}
			continue
		}

		start := time.Now()
		reply := s.interp.Dispatch(ctx, args)
		if s.metrics != nil {
			s.metrics.ObserveCommand(command.Name(args), reply.IsError(), time.Since(start).Seconds())
		}

		if !writeAndFlush(reply) {
			return
		}
		if reply.Close {
			return
		}
	}
}

func (s *Server) logReadError(c net.Conn, err error) {
	if errors.Is(err, io.EOF) {
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		s.logger.Debug("connection timed out", "remote", c.RemoteAddr())
		return
	}
	s.logger.Debug("connection read error", "remote", c.RemoteAddr(), "error", err)
}
