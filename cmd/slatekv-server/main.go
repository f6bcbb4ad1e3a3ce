// Package main provides the entry point for slatekv-server.
//
// slatekv-server is the SlateKV daemon: an in-memory key-value store
// speaking a Redis-compatible line protocol, with write-ahead logging
// and periodic snapshots for durability, plus an HTTP admin surface
// for health, metrics, and snapshot management.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/slatekv/slatekv-go/internal/command"
	"github.com/slatekv/slatekv-go/internal/infra/buildinfo"
	"github.com/slatekv/slatekv-go/internal/infra/confloader"
	"github.com/slatekv/slatekv-go/internal/infra/shutdown"
	"github.com/slatekv/slatekv-go/internal/server/config"
	"github.com/slatekv/slatekv-go/internal/server/httpserver"
	"github.com/slatekv/slatekv-go/internal/server/respserver"
	"github.com/slatekv/slatekv-go/internal/storage"
	"github.com/slatekv/slatekv-go/internal/telemetry/logger"
	"github.com/slatekv/slatekv-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		listenAddr  = flag.String("listen", "", "TCP listen address (overrides config)")
		dataDir     = flag.String("data-dir", "", "Data directory (overrides config)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("slatekv-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile, *listenAddr, *dataDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := initLogger(cfg)
	log.Info("starting slatekv-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)

	metrics := metric.NewRegistry()

	engine, err := initStorage(cfg, metrics, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Recover persisted state before accepting any client traffic.
	ctx := context.Background()
	if err := engine.Recover(ctx); err != nil {
		engine.Close()
		return fmt.Errorf("storage recovery: %w", err)
	}

	interp := command.New(engine, &snapshotTrigger{engine: engine}, log)

	respCfg := &respserver.Config{
		Address:      cfg.Server.Listen,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		RateLimit:    int(cfg.Server.RateLimit),
	}
	respServer := respserver.New(respCfg, interp, metrics, log)

	if err := respServer.Start(ctx); err != nil {
		engine.Close()
		return fmt.Errorf("start server: %w", err)
	}
	log.Info("server listening", "addr", respServer.Addr().String())

	var adminServer *httpserver.Server
	if cfg.Server.Admin != "" {
		router := httpserver.NewRouter(&httpserver.RouterConfig{
			Store:           engine,
			Snapshots:       engine,
			Metrics:         metrics,
			Logger:          log,
			EnableAccessLog: true,
		})
		adminServer = httpserver.New(cfg.Server.Admin, router)

		go func() {
			log.Info("admin server listening", "addr", cfg.Server.Admin)
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("admin server error", "error", err)
			}
		}()
	}

	if *configFile != "" {
		watcher, err := watchLogLevel(*configFile, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	// Shutdown hooks run in registration order: stop taking commands,
	// stop the admin surface, then flush and close storage.
	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down server")
		return respServer.Shutdown(ctx)
	})

	if adminServer != nil {
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down admin server")
			return adminServer.Shutdown(ctx)
		})
	}

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down storage engine")
		return engine.Close()
	})

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment, then
// applies command-line overrides.
func loadConfig(configFile, listenAddr, dataDir string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger initializes the structured logger and installs it as the
// process default.
func initLogger(cfg *config.ServerConfig) *slog.Logger {
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	slog.SetDefault(log)
	return log
}

// watchLogLevel watches the config file and applies log level changes
// without a restart. Other settings still require a restart.
func watchLogLevel(configFile string, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(configFile); err != nil {
		watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(path string) {
		cfg := config.Default()
		loader := confloader.NewLoader(confloader.WithConfigFile(configFile))
		if err := loader.Load(cfg); err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		log.Info("log level updated", "level", cfg.Log.Level)
	})
	watcher.StartAsync()

	return watcher, nil
}

// initStorage initializes the storage engine.
func initStorage(cfg *config.ServerConfig, metrics *metric.Registry, log *slog.Logger) (*storage.Engine, error) {
	storageCfg, err := config.ToStorageConfig(cfg, metrics, log)
	if err != nil {
		return nil, err
	}
	return storage.New(storageCfg)
}

// snapshotTrigger adapts the storage engine to the interpreter's
// snapshot interface, translating the engine's in-progress error.
type snapshotTrigger struct {
	engine *storage.Engine
}

func (s *snapshotTrigger) TriggerSnapshot(ctx context.Context) error {
	_, err := s.engine.TriggerSnapshot(ctx)
	if errors.Is(err, storage.ErrCaptureInProgress) {
		return command.ErrSnapshotInProgress
	}
	return err
}
