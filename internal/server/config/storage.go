// Package config defines the server configuration structure.
package config

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slatekv/slatekv-go/internal/storage"
	"github.com/slatekv/slatekv-go/internal/storage/wal"
	"github.com/slatekv/slatekv-go/internal/telemetry/metric"
)

// ToStorageConfig converts ServerConfig to storage.Config.
//
// This handles default value population, NodeID generation, and field
// mapping.
func ToStorageConfig(cfg *ServerConfig, metrics *metric.Registry, logger *slog.Logger) (storage.Config, error) {
	if cfg == nil {
		return storage.Config{}, fmt.Errorf("server config is nil")
	}

	nodeID := cfg.NodeID
	if nodeID == "" {
		generated, err := generateNodeID()
		if err != nil {
			return storage.Config{}, fmt.Errorf("generate node ID: %w", err)
		}
		nodeID = generated
		logger.Info("generated node ID", "node_id", nodeID)
	}

	sc := storage.DefaultConfig(cfg.Storage.DataDir)
	sc.WALEnabled = cfg.Storage.WALEnabled
	sc.SnapshotInterval = cfg.Storage.SnapshotInterval
	sc.SweepInterval = cfg.Storage.SweepInterval
	sc.AllowEmptyOnRestoreFailure = cfg.Storage.AllowEmptyOnRestoreFailure
	sc.NodeID = nodeID
	sc.Logger = logger
	sc.Metrics = metrics

	if cfg.Storage.WALSyncMode == "sync" {
		sc.WAL.SyncMode = wal.SyncModeSync
	}
	if cfg.Storage.WALSyncInterval > 0 {
		sc.WAL.SyncInterval = cfg.Storage.WALSyncInterval
	}
	if cfg.Storage.SnapshotKeep > 0 {
		sc.Snapshot.RetentionCount = cfg.Storage.SnapshotKeep
	}
	if cfg.Security.Passphrase != "" {
		sc.Passphrase = []byte(cfg.Security.Passphrase)
	}

	return sc, nil
}

// generateNodeID returns a fresh ULID, sortable by generation time.
func generateNodeID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
