// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for slatekv-server.
type ServerConfig struct {
	// NodeID is the unique identifier for this node. If empty, a
	// ULID is generated at startup.
	NodeID string `koanf:"node_id"`

	Server   ServerSection   `koanf:"server"`
	Storage  StorageSection  `koanf:"storage"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	// Listen is the address of the key-value protocol listener.
	Listen string `koanf:"listen"`

	// Admin is the address of the admin HTTP listener (health,
	// metrics, snapshot trigger). Empty disables it.
	Admin string `koanf:"admin"`

	// RateLimit caps commands per second per client IP. Zero
	// disables rate limiting.
	RateLimit float64 `koanf:"rate_limit"`

	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

// StorageSection configures storage behavior.
type StorageSection struct {
	DataDir string `koanf:"data_dir"`

	// WALEnabled turns on write-ahead logging. With it off, only
	// snapshots provide durability.
	WALEnabled bool `koanf:"wal_enabled"`

	// WALSyncMode is "sync" or "batch".
	WALSyncMode     string        `koanf:"wal_sync_mode"`
	WALSyncInterval time.Duration `koanf:"wal_sync_interval"`

	// SnapshotInterval is the period between automatic snapshots.
	// Zero disables periodic snapshots.
	SnapshotInterval time.Duration `koanf:"snapshot_interval"`

	// SnapshotKeep is the number of snapshot files to retain.
	SnapshotKeep int `koanf:"snapshot_keep"`

	// SweepInterval is the period between expired-entry sweeps.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// AllowEmptyOnRestoreFailure starts the server with an empty
	// keyspace when every restore candidate is corrupt, instead of
	// refusing to start.
	AllowEmptyOnRestoreFailure bool `koanf:"allow_empty_on_restore_failure"`
}

// SecuritySection configures security settings.
type SecuritySection struct {
	// Passphrase enables encryption at rest for snapshots and the
	// WAL.
	Passphrase string `koanf:"passphrase"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
