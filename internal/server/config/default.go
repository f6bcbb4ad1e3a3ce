// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultListenAddr = "127.0.0.1:31337"
	DefaultAdminAddr  = "127.0.0.1:31380"

	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 5 * time.Minute

	DefaultDataDir          = "/var/lib/slatekv-server/data"
	DefaultWALSyncMode      = "batch"
	DefaultWALSyncInterval  = time.Second
	DefaultSnapshotInterval = 5 * time.Minute
	DefaultSnapshotKeep     = 3
	DefaultSweepInterval    = time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Listen:       DefaultListenAddr,
			Admin:        DefaultAdminAddr,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
		},
		Storage: StorageSection{
			DataDir:          DefaultDataDir,
			WALEnabled:       true,
			WALSyncMode:      DefaultWALSyncMode,
			WALSyncInterval:  DefaultWALSyncInterval,
			SnapshotInterval: DefaultSnapshotInterval,
			SnapshotKeep:     DefaultSnapshotKeep,
			SweepInterval:    DefaultSweepInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
