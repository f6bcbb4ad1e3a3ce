// Package storage provides the durable storage engine.
//
// The engine composes the in-memory keyspace with a write-ahead log
// and a snapshot manager. Mutations hit the WAL before memory;
// recovery loads the newest valid snapshot and replays the WAL tail
// after it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/slatekv/slatekv-go/internal/keyspace"
	"github.com/slatekv/slatekv-go/internal/storage/snapshot"
	"github.com/slatekv/slatekv-go/internal/storage/wal"
	"github.com/slatekv/slatekv-go/internal/telemetry/metric"
	"github.com/slatekv/slatekv-go/pkg/sealbox"
)

// Default configuration values.
const (
	DefaultSnapshotInterval = 5 * time.Minute
	DefaultSweepInterval    = time.Minute
	DefaultWALDir           = "wal"
	DefaultSnapshotDir      = "snapshots"

	walSaltFile = "wal.salt"
)

// ErrCaptureInProgress is returned by TriggerSnapshot when a capture
// is already running; the request collapses into the running one.
var ErrCaptureInProgress = errors.New("storage: snapshot capture already in progress")

// Config configures the storage engine.
type Config struct {
	// DataDir is the base directory for all storage files.
	DataDir string

	// WALEnabled turns on write-ahead logging. With it off, only
	// snapshots provide durability.
	WALEnabled bool

	// WAL configures the write-ahead log.
	WAL wal.Config

	// Snapshot configures the snapshot manager.
	Snapshot snapshot.Config

	// SnapshotInterval is the interval between automatic snapshots.
	// Zero disables the periodic capture loop.
	SnapshotInterval time.Duration

	// SweepInterval is the interval between expired-entry sweeps.
	// Zero disables the sweep loop.
	SweepInterval time.Duration

	// AllowEmptyOnRestoreFailure starts with an empty keyspace when
	// every restore candidate is corrupt, instead of failing startup.
	AllowEmptyOnRestoreFailure bool

	// Passphrase enables encryption at rest for snapshots and the
	// WAL.
	Passphrase []byte

	// NodeID identifies this node in snapshot headers.
	NodeID string

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:          dataDir,
		WALEnabled:       true,
		WAL:              wal.DefaultConfig(filepath.Join(dataDir, DefaultWALDir)),
		Snapshot:         snapshot.DefaultConfig(filepath.Join(dataDir, DefaultSnapshotDir)),
		SnapshotInterval: DefaultSnapshotInterval,
		SweepInterval:    DefaultSweepInterval,
	}
}

// Engine combines the keyspace, WAL, and snapshots.
type Engine struct {
	cfg Config

	store    *keyspace.Store
	wal      *wal.Writer
	snapshot *snapshot.Manager

	snapshotting atomic.Bool
	loopStarted  atomic.Bool

	logger  *slog.Logger
	metrics *metric.Registry

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a storage engine. It initializes all components but
// performs no recovery; call Recover before serving traffic.
func New(cfg Config) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("storage: data_dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WAL.Dir == "" {
		cfg.WAL.Dir = filepath.Join(cfg.DataDir, DefaultWALDir)
	}
	if cfg.Snapshot.Dir == "" {
		cfg.Snapshot.Dir = filepath.Join(cfg.DataDir, DefaultSnapshotDir)
	}

	cfg.Snapshot.Passphrase = cfg.Passphrase
	cfg.Snapshot.NodeID = cfg.NodeID

	e := &Engine{
		cfg:     cfg,
		store:   keyspace.New(),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	if cfg.WALEnabled {
		if len(cfg.Passphrase) > 0 {
			sealer, err := walSealer(cfg.DataDir, cfg.Passphrase)
			if err != nil {
				return nil, err
			}
			cfg.WAL.Sealer = sealer
		}
		if cfg.Metrics != nil {
			counter := cfg.Metrics.WALBytesWritten
			cfg.WAL.OnWrite = func(n int) { counter.Add(float64(n)) }
		}
		w, err := wal.NewWriter(cfg.WAL)
		if err != nil {
			return nil, fmt.Errorf("storage: create wal writer: %w", err)
		}
		e.wal = w
		e.cfg.WAL = cfg.WAL
	}

	snapMgr, err := snapshot.NewManager(cfg.Snapshot)
	if err != nil {
		if e.wal != nil {
			e.wal.Close()
		}
		return nil, fmt.Errorf("storage: create snapshot manager: %w", err)
	}
	e.snapshot = snapMgr

	return e, nil
}

// walSealer derives the WAL encryption key from the passphrase and a
// salt persisted alongside the data. Unlike snapshots, the WAL is
// appended across restarts, so its salt must stay stable.
func walSealer(dataDir string, passphrase []byte) (sealbox.Sealer, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	saltPath := filepath.Join(dataDir, walSaltFile)
	salt, err := os.ReadFile(saltPath)
	if errors.Is(err, os.ErrNotExist) {
		salt, err = snapshot.NewSalt()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(saltPath, salt, 0600); err != nil {
			return nil, fmt.Errorf("storage: write wal salt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("storage: read wal salt: %w", err)
	}

	master, err := snapshot.DeriveKeyFromPassphrase(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer sealbox.ZeroKey(master)

	key, err := snapshot.DeriveSubkey(master, "wal")
	if err != nil {
		return nil, err
	}
	defer sealbox.ZeroKey(key)

	return sealbox.New(key)
}

// Recover restores state from the newest valid snapshot and replays
// the WAL tail after it. A corrupt store with no usable snapshot is
// fatal unless AllowEmptyOnRestoreFailure is set.
func (e *Engine) Recover(ctx context.Context) error {
	start := time.Now()
	e.logger.Info("storage recovery started")

	walOffset := uint64(0)

	entries, info, err := e.snapshot.Load()
	switch {
	case err == nil:
		e.store.Load(entries, info.Sequence)
		walOffset = info.WALOffset
		e.logger.Info("snapshot loaded",
			"path", info.Path,
			"entry_count", info.EntryCount,
			"sequence", info.Sequence,
			"wal_offset", info.WALOffset)
	case errors.Is(err, snapshot.ErrNoSnapshots):
		if hasCorruptCandidates(err) && !e.cfg.AllowEmptyOnRestoreFailure {
			return fmt.Errorf("storage: restore failed: %w", err)
		}
		if hasCorruptCandidates(err) {
			e.logger.Error("all snapshots corrupt, starting empty", "error", err)
		} else {
			e.logger.Info("no snapshot found, starting with empty keyspace")
		}
	default:
		if !e.cfg.AllowEmptyOnRestoreFailure {
			return fmt.Errorf("storage: load snapshot: %w", err)
		}
		e.logger.Error("snapshot restore failed, starting empty", "error", err)
	}

	if e.cfg.WALEnabled {
		applied, err := e.replayWAL(ctx, walOffset)
		if err != nil {
			return fmt.Errorf("storage: replay wal: %w", err)
		}
		if applied > 0 {
			e.logger.Info("wal replayed", "entries_applied", applied, "from_offset", walOffset)
		}
	}

	if e.metrics != nil {
		e.metrics.KeysLive.Set(float64(e.store.Len()))
	}
	e.logger.Info("recovery completed",
		"elapsed", time.Since(start),
		"keys", e.store.Len(),
		"sequence", e.store.Sequence())

	// Periodic capture and sweeping start only once recovered state is
	// in place, so a pre-recovery tick can never snapshot an empty
	// keyspace over real data.
	if e.loopStarted.CompareAndSwap(false, true) {
		go e.backgroundLoop()
	}
	return nil
}

// hasCorruptCandidates distinguishes "no snapshot files" from "files
// exist but none loaded".
func hasCorruptCandidates(err error) bool {
	return errors.Is(err, snapshot.ErrChecksumMismatch) || errors.Is(err, snapshot.ErrInvalidMagic)
}

func (e *Engine) replayWAL(ctx context.Context, fromOffset uint64) (int, error) {
	reader, err := wal.NewReader(e.cfg.WAL.Dir, e.cfg.WAL.Sealer)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	if err := reader.Seek(fromOffset); err != nil {
		return 0, err
	}

	now := time.Now().UnixMilli()
	applied := 0
	skipped := 0

	for {
		select {
		case <-ctx.Done():
			return applied, ctx.Err()
		default:
		}

		entry, err := reader.Read()
		if err != nil {
			break // EOF or unrecoverable tail
		}

		if entry.Op == wal.OpTypeSet && entry.ExpiresAt > 0 && entry.ExpiresAt <= now {
			skipped++
			continue
		}
		e.applyEntry(entry)
		applied++
	}

	if skipped > 0 {
		e.logger.Info("skipped expired entries during replay", "count", skipped)
	}
	return applied, nil
}

func (e *Engine) applyEntry(entry *wal.Entry) {
	switch entry.Op {
	case wal.OpTypeSet:
		ttl := time.Duration(0)
		if entry.ExpiresAt > 0 {
			ttl = time.Until(time.UnixMilli(entry.ExpiresAt))
			if ttl <= 0 {
				return
			}
		}
		e.store.Set(entry.Key, entry.Value, ttl)
	case wal.OpTypeDelete:
		e.store.Delete(entry.Key)
	case wal.OpTypeFlush:
		e.store.Flush()
	}
}

// Set stores a value, WAL first.
func (e *Engine) Set(key string, value []byte, ttl time.Duration) bool {
	e.appendWAL(wal.NewSetEntry(key, value, expiresAtFor(ttl)))
	existed := e.store.Set(key, value, ttl)
	e.observeKeys()
	return existed
}

// Get returns the value for key.
func (e *Engine) Get(key string) ([]byte, bool) {
	return e.store.Get(key)
}

// Exists reports whether key is present and live.
func (e *Engine) Exists(key string) bool {
	return e.store.Exists(key)
}

// Delete removes a key, WAL first.
func (e *Engine) Delete(key string) bool {
	e.appendWAL(wal.NewDeleteEntry(key))
	removed := e.store.Delete(key)
	e.observeKeys()
	return removed
}

// Expire sets the expiration of a live key. Durably recorded as a SET
// with the new expiration.
func (e *Engine) Expire(key string, ttl time.Duration) bool {
	value, ok := e.store.Get(key)
	if !ok {
		return false
	}
	e.appendWAL(wal.NewSetEntry(key, value, expiresAtFor(ttl)))
	return e.store.Expire(key, ttl)
}

// Persist clears the expiration of a live key.
func (e *Engine) Persist(key string) bool {
	value, ok := e.store.Get(key)
	if !ok {
		return false
	}
	e.appendWAL(wal.NewSetEntry(key, value, 0))
	return e.store.Persist(key)
}

// TTL returns the remaining lifetime of key in seconds.
func (e *Engine) TTL(key string) int64 {
	return e.store.TTL(key)
}

// Keys returns all live keys.
func (e *Engine) Keys() []string {
	return e.store.Keys()
}

// Len returns the number of live keys.
func (e *Engine) Len() int {
	return e.store.Len()
}

// Flush removes all keys, WAL first.
func (e *Engine) Flush() int {
	e.appendWAL(wal.NewFlushEntry())
	n := e.store.Flush()
	e.observeKeys()
	return n
}

// Sequence returns the keyspace mutation sequence.
func (e *Engine) Sequence() uint64 {
	return e.store.Sequence()
}

func (e *Engine) appendWAL(entry *wal.Entry) {
	if e.wal == nil {
		return
	}
	if err := e.wal.Append(entry); err != nil {
		e.logger.Error("wal append failed", "op", entry.Op, "error", err)
	}
}

func (e *Engine) observeKeys() {
	if e.metrics != nil {
		e.metrics.KeysLive.Set(float64(e.store.Len()))
	}
}

func expiresAtFor(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return time.Now().Add(ttl).UnixMilli()
}

// TriggerSnapshot captures a snapshot of the current keyspace. Only
// one capture runs at a time; a concurrent call gets
// ErrCaptureInProgress and can treat the running capture as its own.
func (e *Engine) TriggerSnapshot(ctx context.Context) (*snapshot.Info, error) {
	if !e.snapshotting.CompareAndSwap(false, true) {
		return nil, ErrCaptureInProgress
	}
	defer e.snapshotting.Store(false)

	start := time.Now()

	// The cut is taken under the store lock; everything after
	// (serialization, fsync, rename) runs on the copy.
	entries, sequence := e.store.SnapshotView()

	walOffset := uint64(0)
	if e.wal != nil {
		if err := e.wal.Flush(); err != nil {
			e.logger.Warn("wal flush before snapshot failed", "error", err)
		}
		walOffset = e.wal.CurrentOffset()
	}

	info, err := e.snapshot.Create(entries, sequence, walOffset)
	if e.metrics != nil {
		e.metrics.ObserveSnapshot(err, time.Since(start).Seconds(), sequence)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: create snapshot: %w", err)
	}

	e.logger.Info("snapshot created",
		"id", info.ID,
		"entry_count", info.EntryCount,
		"sequence", info.Sequence,
		"wal_offset", info.WALOffset,
		"size_bytes", info.Size,
		"elapsed", time.Since(start))

	if err := e.snapshot.Prune(); err != nil {
		e.logger.Warn("snapshot prune failed", "error", err)
	}

	if e.wal != nil {
		compactor := wal.NewCompactor(e.cfg.WAL.Dir)
		if err := compactor.Compact(info.WALOffset); err != nil {
			e.logger.Warn("wal compaction failed", "error", err)
		}
	}

	return info, nil
}

// ListSnapshots lists snapshot files, oldest first.
func (e *Engine) ListSnapshots() ([]*snapshot.Info, error) {
	return e.snapshot.List()
}

func (e *Engine) backgroundLoop() {
	defer close(e.doneCh)

	var snapC, sweepC <-chan time.Time
	if e.cfg.SnapshotInterval > 0 {
		t := time.NewTicker(e.cfg.SnapshotInterval)
		defer t.Stop()
		snapC = t.C
	}
	if e.cfg.SweepInterval > 0 {
		t := time.NewTicker(e.cfg.SweepInterval)
		defer t.Stop()
		sweepC = t.C
	}

	for {
		select {
		case <-snapC:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := e.TriggerSnapshot(ctx); err != nil && !errors.Is(err, ErrCaptureInProgress) {
				e.logger.Error("periodic snapshot failed", "error", err)
			}
			cancel()
		case <-sweepC:
			if n := e.store.SweepExpired(); n > 0 {
				e.logger.Debug("swept expired entries", "count", n)
			}
			e.observeKeys()
		case <-e.stopCh:
			return
		}
	}
}

// Close stops background work and finalizes the WAL.
func (e *Engine) Close() error {
	e.logger.Info("shutting down storage engine")

	close(e.stopCh)
	if e.loopStarted.Load() {
		<-e.doneCh
	}

	if e.wal != nil {
		if err := e.wal.Close(); err != nil {
			return fmt.Errorf("storage: close wal: %w", err)
		}
	}
	return nil
}
