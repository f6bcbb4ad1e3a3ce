// Package snapshot persists point-in-time copies of the keyspace.
//
// A snapshot file is magic bytes, a length-prefixed msgpack header,
// a length-prefixed msgpack data block, and a sha256 trailer over
// everything before it. Files are written to a temp path, fsynced,
// and atomically renamed into place, so a crash mid-write never
// leaves a partial snapshot under the final name.
package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/slatekv/slatekv-go/internal/keyspace"
	"github.com/slatekv/slatekv-go/pkg/sealbox"
)

// magicBytes identify snapshot files.
var magicBytes = []byte("SLKVSNAP")

const (
	filePrefix    = "snapshot-"
	fileExtension = ".snap"
	checksumSize  = 32
	headerVersion = 1

	DefaultRetentionCount = 3
)

var (
	ErrInvalidMagic     = errors.New("snapshot: invalid magic bytes")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	ErrNoSnapshots      = errors.New("snapshot: no snapshots available")
	ErrPassphraseNeeded = errors.New("snapshot: encrypted snapshot requires a passphrase")
)

type snapshotHeader struct {
	Version    int    `msgpack:"version"`
	CreatedAt  int64  `msgpack:"created_at"`
	NodeID     string `msgpack:"node_id,omitempty"`
	Sequence   uint64 `msgpack:"sequence"`
	WALOffset  uint64 `msgpack:"wal_offset"`
	EntryCount uint64 `msgpack:"entry_count"`
	Encrypted  bool   `msgpack:"encrypted"`
	Salt       []byte `msgpack:"salt,omitempty"`
	Algorithm  string `msgpack:"algorithm,omitempty"`
}

type snapshotRecord struct {
	Key       string `msgpack:"k"`
	Value     []byte `msgpack:"v"`
	ExpiresAt int64  `msgpack:"exp,omitempty"`
}

// Config configures the snapshot manager.
type Config struct {
	Dir string

	// RetentionCount is how many of the newest snapshots Prune keeps.
	RetentionCount int

	// RetentionDays additionally keeps any snapshot younger than this
	// many days. Zero disables the age rule, leaving count-based
	// retention alone in charge.
	RetentionDays int

	// Passphrase enables encryption at rest. A per-snapshot salt is
	// generated on Create and persisted in the header.
	Passphrase []byte

	// Algorithm selects the AEAD; empty picks the platform default.
	Algorithm sealbox.Algorithm

	NodeID string
}

// DefaultConfig returns the default snapshot configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		RetentionCount: DefaultRetentionCount,
	}
}

// Manager creates, lists, loads, and prunes snapshot files.
type Manager struct {
	cfg Config
}

// NewManager creates a Manager, creating the snapshot directory if
// needed.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	if cfg.RetentionCount == 0 {
		cfg.RetentionCount = DefaultRetentionCount
	}
	if len(cfg.Passphrase) > 0 && len(cfg.Passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}
	return &Manager{cfg: cfg}, nil
}

// Info contains metadata about one snapshot file.
type Info struct {
	ID string

	// Sequence is the keyspace mutation sequence at capture time.
	Sequence uint64

	// WALOffset is the WAL composite offset covered by this
	// snapshot: (segmentID<<32 | offsetWithinSegment).
	WALOffset uint64

	EntryCount int64
	CreatedAt  int64
	Size       int64
	Path       string
	Checksum   string
	NodeID     string
}

// Create writes a snapshot of the given entries. The caller provides
// a consistent cut; Create does no store access of its own.
func (m *Manager) Create(entries []keyspace.Entry, sequence, walOffset uint64) (*Info, error) {
	now := time.Now()
	id := m.generateID(now)

	tempPath := filepath.Join(m.cfg.Dir, id+".tmp")
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	defer os.Remove(tempPath)

	hash := sha256.New()
	writer := io.MultiWriter(file, hash)

	hdr := snapshotHeader{
		Version:    headerVersion,
		CreatedAt:  now.UnixMilli(),
		NodeID:     m.cfg.NodeID,
		Sequence:   sequence,
		WALOffset:  walOffset,
		EntryCount: uint64(len(entries)),
	}

	var sealer sealbox.Sealer
	if len(m.cfg.Passphrase) > 0 {
		salt, err := NewSalt()
		if err != nil {
			file.Close()
			return nil, err
		}
		sealer, err = SealerForSalt(m.cfg.Passphrase, salt, m.cfg.Algorithm)
		if err != nil {
			file.Close()
			return nil, err
		}
		hdr.Encrypted = true
		hdr.Salt = salt
		hdr.Algorithm = string(sealer.Algorithm())
	}

	if _, err := writer.Write(magicBytes); err != nil {
		file.Close()
		return nil, err
	}

	hdrBytes, err := msgpack.Marshal(&hdr)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: marshal header: %w", err)
	}
	if err := writeBlock(writer, hdrBytes); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: write header: %w", err)
	}

	records := make([]snapshotRecord, 0, len(entries))
	for i := range entries {
		records = append(records, snapshotRecord{
			Key:       entries[i].Key,
			Value:     entries[i].Value,
			ExpiresAt: entries[i].ExpiresAt,
		})
	}

	data, err := msgpack.Marshal(records)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: marshal records: %w", err)
	}
	if sealer != nil {
		data, err = sealer.Seal(data, magicBytes)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("snapshot: seal records: %w", err)
		}
	}
	if err := writeBlock(writer, data); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: write data: %w", err)
	}

	// The trailer covers everything written so far and is not part
	// of the hash itself.
	sum := hash.Sum(nil)
	if _, err := file.Write(sum); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: write checksum: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: close: %w", err)
	}

	stat, err := os.Stat(tempPath)
	if err != nil {
		return nil, err
	}

	finalPath := filepath.Join(m.cfg.Dir, id+fileExtension)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return nil, fmt.Errorf("snapshot: rename: %w", err)
	}

	return &Info{
		ID:         id,
		Sequence:   sequence,
		WALOffset:  walOffset,
		EntryCount: int64(len(entries)),
		CreatedAt:  now.UnixMilli(),
		Size:       stat.Size(),
		Path:       finalPath,
		Checksum:   hex.EncodeToString(sum),
		NodeID:     m.cfg.NodeID,
	}, nil
}

// Load restores entries from the newest valid snapshot, falling back
// to older files when the newest is corrupt. ErrNoSnapshots means no
// usable snapshot exists at all.
func (m *Manager) Load() ([]keyspace.Entry, *Info, error) {
	snapshots, err := m.List()
	if err != nil {
		return nil, nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil, ErrNoSnapshots
	}

	var lastErr error
	for i := len(snapshots) - 1; i >= 0; i-- {
		entries, info, err := m.loadFile(snapshots[i].Path)
		if err == nil {
			return entries, info, nil
		}
		if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrInvalidMagic) {
			lastErr = err
			continue
		}
		return nil, nil, err
	}

	if lastErr != nil {
		return nil, nil, fmt.Errorf("%w: all candidates corrupt: %w", ErrNoSnapshots, lastErr)
	}
	return nil, nil, ErrNoSnapshots
}

func (m *Manager) loadFile(path string) ([]keyspace.Entry, *Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if stat.Size() < int64(len(magicBytes))+checksumSize {
		return nil, nil, ErrChecksumMismatch
	}

	dataLen := stat.Size() - checksumSize
	expected := make([]byte, checksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, dataLen, checksumSize), expected); err != nil {
		return nil, nil, err
	}
	h := sha256.New()
	if _, err := io.CopyN(h, io.NewSectionReader(f, 0, dataLen), dataLen); err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(h.Sum(nil), expected) {
		return nil, nil, ErrChecksumMismatch
	}

	br := bufio.NewReader(io.NewSectionReader(f, 0, dataLen))

	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(magic, magicBytes) {
		return nil, nil, ErrInvalidMagic
	}

	hdrBytes, err := readBlock(br)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: read header: %w", err)
	}
	var hdr snapshotHeader
	if err := msgpack.Unmarshal(hdrBytes, &hdr); err != nil {
		return nil, nil, fmt.Errorf("snapshot: unmarshal header: %w", err)
	}

	data, err := readBlock(br)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: read data: %w", err)
	}

	if hdr.Encrypted {
		if len(m.cfg.Passphrase) == 0 {
			return nil, nil, ErrPassphraseNeeded
		}
		sealer, err := SealerForSalt(m.cfg.Passphrase, hdr.Salt, sealbox.Algorithm(hdr.Algorithm))
		if err != nil {
			return nil, nil, err
		}
		data, err = sealer.Open(data, magicBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot: open sealed records: %w", err)
		}
	}

	var records []snapshotRecord
	if err := msgpack.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("snapshot: unmarshal records: %w", err)
	}

	entries := make([]keyspace.Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, keyspace.Entry{
			Key:       r.Key,
			Value:     r.Value,
			ExpiresAt: r.ExpiresAt,
		})
	}

	info := &Info{
		ID:         strings.TrimSuffix(filepath.Base(path), fileExtension),
		Sequence:   hdr.Sequence,
		WALOffset:  hdr.WALOffset,
		EntryCount: int64(hdr.EntryCount),
		CreatedAt:  hdr.CreatedAt,
		Size:       stat.Size(),
		Path:       path,
		Checksum:   hex.EncodeToString(expected),
		NodeID:     hdr.NodeID,
	}
	return entries, info, nil
}

// List lists snapshot files, oldest first. Metadata only; file
// contents are not validated.
func (m *Manager) List() ([]*Info, error) {
	dirEntries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExtension) {
			paths = append(paths, filepath.Join(m.cfg.Dir, name))
		}
	}
	sort.Strings(paths)

	var infos []*Info
	for _, p := range paths {
		stat, err := os.Stat(p)
		if err != nil {
			continue
		}
		infos = append(infos, &Info{
			ID:   strings.TrimSuffix(filepath.Base(p), fileExtension),
			Path: p,
			Size: stat.Size(),
		})
	}
	return infos, nil
}

// Prune applies the retention policy. The newest snapshot is always
// kept.
func (m *Manager) Prune() error {
	infos, err := m.List()
	if err != nil {
		return err
	}
	if len(infos) <= 1 {
		return nil
	}

	keep := make(map[string]struct{}, len(infos))

	if m.cfg.RetentionCount > 0 {
		start := len(infos) - m.cfg.RetentionCount
		if start < 0 {
			start = 0
		}
		for _, info := range infos[start:] {
			keep[info.Path] = struct{}{}
		}
	}

	if m.cfg.RetentionDays > 0 {
		cutoff := time.Now().Add(-time.Duration(m.cfg.RetentionDays) * 24 * time.Hour)
		for _, info := range infos {
			st, err := os.Stat(info.Path)
			if err != nil {
				continue
			}
			if st.ModTime().After(cutoff) {
				keep[info.Path] = struct{}{}
			}
		}
	}

	keep[infos[len(infos)-1].Path] = struct{}{}

	for _, info := range infos {
		if _, ok := keep[info.Path]; ok {
			continue
		}
		_ = os.Remove(info.Path)
	}
	return nil
}

func (m *Manager) generateID(t time.Time) string {
	ts := t.Format("20060102150405")
	seq := 1

	entries, _ := os.ReadDir(m.cfg.Dir)
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, filePrefix+ts+"-") && strings.HasSuffix(name, fileExtension) {
			seq++
		}
	}

	return fmt.Sprintf("%s%s-%04d", filePrefix, ts, seq)
}

func writeBlock(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBlock(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, fmt.Errorf("empty block")
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
