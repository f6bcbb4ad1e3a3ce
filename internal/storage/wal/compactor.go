package wal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultRetainCount is the default number of segments kept after
// compaction.
const DefaultRetainCount = 3

// Compactor removes WAL segments made redundant by a snapshot.
type Compactor struct {
	walDir      string
	retainCount int
}

// CompactorOption configures the Compactor.
type CompactorOption func(*Compactor)

// WithRetainCount sets the number of segments to retain.
func WithRetainCount(count int) CompactorOption {
	return func(c *Compactor) {
		if count > 0 {
			c.retainCount = count
		}
	}
}

// NewCompactor creates a Compactor for a WAL directory.
func NewCompactor(walDir string, opts ...CompactorOption) *Compactor {
	c := &Compactor{
		walDir:      walDir,
		retainCount: DefaultRetainCount,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compact removes segments fully covered by the given snapshot
// offset, always retaining at least retainCount segments.
//
// snapshotOffset uses the composite format (segmentID<<32 | offset).
// Only segments with an ID strictly below the snapshot's segment are
// candidates.
func (c *Compactor) Compact(snapshotOffset uint64) error {
	files, err := c.listSegmentFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	snapshotSegmentID := snapshotOffset >> 32

	var toDelete []string
	for _, file := range files {
		segmentID, ok := parseSegmentFilename(filepath.Base(file))
		if !ok {
			continue
		}
		if segmentID < snapshotSegmentID {
			toDelete = append(toDelete, file)
		}
	}

	if len(files)-len(toDelete) < c.retainCount {
		keepCount := c.retainCount - (len(files) - len(toDelete))
		if keepCount > len(toDelete) {
			keepCount = len(toDelete)
		}
		toDelete = toDelete[:len(toDelete)-keepCount]
	}

	var errs []error
	for _, file := range toDelete {
		if err := os.Remove(file); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", file, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("wal: failed to delete %d files: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// TotalSize returns the total size of all segments in bytes.
func (c *Compactor) TotalSize() (int64, error) {
	files, err := c.listSegmentFiles()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// FileCount returns the number of segment files.
func (c *Compactor) FileCount() (int, error) {
	files, err := c.listSegmentFiles()
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

func (c *Compactor) listSegmentFiles() ([]string, error) {
	entries, err := os.ReadDir(c.walDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := parseSegmentFilename(entry.Name()); ok {
			files = append(files, filepath.Join(c.walDir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
