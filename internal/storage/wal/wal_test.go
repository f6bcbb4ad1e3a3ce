package wal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/slatekv/slatekv-go/pkg/sealbox"
)

func syncConfig(dir string) Config {
	cfg := DefaultConfig(dir)
	cfg.SyncMode = SyncModeSync
	return cfg
}

// ============================================================
// Codec Tests
// ============================================================

func TestCodec_RoundTrip(t *testing.T) {
	entries := []*Entry{
		NewSetEntry("k1", []byte("value"), 0),
		NewSetEntry("k2", []byte{0x00, 0xff, 0x01}, time.Now().Add(time.Hour).UnixMilli()),
		NewDeleteEntry("k1"),
		NewFlushEntry(),
	}

	for _, e := range entries {
		frame, err := encodeEntryFrame(e, nil)
		if err != nil {
			t.Fatalf("encode op %d: %v", e.Op, err)
		}

		// Frame includes the 4-byte length prefix; the decoder gets
		// the body.
		got, err := decodeEntryFrame(frame[4:], nil)
		if err != nil {
			t.Fatalf("decode op %d: %v", e.Op, err)
		}
		if got.Op != e.Op || got.Key != e.Key || !bytes.Equal(got.Value, e.Value) || got.ExpiresAt != e.ExpiresAt {
			t.Fatalf("round trip = %+v, want %+v", got, e)
		}
	}
}

func TestCodec_ChecksumMismatch(t *testing.T) {
	frame, err := encodeEntryFrame(NewSetEntry("k", []byte("v"), 0), nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	body := frame[4:]
	body[len(body)-1] ^= 0xff
	if _, err := decodeEntryFrame(body, nil); err != ErrChecksumMismatch {
		t.Fatalf("decode tampered = %v, want ErrChecksumMismatch", err)
	}
}

func TestCodec_RejectsUnknownOp(t *testing.T) {
	e := &Entry{Op: OpType(99), Key: "k"}
	if _, err := encodeEntryFrame(e, nil); err != ErrInvalidEntryType {
		t.Fatalf("encode unknown op = %v, want ErrInvalidEntryType", err)
	}
}

func TestCodec_SealedValues(t *testing.T) {
	key := make([]byte, sealbox.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	sealer, err := sealbox.New(key)
	if err != nil {
		t.Fatalf("sealbox.New: %v", err)
	}

	e := NewSetEntry("secret", []byte("payload"), 0)
	frame, err := encodeEntryFrame(e, sealer)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Contains(frame, []byte("payload")) {
		t.Fatal("sealed frame contains plaintext value")
	}

	got, err := decodeEntryFrame(frame[4:], sealer)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got.Value, []byte("payload")) {
		t.Fatalf("decoded value = %q, want payload", got.Value)
	}

	// Sealed frames cannot be read without the key.
	if _, err := decodeEntryFrame(frame[4:], nil); err == nil {
		t.Fatal("decode without sealer accepted sealed frame")
	}
}

// ============================================================
// Writer / Reader Tests
// ============================================================

func TestWriteThenReadAll(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(syncConfig(dir))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	want := []*Entry{
		NewSetEntry("a", []byte("1"), 0),
		NewSetEntry("b", []byte("2"), 0),
		NewDeleteEntry("a"),
	}
	for _, e := range want {
		if err := w.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(dir, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("ReadAll = %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Op != want[i].Op || got[i].Key != want[i].Key || !bytes.Equal(got[i].Value, want[i].Value) {
			t.Fatalf("entry[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReaderSeekSkipsApplied(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(syncConfig(dir))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.Append(NewSetEntry("before", []byte("1"), 0)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	offset := w.CurrentOffset()
	if err := w.Append(NewSetEntry("after", []byte("2"), 0)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(dir, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if err := r.Seek(offset); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 1 || got[0].Key != "after" {
		t.Fatalf("entries after seek = %+v, want only 'after'", got)
	}
}

func TestReaderSeekMidSegmentThenRotation(t *testing.T) {
	dir := t.TempDir()

	cfg := syncConfig(dir)
	cfg.MaxEntryCount = 2

	w, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	// Seek target lands mid-segment; the remaining entries span the
	// seeked segment and a rotated successor.
	if err := w.Append(NewSetEntry("applied", []byte("0"), 0)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	offset := w.CurrentOffset()
	for _, key := range []string{"tail1", "tail2", "tail3"} {
		if err := w.Append(NewSetEntry(key, []byte("x"), 0)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(dir, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if err := r.Seek(offset); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries after seek = %d, want 3", len(got))
	}
	for i, key := range []string{"tail1", "tail2", "tail3"} {
		if got[i].Key != key {
			t.Fatalf("entry[%d].Key = %q, want %q", i, got[i].Key, key)
		}
	}
}

func TestWriterResumesOpenSegment(t *testing.T) {
	dir := t.TempDir()

	// First writer: flush but never finalize, as after a crash.
	w1, err := NewWriter(syncConfig(dir))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w1.Append(NewSetEntry("first", []byte("1"), 0)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w1.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// Drop the writer without Close; the file has no trailer.
	w1.mu.Lock()
	w1.file.Close()
	w1.file = nil
	w1.closed = true
	close(w1.stopCh)
	w1.mu.Unlock()

	w2, err := NewWriter(syncConfig(dir))
	if err != nil {
		t.Fatalf("NewWriter resume: %v", err)
	}
	if err := w2.Append(NewSetEntry("second", []byte("2"), 0)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Still a single segment.
	files, _ := os.ReadDir(dir)
	if len(files) != 1 {
		t.Fatalf("segment count = %d, want 1", len(files))
	}

	r, err := NewReader(dir, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 || got[0].Key != "first" || got[1].Key != "second" {
		t.Fatalf("entries = %+v, want first,second", got)
	}
}

func TestWriterRotatesSegments(t *testing.T) {
	dir := t.TempDir()

	cfg := syncConfig(dir)
	cfg.MaxEntryCount = 2
	w, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := w.Append(NewSetEntry("k", []byte{byte(i)}, 0)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, _ := os.ReadDir(dir)
	if len(files) < 2 {
		t.Fatalf("segment count = %d, want >= 2", len(files))
	}

	r, err := NewReader(dir, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("entries across segments = %d, want 5", len(got))
	}
}

func TestReaderSkipsTruncatedTail(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(syncConfig(dir))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Append(NewSetEntry("good", []byte("1"), 0)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append(NewSetEntry("torn", []byte("2"), 0)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Simulate a torn write: chop bytes off the unfinalized segment.
	path := w.filePath
	w.mu.Lock()
	w.file.Close()
	w.file = nil
	w.closed = true
	close(w.stopCh)
	w.mu.Unlock()

	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := os.Truncate(path, stat.Size()-3); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	r, err := NewReader(dir, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 1 || got[0].Key != "good" {
		t.Fatalf("entries = %+v, want only 'good'", got)
	}
}

// ============================================================
// Compactor Tests
// ============================================================

func TestCompactorRemovesCoveredSegments(t *testing.T) {
	dir := t.TempDir()

	cfg := syncConfig(dir)
	cfg.MaxEntryCount = 1
	w, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 6; i++ {
		if err := w.Append(NewSetEntry("k", []byte{byte(i)}, 0)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	offset := w.CurrentOffset()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c := NewCompactor(dir, WithRetainCount(2))
	before, _ := c.FileCount()
	if err := c.Compact(offset); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	after, _ := c.FileCount()

	if after >= before {
		t.Fatalf("file count %d -> %d, want a reduction", before, after)
	}
	if after < 2 {
		t.Fatalf("file count after compact = %d, want >= retain count 2", after)
	}

	// Surviving segments still replay cleanly.
	r, err := NewReader(dir, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	if _, err := r.ReadAll(); err != nil {
		t.Fatalf("ReadAll after compact: %v", err)
	}
}

func TestCompactorEmptyDir(t *testing.T) {
	c := NewCompactor(filepath.Join(t.TempDir(), "missing"))
	if err := c.Compact(1 << 32); err != nil {
		t.Fatalf("Compact on missing dir: %v", err)
	}
}
