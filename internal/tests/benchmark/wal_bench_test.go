package benchmark

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/slatekv/slatekv-go/internal/storage/wal"
)

func benchWALConfig(dir string) wal.Config {
	cfg := wal.DefaultConfig(dir)
	cfg.SyncMode = wal.SyncModeBatch
	return cfg
}

// BenchmarkWALAppend benchmarks batched appends.
func BenchmarkWALAppend(b *testing.B) {
	w, err := wal.NewWriter(benchWALConfig(b.TempDir()))
	if err != nil {
		b.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		entry := wal.NewSetEntry(benchKey(i), benchValue, 0)
		if err := w.Append(entry); err != nil {
			b.Fatalf("Append: %v", err)
		}
	}
}

// BenchmarkWALAppendWithSync benchmarks appends with a sync per write.
func BenchmarkWALAppendWithSync(b *testing.B) {
	cfg := benchWALConfig(b.TempDir())
	cfg.SyncMode = wal.SyncModeSync

	w, err := wal.NewWriter(cfg)
	if err != nil {
		b.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		entry := wal.NewSetEntry(benchKey(i), benchValue, 0)
		if err := w.Append(entry); err != nil {
			b.Fatalf("Append: %v", err)
		}
	}
}

// BenchmarkWALReplay benchmarks reading a full log back at various
// entry counts.
func BenchmarkWALReplay(b *testing.B) {
	counts := []int{1000, 5000, 10000}

	for _, count := range counts {
		b.Run(fmt.Sprintf("entries_%d", count), func(b *testing.B) {
			dir := b.TempDir()

			w, err := wal.NewWriter(benchWALConfig(dir))
			if err != nil {
				b.Fatalf("NewWriter: %v", err)
			}
			for i := 0; i < count; i++ {
				if err := w.Append(wal.NewSetEntry(benchKey(i), benchValue, 0)); err != nil {
					b.Fatalf("Append: %v", err)
				}
			}
			w.Close()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				b.StopTimer()
				reader, err := wal.NewReader(dir, nil)
				if err != nil {
					b.Fatalf("NewReader: %v", err)
				}

				b.StartTimer()
				entries, err := reader.ReadAll()
				b.StopTimer()

				reader.Close()

				if err != nil {
					b.Fatalf("ReadAll: %v", err)
				}
				if len(entries) != count {
					b.Fatalf("entries = %d, want %d", len(entries), count)
				}
			}
		})
	}
}

// BenchmarkWALMixedOperations benchmarks a mix of sets with TTL,
// plain sets, and deletes.
func BenchmarkWALMixedOperations(b *testing.B) {
	w, err := wal.NewWriter(benchWALConfig(b.TempDir()))
	if err != nil {
		b.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		var entry *wal.Entry
		switch i % 3 {
		case 0:
			entry = wal.NewSetEntry(benchKey(i), benchValue, 0)
		case 1:
			entry = wal.NewSetEntry(benchKey(i), benchValue, time.Now().Add(time.Hour).UnixMilli())
		case 2:
			entry = wal.NewDeleteEntry(benchKey(i))
		}

		if err := w.Append(entry); err != nil {
			b.Fatalf("Append: %v", err)
		}
	}
}

// BenchmarkWALSegmentRotation benchmarks appends with a segment size
// small enough to force frequent rotation.
func BenchmarkWALSegmentRotation(b *testing.B) {
	dir := b.TempDir()
	cfg := benchWALConfig(dir)
	cfg.MaxFileSize = 4 * 1024

	w, err := wal.NewWriter(cfg)
	if err != nil {
		b.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if err := w.Append(wal.NewSetEntry(benchKey(i), benchValue, 0)); err != nil {
			b.Fatalf("Append: %v", err)
		}
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*"))
	b.ReportMetric(float64(len(files)), "files")
}
