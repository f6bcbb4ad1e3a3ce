package benchmark

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/slatekv/slatekv-go/internal/keyspace"
)

// KeyCounts defines the key counts for scaling benchmarks.
var KeyCounts = []int{1000, 10000, 100000}

// benchValue is a representative payload (a small JSON document).
var benchValue = []byte(`{"id":42,"name":"benchmark","tags":["a","b","c"]}`)

// benchKey formats the i-th benchmark key.
func benchKey(i int) string {
	return fmt.Sprintf("bench:key:%d", i)
}

// prefillStore fills a store with count keys without expiration.
func prefillStore(store *keyspace.Store, count int) {
	for i := 0; i < count; i++ {
		store.Set(benchKey(i), benchValue, 0)
	}
}

// makeEntries builds a slice of entries for snapshot benchmarks.
func makeEntries(count int) []keyspace.Entry {
	entries := make([]keyspace.Entry, count)
	for i := 0; i < count; i++ {
		entries[i] = keyspace.Entry{
			Key:   benchKey(i),
			Value: benchValue,
		}
	}
	return entries
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithKeyCounts runs a benchmark function at each key count.
func runWithKeyCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("keys_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
