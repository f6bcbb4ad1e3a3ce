// Package benchmark contains performance benchmarks for the keyspace
// store, the write-ahead log, and the snapshot manager.
//
// Run with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/
package benchmark
