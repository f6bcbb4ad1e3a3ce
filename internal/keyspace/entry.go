// Package keyspace implements the in-memory key-value store.
//
// The store owns the key to entry mapping exclusively; every other
// component goes through its operation contract. All operations are
// atomic with respect to each other, and operations on a single key
// are linearizable.
package keyspace

import "time"

// Entry is one keyspace record: an opaque value plus optional
// expiration metadata.
type Entry struct {
	// Key is unique within the store.
	Key string

	// Value is an opaque byte string.
	Value []byte

	// ExpiresAt is the absolute expiration time in Unix milliseconds.
	// Zero means the entry never expires.
	ExpiresAt int64
}

// Expired reports whether the entry's expiration has passed at the
// given instant. Entries without expiration never expire.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt > 0 && e.ExpiresAt <= now.UnixMilli()
}

// Clone returns a deep copy so callers can never alias store-internal
// state.
func (e *Entry) Clone() *Entry {
	value := make([]byte, len(e.Value))
	copy(value, e.Value)
	return &Entry{
		Key:       e.Key,
		Value:     value,
		ExpiresAt: e.ExpiresAt,
	}
}
