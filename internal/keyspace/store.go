package keyspace

import (
	"sync"
	"time"

	"github.com/slatekv/slatekv-go/pkg/cmap"
)

// TTL sentinel values, matching the usual Redis conventions.
const (
	// TTLMissing is returned for keys that are absent or expired.
	TTLMissing int64 = -2
	// TTLNone is returned for keys that exist without an expiration.
	TTLNone int64 = -1
)

// Store is the shared keyspace. Reads go through the sharded map's
// per-shard locks; writes additionally hold the store mutex so the
// mutation sequence moves in lockstep with the map content. No
// critical section performs I/O.
type Store struct {
	entries *cmap.Map[*Entry]

	// mu serializes writes and guards seq. Held briefly; never across
	// I/O. SnapshotView takes the read side, which is enough for a
	// consistent cut because every seq-bumping write holds the write
	// side.
	mu  sync.RWMutex
	seq uint64
}

// New creates an empty keyspace store.
func New() *Store {
	return &Store{
		entries: cmap.New[*Entry](),
	}
}

// Set inserts or replaces the entry for key. A non-zero ttl sets the
// expiration to now+ttl. Returns whether a live entry existed before.
// Set never fails and always advances the mutation sequence.
func (s *Store) Set(key string, value []byte, ttl time.Duration) bool {
	now := time.Now()

	entry := &Entry{
		Key:   key,
		Value: append([]byte(nil), value...),
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl).UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.entries.Get(key)
	existed := ok && !prev.Expired(now)

	s.entries.Set(key, entry)
	s.seq++
	return existed
}

// Get returns a copy of the value for key, or ok=false if the key is
// absent or expired. Observing an expired entry removes it.
func (s *Store) Get(key string) ([]byte, bool) {
	entry, ok := s.lookup(key)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), entry.Value...), true
}

// Exists reports whether key is present and not expired.
func (s *Store) Exists(key string) bool {
	_, ok := s.lookup(key)
	return ok
}

// Delete removes the entry for key. Expired entries count as already
// absent: they are reaped but the sequence does not advance and the
// result is false, so a DEL racing an expiration converges on the same
// observable state either way.
func (s *Store) Delete(key string) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries.Get(key)
	if !ok {
		return false
	}
	if entry.Expired(now) {
		s.entries.Delete(key)
		return false
	}

	s.entries.Delete(key)
	s.seq++
	return true
}

// Expire sets the expiration of a live key to now+ttl. Returns false
// if the key is absent or expired.
func (s *Store) Expire(key string, ttl time.Duration) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries.Get(key)
	if !ok || entry.Expired(now) {
		return false
	}

	next := entry.Clone()
	next.ExpiresAt = now.Add(ttl).UnixMilli()
	s.entries.Set(key, next)
	s.seq++
	return true
}

// Persist clears the expiration of a live key. Returns true only if
// the key existed with an expiration set.
func (s *Store) Persist(key string) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries.Get(key)
	if !ok || entry.Expired(now) || entry.ExpiresAt == 0 {
		return false
	}

	next := entry.Clone()
	next.ExpiresAt = 0
	s.entries.Set(key, next)
	s.seq++
	return true
}

// TTL returns the remaining lifetime of key in seconds: TTLMissing if
// absent or expired, TTLNone if the key has no expiration.
func (s *Store) TTL(key string) int64 {
	entry, ok := s.lookup(key)
	if !ok {
		return TTLMissing
	}
	if entry.ExpiresAt == 0 {
		return TTLNone
	}
	remaining := time.Until(time.UnixMilli(entry.ExpiresAt))
	if remaining < 0 {
		return TTLMissing
	}
	return int64(remaining.Seconds())
}

// Keys returns all live keys.
func (s *Store) Keys() []string {
	now := time.Now()
	keys := make([]string, 0, s.entries.Count())
	s.entries.Range(func(key string, entry *Entry) bool {
		if !entry.Expired(now) {
			keys = append(keys, key)
		}
		return true
	})
	return keys
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	now := time.Now()
	n := 0
	s.entries.Range(func(_ string, entry *Entry) bool {
		if !entry.Expired(now) {
			n++
		}
		return true
	})
	return n
}

// Flush removes every entry and returns how many live entries were
// dropped. Counts as a single write for sequencing purposes.
func (s *Store) Flush() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	live := 0
	s.entries.Range(func(_ string, entry *Entry) bool {
		if !entry.Expired(now) {
			live++
		}
		return true
	})
	s.entries.Clear()
	if live > 0 {
		s.seq++
	}
	return live
}

// Sequence returns the current mutation sequence counter.
func (s *Store) Sequence() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// SnapshotView returns a fully materialized copy of all live entries
// together with the mutation sequence at the instant of the cut. The
// copy shares no memory with the store; serialization and disk I/O
// must happen against the returned slice, outside any store lock.
func (s *Store) SnapshotView() ([]Entry, uint64) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, s.entries.Count())
	s.entries.Snapshot(func(_ string, entry *Entry) {
		if entry.Expired(now) {
			return
		}
		out = append(out, *entry.Clone())
	})
	return out, s.seq
}

// Load replaces the store content with the given entries and forces
// the mutation sequence, rebuilding state from a snapshot at startup.
// Entries that are already expired are skipped.
func (s *Store) Load(entries []Entry, seq uint64) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries.Clear()
	for i := range entries {
		e := entries[i]
		if e.Expired(now) {
			continue
		}
		s.entries.Set(e.Key, e.Clone())
	}
	s.seq = seq
}

// SweepExpired physically removes expired entries. Purely an
// optimization: lazy expiration already hides them from every reader,
// so the sweep neither advances the sequence nor changes observable
// state.
func (s *Store) SweepExpired() int {
	now := time.Now()

	var stale []string
	s.entries.Range(func(key string, entry *Entry) bool {
		if entry.Expired(now) {
			stale = append(stale, key)
		}
		return true
	})

	removed := 0
	for _, key := range stale {
		if s.entries.DeleteIf(key, func(entry *Entry) bool {
			return entry.Expired(now)
		}) {
			removed++
		}
	}
	return removed
}

// lookup returns the live entry for key, reaping it if expired. The
// reap re-checks expiration under the shard lock so it can never race
// away a fresh SET of the same key.
func (s *Store) lookup(key string) (*Entry, bool) {
	now := time.Now()

	entry, ok := s.entries.Get(key)
	if !ok {
		return nil, false
	}
	if entry.Expired(now) {
		s.entries.DeleteIf(key, func(current *Entry) bool {
			return current == entry && current.Expired(now)
		})
		return nil, false
	}
	return entry, true
}
