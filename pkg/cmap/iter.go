package cmap

// Range iterates over all key-value pairs.
//
// The callback returns false to stop iteration. Locks are acquired
// shard by shard, so the view is not a consistent cut; use Snapshot
// when consistency matters.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Keys returns all keys.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, m.Count())
	m.Range(func(key string, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Snapshot invokes fn for every key-value pair while holding the read
// lock of every shard, so fn observes a single consistent cut of the
// map: no mutation started after Snapshot was called is visible.
//
// fn must not call back into the map and must not block on I/O.
func (m *Map[V]) Snapshot(fn func(key string, value V)) {
	for _, s := range m.shards {
		s.mu.RLock()
	}
	defer func() {
		for _, s := range m.shards {
			s.mu.RUnlock()
		}
	}()

	for _, s := range m.shards {
		for k, v := range s.items {
			fn(k, v)
		}
	}
}

// DeleteIf removes a key only if fn approves the current value.
// Returns true if the key was removed. The check and the removal are
// atomic with respect to other operations on the key.
func (m *Map[V]) DeleteIf(key string, fn func(value V) bool) bool {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items[key]
	if !ok || !fn(v) {
		return false
	}
	delete(s.items, key)
	return true
}

// Update atomically replaces the value for a key.
// The callback receives the current value (if any) and returns the new
// value together with whether it should be stored.
func (m *Map[V]) Update(key string, fn func(value V, exists bool) (V, bool)) {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.items[key]
	next, store := fn(existing, exists)
	if store {
		s.items[key] = next
	}
}
