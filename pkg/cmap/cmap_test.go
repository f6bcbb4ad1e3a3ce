package cmap

import (
	"fmt"
	"sync"
	"testing"
)

func TestMap_SetGetDelete(t *testing.T) {
	m := New[int]()

	m.Set("a", 1)
	m.Set("b", 2)

	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v, want 1, true", v, ok)
	}
	if !m.Has("b") {
		t.Fatal("Has(b) = false, want true")
	}
	if m.Count() != 2 {
		t.Fatalf("Count = %d, want 2", m.Count())
	}

	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Fatal("Get(a) after Delete should miss")
	}

	if v, ok := m.Pop("b"); !ok || v != 2 {
		t.Fatalf("Pop(b) = %d, %v, want 2, true", v, ok)
	}
	if m.Count() != 0 {
		t.Fatalf("Count = %d, want 0", m.Count())
	}
}

func TestMap_InvalidShardCountFallsBack(t *testing.T) {
	m := NewWithShards[string](7)
	if m.ShardCount() != DefaultShardCount {
		t.Fatalf("ShardCount = %d, want %d", m.ShardCount(), DefaultShardCount)
	}
}

func TestMap_Clear(t *testing.T) {
	m := New[int]()
	for i := 0; i < 100; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}
	if removed := m.Clear(); removed != 100 {
		t.Fatalf("Clear = %d, want 100", removed)
	}
	if m.Count() != 0 {
		t.Fatalf("Count after Clear = %d, want 0", m.Count())
	}
}

func TestMap_ConcurrentAccess(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				key := fmt.Sprintf("k%d", i%64)
				m.Set(key, g)
				m.Get(key)
				if i%10 == 0 {
					m.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestMap_SnapshotConsistentCut(t *testing.T) {
	m := New[int]()
	for i := 0; i < 50; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		for {
			select {
			case <-stop:
				return
			default:
				m.Set(fmt.Sprintf("k%d", i%50), i)
				i++
			}
		}
	}()

	for round := 0; round < 20; round++ {
		seen := make(map[string]int)
		m.Snapshot(func(key string, value int) {
			seen[key] = value
		})
		if len(seen) != 50 {
			t.Fatalf("snapshot saw %d keys, want 50", len(seen))
		}
	}

	close(stop)
	wg.Wait()
}

func TestMap_Update(t *testing.T) {
	m := New[int]()
	m.Update("ctr", func(v int, exists bool) (int, bool) {
		if exists {
			t.Fatal("ctr should not exist yet")
		}
		return 1, true
	})
	m.Update("ctr", func(v int, exists bool) (int, bool) {
		return v + 1, true
	})
	if v, _ := m.Get("ctr"); v != 2 {
		t.Fatalf("ctr = %d, want 2", v)
	}

	m.Update("skip", func(v int, exists bool) (int, bool) {
		return 99, false
	})
	if m.Has("skip") {
		t.Fatal("skip should not have been stored")
	}
}
