package keyspace

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStore_SetGetRoundTrip(t *testing.T) {
	s := New()

	if existed := s.Set("k", []byte("v"), 0); existed {
		t.Fatal("Set on fresh key reported existed=true")
	}

	got, ok := s.Get("k")
	if !ok {
		t.Fatal("Get(k) missed after Set")
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Fatalf("Get(k) = %q, want %q", got, "v")
	}

	if existed := s.Set("k", []byte("v2"), 0); !existed {
		t.Fatal("Set on existing key reported existed=false")
	}
	got, _ = s.Get("k")
	if !bytes.Equal(got, []byte("v2")) {
		t.Fatalf("Get(k) = %q, want %q", got, "v2")
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New()
	s.Set("k", []byte("abc"), 0)

	got, _ := s.Get("k")
	got[0] = 'X'

	again, _ := s.Get("k")
	if !bytes.Equal(again, []byte("abc")) {
		t.Fatalf("store value mutated through returned slice: %q", again)
	}
}

func TestStore_DeleteAndExists(t *testing.T) {
	s := New()

	if s.Delete("missing") {
		t.Fatal("Delete on never-set key = true, want false")
	}
	if s.Exists("missing") {
		t.Fatal("Exists on never-set key = true, want false")
	}

	s.Set("k", []byte("v"), 0)
	if !s.Exists("k") {
		t.Fatal("Exists(k) = false after Set")
	}
	if !s.Delete("k") {
		t.Fatal("Delete(k) = false, want true")
	}
	if s.Exists("k") {
		t.Fatal("Exists(k) = true after Delete")
	}
}

func TestStore_LazyExpiration(t *testing.T) {
	s := New()
	s.Set("k", []byte("v"), 30*time.Millisecond)

	if _, ok := s.Get("k"); !ok {
		t.Fatal("Get before expiry missed")
	}

	time.Sleep(60 * time.Millisecond)

	if _, ok := s.Get("k"); ok {
		t.Fatal("Get after expiry returned a value")
	}
	if s.Exists("k") {
		t.Fatal("Exists after expiry = true")
	}
	if s.TTL("k") != TTLMissing {
		t.Fatalf("TTL after expiry = %d, want %d", s.TTL("k"), TTLMissing)
	}
}

func TestStore_DeleteExpiredCountsAsAbsent(t *testing.T) {
	s := New()
	s.Set("k", []byte("v"), 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	seqBefore := s.Sequence()
	if s.Delete("k") {
		t.Fatal("Delete on expired key = true, want false")
	}
	if s.Sequence() != seqBefore {
		t.Fatal("Delete of expired key advanced the sequence")
	}
}

func TestStore_TTLAndExpire(t *testing.T) {
	s := New()

	if got := s.TTL("k"); got != TTLMissing {
		t.Fatalf("TTL(absent) = %d, want %d", got, TTLMissing)
	}

	s.Set("k", []byte("v"), 0)
	if got := s.TTL("k"); got != TTLNone {
		t.Fatalf("TTL(no expiry) = %d, want %d", got, TTLNone)
	}

	if !s.Expire("k", 10*time.Second) {
		t.Fatal("Expire(k) = false, want true")
	}
	if got := s.TTL("k"); got < 8 || got > 10 {
		t.Fatalf("TTL = %d, want ~10", got)
	}

	if !s.Persist("k") {
		t.Fatal("Persist(k) = false, want true")
	}
	if got := s.TTL("k"); got != TTLNone {
		t.Fatalf("TTL after Persist = %d, want %d", got, TTLNone)
	}
	if s.Persist("k") {
		t.Fatal("Persist without expiry = true, want false")
	}

	if s.Expire("missing", time.Second) {
		t.Fatal("Expire(absent) = true, want false")
	}
}

func TestStore_SequenceAdvancesOnWrites(t *testing.T) {
	s := New()

	seq := s.Sequence()
	s.Set("a", []byte("1"), 0)
	if s.Sequence() != seq+1 {
		t.Fatalf("Sequence after Set = %d, want %d", s.Sequence(), seq+1)
	}

	s.Delete("a")
	if s.Sequence() != seq+2 {
		t.Fatalf("Sequence after Delete = %d, want %d", s.Sequence(), seq+2)
	}

	// Reads must not advance the sequence.
	s.Get("a")
	s.Exists("a")
	if s.Sequence() != seq+2 {
		t.Fatalf("Sequence after reads = %d, want %d", s.Sequence(), seq+2)
	}
}

func TestStore_FlushCountsLiveOnly(t *testing.T) {
	s := New()
	s.Set("live1", []byte("v"), 0)
	s.Set("live2", []byte("v"), 0)
	s.Set("dying", []byte("v"), 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	if n := s.Flush(); n != 2 {
		t.Fatalf("Flush = %d, want 2", n)
	}
	if s.Len() != 0 {
		t.Fatalf("Len after Flush = %d, want 0", s.Len())
	}
}

func TestStore_SnapshotViewConsistency(t *testing.T) {
	s := New()
	for i := 0; i < 32; i++ {
		s.Set(fmt.Sprintf("k%d", i), []byte("init"), 0)
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
				s.Set(fmt.Sprintf("k%d", i%32), []byte(fmt.Sprintf("v%d", i)), 0)
				i++
			}
		}
	}()

	for round := 0; round < 25; round++ {
		entries, _ := s.SnapshotView()
		if len(entries) != 32 {
			t.Fatalf("snapshot has %d entries, want 32", len(entries))
		}
		for _, e := range entries {
			if len(e.Value) == 0 {
				t.Fatalf("snapshot entry %q has empty value", e.Key)
			}
		}
	}

	close(stop)
	wg.Wait()
}

func TestStore_SnapshotViewExcludesExpired(t *testing.T) {
	s := New()
	s.Set("keep", []byte("v"), 0)
	s.Set("drop", []byte("v"), 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	entries, _ := s.SnapshotView()
	if len(entries) != 1 || entries[0].Key != "keep" {
		t.Fatalf("snapshot = %+v, want only 'keep'", entries)
	}
}

func TestStore_LoadRebuildsState(t *testing.T) {
	s := New()
	s.Set("a", []byte("1"), 0)
	s.Set("b", []byte("2"), time.Hour)
	entries, seq := s.SnapshotView()

	fresh := New()
	fresh.Load(entries, seq)

	if got, _ := fresh.Get("a"); !bytes.Equal(got, []byte("1")) {
		t.Fatalf("restored a = %q, want 1", got)
	}
	if got := fresh.TTL("b"); got <= 0 {
		t.Fatalf("restored b TTL = %d, want positive", got)
	}
	if fresh.Sequence() != seq {
		t.Fatalf("restored sequence = %d, want %d", fresh.Sequence(), seq)
	}
}

func TestStore_SweepExpired(t *testing.T) {
	s := New()
	s.Set("keep", []byte("v"), 0)
	for i := 0; i < 5; i++ {
		s.Set(fmt.Sprintf("dying%d", i), []byte("v"), 20*time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	seq := s.Sequence()
	if n := s.SweepExpired(); n != 5 {
		t.Fatalf("SweepExpired = %d, want 5", n)
	}
	if s.Sequence() != seq {
		t.Fatal("SweepExpired advanced the sequence")
	}
	if !s.Exists("keep") {
		t.Fatal("SweepExpired removed a live key")
	}
}

func TestStore_ConcurrentSetSingleWinner(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Set("contended", []byte(fmt.Sprintf("writer-%d-%d", g, i)), 0)
			}
		}(g)
	}
	wg.Wait()

	got, ok := s.Get("contended")
	if !ok {
		t.Fatal("contended key missing after concurrent writes")
	}
	var g, i int
	if _, err := fmt.Sscanf(string(got), "writer-%d-%d", &g, &i); err != nil {
		t.Fatalf("final value %q is not one of the written values: %v", got, err)
	}
}
