package cache

import (
	"path/filepath"
	"testing"

	"bf/internal/ir"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMissOnUnseenKey(t *testing.T) {
	s := openTest(t)
	_, ok, err := s.Get(Key{Source: []byte("++>+++[-<+>]<."), CellSize: 8})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected a miss on an unseen key")
	}
}

func TestPutThenGetRoundTrips(t *testing.T) {
	s := openTest(t)
	k := Key{Source: []byte("++>+++[-<+>]<."), CellSize: 8, JIT: true}
	want := Entry{
		Optimized:    []ir.Statement{ir.Add(2), ir.MoveRight(1), ir.Add(3)},
		ArtifactPath: "/tmp/jit-abc.so",
	}
	if err := s.Put(k, want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(k)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after Put")
	}
	if !ir.Equal(got.Optimized, want.Optimized) {
		t.Errorf("Optimized = %v, want %v", got.Optimized, want.Optimized)
	}
	if got.ArtifactPath != want.ArtifactPath {
		t.Errorf("ArtifactPath = %q, want %q", got.ArtifactPath, want.ArtifactPath)
	}
}

func TestDistinctOptionsProduceDistinctKeys(t *testing.T) {
	base := Key{Source: []byte("+."), CellSize: 8}
	jit := base
	jit.JIT = true

	bd, err := base.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	jd, err := jit.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if bd == jd {
		t.Error("Key.Digest must distinguish JIT from non-JIT requests")
	}
}

func TestPutOverwritesExistingEntry(t *testing.T) {
	s := openTest(t)
	k := Key{Source: []byte("+."), CellSize: 8}

	if err := s.Put(k, Entry{Optimized: []ir.Statement{ir.Add(1)}}); err != nil {
		t.Fatalf("Put 1: %v", err)
	}
	if err := s.Put(k, Entry{Optimized: []ir.Statement{ir.Add(2)}}); err != nil {
		t.Fatalf("Put 2: %v", err)
	}

	got, ok, err := s.Get(k)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !ir.Equal(got.Optimized, []ir.Statement{ir.Add(2)}) {
		t.Errorf("Optimized = %v, want the overwritten entry", got.Optimized)
	}
}
