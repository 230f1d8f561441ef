package ir

import "testing"

func TestFoldMergesRuns(t *testing.T) {
	in := []Statement{Add(1), Add(1), Add(1), MoveRight(1), MoveRight(1), Output()}
	out := Fold(in)
	want := []Statement{Add(3), MoveRight(2), Output()}
	if !Equal(out, want) {
		t.Fatalf("Fold(%v) = %v, want %v", in, out, want)
	}
}

func TestFoldDoesNotCrossSign(t *testing.T) {
	in := []Statement{Add(1), Add(1), Add(-1)}
	out := Fold(in)
	want := []Statement{Add(2), Add(-1)}
	if !Equal(out, want) {
		t.Fatalf("Fold(%v) = %v, want %v", in, out, want)
	}
}

func TestFoldNeverEmitsZeroCount(t *testing.T) {
	// A run always has length >= 1, so this is really a structural
	// sanity check that mergeRun can't be handed an empty run.
	in := []Statement{Add(1)}
	out := Fold(in)
	for _, s := range out {
		if (s.Kind == KindMoveRight || s.Kind == KindMoveLeft) && s.Count == 0 {
			t.Errorf("Fold emitted a zero-count move: %v", s)
		}
		if s.Kind == KindAdd && s.Delta == 0 {
			t.Errorf("Fold emitted a zero-delta add: %v", s)
		}
	}
}

func TestFoldRecursesIntoLoops(t *testing.T) {
	in := []Statement{Loop([]Statement{Add(1), Add(1)})}
	out := Fold(in)
	want := []Statement{Loop([]Statement{Add(2)})}
	if !Equal(out, want) {
		t.Fatalf("Fold(%v) = %v, want %v", in, out, want)
	}
}

func TestFoldIsIdempotent(t *testing.T) {
	in := []Statement{Add(1), Add(1), MoveRight(1), Loop([]Statement{Add(-1), Add(-1)})}
	once := Fold(in)
	twice := Fold(once)
	if !Equal(once, twice) {
		t.Fatalf("Fold not idempotent: Fold(s)=%v, Fold(Fold(s))=%v", once, twice)
	}
}

func TestFoldLeavesInputOutputUnchanged(t *testing.T) {
	in := []Statement{Input(), Output(), Input()}
	out := Fold(in)
	if !Equal(in, out) {
		t.Fatalf("Fold(%v) = %v, want unchanged", in, out)
	}
}
