package ir

import "testing"

func TestPeepholeClearLoop(t *testing.T) {
	for _, delta := range []int64{1, -1} {
		in := []Statement{Loop([]Statement{Add(delta)})}
		out := Peephole(in)
		want := []Statement{Clear()}
		if !Equal(out, want) {
			t.Errorf("Peephole([-%d]) = %v, want %v", delta, out, want)
		}
	}
}

func TestPeepholeCopyMultiply(t *testing.T) {
	in := []Statement{Loop([]Statement{Add(-1), MoveRight(3), Add(5), MoveLeft(3)})}
	out := Peephole(in)
	want := []Statement{AddOffset(5, 3), Clear()}
	if !Equal(out, want) {
		t.Fatalf("Peephole(copy-multiply) = %v, want %v", out, want)
	}
}

func TestPeepholeCopyMultiplyRequiresMatchingStride(t *testing.T) {
	in := []Statement{Loop([]Statement{Add(-1), MoveRight(3), Add(5), MoveLeft(2)})}
	out := Peephole(in)
	if len(out) != 1 || out[0].Kind != KindLoop {
		t.Fatalf("mismatched stride should not match copy-multiply, got %v", out)
	}
}

func TestPeepholeSearchZero(t *testing.T) {
	in := []Statement{Loop([]Statement{MoveRight(4)})}
	out := Peephole(in)
	want := []Statement{SearchZero(4)}
	if !Equal(out, want) {
		t.Fatalf("Peephole(search-zero-right) = %v, want %v", out, want)
	}

	in = []Statement{Loop([]Statement{MoveLeft(4)})}
	out = Peephole(in)
	want = []Statement{SearchZero(-4)}
	if !Equal(out, want) {
		t.Fatalf("Peephole(search-zero-left) = %v, want %v", out, want)
	}
}

func TestPeepholeRecursesIntoUnmatchedLoops(t *testing.T) {
	in := []Statement{Loop([]Statement{Output(), Loop([]Statement{Add(-1)})})}
	out := Peephole(in)
	want := []Statement{Loop([]Statement{Output(), Clear()})}
	if !Equal(out, want) {
		t.Fatalf("Peephole(nested) = %v, want %v", out, want)
	}
}

func TestPeepholeIsIdempotent(t *testing.T) {
	in := []Statement{
		Loop([]Statement{Add(-1)}),
		Loop([]Statement{Add(-1), MoveRight(2), Add(3), MoveLeft(2)}),
		Loop([]Statement{MoveRight(5)}),
		Loop([]Statement{Output(), Loop([]Statement{Add(1)})}),
	}
	once := Peephole(in)
	twice := Peephole(once)
	if !Equal(once, twice) {
		t.Fatalf("Peephole not idempotent: once=%v, twice=%v", once, twice)
	}
}

func TestPeepholeLeavesNonLoopStatementsUnchanged(t *testing.T) {
	in := []Statement{Add(1), Output(), MoveRight(2), Input()}
	out := Peephole(in)
	if !Equal(in, out) {
		t.Fatalf("Peephole(%v) = %v, want unchanged", in, out)
	}
}
