// Package tape implements the two tape models of spec.md §3: a growable
// tape that extends on demand and never shrinks, and a fixed tape
// preallocated to a cell count with unchecked bounds.
package tape

// Cell is the constraint on the tape's element type. The interpreter is
// parametric over one of the four widths this allows, per spec.md §9's
// guidance that a language with generics should express cell-width
// polymorphism directly rather than via four parallel implementations.
type Cell interface {
	~int8 | ~int16 | ~int32 | ~int64
}

// Tape is the interface both models satisfy: read/write the cell under the
// pointer, move the pointer, and report the pointer's current position.
type Tape[T Cell] interface {
	Pos() int
	Get(offset int) T
	Set(offset int, v T)
	MoveRight(n uint64)
	MoveLeft(n uint64)
}

// Growable starts at length 1, value 0, and extends with zero-valued cells
// whenever a move would cross the end. Retracting below 0 saturates at 0;
// it never fails.
type Growable[T Cell] struct {
	cells []T
	pos   int
}

// NewGrowable returns a Growable tape of length 1 holding a single zero
// cell, pointer at 0.
func NewGrowable[T Cell]() *Growable[T] {
	return &Growable[T]{cells: make([]T, 1)}
}

func (g *Growable[T]) Pos() int { return g.pos }

// Get reads the cell at pos+offset, extending the tape first if needed.
func (g *Growable[T]) Get(offset int) T {
	g.ensure(g.pos + offset)
	return g.cells[g.pos+offset]
}

// Set writes the cell at pos+offset, extending the tape first if needed.
func (g *Growable[T]) Set(offset int, v T) {
	g.ensure(g.pos + offset)
	g.cells[g.pos+offset] = v
}

func (g *Growable[T]) ensure(index int) {
	if index < len(g.cells) {
		return
	}
	grown := make([]T, index+1)
	copy(grown, g.cells)
	g.cells = grown
}

// MoveRight advances the pointer by n, extending the tape up to the new
// position.
func (g *Growable[T]) MoveRight(n uint64) {
	g.pos += int(n)
	g.ensure(g.pos)
}

// MoveLeft retracts the pointer by n, saturating at 0.
func (g *Growable[T]) MoveLeft(n uint64) {
	if uint64(g.pos) <= n {
		g.pos = 0
		return
	}
	g.pos -= int(n)
}

// Len reports the tape's current length, the upper bound of invariant 5 of
// spec.md §8 (pointer always in [0, length)).
func (g *Growable[T]) Len() int { return len(g.cells) }

// Snapshot copies the live cells out, for tests and dump output.
func (g *Growable[T]) Snapshot() []T {
	out := make([]T, len(g.cells))
	copy(out, g.cells)
	return out
}

// Fixed is preallocated to exactly the cell count given to NewFixed. Out-of-range access is
// undefined per spec.md §3; this implementation panics rather than
// corrupting adjacent memory, since Go offers no raw pointer arithmetic to
// silently misbehave with.
type Fixed[T Cell] struct {
	cells []T
	pos   int
}

// NewFixed preallocates size zero-valued cells, pointer at 0.
func NewFixed[T Cell](size int) *Fixed[T] {
	return &Fixed[T]{cells: make([]T, size)}
}

func (f *Fixed[T]) Pos() int { return f.pos }

func (f *Fixed[T]) Get(offset int) T { return f.cells[f.pos+offset] }

func (f *Fixed[T]) Set(offset int, v T) { f.cells[f.pos+offset] = v }

// MoveRight advances the pointer by n without any bounds check; a move
// past the end will panic on the next Get/Set, matching the "implementers
// may diagnose as a fatal out-of-bounds error" allowance of spec.md §7.3.
func (f *Fixed[T]) MoveRight(n uint64) { f.pos += int(n) }

// MoveLeft retracts the pointer by n, saturating at 0 just like Growable —
// the fixed model only relaxes the upper bound, not the lower one.
func (f *Fixed[T]) MoveLeft(n uint64) {
	if uint64(f.pos) <= n {
		f.pos = 0
		return
	}
	f.pos -= int(n)
}

func (f *Fixed[T]) Snapshot() []T {
	out := make([]T, len(f.cells))
	copy(out, f.cells)
	return out
}
