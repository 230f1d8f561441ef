// Package interp is the tree-walking executor over the optimized IR,
// parametric over the tape's cell width (spec.md §4.4).
package interp

import (
	"bufio"
	"io"

	"bf/internal/errors"
	"bf/internal/ir"
	"bf/internal/tape"
)

// Interpreter executes a Statement sequence against a Tape of cell type T.
// It owns no state of its own beyond the I/O streams; the tape and the IR
// tree are supplied by the caller and neither is retained beyond Run. Run
// writes the tape's cells and never mutates the IR tree.
type Interpreter[T tape.Cell] struct {
	In  io.Reader
	Out io.Writer

	r *bufio.Reader
}

// NewInterpreter wires an interpreter to the given byte streams.
func NewInterpreter[T tape.Cell](in io.Reader, out io.Writer) *Interpreter[T] {
	return &Interpreter[T]{In: in, Out: out, r: bufio.NewReader(in)}
}

// Run executes stmts against t to completion or to the first I/O error.
// Execution is a single explicit work-stack rather than native recursion
// on Loop, per the robustness guidance of spec.md §9 — a loop nested
// thousands deep does not grow the Go call stack.
func (ip *Interpreter[T]) Run(stmts []ir.Statement, t tape.Tape[T]) error {
	type frame struct {
		body []ir.Statement
		i    int
	}
	stack := []frame{{body: stmts}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.i >= len(top.body) {
			stack = stack[:len(stack)-1]
			continue
		}
		s := top.body[top.i]

		if s.Kind == ir.KindLoop {
			if t.Get(0) == 0 {
				top.i++
				continue
			}
			// Re-enter the same loop node once its body finishes; the
			// cell is re-read at that point, matching spec.md §4.4's
			// "the cell is re-read at each iteration boundary."
			stack = append(stack, frame{body: s.Body})
			continue
		}

		if err := ip.step(s, t); err != nil {
			return err
		}
		top.i++
	}
	return nil
}

func (ip *Interpreter[T]) step(s ir.Statement, t tape.Tape[T]) error {
	switch s.Kind {
	case ir.KindMoveRight:
		t.MoveRight(s.Count)
	case ir.KindMoveLeft:
		t.MoveLeft(s.Count)
	case ir.KindAdd:
		t.Set(0, t.Get(0)+T(s.Delta))
	case ir.KindOutput:
		if _, err := ip.Out.Write([]byte{byte(t.Get(0))}); err != nil {
			return errors.IO(err, "output write failed")
		}
	case ir.KindInput:
		b, err := ip.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return errors.IO(io.ErrUnexpectedEOF, "end of input during Input")
			}
			return errors.IO(err, "input read failed")
		}
		t.Set(0, T(b))
	case ir.KindClear:
		t.Set(0, 0)
	case ir.KindAddOffset:
		v := int64(t.Get(0))
		delta := s.Mul * v
		cur := int64(t.Get(int(s.Offset)))
		t.Set(int(s.Offset), T(cur+delta))
	case ir.KindSearchZero:
		for t.Get(0) != 0 {
			if s.Stride > 0 {
				t.MoveRight(uint64(s.Stride))
			} else {
				t.MoveLeft(uint64(-s.Stride))
			}
		}
	default:
		panic("interp: unhandled statement kind")
	}
	return nil
}
