package jit

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
)

// AddMainWrapper synthesizes main() -> i32, which allocates a stack tape
// and calls bf_main, per spec.md §4.5's "Object-file emission": "a main of
// signature () -> i32 is synthesized that allocates a stack tape and calls
// bf_main." It panics if l was built with forJIT true, since jit_bf has no
// need of (and the JIT path never emits) a process entry point.
func AddMainWrapper(l *Lowered) *ir.Func {
	if l.EntryFn.Name() != "bf_main" {
		panic("jit: AddMainWrapper requires a bf_main entry, got " + l.EntryFn.Name())
	}

	main := l.Module.NewFunc("main", types.I32)
	block := main.NewBlock("entry")

	arrTyp := types.NewArray(NumCells, types.I8)
	tape := block.NewAlloca(arrTyp)
	tape.SetName("tape")
	tapePtr := gepFirstElem(block, arrTyp, tape)

	block.NewCall(l.EntryFn, tapePtr)
	block.NewRet(constant.NewInt(types.I32, 0))

	return main
}
