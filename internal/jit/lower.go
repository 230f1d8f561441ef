// Package jit lowers the optimized IR into an SSA-form LLVM-IR module using
// github.com/llir/llvm, the pure-Go IR construction library this module's
// teacher repository already depends on. llir/llvm only builds and prints
// IR — it embeds no code generator of its own — so internal/jit/toolchain.go
// hands the printed module to an external opt/clang invocation to reach
// machine code, and internal/jit/execute.go loads the result back in-process
// with purego. This package covers exactly the lowering contract of
// spec.md §4.5; the per-architecture backend itself stays out of scope.
package jit

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	bfir "bf/internal/ir"
)

// NumCells is the fixed tape size of the native lowering, per spec.md §3
// and §4.5 ("at least 65,536 cells").
const NumCells = 65536

// entryParamName is the out-parameter every lowered entry function takes:
// void entry(i8* tape_out).
const entryParamName = "tape_out"

// WriteCallbackSymbol and ReadCallbackSymbol name the global function-
// pointer variables a JIT-built module exposes for internal/jit/execute.go
// to patch with real Go closures after dlopen. This stands in for
// inkwell's ExecutionEngine.add_global_mapping, which the original Rust
// source uses to bind write_char/read_char directly to host functions
// (see original_source/src/jit.rs) — llir/llvm has no execution engine of
// its own to call add_global_mapping on, so the indirection is made
// explicit in the IR instead: write_char/read_char are defined as small
// trampolines that load and call through these globals.
const (
	WriteCallbackSymbol = "__bf_write_char_cb"
	ReadCallbackSymbol  = "__bf_read_char_cb"
)

// Lowered holds the built module plus the functions a caller may want to
// locate afterward.
type Lowered struct {
	Module   *ir.Module
	EntryFn  *ir.Func // "jit_bf" or "bf_main", per forJIT
	WriteFn  *ir.Func // write_char
	ReadFn   *ir.Func // read_char
	UsubSat  *ir.Func // llvm.usub.sat.<index type>
	indexTyp *types.IntType
}

// Lower builds the SSA module for stmts. When forJIT is true the entry
// function is named "jit_bf" (spec.md §4.5); otherwise it is named
// "bf_main" so object-file emission can synthesize a separate "main" that
// calls it (spec.md §4.5, "Object-file emission").
func Lower(stmts []bfir.Statement, forJIT bool) (*Lowered, error) {
	m := ir.NewModule()
	indexTyp := types.I64

	l := &Lowered{Module: m, indexTyp: indexTyp}

	// The three runtime imports of spec.md §4.5.
	if forJIT {
		l.WriteFn, l.ReadFn = buildCallbackTrampolines(m)
	} else {
		// Object emission links against a host-provided runtime, per
		// spec.md §4.5 ("a runtime providing write_char and
		// read_char") — plain external declarations are correct here.
		l.WriteFn = m.NewFunc("write_char", types.Void, ir.NewParam("c", types.I8))
		l.ReadFn = m.NewFunc("read_char", types.I8)
	}
	l.UsubSat = m.NewFunc(fmt.Sprintf("llvm.usub.sat.i%d", indexTyp.BitSize),
		indexTyp, ir.NewParam("a", indexTyp), ir.NewParam("b", indexTyp))

	name := "bf_main"
	if forJIT {
		name = "jit_bf"
	}
	entry := m.NewFunc(name, types.Void,
		ir.NewParam(entryParamName, types.NewPointer(types.I8)))
	l.EntryFn = entry

	entryBlock := entry.NewBlock("entry")

	pos := entryBlock.NewAlloca(indexTyp)
	pos.SetName("pos")
	arrTyp := types.NewArray(NumCells, types.I8)
	data := entryBlock.NewAlloca(arrTyp)
	data.SetName("data")

	memset := m.NewFunc("llvm.memset.p0i8.i64", types.Void,
		ir.NewParam("dst", types.NewPointer(types.I8)),
		ir.NewParam("val", types.I8),
		ir.NewParam("len", indexTyp),
		ir.NewParam("isvolatile", types.I1))
	dataPtr := gepFirstElem(entryBlock, arrTyp, data)
	entryBlock.NewCall(memset, dataPtr, constant.NewInt(types.I8, 0),
		constant.NewInt(indexTyp, NumCells), constant.False)

	entryBlock.NewStore(constant.NewInt(indexTyp, 0), pos)

	lw := &lowering{m: m, f: entry, pos: pos, data: data, dataPtr: dataPtr, idx: indexTyp, l: l}
	cur := entryBlock
	cur = lw.lowerSeq(cur, stmts)

	outParam := entry.Params[0]
	cur.NewCall(memcpyFunc(m, indexTyp), outParam, dataPtr, constant.NewInt(indexTyp, NumCells), constant.False)
	cur.NewRet(nil)

	return l, nil
}

// buildCallbackTrampolines defines write_char/read_char as functions that
// load a global function-pointer variable and call through it, then defines
// the two globals (initialized to null). internal/jit/execute.go resolves
// WriteCallbackSymbol/ReadCallbackSymbol with dlsym after loading the built
// shared library and stores a purego.NewCallback-minted address into each,
// which is this package's cgo-free equivalent of installing a host
// callback into the JIT's symbol table.
func buildCallbackTrampolines(m *ir.Module) (writeFn, readFn *ir.Func) {
	writeCbTyp := types.NewPointer(types.NewFunc(types.Void, types.I8))
	readCbTyp := types.NewPointer(types.NewFunc(types.I8))

	writeCb := m.NewGlobalDef(WriteCallbackSymbol, constant.NewNull(writeCbTyp))
	readCb := m.NewGlobalDef(ReadCallbackSymbol, constant.NewNull(readCbTyp))

	writeFn = m.NewFunc("write_char", types.Void, ir.NewParam("c", types.I8))
	wb := writeFn.NewBlock("entry")
	fp := wb.NewLoad(writeCbTyp, writeCb)
	wb.NewCall(fp, writeFn.Params[0])
	wb.NewRet(nil)

	readFn = m.NewFunc("read_char", types.I8)
	rb := readFn.NewBlock("entry")
	rfp := rb.NewLoad(readCbTyp, readCb)
	result := rb.NewCall(rfp)
	rb.NewRet(result)

	return writeFn, readFn
}

// memcpyFunc declares the
// llvm.memcpy intrinsic used to copy the working tape to the caller's
// out-parameter at return, per spec.md §4.5's finalization step.
func memcpyFunc(m *ir.Module, idx *types.IntType) *ir.Func {
	return m.NewFunc("llvm.memcpy.p0i8.p0i8.i64", types.Void,
		ir.NewParam("dst", types.NewPointer(types.I8)),
		ir.NewParam("src", types.NewPointer(types.I8)),
		ir.NewParam("len", idx),
		ir.NewParam("isvolatile", types.I1))
}

// gepFirstElem decays a pointer to an array alloca into a pointer to its
// first byte, the pattern every downstream GEP and the memset/memcpy calls
// build on.
func gepFirstElem(b *ir.Block, arrTyp *types.ArrayType, arr value.Value) value.Value {
	zero := constant.NewInt(types.I64, 0)
	return b.NewGetElementPtr(arrTyp, arr, zero, zero)
}

// lowering carries the per-function state compile_stmt needs in the
// original Rust source's terms: the tape base pointer, the pos slot, and
// the current basic block being appended to.
type lowering struct {
	m       *ir.Module
	f       *ir.Func
	pos     *ir.InstAlloca
	data    *ir.InstAlloca
	dataPtr value.Value
	idx     *types.IntType
	l       *Lowered
	nextID  int
}

func (lw *lowering) label(prefix string) string {
	lw.nextID++
	return fmt.Sprintf("%s.%d", prefix, lw.nextID)
}

// lowerSeq lowers a sequence of statements onto cur, returning the block
// execution continues in after the sequence: cur itself when the sequence
// holds no Loop or SearchZero (the other statements never need a new
// block), otherwise the exit block of the last such control-flow region.
func (lw *lowering) lowerSeq(cur *ir.Block, stmts []bfir.Statement) *ir.Block {
	for _, s := range stmts {
		cur = lw.lowerStmt(cur, s)
	}
	return cur
}

func (lw *lowering) loadPos(b *ir.Block) value.Value {
	return b.NewLoad(lw.idx, lw.pos)
}

// cellPtr computes &tape[pos+offset] for a constant offset.
func (lw *lowering) cellPtr(b *ir.Block, posVal value.Value, offset int64) value.Value {
	idx := posVal
	if offset != 0 {
		idx = b.NewAdd(posVal, constant.NewInt(lw.idx, offset))
	}
	return b.NewGetElementPtr(types.I8, lw.dataPtr, idx)
}

func (lw *lowering) loadCell(b *ir.Block, offset int64) value.Value {
	posVal := lw.loadPos(b)
	return b.NewLoad(types.I8, lw.cellPtr(b, posVal, offset))
}

func (lw *lowering) storeCell(b *ir.Block, offset int64, v value.Value) {
	posVal := lw.loadPos(b)
	b.NewStore(v, lw.cellPtr(b, posVal, offset))
}

func (lw *lowering) lowerStmt(cur *ir.Block, s bfir.Statement) *ir.Block {
	switch s.Kind {
	case bfir.KindMoveRight:
		posVal := lw.loadPos(cur)
		next := cur.NewAdd(posVal, constant.NewInt(lw.idx, int64(s.Count)))
		cur.NewStore(next, lw.pos)
	case bfir.KindMoveLeft:
		posVal := lw.loadPos(cur)
		n := constant.NewInt(lw.idx, int64(s.Count))
		next := cur.NewCall(lw.l.UsubSat, posVal, n)
		cur.NewStore(next, lw.pos)
	case bfir.KindAdd:
		v := lw.loadCell(cur, 0)
		sum := cur.NewAdd(v, constant.NewInt(types.I8, s.Delta))
		lw.storeCell(cur, 0, sum)
	case bfir.KindOutput:
		v := lw.loadCell(cur, 0)
		cur.NewCall(lw.l.WriteFn, v)
	case bfir.KindInput:
		v := cur.NewCall(lw.l.ReadFn)
		lw.storeCell(cur, 0, v)
	case bfir.KindClear:
		lw.storeCell(cur, 0, constant.NewInt(types.I8, 0))
	case bfir.KindAddOffset:
		v := lw.loadCell(cur, 0)
		v64 := cur.NewSExt(v, types.I64)
		mul := cur.NewMul(v64, constant.NewInt(types.I64, s.Mul))
		target := lw.loadCell(cur, int64(s.Offset))
		target64 := cur.NewSExt(target, types.I64)
		sum64 := cur.NewAdd(target64, mul)
		sum8 := cur.NewTrunc(sum64, types.I8)
		lw.storeCell(cur, int64(s.Offset), sum8)
	case bfir.KindLoop:
		return lw.lowerLoop(cur, s.Body)
	case bfir.KindSearchZero:
		return lw.lowerSearchZero(cur, s.Stride)
	default:
		panic("jit: unhandled statement kind")
	}
	return cur
}

// lowerLoop emits the three-block skeleton of spec.md §4.5: header (load
// cell, compare-and-branch), body (lower children then jump back to
// header), exit.
func (lw *lowering) lowerLoop(cur *ir.Block, body []bfir.Statement) *ir.Block {
	header := lw.f.NewBlock(lw.label("loop.header"))
	bodyBlk := lw.f.NewBlock(lw.label("loop.body"))
	exit := lw.f.NewBlock(lw.label("loop.exit"))

	cur.NewBr(header)

	cell := lw.loadCell(header, 0)
	cond := header.NewICmp(enum.IPredNE, cell, constant.NewInt(types.I8, 0))
	header.NewCondBr(cond, bodyBlk, exit)

	bodyEnd := lw.lowerSeq(bodyBlk, body)
	bodyEnd.NewBr(header)

	return exit
}

// lowerSearchZero emits the three-block skeleton of spec.md §4.5 for
// SearchZero: condition (load and compare), body (pos += stride), exit.
func (lw *lowering) lowerSearchZero(cur *ir.Block, stride int64) *ir.Block {
	cond := lw.f.NewBlock(lw.label("search.cond"))
	bodyBlk := lw.f.NewBlock(lw.label("search.body"))
	exit := lw.f.NewBlock(lw.label("search.exit"))

	cur.NewBr(cond)

	cell := lw.loadCell(cond, 0)
	test := cond.NewICmp(enum.IPredNE, cell, constant.NewInt(types.I8, 0))
	cond.NewCondBr(test, bodyBlk, exit)

	posVal := lw.loadPos(bodyBlk)
	var next value.Value
	if stride >= 0 {
		next = bodyBlk.NewAdd(posVal, constant.NewInt(lw.idx, stride))
	} else {
		next = bodyBlk.NewCall(lw.l.UsubSat, posVal, constant.NewInt(lw.idx, -stride))
	}
	bodyBlk.NewStore(next, lw.pos)
	bodyBlk.NewBr(cond)

	return exit
}
