package jit

import (
	"io"
	"path/filepath"
	"unsafe"

	"github.com/ebitengine/purego"

	"bf/internal/errors"
	bfir "bf/internal/ir"
)

// Execute lowers stmts, builds a shared library with the host's clang, and
// runs jit_bf in-process via purego — a cgo-free dlopen, matching spec.md
// §4.5's "callable ... as a JIT-compiled function within the same
// process." It returns the NumCells-byte working tape jit_bf left behind
// in the out-parameter at return.
//
// Per spec.md §4.5's fixed-tape model, the tape is preallocated and
// unchecked; a SearchZero or Move that runs off the end is undefined
// behavior in the compiled code exactly as it would be in the reference
// implementation.
func Execute(stmts []bfir.Statement, in io.Reader, out io.Writer) ([]byte, error) {
	lowered, err := Lower(stmts, true)
	if err != nil {
		return nil, err
	}

	tc, err := NewToolchain()
	if err != nil {
		return nil, err
	}
	defer tc.Close()

	irText, err := tc.Optimize(lowered.Module.String(), "mem2reg,instcombine")
	if err != nil {
		return nil, err
	}

	libPath := filepath.Join(tc.WorkDir, "jit.so")
	if err := tc.BuildSharedLibrary(irText, libPath); err != nil {
		return nil, err
	}

	handle, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, errors.Toolchain(err, "dlopen jit.so")
	}

	if err := bindCallback(handle, WriteCallbackSymbol, purego.NewCallback(func(c byte) {
		out.Write([]byte{c})
	})); err != nil {
		return nil, err
	}

	eof := false
	if err := bindCallback(handle, ReadCallbackSymbol, purego.NewCallback(func() byte {
		var b [1]byte
		if _, rerr := io.ReadFull(in, b[:]); rerr != nil {
			// spec.md §7.2 / §9(a): the emitted function has no
			// result channel and jit_bf has no way to unwind, so
			// this callback records eof and returns 0, and jit_bf
			// runs to completion on that byte. Execute then returns
			// an I/O error, which cmd/bf turns into a nonzero exit.
			eof = true
			return 0
		}
		return b[0]
	})); err != nil {
		return nil, err
	}

	var entry func(tapeOut unsafe.Pointer)
	purego.RegisterLibFunc(&entry, handle, "jit_bf")

	tapeOut := make([]byte, NumCells)
	entry(unsafe.Pointer(&tapeOut[0]))

	if eof {
		return tapeOut, errors.IO(io.ErrUnexpectedEOF, "end of input during Input")
	}
	return tapeOut, nil
}

// bindCallback writes a purego.NewCallback-minted function pointer into the
// global variable named symbol inside the library identified by handle —
// the cgo-free stand-in for inkwell's ExecutionEngine.add_global_mapping.
func bindCallback(handle uintptr, symbol string, cb uintptr) error {
	addr, err := purego.Dlsym(handle, symbol)
	if err != nil {
		return errors.Toolchain(err, "dlsym "+symbol)
	}
	*(*uintptr)(unsafe.Pointer(addr)) = cb
	return nil
}
