package jit

import (
	"strings"
	"testing"

	"github.com/llir/llvm/asm"
)

// TestAddMainWrapperProducesParseableIR checks spec.md §4.5's object-file
// entry point: main() -> i32 allocating a stack tape and calling bf_main.
func TestAddMainWrapperProducesParseableIR(t *testing.T) {
	l, err := Lower(mustParse(t, "+."), false)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	main := AddMainWrapper(l)
	if main.Name() != "main" {
		t.Errorf("name = %q, want main", main.Name())
	}
	if len(main.Params) != 0 {
		t.Errorf("main has %d params, want 0", len(main.Params))
	}

	if _, err := asm.ParseString("module.ll", l.Module.String()); err != nil {
		t.Fatalf("llir/llvm/asm failed to parse generated IR: %v", err)
	}
}

// TestAddMainWrapperPanicsOnJITEntry: jit_bf has no process entry point to
// wrap, since purego invokes it directly in-process.
func TestAddMainWrapperPanicsOnJITEntry(t *testing.T) {
	l, err := Lower(mustParse(t, "+."), true)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic wrapping a jit_bf entry")
		}
	}()
	AddMainWrapper(l)
}

// TestHostTripleIsWellFormed checks that HostTriple, used as -triple's
// default in cmd/bf, returns a dash-separated arch-vendor-os triple.
func TestHostTripleIsWellFormed(t *testing.T) {
	triple := HostTriple()
	if triple == "" {
		t.Fatal("HostTriple returned empty string")
	}
	if parts := strings.Split(triple, "-"); len(parts) < 3 {
		t.Errorf("HostTriple = %q, want at least arch-vendor-os", triple)
	}
}
