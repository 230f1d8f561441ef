package jit

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"

	"bf/internal/errors"
)

// Toolchain shells out to the host's LLVM installation to turn a printed
// module into machine code. github.com/llir/llvm builds and prints SSA IR
// but has no code generator of its own — spec.md §1 scopes the
// per-architecture backend out of this repository, so the "general
// compiler back-end" of spec.md §4.5 is the host's clang, which must be
// on $PATH, plus opt when it is on $PATH (see Optimize).
type Toolchain struct {
	// WorkDir holds the intermediate .ll files a build produces. Each
	// invocation gets its own uuid-tagged subdirectory so concurrent
	// builds of the same source never collide, mirroring the run-ID
	// tagging the dump writer uses in internal/reporting.
	WorkDir string
}

// NewToolchain creates a fresh scratch directory under os.TempDir.
func NewToolchain() (*Toolchain, error) {
	dir := filepath.Join(os.TempDir(), "bf-jit-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Toolchain(err, "creating scratch directory")
	}
	return &Toolchain{WorkDir: dir}, nil
}

// Close removes the scratch directory.
func (tc *Toolchain) Close() error {
	return os.RemoveAll(tc.WorkDir)
}

// Optimize pipes irText through `opt` at the given pipeline description
// (e.g. "mem2reg,instcombine"), matching spec.md §4.5's "run a pass
// pipeline: at minimum, 'promote memory to register'". Since llir/llvm
// carries no pass manager, the finalization pipeline spec.md describes is
// implemented by the external tool, not by this package. If `opt` is not
// installed, the input is returned unchanged — optimization is a quality
// improvement, not a correctness requirement, since the lowering already
// produces semantically complete IR.
func (tc *Toolchain) Optimize(irText string, passes string) (string, error) {
	path, err := exec.LookPath("opt")
	if err != nil {
		return irText, nil
	}
	cmd := exec.Command(path, "-S", "-passes="+passes)
	cmd.Stdin = bytes.NewBufferString(irText)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Toolchain(err, "opt: "+stderr.String())
	}
	return out.String(), nil
}

// EmitObject writes irText to a .ll file and invokes clang to assemble a
// relocatable object file for triple at outPath — spec.md §4.5's
// "Object-file emission", "written to an object file targeting the host
// triple."
func (tc *Toolchain) EmitObject(irText, triple, outPath string) error {
	return tc.compile(irText, []string{"-target", triple, "-c", "-o", outPath})
}

// BuildSharedLibrary compiles irText into a loadable shared library, the
// artifact internal/jit/execute.go loads in-process with purego to realize
// the "JIT-compiled function within the same process" contract of
// spec.md §4.5 without requiring an embedded LLVM execution engine.
func (tc *Toolchain) BuildSharedLibrary(irText, outPath string) error {
	return tc.compile(irText, []string{"-shared", "-fPIC", "-o", outPath})
}

// Assemble renders irText as a host-triple assembly listing, the artifact
// "-jit -dump" writes alongside the textual IR per SPEC_FULL.md §6.3.
func (tc *Toolchain) Assemble(irText, triple string) (string, error) {
	outPath := filepath.Join(tc.WorkDir, "module.s")
	if err := tc.compile(irText, []string{"-target", triple, "-S", "-o", outPath}); err != nil {
		return "", err
	}
	asm, err := os.ReadFile(outPath)
	if err != nil {
		return "", errors.Toolchain(err, "reading assembly listing")
	}
	return string(asm), nil
}

func (tc *Toolchain) compile(irText string, extraArgs []string) error {
	srcPath := filepath.Join(tc.WorkDir, "module.ll")
	if err := os.WriteFile(srcPath, []byte(irText), 0o644); err != nil {
		return errors.Toolchain(err, "writing intermediate IR")
	}

	clang, err := exec.LookPath("clang")
	if err != nil {
		return errors.Toolchain(err, "clang not found on PATH")
	}

	args := append([]string{srcPath}, extraArgs...)
	cmd := exec.Command(clang, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Toolchain(err, "clang: "+stderr.String())
	}
	return nil
}

// HostTriple reports a best-effort target triple for the running host,
// used as the -triple default in cmd/bf.
func HostTriple() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	}
	switch runtime.GOOS {
	case "linux":
		return arch + "-unknown-linux-gnu"
	case "darwin":
		return arch + "-apple-darwin"
	default:
		return arch + "-unknown-unknown"
	}
}
