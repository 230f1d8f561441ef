// Command bf is the CLI front end of SPEC_FULL.md §6.1: parse, optimize,
// and either interpret, JIT-execute, or emit an object file for a single
// source file.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bf/internal/cache"
	"bf/internal/errors"
	"bf/internal/interp"
	"bf/internal/ir"
	"bf/internal/jit"
	"bf/internal/lexer"
	"bf/internal/reporting"
	"bf/internal/tape"
)

// cellSizeBits is a flag.Value the way cmd/retro's cellSizeBits is in the
// teacher's referenced CLI convention (github.com/db47h/ngaro's
// cmd/retro/main.go), restricting -cell-size to the four widths the tape
// package supports.
type cellSizeBits int

func (sz *cellSizeBits) String() string { return fmt.Sprintf("%d", int(*sz)) }
func (sz *cellSizeBits) Set(s string) error {
	switch s {
	case "8", "16", "32", "64":
	default:
		return fmt.Errorf("%s bits cells not supported (want 8, 16, 32, or 64)", s)
	}
	var n int
	fmt.Sscanf(s, "%d", &n)
	*sz = cellSizeBits(n)
	return nil
}

func main() {
	var (
		optimize = flag.Bool("optimize", true, "run the constant-fold and peephole passes before execution")
		dump     = flag.Bool("dump", false, "write pre/post-optimization IR dumps (and, under -jit, the LLVM IR and an assembly listing) alongside the source")
		useJIT   = flag.Bool("jit", false, "execute natively via the LLVM lowering instead of the tree-walking interpreter")
		cellSize = cellSizeBits(8)
		useCache = flag.Bool("cache", true, "reuse a previous build of the same source and options")
		outPath  = flag.String("o", "", "output `path` for object-file emission")
		triple   = flag.String("triple", jit.HostTriple(), "target triple for object-file emission")
	)
	flag.Var(&cellSize, "cell-size", "tape cell width in bits: 8, 16, 32, or 64")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: bf [flags] <source-file>")
		os.Exit(2)
	}

	// spec.md §5: "implementations may honor an external signal by
	// aborting the process." There is no cooperative unwind path through
	// the interpreter or the JIT entry call, so the handler aborts the
	// process directly rather than trying to thread a context down.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		os.Exit(130)
	}()

	if err := run(flag.Arg(0), *optimize, *dump, *useJIT, int(cellSize), *useCache, *outPath, *triple); err != nil {
		if e, ok := err.(*errors.Error); ok {
			fmt.Fprintf(os.Stderr, "bf: %s\n", e.Error())
		} else {
			fmt.Fprintf(os.Stderr, "bf: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(path string, optimize, dump, useJIT bool, cellSize int, useCache bool, outPath, triple string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return errors.IO(err, "reading source file")
	}
	dir := filepath.Dir(path)

	dumper := reporting.NewDumper()
	start := time.Now()

	var store *cache.Store
	tokens := lexer.Filter(src)
	filtered := make([]byte, len(tokens))
	for i, tok := range tokens {
		filtered[i] = tok.Byte
	}
	key := cache.Key{Source: filtered, CellSize: cellSize, Optimize: optimize, JIT: useJIT}
	if useCache {
		store, err = cache.Open(cacheDBPath())
		if err != nil {
			return err
		}
		defer store.Close()
	}

	stmts, err := loadOptimized(src, optimize, dump, dir, key, store, dumper)
	if err != nil {
		return err
	}

	switch {
	case outPath != "":
		return buildObject(stmts, triple, outPath)
	case useJIT:
		return runJIT(stmts, dump, dir, triple, dumper, start)
	default:
		return runInterpreter(stmts, cellSize, dumper, start)
	}
}

// loadOptimized parses src and runs the optimizer, writing pre/post IR
// dumps alongside the source when dump is set. The dump is produced
// whenever requested regardless of cache state: a cache hit only skips
// recomputing the optimized tree (it is stored in the cache entry and
// dumped from there), never the dump itself.
func loadOptimized(src []byte, optimize, dump bool, dir string, key cache.Key, store *cache.Store, dumper *reporting.Dumper) ([]ir.Statement, error) {
	raw, err := ir.Parse(lexer.Filter(src))
	if err != nil {
		return nil, err
	}
	if dump {
		if _, err := dumper.DumpIR(dir, "pre-optimization", raw); err != nil {
			return nil, errors.IO(err, "writing pre-optimization dump")
		}
	}

	if store != nil {
		if entry, ok, err := store.Get(key); err != nil {
			return nil, err
		} else if ok {
			if dump {
				if _, err := dumper.DumpIR(dir, "post-optimization", entry.Optimized); err != nil {
					return nil, errors.IO(err, "writing post-optimization dump")
				}
			}
			return entry.Optimized, nil
		}
	}

	stmts := raw
	if optimize {
		stmts = ir.Peephole(ir.Fold(raw))
	}
	if dump {
		if _, err := dumper.DumpIR(dir, "post-optimization", stmts); err != nil {
			return nil, errors.IO(err, "writing post-optimization dump")
		}
	}

	if store != nil {
		if err := store.Put(key, cache.Entry{Optimized: stmts}); err != nil {
			return nil, err
		}
	}
	return stmts, nil
}

func runInterpreter(stmts []ir.Statement, cellSize int, dumper *reporting.Dumper, start time.Time) error {
	var err error
	switch cellSize {
	case 8:
		err = interp.NewInterpreter[int8](os.Stdin, os.Stdout).Run(stmts, tape.NewGrowable[int8]())
	case 16:
		err = interp.NewInterpreter[int16](os.Stdin, os.Stdout).Run(stmts, tape.NewGrowable[int16]())
	case 32:
		err = interp.NewInterpreter[int32](os.Stdin, os.Stdout).Run(stmts, tape.NewGrowable[int32]())
	default:
		err = interp.NewInterpreter[int64](os.Stdin, os.Stdout).Run(stmts, tape.NewGrowable[int64]())
	}
	if err != nil {
		return err
	}
	return dumper.WriteSummary(os.Stderr, reporting.Summary{Elapsed: time.Since(start)})
}

// runJIT executes stmts natively. Under -dump, it additionally lowers
// stmts a second time to write the textual LLVM IR and, via the external
// toolchain, an assembly listing alongside the source — spec.md §6's
// "-jit -dump" requirement.
func runJIT(stmts []ir.Statement, dump bool, dir, triple string, dumper *reporting.Dumper, start time.Time) error {
	if dump {
		if err := dumpJITArtifacts(stmts, dir, triple, dumper); err != nil {
			return err
		}
	}

	tapeOut, err := jit.Execute(stmts, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	return dumper.WriteSummary(os.Stderr, reporting.Summary{
		CellsTouched: len(tapeOut),
		Elapsed:      time.Since(start),
	})
}

func dumpJITArtifacts(stmts []ir.Statement, dir, triple string, dumper *reporting.Dumper) error {
	lowered, err := jit.Lower(stmts, true)
	if err != nil {
		return err
	}
	irText := lowered.Module.String()
	if _, err := dumper.DumpText(dir, "ir", "ll", irText); err != nil {
		return errors.IO(err, "writing LLVM IR dump")
	}

	tc, err := jit.NewToolchain()
	if err != nil {
		return err
	}
	defer tc.Close()

	asm, err := tc.Assemble(irText, triple)
	if err != nil {
		return err
	}
	if _, err := dumper.DumpText(dir, "asm", "s", asm); err != nil {
		return errors.IO(err, "writing assembly listing dump")
	}
	return nil
}

func buildObject(stmts []ir.Statement, triple, outPath string) error {
	lowered, err := jit.Lower(stmts, false)
	if err != nil {
		return err
	}
	jit.AddMainWrapper(lowered)

	tc, err := jit.NewToolchain()
	if err != nil {
		return err
	}
	defer tc.Close()

	return tc.EmitObject(lowered.Module.String(), triple, outPath)
}

func cacheDBPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return dir + "/bf-compile-cache.sqlite"
}
