package optimize

import "github.com/cc2wasm/cc2wasm/internal/ir"

// Options selects which optimisations run, mirroring the CLI's
// --no-stack-opt and --no-tailcall-opt flags.
type Options struct {
	PackStack bool // false selects the unoptimised one-slot-per-local mode
	TailCall  bool
}

// Default is the profile used unless the CLI overrides it.
var Default = Options{PackStack: true, TailCall: true}

// Run executes the fixed pass sequence over every defined function in mod:
// DCE, then LVA, then stack-slot allocation, then (optionally) TCO.
// Extern (imported) functions have no body and are skipped.
func Run(mod *ir.Module, opts Options) {
	for _, fn := range mod.Functions {
		if fn.IsExtern {
			continue
		}
		RunFunction(fn, opts)
	}
}

// RunFunction applies the pass sequence to a single function.
func RunFunction(fn *ir.Function, opts Options) {
	DCE(fn)
	res := LVA(fn)
	Allocate(fn, res, opts.PackStack)
	if opts.TailCall {
		TCO(fn, true)
		ir.RebuildPreds(fn)
		// TCO can turn a self-recursive call into a back-edge to entry;
		// re-run DCE so any block that fell dead as a result (e.g. an
		// "after return" block that was only reachable through the call's
		// old successor edge) is cleared before the emitter's stackifier
		// sees the CFG.
		DCE(fn)
	}
}
