package optimize

import "github.com/cc2wasm/cc2wasm/internal/ir"

// TCO rewrites calls in tail position per spec §4.5. It is a no-op when
// enabled is false (the baseline profile that produces comparison traces
// for the profiler runs with TCO disabled).
func TCO(fn *ir.Function, enabled bool) {
	if !enabled || fn.Entry == nil {
		return
	}
	useCount := countRegUses(fn)

	for _, b := range fn.Blocks {
		ret, ok := b.Term.(*ir.Ret)
		if !ok || ret.Value == nil || len(b.Instrs) == 0 {
			continue
		}
		resultReg, ok := ret.Value.(*ir.Reg)
		if !ok {
			continue
		}
		last := b.Instrs[len(b.Instrs)-1]
		call, ok := last.(*ir.Call)
		if !ok || call.Dst != resultReg {
			continue
		}
		// Tail position requires the call's result flow only into this
		// return, with no intervening use.
		if useCount[resultReg] != 1 {
			continue
		}

		if !call.Indirect && call.Callee == fn.Name {
			rewriteSelfTailCall(fn, b, call)
			continue
		}
		call.Tail = ir.TailSibling
	}
}

// rewriteSelfTailCall reuses the current frame: the call's already-
// evaluated arguments are copied into fresh registers (a parallel move, so
// that writing the first parameter's new value cannot be observed by a
// read of its old value feeding a later argument), then the parameters are
// overwritten and control branches back to the entry block. No Wasm call
// is emitted for this edge.
func rewriteSelfTailCall(fn *ir.Function, b *ir.BasicBlock, call *ir.Call) {
	tmps := make([]*ir.Reg, len(call.Args))
	for i, arg := range call.Args {
		tmp := fn.NewReg(arg.Type())
		tmps[i] = tmp
	}

	// Drop the call instruction; its arguments were already fully
	// evaluated into call.Args, so no instruction besides the moves below
	// is needed.
	b.Instrs = b.Instrs[:len(b.Instrs)-1]

	for i, arg := range call.Args {
		b.Emit(&ir.Move{Dst: tmps[i], X: arg})
	}
	for i, p := range fn.Params {
		if i >= len(tmps) {
			break
		}
		b.Emit(&ir.WriteLocal{Local: p, X: tmps[i]})
	}

	b.Term = &ir.Br{Target: fn.Entry}
}

func countRegUses(fn *ir.Function) map[*ir.Reg]int {
	count := make(map[*ir.Reg]int)
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			for _, u := range in.Uses() {
				if r, ok := u.(*ir.Reg); ok {
					count[r]++
				}
			}
		}
		if b.Term != nil {
			for _, u := range b.Term.Uses() {
				if r, ok := u.(*ir.Reg); ok {
					count[r]++
				}
			}
		}
	}
	return count
}
