// Package optimize runs the fixed sequence of IR passes over a lowered
// function: dead-code elimination, live-variable analysis, stack-slot
// allocation, and tail-call transformation (spec §4.2-§4.5). Passes mutate
// the ir.Function in place and run to completion before the next begins;
// none is retried.
package optimize

import "github.com/cc2wasm/cc2wasm/internal/ir"

// DCE removes unreachable blocks and then, to a fixed point, any pure
// instruction whose result is never used. It must run before LVA: LVA's
// dataflow result is meaningless over defs in unreachable code.
func DCE(fn *ir.Function) {
	removeUnreachableBlocks(fn)
	removeDeadInstructions(fn)
}

// removeUnreachableBlocks keeps only the blocks reachable from fn.Entry via
// DFS over terminator successors, preserving relative order.
func removeUnreachableBlocks(fn *ir.Function) {
	if fn.Entry == nil {
		return
	}
	reachable := make(map[*ir.BasicBlock]bool)
	var walk func(b *ir.BasicBlock)
	walk = func(b *ir.BasicBlock) {
		if reachable[b] {
			return
		}
		reachable[b] = true
		if b.Term == nil {
			return
		}
		for _, s := range b.Term.Successors() {
			walk(s)
		}
	}
	walk(fn.Entry)

	kept := fn.Blocks[:0]
	for _, b := range fn.Blocks {
		if reachable[b] {
			kept = append(kept, b)
		}
	}
	fn.Blocks = kept
	ir.RebuildPreds(fn)
}

// removeDeadInstructions iterates to a fixed point: an instruction is dead
// if it is Pure and its Def register is not read by any surviving Uses()
// anywhere in the function (instructions, or the block terminators).
func removeDeadInstructions(fn *ir.Function) {
	for {
		used := make(map[*ir.Reg]bool)
		for _, b := range fn.Blocks {
			for _, in := range b.Instrs {
				for _, u := range in.Uses() {
					if r, ok := u.(*ir.Reg); ok {
						used[r] = true
					}
				}
			}
			if b.Term != nil {
				for _, u := range b.Term.Uses() {
					if r, ok := u.(*ir.Reg); ok {
						used[r] = true
					}
				}
			}
		}

		changed := false
		for _, b := range fn.Blocks {
			kept := b.Instrs[:0]
			for _, in := range b.Instrs {
				d := in.Def()
				if in.Pure() && d != nil && !used[d] {
					changed = true
					continue
				}
				kept = append(kept, in)
			}
			b.Instrs = kept
		}
		if !changed {
			return
		}
	}
}
