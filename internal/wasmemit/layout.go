package wasmemit

import "github.com/cc2wasm/cc2wasm/internal/ir"

// wrapperKind distinguishes the two bracket shapes the structured control
// flow translation needs: a plain forward skip ("block"), and a
// back-branch target ("loop").
type wrapperKind int

const (
	wrapBlock wrapperKind = iota
	wrapLoop
)

// wrapper is one block/loop bracket the linear emission pass opens at
// position Open and closes at position Close (both RPO positions into
// layout.Order; Close is exclusive — the wrapper's `end` is emitted
// immediately before the instructions at position Close).
type wrapper struct {
	kind  wrapperKind
	open  int
	close int
	// target is the block this wrapper lets a br reach: for a wrapBlock
	// wrapper that is the block at position close (falling out of the
	// wrapper lands exactly there); for a wrapLoop wrapper it is the loop
	// header itself (branching to a loop jumps back to its top).
	target *ir.BasicBlock
}

// layout is the result of the CFG-to-structured-control-flow translation:
// an RPO block order, each block's position in it, and a set of block/loop
// brackets nested consistently with that order. It is computed once per
// function and consumed by the function compiler, which derives each
// branch's relative depth from the brackets open at that point (depthTo)
// to emit block/loop/br the way the spec's stackifier requires (§4.6, §9).
type layout struct {
	order    []*ir.BasicBlock
	pos      map[*ir.BasicBlock]int
	wrappers []wrapper // sorted by open position, ties broken outer-first
	// reducible is false when the CFG could not be bracketed consistently
	// (an edge jumps into the interior of another wrapper's span without
	// being properly nested); the function compiler then falls back to a
	// whole-function dispatch loop.
	reducible bool
}

// buildLayout computes the structured-control-flow layout for fn. See the
// design notes in DESIGN.md for the derivation; in short: reverse
// postorder with successors visited in reverse order lays "then" before
// "else" and loop bodies before their exits, every forward edge that skips
// over at least one block gets a block wrapper spanning from its earliest
// such predecessor to its target, and every back edge opens a loop wrapper
// at its target (the loop header) closing just after the latest back-edge
// source. A block wrapper that starts inside another wrapper and ends past
// it is then widened to open where that wrapper opens, so the spans nest.
func buildLayout(fn *ir.Function) *layout {
	order := rpoOrderReversedSuccessors(fn)
	pos := make(map[*ir.BasicBlock]int, len(order))
	for i, b := range order {
		pos[b] = i
	}

	l := &layout{order: order, pos: pos, reducible: true}

	// earliestForwardPred[target] = the minimum position among all
	// predecessors reaching target by a forward edge that is not simply
	// "the previous block in program order" (i.e. the edge needs an
	// explicit wrapper rather than falling straight through).
	earliestForwardPred := make(map[*ir.BasicBlock]int)
	// lastBackSource[header] = the maximum position among all blocks that
	// branch back to header.
	lastBackSource := make(map[*ir.BasicBlock]int)
	isLoopHeader := make(map[*ir.BasicBlock]bool)

	for i, b := range order {
		if b.Term == nil {
			continue
		}
		for _, succ := range b.Term.Successors() {
			j, ok := pos[succ]
			if !ok {
				continue // unreachable successor; DCE should have removed it
			}
			switch {
			case j <= i:
				// Back edge (or self edge): succ is a loop header.
				isLoopHeader[succ] = true
				if cur, ok := lastBackSource[succ]; !ok || i > cur {
					lastBackSource[succ] = i
				}
			case j == i+1:
				// Falls straight through to the next block in program
				// order; needs no bracket.
			default:
				if cur, ok := earliestForwardPred[succ]; !ok || i < cur {
					earliestForwardPred[succ] = i
				}
			}
		}
	}

	for target, openPos := range earliestForwardPred {
		closePos := pos[target]
		l.wrappers = append(l.wrappers, wrapper{kind: wrapBlock, open: openPos, close: closePos, target: target})
	}
	for header := range isLoopHeader {
		openPos := pos[header]
		closePos := lastBackSource[header] + 1
		l.wrappers = append(l.wrappers, wrapper{kind: wrapLoop, open: openPos, close: closePos, target: header})
	}
	for changed := true; changed; {
		changed = false
		for i := range l.wrappers {
			for _, w := range l.wrappers {
				b := &l.wrappers[i]
				if b.kind == wrapBlock && w.open < b.open && b.open < w.close && w.close < b.close {
					b.open, changed = w.open, true
				}
			}
		}
	}

	sortWrappers(l.wrappers)
	l.reducible = wrappersNest(l.wrappers)
	return l
}

// sortWrappers orders wrappers by open position ascending; among wrappers
// opening at the same position, the one that closes later (i.e. the outer
// one) comes first, so the linear emission pass can open them in the
// correct nesting order.
func sortWrappers(ws []wrapper) {
	for i := 1; i < len(ws); i++ {
		for j := i; j > 0; j-- {
			a, b := ws[j-1], ws[j]
			if a.open < b.open || (a.open == b.open && a.close >= b.close) {
				break
			}
			ws[j-1], ws[j] = ws[j], ws[j-1]
		}
	}
}

// wrappersNest verifies that every pair of wrapper spans is either
// disjoint or properly nested (one fully contains the other). A partial
// overlap means the CFG is irreducible under this bracketing scheme.
func wrappersNest(ws []wrapper) bool {
	for i := range ws {
		for j := range ws {
			if i == j {
				continue
			}
			a, b := ws[i], ws[j]
			nested := (a.open <= b.open && b.close <= a.close) || (b.open <= a.open && a.close <= b.close)
			disjoint := a.close <= b.open || b.close <= a.open
			if !nested && !disjoint {
				return false
			}
		}
	}
	return true
}

// depthTo returns the relative branch depth from position at (the site of
// a br/br_if/br_table instruction, measured by the wrappers open at that
// point) to target, given openStack — the stack of wrapper indices
// currently open at "at", outermost first, as built by the linear
// emission pass. A result of -1 means target is not reachable by a
// structured branch from here (should not happen for a reducible CFG
// covering target's block, since control falls through to it in program
// order in that case — callers special-case the "next block in program
// order" case separately rather than calling depthTo for it).
func depthTo(openStack []int, ws []wrapper, target *ir.BasicBlock) int {
	for i := len(openStack) - 1; i >= 0; i-- {
		if ws[openStack[i]].target == target {
			return len(openStack) - 1 - i
		}
	}
	return -1
}

// rpoOrderReversedSuccessors computes a reverse-postorder block numbering,
// visiting each block's terminator successors in reverse order during the
// DFS. Reversing the successor visitation order (rather than the usual
// forward order) is what makes an if's "then" arm precede its "else" arm
// and a loop's body precede its exit block in the resulting order — both
// of which are listed second and first respectively in each terminator's
// Successors() slice by convention (CondBr: [True, False]; a loop's
// back-edge block lists the exit before the header is revisited).
func rpoOrderReversedSuccessors(fn *ir.Function) []*ir.BasicBlock {
	if fn.Entry == nil {
		return fn.Blocks
	}
	visited := make(map[*ir.BasicBlock]bool)
	var postorder []*ir.BasicBlock
	var walk func(b *ir.BasicBlock)
	walk = func(b *ir.BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		if b.Term != nil {
			succs := b.Term.Successors()
			for i := len(succs) - 1; i >= 0; i-- {
				walk(succs[i])
			}
		}
		postorder = append(postorder, b)
	}
	walk(fn.Entry)

	rpo := make([]*ir.BasicBlock, len(postorder))
	for i, b := range postorder {
		rpo[len(postorder)-1-i] = b
	}
	for _, b := range fn.Blocks {
		if !visited[b] {
			rpo = append(rpo, b)
		}
	}
	return rpo
}
