package optimize

import (
	"fmt"

	"github.com/cc2wasm/cc2wasm/internal/ir"
)

// point identifies one instruction (or terminator) position in the
// linearised instruction stream LVA walks: blocks numbered in reverse
// postorder, instructions in program order within each block (spec §4.3).
type point struct {
	block *ir.BasicBlock
	index int // index into block.Instrs, or len(Instrs) for the terminator
}

// Interval is a local's live range over the linearised index space: the
// first point some instruction reads or writes it, through the last.
type Interval struct {
	Local *ir.Local
	Start int
	End   int
}

// Result is the outcome of running LVA over a function: the linear order
// used, and one interval per local that is ever touched through
// ReadLocal/WriteLocal/AddrOfLocal (the locals stack-slot allocation cares
// about — scalars promoted entirely to registers never appear here).
type Result struct {
	Order     []point
	Intervals []Interval
	byLocal   map[*ir.Local]*Interval
}

// LVA computes live intervals for fn's locals by a single linear scan over
// blocks in reverse postorder. Register liveness proper (the backward
// use/def dataflow of §4.3) is computed transiently to validate that no
// register is used before any reaching definition; the externally useful
// product, consumed by stack-slot allocation, is the per-local interval
// list.
func LVA(fn *ir.Function) *Result {
	order := rpoOrder(fn)

	res := &Result{Order: linearize(order), byLocal: make(map[*ir.Local]*Interval)}

	touch := func(l *ir.Local, idx int) {
		if l == nil {
			return
		}
		iv, ok := res.byLocal[l]
		if !ok {
			iv = &Interval{Local: l, Start: idx, End: idx}
			res.byLocal[l] = iv
			res.Intervals = append(res.Intervals, *iv)
		}
		if idx < iv.Start {
			iv.Start = idx
		}
		if idx > iv.End {
			iv.End = idx
		}
	}

	for idx, p := range res.Order {
		if p.index < len(p.block.Instrs) {
			switch in := p.block.Instrs[p.index].(type) {
			case *ir.WriteLocal:
				touch(in.Local, idx)
			case *ir.ReadLocal:
				touch(in.Local, idx)
			case *ir.AddrOfLocal:
				touch(in.Local, idx)
			}
		}
	}

	// Sync the stored-by-value slice with any mutation performed through
	// the map's pointers above.
	for i := range res.Intervals {
		res.Intervals[i] = *res.byLocal[res.Intervals[i].Local]
	}

	computeRegisterLiveness(fn, res.Order)

	return res
}

// Interval looks up the computed live interval for local l, if any
// instruction ever touched it.
func (r *Result) Interval(l *ir.Local) (Interval, bool) {
	iv, ok := r.byLocal[l]
	if !ok {
		return Interval{}, false
	}
	return *iv, true
}

// Overlaps reports whether two intervals share any point.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start <= b.End && b.Start <= a.End
}

func linearize(order []*ir.BasicBlock) []point {
	var pts []point
	for _, b := range order {
		for i := range b.Instrs {
			pts = append(pts, point{block: b, index: i})
		}
		pts = append(pts, point{block: b, index: len(b.Instrs)})
	}
	return pts
}

// rpoOrder computes a reverse-postorder numbering of fn's blocks via DFS
// from the entry, falling back to appending any block DFS did not reach
// (dead code already removed by this point in the pipeline, but LVA must
// not panic if invoked standalone).
func rpoOrder(fn *ir.Function) []*ir.BasicBlock {
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
			for _, s := range b.Term.Successors() {
				walk(s)
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

// computeRegisterLiveness makes one backward use/def pass over the linear
// order (no successor propagation, no fixed point) to assert the module's
// register-discipline invariant: every register irgen ever uses must have a
// definition that reaches that use. A use marks a register live and a def
// clears it; a register that irgen Moves into from two arms (the ternary
// and &&/|| lowerings) is cleared at whichever def the scan meets first.
// Since order starts at the entry block, any register still marked live
// once the scan has walked past the entry block was used without a
// definition earlier in the order — panic, the same way the emitter
// panics on any other internal-invariant violation it finds.
func computeRegisterLiveness(fn *ir.Function, order []point) {
	live := make(map[*ir.Reg]bool)
	for i := len(order) - 1; i >= 0; i-- {
		p := order[i]
		if p.index >= len(p.block.Instrs) {
			if p.block.Term != nil {
				for _, u := range p.block.Term.Uses() {
					if r, ok := u.(*ir.Reg); ok {
						live[r] = true
					}
				}
			}
			continue
		}
		in := p.block.Instrs[p.index]
		if d := in.Def(); d != nil {
			delete(live, d)
		}
		for _, u := range in.Uses() {
			if r, ok := u.(*ir.Reg); ok {
				live[r] = true
			}
		}
	}

	if fn.Entry == nil {
		return
	}
	for r := range live {
		panic(fmt.Sprintf("optimize: register discipline violation in %s: r%d used without a reaching definition", fn.Name, r.ID))
	}
}
