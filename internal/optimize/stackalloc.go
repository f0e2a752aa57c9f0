package optimize

import (
	"sort"

	"github.com/cc2wasm/cc2wasm/internal/ir"
	"github.com/cc2wasm/cc2wasm/internal/types"
)

// placedSlot is one already-assigned byte range in the frame. Slots are
// kept in placement order, and the search for a free offset
// (lowestFreeOffset) scans them linearly with no early exit.
type placedSlot struct {
	local  *ir.Local
	offset int
	size   int
	iv     Interval
}

// Allocate assigns every local that needs shadow-stack storage a byte
// offset in fn's frame and sets fn.FrameSize. A local needs a slot if it is
// address-taken, or an array/struct/union (always accessed through its
// address per the desugaring contracts), or it was touched through
// ReadLocal/WriteLocal and therefore has a computed interval (locals that
// irgen decided could live purely in registers never reach here because
// nothing in the function ever referenced them as an *ir.Local).
//
// packed selects between the greedy interval-graph packing policy and the
// unoptimised one-slot-per-local diagnostic mode.
func Allocate(fn *ir.Function, res *Result, packed bool) {
	locals := localsNeedingSlots(fn)
	if len(locals) == 0 {
		fn.FrameSize = 0
		return
	}

	if !packed {
		allocateUnpacked(fn, locals)
		return
	}

	type candidate struct {
		local    *ir.Local
		iv       Interval
		size     int
		align    int
		universe bool // address-taken: clashes with everything
	}

	cands := make([]candidate, 0, len(locals))
	for _, l := range locals {
		iv, ok := res.Interval(l)
		if !ok {
			// Touched only via AddrOfLocal with no recorded interval is
			// impossible (LVA records AddrOfLocal touches too), but guard
			// defensively: treat as live for the whole function.
			iv = Interval{Local: l, Start: 0, End: len(res.Order)}
		}
		cands = append(cands, candidate{
			local:    l,
			iv:       iv,
			size:     types.Size(l.Ty),
			align:    types.Align(l.Ty),
			universe: l.AddressTaken,
		})
	}

	// Sort by decreasing interval length, ties by decreasing size, then by
	// stable id (original discovery order, via index in locals/cands).
	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}
	length := func(c candidate) int { return c.iv.End - c.iv.Start }
	sort.SliceStable(order, func(i, j int) bool {
		a, b := cands[order[i]], cands[order[j]]
		if la, lb := length(a), length(b); la != lb {
			return la > lb
		}
		if a.size != b.size {
			return a.size > b.size
		}
		return order[i] < order[j]
	})

	var placed []placedSlot
	frameSize := 0

	for _, idx := range order {
		c := cands[idx]

		// An address-taken candidate clashes with the universe: every
		// placed slot is forbidden regardless of interval overlap. A
		// non-address-taken candidate still avoids any placed local that
		// is itself address-taken (same universe rule, from the other
		// side), plus any placed local whose interval overlaps it.
		var forbidden []placedSlot
		for _, p := range placed {
			if c.universe || p.local.AddressTaken || p.iv.Overlaps(c.iv) {
				forbidden = append(forbidden, p)
			}
		}

		offset := lowestFreeOffset(forbidden, c.align, c.size)
		c.local.Loc = ir.Location{Kind: ir.LocStackSlot, Offset: offset}
		placed = append(placed, placedSlot{local: c.local, offset: offset, size: c.size, iv: c.iv})
		if end := offset + c.size; end > frameSize {
			frameSize = end
		}
	}

	fn.FrameSize = frameSize
}

// lowestFreeOffset finds the lowest offset, aligned to align, at or above 0
// whose [offset, offset+size) range avoids every forbidden slot's byte
// range. forbidden need not be sorted; the candidate set here is small
// (per-function local counts), so a linear scan with restart is used
// rather than maintaining the sorted-vector structure's early-exit
// optimisation.
func lowestFreeOffset(forbidden []placedSlot, align, size int) int {
	offset := 0
	for {
		offset = alignUp(offset, align)
		conflict := false
		for _, f := range forbidden {
			if rangesOverlap(offset, size, f.offset, f.size) {
				// Advance past this forbidden range and retry.
				offset = f.offset + f.size
				conflict = true
				break
			}
		}
		if !conflict {
			return offset
		}
	}
}

func rangesOverlap(off1, size1, off2, size2 int) bool {
	return off1 < off2+size2 && off2 < off1+size1
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// allocateUnpacked is the diagnostic mode: every local gets its own slot,
// naturally aligned, with no byte-range sharing at all.
func allocateUnpacked(fn *ir.Function, locals []*ir.Local) {
	offset := 0
	for _, l := range locals {
		size, align := types.Size(l.Ty), types.Align(l.Ty)
		offset = alignUp(offset, align)
		l.Loc = ir.Location{Kind: ir.LocStackSlot, Offset: offset}
		offset += size
	}
	fn.FrameSize = offset
}

func localsNeedingSlots(fn *ir.Function) []*ir.Local {
	needsSlot := make(map[*ir.Local]bool)
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			switch in := in.(type) {
			case *ir.WriteLocal:
				needsSlot[in.Local] = true
			case *ir.ReadLocal:
				needsSlot[in.Local] = true
			case *ir.AddrOfLocal:
				needsSlot[in.Local] = true
			}
		}
	}
	// Parameters have a fixed ABI position (FP + R + their declaration-
	// order offset, per spec §6) assigned by the emitter directly; they
	// never compete for a packed slot in the local variable area.
	var out []*ir.Local
	for _, l := range fn.Locals {
		if l.IsParam {
			continue
		}
		if l.AddressTaken || l.Ty.Kind == types.Struct || l.Ty.Kind == types.Union || l.Ty.Kind == types.Array || needsSlot[l] {
			out = append(out, l)
		}
	}
	return out
}
