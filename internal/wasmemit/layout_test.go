package wasmemit

import (
	"testing"

	"github.com/cc2wasm/cc2wasm/internal/ir"
	"github.com/cc2wasm/cc2wasm/internal/types"
)

// diamond builds entry -> {then, else} -> join, the CFG a plain if/else
// with no early return produces.
func diamond() *ir.Function {
	fn := &ir.Function{Name: "f", ReturnType: types.TVoid}
	entry := fn.NewBlock("entry")
	thenB := fn.NewBlock("then")
	elseB := fn.NewBlock("else")
	join := fn.NewBlock("join")
	fn.Entry = entry

	cond := fn.NewReg(types.TInt)
	entry.Emit(&ir.Move{Dst: cond, X: &ir.ConstInt{Val: 1, Ty: types.TInt}})
	entry.Term = &ir.CondBr{Cond: cond, True: thenB, False: elseB}
	thenB.Term = &ir.Br{Target: join}
	elseB.Term = &ir.Br{Target: join}
	join.Term = &ir.Ret{}
	return fn
}

// loopFn builds entry -> header -> {body -> header, exit}, the CFG a
// while loop produces.
func loopFn() *ir.Function {
	fn := &ir.Function{Name: "f", ReturnType: types.TVoid}
	entry := fn.NewBlock("entry")
	header := fn.NewBlock("header")
	body := fn.NewBlock("body")
	exit := fn.NewBlock("exit")
	fn.Entry = entry

	cond := fn.NewReg(types.TInt)
	entry.Term = &ir.Br{Target: header}
	header.Emit(&ir.Move{Dst: cond, X: &ir.ConstInt{Val: 1, Ty: types.TInt}})
	header.Term = &ir.CondBr{Cond: cond, True: body, False: exit}
	body.Term = &ir.Br{Target: header}
	exit.Term = &ir.Ret{}
	return fn
}

func TestBuildLayoutDiamondIsReducible(t *testing.T) {
	lay := buildLayout(diamond())
	if !lay.reducible {
		t.Fatal("expected a diamond if/else CFG to be reducible")
	}
	if len(lay.order) != 4 {
		t.Fatalf("expected 4 blocks in order, got %d", len(lay.order))
	}
	// then must precede else, and both must precede join, under
	// reversed-successor RPO (CondBr lists [True, False]).
	pos := lay.pos
	thenPos, elsePos, joinPos := -1, -1, -1
	for _, b := range lay.order {
		switch b.Label {
		case "then":
			thenPos = pos[b]
		case "else":
			elsePos = pos[b]
		case "join":
			joinPos = pos[b]
		}
	}
	if !(thenPos < elsePos && elsePos < joinPos) {
		t.Errorf("expected then < else < join in RPO order, got then=%d else=%d join=%d", thenPos, elsePos, joinPos)
	}
}

func TestBuildLayoutLoopMarksHeader(t *testing.T) {
	fn := loopFn()
	lay := buildLayout(fn)
	if !lay.reducible {
		t.Fatal("expected a simple while-loop CFG to be reducible")
	}

	var loopWrapper *wrapper
	for i := range lay.wrappers {
		if lay.wrappers[i].kind == wrapLoop {
			loopWrapper = &lay.wrappers[i]
		}
	}
	if loopWrapper == nil {
		t.Fatal("expected a loop wrapper for the back edge body -> header")
	}
	if loopWrapper.target.Label != "header" {
		t.Errorf("expected the loop wrapper's target to be the header block, got %q", loopWrapper.target.Label)
	}
}

func TestWrappersNestRejectsPartialOverlap(t *testing.T) {
	ws := []wrapper{
		{kind: wrapBlock, open: 0, close: 3},
		{kind: wrapBlock, open: 1, close: 4},
	}
	if wrappersNest(ws) {
		t.Error("expected a partially overlapping wrapper pair to be rejected")
	}
}

func TestWrappersNestAcceptsNestedAndDisjoint(t *testing.T) {
	ws := []wrapper{
		{kind: wrapBlock, open: 0, close: 4},
		{kind: wrapBlock, open: 1, close: 2},
		{kind: wrapBlock, open: 5, close: 6},
	}
	if !wrappersNest(ws) {
		t.Error("expected nested and disjoint wrappers to be accepted")
	}
}

func TestSortWrappersOrdersOuterFirst(t *testing.T) {
	ws := []wrapper{
		{kind: wrapBlock, open: 0, close: 2},
		{kind: wrapBlock, open: 0, close: 5},
	}
	sortWrappers(ws)
	if ws[0].close != 5 {
		t.Errorf("expected the wrapper closing later (outer) to sort first, got close=%d", ws[0].close)
	}
}
