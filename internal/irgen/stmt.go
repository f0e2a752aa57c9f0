package irgen

import (
	"github.com/cc2wasm/cc2wasm/internal/ast"
	"github.com/cc2wasm/cc2wasm/internal/diagnostic"
	"github.com/cc2wasm/cc2wasm/internal/ir"
	"github.com/cc2wasm/cc2wasm/internal/symtab"
	"github.com/cc2wasm/cc2wasm/internal/types"
)

// lowerStmt lowers one statement into the current block, advancing b.cur as
// control-flow constructs open and close blocks. Every exit path from a
// lowered construct either falls through into a new open block or ends in a
// terminator; lowerStmt never leaves b.cur pointing at a block with an
// unrelated terminator already set.
func (b *Builder) lowerStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.BlockStmt:
		b.lowerBlock(s)
	case *ast.VarDecl:
		b.lowerLocalVarDecl(s)
	case *ast.TypedefDecl:
		ty := b.resolveDeclaredType(s.Spec, s.Decl)
		if _, ok := b.syms.Declare(b.scope, s.Decl.Name, symtab.Typedef, ty, symtab.TypedefClass); !ok {
			b.errorf(diagnostic.SemanticDuplicate, s.P, "redeclaration of typedef '%s'", s.Decl.Name)
		}
	case *ast.TagDecl:
		b.resolveTagType(s.Spec)
	case *ast.ExprStmt:
		b.lowerExpr(s.X)
	case *ast.IfStmt:
		b.lowerIf(s)
	case *ast.WhileStmt:
		b.lowerWhile(s)
	case *ast.DoWhileStmt:
		b.lowerDoWhile(s)
	case *ast.ForStmt:
		b.lowerFor(s)
	case *ast.SwitchStmt:
		b.lowerSwitch(s)
	case *ast.BreakStmt:
		if len(b.breakStack) == 0 {
			b.errorf(diagnostic.SemanticControlFlow, s.P, "'break' outside loop or switch")
			return
		}
		b.setTerm(&ir.Br{Target: b.breakStack[len(b.breakStack)-1]})
	case *ast.ContinueStmt:
		if len(b.continueStack) == 0 {
			b.errorf(diagnostic.SemanticControlFlow, s.P, "'continue' outside loop")
			return
		}
		b.setTerm(&ir.Br{Target: b.continueStack[len(b.continueStack)-1]})
	case *ast.ReturnStmt:
		b.lowerReturn(s)
	case *ast.GotoStmt:
		b.pendingGotos = append(b.pendingGotos, pendingGoto{block: b.cur, label: s.Label, pos: s.P})
		b.cur = b.newBlock("after_goto")
	case *ast.LabeledStmt:
		target := b.labelBlock(s.Label)
		if b.cur.Term == nil {
			b.cur.Term = &ir.Br{Target: target}
		}
		b.cur = target
		b.lowerStmt(s.Stmt)
	case *ast.EmptyStmt:
		// nothing to do
	default:
		b.errorf(diagnostic.IRError, s.Pos(), "irgen: unhandled statement %T", s)
	}
}

// labelBlock returns the block registered for label, creating it the first
// time it is seen (a label may be referenced by a goto lowered before the
// label itself is reached in source order).
func (b *Builder) labelBlock(label string) *ir.BasicBlock {
	if blk, ok := b.labels[label]; ok {
		return blk
	}
	blk := b.newBlock("label_" + label)
	b.labels[label] = blk
	return blk
}

func (b *Builder) lowerBlock(block *ast.BlockStmt) {
	outer := b.scope
	b.scope = b.syms.NewScope(outer, symtab.BlockScope)
	for _, st := range block.Stmts {
		b.lowerStmt(st)
	}
	b.scope = outer
}

func (b *Builder) lowerLocalVarDecl(d *ast.VarDecl) {
	for _, id := range d.Decls {
		ty := b.resolveDeclaredType(d.Spec, id.Decl)
		sym, ok := b.syms.Declare(b.scope, id.Decl.Name, symtab.Variable, ty, storageOf(d.Spec.Storage))
		if !ok {
			b.errorf(diagnostic.SemanticDuplicate, d.P, "redeclaration of '%s'", id.Decl.Name)
			continue
		}
		local := &ir.Local{Name: id.Decl.Name, Ty: ty}
		b.fn.Locals = append(b.fn.Locals, local)
		b.locals[sym] = local

		if id.Init == nil {
			continue
		}
		if ty.Kind == types.Struct || ty.Kind == types.Union || ty.Kind == types.Array {
			// Aggregate initializers are not part of the supported subset;
			// the declaration still registers storage so member/element
			// access against it resolves correctly.
			continue
		}
		v := b.lowerExpr(id.Init)
		v = b.convert(v, ty)
		b.emit(&ir.WriteLocal{Local: local, X: v})
	}
}

func (b *Builder) lowerReturn(s *ast.ReturnStmt) {
	if s.Value == nil {
		b.setTerm(&ir.Ret{})
		return
	}
	v := b.lowerExpr(s.Value)
	v = b.convert(v, b.fn.ReturnType)
	b.setTerm(&ir.Ret{Value: v})
}

func (b *Builder) lowerIf(s *ast.IfStmt) {
	cond := b.lowerBoolExpr(s.Cond)
	thenBlk := b.newBlock("if.then")
	var elseBlk *ir.BasicBlock
	join := b.newBlock("if.join")
	if s.Else != nil {
		elseBlk = b.newBlock("if.else")
		b.setTerm(&ir.CondBr{Cond: cond, True: thenBlk, False: elseBlk})
	} else {
		b.setTerm(&ir.CondBr{Cond: cond, True: thenBlk, False: join})
	}

	b.cur = thenBlk
	b.lowerStmt(s.Then)
	if b.cur.Term == nil {
		b.cur.Term = &ir.Br{Target: join}
	}

	if s.Else != nil {
		b.cur = elseBlk
		b.lowerStmt(s.Else)
		if b.cur.Term == nil {
			b.cur.Term = &ir.Br{Target: join}
		}
	}

	b.cur = join
}

func (b *Builder) lowerWhile(s *ast.WhileStmt) {
	header := b.newBlock("while.header")
	body := b.newBlock("while.body")
	exit := b.newBlock("while.exit")

	b.setTerm(&ir.Br{Target: header})

	b.cur = header
	cond := b.lowerBoolExpr(s.Cond)
	b.setTerm(&ir.CondBr{Cond: cond, True: body, False: exit})

	b.breakStack = append(b.breakStack, exit)
	b.continueStack = append(b.continueStack, header)
	b.cur = body
	b.lowerStmt(s.Body)
	if b.cur.Term == nil {
		b.cur.Term = &ir.Br{Target: header}
	}
	b.breakStack = b.breakStack[:len(b.breakStack)-1]
	b.continueStack = b.continueStack[:len(b.continueStack)-1]

	b.cur = exit
}

func (b *Builder) lowerDoWhile(s *ast.DoWhileStmt) {
	body := b.newBlock("do.body")
	condBlk := b.newBlock("do.cond")
	exit := b.newBlock("do.exit")

	b.setTerm(&ir.Br{Target: body})

	b.breakStack = append(b.breakStack, exit)
	b.continueStack = append(b.continueStack, condBlk)
	b.cur = body
	b.lowerStmt(s.Body)
	if b.cur.Term == nil {
		b.cur.Term = &ir.Br{Target: condBlk}
	}
	b.breakStack = b.breakStack[:len(b.breakStack)-1]
	b.continueStack = b.continueStack[:len(b.continueStack)-1]

	b.cur = condBlk
	cond := b.lowerBoolExpr(s.Cond)
	b.setTerm(&ir.CondBr{Cond: cond, True: body, False: exit})

	b.cur = exit
}

func (b *Builder) lowerFor(s *ast.ForStmt) {
	outer := b.scope
	b.scope = b.syms.NewScope(outer, symtab.BlockScope)
	defer func() { b.scope = outer }()

	if s.Init != nil {
		b.lowerStmt(s.Init)
	}

	header := b.newBlock("for.header")
	body := b.newBlock("for.body")
	step := b.newBlock("for.step")
	exit := b.newBlock("for.exit")

	b.setTerm(&ir.Br{Target: header})

	b.cur = header
	if s.Cond != nil {
		cond := b.lowerBoolExpr(s.Cond)
		b.setTerm(&ir.CondBr{Cond: cond, True: body, False: exit})
	} else {
		b.setTerm(&ir.Br{Target: body})
	}

	b.breakStack = append(b.breakStack, exit)
	b.continueStack = append(b.continueStack, step)
	b.cur = body
	b.lowerStmt(s.Body)
	if b.cur.Term == nil {
		b.cur.Term = &ir.Br{Target: step}
	}
	b.breakStack = b.breakStack[:len(b.breakStack)-1]
	b.continueStack = b.continueStack[:len(b.continueStack)-1]

	b.cur = step
	if s.Step != nil {
		b.lowerExpr(s.Step)
	}
	b.setTerm(&ir.Br{Target: header})

	b.cur = exit
}

// lowerSwitch lowers a switch statement to an ir.Switch terminator dispatching
// to one block per case label, falling through between adjacent case bodies
// exactly as C's switch does (each CaseStmt/DefaultStmt marker only opens a
// new block; it does not implicitly break).
func (b *Builder) lowerSwitch(s *ast.SwitchStmt) {
	tag := b.lowerExpr(s.Tag)
	tag = b.convert(tag, types.TInt)

	exit := b.newBlock("switch.exit")

	segBlocks := make([]*ir.BasicBlock, len(s.Body.Stmts))
	var cases []ir.SwitchCase
	var defaultBlk *ir.BasicBlock
	for i, st := range s.Body.Stmts {
		switch cs := st.(type) {
		case *ast.CaseStmt:
			blk := b.newBlock("switch.case")
			segBlocks[i] = blk
			if v, ok := constIntValue(cs.Value); ok {
				cases = append(cases, ir.SwitchCase{Value: v, Target: blk})
			} else {
				b.errorf(diagnostic.SemanticTypeMismatch, cs.P, "case label does not reduce to a constant expression")
			}
		case *ast.DefaultStmt:
			blk := b.newBlock("switch.default")
			segBlocks[i] = blk
			defaultBlk = blk
		}
	}
	if defaultBlk == nil {
		defaultBlk = exit
	}
	b.setTerm(&ir.Switch{Tag: tag, Cases: cases, Default: defaultBlk, Dense: switchIsDense(cases)})

	b.breakStack = append(b.breakStack, exit)
	for i, st := range s.Body.Stmts {
		if segBlocks[i] != nil {
			if b.cur.Term == nil {
				b.cur.Term = &ir.Br{Target: segBlocks[i]}
			}
			b.cur = segBlocks[i]
			continue
		}
		b.lowerStmt(st)
	}
	if b.cur.Term == nil {
		b.cur.Term = &ir.Br{Target: exit}
	}
	b.breakStack = b.breakStack[:len(b.breakStack)-1]

	b.cur = exit
}

// switchIsDense reports whether case labels form a range tight enough that a
// br_table jump table is worth the padding at emission time, rather than a
// cascade of equality comparisons.
func switchIsDense(cases []ir.SwitchCase) bool {
	if len(cases) < 2 {
		return len(cases) == 1
	}
	min, max := cases[0].Value, cases[0].Value
	for _, c := range cases[1:] {
		if c.Value < min {
			min = c.Value
		}
		if c.Value > max {
			max = c.Value
		}
	}
	span := max - min + 1
	return span == int64(len(cases)) || (span > 0 && span < 512 && span < int64(len(cases))*4)
}
