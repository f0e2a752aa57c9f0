// Package irgen is the semantic analyser / IR builder: it resolves
// identifiers, computes static types, lays out aggregates, desugars C
// constructs, and lowers each function definition to the three-address IR
// of internal/ir over an explicit CFG of basic blocks, accumulating
// diagnostics as it goes (spec §4.1). It owns the AST exclusively for the
// duration of lowering; neither the AST nor the symbol table it builds is
// retained once Build returns.
package irgen

import (
	"github.com/cc2wasm/cc2wasm/internal/ast"
	"github.com/cc2wasm/cc2wasm/internal/diagnostic"
	"github.com/cc2wasm/cc2wasm/internal/ir"
	"github.com/cc2wasm/cc2wasm/internal/symtab"
	"github.com/cc2wasm/cc2wasm/internal/token"
	"github.com/cc2wasm/cc2wasm/internal/types"
)

// Builder lowers one translation unit to an ir.Module.
type Builder struct {
	diags  *diagnostic.Diagnostics
	syms   *symtab.Table
	file   *symtab.Scope
	tags   map[string]*types.Type // struct/union/enum tag name -> type
	funcs  map[string]*ir.Function
	strIdx map[string]string // string literal content -> global name
	mod    *ir.Module

	fn     *ir.Function
	scope  *symtab.Scope
	cur    *ir.BasicBlock
	locals map[*symtab.Symbol]*ir.Local

	// breakStack/continueStack track the nearest enclosing break/continue
	// target, in nesting order; a switch pushes only onto breakStack (a
	// "continue" inside a switch passes through to the enclosing loop).
	breakStack    []*ir.BasicBlock
	continueStack []*ir.BasicBlock

	labels       map[string]*ir.BasicBlock
	pendingGotos []pendingGoto
}

type pendingGoto struct {
	block *ir.BasicBlock
	label string
	pos   token.Pos
}

// Build lowers tu to an ir.Module. If any semantic error is accumulated, no
// IR is returned (nil), matching the accumulate-then-abort propagation rule
// of the error handling design.
func Build(file string, tu *ast.TranslationUnit) (*ir.Module, *diagnostic.Diagnostics) {
	b := &Builder{
		diags:  diagnostic.New(),
		syms:   symtab.New(),
		tags:   make(map[string]*types.Type),
		funcs:  make(map[string]*ir.Function),
		strIdx: make(map[string]string),
		mod:    &ir.Module{},
	}
	b.file = b.syms.NewScope(nil, symtab.FileScope)

	// First pass: register every tag, typedef, and function prototype so
	// forward references (mutual recursion, use-before-definition in
	// source order) resolve.
	for _, d := range tu.Decls {
		b.registerTopDecl(d)
	}
	// Second pass: lower function bodies and global initializers.
	for _, d := range tu.Decls {
		b.lowerTopDecl(d)
	}

	if b.diags.HasErrors() {
		return nil, b.diags
	}
	if _, ok := b.funcs["main"]; ok {
		b.mod.EntryFunc = "main"
	}
	return b.mod, b.diags
}

func (b *Builder) errorf(kind diagnostic.Kind, pos token.Pos, format string, args ...interface{}) {
	b.diags.Errorf(kind, pos, format, args...)
}

// --- Registration pass ---

func (b *Builder) registerTopDecl(d ast.Decl) {
	switch d := d.(type) {
	case *ast.TypedefDecl:
		ty := b.resolveDeclaredType(d.Spec, d.Decl)
		if _, ok := b.syms.Declare(b.file, d.Decl.Name, symtab.Typedef, ty, symtab.TypedefClass); !ok {
			b.errorf(diagnostic.SemanticDuplicate, d.P, "redeclaration of typedef '%s'", d.Decl.Name)
		}
	case *ast.TagDecl:
		b.resolveTagType(d.Spec)
	case *ast.FuncDecl:
		retTy := b.resolveBaseType(d.Spec)
		var params []*types.Type
		for _, p := range d.Decl.Params {
			params = append(params, b.resolveDeclaredType(p.Spec, p.Decl))
		}
		fty := types.FuncOf(retTy, params, d.Decl.Variadic)
		if sym, ok := symtab.LookupLocal(b.file, d.Decl.Name); ok {
			sym.Type = fty // prototype refined by definition
		} else {
			b.syms.Declare(b.file, d.Decl.Name, symtab.FunctionSym, fty, symtab.Auto)
		}
	case *ast.VarDecl:
		for _, id := range d.Decls {
			ty := b.resolveDeclaredType(d.Spec, id.Decl)
			if _, ok := b.syms.Declare(b.file, id.Decl.Name, symtab.Variable, ty, storageOf(d.Spec.Storage)); !ok {
				b.errorf(diagnostic.SemanticDuplicate, d.P, "redeclaration of '%s'", id.Decl.Name)
			}
		}
	}
}

func storageOf(s string) symtab.StorageClass {
	switch s {
	case "static":
		return symtab.Static
	case "extern":
		return symtab.Extern
	case "register":
		return symtab.Register
	default:
		return symtab.Auto
	}
}

// --- Lowering pass ---

func (b *Builder) lowerTopDecl(d ast.Decl) {
	switch d := d.(type) {
	case *ast.FuncDecl:
		b.lowerFunc(d)
	case *ast.VarDecl:
		b.lowerGlobalVar(d)
	}
}

func (b *Builder) lowerGlobalVar(d *ast.VarDecl) {
	for _, id := range d.Decls {
		ty := b.resolveDeclaredType(d.Spec, id.Decl)
		g := &ir.Global{Name: id.Decl.Name, Ty: ty}
		g.Init = make([]byte, types.Size(ty))
		if id.Init != nil {
			if lit, ok := constIntValue(id.Init); ok {
				putLE(g.Init, lit)
			}
		}
		b.mod.Globals = append(b.mod.Globals, g)
	}
}

// constIntValue evaluates a constant-integer initializer expression; used
// only for simple global scalar initializers.
func constIntValue(e ast.Expr) (int64, bool) {
	switch e := e.(type) {
	case *ast.IntLit:
		return e.Value, true
	case *ast.UnaryExpr:
		if e.Op == token.MINUS {
			if v, ok := constIntValue(e.X); ok {
				return -v, true
			}
		}
	}
	return 0, false
}

func putLE(buf []byte, v int64) {
	for i := 0; i < len(buf); i++ {
		buf[i] = byte(v >> (8 * uint(i)))
	}
}

func (b *Builder) lowerFunc(d *ast.FuncDecl) {
	retTy := b.resolveBaseType(d.Spec)
	fn := &ir.Function{Name: d.Decl.Name, ReturnType: retTy, Variadic: d.Decl.Variadic}
	if sym, ok := symtab.LookupLocal(b.file, d.Decl.Name); ok {
		sym.Location = symtab.Location{}
	}
	if d.Body == nil {
		fn.IsExtern = true
		for _, p := range d.Decl.Params {
			pty := b.resolveDeclaredType(p.Spec, p.Decl)
			fn.Params = append(fn.Params, &ir.Local{Name: p.Decl.Name, Ty: pty, IsParam: true})
		}
		b.mod.Functions = append(b.mod.Functions, fn)
		b.funcs[fn.Name] = fn
		return
	}

	b.fn = fn
	b.scope = b.syms.NewScope(b.file, symtab.FunctionScope)
	b.locals = make(map[*symtab.Symbol]*ir.Local)
	b.labels = make(map[string]*ir.BasicBlock)
	b.pendingGotos = nil
	b.breakStack, b.continueStack = nil, nil

	entry := fn.NewBlock("entry")
	fn.Entry = entry
	b.cur = entry

	for _, p := range d.Decl.Params {
		pty := b.resolveDeclaredType(p.Spec, p.Decl)
		sym, _ := b.syms.Declare(b.scope, p.Decl.Name, symtab.Parameter, pty, symtab.Auto)
		loc := &ir.Local{Name: p.Decl.Name, Ty: pty, IsParam: true}
		fn.Params = append(fn.Params, loc)
		fn.Locals = append(fn.Locals, loc)
		b.locals[sym] = loc
	}

	b.lowerStmt(d.Body)

	// Resolve forward gotos now that every label in the function has been
	// visited.
	for _, g := range b.pendingGotos {
		target, ok := b.labels[g.label]
		if !ok {
			b.errorf(diagnostic.SemanticUndefined, g.pos, "use of undeclared label '%s'", g.label)
			continue
		}
		g.block.Term = &ir.Br{Target: target}
	}

	// Every block must end with a terminator; a function falling off the
	// end returns the zero value (void) or is a builder bug for non-void
	// functions reaching here without a return on every path (left to the
	// checker to flag in a fuller implementation — we terminate
	// defensively to preserve the CFG invariant).
	if b.cur.Term == nil {
		if retTy.Kind == types.Void {
			b.cur.Term = &ir.Ret{}
		} else {
			b.cur.Term = &ir.Ret{Value: zeroValue(retTy)}
		}
	}

	ir.RebuildPreds(fn)
	b.mod.Functions = append(b.mod.Functions, fn)
	b.funcs[fn.Name] = fn
}

func zeroValue(ty *types.Type) ir.Value {
	if types.IsFloat(ty) {
		return &ir.ConstFloat{Val: 0, Ty: ty}
	}
	return &ir.ConstInt{Val: 0, Ty: ty}
}

// emit appends a non-terminator instruction to the current block.
func (b *Builder) emit(i ir.Instr) { b.cur.Emit(i) }

// setTerm sets the current block's terminator; the block is "closed" and
// subsequent lowering continues in a freshly created block unless the
// caller supplies one (loop/if/switch lowering manage this explicitly).
func (b *Builder) setTerm(t ir.Term) {
	if b.cur.Term == nil {
		b.cur.Term = t
	}
}

func (b *Builder) newBlock(label string) *ir.BasicBlock { return b.fn.NewBlock(label) }
