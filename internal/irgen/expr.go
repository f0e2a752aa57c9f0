package irgen

import (
	"fmt"

	"github.com/cc2wasm/cc2wasm/internal/ast"
	"github.com/cc2wasm/cc2wasm/internal/diagnostic"
	"github.com/cc2wasm/cc2wasm/internal/ir"
	"github.com/cc2wasm/cc2wasm/internal/symtab"
	"github.com/cc2wasm/cc2wasm/internal/token"
	"github.com/cc2wasm/cc2wasm/internal/types"
)

// lowerExpr lowers e to a single value, emitting whatever instructions are
// needed into the current block. Every case returns a value whose Type()
// already reflects the expression's C type.
func (b *Builder) lowerExpr(e ast.Expr) ir.Value {
	switch e := e.(type) {
	case *ast.IntLit:
		return &ir.ConstInt{Val: e.Value, Ty: intLitType(e)}
	case *ast.FloatLit:
		ty := types.TDouble
		if e.IsSingle {
			ty = types.TFloat
		}
		return &ir.ConstFloat{Val: e.Value, Ty: ty}
	case *ast.CharLit:
		return &ir.ConstInt{Val: int64(e.Value), Ty: types.TChar}
	case *ast.StringLit:
		name := b.internString(e.Value)
		dst := b.fn.NewReg(types.PointerTo(types.TChar))
		b.emit(&ir.AddrOfGlobal{Dst: dst, Name: name})
		return dst
	case *ast.Ident:
		return b.lowerIdentValue(e)
	case *ast.BinaryExpr:
		return b.lowerBinary(e)
	case *ast.AssignExpr:
		return b.lowerAssign(e)
	case *ast.UnaryExpr:
		return b.lowerUnary(e)
	case *ast.IncDecExpr:
		return b.lowerIncDec(e)
	case *ast.CondExpr:
		return b.lowerCond(e)
	case *ast.CommaExpr:
		b.lowerExpr(e.X)
		return b.lowerExpr(e.Y)
	case *ast.CallExpr:
		return b.lowerCall(e)
	case *ast.IndexExpr:
		addr, ty := b.lowerAddr(e)
		return b.loadOrDecay(addr, ty)
	case *ast.MemberExpr:
		addr, ty := b.lowerAddr(e)
		return b.loadOrDecay(addr, ty)
	case *ast.CastExpr:
		return b.lowerCast(e)
	case *ast.SizeofExpr:
		var ty *types.Type
		if e.Spec != nil {
			ty = b.resolveDeclaredType(e.Spec, e.Decl)
		} else {
			ty = b.typeOfExpr(e.X)
		}
		return &ir.ConstInt{Val: int64(types.Size(ty)), Ty: types.TULong}
	}
	b.errorf(diagnostic.IRError, e.Pos(), "irgen: unhandled expression %T", e)
	return &ir.ConstInt{Val: 0, Ty: types.TInt}
}

// loadOrDecay reads a scalar through addr, or simply returns addr unchanged
// for an aggregate type (struct/union/array values are always referred to
// by address in this compiler's IR).
func (b *Builder) loadOrDecay(addr ir.Value, ty *types.Type) ir.Value {
	if ty.Kind == types.Array || ty.Kind == types.Struct || ty.Kind == types.Union {
		return addr
	}
	dst := b.fn.NewReg(ty)
	b.emit(&ir.Load{Dst: dst, Addr: addr, Ty: ty})
	return dst
}

func intLitType(e *ast.IntLit) *types.Type {
	if e.IsLong {
		if e.Unsigned {
			return types.TULong
		}
		return types.TLong
	}
	if e.Unsigned {
		return types.TUInt
	}
	return types.TInt
}

func (b *Builder) lowerIdentValue(e *ast.Ident) ir.Value {
	sym, ok := symtab.Lookup(b.scopeForLookup(), e.Name)
	if !ok {
		b.errorf(diagnostic.SemanticUndefined, e.P, "use of undeclared identifier '%s'", e.Name)
		return &ir.ConstInt{Val: 0, Ty: types.TInt}
	}
	switch sym.Kind {
	case symtab.EnumConst:
		return &ir.ConstInt{Val: sym.EnumValue, Ty: types.TInt}
	case symtab.FunctionSym:
		dst := b.fn.NewReg(types.PointerTo(sym.Type))
		b.emit(&ir.AddrOfGlobal{Dst: dst, Name: sym.Name})
		return dst
	}

	if local, ok := b.locals[sym]; ok {
		switch local.Ty.Kind {
		case types.Array:
			dst := b.fn.NewReg(types.PointerTo(local.Ty.Elem))
			b.emit(&ir.AddrOfLocal{Dst: dst, Local: local})
			return dst
		case types.Struct, types.Union:
			dst := b.fn.NewReg(types.PointerTo(local.Ty))
			b.emit(&ir.AddrOfLocal{Dst: dst, Local: local})
			return dst
		default:
			dst := b.fn.NewReg(local.Ty)
			b.emit(&ir.ReadLocal{Dst: dst, Local: local})
			return dst
		}
	}

	// File-scope global.
	switch sym.Type.Kind {
	case types.Array:
		dst := b.fn.NewReg(types.PointerTo(sym.Type.Elem))
		b.emit(&ir.AddrOfGlobal{Dst: dst, Name: sym.Name})
		return dst
	case types.Struct, types.Union:
		dst := b.fn.NewReg(types.PointerTo(sym.Type))
		b.emit(&ir.AddrOfGlobal{Dst: dst, Name: sym.Name})
		return dst
	default:
		addr := b.fn.NewReg(types.PointerTo(sym.Type))
		b.emit(&ir.AddrOfGlobal{Dst: addr, Name: sym.Name})
		return b.loadOrDecay(addr, sym.Type)
	}
}

// --- lvalues ---

// lvalue is a resolved assignment target: either a bare local (read/written
// through ReadLocal/WriteLocal with no address ever materialized) or a
// memory location (read/written through Load/Store).
type lvalue struct {
	isLocal bool
	local   *ir.Local
	addr    ir.Value
	ty      *types.Type
}

func (b *Builder) resolveLvalue(e ast.Expr) lvalue {
	if id, ok := e.(*ast.Ident); ok {
		if sym, ok2 := symtab.Lookup(b.scopeForLookup(), id.Name); ok2 {
			if local, ok3 := b.locals[sym]; ok3 {
				switch local.Ty.Kind {
				case types.Array, types.Struct, types.Union:
					// fall through to address-based lowering below
				default:
					return lvalue{isLocal: true, local: local, ty: local.Ty}
				}
			}
		}
	}
	addr, ty := b.lowerAddr(e)
	return lvalue{addr: addr, ty: ty}
}

func (b *Builder) loadLvalue(lv lvalue) ir.Value {
	if lv.isLocal {
		dst := b.fn.NewReg(lv.ty)
		b.emit(&ir.ReadLocal{Dst: dst, Local: lv.local})
		return dst
	}
	dst := b.fn.NewReg(lv.ty)
	b.emit(&ir.Load{Dst: dst, Addr: lv.addr, Ty: lv.ty})
	return dst
}

func (b *Builder) storeLvalue(lv lvalue, v ir.Value) {
	v = b.convert(v, lv.ty)
	if lv.isLocal {
		b.emit(&ir.WriteLocal{Local: lv.local, X: v})
		return
	}
	b.emit(&ir.Store{Addr: lv.addr, Val: v, Ty: lv.ty})
}

// lowerAddr resolves e as an addressable lvalue, returning its address and
// pointee type. It always materializes an address, even for a plain local
// (used by the '&' operator and by compound lvalues like p->field).
func (b *Builder) lowerAddr(e ast.Expr) (ir.Value, *types.Type) {
	switch e := e.(type) {
	case *ast.Ident:
		sym, ok := symtab.Lookup(b.scopeForLookup(), e.Name)
		if !ok {
			b.errorf(diagnostic.SemanticUndefined, e.P, "use of undeclared identifier '%s'", e.Name)
			return &ir.ConstInt{Val: 0, Ty: types.TInt}, types.TInt
		}
		if local, ok := b.locals[sym]; ok {
			local.AddressTaken = true
			dst := b.fn.NewReg(types.PointerTo(local.Ty))
			b.emit(&ir.AddrOfLocal{Dst: dst, Local: local})
			return dst, local.Ty
		}
		dst := b.fn.NewReg(types.PointerTo(sym.Type))
		b.emit(&ir.AddrOfGlobal{Dst: dst, Name: sym.Name})
		return dst, sym.Type
	case *ast.UnaryExpr:
		if e.Op == token.STAR {
			v := b.lowerExpr(e.X)
			if v.Type().Kind != types.Pointer {
				b.errorf(diagnostic.SemanticTypeMismatch, e.P, "indirection requires a pointer operand")
				return v, types.TInt
			}
			return v, v.Type().Elem
		}
	case *ast.IndexExpr:
		base, baseTy := b.lowerArrayBase(e.X)
		idx := b.lowerExpr(e.Index)
		elemTy := baseTy.Elem
		off := b.scaleIndex(b.convert(idx, types.TInt), types.Size(elemTy))
		dst := b.fn.NewReg(types.PointerTo(decayElem(elemTy)))
		b.emit(&ir.Gep{Dst: dst, Base: base, Offset: off})
		return dst, elemTy
	case *ast.MemberExpr:
		var base ir.Value
		var baseTy *types.Type
		if e.Arrow {
			base = b.lowerExpr(e.X)
			if base.Type().Kind != types.Pointer {
				b.errorf(diagnostic.SemanticTypeMismatch, e.P, "member reference requires a pointer operand for '->'")
				return base, types.TInt
			}
			baseTy = base.Type().Elem
		} else {
			base, baseTy = b.lowerAddr(e.X)
		}
		field, fty, ok := findField(baseTy, e.Field)
		if !ok {
			b.errorf(diagnostic.SemanticUndefined, e.P, "no member named '%s'", e.Field)
			return base, types.TInt
		}
		dst := b.fn.NewReg(types.PointerTo(decayElem(fty)))
		b.emit(&ir.Gep{Dst: dst, Base: base, Offset: &ir.ConstInt{Val: int64(field.Offset), Ty: types.TInt}})
		return dst, fty
	}
	b.errorf(diagnostic.SemanticNonLvalue, e.Pos(), "expression is not assignable")
	return &ir.ConstInt{Val: 0, Ty: types.TInt}, types.TInt
}

// decayElem returns the pointer target type to use for an address that
// denotes a field/element of array type: such an address is already the
// decayed "pointer to first element" form a reader would expect.
func decayElem(t *types.Type) *types.Type {
	if t.Kind == types.Array {
		return t.Elem
	}
	return t
}

// lowerArrayBase lowers e as the base of a subscript expression: for an
// array-typed lvalue this is its decayed address; for a pointer-typed
// expression it is the pointer's value. Either way lowerExpr already
// produces the right thing.
func (b *Builder) lowerArrayBase(e ast.Expr) (ir.Value, *types.Type) {
	v := b.lowerExpr(e)
	if v.Type().Kind != types.Pointer {
		b.errorf(diagnostic.SemanticTypeMismatch, e.Pos(), "subscripted value is not an array or pointer")
		return v, types.PointerTo(types.TInt)
	}
	return v, v.Type()
}

func (b *Builder) scaleIndex(idx ir.Value, size int) ir.Value {
	if size == 1 {
		return idx
	}
	dst := b.fn.NewReg(types.TInt)
	b.emit(&ir.BinOp{Dst: dst, Op: ir.Mul, X: idx, Y: &ir.ConstInt{Val: int64(size), Ty: types.TInt}})
	return dst
}

func findField(ty *types.Type, name string) (types.Field, *types.Type, bool) {
	for _, f := range ty.Fields {
		if f.Name == name {
			return f, f.Type, true
		}
	}
	return types.Field{}, nil, false
}

// --- assignment / increment ---

func (b *Builder) lowerAssign(e *ast.AssignExpr) ir.Value {
	lv := b.resolveLvalue(e.LHS)
	if e.CompoundOp == token.ILLEGAL {
		v := b.lowerExpr(e.RHS)
		b.storeLvalue(lv, v)
		return b.convert(v, lv.ty)
	}
	cur := b.loadLvalue(lv)
	rhs := b.lowerExpr(e.RHS)

	var result ir.Value
	if lv.ty.Kind == types.Pointer && (e.CompoundOp == token.ADD_ASSIGN || e.CompoundOp == token.SUB_ASSIGN) {
		op := token.PLUS
		if e.CompoundOp == token.SUB_ASSIGN {
			op = token.MINUS
		}
		result = b.lowerPointerPlusInt(cur, rhs, op)
	} else {
		result = b.applyBinOp(e.CompoundOp, cur, b.convert(rhs, lv.ty), lv.ty)
	}
	b.storeLvalue(lv, result)
	return result
}

func (b *Builder) lowerIncDec(e *ast.IncDecExpr) ir.Value {
	lv := b.resolveLvalue(e.X)
	cur := b.loadLvalue(lv)
	delta := int64(1)
	if e.Op == token.DEC {
		delta = -1
	}

	var next ir.Value
	switch {
	case lv.ty.Kind == types.Pointer:
		size := types.Size(lv.ty.Elem)
		off := &ir.ConstInt{Val: delta * int64(size), Ty: types.TInt}
		dst := b.fn.NewReg(lv.ty)
		b.emit(&ir.Gep{Dst: dst, Base: cur, Offset: off})
		next = dst
	case types.IsFloat(lv.ty):
		dst := b.fn.NewReg(lv.ty)
		b.emit(&ir.BinOp{Dst: dst, Op: ir.FAdd, X: cur, Y: &ir.ConstFloat{Val: float64(delta), Ty: lv.ty}})
		next = dst
	default:
		dst := b.fn.NewReg(lv.ty)
		b.emit(&ir.BinOp{Dst: dst, Op: ir.Add, X: cur, Y: &ir.ConstInt{Val: delta, Ty: lv.ty}})
		next = dst
	}
	b.storeLvalue(lv, next)
	if e.Prefix {
		return next
	}
	return cur
}

// --- unary / binary operators ---

func (b *Builder) lowerUnary(e *ast.UnaryExpr) ir.Value {
	switch e.Op {
	case token.AMP:
		addr, _ := b.lowerAddr(e.X)
		return addr
	case token.STAR:
		v := b.lowerExpr(e.X)
		if v.Type().Kind != types.Pointer {
			b.errorf(diagnostic.SemanticTypeMismatch, e.P, "indirection requires a pointer operand")
			return v
		}
		return b.loadOrDecay(v, v.Type().Elem)
	case token.MINUS:
		v := b.lowerExpr(e.X)
		ty := v.Type()
		dst := b.fn.NewReg(ty)
		if types.IsFloat(ty) {
			b.emit(&ir.BinOp{Dst: dst, Op: ir.FSub, X: zeroValue(ty), Y: v})
		} else {
			b.emit(&ir.BinOp{Dst: dst, Op: ir.Sub, X: zeroValue(ty), Y: v})
		}
		return dst
	case token.NOT:
		v := b.lowerExpr(e.X)
		dst := b.fn.NewReg(types.TInt)
		k := ir.CmpEq
		if types.IsFloat(v.Type()) {
			k = ir.CmpFEq
		}
		b.emit(&ir.Cmp{Dst: dst, Op: k, X: v, Y: zeroValue(v.Type())})
		return dst
	case token.TILDE:
		v := b.lowerExpr(e.X)
		dst := b.fn.NewReg(v.Type())
		b.emit(&ir.BinOp{Dst: dst, Op: ir.Xor, X: v, Y: &ir.ConstInt{Val: -1, Ty: v.Type()}})
		return dst
	}
	b.errorf(diagnostic.IRError, e.P, "irgen: unhandled unary operator %s", e.Op)
	return &ir.ConstInt{Val: 0, Ty: types.TInt}
}

func isComparisonOp(op token.Kind) bool {
	switch op {
	case token.EQ, token.NEQ, token.LT, token.GT, token.LE, token.GE:
		return true
	}
	return false
}

func (b *Builder) lowerBinary(e *ast.BinaryExpr) ir.Value {
	if e.Op == token.AND_AND || e.Op == token.OR_OR {
		return b.lowerLogical(e)
	}
	if isComparisonOp(e.Op) {
		return b.lowerComparison(e)
	}

	x := b.lowerExpr(e.X)
	y := b.lowerExpr(e.Y)

	if x.Type().Kind == types.Pointer && types.IsInteger(y.Type()) && (e.Op == token.PLUS || e.Op == token.MINUS) {
		return b.lowerPointerPlusInt(x, y, e.Op)
	}
	if e.Op == token.PLUS && y.Type().Kind == types.Pointer && types.IsInteger(x.Type()) {
		return b.lowerPointerPlusInt(y, x, token.PLUS)
	}
	if x.Type().Kind == types.Pointer && y.Type().Kind == types.Pointer && e.Op == token.MINUS {
		return b.lowerPointerDiff(x, y)
	}

	ty := types.CommonType(x.Type(), y.Type())
	x = b.convert(x, ty)
	y = b.convert(y, ty)
	return b.applyBinOp(e.Op, x, y, ty)
}

func (b *Builder) lowerPointerPlusInt(ptr, idx ir.Value, op token.Kind) ir.Value {
	elemTy := ptr.Type().Elem
	off := b.scaleIndex(b.convert(idx, types.TInt), types.Size(elemTy))
	if op == token.MINUS {
		neg := b.fn.NewReg(types.TInt)
		b.emit(&ir.BinOp{Dst: neg, Op: ir.Sub, X: zeroValue(types.TInt), Y: off})
		off = neg
	}
	dst := b.fn.NewReg(ptr.Type())
	b.emit(&ir.Gep{Dst: dst, Base: ptr, Offset: off})
	return dst
}

func (b *Builder) lowerPointerDiff(x, y ir.Value) ir.Value {
	xi := b.fn.NewReg(types.TInt)
	b.emit(&ir.Conv{Dst: xi, Op: ir.PtrToInt, X: x})
	yi := b.fn.NewReg(types.TInt)
	b.emit(&ir.Conv{Dst: yi, Op: ir.PtrToInt, X: y})
	diff := b.fn.NewReg(types.TInt)
	b.emit(&ir.BinOp{Dst: diff, Op: ir.Sub, X: xi, Y: yi})

	size := types.Size(x.Type().Elem)
	if size <= 1 {
		return diff
	}
	result := b.fn.NewReg(types.TInt)
	b.emit(&ir.BinOp{Dst: result, Op: ir.SDiv, X: diff, Y: &ir.ConstInt{Val: int64(size), Ty: types.TInt}})
	return result
}

func (b *Builder) lowerComparison(e *ast.BinaryExpr) ir.Value {
	x := b.lowerExpr(e.X)
	y := b.lowerExpr(e.Y)

	var opTy *types.Type
	if x.Type().Kind == types.Pointer || y.Type().Kind == types.Pointer {
		opTy = types.TULong // compared as raw (unsigned) linear-memory addresses
	} else {
		opTy = types.CommonType(x.Type(), y.Type())
		x = b.convert(x, opTy)
		y = b.convert(y, opTy)
	}

	dst := b.fn.NewReg(types.TInt)
	isFloat := types.IsFloat(opTy)
	signed := types.IsSigned(opTy)
	var k ir.CmpKind
	switch e.Op {
	case token.EQ:
		k = pick(isFloat, ir.CmpFEq, ir.CmpEq)
	case token.NEQ:
		k = pick(isFloat, ir.CmpFNe, ir.CmpNe)
	case token.LT:
		k = pickSigned(isFloat, signed, ir.CmpFLt, ir.CmpSlt, ir.CmpUlt)
	case token.GT:
		k = pickSigned(isFloat, signed, ir.CmpFGt, ir.CmpSgt, ir.CmpUgt)
	case token.LE:
		k = pickSigned(isFloat, signed, ir.CmpFLe, ir.CmpSle, ir.CmpUle)
	case token.GE:
		k = pickSigned(isFloat, signed, ir.CmpFGe, ir.CmpSge, ir.CmpUge)
	}
	b.emit(&ir.Cmp{Dst: dst, Op: k, X: x, Y: y})
	return dst
}

func pick(cond bool, a, bb ir.CmpKind) ir.CmpKind {
	if cond {
		return a
	}
	return bb
}

func pickSigned(isFloat, signed bool, f, s, u ir.CmpKind) ir.CmpKind {
	if isFloat {
		return f
	}
	if signed {
		return s
	}
	return u
}

// applyBinOp lowers a (possibly compound-assignment) arithmetic/bitwise
// operator token to the appropriate BinOp opcode for ty, picking the
// signed/unsigned/float form division, remainder, and right-shift require.
func (b *Builder) applyBinOp(op token.Kind, x, y ir.Value, ty *types.Type) ir.Value {
	isFloat := types.IsFloat(ty)
	signed := types.IsSigned(ty)
	var k ir.BinOpKind
	switch op {
	case token.PLUS, token.ADD_ASSIGN:
		k = pickBin(isFloat, ir.FAdd, ir.Add)
	case token.MINUS, token.SUB_ASSIGN:
		k = pickBin(isFloat, ir.FSub, ir.Sub)
	case token.STAR, token.MUL_ASSIGN:
		k = pickBin(isFloat, ir.FMul, ir.Mul)
	case token.SLASH, token.DIV_ASSIGN:
		if isFloat {
			k = ir.FDiv
		} else if signed {
			k = ir.SDiv
		} else {
			k = ir.UDiv
		}
	case token.PERCENT, token.MOD_ASSIGN:
		if signed {
			k = ir.SRem
		} else {
			k = ir.URem
		}
	case token.AMP, token.AND_ASSIGN:
		k = ir.And
	case token.PIPE, token.OR_ASSIGN:
		k = ir.Or
	case token.CARET, token.XOR_ASSIGN:
		k = ir.Xor
	case token.SHL, token.SHL_ASSIGN:
		k = ir.Shl
	case token.SHR, token.SHR_ASSIGN:
		if signed {
			k = ir.AShr
		} else {
			k = ir.LShr
		}
	default:
		b.errorf(diagnostic.IRError, token.Pos{}, "irgen: unhandled binary operator %s", op)
	}
	dst := b.fn.NewReg(ty)
	b.emit(&ir.BinOp{Dst: dst, Op: k, X: x, Y: y})
	return dst
}

func pickBin(cond bool, a, bb ir.BinOpKind) ir.BinOpKind {
	if cond {
		return a
	}
	return bb
}

// lowerBoolExpr lowers e and normalizes it to a 0/1 int suitable for a
// CondBr condition.
func (b *Builder) lowerBoolExpr(e ast.Expr) ir.Value {
	v := b.lowerExpr(e)
	ty := v.Type()
	dst := b.fn.NewReg(types.TInt)
	k := ir.CmpNe
	if types.IsFloat(ty) {
		k = ir.CmpFNe
	}
	b.emit(&ir.Cmp{Dst: dst, Op: k, X: v, Y: zeroValue(ty)})
	return dst
}

// lowerLogical lowers && and ||, short-circuiting via a Move into a shared
// result register from each reachable path, joined at a single successor
// block (Move is legal here precisely because Reg is not a strict SSA value:
// §data-model permits a register to be redefined from more than one
// predecessor without a phi node).
func (b *Builder) lowerLogical(e *ast.BinaryExpr) ir.Value {
	res := b.fn.NewReg(types.TInt)
	rhsBlk := b.newBlock("logical.rhs")
	shortBlk := b.newBlock("logical.short")
	join := b.newBlock("logical.join")

	xcond := b.lowerBoolExpr(e.X)
	if e.Op == token.AND_AND {
		b.setTerm(&ir.CondBr{Cond: xcond, True: rhsBlk, False: shortBlk})
	} else {
		b.setTerm(&ir.CondBr{Cond: xcond, True: shortBlk, False: rhsBlk})
	}

	b.cur = shortBlk
	shortVal := int64(0)
	if e.Op == token.OR_OR {
		shortVal = 1
	}
	b.emit(&ir.Move{Dst: res, X: &ir.ConstInt{Val: shortVal, Ty: types.TInt}})
	b.setTerm(&ir.Br{Target: join})

	b.cur = rhsBlk
	ycond := b.lowerBoolExpr(e.Y)
	b.emit(&ir.Move{Dst: res, X: ycond})
	b.setTerm(&ir.Br{Target: join})

	b.cur = join
	return res
}

func (b *Builder) lowerCond(e *ast.CondExpr) ir.Value {
	cond := b.lowerBoolExpr(e.Cond)
	thenBlk := b.newBlock("cond.then")
	elseBlk := b.newBlock("cond.else")
	join := b.newBlock("cond.join")
	b.setTerm(&ir.CondBr{Cond: cond, True: thenBlk, False: elseBlk})

	b.cur = thenBlk
	tv := b.lowerExpr(e.Then)
	thenEnd := b.cur

	b.cur = elseBlk
	ev := b.lowerExpr(e.Else)
	elseEnd := b.cur

	ty := types.CommonType(tv.Type(), ev.Type())
	res := b.fn.NewReg(ty)

	b.cur = thenEnd
	conv := b.convert(tv, ty)
	b.emit(&ir.Move{Dst: res, X: conv})
	b.setTerm(&ir.Br{Target: join})

	b.cur = elseEnd
	conv = b.convert(ev, ty)
	b.emit(&ir.Move{Dst: res, X: conv})
	b.setTerm(&ir.Br{Target: join})

	b.cur = join
	return res
}

func (b *Builder) lowerCast(e *ast.CastExpr) ir.Value {
	ty := b.resolveDeclaredType(e.Spec, e.Decl)
	v := b.lowerExpr(e.X)
	if ty.Kind == types.Pointer && v.Type().Kind == types.Pointer {
		dst := b.fn.NewReg(ty)
		b.emit(&ir.Move{Dst: dst, X: v})
		return dst
	}
	return b.convert(v, ty)
}

func (b *Builder) lowerCall(e *ast.CallExpr) ir.Value {
	var args []ir.Value
	for _, a := range e.Args {
		args = append(args, b.lowerExpr(a))
	}

	if id, ok := e.Callee.(*ast.Ident); ok {
		if sym, ok2 := symtab.Lookup(b.scopeForLookup(), id.Name); ok2 && sym.Kind == symtab.FunctionSym {
			retTy := sym.Type.Ret
			for i, p := range sym.Type.Params {
				if i < len(args) {
					args[i] = b.convert(args[i], p)
				}
			}
			var dst *ir.Reg
			if retTy.Kind != types.Void {
				dst = b.fn.NewReg(retTy)
			}
			b.emit(&ir.Call{Dst: dst, Callee: sym.Name, Args: args})
			if dst == nil {
				return &ir.ConstInt{Val: 0, Ty: types.TVoid}
			}
			return dst
		}
	}

	fnPtr := b.lowerExpr(e.Callee)
	if fnPtr.Type().Kind != types.Pointer || fnPtr.Type().Elem.Kind != types.Func {
		b.errorf(diagnostic.SemanticTypeMismatch, e.Pos(), "called object is not a function or function pointer")
		return &ir.ConstInt{Val: 0, Ty: types.TInt}
	}
	fty := fnPtr.Type().Elem
	var dst *ir.Reg
	if fty.Ret.Kind != types.Void {
		dst = b.fn.NewReg(fty.Ret)
	}
	b.emit(&ir.Call{Dst: dst, FnPtr: fnPtr, Args: args, Indirect: true})
	if dst == nil {
		return &ir.ConstInt{Val: 0, Ty: types.TVoid}
	}
	return dst
}

// --- conversions ---

func sameType(a, bt *types.Type) bool {
	if a == bt {
		return true
	}
	if a.Kind != bt.Kind {
		return false
	}
	if a.Kind == types.Pointer {
		return sameType(a.Elem, bt.Elem)
	}
	return true
}

// convert emits whatever Conv instruction is needed to turn v into a value
// of type to, per the usual conversion rules; a no-op if the types already
// match or are the same width (same-width integer/pointer reinterpretation
// needs no instruction).
func (b *Builder) convert(v ir.Value, to *types.Type) ir.Value {
	from := v.Type()
	if sameType(from, to) {
		return v
	}
	if types.IsFloat(from) && types.IsFloat(to) {
		if types.Size(from) < types.Size(to) {
			return b.emitConv(ir.FpExt, v, to)
		}
		return b.emitConv(ir.FpTrunc, v, to)
	}
	if types.IsFloat(from) {
		if types.IsSigned(to) {
			return b.emitConv(ir.FpToSi, v, to)
		}
		return b.emitConv(ir.FpToUi, v, to)
	}
	if types.IsFloat(to) {
		if types.IsSigned(from) {
			return b.emitConv(ir.SiToFp, v, to)
		}
		return b.emitConv(ir.UiToFp, v, to)
	}
	fs, ts := types.Size(from), types.Size(to)
	if fs == ts {
		if from.Kind == types.Pointer && to.Kind != types.Pointer {
			return b.emitConv(ir.PtrToInt, v, to)
		}
		if from.Kind != types.Pointer && to.Kind == types.Pointer {
			return b.emitConv(ir.IntToPtr, v, to)
		}
		return v
	}
	if fs < ts {
		if types.IsSigned(from) {
			return b.emitConv(ir.Sext, v, to)
		}
		return b.emitConv(ir.Zext, v, to)
	}
	return b.emitConv(ir.Trunc, v, to)
}

func (b *Builder) emitConv(op ir.ConvKind, v ir.Value, to *types.Type) ir.Value {
	dst := b.fn.NewReg(to)
	b.emit(&ir.Conv{Dst: dst, Op: op, X: v})
	return dst
}

// --- sizeof's static type inference (must not evaluate its operand) ---

func (b *Builder) typeOfExpr(e ast.Expr) *types.Type {
	switch e := e.(type) {
	case *ast.IntLit:
		return intLitType(e)
	case *ast.FloatLit:
		if e.IsSingle {
			return types.TFloat
		}
		return types.TDouble
	case *ast.CharLit:
		return types.TChar
	case *ast.StringLit:
		return types.PointerTo(types.TChar)
	case *ast.Ident:
		sym, ok := symtab.Lookup(b.scopeForLookup(), e.Name)
		if !ok {
			return types.TInt
		}
		if sym.Kind == symtab.EnumConst {
			return types.TInt
		}
		return sym.Type
	case *ast.UnaryExpr:
		switch e.Op {
		case token.STAR:
			t := b.typeOfExpr(e.X)
			if t.Kind == types.Pointer {
				return t.Elem
			}
			return types.TInt
		case token.AMP:
			return types.PointerTo(b.typeOfExpr(e.X))
		default:
			return b.typeOfExpr(e.X)
		}
	case *ast.IndexExpr:
		t := b.typeOfExpr(e.X)
		if t.Kind == types.Pointer || t.Kind == types.Array {
			return t.Elem
		}
		return types.TInt
	case *ast.MemberExpr:
		t := b.typeOfExpr(e.X)
		if e.Arrow && t.Kind == types.Pointer {
			t = t.Elem
		}
		if _, fty, ok := findField(t, e.Field); ok {
			return fty
		}
		return types.TInt
	case *ast.CastExpr:
		return b.resolveDeclaredType(e.Spec, e.Decl)
	case *ast.BinaryExpr:
		return types.CommonType(b.typeOfExpr(e.X), b.typeOfExpr(e.Y))
	case *ast.CondExpr:
		return types.CommonType(b.typeOfExpr(e.Then), b.typeOfExpr(e.Else))
	case *ast.CallExpr:
		if id, ok := e.Callee.(*ast.Ident); ok {
			if sym, ok2 := symtab.Lookup(b.scopeForLookup(), id.Name); ok2 {
				return sym.Type.Ret
			}
		}
		return types.TInt
	case *ast.SizeofExpr:
		return types.TULong
	}
	return types.TInt
}

// internString returns the name of the read-only data global holding s's
// NUL-terminated bytes, interning it on first use.
func (b *Builder) internString(s string) string {
	if name, ok := b.strIdx[s]; ok {
		return name
	}
	name := fmt.Sprintf(".str.%d", len(b.strIdx))
	data := append([]byte(s), 0)
	b.mod.Globals = append(b.mod.Globals, &ir.Global{
		Name:     name,
		Ty:       types.ArrayOf(types.TChar, len(data)),
		Init:     data,
		ReadOnly: true,
	})
	b.strIdx[s] = name
	return name
}
