package wasmemit

import (
	"fmt"

	"github.com/cc2wasm/cc2wasm/internal/ir"
	"github.com/cc2wasm/cc2wasm/internal/types"
)

// funcCompiler lowers one defined function's CFG to a Wasm code-section
// entry. Every compiled (non-extern) function uses the memory-resident
// calling convention described in DESIGN.md: a caller never passes Wasm
// call operands or receives a Wasm call result — it stages the callee's
// parameters into the callee's future frame (computed from the current
// shadow-stack pointer) and, after the call returns, reads the return
// value back out of that same memory. Every Wasm function therefore has
// type () -> (), and `local.get`/`local.set` only ever move values between
// a register's dedicated Wasm local and linear memory.
type funcCompiler struct {
	gen *generator
	fn  *ir.Function
	fl  frameLayout
	lay *layout

	regLocal     map[*ir.Reg]uint32
	savedFP      uint32
	scratch      uint32 // reusable i32 scratch for address computation / call staging
	localDecls   []byte // raw declared-locals types, one per index from 0
	code         []byte
}

func newFuncCompiler(gen *generator, fn *ir.Function) *funcCompiler {
	fc := &funcCompiler{
		gen:      gen,
		fn:       fn,
		fl:       frameLayoutForFunc(fn),
		lay:      buildLayout(fn),
		regLocal: make(map[*ir.Reg]uint32),
	}
	fc.savedFP = fc.allocLocal(valI32)
	fc.scratch = fc.allocLocal(valI32)
	return fc
}

func (fc *funcCompiler) allocLocal(vt byte) uint32 {
	idx := uint32(len(fc.localDecls))
	fc.localDecls = append(fc.localDecls, vt)
	return idx
}

func (fc *funcCompiler) regLocalIdx(r *ir.Reg) uint32 {
	if idx, ok := fc.regLocal[r]; ok {
		return idx
	}
	idx := fc.allocLocal(valueType(r.Ty))
	fc.regLocal[r] = idx
	return idx
}

// compile lowers fn's body and returns the Wasm code-section entry bytes
// (locals vector + expression body + end), not including the entry's own
// length prefix.
func (fc *funcCompiler) compile() []byte {
	if !fc.lay.reducible {
		return fc.compileDispatchFallback()
	}

	fc.emitPrologue()

	wrappers := fc.lay.wrappers
	opensAt, closesAt := groupWrappersByPosition(wrappers)
	var openStack []int

	for pos, b := range fc.lay.order {
		for len(openStack) > 0 {
			top := openStack[len(openStack)-1]
			if wrappers[top].close != pos {
				break
			}
			openStack = openStack[:len(openStack)-1]
			fc.emit(opEnd)
		}
		for _, idx := range opensAt[pos] {
			w := wrappers[idx]
			if w.kind == wrapLoop {
				fc.emit(opLoop)
			} else {
				fc.emit(opBlock)
			}
			fc.emit(blockVoid)
			openStack = append(openStack, idx)
		}

		for _, in := range b.Instrs {
			fc.lowerInstr(in)
		}
		fc.lowerTerm(b.Term, pos, openStack)
	}
	for len(openStack) > 0 {
		openStack = openStack[:len(openStack)-1]
		fc.emit(opEnd)
	}
	_ = closesAt

	return fc.finish()
}

func (fc *funcCompiler) finish() []byte {
	fc.emit(opEnd)
	var out []byte
	out = append(out, encodeLocalsVector(fc.localDecls)...)
	out = append(out, fc.code...)
	return out
}

// encodeLocalsVector run-length encodes the declared-local types the way
// a compact Wasm local declaration vector requires: groups of consecutive
// same-type locals collapse into one (count, type) pair.
func encodeLocalsVector(types []byte) []byte {
	var groups [][2]byte // count capped at 255 is not a real concern here; widen if needed
	for _, t := range types {
		if len(groups) > 0 && groups[len(groups)-1][1] == t && groups[len(groups)-1][0] < 255 {
			groups[len(groups)-1][0]++
			continue
		}
		groups = append(groups, [2]byte{1, t})
	}
	var body []byte
	for _, g := range groups {
		body = append(body, encodeLEB128U(uint64(g[0]))...)
		body = append(body, g[1])
	}
	return encodeVector(len(groups), body)
}

func groupWrappersByPosition(ws []wrapper) (opensAt, closesAt map[int][]int) {
	opensAt = make(map[int][]int)
	closesAt = make(map[int][]int)
	for i, w := range ws {
		opensAt[w.open] = append(opensAt[w.open], i)
		closesAt[w.close] = append(closesAt[w.close], i)
	}
	return
}

func (fc *funcCompiler) emit(b ...byte) { fc.code = append(fc.code, b...) }

func (fc *funcCompiler) emitPrologue() {
	// savedFP := load(framePtrAddr)
	fc.emit(opI32Const)
	fc.emit(encodeLEB128S(framePtrAddr)...)
	fc.emit(opI32Load)
	fc.emit(memarg(2, 0)...)
	fc.emit(opLocalSet)
	fc.emit(encodeLEB128U(uint64(fc.savedFP))...)

	// framePtrAddr := load(stackPtrAddr)   (our FP == current SP; the
	// caller staged our retval/params area there and never bumped SP)
	fc.emit(opI32Const)
	fc.emit(encodeLEB128S(framePtrAddr)...)
	fc.emit(opI32Const)
	fc.emit(encodeLEB128S(stackPtrAddr)...)
	fc.emit(opI32Load)
	fc.emit(memarg(2, 0)...)
	fc.emit(opI32Store)
	fc.emit(memarg(2, 0)...)

	// stackPtrAddr := framePtr + totalFrameSize (reserve the whole frame,
	// including the retval/params area the caller already wrote into)
	fc.emit(opI32Const)
	fc.emit(encodeLEB128S(stackPtrAddr)...)
	fc.emit(opI32Const)
	fc.emit(encodeLEB128S(framePtrAddr)...)
	fc.emit(opI32Load)
	fc.emit(memarg(2, 0)...)
	fc.emit(opI32Const)
	fc.emit(encodeLEB128S(int64(fc.fl.totalFrameSize))...)
	fc.emit(opI32Add)
	fc.emit(opI32Store)
	fc.emit(memarg(2, 0)...)

	// Copy each parameter out of the frame's memory-resident param slot
	// into its ir.Local's backing store address is the same slot, so
	// nothing further is needed here: ReadLocal/WriteLocal on a parameter
	// already address the frame directly. No register shadow copy is
	// made up front; the first ReadLocal of a parameter loads straight
	// from where the caller wrote it.
}

func (fc *funcCompiler) emitEpilogue() {
	// stackPtrAddr := load(framePtrAddr)
	fc.emit(opI32Const)
	fc.emit(encodeLEB128S(stackPtrAddr)...)
	fc.emit(opI32Const)
	fc.emit(encodeLEB128S(framePtrAddr)...)
	fc.emit(opI32Load)
	fc.emit(memarg(2, 0)...)
	fc.emit(opI32Store)
	fc.emit(memarg(2, 0)...)

	// framePtrAddr := savedFP
	fc.emit(opI32Const)
	fc.emit(encodeLEB128S(framePtrAddr)...)
	fc.emit(opLocalGet)
	fc.emit(encodeLEB128U(uint64(fc.savedFP))...)
	fc.emit(opI32Store)
	fc.emit(memarg(2, 0)...)
}

// emitLocalAddr pushes the linear-memory address of l's storage (its
// frame-relative offset, applied to the current FP) onto the stack.
func (fc *funcCompiler) emitLocalAddr(l *ir.Local) {
	var offset int
	if l.IsParam {
		offset = fc.paramOffset(l)
	} else {
		offset = fc.fl.localsOffset + l.Loc.Offset
	}
	fc.emit(opI32Const)
	fc.emit(encodeLEB128S(framePtrAddr)...)
	fc.emit(opI32Load)
	fc.emit(memarg(2, 0)...)
	fc.emit(opI32Const)
	fc.emit(encodeLEB128S(int64(offset))...)
	fc.emit(opI32Add)
}

func (fc *funcCompiler) paramOffset(l *ir.Local) int {
	for i, p := range fc.fn.Params {
		if p == l {
			return fc.fl.paramOffsets[i]
		}
	}
	panic("wasmemit: local not found among params: " + l.Name)
}

func (fc *funcCompiler) pushValue(v ir.Value) {
	switch v := v.(type) {
	case *ir.Reg:
		fc.emit(opLocalGet)
		fc.emit(encodeLEB128U(uint64(fc.regLocalIdx(v)))...)
	case *ir.ConstInt:
		switch valueType(v.Ty) {
		case valI64:
			fc.emit(opI64Const)
			fc.emit(encodeLEB128S(v.Val)...)
		default:
			fc.emit(opI32Const)
			fc.emit(encodeLEB128S(v.Val)...)
		}
	case *ir.ConstFloat:
		switch valueType(v.Ty) {
		case valF32:
			fc.emit(opF32Const)
			fc.emit(encodeF32(float32(v.Val))...)
		default:
			fc.emit(opF64Const)
			fc.emit(encodeF64(v.Val)...)
		}
	default:
		panic(fmt.Sprintf("wasmemit: unhandled value %T", v))
	}
}

func (fc *funcCompiler) setReg(r *ir.Reg) {
	fc.emit(opLocalSet)
	fc.emit(encodeLEB128U(uint64(fc.regLocalIdx(r)))...)
}

func (fc *funcCompiler) lowerInstr(in ir.Instr) {
	switch in := in.(type) {
	case *ir.BinOp:
		fc.pushValue(in.X)
		fc.pushValue(in.Y)
		fc.emit(binOpcode(in.Op, valueType(in.Dst.Ty)))
		fc.setReg(in.Dst)
	case *ir.Cmp:
		fc.pushValue(in.X)
		fc.pushValue(in.Y)
		fc.emit(cmpOpcode(in.Op, valueType(in.X.Type()), isUnsigned(in.X.Type())))
		fc.setReg(in.Dst)
	case *ir.Conv:
		fc.lowerConv(in)
	case *ir.Load:
		fc.pushValue(in.Addr)
		fc.emitTypedLoad(in.Ty)
		fc.setReg(in.Dst)
	case *ir.Store:
		fc.pushValue(in.Addr)
		fc.pushValue(in.Val)
		fc.emitTypedStore(in.Ty)
	case *ir.AddrOfLocal:
		fc.emitLocalAddr(in.Local)
		fc.setReg(in.Dst)
	case *ir.AddrOfGlobal:
		fc.emit(opI32Const)
		fc.emit(encodeLEB128S(int64(fc.gen.symbolValue(in.Name)))...)
		fc.setReg(in.Dst)
	case *ir.Gep:
		fc.pushValue(in.Base)
		fc.pushValue(in.Offset)
		fc.emit(opI32Add)
		fc.setReg(in.Dst)
	case *ir.Move:
		fc.pushValue(in.X)
		fc.setReg(in.Dst)
	case *ir.WriteLocal:
		fc.emitLocalAddr(in.Local)
		fc.pushValue(in.X)
		fc.emitTypedStore(in.Local.Ty)
	case *ir.ReadLocal:
		fc.emitLocalAddr(in.Local)
		fc.emitTypedLoad(in.Local.Ty)
		fc.setReg(in.Dst)
	case *ir.Call:
		fc.lowerCall(in)
	default:
		panic(fmt.Sprintf("wasmemit: unhandled instruction %T", in))
	}
}

func (fc *funcCompiler) lowerConv(in *ir.Conv) {
	srcVT := valueType(in.X.Type())
	dstVT := valueType(in.Dst.Ty)
	switch in.Op {
	case ir.Sext, ir.Zext:
		fc.pushValue(in.X)
		if srcVT != valI64 && dstVT == valI64 {
			if in.Op == ir.Sext {
				fc.emit(opI64ExtendI32S)
			} else {
				fc.emit(opI64ExtendI32U)
			}
		}
		// Same-width (both i32-mapped) widening is a no-op at the Wasm
		// level; the narrow source is assumed already normalised by the
		// instruction that produced it (see Trunc below).
		fc.setReg(in.Dst)
	case ir.Trunc:
		fc.pushValue(in.X)
		if srcVT == valI64 && dstVT != valI64 {
			fc.emit(opI32WrapI64)
		}
		if bits := types.Size(in.Dst.Ty) * 8; bits < 32 {
			fc.emitNarrow(bits, !isUnsigned(in.Dst.Ty))
		}
		fc.setReg(in.Dst)
	case ir.SiToFp, ir.UiToFp:
		fc.pushValue(in.X)
		fc.emit(intToFloatOp(srcVT, dstVT, in.Op == ir.UiToFp))
		fc.setReg(in.Dst)
	case ir.FpToSi, ir.FpToUi:
		fc.pushValue(in.X)
		fc.emit(floatToIntOp(srcVT, dstVT, in.Op == ir.FpToUi))
		fc.setReg(in.Dst)
	case ir.FpTrunc:
		fc.pushValue(in.X)
		fc.emit(opF32DemoteF64)
		fc.setReg(in.Dst)
	case ir.FpExt:
		fc.pushValue(in.X)
		fc.emit(opF64PromoteF32)
		fc.setReg(in.Dst)
	case ir.PtrToInt, ir.IntToPtr:
		fc.pushValue(in.X)
		fc.setReg(in.Dst)
	default:
		panic(fmt.Sprintf("wasmemit: unhandled conversion op %v", in.Op))
	}
}

// emitNarrow truncates the i32 on top of the stack to the given bit width,
// sign-extending back out to 32 bits if signed is true.
func (fc *funcCompiler) emitNarrow(bits int, signed bool) {
	shift := int64(32 - bits)
	mask := int64((uint64(1) << uint(bits)) - 1)
	if signed {
		fc.emit(opI32Const)
		fc.emit(encodeLEB128S(shift)...)
		fc.emit(opI32Shl)
		fc.emit(opI32Const)
		fc.emit(encodeLEB128S(shift)...)
		fc.emit(opI32ShrS)
	} else {
		fc.emit(opI32Const)
		fc.emit(encodeLEB128S(mask)...)
		fc.emit(opI32And)
	}
}

func intToFloatOp(srcVT, dstVT byte, unsigned bool) byte {
	switch {
	case srcVT == valI64 && dstVT == valF64:
		if unsigned {
			return opF64ConvertI64U
		}
		return opF64ConvertI64S
	case srcVT == valI64 && dstVT == valF32:
		if unsigned {
			return opF32ConvertI64U
		}
		return opF32ConvertI64S
	case dstVT == valF64:
		if unsigned {
			return opF64ConvertI32U
		}
		return opF64ConvertI32S
	default:
		if unsigned {
			return opF32ConvertI32U
		}
		return opF32ConvertI32S
	}
}

func floatToIntOp(srcVT, dstVT byte, unsigned bool) byte {
	switch {
	case dstVT == valI64 && srcVT == valF64:
		if unsigned {
			return opI64TruncF64U
		}
		return opI64TruncF64S
	case dstVT == valI64:
		if unsigned {
			return opI64TruncF32U
		}
		return opI64TruncF32S
	case srcVT == valF64:
		if unsigned {
			return opI32TruncF64U
		}
		return opI32TruncF64S
	default:
		if unsigned {
			return opI32TruncF32U
		}
		return opI32TruncF32S
	}
}

func (fc *funcCompiler) emitTypedLoad(t *types.Type) {
	var op byte
	switch t.Kind {
	case types.Char:
		op = opI32Load8S
	case types.UChar:
		op = opI32Load8U
	case types.Short:
		op = opI32Load16S
	case types.UShort:
		op = opI32Load16U
	case types.Long, types.ULong:
		op = opI64Load
	case types.Float:
		op = opF32Load
	case types.Double:
		op = opF64Load
	default:
		op = opI32Load
	}
	fc.emit(op)
	fc.emit(memarg0...)
}

func (fc *funcCompiler) emitTypedStore(t *types.Type) {
	var op byte
	switch t.Kind {
	case types.Char, types.UChar:
		op = opI32Store8
	case types.Short, types.UShort:
		op = opI32Store16
	case types.Long, types.ULong:
		op = opI64Store
	case types.Float:
		op = opF32Store
	case types.Double:
		op = opF64Store
	default:
		op = opI32Store
	}
	fc.emit(op)
	fc.emit(memarg0...)
}

var memarg0 = memarg(2, 0)

func binOpcode(op ir.BinOpKind, vt byte) byte {
	switch op {
	case ir.Add:
		return pick(vt, opI32Add, opI64Add, opF32Add, opF64Add)
	case ir.Sub:
		return pick(vt, opI32Sub, opI64Sub, opF32Sub, opF64Sub)
	case ir.Mul:
		return pick(vt, opI32Mul, opI64Mul, opF32Mul, opF64Mul)
	case ir.SDiv:
		if vt == valI64 {
			return opI64DivS
		}
		return opI32DivS
	case ir.UDiv:
		if vt == valI64 {
			return opI64DivU
		}
		return opI32DivU
	case ir.SRem:
		if vt == valI64 {
			return opI64RemS
		}
		return opI32RemS
	case ir.URem:
		if vt == valI64 {
			return opI64RemU
		}
		return opI32RemU
	case ir.And:
		if vt == valI64 {
			return opI64And
		}
		return opI32And
	case ir.Or:
		if vt == valI64 {
			return opI64Or
		}
		return opI32Or
	case ir.Xor:
		if vt == valI64 {
			return opI64Xor
		}
		return opI32Xor
	case ir.Shl:
		if vt == valI64 {
			return opI64Shl
		}
		return opI32Shl
	case ir.AShr:
		if vt == valI64 {
			return opI64ShrS
		}
		return opI32ShrS
	case ir.LShr:
		if vt == valI64 {
			return opI64ShrU
		}
		return opI32ShrU
	case ir.FAdd:
		return pick(vt, opF32Add, opF64Add, opF32Add, opF64Add)
	case ir.FSub:
		return pick(vt, opF32Sub, opF64Sub, opF32Sub, opF64Sub)
	case ir.FMul:
		return pick(vt, opF32Mul, opF64Mul, opF32Mul, opF64Mul)
	case ir.FDiv:
		return pick(vt, opF32Div, opF64Div, opF32Div, opF64Div)
	}
	panic(fmt.Sprintf("wasmemit: unhandled binop %v", op))
}

func pick(vt byte, i32, i64, f32, f64 byte) byte {
	switch vt {
	case valI64:
		return i64
	case valF32:
		return f32
	case valF64:
		return f64
	default:
		return i32
	}
}

func cmpOpcode(op ir.CmpKind, operandVT byte, unsigned bool) byte {
	is64 := operandVT == valI64
	isF32 := operandVT == valF32
	isF64 := operandVT == valF64
	switch op {
	case ir.CmpEq:
		switch {
		case is64:
			return opI64Eq
		case isF32:
			return opF32Eq
		case isF64:
			return opF64Eq
		default:
			return opI32Eq
		}
	case ir.CmpNe:
		switch {
		case is64:
			return opI64Ne
		case isF32:
			return opF32Ne
		case isF64:
			return opF64Ne
		default:
			return opI32Ne
		}
	case ir.CmpSlt:
		if is64 {
			return opI64LtS
		}
		return opI32LtS
	case ir.CmpUlt:
		if is64 {
			return opI64LtU
		}
		return opI32LtU
	case ir.CmpSle:
		if is64 {
			return opI64LeS
		}
		return opI32LeS
	case ir.CmpUle:
		if is64 {
			return opI64LeU
		}
		return opI32LeU
	case ir.CmpSgt:
		if is64 {
			return opI64GtS
		}
		return opI32GtS
	case ir.CmpUgt:
		if is64 {
			return opI64GtU
		}
		return opI32GtU
	case ir.CmpSge:
		if is64 {
			return opI64GeS
		}
		return opI32GeS
	case ir.CmpUge:
		if is64 {
			return opI64GeU
		}
		return opI32GeU
	case ir.CmpFLt:
		if isF64 {
			return opF64Lt
		}
		return opF32Lt
	case ir.CmpFLe:
		if isF64 {
			return opF64Le
		}
		return opF32Le
	case ir.CmpFGt:
		if isF64 {
			return opF64Gt
		}
		return opF32Gt
	case ir.CmpFGe:
		if isF64 {
			return opF64Ge
		}
		return opF32Ge
	case ir.CmpFEq:
		if isF64 {
			return opF64Eq
		}
		return opF32Eq
	case ir.CmpFNe:
		if isF64 {
			return opF64Ne
		}
		return opF32Ne
	}
	panic(fmt.Sprintf("wasmemit: unhandled comparison %v", op))
}

func (fc *funcCompiler) lowerCall(call *ir.Call) {
	if !call.Indirect {
		if target, ok := fc.gen.funcs[call.Callee]; ok && target.IsExtern {
			fc.lowerExternCall(call, target)
			return
		}
	}
	fc.lowerMemoryCall(call)
}

// lowerExternCall invokes a host-provided import directly with real Wasm
// operands; imports are Go glue, not compiled C, so they do not
// participate in the shadow-stack convention. A variadic import (printf)
// takes its declared fixed parameters normally, then one extra i32: the
// address of a scratch buffer this call site packs the variadic tail into
// (each argument padded to 8 bytes so the host side can step through it
// uniformly), built atop the current, still-unreserved shadow-stack
// pointer the same way a memory-convention call stages its arguments.
func (fc *funcCompiler) lowerExternCall(call *ir.Call, target *ir.Function) {
	fixed := len(target.Params)
	for i := 0; i < fixed && i < len(call.Args); i++ {
		fc.pushValue(call.Args[i])
	}
	if target.Variadic {
		fc.emit(opI32Const)
		fc.emit(encodeLEB128S(stackPtrAddr)...)
		fc.emit(opI32Load)
		fc.emit(memarg0...)
		fc.emit(opLocalSet)
		fc.emit(encodeLEB128U(uint64(fc.scratch))...)

		for i := fixed; i < len(call.Args); i++ {
			fc.emit(opLocalGet)
			fc.emit(encodeLEB128U(uint64(fc.scratch))...)
			fc.emit(opI32Const)
			fc.emit(encodeLEB128S(int64((i - fixed) * 8))...)
			fc.emit(opI32Add)
			fc.pushValue(call.Args[i])
			fc.emitTypedStore(call.Args[i].Type())
		}
		fc.emit(opLocalGet)
		fc.emit(encodeLEB128U(uint64(fc.scratch))...)
	}
	fc.emit(opCall)
	fc.emit(encodeLEB128U(uint64(fc.gen.funcIndex[call.Callee]))...)
	if call.Dst != nil {
		fc.setReg(call.Dst)
	}
}

// lowerMemoryCall invokes a compiled function (direct or indirect) through
// the shadow-stack memory convention: arguments are written into the
// callee's future frame before the call, and the return value is read
// back out of it afterward.
func (fc *funcCompiler) lowerMemoryCall(call *ir.Call) {
	var retType *types.Type = types.TVoid
	if call.Dst != nil {
		retType = call.Dst.Ty
	}
	argTypes := make([]*types.Type, len(call.Args))
	for i, a := range call.Args {
		argTypes[i] = a.Type()
	}
	cfl := computeFrameLayout(retType, argTypes, 0)

	// scratch := load(stackPtrAddr)   -- the callee's future FP
	fc.emit(opI32Const)
	fc.emit(encodeLEB128S(stackPtrAddr)...)
	fc.emit(opI32Load)
	fc.emit(memarg0...)
	fc.emit(opLocalSet)
	fc.emit(encodeLEB128U(uint64(fc.scratch))...)

	for i, a := range call.Args {
		fc.emit(opLocalGet)
		fc.emit(encodeLEB128U(uint64(fc.scratch))...)
		fc.emit(opI32Const)
		fc.emit(encodeLEB128S(int64(cfl.paramOffsets[i]))...)
		fc.emit(opI32Add)
		fc.pushValue(a)
		fc.emitTypedStore(argTypes[i])
	}

	if call.Indirect {
		fc.pushValue(call.FnPtr)
		fc.emit(opCallIndirect)
		fc.emit(encodeLEB128U(uint64(fc.gen.compiledFuncType))...)
		fc.emit(0x00)
	} else {
		fc.emit(opCall)
		fc.emit(encodeLEB128U(uint64(fc.gen.funcIndex[call.Callee]))...)
	}

	if call.Dst != nil {
		fc.emit(opLocalGet)
		fc.emit(encodeLEB128U(uint64(fc.scratch))...)
		fc.emitTypedLoad(retType)
		fc.setReg(call.Dst)
	}
}

func (fc *funcCompiler) lowerTerm(term ir.Term, pos int, openStack []int) {
	switch t := term.(type) {
	case *ir.Br:
		fc.emitBranchOrFallthrough(t.Target, pos, openStack, 0)
	case *ir.CondBr:
		fc.pushValue(t.Cond)
		fc.emit(opIf, blockVoid)
		fc.emitBranchOrFallthrough(t.True, pos, openStack, 1)
		fc.emit(opElse)
		fc.emitBranchOrFallthrough(t.False, pos, openStack, 1)
		fc.emit(opEnd)
	case *ir.Switch:
		fc.lowerSwitch(t, pos, openStack)
	case *ir.Ret:
		if t.Value != nil {
			fc.emit(opI32Const)
			fc.emit(encodeLEB128S(framePtrAddr)...)
			fc.emit(opI32Load)
			fc.emit(memarg0...)
			fc.pushValue(t.Value)
			fc.emitTypedStore(fc.fn.ReturnType)
		}
		fc.emitEpilogue()
		fc.emit(opReturn)
	default:
		panic(fmt.Sprintf("wasmemit: unhandled terminator %T", term))
	}
}

// emitBranchOrFallthrough emits nothing when target is literally the next
// block in program order (pure fallthrough); otherwise it emits a br to
// target's enclosing wrapper, at depth extraNesting deeper than the
// currently open wrapper stack (extraNesting accounts for being inside a
// CondBr's own if/else arm, which is not itself a named wrapper).
func (fc *funcCompiler) emitBranchOrFallthrough(target *ir.BasicBlock, pos int, openStack []int, extraNesting int) {
	if fc.lay.pos[target] == pos+1 {
		return
	}
	depth := depthTo(openStack, fc.lay.wrappers, target)
	if depth < 0 {
		panic("wasmemit: branch target has no enclosing wrapper: " + target.Label)
	}
	fc.emit(opBr)
	fc.emit(encodeLEB128U(uint64(depth+extraNesting))...)
}

func (fc *funcCompiler) lowerSwitch(sw *ir.Switch, pos int, openStack []int) {
	if sw.Dense {
		// br_table indexes directly off the stack value with no
		// implicit offset, so the table must be built over the full
		// [min, max] span and the tag normalized by subtracting min
		// before it's pushed — case labels rarely start at 0 (enums,
		// `case 10:`...).
		min, max := sw.Cases[0].Value, sw.Cases[0].Value
		for _, c := range sw.Cases[1:] {
			if c.Value < min {
				min = c.Value
			}
			if c.Value > max {
				max = c.Value
			}
		}
		defaultDepth := depthTo(openStack, fc.lay.wrappers, sw.Default)
		span := int(max-min) + 1
		table := make([]uint64, span)
		for i := range table {
			table[i] = uint64(defaultDepth)
		}
		for _, c := range sw.Cases {
			table[int(c.Value-min)] = uint64(depthTo(openStack, fc.lay.wrappers, c.Target))
		}
		depths := make([]byte, 0, span*2)
		for _, d := range table {
			depths = append(depths, encodeLEB128U(d)...)
		}

		fc.pushValue(sw.Tag)
		if min != 0 {
			fc.emit(opI32Const)
			fc.emit(encodeLEB128S(min)...)
			fc.emit(opI32Sub)
		}
		fc.emit(opBrTable)
		fc.emit(encodeVector(span, depths)...)
		fc.emit(encodeLEB128U(uint64(defaultDepth))...)
		return
	}

	for _, c := range sw.Cases {
		fc.pushValue(sw.Tag)
		fc.emit(opI32Const)
		fc.emit(encodeLEB128S(c.Value)...)
		fc.emit(opI32Eq)
		fc.emit(opBrIf)
		d := depthTo(openStack, fc.lay.wrappers, c.Target)
		fc.emit(encodeLEB128U(uint64(d))...)
	}
	fc.emitBranchOrFallthrough(sw.Default, pos, openStack, 0)
}

// compileDispatchFallback handles the rare irreducible CFG (typically a
// goto jumping into the middle of a loop from outside it) that the
// bracket-nesting translation above cannot express: a single dispatch
// loop, keyed by a synthetic block-index local, replaces the whole
// function body. Every block becomes one arm of a br_table; falling off a
// block sets the index local to its successor and loops back around. This
// is deliberately simple rather than optimal — see DESIGN.md.
func (fc *funcCompiler) compileDispatchFallback() []byte {
	fc.emitPrologue()

	idxLocal := fc.allocLocal(valI32)
	fc.emit(opI32Const)
	fc.emit(encodeLEB128S(0)...)
	fc.emit(opLocalSet)
	fc.emit(encodeLEB128U(uint64(idxLocal))...)

	fc.emit(opLoop, blockVoid)
	fc.emit(opBlock, blockVoid)
	for range fc.lay.order {
		fc.emit(opBlock, blockVoid)
	}

	n := len(fc.lay.order)
	fc.emit(opLocalGet)
	fc.emit(encodeLEB128U(uint64(idxLocal))...)
	table := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		table = append(table, encodeLEB128U(uint64(i))...)
	}
	fc.emit(opBrTable)
	fc.emit(encodeVector(n, table)...)
	fc.emit(encodeLEB128U(uint64(n))...)

	for i, b := range fc.lay.order {
		fc.emit(opEnd) // close the wrapper block numbered i
		for _, in := range b.Instrs {
			fc.lowerInstr(in)
		}
		fc.lowerDispatchTerm(b.Term, idxLocal)
		_ = i
	}
	fc.emit(opEnd) // outer block
	fc.emit(opEnd) // loop

	return fc.finish()
}

func (fc *funcCompiler) lowerDispatchTerm(term ir.Term, idxLocal uint32) {
	// After block i's wrapper has closed, the wrappers of blocks i+1..n-1
	// and the outer block still enclose its code, so the loop is n-i levels
	// out; nest adds one for a branch inside an if arm.
	loopDepth := 0
	for i, b := range fc.lay.order {
		if b.Term == term {
			loopDepth = len(fc.lay.order) - i
		}
	}
	setIdxAndContinue := func(target *ir.BasicBlock, nest int) {
		fc.emit(opI32Const)
		fc.emit(encodeLEB128S(int64(fc.lay.pos[target]))...)
		fc.emit(opLocalSet)
		fc.emit(encodeLEB128U(uint64(idxLocal))...)
		fc.emit(opBr)
		fc.emit(encodeLEB128U(uint64(loopDepth+nest))...) // back to the top of the dispatch loop
	}
	switch t := term.(type) {
	case *ir.Br:
		setIdxAndContinue(t.Target, 0)
	case *ir.CondBr:
		fc.pushValue(t.Cond)
		fc.emit(opIf, blockVoid)
		setIdxAndContinue(t.True, 1)
		fc.emit(opElse)
		setIdxAndContinue(t.False, 1)
		fc.emit(opEnd)
	case *ir.Switch:
		for _, c := range sw_cases(t) {
			fc.pushValue(t.Tag)
			fc.emit(opI32Const)
			fc.emit(encodeLEB128S(c.Value)...)
			fc.emit(opI32Eq)
			fc.emit(opIf, blockVoid)
			setIdxAndContinue(c.Target, 1)
			fc.emit(opEnd)
		}
		setIdxAndContinue(t.Default, 0)
	case *ir.Ret:
		if t.Value != nil {
			fc.emit(opI32Const)
			fc.emit(encodeLEB128S(framePtrAddr)...)
			fc.emit(opI32Load)
			fc.emit(memarg0...)
			fc.pushValue(t.Value)
			fc.emitTypedStore(fc.fn.ReturnType)
		}
		fc.emitEpilogue()
		fc.emit(opReturn)
	}
}

func sw_cases(sw *ir.Switch) []ir.SwitchCase { return sw.Cases }
