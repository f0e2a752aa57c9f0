package ir

import "github.com/cc2wasm/cc2wasm/internal/types"

// Instr is a non-terminator three-address instruction.
type Instr interface {
	// Def returns the register this instruction defines, or nil.
	Def() *Reg
	// Uses returns every value this instruction reads.
	Uses() []Value
	// Pure reports whether the instruction is side-effect free: DCE may
	// remove it if its result is unused. Calls, stores, and the profiler
	// hook are never pure.
	Pure() bool
	instrNode()
}

// BinOpKind enumerates arithmetic and bitwise binary opcodes.
type BinOpKind int

const (
	Add BinOpKind = iota
	Sub
	Mul
	SDiv
	UDiv
	SRem
	URem
	And
	Or
	Xor
	Shl
	AShr
	LShr
	FAdd
	FSub
	FMul
	FDiv
)

type BinOp struct {
	Dst  *Reg
	Op   BinOpKind
	X, Y Value
}

func (i *BinOp) Def() *Reg       { return i.Dst }
func (i *BinOp) Uses() []Value   { return []Value{i.X, i.Y} }
func (i *BinOp) Pure() bool      { return true }
func (*BinOp) instrNode()        {}

// CmpKind enumerates integer and floating-point comparisons.
type CmpKind int

const (
	CmpEq CmpKind = iota
	CmpNe
	CmpSlt
	CmpUlt
	CmpSle
	CmpUle
	CmpSgt
	CmpUgt
	CmpSge
	CmpUge
	CmpFEq
	CmpFNe
	CmpFLt
	CmpFLe
	CmpFGt
	CmpFGe
)

type Cmp struct {
	Dst  *Reg
	Op   CmpKind
	X, Y Value
}

func (i *Cmp) Def() *Reg     { return i.Dst }
func (i *Cmp) Uses() []Value { return []Value{i.X, i.Y} }
func (i *Cmp) Pure() bool    { return true }
func (*Cmp) instrNode()      {}

// ConvKind enumerates the conversion instructions: widen (sext/zext),
// narrow (trunc), and int/float/pointer conversions.
type ConvKind int

const (
	Sext ConvKind = iota
	Zext
	Trunc
	SiToFp
	UiToFp
	FpToSi
	FpToUi
	FpTrunc
	FpExt
	PtrToInt
	IntToPtr
)

type Conv struct {
	Dst *Reg
	Op  ConvKind
	X   Value
}

func (i *Conv) Def() *Reg     { return i.Dst }
func (i *Conv) Uses() []Value { return []Value{i.X} }
func (i *Conv) Pure() bool    { return true }
func (*Conv) instrNode()      {}

// Load reads Size(Ty) bytes from Addr.
type Load struct {
	Dst  *Reg
	Addr Value
	Ty   *types.Type
}

func (i *Load) Def() *Reg     { return i.Dst }
func (i *Load) Uses() []Value { return []Value{i.Addr} }
func (i *Load) Pure() bool    { return true }
func (*Load) instrNode()      {}

// Store writes Val to Addr; never pure (observable via subsequent loads
// and, for globals, the emitted module's final memory state).
type Store struct {
	Addr Value
	Val  Value
	Ty   *types.Type
}

func (i *Store) Def() *Reg     { return nil }
func (i *Store) Uses() []Value { return []Value{i.Addr, i.Val} }
func (i *Store) Pure() bool    { return false }
func (*Store) instrNode()      {}

// AddrOfLocal yields the address of a stack-slot-resident local. Valid only
// once the local's location has been decided to be LocStackSlot.
type AddrOfLocal struct {
	Dst   *Reg
	Local *Local
}

func (i *AddrOfLocal) Def() *Reg     { return i.Dst }
func (i *AddrOfLocal) Uses() []Value { return nil }
func (i *AddrOfLocal) Pure() bool    { return true }
func (*AddrOfLocal) instrNode()      {}

// AddrOfGlobal yields the absolute address of a global data object.
type AddrOfGlobal struct {
	Dst  *Reg
	Name string
}

func (i *AddrOfGlobal) Def() *Reg     { return i.Dst }
func (i *AddrOfGlobal) Uses() []Value { return nil }
func (i *AddrOfGlobal) Pure() bool    { return true }
func (*AddrOfGlobal) instrNode()      {}

// Gep ("get element pointer") computes Base + Offset, a byte offset that
// has already been scaled by the pointee size at lowering time.
type Gep struct {
	Dst    *Reg
	Base   Value
	Offset Value
}

func (i *Gep) Def() *Reg     { return i.Dst }
func (i *Gep) Uses() []Value { return []Value{i.Base, i.Offset} }
func (i *Gep) Pure() bool    { return true }
func (*Gep) instrNode()      {}

// Move copies a value into a register; used by the parallel-move sequences
// TCO's self-tail-call form emits to overwrite parameter slots without
// clobbering live sources, and by short-circuit/ternary join lowering.
type Move struct {
	Dst *Reg
	X   Value
}

func (i *Move) Def() *Reg     { return i.Dst }
func (i *Move) Uses() []Value { return []Value{i.X} }
func (i *Move) Pure() bool    { return true }
func (*Move) instrNode()      {}

// WriteLocal assigns a value directly into a local's storage (used for
// locals that are not promoted to bare registers, e.g. loop induction
// variables whose address is never taken but which are reassigned across
// blocks in a non-SSA way).
type WriteLocal struct {
	Local *Local
	X     Value
}

func (i *WriteLocal) Def() *Reg     { return nil }
func (i *WriteLocal) Uses() []Value { return []Value{i.X} }
func (i *WriteLocal) Pure() bool    { return true }
func (*WriteLocal) instrNode()      {}

// ReadLocal reads a local's current value where it is not holding a
// register directly (see WriteLocal).
type ReadLocal struct {
	Dst   *Reg
	Local *Local
}

func (i *ReadLocal) Def() *Reg     { return i.Dst }
func (i *ReadLocal) Uses() []Value { return nil }
func (i *ReadLocal) Pure() bool    { return true }
func (*ReadLocal) instrNode()      {}

// Call invokes a known function directly. Tail marks a call rewritten by
// the tail-call pass (§4.5); Indirect marks a call through a function
// pointer value (FnPtr), dispatched through the element table at emission.
type Call struct {
	Dst      *Reg // nil if the callee returns void or the result is discarded
	Callee   string
	FnPtr    Value // non-nil iff Indirect
	Args     []Value
	Indirect bool
	Tail     TailKind
}

// TailKind distinguishes an ordinary call from the two tail-call forms
// §4.5 describes.
type TailKind int

const (
	NotTail TailKind = iota
	TailSelf
	TailSibling
)

func (i *Call) Def() *Reg { return i.Dst }
func (i *Call) Uses() []Value {
	u := append([]Value{}, i.Args...)
	if i.FnPtr != nil {
		u = append(u, i.FnPtr)
	}
	return u
}
func (i *Call) Pure() bool { return false }
func (*Call) instrNode()   {}

// --- Terminators ---

// Term is the unique terminator instruction of a basic block.
type Term interface {
	Successors() []*BasicBlock
	Uses() []Value
	termNode()
}

type Br struct{ Target *BasicBlock }

func (t *Br) Successors() []*BasicBlock { return []*BasicBlock{t.Target} }
func (t *Br) Uses() []Value             { return nil }
func (*Br) termNode()                   {}

type CondBr struct {
	Cond        Value
	True, False *BasicBlock
}

func (t *CondBr) Successors() []*BasicBlock { return []*BasicBlock{t.True, t.False} }
func (t *CondBr) Uses() []Value             { return []Value{t.Cond} }
func (*CondBr) termNode()                   {}

// SwitchCase is one dense-or-sparse case arm of a Switch terminator.
type SwitchCase struct {
	Value  int64
	Target *BasicBlock
}

type Switch struct {
	Tag     Value
	Cases   []SwitchCase
	Default *BasicBlock
	// Dense indicates the case labels form (or were padded to) a
	// contiguous range, making a br_table profitable at emission.
	Dense bool
}

func (t *Switch) Successors() []*BasicBlock {
	s := []*BasicBlock{t.Default}
	for _, c := range t.Cases {
		s = append(s, c.Target)
	}
	return s
}
func (t *Switch) Uses() []Value { return []Value{t.Tag} }
func (*Switch) termNode()       {}

type Ret struct {
	Value Value // nil for a void return
}

func (t *Ret) Successors() []*BasicBlock { return nil }
func (t *Ret) Uses() []Value {
	if t.Value == nil {
		return nil
	}
	return []Value{t.Value}
}
func (*Ret) termNode() {}

// RebuildPreds recomputes every block's predecessor list from scratch.
// Passes that edit terminators must call this before any predecessor-
// sensitive analysis (DCE's reachability walk does not need it, but LVA and
// the stackifier's dominator computation do).
func RebuildPreds(fn *Function) {
	for _, b := range fn.Blocks {
		b.Preds = nil
	}
	for _, b := range fn.Blocks {
		if b.Term == nil {
			continue
		}
		for _, s := range b.Term.Successors() {
			s.Preds = append(s.Preds, b)
		}
	}
}
