// Package ir implements the three-address intermediate representation
// described in the data model: a module is a set of functions plus global
// data objects (including interned string literals); a function is a
// parameter list, a locals list, and an ordered list of basic blocks
// forming a CFG, each ending in exactly one terminator. Values are either
// virtual registers (def/use tracked explicitly — not full SSA) or literal
// constants. Instructions and terminators are modeled as sum types (a
// distinct Go type per opcode, matched by exhaustive switch in every pass)
// rather than through polymorphic dispatch, per the repository's design
// notes.
package ir

import "github.com/cc2wasm/cc2wasm/internal/types"

// Value is anything an instruction can consume: a virtual register or a
// literal constant.
type Value interface {
	Type() *types.Type
	valueNode()
}

// Reg is a virtual register: SSA-like in that each one has a single
// defining instruction, but mutation via explicit re-definition (a second
// instruction targeting the same Reg) is permitted — defs/uses are tracked
// directly rather than through phi nodes.
type Reg struct {
	ID int
	Ty *types.Type
}

func (r *Reg) Type() *types.Type { return r.Ty }
func (*Reg) valueNode()          {}

type ConstInt struct {
	Val int64
	Ty  *types.Type
}

func (c *ConstInt) Type() *types.Type { return c.Ty }
func (*ConstInt) valueNode()          {}

type ConstFloat struct {
	Val float64
	Ty  *types.Type
}

func (c *ConstFloat) Type() *types.Type { return c.Ty }
func (*ConstFloat) valueNode()          {}

// Global is a module-level data object: a global variable or an interned
// string literal, placed in the data segment at emission time.
type Global struct {
	Name     string
	Ty       *types.Type
	Init     []byte // little-endian initial bytes, zero-padded to Size(Ty)
	ReadOnly bool
}

// Function is a single C function lowered to a CFG of basic blocks.
type Function struct {
	Name       string
	Params     []*Local
	Locals     []*Local // includes Params; parameters are always also locals
	ReturnType *types.Type
	Variadic   bool
	IsExtern   bool // declared but not defined (an import, e.g. printf)
	Entry      *BasicBlock
	Blocks     []*BasicBlock
	NextRegID  int
	FrameSize  int // set by the stack-slot allocator; §4.4
}

// Local describes one function-local symbol as the IR sees it: its type,
// whether its address is ever taken (decided during lowering and consumed
// by stack-slot allocation), and its storage location once allocated.
type Local struct {
	Name         string
	Ty           *types.Type
	AddressTaken bool
	IsParam      bool
	Loc          Location
}

// LocationKind mirrors symtab.LocationKind; duplicated here (rather than
// imported) because ir must not depend on symtab after lowering completes —
// the AST and its symbol table are not retained past IR construction.
type LocationKind int

const (
	LocUnallocated LocationKind = iota
	LocStackSlot
	LocWasmLocal
)

type Location struct {
	Kind   LocationKind
	Offset int // FP-relative byte offset, for LocStackSlot
	Index  int // Wasm local index, for LocWasmLocal (assigned by the emitter)
}

// NewReg allocates a fresh virtual register in fn.
func (fn *Function) NewReg(ty *types.Type) *Reg {
	r := &Reg{ID: fn.NextRegID, Ty: ty}
	fn.NextRegID++
	return r
}

// NewBlock appends a new, empty basic block to fn and returns it.
func (fn *Function) NewBlock(label string) *BasicBlock {
	b := &BasicBlock{ID: len(fn.Blocks), Label: label}
	fn.Blocks = append(fn.Blocks, b)
	return b
}

// BasicBlock is a maximal straight-line instruction sequence ending in
// exactly one terminator.
type BasicBlock struct {
	ID     int
	Label  string
	Instrs []Instr
	Term   Term
	// Preds is recomputed by RebuildPreds after any CFG edit; passes must
	// not assume it is valid without calling that first.
	Preds []*BasicBlock
}

// Emit appends a non-terminator instruction to b.
func (b *BasicBlock) Emit(i Instr) { b.Instrs = append(b.Instrs, i) }

// Module is a complete compiled translation unit: its functions and its
// global data objects (including every interned string literal).
type Module struct {
	Functions []*Function
	Globals   []*Global
	// EntryFunc names the function the emitter exports as "main".
	EntryFunc string
}
