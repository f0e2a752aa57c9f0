package wasmemit

import (
	"github.com/cc2wasm/cc2wasm/internal/ir"
	"github.com/cc2wasm/cc2wasm/internal/types"
)

// Fixed low-memory cells every compiled function's prologue/epilogue reads
// and writes (spec §6). They are ordinary linear-memory addresses, not
// Wasm globals, so that a raw memory dump from a host debugger shows them
// at a predictable, bit-exact location.
const (
	framePtrAddr = 0
	tempFramePtrAddr = 4
	stackPtrAddr = 8
	// shadowStackBase is where the shadow stack's growable region starts;
	// the first 12 bytes of linear memory are reserved for the three
	// cells above.
	shadowStackBase = 12
)

// frameLayout describes one function's shadow-stack frame: the byte
// offsets, relative to its own FP, of the return-value slot, each
// parameter, and the start of the locals area (spec §6). It is computed
// purely from the function's static type, so a caller emitting an indirect
// call can reconstruct the same layout a concrete callee of matching
// signature would, without seeing that callee's body.
type frameLayout struct {
	retType         *types.Type
	retSlotSize     int // max(8, Size(retType)), 0 if retType is void
	paramOffsets    []int
	paramsAreaEnd   int // first free offset after the last parameter
	localsOffset    int // == paramsAreaEnd; start of the C-locals area
	localsFrameSize int // fn.FrameSize, from the stack allocator
	totalFrameSize  int
}

func computeFrameLayout(ret *types.Type, paramTypes []*types.Type, localsFrameSize int) frameLayout {
	fl := frameLayout{retType: ret}
	if ret != nil && ret.Kind != types.Void {
		fl.retSlotSize = types.Size(ret)
		if fl.retSlotSize < 8 {
			fl.retSlotSize = 8
		}
	}

	offset := fl.retSlotSize
	fl.paramOffsets = make([]int, len(paramTypes))
	for i, pt := range paramTypes {
		align := types.Align(pt)
		offset = alignUpEmit(offset, align)
		fl.paramOffsets[i] = offset
		offset += types.Size(pt)
	}
	fl.paramsAreaEnd = offset
	fl.localsOffset = offset
	fl.localsFrameSize = localsFrameSize
	fl.totalFrameSize = offset + localsFrameSize
	return fl
}

func frameLayoutForFunc(fn *ir.Function) frameLayout {
	params := make([]*types.Type, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Ty
	}
	return computeFrameLayout(fn.ReturnType, params, fn.FrameSize)
}

func alignUpEmit(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// valueType maps a C type to the Wasm value type used to hold it, either
// in a dedicated register-local or loaded/stored through the frame.
// Composite types (array/struct/union) are never held directly; they are
// always addressed, so they map to the pointer type, i32.
func valueType(t *types.Type) byte {
	switch t.Kind {
	case types.Long, types.ULong, types.Double:
		if t.Kind == types.Double {
			return valF64
		}
		return valI64
	case types.Float:
		return valF32
	default:
		return valI32
	}
}

// isUnsigned reports whether t's arithmetic should use the unsigned family
// of comparisons/divisions/widenings.
func isUnsigned(t *types.Type) bool {
	switch t.Kind {
	case types.UChar, types.UShort, types.UInt, types.ULong, types.Pointer:
		return true
	default:
		return false
	}
}
