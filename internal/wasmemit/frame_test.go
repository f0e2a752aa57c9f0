package wasmemit

import (
	"testing"

	"github.com/cc2wasm/cc2wasm/internal/types"
)

func TestComputeFrameLayoutVoidNoParams(t *testing.T) {
	fl := computeFrameLayout(types.TVoid, nil, 0)
	if fl.retSlotSize != 0 {
		t.Errorf("expected no return slot for void, got size %d", fl.retSlotSize)
	}
	if fl.paramsAreaEnd != 0 {
		t.Errorf("expected params area to start at 0, got %d", fl.paramsAreaEnd)
	}
	if fl.localsOffset != 0 {
		t.Errorf("expected locals offset 0, got %d", fl.localsOffset)
	}
}

func TestComputeFrameLayoutIntReturnReservesEightBytes(t *testing.T) {
	fl := computeFrameLayout(types.TInt, nil, 0)
	if fl.retSlotSize != 8 {
		t.Errorf("expected the return slot to be padded up to 8 bytes, got %d", fl.retSlotSize)
	}
	if fl.paramsAreaEnd != 8 {
		t.Errorf("expected params area to start right after the return slot, got %d", fl.paramsAreaEnd)
	}
}

func TestComputeFrameLayoutPacksParamsByAlignment(t *testing.T) {
	// (char, long, int) with a void return: retSlotSize 0, char at offset
	// 0, long needs 8-byte alignment so it skips to offset 8, int packs
	// right after it at offset 16.
	fl := computeFrameLayout(types.TVoid, []*types.Type{types.TChar, types.TLong, types.TInt}, 0)
	want := []int{0, 8, 16}
	for i, off := range fl.paramOffsets {
		if off != want[i] {
			t.Errorf("param %d offset = %d, want %d", i, off, want[i])
		}
	}
	if fl.paramsAreaEnd != 20 {
		t.Errorf("expected params area to end at 20, got %d", fl.paramsAreaEnd)
	}
}

func TestComputeFrameLayoutTotalIncludesLocals(t *testing.T) {
	fl := computeFrameLayout(types.TInt, []*types.Type{types.TInt}, 40)
	if fl.localsOffset != fl.paramsAreaEnd {
		t.Errorf("expected localsOffset to equal paramsAreaEnd, got %d != %d", fl.localsOffset, fl.paramsAreaEnd)
	}
	if fl.totalFrameSize != fl.paramsAreaEnd+40 {
		t.Errorf("expected totalFrameSize = paramsAreaEnd + localsFrameSize, got %d", fl.totalFrameSize)
	}
}

func TestValueTypeMapping(t *testing.T) {
	cases := []struct {
		ty   *types.Type
		want byte
	}{
		{types.TInt, valI32},
		{types.TChar, valI32},
		{types.TLong, valI64},
		{types.TULong, valI64},
		{types.TFloat, valF32},
		{types.TDouble, valF64},
		{types.PointerTo(types.TInt), valI32},
	}
	for _, c := range cases {
		if got := valueType(c.ty); got != c.want {
			t.Errorf("valueType(%s) = %v, want %v", c.ty, got, c.want)
		}
	}
}

func TestIsUnsigned(t *testing.T) {
	if !isUnsigned(types.TUInt) {
		t.Error("expected unsigned int to be unsigned")
	}
	if isUnsigned(types.TInt) {
		t.Error("expected signed int to not be unsigned")
	}
	if !isUnsigned(types.PointerTo(types.TInt)) {
		t.Error("expected pointer arithmetic to use the unsigned family")
	}
}
