package wasmemit

import (
	"encoding/binary"
	"math"
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6D}
var wasmVersion = []byte{0x01, 0x00, 0x00, 0x00}

// Section IDs, per the binary format's required ordering (spec §4.6/§6):
// type, import, function, table, memory, global, export, element, code,
// data.
const (
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionTable    byte = 4
	sectionMemory   byte = 5
	sectionGlobal   byte = 6
	sectionExport   byte = 7
	sectionElement  byte = 9
	sectionCode     byte = 10
	sectionData     byte = 11
)

// Value types.
const (
	valI32 byte = 0x7F
	valI64 byte = 0x7E
	valF32 byte = 0x7D
	valF64 byte = 0x7C
)

const elemTypeFuncref byte = 0x70

// Export/import kinds.
const (
	extFunc   byte = 0x00
	extTable  byte = 0x01
	extMemory byte = 0x02
	extGlobal byte = 0x03
)

// Opcodes actually emitted by the function compiler. Named after the Wasm
// 1.0 instruction mnemonics.
const (
	opUnreachable byte = 0x00
	opNop         byte = 0x01
	opBlock       byte = 0x02
	opLoop        byte = 0x03
	opIf          byte = 0x04
	opElse        byte = 0x05
	opEnd         byte = 0x0B
	opBr          byte = 0x0C
	opBrIf        byte = 0x0D
	opBrTable     byte = 0x0E
	opReturn      byte = 0x0F
	opCall        byte = 0x10
	opCallIndirect byte = 0x11
	opDrop        byte = 0x1A

	opLocalGet  byte = 0x20
	opLocalSet  byte = 0x21
	opLocalTee  byte = 0x22
	opGlobalGet byte = 0x23
	opGlobalSet byte = 0x24

	opI32Load    byte = 0x28
	opI64Load    byte = 0x29
	opF32Load    byte = 0x2A
	opF64Load    byte = 0x2B
	opI32Load8S  byte = 0x2C
	opI32Load8U  byte = 0x2D
	opI32Load16S byte = 0x2E
	opI32Load16U byte = 0x2F
	opI64Load8S  byte = 0x30
	opI64Load8U  byte = 0x31
	opI64Load16S byte = 0x32
	opI64Load16U byte = 0x33
	opI64Load32S byte = 0x34
	opI64Load32U byte = 0x35
	opI32Store   byte = 0x36
	opI64Store   byte = 0x37
	opF32Store   byte = 0x38
	opF64Store   byte = 0x39
	opI32Store8  byte = 0x3A
	opI32Store16 byte = 0x3B
	opI64Store8  byte = 0x3C
	opI64Store16 byte = 0x3D
	opI64Store32 byte = 0x3E

	opI32Const byte = 0x41
	opI64Const byte = 0x42
	opF32Const byte = 0x43
	opF64Const byte = 0x44

	opI32Eqz byte = 0x45
	opI32Eq  byte = 0x46
	opI32Ne  byte = 0x47
	opI32LtS byte = 0x48
	opI32LtU byte = 0x49
	opI32GtS byte = 0x4A
	opI32GtU byte = 0x4B
	opI32LeS byte = 0x4C
	opI32LeU byte = 0x4D
	opI32GeS byte = 0x4E
	opI32GeU byte = 0x4F

	opI64Eqz byte = 0x50
	opI64Eq  byte = 0x51
	opI64Ne  byte = 0x52
	opI64LtS byte = 0x53
	opI64LtU byte = 0x54
	opI64GtS byte = 0x55
	opI64GtU byte = 0x56
	opI64LeS byte = 0x57
	opI64LeU byte = 0x58
	opI64GeS byte = 0x59
	opI64GeU byte = 0x5A

	opF32Eq byte = 0x5B
	opF32Ne byte = 0x5C
	opF32Lt byte = 0x5D
	opF32Gt byte = 0x5E
	opF32Le byte = 0x5F
	opF32Ge byte = 0x60

	opF64Eq byte = 0x61
	opF64Ne byte = 0x62
	opF64Lt byte = 0x63
	opF64Gt byte = 0x64
	opF64Le byte = 0x65
	opF64Ge byte = 0x66

	opI32Clz    byte = 0x67
	opI32Add    byte = 0x6A
	opI32Sub    byte = 0x6B
	opI32Mul    byte = 0x6C
	opI32DivS   byte = 0x6D
	opI32DivU   byte = 0x6E
	opI32RemS   byte = 0x6F
	opI32RemU   byte = 0x70
	opI32And    byte = 0x71
	opI32Or     byte = 0x72
	opI32Xor    byte = 0x73
	opI32Shl    byte = 0x74
	opI32ShrS   byte = 0x75
	opI32ShrU   byte = 0x76

	opI64Add  byte = 0x7C
	opI64Sub  byte = 0x7D
	opI64Mul  byte = 0x7E
	opI64DivS byte = 0x7F
	opI64DivU byte = 0x80
	opI64RemS byte = 0x81
	opI64RemU byte = 0x82
	opI64And  byte = 0x83
	opI64Or   byte = 0x84
	opI64Xor  byte = 0x85
	opI64Shl  byte = 0x86
	opI64ShrS byte = 0x87
	opI64ShrU byte = 0x88

	opF32Add byte = 0x92
	opF32Sub byte = 0x93
	opF32Mul byte = 0x94
	opF32Div byte = 0x95

	opF64Add byte = 0xA0
	opF64Sub byte = 0xA1
	opF64Mul byte = 0xA2
	opF64Div byte = 0xA3

	opI32WrapI64    byte = 0xA7
	opI32TruncF32S  byte = 0xA8
	opI32TruncF32U  byte = 0xA9
	opI32TruncF64S  byte = 0xAA
	opI32TruncF64U  byte = 0xAB
	opI64ExtendI32S byte = 0xAC
	opI64ExtendI32U byte = 0xAD
	opI64TruncF32S  byte = 0xAE
	opI64TruncF32U  byte = 0xAF
	opI64TruncF64S  byte = 0xB0
	opI64TruncF64U  byte = 0xB1
	opF32ConvertI32S byte = 0xB2
	opF32ConvertI32U byte = 0xB3
	opF32ConvertI64S byte = 0xB4
	opF32ConvertI64U byte = 0xB5
	opF32DemoteF64   byte = 0xB6
	opF64ConvertI32S byte = 0xB7
	opF64ConvertI32U byte = 0xB8
	opF64ConvertI64S byte = 0xB9
	opF64ConvertI64U byte = 0xBA
	opF64PromoteF32  byte = 0xBB

	blockVoid byte = 0x40
)

func encodeLEB128U(value uint64) []byte {
	if value == 0 {
		return []byte{0}
	}
	var result []byte
	for value > 0 {
		b := byte(value & 0x7F)
		value >>= 7
		if value > 0 {
			b |= 0x80
		}
		result = append(result, b)
	}
	return result
}

func encodeLEB128S(value int64) []byte {
	var result []byte
	more := true
	for more {
		b := byte(value & 0x7F)
		value >>= 7
		if (value == 0 && b&0x40 == 0) || (value == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		result = append(result, b)
	}
	return result
}

func encodeF32(v float32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return buf[:]
}

func encodeF64(v float64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return buf[:]
}

func encodeString(s string) []byte {
	result := encodeLEB128U(uint64(len(s)))
	return append(result, []byte(s)...)
}

func encodeSection(id byte, contents []byte) []byte {
	result := []byte{id}
	result = append(result, encodeLEB128U(uint64(len(contents)))...)
	return append(result, contents...)
}

func encodeVector(count int, items []byte) []byte {
	result := encodeLEB128U(uint64(count))
	return append(result, items...)
}

// memarg encodes the (align, offset) pair every load/store carries; align
// is expressed as its log2, per the binary format.
func memarg(alignLog2 uint32, offset uint32) []byte {
	out := encodeLEB128U(uint64(alignLog2))
	return append(out, encodeLEB128U(uint64(offset))...)
}
