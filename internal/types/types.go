// Package types implements the C type universe described in the data model:
// primitive arithmetic types, void, pointers, arrays, function types, and
// named aggregates (struct/union) and enums, each with a fixed byte size
// and alignment. Struct layout is sequential with natural per-field
// alignment and trailing padding; union layout is max(field size) padded to
// the type's alignment.
package types

import "fmt"

// Kind discriminates the type universe. Types are a sum type, matched by
// exhaustive switch in every pass rather than through polymorphic dispatch.
type Kind int

const (
	Void Kind = iota
	Char
	UChar
	Short
	UShort
	Int
	UInt
	Long
	ULong
	Float
	Double
	Pointer
	Array
	Func
	Struct
	Union
	Enum
)

// Type is a description of a C type. Only the primitive types are shared
// singletons; derived types are built as fresh values. Aggregate and
// function types additionally carry the data in Elem/Params/Fields.
type Type struct {
	Kind     Kind
	Elem     *Type   // Pointer/Array element type
	Len      int     // Array length; -1 if unspecified ("int a[]")
	Params   []*Type // Func parameter types
	Variadic bool    // Func: has a "..." tail
	Ret      *Type   // Func return type
	Name     string  // Struct/Union/Enum tag name (may be "" if anonymous)
	Fields   []Field // Struct/Union fields, declaration order
}

// Field is a single struct/union member with its byte offset from the
// start of the aggregate.
type Field struct {
	Name   string
	Type   *Type
	Offset int
}

// Primitive singleton instances; primitives are interned so callers may
// compare with ==.
var (
	TVoid   = &Type{Kind: Void}
	TChar   = &Type{Kind: Char}
	TUChar  = &Type{Kind: UChar}
	TShort  = &Type{Kind: Short}
	TUShort = &Type{Kind: UShort}
	TInt    = &Type{Kind: Int}
	TUInt   = &Type{Kind: UInt}
	TLong   = &Type{Kind: Long}
	TULong  = &Type{Kind: ULong}
	TFloat  = &Type{Kind: Float}
	TDouble = &Type{Kind: Double}
)

// PointerTo returns a pointer-to-elem type.
func PointerTo(elem *Type) *Type { return &Type{Kind: Pointer, Elem: elem} }

// ArrayOf returns an array-of-elem type with length n (n < 0 means
// unspecified, e.g. a function parameter "int a[]" which decays to pointer).
func ArrayOf(elem *Type, n int) *Type { return &Type{Kind: Array, Elem: elem, Len: n} }

// FuncOf returns a function type.
func FuncOf(ret *Type, params []*Type, variadic bool) *Type {
	return &Type{Kind: Func, Ret: ret, Params: params, Variadic: variadic}
}

// Size returns the byte size of t. Pointer size is fixed at 4, matching the
// 32-bit linear-memory addressing the Wasm emitter uses throughout.
func Size(t *Type) int {
	switch t.Kind {
	case Void:
		return 0
	case Char, UChar:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float, Pointer:
		return 4
	case Long, ULong, Double:
		return 8
	case Array:
		if t.Len < 0 {
			return Size(PointerTo(t.Elem))
		}
		return Size(t.Elem) * t.Len
	case Struct, Union, Enum:
		return structUnionSize(t)
	case Func:
		return 0
	}
	panic(fmt.Sprintf("types: Size: unhandled kind %d", t.Kind))
}

// Align returns the required alignment of t in bytes.
func Align(t *Type) int {
	switch t.Kind {
	case Void, Func:
		return 1
	case Char, UChar:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float, Pointer, Enum:
		return 4
	case Long, ULong, Double:
		return 8
	case Array:
		return Align(t.Elem)
	case Struct, Union:
		return aggregateAlign(t)
	}
	panic(fmt.Sprintf("types: Align: unhandled kind %d", t.Kind))
}

func aggregateAlign(t *Type) int {
	max := 1
	for _, f := range t.Fields {
		if a := Align(f.Type); a > max {
			max = a
		}
	}
	return max
}

func structUnionSize(t *Type) int {
	if t.Kind == Enum {
		return 4
	}
	if len(t.Fields) == 0 {
		return 0
	}
	align := aggregateAlign(t)
	if t.Kind == Union {
		max := 0
		for _, f := range t.Fields {
			if s := Size(f.Type); s > max {
				max = s
			}
		}
		return alignUp(max, align)
	}
	// Struct: sequential layout, computed by LayoutStruct below; Fields
	// already carry Offset by the time Size is queried in practice, but we
	// recompute defensively so Size is correct even before layout runs.
	off := 0
	for _, f := range t.Fields {
		a := Align(f.Type)
		off = alignUp(off, a)
		off += Size(f.Type)
	}
	return alignUp(off, align)
}

func alignUp(n, a int) int {
	if a <= 1 {
		return n
	}
	rem := n % a
	if rem == 0 {
		return n
	}
	return n + (a - rem)
}

// LayoutStruct assigns sequential byte offsets to each field of a struct
// type, respecting natural per-field alignment and adding trailing padding
// to the struct's own alignment. It mutates t.Fields in place and returns
// the total (padded) size.
func LayoutStruct(t *Type) int {
	align := aggregateAlign(t)
	off := 0
	for i := range t.Fields {
		a := Align(t.Fields[i].Type)
		off = alignUp(off, a)
		t.Fields[i].Offset = off
		off += Size(t.Fields[i].Type)
	}
	return alignUp(off, align)
}

// LayoutUnion assigns every field offset 0 and returns max(field size)
// padded to the union's alignment.
func LayoutUnion(t *Type) int {
	for i := range t.Fields {
		t.Fields[i].Offset = 0
	}
	return structUnionSize(t)
}

// IsInteger reports whether t is an integer arithmetic type.
func IsInteger(t *Type) bool {
	switch t.Kind {
	case Char, UChar, Short, UShort, Int, UInt, Long, ULong, Enum:
		return true
	}
	return false
}

// IsFloat reports whether t is a floating-point type.
func IsFloat(t *Type) bool { return t.Kind == Float || t.Kind == Double }

// IsArithmetic reports whether t is an integer or floating type.
func IsArithmetic(t *Type) bool { return IsInteger(t) || IsFloat(t) }

// IsSigned reports whether an integer type is signed.
func IsSigned(t *Type) bool {
	switch t.Kind {
	case Char, Short, Int, Long:
		return true
	}
	return false
}

// IsPointer reports whether t is a pointer type (arrays decay to pointer in
// most contexts but are kept distinct here; callers that need decay call
// Decay below).
func IsPointer(t *Type) bool { return t.Kind == Pointer }

// Decay converts an array type to the pointer type it decays to in
// expression contexts (everywhere except sizeof and declaration).
func Decay(t *Type) *Type {
	if t.Kind == Array {
		return PointerTo(t.Elem)
	}
	return t
}

// Rank orders integer types for the usual arithmetic conversions: wider
// types have a strictly greater rank.
func Rank(t *Type) int {
	switch t.Kind {
	case Char, UChar:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Enum:
		return 3
	case Long, ULong:
		return 4
	case Float:
		return 5
	case Double:
		return 6
	}
	return 0
}

// CommonType computes the usual arithmetic conversion result of a and b:
// the wider type wins; at equal width, unsigned wins over signed; if either
// side is floating point, the common type is the wider of the two floating
// ranks (or the float type, if one side is integer).
func CommonType(a, b *Type) *Type {
	if IsFloat(a) || IsFloat(b) {
		if Rank(a) >= Rank(b) && IsFloat(a) {
			return a
		}
		if IsFloat(b) {
			return b
		}
		return a
	}
	ra, rb := Rank(a), Rank(b)
	if ra == rb {
		if !IsSigned(a) {
			return a
		}
		return b
	}
	if ra > rb {
		return promoteIfUnsignedWins(a, b)
	}
	return promoteIfUnsignedWins(b, a)
}

// promoteIfUnsignedWins returns wide (the higher-rank type) unless narrow is
// unsigned at the same size as wide, mirroring mixed signed/unsigned
// resolution at equal width described in the data model's type promotions.
func promoteIfUnsignedWins(wide, narrow *Type) *Type {
	if Size(wide) == Size(narrow) && !IsSigned(narrow) {
		return narrow
	}
	return wide
}

func (t *Type) String() string {
	switch t.Kind {
	case Void:
		return "void"
	case Char:
		return "char"
	case UChar:
		return "unsigned char"
	case Short:
		return "short"
	case UShort:
		return "unsigned short"
	case Int:
		return "int"
	case UInt:
		return "unsigned int"
	case Long:
		return "long"
	case ULong:
		return "unsigned long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Pointer:
		return t.Elem.String() + "*"
	case Array:
		return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Len)
	case Struct:
		return "struct " + t.Name
	case Union:
		return "union " + t.Name
	case Enum:
		return "enum " + t.Name
	case Func:
		return "func(...) " + t.Ret.String()
	}
	return "?"
}
