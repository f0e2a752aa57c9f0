package irgen

import (
	"github.com/cc2wasm/cc2wasm/internal/ast"
	"github.com/cc2wasm/cc2wasm/internal/diagnostic"
	"github.com/cc2wasm/cc2wasm/internal/symtab"
	"github.com/cc2wasm/cc2wasm/internal/types"
)

// resolveBaseType resolves a TypeSpec (ignoring any declarator suffix) to a
// types.Type: a primitive combination ("unsigned long" etc.), a struct/
// union/enum tag (inline or referenced), or a previously declared typedef
// name.
func (b *Builder) resolveBaseType(spec *ast.TypeSpec) *types.Type {
	if spec.IsStruct || spec.IsUnion || spec.IsEnum {
		return b.resolveTagType(spec)
	}
	switch spec.Base {
	case "void":
		return types.TVoid
	case "char":
		if spec.Unsigned {
			return types.TUChar
		}
		return types.TChar
	case "short":
		if spec.Unsigned {
			return types.TUShort
		}
		return types.TShort
	case "float":
		return types.TFloat
	case "double":
		return types.TDouble
	case "long":
		if spec.Unsigned {
			return types.TULong
		}
		return types.TLong
	case "int", "":
		if spec.LongCount > 0 {
			if spec.Unsigned {
				return types.TULong
			}
			return types.TLong
		}
		if spec.Unsigned {
			return types.TUInt
		}
		return types.TInt
	default:
		// A typedef name used as the base type.
		if sym, ok := symtab.Lookup(b.scopeForLookup(), spec.Base); ok && sym.Kind == symtab.Typedef {
			return sym.Type
		}
		return types.TInt
	}
}

// scopeForLookup returns the innermost scope currently active: the function
// scope while lowering a body, else the file scope.
func (b *Builder) scopeForLookup() *symtab.Scope {
	if b.scope != nil {
		return b.scope
	}
	return b.file
}

// resolveTagType resolves (and, for an inline definition, registers) a
// struct/union/enum type from a TypeSpec.
func (b *Builder) resolveTagType(spec *ast.TypeSpec) *types.Type {
	kind := types.Struct
	if spec.IsUnion {
		kind = types.Union
	}
	if spec.IsEnum {
		kind = types.Enum
	}

	isInline := len(spec.Fields) > 0 || len(spec.Enumerators) > 0
	key := tagKey(kind, spec.TagName)

	if !isInline && spec.TagName != "" {
		if ty, ok := b.tags[key]; ok {
			return ty
		}
		// Forward reference to a tag not yet fully defined: register a
		// placeholder so later field resolution can still find it.
		ty := &types.Type{Kind: kind, Name: spec.TagName}
		b.tags[key] = ty
		return ty
	}

	ty := &types.Type{Kind: kind, Name: spec.TagName}
	if spec.TagName != "" {
		b.tags[key] = ty
	}

	switch kind {
	case types.Struct, types.Union:
		for _, f := range spec.Fields {
			fty := b.resolveDeclaredType(f.Spec, f.Decl)
			ty.Fields = append(ty.Fields, types.Field{Name: f.Decl.Name, Type: fty})
		}
		if kind == types.Struct {
			types.LayoutStruct(ty)
		} else {
			types.LayoutUnion(ty)
		}
	case types.Enum:
		next := int64(0)
		for _, e := range spec.Enumerators {
			if e.Value != nil {
				if v, ok := constIntValue(e.Value); ok {
					next = v
				}
			}
			sym, ok := b.syms.Declare(b.scopeForLookup(), e.Name, symtab.EnumConst, types.TInt, symtab.Auto)
			if !ok {
				b.errorf(diagnostic.SemanticDuplicate, e.P, "redeclaration of enum constant '%s'", e.Name)
			} else {
				sym.EnumValue = next
			}
			next++
		}
	}
	return ty
}

func tagKey(kind types.Kind, name string) string {
	switch kind {
	case types.Struct:
		return "struct " + name
	case types.Union:
		return "union " + name
	default:
		return "enum " + name
	}
}

// applyDeclarator folds a Declarator's pointer/array suffixes around a base
// type, outside-in as C's declarator grammar specifies.
func applyDeclarator(base *types.Type, d *ast.Declarator) *types.Type {
	ty := base
	for i := 0; i < d.Pointer; i++ {
		ty = types.PointerTo(ty)
	}
	for i := len(d.ArrayDims) - 1; i >= 0; i-- {
		n := -1
		if d.ArrayDims[i] != nil {
			if v, ok := constIntValue(d.ArrayDims[i]); ok {
				n = int(v)
			}
		}
		ty = types.ArrayOf(ty, n)
	}
	return ty
}

// resolveDeclaredType resolves the complete type of a declarator given its
// shared TypeSpec, including pointer/array/function suffixes.
func (b *Builder) resolveDeclaredType(spec *ast.TypeSpec, d *ast.Declarator) *types.Type {
	base := b.resolveBaseType(spec)
	if d == nil {
		return base
	}
	if d.IsFunc {
		var params []*types.Type
		for _, p := range d.Params {
			params = append(params, b.resolveDeclaredType(p.Spec, p.Decl))
		}
		ret := base
		for i := 0; i < d.Pointer; i++ {
			ret = types.PointerTo(ret)
		}
		return types.FuncOf(ret, params, d.Variadic)
	}
	return applyDeclarator(base, d)
}
