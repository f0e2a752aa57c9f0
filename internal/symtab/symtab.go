// Package symtab is the compiler's symbol table: entries keyed by
// (scope-id, name), recording kind, type, storage class, linkage, and
// (once allocated) a storage location. Scopes nest file -> function ->
// block; the tag namespace (struct/union/enum names) is disjoint from the
// ordinary identifier namespace, matching the data model.
package symtab

import "github.com/cc2wasm/cc2wasm/internal/types"

// Kind is the kind of a symbol.
type Kind int

const (
	Variable Kind = iota
	Parameter
	FunctionSym
	Typedef
	EnumConst
	Tag // struct/union/enum tag
)

// StorageClass is the C storage-class specifier of a declaration.
type StorageClass int

const (
	Auto StorageClass = iota
	Static
	Extern
	Register
	TypedefClass
)

// Linkage models C linkage.
type Linkage int

const (
	NoLinkage Linkage = iota
	InternalLinkage
	ExternalLinkage
)

// Location is where a symbol's value lives once storage is allocated.
type LocationKind int

const (
	LocUnallocated LocationKind = iota
	LocStackSlot               // offset from FP in the shadow stack frame
	LocWasmLocal               // an implicit Wasm local index
	LocGlobal                  // absolute address in linear memory
)

type Location struct {
	Kind   LocationKind
	Offset int // FP-relative offset for LocStackSlot, absolute address for LocGlobal
	Index  int // Wasm local index for LocWasmLocal
}

// Symbol is a single entry in the symbol table.
type Symbol struct {
	ID           int
	Name         string
	Kind         Kind
	Type         *types.Type
	Storage      StorageClass
	Linkage      Linkage
	ScopeID      int
	AddressTaken bool
	Location     Location
	EnumValue    int64 // valid when Kind == EnumConst
}

// Scope is a lexical scope: file, function, or block.
type Scope struct {
	ID       int
	Parent   *Scope
	Kind     ScopeKindTag
	idents   map[string]*Symbol
	tags     map[string]*Symbol
}

// ScopeKindTag distinguishes file/function/block scopes, used only for
// diagnostics and for deciding default linkage.
type ScopeKindTag int

const (
	FileScope ScopeKindTag = iota
	FunctionScope
	BlockScope
)

// Table owns every symbol and scope allocated during a compilation. Symbols
// are referenced elsewhere by stable integer id; Table is the sole owner.
type Table struct {
	scopes  []*Scope
	symbols []*Symbol
	nextID  int
}

func New() *Table { return &Table{} }

// NewScope creates and registers a new scope nested under parent (nil for
// the file scope).
func (t *Table) NewScope(parent *Scope, kind ScopeKindTag) *Scope {
	s := &Scope{
		ID:     len(t.scopes),
		Parent: parent,
		Kind:   kind,
		idents: make(map[string]*Symbol),
		tags:   make(map[string]*Symbol),
	}
	t.scopes = append(t.scopes, s)
	return s
}

// Declare adds a new symbol to scope's identifier namespace. It returns
// false if name is already declared directly in this scope (the duplicate-
// symbol error case); shadowing an outer scope is permitted.
func (t *Table) Declare(scope *Scope, name string, kind Kind, ty *types.Type, storage StorageClass) (*Symbol, bool) {
	if _, exists := scope.idents[name]; exists {
		return nil, false
	}
	sym := &Symbol{ID: t.nextID, Name: name, Kind: kind, Type: ty, Storage: storage, ScopeID: scope.ID}
	t.nextID++
	scope.idents[name] = sym
	t.symbols = append(t.symbols, sym)
	return sym, true
}

// DeclareTag adds a struct/union/enum tag, in the disjoint tag namespace.
func (t *Table) DeclareTag(scope *Scope, name string, ty *types.Type) (*Symbol, bool) {
	if _, exists := scope.tags[name]; exists {
		return nil, false
	}
	sym := &Symbol{ID: t.nextID, Name: name, Kind: Tag, Type: ty, ScopeID: scope.ID}
	t.nextID++
	scope.tags[name] = sym
	t.symbols = append(t.symbols, sym)
	return sym, true
}

// Lookup resolves name in scope or any ancestor scope's identifier
// namespace.
func Lookup(scope *Scope, name string) (*Symbol, bool) {
	for s := scope; s != nil; s = s.Parent {
		if sym, ok := s.idents[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// LookupLocal resolves name only within scope itself (used to detect
// redeclaration in the same scope).
func LookupLocal(scope *Scope, name string) (*Symbol, bool) {
	sym, ok := scope.idents[name]
	return sym, ok
}

// LookupTag resolves a tag name in scope or any ancestor.
func LookupTag(scope *Scope, name string) (*Symbol, bool) {
	for s := scope; s != nil; s = s.Parent {
		if sym, ok := s.tags[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// IsTypedefName reports whether name resolves to a typedef in scope. The
// lexer's TYPE_NAME classification consults lexer.TypedefScope, not this.
func IsTypedefName(scope *Scope, name string) bool {
	sym, ok := Lookup(scope, name)
	return ok && sym.Kind == Typedef
}

// All returns every symbol ever declared, for diagnostics and testing.
func (t *Table) All() []*Symbol { return t.symbols }
