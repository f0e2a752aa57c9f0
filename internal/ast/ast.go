// Package ast defines the abstract syntax tree produced by the parser:
// declarations, statements, and expressions, each a sum type dispatched by
// exhaustive switch in the IR builder rather than by polymorphic methods.
// The AST is owned exclusively by the semantic analyser until lowering
// consumes it; it is not retained afterwards.
package ast

import "github.com/cc2wasm/cc2wasm/internal/token"

// Node is implemented by every AST node.
type Node interface {
	Pos() token.Pos
}

// Decl is a top-level or block-scope declaration.
type Decl interface {
	Node
	declNode()
}

// Stmt is a statement.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression.
type Expr interface {
	Node
	exprNode()
}

// TranslationUnit is the root of a parsed source file: a flat sequence of
// top-level declarations in source order.
type TranslationUnit struct {
	Decls []Decl
}

// --- Type names (as written in source, before resolution) ---

// TypeSpec is the sequence of type specifiers/qualifiers/storage classes
// preceding a declarator, e.g. "static const unsigned long".
type TypeSpec struct {
	Storage   string // "", "static", "extern", "auto", "register", "typedef"
	Base      string // "void","char","int","long","short","float","double",
	                  // "signed","unsigned", or a tag/typedef name
	IsStruct  bool
	IsUnion   bool
	IsEnum    bool
	TagName   string      // struct/union/enum tag, may be ""
	Fields    []*FieldDecl // non-nil for an inline struct/union definition
	Enumerators []*Enumerator // non-nil for an inline enum definition
	LongCount int // number of "long" specifiers (0, 1, or 2 for "long long")
	Unsigned  bool
	Signed    bool
	P         token.Pos
}

func (t *TypeSpec) Pos() token.Pos { return t.P }

// Declarator is the "*name[3]" part of a declaration, wrapping the base
// TypeSpec with pointer/array/function modifiers applied outside-in as
// written (read right-to-left from the identifier per C declarator rules).
type Declarator struct {
	Name      string
	Pointer   int          // number of leading '*'
	ArrayDims []Expr       // nil dim means unspecified length ("[]")
	IsFunc    bool
	Params    []*ParamDecl
	Variadic  bool
	P         token.Pos
}

func (d *Declarator) Pos() token.Pos { return d.P }

// FieldDecl is a struct/union member.
type FieldDecl struct {
	Spec *TypeSpec
	Decl *Declarator
	P    token.Pos
}

func (f *FieldDecl) Pos() token.Pos { return f.P }

// Enumerator is a single enum constant, with an optional explicit value.
type Enumerator struct {
	Name  string
	Value Expr // nil if implicit (previous + 1, or 0 for the first)
	P     token.Pos
}

func (e *Enumerator) Pos() token.Pos { return e.P }

// ParamDecl is a function parameter.
type ParamDecl struct {
	Spec *TypeSpec
	Decl *Declarator // Decl.Name may be "" for an unnamed prototype parameter
	P    token.Pos
}

func (p *ParamDecl) Pos() token.Pos { return p.P }

// --- Declarations ---

// VarDecl declares one or more variables sharing a TypeSpec.
type VarDecl struct {
	Spec  *TypeSpec
	Decls []*InitDeclarator
	P     token.Pos
}

func (d *VarDecl) Pos() token.Pos { return d.P }
func (*VarDecl) declNode()        {}
func (*VarDecl) stmtNode()        {} // declarations are also valid statements

// InitDeclarator pairs a declarator with an optional initializer.
type InitDeclarator struct {
	Decl *Declarator
	Init Expr
}

// TypedefDecl introduces a new type name.
type TypedefDecl struct {
	Spec *TypeSpec
	Decl *Declarator
	P    token.Pos
}

func (d *TypedefDecl) Pos() token.Pos { return d.P }
func (*TypedefDecl) declNode()        {}
func (*TypedefDecl) stmtNode()        {}

// FuncDecl is a function prototype or definition. Body is nil for a
// prototype-only declaration.
type FuncDecl struct {
	Spec *TypeSpec
	Decl *Declarator
	Body *BlockStmt // nil => prototype only
	P    token.Pos
}

func (d *FuncDecl) Pos() token.Pos { return d.P }
func (*FuncDecl) declNode()        {}

// TagDecl is a standalone "struct Foo { ... };" / "union"/"enum" declaration
// with no declarator, used purely to register fields against a tag.
type TagDecl struct {
	Spec *TypeSpec
	P    token.Pos
}

func (d *TagDecl) Pos() token.Pos { return d.P }
func (*TagDecl) declNode()        {}
func (*TagDecl) stmtNode()        {}

// --- Statements ---

type BlockStmt struct {
	Stmts []Stmt
	P     token.Pos
}

func (s *BlockStmt) Pos() token.Pos { return s.P }
func (*BlockStmt) stmtNode()        {}

type ExprStmt struct {
	X Expr
	P token.Pos
}

func (s *ExprStmt) Pos() token.Pos { return s.P }
func (*ExprStmt) stmtNode()        {}

type IfStmt struct {
	Cond Expr
	Then Stmt
	Else Stmt // nil if no else
	P    token.Pos
}

func (s *IfStmt) Pos() token.Pos { return s.P }
func (*IfStmt) stmtNode()        {}

type WhileStmt struct {
	Cond Expr
	Body Stmt
	P    token.Pos
}

func (s *WhileStmt) Pos() token.Pos { return s.P }
func (*WhileStmt) stmtNode()        {}

type DoWhileStmt struct {
	Body Stmt
	Cond Expr
	P    token.Pos
}

func (s *DoWhileStmt) Pos() token.Pos { return s.P }
func (*DoWhileStmt) stmtNode()        {}

type ForStmt struct {
	Init Stmt // ExprStmt, VarDecl, or nil
	Cond Expr // nil => always true
	Step Expr // nil => none
	Body Stmt
	P    token.Pos
}

func (s *ForStmt) Pos() token.Pos { return s.P }
func (*ForStmt) stmtNode()        {}

type SwitchStmt struct {
	Tag  Expr
	Body *BlockStmt // contains CaseStmt/DefaultStmt markers interleaved with statements
	P    token.Pos
}

func (s *SwitchStmt) Pos() token.Pos { return s.P }
func (*SwitchStmt) stmtNode()        {}

// CaseStmt marks "case <const>:" at a point within a switch's statement
// list; it carries no body of its own (the statements that follow, up to
// the next Case/Default/end-of-switch, are the case body).
type CaseStmt struct {
	Value Expr // constant expression
	P     token.Pos
}

func (s *CaseStmt) Pos() token.Pos { return s.P }
func (*CaseStmt) stmtNode()        {}

type DefaultStmt struct {
	P token.Pos
}

func (s *DefaultStmt) Pos() token.Pos { return s.P }
func (*DefaultStmt) stmtNode()        {}

type BreakStmt struct{ P token.Pos }

func (s *BreakStmt) Pos() token.Pos { return s.P }
func (*BreakStmt) stmtNode()        {}

type ContinueStmt struct{ P token.Pos }

func (s *ContinueStmt) Pos() token.Pos { return s.P }
func (*ContinueStmt) stmtNode()        {}

type ReturnStmt struct {
	Value Expr // nil for "return;"
	P     token.Pos
}

func (s *ReturnStmt) Pos() token.Pos { return s.P }
func (*ReturnStmt) stmtNode()        {}

type GotoStmt struct {
	Label string
	P     token.Pos
}

func (s *GotoStmt) Pos() token.Pos { return s.P }
func (*GotoStmt) stmtNode()        {}

type LabeledStmt struct {
	Label string
	Stmt  Stmt
	P     token.Pos
}

func (s *LabeledStmt) Pos() token.Pos { return s.P }
func (*LabeledStmt) stmtNode()        {}

type EmptyStmt struct{ P token.Pos }

func (s *EmptyStmt) Pos() token.Pos { return s.P }
func (*EmptyStmt) stmtNode()        {}

// --- Expressions ---

type IntLit struct {
	Value    int64
	Unsigned bool
	IsLong   bool
	P        token.Pos
}

func (e *IntLit) Pos() token.Pos { return e.P }
func (*IntLit) exprNode()        {}

type FloatLit struct {
	Value    float64
	IsSingle bool // "f" suffix => float, else double
	P        token.Pos
}

func (e *FloatLit) Pos() token.Pos { return e.P }
func (*FloatLit) exprNode()        {}

type CharLit struct {
	Value byte
	P     token.Pos
}

func (e *CharLit) Pos() token.Pos { return e.P }
func (*CharLit) exprNode()        {}

type StringLit struct {
	Value string
	P     token.Pos
}

func (e *StringLit) Pos() token.Pos { return e.P }
func (*StringLit) exprNode()        {}

type Ident struct {
	Name string
	P    token.Pos
}

func (e *Ident) Pos() token.Pos { return e.P }
func (*Ident) exprNode()        {}

// BinaryExpr covers arithmetic, bitwise, comparison, and logical
// short-circuit operators; Op is the source token kind.
type BinaryExpr struct {
	Op    token.Kind
	X, Y  Expr
	P     token.Pos
}

func (e *BinaryExpr) Pos() token.Pos { return e.P }
func (*BinaryExpr) exprNode()        {}

// AssignExpr covers "=" and every compound-assignment operator; CompoundOp
// is token.ILLEGAL for plain "=".
type AssignExpr struct {
	CompoundOp token.Kind
	LHS, RHS   Expr
	P          token.Pos
}

func (e *AssignExpr) Pos() token.Pos { return e.P }
func (*AssignExpr) exprNode()        {}

type UnaryExpr struct {
	Op token.Kind // '-','!','~','&','*'
	X  Expr
	P  token.Pos
}

func (e *UnaryExpr) Pos() token.Pos { return e.P }
func (*UnaryExpr) exprNode()        {}

// IncDecExpr covers ++/-- in both prefix and postfix position.
type IncDecExpr struct {
	Op     token.Kind // INC or DEC
	Prefix bool
	X      Expr
	P      token.Pos
}

func (e *IncDecExpr) Pos() token.Pos { return e.P }
func (*IncDecExpr) exprNode()        {}

type CondExpr struct {
	Cond, Then, Else Expr
	P                token.Pos
}

func (e *CondExpr) Pos() token.Pos { return e.P }
func (*CondExpr) exprNode()        {}

// CommaExpr is "e1, e2": evaluate e1 for side effects, discard, yield e2.
type CommaExpr struct {
	X, Y Expr
	P    token.Pos
}

func (e *CommaExpr) Pos() token.Pos { return e.P }
func (*CommaExpr) exprNode()        {}

type CallExpr struct {
	Callee Expr
	Args   []Expr
	P      token.Pos
}

func (e *CallExpr) Pos() token.Pos { return e.P }
func (*CallExpr) exprNode()        {}

type IndexExpr struct {
	X, Index Expr
	P        token.Pos
}

func (e *IndexExpr) Pos() token.Pos { return e.P }
func (*IndexExpr) exprNode()        {}

// MemberExpr covers both "." and "->"; Arrow distinguishes them (the
// desugaring is identical: *(addr_of(X) + offset)).
type MemberExpr struct {
	X     Expr
	Field string
	Arrow bool
	P     token.Pos
}

func (e *MemberExpr) Pos() token.Pos { return e.P }
func (*MemberExpr) exprNode()        {}

type CastExpr struct {
	Spec *TypeSpec
	Decl *Declarator // abstract declarator (pointer/array suffix, Name=="")
	X    Expr
	P    token.Pos
}

func (e *CastExpr) Pos() token.Pos { return e.P }
func (*CastExpr) exprNode()        {}

// SizeofExpr covers both sizeof(expr) and sizeof(type-name); exactly one of
// X or (Spec,Decl) is set.
type SizeofExpr struct {
	X    Expr
	Spec *TypeSpec
	Decl *Declarator
	P    token.Pos
}

func (e *SizeofExpr) Pos() token.Pos { return e.P }
func (*SizeofExpr) exprNode()        {}
