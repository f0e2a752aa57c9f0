// Package parser implements a hand-written recursive-descent / precedence-
// climbing parser over the token stream produced by internal/lexer. As
// spec.md scopes the parser's internals out of the core engineering effort
// ("an external collaborator whose contract we pin down"), this is a direct
// recursive-descent implementation of the same token grammar a generated
// LALR(1) table would accept, rather than a generated parser — the
// behavioral contract (AST shape, typedef-feedback scope stack) is what
// downstream passes depend on, not the parsing technique.
//
// The parser owns a lexer.TypedefScope and pushes/pops it at block and
// function boundaries so the lexer can disambiguate "Foo x;" (declaration)
// from "Foo * x;" (expression) by emitting TYPE_NAME instead of IDENT for
// names already bound by a typedef.
package parser

import (
	"fmt"

	"github.com/cc2wasm/cc2wasm/internal/ast"
	"github.com/cc2wasm/cc2wasm/internal/diagnostic"
	"github.com/cc2wasm/cc2wasm/internal/lexer"
	"github.com/cc2wasm/cc2wasm/internal/token"
)

// Parser consumes a token stream and builds an AST.
type Parser struct {
	file     string
	lex      *lexer.Lexer
	typedefs *lexer.TypedefScope
	diags    *diagnostic.Diagnostics

	cur  token.Token
	peek token.Token
}

// New creates a Parser over src, attributed to file for diagnostics.
func New(file, src string) *Parser {
	ts := lexer.NewTypedefScope()
	p := &Parser{
		file:     file,
		lex:      lexer.New(file, src, ts),
		typedefs: ts,
		diags:    diagnostic.New(),
	}
	p.next()
	p.next()
	return p
}

func (p *Parser) Diagnostics() *diagnostic.Diagnostics { return p.diags }

func (p *Parser) next() {
	p.cur = p.peek
	// peek was lexed before any typedef bound since; reclassify it now.
	if p.cur.Kind == token.IDENT && p.typedefs.IsTypedef(p.cur.Literal) {
		p.cur.Kind = token.TYPE_NAME
	}
	p.peek = p.lex.Next()
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.diags.Errorf(diagnostic.ParseError, p.cur.Pos, format, args...)
}

func (p *Parser) expect(k token.Kind) token.Token {
	if p.cur.Kind != k {
		p.errorf("unexpected token %s (%q), expected %s", p.cur.Kind, p.cur.Literal, k)
		return p.cur
	}
	t := p.cur
	p.next()
	return t
}

func (p *Parser) at(k token.Kind) bool { return p.cur.Kind == k }

// Parse parses an entire translation unit.
func (p *Parser) Parse() *ast.TranslationUnit {
	tu := &ast.TranslationUnit{}
	for !p.at(token.EOF) {
		d := p.parseTopDecl()
		if d != nil {
			tu.Decls = append(tu.Decls, d)
		}
		if p.at(token.ILLEGAL) {
			p.errorf("illegal token: %s", p.cur.Literal)
			p.next()
		}
	}
	return tu
}

// --- Declarations ---

func (p *Parser) parseTopDecl() ast.Decl {
	pos := p.cur.Pos
	spec := p.parseTypeSpec()
	if spec == nil {
		p.errorf("expected declaration, got %s", p.cur.Kind)
		p.next()
		return nil
	}

	if spec.Storage == "typedef" {
		decl := p.parseDeclarator(spec)
		p.typedefs.Bind(decl.Name)
		p.expect(token.SEMI)
		return &ast.TypedefDecl{Spec: spec, Decl: decl, P: pos}
	}

	if p.at(token.SEMI) {
		// "struct Foo { ... };" with no declarator.
		p.next()
		return &ast.TagDecl{Spec: spec, P: pos}
	}

	decl := p.parseDeclarator(spec)
	if decl.IsFunc && p.at(token.LBRACE) {
		body := p.parseBlock()
		return &ast.FuncDecl{Spec: spec, Decl: decl, Body: body, P: pos}
	}
	if decl.IsFunc {
		p.expect(token.SEMI)
		return &ast.FuncDecl{Spec: spec, Decl: decl, Body: nil, P: pos}
	}

	// Variable declaration, possibly with multiple comma-separated
	// declarators and an initializer.
	vd := &ast.VarDecl{Spec: spec, P: pos}
	vd.Decls = append(vd.Decls, p.parseInitDeclaratorTail(decl))
	for p.at(token.COMMA) {
		p.next()
		d := p.parseDeclarator(spec)
		vd.Decls = append(vd.Decls, p.parseInitDeclaratorTail(d))
	}
	p.expect(token.SEMI)
	return vd
}

func (p *Parser) parseInitDeclaratorTail(decl *ast.Declarator) *ast.InitDeclarator {
	id := &ast.InitDeclarator{Decl: decl}
	if p.at(token.ASSIGN) {
		p.next()
		id.Init = p.parseAssignExpr()
	}
	return id
}

// parseTypeSpec parses storage class, qualifiers, and the base type,
// including inline struct/union/enum definitions.
func (p *Parser) parseTypeSpec() *ast.TypeSpec {
	spec := &ast.TypeSpec{P: p.cur.Pos}
	sawBase := false

loop:
	for {
		switch p.cur.Kind {
		case token.KW_TYPEDEF:
			spec.Storage = "typedef"
			p.next()
		case token.KW_STATIC:
			spec.Storage = "static"
			p.next()
		case token.KW_EXTERN:
			spec.Storage = "extern"
			p.next()
		case token.KW_AUTO:
			spec.Storage = "auto"
			p.next()
		case token.KW_REGISTER:
			spec.Storage = "register"
			p.next()
		case token.KW_CONST, token.KW_VOLATILE:
			p.next() // qualifiers are accepted but not modeled further
		case token.KW_VOID:
			spec.Base = "void"
			sawBase = true
			p.next()
		case token.KW_CHAR:
			spec.Base = "char"
			sawBase = true
			p.next()
		case token.KW_SHORT:
			spec.Base = "short"
			sawBase = true
			p.next()
		case token.KW_INT:
			if spec.Base == "" {
				spec.Base = "int"
			}
			sawBase = true
			p.next()
		case token.KW_LONG:
			spec.LongCount++
			spec.Base = "long"
			sawBase = true
			p.next()
		case token.KW_FLOAT:
			spec.Base = "float"
			sawBase = true
			p.next()
		case token.KW_DOUBLE:
			spec.Base = "double"
			sawBase = true
			p.next()
		case token.KW_SIGNED:
			spec.Signed = true
			sawBase = true
			p.next()
		case token.KW_UNSIGNED:
			spec.Unsigned = true
			sawBase = true
			p.next()
		case token.KW_STRUCT, token.KW_UNION:
			spec.IsStruct = p.cur.Kind == token.KW_STRUCT
			spec.IsUnion = p.cur.Kind == token.KW_UNION
			p.next()
			if p.at(token.IDENT) || p.at(token.TYPE_NAME) {
				spec.TagName = p.cur.Literal
				p.next()
			}
			if p.at(token.LBRACE) {
				p.next()
				for !p.at(token.RBRACE) && !p.at(token.EOF) {
					spec.Fields = append(spec.Fields, p.parseFieldDecl())
				}
				p.expect(token.RBRACE)
			}
			sawBase = true
			break loop
		case token.KW_ENUM:
			spec.IsEnum = true
			p.next()
			if p.at(token.IDENT) || p.at(token.TYPE_NAME) {
				spec.TagName = p.cur.Literal
				p.next()
			}
			if p.at(token.LBRACE) {
				p.next()
				var prev ast.Expr
				_ = prev
				for !p.at(token.RBRACE) && !p.at(token.EOF) {
					e := &ast.Enumerator{Name: p.expect(token.IDENT).Literal, P: p.cur.Pos}
					if p.at(token.ASSIGN) {
						p.next()
						e.Value = p.parseAssignExpr()
					}
					spec.Enumerators = append(spec.Enumerators, e)
					if p.at(token.COMMA) {
						p.next()
					} else {
						break
					}
				}
				p.expect(token.RBRACE)
			}
			sawBase = true
			break loop
		case token.TYPE_NAME:
			spec.Base = p.cur.Literal
			sawBase = true
			p.next()
			break loop
		default:
			break loop
		}
	}

	if !sawBase {
		return nil
	}
	return spec
}

func (p *Parser) parseFieldDecl() *ast.FieldDecl {
	pos := p.cur.Pos
	spec := p.parseTypeSpec()
	decl := p.parseDeclarator(spec)
	p.expect(token.SEMI)
	return &ast.FieldDecl{Spec: spec, Decl: decl, P: pos}
}

// parseDeclarator parses the "*name[3]" / "*name(params)" part of a
// declaration, following the base type spec.
func (p *Parser) parseDeclarator(spec *ast.TypeSpec) *ast.Declarator {
	pos := p.cur.Pos
	d := &ast.Declarator{P: pos}
	for p.at(token.STAR) {
		d.Pointer++
		p.next()
	}
	if p.at(token.IDENT) || p.at(token.TYPE_NAME) {
		d.Name = p.cur.Literal
		p.next()
	}
	for {
		if p.at(token.LBRACKET) {
			p.next()
			if p.at(token.RBRACKET) {
				d.ArrayDims = append(d.ArrayDims, nil)
			} else {
				d.ArrayDims = append(d.ArrayDims, p.parseAssignExpr())
			}
			p.expect(token.RBRACKET)
			continue
		}
		if p.at(token.LPAREN) {
			p.next()
			d.IsFunc = true
			for !p.at(token.RPAREN) && !p.at(token.EOF) {
				if p.at(token.ELLIPSIS) {
					d.Variadic = true
					p.next()
					break
				}
				pspec := p.parseTypeSpec()
				pdecl := p.parseDeclarator(pspec)
				d.Params = append(d.Params, &ast.ParamDecl{Spec: pspec, Decl: pdecl, P: pdecl.P})
				if p.at(token.COMMA) {
					p.next()
				} else {
					break
				}
			}
			p.expect(token.RPAREN)
			continue
		}
		break
	}
	return d
}

// --- Statements ---

func (p *Parser) parseBlock() *ast.BlockStmt {
	pos := p.expect(token.LBRACE).Pos
	p.typedefs.Push()
	defer p.typedefs.Pop()
	b := &ast.BlockStmt{P: pos}
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		b.Stmts = append(b.Stmts, p.parseStmt())
	}
	p.expect(token.RBRACE)
	return b
}

func (p *Parser) parseStmt() ast.Stmt {
	pos := p.cur.Pos
	switch p.cur.Kind {
	case token.LBRACE:
		return p.parseBlock()
	case token.SEMI:
		p.next()
		return &ast.EmptyStmt{P: pos}
	case token.KW_IF:
		return p.parseIf()
	case token.KW_WHILE:
		return p.parseWhile()
	case token.KW_DO:
		return p.parseDoWhile()
	case token.KW_FOR:
		return p.parseFor()
	case token.KW_SWITCH:
		return p.parseSwitch()
	case token.KW_CASE:
		p.next()
		v := p.parseCondExpr()
		p.expect(token.COLON)
		return &ast.CaseStmt{Value: v, P: pos}
	case token.KW_DEFAULT:
		p.next()
		p.expect(token.COLON)
		return &ast.DefaultStmt{P: pos}
	case token.KW_BREAK:
		p.next()
		p.expect(token.SEMI)
		return &ast.BreakStmt{P: pos}
	case token.KW_CONTINUE:
		p.next()
		p.expect(token.SEMI)
		return &ast.ContinueStmt{P: pos}
	case token.KW_RETURN:
		p.next()
		var v ast.Expr
		if !p.at(token.SEMI) {
			v = p.parseExpr()
		}
		p.expect(token.SEMI)
		return &ast.ReturnStmt{Value: v, P: pos}
	case token.KW_GOTO:
		p.next()
		name := p.expect(token.IDENT).Literal
		p.expect(token.SEMI)
		return &ast.GotoStmt{Label: name, P: pos}
	case token.KW_TYPEDEF, token.KW_STATIC, token.KW_EXTERN, token.KW_AUTO,
		token.KW_REGISTER, token.KW_CONST, token.KW_VOLATILE,
		token.KW_VOID, token.KW_CHAR, token.KW_SHORT, token.KW_INT,
		token.KW_LONG, token.KW_FLOAT, token.KW_DOUBLE, token.KW_SIGNED,
		token.KW_UNSIGNED, token.KW_STRUCT, token.KW_UNION, token.KW_ENUM:
		return p.parseLocalDecl()
	case token.TYPE_NAME:
		return p.parseLocalDecl()
	case token.IDENT:
		if p.peek.Kind == token.COLON {
			name := p.cur.Literal
			p.next()
			p.next()
			return &ast.LabeledStmt{Label: name, Stmt: p.parseStmt(), P: pos}
		}
		return p.parseExprStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseLocalDecl() ast.Stmt {
	pos := p.cur.Pos
	spec := p.parseTypeSpec()
	if spec == nil {
		p.errorf("expected declaration")
		p.next()
		return &ast.EmptyStmt{P: pos}
	}
	if spec.Storage == "typedef" {
		decl := p.parseDeclarator(spec)
		p.typedefs.Bind(decl.Name)
		p.expect(token.SEMI)
		return &ast.TypedefDecl{Spec: spec, Decl: decl, P: pos}
	}
	if p.at(token.SEMI) {
		p.next()
		return &ast.TagDecl{Spec: spec, P: pos}
	}
	vd := &ast.VarDecl{Spec: spec, P: pos}
	decl := p.parseDeclarator(spec)
	vd.Decls = append(vd.Decls, p.parseInitDeclaratorTail(decl))
	for p.at(token.COMMA) {
		p.next()
		d := p.parseDeclarator(spec)
		vd.Decls = append(vd.Decls, p.parseInitDeclaratorTail(d))
	}
	p.expect(token.SEMI)
	return vd
}

func (p *Parser) parseExprStmt() ast.Stmt {
	pos := p.cur.Pos
	e := p.parseExpr()
	p.expect(token.SEMI)
	return &ast.ExprStmt{X: e, P: pos}
}

func (p *Parser) parseIf() ast.Stmt {
	pos := p.expect(token.KW_IF).Pos
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	then := p.parseStmt()
	var els ast.Stmt
	if p.at(token.KW_ELSE) {
		p.next()
		els = p.parseStmt()
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: els, P: pos}
}

func (p *Parser) parseWhile() ast.Stmt {
	pos := p.expect(token.KW_WHILE).Pos
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	body := p.parseStmt()
	return &ast.WhileStmt{Cond: cond, Body: body, P: pos}
}

func (p *Parser) parseDoWhile() ast.Stmt {
	pos := p.expect(token.KW_DO).Pos
	body := p.parseStmt()
	p.expect(token.KW_WHILE)
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	p.expect(token.SEMI)
	return &ast.DoWhileStmt{Body: body, Cond: cond, P: pos}
}

func (p *Parser) parseFor() ast.Stmt {
	pos := p.expect(token.KW_FOR).Pos
	p.expect(token.LPAREN)
	var init ast.Stmt
	if !p.at(token.SEMI) {
		init = p.parseForInit()
	} else {
		p.next()
	}
	var cond ast.Expr
	if !p.at(token.SEMI) {
		cond = p.parseExpr()
	}
	p.expect(token.SEMI)
	var step ast.Expr
	if !p.at(token.RPAREN) {
		step = p.parseExpr()
	}
	p.expect(token.RPAREN)
	body := p.parseStmt()
	return &ast.ForStmt{Init: init, Cond: cond, Step: step, Body: body, P: pos}
}

// parseForInit handles "for (int i = 0; ...)" and "for (i = 0; ...)"; it
// consumes the trailing semicolon itself so the declaration path (which
// shares parseLocalDecl) and the expression path agree on what's consumed.
func (p *Parser) parseForInit() ast.Stmt {
	switch p.cur.Kind {
	case token.KW_STATIC, token.KW_CONST, token.KW_VOID, token.KW_CHAR,
		token.KW_SHORT, token.KW_INT, token.KW_LONG, token.KW_FLOAT,
		token.KW_DOUBLE, token.KW_SIGNED, token.KW_UNSIGNED, token.KW_STRUCT,
		token.KW_UNION, token.KW_ENUM, token.TYPE_NAME:
		return p.parseLocalDecl()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseSwitch() ast.Stmt {
	pos := p.expect(token.KW_SWITCH).Pos
	p.expect(token.LPAREN)
	tag := p.parseExpr()
	p.expect(token.RPAREN)
	body := p.parseBlock()
	return &ast.SwitchStmt{Tag: tag, Body: body, P: pos}
}

// --- Expressions (precedence-climbing) ---

// parseExpr parses a full expression, including the comma operator.
func (p *Parser) parseExpr() ast.Expr {
	e := p.parseAssignExpr()
	for p.at(token.COMMA) {
		pos := p.cur.Pos
		p.next()
		rhs := p.parseAssignExpr()
		e = &ast.CommaExpr{X: e, Y: rhs, P: pos}
	}
	return e
}

var compoundAssignOps = map[token.Kind]bool{
	token.ADD_ASSIGN: true, token.SUB_ASSIGN: true, token.MUL_ASSIGN: true,
	token.DIV_ASSIGN: true, token.MOD_ASSIGN: true, token.AND_ASSIGN: true,
	token.OR_ASSIGN: true, token.XOR_ASSIGN: true, token.SHL_ASSIGN: true,
	token.SHR_ASSIGN: true,
}

func (p *Parser) parseAssignExpr() ast.Expr {
	lhs := p.parseCondExpr()
	if p.at(token.ASSIGN) {
		pos := p.cur.Pos
		p.next()
		rhs := p.parseAssignExpr()
		return &ast.AssignExpr{CompoundOp: token.ILLEGAL, LHS: lhs, RHS: rhs, P: pos}
	}
	if compoundAssignOps[p.cur.Kind] {
		op := p.cur.Kind
		pos := p.cur.Pos
		p.next()
		rhs := p.parseAssignExpr()
		return &ast.AssignExpr{CompoundOp: op, LHS: lhs, RHS: rhs, P: pos}
	}
	return lhs
}

func (p *Parser) parseCondExpr() ast.Expr {
	cond := p.parseLogicalOr()
	if p.at(token.QUESTION) {
		pos := p.cur.Pos
		p.next()
		then := p.parseExpr()
		p.expect(token.COLON)
		els := p.parseCondExpr()
		return &ast.CondExpr{Cond: cond, Then: then, Else: els, P: pos}
	}
	return cond
}

// binLevel is one precedence level of left-associative binary operators.
type binLevel struct {
	ops  []token.Kind
	next func(p *Parser) ast.Expr
}

func (p *Parser) parseLogicalOr() ast.Expr  { return p.parseBinaryLevel(0) }

var levels []binLevel

func init() {
	levels = []binLevel{
		{[]token.Kind{token.OR_OR}, nil},
		{[]token.Kind{token.AND_AND}, nil},
		{[]token.Kind{token.PIPE}, nil},
		{[]token.Kind{token.CARET}, nil},
		{[]token.Kind{token.AMP}, nil},
		{[]token.Kind{token.EQ, token.NEQ}, nil},
		{[]token.Kind{token.LT, token.GT, token.LE, token.GE}, nil},
		{[]token.Kind{token.SHL, token.SHR}, nil},
		{[]token.Kind{token.PLUS, token.MINUS}, nil},
		{[]token.Kind{token.STAR, token.SLASH, token.PERCENT}, nil},
	}
}

func (p *Parser) parseBinaryLevel(i int) ast.Expr {
	if i == len(levels) {
		return p.parseUnary()
	}
	lhs := p.parseBinaryLevel(i + 1)
	for containsKind(levels[i].ops, p.cur.Kind) {
		op := p.cur.Kind
		pos := p.cur.Pos
		p.next()
		rhs := p.parseBinaryLevel(i + 1)
		lhs = &ast.BinaryExpr{Op: op, X: lhs, Y: rhs, P: pos}
	}
	return lhs
}

func containsKind(ks []token.Kind, k token.Kind) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}

var unaryOps = map[token.Kind]bool{
	token.MINUS: true, token.NOT: true, token.TILDE: true,
	token.AMP: true, token.STAR: true, token.PLUS: true,
}

func (p *Parser) parseUnary() ast.Expr {
	pos := p.cur.Pos
	switch p.cur.Kind {
	case token.INC, token.DEC:
		op := p.cur.Kind
		p.next()
		x := p.parseUnary()
		return &ast.IncDecExpr{Op: op, Prefix: true, X: x, P: pos}
	case token.KW_SIZEOF:
		p.next()
		if p.at(token.LPAREN) && p.looksLikeTypeName() {
			p.next()
			spec := p.parseTypeSpec()
			decl := p.parseAbstractDeclarator()
			p.expect(token.RPAREN)
			return &ast.SizeofExpr{Spec: spec, Decl: decl, P: pos}
		}
		x := p.parseUnary()
		return &ast.SizeofExpr{X: x, P: pos}
	}
	if unaryOps[p.cur.Kind] {
		op := p.cur.Kind
		p.next()
		x := p.parseUnary()
		return &ast.UnaryExpr{Op: op, X: x, P: pos}
	}
	if p.at(token.LPAREN) && p.looksLikeTypeName() {
		save := p.cur.Pos
		p.next()
		spec := p.parseTypeSpec()
		decl := p.parseAbstractDeclarator()
		p.expect(token.RPAREN)
		x := p.parseUnary()
		return &ast.CastExpr{Spec: spec, Decl: decl, X: x, P: save}
	}
	return p.parsePostfix()
}

// looksLikeTypeName reports whether the token after the current '(' begins
// a type-name, used to distinguish a cast/sizeof-type from a parenthesized
// expression. This relies entirely on the lexer's typedef feedback for
// user-defined type names.
func (p *Parser) looksLikeTypeName() bool {
	switch p.peek.Kind {
	case token.KW_VOID, token.KW_CHAR, token.KW_SHORT, token.KW_INT,
		token.KW_LONG, token.KW_FLOAT, token.KW_DOUBLE, token.KW_SIGNED,
		token.KW_UNSIGNED, token.KW_STRUCT, token.KW_UNION, token.KW_ENUM,
		token.KW_CONST, token.TYPE_NAME:
		return true
	}
	return false
}

func (p *Parser) parseAbstractDeclarator() *ast.Declarator {
	pos := p.cur.Pos
	d := &ast.Declarator{P: pos}
	for p.at(token.STAR) {
		d.Pointer++
		p.next()
	}
	for p.at(token.LBRACKET) {
		p.next()
		if p.at(token.RBRACKET) {
			d.ArrayDims = append(d.ArrayDims, nil)
		} else {
			d.ArrayDims = append(d.ArrayDims, p.parseAssignExpr())
		}
		p.expect(token.RBRACKET)
	}
	return d
}

func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		pos := p.cur.Pos
		switch p.cur.Kind {
		case token.LBRACKET:
			p.next()
			idx := p.parseExpr()
			p.expect(token.RBRACKET)
			e = &ast.IndexExpr{X: e, Index: idx, P: pos}
		case token.LPAREN:
			p.next()
			var args []ast.Expr
			for !p.at(token.RPAREN) && !p.at(token.EOF) {
				args = append(args, p.parseAssignExpr())
				if p.at(token.COMMA) {
					p.next()
				} else {
					break
				}
			}
			p.expect(token.RPAREN)
			e = &ast.CallExpr{Callee: e, Args: args, P: pos}
		case token.DOT:
			p.next()
			name := p.expect(token.IDENT).Literal
			e = &ast.MemberExpr{X: e, Field: name, Arrow: false, P: pos}
		case token.ARROW:
			p.next()
			name := p.expect(token.IDENT).Literal
			e = &ast.MemberExpr{X: e, Field: name, Arrow: true, P: pos}
		case token.INC, token.DEC:
			op := p.cur.Kind
			p.next()
			e = &ast.IncDecExpr{Op: op, Prefix: false, X: e, P: pos}
		default:
			return e
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	pos := p.cur.Pos
	switch p.cur.Kind {
	case token.INT_LIT:
		lit := p.cur.Literal
		p.next()
		return parseIntLit(lit, pos)
	case token.FLOAT_LIT:
		lit := p.cur.Literal
		p.next()
		return parseFloatLit(lit, pos)
	case token.CHAR_LIT:
		lit := p.cur.Literal
		p.next()
		var b byte
		if len(lit) > 0 {
			b = lit[0]
		}
		return &ast.CharLit{Value: b, P: pos}
	case token.STRING_LIT:
		lit := p.cur.Literal
		p.next()
		return &ast.StringLit{Value: lit, P: pos}
	case token.IDENT, token.TYPE_NAME:
		name := p.cur.Literal
		p.next()
		return &ast.Ident{Name: name, P: pos}
	case token.LPAREN:
		p.next()
		e := p.parseExpr()
		p.expect(token.RPAREN)
		return e
	default:
		p.errorf("unexpected token %s in expression", p.cur.Kind)
		p.next()
		return &ast.IntLit{Value: 0, P: pos}
	}
}

func parseIntLit(lit string, pos token.Pos) *ast.IntLit {
	var v int64
	base := 10
	s := lit
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}
	unsigned, isLong := false, false
	end := len(s)
	for end > 0 && (s[end-1] == 'u' || s[end-1] == 'U' || s[end-1] == 'l' || s[end-1] == 'L') {
		if s[end-1] == 'u' || s[end-1] == 'U' {
			unsigned = true
		} else {
			isLong = true
		}
		end--
	}
	digits := s[:end]
	for _, c := range digits {
		var d int64
		switch {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case c >= 'a' && c <= 'f':
			d = int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = int64(c-'A') + 10
		default:
			continue
		}
		v = v*int64(base) + d
	}
	return &ast.IntLit{Value: v, Unsigned: unsigned, IsLong: isLong, P: pos}
}

func parseFloatLit(lit string, pos token.Pos) *ast.FloatLit {
	isSingle := false
	s := lit
	if len(s) > 0 && (s[len(s)-1] == 'f' || s[len(s)-1] == 'F') {
		isSingle = true
		s = s[:len(s)-1]
	}
	var v float64
	fmt.Sscanf(s, "%g", &v)
	return &ast.FloatLit{Value: v, IsSingle: isSingle, P: pos}
}
