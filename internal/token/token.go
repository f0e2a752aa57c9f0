// Package token defines the lexical token vocabulary shared by the lexer
// and the parser.
package token

// Pos is a source span used for diagnostics.
type Pos struct {
	File   string
	Line   int
	Column int
}

// Kind identifies a token class.
type Kind int

const (
	EOF Kind = iota
	ILLEGAL

	IDENT     // foo
	TYPE_NAME // identifier previously bound to a typedef
	INT_LIT
	FLOAT_LIT
	CHAR_LIT
	STRING_LIT

	// Keywords
	KW_AUTO
	KW_BREAK
	KW_CASE
	KW_CHAR
	KW_CONST
	KW_CONTINUE
	KW_DEFAULT
	KW_DO
	KW_DOUBLE
	KW_ELSE
	KW_ENUM
	KW_EXTERN
	KW_FLOAT
	KW_FOR
	KW_GOTO
	KW_IF
	KW_INT
	KW_LONG
	KW_REGISTER
	KW_RETURN
	KW_SHORT
	KW_SIGNED
	KW_SIZEOF
	KW_STATIC
	KW_STRUCT
	KW_SWITCH
	KW_TYPEDEF
	KW_UNION
	KW_UNSIGNED
	KW_VOID
	KW_VOLATILE
	KW_WHILE

	// Punctuation / operators
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	SEMI
	COMMA
	COLON
	QUESTION
	DOT
	ARROW
	ELLIPSIS

	ASSIGN
	ADD_ASSIGN
	SUB_ASSIGN
	MUL_ASSIGN
	DIV_ASSIGN
	MOD_ASSIGN
	AND_ASSIGN
	OR_ASSIGN
	XOR_ASSIGN
	SHL_ASSIGN
	SHR_ASSIGN

	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	INC
	DEC

	AMP
	PIPE
	CARET
	TILDE
	SHL
	SHR

	NOT
	AND_AND
	OR_OR

	EQ
	NEQ
	LT
	GT
	LE
	GE
)

var names = map[Kind]string{
	EOF:        "EOF",
	ILLEGAL:    "ILLEGAL",
	IDENT:      "IDENT",
	TYPE_NAME:  "TYPE_NAME",
	INT_LIT:    "INT_LIT",
	FLOAT_LIT:  "FLOAT_LIT",
	CHAR_LIT:   "CHAR_LIT",
	STRING_LIT: "STRING_LIT",
}

var keywords = map[string]Kind{
	"auto": KW_AUTO, "break": KW_BREAK, "case": KW_CASE, "char": KW_CHAR,
	"const": KW_CONST, "continue": KW_CONTINUE, "default": KW_DEFAULT,
	"do": KW_DO, "double": KW_DOUBLE, "else": KW_ELSE, "enum": KW_ENUM,
	"extern": KW_EXTERN, "float": KW_FLOAT, "for": KW_FOR, "goto": KW_GOTO,
	"if": KW_IF, "int": KW_INT, "long": KW_LONG, "register": KW_REGISTER,
	"return": KW_RETURN, "short": KW_SHORT, "signed": KW_SIGNED,
	"sizeof": KW_SIZEOF, "static": KW_STATIC, "struct": KW_STRUCT,
	"switch": KW_SWITCH, "typedef": KW_TYPEDEF, "union": KW_UNION,
	"unsigned": KW_UNSIGNED, "void": KW_VOID, "volatile": KW_VOLATILE,
	"while": KW_WHILE,
}

// LookupIdent classifies an identifier as a keyword or a plain identifier.
// Typedef reclassification (IDENT -> TYPE_NAME) happens in the lexer, which
// consults the parser's typedef scope stack; this function only handles the
// fixed keyword set.
func LookupIdent(s string) Kind {
	if k, ok := keywords[s]; ok {
		return k
	}
	return IDENT
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	for kw, kind := range keywords {
		if kind == k {
			return kw
		}
	}
	return "?"
}

// Token is a single lexical token with its source span.
type Token struct {
	Kind    Kind
	Literal string
	Pos     Pos
}
