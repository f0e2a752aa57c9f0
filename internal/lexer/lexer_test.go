package lexer

import (
	"testing"

	"github.com/cc2wasm/cc2wasm/internal/token"
)

func TestNextTokenBasic(t *testing.T) {
	input := `int x = 5 + 3 * 2;`
	want := []token.Kind{
		token.KW_INT, token.IDENT, token.ASSIGN, token.INT_LIT,
		token.PLUS, token.INT_LIT, token.STAR, token.INT_LIT, token.SEMI, token.EOF,
	}
	l := New("t.c", input, nil)
	for i, k := range want {
		tok := l.Next()
		if tok.Kind != k {
			t.Fatalf("token %d: got %s, want %s", i, tok.Kind, k)
		}
	}
}

func TestTypedefFeedback(t *testing.T) {
	ts := NewTypedefScope()
	ts.Bind("Point")
	l := New("t.c", "Point p;", ts)
	tok := l.Next()
	if tok.Kind != token.TYPE_NAME {
		t.Fatalf("got %s, want TYPE_NAME", tok.Kind)
	}
}

func TestStringEscapes(t *testing.T) {
	l := New("t.c", `"a\nb\tc\\d"`, nil)
	tok := l.Next()
	if tok.Kind != token.STRING_LIT {
		t.Fatalf("got %s, want STRING_LIT", tok.Kind)
	}
	want := "a\nb\tc\\d"
	if tok.Literal != want {
		t.Fatalf("got %q, want %q", tok.Literal, want)
	}
}

func TestCharLiteral(t *testing.T) {
	l := New("t.c", `'\n'`, nil)
	tok := l.Next()
	if tok.Kind != token.CHAR_LIT || tok.Literal != "\n" {
		t.Fatalf("got %v %q", tok.Kind, tok.Literal)
	}
}

func TestOperators(t *testing.T) {
	input := "a += b -= c == d != e <= f >= g && h || i << j >> k -> l++ m--"
	l := New("t.c", input, nil)
	var kinds []token.Kind
	for {
		tok := l.Next()
		if tok.Kind == token.EOF {
			break
		}
		kinds = append(kinds, tok.Kind)
	}
	wantOps := []token.Kind{
		token.IDENT, token.ADD_ASSIGN, token.IDENT, token.SUB_ASSIGN, token.IDENT,
		token.EQ, token.IDENT, token.NEQ, token.IDENT, token.LE, token.IDENT,
		token.GE, token.IDENT, token.AND_AND, token.IDENT, token.OR_OR, token.IDENT,
		token.SHL, token.IDENT, token.SHR, token.IDENT, token.ARROW, token.IDENT,
		token.INC, token.IDENT, token.DEC,
	}
	if len(kinds) != len(wantOps) {
		t.Fatalf("got %d tokens, want %d: %v", len(kinds), len(wantOps), kinds)
	}
	for i := range wantOps {
		if kinds[i] != wantOps[i] {
			t.Fatalf("token %d: got %s, want %s", i, kinds[i], wantOps[i])
		}
	}
}

func TestLineComment(t *testing.T) {
	l := New("t.c", "int x; // trailing comment\nint y;", nil)
	var kinds []token.Kind
	for {
		tok := l.Next()
		if tok.Kind == token.EOF {
			break
		}
		kinds = append(kinds, tok.Kind)
	}
	if len(kinds) != 6 {
		t.Fatalf("got %d tokens: %v", len(kinds), kinds)
	}
}
