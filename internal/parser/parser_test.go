package parser

import (
	"testing"

	"github.com/cc2wasm/cc2wasm/internal/ast"
)

func TestParseSimpleFunction(t *testing.T) {
	src := `int add(int a, int b) { return a + b; }`
	p := New("t.c", src)
	tu := p.Parse()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("unexpected errors: %s", p.Diagnostics().Format())
	}
	if len(tu.Decls) != 1 {
		t.Fatalf("expected 1 decl, got %d", len(tu.Decls))
	}
	fn, ok := tu.Decls[0].(*ast.FuncDecl)
	if !ok {
		t.Fatalf("expected FuncDecl, got %T", tu.Decls[0])
	}
	if fn.Decl.Name != "add" || len(fn.Decl.Params) != 2 {
		t.Fatalf("unexpected decl: %+v", fn.Decl)
	}
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("expected 1 statement in body, got %d", len(fn.Body.Stmts))
	}
}

func TestParseTypedefFeedback(t *testing.T) {
	src := `typedef struct { int x; int y; } Point;
Point make(int x, int y) { Point p; p.x = x; p.y = y; return p; }`
	p := New("t.c", src)
	tu := p.Parse()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("unexpected errors: %s", p.Diagnostics().Format())
	}
	if len(tu.Decls) != 2 {
		t.Fatalf("expected 2 decls, got %d", len(tu.Decls))
	}
}

func TestParseControlFlow(t *testing.T) {
	src := `int f(int n) {
		int sum = 0;
		for (int i = 0; i < n; i++) {
			if (i % 2 == 0) { sum += i; } else { continue; }
		}
		while (sum > 100) { sum--; }
		do { sum++; } while (sum < 0);
		switch (n) {
		case 1:
			sum = 1;
			break;
		default:
			sum = 2;
		}
		return sum;
	}`
	p := New("t.c", src)
	_ = p.Parse()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("unexpected errors: %s", p.Diagnostics().Format())
	}
}

func TestParseExpressions(t *testing.T) {
	src := `int f(int *p, int a) {
		return (*p + a) > 0 ? a++ : --a;
	}`
	p := New("t.c", src)
	_ = p.Parse()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("unexpected errors: %s", p.Diagnostics().Format())
	}
}

func TestParseGoto(t *testing.T) {
	src := `int f() { goto done; done: return 0; }`
	p := New("t.c", src)
	_ = p.Parse()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("unexpected errors: %s", p.Diagnostics().Format())
	}
}
