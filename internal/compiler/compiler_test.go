package compiler

import (
	"context"
	"testing"
)

func TestCompileValidProgram(t *testing.T) {
	source := `int main() { return 0; }`

	res, err := Compile("test.c", source, DefaultOptions)
	if err != nil {
		t.Fatalf("unexpected pipeline error: %s", err)
	}
	if res.Diagnostics != nil && res.Diagnostics.HasErrors() {
		t.Fatalf("expected no errors, got:\n%s", res.Diagnostics.Format())
	}
	if len(res.Wasm) == 0 {
		t.Fatal("expected wasm output")
	}
	if string(res.Wasm[:4]) != "\x00asm" {
		t.Fatalf("expected wasm magic header, got %x", res.Wasm[:4])
	}
}

func TestCompileParseError(t *testing.T) {
	source := `int main( { return 0; }` // unbalanced parameter list

	res, err := Compile("test.c", source, DefaultOptions)
	if err != nil {
		t.Fatalf("parse errors should not surface as pipeline errors: %s", err)
	}
	if res.Diagnostics == nil || !res.Diagnostics.HasErrors() {
		t.Error("expected parse errors")
	}
	if res.Wasm != nil {
		t.Error("expected no wasm output on parse error")
	}
}

func TestCompileSemanticError(t *testing.T) {
	source := `int main() { return undeclared; }`

	res, err := Compile("test.c", source, DefaultOptions)
	if err != nil {
		t.Fatalf("semantic errors should not surface as pipeline errors: %s", err)
	}
	if res.Diagnostics == nil || !res.Diagnostics.HasErrors() {
		t.Error("expected a semantic error for the undeclared identifier")
	}
}

func TestCompileEmitIR(t *testing.T) {
	source := `int add(int a, int b) { return a + b; }
int main() { return add(2, 3); }`

	opts := DefaultOptions
	opts.EmitIR = true
	res, err := Compile("test.c", source, opts)
	if err != nil {
		t.Fatalf("unexpected pipeline error: %s", err)
	}
	if res.Diagnostics != nil && res.Diagnostics.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", res.Diagnostics.Format())
	}
	if res.IRDump == "" {
		t.Error("expected a non-empty IR dump when EmitIR is set")
	}
}

func TestCheckValidProgram(t *testing.T) {
	diags := Check("test.c", `int main() { return 0; }`)
	if diags.HasErrors() {
		t.Fatalf("expected no errors, got:\n%s", diags.Format())
	}
}

func TestCheckReportsErrors(t *testing.T) {
	diags := Check("test.c", `int main() { return undeclared; }`)
	if !diags.HasErrors() {
		t.Error("expected an error for the undeclared identifier")
	}
}

func TestCompileWithoutStackPacking(t *testing.T) {
	source := `int f(int n) {
		int a = n;
		int b = n + 1;
		int c = n + 2;
		return a + b + c;
	}
	int main() { return f(1); }`

	opts := Options{PackStack: false, TailCall: true}
	res, err := Compile("test.c", source, opts)
	if err != nil {
		t.Fatalf("unexpected pipeline error: %s", err)
	}
	if res.Diagnostics != nil && res.Diagnostics.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", res.Diagnostics.Format())
	}
	if len(res.Wasm) == 0 {
		t.Fatal("expected wasm output with stack packing disabled")
	}
}

// TestCompileAndRunDenseSwitchWithNonZeroLabels guards against a br_table
// lowering that indexes directly off the raw case value: case labels here
// start at 10, not 0, which is exactly the shape that silently always
// branches to default if the tag isn't normalized by subtracting the
// label minimum first.
func TestCompileAndRunDenseSwitchWithNonZeroLabels(t *testing.T) {
	source := `
		int classify(int code) {
			switch (code) {
				case 10: return 100;
				case 11: return 110;
				case 12: return 120;
				default: return -1;
			}
		}
		int main() {
			int a;
			int b;
			int c;
			int d;
			a = classify(10);
			b = classify(11);
			c = classify(12);
			d = classify(99);
			return a + b + c + d;
		}
	`

	res, runRes, err := CompileAndRun(context.Background(), "test.c", source, DefaultOptions, nil)
	if err != nil {
		t.Fatalf("unexpected pipeline error: %s", err)
	}
	if res.Diagnostics != nil && res.Diagnostics.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", res.Diagnostics.Format())
	}
	// 100 + 110 + 120 + (-1) == 329, which only adds up if every case
	// (including the miss that must fall to default) dispatched to the
	// correct block rather than all landing on default.
	if runRes.ExitCode != 329 {
		t.Errorf("expected exit code 329 from correct switch dispatch, got %d", runRes.ExitCode)
	}
}
