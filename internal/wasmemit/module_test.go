package wasmemit

import (
	"testing"

	"github.com/cc2wasm/cc2wasm/internal/ir"
	"github.com/cc2wasm/cc2wasm/internal/irgen"
	"github.com/cc2wasm/cc2wasm/internal/optimize"
	"github.com/cc2wasm/cc2wasm/internal/parser"
)

// buildModule runs source through the parser, irgen, and the default
// optimization pipeline, failing the test on any error.
func buildModule(t *testing.T, source string) *ir.Module {
	t.Helper()
	p := parser.New("t.c", source)
	tu := p.Parse()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("parse errors: %s", p.Diagnostics().Format())
	}
	mod, diags := irgen.Build("t.c", tu)
	if diags.HasErrors() {
		t.Fatalf("semantic errors: %s", diags.Format())
	}
	optimize.Run(mod, optimize.Default)
	return mod
}

func TestEmitSimpleModuleHasMagicAndVersion(t *testing.T) {
	mod := buildModule(t, `int main() { return 42; }`)
	out, err := Emit(mod)
	if err != nil {
		t.Fatalf("Emit returned an error: %s", err)
	}
	if len(out) < 8 {
		t.Fatalf("output too short: %d bytes", len(out))
	}
	if string(out[:4]) != "\x00asm" {
		t.Errorf("expected wasm magic, got %x", out[:4])
	}
	if out[4] != 0x01 || out[5] != 0 || out[6] != 0 || out[7] != 0 {
		t.Errorf("expected wasm version 1, got %x", out[4:8])
	}
}

func TestEmitExportsMainAndMemory(t *testing.T) {
	mod := buildModule(t, `int main() { return 0; }`)
	out, err := Emit(mod)
	if err != nil {
		t.Fatalf("Emit returned an error: %s", err)
	}
	if !containsASCII(out, "main") {
		t.Error("expected the export section to name \"main\"")
	}
	if !containsASCII(out, "memory") {
		t.Error("expected the export section to name \"memory\"")
	}
}

func TestEmitCallsAndRecursion(t *testing.T) {
	mod := buildModule(t, `
		int fib(int n) {
			if (n < 2) { return n; }
			return fib(n - 1) + fib(n - 2);
		}
		int main() { return fib(6); }
	`)
	out, err := Emit(mod)
	if err != nil {
		t.Fatalf("Emit returned an error: %s", err)
	}
	if len(out) == 0 {
		t.Fatal("expected non-empty output")
	}
}

func TestEmitLoopsAndArrays(t *testing.T) {
	mod := buildModule(t, `
		int sum(int n) {
			int arr[8];
			int i;
			int total;
			total = 0;
			for (i = 0; i < 8 && i < n; i++) {
				arr[i] = i * 2;
				total += arr[i];
			}
			return total;
		}
		int main() { return sum(5); }
	`)
	if _, err := Emit(mod); err != nil {
		t.Fatalf("Emit returned an error: %s", err)
	}
}

func containsASCII(haystack []byte, needle string) bool {
	n := []byte(needle)
	for i := 0; i+len(n) <= len(haystack); i++ {
		match := true
		for j := range n {
			if haystack[i+j] != n[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
