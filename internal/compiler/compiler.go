// Package compiler wires the pipeline stages into the small set of
// entry points the CLI and the golden-test harness call: parse -> lower to
// IR -> optimize -> emit Wasm, plus a Check-only path and a convenience that
// also runs the result through internal/wasmrun. Errors propagate per the
// closed diagnostic taxonomy (internal/diagnostic): accumulated
// lex/parse/semantic diagnostics are returned as a *diagnostic.Diagnostics
// for the caller to format, while IR/emit failures are fatal and surface as
// a plain error instead, since they indicate a compiler bug rather than bad
// input.
package compiler

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cc2wasm/cc2wasm/internal/clog"
	"github.com/cc2wasm/cc2wasm/internal/diagnostic"
	"github.com/cc2wasm/cc2wasm/internal/ir"
	"github.com/cc2wasm/cc2wasm/internal/irgen"
	"github.com/cc2wasm/cc2wasm/internal/optimize"
	"github.com/cc2wasm/cc2wasm/internal/parser"
	"github.com/cc2wasm/cc2wasm/internal/wasmemit"
	"github.com/cc2wasm/cc2wasm/internal/wasmrun"
)

// Options selects the optional transformations the CLI exposes as flags.
// The zero value is not the default profile; use DefaultOptions.
type Options struct {
	PackStack bool // false reverts to one unpacked stack slot per local
	TailCall  bool // false disables self-tail-call frame reuse
	EmitIR    bool // when true, Compile also returns a textual IR dump
}

// DefaultOptions is the profile used unless the CLI overrides it with
// --no-stack-opt / --no-tailcall-opt.
var DefaultOptions = Options{PackStack: true, TailCall: true}

// Result holds everything a single compilation produced.
type Result struct {
	Diagnostics *diagnostic.Diagnostics
	Module      *ir.Module
	Wasm        []byte
	IRDump      string
}

// Check runs parse -> lower to IR and reports whether the source is valid,
// without emitting Wasm. It is the backing implementation of the CLI's
// `check` subcommand.
func Check(file, source string) *diagnostic.Diagnostics {
	p := parser.New(file, source)
	tu := p.Parse()
	if p.Diagnostics().HasErrors() {
		return p.Diagnostics()
	}

	_, diags := irgen.Build(file, tu)
	return diags
}

// Compile runs the full pipeline: parse, lower to IR, optimize, emit.
// A non-nil Diagnostics with HasErrors() true means the source itself was
// rejected (lex/parse/semantic); a non-nil error means the pipeline itself
// failed after the source was accepted (IR or Wasm generation bug).
func Compile(file, source string, opts Options) (*Result, error) {
	res := &Result{}

	p := parser.New(file, source)
	tu := p.Parse()
	if p.Diagnostics().HasErrors() {
		res.Diagnostics = p.Diagnostics()
		return res, nil
	}

	mod, diags := irgen.Build(file, tu)
	if diags.HasErrors() {
		res.Diagnostics = diags
		return res, nil
	}
	res.Diagnostics = diags
	res.Module = mod

	optimize.Run(mod, optimize.Options{PackStack: opts.PackStack, TailCall: opts.TailCall})

	if opts.EmitIR {
		res.IRDump = ir.Dump(mod)
	}

	wasmBytes, err := wasmemit.Emit(mod)
	if err != nil {
		return res, errors.Wrap(err, "compiler: emitting wasm")
	}
	res.Wasm = wasmBytes

	return res, nil
}

// CompileAndRun compiles source and, if that succeeds, executes the
// resulting module's entry export inside an embedded runtime. It is the
// backing implementation of the CLI's `run` subcommand and the selftest
// harness's golden-program runner.
func CompileAndRun(ctx context.Context, file, source string, opts Options, log *clog.Logger) (*Result, *wasmrun.Result, error) {
	res, err := Compile(file, source, opts)
	if err != nil {
		return res, nil, err
	}
	if res.Diagnostics != nil && res.Diagnostics.HasErrors() {
		return res, nil, nil
	}
	if res.Module.EntryFunc == "" {
		return res, nil, errors.New("compiler: no entry function (expected a function named main)")
	}

	runRes, err := wasmrun.Run(ctx, res.Wasm, res.Module.EntryFunc, log)
	if err != nil {
		return res, nil, errors.Wrap(err, "compiler: running compiled module")
	}
	return res, &runRes, nil
}
