// Command cc2wasm compiles a subset of C to a standalone WebAssembly
// module, runs compiled modules inside an embedded runtime, and runs the
// bundled golden-program self-test suite. See the usage string for the
// exact flags each subcommand accepts.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cc2wasm/cc2wasm/internal/clog"
	"github.com/cc2wasm/cc2wasm/internal/compiler"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

const usage = `cc2wasm - a C-subset to WebAssembly compiler

Usage:
  cc2wasm compile <source.c> -o <module.wasm> [--no-stack-opt] [--no-tailcall-opt] [--emit-ir] [--log <level>]
  cc2wasm check <source.c>
  cc2wasm run <source.c> [--no-stack-opt] [--no-tailcall-opt] [--log <level>]
  cc2wasm selftest [--log <level>]

Options:
  -o <path>            Output path for the compiled module (compile only)
  --no-stack-opt        Give every local its own unshared, naturally aligned slot
  --no-tailcall-opt     Disable self-tail-call frame reuse
  --emit-ir             Print the IR after optimization instead of compiling further
  --log <level>         One of error, warn, info, debug, trace (default warn)

Examples:
  cc2wasm compile fib.c -o fib.wasm        Compile fib.c to fib.wasm
  cc2wasm check fib.c                      Parse and type-check only
  cc2wasm run fib.c                        Compile and execute, printing stdout and exit code
  cc2wasm selftest                         Run the bundled golden-program suite
`

// Exit codes follow the closed diagnostic taxonomy's stage split: 0 success,
// 1 usage error, 2 source rejected (lex/parse/semantic), 3 internal
// compiler error (IR/emit/IO failure after the source was accepted).
const (
	exitOK = iota
	exitUsage
	exitSourceError
	exitInternalError
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(exitUsage)
	}

	command := os.Args[1]
	if command == "--version" || command == "version" {
		fmt.Printf("cc2wasm %s\n", version)
		os.Exit(exitOK)
	}

	switch command {
	case "compile":
		os.Exit(handleCompile(os.Args[2:]))
	case "check":
		os.Exit(handleCheck(os.Args[2:]))
	case "run":
		os.Exit(handleRun(os.Args[2:]))
	case "selftest":
		os.Exit(handleSelftest(os.Args[2:]))
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(exitUsage)
	}
}

// cliFlags captures the options common to compile/check/run.
type cliFlags struct {
	file     string
	out      string
	logLevel string
	opts     compiler.Options
}

func parseCommonFlags(args []string, wantOut bool) (cliFlags, error) {
	f := cliFlags{opts: compiler.DefaultOptions, logLevel: "warn"}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-o":
			if !wantOut {
				return f, fmt.Errorf("unexpected option: -o")
			}
			if i+1 >= len(args) {
				return f, fmt.Errorf("-o requires an argument")
			}
			i++
			f.out = args[i]
		case "--no-stack-opt":
			f.opts.PackStack = false
		case "--no-tailcall-opt":
			f.opts.TailCall = false
		case "--emit-ir":
			f.opts.EmitIR = true
		case "--log":
			if i+1 >= len(args) {
				return f, fmt.Errorf("--log requires an argument")
			}
			i++
			f.logLevel = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return f, fmt.Errorf("unknown option: %s", arg)
			}
			if f.file != "" {
				return f, fmt.Errorf("unexpected argument: %s", arg)
			}
			f.file = arg
		}
	}
	if f.file == "" {
		return f, fmt.Errorf("no input file specified")
	}
	return f, nil
}

func newLogger(level string) *clog.Logger {
	lvl, ok := clog.ParseLevel(level)
	if !ok {
		fmt.Fprintf(os.Stderr, "warning: unknown log level %q, defaulting to warn\n", level)
	}
	return clog.New(os.Stderr, lvl)
}

func handleCompile(args []string) int {
	f, err := parseCommonFlags(args, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n\n", err)
		fmt.Fprint(os.Stderr, usage)
		return exitUsage
	}
	log := newLogger(f.logLevel)

	source, err := os.ReadFile(f.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading %s: %s\n", f.file, err)
		return exitUsage
	}

	res, err := compiler.Compile(f.file, string(source), f.opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "internal error: %s\n", err)
		return exitInternalError
	}
	if res.Diagnostics != nil && res.Diagnostics.HasErrors() {
		fmt.Fprint(os.Stderr, res.Diagnostics.Format())
		fmt.Fprintln(os.Stderr)
		return exitSourceError
	}

	if f.opts.EmitIR {
		fmt.Print(res.IRDump)
		return exitOK
	}

	out := f.out
	if out == "" {
		out = strings.TrimSuffix(filepath.Base(f.file), filepath.Ext(f.file)) + ".wasm"
	}
	if err := os.WriteFile(out, res.Wasm, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing %s: %s\n", out, err)
		return exitInternalError
	}
	log.Info("wrote %s (%d bytes)", out, len(res.Wasm))
	return exitOK
}

func handleCheck(args []string) int {
	f, err := parseCommonFlags(args, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n\n", err)
		fmt.Fprint(os.Stderr, usage)
		return exitUsage
	}

	source, err := os.ReadFile(f.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading %s: %s\n", f.file, err)
		return exitUsage
	}

	diags := compiler.Check(f.file, string(source))
	if diags.HasErrors() {
		fmt.Fprint(os.Stderr, diags.Format())
		fmt.Fprintln(os.Stderr)
		return exitSourceError
	}
	for _, d := range diags.All() {
		if d.Severity != 0 {
			fmt.Printf("%s:%d:%d: %s: %s\n", d.Pos.File, d.Pos.Line, d.Pos.Column, d.Severity, d.Message)
		}
	}
	fmt.Println("no errors found.")
	return exitOK
}

func handleRun(args []string) int {
	f, err := parseCommonFlags(args, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n\n", err)
		fmt.Fprint(os.Stderr, usage)
		return exitUsage
	}
	log := newLogger(f.logLevel)

	source, err := os.ReadFile(f.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading %s: %s\n", f.file, err)
		return exitUsage
	}

	res, runRes, err := compiler.CompileAndRun(context.Background(), f.file, string(source), f.opts, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "internal error: %s\n", err)
		return exitInternalError
	}
	if res.Diagnostics != nil && res.Diagnostics.HasErrors() {
		fmt.Fprint(os.Stderr, res.Diagnostics.Format())
		fmt.Fprintln(os.Stderr)
		return exitSourceError
	}

	fmt.Print(runRes.Stdout)
	return int(runRes.ExitCode)
}

func handleSelftest(args []string) int {
	logLevel := "warn"
	for i := 0; i < len(args); i++ {
		if args[i] == "--log" && i+1 < len(args) {
			i++
			logLevel = args[i]
		}
	}
	log := newLogger(logLevel)

	ok := runSelftest(log)
	if !ok {
		return exitSourceError
	}
	return exitOK
}
