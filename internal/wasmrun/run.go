// Package wasmrun executes a compiled module inside an embedded Wasm
// runtime and supplies the host side of the runtime/stdlib imports the
// emitter wires every translation unit against (spec §4.7): a subset of
// the C standard library (printf, strtol, strtoul, strlen, strstr)
// implemented directly against the instance's linear memory, plus a
// logging hook used by the --log tracing the CLI exposes.
package wasmrun

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/cc2wasm/cc2wasm/internal/clog"
)

// Result is what running a compiled module's entry point produced.
type Result struct {
	ExitCode int32
	Stdout   string
}

// Run instantiates wasmBinary and invokes the named entry export with no
// arguments (per the shadow-stack convention, every compiled function
// takes its real arguments through linear memory rather than as Wasm call
// operands, so the host never needs to stage anything for a zero-argument
// entry point like main).
func Run(ctx context.Context, wasmBinary []byte, entry string, log *clog.Logger) (Result, error) {
	if log == nil {
		log = clog.Default()
	}

	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	defer rt.Close(ctx)

	var stdout strings.Builder
	host := &hostState{log: log, stdout: &stdout}

	if err := registerStdlib(ctx, rt, host); err != nil {
		return Result{}, errors.Wrap(err, "wasmrun: registering stdlib imports")
	}
	if err := registerRuntime(ctx, rt, host); err != nil {
		return Result{}, errors.Wrap(err, "wasmrun: registering runtime imports")
	}

	compiled, err := rt.CompileModule(ctx, wasmBinary)
	if err != nil {
		return Result{}, errors.Wrap(err, "wasmrun: compiling module")
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithStdout(&stdout))
	if err != nil {
		return Result{}, errors.Wrap(err, "wasmrun: instantiating module")
	}
	defer mod.Close(ctx)
	host.mem = mod.Memory()

	fn := mod.ExportedFunction(entry)
	if fn == nil {
		return Result{}, errors.Errorf("wasmrun: module has no exported function %q", entry)
	}

	// Compiled functions use the shadow-stack ABI exclusively (their Wasm
	// signature is always zero params/zero results — see wasmemit's
	// compiledFuncType), so the entry point's return value never comes
	// back as a Wasm call result. It lands in the return-value slot at
	// FP+0 instead (spec §6's shadow-stack layout), and the frame base
	// the entry point's prologue will use is exactly the stack pointer's
	// value right before the call (stackPtrAddr, the fixed cell at byte
	// offset 8, holds the module's initial stack top). Read it here, then
	// read the return slot at that same address once the call returns.
	const stackPtrAddr = 8
	frameBase, _ := host.mem.ReadUint32Le(stackPtrAddr)

	log.Debug("invoking entry point %q", entry)
	_, err = fn.Call(ctx)
	if err != nil {
		return Result{}, errors.Wrapf(err, "wasmrun: calling %q", entry)
	}

	var exit int32
	if v, ok := host.mem.ReadUint32Le(frameBase); ok {
		exit = int32(v)
	}
	return Result{ExitCode: exit, Stdout: stdout.String()}, nil
}

// hostState is the shared receiver every imported function closes over:
// the instance's linear memory (bound once instantiation completes) and
// the logger/stdout sink the CLI's --log flag and selftest harness read
// from.
type hostState struct {
	mem    api.Memory
	log    *clog.Logger
	stdout *strings.Builder
}

func (h *hostState) readCString(addr uint32) string {
	var b strings.Builder
	for {
		c, ok := h.mem.ReadByte(addr)
		if !ok || c == 0 {
			break
		}
		b.WriteByte(c)
		addr++
	}
	return b.String()
}

// varArgI64 and varArgF64 read the i-th packed variadic slot printf's host side was
// handed: each slot is 8 bytes wide regardless of the argument's real
// width, matching the emitter's packing convention (func.go's
// lowerExternCall).
func (h *hostState) varArgI64(argsPtr uint32, i int) int64 {
	v, _ := h.mem.ReadUint64Le(argsPtr + uint32(i)*8)
	return int64(v)
}

func (h *hostState) varArgF64(argsPtr uint32, i int) float64 {
	v, _ := h.mem.ReadUint64Le(argsPtr + uint32(i)*8)
	return math.Float64frombits(v)
}

func registerStdlib(ctx context.Context, rt wazero.Runtime, h *hostState) error {
	_, err := rt.NewHostModuleBuilder("stdlib").
		NewFunctionBuilder().WithFunc(h.printf).Export("printf").
		NewFunctionBuilder().WithFunc(h.strtol).Export("strtol").
		NewFunctionBuilder().WithFunc(h.strtoul).Export("strtoul").
		NewFunctionBuilder().WithFunc(h.strlen).Export("strlen").
		NewFunctionBuilder().WithFunc(h.strstr).Export("strstr").
		Instantiate(ctx)
	return err
}

func registerRuntime(ctx context.Context, rt wazero.Runtime, h *hostState) error {
	_, err := rt.NewHostModuleBuilder("runtime").
		NewFunctionBuilder().WithFunc(h.logStackPtr).Export("log_stack_ptr").
		Instantiate(ctx)
	return err
}

func (h *hostState) logStackPtr(ctx context.Context, sp uint32) {
	h.log.Trace("shadow stack pointer = %#x", sp)
}

// printf implements the %d/%u/%ld/%lu/%f/%s/%c/%x/%% conversions the
// golden programs exercise, reading the variadic tail from argsPtr (see
// varArgI64/varArgF64) and writing to the module's configured stdout.
func (h *hostState) printf(ctx context.Context, fmtPtr, argsPtr uint32) int32 {
	format := h.readCString(fmtPtr)
	var out strings.Builder
	argi := 0

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			break
		}
		long := false
		for i < len(format) && format[i] == 'l' {
			long = true
			i++
		}
		if i >= len(format) {
			break
		}
		switch format[i] {
		case '%':
			out.WriteByte('%')
		case 'd', 'i':
			v := h.varArgI64(argsPtr, argi)
			argi++
			if long {
				out.WriteString(strconv.FormatInt(v, 10))
			} else {
				out.WriteString(strconv.FormatInt(int64(int32(v)), 10))
			}
		case 'u':
			v := uint64(h.varArgI64(argsPtr, argi))
			argi++
			if !long {
				v = uint64(uint32(v))
			}
			out.WriteString(strconv.FormatUint(v, 10))
		case 'x':
			v := uint64(h.varArgI64(argsPtr, argi))
			argi++
			if !long {
				v = uint64(uint32(v))
			}
			out.WriteString(strconv.FormatUint(v, 16))
		case 'f':
			v := h.varArgF64(argsPtr, argi)
			argi++
			out.WriteString(strconv.FormatFloat(v, 'f', 6, 64))
		case 'c':
			v := h.varArgI64(argsPtr, argi)
			argi++
			out.WriteByte(byte(v))
		case 's':
			v := uint32(h.varArgI64(argsPtr, argi))
			argi++
			out.WriteString(h.readCString(v))
		default:
			out.WriteByte('%')
			out.WriteByte(format[i])
		}
	}

	s := out.String()
	h.stdout.WriteString(s)
	return int32(len(s))
}

// strtol mirrors the libc prototype `long strtol(const char *nptr, char
// **endptr, int base)`. Per the Open Question this spec leaves explicit
// (see DESIGN.md): endptr is always written with the address one past the
// last digit consumed, even when no digits were consumed at all (nptr
// itself), matching glibc's documented behavior rather than leaving it
// unspecified.
func (h *hostState) strtol(ctx context.Context, nptr, endptr uint32, base int32) int64 {
	s := h.readCString(nptr)
	v, consumed := parseSignedWithBase(s, int(base))
	if endptr != 0 {
		h.mem.WriteUint32Le(endptr, nptr+uint32(consumed))
	}
	return v
}

func (h *hostState) strtoul(ctx context.Context, nptr, endptr uint32, base int32) int64 {
	s := h.readCString(nptr)
	v, consumed := parseUnsignedWithBase(s, int(base))
	if endptr != 0 {
		h.mem.WriteUint32Le(endptr, nptr+uint32(consumed))
	}
	return int64(v)
}

func (h *hostState) strlen(ctx context.Context, s uint32) int32 {
	return int32(len(h.readCString(s)))
}

func (h *hostState) strstr(ctx context.Context, hay, needle uint32) int32 {
	h1 := h.readCString(hay)
	n1 := h.readCString(needle)
	if n1 == "" {
		return int32(hay)
	}
	idx := strings.Index(h1, n1)
	if idx < 0 {
		return 0
	}
	return int32(hay) + int32(idx)
}

// parseSignedWithBase parses a strtol-style signed integer from the front
// of s. The returned int is the absolute number of bytes consumed from the
// start of s — including any skipped leading whitespace — since callers
// use it directly as an offset from the original nptr to compute endptr.
func parseSignedWithBase(s string, base int) (int64, int) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	eff, i := consumeBasePrefix(s, i, base)
	digitsStart := i
	i = skipBasedDigits(s, i, eff)
	if i == digitsStart {
		return 0, 0
	}
	v, err := strconv.ParseInt(s[digitsStart:i], eff, 64)
	if err != nil {
		v = 0
	}
	if neg {
		v = -v
	}
	return v, i
}

// parseUnsignedWithBase mirrors parseSignedWithBase without sign handling.
func parseUnsignedWithBase(s string, base int) (uint64, int) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if i < len(s) && s[i] == '+' {
		i++
	}
	eff, i := consumeBasePrefix(s, i, base)
	digitsStart := i
	i = skipBasedDigits(s, i, eff)
	if i == digitsStart {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[digitsStart:i], eff, 64)
	if err != nil {
		v = 0
	}
	return v, i
}

// consumeBasePrefix resolves the effective numeric base (defaulting,
// base 0, to octal/decimal/hex detection the way strtol does) and
// advances past a "0x"/"0X" prefix when that base is 16.
func consumeBasePrefix(s string, i, base int) (eff int, next int) {
	hasHexPrefix := i+1 < len(s) && s[i] == '0' && (s[i+1] == 'x' || s[i+1] == 'X')
	switch {
	case base == 16:
		eff = 16
	case base == 0 && hasHexPrefix:
		eff = 16
	case base == 0 && i < len(s) && s[i] == '0':
		eff = 8
	case base == 0:
		eff = 10
	default:
		eff = base
	}
	if eff == 16 && hasHexPrefix {
		return eff, i + 2
	}
	return eff, i
}

func skipBasedDigits(s string, i, eff int) int {
	for i < len(s) {
		c := s[i]
		var d int
		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case c >= 'a' && c <= 'z':
			d = int(c-'a') + 10
		case c >= 'A' && c <= 'Z':
			d = int(c-'A') + 10
		default:
			return i
		}
		if d >= eff {
			return i
		}
		i++
	}
	return i
}
