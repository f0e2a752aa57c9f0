package ir

import (
	"fmt"
	"strings"
)

// Dump renders mod as a flat, human-readable IR listing for the CLI's
// --emit-ir flag. It is a debugging aid, not a re-parsable format.
func Dump(mod *Module) string {
	var b strings.Builder
	for _, g := range mod.Globals {
		fmt.Fprintf(&b, "global %s : %s = %d bytes\n", g.Name, g.Ty, len(g.Init))
	}
	if len(mod.Globals) > 0 {
		b.WriteString("\n")
	}
	for i, fn := range mod.Functions {
		if i > 0 {
			b.WriteString("\n")
		}
		dumpFunction(&b, fn)
	}
	return b.String()
}

func dumpFunction(b *strings.Builder, fn *Function) {
	kind := "func"
	if fn.IsExtern {
		kind = "extern func"
	}
	fmt.Fprintf(b, "%s %s(", kind, fn.Name)
	for i, p := range fn.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s %s", p.Name, p.Ty)
	}
	if fn.Variadic {
		if len(fn.Params) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("...")
	}
	fmt.Fprintf(b, ") -> %s\n", fn.ReturnType)
	if fn.IsExtern {
		return
	}
	for _, blk := range fn.Blocks {
		fmt.Fprintf(b, "%s:\n", blockLabel(blk))
		for _, in := range blk.Instrs {
			fmt.Fprintf(b, "  %s\n", dumpInstr(in))
		}
		fmt.Fprintf(b, "  %s\n", dumpTerm(blk.Term))
	}
}

func blockLabel(b *BasicBlock) string {
	if b.Label != "" {
		return fmt.Sprintf("bb%d.%s", b.ID, b.Label)
	}
	return fmt.Sprintf("bb%d", b.ID)
}

func dumpValue(v Value) string {
	switch x := v.(type) {
	case *Reg:
		return fmt.Sprintf("r%d", x.ID)
	case *ConstInt:
		return fmt.Sprintf("%d", x.Val)
	case *ConstFloat:
		return fmt.Sprintf("%g", x.Val)
	case nil:
		return "<nil>"
	default:
		return "?"
	}
}

func dumpInstr(in Instr) string {
	switch i := in.(type) {
	case *BinOp:
		return fmt.Sprintf("%s = %s %s, %s", dumpValue(i.Dst), binOpName(i.Op), dumpValue(i.X), dumpValue(i.Y))
	case *Cmp:
		return fmt.Sprintf("%s = cmp.%s %s, %s", dumpValue(i.Dst), cmpOpName(i.Op), dumpValue(i.X), dumpValue(i.Y))
	case *Conv:
		return fmt.Sprintf("%s = conv.%s %s", dumpValue(i.Dst), convOpName(i.Op), dumpValue(i.X))
	case *Load:
		return fmt.Sprintf("%s = load %s, [%s]", dumpValue(i.Dst), i.Ty, dumpValue(i.Addr))
	case *Store:
		return fmt.Sprintf("store %s, [%s], %s", i.Ty, dumpValue(i.Addr), dumpValue(i.Val))
	case *AddrOfLocal:
		return fmt.Sprintf("%s = addr.local %s", dumpValue(i.Dst), i.Local.Name)
	case *AddrOfGlobal:
		return fmt.Sprintf("%s = addr.global %s", dumpValue(i.Dst), i.Name)
	case *Gep:
		return fmt.Sprintf("%s = gep %s, %s", dumpValue(i.Dst), dumpValue(i.Base), dumpValue(i.Offset))
	case *Move:
		return fmt.Sprintf("%s = move %s", dumpValue(i.Dst), dumpValue(i.X))
	case *WriteLocal:
		return fmt.Sprintf("write.local %s, %s", i.Local.Name, dumpValue(i.X))
	case *ReadLocal:
		return fmt.Sprintf("%s = read.local %s", dumpValue(i.Dst), i.Local.Name)
	case *Call:
		return dumpCall(i)
	default:
		return "<unknown instr>"
	}
}

func dumpCall(i *Call) string {
	var b strings.Builder
	if i.Dst != nil {
		fmt.Fprintf(&b, "%s = ", dumpValue(i.Dst))
	}
	b.WriteString("call")
	if i.Tail == TailSelf {
		b.WriteString(".tail")
	} else if i.Tail == TailSibling {
		b.WriteString(".tailsib")
	}
	if i.Indirect {
		fmt.Fprintf(&b, " [%s]", dumpValue(i.FnPtr))
	} else {
		fmt.Fprintf(&b, " %s", i.Callee)
	}
	b.WriteString("(")
	for j, a := range i.Args {
		if j > 0 {
			b.WriteString(", ")
		}
		b.WriteString(dumpValue(a))
	}
	b.WriteString(")")
	return b.String()
}

func dumpTerm(t Term) string {
	switch term := t.(type) {
	case *Br:
		return fmt.Sprintf("br %s", blockLabel(term.Target))
	case *CondBr:
		return fmt.Sprintf("condbr %s, %s, %s", dumpValue(term.Cond), blockLabel(term.True), blockLabel(term.False))
	case *Switch:
		var b strings.Builder
		fmt.Fprintf(&b, "switch %s [", dumpValue(term.Tag))
		for i, c := range term.Cases {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%d: %s", c.Value, blockLabel(c.Target))
		}
		fmt.Fprintf(&b, "], default %s", blockLabel(term.Default))
		return b.String()
	case *Ret:
		if term.Value == nil {
			return "ret void"
		}
		return fmt.Sprintf("ret %s", dumpValue(term.Value))
	case nil:
		return "<no terminator>"
	default:
		return "<unknown term>"
	}
}

func binOpName(op BinOpKind) string {
	names := [...]string{"add", "sub", "mul", "sdiv", "udiv", "srem", "urem", "and", "or", "xor", "shl", "ashr", "lshr", "fadd", "fsub", "fmul", "fdiv"}
	if int(op) < len(names) {
		return names[op]
	}
	return "binop?"
}

func cmpOpName(op CmpKind) string {
	names := [...]string{"eq", "ne", "slt", "ult", "sle", "ule", "sgt", "ugt", "sge", "uge", "feq", "fne", "flt", "fle", "fgt", "fge"}
	if int(op) < len(names) {
		return names[op]
	}
	return "cmp?"
}

func convOpName(op ConvKind) string {
	names := [...]string{"sext", "zext", "trunc", "sitofp", "uitofp", "fptosi", "fptoui", "fptrunc", "fpext", "ptrtoint", "inttoptr"}
	if int(op) < len(names) {
		return names[op]
	}
	return "conv?"
}
