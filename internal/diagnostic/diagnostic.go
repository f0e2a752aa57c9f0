// Package diagnostic collects and formats compiler diagnostics. It is
// adapted from a plain severity-tagged collector into the closed error-kind
// taxonomy the compiler's error handling design requires: every diagnostic
// is additionally tagged with the stage that raised it, so the pipeline can
// distinguish accumulated, recoverable errors (Lex/Parse/Semantic) from
// fatal, non-accumulated ones (IR/Emit/IO).
package diagnostic

import (
	"fmt"
	"strings"

	"github.com/cc2wasm/cc2wasm/internal/token"
)

// Kind is the closed taxonomy of error kinds from the error handling design.
type Kind int

const (
	LexError Kind = iota
	ParseError
	SemanticUndefined
	SemanticDuplicate
	SemanticTypeMismatch
	SemanticNonLvalue
	SemanticControlFlow
	SemanticReturnType
	IRError
	EmitError
	IOError
)

func (k Kind) String() string {
	switch k {
	case LexError:
		return "lex error"
	case ParseError:
		return "parse error"
	case SemanticUndefined:
		return "undefined symbol"
	case SemanticDuplicate:
		return "duplicate symbol"
	case SemanticTypeMismatch:
		return "type mismatch"
	case SemanticNonLvalue:
		return "non-lvalue"
	case SemanticControlFlow:
		return "control-flow misplacement"
	case SemanticReturnType:
		return "return type mismatch"
	case IRError:
		return "internal compiler error (ir)"
	case EmitError:
		return "internal compiler error (emit)"
	case IOError:
		return "io error"
	default:
		return "error"
	}
}

// Fatal reports whether diagnostics of this kind abort the pipeline the
// instant they occur, rather than accumulating with their stage's siblings.
func (k Kind) Fatal() bool {
	switch k {
	case IRError, EmitError, IOError:
		return true
	default:
		return false
	}
}

// Severity mirrors the teacher's plain severity enum, retained for
// warnings/info that are not part of the closed error taxonomy.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	default:
		return "unknown"
	}
}

// Diagnostic is a single compiler message.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Message  string
	Pos      token.Pos
	Hint     string
}

// Diagnostics accumulates messages produced across a pipeline run.
type Diagnostics struct {
	items []Diagnostic
}

func New() *Diagnostics { return &Diagnostics{} }

// Add appends a fully-formed diagnostic.
func (d *Diagnostics) Add(diag Diagnostic) { d.items = append(d.items, diag) }

// Errorf records an error-severity diagnostic of the given kind.
func (d *Diagnostics) Errorf(kind Kind, pos token.Pos, format string, args ...interface{}) {
	d.items = append(d.items, Diagnostic{
		Severity: Error,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Pos:      pos,
	})
}

// Warningf records a warning.
func (d *Diagnostics) Warningf(pos token.Pos, format string, args ...interface{}) {
	d.items = append(d.items, Diagnostic{
		Severity: Warning,
		Message:  fmt.Sprintf(format, args...),
		Pos:      pos,
	})
}

// ErrorWithHint records an error with a fix-it suggestion.
func (d *Diagnostics) ErrorWithHint(kind Kind, pos token.Pos, msg, hint string) {
	d.items = append(d.items, Diagnostic{Severity: Error, Kind: kind, Message: msg, Pos: pos, Hint: hint})
}

func (d *Diagnostics) HasErrors() bool {
	for _, it := range d.items {
		if it.Severity == Error {
			return true
		}
	}
	return false
}

func (d *Diagnostics) Errors() []Diagnostic {
	var out []Diagnostic
	for _, it := range d.items {
		if it.Severity == Error {
			out = append(out, it)
		}
	}
	return out
}

func (d *Diagnostics) All() []Diagnostic { return d.items }
func (d *Diagnostics) Count() int       { return len(d.items) }

// Format renders all diagnostics as human-readable lines:
//
//	error[file:3:10]: undeclared identifier 'x'
//	  hint: did you mean 'y'?
func (d *Diagnostics) Format() string {
	if len(d.items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, it := range d.items {
		fmt.Fprintf(&b, "%s[%s:%d:%d]: %s", it.Severity, it.Pos.File, it.Pos.Line, it.Pos.Column, it.Message)
		if it.Hint != "" {
			fmt.Fprintf(&b, "\n  hint: %s", it.Hint)
		}
		if i < len(d.items)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
