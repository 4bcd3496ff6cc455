// Package glarerr defines the abstract error taxonomy of the compiler and
// virtual machine, and the shared "At Line N" formatting used to report
// them to a driver.
package glarerr

import (
	"fmt"
	"strings"

	"github.com/mna/glacier/lang/token"
)

// Phase distinguishes compile-time from runtime errors for formatting.
type Phase int

const (
	// Runtime marks an error raised while executing bytecode.
	Runtime Phase = iota
	// CompileTime marks an error raised while compiling an AST.
	CompileTime
)

func (p Phase) String() string {
	if p == CompileTime {
		return "Compile-time"
	}
	return "Runtime"
}

// Kind names one of the abstract error kinds of the taxonomy.
type Kind int

const (
	UndefinedVariable Kind = iota
	ConstantOverflow
	JumpOverflow
	ScopeOverflow
	MisplacedBreakOrNext
	UnsupportedUnary
	UnsupportedBinary
	ZeroDivision
	IndexError
	TypeError
	StackOverflow
	ArgumentError
)

var kindPhase = map[Kind]Phase{
	UndefinedVariable:    CompileTime,
	ConstantOverflow:     CompileTime,
	JumpOverflow:         CompileTime,
	ScopeOverflow:        CompileTime,
	MisplacedBreakOrNext: CompileTime,
	UnsupportedUnary:     Runtime,
	UnsupportedBinary:    Runtime,
	ZeroDivision:         Runtime,
	IndexError:           Runtime,
	TypeError:            Runtime,
	StackOverflow:        Runtime,
	ArgumentError:        Runtime,
}

// Error is a located error belonging to one Kind of the taxonomy.
type Error struct {
	Kind    Kind
	Message string
	Span    token.Span
}

func (e *Error) Error() string { return e.Message }

// Phase reports whether e is a compile-time or runtime error.
func (e *Error) Phase() Phase { return kindPhase[e.Kind] }

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, span token.Span, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span}
}

// Format renders e against src using the external error text format of
// §6: "At Line N:\n<line>\n<carets>\n<Compile-time|Runtime> Error:\n    <message>".
func Format(src string, e *Error) string {
	line, lineStart, lineEnd := token.Line(src, e.Span.Start)
	lineText := src[lineStart:lineEnd]

	start := int(e.Span.Start) - lineStart
	end := int(e.Span.End) - lineStart
	if start < 0 {
		start = 0
	}
	if end > len(lineText) {
		end = len(lineText)
	}
	if end < start {
		end = start
	}
	if end == start {
		end = start + 1
	}

	var carets strings.Builder
	carets.WriteString(strings.Repeat(" ", start))
	carets.WriteString(strings.Repeat("^", end-start))

	return fmt.Sprintf("At Line %d:\n%s\n%s\n%s Error:\n    %s",
		line, lineText, carets.String(), e.Phase(), e.Message)
}
