package compiler

import (
	"fmt"
	"strings"
)

// Code names the failure category of a diagnostic. Every error the
// compiler reports falls into exactly one of these.
type Code string

const (
	// SyntaxInput covers lexical and grammatical failures in the source.
	SyntaxInput Code = "SyntaxInput"
	// UnresolvedSymbol is a reference to a name with no visible declaration.
	UnresolvedSymbol Code = "UnresolvedSymbol"
	// DuplicateSymbol is a redeclaration of a name in the same scope.
	DuplicateSymbol Code = "DuplicateSymbol"
	// TypeMismatch covers operand, assignment, argument, and return type errors.
	TypeMismatch Code = "TypeMismatch"
	// InvalidControlFlow is break or continue outside a loop or switch.
	InvalidControlFlow Code = "InvalidControlFlow"
	// UnsupportedConstruct is a well-formed input the backend cannot lower.
	UnsupportedConstruct Code = "UnsupportedConstruct"
	// InternalInconsistency is a broken compiler invariant, not a user error.
	InternalInconsistency Code = "InternalInconsistency"
	// ExternalToolFailure is a failure of a delegated external command.
	ExternalToolFailure Code = "ExternalToolFailure"
)

// Severity separates hard failures from advisory output.
type Severity int

const (
	SevWarning Severity = iota
	SevError
)

func (s Severity) String() string {
	if s == SevWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one reported condition, tied to a source position when one
// is known (Line 0 means no position).
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	File     string
	Line     int
}

func (d Diagnostic) String() string {
	pos := d.File
	if d.Line > 0 {
		pos = fmt.Sprintf("%s:%d", d.File, d.Line)
	}
	label := d.Severity.String()
	if d.Code != "" {
		label += " " + string(d.Code)
	}
	if pos == "" {
		return fmt.Sprintf("%s: %s", label, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", pos, label, d.Message)
}

// Diagnostics is an ordered report of everything a compilation surfaced.
type Diagnostics []Diagnostic

// HasErrors reports whether any diagnostic is an error.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SevError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SevError {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only the warning-severity diagnostics.
func (ds Diagnostics) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SevWarning {
			out = append(out, d)
		}
	}
	return out
}

func (ds Diagnostics) String() string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.String()
	}
	return strings.Join(parts, "\n")
}

// Error is the error type produced inside the compiler. It carries the
// taxonomy code and source line so the driver can turn it into a
// Diagnostic without parsing message text.
type Error struct {
	Code Code
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// errorf builds an *Error with a formatted message.
func errorf(code Code, line int, format string, args ...any) *Error {
	return &Error{Code: code, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// toDiagnostic converts any error into an error diagnostic for file. An
// *Error keeps its code and line; anything else is reported as an
// internal inconsistency, since every expected failure path builds *Error.
func toDiagnostic(err error, file string) Diagnostic {
	if ce, ok := err.(*Error); ok {
		return Diagnostic{Severity: SevError, Code: ce.Code, Message: ce.Msg, File: file, Line: ce.Line}
	}
	return Diagnostic{Severity: SevError, Code: InternalInconsistency, Message: err.Error(), File: file}
}

// warningf builds a warning diagnostic.
func warningf(file string, line int, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: SevWarning,
		Code:     "",
		Message:  fmt.Sprintf(format, args...),
		File:     file,
		Line:     line,
	}
}
