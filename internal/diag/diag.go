// Package diag defines the diagnostic taxonomy shared across every stage
// of the pipeline (spec.md §7).
package diag

import "github.com/fenghaitao/dml-language-server/internal/span"

// Kind is a diagnostic kind, not a Go type — every stage attaches one of
// these to the span of the offending site.
type Kind string

const (
	SyntaxError        Kind = "syntax-error"
	SemanticError      Kind = "semantic-error"
	TypeError          Kind = "type-error"
	UndefinedSymbol    Kind = "undefined-symbol"
	DuplicateSymbol    Kind = "duplicate-symbol"
	ImportError        Kind = "import-error"
	TemplateError      Kind = "template-error"
	CircularDependency Kind = "circular-dependency"
	ScopeError         Kind = "scope-error"
	ReferenceError     Kind = "reference-error"
)

// Severity mirrors the LSP severity levels. The core only ever emits
// Error; Warning/Info/Hint are reserved for the external lint collaborator
// (spec.md §7).
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// Diagnostic is a single error/warning attached to a span, per spec.md §7
// "user-visible behavior": a message, severity, and kind-derived code.
type Diagnostic struct {
	Span     span.Span
	Kind     Kind
	Message  string
	Severity Severity
}

// Code returns the kind-derived diagnostic code, e.g. "import-error".
func (d Diagnostic) Code() string {
	return string(d.Kind)
}

// New builds an Error-severity diagnostic, the default for every core kind
// (spec.md §7 "Severity").
func New(sp span.Span, kind Kind, message string) Diagnostic {
	return Diagnostic{Span: sp, Kind: kind, Message: message, Severity: SeverityError}
}

// Report is an ordered, append-only collector of diagnostics for a single
// analysis pass, mirroring buflsp's report type (private/buf/buflsp/report.go)
// which accumulates reporter.ErrorWithPos values as it walks a file.
type Report struct {
	diagnostics []Diagnostic
}

// Add appends a diagnostic to the report.
func (r *Report) Add(d Diagnostic) {
	r.diagnostics = append(r.diagnostics, d)
}

// Addf is a convenience wrapper around New+Add.
func (r *Report) Addf(sp span.Span, kind Kind, message string) {
	r.Add(New(sp, kind, message))
}

// Diagnostics returns the accumulated diagnostics in emission order. The
// returned slice is never nil so that JSON serialization at the LSP
// boundary renders `[]` rather than `null` for a clean file.
func (r *Report) Diagnostics() []Diagnostic {
	if r.diagnostics == nil {
		return []Diagnostic{}
	}
	return r.diagnostics
}

// HasErrors reports whether any Error-severity diagnostic was recorded.
func (r *Report) HasErrors() bool {
	for _, d := range r.diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
