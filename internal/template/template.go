// Package template implements the DML template/trait system: C3-style
// linearization of `is (...)` ancestry, parameter and method merge rules,
// and the registry state machine that resolves templates lazily while
// tolerating cycles (spec.md §4.E "TemplateSystem").
package template

import (
	"fmt"

	"github.com/fenghaitao/dml-language-server/internal/ast"
	"github.com/fenghaitao/dml-language-server/internal/diag"
	"github.com/fenghaitao/dml-language-server/internal/span"
)

// State is a template's position in the registry's resolution state
// machine: Unseen → Registered → Visiting → ResolvedState or Error.
type State int

const (
	Unseen State = iota
	Registered
	Visiting
	ResolvedState
	Error
)

// Parameter is a resolved template parameter after merge: the declaration
// that carries a value and comes earliest in the linearization wins. No
// conflict is reported when two templates give different values, not even
// two direct parents of the same template.
type Parameter struct {
	Name      string
	Value     ast.Expr
	IsDefault bool
	Source    string // template name that contributed the winning value
	Span      span.Span
}

// Method is a resolved method after override-level merge. Level is the
// position of the template that contributed Decl, counted from the least
// specific end of the linearization: 0 for its last entry, len-1 for the
// template being resolved.
type Method struct {
	Name  string
	Decl  *ast.MethodDecl
	Level int
	// Overrides holds every implementation found, most specific first, so
	// a method body calling the spec's `default(...)` construct can step
	// to Overrides[1].
	Overrides []*ast.MethodDecl
}

// Resolved is the fully merged view of a template: its linearized
// ancestry, merged parameters, and merged methods.
type Resolved struct {
	Name          string
	Linearization []string // most-derived first, per C3 merge
	Parameters    map[string]*Parameter
	Methods       map[string]*Method
	Abstract      []string // method names declared but never implemented
}

// rawTemplate is what the registry knows about a template before it is
// resolved: its own declaration and direct parents.
type rawTemplate struct {
	decl    *ast.TemplateDecl
	parents []string
}

// Registry holds every template declaration seen across the analyzed
// file set and memoizes resolution results, per spec.md §4.E. It is not
// safe for concurrent use; internal/device serializes access to it under
// its own single-writer lock.
type Registry struct {
	raw      map[string]*rawTemplate
	state    map[string]State
	resolved map[string]*Resolved
	report   diag.Report
}

// NewRegistry creates an empty template registry.
func NewRegistry() *Registry {
	return &Registry{
		raw:      make(map[string]*rawTemplate),
		state:    make(map[string]State),
		resolved: make(map[string]*Resolved),
	}
}

// Register records a template declaration. Calling Register again for the
// same name overwrites the previous declaration and discards any memoized
// resolution, per spec.md §4.D "invalidation must propagate through the
// template system, not just the dependency graph."
func (r *Registry) Register(decl *ast.TemplateDecl) {
	r.raw[decl.Name] = &rawTemplate{decl: decl, parents: decl.Parents}
	r.state[decl.Name] = Registered
	delete(r.resolved, decl.Name)
}

// Unregister discards a template's declaration and any memoized
// resolution. internal/device calls this for every template name a file
// contributed when that file is invalidated (spec.md §4.F): the
// declaration no longer exists until the file is re-analyzed, so keeping
// it around would let a stale `is` ancestry resolve successfully.
func (r *Registry) Unregister(name string) {
	delete(r.raw, name)
	delete(r.state, name)
	delete(r.resolved, name)
}

// Diagnostics returns every diagnostic accumulated while resolving
// templates (cycles and method arity conflicts). Abstract methods are
// listed in Resolved.Abstract and produce no diagnostic.
func (r *Registry) Diagnostics() []diag.Diagnostic { return r.report.Diagnostics() }

// Resolve returns the merged view of the named template, computing it (and
// memoizing the result) on first use. A cycle in the `is` ancestry yields a
// CircularDependency diagnostic and a degenerate Resolved with no merged
// content, rather than infinite recursion (spec.md §4.E).
func (r *Registry) Resolve(name string) (*Resolved, bool) {
	if res, ok := r.resolved[name]; ok {
		return res, true
	}
	raw, ok := r.raw[name]
	if !ok {
		return nil, false
	}
	switch r.state[name] {
	case Visiting:
		r.report.Addf(raw.decl.Span(), diag.CircularDependency,
			fmt.Sprintf("template %q participates in a circular 'is' chain", name))
		r.state[name] = Error
		return &Resolved{Name: name}, true
	case Error:
		return &Resolved{Name: name}, true
	}

	r.state[name] = Visiting
	lin, ok := r.linearize(name)
	if !ok {
		r.state[name] = Error
		return &Resolved{Name: name}, true
	}

	res := &Resolved{
		Name:          name,
		Linearization: lin,
		Parameters:    make(map[string]*Parameter),
		Methods:       make(map[string]*Method),
	}
	// Merge from least to most specific so later (more specific) writes
	// win, matching "most specific wins" (spec.md §4.E).
	for i := len(lin) - 1; i >= 0; i-- {
		tname := lin[i]
		rawT, ok := r.raw[tname]
		if !ok {
			continue
		}
		r.mergeParams(res, tname, rawT.decl)
		r.mergeMethods(res, tname, rawT.decl, len(lin)-1-i)
	}
	for mname, m := range res.Methods {
		if m.Decl.Body == nil && !m.Decl.IsDefault {
			res.Abstract = append(res.Abstract, mname)
		}
	}

	r.state[name] = ResolvedState
	r.resolved[name] = res
	return res, true
}

// linearize computes a C3-style merge of name's ancestry: name first,
// then each parent's own linearization, then name's direct parent list,
// with duplicates collapsed to their first (most specific) occurrence.
// Per spec.md §9's redesign note, this replaces an ad hoc "last definition
// wins" merge with a deterministic, order-independent algorithm.
func (r *Registry) linearize(name string) ([]string, bool) {
	raw := r.raw[name]
	seqs := [][]string{{name}}
	for _, parent := range raw.parents {
		if _, ok := r.raw[parent]; !ok {
			continue // unknown parent: it enters the merge only through raw.parents below; no diagnostic is reported for it
		}
		sub, ok := r.resolveForLinearization(parent)
		if !ok {
			return nil, false
		}
		seqs = append(seqs, sub)
	}
	seqs = append(seqs, append([]string{}, raw.parents...))

	var out []string
	seen := make(map[string]bool)
	for {
		progressed := false
		for _, seq := range seqs {
			if len(seq) == 0 {
				continue
			}
			head := seq[0]
			if seen[head] {
				continue
			}
			out = append(out, head)
			seen[head] = true
			progressed = true
			for i, seq2 := range seqs {
				j := 0
				for j < len(seq2) && seq2[j] != head {
					j++
				}
				if j < len(seq2) {
					seqs[i] = append(seq2[:j], seq2[j+1:]...)
				}
			}
			break
		}
		if !progressed {
			break
		}
	}
	return out, true
}

// resolveForLinearization computes just the ancestry chain for a parent
// without fully merging it, detecting cycles along the way.
func (r *Registry) resolveForLinearization(name string) ([]string, bool) {
	if r.state[name] == Visiting {
		if raw, ok := r.raw[name]; ok {
			r.report.Addf(raw.decl.Span(), diag.CircularDependency,
				fmt.Sprintf("template %q participates in a circular 'is' chain", name))
		}
		return nil, false
	}
	if _, ok := r.raw[name]; !ok {
		return []string{name}, true
	}
	r.state[name] = Visiting
	lin, ok := r.linearize(name)
	if r.state[name] == Visiting {
		r.state[name] = Registered
	}
	if !ok {
		return nil, false
	}
	return lin, true
}

func (r *Registry) mergeParams(res *Resolved, tname string, decl *ast.TemplateDecl) {
	for _, m := range decl.Members {
		pd, ok := m.(*ast.ParameterDecl)
		if !ok {
			continue
		}
		if pd.Value == nil {
			continue // declared but not given a value at this level
		}
		// A later (more specific) merge iteration silently overwrites an
		// earlier one, matching "most specific wins." Two direct parents
		// giving the same parameter are not reported as a conflict; the
		// parent listed first in `is (...)` wins.
		res.Parameters[pd.Name] = &Parameter{
			Name: pd.Name, Value: pd.Value, IsDefault: pd.IsDefault,
			Source: tname, Span: pd.Span(),
		}
	}
}

func (r *Registry) mergeMethods(res *Resolved, tname string, decl *ast.TemplateDecl, level int) {
	for _, m := range decl.Members {
		md, ok := m.(*ast.MethodDecl)
		if !ok {
			continue
		}
		existing, has := res.Methods[md.Name]
		if has {
			// An arity mismatch between overrides of the same method name
			// is a signature conflict, not a legal override (the original
			// implementation's templating/methods.py checks the same
			// thing; spec.md's non-certification of full type-correctness
			// stops short of checking parameter types, so arity is as far
			// as this goes).
			if len(existing.Decl.Params) != len(md.Params) {
				r.report.Addf(md.Span(), diag.TemplateError,
					fmt.Sprintf("method %q in %q redeclared with %d parameters, conflicting with an earlier %d-parameter declaration",
						md.Name, tname, len(md.Params), len(existing.Decl.Params)))
			}
			if md.Body != nil || md.IsDefault {
				existing.Overrides = append([]*ast.MethodDecl{md}, existing.Overrides...)
				existing.Decl = md
				existing.Level = level
			} else if len(existing.Overrides) == 0 {
				existing.Overrides = []*ast.MethodDecl{md}
			}
			continue
		}
		res.Methods[md.Name] = &Method{
			Name: md.Name, Decl: md, Level: level,
			Overrides: []*ast.MethodDecl{md},
		}
	}
}
