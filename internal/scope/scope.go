// Package scope defines symbols, references, and the scope tree built by
// internal/analysis from a parsed file (spec.md §3 "Symbol", "Reference",
// "Scope").
package scope

import "github.com/fenghaitao/dml-language-server/internal/span"

// Kind is the closed enumeration of symbol kinds, per spec.md §3.
type Kind int

const (
	KindDevice Kind = iota
	KindBank
	KindRegister
	KindField
	KindMethod
	KindParameter
	KindAttribute
	KindTemplate
	KindConnect
	KindInterface
	KindPort
	KindEvent
	KindGroup
	KindConstant
	KindTypedef
	KindStruct
	KindModule
	KindMisc
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindBank:
		return "bank"
	case KindRegister:
		return "register"
	case KindField:
		return "field"
	case KindMethod:
		return "method"
	case KindParameter:
		return "parameter"
	case KindAttribute:
		return "attribute"
	case KindTemplate:
		return "template"
	case KindConnect:
		return "connect"
	case KindInterface:
		return "interface"
	case KindPort:
		return "port"
	case KindEvent:
		return "event"
	case KindGroup:
		return "group"
	case KindConstant:
		return "constant"
	case KindTypedef:
		return "typedef"
	case KindStruct:
		return "struct"
	case KindModule:
		return "module"
	default:
		return "misc"
	}
}

// Symbol is a named, spanned entity: (name, kind, defining-span, optional
// detail, optional documentation, children), per spec.md §3.
type Symbol struct {
	Name     string
	Kind     Kind
	Defined  span.Span
	Detail   string // e.g. template provenance set during application (§4.E)
	Doc      string
	Children []*Symbol
}

// ReferenceKind is the closed enumeration of reference kinds.
type ReferenceKind int

const (
	RefTemplate ReferenceKind = iota
	RefType
	RefVariable
	RefMethod
	RefParameter
	RefConstant
)

// Reference is (referenced name, reference-kind, span of the referring
// site), per spec.md §3.
type Reference struct {
	Name string
	Kind ReferenceKind
	Site span.Span
}

// Definition bundles a Symbol with its observed references and the chain
// of enclosing scope names, i.e. a "symbol-definition" per spec.md §3.
type Definition struct {
	Symbol         *Symbol
	References     []Reference
	EnclosingScope []string
}

// Scope is named, span-bounded, with a parent pointer and an
// insertion-ordered name→definition map (spec.md §3 "Scope").
//
// Per the re-architecture note in spec.md §9, scopes are not linked by raw
// back-pointers into an arena; Parent here is a plain pointer because Go's
// garbage collector makes arena-indexing an optimization, not a
// correctness requirement, but invalidation (internal/device) always
// discards a whole Scope tree at once, never a subtree, which is the
// property the arena design was protecting.
type Scope struct {
	Name    string
	Span    span.Span
	Parent  *Scope
	Order   []string // insertion order of Names' keys
	Names   map[string]*Definition
	Children []*Scope
}

// NewScope creates an empty scope with the given name, span, and parent.
func NewScope(name string, sp span.Span, parent *Scope) *Scope {
	s := &Scope{
		Name:   name,
		Span:   sp,
		Parent: parent,
		Names:  make(map[string]*Definition),
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// Chain returns the ordered list of enclosing scope names from the root
// down to and including this scope.
func (s *Scope) Chain() []string {
	if s == nil {
		return nil
	}
	var names []string
	for cur := s; cur != nil; cur = cur.Parent {
		names = append([]string{cur.Name}, names...)
	}
	return names
}

// Declare binds name to def in this scope, following the "first binding
// wins" invariant from spec.md §3: if name is already bound, Declare
// returns the existing definition and ok=false so the caller can emit a
// DuplicateSymbol diagnostic instead of overwriting it.
func (s *Scope) Declare(name string, def *Definition) (existing *Definition, ok bool) {
	if prior, found := s.Names[name]; found {
		return prior, false
	}
	s.Names[name] = def
	s.Order = append(s.Order, name)
	return def, true
}

// Lookup searches this scope and its ancestors for name, returning the
// nearest definition.
func (s *Scope) Lookup(name string) (*Definition, *Scope) {
	for cur := s; cur != nil; cur = cur.Parent {
		if def, ok := cur.Names[name]; ok {
			return def, cur
		}
	}
	return nil, nil
}

// LookupLocal searches only this scope, not its ancestors.
func (s *Scope) LookupLocal(name string) (*Definition, bool) {
	def, ok := s.Names[name]
	return def, ok
}

// Definitions returns this scope's definitions in insertion order.
func (s *Scope) Definitions() []*Definition {
	out := make([]*Definition, 0, len(s.Order))
	for _, name := range s.Order {
		out = append(out, s.Names[name])
	}
	return out
}

// FindScopeAtPosition performs the depth-first descent specified by
// spec.md §8 P4: it returns the innermost scope whose span contains pos,
// or the scope itself if none of its children do.
func FindScopeAtPosition(root *Scope, pos span.Position) *Scope {
	if root == nil || !root.Span.Range.Contains(pos) {
		return nil
	}
	for _, child := range root.Children {
		if found := FindScopeAtPosition(child, pos); found != nil {
			return found
		}
	}
	return root
}
