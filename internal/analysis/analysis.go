// Package analysis implements IsolatedAnalysis: the single-file pass that
// turns a token stream into a scope tree, symbol table, reference list,
// and diagnostic set, independent of any other file (spec.md §4.C).
package analysis

import (
	"fmt"

	"github.com/fenghaitao/dml-language-server/internal/ast"
	"github.com/fenghaitao/dml-language-server/internal/diag"
	"github.com/fenghaitao/dml-language-server/internal/lexer"
	"github.com/fenghaitao/dml-language-server/internal/parser"
	"github.com/fenghaitao/dml-language-server/internal/scope"
	"github.com/fenghaitao/dml-language-server/internal/span"
)

// File is the result of analyzing one file in isolation: its AST, root
// scope, diagnostics, and the by-products (imports, declared version)
// collected by the parser. Version is prevVersion+1 (see Analyze), a count
// of analyses of the path that does not depend on the content; no
// staleness check in the module reads it.
type File struct {
	Path    string
	Source  string
	Decls   []ast.Decl
	Root    *scope.Scope
	Version int32

	imports  []string
	dmlVer   string
	report   diag.Report
}

// Analyze lexes, parses, and resolves local scope/symbols for source text
// from path. prevVersion is the File.Version of any previous analysis of
// this path (0 if none); the returned File's Version is prevVersion+1.
func Analyze(path, source string, prevVersion int32) *File {
	tokens := lexer.Tokenize(source, path)
	p := parser.New(path, tokens)
	decls := p.Parse()

	f := &File{
		Path:    path,
		Source:  source,
		Decls:   decls,
		imports: p.Imports(),
		dmlVer:  p.Version(),
		Version: prevVersion + 1,
	}
	for _, d := range p.Errors() {
		f.report.Add(d)
	}

	fileSpan := span.Span{File: path, Range: span.NewRange(span.Position{}, endOfSource(source))}
	f.Root = scope.NewScope(path, fileSpan, nil)
	b := &builder{file: f}
	for _, d := range decls {
		b.declareDecl(f.Root, d)
	}
	for _, d := range decls {
		b.resolveDecl(f.Root, d)
	}
	return f
}

// Imports returns the module paths named by import declarations.
func (f *File) Imports() []string { return f.imports }

// DMLVersion returns the declared DML version literal, or "" if absent.
func (f *File) DMLVersion() string { return f.dmlVer }

// Diagnostics returns every diagnostic produced analyzing this file,
// parser errors and scope-resolution errors alike.
func (f *File) Diagnostics() []diag.Diagnostic { return f.report.Diagnostics() }

// ScopeAt implements spec.md §8 P4: the innermost scope containing pos,
// or nil when pos lies outside the file's span.
func (f *File) ScopeAt(pos span.Position) *scope.Scope {
	return scope.FindScopeAtPosition(f.Root, pos)
}

func endOfSource(src string) span.Position {
	line, col := 0, 0
	for _, r := range src {
		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	return span.Position{Line: line, Column: col}
}

// builder walks the AST twice: declareDecl binds every named declaration
// into its enclosing scope (catching duplicates), and resolveDecl then
// walks bodies to record references against whatever is visible at that
// point, per spec.md §4.C "two-pass" construction (binding before use,
// since DML allows forward reference within a device body).
type builder struct {
	file *File
}

func (b *builder) declareSymbol(sc *scope.Scope, name string, kind scope.Kind, sp span.Span) *scope.Definition {
	def := &scope.Definition{
		Symbol:         &scope.Symbol{Name: name, Kind: kind, Defined: sp},
		EnclosingScope: sc.Chain(),
	}
	if existing, ok := sc.Declare(name, def); !ok {
		b.file.report.Addf(sp, diag.DuplicateSymbol,
			fmt.Sprintf("%q is already defined in this scope", name))
		return existing
	}
	return def
}

// declareDecl binds the declaration's own name (if any) and recurses into
// a fresh child scope for container-shaped declarations.
func (b *builder) declareDecl(sc *scope.Scope, d ast.Decl) {
	switch n := d.(type) {
	case *ast.DeviceDecl:
		b.declareSymbol(sc, n.Name, scope.KindDevice, n.Span())
		child := scope.NewScope(n.Name, n.Span(), sc)
		for _, m := range n.Body {
			b.declareDecl(child, m)
		}
	case *ast.TemplateDecl:
		b.declareSymbol(sc, n.Name, scope.KindTemplate, n.Span())
		child := scope.NewScope(n.Name, n.Span(), sc)
		b.declareParams(child, n.Params)
		for _, m := range n.Members {
			b.declareDecl(child, m)
		}
	case *ast.BankDecl:
		b.declareSymbol(sc, n.Name, scope.KindBank, n.Span())
		child := scope.NewScope(n.Name, n.Span(), sc)
		for _, m := range n.Members {
			b.declareDecl(child, m)
		}
	case *ast.RegisterDecl:
		b.declareSymbol(sc, n.Name, scope.KindRegister, n.Span())
		child := scope.NewScope(n.Name, n.Span(), sc)
		for _, m := range n.Members {
			b.declareDecl(child, m)
		}
	case *ast.FieldDecl:
		b.declareSymbol(sc, n.Name, scope.KindField, n.Span())
		child := scope.NewScope(n.Name, n.Span(), sc)
		for _, m := range n.Members {
			b.declareDecl(child, m)
		}
	case *ast.MethodDecl:
		b.declareSymbol(sc, n.Name, scope.KindMethod, n.Span())
		child := scope.NewScope(n.Name, n.Span(), sc)
		b.declareParams(child, n.Params)
		b.declareStmts(child, n.Body)
	case *ast.ParameterDecl:
		b.declareSymbol(sc, n.Name, scope.KindParameter, n.Span())
	case *ast.AttributeDecl:
		b.declareContainer(sc, n.Name, scope.KindAttribute, n.Span(), n.Members)
	case *ast.ConnectDecl:
		b.declareContainer(sc, n.Name, scope.KindConnect, n.Span(), n.Members)
	case *ast.InterfaceDecl:
		b.declareContainer(sc, n.Name, scope.KindInterface, n.Span(), n.Members)
	case *ast.PortDecl:
		b.declareContainer(sc, n.Name, scope.KindPort, n.Span(), n.Members)
	case *ast.EventDecl:
		b.declareContainer(sc, n.Name, scope.KindEvent, n.Span(), n.Members)
	case *ast.GroupDecl:
		b.declareContainer(sc, n.Name, scope.KindGroup, n.Span(), n.Members)
	case *ast.SubdeviceDecl:
		b.declareContainer(sc, n.Name, scope.KindMisc, n.Span(), n.Members)
	case *ast.DataDecl:
		b.declareSymbol(sc, n.Name, scope.KindMisc, n.Span())
	case *ast.SessionDecl:
		b.declareSymbol(sc, n.Name, scope.KindMisc, n.Span())
	case *ast.SavedDecl:
		b.declareSymbol(sc, n.Name, scope.KindMisc, n.Span())
	case *ast.ConstantDecl:
		b.declareSymbol(sc, n.Name, scope.KindConstant, n.Span())
	case *ast.TypedefDecl:
		b.declareSymbol(sc, n.Name, scope.KindTypedef, n.Span())
	case *ast.StructDecl:
		b.declareSymbol(sc, n.Name, scope.KindStruct, n.Span())
	case *ast.UnionDecl:
		b.declareSymbol(sc, n.Name, scope.KindStruct, n.Span())
	case *ast.EnumDecl:
		b.declareSymbol(sc, n.Name, scope.KindMisc, n.Span())
	case *ast.ExternDecl:
		b.declareSymbol(sc, n.Name, scope.KindMisc, n.Span())
	case *ast.LogGroupDecl:
		b.declareSymbol(sc, n.Name, scope.KindMisc, n.Span())
	// DMLVersionDecl, ImportDecl, BadDecl carry no symbol.
	}
}

func (b *builder) declareContainer(sc *scope.Scope, name string, kind scope.Kind, sp span.Span, members []ast.Decl) {
	b.declareSymbol(sc, name, kind, sp)
	child := scope.NewScope(name, sp, sc)
	for _, m := range members {
		b.declareDecl(child, m)
	}
}

func (b *builder) declareParams(sc *scope.Scope, params []*ast.Param) {
	for _, par := range params {
		b.declareSymbol(sc, par.Name, scope.KindParameter, par.Span())
	}
}

func (b *builder) declareStmts(sc *scope.Scope, stmts []ast.Stmt) {
	for _, s := range stmts {
		b.declareStmt(sc, s)
	}
}

func (b *builder) declareStmt(sc *scope.Scope, s ast.Stmt) {
	switch n := s.(type) {
	case *ast.BlockStmt:
		b.declareStmts(sc, n.Stmts)
	case *ast.DeclStmt:
		b.declareDecl(sc, n.Decl)
	case *ast.IfStmt:
		b.declareStmt(sc, n.Then)
		if n.Else != nil {
			b.declareStmt(sc, n.Else)
		}
	case *ast.WhileStmt:
		b.declareStmt(sc, n.Body)
	case *ast.DoWhileStmt:
		b.declareStmt(sc, n.Body)
	case *ast.ForStmt:
		if n.Init != nil {
			b.declareStmt(sc, n.Init)
		}
		b.declareStmt(sc, n.Body)
	case *ast.ForeachStmt:
		b.declareStmt(sc, n.Body)
	case *ast.SwitchStmt:
		for _, c := range n.Cases {
			b.declareStmts(sc, c.Body)
		}
	case *ast.TryStmt:
		b.declareStmt(sc, n.Try)
		if n.Catch != nil {
			b.declareStmt(sc, n.Catch)
		}
	case *ast.HashIfStmt:
		b.declareStmts(sc, n.Then)
		b.declareStmts(sc, n.Else)
	case *ast.HashForeachStmt:
		b.declareStmts(sc, n.Body)
	case *ast.HashSelectStmt:
		for _, c := range n.Cases {
			b.declareStmts(sc, c.Body)
		}
		b.declareStmts(sc, n.Else)
	}
}

// resolveDecl walks member and statement bodies recording References
// against their lexical scope. It is conservative: it records a reference
// for every identifier it can attribute to a known expression shape and
// that resolves in the scope chain. Identifiers that do not resolve are
// dropped; no UndefinedSymbol diagnostic is reported for them, here or in
// internal/device.
func (b *builder) resolveDecl(sc *scope.Scope, d ast.Decl) {
	child := sc
	switch n := d.(type) {
	case *ast.DeviceDecl:
		child = findChildScope(sc, n.Name)
		for _, t := range n.Templates {
			b.reference(child, t, scope.RefTemplate, n.Span())
		}
		for _, m := range n.Body {
			b.resolveDecl(child, m)
		}
		return
	case *ast.TemplateDecl:
		child = findChildScope(sc, n.Name)
		for _, t := range n.Parents {
			b.reference(child, t, scope.RefTemplate, n.Span())
		}
		for _, m := range n.Members {
			b.resolveDecl(child, m)
		}
		return
	case *ast.BankDecl:
		child = findChildScope(sc, n.Name)
		for _, m := range n.Members {
			b.resolveDecl(child, m)
		}
		return
	case *ast.RegisterDecl:
		child = findChildScope(sc, n.Name)
		b.resolveExpr(sc, n.Size)
		b.resolveExpr(sc, n.Offset)
		for _, t := range n.Templates {
			b.reference(child, t, scope.RefTemplate, n.Span())
		}
		for _, m := range n.Members {
			b.resolveDecl(child, m)
		}
		return
	case *ast.FieldDecl:
		child = findChildScope(sc, n.Name)
		b.resolveExpr(sc, n.BitHigh)
		b.resolveExpr(sc, n.BitLow)
		for _, m := range n.Members {
			b.resolveDecl(child, m)
		}
		return
	case *ast.MethodDecl:
		child = findChildScope(sc, n.Name)
		for _, ret := range n.Returns {
			b.resolveExpr(child, ret)
		}
		for _, par := range n.Params {
			b.resolveExpr(child, par.Type)
			b.resolveExpr(child, par.Default)
		}
		b.resolveStmts(child, n.Body)
		return
	case *ast.ParameterDecl:
		b.resolveExpr(sc, n.Type)
		b.resolveExpr(sc, n.Value)
		return
	case *ast.AttributeDecl:
		b.resolveContainer(sc, n.Name, n.Templates, n.Members)
		return
	case *ast.ConnectDecl:
		b.resolveContainer(sc, n.Name, n.Templates, n.Members)
		return
	case *ast.InterfaceDecl:
		b.resolveContainer(sc, n.Name, nil, n.Members)
		return
	case *ast.PortDecl:
		b.resolveContainer(sc, n.Name, n.Templates, n.Members)
		return
	case *ast.EventDecl:
		b.resolveContainer(sc, n.Name, n.Templates, n.Members)
		return
	case *ast.GroupDecl:
		b.resolveContainer(sc, n.Name, n.Templates, n.Members)
		return
	case *ast.SubdeviceDecl:
		b.resolveContainer(sc, n.Name, n.Templates, n.Members)
		return
	case *ast.DataDecl:
		b.resolveExpr(sc, n.Type)
		return
	case *ast.SessionDecl:
		b.resolveExpr(sc, n.Type)
		b.resolveExpr(sc, n.Value)
		return
	case *ast.SavedDecl:
		b.resolveExpr(sc, n.Type)
		b.resolveExpr(sc, n.Value)
		return
	case *ast.ConstantDecl:
		b.resolveExpr(sc, n.Value)
		return
	case *ast.TypedefDecl:
		b.resolveExpr(sc, n.Type)
		return
	case *ast.ExternDecl:
		b.resolveExpr(sc, n.Type)
		return
	}
}

func (b *builder) resolveContainer(sc *scope.Scope, name string, templates []string, members []ast.Decl) {
	child := findChildScope(sc, name)
	for _, t := range templates {
		b.reference(child, t, scope.RefTemplate, child.Span)
	}
	for _, m := range members {
		b.resolveDecl(child, m)
	}
}

func findChildScope(sc *scope.Scope, name string) *scope.Scope {
	for _, c := range sc.Children {
		if c.Name == name {
			return c
		}
	}
	return sc
}

func (b *builder) resolveStmts(sc *scope.Scope, stmts []ast.Stmt) {
	for _, s := range stmts {
		b.resolveStmt(sc, s)
	}
}

func (b *builder) resolveStmt(sc *scope.Scope, s ast.Stmt) {
	switch n := s.(type) {
	case *ast.BlockStmt:
		b.resolveStmts(sc, n.Stmts)
	case *ast.DeclStmt:
		b.resolveDecl(sc, n.Decl)
	case *ast.IfStmt:
		b.resolveExpr(sc, n.Cond)
		b.resolveStmt(sc, n.Then)
		if n.Else != nil {
			b.resolveStmt(sc, n.Else)
		}
	case *ast.WhileStmt:
		b.resolveExpr(sc, n.Cond)
		b.resolveStmt(sc, n.Body)
	case *ast.DoWhileStmt:
		b.resolveStmt(sc, n.Body)
		b.resolveExpr(sc, n.Cond)
	case *ast.ForStmt:
		if n.Init != nil {
			b.resolveStmt(sc, n.Init)
		}
		b.resolveExpr(sc, n.Cond)
		if n.Post != nil {
			b.resolveStmt(sc, n.Post)
		}
		b.resolveStmt(sc, n.Body)
	case *ast.ForeachStmt:
		b.resolveExpr(sc, n.In)
		b.resolveStmt(sc, n.Body)
	case *ast.SwitchStmt:
		b.resolveExpr(sc, n.Tag)
		for _, c := range n.Cases {
			for _, v := range c.Values {
				b.resolveExpr(sc, v)
			}
			b.resolveStmts(sc, c.Body)
		}
	case *ast.ReturnStmt:
		b.resolveExpr(sc, n.Value)
	case *ast.TryStmt:
		b.resolveStmt(sc, n.Try)
		if n.Catch != nil {
			b.resolveStmt(sc, n.Catch)
		}
	case *ast.LogStmt:
		for _, a := range n.Args {
			b.resolveExpr(sc, a)
		}
	case *ast.AssertStmt:
		b.resolveExpr(sc, n.Cond)
	case *ast.AfterStmt:
		b.resolveExpr(sc, n.Delay)
		b.resolveExpr(sc, n.Call)
	case *ast.HashIfStmt:
		b.resolveExpr(sc, n.Cond)
		b.resolveStmts(sc, n.Then)
		b.resolveStmts(sc, n.Else)
	case *ast.HashForeachStmt:
		b.resolveExpr(sc, n.In)
		b.resolveStmts(sc, n.Body)
	case *ast.HashSelectStmt:
		for _, c := range n.Cases {
			b.resolveExpr(sc, c.In)
			b.resolveExpr(sc, c.Where)
			b.resolveStmts(sc, c.Body)
		}
		b.resolveStmts(sc, n.Else)
	case *ast.ExprStmt:
		b.resolveExpr(sc, n.X)
	}
}

// resolveExpr records a reference for every use of an identifier in an
// evaluated position that resolves in sc's scope chain (see reference).
// It does no type checking.
func (b *builder) resolveExpr(sc *scope.Scope, e ast.Expr) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.IdentExpr:
		b.reference(sc, n.Name, scope.RefVariable, n.Span())
	case *ast.BinaryExpr:
		b.resolveExpr(sc, n.Left)
		b.resolveExpr(sc, n.Right)
	case *ast.UnaryExpr:
		b.resolveExpr(sc, n.X)
	case *ast.CallExpr:
		// An identifier in call position is a method reference, not a
		// variable reference, per spec.md §4.C.
		if ident, ok := n.Fn.(*ast.IdentExpr); ok {
			b.reference(sc, ident.Name, scope.RefMethod, ident.Span())
		} else {
			b.resolveExpr(sc, n.Fn)
		}
		for _, a := range n.Args {
			b.resolveExpr(sc, a)
		}
	case *ast.MemberExpr:
		b.resolveExpr(sc, n.X)
	case *ast.IndexExpr:
		b.resolveExpr(sc, n.X)
		b.resolveExpr(sc, n.Index)
	case *ast.TernaryExpr:
		b.resolveExpr(sc, n.Cond)
		b.resolveExpr(sc, n.Then)
		b.resolveExpr(sc, n.Else)
	case *ast.BitSliceExpr:
		b.resolveExpr(sc, n.X)
		b.resolveExpr(sc, n.High)
		b.resolveExpr(sc, n.Low)
	case *ast.CastExpr:
		b.resolveExpr(sc, n.Type)
		b.resolveExpr(sc, n.X)
	case *ast.SizeofExpr:
		b.resolveExpr(sc, n.X)
		b.resolveExpr(sc, n.Type)
	case *ast.NewExpr:
		b.resolveExpr(sc, n.Type)
		b.resolveExpr(sc, n.Count)
	case *ast.InitializerListExpr:
		for _, el := range n.Elements {
			b.resolveExpr(sc, el)
		}
	case *ast.TypeExpr:
		if n.Name != "" {
			b.reference(sc, n.Name, scope.RefType, n.Span())
		}
		b.resolveExpr(sc, n.TypeofX)
		b.resolveExpr(sc, n.ArrayLen)
	}
}

func (b *builder) reference(sc *scope.Scope, name string, kind scope.ReferenceKind, sp span.Span) {
	def, _ := sc.Lookup(name)
	ref := scope.Reference{Name: name, Kind: kind, Site: sp}
	if def != nil {
		def.References = append(def.References, ref)
	}
	// An unresolved reference is dropped without a diagnostic; it is not
	// kept for any later cross-file resolution.
}
