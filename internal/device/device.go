// Package device implements DeviceAnalysis: the cross-file coordinator
// that discovers import dependencies, maintains a dependency graph,
// serializes incremental re-analysis, and links the per-file results of
// internal/analysis against the shared internal/template registry
// (spec.md §4.D, §4.F, §5).
package device

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fenghaitao/dml-language-server/internal/analysis"
	"github.com/fenghaitao/dml-language-server/internal/ast"
	"github.com/fenghaitao/dml-language-server/internal/diag"
	"github.com/fenghaitao/dml-language-server/internal/scope"
	"github.com/fenghaitao/dml-language-server/internal/span"
	"github.com/fenghaitao/dml-language-server/internal/template"
)

// FileSystem abstracts reading dependency files off disk so tests can
// substitute an in-memory fixture instead of touching the real
// filesystem. A FileSystem may optionally implement io.Closer; Close
// releases it.
type FileSystem interface {
	ReadFile(path string) (string, error)
}

// osFileSystem reads files with the standard library. This is the only
// place in the module that talks to the real filesystem on the analysis
// path; no example in the corpus wraps os.ReadFile behind a third-party
// library, so this stays on the standard library rather than importing
// one for its own sake.
type osFileSystem struct{}

func (osFileSystem) ReadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// entry is what the coordinator caches for one analyzed file.
type entry struct {
	file *analysis.File
}

// Coordinator is the shared, concurrency-safe DeviceAnalysis instance.
// Per spec.md §5, its two mutable resources — the file-analysis map
// (plus the dependency graph it is stored alongside) and the template
// registry — are each guarded by their own reader/writer lock, so a
// reader of one is never blocked by a writer of the other.
type Coordinator struct {
	mu           sync.RWMutex
	files        map[string]*entry
	forward      map[string]map[string]struct{} // file -> files it imports
	reverse      map[string]map[string]struct{} // file -> files that import it
	importDiags  map[string][]diag.Diagnostic   // device-level diagnostics (unresolved imports)
	includePaths map[string][]string

	templMu         sync.RWMutex
	templates       *template.Registry
	templatesByFile map[string][]string

	fs  FileSystem
	log *zap.Logger
}

// New creates an empty Coordinator. A nil logger is replaced with a
// no-op logger; a nil fs reads from the real filesystem.
func New(log *zap.Logger, fs FileSystem) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if fs == nil {
		fs = osFileSystem{}
	}
	return &Coordinator{
		files:           make(map[string]*entry),
		forward:         make(map[string]map[string]struct{}),
		reverse:         make(map[string]map[string]struct{}),
		importDiags:     make(map[string][]diag.Diagnostic),
		includePaths:    make(map[string][]string),
		templates:       template.NewRegistry(),
		templatesByFile: make(map[string][]string),
		fs:              fs,
		log:             log,
	}
}

// SetIncludePaths configures the ordered include search path for a
// device file and everything it transitively imports, per the
// compile-commands input described in spec.md §6.
func (c *Coordinator) SetIncludePaths(file string, paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.includePaths[file] = append([]string(nil), paths...)
}

// Close releases resources held by the coordinator: it flushes the
// logger and closes fs if it implements io.Closer, joining any errors
// the way buflsp's Shutdown path does (spec.md's DOMAIN STACK, multierr).
func (c *Coordinator) Close() error {
	var err error
	if syncErr := c.log.Sync(); syncErr != nil {
		err = multierr.Append(err, syncErr)
	}
	if closer, ok := c.fs.(io.Closer); ok {
		if closeErr := closer.Close(); closeErr != nil {
			err = multierr.Append(err, closeErr)
		}
	}
	return err
}

// Analyze builds or rebuilds path's IsolatedAnalysis and recursively
// analyzes every import it can resolve that isn't already cached,
// returning the diagnostics for path itself (spec.md §4.D "analyze").
func (c *Coordinator) Analyze(ctx context.Context, path, text string) []diag.Diagnostic {
	c.log.Debug("analyze", zap.String("file", path))
	c.analyzeOne(ctx, path, text, newVisitSet())
	return c.DiagnosticsForFile(path)
}

// visitSet tracks files entered during a single Analyze call so that an
// import cycle (tolerated by DML, per spec.md §4.D) does not recurse
// forever, and so two independent branches of the import graph don't
// redundantly analyze the same file twice in one call.
type visitSet struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newVisitSet() *visitSet { return &visitSet{seen: make(map[string]bool)} }

func (v *visitSet) enter(path string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen[path] {
		return false
	}
	v.seen[path] = true
	return true
}

func (c *Coordinator) analyzeOne(ctx context.Context, path, text string, visited *visitSet) {
	if !visited.enter(path) {
		return
	}

	// The lex/parse/scope pass is pure CPU work; it runs outside any
	// lock, per spec.md §5's "taking the lock only to publish".
	f := analysis.Analyze(path, text, c.prevVersionOf(path))

	var importErrs []diag.Diagnostic
	deps := make(map[string]struct{})

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range f.Decls {
		imp, ok := d.(*ast.ImportDecl)
		if !ok {
			continue
		}
		resolved, depText, found := c.resolveImport(path, imp.Path)
		if !found {
			importErrs = append(importErrs, diag.New(imp.Span(), diag.ImportError,
				fmt.Sprintf("cannot resolve import %q", imp.Path)))
			c.log.Warn("unresolved import", zap.String("file", path), zap.String("import", imp.Path))
			continue
		}
		deps[resolved] = struct{}{}

		if c.hasFile(resolved) {
			continue
		}
		dep, depTxt := resolved, depText
		g.Go(func() error {
			c.analyzeOne(gctx, dep, depTxt, visited)
			return nil
		})
	}
	_ = g.Wait() // analyzeOne never returns an error; failures become diagnostics.

	var templateNames []string
	for _, d := range f.Decls {
		if td, ok := d.(*ast.TemplateDecl); ok {
			templateNames = append(templateNames, td.Name)
		}
	}

	c.mu.Lock()
	c.removeForwardEdgesLocked(path)
	for dep := range deps {
		c.addEdgeLocked(path, dep)
	}
	c.files[path] = &entry{file: f}
	c.importDiags[path] = importErrs
	c.mu.Unlock()

	c.templMu.Lock()
	c.templatesByFile[path] = templateNames
	for _, d := range f.Decls {
		if td, ok := d.(*ast.TemplateDecl); ok {
			c.templates.Register(td)
		}
	}
	c.templMu.Unlock()
}

// resolveImport searches, in order, the include paths configured for
// fromFile followed by fromFile's own directory, returning the first
// candidate that can be read (spec.md §4.D).
func (c *Coordinator) resolveImport(fromFile, name string) (resolvedPath, text string, found bool) {
	c.mu.RLock()
	includes := append([]string(nil), c.includePaths[fromFile]...)
	c.mu.RUnlock()

	candidates := make([]string, 0, len(includes)+1)
	for _, inc := range includes {
		candidates = append(candidates, filepath.Join(inc, name))
	}
	candidates = append(candidates, filepath.Join(filepath.Dir(fromFile), name))

	for _, cand := range candidates {
		if t, err := c.fs.ReadFile(cand); err == nil {
			return cand, t, true
		}
	}
	return "", "", false
}

func (c *Coordinator) removeForwardEdgesLocked(path string) {
	for dep := range c.forward[path] {
		if revs, ok := c.reverse[dep]; ok {
			delete(revs, path)
		}
	}
	delete(c.forward, path)
}

func (c *Coordinator) addEdgeLocked(from, to string) {
	if c.forward[from] == nil {
		c.forward[from] = make(map[string]struct{})
	}
	c.forward[from][to] = struct{}{}
	if c.reverse[to] == nil {
		c.reverse[to] = make(map[string]struct{})
	}
	c.reverse[to][from] = struct{}{}
}

func (c *Coordinator) hasFile(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.files[path]
	return ok
}

func (c *Coordinator) prevVersionOf(path string) int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.files[path]; ok {
		return e.file.Version
	}
	return 0
}

// Invalidate computes the transitive reverse-dependency closure of path
// (path included), evicts every file in it from the cache, unregisters
// the templates those files contributed, and returns the closure so
// callers can re-request analysis lazily (spec.md §4.D "invalidate",
// §4.F). The returned slice always starts with path itself; the
// remainder is sorted for determinism.
func (c *Coordinator) Invalidate(path string) []string {
	c.mu.Lock()
	closure := map[string]struct{}{path: {}}
	queue := []string{path}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dep := range c.reverse[cur] {
			if _, ok := closure[dep]; !ok {
				closure[dep] = struct{}{}
				queue = append(queue, dep)
			}
		}
	}
	for f := range closure {
		c.removeForwardEdgesLocked(f)
		delete(c.reverse, f)
		delete(c.files, f)
		delete(c.importDiags, f)
	}
	c.mu.Unlock()

	c.templMu.Lock()
	for f := range closure {
		for _, name := range c.templatesByFile[f] {
			c.templates.Unregister(name)
		}
		delete(c.templatesByFile, f)
	}
	c.templMu.Unlock()

	c.log.Info("invalidate", zap.String("file", path), zap.Int("closure", len(closure)))

	out := make([]string, 0, len(closure))
	out = append(out, path)
	delete(closure, path)
	rest := make([]string, 0, len(closure))
	for f := range closure {
		rest = append(rest, f)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// DiagnosticsForFile returns every diagnostic known for path: its own
// IsolatedAnalysis diagnostics plus any device-level import errors.
func (c *Coordinator) DiagnosticsForFile(path string) []diag.Diagnostic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.diagnosticsForFileLocked(path)
}

func (c *Coordinator) diagnosticsForFileLocked(path string) []diag.Diagnostic {
	out := make([]diag.Diagnostic, 0)
	if e, ok := c.files[path]; ok {
		out = append(out, e.file.Diagnostics()...)
	}
	out = append(out, c.importDiags[path]...)
	return out
}

// AllDiagnostics returns every diagnostic for every cached file.
func (c *Coordinator) AllDiagnostics() map[string][]diag.Diagnostic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]diag.Diagnostic, len(c.files))
	for path := range c.files {
		out[path] = c.diagnosticsForFileLocked(path)
	}
	return out
}

// SymbolsInFile returns path's top-level symbols in declaration order.
func (c *Coordinator) SymbolsInFile(path string) []*scope.Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.files[path]
	if !ok {
		return nil
	}
	defs := e.file.Root.Definitions()
	out := make([]*scope.Symbol, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.Symbol)
	}
	return out
}

// SymbolsInScope returns every symbol visible at pos within path: the
// innermost enclosing scope's own definitions followed by each ancestor
// scope's, out to the file root (spec.md §6 "symbols-in-scope(path,
// position)"), used to drive completion.
func (c *Coordinator) SymbolsInScope(path string, pos span.Position) []*scope.Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.files[path]
	if !ok {
		return nil
	}
	sc := scope.FindScopeAtPosition(e.file.Root, pos)
	if sc == nil {
		sc = e.file.Root
	}
	var out []*scope.Symbol
	for s := sc; s != nil; s = s.Parent {
		for _, def := range s.Definitions() {
			out = append(out, def.Symbol)
		}
	}
	return out
}

// SymbolAtPosition returns the symbol whose declaration or a recorded
// reference to it covers pos within path: hovering a name's own
// declaration and hovering a use of that name both resolve to the same
// symbol (spec.md §6 "textDocument/hover").
func (c *Coordinator) SymbolAtPosition(path string, pos span.Position) (*scope.Symbol, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.files[path]
	if !ok {
		return nil, false
	}
	if sym := symbolAt(e.file.Root, pos); sym != nil {
		return sym, true
	}
	return nil, false
}

// symbolAt checks reference sites before declaration spans, and nested
// scopes before their parent's declarations, so the innermost name under
// pos wins over an enclosing declaration whose span also covers it.
func symbolAt(sc *scope.Scope, pos span.Position) *scope.Symbol {
	for _, def := range sc.Definitions() {
		for _, ref := range def.References {
			if ref.Site.Range.Contains(pos) {
				return def.Symbol
			}
		}
	}
	for _, child := range sc.Children {
		if sym := symbolAt(child, pos); sym != nil {
			return sym
		}
	}
	for _, def := range sc.Definitions() {
		if def.Symbol.Defined.Range.Contains(pos) {
			return def.Symbol
		}
	}
	return nil
}

// DefinitionsOf returns every definition named name across every cached
// file, for textDocument/references (spec.md §6).
func (c *Coordinator) DefinitionsOf(name string) []*scope.Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*scope.Definition
	for _, e := range c.files {
		collectDefinitions(e.file.Root, name, &out)
	}
	return out
}

func collectDefinitions(sc *scope.Scope, name string, out *[]*scope.Definition) {
	if def, ok := sc.LookupLocal(name); ok {
		*out = append(*out, def)
	}
	for _, child := range sc.Children {
		collectDefinitions(child, name, out)
	}
}

// ResolveTemplate resolves name against the shared template registry
// (spec.md §4.E), usable by any caller that needs a device's merged
// template view once every contributing file has been analyzed.
func (c *Coordinator) ResolveTemplate(name string) (*template.Resolved, bool) {
	c.templMu.Lock()
	defer c.templMu.Unlock()
	return c.templates.Resolve(name)
}

// TemplateDiagnostics returns diagnostics accumulated resolving
// templates (cycles and method arity conflicts). Abstract methods are
// listed in template.Resolved.Abstract and are not reported here.
func (c *Coordinator) TemplateDiagnostics() []diag.Diagnostic {
	c.templMu.RLock()
	defer c.templMu.RUnlock()
	return c.templates.Diagnostics()
}
