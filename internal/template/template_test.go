package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenghaitao/dml-language-server/internal/ast"
	"github.com/fenghaitao/dml-language-server/internal/lexer"
	"github.com/fenghaitao/dml-language-server/internal/parser"
	"github.com/fenghaitao/dml-language-server/internal/template"
)

func parseTemplates(t *testing.T, src string) map[string]*ast.TemplateDecl {
	t.Helper()
	toks := lexer.Tokenize(src, "a.dml")
	p := parser.New("a.dml", toks)
	decls := p.Parse()
	require.Empty(t, p.Errors())
	out := make(map[string]*ast.TemplateDecl)
	for _, d := range decls {
		if td, ok := d.(*ast.TemplateDecl); ok {
			out[td.Name] = td
		}
	}
	return out
}

func TestRegistry_ResolveSimpleParameterMerge(t *testing.T) {
	templates := parseTemplates(t, `
template base { param width default 8; }
template derived is (base) { param width default 16; }
`)
	reg := template.NewRegistry()
	for _, td := range templates {
		reg.Register(td)
	}
	res, ok := reg.Resolve("derived")
	require.True(t, ok)
	require.Empty(t, reg.Diagnostics())
	require.Contains(t, res.Parameters, "width")
	lit := res.Parameters["width"].Value.(*ast.LiteralExpr)
	assert.Equal(t, "16", lit.Text)
	assert.Equal(t, "derived", res.Parameters["width"].Source)
}

func TestRegistry_MethodOverrideChain(t *testing.T) {
	templates := parseTemplates(t, `
template base { method read() -> (uint32) { return 1; } }
template derived is (base) { method read() -> (uint32) { return 2; } }
`)
	reg := template.NewRegistry()
	for _, td := range templates {
		reg.Register(td)
	}
	res, ok := reg.Resolve("derived")
	require.True(t, ok)
	require.Contains(t, res.Methods, "read")
	require.Len(t, res.Methods["read"].Overrides, 2)
}

// TestRegistry_CycleDoesNotHang covers spec.md §4.E: a circular `is` chain
// is detected and reported instead of recursing forever.
func TestRegistry_CycleDoesNotHang(t *testing.T) {
	templates := parseTemplates(t, `
template a is (b) {}
template b is (a) {}
`)
	reg := template.NewRegistry()
	for _, td := range templates {
		reg.Register(td)
	}
	_, ok := reg.Resolve("a")
	require.True(t, ok)
	require.NotEmpty(t, reg.Diagnostics())
}

func TestRegistry_AbstractMethodDetected(t *testing.T) {
	templates := parseTemplates(t, `
template iface { method read() -> (uint32); }
`)
	reg := template.NewRegistry()
	for _, td := range templates {
		reg.Register(td)
	}
	res, ok := reg.Resolve("iface")
	require.True(t, ok)
	assert.Contains(t, res.Abstract, "read")
}

func TestRegistry_UnknownTemplateNotFound(t *testing.T) {
	reg := template.NewRegistry()
	_, ok := reg.Resolve("nope")
	assert.False(t, ok)
}
