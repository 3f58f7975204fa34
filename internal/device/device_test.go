package device_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenghaitao/dml-language-server/internal/device"
	"github.com/fenghaitao/dml-language-server/internal/diag"
	"github.com/fenghaitao/dml-language-server/internal/span"
)

// fakeFS is an in-memory FileSystem fixture so tests never touch disk.
type fakeFS struct {
	files map[string]string
}

func (f *fakeFS) ReadFile(path string) (string, error) {
	if text, ok := f.files[path]; ok {
		return text, nil
	}
	return "", fmt.Errorf("no such file: %s", path)
}

// TestAnalyze_S1_MinimalDevice covers spec.md §8 S1.
func TestAnalyze_S1_MinimalDevice(t *testing.T) {
	c := device.New(nil, &fakeFS{files: map[string]string{}})
	diags := c.Analyze(context.Background(), "a.dml", "dml 1.4;\ndevice foo;\n")
	assert.Empty(t, diags)
	syms := c.SymbolsInFile("a.dml")
	require.Len(t, syms, 1)
	assert.Equal(t, "foo", syms[0].Name)
}

// TestAnalyze_S3_UnresolvedImport covers spec.md §8 S3: with no
// compile-info and an empty search path, an import of a non-existent
// file becomes an ImportError but analysis still succeeds.
func TestAnalyze_S3_UnresolvedImport(t *testing.T) {
	c := device.New(nil, &fakeFS{files: map[string]string{}})
	src := "dml 1.4;\nimport \"missing.dml\";\ndevice foo;\n"
	diags := c.Analyze(context.Background(), "a.dml", src)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.ImportError, diags[0].Kind)

	syms := c.SymbolsInFile("a.dml")
	var names []string
	for _, s := range syms {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "foo")
}

// TestAnalyze_ResolvesImportFromOwnDirectory covers the "file's own
// directory" fallback of spec.md §4.D's import search order.
func TestAnalyze_ResolvesImportFromOwnDirectory(t *testing.T) {
	fs := &fakeFS{files: map[string]string{
		"dir/lib.dml": "dml 1.4;\ntemplate shared_t { param width default 8; }\n",
	}}
	c := device.New(nil, fs)
	src := "dml 1.4;\nimport \"lib.dml\";\ndevice foo;\n"
	diags := c.Analyze(context.Background(), "dir/dev.dml", src)
	assert.Empty(t, diags)
	assert.NotEmpty(t, c.SymbolsInFile("dir/lib.dml"))
}

// TestAnalyze_ResolvesImportFromIncludePath covers the include-paths
// half of spec.md §4.D's import search order, taking priority over the
// importing file's own directory.
func TestAnalyze_ResolvesImportFromIncludePath(t *testing.T) {
	fs := &fakeFS{files: map[string]string{
		"include/lib.dml": "dml 1.4;\ntemplate t { }\n",
	}}
	c := device.New(nil, fs)
	c.SetIncludePaths("dev.dml", []string{"include"})
	src := "dml 1.4;\nimport \"lib.dml\";\ndevice foo;\n"
	diags := c.Analyze(context.Background(), "dev.dml", src)
	assert.Empty(t, diags)
	assert.NotEmpty(t, c.SymbolsInFile("include/lib.dml"))
}

// TestAnalyze_S4_DuplicateTopLevelSymbol covers spec.md §8 S4.
func TestAnalyze_S4_DuplicateTopLevelSymbol(t *testing.T) {
	c := device.New(nil, &fakeFS{})
	src := "dml 1.4;\ndevice foo;\ntemplate t { }\ntemplate t { }\n"
	diags := c.Analyze(context.Background(), "a.dml", src)
	found := false
	for _, d := range diags {
		if d.Kind == diag.DuplicateSymbol {
			found = true
		}
	}
	assert.True(t, found)

	defs := c.DefinitionsOf("t")
	require.Len(t, defs, 1)
}

// TestAnalyze_P5_Idempotent covers spec.md §8 P5: re-analyzing the same
// text twice yields the same diagnostics.
func TestAnalyze_P5_Idempotent(t *testing.T) {
	c := device.New(nil, &fakeFS{})
	src := "dml 1.4;\ndevice foo { param p = 1; param p = 2; }\n"
	first := c.Analyze(context.Background(), "a.dml", src)
	second := c.Analyze(context.Background(), "a.dml", src)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Kind, second[0].Kind)
	assert.Equal(t, first[0].Message, second[0].Message)
}

// TestInvalidate_S6_ReverseDependencyClosure covers spec.md §8 S6.
func TestInvalidate_S6_ReverseDependencyClosure(t *testing.T) {
	fs := &fakeFS{files: map[string]string{
		"lib.dml": "dml 1.4;\ntemplate shared_t { param width default 8; }\n",
	}}
	c := device.New(nil, fs)
	c.Analyze(context.Background(), "other.dml", "dml 1.4;\ndevice other;\n")
	c.Analyze(context.Background(), "dev.dml", "dml 1.4;\nimport \"lib.dml\";\ndevice dev;\n")

	closure := c.Invalidate("lib.dml")
	assert.ElementsMatch(t, []string{"lib.dml", "dev.dml"}, closure)

	assert.Nil(t, c.SymbolsInFile("lib.dml"))
	assert.Nil(t, c.SymbolsInFile("dev.dml"))
	assert.NotNil(t, c.SymbolsInFile("other.dml"))
}

// TestAnalyze_S5_TemplateCycle covers spec.md §8 S5 end-to-end through
// the coordinator's shared template registry.
func TestAnalyze_S5_TemplateCycle(t *testing.T) {
	c := device.New(nil, &fakeFS{})
	c.Analyze(context.Background(), "a.dml", "template a is (b) { }\ntemplate b is (a) { }\n")

	_, ok := c.ResolveTemplate("a")
	require.True(t, ok)
	assert.NotEmpty(t, c.TemplateDiagnostics())
}

func TestSymbolAtPosition_FindsDeclarationAndReference(t *testing.T) {
	c := device.New(nil, &fakeFS{})
	src := `dml 1.4;
device foo {
    param width = 8;
    method m() { local uint32 x = width; }
}`
	c.Analyze(context.Background(), "a.dml", src)

	sym, ok := c.SymbolAtPosition("a.dml", span.Position{Line: 2, Column: 10})
	require.True(t, ok)
	assert.Equal(t, "width", sym.Name)

	sym2, ok := c.SymbolAtPosition("a.dml", span.Position{Line: 3, Column: 36})
	require.True(t, ok)
	assert.Equal(t, "width", sym2.Name)
}

func TestAllDiagnostics_CoversEveryCachedFile(t *testing.T) {
	c := device.New(nil, &fakeFS{})
	c.Analyze(context.Background(), "a.dml", "dml 1.4;\ndevice a;\n")
	c.Analyze(context.Background(), "b.dml", "device b; dml 1.4;\n")

	all := c.AllDiagnostics()
	require.Contains(t, all, "a.dml")
	require.Contains(t, all, "b.dml")
	assert.Empty(t, all["a.dml"])
	assert.NotEmpty(t, all["b.dml"])
}
