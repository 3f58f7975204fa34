package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenghaitao/dml-language-server/internal/analysis"
	"github.com/fenghaitao/dml-language-server/internal/diag"
	"github.com/fenghaitao/dml-language-server/internal/span"
)

func TestAnalyze_BuildsScopeTree(t *testing.T) {
	src := `dml 1.4;
device foo {
    bank regs {
        register r0 size 4 @ 0 {
            method read() -> (uint32) { return 1; }
        }
    }
}`
	f := analysis.Analyze("a.dml", src, 0)
	require.Empty(t, f.Diagnostics())
	assert.Equal(t, int32(1), f.Version)

	_, ok := f.Root.LookupLocal("foo")
	assert.True(t, ok)
}

func TestAnalyze_DuplicateSymbolDiagnostic(t *testing.T) {
	src := `dml 1.4;
device foo {
    param p = 1;
    param p = 2;
}`
	f := analysis.Analyze("a.dml", src, 0)
	found := false
	for _, d := range f.Diagnostics() {
		if d.Kind == diag.DuplicateSymbol {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAnalyze_VersionIncrementsAcrossReanalysis(t *testing.T) {
	src := `dml 1.4; device foo;`
	f1 := analysis.Analyze("a.dml", src, 0)
	f2 := analysis.Analyze("a.dml", src, f1.Version)
	assert.Equal(t, int32(2), f2.Version)
}

func TestAnalyze_ScopeAtPositionFindsInnermost(t *testing.T) {
	src := `dml 1.4;
device foo {
    bank b {
        param x = 1;
    }
}`
	f := analysis.Analyze("a.dml", src, 0)
	// Position of `x` inside bank b's param line (zero-indexed line 3).
	sc := f.ScopeAt(span.Position{Line: 3, Column: 14})
	require.NotNil(t, sc)
	assert.Equal(t, "b", sc.Name)
}

func TestAnalyze_CollectsImports(t *testing.T) {
	src := `dml 1.4;
import "utility.dml";
device foo;`
	f := analysis.Analyze("a.dml", src, 0)
	assert.Equal(t, []string{"utility.dml"}, f.Imports())
	assert.Equal(t, "1.4", f.DMLVersion())
}
