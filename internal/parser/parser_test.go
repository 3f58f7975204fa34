package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenghaitao/dml-language-server/internal/ast"
	"github.com/fenghaitao/dml-language-server/internal/diag"
	"github.com/fenghaitao/dml-language-server/internal/lexer"
	"github.com/fenghaitao/dml-language-server/internal/parser"
)

func parse(t *testing.T, src string) ([]ast.Decl, *parser.Parser) {
	t.Helper()
	toks := lexer.Tokenize(src, "a.dml")
	p := parser.New("a.dml", toks)
	decls := p.Parse()
	return decls, p
}

func TestParse_MinimalDevice(t *testing.T) {
	decls, p := parse(t, `dml 1.4; device foo;`)
	require.Empty(t, p.Errors())
	require.Len(t, decls, 2)
	assert.IsType(t, &ast.DMLVersionDecl{}, decls[0])
	dev, ok := decls[1].(*ast.DeviceDecl)
	require.True(t, ok)
	assert.Equal(t, "foo", dev.Name)
	assert.Nil(t, dev.Body)
}

func TestParse_DeviceWithBody(t *testing.T) {
	src := `dml 1.4;
device foo {
    param desc = "a device";
    bank regs {
        register r0 size 4 @ 0x0 {
            method read() -> (uint32) {
                return 1;
            }
        }
    }
}`
	decls, p := parse(t, src)
	require.Empty(t, p.Errors())
	require.Len(t, decls, 2)
	dev := decls[1].(*ast.DeviceDecl)
	require.Len(t, dev.Body, 2)
	bank := dev.Body[1].(*ast.BankDecl)
	require.Len(t, bank.Members, 1)
	reg := bank.Members[0].(*ast.RegisterDecl)
	assert.Equal(t, "r0", reg.Name)
	require.Len(t, reg.Members, 1)
	m := reg.Members[0].(*ast.MethodDecl)
	assert.Equal(t, "read", m.Name)
	require.Len(t, m.Returns, 1)
	require.Len(t, m.Body, 1)
	ret := m.Body[0].(*ast.ReturnStmt)
	lit := ret.Value.(*ast.LiteralExpr)
	assert.Equal(t, ast.LitInt, lit.Kind)
}

func TestParse_TemplateWithIsClause(t *testing.T) {
	decls, p := parse(t, `template foo is (bar, baz) { param p default 1; }`)
	require.Empty(t, p.Errors())
	tmpl := decls[0].(*ast.TemplateDecl)
	assert.Equal(t, []string{"bar", "baz"}, tmpl.Parents)
	require.Len(t, tmpl.Members, 1)
	param := tmpl.Members[0].(*ast.ParameterDecl)
	assert.True(t, param.IsDefault)
}

func TestParse_FieldBitRange(t *testing.T) {
	decls, _ := parse(t, `field f @ [7:0];`)
	f := decls[0].(*ast.FieldDecl)
	hi := f.BitHigh.(*ast.LiteralExpr)
	lo := f.BitLow.(*ast.LiteralExpr)
	assert.Equal(t, "7", hi.Text)
	assert.Equal(t, "0", lo.Text)
}

// TestParse_BitSliceVsTernary covers tie-break (ii): a colon inside
// brackets is always a bit-slice range, never a ternary arm.
func TestParse_BitSliceVsTernary(t *testing.T) {
	decls, p := parse(t, `method m() { local uint32 x = y[7:0]; }`)
	require.Empty(t, p.Errors())
	md := decls[0].(*ast.MethodDecl)
	ds := md.Body[0].(*ast.DeclStmt)
	local := ds.Decl.(*ast.SessionDecl)
	slice := local.Value.(*ast.BitSliceExpr)
	assert.Equal(t, "7", slice.High.(*ast.LiteralExpr).Text)
	assert.Equal(t, "0", slice.Low.(*ast.LiteralExpr).Text)
}

func TestParse_TernaryExpr(t *testing.T) {
	decls, p := parse(t, `method m() { local uint32 x = a ? b : c; }`)
	require.Empty(t, p.Errors())
	md := decls[0].(*ast.MethodDecl)
	ds := md.Body[0].(*ast.DeclStmt)
	local := ds.Decl.(*ast.SessionDecl)
	tern := local.Value.(*ast.TernaryExpr)
	assert.IsType(t, &ast.IdentExpr{}, tern.Cond)
}

func TestParse_MethodModifierOrder(t *testing.T) {
	decls, p := parse(t, `inline method m() {}`)
	require.Empty(t, p.Errors())
	m := decls[0].(*ast.MethodDecl)
	assert.Equal(t, "inline", m.Modifiers.InlineOrShared)
	assert.False(t, m.Modifiers.OutOfOrder)
}

// TestParse_MethodModifierOutOfOrder covers tie-break (iii): modifiers in
// the wrong order are flagged but parsing continues.
func TestParse_MethodModifierOutOfOrder(t *testing.T) {
	decls, p := parse(t, `startup inline method m() {}`)
	require.NotEmpty(t, p.Errors())
	m := decls[0].(*ast.MethodDecl)
	assert.True(t, m.Modifiers.OutOfOrder)
	assert.Equal(t, "inline", m.Modifiers.InlineOrShared)
	assert.True(t, m.Modifiers.Startup)
}

func TestParse_PrecedenceLadder(t *testing.T) {
	decls, p := parse(t, `method m() { local uint32 x = 1 + 2 * 3; }`)
	require.Empty(t, p.Errors())
	md := decls[0].(*ast.MethodDecl)
	ds := md.Body[0].(*ast.DeclStmt)
	local := ds.Decl.(*ast.SessionDecl)
	add := local.Value.(*ast.BinaryExpr)
	assert.Equal(t, ast.BinAdd, add.Op)
	mul := add.Right.(*ast.BinaryExpr)
	assert.Equal(t, ast.BinMul, mul.Op)
}

// TestParse_ErrorRecoverySkipsToNextTopLevelDecl covers spec.md §4.B error
// recovery: a malformed declaration does not prevent later ones from
// parsing.
func TestParse_ErrorRecoverySkipsToNextTopLevelDecl(t *testing.T) {
	decls, p := parse(t, `dml 1.4; @#$% device foo;`)
	require.NotEmpty(t, p.Errors())
	for _, d := range p.Errors() {
		assert.Equal(t, diag.SyntaxError, d.Kind)
	}
	require.Len(t, decls, 2)
	assert.IsType(t, &ast.DeviceDecl{}, decls[1])
}

// TestParse_ErrorRecoveryWithinBlock covers recovery inside a body: a bad
// member does not swallow the rest of the block.
func TestParse_ErrorRecoveryWithinBlock(t *testing.T) {
	decls, p := parse(t, `device foo { @@@ param a = 1; param b = 2; }`)
	require.NotEmpty(t, p.Errors())
	dev := decls[0].(*ast.DeviceDecl)
	var params []*ast.ParameterDecl
	for _, d := range dev.Body {
		if pd, ok := d.(*ast.ParameterDecl); ok {
			params = append(params, pd)
		}
	}
	require.Len(t, params, 2)
	assert.Equal(t, "a", params[0].Name)
	assert.Equal(t, "b", params[1].Name)
}

func TestParse_FileStructureInvariant(t *testing.T) {
	_, p := parse(t, `device foo; dml 1.4;`)
	require.NotEmpty(t, p.Errors())
	found := false
	for _, d := range p.Errors() {
		if d.Kind == diag.SemanticError {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParse_ImportsAndVersion(t *testing.T) {
	_, p := parse(t, `dml 1.4; import "utility.dml"; import "io-memory.dml"; device foo;`)
	assert.Equal(t, "1.4", p.Version())
	assert.Equal(t, []string{"utility.dml", "io-memory.dml"}, p.Imports())
}

func TestParse_SwitchStatement(t *testing.T) {
	src := `method m() {
        switch (x) {
        case 1: log info: "one"; break;
        default: break;
        }
    }`
	decls, p := parse(t, src)
	require.Empty(t, p.Errors())
	md := decls[0].(*ast.MethodDecl)
	sw := md.Body[0].(*ast.SwitchStmt)
	require.Len(t, sw.Cases, 2)
	assert.False(t, sw.Cases[0].IsDefault)
	assert.True(t, sw.Cases[1].IsDefault)
}

func TestParse_HashIfStmt(t *testing.T) {
	src := `method m() {
        #if (true) {
            local uint32 x = 1;
        } #else {
            local uint32 x = 2;
        }
    }`
	decls, p := parse(t, src)
	require.Empty(t, p.Errors())
	md := decls[0].(*ast.MethodDecl)
	hi := md.Body[0].(*ast.HashIfStmt)
	assert.Len(t, hi.Then, 1)
	assert.Len(t, hi.Else, 1)
}

func TestParse_InlineCBlock(t *testing.T) {
	decls, p := parse(t, `method m() { %{ return 1; %} }`)
	require.Empty(t, p.Errors())
	md := decls[0].(*ast.MethodDecl)
	c := md.Body[0].(*ast.InlineCStmt)
	assert.Contains(t, c.Text, "return 1;")
}

func TestParse_SymbolsByProduct(t *testing.T) {
	_, p := parse(t, `dml 1.4; device foo { bank b { register r size 4 @ 0 {} } }`)
	var names []string
	for _, s := range p.Symbols() {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "foo")
	assert.Contains(t, names, "b")
	assert.Contains(t, names, "r")
}
