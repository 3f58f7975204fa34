package lexer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenghaitao/dml-language-server/internal/lexer"
	"github.com/fenghaitao/dml-language-server/internal/token"
)

func kinds(tokens []token.Token) []token.Kind {
	out := make([]token.Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestTokenize_Basic(t *testing.T) {
	toks := lexer.Tokenize(`dml 1.4;`, "a.dml")
	require.Len(t, toks, 4) // dml, 1.4, ;, eof
	assert.Equal(t, token.Keyword, toks[0].Kind)
	assert.Equal(t, "dml", toks[0].Text)
	assert.Equal(t, token.FloatLiteral, toks[1].Kind)
	assert.Equal(t, "1.4", toks[1].Text)
	assert.Equal(t, token.Semicolon, toks[2].Kind)
	assert.Equal(t, token.EOF, toks[3].Kind)
}

func TestTokenize_OperatorLongestMatchFirst(t *testing.T) {
	toks := lexer.Tokenize(`a <<= b >>= c << d >> e < f`, "a.dml")
	got := kinds(toks)
	assert.Contains(t, got, token.OpShlAssign)
	assert.Contains(t, got, token.OpShrAssign)
	assert.Contains(t, got, token.OpShl)
	assert.Contains(t, got, token.OpShr)
	assert.Contains(t, got, token.OpLt)
}

func TestTokenize_CommentsAreTrivia(t *testing.T) {
	toks := lexer.Tokenize("// a comment\nmethod /* inline */ foo();", "a.dml")
	for _, tk := range toks {
		assert.NotContains(t, tk.Text, "comment")
		assert.NotContains(t, tk.Text, "inline")
	}
}

func TestTokenize_StringAndCharEscapes(t *testing.T) {
	toks := lexer.Tokenize(`"a\n\"b" 'x' '\''`, "a.dml")
	require.GreaterOrEqual(t, len(toks), 3)
	assert.Equal(t, token.StringLiteral, toks[0].Kind)
	assert.Equal(t, `"a\n\"b"`, toks[0].Text)
	assert.Equal(t, token.CharLiteral, toks[1].Kind)
	assert.Equal(t, token.CharLiteral, toks[2].Kind)
	assert.Equal(t, `'\''`, toks[2].Text)
}

func TestTokenize_HexAndFloatNumbers(t *testing.T) {
	toks := lexer.Tokenize(`0xFF 3.14 2.5e10 10u 1.0f`, "a.dml")
	assert.Equal(t, token.IntLiteral, toks[0].Kind)
	assert.Equal(t, token.FloatLiteral, toks[1].Kind)
	assert.Equal(t, token.FloatLiteral, toks[2].Kind)
	assert.Equal(t, token.IntLiteral, toks[3].Kind)
	assert.Equal(t, token.FloatLiteral, toks[4].Kind)
}

func TestTokenize_CBlockVerbatim(t *testing.T) {
	src := `%{ int x = 1; %}`
	toks := lexer.Tokenize(src, "a.dml")
	require.Equal(t, token.CBlock, toks[0].Kind)
	assert.Equal(t, src, toks[0].Text)
}

func TestTokenize_HashDirectives(t *testing.T) {
	toks := lexer.Tokenize(`#if (x) #else #foreach y in z #select a where b #? c #: d`, "a.dml")
	got := kinds(toks)
	assert.Contains(t, got, token.HashIf)
	assert.Contains(t, got, token.HashElse)
	assert.Contains(t, got, token.HashForeach)
	assert.Contains(t, got, token.HashSelect)
	assert.Contains(t, got, token.HashQuestion)
	assert.Contains(t, got, token.HashColon)
}

func TestTokenize_BareHashIsPunctuation(t *testing.T) {
	toks := lexer.Tokenize(`# x`, "a.dml")
	assert.Equal(t, token.Hash, toks[0].Kind)
}

func TestTokenize_InvalidCharacterDoesNotAbort(t *testing.T) {
	toks := lexer.Tokenize("a `  b", "a.dml")
	got := kinds(toks)
	assert.Contains(t, got, token.Invalid)
	assert.Equal(t, token.EOF, toks[len(toks)-1].Kind)
	// b is still reachable after the invalid character.
	found := false
	for _, tk := range toks {
		if tk.Kind == token.Ident && tk.Text == "b" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTokenize_EndsWithEOF(t *testing.T) {
	toks := lexer.Tokenize("", "a.dml")
	require.Len(t, toks, 1)
	assert.Equal(t, token.EOF, toks[0].Kind)
}

// TestTokenize_MonotonicPositions covers P2 of spec.md §8: token positions
// are monotonically non-decreasing.
func TestTokenize_MonotonicPositions(t *testing.T) {
	src := "dml 1.4;\ndevice foo {\n  param x = 1;\n}\n"
	toks := lexer.Tokenize(src, "a.dml")
	for i := 1; i < len(toks); i++ {
		prevEnd := toks[i-1].Span.Range.End
		curStart := toks[i].Span.Range.Start
		assert.False(t, curStart.Before(prevEnd), "token %d starts before previous token ends", i)
	}
}

// TestTokenize_RoundTrip covers P3: detokenizing non-trivia tokens and
// trivia together reproduces the source.
func TestTokenize_RoundTrip(t *testing.T) {
	src := "dml 1.4;\ndevice foo { param x = 1; }\n"
	toks := lexer.Tokenize(src, "a.dml")
	var sb strings.Builder
	for _, tk := range toks {
		sb.WriteString(tk.LeadingTrivia)
		sb.WriteString(tk.Text)
	}
	assert.Equal(t, src, sb.String())
}
