// Package lexer turns DML source text into a token stream.
//
// Tokenize is a single, deterministic pass: it never backtracks more than
// two characters, except for multi-character operators, which are matched
// longest-first. Invalid characters are emitted as token.Invalid rather
// than aborting the scan — it is the parser's job to turn those into
// diagnostics (spec.md §4.A).
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fenghaitao/dml-language-server/internal/span"
	"github.com/fenghaitao/dml-language-server/internal/token"
)

// operators lists multi-character operator spellings in longest-match-first
// order, per spec.md §4.A. Single-character fallbacks are handled after this
// table is exhausted.
var operators = []struct {
	text string
	kind token.Kind
}{
	// Three characters.
	{"<<=", token.OpShlAssign},
	{">>=", token.OpShrAssign},
	// Two characters.
	{"==", token.OpEq},
	{"!=", token.OpNe},
	{"<=", token.OpLe},
	{">=", token.OpGe},
	{"<<", token.OpShl},
	{">>", token.OpShr},
	{"++", token.OpPlusPlus},
	{"--", token.OpMinusMinus},
	{"->", token.OpArrow},
	{"::", token.OpScope},
	{"&&", token.OpAndAnd},
	{"||", token.OpOrOr},
	{"+=", token.OpAddAssign},
	{"-=", token.OpSubAssign},
	{"*=", token.OpMulAssign},
	{"/=", token.OpDivAssign},
	{"%=", token.OpModAssign},
	{"&=", token.OpAndAssign},
	{"|=", token.OpOrAssign},
	{"^=", token.OpXorAssign},
}

var singleCharKinds = map[byte]token.Kind{
	'+': token.OpPlus, '-': token.OpMinus, '*': token.OpStar, '/': token.OpSlash,
	'%': token.OpPercent, '=': token.OpAssign, '<': token.OpLt, '>': token.OpGt,
	'!': token.OpNot, '&': token.OpAnd, '|': token.OpOr, '^': token.OpXor,
	'~': token.OpTilde, '?': token.OpQuestion, ':': token.OpColon,
	'(': token.LParen, ')': token.RParen, '{': token.LBrace, '}': token.RBrace,
	'[': token.LBracket, ']': token.RBracket, ',': token.Comma, ';': token.Semicolon,
	'.': token.Dot, '@': token.At, '$': token.Dollar, '#': token.Hash,
}

// hashDirectives is the fixed set of preprocessor-style directive spellings;
// any other "#xxx" lexes as Hash followed by an identifier.
var hashDirectives = map[string]token.Kind{
	"#if":      token.HashIf,
	"#else":    token.HashElse,
	"#foreach": token.HashForeach,
	"#select":  token.HashSelect,
	"#?":       token.HashQuestion,
	"#:":       token.HashColon,
}

type lexer struct {
	src   string
	file  string
	pos   int // byte offset
	line  int // zero-indexed
	col   int // zero-indexed, in runes
}

// Tokenize scans source into a token stream ending with an EOF token.
// Whitespace and comments are consumed as trivia attached to the
// surrounding tokens; they never appear as tokens themselves.
func Tokenize(source, file string) []token.Token {
	l := &lexer{src: source, file: file}
	var tokens []token.Token
	for {
		leading := l.skipTrivia()
		start := l.position()
		if l.pos >= len(l.src) {
			tokens = append(tokens, token.Token{
				Kind:          token.EOF,
				Span:          span.NewSpan(file, span.Range{Start: start, End: start}),
				LeadingTrivia: leading,
			})
			break
		}

		tok := l.scanOne()
		tok.Span.File = file
		tok.LeadingTrivia = leading
		tokens = append(tokens, tok)
	}
	attachTrailingTrivia(tokens)
	return tokens
}

// attachTrailingTrivia copies each token's leading trivia into the previous
// token's TrailingTrivia slot, so callers that want "what comes right after
// token N" do not need to peek ahead.
func attachTrailingTrivia(tokens []token.Token) {
	for i := 1; i < len(tokens); i++ {
		tokens[i-1].TrailingTrivia = tokens[i].LeadingTrivia
	}
}

func (l *lexer) position() span.Position {
	return span.Position{Line: l.line, Column: l.col}
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekByteAt(offset int) byte {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return b
}

// skipTrivia consumes whitespace and both comment forms, returning the
// consumed text verbatim so it can be preserved for round-tripping (P3).
func (l *lexer) skipTrivia() string {
	start := l.pos
	for l.pos < len(l.src) {
		b := l.peekByte()
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			l.advance()
		case b == '/' && l.peekByteAt(1) == '/':
			for l.pos < len(l.src) && l.peekByte() != '\n' {
				l.advance()
			}
		case b == '/' && l.peekByteAt(1) == '*':
			l.advance()
			l.advance()
			for l.pos < len(l.src) && !(l.peekByte() == '*' && l.peekByteAt(1) == '/') {
				l.advance()
			}
			if l.pos < len(l.src) {
				l.advance()
				l.advance()
			}
		default:
			return l.src[start:l.pos]
		}
	}
	return l.src[start:l.pos]
}

func (l *lexer) scanOne() token.Token {
	start := l.position()
	b := l.peekByte()

	switch {
	case isIdentStart(b):
		return l.scanIdent(start)
	case isDigit(b):
		return l.scanNumber(start)
	case b == '"':
		return l.scanString(start)
	case b == '\'':
		return l.scanChar(start)
	case b == '%' && l.peekByteAt(1) == '{':
		return l.scanCBlock(start)
	case b == '#':
		return l.scanHash(start)
	}

	if tok, ok := l.scanOperator(start); ok {
		return tok
	}

	// Invalid character: consume one rune, never abort the scan.
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	if size == 0 {
		size = 1
	}
	text := l.src[l.pos : l.pos+size]
	for i := 0; i < size; i++ {
		l.advance()
	}
	_ = r
	return token.Token{Kind: token.Invalid, Text: text, Span: span.Span{Range: span.NewRange(start, l.position())}}
}

func (l *lexer) scanOperator(start span.Position) (token.Token, bool) {
	rest := l.src[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			for range op.text {
				l.advance()
			}
			return token.Token{Kind: op.kind, Text: op.text, Span: span.Span{Range: span.NewRange(start, l.position())}}, true
		}
	}
	if kind, ok := singleCharKinds[l.peekByte()]; ok {
		text := string(l.advance())
		return token.Token{Kind: kind, Text: text, Span: span.Span{Range: span.NewRange(start, l.position())}}, true
	}
	return token.Token{}, false
}

func (l *lexer) scanIdent(start span.Position) token.Token {
	s := l.pos
	for l.pos < len(l.src) && isIdentCont(l.peekByte()) {
		l.advance()
	}
	text := l.src[s:l.pos]
	kind := token.Ident
	if token.Keywords[text] {
		kind = token.Keyword
	}
	return token.Token{Kind: kind, Text: text, Span: span.Span{Range: span.NewRange(start, l.position())}}
}

func (l *lexer) scanNumber(start span.Position) token.Token {
	s := l.pos
	isFloat := false

	if l.peekByte() == '0' && (l.peekByteAt(1) == 'x' || l.peekByteAt(1) == 'X') {
		l.advance()
		l.advance()
		for l.pos < len(l.src) && isHexDigit(l.peekByte()) {
			l.advance()
		}
	} else {
		for l.pos < len(l.src) && isDigit(l.peekByte()) {
			l.advance()
		}
		if l.peekByte() == '.' && isDigit(l.peekByteAt(1)) {
			isFloat = true
			l.advance()
			for l.pos < len(l.src) && isDigit(l.peekByte()) {
				l.advance()
			}
		}
		if l.peekByte() == 'e' || l.peekByte() == 'E' {
			save := l.pos
			saveLine, saveCol := l.line, l.col
			l.advance()
			if l.peekByte() == '+' || l.peekByte() == '-' {
				l.advance()
			}
			if isDigit(l.peekByte()) {
				isFloat = true
				for l.pos < len(l.src) && isDigit(l.peekByte()) {
					l.advance()
				}
			} else {
				// Not actually an exponent; rewind.
				l.pos, l.line, l.col = save, saveLine, saveCol
			}
		}
	}

	// Optional u/l/f suffix (case-insensitive, possibly repeated for u/l).
	for {
		b := l.peekByte()
		if b == 'u' || b == 'U' || b == 'l' || b == 'L' {
			l.advance()
			continue
		}
		if b == 'f' || b == 'F' {
			isFloat = true
			l.advance()
		}
		break
	}

	text := l.src[s:l.pos]
	kind := token.IntLiteral
	if isFloat {
		kind = token.FloatLiteral
	}
	return token.Token{Kind: kind, Text: text, Span: span.Span{Range: span.NewRange(start, l.position())}}
}

func (l *lexer) scanString(start span.Position) token.Token {
	s := l.pos
	l.advance() // opening quote
	for l.pos < len(l.src) {
		b := l.peekByte()
		if b == '\\' {
			l.advance()
			if l.pos < len(l.src) {
				l.advance()
			}
			continue
		}
		if b == '"' {
			l.advance()
			break
		}
		if b == '\n' {
			break // unterminated; stop at end of line rather than consuming the file
		}
		l.advance()
	}
	text := l.src[s:l.pos]
	return token.Token{Kind: token.StringLiteral, Text: text, Span: span.Span{Range: span.NewRange(start, l.position())}}
}

func (l *lexer) scanChar(start span.Position) token.Token {
	s := l.pos
	l.advance() // opening quote
	for l.pos < len(l.src) {
		b := l.peekByte()
		if b == '\\' {
			l.advance()
			if l.pos < len(l.src) {
				l.advance()
			}
			continue
		}
		if b == '\'' {
			l.advance()
			break
		}
		if b == '\n' {
			break
		}
		l.advance()
	}
	text := l.src[s:l.pos]
	return token.Token{Kind: token.CharLiteral, Text: text, Span: span.Span{Range: span.NewRange(start, l.position())}}
}

// scanCBlock consumes a %{ ... %} region verbatim, including its delimiters.
func (l *lexer) scanCBlock(start span.Position) token.Token {
	s := l.pos
	l.advance() // %
	l.advance() // {
	for l.pos < len(l.src) {
		if l.peekByte() == '%' && l.peekByteAt(1) == '}' {
			l.advance()
			l.advance()
			break
		}
		l.advance()
	}
	text := l.src[s:l.pos]
	return token.Token{Kind: token.CBlock, Text: text, Span: span.Span{Range: span.NewRange(start, l.position())}}
}

// scanHash recognizes the fixed preprocessor-directive set; '#' alone (or
// followed by anything else) lexes as plain punctuation.
func (l *lexer) scanHash(start span.Position) token.Token {
	for directive, kind := range hashDirectives {
		rest := directive[1:] // without leading '#'
		if strings.HasPrefix(l.src[l.pos+1:], rest) {
			// Guard #if/#else/#foreach/#select against matching a longer
			// identifier-like directive spelling (there are none today,
			// but keep the check honest: the next byte after the match
			// must not continue an identifier).
			end := l.pos + 1 + len(rest)
			if isIdentCont(byteAt(l.src, end)) && isIdentStart(directive[1]) {
				continue
			}
			for i := 0; i < len(directive); i++ {
				l.advance()
			}
			return token.Token{Kind: kind, Text: directive, Span: span.Span{Range: span.NewRange(start, l.position())}}
		}
	}
	text := string(l.advance())
	return token.Token{Kind: token.Hash, Text: text, Span: span.Span{Range: span.NewRange(start, l.position())}}
}

func byteAt(s string, i int) byte {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b >= utf8.RuneSelf && unicode.IsLetter(rune(b))
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
