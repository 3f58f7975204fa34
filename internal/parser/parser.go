// Package parser implements a recursive-descent parser producing an
// internal/ast tree from a internal/token stream, with error recovery so
// that a malformed declaration never prevents the rest of the file from
// parsing (spec.md §4.B).
package parser

import (
	"fmt"

	"github.com/fenghaitao/dml-language-server/internal/ast"
	"github.com/fenghaitao/dml-language-server/internal/diag"
	"github.com/fenghaitao/dml-language-server/internal/scope"
	"github.com/fenghaitao/dml-language-server/internal/span"
	"github.com/fenghaitao/dml-language-server/internal/token"
)

// topLevelKeywords are the synchronization points for error recovery at
// file scope, per spec.md §4.B.
var topLevelKeywords = map[string]bool{
	"dml": true, "device": true, "template": true, "bank": true,
	"register": true, "field": true, "method": true, "parameter": true,
	"param": true, "import": true,
}

// methodModifierOrder is the mandated ordering of method modifiers
// (spec.md §4.B tie-break (iii), and the corresponding open question in
// §9: out-of-order modifiers are a syntax error but parsing continues).
var methodModifierOrder = []string{"inline", "shared", "independent", "startup", "memoized"}

// Parser holds the state of a single parse pass over one file's token
// stream. A Parser is single-use: construct one with New, call Parse
// once, then read Errors/Symbols/Imports/Version.
type Parser struct {
	file   string
	tokens []token.Token
	pos    int

	report    diag.Report
	symbols   []*scope.Symbol
	imports   []string
	version   string

	// braceDepth counts the '{' tokens consumed minus the '}' tokens, never
	// going below zero; recover() keeps its own depth counter and does not
	// read this field.
	braceDepth int
}

// New constructs a Parser over tokens from the given file.
func New(file string, tokens []token.Token) *Parser {
	return &Parser{file: file, tokens: tokens}
}

// Parse produces the list of top-level declarations for the file. It never
// returns an error: every failure becomes a diag.Diagnostic recorded in
// Errors(), and parsing always continues past it.
func (p *Parser) Parse() []ast.Decl {
	var decls []ast.Decl
	for !p.atEOF() {
		if p.cur().Kind == token.Semicolon {
			// Stray top-level semicolons are harmless; skip them.
			p.advance()
			continue
		}
		decl := p.parseTopLevelDecl()
		if decl != nil {
			decls = append(decls, decl)
		}
	}
	p.validateFileStructure(decls)
	return decls
}

// Errors returns the syntax/semantic diagnostics accumulated while
// parsing.
func (p *Parser) Errors() []diag.Diagnostic { return p.report.Diagnostics() }

// Symbols returns the flat, unscoped symbol list the parser collects as a
// by-product while walking top-level and member declarations (spec.md
// §4.B). The authoritative scoped symbol table is built later by
// internal/analysis.
func (p *Parser) Symbols() []*scope.Symbol { return p.symbols }

// Imports returns the module paths named by import declarations, in
// source order.
func (p *Parser) Imports() []string { return p.imports }

// Version returns the declared DML version literal, or "" if none was
// found.
func (p *Parser) Version() string { return p.version }

// validateFileStructure checks that the DML-version declaration is the
// first declaration of the file and the device declaration the second,
// where import declarations ahead of the device are not counted. Violations
// are reported as SemanticErrors that do not abort (spec.md §4.C).
func (p *Parser) validateFileStructure(decls []ast.Decl) {
	imports := 0
	for i, d := range decls {
		switch d.(type) {
		case *ast.ImportDecl:
			imports++
		case *ast.DMLVersionDecl:
			if i != 0 {
				p.report.Addf(d.Span(), diag.SemanticError,
					"dml version declaration must be the first statement in file")
			}
		case *ast.DeviceDecl:
			if i-imports != 1 {
				p.report.Addf(d.Span(), diag.SemanticError,
					"Device declaration must be second statement in file")
			}
		}
	}
}

// ------------------------------------------------------------- low level

func (p *Parser) cur() token.Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return p.tokens[len(p.tokens)-1] // EOF
}

func (p *Parser) peek(offset int) token.Token {
	idx := p.pos + offset
	if idx < 0 || idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}

func (p *Parser) atEOF() bool { return p.cur().Kind == token.EOF }

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	switch t.Kind {
	case token.LBrace:
		p.braceDepth++
	case token.RBrace:
		if p.braceDepth > 0 {
			p.braceDepth--
		}
	}
	return t
}

func (p *Parser) span(start span.Position) span.Span {
	return span.Span{File: p.file, Range: span.NewRange(start, p.cur().Span.Range.Start)}
}

func (p *Parser) errorf(tok token.Token, format string, args ...any) {
	p.report.Addf(tok.Span, diag.SyntaxError, fmt.Sprintf(format, args...))
}

// expect consumes the current token if it has kind k, else records a
// syntax error and does not advance (so recovery can decide what to do
// next).
func (p *Parser) expect(k token.Kind) (token.Token, bool) {
	if p.cur().Kind == k {
		return p.advance(), true
	}
	p.errorf(p.cur(), "expected %s, found %q", k, p.cur().Text)
	return token.Token{}, false
}

func (p *Parser) expectKeyword(word string) bool {
	if p.cur().IsKeyword(word) {
		p.advance()
		return true
	}
	p.errorf(p.cur(), "expected keyword %q, found %q", word, p.cur().Text)
	return false
}

// recover implements spec.md §4.B "Error recovery": skip tokens until the
// next synchronization point — a ';' already consumed, or the next
// top-level keyword — tracking brace depth so a spurious '}' does not
// unwind past the enclosing block.
func (p *Parser) recover() {
	depth := 0
	for !p.atEOF() {
		switch p.cur().Kind {
		case token.LBrace:
			depth++
			p.advance()
			continue
		case token.RBrace:
			if depth == 0 {
				return // let the caller's own '}' handling see this
			}
			depth--
			p.advance()
			continue
		case token.Semicolon:
			p.advance()
			return
		case token.Keyword:
			if depth == 0 && topLevelKeywords[p.cur().Text] {
				return
			}
		}
		p.advance()
	}
}

func (p *Parser) addSymbol(name string, kind scope.Kind, sp span.Span) {
	p.symbols = append(p.symbols, &scope.Symbol{Name: name, Kind: kind, Defined: sp})
}

// -------------------------------------------------------- top level decls

func (p *Parser) parseTopLevelDecl() ast.Decl {
	tok := p.cur()
	if tok.Kind != token.Keyword {
		p.errorf(tok, "unexpected token %q at top level", tok.Text)
		p.advance() // one-token skip, per spec.md §4.B
		return nil
	}

	switch tok.Text {
	case "dml":
		return p.parseDMLVersion()
	case "import":
		return p.parseImport()
	case "device":
		return p.parseDevice()
	case "template":
		return p.parseTemplate()
	default:
		return p.parseMemberDecl()
	}
}

// parseMemberDecl parses any object-style declaration that may appear
// inside a body (bank/register/field/method/etc.), per spec.md §4.B's
// uniform shape: `KEYWORD name [attrs] ('{' body '}' | ';')`.
func (p *Parser) parseMemberDecl() ast.Decl {
	tok := p.cur()
	if tok.Kind != token.Keyword {
		p.errorf(tok, "unexpected token %q", tok.Text)
		p.advance()
		return &ast.BadDecl{NodeSpan: ast.NodeSpan{Sp: tok.Span}}
	}

	switch tok.Text {
	case "dml":
		return p.parseDMLVersion()
	case "import":
		return p.parseImport()
	case "device":
		return p.parseDevice()
	case "template":
		return p.parseTemplate()
	case "bank":
		return p.parseBank()
	case "register":
		return p.parseRegister()
	case "field":
		return p.parseField()
	case "method", "inline", "shared", "independent", "startup", "memoized":
		return p.parseMethod()
	case "param", "parameter":
		return p.parseParameter()
	case "attribute":
		return p.parseNamedContainer(tok, "attribute", scope.KindAttribute, func(n string, t []string, m []ast.Decl, sp span.Span) ast.Decl {
			return &ast.AttributeDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: n, Templates: t, Members: m}
		})
	case "connect":
		return p.parseNamedContainer(tok, "connect", scope.KindConnect, func(n string, t []string, m []ast.Decl, sp span.Span) ast.Decl {
			return &ast.ConnectDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: n, Templates: t, Members: m}
		})
	case "interface":
		return p.parseInterface()
	case "port":
		return p.parseNamedContainer(tok, "port", scope.KindPort, func(n string, t []string, m []ast.Decl, sp span.Span) ast.Decl {
			return &ast.PortDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: n, Templates: t, Members: m}
		})
	case "event":
		return p.parseNamedContainer(tok, "event", scope.KindEvent, func(n string, t []string, m []ast.Decl, sp span.Span) ast.Decl {
			return &ast.EventDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: n, Templates: t, Members: m}
		})
	case "group":
		return p.parseNamedContainer(tok, "group", scope.KindGroup, func(n string, t []string, m []ast.Decl, sp span.Span) ast.Decl {
			return &ast.GroupDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: n, Templates: t, Members: m}
		})
	case "subdevice":
		return p.parseNamedContainer(tok, "subdevice", scope.KindMisc, func(n string, t []string, m []ast.Decl, sp span.Span) ast.Decl {
			return &ast.SubdeviceDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: n, Templates: t, Members: m}
		})
	case "loggroup":
		return p.parseLogGroup()
	case "data":
		return p.parseData()
	case "session":
		return p.parseSession()
	case "saved":
		return p.parseSaved()
	case "constant":
		return p.parseConstant()
	case "typedef":
		return p.parseTypedef()
	case "struct":
		return p.parseStruct()
	case "union":
		return p.parseUnion()
	case "enum":
		return p.parseEnum()
	case "extern":
		return p.parseExtern()
	default:
		p.errorf(tok, "unexpected keyword %q in declaration position", tok.Text)
		p.advance()
		p.recover()
		return &ast.BadDecl{NodeSpan: ast.NodeSpan{Sp: tok.Span}}
	}
}

func (p *Parser) parseDMLVersion() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance() // 'dml'
	version := ""
	if p.cur().Kind == token.FloatLiteral || p.cur().Kind == token.IntLiteral {
		version = p.advance().Text
	} else {
		p.errorf(p.cur(), "expected version literal after 'dml'")
	}
	p.expect(token.Semicolon)
	if p.version == "" {
		p.version = version
	}
	return &ast.DMLVersionDecl{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Version: version}
}

func (p *Parser) parseImport() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance() // 'import'
	path := ""
	if p.cur().Kind == token.StringLiteral {
		path = unquote(p.advance().Text)
	} else {
		p.errorf(p.cur(), "expected string literal after 'import'")
	}
	p.expect(token.Semicolon)
	p.imports = append(p.imports, path)
	return &ast.ImportDecl{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Path: path}
}

// parseIsClause parses an optional `is (name, name, ...)` clause.
func (p *Parser) parseIsClause() []string {
	if !p.cur().IsKeyword("is") {
		return nil
	}
	p.advance()
	var names []string
	if _, ok := p.expect(token.LParen); !ok {
		return names
	}
	for p.cur().Kind != token.RParen && !p.atEOF() {
		if p.cur().Kind == token.Ident || p.cur().Kind == token.Keyword {
			names = append(names, p.advance().Text)
		} else {
			p.errorf(p.cur(), "expected template name")
			break
		}
		if p.cur().Kind == token.Comma {
			p.advance()
		}
	}
	p.expect(token.RParen)
	return names
}

func (p *Parser) parseDevice() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance() // 'device'
	name := p.expectIdentLike()

	// Tie-break (i): `device name;` (no body) is a valid DML 1.4 reference.
	if p.cur().Kind == token.Semicolon {
		p.advance()
		sp := p.span(start)
		p.addSymbol(name, scope.KindDevice, sp)
		return &ast.DeviceDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name}
	}

	templates := p.parseIsClause()
	var body []ast.Decl
	if _, ok := p.expect(token.LBrace); ok {
		body = p.parseMembersUntilRBrace()
		p.expect(token.RBrace)
	}
	sp := p.span(start)
	p.addSymbol(name, scope.KindDevice, sp)
	return &ast.DeviceDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Templates: templates, Body: body}
}

func (p *Parser) parseTemplate() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance() // 'template'
	name := p.expectIdentLike()
	parents := p.parseIsClause()

	var params []*ast.Param
	if p.cur().Kind == token.LParen {
		params = p.parseParamList()
	}

	var members []ast.Decl
	if p.cur().Kind == token.Semicolon {
		p.advance()
	} else if _, ok := p.expect(token.LBrace); ok {
		members = p.parseMembersUntilRBrace()
		p.expect(token.RBrace)
	}
	sp := p.span(start)
	p.addSymbol(name, scope.KindTemplate, sp)
	return &ast.TemplateDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Parents: parents, Params: params, Members: members}
}

func (p *Parser) parseMembersUntilRBrace() []ast.Decl {
	var decls []ast.Decl
	for p.cur().Kind != token.RBrace && !p.atEOF() {
		if p.cur().Kind == token.Semicolon {
			p.advance()
			continue
		}
		d := p.parseMemberDecl()
		if d != nil {
			decls = append(decls, d)
		}
	}
	return decls
}

func (p *Parser) parseBank() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	name := p.expectIdentLike()
	var members []ast.Decl
	if p.cur().Kind == token.Semicolon {
		p.advance()
	} else if _, ok := p.expect(token.LBrace); ok {
		members = p.parseMembersUntilRBrace()
		p.expect(token.RBrace)
	}
	sp := p.span(start)
	p.addSymbol(name, scope.KindBank, sp)
	return &ast.BankDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Members: members}
}

// parseRegister handles `register name [size] @ offset is (templates) { }`
// with the three optional clauses permitted in any order, per spec.md
// §4.B.
func (p *Parser) parseRegister() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	name := p.expectIdentLike()

	var size, offset ast.Expr
	var templates []string
	for i := 0; i < 4; i++ { // each clause appears at most once; bound the loop defensively
		switch {
		case p.cur().Kind == token.LBracket && size == nil:
			p.advance()
			size = p.parseExpr()
			p.expect(token.RBracket)
		case p.cur().Kind == token.Ident && p.cur().Text == "size" && size == nil:
			p.advance()
			size = p.parseExpr()
		case p.cur().Kind == token.At && offset == nil:
			p.advance()
			offset = p.parseExpr()
		case p.cur().IsKeyword("is") && templates == nil:
			templates = p.parseIsClause()
		default:
			i = 4 // nothing more recognized; stop looping
		}
	}

	var members []ast.Decl
	if p.cur().Kind == token.Semicolon {
		p.advance()
	} else if _, ok := p.expect(token.LBrace); ok {
		members = p.parseMembersUntilRBrace()
		p.expect(token.RBrace)
	}
	sp := p.span(start)
	p.addSymbol(name, scope.KindRegister, sp)
	return &ast.RegisterDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Size: size, Offset: offset, Templates: templates, Members: members}
}

// parseField handles `field name @ [hi:lo] { }`.
func (p *Parser) parseField() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	name := p.expectIdentLike()

	var hi, lo ast.Expr
	if p.cur().Kind == token.At {
		p.advance()
		if _, ok := p.expect(token.LBracket); ok {
			hi = p.parseExpr()
			if p.cur().Kind == token.OpColon {
				p.advance()
				lo = p.parseExpr()
			} else {
				lo = hi
			}
			p.expect(token.RBracket)
		}
	}

	var members []ast.Decl
	if p.cur().Kind == token.Semicolon {
		p.advance()
	} else if _, ok := p.expect(token.LBrace); ok {
		members = p.parseMembersUntilRBrace()
		p.expect(token.RBrace)
	}
	sp := p.span(start)
	p.addSymbol(name, scope.KindField, sp)
	return &ast.FieldDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, BitHigh: hi, BitLow: lo, Members: members}
}

// parseMethod handles the full method grammar: ordered modifiers, params,
// optional `-> (type)`, optional `throws`, optional `default`, then a
// block body or terminating semicolon for a declaration-only method
// (spec.md §4.B).
func (p *Parser) parseMethod() ast.Decl {
	start := p.cur().Span.Range.Start
	mods := p.parseMethodModifiers()
	p.expectKeyword("method")
	name := p.expectIdentLike()
	params := p.parseParamList()

	var returns []ast.Expr
	if p.cur().Kind == token.OpArrow {
		p.advance()
		if _, ok := p.expect(token.LParen); ok {
			for p.cur().Kind != token.RParen && !p.atEOF() {
				returns = append(returns, p.parseTypeExpr())
				if p.cur().Kind == token.Comma {
					p.advance()
				}
			}
			p.expect(token.RParen)
		}
	}

	throws := false
	if p.cur().IsKeyword("throws") {
		p.advance()
		throws = true
	}
	isDefault := false
	if p.cur().IsKeyword("default") {
		p.advance()
		isDefault = true
	}

	var body []ast.Stmt
	if p.cur().Kind == token.Semicolon {
		p.advance() // abstract / declaration-only method
	} else if _, ok := p.expect(token.LBrace); ok {
		body = p.parseStmtsUntilRBrace()
		p.expect(token.RBrace)
	}

	sp := p.span(start)
	p.addSymbol(name, scope.KindMethod, sp)
	return &ast.MethodDecl{
		NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Modifiers: mods,
		Params: params, Returns: returns, Throws: throws, IsDefault: isDefault, Body: body,
	}
}

// parseMethodModifiers consumes the ordered modifier prefix before
// 'method'. Out-of-order modifiers are a syntax error but parsing still
// continues (tie-break (iii)).
func (p *Parser) parseMethodModifiers() ast.MethodModifiers {
	var mods ast.MethodModifiers
	lastRank := -1
	for {
		tok := p.cur()
		if tok.Kind != token.Keyword {
			break
		}
		rank := -1
		for i, m := range methodModifierOrder {
			if tok.Text == m {
				rank = i
				break
			}
		}
		if rank == -1 {
			break // not a modifier keyword; presumably 'method' itself
		}
		if rank <= lastRank || (tok.Text == "shared" && mods.InlineOrShared != "") {
			mods.OutOfOrder = true
			p.errorf(tok, "method modifier %q is out of order", tok.Text)
		}
		lastRank = rank
		switch tok.Text {
		case "inline", "shared":
			mods.InlineOrShared = tok.Text
		case "independent":
			mods.Independent = true
		case "startup":
			mods.Startup = true
		case "memoized":
			mods.Memoized = true
		}
		p.advance()
	}
	return mods
}

func (p *Parser) parseParamList() []*ast.Param {
	var params []*ast.Param
	if _, ok := p.expect(token.LParen); !ok {
		return params
	}
	for p.cur().Kind != token.RParen && !p.atEOF() {
		start := p.cur().Span.Range.Start
		name := p.expectIdentLike()
		var typ ast.Expr
		if p.cur().Kind == token.OpColon {
			p.advance()
			typ = p.parseTypeExpr()
		}
		var def ast.Expr
		if p.cur().Kind == token.OpAssign {
			p.advance()
			def = p.parseAssignmentExpr()
		}
		params = append(params, &ast.Param{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Name: name, Type: typ, Default: def})
		if p.cur().Kind == token.Comma {
			p.advance()
		}
	}
	p.expect(token.RParen)
	return params
}

func (p *Parser) parseParameter() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance() // 'param'/'parameter'
	name := p.expectIdentLike()

	var typ ast.Expr
	if p.cur().Kind == token.OpColon {
		p.advance()
		typ = p.parseTypeExpr()
	}

	var value ast.Expr
	isDefault := false
	if p.cur().IsKeyword("default") {
		p.advance()
		isDefault = true
		value = p.parseExpr()
	} else if p.cur().Kind == token.OpAssign {
		p.advance()
		value = p.parseExpr()
	}
	p.expect(token.Semicolon)
	sp := p.span(start)
	p.addSymbol(name, scope.KindParameter, sp)
	return &ast.ParameterDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Type: typ, Value: value, IsDefault: isDefault}
}

// parseNamedContainer handles the common `KEYWORD name is(templates) { }`
// shape shared by attribute/connect/port/event/group/subdevice.
func (p *Parser) parseNamedContainer(kwTok token.Token, keyword string, kind scope.Kind, build func(name string, templates []string, members []ast.Decl, sp span.Span) ast.Decl) ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance() // keyword
	name := p.expectIdentLike()
	templates := p.parseIsClause()
	var members []ast.Decl
	if p.cur().Kind == token.Semicolon {
		p.advance()
	} else if _, ok := p.expect(token.LBrace); ok {
		members = p.parseMembersUntilRBrace()
		p.expect(token.RBrace)
	}
	sp := p.span(start)
	p.addSymbol(name, kind, sp)
	return build(name, templates, members, sp)
}

func (p *Parser) parseInterface() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	name := p.expectIdentLike()
	var members []ast.Decl
	if p.cur().Kind == token.Semicolon {
		p.advance()
	} else if _, ok := p.expect(token.LBrace); ok {
		members = p.parseMembersUntilRBrace()
		p.expect(token.RBrace)
	}
	sp := p.span(start)
	p.addSymbol(name, scope.KindInterface, sp)
	return &ast.InterfaceDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Members: members}
}

func (p *Parser) parseLogGroup() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	name := p.expectIdentLike()
	p.expect(token.Semicolon)
	sp := p.span(start)
	p.addSymbol(name, scope.KindMisc, sp)
	return &ast.LogGroupDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name}
}

func (p *Parser) parseData() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	typ := p.parseTypeExpr()
	name := p.expectIdentLike()
	p.expect(token.Semicolon)
	sp := p.span(start)
	p.addSymbol(name, scope.KindMisc, sp)
	return &ast.DataDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Type: typ}
}

func (p *Parser) parseSession() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	typ := p.parseTypeExpr()
	name := p.expectIdentLike()
	var value ast.Expr
	if p.cur().Kind == token.OpAssign {
		p.advance()
		value = p.parseExpr()
	}
	p.expect(token.Semicolon)
	sp := p.span(start)
	p.addSymbol(name, scope.KindMisc, sp)
	return &ast.SessionDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Type: typ, Value: value}
}

func (p *Parser) parseSaved() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	typ := p.parseTypeExpr()
	name := p.expectIdentLike()
	var value ast.Expr
	if p.cur().Kind == token.OpAssign {
		p.advance()
		value = p.parseExpr()
	}
	p.expect(token.Semicolon)
	sp := p.span(start)
	p.addSymbol(name, scope.KindMisc, sp)
	return &ast.SavedDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Type: typ, Value: value}
}

func (p *Parser) parseConstant() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	name := p.expectIdentLike()
	var value ast.Expr
	if p.cur().Kind == token.OpAssign {
		p.advance()
		value = p.parseExpr()
	}
	p.expect(token.Semicolon)
	sp := p.span(start)
	p.addSymbol(name, scope.KindConstant, sp)
	return &ast.ConstantDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Value: value}
}

func (p *Parser) parseTypedef() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	typ := p.parseTypeExpr()
	name := p.expectIdentLike()
	p.expect(token.Semicolon)
	sp := p.span(start)
	p.addSymbol(name, scope.KindTypedef, sp)
	return &ast.TypedefDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Type: typ}
}

func (p *Parser) parseFieldList() []*ast.Param {
	var fields []*ast.Param
	if _, ok := p.expect(token.LBrace); !ok {
		return fields
	}
	for p.cur().Kind != token.RBrace && !p.atEOF() {
		start := p.cur().Span.Range.Start
		typ := p.parseTypeExpr()
		name := p.expectIdentLike()
		p.expect(token.Semicolon)
		fields = append(fields, &ast.Param{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Name: name, Type: typ})
	}
	p.expect(token.RBrace)
	return fields
}

func (p *Parser) parseStruct() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	name := p.expectIdentLike()
	fields := p.parseFieldList()
	sp := p.span(start)
	p.addSymbol(name, scope.KindStruct, sp)
	return &ast.StructDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Fields: fields}
}

func (p *Parser) parseUnion() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	name := p.expectIdentLike()
	fields := p.parseFieldList()
	sp := p.span(start)
	p.addSymbol(name, scope.KindStruct, sp)
	return &ast.UnionDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Fields: fields}
}

func (p *Parser) parseEnum() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	name := p.expectIdentLike()
	var members []string
	if _, ok := p.expect(token.LBrace); ok {
		for p.cur().Kind != token.RBrace && !p.atEOF() {
			members = append(members, p.expectIdentLike())
			if p.cur().Kind == token.Comma {
				p.advance()
			}
		}
		p.expect(token.RBrace)
	}
	p.expect(token.Semicolon)
	sp := p.span(start)
	p.addSymbol(name, scope.KindMisc, sp)
	return &ast.EnumDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Members: members}
}

func (p *Parser) parseExtern() ast.Decl {
	start := p.cur().Span.Range.Start
	p.advance()
	typ := p.parseTypeExpr()
	name := p.expectIdentLike()
	p.expect(token.Semicolon)
	sp := p.span(start)
	p.addSymbol(name, scope.KindMisc, sp)
	return &ast.ExternDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Type: typ}
}

// expectIdentLike accepts either an identifier or a keyword spelled as a
// name (DML permits some keywords as field/parameter names in practice);
// it always records a symbol name even on failure, returning "<error>".
func (p *Parser) expectIdentLike() string {
	if p.cur().Kind == token.Ident {
		return p.advance().Text
	}
	if p.cur().Kind == token.Keyword {
		return p.advance().Text
	}
	p.errorf(p.cur(), "expected identifier, found %q", p.cur().Text)
	return "<error>"
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
