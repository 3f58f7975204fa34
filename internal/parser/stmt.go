package parser

import (
	"github.com/fenghaitao/dml-language-server/internal/ast"
	"github.com/fenghaitao/dml-language-server/internal/scope"
	"github.com/fenghaitao/dml-language-server/internal/token"
)

// parseStmtsUntilRBrace parses the body of a block: a mix of statements and
// local declarations (session/saved/local/constant/typedef), per spec.md
// §4.B.
func (p *Parser) parseStmtsUntilRBrace() []ast.Stmt {
	var stmts []ast.Stmt
	for p.cur().Kind != token.RBrace && !p.atEOF() {
		if p.cur().Kind == token.Semicolon {
			p.advance()
			continue
		}
		stmts = append(stmts, p.parseStmt())
	}
	return stmts
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	start := p.cur().Span.Range.Start
	if _, ok := p.expect(token.LBrace); !ok {
		return &ast.BlockStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}}
	}
	stmts := p.parseStmtsUntilRBrace()
	p.expect(token.RBrace)
	return &ast.BlockStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Stmts: stmts}
}

// parseStmt dispatches on the current token to the appropriate statement
// variant, falling back to an expression statement.
func (p *Parser) parseStmt() ast.Stmt {
	tok := p.cur()
	start := tok.Span.Range.Start

	switch tok.Kind {
	case token.LBrace:
		return p.parseBlock()
	case token.CBlock:
		p.advance()
		return &ast.InlineCStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Text: tok.Text}
	case token.HashIf:
		return p.parseHashIf()
	case token.HashForeach:
		return p.parseHashForeach()
	case token.HashSelect:
		return p.parseHashSelect()
	}

	if tok.Kind == token.Ident && p.peek(1).Kind == token.OpColon {
		p.advance()
		p.advance()
		return &ast.LabelStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Name: tok.Text}
	}

	if tok.Kind != token.Keyword {
		return p.parseExprStmt()
	}

	switch tok.Text {
	case "if":
		return p.parseIf()
	case "while":
		return p.parseWhile()
	case "do":
		return p.parseDoWhile()
	case "for":
		return p.parseFor()
	case "foreach":
		return p.parseForeach()
	case "switch":
		return p.parseSwitch()
	case "break":
		p.advance()
		p.expect(token.Semicolon)
		return &ast.BreakStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}}
	case "continue":
		p.advance()
		p.expect(token.Semicolon)
		return &ast.ContinueStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}}
	case "return":
		p.advance()
		var v ast.Expr
		if p.cur().Kind != token.Semicolon {
			v = p.parseExpr()
		}
		p.expect(token.Semicolon)
		return &ast.ReturnStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Value: v}
	case "goto":
		p.advance()
		label := p.expectIdentLike()
		p.expect(token.Semicolon)
		return &ast.GotoStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Label: label}
	case "try":
		return p.parseTry()
	case "throw":
		p.advance()
		p.expect(token.Semicolon)
		return &ast.ThrowStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}}
	case "log":
		return p.parseLog()
	case "assert":
		p.advance()
		cond := p.parseExpr()
		p.expect(token.Semicolon)
		return &ast.AssertStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Cond: cond}
	case "after":
		return p.parseAfter()
	case "session", "saved", "constant", "local", "typedef", "data", "struct", "extern":
		d := p.parseLocalDecl()
		return &ast.DeclStmt{NodeSpan: ast.NodeSpan{Sp: d.Span()}, Decl: d}
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseExprStmt() ast.Stmt {
	start := p.cur().Span.Range.Start
	x := p.parseExpr()
	p.expect(token.Semicolon)
	return &ast.ExprStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, X: x}
}

// parseLocalDecl parses a local declaration that appears as a statement
// inside a method body; `local` is parsed as a typed session-like binding
// (a SessionDecl carrying the declared type) scoped to the block.
func (p *Parser) parseLocalDecl() ast.Decl {
	if p.cur().IsKeyword("local") {
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
		p.addSymbol(name, scope.KindMisc, sp) // local variables are not top-level symbols
		return &ast.SessionDecl{NodeSpan: ast.NodeSpan{Sp: sp}, Name: name, Type: typ, Value: value}
	}
	return p.parseMemberDecl()
}

func (p *Parser) parseIf() ast.Stmt {
	start := p.cur().Span.Range.Start
	p.advance() // 'if'
	p.expect(token.LParen)
	cond := p.parseExpr()
	p.expect(token.RParen)
	then := p.parseStmt()
	var els ast.Stmt
	if p.cur().IsKeyword("else") {
		p.advance()
		els = p.parseStmt()
	}
	return &ast.IfStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile() ast.Stmt {
	start := p.cur().Span.Range.Start
	p.advance()
	p.expect(token.LParen)
	cond := p.parseExpr()
	p.expect(token.RParen)
	body := p.parseStmt()
	return &ast.WhileStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Cond: cond, Body: body}
}

func (p *Parser) parseDoWhile() ast.Stmt {
	start := p.cur().Span.Range.Start
	p.advance() // 'do'
	body := p.parseStmt()
	p.expectKeyword("while")
	p.expect(token.LParen)
	cond := p.parseExpr()
	p.expect(token.RParen)
	p.expect(token.Semicolon)
	return &ast.DoWhileStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Body: body, Cond: cond}
}

func (p *Parser) parseFor() ast.Stmt {
	start := p.cur().Span.Range.Start
	p.advance()
	p.expect(token.LParen)

	var init ast.Stmt
	if p.cur().Kind != token.Semicolon {
		init = p.parseExprStmt() // consumes the trailing ';' itself
	} else {
		p.advance()
	}

	var cond ast.Expr
	if p.cur().Kind != token.Semicolon {
		cond = p.parseExpr()
	}
	p.expect(token.Semicolon)

	var post ast.Stmt
	if p.cur().Kind != token.RParen {
		start := p.cur().Span.Range.Start
		x := p.parseExpr()
		post = &ast.ExprStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, X: x}
	}
	p.expect(token.RParen)
	body := p.parseStmt()
	return &ast.ForStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Init: init, Cond: cond, Post: post, Body: body}
}

func (p *Parser) parseForeach() ast.Stmt {
	start := p.cur().Span.Range.Start
	p.advance()
	varName := p.expectIdentLike()
	p.expectKeyword("in")
	in := p.parseExpr()
	body := p.parseStmt()
	return &ast.ForeachStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Var: varName, In: in, Body: body}
}

func (p *Parser) parseSwitch() ast.Stmt {
	start := p.cur().Span.Range.Start
	p.advance()
	p.expect(token.LParen)
	tag := p.parseExpr()
	p.expect(token.RParen)
	p.expect(token.LBrace)

	var cases []*ast.CaseStmt
	for p.cur().Kind != token.RBrace && !p.atEOF() {
		cstart := p.cur().Span.Range.Start
		var values []ast.Expr
		isDefault := false
		if p.cur().IsKeyword("case") {
			p.advance()
			values = append(values, p.parseExpr())
		} else if p.cur().IsKeyword("default") {
			p.advance()
			isDefault = true
		} else {
			p.errorf(p.cur(), "expected 'case' or 'default' in switch body")
			p.advance()
			continue
		}
		p.expect(token.OpColon)
		var body []ast.Stmt
		for p.cur().Kind != token.RBrace && !p.cur().IsKeyword("case") && !p.cur().IsKeyword("default") && !p.atEOF() {
			body = append(body, p.parseStmt())
		}
		cases = append(cases, &ast.CaseStmt{NodeSpan: ast.NodeSpan{Sp: p.span(cstart)}, Values: values, IsDefault: isDefault, Body: body})
	}
	p.expect(token.RBrace)
	return &ast.SwitchStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Tag: tag, Cases: cases}
}

func (p *Parser) parseTry() ast.Stmt {
	start := p.cur().Span.Range.Start
	p.advance()
	tryBody := p.parseStmt()
	var catchBody ast.Stmt
	if p.cur().IsKeyword("catch") {
		p.advance()
		if p.cur().Kind == token.LParen { // optional `catch (err)` binder
			p.advance()
			p.expectIdentLike()
			p.expect(token.RParen)
		}
		catchBody = p.parseStmt()
	} else {
		p.errorf(p.cur(), "expected 'catch' after 'try' block")
	}
	return &ast.TryStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Try: tryBody, Catch: catchBody}
}

// parseLog handles `log kind[, level][: fmt, args...];`: a log-kind
// identifier, an optional comma-separated level/groups list, then an
// optional colon introducing the format string and its arguments.
func (p *Parser) parseLog() ast.Stmt {
	start := p.cur().Span.Range.Start
	p.advance() // 'log'
	kind := p.expectIdentLike()
	var args []ast.Expr
	for p.cur().Kind == token.Comma {
		p.advance()
		args = append(args, p.parseAssignmentExpr())
	}
	if p.cur().Kind == token.OpColon {
		p.advance()
		for p.cur().Kind != token.Semicolon && !p.atEOF() {
			args = append(args, p.parseAssignmentExpr())
			if p.cur().Kind == token.Comma {
				p.advance()
			}
		}
	}
	p.expect(token.Semicolon)
	return &ast.LogStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Kind: kind, Args: args}
}

func (p *Parser) parseAfter() ast.Stmt {
	start := p.cur().Span.Range.Start
	p.advance() // 'after'
	delay := p.parseExpr()
	p.expect(token.Comma)
	call := p.parseExpr()
	p.expect(token.Semicolon)
	return &ast.AfterStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Delay: delay, Call: call}
}

func (p *Parser) parseHashIf() ast.Stmt {
	start := p.cur().Span.Range.Start
	p.advance() // '#if'
	p.expect(token.LParen)
	cond := p.parseExpr()
	p.expect(token.RParen)
	then := p.parseHashBlockBody()
	var els []ast.Stmt
	if p.cur().Kind == token.HashElse {
		p.advance()
		if p.cur().Kind == token.HashIf { // '#else #if' chain
			els = []ast.Stmt{p.parseHashIf()}
		} else {
			els = p.parseHashBlockBody()
		}
	}
	return &ast.HashIfStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Cond: cond, Then: then, Else: els}
}

// parseHashBlockBody parses the braced statement list following a
// preprocessor directive. The braces are mandatory in the grammar but
// parsing degrades to a single statement if they are missing, rather than
// aborting.
func (p *Parser) parseHashBlockBody() []ast.Stmt {
	if p.cur().Kind == token.LBrace {
		return p.parseBlock().Stmts
	}
	return []ast.Stmt{p.parseStmt()}
}

func (p *Parser) parseHashForeach() ast.Stmt {
	start := p.cur().Span.Range.Start
	p.advance() // '#foreach'
	varName := p.expectIdentLike()
	p.expectKeyword("in")
	in := p.parseExpr()
	body := p.parseHashBlockBody()
	return &ast.HashForeachStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Var: varName, In: in, Body: body}
}

func (p *Parser) parseHashSelect() ast.Stmt {
	start := p.cur().Span.Range.Start
	p.advance() // '#select'
	var cases []*ast.HashSelectCase
	for {
		varName := p.expectIdentLike()
		p.expectKeyword("in")
		in := p.parseExpr()
		var where ast.Expr
		if p.cur().IsKeyword("where") {
			p.advance()
			where = p.parseExpr()
		}
		body := p.parseHashBlockBody()
		cases = append(cases, &ast.HashSelectCase{Var: varName, In: in, Where: where, Body: body})
		if p.cur().Kind == token.HashElse {
			p.advance()
			if p.cur().IsKeyword("select") || p.cur().Kind == token.HashSelect {
				p.advance()
				continue
			}
			els := p.parseHashBlockBody()
			return &ast.HashSelectStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Cases: cases, Else: els}
		}
		break
	}
	return &ast.HashSelectStmt{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Cases: cases}
}
