package parser

import (
	"github.com/fenghaitao/dml-language-server/internal/ast"
	"github.com/fenghaitao/dml-language-server/internal/token"
)

// parseExpr is the single entry point into expression parsing, per
// spec.md §4.B's precedence ladder: assignment → ternary → logical-or →
// logical-and → bitwise-or → bitwise-xor → bitwise-and → equality →
// relational → shift → additive → multiplicative → unary → postfix →
// primary.
func (p *Parser) parseExpr() ast.Expr {
	return p.parseAssignmentExpr()
}

var assignOps = map[token.Kind]ast.BinaryOp{
	token.OpAssign:      ast.BinAssign,
	token.OpAddAssign:   ast.BinAddAssign,
	token.OpSubAssign:   ast.BinSubAssign,
	token.OpMulAssign:   ast.BinMulAssign,
	token.OpDivAssign:   ast.BinDivAssign,
	token.OpModAssign:   ast.BinModAssign,
	token.OpAndAssign:   ast.BinAndAssign,
	token.OpOrAssign:    ast.BinOrAssign,
	token.OpXorAssign:   ast.BinXorAssign,
	token.OpShlAssign:   ast.BinShlAssign,
	token.OpShrAssign:   ast.BinShrAssign,
}

// parseAssignmentExpr is right-associative, the loosest-binding level.
func (p *Parser) parseAssignmentExpr() ast.Expr {
	left := p.parseTernaryExpr()
	if op, ok := assignOps[p.cur().Kind]; ok {
		start := left.Span().Range.Start
		p.advance()
		right := p.parseAssignmentExpr()
		return &ast.BinaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: op, Left: left, Right: right}
	}
	return left
}

// parseTernaryExpr handles `cond ? then : else`. Because the ':' only
// becomes significant once '?' has already been consumed, this never
// collides with the bracket bit-slice tie-break handled in postfix parsing.
func (p *Parser) parseTernaryExpr() ast.Expr {
	cond := p.parseLogicalOr()
	if p.cur().Kind == token.OpQuestion {
		start := cond.Span().Range.Start
		p.advance()
		then := p.parseAssignmentExpr()
		p.expect(token.OpColon)
		els := p.parseAssignmentExpr()
		return &ast.TernaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Cond: cond, Then: then, Else: els}
	}
	return cond
}

func (p *Parser) parseLogicalOr() ast.Expr {
	left := p.parseLogicalAnd()
	for p.cur().Kind == token.OpOrOr {
		start := left.Span().Range.Start
		p.advance()
		right := p.parseLogicalAnd()
		left = &ast.BinaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.BinLogOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseLogicalAnd() ast.Expr {
	left := p.parseBitOr()
	for p.cur().Kind == token.OpAndAnd {
		start := left.Span().Range.Start
		p.advance()
		right := p.parseBitOr()
		left = &ast.BinaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.BinLogAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitOr() ast.Expr {
	left := p.parseBitXor()
	for p.cur().Kind == token.OpOr {
		start := left.Span().Range.Start
		p.advance()
		right := p.parseBitXor()
		left = &ast.BinaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.BinBitOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitXor() ast.Expr {
	left := p.parseBitAnd()
	for p.cur().Kind == token.OpXor {
		start := left.Span().Range.Start
		p.advance()
		right := p.parseBitAnd()
		left = &ast.BinaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.BinBitXor, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitAnd() ast.Expr {
	left := p.parseEquality()
	for p.cur().Kind == token.OpAnd {
		start := left.Span().Range.Start
		p.advance()
		right := p.parseEquality()
		left = &ast.BinaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.BinBitAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseEquality() ast.Expr {
	left := p.parseRelational()
	for {
		var op ast.BinaryOp
		switch p.cur().Kind {
		case token.OpEq:
			op = ast.BinEq
		case token.OpNe:
			op = ast.BinNe
		default:
			return left
		}
		start := left.Span().Range.Start
		p.advance()
		right := p.parseRelational()
		left = &ast.BinaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseRelational() ast.Expr {
	left := p.parseShift()
	for {
		var op ast.BinaryOp
		switch p.cur().Kind {
		case token.OpLt:
			op = ast.BinLt
		case token.OpLe:
			op = ast.BinLe
		case token.OpGt:
			op = ast.BinGt
		case token.OpGe:
			op = ast.BinGe
		default:
			return left
		}
		start := left.Span().Range.Start
		p.advance()
		right := p.parseShift()
		left = &ast.BinaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseShift() ast.Expr {
	left := p.parseAdditive()
	for {
		var op ast.BinaryOp
		switch p.cur().Kind {
		case token.OpShl:
			op = ast.BinShl
		case token.OpShr:
			op = ast.BinShr
		default:
			return left
		}
		start := left.Span().Range.Start
		p.advance()
		right := p.parseAdditive()
		left = &ast.BinaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for {
		var op ast.BinaryOp
		switch p.cur().Kind {
		case token.OpPlus:
			op = ast.BinAdd
		case token.OpMinus:
			op = ast.BinSub
		default:
			return left
		}
		start := left.Span().Range.Start
		p.advance()
		right := p.parseMultiplicative()
		left = &ast.BinaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for {
		var op ast.BinaryOp
		switch p.cur().Kind {
		case token.OpStar:
			op = ast.BinMul
		case token.OpSlash:
			op = ast.BinDiv
		case token.OpPercent:
			op = ast.BinMod
		default:
			return left
		}
		start := left.Span().Range.Start
		p.advance()
		right := p.parseUnary()
		left = &ast.BinaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: op, Left: left, Right: right}
	}
}

// parseUnary handles prefix operators, prefix inc/dec, casts, sizeof, and
// new, falling through to postfix parsing.
func (p *Parser) parseUnary() ast.Expr {
	start := p.cur().Span.Range.Start

	switch p.cur().Kind {
	case token.OpMinus:
		p.advance()
		return &ast.UnaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.UnaryNeg, X: p.parseUnary()}
	case token.OpPlus:
		p.advance()
		return p.parseUnary() // unary plus is a no-op in DML expressions
	case token.OpNot:
		p.advance()
		return &ast.UnaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.UnaryNot, X: p.parseUnary()}
	case token.OpTilde:
		p.advance()
		return &ast.UnaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.UnaryBitNot, X: p.parseUnary()}
	case token.OpPlusPlus:
		p.advance()
		return &ast.UnaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.UnaryPreInc, X: p.parseUnary()}
	case token.OpMinusMinus:
		p.advance()
		return &ast.UnaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.UnaryPreDec, X: p.parseUnary()}
	case token.OpAnd:
		p.advance()
		return &ast.UnaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.UnaryAddrOf, X: p.parseUnary()}
	case token.OpStar:
		p.advance()
		return &ast.UnaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.UnaryDeref, X: p.parseUnary()}
	}

	if p.cur().IsKeyword("sizeof") {
		p.advance()
		p.expect(token.LParen)
		x := p.parseExpr()
		p.expect(token.RParen)
		return &ast.SizeofExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, X: x}
	}
	if p.cur().IsKeyword("sizeoftype") {
		p.advance()
		p.expect(token.LParen)
		t := p.parseTypeExpr()
		p.expect(token.RParen)
		return &ast.SizeofExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Type: t}
	}
	if p.cur().IsKeyword("cast") {
		p.advance()
		p.expect(token.LParen)
		x := p.parseExpr()
		p.expect(token.Comma)
		t := p.parseTypeExpr()
		p.expect(token.RParen)
		return &ast.CastExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Type: t, X: x}
	}
	if p.cur().IsKeyword("new") {
		p.advance()
		t := p.parseTypeExpr()
		var count ast.Expr
		if p.cur().Kind == token.LBracket {
			p.advance()
			count = p.parseExpr()
			p.expect(token.RBracket)
		}
		return &ast.NewExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Type: t, Count: count}
	}

	return p.parsePostfix()
}

// parsePostfix handles member access, calls, and indexing, including the
// `[hi:lo]` bit-slice form. The colon inside brackets is unconditionally a
// range separator, not a ternary arm, because ternary's ':' is only ever
// consumed after its own '?' in parseTernaryExpr (tie-break (ii)).
func (p *Parser) parsePostfix() ast.Expr {
	x := p.parsePrimary()
	for {
		start := x.Span().Range.Start
		switch p.cur().Kind {
		case token.Dot:
			p.advance()
			name := p.expectIdentLike()
			x = &ast.MemberExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, X: x, Name: name}
		case token.OpArrow:
			p.advance()
			name := p.expectIdentLike()
			x = &ast.MemberExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, X: x, Name: name, Arrow: true}
		case token.LParen:
			p.advance()
			var args []ast.Expr
			for p.cur().Kind != token.RParen && !p.atEOF() {
				args = append(args, p.parseAssignmentExpr())
				if p.cur().Kind == token.Comma {
					p.advance()
				}
			}
			p.expect(token.RParen)
			x = &ast.CallExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Fn: x, Args: args}
		case token.LBracket:
			p.advance()
			hi := p.parseExpr()
			if p.cur().Kind == token.OpColon {
				p.advance()
				lo := p.parseExpr()
				p.expect(token.RBracket)
				x = &ast.BitSliceExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, X: x, High: hi, Low: lo}
			} else {
				p.expect(token.RBracket)
				x = &ast.IndexExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, X: x, Index: hi}
			}
		case token.OpPlusPlus:
			p.advance()
			x = &ast.UnaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.UnaryPostInc, X: x}
		case token.OpMinusMinus:
			p.advance()
			x = &ast.UnaryExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Op: ast.UnaryPostDec, X: x}
		default:
			return x
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.cur()
	start := tok.Span.Range.Start

	switch tok.Kind {
	case token.IntLiteral:
		p.advance()
		return &ast.LiteralExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Kind: ast.LitInt, Text: tok.Text}
	case token.FloatLiteral:
		p.advance()
		return &ast.LiteralExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Kind: ast.LitFloat, Text: tok.Text}
	case token.StringLiteral:
		p.advance()
		return &ast.LiteralExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Kind: ast.LitString, Text: tok.Text}
	case token.CharLiteral:
		p.advance()
		return &ast.LiteralExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Kind: ast.LitChar, Text: tok.Text}
	case token.Ident:
		p.advance()
		return &ast.IdentExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Name: tok.Text}
	case token.LParen:
		p.advance()
		x := p.parseExpr()
		p.expect(token.RParen)
		return x
	case token.LBrace:
		p.advance()
		var elems []ast.Expr
		for p.cur().Kind != token.RBrace && !p.atEOF() {
			elems = append(elems, p.parseAssignmentExpr())
			if p.cur().Kind == token.Comma {
				p.advance()
			}
		}
		p.expect(token.RBrace)
		return &ast.InitializerListExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Elements: elems}
	}

	if tok.Kind == token.Keyword {
		switch tok.Text {
		case "true", "false":
			p.advance()
			return &ast.LiteralExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Kind: ast.LitBool, Text: tok.Text}
		case "undefined":
			p.advance()
			return &ast.LiteralExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Kind: ast.LitUndefined, Text: tok.Text}
		case "this":
			p.advance()
			return &ast.IdentExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Name: "this"}
		case "typeof":
			p.advance()
			p.expect(token.LParen)
			x := p.parseExpr()
			p.expect(token.RParen)
			return &ast.TypeExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, IsTypeof: true, TypeofX: x}
		case "defined":
			p.advance()
			p.expect(token.LParen)
			x := p.parseExpr()
			p.expect(token.RParen)
			return &ast.CallExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Fn: &ast.IdentExpr{Name: "defined"}, Args: []ast.Expr{x}}
		default:
			// Keywords used as identifiers in expression position (e.g. error
			// handlers named after reserved words) still yield a usable node.
			p.advance()
			return &ast.IdentExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, Name: tok.Text}
		}
	}

	p.errorf(tok, "unexpected token %q in expression", tok.Text)
	p.advance()
	return &ast.BadExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}}
}

// parseTypeExpr parses a type in expression position: a base name,
// optional trailing '*' for a pointer, an optional leading `vect` keyword,
// and an optional fixed array length, e.g. `uint32 *`, `vect uint8`,
// `int32[4]`.
func (p *Parser) parseTypeExpr() ast.Expr {
	start := p.cur().Span.Range.Start

	if p.cur().IsKeyword("typeof") {
		p.advance()
		p.expect(token.LParen)
		x := p.parseExpr()
		p.expect(token.RParen)
		return &ast.TypeExpr{NodeSpan: ast.NodeSpan{Sp: p.span(start)}, IsTypeof: true, TypeofX: x}
	}

	vectorOf := false
	if p.cur().IsKeyword("vect") {
		vectorOf = true
		p.advance()
	}

	name := p.expectIdentLike()

	pointer := false
	for p.cur().Kind == token.OpStar {
		pointer = true
		p.advance()
	}

	var arrayLen ast.Expr
	if p.cur().Kind == token.LBracket {
		p.advance()
		if p.cur().Kind != token.RBracket {
			arrayLen = p.parseExpr()
		}
		p.expect(token.RBracket)
	}

	return &ast.TypeExpr{
		NodeSpan: ast.NodeSpan{Sp: p.span(start)},
		Name:     name, Pointer: pointer, VectorOf: vectorOf, ArrayLen: arrayLen,
	}
}
