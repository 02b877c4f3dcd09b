// Package parser implements the MochaScript parser.
package parser

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/thomasrohde/mocha/go/pkg/ast"
	"github.com/thomasrohde/mocha/go/pkg/diagnostics"
	"github.com/thomasrohde/mocha/go/pkg/lexer"
)

type parser struct {
	tokens []lexer.Token
	pos    int
	diags  []diagnostics.Diagnostic
}

// Parse tokenizes source and parses it into a top-level block.
func Parse(source, filename string) (*ast.Block, []diagnostics.Diagnostic) {
	tokens, err := lexer.Tokenize(source, filename)
	if err != nil {
		var le *lexer.LexError
		if errors.As(err, &le) {
			return nil, []diagnostics.Diagnostic{le.Diag}
		}
		return nil, []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.ELex, err.Error(), nil, "")}
	}
	return ParseTokens(tokens)
}

// ParseTokens parses an already tokenized program. A missing trailing EOF
// token is tolerated.
func ParseTokens(tokens []lexer.Token) (*ast.Block, []diagnostics.Diagnostic) {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != lexer.TokEOF {
		eof := lexer.Token{Type: lexer.TokEOF}
		if len(tokens) > 0 {
			last := tokens[len(tokens)-1].Span
			eof.Span = ast.Span{File: last.File, Offset: last.Offset, StartLine: last.EndLine, StartCol: last.EndCol, EndLine: last.EndLine, EndCol: last.EndCol}
		}
		tokens = append(tokens, eof)
	}

	p := &parser{tokens: tokens}
	prog := p.parseProgram()
	if len(p.diags) > 0 {
		return nil, p.diags
	}
	return prog, nil
}

func (p *parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *parser) peek() lexer.TokenType {
	return p.current().Type
}

func (p *parser) peekAt(offset int) lexer.TokenType {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return lexer.TokEOF
	}
	return p.tokens[idx].Type
}

func (p *parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) expect(typ lexer.TokenType) (lexer.Token, bool) {
	tok := p.current()
	if tok.Type != typ {
		p.addError(fmt.Sprintf("expected %s, got %s", typ, describe(tok)), &tok.Span)
		return tok, false
	}
	return p.advance(), true
}

func (p *parser) addError(msg string, span *ast.Span) {
	p.diags = append(p.diags, diagnostics.MakeDiag(diagnostics.EParse, msg, span, ""))
}

func (p *parser) unexpected() {
	tok := p.current()
	p.addError("unexpected "+describe(tok), &tok.Span)
}

func spanFromTo(start, end ast.Span) ast.Span {
	return ast.Span{
		File:      start.File,
		Offset:    start.Offset,
		StartLine: start.StartLine,
		StartCol:  start.StartCol,
		EndLine:   end.EndLine,
		EndCol:    end.EndCol,
	}
}

// describe renders a token for error messages.
func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.TokEOF:
		return "end of input"
	case lexer.TokString:
		return fmt.Sprintf("string %q", tok.Value)
	}
	return fmt.Sprintf("token '%s'", tok.Value)
}

// --- Program and blocks ---

func (p *parser) parseProgram() *ast.Block {
	start := p.current().Span
	exprs, ok := p.parseStatements(lexer.TokEOF, nil)
	if !ok {
		return nil
	}
	return &ast.Block{Span: spanFromTo(start, p.current().Span), Exprs: exprs}
}

// parseStatements parses `;`-separated expressions, appending to exprs, up
// to but not including the end token. Empty statements are skipped.
func (p *parser) parseStatements(end lexer.TokenType, exprs []ast.Expr) ([]ast.Expr, bool) {
	for {
		for p.peek() == lexer.TokSemi {
			p.advance()
		}
		if p.peek() == end {
			return exprs, true
		}
		e := p.parseExpr()
		if e == nil {
			return nil, false
		}
		exprs = append(exprs, e)
		if p.peek() != lexer.TokSemi && p.peek() != end {
			tok := p.current()
			p.addError(fmt.Sprintf("expected ';' or %s, got %s", end, describe(tok)), &tok.Span)
			return nil, false
		}
	}
}

// parseParen handles `( )`: an empty block, a grouped expression, the infix
// conditional `(a if c else b)`, or a `;`-separated block.
func (p *parser) parseParen() ast.Expr {
	start := p.advance() // consume '('

	if p.peek() == lexer.TokRParen || p.peek() == lexer.TokSemi {
		return p.finishParenBlock(start, nil)
	}

	first := p.parseExpr()
	if first == nil {
		return nil
	}

	switch p.peek() {
	case lexer.TokIf:
		return p.parseInfixIf(start, first)
	case lexer.TokSemi:
		return p.finishParenBlock(start, []ast.Expr{first})
	}

	if _, ok := p.expect(lexer.TokRParen); !ok {
		return nil
	}
	return first
}

func (p *parser) finishParenBlock(start lexer.Token, exprs []ast.Expr) ast.Expr {
	exprs, ok := p.parseStatements(lexer.TokRParen, exprs)
	if !ok {
		return nil
	}
	end, _ := p.expect(lexer.TokRParen)
	return &ast.Block{Span: spanFromTo(start.Span, end.Span), Exprs: exprs}
}

func (p *parser) parseInfixIf(start lexer.Token, then ast.Expr) ast.Expr {
	p.advance() // consume 'if'
	cond := p.parseOr()
	if cond == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokElse); !ok {
		return nil
	}
	other := p.parseExpr()
	if other == nil {
		return nil
	}
	end, ok := p.expect(lexer.TokRParen)
	if !ok {
		return nil
	}
	return &ast.If{
		Span:  spanFromTo(start.Span, end.Span),
		Cond:  cond,
		Then:  then,
		Else:  other,
		Infix: true,
	}
}

func (p *parser) parseBrace() ast.Expr {
	start := p.advance() // consume '{'
	exprs, ok := p.parseStatements(lexer.TokRBrace, nil)
	if !ok {
		return nil
	}
	end, ok := p.expect(lexer.TokRBrace)
	if !ok {
		return nil
	}
	return &ast.Block{Span: spanFromTo(start.Span, end.Span), Exprs: exprs}
}

// --- Expressions ---

var compoundOps = map[lexer.TokenType]ast.BinaryOp{
	lexer.TokPlusEq:     ast.OpAdd,
	lexer.TokMinusEq:    ast.OpSub,
	lexer.TokStarEq:     ast.OpMul,
	lexer.TokSlashEq:    ast.OpDiv,
	lexer.TokPercentEq:  ast.OpMod,
	lexer.TokStarStarEq: ast.OpExp,
	lexer.TokOrOrEq:     ast.OpOr,
	lexer.TokAndAndEq:   ast.OpAnd,
}

// parseExpr parses a full expression, starting at the assignment level.
func (p *parser) parseExpr() ast.Expr {
	if p.peek() == lexer.TokIdent {
		next := p.peekAt(1)
		if _, compound := compoundOps[next]; next == lexer.TokEquals || compound {
			return p.parseAssignment()
		}
	}
	return p.parsePrefixed()
}

func (p *parser) parseAssignment() ast.Expr {
	name := p.advance()
	opTok := p.advance()
	value := p.parseExpr() // right associative
	if value == nil {
		return nil
	}
	span := spanFromTo(name.Span, value.NodeSpan())
	if opTok.Type == lexer.TokEquals {
		return &ast.Assign{Span: span, Name: name.Value, Value: value}
	}
	return &ast.InPlaceAssign{Span: span, Name: name.Value, Op: compoundOps[opTok.Type], Value: value}
}

func (p *parser) parsePrefixed() ast.Expr {
	switch p.peek() {
	case lexer.TokSay:
		start := p.advance()
		value := p.parseExpr()
		if value == nil {
			return nil
		}
		return &ast.Say{Span: spanFromTo(start.Span, value.NodeSpan()), Value: value}
	case lexer.TokAsk:
		start := p.advance()
		prompt := p.parseExpr()
		if prompt == nil {
			return nil
		}
		return &ast.Ask{Span: spanFromTo(start.Span, prompt.NodeSpan()), Prompt: prompt}
	case lexer.TokExit:
		return p.parseExit()
	case lexer.TokWhile:
		return p.parseWhile()
	case lexer.TokIf:
		return p.parseIf()
	case lexer.TokFor:
		return p.parseFor()
	default:
		return p.parseOr()
	}
}

// endsOperand reports whether the current token cannot start an expression,
// which makes the operand of `exit` optional.
func (p *parser) endsOperand() bool {
	switch p.peek() {
	case lexer.TokSemi, lexer.TokRParen, lexer.TokRBrace, lexer.TokRBracket,
		lexer.TokComma, lexer.TokElse, lexer.TokIf, lexer.TokEOF:
		return true
	}
	return false
}

func (p *parser) parseExit() ast.Expr {
	start := p.advance() // consume 'exit'
	if p.endsOperand() {
		return &ast.Exit{Span: start.Span}
	}
	value := p.parseExpr()
	if value == nil {
		return nil
	}
	return &ast.Exit{Span: spanFromTo(start.Span, value.NodeSpan()), Value: value}
}

func (p *parser) parseWhile() ast.Expr {
	start := p.advance() // consume 'while'
	cond := p.parseOr()
	if cond == nil {
		return nil
	}
	body := p.parseExpr()
	if body == nil {
		return nil
	}
	return &ast.While{Span: spanFromTo(start.Span, body.NodeSpan()), Cond: cond, Body: body}
}

func (p *parser) parseIf() ast.Expr {
	start := p.advance() // consume 'if'
	cond := p.parseOr()
	if cond == nil {
		return nil
	}
	then := p.parseExpr()
	if then == nil {
		return nil
	}
	node := &ast.If{Span: spanFromTo(start.Span, then.NodeSpan()), Cond: cond, Then: then}
	if p.peek() == lexer.TokElse {
		p.advance() // consume 'else'
		other := p.parseExpr()
		if other == nil {
			return nil
		}
		node.Else = other
		node.Span = spanFromTo(start.Span, other.NodeSpan())
	}
	return node
}

func (p *parser) parseFor() ast.Expr {
	start := p.advance() // consume 'for'
	name, ok := p.expect(lexer.TokIdent)
	if !ok {
		return nil
	}
	if _, ok := p.expect(lexer.TokIn); !ok {
		return nil
	}
	iterable := p.parseOr()
	if iterable == nil {
		return nil
	}
	body := p.parseExpr()
	if body == nil {
		return nil
	}
	return &ast.For{
		Span:     spanFromTo(start.Span, body.NodeSpan()),
		Var:      name.Value,
		Iterable: iterable,
		Body:     body,
	}
}

// binaryLevel parses one left-associative precedence level.
func (p *parser) binaryLevel(next func() ast.Expr, ops map[lexer.TokenType]ast.BinaryOp) ast.Expr {
	left := next()
	if left == nil {
		return nil
	}
	for {
		op, ok := ops[p.peek()]
		if !ok {
			return left
		}
		p.advance()
		right := next()
		if right == nil {
			return nil
		}
		left = &ast.BinOp{
			Span:  spanFromTo(left.NodeSpan(), right.NodeSpan()),
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
}

var (
	orOps       = map[lexer.TokenType]ast.BinaryOp{lexer.TokOrOr: ast.OpOr}
	andOps      = map[lexer.TokenType]ast.BinaryOp{lexer.TokAndAnd: ast.OpAnd}
	equalityOps = map[lexer.TokenType]ast.BinaryOp{lexer.TokEqEq: ast.OpEqEq, lexer.TokBangEq: ast.OpNeq}
	relationOps = map[lexer.TokenType]ast.BinaryOp{
		lexer.TokLt:   ast.OpLt,
		lexer.TokGt:   ast.OpGt,
		lexer.TokLtEq: ast.OpLtEq,
		lexer.TokGtEq: ast.OpGtEq,
	}
	additiveOps       = map[lexer.TokenType]ast.BinaryOp{lexer.TokPlus: ast.OpAdd, lexer.TokMinus: ast.OpSub}
	multiplicativeOps = map[lexer.TokenType]ast.BinaryOp{
		lexer.TokStar:    ast.OpMul,
		lexer.TokSlash:   ast.OpDiv,
		lexer.TokPercent: ast.OpMod,
	}
)

func (p *parser) parseOr() ast.Expr { return p.binaryLevel(p.parseAnd, orOps) }

func (p *parser) parseAnd() ast.Expr { return p.binaryLevel(p.parseEquality, andOps) }

func (p *parser) parseEquality() ast.Expr { return p.binaryLevel(p.parseRelational, equalityOps) }

func (p *parser) parseRelational() ast.Expr { return p.binaryLevel(p.parseAdditive, relationOps) }

func (p *parser) parseAdditive() ast.Expr {
	return p.binaryLevel(p.parseMultiplicative, additiveOps)
}

func (p *parser) parseMultiplicative() ast.Expr {
	return p.binaryLevel(p.parseExponent, multiplicativeOps)
}

func (p *parser) parseExponent() ast.Expr {
	left := p.parseRangeIn()
	if left == nil {
		return nil
	}
	if p.peek() != lexer.TokStarStar {
		return left
	}
	p.advance()
	right := p.parseExponent() // right associative
	if right == nil {
		return nil
	}
	return &ast.BinOp{
		Span:  spanFromTo(left.NodeSpan(), right.NodeSpan()),
		Op:    ast.OpExp,
		Left:  left,
		Right: right,
	}
}

func (p *parser) parseRangeIn() ast.Expr {
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	for {
		switch p.peek() {
		case lexer.TokTo:
			p.advance()
			right := p.parseUnary()
			if right == nil {
				return nil
			}
			left = &ast.Range{Span: spanFromTo(left.NodeSpan(), right.NodeSpan()), From: left, To: right}
		case lexer.TokIn:
			p.advance()
			right := p.parseUnary()
			if right == nil {
				return nil
			}
			left = &ast.Contains{Span: spanFromTo(left.NodeSpan(), right.NodeSpan()), Item: left, Container: right}
		default:
			return left
		}
	}
}

func (p *parser) parseUnary() ast.Expr {
	var op ast.UnaryOp
	switch p.peek() {
	case lexer.TokMinus:
		op = ast.OpNeg
	case lexer.TokPlus:
		op = ast.OpPos
	default:
		return p.parsePostfix()
	}
	start := p.advance()
	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &ast.UnOp{
		Span:    spanFromTo(start.Span, operand.NodeSpan()),
		Op:      op,
		Operand: operand,
	}
}

// parsePostfix parses call suffixes. A '(' only starts a call when it
// directly follows the callee with no whitespace in between.
func (p *parser) parsePostfix() ast.Expr {
	expr := p.parseAtom()
	if expr == nil {
		return nil
	}
	for p.peek() == lexer.TokLParen && !p.current().SpaceBefore {
		p.advance() // consume '('
		args, end, ok := p.parseList(lexer.TokRParen)
		if !ok {
			return nil
		}
		expr = &ast.Call{Span: spanFromTo(expr.NodeSpan(), end.Span), Callee: expr, Args: args}
	}
	return expr
}

// parseList parses comma-separated expressions up to and including the
// closing token. A trailing comma is allowed.
func (p *parser) parseList(closing lexer.TokenType) ([]ast.Expr, lexer.Token, bool) {
	var items []ast.Expr
	for p.peek() != closing {
		item := p.parseExpr()
		if item == nil {
			return nil, lexer.Token{}, false
		}
		items = append(items, item)
		if p.peek() != lexer.TokComma {
			break
		}
		p.advance()
	}
	end, ok := p.expect(closing)
	return items, end, ok
}

func (p *parser) parseAtom() ast.Expr {
	switch p.peek() {
	case lexer.TokNumber:
		tok := p.advance()
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid number literal '%s'", tok.Value), &tok.Span)
			return nil
		}
		return &ast.NumberLit{Span: tok.Span, Value: val, Raw: tok.Value}

	case lexer.TokString:
		tok := p.advance()
		return &ast.StringLit{Span: tok.Span, Value: tok.Value}

	case lexer.TokTrue:
		tok := p.advance()
		return &ast.BoolLit{Span: tok.Span, Value: true}

	case lexer.TokFalse:
		tok := p.advance()
		return &ast.BoolLit{Span: tok.Span, Value: false}

	case lexer.TokIdent:
		tok := p.advance()
		return &ast.Ref{Span: tok.Span, Name: tok.Value}

	case lexer.TokLParen:
		return p.parseParen()

	case lexer.TokLBrace:
		return p.parseBrace()

	case lexer.TokLBracket:
		start := p.advance()
		elems, end, ok := p.parseList(lexer.TokRBracket)
		if !ok {
			return nil
		}
		return &ast.ArrayLit{Span: spanFromTo(start.Span, end.Span), Elements: elems}

	case lexer.TokFn:
		return p.parseFnLit()

	default:
		p.unexpected()
		return nil
	}
}

func (p *parser) parseFnLit() ast.Expr {
	start := p.advance() // consume 'fn'

	var name string
	if p.peek() == lexer.TokIdent {
		name = p.advance().Value
	}

	if _, ok := p.expect(lexer.TokLParen); !ok {
		return nil
	}
	var params []string
	for p.peek() != lexer.TokRParen {
		tok, ok := p.expect(lexer.TokIdent)
		if !ok {
			return nil
		}
		params = append(params, tok.Value)
		if p.peek() != lexer.TokComma {
			break
		}
		p.advance()
	}
	if _, ok := p.expect(lexer.TokRParen); !ok {
		return nil
	}
	if _, ok := p.expect(lexer.TokArrow); !ok {
		return nil
	}

	body := p.parseExpr()
	if body == nil {
		return nil
	}
	return &ast.FnLit{
		Span:   spanFromTo(start.Span, body.NodeSpan()),
		Name:   name,
		Params: params,
		Body:   body,
	}
}
