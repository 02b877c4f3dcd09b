// Package lexer implements the MochaScript tokenizer.
package lexer

import (
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/thomasrohde/mocha/go/pkg/ast"
	"github.com/thomasrohde/mocha/go/pkg/diagnostics"
)

// TokenType identifies the type of a lexer token.
type TokenType int

const (
	// Keywords
	TokTrue TokenType = iota
	TokFalse
	TokIf
	TokElse
	TokSay
	TokAsk
	TokExit
	TokWhile
	TokFor
	TokIn
	TokTo
	TokFn

	// Literals
	TokNumber
	TokString

	// Identifiers
	TokIdent

	// Punctuation
	TokLParen   // (
	TokRParen   // )
	TokLBracket // [
	TokRBracket // ]
	TokLBrace   // {
	TokRBrace   // }
	TokComma    // ,
	TokSemi     // ;
	TokColon    // :
	TokDot      // .
	TokArrow    // ->

	// Assignment
	TokEquals     // =
	TokPlusEq     // +=
	TokMinusEq    // -=
	TokStarEq     // *=
	TokSlashEq    // /=
	TokPercentEq  // %=
	TokStarStarEq // **=
	TokOrOrEq     // ||=
	TokAndAndEq   // &&=

	// Comparison and logical operators
	TokEqEq   // ==
	TokBangEq // !=
	TokLt     // <
	TokGt     // >
	TokLtEq   // <=
	TokGtEq   // >=
	TokAndAnd // &&
	TokOrOr   // ||

	// Arithmetic operators
	TokPlus     // +
	TokMinus    // -
	TokStar     // *
	TokSlash    // /
	TokPercent  // %
	TokStarStar // **

	// Special
	TokEOF
)

// Token represents a single lexer token.
type Token struct {
	Type  TokenType
	Value string
	Span  ast.Span
	// SpaceBefore is set when whitespace or a comment separates this token
	// from the previous one.
	SpaceBefore bool
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d", t.Type, t.Value, t.Span.Offset)
}

var keywords = map[string]TokenType{
	"true":  TokTrue,
	"false": TokFalse,
	"if":    TokIf,
	"else":  TokElse,
	"say":   TokSay,
	"ask":   TokAsk,
	"exit":  TokExit,
	"while": TokWhile,
	"for":   TokFor,
	"in":    TokIn,
	"to":    TokTo,
	"fn":    TokFn,
}

// IsKeyword returns true if the token type is a reserved word.
func IsKeyword(t TokenType) bool {
	return t >= TokTrue && t <= TokFn
}

// operators lists the fixed operator/punctuation set, longest first, so the
// first prefix match is the longest match.
var operators = []struct {
	text string
	typ  TokenType
}{
	{"**=", TokStarStarEq},
	{"||=", TokOrOrEq},
	{"&&=", TokAndAndEq},
	{"->", TokArrow},
	{"==", TokEqEq},
	{"!=", TokBangEq},
	{"<=", TokLtEq},
	{">=", TokGtEq},
	{"&&", TokAndAnd},
	{"||", TokOrOr},
	{"+=", TokPlusEq},
	{"-=", TokMinusEq},
	{"*=", TokStarEq},
	{"/=", TokSlashEq},
	{"%=", TokPercentEq},
	{"**", TokStarStar},
	{"+", TokPlus},
	{"-", TokMinus},
	{"*", TokStar},
	{"/", TokSlash},
	{"%", TokPercent},
	{"(", TokLParen},
	{")", TokRParen},
	{"[", TokLBracket},
	{"]", TokRBracket},
	{"{", TokLBrace},
	{"}", TokRBrace},
	{",", TokComma},
	{";", TokSemi},
	{":", TokColon},
	{".", TokDot},
	{"=", TokEquals},
	{"<", TokLt},
	{">", TokGt},
}

// Lexer produces tokens lazily from a source buffer. It can be rewound to
// the start with Reset.
type Lexer struct {
	source   string
	filename string
	pos      int
	line     int
	col      int
}

// New creates a Lexer positioned at the start of source.
func New(source, filename string) *Lexer {
	l := &Lexer{source: source, filename: filename}
	l.Reset()
	return l
}

// Reset rewinds the lexer to the start of its source.
func (l *Lexer) Reset() {
	l.pos = 0
	l.line = 1
	l.col = 1
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.source)
}

func (l *Lexer) peek() byte {
	if l.atEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekAt(offset int) byte {
	p := l.pos + offset
	if p >= len(l.source) {
		return 0
	}
	return l.source[p]
}

func (l *Lexer) advance() byte {
	ch := l.source[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *Lexer) span(startPos, startLine, startCol int) ast.Span {
	return ast.Span{
		File:      l.filename,
		Offset:    startPos,
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   l.line,
		EndCol:    l.col,
	}
}

// skipWhitespaceAndComments reports whether anything was skipped.
func (l *Lexer) skipWhitespaceAndComments() bool {
	skipped := false
	for !l.atEnd() {
		ch := l.peek()
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' {
			l.advance()
		} else if ch == '#' {
			for !l.atEnd() && l.peek() != '\n' {
				l.advance()
			}
		} else {
			break
		}
		skipped = true
	}
	return skipped
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isAlphaNumeric(ch byte) bool {
	return isAlpha(ch) || isDigit(ch)
}

func (l *Lexer) scanString() (Token, error) {
	startPos, startLine, startCol := l.pos, l.line, l.col
	l.advance() // consume opening "

	var buf strings.Builder
	for !l.atEnd() {
		ch := l.peek()
		switch {
		case ch == '"':
			l.advance() // consume closing "
			return Token{
				Type:  TokString,
				Value: buf.String(),
				Span:  l.span(startPos, startLine, startCol),
			}, nil
		case ch == '\\':
			l.advance()
			if l.atEnd() {
				return Token{}, l.lexError(startPos, startLine, startCol, "unterminated string escape")
			}
			escPos, escLine, escCol := l.pos, l.line, l.col
			esc := l.advance()
			switch esc {
			case 'n':
				buf.WriteByte('\n')
			case 't':
				buf.WriteByte('\t')
			case '\\':
				buf.WriteByte('\\')
			case '"':
				buf.WriteByte('"')
			default:
				return Token{}, l.lexError(escPos, escLine, escCol, fmt.Sprintf("invalid escape character: \\%c", esc))
			}
		case ch == '\n':
			return Token{}, l.lexError(startPos, startLine, startCol, "unterminated string literal")
		default:
			r, size := utf8.DecodeRuneInString(l.source[l.pos:])
			if r == utf8.RuneError && size == 1 {
				return Token{}, l.lexError(l.pos, l.line, l.col, "invalid UTF-8 character in string")
			}
			buf.WriteRune(r)
			for i := 0; i < size; i++ {
				l.advance()
			}
		}
	}
	return Token{}, l.lexError(startPos, startLine, startCol, "unterminated string literal")
}

// scanNumber accepts `digits[.digits*]` and `.digits`.
func (l *Lexer) scanNumber() Token {
	startPos, startLine, startCol := l.pos, l.line, l.col

	for !l.atEnd() && isDigit(l.peek()) {
		l.advance()
	}
	if !l.atEnd() && l.peek() == '.' {
		l.advance()
		for !l.atEnd() && isDigit(l.peek()) {
			l.advance()
		}
	}

	return Token{
		Type:  TokNumber,
		Value: l.source[startPos:l.pos],
		Span:  l.span(startPos, startLine, startCol),
	}
}

func (l *Lexer) scanIdentOrKeyword() Token {
	startPos, startLine, startCol := l.pos, l.line, l.col

	for !l.atEnd() && isAlphaNumeric(l.peek()) {
		l.advance()
	}

	text := l.source[startPos:l.pos]
	typ := TokIdent
	if kw, ok := keywords[text]; ok {
		typ = kw
	}
	return Token{
		Type:  typ,
		Value: text,
		Span:  l.span(startPos, startLine, startCol),
	}
}

func (l *Lexer) lexError(pos, line, col int, msg string) error {
	diag := diagnostics.MakeDiag(
		diagnostics.ELex,
		msg,
		&ast.Span{File: l.filename, Offset: pos, StartLine: line, StartCol: col, EndLine: line, EndCol: col + 1},
		"",
	)
	return &LexError{Diag: diag, Pos: pos}
}

// LexError wraps a diagnostic for lex errors. Pos is the byte offset of the
// offending input.
type LexError struct {
	Diag diagnostics.Diagnostic
	Pos  int
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s at %d", e.Diag.Message, e.Pos)
}

// Next returns the next token. After the source is exhausted it keeps
// returning TokEOF.
func (l *Lexer) Next() (Token, error) {
	spaced := l.skipWhitespaceAndComments()

	if l.atEnd() {
		return Token{
			Type:        TokEOF,
			Span:        l.span(l.pos, l.line, l.col),
			SpaceBefore: spaced,
		}, nil
	}

	tok, err := l.scanToken()
	if err != nil {
		return Token{}, err
	}
	tok.SpaceBefore = spaced
	return tok, nil
}

func (l *Lexer) scanToken() (Token, error) {
	ch := l.peek()

	if isDigit(ch) || (ch == '.' && isDigit(l.peekAt(1))) {
		return l.scanNumber(), nil
	}
	if ch == '"' {
		return l.scanString()
	}
	if isAlpha(ch) {
		return l.scanIdentOrKeyword(), nil
	}

	startPos, startLine, startCol := l.pos, l.line, l.col
	rest := l.source[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			for range len(op.text) {
				l.advance()
			}
			return Token{Type: op.typ, Value: op.text, Span: l.span(startPos, startLine, startCol)}, nil
		}
	}

	r, _ := utf8.DecodeRuneInString(rest)
	return Token{}, l.lexError(startPos, startLine, startCol, fmt.Sprintf("unexpected character '%c'", r))
}

// All returns the token sequence from the start of the source, ending with
// TokEOF. Iteration stops after the first error. Each call restarts the
// lexer.
func (l *Lexer) All() iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		l.Reset()
		for {
			tok, err := l.Next()
			if err != nil {
				yield(Token{}, err)
				return
			}
			if !yield(tok, nil) || tok.Type == TokEOF {
				return
			}
		}
	}
}

// Tokenize breaks source code into a slice of tokens ending with TokEOF.
func Tokenize(source, filename string) ([]Token, error) {
	var tokens []Token
	for tok, err := range New(source, filename).All() {
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

var tokenNames = map[TokenType]string{
	TokNumber: "number",
	TokString: "string",
	TokIdent:  "identifier",
	TokEOF:    "end of input",
}

// String returns a human-readable token type name for diagnostics.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	for kw, typ := range keywords {
		if typ == t {
			return "'" + kw + "'"
		}
	}
	for _, op := range operators {
		if op.typ == t {
			return "'" + op.text + "'"
		}
	}
	return fmt.Sprintf("token(%d)", int(t))
}
