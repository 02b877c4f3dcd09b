// Package formatter implements the MochaScript source code formatter.
package formatter

import (
	"strconv"
	"strings"

	"github.com/thomasrohde/mocha/go/pkg/ast"
)

// Binding levels, loosest first. Level 0 covers assignment, the built-in
// statements, the prefix control forms and function literals: anything whose
// tail is a full expression.
const (
	precStmt = iota
	precOr
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
	precExponent
	precRangeIn
	precUnary
	precAtom
)

// Precedence table for binary operators (higher = tighter binding)
var precedence = map[ast.BinaryOp]int{
	ast.OpOr: precOr, ast.OpAnd: precAnd,
	ast.OpEqEq: precEquality, ast.OpNeq: precEquality,
	ast.OpGt: precRelational, ast.OpLt: precRelational, ast.OpGtEq: precRelational, ast.OpLtEq: precRelational,
	ast.OpAdd: precAdditive, ast.OpSub: precAdditive,
	ast.OpMul: precMultiplicative, ast.OpDiv: precMultiplicative, ast.OpMod: precMultiplicative,
	ast.OpExp: precExponent,
}

func exprPrec(e ast.Expr) int {
	if ast.IsLiteral(e) {
		return precAtom
	}
	switch n := e.(type) {
	case *ast.BinOp:
		return precedence[n.Op]
	case *ast.Range, *ast.Contains:
		return precRangeIn
	case *ast.UnOp:
		return precUnary
	case *ast.If:
		if n.Infix {
			return precAtom
		}
		return precStmt
	case *ast.Ref, *ast.ArrayLit, *ast.Block, *ast.Call:
		return precAtom
	}
	return precStmt
}

// Format pretty-prints a program back to source code. Top-level statements
// are separated by ";\n". Formatting is idempotent: formatting the parse of
// Format's output yields the same text.
func Format(program *ast.Block) string {
	if program == nil || len(program.Exprs) == 0 {
		return ""
	}
	lines := make([]string, len(program.Exprs))
	for i, e := range program.Exprs {
		lines[i] = formatExpr(e)
	}
	return strings.Join(lines, ";\n") + "\n"
}

// HasComments checks if a source string contains comments (# prefix), which
// formatting would drop.
func HasComments(source string) bool {
	inString := false
	escaped := false
	for i := 0; i < len(source); i++ {
		ch := source[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case ch == '\n':
			inString = false
		case !inString && ch == '#':
			return true
		}
	}
	return false
}

// wrap formats e, parenthesizing it when it binds looser than level.
func wrap(e ast.Expr, level int) string {
	s := formatExpr(e)
	if exprPrec(e) < level {
		return "(" + s + ")"
	}
	return s
}

// body formats the body of a control form. Bodies are always parenthesized
// so that a following `else` or statement cannot attach to them.
func body(e ast.Expr) string {
	if _, ok := e.(*ast.Block); ok {
		return formatExpr(e)
	}
	return "(" + formatExpr(e) + ")"
}

func formatExpr(e ast.Expr) string {
	switch expr := e.(type) {
	case *ast.NumberLit:
		return strconv.FormatFloat(expr.Value, 'f', -1, 64)
	case *ast.StringLit:
		return quote(expr.Value)
	case *ast.BoolLit:
		if expr.Value {
			return "true"
		}
		return "false"
	case *ast.Ref:
		return expr.Name
	case *ast.ArrayLit:
		return "[" + formatList(expr.Elements) + "]"
	case *ast.FnLit:
		head := "fn "
		if expr.Name != "" {
			head += expr.Name + " "
		}
		return head + "(" + strings.Join(expr.Params, ", ") + ") -> " + formatExpr(expr.Body)

	case *ast.BinOp:
		p := precedence[expr.Op]
		left, right := p, p+1
		if expr.Op == ast.OpExp {
			left, right = p+1, p
		}
		return wrap(expr.Left, left) + " " + string(expr.Op) + " " + wrap(expr.Right, right)
	case *ast.UnOp:
		return string(expr.Op) + wrap(expr.Operand, precUnary)
	case *ast.Range:
		return wrap(expr.From, precRangeIn) + " to " + wrap(expr.To, precUnary)
	case *ast.Contains:
		return wrap(expr.Item, precRangeIn) + " in " + wrap(expr.Container, precUnary)

	case *ast.If:
		if expr.Infix {
			return "(" + wrap(expr.Then, precOr) + " if " + wrap(expr.Cond, precOr) + " else " + formatExpr(expr.Else) + ")"
		}
		out := "if " + wrap(expr.Cond, precOr) + " " + body(expr.Then)
		if expr.Else != nil {
			out += " else " + body(expr.Else)
		}
		return out
	case *ast.While:
		return "while " + wrap(expr.Cond, precOr) + " " + body(expr.Body)
	case *ast.For:
		return "for " + expr.Var + " in " + wrap(expr.Iterable, precOr) + " " + body(expr.Body)
	case *ast.Block:
		return formatBlock(expr)

	case *ast.Assign:
		return expr.Name + " = " + formatExpr(expr.Value)
	case *ast.InPlaceAssign:
		return expr.Name + " " + string(expr.Op) + "= " + formatExpr(expr.Value)
	case *ast.Call:
		return wrap(expr.Callee, precAtom) + "(" + formatList(expr.Args) + ")"

	case *ast.Say:
		return "say " + formatExpr(expr.Value)
	case *ast.Ask:
		return "ask " + formatExpr(expr.Prompt)
	case *ast.Exit:
		if expr.Value == nil {
			return "exit"
		}
		// a bare `if` after exit would end its operand
		return "exit " + wrap(expr.Value, precOr)
	}
	return ""
}

// formatBlock renders a block in parentheses. A single statement keeps its
// trailing `;` so it still parses as a block rather than a grouping.
func formatBlock(b *ast.Block) string {
	switch len(b.Exprs) {
	case 0:
		return "()"
	case 1:
		return "(" + formatExpr(b.Exprs[0]) + ";)"
	}
	parts := make([]string, len(b.Exprs))
	for i, e := range b.Exprs {
		parts[i] = formatExpr(e)
	}
	return "(" + strings.Join(parts, "; ") + ")"
}

func formatList(items []ast.Expr) string {
	parts := make([]string, len(items))
	for i, e := range items {
		parts[i] = formatExpr(e)
	}
	return strings.Join(parts, ", ")
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
