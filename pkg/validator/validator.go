// Package validator implements static checks on MochaScript programs.
//
// Scoping in MochaScript is dynamic (a function sees its caller's frame), so
// the validator does not attempt per-scope resolution. A reference is
// reported only when no construct anywhere in the program binds that name.
package validator

import (
	"fmt"

	"github.com/thomasrohde/mocha/go/pkg/ast"
	"github.com/thomasrohde/mocha/go/pkg/diagnostics"
)

type validator struct {
	diags []diagnostics.Diagnostic
	bound map[string]bool
}

// Validate performs semantic analysis on a program and returns diagnostics
// in source order.
func Validate(program *ast.Block) []diagnostics.Diagnostic {
	v := &validator{bound: make(map[string]bool)}
	if program == nil {
		return nil
	}

	// First pass: collect every name the program can bind.
	walk(program, func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.Assign:
			v.bound[n.Name] = true
		case *ast.For:
			v.bound[n.Var] = true
		case *ast.FnLit:
			if n.Name != "" {
				v.bound[n.Name] = true
			}
			for _, p := range n.Params {
				v.bound[p] = true
			}
		}
	})

	// Second pass: check references and parameter lists.
	walk(program, func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.Ref:
			v.checkBound(n.Name, n.Span)
		case *ast.InPlaceAssign:
			v.checkBound(n.Name, n.Span)
		case *ast.FnLit:
			v.checkParams(n)
		}
	})

	return v.diags
}

func (v *validator) addDiag(code, msg string, span ast.Span) {
	v.diags = append(v.diags, diagnostics.MakeDiag(code, msg, &span, ""))
}

func (v *validator) checkBound(name string, span ast.Span) {
	if !v.bound[name] {
		v.addDiag(diagnostics.EUnbound, fmt.Sprintf("unbound variable '%s'", name), span)
	}
}

func (v *validator) checkParams(fn *ast.FnLit) {
	seen := make(map[string]bool, len(fn.Params))
	for _, p := range fn.Params {
		if seen[p] {
			v.addDiag(diagnostics.EDupParam, fmt.Sprintf("duplicate parameter '%s'", p), fn.Span)
			continue
		}
		seen[p] = true
	}
}

// walk visits e and its children in source order.
func walk(e ast.Expr, visit func(ast.Expr)) {
	if e == nil {
		return
	}
	visit(e)

	switch n := e.(type) {
	case *ast.ArrayLit:
		for _, el := range n.Elements {
			walk(el, visit)
		}
	case *ast.FnLit:
		walk(n.Body, visit)
	case *ast.BinOp:
		walk(n.Left, visit)
		walk(n.Right, visit)
	case *ast.UnOp:
		walk(n.Operand, visit)
	case *ast.Range:
		walk(n.From, visit)
		walk(n.To, visit)
	case *ast.Contains:
		walk(n.Item, visit)
		walk(n.Container, visit)
	case *ast.If:
		if n.Infix {
			walk(n.Then, visit)
			walk(n.Cond, visit)
		} else {
			walk(n.Cond, visit)
			walk(n.Then, visit)
		}
		walk(n.Else, visit)
	case *ast.While:
		walk(n.Cond, visit)
		walk(n.Body, visit)
	case *ast.For:
		walk(n.Iterable, visit)
		walk(n.Body, visit)
	case *ast.Block:
		for _, x := range n.Exprs {
			walk(x, visit)
		}
	case *ast.Assign:
		walk(n.Value, visit)
	case *ast.InPlaceAssign:
		walk(n.Value, visit)
	case *ast.Call:
		walk(n.Callee, visit)
		for _, a := range n.Args {
			walk(a, visit)
		}
	case *ast.Say:
		walk(n.Value, visit)
	case *ast.Ask:
		walk(n.Prompt, visit)
	case *ast.Exit:
		walk(n.Value, visit)
	}
}
