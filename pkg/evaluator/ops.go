package evaluator

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/thomasrohde/mocha/go/pkg/ast"
	"github.com/thomasrohde/mocha/go/pkg/diagnostics"
)

// maxSequenceLen bounds repeats and ranges so a single operator cannot
// exhaust memory.
const maxSequenceLen = 1 << 24

func typeMismatch(op string, left, right Value) error {
	return &RuntimeError{
		Code:    diagnostics.EType,
		Message: fmt.Sprintf("unsupported operand types for '%s': %s and %s", op, left.TypeName(), right.TypeName()),
	}
}

func badUnary(op ast.UnaryOp, v Value) error {
	return &RuntimeError{
		Code:    diagnostics.EType,
		Message: fmt.Sprintf("bad operand type for unary '%s': %s", op, v.TypeName()),
	}
}

// Binary applies a binary operator to two reduced operands. Dispatch is on
// the left operand's variant.
func Binary(op ast.BinaryOp, left, right Value) (Value, error) {
	_, lf := left.(Function)
	_, rf := right.(Function)
	if lf || rf {
		return nil, typeMismatch(string(op), left, right)
	}

	switch op {
	case ast.OpAnd:
		return NewBool(Truthiness(left) && Truthiness(right)), nil
	case ast.OpOr:
		return NewBool(Truthiness(left) || Truthiness(right)), nil
	case ast.OpEqEq, ast.OpNeq:
		if containsFunction(left) || containsFunction(right) {
			return nil, &RuntimeError{
				Code:    diagnostics.EType,
				Message: fmt.Sprintf("cannot compare arrays containing functions with '%s'", op),
			}
		}
		return NewBool(Equal(left, right) == (op == ast.OpEqEq)), nil
	}

	switch l := left.(type) {
	case Number:
		return numberBinary(op, l, right)
	case String:
		return stringBinary(op, l, right)
	case Array:
		return arrayBinary(op, l, right)
	}
	return nil, typeMismatch(string(op), left, right)
}

func containsFunction(v Value) bool {
	switch v := v.(type) {
	case Function:
		return true
	case Array:
		for _, item := range v.Items {
			if containsFunction(item) {
				return true
			}
		}
	}
	return false
}

func numberBinary(op ast.BinaryOp, l Number, right Value) (Value, error) {
	r, ok := right.(Number)
	if !ok {
		return nil, typeMismatch(string(op), l, right)
	}
	a, b := l.Value, r.Value
	switch op {
	case ast.OpAdd:
		return NewNumber(a + b), nil
	case ast.OpSub:
		return NewNumber(a - b), nil
	case ast.OpMul:
		return NewNumber(a * b), nil
	case ast.OpDiv:
		if b == 0 {
			return nil, &RuntimeError{Code: diagnostics.EZeroDiv, Message: "division by zero"}
		}
		return NewNumber(a / b), nil
	case ast.OpMod:
		if b == 0 {
			return nil, &RuntimeError{Code: diagnostics.EZeroDiv, Message: "modulo by zero"}
		}
		// Floored: the result takes the sign of the divisor.
		r := math.Mod(a, b)
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return NewNumber(r), nil
	case ast.OpExp:
		return NewNumber(math.Pow(a, b)), nil
	case ast.OpLt:
		return NewBool(a < b), nil
	case ast.OpGt:
		return NewBool(a > b), nil
	case ast.OpLtEq:
		return NewBool(a <= b), nil
	case ast.OpGtEq:
		return NewBool(a >= b), nil
	}
	return nil, typeMismatch(string(op), l, right)
}

func stringBinary(op ast.BinaryOp, l String, right Value) (Value, error) {
	switch op {
	case ast.OpAdd:
		return NewString(l.Value + right.String()), nil
	case ast.OpSub:
		return NewString(strings.Replace(l.Value, right.String(), "", 1)), nil
	case ast.OpMod:
		return NewString(strings.ReplaceAll(l.Value, "{}", right.String())), nil
	}
	return sequenceBinary(op, l, right)
}

func arrayBinary(op ast.BinaryOp, l Array, right Value) (Value, error) {
	switch op {
	case ast.OpAdd:
		items := make([]Value, 0, len(l.Items)+1)
		items = append(items, l.Items...)
		if r, ok := right.(Array); ok {
			items = append(items, r.Items...)
		} else {
			items = append(items, right)
		}
		return Array{Items: items}, nil
	case ast.OpSub:
		items := make([]Value, 0, len(l.Items))
		removed := false
		for _, item := range l.Items {
			if !removed && Equal(item, right) {
				removed = true
				continue
			}
			items = append(items, item)
		}
		return Array{Items: items}, nil
	}
	return sequenceBinary(op, l, right)
}

// sequenceBinary holds the operators String and Array share: repeat, index
// and length comparison.
func sequenceBinary(op ast.BinaryOp, l Sequence, right Value) (Value, error) {
	switch op {
	case ast.OpMul:
		n, ok := right.(Number)
		if !ok {
			return nil, typeMismatch(string(op), l, right)
		}
		return repeat(l, n.Value)
	case ast.OpDiv:
		n, ok := right.(Number)
		if !ok {
			return nil, typeMismatch(string(op), l, right)
		}
		return Index(l, n.Value)
	case ast.OpLt, ast.OpGt, ast.OpLtEq, ast.OpGtEq:
		r, ok := right.(Sequence)
		if !ok {
			return nil, typeMismatch(string(op), l, right)
		}
		a, b := l.Len(), r.Len()
		switch op {
		case ast.OpLt:
			return NewBool(a < b), nil
		case ast.OpGt:
			return NewBool(a > b), nil
		case ast.OpLtEq:
			return NewBool(a <= b), nil
		default:
			return NewBool(a >= b), nil
		}
	}
	return nil, typeMismatch(string(op), l, right)
}

func repeat(seq Sequence, count float64) (Value, error) {
	n := math.Floor(count)
	if n <= 0 || seq.Len() == 0 {
		return seq.Repeat(0), nil
	}
	if n*float64(seq.Len()) > maxSequenceLen {
		return nil, &RuntimeError{
			Code:    diagnostics.EBudget,
			Message: fmt.Sprintf("repeating a %s of length %d by %s exceeds the maximum length %d", seq.TypeName(), seq.Len(), FormatNumber(count), maxSequenceLen),
		}
	}
	return seq.Repeat(int(n)), nil
}

// Index returns the element at floor(i); negative indices count from the
// end.
func Index(seq Sequence, i float64) (Value, error) {
	length := seq.Len()
	idx := math.Floor(i)
	if idx < 0 {
		idx += float64(length)
	}
	if idx < 0 || idx >= float64(length) || math.IsNaN(idx) {
		return nil, &RuntimeError{
			Code:    diagnostics.EIndex,
			Message: fmt.Sprintf("index %s out of range for %s of length %d", FormatNumber(i), seq.TypeName(), length),
		}
	}
	return seq.At(int(idx)), nil
}

// Unary applies a prefix operator.
func Unary(op ast.UnaryOp, v Value) (Value, error) {
	switch val := v.(type) {
	case Number:
		if op == ast.OpNeg {
			return NewNumber(-val.Value), nil
		}
		return NewNumber(math.Abs(val.Value)), nil
	case String:
		// Casers carry state, so each call gets its own.
		if op == ast.OpNeg {
			return NewString(cases.Lower(language.Und).String(val.Value)), nil
		}
		return NewString(cases.Upper(language.Und).String(val.Value)), nil
	case Array:
		if op == ast.OpNeg {
			return val.Reverse(), nil
		}
	}
	return nil, badUnary(op, v)
}

// Contains implements `item in container`: substring membership for a String
// container, structural membership for an Array.
func Contains(item, container Value) (Value, error) {
	if _, ok := item.(Function); ok {
		return nil, typeMismatch("in", item, container)
	}
	switch c := container.(type) {
	case String:
		return NewBool(strings.Contains(c.Value, item.String())), nil
	case Array:
		for _, elem := range c.Items {
			if Equal(elem, item) {
				return NewBool(true), nil
			}
		}
		return NewBool(false), nil
	}
	return nil, typeMismatch("in", item, container)
}

// MakeRange builds the inclusive ascending Array floor(from)..floor(to).
// from > to yields an empty Array.
func MakeRange(from, to Value) (Value, error) {
	a, aok := from.(Number)
	b, bok := to.(Number)
	if !aok || !bok {
		return nil, typeMismatch("to", from, to)
	}
	lo, hi := math.Floor(a.Value), math.Floor(b.Value)
	if lo > hi || math.IsNaN(lo) || math.IsNaN(hi) {
		return Array{Items: []Value{}}, nil
	}
	if hi-lo+1 > maxSequenceLen {
		return nil, &RuntimeError{
			Code:    diagnostics.EBudget,
			Message: fmt.Sprintf("range %s to %s exceeds the maximum length %d", FormatNumber(a.Value), FormatNumber(b.Value), maxSequenceLen),
		}
	}
	items := make([]Value, 0, int(hi-lo)+1)
	for n := lo; n <= hi; n++ {
		items = append(items, NewNumber(n))
	}
	return Array{Items: items}, nil
}
