// Package evaluator implements the MochaScript runtime: values, operator
// dispatch, the frame stack and the tree-walking evaluator.
package evaluator

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/thomasrohde/mocha/go/pkg/ast"
)

// Value is the interface for all MochaScript runtime values. Values are
// immutable; operators always produce new values.
type Value interface {
	// TypeName is the variant tag used in error messages.
	TypeName() string
	// String returns the display form written by say, ask and exit.
	String() string
	mochaValue() // sealed marker
}

// Number is a double-precision number.
type Number struct {
	Value float64
}

// String is a sequence of characters.
type String struct {
	Value string
}

// Boolean is true or false.
type Boolean struct {
	Value bool
}

// Array is an ordered sequence of values.
type Array struct {
	Items []Value
}

// Function is a function value: its body, parameter names, and the closure
// snapshot merged into every call frame. Name is empty for anonymous
// functions.
type Function struct {
	Name    string
	Params  []string
	Body    ast.Expr
	Closure Frame
}

func (Number) mochaValue()   {}
func (String) mochaValue()   {}
func (Boolean) mochaValue()  {}
func (Array) mochaValue()    {}
func (Function) mochaValue() {}

func (Number) TypeName() string   { return "Number" }
func (String) TypeName() string   { return "String" }
func (Boolean) TypeName() string  { return "Boolean" }
func (Array) TypeName() string    { return "Array" }
func (Function) TypeName() string { return "Function" }

func (n Number) String() string { return FormatNumber(n.Value) }

func (s String) String() string { return s.Value }

func (b Boolean) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

func (a Array) String() string {
	parts := make([]string, len(a.Items))
	for i, item := range a.Items {
		parts[i] = Repr(item)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (f Function) String() string {
	if f.Name == "" {
		return "<anonymous function object>"
	}
	return "<function " + f.Name + ">"
}

// NewNumber creates a numeric value.
func NewNumber(n float64) Value {
	return Number{Value: n}
}

// NewString creates a string value.
func NewString(s string) Value {
	return String{Value: s}
}

// NewBool creates a boolean value.
func NewBool(b bool) Value {
	return Boolean{Value: b}
}

// NewArray creates an array value.
func NewArray(items ...Value) Value {
	return Array{Items: items}
}

// Sentinel is the result of an if without else whose condition failed, a
// loop that never ran its body, and an empty block.
func Sentinel() Value {
	return Boolean{Value: false}
}

// FormatNumber renders integral numbers without a fractional part.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e21 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// Repr is the display form used for array elements: strings are quoted,
// everything else renders as with String.
func Repr(v Value) string {
	if s, ok := v.(String); ok {
		return strconv.Quote(s.Value)
	}
	return v.String()
}

// Truthiness returns the boolean interpretation of a value.
// false, 0, "" and [] are falsy; functions are always truthy.
func Truthiness(v Value) bool {
	switch val := v.(type) {
	case Boolean:
		return val.Value
	case Number:
		return val.Value != 0
	case String:
		return val.Value != ""
	case Array:
		return len(val.Items) > 0
	default:
		return true
	}
}

// Equal reports whether a and b have the same variant and representation.
// Arrays compare element-wise. Functions are never equal.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Number:
		bv, ok := b.(Number)
		return ok && av.Value == bv.Value
	case String:
		bv, ok := b.(String)
		return ok && av.Value == bv.Value
	case Boolean:
		bv, ok := b.(Boolean)
		return ok && av.Value == bv.Value
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Sequence is the capability shared by String and Array: both are
// indexable, repeatable and reversible.
type Sequence interface {
	Value
	Len() int
	// At returns the element at i, which must be in range.
	At(i int) Value
	Repeat(n int) Value
	Reverse() Value
}

var (
	_ Sequence = String{}
	_ Sequence = Array{}
)

func (s String) Len() int { return utf8.RuneCountInString(s.Value) }

func (s String) At(i int) Value {
	return String{Value: string([]rune(s.Value)[i])}
}

func (s String) Repeat(n int) Value {
	if n <= 0 {
		return String{}
	}
	return String{Value: strings.Repeat(s.Value, n)}
}

func (s String) Reverse() Value {
	runes := []rune(s.Value)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return String{Value: string(runes)}
}

func (a Array) Len() int { return len(a.Items) }

func (a Array) At(i int) Value { return a.Items[i] }

func (a Array) Repeat(n int) Value {
	if n <= 0 {
		return Array{Items: []Value{}}
	}
	items := make([]Value, 0, len(a.Items)*n)
	for range n {
		items = append(items, a.Items...)
	}
	return Array{Items: items}
}

func (a Array) Reverse() Value {
	items := make([]Value, len(a.Items))
	for i, item := range a.Items {
		items[len(items)-1-i] = item
	}
	return Array{Items: items}
}
