package evaluator_test

import (
	"errors"
	"math"
	"testing"

	"github.com/thomasrohde/mocha/go/pkg/ast"
	"github.com/thomasrohde/mocha/go/pkg/diagnostics"
	"github.com/thomasrohde/mocha/go/pkg/evaluator"
)

func num(n float64) evaluator.Value { return evaluator.NewNumber(n) }

func str(s string) evaluator.Value { return evaluator.NewString(s) }

func arr(items ...evaluator.Value) evaluator.Value { return evaluator.NewArray(items...) }

func nums(ns ...float64) evaluator.Value {
	items := make([]evaluator.Value, len(ns))
	for i, n := range ns {
		items[i] = num(n)
	}
	return evaluator.NewArray(items...)
}

func mustBinary(t *testing.T, op ast.BinaryOp, l, r evaluator.Value) evaluator.Value {
	t.Helper()
	v, err := evaluator.Binary(op, l, r)
	if err != nil {
		t.Fatalf("%s %s %s: unexpected error: %v", l, op, r, err)
	}
	return v
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var rerr *evaluator.RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RuntimeError, got %T: %v", err, err)
	}
	if rerr.Code != code {
		t.Errorf("code = %q, want %q (%s)", rerr.Code, code, rerr.Message)
	}
}

func TestTypeNames(t *testing.T) {
	tests := []struct {
		value evaluator.Value
		want  string
	}{
		{num(1), "Number"},
		{str("s"), "String"},
		{evaluator.NewBool(true), "Boolean"},
		{arr(), "Array"},
		{evaluator.Function{}, "Function"},
	}
	for _, tt := range tests {
		if got := tt.value.TypeName(); got != tt.want {
			t.Errorf("TypeName() = %q, want %q", got, tt.want)
		}
	}
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		value evaluator.Value
		want  string
	}{
		{num(3), "3"},
		{num(3.0), "3"},
		{num(-2), "-2"},
		{num(2.5), "2.5"},
		{num(0.1 + 0.2), "0.30000000000000004"},
		{num(1e21), "1e+21"},
		{num(100000), "100000"},
		{str("hi"), "hi"},
		{evaluator.NewBool(true), "true"},
		{evaluator.NewBool(false), "false"},
		{nums(1, 2, 3), "[1, 2, 3]"},
		{arr(str("a"), num(1), arr(evaluator.NewBool(true))), `["a", 1, [true]]`},
		{arr(), "[]"},
		{evaluator.Function{Name: "foo"}, "<function foo>"},
		{evaluator.Function{}, "<anonymous function object>"},
	}
	for _, tt := range tests {
		if got := tt.value.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestTruthiness(t *testing.T) {
	tests := []struct {
		value    evaluator.Value
		expected bool
	}{
		{evaluator.NewBool(false), false},
		{evaluator.NewBool(true), true},
		{num(0), false},
		{num(1), true},
		{num(-1), true},
		{str(""), false},
		{str("x"), true},
		{arr(), false},
		{nums(0), true},
		{evaluator.Function{}, true},
		{evaluator.Sentinel(), false},
	}
	for _, tt := range tests {
		if got := evaluator.Truthiness(tt.value); got != tt.expected {
			t.Errorf("Truthiness(%s) = %v, want %v", tt.value, got, tt.expected)
		}
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b evaluator.Value
		want bool
	}{
		{num(1), num(1), true},
		{num(1), num(2), false},
		{num(1), str("1"), false},
		{str("a"), str("a"), true},
		{evaluator.NewBool(false), num(0), false},
		{nums(1, 2), nums(1, 2), true},
		{nums(1, 2), nums(2, 1), false},
		{arr(nums(1)), arr(nums(1)), true},
		{nums(1), nums(1, 1), false},
		{evaluator.Function{Name: "f"}, evaluator.Function{Name: "f"}, false},
	}
	for _, tt := range tests {
		if got := evaluator.Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("Equal(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

// ---- Number ----

func TestNumberArithmetic(t *testing.T) {
	tests := []struct {
		op   ast.BinaryOp
		a, b float64
		want float64
	}{
		{ast.OpAdd, 2, 3, 5},
		{ast.OpSub, 2, 3, -1},
		{ast.OpMul, 2, 3, 6},
		{ast.OpDiv, 7, 2, 3.5},
		{ast.OpMod, 7, 3, 1},
		{ast.OpMod, -7, 3, 2},
		{ast.OpMod, 5, -3, -1},
		{ast.OpMod, -6, 3, 0},
		{ast.OpMod, 7.5, 2, 1.5},
		{ast.OpMod, -7.5, 2, 0.5},
		{ast.OpExp, 2, 10, 1024},
		{ast.OpExp, 4, 0.5, 2},
	}
	for _, tt := range tests {
		got := mustBinary(t, tt.op, num(tt.a), num(tt.b))
		if !evaluator.Equal(got, num(tt.want)) {
			t.Errorf("%v %s %v = %s, want %v", tt.a, tt.op, tt.b, got, tt.want)
		}
	}
}

func TestNumberAddSubRoundTrip(t *testing.T) {
	pairs := [][2]float64{{1, 2}, {0.1, 0.2}, {-5, 1e10}, {123.456, -0.001}, {0, 0}}
	for _, p := range pairs {
		sum := mustBinary(t, ast.OpAdd, num(p[0]), num(p[1]))
		back := mustBinary(t, ast.OpSub, sum, num(p[1]))
		got := back.(evaluator.Number).Value
		if math.Abs(got-p[0]) > 1e-6*math.Max(1, math.Abs(p[1])) {
			t.Errorf("(%v + %v) - %v = %v", p[0], p[1], p[1], got)
		}
	}
}

func TestNumberComparison(t *testing.T) {
	tests := []struct {
		op   ast.BinaryOp
		a, b float64
		want bool
	}{
		{ast.OpLt, 1, 2, true},
		{ast.OpGt, 1, 2, false},
		{ast.OpLtEq, 2, 2, true},
		{ast.OpGtEq, 1, 2, false},
		{ast.OpEqEq, 2, 2, true},
		{ast.OpNeq, 2, 2, false},
	}
	for _, tt := range tests {
		got := mustBinary(t, tt.op, num(tt.a), num(tt.b))
		if !evaluator.Equal(got, evaluator.NewBool(tt.want)) {
			t.Errorf("%v %s %v = %s, want %v", tt.a, tt.op, tt.b, got, tt.want)
		}
	}
}

func TestZeroDivision(t *testing.T) {
	_, err := evaluator.Binary(ast.OpDiv, num(1), num(0))
	expectCode(t, err, diagnostics.EZeroDiv)
	_, err = evaluator.Binary(ast.OpMod, num(1), num(0))
	expectCode(t, err, diagnostics.EZeroDiv)
}

func TestNumberUnary(t *testing.T) {
	v, _ := evaluator.Unary(ast.OpNeg, num(3))
	if !evaluator.Equal(v, num(-3)) {
		t.Errorf("-3 = %s", v)
	}
	// unary plus is absolute value
	v, _ = evaluator.Unary(ast.OpPos, num(-3))
	if !evaluator.Equal(v, num(3)) {
		t.Errorf("+(-3) = %s", v)
	}
}

func TestNumberWithOtherTypes(t *testing.T) {
	_, err := evaluator.Binary(ast.OpAdd, num(1), str("a"))
	expectCode(t, err, diagnostics.EType)
	if err.Error() != "unsupported operand types for '+': Number and String" {
		t.Errorf("message = %q", err.Error())
	}
	_, err = evaluator.Binary(ast.OpLt, num(1), nums(1))
	expectCode(t, err, diagnostics.EType)
}

// ---- String ----

func TestStringOperators(t *testing.T) {
	tests := []struct {
		name string
		op   ast.BinaryOp
		l, r evaluator.Value
		want evaluator.Value
	}{
		{"concat", ast.OpAdd, str("ab"), str("cd"), str("abcd")},
		{"concat number", ast.OpAdd, str("n="), num(4), str("n=4")},
		{"concat array", ast.OpAdd, str("a"), nums(1, 2), str("a[1, 2]")},
		{"remove first", ast.OpSub, str("banana"), str("an"), str("bana")},
		{"remove missing", ast.OpSub, str("abc"), str("z"), str("abc")},
		{"remove number", ast.OpSub, str("a1b1"), num(1), str("ab1")},
		{"repeat", ast.OpMul, str("ko"), num(3), str("kokoko")},
		{"repeat fractional", ast.OpMul, str("ab"), num(2.9), str("abab")},
		{"repeat zero", ast.OpMul, str("ab"), num(0), str("")},
		{"repeat negative", ast.OpMul, str("ab"), num(-1), str("")},
		{"template", ast.OpMod, str("hello {}!"), str("world"), str("hello world!")},
		{"template all", ast.OpMod, str("{}-{}"), num(7), str("7-7")},
		{"template none", ast.OpMod, str("plain"), num(7), str("plain")},
		{"index", ast.OpDiv, str("hello"), num(1), str("e")},
		{"index negative", ast.OpDiv, str("hello"), num(-1), str("o")},
		{"index unicode", ast.OpDiv, str("héllo"), num(1), str("é")},
		{"length lt", ast.OpLt, str("zz"), str("aaa"), evaluator.NewBool(true)},
		{"length gt", ast.OpGt, str("zz"), str("aaa"), evaluator.NewBool(false)},
		{"length vs array", ast.OpGtEq, str("abc"), nums(1, 2, 3), evaluator.NewBool(true)},
		{"equal", ast.OpEqEq, str("a"), str("a"), evaluator.NewBool(true)},
		{"not equal other type", ast.OpNeq, str("1"), num(1), evaluator.NewBool(true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustBinary(t, tt.op, tt.l, tt.r)
			if !evaluator.Equal(got, tt.want) {
				t.Errorf("got %s (%s), want %s", evaluator.Repr(got), got.TypeName(), evaluator.Repr(tt.want))
			}
		})
	}
}

func TestStringErrors(t *testing.T) {
	_, err := evaluator.Binary(ast.OpDiv, str("abc"), num(3))
	expectCode(t, err, diagnostics.EIndex)
	_, err = evaluator.Binary(ast.OpMul, str("abc"), str("x"))
	expectCode(t, err, diagnostics.EType)
	_, err = evaluator.Binary(ast.OpExp, str("abc"), num(2))
	expectCode(t, err, diagnostics.EType)
	_, err = evaluator.Binary(ast.OpLt, str("abc"), num(2))
	expectCode(t, err, diagnostics.EType)
}

func TestStringUnary(t *testing.T) {
	up, _ := evaluator.Unary(ast.OpPos, str("MiXed"))
	low, _ := evaluator.Unary(ast.OpNeg, str("MiXed"))
	if up.String() != "MIXED" || low.String() != "mixed" {
		t.Errorf("upper %q lower %q", up, low)
	}
}

// ---- Array ----

func TestArrayOperators(t *testing.T) {
	tests := []struct {
		name string
		op   ast.BinaryOp
		l, r evaluator.Value
		want evaluator.Value
	}{
		{"append", ast.OpAdd, nums(1, 2), num(3), nums(1, 2, 3)},
		{"merge", ast.OpAdd, nums(1), nums(2, 3), nums(1, 2, 3)},
		{"append string", ast.OpAdd, arr(), str("x"), arr(str("x"))},
		{"remove first", ast.OpSub, nums(1, 2, 1), num(1), nums(2, 1)},
		{"remove missing", ast.OpSub, nums(1, 2), num(5), nums(1, 2)},
		{"remove nested", ast.OpSub, arr(nums(1), num(2)), nums(1), nums(2)},
		{"repeat", ast.OpMul, nums(1, 2), num(2), nums(1, 2, 1, 2)},
		{"repeat zero", ast.OpMul, nums(1, 2), num(0), arr()},
		{"index", ast.OpDiv, nums(2, 4, 6), num(0), num(2)},
		{"index negative", ast.OpDiv, nums(2, 4, 6), num(-1), num(6)},
		{"index floor", ast.OpDiv, nums(2, 4, 6), num(1.7), num(4)},
		{"length lt", ast.OpLt, nums(1), nums(1, 2), evaluator.NewBool(true)},
		{"equal", ast.OpEqEq, nums(1, 2), nums(1, 2), evaluator.NewBool(true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustBinary(t, tt.op, tt.l, tt.r)
			if !evaluator.Equal(got, tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestArrayOperandsAreNotMutated(t *testing.T) {
	base := nums(1, 2)
	mustBinary(t, ast.OpAdd, base, num(3))
	mustBinary(t, ast.OpSub, base, num(1))
	evaluator.Unary(ast.OpNeg, base)
	if !evaluator.Equal(base, nums(1, 2)) {
		t.Errorf("operand changed to %s", base)
	}
}

func TestArrayIndexSymmetry(t *testing.T) {
	a := nums(10, 20, 30, 40)
	length := 4
	for n := 0; n < length; n++ {
		pos := mustBinary(t, ast.OpDiv, a, num(float64(n)))
		neg := mustBinary(t, ast.OpDiv, a, num(float64(n-length)))
		if !evaluator.Equal(pos, neg) {
			t.Errorf("index %d = %s but index %d = %s", n, pos, n-length, neg)
		}
	}
}

func TestArrayIndexOutOfRange(t *testing.T) {
	for _, i := range []float64{3, -4, 100, math.NaN(), math.Inf(1)} {
		_, err := evaluator.Binary(ast.OpDiv, nums(1, 2, 3), num(i))
		expectCode(t, err, diagnostics.EIndex)
	}
	_, err := evaluator.Binary(ast.OpDiv, arr(), num(0))
	expectCode(t, err, diagnostics.EIndex)
}

func TestArrayUnary(t *testing.T) {
	rev, err := evaluator.Unary(ast.OpNeg, nums(1, 2, 3))
	if err != nil || !evaluator.Equal(rev, nums(3, 2, 1)) {
		t.Errorf("-[1,2,3] = %v, %v", rev, err)
	}
	_, err = evaluator.Unary(ast.OpPos, nums(1))
	expectCode(t, err, diagnostics.EType)
}

func TestArrayErrors(t *testing.T) {
	_, err := evaluator.Binary(ast.OpMod, nums(1), num(1))
	expectCode(t, err, diagnostics.EType)
	_, err = evaluator.Binary(ast.OpMul, nums(1), nums(1))
	expectCode(t, err, diagnostics.EType)
}

// ---- Boolean, logical, Function ----

func TestLogical(t *testing.T) {
	tests := []struct {
		op   ast.BinaryOp
		l, r evaluator.Value
		want bool
	}{
		{ast.OpAnd, evaluator.NewBool(true), num(1), true},
		{ast.OpAnd, str("x"), arr(), false},
		{ast.OpOr, num(0), str(""), false},
		{ast.OpOr, num(0), nums(0), true},
	}
	for _, tt := range tests {
		got := mustBinary(t, tt.op, tt.l, tt.r)
		if !evaluator.Equal(got, evaluator.NewBool(tt.want)) {
			t.Errorf("%s %s %s = %s, want %v", tt.l, tt.op, tt.r, got, tt.want)
		}
	}
}

func TestBooleanArithmeticFails(t *testing.T) {
	_, err := evaluator.Binary(ast.OpAdd, evaluator.NewBool(true), num(1))
	expectCode(t, err, diagnostics.EType)
	_, err = evaluator.Unary(ast.OpNeg, evaluator.NewBool(true))
	expectCode(t, err, diagnostics.EType)
}

func TestFunctionOperatorsFail(t *testing.T) {
	fn := evaluator.Function{Name: "f"}
	ops := []ast.BinaryOp{
		ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod, ast.OpExp,
		ast.OpLt, ast.OpGt, ast.OpLtEq, ast.OpGtEq, ast.OpEqEq, ast.OpNeq, ast.OpAnd, ast.OpOr,
	}
	for _, op := range ops {
		_, err := evaluator.Binary(op, fn, num(1))
		expectCode(t, err, diagnostics.EType)
		_, err = evaluator.Binary(op, num(1), fn)
		expectCode(t, err, diagnostics.EType)
	}
	_, err := evaluator.Unary(ast.OpNeg, fn)
	expectCode(t, err, diagnostics.EType)
	if err.Error() != "bad operand type for unary '-': Function" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestEqualityRejectsNestedFunctions(t *testing.T) {
	fn := evaluator.Function{Name: "f"}
	nested := arr(num(1), arr(fn))
	for _, op := range []ast.BinaryOp{ast.OpEqEq, ast.OpNeq} {
		_, err := evaluator.Binary(op, nested, nested)
		expectCode(t, err, diagnostics.EType)
		_, err = evaluator.Binary(op, nums(1), nested)
		expectCode(t, err, diagnostics.EType)
	}
	if got := mustBinary(t, ast.OpEqEq, nums(1, 2), nums(1, 2)); !evaluator.Equal(got, evaluator.NewBool(true)) {
		t.Errorf("[1, 2] == [1, 2] = %v", got)
	}
}

// ---- Contains and ranges ----

func TestContains(t *testing.T) {
	tests := []struct {
		item, container evaluator.Value
		want            bool
	}{
		{num(4), nums(2, 4, 6), true},
		{num(3), nums(2, 4, 6), false},
		{nums(1), arr(nums(1)), true},
		{str("4"), nums(4), false},
		{str("ell"), str("hello"), true},
		{str("xyz"), str("hello"), false},
		{num(1), str("a1"), true},
	}
	for _, tt := range tests {
		got, err := evaluator.Contains(tt.item, tt.container)
		if err != nil {
			t.Fatalf("%s in %s: %v", tt.item, tt.container, err)
		}
		if !evaluator.Equal(got, evaluator.NewBool(tt.want)) {
			t.Errorf("%s in %s = %s, want %v", tt.item, tt.container, got, tt.want)
		}
	}

	_, err := evaluator.Contains(num(1), num(1))
	expectCode(t, err, diagnostics.EType)
	_, err = evaluator.Contains(evaluator.Function{}, nums(1))
	expectCode(t, err, diagnostics.EType)
}

func TestMakeRange(t *testing.T) {
	tests := []struct {
		from, to float64
		want     evaluator.Value
	}{
		{1, 3, nums(1, 2, 3)},
		{3, 1, arr()},
		{2, 2, nums(2)},
		{1.7, 3.2, nums(1, 2, 3)},
		{-2, 0, nums(-2, -1, 0)},
	}
	for _, tt := range tests {
		got, err := evaluator.MakeRange(num(tt.from), num(tt.to))
		if err != nil {
			t.Fatal(err)
		}
		if !evaluator.Equal(got, tt.want) {
			t.Errorf("%v to %v = %s, want %s", tt.from, tt.to, got, tt.want)
		}
	}

	_, err := evaluator.MakeRange(str("a"), num(3))
	expectCode(t, err, diagnostics.EType)
	_, err = evaluator.MakeRange(num(0), num(1e12))
	expectCode(t, err, diagnostics.EBudget)
}

func TestSequenceCapability(t *testing.T) {
	seqs := []evaluator.Sequence{evaluator.String{Value: "abc"}, evaluator.Array{Items: []evaluator.Value{num(1), num(2), num(3)}}}
	for _, s := range seqs {
		if s.Len() != 3 {
			t.Errorf("%s: Len() = %d", s.TypeName(), s.Len())
		}
		rev := s.Reverse().(evaluator.Sequence)
		if !evaluator.Equal(rev.At(0), s.At(2)) {
			t.Errorf("%s: reverse mismatch", s.TypeName())
		}
		if rep := s.Repeat(2).(evaluator.Sequence); rep.Len() != 6 {
			t.Errorf("%s: Repeat(2).Len() = %d", s.TypeName(), rep.Len())
		}
	}
}

func TestValueToJSON(t *testing.T) {
	tests := []struct {
		value evaluator.Value
		want  string
	}{
		{num(3), "3"},
		{num(2.5), "2.5"},
		{str("a\"b"), `"a\"b"`},
		{evaluator.NewBool(true), "true"},
		{arr(num(1), str("x"), arr()), `[1,"x",[]]`},
		{evaluator.Function{Name: "f"}, `"<function f>"`},
		{num(math.Inf(1)), `"+Inf"`},
	}
	for _, tt := range tests {
		if got := evaluator.ValueToJSONString(tt.value); got != tt.want {
			t.Errorf("ValueToJSONString(%s) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestFrameToJSON(t *testing.T) {
	b, err := evaluator.FrameToJSON(evaluator.Frame{"b": num(2), "a": str("x")})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":"x","b":2}` {
		t.Errorf("got %s", b)
	}
}
