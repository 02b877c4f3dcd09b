// Package ast defines the MochaScript AST node types.
package ast

// Span represents a source location range.
type Span struct {
	File      string `json:"file"`
	Offset    int    `json:"offset"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Kind() string
	NodeSpan() Span
}

// BinaryOp represents a binary operator.
type BinaryOp string

const (
	OpAdd  BinaryOp = "+"
	OpSub  BinaryOp = "-"
	OpMul  BinaryOp = "*"
	OpDiv  BinaryOp = "/"
	OpMod  BinaryOp = "%"
	OpExp  BinaryOp = "**"
	OpLt   BinaryOp = "<"
	OpGt   BinaryOp = ">"
	OpLtEq BinaryOp = "<="
	OpGtEq BinaryOp = ">="
	OpEqEq BinaryOp = "=="
	OpNeq  BinaryOp = "!="
	OpAnd  BinaryOp = "&&"
	OpOr   BinaryOp = "||"
)

// UnaryOp represents a unary prefix operator.
type UnaryOp string

const (
	OpNeg UnaryOp = "-"
	OpPos UnaryOp = "+"
)

// Expr is the interface for all expression nodes. Every MochaScript construct
// is an expression.
type Expr interface {
	Node
	exprNode() // sealed marker
}

// --- Literals ---

type NumberLit struct {
	Span  Span
	Value float64
	Raw   string
}

func (n *NumberLit) Kind() string   { return "NumberLit" }
func (n *NumberLit) NodeSpan() Span { return n.Span }
func (n *NumberLit) exprNode()      {}

type StringLit struct {
	Span  Span
	Value string
}

func (n *StringLit) Kind() string   { return "StringLit" }
func (n *StringLit) NodeSpan() Span { return n.Span }
func (n *StringLit) exprNode()      {}

type BoolLit struct {
	Span  Span
	Value bool
}

func (n *BoolLit) Kind() string   { return "BoolLit" }
func (n *BoolLit) NodeSpan() Span { return n.Span }
func (n *BoolLit) exprNode()      {}

type ArrayLit struct {
	Span     Span
	Elements []Expr
}

func (n *ArrayLit) Kind() string   { return "ArrayLit" }
func (n *ArrayLit) NodeSpan() Span { return n.Span }
func (n *ArrayLit) exprNode()      {}

// FnLit is a function literal: fn [name] (params) -> body.
// Name is empty for anonymous functions.
type FnLit struct {
	Span   Span
	Name   string
	Params []string
	Body   Expr
}

func (n *FnLit) Kind() string   { return "FnLit" }
func (n *FnLit) NodeSpan() Span { return n.Span }
func (n *FnLit) exprNode()      {}

// --- References ---

type Ref struct {
	Span Span
	Name string
}

func (n *Ref) Kind() string   { return "Ref" }
func (n *Ref) NodeSpan() Span { return n.Span }
func (n *Ref) exprNode()      {}

// --- Operators ---

type BinOp struct {
	Span  Span
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (n *BinOp) Kind() string   { return "BinOp" }
func (n *BinOp) NodeSpan() Span { return n.Span }
func (n *BinOp) exprNode()      {}

type UnOp struct {
	Span    Span
	Op      UnaryOp
	Operand Expr
}

func (n *UnOp) Kind() string   { return "UnOp" }
func (n *UnOp) NodeSpan() Span { return n.Span }
func (n *UnOp) exprNode()      {}

// Range is `From to To`.
type Range struct {
	Span Span
	From Expr
	To   Expr
}

func (n *Range) Kind() string   { return "Range" }
func (n *Range) NodeSpan() Span { return n.Span }
func (n *Range) exprNode()      {}

// Contains is `Item in Container`.
type Contains struct {
	Span      Span
	Item      Expr
	Container Expr
}

func (n *Contains) Kind() string   { return "Contains" }
func (n *Contains) NodeSpan() Span { return n.Span }
func (n *Contains) exprNode()      {}

// --- Control Flow ---

// If covers both the prefix form and the parenthesised infix form.
// Else is nil when no else branch was written.
type If struct {
	Span  Span
	Cond  Expr
	Then  Expr
	Else  Expr
	Infix bool
}

func (n *If) Kind() string   { return "If" }
func (n *If) NodeSpan() Span { return n.Span }
func (n *If) exprNode()      {}

type While struct {
	Span Span
	Cond Expr
	Body Expr
}

func (n *While) Kind() string   { return "While" }
func (n *While) NodeSpan() Span { return n.Span }
func (n *While) exprNode()      {}

type For struct {
	Span     Span
	Var      string
	Iterable Expr
	Body     Expr
}

func (n *For) Kind() string   { return "For" }
func (n *For) NodeSpan() Span { return n.Span }
func (n *For) exprNode()      {}

type Block struct {
	Span  Span
	Exprs []Expr
}

func (n *Block) Kind() string   { return "Block" }
func (n *Block) NodeSpan() Span { return n.Span }
func (n *Block) exprNode()      {}

// --- Bindings and calls ---

type Assign struct {
	Span  Span
	Name  string
	Value Expr
}

func (n *Assign) Kind() string   { return "Assign" }
func (n *Assign) NodeSpan() Span { return n.Span }
func (n *Assign) exprNode()      {}

// InPlaceAssign is `Name Op= Value`, evaluated as `Name = Name Op Value`.
type InPlaceAssign struct {
	Span  Span
	Name  string
	Op    BinaryOp
	Value Expr
}

func (n *InPlaceAssign) Kind() string   { return "InPlaceAssign" }
func (n *InPlaceAssign) NodeSpan() Span { return n.Span }
func (n *InPlaceAssign) exprNode()      {}

type Call struct {
	Span   Span
	Callee Expr
	Args   []Expr
}

func (n *Call) Kind() string   { return "Call" }
func (n *Call) NodeSpan() Span { return n.Span }
func (n *Call) exprNode()      {}

// --- Built-in statements ---

type Say struct {
	Span  Span
	Value Expr
}

func (n *Say) Kind() string   { return "Say" }
func (n *Say) NodeSpan() Span { return n.Span }
func (n *Say) exprNode()      {}

type Ask struct {
	Span   Span
	Prompt Expr
}

func (n *Ask) Kind() string   { return "Ask" }
func (n *Ask) NodeSpan() Span { return n.Span }
func (n *Ask) exprNode()      {}

// Exit stops the program. Value is nil for a bare `exit`.
type Exit struct {
	Span  Span
	Value Expr
}

func (n *Exit) Kind() string   { return "Exit" }
func (n *Exit) NodeSpan() Span { return n.Span }
func (n *Exit) exprNode()      {}

// IsLiteral reports whether e reduces to itself without consulting the
// environment.
func IsLiteral(e Expr) bool {
	switch e.(type) {
	case *NumberLit, *StringLit, *BoolLit:
		return true
	}
	return false
}
