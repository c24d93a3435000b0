// Package ast defines the tree the parser builds and the backends consume.
// Each syntactic category is one tagged struct whose Data holds the
// variant's payload.
package ast

import (
	"github.com/mzlang/mzc/pkg/token"
)

// ExprKind defines the kind of an expression node
type ExprKind int

const (
	IntLit ExprKind = iota
	Ident
	StrLit // only valid as a builtin argument
	Binary
	Paren
	ArrayRead
)

func (k ExprKind) String() string {
	switch k {
	case IntLit:
		return "IntLiteral"
	case Ident:
		return "Identifier"
	case StrLit:
		return "StringLiteral"
	case Binary:
		return "Binary"
	case Paren:
		return "Parenthesized"
	case ArrayRead:
		return "ArrayRead"
	}
	return "Expr"
}

// StmtKind defines the kind of a statement node
type StmtKind int

const (
	Let StmtKind = iota
	Assign
	Exit
	Scope
	If
	While
	ArrayDecl
	ArrayAssign
	ArrayReadStmt
	BuiltinCall
)

func (k StmtKind) String() string {
	switch k {
	case Let:
		return "Let"
	case Assign:
		return "Assign"
	case Exit:
		return "Exit"
	case Scope:
		return "Scope"
	case If:
		return "If"
	case While:
		return "While"
	case ArrayDecl:
		return "ArrayDecl"
	case ArrayAssign:
		return "ArrayAssign"
	case ArrayReadStmt:
		return "ArrayRead"
	case BuiltinCall:
		return "BuiltinCall"
	}
	return "Stmt"
}

// BinOp is the closed set of binary operators.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
	And
	Or
	Eq
	NotEq
	Lt
	Le
	Gt
	Ge
)

var binOpSymbols = [...]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/", Mod: "%",
	And: "&&", Or: "||",
	Eq: "==", NotEq: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
}

var binOpNames = [...]string{
	Add: "Add", Sub: "Sub", Mul: "Mul", Div: "Div", Mod: "Mod",
	And: "And", Or: "Or",
	Eq: "Eq", NotEq: "NotEq", Lt: "Lt", Le: "Le", Gt: "Gt", Ge: "Ge",
}

// String returns the operator in the default spelling, e.g. "<=".
func (op BinOp) String() string { return binOpSymbols[op] }

// Name returns the operator's enumeration name, e.g. "Le".
func (op BinOp) Name() string { return binOpNames[op] }

// IsComparison reports whether op yields 0 or 1.
func (op BinOp) IsComparison() bool { return op >= And }

// FromToken maps an operator token kind to its BinOp.
func FromToken(k token.Kind) (BinOp, bool) {
	switch k {
	case token.Plus:
		return Add, true
	case token.Minus:
		return Sub, true
	case token.Star:
		return Mul, true
	case token.Slash:
		return Div, true
	case token.Percent:
		return Mod, true
	case token.LogicAnd:
		return And, true
	case token.LogicOr:
		return Or, true
	case token.LogicEq:
		return Eq, true
	case token.LogicNotEq:
		return NotEq, true
	case token.LogicLt:
		return Lt, true
	case token.LogicLe:
		return Le, true
	case token.LogicGt:
		return Gt, true
	case token.LogicGe:
		return Ge, true
	}
	return 0, false
}

type Expr struct {
	Kind ExprKind
	Tok  token.Token
	Data interface{}
}

type Stmt struct {
	Kind StmtKind
	Tok  token.Token
	Data interface{}
}

// Program is the list of top-level statements in execution order.
type Program struct {
	Stmts []*Stmt
}

// --- Node Data Structs ---
type IntLitNode struct{ Value int64 }
type IdentNode struct{ Name string }
type StrLitNode struct{ Value string }
type BinaryNode struct {
	Op          BinOp
	Left, Right *Expr
}
type ParenNode struct{ Inner *Expr }
type ArrayReadNode struct {
	Name  string
	Index *Expr
}

type LetNode struct {
	Name  string
	Value *Expr
}
type AssignNode struct {
	Name  string
	Value *Expr
}
type ExitNode struct{ Value *Expr }
type ScopeNode struct{ Stmts []*Stmt }
type ElifClause struct {
	Tok  token.Token
	Cond *Expr
	Body *Stmt
}
type IfNode struct {
	Cond  *Expr
	Then  *Stmt
	Elifs []ElifClause
	Else  *Stmt // nil when absent
}
type WhileNode struct {
	Cond *Expr
	Body *Stmt
}
type ArrayDeclNode struct {
	Name string
	Size *Expr
}
type ArrayAssignNode struct {
	Name         string
	Index, Value *Expr
}
type BuiltinCallNode struct {
	Name string
	Args []*Expr
}

// --- Node Constructors ---

func NewIntLit(tok token.Token, value int64) *Expr {
	return &Expr{Kind: IntLit, Tok: tok, Data: IntLitNode{Value: value}}
}
func NewIdent(tok token.Token, name string) *Expr {
	return &Expr{Kind: Ident, Tok: tok, Data: IdentNode{Name: name}}
}
func NewStrLit(tok token.Token, value string) *Expr {
	return &Expr{Kind: StrLit, Tok: tok, Data: StrLitNode{Value: value}}
}
func NewBinary(tok token.Token, op BinOp, left, right *Expr) *Expr {
	return &Expr{Kind: Binary, Tok: tok, Data: BinaryNode{Op: op, Left: left, Right: right}}
}
func NewParen(tok token.Token, inner *Expr) *Expr {
	return &Expr{Kind: Paren, Tok: tok, Data: ParenNode{Inner: inner}}
}
func NewArrayRead(tok token.Token, name string, index *Expr) *Expr {
	return &Expr{Kind: ArrayRead, Tok: tok, Data: ArrayReadNode{Name: name, Index: index}}
}

func NewLet(tok token.Token, name string, value *Expr) *Stmt {
	return &Stmt{Kind: Let, Tok: tok, Data: LetNode{Name: name, Value: value}}
}
func NewAssign(tok token.Token, name string, value *Expr) *Stmt {
	return &Stmt{Kind: Assign, Tok: tok, Data: AssignNode{Name: name, Value: value}}
}
func NewExit(tok token.Token, value *Expr) *Stmt {
	return &Stmt{Kind: Exit, Tok: tok, Data: ExitNode{Value: value}}
}
func NewScope(tok token.Token, stmts []*Stmt) *Stmt {
	return &Stmt{Kind: Scope, Tok: tok, Data: ScopeNode{Stmts: stmts}}
}
func NewIf(tok token.Token, cond *Expr, then *Stmt, elifs []ElifClause, els *Stmt) *Stmt {
	return &Stmt{Kind: If, Tok: tok, Data: IfNode{Cond: cond, Then: then, Elifs: elifs, Else: els}}
}
func NewWhile(tok token.Token, cond *Expr, body *Stmt) *Stmt {
	return &Stmt{Kind: While, Tok: tok, Data: WhileNode{Cond: cond, Body: body}}
}
func NewArrayDecl(tok token.Token, name string, size *Expr) *Stmt {
	return &Stmt{Kind: ArrayDecl, Tok: tok, Data: ArrayDeclNode{Name: name, Size: size}}
}
func NewArrayAssign(tok token.Token, name string, index, value *Expr) *Stmt {
	return &Stmt{Kind: ArrayAssign, Tok: tok, Data: ArrayAssignNode{Name: name, Index: index, Value: value}}
}
func NewArrayReadStmt(tok token.Token, name string, index *Expr) *Stmt {
	return &Stmt{Kind: ArrayReadStmt, Tok: tok, Data: ArrayReadNode{Name: name, Index: index}}
}
func NewBuiltinCall(tok token.Token, name string, args []*Expr) *Stmt {
	return &Stmt{Kind: BuiltinCall, Tok: tok, Data: BuiltinCallNode{Name: name, Args: args}}
}

// FoldConstants evaluates constant integer sub-expressions. The input is
// not modified; folded parts are returned as fresh nodes. Division or
// modulo by a constant zero is left unfolded.
func FoldConstants(e *Expr) *Expr {
	if e == nil {
		return nil
	}

	switch e.Kind {
	case Paren:
		inner := FoldConstants(e.Data.(ParenNode).Inner)
		if inner.Kind == IntLit {
			return NewIntLit(e.Tok, inner.Data.(IntLitNode).Value)
		}
		return NewParen(e.Tok, inner)
	case ArrayRead:
		d := e.Data.(ArrayReadNode)
		return NewArrayRead(e.Tok, d.Name, FoldConstants(d.Index))
	case Binary:
		d := e.Data.(BinaryNode)
		left, right := FoldConstants(d.Left), FoldConstants(d.Right)
		if left.Kind == IntLit && right.Kind == IntLit {
			l, r := left.Data.(IntLitNode).Value, right.Data.(IntLitNode).Value
			if res, ok := Apply(d.Op, l, r); ok {
				return NewIntLit(e.Tok, res)
			}
		}
		return NewBinary(e.Tok, d.Op, left, right)
	}
	return e
}

// Apply computes l op r with the generated code's semantics: 64-bit
// wrapping arithmetic, truncating division, and 0/1 for the logical and
// comparison operators. It reports false for division by zero.
func Apply(op BinOp, l, r int64) (int64, bool) {
	b := func(v bool) int64 {
		if v {
			return 1
		}
		return 0
	}
	switch op {
	case Add:
		return l + r, true
	case Sub:
		return l - r, true
	case Mul:
		return l * r, true
	case Div, Mod:
		if r == 0 {
			return 0, false
		}
		if op == Div {
			return l / r, true
		}
		return l % r, true
	case And:
		return b(l != 0 && r != 0), true
	case Or:
		return b(l != 0 || r != 0), true
	case Eq:
		return b(l == r), true
	case NotEq:
		return b(l != r), true
	case Lt:
		return b(l < r), true
	case Le:
		return b(l <= r), true
	case Gt:
		return b(l > r), true
	case Ge:
		return b(l >= r), true
	}
	return 0, false
}

// ConstValue folds e and reports its value when it is constant.
func ConstValue(e *Expr) (int64, bool) {
	f := FoldConstants(e)
	if f == nil || f.Kind != IntLit {
		return 0, false
	}
	return f.Data.(IntLitNode).Value, true
}
