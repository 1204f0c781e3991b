// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package parser

import (
	"strings"

	"github.com/flint-lang/flint/token"
)

// Node is implemented by every AST node.
type Node interface {
	Pos() Pos
}

// Stmt is implemented by every statement node (spec.md §3).
type Stmt interface {
	Node
	stmtNode()
}

// Expr is implemented by every expression node (spec.md §3).
type Expr interface {
	Node
	exprNode()
}

// Program is the ordered statement sequence of the root file.
type Program struct {
	Stmts []Stmt
}

func (p *Program) Pos() Pos {
	if len(p.Stmts) == 0 {
		return NoPos
	}
	return p.Stmts[0].Pos()
}

// ---------------------------------------------------------------------------
// Statements

type (
	// BlockStmt is a brace-delimited statement list. Include expansion
	// also produces a BlockStmt so that function-hoisting can recurse
	// into it uniformly (spec.md §4.3 pass 1, §9).
	BlockStmt struct {
		TokPos Pos
		Stmts  []Stmt
	}

	// LetStmt declares a mutable binding with an optional initializer.
	LetStmt struct {
		TokPos Pos
		Name   string
		Init   Expr // nil if omitted
	}

	// ConstStmt declares an immutable binding; Init is mandatory.
	ConstStmt struct {
		TokPos Pos
		Name   string
		Init   Expr
	}

	// ExprStmt is an expression evaluated for its side effect.
	ExprStmt struct {
		X Expr
	}

	// IfStmt is a conditional with an optional else branch (which may
	// itself be an IfStmt, for else-if chains).
	IfStmt struct {
		TokPos Pos
		Cond   Expr
		Then   *BlockStmt
		Else   Stmt // *BlockStmt or *IfStmt, nil if absent
	}

	// WhileStmt is a pre-test loop.
	WhileStmt struct {
		TokPos Pos
		Cond   Expr
		Body   *BlockStmt
	}

	// ForStmt is a C-style loop; any of Init/Cond/Step may be nil.
	ForStmt struct {
		TokPos Pos
		Init   Stmt
		Cond   Expr
		Step   Stmt
		Body   *BlockStmt
	}

	// ReturnStmt returns from the enclosing function; Value may be nil.
	ReturnStmt struct {
		TokPos Pos
		Value  Expr
	}

	// FunDecl declares a named, top-level function. Function
	// declarations are hoisted (spec.md §3 invariants).
	FunDecl struct {
		TokPos Pos
		Name   string
		Params []string
		Body   *BlockStmt
	}
)

func (s *BlockStmt) Pos() Pos  { return s.TokPos }
func (s *LetStmt) Pos() Pos    { return s.TokPos }
func (s *ConstStmt) Pos() Pos  { return s.TokPos }
func (s *ExprStmt) Pos() Pos   { return s.X.Pos() }
func (s *IfStmt) Pos() Pos     { return s.TokPos }
func (s *WhileStmt) Pos() Pos  { return s.TokPos }
func (s *ForStmt) Pos() Pos    { return s.TokPos }
func (s *ReturnStmt) Pos() Pos { return s.TokPos }
func (s *FunDecl) Pos() Pos    { return s.TokPos }

func (*BlockStmt) stmtNode()  {}
func (*LetStmt) stmtNode()    {}
func (*ConstStmt) stmtNode()  {}
func (*ExprStmt) stmtNode()   {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*ForStmt) stmtNode()    {}
func (*ReturnStmt) stmtNode() {}
func (*FunDecl) stmtNode()    {}

// ---------------------------------------------------------------------------
// Expressions

type (
	// Ident is a reference to a named binding.
	Ident struct {
		TokPos Pos
		Name   string
	}

	// NumberLit carries the raw lexeme; numeric interpretation happens
	// in the emitter (spec.md §4.1).
	NumberLit struct {
		TokPos Pos
		Raw    string
	}

	// StringLit carries the already-escape-processed text.
	StringLit struct {
		TokPos Pos
		Value  string
	}

	// BoolLit is a literal `true` or `false`.
	BoolLit struct {
		TokPos Pos
		Value  bool
	}

	// NullLit is the literal `null`.
	NullLit struct {
		TokPos Pos
	}

	// ArrayLit is an array literal `[e1, e2, ...]`.
	ArrayLit struct {
		TokPos   Pos
		Elements []Expr
	}

	// IndexExpr is `array[index]`.
	IndexExpr struct {
		X     Expr
		Index Expr
	}

	// UnaryExpr is a prefix operator applied to a single operand.
	UnaryExpr struct {
		TokPos Pos
		Op     token.Token
		X      Expr
	}

	// BinaryExpr is an infix operator applied to two operands,
	// including `&&`/`||`, which the emitter lowers with short-circuit
	// jumps (spec.md §4.3).
	BinaryExpr struct {
		TokPos Pos
		Op     token.Token
		X, Y   Expr
	}

	// AssignExpr is `lhs = rhs`; only Ident and IndexExpr(Ident, _) are
	// valid L-values, checked by the emitter (spec.md §4.3).
	AssignExpr struct {
		TokPos Pos
		LHS    Expr
		RHS    Expr
	}

	// CallExpr applies Callee to Args, left to right.
	CallExpr struct {
		Callee Expr
		Args   []Expr
	}
)

func (e *Ident) Pos() Pos      { return e.TokPos }
func (e *NumberLit) Pos() Pos  { return e.TokPos }
func (e *StringLit) Pos() Pos  { return e.TokPos }
func (e *BoolLit) Pos() Pos    { return e.TokPos }
func (e *NullLit) Pos() Pos    { return e.TokPos }
func (e *ArrayLit) Pos() Pos   { return e.TokPos }
func (e *IndexExpr) Pos() Pos  { return e.X.Pos() }
func (e *UnaryExpr) Pos() Pos  { return e.TokPos }
func (e *BinaryExpr) Pos() Pos { return e.TokPos }
func (e *AssignExpr) Pos() Pos { return e.TokPos }
func (e *CallExpr) Pos() Pos   { return e.Callee.Pos() }

func (*Ident) exprNode()      {}
func (*NumberLit) exprNode()  {}
func (*StringLit) exprNode()  {}
func (*BoolLit) exprNode()    {}
func (*NullLit) exprNode()    {}
func (*ArrayLit) exprNode()   {}
func (*IndexExpr) exprNode()  {}
func (*UnaryExpr) exprNode()  {}
func (*BinaryExpr) exprNode() {}
func (*AssignExpr) exprNode() {}
func (*CallExpr) exprNode()   {}

func (e *CallExpr) String() string {
	var sb strings.Builder
	sb.WriteString("call(")
	if id, ok := e.Callee.(*Ident); ok {
		sb.WriteString(id.Name)
	}
	sb.WriteString(")")
	return sb.String()
}
