// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package flint

import (
	"strconv"
	"strings"

	"github.com/flint-lang/flint/parser"
	"github.com/flint-lang/flint/token"
)

func (c *Compiler) compileStmt(s parser.Stmt) error {
	switch n := s.(type) {
	case *parser.FunDecl:
		// Already compiled in pass 2; skip wherever it's encountered
		// again while walking statements for emission (spec.md §4.3).
		return nil
	case *parser.BlockStmt:
		return c.compileBlock(n)
	case *parser.LetStmt:
		return c.compileLetStmt(n)
	case *parser.ConstStmt:
		return c.compileConstStmt(n)
	case *parser.ExprStmt:
		return c.compileExprStmt(n)
	case *parser.IfStmt:
		return c.compileIfStmt(n)
	case *parser.WhileStmt:
		return c.compileWhileStmt(n)
	case *parser.ForStmt:
		return c.compileForStmt(n)
	case *parser.ReturnStmt:
		return c.compileReturnStmt(n)
	}
	return &CGError{Pos: s.Pos(), Kind: ErrUnknownOperator, Msg: "unhandled statement"}
}

func (c *Compiler) compileLetStmt(s *parser.LetStmt) error {
	if s.Init != nil {
		if err := c.compileExpr(s.Init); err != nil {
			return err
		}
	} else {
		c.emit(OpConst, c.internConst(Null))
	}

	if c.symbolTable.isGlobal {
		if c.funcNames[s.Name] {
			return &CGError{Pos: s.Pos(), Kind: ErrDuplicateGlobal, Msg: s.Name}
		}
		sym, _ := c.global.DefineGlobal(s.Name, false)
		c.emit(OpStoreGlobal, sym.Index)
	} else {
		sym, _ := c.symbolTable.DefineLocal(s.Name, false)
		c.emit(OpStoreLocal, sym.Index)
	}
	c.emit(OpPop)
	return nil
}

func (c *Compiler) compileConstStmt(s *parser.ConstStmt) error {
	if err := c.compileExpr(s.Init); err != nil {
		return err
	}

	if c.symbolTable.isGlobal {
		if c.funcNames[s.Name] {
			return &CGError{Pos: s.Pos(), Kind: ErrDuplicateGlobal, Msg: s.Name}
		}
		sym, _ := c.global.DefineGlobal(s.Name, true)
		c.emit(OpStoreGlobal, sym.Index)
	} else {
		sym, _ := c.symbolTable.DefineLocal(s.Name, true)
		c.emit(OpStoreLocal, sym.Index)
	}
	c.emit(OpPop)
	return nil
}

func (c *Compiler) compileExprStmt(s *parser.ExprStmt) error {
	if err := c.compileExpr(s.X); err != nil {
		return err
	}
	c.emit(OpPop)
	return nil
}

func (c *Compiler) compileIfStmt(s *parser.IfStmt) error {
	if err := c.compileExpr(s.Cond); err != nil {
		return err
	}
	falsePos := c.emit(OpJumpIfFalse, 0)
	c.emit(OpPop)

	if err := c.compileBlock(s.Then); err != nil {
		return err
	}

	if s.Else != nil {
		endPos := c.emit(OpJump, 0)
		c.changeOperand(falsePos, len(c.instructions))
		c.emit(OpPop)
		if err := c.compileStmt(s.Else); err != nil {
			return err
		}
		c.changeOperand(endPos, len(c.instructions))
	} else {
		endPos := c.emit(OpJump, 0)
		c.changeOperand(falsePos, len(c.instructions))
		c.emit(OpPop)
		c.changeOperand(endPos, len(c.instructions))
	}
	return nil
}

func (c *Compiler) compileWhileStmt(s *parser.WhileStmt) error {
	startPos := len(c.instructions)
	if err := c.compileExpr(s.Cond); err != nil {
		return err
	}
	exitPos := c.emit(OpJumpIfFalse, 0)
	c.emit(OpPop)

	if err := c.compileBlock(s.Body); err != nil {
		return err
	}
	c.emit(OpJump, startPos)

	c.changeOperand(exitPos, len(c.instructions))
	c.emit(OpPop)
	return nil
}

func (c *Compiler) compileForStmt(s *parser.ForStmt) error {
	isLocal := !c.symbolTable.isGlobal
	saved := c.symbolTable
	if isLocal {
		c.symbolTable = c.symbolTable.Fork(true)
	}

	if s.Init != nil {
		if err := c.compileStmt(s.Init); err != nil {
			c.symbolTable = saved
			return err
		}
	}

	startPos := len(c.instructions)
	if s.Cond != nil {
		if err := c.compileExpr(s.Cond); err != nil {
			c.symbolTable = saved
			return err
		}
	} else {
		c.emit(OpConst, c.internConst(Bool(true)))
	}
	exitPos := c.emit(OpJumpIfFalse, 0)
	c.emit(OpPop)

	if err := c.compileBlock(s.Body); err != nil {
		c.symbolTable = saved
		return err
	}

	if s.Step != nil {
		if err := c.compileStmt(s.Step); err != nil {
			c.symbolTable = saved
			return err
		}
	}
	c.emit(OpJump, startPos)

	c.changeOperand(exitPos, len(c.instructions))
	c.emit(OpPop)

	c.symbolTable = saved
	return nil
}

func (c *Compiler) compileReturnStmt(s *parser.ReturnStmt) error {
	if s.Value != nil {
		if err := c.compileExpr(s.Value); err != nil {
			return err
		}
	} else {
		c.emit(OpConst, c.internConst(Null))
	}
	c.emit(OpRet)
	return nil
}

// ---------------------------------------------------------------------------
// Expressions

func (c *Compiler) compileExpr(e parser.Expr) error {
	switch n := e.(type) {
	case *parser.Ident:
		return c.compileIdent(n)
	case *parser.NumberLit:
		return c.compileNumberLit(n)
	case *parser.StringLit:
		c.emit(OpConst, c.internConst(String(n.Value)))
		return nil
	case *parser.BoolLit:
		c.emit(OpConst, c.internConst(Bool(n.Value)))
		return nil
	case *parser.NullLit:
		c.emit(OpConst, c.internConst(Null))
		return nil
	case *parser.ArrayLit:
		return c.compileArrayLit(n)
	case *parser.IndexExpr:
		return c.compileIndexExpr(n)
	case *parser.UnaryExpr:
		return c.compileUnaryExpr(n)
	case *parser.BinaryExpr:
		return c.compileBinaryExpr(n)
	case *parser.AssignExpr:
		return c.compileAssignExpr(n)
	case *parser.CallExpr:
		return c.compileCallExpr(n)
	}
	return &CGError{Pos: e.Pos(), Kind: ErrUnknownOperator, Msg: "unhandled expression"}
}

func (c *Compiler) compileIdent(n *parser.Ident) error {
	sym, ok := c.resolve(n.Name)
	if !ok {
		return &CGError{Pos: n.Pos(), Kind: ErrUndefinedVar, Msg: n.Name}
	}
	if sym.Scope == ScopeGlobal {
		c.emit(OpLoadGlobal, sym.Index)
	} else {
		c.emit(OpLoadLocal, sym.Index)
	}
	return nil
}

// compileNumberLit decides Int vs Float from the lexeme's shape, as
// spec.md §4.1/§3 prescribe: interpretation happens in the emitter.
func (c *Compiler) compileNumberLit(n *parser.NumberLit) error {
	if strings.Contains(n.Raw, ".") {
		f, err := strconv.ParseFloat(n.Raw, 64)
		if err != nil {
			return &CGError{Pos: n.Pos(), Kind: ErrUnknownOperator, Msg: "invalid float literal " + n.Raw}
		}
		c.emit(OpConst, c.internConst(Float(f)))
		return nil
	}
	i, err := strconv.ParseInt(n.Raw, 10, 64)
	if err != nil {
		return &CGError{Pos: n.Pos(), Kind: ErrUnknownOperator, Msg: "invalid int literal " + n.Raw}
	}
	c.emit(OpConst, c.internConst(Int(i)))
	return nil
}

func (c *Compiler) compileArrayLit(n *parser.ArrayLit) error {
	for _, el := range n.Elements {
		if err := c.compileExpr(el); err != nil {
			return err
		}
	}
	c.emit(OpArrayNew, len(n.Elements))
	return nil
}

func (c *Compiler) compileIndexExpr(n *parser.IndexExpr) error {
	if err := c.compileExpr(n.X); err != nil {
		return err
	}
	if err := c.compileExpr(n.Index); err != nil {
		return err
	}
	c.emit(OpArrayGet)
	return nil
}

func (c *Compiler) compileUnaryExpr(n *parser.UnaryExpr) error {
	if err := c.compileExpr(n.X); err != nil {
		return err
	}
	switch n.Op {
	case token.Sub:
		c.emit(OpNeg)
	case token.Not:
		c.emit(OpNot)
	default:
		return &CGError{Pos: n.Pos(), Kind: ErrUnknownOperator, Msg: n.Op.String()}
	}
	return nil
}

// compileBinaryExpr handles every binary operator except &&/||, which
// compileLogical lowers with short-circuit jumps (spec.md §4.3).
func (c *Compiler) compileBinaryExpr(n *parser.BinaryExpr) error {
	if n.Op == token.LAnd || n.Op == token.LOr {
		return c.compileLogical(n)
	}

	if err := c.compileExpr(n.X); err != nil {
		return err
	}
	if err := c.compileExpr(n.Y); err != nil {
		return err
	}
	switch n.Op {
	case token.Add:
		c.emit(OpAdd)
	case token.Sub:
		c.emit(OpSub)
	case token.Mul:
		c.emit(OpMul)
	case token.Quo:
		c.emit(OpDiv)
	case token.Rem:
		c.emit(OpMod)
	case token.Eq:
		c.emit(OpEq)
	case token.NotEq:
		c.emit(OpNe)
	case token.Less:
		c.emit(OpLt)
	case token.LessEq:
		c.emit(OpLe)
	case token.Greater:
		c.emit(OpGt)
	case token.GreaterEq:
		c.emit(OpGe)
	default:
		return &CGError{Pos: n.Pos(), Kind: ErrUnknownOperator, Msg: n.Op.String()}
	}
	return nil
}

// compileLogical lowers && and || per spec.md §4.3's exact patterns:
// the condition-value lifecycle keeps the falsy/truthy operand on the
// stack as the short-circuited result (spec.md §9).
func (c *Compiler) compileLogical(n *parser.BinaryExpr) error {
	if err := c.compileExpr(n.X); err != nil {
		return err
	}

	if n.Op == token.LAnd {
		endPos := c.emit(OpJumpIfFalse, 0)
		c.emit(OpPop)
		if err := c.compileExpr(n.Y); err != nil {
			return err
		}
		c.changeOperand(endPos, len(c.instructions))
		return nil
	}

	falsyPos := c.emit(OpJumpIfFalse, 0)
	endPos := c.emit(OpJump, 0)
	c.changeOperand(falsyPos, len(c.instructions))
	c.emit(OpPop)
	if err := c.compileExpr(n.Y); err != nil {
		return err
	}
	c.changeOperand(endPos, len(c.instructions))
	return nil
}

// compileAssignExpr lowers `lhs = rhs`. Only a plain identifier or an
// index expression on a plain identifier is a valid L-value (spec.md
// §4.3, §9's open-question decisions).
func (c *Compiler) compileAssignExpr(n *parser.AssignExpr) error {
	switch lhs := n.LHS.(type) {
	case *parser.Ident:
		sym, ok := c.resolve(lhs.Name)
		if !ok {
			return &CGError{Pos: lhs.Pos(), Kind: ErrUndefinedVar, Msg: lhs.Name}
		}
		if sym.IsConst {
			return &CGError{Pos: lhs.Pos(), Kind: ErrAssignToConst, Msg: lhs.Name}
		}
		if err := c.compileExpr(n.RHS); err != nil {
			return err
		}
		if sym.Scope == ScopeGlobal {
			c.emit(OpStoreGlobal, sym.Index)
		} else {
			c.emit(OpStoreLocal, sym.Index)
		}
		return nil

	case *parser.IndexExpr:
		base, ok := lhs.X.(*parser.Ident)
		if !ok {
			return &CGError{Pos: lhs.Pos(), Kind: ErrInvalidLValue, Msg: "index base must be a plain variable"}
		}
		sym, ok := c.resolve(base.Name)
		if !ok {
			return &CGError{Pos: base.Pos(), Kind: ErrUndefinedVar, Msg: base.Name}
		}
		if sym.IsConst {
			return &CGError{Pos: base.Pos(), Kind: ErrAssignToConst, Msg: base.Name}
		}

		load, store := OpLoadLocal, OpStoreLocal
		if sym.Scope == ScopeGlobal {
			load, store = OpLoadGlobal, OpStoreGlobal
		}
		c.emit(load, sym.Index)
		if err := c.compileExpr(lhs.Index); err != nil {
			return err
		}
		if err := c.compileExpr(n.RHS); err != nil {
			return err
		}
		c.emit(OpArraySet)     // […, rhs, updatedArr]
		c.emit(store, sym.Index) // stores updatedArr, leaves stack unchanged
		c.emit(OpPop)          // drop updatedArr; rhs is the expression's value
		return nil
	}

	return &CGError{Pos: n.Pos(), Kind: ErrInvalidLValue, Msg: "assignment target must be an identifier or index expression"}
}

// compileCallExpr lowers Call(callee, args) per spec.md §4.3: a named
// callee interns its own name; any other callee expression is
// evaluated and pushed beneath the arguments, with the sentinel
// constant "__call_dynamic" marking the dynamic-callee path.
func (c *Compiler) compileCallExpr(n *parser.CallExpr) error {
	if ident, ok := n.Callee.(*parser.Ident); ok {
		kName := c.internConst(String(ident.Name))
		for _, a := range n.Args {
			if err := c.compileExpr(a); err != nil {
				return err
			}
		}
		c.emit(OpCallName, kName, len(n.Args))
		return nil
	}

	if err := c.compileExpr(n.Callee); err != nil {
		return err
	}
	kSentinel := c.internConst(String("__call_dynamic"))
	for _, a := range n.Args {
		if err := c.compileExpr(a); err != nil {
			return err
		}
	}
	c.emit(OpCallName, kSentinel, len(n.Args))
	return nil
}
