// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flint-lang/flint/token"
)

func noRead(string) ([]byte, error) {
	return nil, errors.New("no such file")
}

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Parse("t.fl", []byte(src), noRead)
	require.NoError(t, err)
	return prog
}

func TestParseLetAndExprStmt(t *testing.T) {
	prog := mustParse(t, `let x = 1 + 2; x;`)
	require.Len(t, prog.Stmts, 2)

	let, ok := prog.Stmts[0].(*LetStmt)
	require.True(t, ok)
	assert.Equal(t, "x", let.Name)
	bin, ok := let.Init.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.Add, bin.Op)

	exprStmt, ok := prog.Stmts[1].(*ExprStmt)
	require.True(t, ok)
	_, ok = exprStmt.X.(*Ident)
	assert.True(t, ok)
}

func TestAssignIsRightAssociative(t *testing.T) {
	prog := mustParse(t, `a = b = 1;`)
	stmt := prog.Stmts[0].(*ExprStmt)
	outer, ok := stmt.X.(*AssignExpr)
	require.True(t, ok)
	assert.Equal(t, "a", outer.LHS.(*Ident).Name)
	inner, ok := outer.RHS.(*AssignExpr)
	require.True(t, ok)
	assert.Equal(t, "b", inner.LHS.(*Ident).Name)
}

func TestBinaryOperatorsAreLeftAssociative(t *testing.T) {
	prog := mustParse(t, `1 - 2 - 3;`)
	stmt := prog.Stmts[0].(*ExprStmt)
	top, ok := stmt.X.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.Sub, top.Op)
	// (1 - 2) - 3: the left child is itself a BinaryExpr, the right a literal.
	_, ok = top.X.(*BinaryExpr)
	assert.True(t, ok)
	_, ok = top.Y.(*NumberLit)
	assert.True(t, ok)
}

func TestPrecedenceClimbing(t *testing.T) {
	prog := mustParse(t, `1 + 2 * 3;`)
	stmt := prog.Stmts[0].(*ExprStmt)
	top, ok := stmt.X.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.Add, top.Op)
	_, ok = top.X.(*NumberLit)
	assert.True(t, ok)
	mul, ok := top.Y.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.Mul, mul.Op)
}

func TestCallAndIndexPostfixChaining(t *testing.T) {
	prog := mustParse(t, `f(1)[0];`)
	stmt := prog.Stmts[0].(*ExprStmt)
	idx, ok := stmt.X.(*IndexExpr)
	require.True(t, ok)
	call, ok := idx.X.(*CallExpr)
	require.True(t, ok)
	assert.Equal(t, "f", call.Callee.(*Ident).Name)
	require.Len(t, call.Args, 1)
}

func TestIfElseIfChain(t *testing.T) {
	prog := mustParse(t, `if (a) { 1; } else if (b) { 2; } else { 3; }`)
	ifStmt := prog.Stmts[0].(*IfStmt)
	elseIf, ok := ifStmt.Else.(*IfStmt)
	require.True(t, ok)
	_, ok = elseIf.Else.(*BlockStmt)
	assert.True(t, ok)
}

func TestForLoopHeaderParts(t *testing.T) {
	prog := mustParse(t, `for (let i = 0; i < 3; i = i + 1) { print(i); }`)
	f := prog.Stmts[0].(*ForStmt)
	require.NotNil(t, f.Init)
	require.NotNil(t, f.Cond)
	require.NotNil(t, f.Step)
	_, ok := f.Init.(*LetStmt)
	assert.True(t, ok)
}

func TestFunDeclParams(t *testing.T) {
	prog := mustParse(t, `fun add(a, b) { return a + b; }`)
	fn := prog.Stmts[0].(*FunDecl)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []string{"a", "b"}, fn.Params)
}

func TestParseErrorReportsPosition(t *testing.T) {
	_, err := Parse("t.fl", []byte("let x = ;"), noRead)
	require.Error(t, err)
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Pos.Line)
}

func TestIllegalCharacterReportsLexError(t *testing.T) {
	_, err := Parse("t.fl", []byte("let x = #;"), noRead)
	require.Error(t, err)
	var lerr *LexError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "#", lerr.Literal)
	var perr *Error
	assert.False(t, errors.As(err, &perr), "an illegal character must not also satisfy *Error")
}

func TestIncludeSplicesStatements(t *testing.T) {
	files := map[string][]byte{
		"/root/a.fl": []byte(`include "b.fl"; let x = 1;`),
		"/root/b.fl": []byte(`let y = 2;`),
	}
	read := func(path string) ([]byte, error) {
		if src, ok := files[path]; ok {
			return src, nil
		}
		return nil, errors.New("not found")
	}

	prog, err := Parse("/root/a.fl", files["/root/a.fl"], read)
	require.NoError(t, err)
	require.Len(t, prog.Stmts, 2)

	block, ok := prog.Stmts[0].(*BlockStmt)
	require.True(t, ok)
	require.Len(t, block.Stmts, 1)
	assert.Equal(t, "y", block.Stmts[0].(*LetStmt).Name)

	assert.Equal(t, "x", prog.Stmts[1].(*LetStmt).Name)
}

func TestRepeatedIncludeBecomesEmptyOnSecondVisit(t *testing.T) {
	files := map[string][]byte{
		"/root/a.fl": []byte(`include "b.fl"; include "b.fl";`),
		"/root/b.fl": []byte(`let y = 2;`),
	}
	read := func(path string) ([]byte, error) {
		if src, ok := files[path]; ok {
			return src, nil
		}
		return nil, errors.New("not found")
	}

	prog, err := Parse("/root/a.fl", files["/root/a.fl"], read)
	require.NoError(t, err)
	require.Len(t, prog.Stmts, 2)

	first := prog.Stmts[0].(*BlockStmt)
	second := prog.Stmts[1].(*BlockStmt)
	assert.Len(t, first.Stmts, 1, "first include expands normally")
	assert.Len(t, second.Stmts, 0, "repeated include of the same file becomes empty")
}

func TestIncludeSelfCycleIsBrokenByRootPreMark(t *testing.T) {
	files := map[string][]byte{
		"/root/a.fl": []byte(`include "a.fl"; let x = 1;`),
	}
	read := func(path string) ([]byte, error) {
		if src, ok := files[path]; ok {
			return src, nil
		}
		return nil, errors.New("not found")
	}

	prog, err := Parse("/root/a.fl", files["/root/a.fl"], read)
	require.NoError(t, err)
	require.Len(t, prog.Stmts, 2)
	block := prog.Stmts[0].(*BlockStmt)
	assert.Len(t, block.Stmts, 0, "including the root file itself is a no-op")
}

func TestIncludeMissingFileIsParseError(t *testing.T) {
	_, err := Parse("/root/a.fl", []byte(`include "missing.fl";`), noRead)
	assert.Error(t, err)
}
