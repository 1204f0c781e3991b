// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package flint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flint-lang/flint/parser"
)

func noInclude(string) ([]byte, error) {
	return nil, errors.New("no includes in these tests")
}

func mustCompile(t *testing.T, src string) *Module {
	t.Helper()
	prog, err := parser.Parse("t.fl", []byte(src), noInclude)
	require.NoError(t, err)
	module, err := Compile(prog)
	require.NoError(t, err)
	return module
}

func compileErr(t *testing.T, src string) error {
	t.Helper()
	prog, err := parser.Parse("t.fl", []byte(src), noInclude)
	require.NoError(t, err)
	_, err = Compile(prog)
	require.Error(t, err)
	return err
}

func TestCompileEntryEndsWithHalt(t *testing.T) {
	module := mustCompile(t, `let x = 1;`)
	require.NotEmpty(t, module.Entry)
	assert.Equal(t, OpHalt, module.Entry[len(module.Entry)-1])
}

func TestCompileConstantInterningDedups(t *testing.T) {
	module := mustCompile(t, `let a = 1; let b = 1; let c = "x"; let d = "x";`)
	var ints, strs int
	for _, c := range module.Consts {
		switch c.Kind() {
		case KindInt:
			if c.AsInt() == 1 {
				ints++
			}
		case KindString:
			if c.AsString() == "x" {
				strs++
			}
		}
	}
	assert.Equal(t, 1, ints, "the literal 1 should be interned once")
	assert.Equal(t, 1, strs, "the literal \"x\" should be interned once")
}

func TestCompileFunctionPreRegistrationAllowsForwardReference(t *testing.T) {
	module := mustCompile(t, `
		let r = add(1, 2);
		fun add(a, b) { return a + b; }
	`)
	_, ok := module.Functions["add"]
	assert.True(t, ok, "add must be compiled even though it's declared after its call site")
}

func TestCompileDuplicateFunctionNameIsError(t *testing.T) {
	err := compileErr(t, `
		fun f() { return 1; }
		fun f() { return 2; }
	`)
	assert.ErrorIs(t, err, ErrDuplicateGlobal)
}

func TestCompileLetNameCollidingWithFunctionNameIsError(t *testing.T) {
	err := compileErr(t, `
		fun f() { return 1; }
		let f = 2;
	`)
	assert.ErrorIs(t, err, ErrDuplicateGlobal)
}

func TestCompileAssignToConstIsError(t *testing.T) {
	err := compileErr(t, `const x = 1; x = 2;`)
	assert.ErrorIs(t, err, ErrAssignToConst)
}

func TestCompileUndefinedVariableIsError(t *testing.T) {
	err := compileErr(t, `y;`)
	assert.ErrorIs(t, err, ErrUndefinedVar)
}

func TestCompileInvalidLValueIsError(t *testing.T) {
	err := compileErr(t, `1 = 2;`)
	assert.ErrorIs(t, err, ErrInvalidLValue)
}

func TestCompileIndexAssignBaseMustBeIdent(t *testing.T) {
	err := compileErr(t, `f()[0] = 1;`)
	assert.ErrorIs(t, err, ErrInvalidLValue)
}

// jumpTargetsInRange disassembles one instruction stream (the entry or
// a function body) and verifies every OpJump/OpJumpIfFalse operand
// lies within [0, len(code)] of that same stream.
func jumpTargetsInRange(t *testing.T, name string, code []byte) {
	t.Helper()
	i := 0
	for i < len(code) {
		op := code[i]
		widths := OpcodeOperands[op]
		var operands []int
		operands, consumed := ReadOperands(widths, code[i+1:], operands)
		if op == OpJump || op == OpJumpIfFalse {
			target := operands[0]
			assert.GreaterOrEqual(t, target, 0, "%s: jump target must be non-negative", name)
			assert.LessOrEqual(t, target, len(code), "%s: jump target must be within the stream", name)
		}
		i += 1 + consumed
	}
}

func TestCompileJumpTargetsStayInBounds(t *testing.T) {
	module := mustCompile(t, `
		let i = 0;
		while (i < 10) {
			if (i == 5) {
				i = i + 2;
			} else {
				i = i + 1;
			}
		}
		fun loop(n) {
			for (let j = 0; j < n; j = j + 1) {
				if (j == 0) { return 0; }
			}
			return n;
		}
	`)
	jumpTargetsInRange(t, "entry", module.Entry)
	for name, fn := range module.Functions {
		jumpTargetsInRange(t, name, fn.Instructions)
	}
}

func TestCompileLocalIndicesWithinNumLocals(t *testing.T) {
	module := mustCompile(t, `
		fun f(a, b) {
			let c = a + b;
			if (c > 0) {
				let d = c * 2;
				return d;
			}
			return c;
		}
	`)
	fn := module.Functions["f"]
	require.NotNil(t, fn)

	i := 0
	for i < len(fn.Instructions) {
		op := fn.Instructions[i]
		widths := OpcodeOperands[op]
		var operands []int
		operands, consumed := ReadOperands(widths, fn.Instructions[i+1:], operands)
		if op == OpLoadLocal || op == OpStoreLocal {
			assert.Less(t, operands[0], fn.NumLocals)
		}
		i += 1 + consumed
	}
}

func TestCompileGlobalIndicesWithinNumGlobals(t *testing.T) {
	module := mustCompile(t, `let a = 1; let b = 2; let c = a + b;`)
	i := 0
	for i < len(module.Entry) {
		op := module.Entry[i]
		widths := OpcodeOperands[op]
		var operands []int
		operands, consumed := ReadOperands(widths, module.Entry[i+1:], operands)
		if op == OpLoadGlobal || op == OpStoreGlobal {
			assert.Less(t, operands[0], module.NumGlobals)
		}
		i += 1 + consumed
	}
}

func TestCompileShortCircuitAndEmitsJumpIfFalse(t *testing.T) {
	module := mustCompile(t, `let r = false && true;`)
	var sawJumpIfFalse bool
	for _, b := range module.Entry {
		if b == OpJumpIfFalse {
			sawJumpIfFalse = true
		}
	}
	assert.True(t, sawJumpIfFalse, "&& must lower through a JUMP_IF_FALSE")
}
