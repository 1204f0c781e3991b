// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package flint

import (
	"encoding/binary"

	"github.com/flint-lang/flint/parser"
)

// Compiler lowers a *parser.Program into a *Module: function
// pre-registration, per-function body emission, then entry emission
// (spec.md §4.3).
type Compiler struct {
	global      *SymbolTable
	symbolTable *SymbolTable // current scope: global while compiling entry, function-local while compiling a body

	instructions []byte // the buffer currently being built (function body or entry)

	consts     []Value
	constIndex map[string]int

	functions map[string]*FunctionProto
	funcNames map[string]bool // set during pre-registration, checked against let/const at global scope
}

// NewCompiler creates an empty Compiler with a fresh global scope. A
// single Compiler may drive more than one call to Compile/CompileLine:
// the global symbol table, constant pool and compiled functions persist
// across calls, which is what lets the REPL (SPEC_FULL.md §4.6) keep
// variables and function definitions live from one entered line to the
// next.
func NewCompiler() *Compiler {
	c := &Compiler{
		global:     NewGlobalSymbolTable(),
		constIndex: make(map[string]int),
		functions:  make(map[string]*FunctionProto),
		funcNames:  make(map[string]bool),
	}
	c.symbolTable = c.global
	return c
}

// Compile runs the full three-pass emission pipeline described in
// spec.md §4.3 and returns the resulting Module. Equivalent to
// NewCompiler().Compile(prog).
func Compile(prog *parser.Program) (*Module, error) {
	return NewCompiler().Compile(prog)
}

// Compile lowers prog's function declarations and entry statements
// against c's (possibly already populated) global scope. A top-level
// expression statement is always followed by its discarding POP, same
// as every other statement (spec.md §9's STORE/POP discipline).
func (c *Compiler) Compile(prog *parser.Program) (*Module, error) {
	funcs, err := c.preRegisterFunctions(prog.Stmts)
	if err != nil {
		return nil, err
	}
	for _, fn := range funcs {
		if err := c.compileFunction(fn); err != nil {
			return nil, err
		}
	}
	return c.finishEntry(prog.Stmts, false)
}

// CompileLine is Compile's REPL variant (SPEC_FULL.md §4.6): if prog's
// final statement is a bare expression statement, its value is left on
// the stack instead of popped, so the REPL can print it. The returned
// bool reports whether that happened. Everything else about emission —
// function pre-registration, global-slot reuse across calls — is
// identical to Compile.
func (c *Compiler) CompileLine(prog *parser.Program) (module *Module, producedValue bool, err error) {
	funcs, err := c.preRegisterFunctions(prog.Stmts)
	if err != nil {
		return nil, false, err
	}
	for _, fn := range funcs {
		if err := c.compileFunction(fn); err != nil {
			return nil, false, err
		}
	}

	_, lastIsExpr := lastStmt(prog.Stmts).(*parser.ExprStmt)
	module, err = c.finishEntry(prog.Stmts, lastIsExpr)
	return module, lastIsExpr, err
}

func lastStmt(stmts []parser.Stmt) parser.Stmt {
	if len(stmts) == 0 {
		return nil
	}
	return stmts[len(stmts)-1]
}

// finishEntry is pass 3: entry-statement emission plus the trailing
// HALT and Module assembly. When keepLastExprValue is true and the
// final statement is an *parser.ExprStmt, its trailing POP is skipped.
func (c *Compiler) finishEntry(stmts []parser.Stmt, keepLastExprValue bool) (*Module, error) {
	c.symbolTable = c.global
	c.instructions = nil

	for i, s := range stmts {
		if keepLastExprValue && i == len(stmts)-1 {
			if expr, ok := s.(*parser.ExprStmt); ok {
				if err := c.compileExpr(expr.X); err != nil {
					return nil, err
				}
				continue
			}
		}
		if err := c.compileStmt(s); err != nil {
			return nil, err
		}
	}
	c.emit(OpHalt)

	globals := make(map[string]int, len(c.global.store))
	for name, sym := range c.global.store {
		globals[name] = sym.Index
	}

	return &Module{
		Consts:     c.consts,
		Globals:    globals,
		NumGlobals: c.global.NumGlobals(),
		Functions:  c.functions,
		Entry:      c.instructions,
	}, nil
}

// preRegisterFunctions is pass 1 (spec.md §4.3, §9): it walks every
// statement — descending into Block, If, While, For but not into
// FunDecl bodies — and reserves each FunDecl's name as a const global,
// returning the FunDecls in discovery order for pass 2.
func (c *Compiler) preRegisterFunctions(stmts []parser.Stmt) ([]*parser.FunDecl, error) {
	var funcs []*parser.FunDecl
	var walk func(stmts []parser.Stmt) error
	var walkOne func(s parser.Stmt) error

	walk = func(stmts []parser.Stmt) error {
		for _, s := range stmts {
			if err := walkOne(s); err != nil {
				return err
			}
		}
		return nil
	}

	walkOne = func(s parser.Stmt) error {
		switch n := s.(type) {
		case *parser.FunDecl:
			if c.funcNames[n.Name] {
				return &CGError{Pos: n.Pos(), Kind: ErrDuplicateGlobal, Msg: n.Name}
			}
			c.funcNames[n.Name] = true
			if _, err := c.global.DefineGlobal(n.Name, true); err != nil {
				return &CGError{Pos: n.Pos(), Kind: ErrDuplicateGlobal, Msg: err.Error()}
			}
			funcs = append(funcs, n)
		case *parser.BlockStmt:
			return walk(n.Stmts)
		case *parser.IfStmt:
			if err := walk(n.Then.Stmts); err != nil {
				return err
			}
			if n.Else != nil {
				return walkOne(n.Else)
			}
		case *parser.WhileStmt:
			return walk(n.Body.Stmts)
		case *parser.ForStmt:
			return walk(n.Body.Stmts)
		}
		return nil
	}

	if err := walk(stmts); err != nil {
		return nil, err
	}
	return funcs, nil
}

// compileFunction is pass 2: one fresh local symbol table per
// function, body emission, and the guaranteed trailing
// `CONST null; RET` (spec.md §4.3).
func (c *Compiler) compileFunction(fn *parser.FunDecl) error {
	savedTable, savedIns := c.symbolTable, c.instructions

	local := NewFunctionSymbolTable()
	for _, p := range fn.Params {
		local.DefineLocal(p, false)
	}
	c.symbolTable = local
	c.instructions = nil

	for _, s := range fn.Body.Stmts {
		if err := c.compileStmt(s); err != nil {
			c.symbolTable, c.instructions = savedTable, savedIns
			return err
		}
	}
	c.emit(OpConst, c.internConst(Null))
	c.emit(OpRet)

	c.functions[fn.Name] = &FunctionProto{
		Name:         fn.Name,
		NumParams:    len(fn.Params),
		NumLocals:    local.MaxSymbols(),
		Instructions: c.instructions,
	}

	c.symbolTable, c.instructions = savedTable, savedIns
	return nil
}

// ---------------------------------------------------------------------------
// Low-level emission helpers (spec.md §9's jump-patching idiom)

// emit appends opcode and its operands (encoded per OpcodeOperands'
// declared widths) and returns the offset the opcode was written at —
// the offset to record as a patch site for forward jumps.
func (c *Compiler) emit(op Opcode, operands ...int) int {
	pos := len(c.instructions)
	c.instructions = append(c.instructions, op)
	widths := OpcodeOperands[op]
	for i, w := range widths {
		v := operands[i]
		switch w {
		case 1:
			c.instructions = append(c.instructions, byte(v))
		case 2:
			var buf [2]byte
			binary.BigEndian.PutUint16(buf[:], uint16(v))
			c.instructions = append(c.instructions, buf[:]...)
		}
	}
	return pos
}

// changeOperand overwrites the operand(s) at opPos (an offset returned
// by emit) once a forward jump target is known.
func (c *Compiler) changeOperand(opPos int, operands ...int) {
	op := c.instructions[opPos]
	widths := OpcodeOperands[op]
	offset := opPos + 1
	for i, w := range widths {
		v := operands[i]
		switch w {
		case 1:
			c.instructions[offset] = byte(v)
		case 2:
			binary.BigEndian.PutUint16(c.instructions[offset:offset+2], uint16(v))
		}
		offset += w
	}
}

// internConst dedups v into the constant pool by structural key
// (spec.md §4.3) and returns its stable index.
func (c *Compiler) internConst(v Value) int {
	key := v.internKey()
	if idx, ok := c.constIndex[key]; ok {
		return idx
	}
	idx := len(c.consts)
	c.consts = append(c.consts, v)
	c.constIndex[key] = idx
	return idx
}

// resolve looks up name against the current scope, falling back to
// the global table when the current scope is function-local.
func (c *Compiler) resolve(name string) (*Symbol, bool) {
	return c.symbolTable.Resolve(name, c.global)
}

// compileBlock compiles a brace-delimited statement list. Inside a
// function this opens a nested block scope (spec.md §9's "ownership of
// per-function scopes"); at the global/entry level there is no block
// scope to open — flint has exactly two scopes (global, per-function
// local), so a `{ }` appearing directly in the entry, including one
// spliced in by `include`, declares straight into the global table.
func (c *Compiler) compileBlock(b *parser.BlockStmt) error {
	if c.symbolTable.isGlobal {
		return c.compileStmtList(b.Stmts)
	}
	saved := c.symbolTable
	c.symbolTable = c.symbolTable.Fork(true)
	err := c.compileStmtList(b.Stmts)
	c.symbolTable = saved
	return err
}

func (c *Compiler) compileStmtList(stmts []parser.Stmt) error {
	for _, s := range stmts {
		if err := c.compileStmt(s); err != nil {
			return err
		}
	}
	return nil
}
