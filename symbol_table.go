// A modified version of Tengo/uGo's SymbolTable, trimmed to the two
// scopes flint needs.

// Copyright (c) 2020 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Copyright (c) 2019 Daniel Kang.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE.tengo file.

package flint

import (
	"errors"
	"fmt"
)

// SymbolScope distinguishes global bindings (process-wide, one slot
// table owned by the VM) from local bindings (one per call frame),
// per spec.md §3.
type SymbolScope string

const (
	ScopeGlobal SymbolScope = "GLOBAL"
	ScopeLocal  SymbolScope = "LOCAL"
)

// Symbol records a binding's scope, dense slot index and mutability.
type Symbol struct {
	Name    string
	Index   int
	Scope   SymbolScope
	IsConst bool
}

func (s *Symbol) String() string {
	return fmt.Sprintf("Symbol{Name:%s Index:%d Scope:%s IsConst:%v}", s.Name, s.Index, s.Scope, s.IsConst)
}

// SymbolTable tracks bindings visible in a scope. The single global
// table has no parent; each function gets a fresh table whose Fork
// chain models nested blocks (if/while/for bodies) so that loop
// bodies reuse slot indices across iterations without colliding with
// sibling blocks (spec.md §3, §9 "ownership of per-function scopes").
type SymbolTable struct {
	store map[string]*Symbol

	parent *SymbolTable // enclosing block within the same function
	block  bool

	isGlobal bool

	numDefinition int
	maxDefinition int
}

// NewGlobalSymbolTable creates the process-wide global scope.
func NewGlobalSymbolTable() *SymbolTable {
	return &SymbolTable{
		store:    make(map[string]*Symbol),
		isGlobal: true,
	}
}

// NewFunctionSymbolTable creates the root local scope for one
// function body. It has no parent block, so NextIndex starts at 0 and
// global references must be resolved separately (see Resolve).
func NewFunctionSymbolTable() *SymbolTable {
	return &SymbolTable{
		store: make(map[string]*Symbol),
	}
}

// Fork creates a nested block scope inside the current function.
func (st *SymbolTable) Fork(block bool) *SymbolTable {
	return &SymbolTable{
		store:  make(map[string]*Symbol),
		parent: st,
		block:  block,
	}
}

// Parent returns the enclosing block scope, or nil at function root.
func (st *SymbolTable) Parent() *SymbolTable {
	return st.parent
}

// NextIndex returns the next local slot index this table would hand
// out, accounting for however many slots outer blocks already used.
func (st *SymbolTable) NextIndex() int {
	if st.block {
		return st.parent.NextIndex() + st.numDefinition
	}
	return st.numDefinition
}

// DefineLocal adds name as a local in the current scope, returning
// the existing symbol if it is already a local here (true = reused).
func (st *SymbolTable) DefineLocal(name string, isConst bool) (*Symbol, bool) {
	if sym, ok := st.store[name]; ok && sym.Scope == ScopeLocal {
		return sym, true
	}

	index := st.NextIndex()
	sym := &Symbol{Name: name, Index: index, Scope: ScopeLocal, IsConst: isConst}
	st.numDefinition++
	st.store[name] = sym
	st.updateMaxDefs(sym.Index + 1)
	return sym, false
}

func (st *SymbolTable) updateMaxDefs(n int) {
	if n > st.maxDefinition {
		st.maxDefinition = n
	}
	if st.block {
		st.parent.updateMaxDefs(n)
	}
}

// MaxSymbols returns the total number of local slots a function needs
// across all of its nested blocks (this becomes FunctionProto.NumLocals).
func (st *SymbolTable) MaxSymbols() int {
	return st.maxDefinition
}

// Resolve looks up name in this scope, then in enclosing blocks, then
// (for a function-root table) falls back to the global table.
// Flint has no closures, so an outer *function's* locals are never a
// valid resolution target from a nested function — there are no
// nested functions.
func (st *SymbolTable) Resolve(name string, global *SymbolTable) (*Symbol, bool) {
	if sym, ok := st.store[name]; ok {
		return sym, true
	}
	if st.parent != nil {
		return st.parent.Resolve(name, global)
	}
	if !st.isGlobal && global != nil {
		return global.Resolve(name, nil)
	}
	return nil, false
}

// DefineGlobal adds or re-fetches a global binding. A second call with
// the same name returns the existing symbol (used by function
// pre-registration, which may observe the same FunDecl name only once
// per compile, but keeps this idempotent for simplicity).
func (st *SymbolTable) DefineGlobal(name string, isConst bool) (*Symbol, error) {
	if !st.isGlobal {
		return nil, errors.New("DefineGlobal called on a non-global symbol table")
	}
	if sym, ok := st.store[name]; ok {
		return sym, nil
	}
	sym := &Symbol{Name: name, Index: st.numDefinition, Scope: ScopeGlobal, IsConst: isConst}
	st.numDefinition++
	st.store[name] = sym
	return sym, nil
}

// Lookup returns the symbol already defined under name in this exact
// table, without walking parents.
func (st *SymbolTable) Lookup(name string) (*Symbol, bool) {
	sym, ok := st.store[name]
	return sym, ok
}

// NumGlobals returns how many global slots have been allocated.
func (st *SymbolTable) NumGlobals() int {
	return st.numDefinition
}
