// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package flint

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const callSentinel = "__call_dynamic"

// frame is a runtime activation record: code reference, instruction
// pointer, and the locals vector (spec.md §3).
type frame struct {
	code   []byte
	ip     int
	locals []Value
}

// VM is a switch-dispatched stack interpreter over a compiled Module
// (spec.md §4.4). Run may be called more than once on the same VM;
// globals and the value stack are kept between runs.
type VM struct {
	module  *Module
	globals []Value
	stack   []Value
	frames  []frame

	out io.Writer

	// aborted is set by Abort (spec.md §5's expansion note: the host
	// may wire a -timeout flag to this via context cancellation; the
	// language itself exposes no cancellation surface).
	aborted bool
}

// NewVM prepares a VM to execute module, writing `print` output to out.
// module may be nil (a host that compiles incrementally, such as the
// REPL, calls LoadModule before the first Run).
func NewVM(module *Module, out io.Writer) *VM {
	vm := &VM{out: out}
	if module != nil {
		vm.module = module
		vm.globals = make([]Value, module.NumGlobals)
	}
	return vm
}

// Abort requests that the running VM stop at its next instruction
// boundary. It sets a plain bool field; the write is not synchronized
// with the goroutine executing Run.
func (vm *VM) Abort() {
	vm.aborted = true
}

// LoadModule points vm at a newly compiled module, growing the global
// slot slice to match while preserving the values already stored there.
// This is what lets the REPL (SPEC_FULL.md §4.6) recompile one line at
// a time against the same Compiler and still see variables assigned by
// earlier lines: each line produces its own Module (fresh Entry, grown
// Consts/Functions), but vm.globals is never reset between them.
func (vm *VM) LoadModule(module *Module) {
	vm.module = module
	if n := module.NumGlobals; n > len(vm.globals) {
		grown := make([]Value, n)
		copy(grown, vm.globals)
		vm.globals = grown
	}
}

// Top returns the current top-of-stack value and reports whether the
// stack is non-empty. Used by the REPL to print an entered expression's
// result (SPEC_FULL.md §4.6).
func (vm *VM) Top() (Value, bool) {
	if len(vm.stack) == 0 {
		return Value{}, false
	}
	return vm.top(), true
}

// PopDiscard drops the top-of-stack value, if any. Used by the REPL
// after printing an expression statement's result.
func (vm *VM) PopDiscard() {
	if len(vm.stack) > 0 {
		vm.pop()
	}
}

// Run executes the module's entry sequence to completion (HALT) or
// until the outermost frame returns (spec.md §4.4). ctx is checked for
// cancellation once every 4096 instructions (the -timeout CLI flag wires
// context.WithTimeout here); nil is accepted for "no cancellation".
func (vm *VM) Run(ctx context.Context) error {
	vm.frames = []frame{{code: vm.module.Entry}}
	return vm.run(ctx)
}

func (vm *VM) run(ctx context.Context) error {
	var steps int
	for len(vm.frames) > 0 {
		steps++
		if steps%4096 == 0 && ctx != nil {
			select {
			case <-ctx.Done():
				return &VMError{Kind: ErrAborted, Msg: ctx.Err().Error()}
			default:
			}
		}
		if vm.aborted {
			return &VMError{Kind: ErrAborted}
		}

		fr := &vm.frames[len(vm.frames)-1]
		if fr.ip < 0 || fr.ip >= len(fr.code) {
			return &VMError{Kind: ErrIPOutOfRange}
		}
		op := fr.code[fr.ip]
		fr.ip++

		halted, err := vm.exec(fr, op)
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
	return nil
}

func (vm *VM) readOperand(fr *frame, width int) int {
	switch width {
	case 1:
		v := int(fr.code[fr.ip])
		fr.ip++
		return v
	case 2:
		v := int(binary.BigEndian.Uint16(fr.code[fr.ip : fr.ip+2]))
		fr.ip += 2
		return v
	}
	return 0
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) top() Value {
	return vm.stack[len(vm.stack)-1]
}

// exec executes a single already-fetched opcode against fr. The
// returned bool is true once execution has fully halted.
func (vm *VM) exec(fr *frame, op Opcode) (bool, error) {
	switch op {
	case OpConst:
		idx := vm.readOperand(fr, 2)
		vm.push(vm.module.Consts[idx])

	case OpLoadGlobal:
		idx := vm.readOperand(fr, 2)
		vm.push(vm.globals[idx])

	case OpStoreGlobal:
		idx := vm.readOperand(fr, 2)
		vm.globals[idx] = vm.top()

	case OpLoadLocal:
		idx := vm.readOperand(fr, 2)
		vm.push(fr.locals[idx])

	case OpStoreLocal:
		idx := vm.readOperand(fr, 2)
		fr.locals[idx] = vm.top()

	case OpPop:
		vm.pop()

	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		b, a := vm.pop(), vm.pop()
		if op == OpAdd && a.Kind() == KindString && b.Kind() == KindString {
			vm.push(String(a.AsString() + b.AsString()))
			return false, nil
		}
		r, err := BinaryNumeric(opSymbol(op), a, b)
		if err != nil {
			kind := ErrUnknownOperator
			if errors.Is(err, ErrZeroDivision) {
				kind = ErrZeroDivision
			}
			return false, &VMError{Kind: kind, Msg: err.Error()}
		}
		vm.push(r)

	case OpNeg:
		a := vm.pop()
		switch a.Kind() {
		case KindInt:
			vm.push(Int(-a.AsInt()))
		case KindFloat:
			vm.push(Float(-a.AsFloat()))
		default:
			return false, &VMError{Kind: ErrUnknownOperator, Msg: "- on non-numeric value"}
		}

	case OpNot:
		a := vm.pop()
		vm.push(Bool(!a.Truthy()))

	case OpEq:
		b, a := vm.pop(), vm.pop()
		vm.push(Bool(a.Equal(b)))

	case OpNe:
		b, a := vm.pop(), vm.pop()
		vm.push(Bool(!a.Equal(b)))

	case OpLt, OpLe, OpGt, OpGe:
		b, a := vm.pop(), vm.pop()
		cmp, err := Compare(a, b)
		if err != nil {
			return false, &VMError{Kind: ErrUnknownOperator, Msg: err.Error()}
		}
		vm.push(Bool(compareResult(op, cmp)))

	case OpJump:
		addr := vm.readOperand(fr, 2)
		fr.ip = addr

	case OpJumpIfFalse:
		addr := vm.readOperand(fr, 2)
		if !vm.top().Truthy() {
			fr.ip = addr
		}

	case OpCallName:
		kName := vm.readOperand(fr, 2)
		argc := vm.readOperand(fr, 1)
		return false, vm.callName(kName, argc)

	case OpRet:
		ret := vm.pop()
		vm.frames = vm.frames[:len(vm.frames)-1]
		if len(vm.frames) == 0 {
			vm.push(ret)
			return true, nil
		}
		vm.push(ret)

	case OpHalt:
		return true, nil

	case OpArrayNew:
		n := vm.readOperand(fr, 2)
		elems := make([]Value, n)
		copy(elems, vm.stack[len(vm.stack)-n:])
		vm.stack = vm.stack[:len(vm.stack)-n]
		vm.push(Array(elems))

	case OpArrayGet:
		idxVal, arrVal := vm.pop(), vm.pop()
		if arrVal.Kind() != KindArray {
			return false, &VMError{Kind: ErrNotArray}
		}
		idx, ok := asIndex(idxVal)
		arr := arrVal.AsArray()
		if !ok || idx < 0 || idx >= len(arr) {
			vm.push(Null)
		} else {
			vm.push(arr[idx])
		}

	case OpArraySet:
		v, idxVal, arrVal := vm.pop(), vm.pop(), vm.pop()
		if arrVal.Kind() != KindArray {
			return false, &VMError{Kind: ErrNotArray}
		}
		idx, ok := asIndex(idxVal)
		if !ok || idx < 0 {
			return false, &VMError{Kind: ErrNegativeIndex}
		}
		src := arrVal.AsArray()
		dst := make([]Value, len(src))
		copy(dst, src)
		if idx >= len(dst) {
			for len(dst) <= idx {
				dst = append(dst, Null)
			}
		}
		dst[idx] = v
		vm.push(v)
		vm.push(Array(dst))

	case OpPrint:
		v := vm.pop()
		vm.doPrint(v)
		vm.push(Null)

	default:
		return false, &VMError{Kind: ErrInvalidOpcode, Msg: fmt.Sprintf("opcode %d", op)}
	}
	return false, nil
}

func opSymbol(op Opcode) string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	}
	return "?"
}

func compareResult(op Opcode, cmp int) bool {
	switch op {
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	}
	return false
}

func asIndex(v Value) (int, bool) {
	switch v.Kind() {
	case KindInt:
		return int(v.AsInt()), true
	case KindFloat:
		return int(v.AsFloat()), true
	}
	return 0, false
}

func (vm *VM) doPrint(v Value) {
	fmt.Fprintln(vm.out, v.Render())
}

// callName implements CALL_NAME's dispatch protocol (spec.md §4.4):
// resolve the dynamic-callee sentinel, special-case the `print`
// builtin, then fall back to a user-defined function call.
func (vm *VM) callName(kName, argc int) error {
	name := vm.module.Consts[kName].AsString()

	if name == callSentinel {
		idx := len(vm.stack) - 1 - argc
		if idx < 0 {
			return &VMError{Kind: ErrCalleeNotString}
		}
		nameVal := vm.stack[idx]
		if nameVal.Kind() != KindString {
			return &VMError{Kind: ErrCalleeNotString}
		}
		copy(vm.stack[idx:], vm.stack[idx+1:])
		vm.stack = vm.stack[:len(vm.stack)-1]
		name = nameVal.AsString()
	}

	if name == "print" {
		args := vm.takeArgs(argc)
		for _, a := range args {
			vm.doPrint(a)
		}
		vm.push(Null)
		return nil
	}

	proto, ok := vm.module.Functions[name]
	if !ok {
		return &VMError{Kind: ErrUndefinedFunction, Msg: name}
	}

	args := vm.takeArgs(argc)
	nLocals := proto.NumLocals
	if argc > nLocals {
		nLocals = argc
	}
	locals := make([]Value, nLocals)
	copy(locals, args)

	vm.frames = append(vm.frames, frame{code: proto.Instructions, locals: locals})
	return nil
}

// takeArgs pops argc values off the stack and returns them in their
// original left-to-right evaluation order.
func (vm *VM) takeArgs(argc int) []Value {
	args := make([]Value, argc)
	copy(args, vm.stack[len(vm.stack)-argc:])
	vm.stack = vm.stack[:len(vm.stack)-argc]
	return args
}
