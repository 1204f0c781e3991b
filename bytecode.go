// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package flint

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// FunctionProto holds one function's compiled body (spec.md §3's
// `functions` map entries).
type FunctionProto struct {
	Name         string
	NumParams    int
	NumLocals    int
	Instructions []byte
}

// Fprint writes op, index pairs for fn's instruction stream in a
// human-readable disassembly (spec.md §4.5, expansion).
func (fn *FunctionProto) Fprint(w io.Writer) {
	fmt.Fprintf(w, "Params:%d Locals:%d\n", fn.NumParams, fn.NumLocals)
	fmt.Fprintln(w, "Instructions:")
	var operands []int
	i := 0
	for i < len(fn.Instructions) {
		op := fn.Instructions[i]
		widths := OpcodeOperands[op]
		ops, offset := ReadOperands(widths, fn.Instructions[i+1:], operands)
		operands = ops
		fmt.Fprintf(w, "%04d %-14s", i, OpcodeName(op))
		for _, v := range operands {
			fmt.Fprint(w, "    ", strconv.Itoa(v))
		}
		fmt.Fprintln(w)
		i += offset + 1
	}
}

// Module is the emitter's sole output artifact: constants, the global
// name table, every compiled function, and the entry sequence
// (spec.md §3's "Bytecode module").
type Module struct {
	Consts     []Value
	Globals    map[string]int // name -> global slot index, debugging only
	NumGlobals int
	Functions  map[string]*FunctionProto
	Entry      []byte
}

// Fprint writes the whole module in disassembled form.
func (m *Module) Fprint(w io.Writer) {
	fmt.Fprintln(w, "Module")
	fmt.Fprintf(w, "Globals:%d\n", m.NumGlobals)
	fmt.Fprintln(w, "Constants:")
	for i, c := range m.Consts {
		fmt.Fprintf(w, "%4d: %s\n", i, c.Render())
	}
	for _, name := range m.sortedFunctionNames() {
		fmt.Fprintf(w, "\nFunction %s:\n", name)
		m.Functions[name].Fprint(w)
	}
	fmt.Fprintln(w, "\nEntry:")
	entry := &FunctionProto{Instructions: m.Entry}
	entry.Fprint(w)
}

func (m *Module) sortedFunctionNames() []string {
	names := make([]string, 0, len(m.Functions))
	for n := range m.Functions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *Module) String() string {
	var buf bytes.Buffer
	m.Fprint(&buf)
	return buf.String()
}
