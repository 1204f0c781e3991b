// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package flint

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value (spec.md §9: "a statically
// typed reimplementation should model Value as a tagged variant").
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// Value is the VM's dynamic value: one of null, bool, int, float,
// string or array-of-value (spec.md §3). Arrays are copy-on-write —
// every mutation produces a new backing slice (spec.md §4.4).
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
}

var Null = Value{kind: KindNull}

func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func String(s string) Value  { return Value{kind: KindString, s: s} }

// Array copies elems so the caller's slice can be reused freely.
func Array(elems []Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindArray, arr: cp}
}

func (v Value) Kind() Kind        { return v.kind }
func (v Value) AsBool() bool      { return v.b }
func (v Value) AsInt() int64      { return v.i }
func (v Value) AsFloat() float64  { return v.f }
func (v Value) AsString() string  { return v.s }
func (v Value) AsArray() []Value  { return v.arr }

// Truthy implements spec.md §4.4's truthiness table: empty string,
// zero, null, empty array are falsy; everything else is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindArray:
		return len(v.arr) != 0
	}
	return false
}

// Equal implements structural value equality, used both by the
// language's `==`/`!=` operators and by constant interning.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		// int/float cross-kind equality is not attempted: spec.md's
		// numeric promotion rule only governs arithmetic, not `==`.
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// internKey is a pure function of value identity as observed by the
// language, used to dedup the constant pool (spec.md §4.3).
func (v Value) internKey() string {
	switch v.kind {
	case KindNull:
		return "n:"
	case KindBool:
		if v.b {
			return "b:true"
		}
		return "b:false"
	case KindInt:
		return "i:" + strconv.FormatInt(v.i, 10)
	case KindFloat:
		return "f:" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return "s:" + v.s
	case KindArray:
		var sb strings.Builder
		sb.WriteString("a:[")
		for i, e := range v.arr {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(e.internKey())
		}
		sb.WriteByte(']')
		return sb.String()
	}
	return ""
}

// Render formats v the way `print` does (spec.md §4.4): null and
// booleans print their literal spelling, numbers and strings their
// lexical form, arrays as JSON with Unicode preserved verbatim.
func (v Value) Render() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindArray:
		b, err := json.Marshal(v.jsonValue())
		if err != nil {
			return "[]"
		}
		return string(b)
	}
	return ""
}

// jsonValue converts v into a plain Go value that encoding/json can
// marshal without Unicode escaping caveats (json.Marshal already
// leaves non-ASCII runes untouched by default for strings).
func (v Value) jsonValue() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.jsonValue()
		}
		return out
	}
	return nil
}

// BinaryNumeric applies an arithmetic operator to two numeric values,
// implementing spec.md §9's chosen numeric promotion rule: any Float
// operand promotes the result to Float; Int op Int stays Int.
func BinaryNumeric(op string, a, b Value) (Value, error) {
	if a.kind != KindInt && a.kind != KindFloat {
		return Value{}, fmt.Errorf("%w: left operand is %s", ErrUnknownOperator, a.kind)
	}
	if b.kind != KindInt && b.kind != KindFloat {
		return Value{}, fmt.Errorf("%w: right operand is %s", ErrUnknownOperator, b.kind)
	}

	if a.kind == KindFloat || b.kind == KindFloat {
		x, y := a.asFloat64(), b.asFloat64()
		switch op {
		case "+":
			return Float(x + y), nil
		case "-":
			return Float(x - y), nil
		case "*":
			return Float(x * y), nil
		case "/":
			if y == 0 {
				return Value{}, ErrZeroDivision
			}
			return Float(x / y), nil
		case "%":
			if y == 0 {
				return Value{}, ErrZeroDivision
			}
			return Float(mathMod(x, y)), nil
		}
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
	}

	x, y := a.i, b.i
	switch op {
	case "+":
		return Int(x + y), nil
	case "-":
		return Int(x - y), nil
	case "*":
		return Int(x * y), nil
	case "/":
		if y == 0 {
			return Value{}, ErrZeroDivision
		}
		return Int(x / y), nil
	case "%":
		if y == 0 {
			return Value{}, ErrZeroDivision
		}
		return Int(x % y), nil
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
}

func (v Value) asFloat64() float64 {
	if v.kind == KindFloat {
		return v.f
	}
	return float64(v.i)
}

// mathMod mirrors Int's `%` (truncated division, sign follows x).
func mathMod(x, y float64) float64 {
	return math.Mod(x, y)
}

// Compare orders two numeric or string values for the comparison
// operators (`<`, `<=`, `>`, `>=`). Arrays, bools and null are not
// orderable and yield ErrUnknownOperator.
func Compare(a, b Value) (int, error) {
	switch {
	case (a.kind == KindInt || a.kind == KindFloat) && (b.kind == KindInt || b.kind == KindFloat):
		x, y := a.asFloat64(), b.asFloat64()
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		default:
			return 0, nil
		}
	case a.kind == KindString && b.kind == KindString:
		return strings.Compare(a.s, b.s), nil
	}
	return 0, fmt.Errorf("%w: cannot compare %s and %s", ErrUnknownOperator, a.kind, b.kind)
}
