// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package flint

import (
	"errors"
	"fmt"

	"github.com/flint-lang/flint/parser"
)

// Sentinel VM failure kinds (spec.md §7). Wrapped by *VMError so callers
// can test with errors.Is.
var (
	ErrUndefinedFunction = errors.New("undefined function")
	ErrNotArray          = errors.New("value is not an array")
	ErrCalleeNotString   = errors.New("dynamic callee is not a string")
	ErrInvalidOpcode     = errors.New("invalid opcode")
	ErrIPOutOfRange      = errors.New("instruction pointer out of range")
	ErrZeroDivision      = errors.New("division by zero")
	ErrNegativeIndex     = errors.New("negative array index")
	ErrAborted           = errors.New("execution aborted")
)

// Sentinel CGError failure kinds (spec.md §4.3, §7).
var (
	ErrDuplicateGlobal = errors.New("duplicate global name")
	ErrAssignToConst   = errors.New("assignment to const")
	ErrUndefinedVar    = errors.New("undefined variable")
	ErrInvalidLValue   = errors.New("invalid assignment target")
	ErrUnknownOperator = errors.New("unknown operator")
)

// LexError reports a lexical problem surfaced through an ILLEGAL token.
type LexError struct {
	Pos     parser.Pos
	Literal string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("Lex Error: illegal token %q\n\tat %s", e.Literal, e.Pos)
}

// ParseError reports malformed grammar, unexpected EOF, or a missing
// include file (spec.md §7). It wraps the underlying *parser.Error.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string { return e.Cause.Error() }
func (e *ParseError) Unwrap() error { return e.Cause }

// Parse runs the parser over src and reports its result as either a
// *LexError (an ILLEGAL token made it to the parser) or a *ParseError
// (any other grammar/include failure), so a caller can tell the two
// apart with errors.As instead of inspecting *parser.Error directly.
func Parse(path string, src []byte, read parser.SourceReader) (*parser.Program, error) {
	prog, err := parser.Parse(path, src, read)
	if err == nil {
		return prog, nil
	}
	var lex *parser.LexError
	if errors.As(err, &lex) {
		return nil, &LexError{Pos: lex.Pos, Literal: lex.Literal}
	}
	return nil, &ParseError{Cause: err}
}

// CGError reports a code-generation (emission) failure: duplicate
// global, assignment to const, invalid L-value, undefined variable as
// L-value, unknown operator (spec.md §7).
type CGError struct {
	Pos  parser.Pos
	Kind error
	Msg  string
}

func (e *CGError) Error() string {
	return fmt.Sprintf("Compile Error: %s: %s\n\tat %s", e.Kind, e.Msg, e.Pos)
}

func (e *CGError) Unwrap() error { return e.Kind }

// VMError reports a runtime failure: undefined function name, indexing
// a non-array, malformed instruction stream (spec.md §7).
type VMError struct {
	Kind error
	Msg  string
}

func (e *VMError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("Runtime Error: %s", e.Kind)
	}
	return fmt.Sprintf("Runtime Error: %s: %s", e.Kind, e.Msg)
}

func (e *VMError) Unwrap() error { return e.Kind }
