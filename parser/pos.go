// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package parser

import "fmt"

// Pos is a source position: path, one-based line, one-based column.
// The zero value is not a valid position.
type Pos struct {
	Path   string
	Line   int
	Column int
}

// NoPos is the zero value of Pos and represents an invalid position.
var NoPos = Pos{}

// IsValid reports whether p was set by the lexer rather than left zero.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

func (p Pos) String() string {
	if p.Path == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Path, p.Line, p.Column)
}
