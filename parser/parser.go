// A parser for the flint scripting language. Structurally modeled on
// Tengo/uGo's hand-written, two-token-lookahead Pratt parser.

// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package parser

import (
	"fmt"
	"path/filepath"

	"github.com/flint-lang/flint/token"
)

// Error is a parser error carrying the offending token's position
// (spec.md §4.2, §7).
type Error struct {
	Pos Pos
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("Parse Error: %s\n\tat %s", e.Msg, e.Pos)
}

// LexError is a parser error raised specifically by an ILLEGAL token
// (spec.md §7's LexicalError), kept distinct from Error so a caller can
// tell a bad character apart from ordinary malformed grammar.
type LexError struct {
	Pos     Pos
	Literal string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("Lex Error: illegal token %q\n\tat %s", e.Literal, e.Pos)
}

// SourceReader reads the bytes of a source file given its path. The
// host provides this collaborator (spec.md §1's "read source-bytes
// from a filesystem path"); the parser package never touches the
// filesystem directly.
type SourceReader func(path string) ([]byte, error)

// IncludeSet is the shared, canonical-path dedup set threaded through
// every Parser instance created during a single top-level parse
// (spec.md §4.2, §5).
type IncludeSet struct {
	seen map[string]struct{}
}

// NewIncludeSet creates an empty IncludeSet.
func NewIncludeSet() *IncludeSet {
	return &IncludeSet{seen: make(map[string]struct{})}
}

// tryMark reports whether path was not seen before, marking it seen
// either way.
func (s *IncludeSet) tryMark(path string) bool {
	if _, ok := s.seen[path]; ok {
		return false
	}
	s.seen[path] = struct{}{}
	return true
}

type bailout struct{}

// Parser parses flint source into an AST. It uses two-token lookahead
// (cur, peek) over a Lexer and Pratt-style precedence climbing for
// expressions (spec.md §4.2).
type Parser struct {
	path string
	dir  string
	lex  *Lexer

	cur, peek Token

	read     SourceReader
	includes *IncludeSet

	err error // either *Error or *LexError
}

func newParser(path string, src []byte, read SourceReader, includes *IncludeSet) *Parser {
	p := &Parser{
		path:     path,
		dir:      filepath.Dir(path),
		lex:      NewLexer(path, src),
		read:     read,
		includes: includes,
	}
	p.next()
	p.next()
	return p
}

// Parse parses the top-level file at path with contents src. read is
// used to resolve `include` directives.
func Parse(path string, src []byte, read SourceReader) (prog *Program, err error) {
	includes := NewIncludeSet()
	if canon, cerr := filepath.Abs(path); cerr == nil {
		includes.tryMark(canon)
	} else {
		includes.tryMark(path)
	}
	p := newParser(path, src, read, includes)
	return p.parseProgram()
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
}

func (p *Parser) parseProgram() (prog *Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); ok {
				err = p.err
				return
			}
			panic(r)
		}
	}()

	var stmts []Stmt
	for p.cur.Kind != token.EOF {
		stmts = append(stmts, p.parseStmt())
	}
	return &Program{Stmts: stmts}, nil
}

func (p *Parser) error(pos Pos, msg string) {
	if p.err == nil {
		p.err = &Error{Pos: pos, Msg: msg}
	}
	panic(bailout{})
}

// lexError aborts the parse with a LexError rather than an ordinary
// Error, for the one case the parser can pin on the lexer itself: an
// ILLEGAL token reaching the point where an operand was expected.
func (p *Parser) lexError(pos Pos, literal string) {
	if p.err == nil {
		p.err = &LexError{Pos: pos, Literal: literal}
	}
	panic(bailout{})
}

func (p *Parser) expect(kind token.Token) Pos {
	pos := p.cur.Pos
	if p.cur.Kind != kind {
		p.error(pos, fmt.Sprintf("expected %q, found %q", kind, p.cur.Kind))
	}
	p.next()
	return pos
}

func (p *Parser) expectSemi() {
	p.expect(token.Semicolon)
}

func (p *Parser) parseIdentName() string {
	if p.cur.Kind != token.Ident {
		p.error(p.cur.Pos, fmt.Sprintf("expected identifier, found %q", p.cur.Kind))
	}
	name := p.cur.Literal
	p.next()
	return name
}

// ---------------------------------------------------------------------------
// Statements

func (p *Parser) parseStmt() Stmt {
	switch p.cur.Kind {
	case token.Let:
		return p.parseLetStmt(true)
	case token.Const:
		return p.parseConstStmt()
	case token.Fun:
		return p.parseFunDecl()
	case token.If:
		return p.parseIfStmt()
	case token.While:
		return p.parseWhileStmt()
	case token.For:
		return p.parseForStmt()
	case token.Return:
		return p.parseReturnStmt()
	case token.LBrace:
		return p.parseBlockStmt()
	case token.Include:
		return p.parseIncludeStmt()
	default:
		return p.parseExprStmt(true)
	}
}

func (p *Parser) parseLetStmt(consumeSemi bool) *LetStmt {
	pos := p.cur.Pos
	p.next() // 'let'
	name := p.parseIdentName()
	var init Expr
	if p.cur.Kind == token.Assign {
		p.next()
		init = p.parseExpr(token.LowestPrec + 1)
	}
	if consumeSemi {
		p.expectSemi()
	}
	return &LetStmt{TokPos: pos, Name: name, Init: init}
}

func (p *Parser) parseConstStmt() *ConstStmt {
	pos := p.cur.Pos
	p.next() // 'const'
	name := p.parseIdentName()
	p.expect(token.Assign)
	init := p.parseExpr(token.LowestPrec + 1)
	p.expectSemi()
	return &ConstStmt{TokPos: pos, Name: name, Init: init}
}

func (p *Parser) parseExprStmt(consumeSemi bool) *ExprStmt {
	x := p.parseExpr(token.LowestPrec + 1)
	if consumeSemi {
		p.expectSemi()
	}
	return &ExprStmt{X: x}
}

// parseSimpleStmt parses one of the three for-header components,
// without consuming the separating ';' or ')'.
func (p *Parser) parseSimpleStmt() Stmt {
	if p.cur.Kind == token.Let {
		return p.parseLetStmt(false)
	}
	return p.parseExprStmt(false)
}

func (p *Parser) parseBlockStmt() *BlockStmt {
	pos := p.expect(token.LBrace)
	var stmts []Stmt
	for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		stmts = append(stmts, p.parseStmt())
	}
	p.expect(token.RBrace)
	return &BlockStmt{TokPos: pos, Stmts: stmts}
}

func (p *Parser) parseIfStmt() *IfStmt {
	pos := p.cur.Pos
	p.next() // 'if'
	p.expect(token.LParen)
	cond := p.parseExpr(token.LowestPrec + 1)
	p.expect(token.RParen)
	var then *BlockStmt
	if p.cur.Kind == token.LBrace {
		then = p.parseBlockStmt()
	} else {
		s := p.parseStmt()
		then = &BlockStmt{TokPos: s.Pos(), Stmts: []Stmt{s}}
	}

	var els Stmt
	if p.cur.Kind == token.Else {
		p.next()
		if p.cur.Kind == token.If {
			els = p.parseIfStmt()
		} else {
			els = p.parseBlockStmt()
		}
	}
	return &IfStmt{TokPos: pos, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhileStmt() *WhileStmt {
	pos := p.cur.Pos
	p.next() // 'while'
	p.expect(token.LParen)
	cond := p.parseExpr(token.LowestPrec + 1)
	p.expect(token.RParen)
	body := p.parseBlockStmt()
	return &WhileStmt{TokPos: pos, Cond: cond, Body: body}
}

func (p *Parser) parseForStmt() *ForStmt {
	pos := p.cur.Pos
	p.next() // 'for'
	p.expect(token.LParen)

	var init Stmt
	if p.cur.Kind != token.Semicolon {
		init = p.parseSimpleStmt()
	}
	p.expect(token.Semicolon)

	var cond Expr
	if p.cur.Kind != token.Semicolon {
		cond = p.parseExpr(token.LowestPrec + 1)
	}
	p.expect(token.Semicolon)

	var step Stmt
	if p.cur.Kind != token.RParen {
		step = p.parseSimpleStmt()
	}
	p.expect(token.RParen)

	body := p.parseBlockStmt()
	return &ForStmt{TokPos: pos, Init: init, Cond: cond, Step: step, Body: body}
}

func (p *Parser) parseReturnStmt() *ReturnStmt {
	pos := p.cur.Pos
	p.next() // 'return'
	var val Expr
	if p.cur.Kind != token.Semicolon {
		val = p.parseExpr(token.LowestPrec + 1)
	}
	p.expectSemi()
	return &ReturnStmt{TokPos: pos, Value: val}
}

func (p *Parser) parseFunDecl() *FunDecl {
	pos := p.cur.Pos
	p.next() // 'fun'
	name := p.parseIdentName()
	p.expect(token.LParen)
	var params []string
	for p.cur.Kind != token.RParen {
		params = append(params, p.parseIdentName())
		if p.cur.Kind == token.Comma {
			p.next()
		} else {
			break
		}
	}
	p.expect(token.RParen)
	body := p.parseBlockStmt()
	return &FunDecl{TokPos: pos, Name: name, Params: params, Body: body}
}

// parseIncludeStmt resolves `include "path";` at parse time: it reads,
// lexes and parses the target file with a fresh Parser sharing this
// parse's IncludeSet, then splices the result in as a BlockStmt. A
// repeated include of the same canonical path silently becomes an
// empty block (spec.md §4.2).
func (p *Parser) parseIncludeStmt() Stmt {
	pos := p.cur.Pos
	p.next() // 'include'

	if p.cur.Kind != token.Str {
		p.error(p.cur.Pos, fmt.Sprintf("expected string literal path, found %q", p.cur.Kind))
	}
	rawPath := p.cur.Literal
	p.next()
	p.expectSemi()

	target := rawPath
	if !filepath.IsAbs(target) {
		target = filepath.Join(p.dir, target)
	}
	canon, cerr := filepath.Abs(target)
	if cerr != nil {
		canon = filepath.Clean(target)
	}

	if !p.includes.tryMark(canon) {
		return &BlockStmt{TokPos: pos}
	}

	src, rerr := p.read(target)
	if rerr != nil {
		p.error(pos, fmt.Sprintf("cannot include %q: %v", rawPath, rerr))
	}

	child := newParser(canon, src, p.read, p.includes)
	childProg, perr := child.parseProgram()
	if perr != nil {
		p.err = perr
		panic(bailout{})
	}

	return &BlockStmt{TokPos: pos, Stmts: childProg.Stmts}
}

// ---------------------------------------------------------------------------
// Expressions

// parseExpr implements precedence-climbing with Assign as the single
// right-associative operator; every other binary operator is left
// associative (spec.md §4.2).
func (p *Parser) parseExpr(prec int) Expr {
	left := p.parseUnaryExpr()

	for {
		op := p.cur.Kind
		opPrec := op.Precedence()
		if opPrec == token.LowestPrec || opPrec < prec {
			return left
		}

		pos := p.cur.Pos
		if op == token.Assign {
			p.next()
			right := p.parseExpr(opPrec)
			left = &AssignExpr{TokPos: pos, LHS: left, RHS: right}
			continue
		}

		p.next()
		right := p.parseExpr(opPrec + 1)
		left = &BinaryExpr{TokPos: pos, Op: op, X: left, Y: right}
	}
}

func (p *Parser) parseUnaryExpr() Expr {
	switch p.cur.Kind {
	case token.Sub, token.Not:
		pos, op := p.cur.Pos, p.cur.Kind
		p.next()
		x := p.parseUnaryExpr()
		return &UnaryExpr{TokPos: pos, Op: op, X: x}
	}
	return p.parsePrimaryExpr()
}

func (p *Parser) parsePrimaryExpr() Expr {
	x := p.parseOperand()
	for {
		switch p.cur.Kind {
		case token.LBrack:
			x = p.parseIndex(x)
		case token.LParen:
			x = p.parseCall(x)
		default:
			return x
		}
	}
}

func (p *Parser) parseOperand() Expr {
	pos := p.cur.Pos
	switch p.cur.Kind {
	case token.Ident:
		name := p.cur.Literal
		p.next()
		return &Ident{TokPos: pos, Name: name}
	case token.Int, token.Float:
		raw := p.cur.Literal
		p.next()
		return &NumberLit{TokPos: pos, Raw: raw}
	case token.Str:
		val := p.cur.Literal
		p.next()
		return &StringLit{TokPos: pos, Value: val}
	case token.True, token.False:
		val := p.cur.Kind == token.True
		p.next()
		return &BoolLit{TokPos: pos, Value: val}
	case token.Null:
		p.next()
		return &NullLit{TokPos: pos}
	case token.LBrack:
		return p.parseArrayLit()
	case token.LParen:
		p.next()
		x := p.parseExpr(token.LowestPrec + 1)
		p.expect(token.RParen)
		return x
	case token.Illegal:
		p.lexError(pos, p.cur.Literal)
		return nil
	}
	p.error(pos, fmt.Sprintf("unexpected token %q", p.cur.Kind))
	return nil
}

func (p *Parser) parseArrayLit() *ArrayLit {
	pos := p.expect(token.LBrack)
	var elems []Expr
	for p.cur.Kind != token.RBrack {
		elems = append(elems, p.parseExpr(token.LowestPrec+1))
		if p.cur.Kind == token.Comma {
			p.next()
		} else {
			break
		}
	}
	p.expect(token.RBrack)
	return &ArrayLit{TokPos: pos, Elements: elems}
}

func (p *Parser) parseIndex(x Expr) Expr {
	p.expect(token.LBrack)
	idx := p.parseExpr(token.LowestPrec + 1)
	p.expect(token.RBrack)
	return &IndexExpr{X: x, Index: idx}
}

func (p *Parser) parseCall(callee Expr) Expr {
	p.expect(token.LParen)
	var args []Expr
	for p.cur.Kind != token.RParen {
		args = append(args, p.parseExpr(token.LowestPrec+1))
		if p.cur.Kind == token.Comma {
			p.next()
		} else {
			break
		}
	}
	p.expect(token.RParen)
	return &CallExpr{Callee: callee, Args: args}
}
