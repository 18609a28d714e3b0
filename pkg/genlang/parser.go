// Package genlang provides the s-expression surface language for generator
// definitions: a parser producing plain values, a reader lowering source
// forms into program trees, a set of builtin operators, and a runtime that
// compiles and instantiates definitions.
//
//	expr   := '(' <expr>* ')' | <number> | <string> | <symbol> | ''' <expr>
//	number := /[+-]?[0-9]+/ <fraction>? <exponent>?
//	string := '"' <strcontent> '"'
//	symbol := /[^[:space:]()'";0-9][^[:space:]()'";]*/
package genlang

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	parsec "github.com/prataprc/goparsec"

	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/symbol"
)

// Parser parses source text into values.  Symbols are interned into the
// parser's table.
type Parser struct {
	table *symbol.Table
	expr  parsec.Parser
}

// NewParser returns a parser interning symbols into table.  A nil table uses
// the process-wide default symbol table.
func NewParser(table *symbol.Table) *Parser {
	if table == nil {
		table = symbol.DefaultGlobalTable
	}
	p := &Parser{table: table}
	p.expr = p.newParsecParser()
	return p
}

// ParseLVal parses every expression in text.  The number of bytes consumed
// is returned along with any error encountered in parsing.
func (p *Parser) ParseLVal(text []byte) ([]lisp.LVal, int, error) {
	var vs []lisp.LVal
	s := parsec.NewScanner(text)
	var root parsec.ParsecNode
	root, s = p.expr(s)
	for root != nil {
		v, ok, err := getLVal(root)
		if err != nil {
			return vs, s.GetCursor(), err
		}
		if ok {
			vs = append(vs, v)
		}
		root, s = p.expr(s)
	}
	// Trailing whitespace is not consumed by a failed parse attempt.
	_, s = s.SkipWS()
	if !s.Endof() {
		return vs, s.GetCursor(), io.ErrUnexpectedEOF
	}
	return vs, s.GetCursor(), nil
}

func (p *Parser) newParsecParser() parsec.Parser {
	openP := parsec.Atom("(", "OPENP")
	closeP := parsec.Atom(")", "CLOSEP")
	q := parsec.Atom("'", "QUOTE")
	comment := parsec.Token(`;([^\n]*[^\s])?`, "COMMENT")
	decimal := parsec.Token(`[+-]?[0-9]+([.][0-9]+)?([eE][+-]?[0-9]+)?`, "DECIMAL")
	symbolTok := parsec.Token(`[^\s()'";0-9][^\s()'";]*`, "SYMBOL")
	term := parsec.OrdChoice(p.termNode, // terminal token
		parsec.String(),
		decimal,
		symbolTok, // symbol comes last because it swallows anything
	)
	var expr parsec.Parser // forward declaration allows for recursive parsing
	exprList := parsec.Kleene(nil, &expr)
	sexpr := parsec.And(p.listNode, openP, exprList, closeP)
	qexpr := parsec.And(p.quoteNode, q, &expr)
	expr = parsec.OrdChoice(nil, comment, term, sexpr, qexpr)
	return expr
}

// badTerm carries a token-level parse error through the parser combinators
// so it can surface from ParseLVal.
type badTerm struct {
	err error
}

func (p *Parser) termNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	nodes = cleanNodeList(nodes)
	if len(nodes) == 0 {
		return badTerm{fmt.Errorf("empty term")}
	}
	switch term := nodes[0].(type) {
	case string:
		return lisp.String(unquoteString(term))
	case *parsec.Terminal:
		switch term.Name {
		case "DECIMAL":
			if strings.ContainsAny(term.Value, ".eE") {
				f, err := strconv.ParseFloat(term.Value, 64)
				if err != nil {
					return badTerm{fmt.Errorf("bad number: %v (%s)", err, term.Value)}
				}
				return lisp.Float(f)
			}
			x, err := strconv.Atoi(term.Value)
			if err != nil {
				return badTerm{fmt.Errorf("bad number: %v (%s)", err, term.Value)}
			}
			return lisp.Int(x)
		case "SYMBOL":
			switch term.Value {
			case "true":
				return lisp.True()
			case "false":
				return lisp.False()
			}
			return lisp.Symbol(p.table.Intern(term.Value))
		}
	}
	return badTerm{fmt.Errorf("unexpected term: %v", nodes[0])}
}

func (p *Parser) listNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	nodes = cleanNodeList(nodes)
	var items []lisp.LVal
	// terminal parsec nodes '(' and ')' are dropped
	for _, c := range nodes {
		switch c := c.(type) {
		case lisp.LVal:
			items = append(items, c)
		case badTerm:
			return c
		}
	}
	return lisp.List(items...)
}

func (p *Parser) quoteNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	nodes = cleanNodeList(nodes)
	if len(nodes) < 2 {
		return badTerm{fmt.Errorf("missing quoted expression")}
	}
	switch c := nodes[1].(type) {
	case lisp.LVal:
		return lisp.Quote(c)
	case badTerm:
		return c
	}
	return badTerm{fmt.Errorf("unexpected quoted expression: %v", nodes[1])}
}

func cleanNodeList(lis []parsec.ParsecNode) []parsec.ParsecNode {
	var nodes []parsec.ParsecNode
	for _, n := range lis {
		switch node := n.(type) {
		case []parsec.ParsecNode:
			nodes = append(nodes, cleanNodeList(node)...)
		default:
			nodes = append(nodes, node)
		}
	}
	return nodes
}

func getLVal(root parsec.ParsecNode) (lisp.LVal, bool, error) {
	nodes := cleanNodeList([]parsec.ParsecNode{root})
	if len(nodes) == 0 {
		// only whitespace
		return lisp.Nil(), false, nil
	}
	switch v := nodes[0].(type) {
	case lisp.LVal:
		return v, true, nil
	case badTerm:
		return lisp.Nil(), false, v.err
	}
	// only a comment
	return lisp.Nil(), false, nil
}

func unquoteString(s string) string {
	return s[1 : len(s)-1]
}
