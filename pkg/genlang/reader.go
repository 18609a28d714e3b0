package genlang

import (
	"fmt"

	"github.com/ctwhite/yield/pkg/gentree"
	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/symbol"
)

// Reader lowers parsed source forms into program trees.
//
// Recognized special forms:
//
//	(begin expr ...)
//	(if cond then else?)
//	(while test body ...)
//	(let ((name init) ...) body ...)
//	(let* ((name init) ...) body ...)
//	(set! name expr)
//	(yield expr? tag?)
//	(yield-from expr)
//	(handler-case body (condition-type (var?) clause-body ...) ...)
//	(quote expr)
//
// Any other list form is an operator call; any other symbol is a variable
// reference.
type Reader struct {
	table          *symbol.Table
	symBegin       symbol.ID
	symIf          symbol.ID
	symWhile       symbol.ID
	symLet         symbol.ID
	symLetSeq      symbol.ID
	symSet         symbol.ID
	symYield       symbol.ID
	symYieldFrom   symbol.ID
	symHandlerCase symbol.ID
	symQuote       symbol.ID
}

// NewReader returns a reader resolving special form names through table.  A
// nil table uses the process-wide default symbol table.
func NewReader(table *symbol.Table) *Reader {
	if table == nil {
		table = symbol.DefaultGlobalTable
	}
	return &Reader{
		table:          table,
		symBegin:       table.Intern("begin"),
		symIf:          table.Intern("if"),
		symWhile:       table.Intern("while"),
		symLet:         table.Intern("let"),
		symLetSeq:      table.Intern("let*"),
		symSet:         table.Intern("set!"),
		symYield:       table.Intern("yield"),
		symYieldFrom:   table.Intern("yield-from"),
		symHandlerCase: table.Intern("handler-case"),
		symQuote:       table.Intern("quote"),
	}
}

// Read lowers one source form into a program tree node.
func (r *Reader) Read(v lisp.LVal) (gentree.Node, error) {
	switch v.Type() {
	case lisp.LNil, lisp.LInt, lisp.LFloat, lisp.LString, lisp.LBool:
		return gentree.Literal{Val: v}, nil
	case lisp.LQuote:
		q, _ := lisp.GetQuote(v)
		return gentree.Quoted{Val: q}, nil
	case lisp.LSymbol:
		id, _ := lisp.GetSymbol(v)
		return gentree.Var{Name: id}, nil
	case lisp.LCons:
		return r.readForm(v)
	}
	return nil, fmt.Errorf("unexpected form: %s", lisp.FormatString(v, r.table))
}

// ReadSeq lowers a form list into a single node, wrapping multiple forms in
// an implicit sequence.
func (r *Reader) ReadSeq(forms []lisp.LVal) (gentree.Node, error) {
	if len(forms) == 1 {
		return r.Read(forms[0])
	}
	nodes := make([]gentree.Node, len(forms))
	for i, f := range forms {
		var err error
		nodes[i], err = r.Read(f)
		if err != nil {
			return nil, err
		}
	}
	return gentree.Seq{Nodes: nodes}, nil
}

func (r *Reader) readForm(v lisp.LVal) (gentree.Node, error) {
	forms, err := lisp.ConsSlice(v)
	if err != nil {
		return nil, fmt.Errorf("improper form: %s", lisp.FormatString(v, r.table))
	}
	if len(forms) == 0 {
		return gentree.Literal{Val: lisp.Nil()}, nil
	}
	head, ok := lisp.GetSymbol(forms[0])
	if !ok {
		return nil, fmt.Errorf("operator is not a symbol: %s", lisp.FormatString(forms[0], r.table))
	}
	args := forms[1:]
	switch head {
	case r.symBegin:
		return r.ReadSeq(args)
	case r.symIf:
		return r.readIf(args)
	case r.symWhile:
		return r.readWhile(args)
	case r.symLet:
		return r.readLet(args, false)
	case r.symLetSeq:
		return r.readLet(args, true)
	case r.symSet:
		return r.readSet(args)
	case r.symYield:
		return r.readYield(args)
	case r.symYieldFrom:
		return r.readYieldFrom(args)
	case r.symHandlerCase:
		return r.readHandlerCase(args)
	case r.symQuote:
		if len(args) != 1 {
			return nil, fmt.Errorf("quote: expects 1 form, got %d", len(args))
		}
		return gentree.Quoted{Val: args[0]}, nil
	}
	return r.readCall(head, args)
}

func (r *Reader) readIf(args []lisp.LVal) (gentree.Node, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("if: expects 2 or 3 forms, got %d", len(args))
	}
	cond, err := r.Read(args[0])
	if err != nil {
		return nil, err
	}
	then, err := r.Read(args[1])
	if err != nil {
		return nil, err
	}
	node := gentree.If{Cond: cond, Then: then}
	if len(args) == 3 {
		node.Else, err = r.Read(args[2])
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (r *Reader) readWhile(args []lisp.LVal) (gentree.Node, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("while: missing test form")
	}
	test, err := r.Read(args[0])
	if err != nil {
		return nil, err
	}
	body, err := r.ReadSeq(args[1:])
	if err != nil {
		return nil, err
	}
	return gentree.While{Test: test, Body: body}, nil
}

func (r *Reader) readLet(args []lisp.LVal, sequential bool) (gentree.Node, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("let: missing binding list")
	}
	bindForms, err := lisp.ConsSlice(args[0])
	if err != nil {
		return nil, fmt.Errorf("let: malformed binding list: %s", lisp.FormatString(args[0], r.table))
	}
	binds := make([]gentree.Bind, len(bindForms))
	for i, bf := range bindForms {
		pair, err := lisp.ConsSlice(bf)
		if err != nil || len(pair) != 2 {
			return nil, fmt.Errorf("let: malformed binding: %s", lisp.FormatString(bf, r.table))
		}
		name, ok := lisp.GetSymbol(pair[0])
		if !ok {
			return nil, fmt.Errorf("let: binding target is not a symbol: %s", lisp.FormatString(pair[0], r.table))
		}
		init, err := r.Read(pair[1])
		if err != nil {
			return nil, err
		}
		binds[i] = gentree.Bind{Name: name, Init: init}
	}
	body, err := r.ReadSeq(args[1:])
	if err != nil {
		return nil, err
	}
	return gentree.Let{Sequential: sequential, Binds: binds, Body: body}, nil
}

func (r *Reader) readSet(args []lisp.LVal) (gentree.Node, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("set!: expects 2 forms, got %d", len(args))
	}
	name, ok := lisp.GetSymbol(args[0])
	if !ok {
		return nil, fmt.Errorf("set!: assignment target is not a symbol: %s", lisp.FormatString(args[0], r.table))
	}
	value, err := r.Read(args[1])
	if err != nil {
		return nil, err
	}
	return gentree.Set{Name: name, Value: value}, nil
}

func (r *Reader) readYield(args []lisp.LVal) (gentree.Node, error) {
	if len(args) > 2 {
		return nil, fmt.Errorf("yield: expects at most 2 forms, got %d", len(args))
	}
	node := gentree.Yield{}
	if len(args) >= 1 {
		value, err := r.Read(args[0])
		if err != nil {
			return nil, err
		}
		node.Value = value
	}
	if len(args) == 2 {
		tag, ok := lisp.GetSymbol(args[1])
		if !ok {
			return nil, fmt.Errorf("yield: tag is not a symbol: %s", lisp.FormatString(args[1], r.table))
		}
		node.Tag = tag
	}
	return node, nil
}

func (r *Reader) readYieldFrom(args []lisp.LVal) (gentree.Node, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("yield-from: expects 1 form, got %d", len(args))
	}
	src, err := r.Read(args[0])
	if err != nil {
		return nil, err
	}
	return gentree.Delegate{Source: src}, nil
}

func (r *Reader) readHandlerCase(args []lisp.LVal) (gentree.Node, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("handler-case: missing body form")
	}
	body, err := r.Read(args[0])
	if err != nil {
		return nil, err
	}
	clauses := make([]gentree.Clause, len(args)-1)
	for i, cf := range args[1:] {
		clause, err := r.readClause(cf)
		if err != nil {
			return nil, fmt.Errorf("handler-case: clause %d: %w", i, err)
		}
		clauses[i] = clause
	}
	return gentree.Handler{Body: body, Clauses: clauses}, nil
}

func (r *Reader) readClause(v lisp.LVal) (gentree.Clause, error) {
	forms, err := lisp.ConsSlice(v)
	if err != nil || len(forms) < 2 {
		return gentree.Clause{}, fmt.Errorf("malformed clause: %s", lisp.FormatString(v, r.table))
	}
	pattern, ok := lisp.GetSymbol(forms[0])
	if !ok {
		return gentree.Clause{}, fmt.Errorf("condition type is not a symbol: %s", lisp.FormatString(forms[0], r.table))
	}
	varForms, err := lisp.ConsSlice(forms[1])
	if err != nil || len(varForms) > 1 {
		return gentree.Clause{}, fmt.Errorf("malformed condition variable list: %s", lisp.FormatString(forms[1], r.table))
	}
	clause := gentree.Clause{Pattern: pattern}
	if len(varForms) == 1 {
		name, ok := lisp.GetSymbol(varForms[0])
		if !ok {
			return gentree.Clause{}, fmt.Errorf("condition variable is not a symbol: %s", lisp.FormatString(varForms[0], r.table))
		}
		clause.Var = name
		clause.HasVar = true
	}
	body, err := r.ReadSeq(forms[2:])
	if err != nil {
		return gentree.Clause{}, err
	}
	clause.Body = body
	return clause, nil
}

func (r *Reader) readCall(fn symbol.ID, args []lisp.LVal) (gentree.Node, error) {
	nodes := make([]gentree.Node, len(args))
	for i, a := range args {
		var err error
		nodes[i], err = r.Read(a)
		if err != nil {
			return nil, err
		}
	}
	return gentree.Call{Fn: fn, Args: nodes}, nil
}
