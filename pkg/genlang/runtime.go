package genlang

import (
	"fmt"
	"os"
	"sort"

	"github.com/ctwhite/yield/pkg/generator"
	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/machine"
	"github.com/ctwhite/yield/pkg/symbol"
)

// Runtime compiles generator definitions from source and instantiates them.
// The top level of a source file is a sequence of definitions:
//
//	(defgenerator name (param ...) body ...)
//
// Defined generators are callable as operators inside any definition loaded
// by the same runtime; calling one returns a fresh instance, typically
// handed to yield-from.  A Runtime is not safe for concurrent use.
type Runtime struct {
	table  *symbol.Table
	parser *Parser
	reader *Reader
	ops    machine.OpMap
	defs   map[symbol.ID]*generator.Def
	symDef symbol.ID
}

// NewRuntime returns a runtime with the builtin operator table.  A nil
// table uses the process-wide default symbol table.
func NewRuntime(table *symbol.Table) *Runtime {
	if table == nil {
		table = symbol.DefaultGlobalTable
	}
	return &Runtime{
		table:  table,
		parser: NewParser(table),
		reader: NewReader(table),
		ops:    Builtins(table),
		defs:   make(map[symbol.ID]*generator.Def),
		symDef: table.Intern("defgenerator"),
	}
}

// Table returns the runtime's symbol table.
func (rt *Runtime) Table() *symbol.Table {
	return rt.table
}

// RegisterOp installs a host operator callable from loaded definitions.
// Operators must be registered before loading definitions that call them.
func (rt *Runtime) RegisterOp(name string, fn machine.Op) {
	id := rt.table.Intern(name)
	rt.ops[id] = machine.Named(id, rt.table, fn)
}

// Load parses and compiles every definition in text.  Definitions may call
// each other regardless of their order in text.
func (rt *Runtime) Load(text []byte) error {
	forms, _, err := rt.parser.ParseLVal(text)
	if err != nil {
		return err
	}
	defs := make([]defForm, len(forms))
	for i, f := range forms {
		defs[i], err = rt.splitDef(f)
		if err != nil {
			return err
		}
	}
	// Constructor operators are registered before any body compiles so
	// definitions can instantiate themselves and each other in any order.
	for _, d := range defs {
		if _, ok := rt.ops[d.name]; !ok {
			rt.ops[d.name] = rt.constructorOp(d.name)
		}
	}
	for _, d := range defs {
		body, err := rt.reader.ReadSeq(d.body)
		if err != nil {
			return fmt.Errorf("%s: %w", symbol.String(d.name, rt.table), err)
		}
		def, err := generator.Define(d.name, body, d.params, rt.ops, rt.table)
		if err != nil {
			return err
		}
		rt.defs[d.name] = def
	}
	return nil
}

// LoadFile reads and loads the definitions in the file at path.
func (rt *Runtime) LoadFile(path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := rt.Load(text); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Def returns the named definition.
func (rt *Runtime) Def(name symbol.ID) (*generator.Def, bool) {
	def, ok := rt.defs[name]
	return def, ok
}

// Names returns the names of all loaded definitions, sorted by name.
func (rt *Runtime) Names() []symbol.ID {
	names := make([]symbol.ID, 0, len(rt.defs))
	for name := range rt.defs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return symbol.String(names[i], rt.table) < symbol.String(names[j], rt.table)
	})
	return names
}

// Instantiate creates an instance of the named definition.
func (rt *Runtime) Instantiate(name symbol.ID, args ...lisp.LVal) (*generator.Instance, error) {
	def, ok := rt.defs[name]
	if !ok {
		return nil, fmt.Errorf("%s: undefined generator", symbol.String(name, rt.table))
	}
	return generator.New(def, args...)
}

type defForm struct {
	name   symbol.ID
	params []symbol.ID
	body   []lisp.LVal
}

func (rt *Runtime) splitDef(v lisp.LVal) (defForm, error) {
	forms, err := lisp.ConsSlice(v)
	if err != nil || len(forms) < 3 {
		return defForm{}, fmt.Errorf("top level form is not a generator definition: %s",
			lisp.FormatString(v, rt.table))
	}
	head, ok := lisp.GetSymbol(forms[0])
	if !ok || head != rt.symDef {
		return defForm{}, fmt.Errorf("top level form is not a generator definition: %s",
			lisp.FormatString(v, rt.table))
	}
	name, ok := lisp.GetSymbol(forms[1])
	if !ok {
		return defForm{}, fmt.Errorf("generator name is not a symbol: %s",
			lisp.FormatString(forms[1], rt.table))
	}
	paramForms, err := lisp.ConsSlice(forms[2])
	if err != nil {
		return defForm{}, fmt.Errorf("%s: malformed parameter list: %s",
			symbol.String(name, rt.table), lisp.FormatString(forms[2], rt.table))
	}
	params := make([]symbol.ID, len(paramForms))
	for i, pf := range paramForms {
		params[i], ok = lisp.GetSymbol(pf)
		if !ok {
			return defForm{}, fmt.Errorf("%s: parameter is not a symbol: %s",
				symbol.String(name, rt.table), lisp.FormatString(pf, rt.table))
		}
	}
	return defForm{name: name, params: params, body: forms[3:]}, nil
}

func (rt *Runtime) constructorOp(name symbol.ID) machine.Op {
	return func(args ...lisp.LVal) (lisp.LVal, error) {
		def, ok := rt.defs[name]
		if !ok {
			return lisp.Nil(), fmt.Errorf("%s: undefined generator", symbol.String(name, rt.table))
		}
		in, err := generator.New(def, args...)
		if err != nil {
			return lisp.Nil(), err
		}
		return generator.Wrap(in), nil
	}
}
