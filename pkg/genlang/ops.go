package genlang

import (
	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/machine"
	"github.com/ctwhite/yield/pkg/symbol"
)

// LArithmeticError is the condition type signaled by invalid arithmetic,
// such as division by zero.  The handle names the type in the default global
// table; Builtins interns the same name through whichever table it is given.
var LArithmeticError = symbol.Intern("arithmetic-error")

// LArgumentError is the condition type signaled when an operator receives
// the wrong number of arguments.
var LArgumentError = symbol.Intern("argument-error")

// builtins carries the condition type symbols interned through one table so
// that raised conditions match handler patterns read through the same table.
type builtins struct {
	typeError       symbol.ID
	arithmeticError symbol.ID
	argumentError   symbol.ID
}

// Builtins returns the operator table available to every generator
// definition.  Symbols are interned into table; a nil table uses the
// process-wide default symbol table.
func Builtins(table *symbol.Table) machine.OpMap {
	if table == nil {
		table = symbol.DefaultGlobalTable
	}
	b := &builtins{
		typeError:       table.Intern("type-error"),
		arithmeticError: table.Intern("arithmetic-error"),
		argumentError:   table.Intern("argument-error"),
	}
	ops := machine.OpMap{}
	def := func(name string, fn machine.Op) {
		id := table.Intern(name)
		ops[id] = machine.Named(id, table, fn)
	}
	def("+", b.opAdd)
	def("-", b.opSub)
	def("*", b.opMul)
	def("/", b.opDiv)
	def("mod", b.opMod)
	def("=", b.compareOp(func(c int) bool { return c == 0 }))
	def("<", b.compareOp(func(c int) bool { return c < 0 }))
	def("<=", b.compareOp(func(c int) bool { return c <= 0 }))
	def(">", b.compareOp(func(c int) bool { return c > 0 }))
	def(">=", b.compareOp(func(c int) bool { return c >= 0 }))
	def("not", b.opNot)
	def("eq?", b.opEq)
	def("nil?", b.opIsNil)
	def("cons", b.opCons)
	def("first", b.opFirst)
	def("rest", b.opRest)
	def("list", b.opList)
	def("raise", b.opRaise)
	return ops
}

type number struct {
	i     int
	f     float64
	isInt bool
}

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func (b *builtins) getNumber(v lisp.LVal) (number, error) {
	if x, ok := lisp.GetInt(v); ok {
		return number{i: x, isInt: true}, nil
	}
	if f, ok := lisp.GetFloat(v); ok {
		return number{f: f}, nil
	}
	return number{}, lisp.Raisef(b.typeError, "not a number: %v", v.Type())
}

func (b *builtins) numbers(args []lisp.LVal) ([]number, error) {
	ns := make([]number, len(args))
	for i, a := range args {
		var err error
		ns[i], err = b.getNumber(a)
		if err != nil {
			return nil, err
		}
	}
	return ns, nil
}

func allInt(ns []number) bool {
	for _, n := range ns {
		if !n.isInt {
			return false
		}
	}
	return true
}

func (b *builtins) opAdd(args ...lisp.LVal) (lisp.LVal, error) {
	ns, err := b.numbers(args)
	if err != nil {
		return lisp.Nil(), err
	}
	if allInt(ns) {
		sum := 0
		for _, n := range ns {
			sum += n.i
		}
		return lisp.Int(sum), nil
	}
	sum := 0.0
	for _, n := range ns {
		sum += n.float()
	}
	return lisp.Float(sum), nil
}

func (b *builtins) opSub(args ...lisp.LVal) (lisp.LVal, error) {
	ns, err := b.numbers(args)
	if err != nil {
		return lisp.Nil(), err
	}
	if len(ns) == 0 {
		return lisp.Nil(), lisp.Raisef(b.argumentError, "expects at least 1 argument")
	}
	if len(ns) == 1 {
		if ns[0].isInt {
			return lisp.Int(-ns[0].i), nil
		}
		return lisp.Float(-ns[0].f), nil
	}
	if allInt(ns) {
		acc := ns[0].i
		for _, n := range ns[1:] {
			acc -= n.i
		}
		return lisp.Int(acc), nil
	}
	acc := ns[0].float()
	for _, n := range ns[1:] {
		acc -= n.float()
	}
	return lisp.Float(acc), nil
}

func (b *builtins) opMul(args ...lisp.LVal) (lisp.LVal, error) {
	ns, err := b.numbers(args)
	if err != nil {
		return lisp.Nil(), err
	}
	if allInt(ns) {
		prod := 1
		for _, n := range ns {
			prod *= n.i
		}
		return lisp.Int(prod), nil
	}
	prod := 1.0
	for _, n := range ns {
		prod *= n.float()
	}
	return lisp.Float(prod), nil
}

func (b *builtins) opDiv(args ...lisp.LVal) (lisp.LVal, error) {
	ns, err := b.numbers(args)
	if err != nil {
		return lisp.Nil(), err
	}
	if len(ns) < 2 {
		return lisp.Nil(), lisp.Raisef(b.argumentError, "expects at least 2 arguments")
	}
	if allInt(ns) {
		acc := ns[0].i
		for _, n := range ns[1:] {
			if n.i == 0 {
				return lisp.Nil(), lisp.Raisef(b.arithmeticError, "division by zero")
			}
			acc /= n.i
		}
		return lisp.Int(acc), nil
	}
	acc := ns[0].float()
	for _, n := range ns[1:] {
		if n.float() == 0 {
			return lisp.Nil(), lisp.Raisef(b.arithmeticError, "division by zero")
		}
		acc /= n.float()
	}
	return lisp.Float(acc), nil
}

func (b *builtins) opMod(args ...lisp.LVal) (lisp.LVal, error) {
	if len(args) != 2 {
		return lisp.Nil(), lisp.Raisef(b.argumentError, "expects 2 arguments, got %d", len(args))
	}
	x, ok := lisp.GetInt(args[0])
	if !ok {
		return lisp.Nil(), lisp.Raisef(b.typeError, "not an int: %v", args[0].Type())
	}
	y, ok := lisp.GetInt(args[1])
	if !ok {
		return lisp.Nil(), lisp.Raisef(b.typeError, "not an int: %v", args[1].Type())
	}
	if y == 0 {
		return lisp.Nil(), lisp.Raisef(b.arithmeticError, "division by zero")
	}
	return lisp.Int(x % y), nil
}

// compareOp builds a chained numeric comparison from a predicate on the
// three-way comparison of adjacent arguments.
func (b *builtins) compareOp(ok func(cmp int) bool) machine.Op {
	return func(args ...lisp.LVal) (lisp.LVal, error) {
		ns, err := b.numbers(args)
		if err != nil {
			return lisp.Nil(), err
		}
		if len(ns) < 2 {
			return lisp.Nil(), lisp.Raisef(b.argumentError, "expects at least 2 arguments")
		}
		for i := 1; i < len(ns); i++ {
			a, c := ns[i-1].float(), ns[i].float()
			cmp := 0
			switch {
			case a < c:
				cmp = -1
			case a > c:
				cmp = 1
			}
			if !ok(cmp) {
				return lisp.False(), nil
			}
		}
		return lisp.True(), nil
	}
}

func (b *builtins) opNot(args ...lisp.LVal) (lisp.LVal, error) {
	if len(args) != 1 {
		return lisp.Nil(), lisp.Raisef(b.argumentError, "expects 1 argument, got %d", len(args))
	}
	return lisp.Bool(!lisp.IsTrue(args[0])), nil
}

func (b *builtins) opEq(args ...lisp.LVal) (lisp.LVal, error) {
	if len(args) != 2 {
		return lisp.Nil(), lisp.Raisef(b.argumentError, "expects 2 arguments, got %d", len(args))
	}
	return lisp.Bool(lisp.Equal(args[0], args[1])), nil
}

func (b *builtins) opIsNil(args ...lisp.LVal) (lisp.LVal, error) {
	if len(args) != 1 {
		return lisp.Nil(), lisp.Raisef(b.argumentError, "expects 1 argument, got %d", len(args))
	}
	return lisp.Bool(lisp.IsNil(args[0])), nil
}

func (b *builtins) opCons(args ...lisp.LVal) (lisp.LVal, error) {
	if len(args) != 2 {
		return lisp.Nil(), lisp.Raisef(b.argumentError, "expects 2 arguments, got %d", len(args))
	}
	return lisp.Cons(args[0], args[1]), nil
}

func (b *builtins) opFirst(args ...lisp.LVal) (lisp.LVal, error) {
	if len(args) != 1 {
		return lisp.Nil(), lisp.Raisef(b.argumentError, "expects 1 argument, got %d", len(args))
	}
	if lisp.IsNil(args[0]) {
		return lisp.Nil(), nil
	}
	c, ok := lisp.GetCons(args[0])
	if !ok {
		return lisp.Nil(), lisp.Raisef(b.typeError, "not a list: %v", args[0].Type())
	}
	return c.CAR(), nil
}

func (b *builtins) opRest(args ...lisp.LVal) (lisp.LVal, error) {
	if len(args) != 1 {
		return lisp.Nil(), lisp.Raisef(b.argumentError, "expects 1 argument, got %d", len(args))
	}
	if lisp.IsNil(args[0]) {
		return lisp.Nil(), nil
	}
	c, ok := lisp.GetCons(args[0])
	if !ok {
		return lisp.Nil(), lisp.Raisef(b.typeError, "not a list: %v", args[0].Type())
	}
	return c.CDR(), nil
}

func (b *builtins) opList(args ...lisp.LVal) (lisp.LVal, error) {
	return lisp.List(args...), nil
}

// opRaise signals a condition whose type is the first argument.  An optional
// second argument becomes the condition's payload.
func (b *builtins) opRaise(args ...lisp.LVal) (lisp.LVal, error) {
	if len(args) < 1 || len(args) > 2 {
		return lisp.Nil(), lisp.Raisef(b.argumentError, "expects 1 or 2 arguments, got %d", len(args))
	}
	typ, ok := lisp.GetSymbol(args[0])
	if !ok {
		return lisp.Nil(), lisp.Raisef(b.typeError, "condition type is not a symbol: %v", args[0].Type())
	}
	var data interface{}
	if len(args) == 2 {
		data = args[1]
	}
	return lisp.Nil(), lisp.RaiseCondition(lisp.Condition(typ, data))
}
