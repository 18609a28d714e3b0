package compile

import (
	"fmt"
	"strings"

	"github.com/ctwhite/yield/pkg/gentree"
	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/machine"
	"github.com/ctwhite/yield/pkg/symbol"
)

// exprFunc evaluates a non-suspending expression against instance state.
type exprFunc func(t *machine.T) (lisp.LVal, error)

// compileExpr compiles an expression that must run to completion inside a
// single step: call arguments, branch and loop conditions, and yield values.
// Slot indices and operators are resolved here, at compile time, so the
// returned func touches only the instance's slot array at run time.
func (c *context) compileExpr(node gentree.Node) (exprFunc, string, error) {
	switch node := node.(type) {
	case gentree.Literal:
		v := node.Val
		return func(*machine.T) (lisp.LVal, error) { return v, nil },
			"(const " + lisp.FormatString(v, c.table) + ")", nil
	case gentree.Quoted:
		v := node.Val
		return func(*machine.T) (lisp.LVal, error) { return v, nil },
			"(quote " + lisp.FormatString(v, c.table) + ")", nil
	case gentree.Var:
		idx, ok := c.scope.lookup(node.Name)
		if !ok {
			return nil, "", fmt.Errorf("unbound variable: %s", symbol.String(node.Name, c.table))
		}
		return func(t *machine.T) (lisp.LVal, error) { return t.Slots().Get(idx), nil },
			"(var " + symbol.String(node.Name, c.table) + ")", nil
	case gentree.Call:
		return c.compileCallExpr(node)
	case nil:
		return nil, "", fmt.Errorf("missing expression")
	default:
		if gentree.Suspends(node) {
			return nil, "", fmt.Errorf("%s may not suspend inside an expression", gentree.Kind(node))
		}
		return nil, "", fmt.Errorf("%s node is not valid in expression position", gentree.Kind(node))
	}
}

func (c *context) compileCallExpr(node gentree.Call) (exprFunc, string, error) {
	op, ok := c.ops[node.Fn]
	if !ok {
		return nil, "", fmt.Errorf("undefined operator: %s", symbol.String(node.Fn, c.table))
	}
	args := make([]exprFunc, len(node.Args))
	texts := make([]string, 0, len(node.Args)+1)
	texts = append(texts, "(op "+symbol.String(node.Fn, c.table)+")")
	for i, argNode := range node.Args {
		if gentree.Suspends(argNode) {
			return nil, "", fmt.Errorf("call to %s: argument %d contains a %s; calls with suspending arguments are unsupported",
				symbol.String(node.Fn, c.table), i, gentree.Kind(argNode))
		}
		fn, text, err := c.compileExpr(argNode)
		if err != nil {
			return nil, "", fmt.Errorf("call to %s: argument %d: %w", symbol.String(node.Fn, c.table), i, err)
		}
		args[i] = fn
		texts = append(texts, text)
	}
	fn := func(t *machine.T) (lisp.LVal, error) {
		vals := make([]lisp.LVal, len(args))
		for i, arg := range args {
			v, err := arg(t)
			if err != nil {
				return lisp.Nil(), err
			}
			vals[i] = v
		}
		return op(vals...)
	}
	return fn, "(" + strings.Join(texts, " ") + ")", nil
}
