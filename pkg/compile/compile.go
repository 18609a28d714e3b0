/*
Package compile transforms a program tree into a flat step program through a
compile-time continuation-passing transformation.  Each node is compiled
against the name of the step control should reach after the node produces its
value; sequences fold right-to-left so every continuation already exists when
it is referenced (backward continuation threading, no forward patching).

Suspension is positional: a yield or delegate step is always immediately
followed in array order by a generated step that jumps to the suspended
node's continuation.  Resuming is therefore a constant-time cursor increment
regardless of the control context the suspension appeared in.
*/
package compile

import (
	"fmt"

	"github.com/ctwhite/yield/pkg/gentree"
	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/machine"
	"github.com/ctwhite/yield/pkg/slot"
	"github.com/ctwhite/yield/pkg/symbol"
)

// Result is the compiled artifact for one generator definition.
type Result struct {
	// Program is the validated step array, shared by all instances.
	Program *machine.Program
	// Arch names every lifted slot an instance must allocate.
	Arch *slot.Arch
	// ValueIndex is the slot holding the most recently produced value.
	ValueIndex int
	// FinalIndex is the slot holding the eventual return value.
	FinalIndex int
	// ParamIndices are the slots of the definition's parameters, in
	// declaration order; arguments are deposited here at instance creation.
	ParamIndices []int
}

// Compile transforms tree into a step program.  The params establish the
// generator's arguments as pre-lifted variables bound in the root scope.
// Operator names in call nodes resolve against ops at compile time.  A nil
// table uses the process-wide default symbol table.
func Compile(name symbol.ID, tree gentree.Node, params []symbol.ID, ops machine.OpMap, table *symbol.Table) (*Result, error) {
	if table == nil {
		table = symbol.DefaultGlobalTable
	}
	if ops == nil {
		ops = machine.OpMap{}
	}
	c := newContext(table, ops)
	paramIdx := make([]int, len(params))
	for i, p := range params {
		if _, ok := c.scope.vars[p]; ok {
			return nil, fmt.Errorf("duplicate parameter: %s", symbol.String(p, table))
		}
		idx, err := c.liftVar(c.scope, p)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		paramIdx[i] = idx
	}

	// The final step is emitted first so it lands at the end of the array.
	// It runs outside every handler scope and is the only step allowed to
	// signal done.
	finalIdx := c.finalIdx
	final := c.emit(c.gensym("final-"), "(done)", func(t *machine.T) machine.Signal {
		v := t.Value()
		t.Slots().Set(finalIdx, v)
		return machine.Done(v)
	})

	if tree == nil {
		tree = gentree.Seq{}
	}
	entry, err := c.transform(tree, final)
	if err != nil {
		return nil, err
	}

	arch, err := slot.MakeArch(c.slots...)
	if err != nil {
		return nil, err
	}
	prog, err := machine.New(name, entry, c.finish(), c.refs)
	if err != nil {
		return nil, err
	}
	return &Result{
		Program:      prog,
		Arch:         arch,
		ValueIndex:   c.valueIdx,
		FinalIndex:   c.finalIdx,
		ParamIndices: paramIdx,
	}, nil
}

// transform compiles node so that, after producing its value into the value
// slot, control jumps to next.  It returns the name of the step at which
// execution of node begins.
func (c *context) transform(node gentree.Node, next symbol.ID) (symbol.ID, error) {
	switch node := node.(type) {
	case gentree.Literal, gentree.Quoted, gentree.Var, gentree.Call:
		return c.transformExprStep(node, next)
	case gentree.Seq:
		return c.transformSeq(node, next)
	case gentree.If:
		return c.transformIf(node, next)
	case gentree.While:
		return c.transformWhile(node, next)
	case gentree.Let:
		return c.transformLet(node, next)
	case gentree.Set:
		return c.transformSet(node, next)
	case gentree.Yield:
		return c.transformYield(node, next)
	case gentree.Delegate:
		return c.transformDelegate(node, next)
	case gentree.Handler:
		return c.transformHandler(node, next)
	case nil:
		return 0, fmt.Errorf("nil program tree node")
	default:
		return 0, fmt.Errorf("unrecognized node kind: %s (%T)", gentree.Kind(node), node)
	}
}

// transformExprStep compiles a non-suspending expression node into a single
// step that deposits the expression's value and continues.
func (c *context) transformExprStep(node gentree.Node, next symbol.ID) (symbol.ID, error) {
	fn, text, err := c.compileExpr(node)
	if err != nil {
		return 0, err
	}
	c.ref(next)
	return c.emit(c.gensym("step-"), "(assign value "+text+")", func(t *machine.T) machine.Signal {
		v, err := fn(t)
		if err != nil {
			return machine.Error(lisp.AsCondition(err))
		}
		t.SetValue(v)
		return machine.Jump(next)
	}), nil
}

func (c *context) transformSeq(node gentree.Seq, next symbol.ID) (symbol.ID, error) {
	if len(node.Nodes) == 0 {
		c.ref(next)
		return c.emit(c.gensym("step-"), "(assign value (const ()))", func(t *machine.T) machine.Signal {
			t.SetValue(lisp.Nil())
			return machine.Jump(next)
		}), nil
	}
	if err := c.preLiftSets(node); err != nil {
		return 0, err
	}
	entry := next
	for i := len(node.Nodes) - 1; i >= 0; i-- {
		var err error
		entry, err = c.transform(node.Nodes[i], entry)
		if err != nil {
			return 0, fmt.Errorf("seq element %d: %w", i, err)
		}
	}
	return entry, nil
}

// preLiftSets binds every assignment target reachable from node into the
// current scope before the sequence compiles.  The fold compiles a
// statement's continuation first, so a read of a variable compiles before
// the assignment that precedes it in program order; lifting targets up front
// keeps compile-time scope aligned with program order.  Constructs that
// introduce their own scope (let bindings, handler clause bodies) are not
// entered.
func (c *context) preLiftSets(node gentree.Node) error {
	switch node := node.(type) {
	case gentree.Seq:
		for _, sub := range node.Nodes {
			if err := c.preLiftSets(sub); err != nil {
				return err
			}
		}
	case gentree.If:
		if err := c.preLiftSets(node.Then); err != nil {
			return err
		}
		if node.Else != nil {
			return c.preLiftSets(node.Else)
		}
	case gentree.While:
		return c.preLiftSets(node.Body)
	case gentree.Set:
		if node.Name == 0 {
			return fmt.Errorf("assignment target is not a variable")
		}
		if _, ok := c.scope.lookup(node.Name); !ok {
			if _, err := c.liftVar(c.scope, node.Name); err != nil {
				return err
			}
		}
		return c.preLiftSets(node.Value)
	case gentree.Delegate:
		return c.preLiftSets(node.Source)
	case gentree.Handler:
		return c.preLiftSets(node.Body)
	}
	return nil
}

func (c *context) transformIf(node gentree.If, next symbol.ID) (symbol.ID, error) {
	var elseNode gentree.Node = gentree.Seq{}
	if node.Else != nil {
		elseNode = node.Else
	}
	elseEntry, err := c.transform(elseNode, next)
	if err != nil {
		return 0, fmt.Errorf("else branch: %w", err)
	}
	thenEntry, err := c.transform(node.Then, next)
	if err != nil {
		return 0, fmt.Errorf("then branch: %w", err)
	}
	fn, text, err := c.compileExpr(node.Cond)
	if err != nil {
		return 0, fmt.Errorf("if condition: %w", err)
	}
	c.ref(thenEntry)
	c.ref(elseEntry)
	return c.emit(c.gensym("branch-"), "(branch "+text+")", func(t *machine.T) machine.Signal {
		v, err := fn(t)
		if err != nil {
			return machine.Error(lisp.AsCondition(err))
		}
		if lisp.IsTrue(v) {
			return machine.Jump(thenEntry)
		}
		return machine.Jump(elseEntry)
	}), nil
}

func (c *context) transformWhile(node gentree.While, next symbol.ID) (symbol.ID, error) {
	head := c.gensym("loop-")
	bodyEntry, err := c.transform(node.Body, head)
	if err != nil {
		return 0, fmt.Errorf("loop body: %w", err)
	}
	fn, text, err := c.compileExpr(node.Test)
	if err != nil {
		return 0, fmt.Errorf("loop test: %w", err)
	}
	c.ref(bodyEntry)
	c.ref(next)
	c.emit(head, "(loop "+text+")", func(t *machine.T) machine.Signal {
		v, err := fn(t)
		if err != nil {
			return machine.Error(lisp.AsCondition(err))
		}
		if lisp.IsTrue(v) {
			return machine.Jump(bodyEntry)
		}
		t.SetValue(lisp.Nil())
		return machine.Jump(next)
	})
	return head, nil
}

func (c *context) transformLet(node gentree.Let, next symbol.ID) (symbol.ID, error) {
	outer := c.scope
	inner := newScope(outer)
	idx := make([]int, len(node.Binds))
	for i, b := range node.Binds {
		if b.Init == nil {
			return 0, fmt.Errorf("let binding %d: missing initializer", i)
		}
		var err error
		idx[i], err = c.liftVar(inner, b.Name)
		if err != nil {
			return 0, fmt.Errorf("let binding %d: %w", i, err)
		}
	}

	c.scope = inner
	bodyEntry, err := c.transform(node.Body, next)
	c.scope = outer
	if err != nil {
		return 0, fmt.Errorf("let body: %w", err)
	}

	// Initializers chain right-to-left: binding i's store step continues at
	// binding i+1's entry, and the first binding's entry is the block entry.
	// Sequential (let*) initializers compile under the extended scope;
	// simultaneous (let) initializers compile under the enclosing scope.
	// Slots are fresh either way, so simultaneous binding needs no value
	// snapshot before the stores.
	initScope := outer
	if node.Sequential {
		initScope = inner
	}
	entry := bodyEntry
	for i := len(node.Binds) - 1; i >= 0; i-- {
		slotIdx := idx[i]
		cont := entry
		c.ref(cont)
		store := c.emit(c.gensym("store-"),
			"(store "+symbol.String(node.Binds[i].Name, c.table)+" value)",
			func(t *machine.T) machine.Signal {
				t.Slots().Set(slotIdx, t.Value())
				return machine.Jump(cont)
			})
		c.scope = initScope
		entry, err = c.transform(node.Binds[i].Init, store)
		c.scope = outer
		if err != nil {
			return 0, fmt.Errorf("let binding %d: %w", i, err)
		}
	}
	return entry, nil
}

func (c *context) transformSet(node gentree.Set, next symbol.ID) (symbol.ID, error) {
	if node.Name == 0 {
		return 0, fmt.Errorf("assignment target is not a variable")
	}
	slotIdx, ok := c.scope.lookup(node.Name)
	if !ok {
		var err error
		slotIdx, err = c.liftVar(c.scope, node.Name)
		if err != nil {
			return 0, err
		}
	}
	c.ref(next)
	store := c.emit(c.gensym("store-"),
		"(store "+symbol.String(node.Name, c.table)+" value)",
		func(t *machine.T) machine.Signal {
			t.Slots().Set(slotIdx, t.Value())
			return machine.Jump(next)
		})
	entry, err := c.transform(node.Value, store)
	if err != nil {
		return 0, fmt.Errorf("assignment to %s: %w", symbol.String(node.Name, c.table), err)
	}
	return entry, nil
}

// transformYield emits the yield step and, immediately after it in array
// order, a jump step to the yield's continuation.  Positional resume lands
// on the jump step, which routes to the correct continuation even when the
// yield sits at the end of a branch or loop body.
func (c *context) transformYield(node gentree.Yield, next symbol.ID) (symbol.ID, error) {
	var value gentree.Node = gentree.Literal{Val: lisp.Nil()}
	if node.Value != nil {
		value = node.Value
	}
	fn, text, err := c.compileExpr(value)
	if err != nil {
		return 0, fmt.Errorf("yield value: %w", err)
	}
	tag := node.Tag
	c.ref(next)
	c.emit(c.gensym("resume-"), "(resume)", func(t *machine.T) machine.Signal {
		return machine.Jump(next)
	})
	return c.emit(c.gensym("yield-"), "(yield "+text+")", func(t *machine.T) machine.Signal {
		v, err := fn(t)
		if err != nil {
			return machine.Error(lisp.AsCondition(err))
		}
		t.SetValue(v)
		return machine.Yield(v, tag)
	}), nil
}

func (c *context) transformDelegate(node gentree.Delegate, next symbol.ID) (symbol.ID, error) {
	if node.Source == nil {
		return 0, fmt.Errorf("delegate: missing source expression")
	}
	c.ref(next)
	c.emit(c.gensym("resume-"), "(resume)", func(t *machine.T) machine.Signal {
		return machine.Jump(next)
	})
	dstep := c.emit(c.gensym("delegate-"), "(delegate value)", func(t *machine.T) machine.Signal {
		return machine.Delegate(t.Value())
	})
	entry, err := c.transform(node.Source, dstep)
	if err != nil {
		return 0, fmt.Errorf("delegate source: %w", err)
	}
	return entry, nil
}

func (c *context) transformHandler(node gentree.Handler, next symbol.ID) (symbol.ID, error) {
	if len(node.Clauses) == 0 {
		return c.transform(node.Body, next)
	}
	// Clause handlers are appended in reverse declaration order; dispatch
	// scans the handler stack from the end, so the first declared clause
	// matches first, and clauses of a nested handler shadow these.
	refs := make([]machine.HandlerRef, 0, len(node.Clauses))
	for i := len(node.Clauses) - 1; i >= 0; i-- {
		clause := node.Clauses[i]
		if clause.Pattern == 0 {
			return 0, fmt.Errorf("handler clause %d: missing condition pattern", i)
		}
		entry, err := c.transformClause(clause, next)
		if err != nil {
			return 0, fmt.Errorf("handler clause %d: %w", i, err)
		}
		refs = append(refs, machine.HandlerRef{
			Pattern:  clause.Pattern,
			Entry:    entry,
			CatchAll: clause.Pattern == c.anyCond,
		})
	}
	restore := c.pushHandlers(refs)
	bodyEntry, err := c.transform(node.Body, next)
	restore()
	if err != nil {
		return 0, fmt.Errorf("handler body: %w", err)
	}
	return bodyEntry, nil
}

// transformClause compiles one handler arm.  The engine deposits the caught
// condition into the value slot before jumping to the clause entry; a clause
// with a bound variable stores it into a clause-scoped slot first.
func (c *context) transformClause(clause gentree.Clause, next symbol.ID) (symbol.ID, error) {
	outer := c.scope
	inner := newScope(outer)
	var body gentree.Node = gentree.Seq{}
	if clause.Body != nil {
		body = clause.Body
	}
	if !clause.HasVar {
		c.scope = inner
		entry, err := c.transform(body, next)
		c.scope = outer
		return entry, err
	}
	slotIdx, err := c.liftVar(inner, clause.Var)
	if err != nil {
		return 0, err
	}
	c.scope = inner
	bodyEntry, err := c.transform(body, next)
	c.scope = outer
	if err != nil {
		return 0, err
	}
	c.ref(bodyEntry)
	return c.emit(c.gensym("store-"),
		"(store "+symbol.String(clause.Var, c.table)+" value)",
		func(t *machine.T) machine.Signal {
			t.Slots().Set(slotIdx, t.Value())
			return machine.Jump(bodyEntry)
		}), nil
}
