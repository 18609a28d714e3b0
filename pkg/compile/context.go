package compile

import (
	"fmt"

	"github.com/ctwhite/yield/pkg/machine"
	"github.com/ctwhite/yield/pkg/symbol"
)

// scope resolves variable names to lifted slot indices.  Nested binding
// blocks extend the chain rather than mutating the parent, so a block's
// bindings vanish when compilation leaves the block.  Slot indices are never
// reused across scopes, even for shadowed names.
type scope struct {
	parent *scope
	vars   map[symbol.ID]int
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, vars: make(map[symbol.ID]int)}
}

func (s *scope) lookup(name symbol.ID) (int, bool) {
	for s != nil {
		if i, ok := s.vars[name]; ok {
			return i, true
		}
		s = s.parent
	}
	return -1, false
}

func (s *scope) bind(name symbol.ID, idx int) {
	s.vars[name] = idx
}

// context is the mutable state threaded through one compilation.  It is not
// shared across generator definitions.
type context struct {
	table *symbol.Table
	ops   machine.OpMap

	// steps accumulates compiled steps back-to-front: continuations are
	// compiled before the steps that jump to them, so the array is built in
	// reverse program order and reversed once when compilation finishes.
	steps []machine.Step
	// refs records every jump target emitted, for program validation.
	refs []symbol.ID

	scope    *scope
	slots    []symbol.ID
	handlers []machine.HandlerRef

	// anyCond is this table's interning of the catch-all condition pattern.
	anyCond symbol.ID

	valueIdx int
	finalIdx int
}

func newContext(table *symbol.Table, ops machine.OpMap) *context {
	c := &context{
		table:   table,
		ops:     ops,
		scope:   newScope(nil),
		anyCond: table.Intern("condition"),
	}
	c.valueIdx = c.newSlot(table.Gensym("%value"))
	c.finalIdx = c.newSlot(table.Gensym("%final"))
	return c
}

// newSlot lifts a new storage slot and returns its index.  The slot is not
// bound to any variable name; callers bind it in the appropriate scope.
func (c *context) newSlot(name symbol.ID) int {
	c.slots = append(c.slots, name)
	return len(c.slots) - 1
}

// liftVar allocates a fresh slot for the variable name and binds it in sc.
func (c *context) liftVar(sc *scope, name symbol.ID) (int, error) {
	if name == 0 {
		return -1, fmt.Errorf("binding target is not a variable")
	}
	idx := c.newSlot(c.table.Gensym(symbol.String(name, c.table) + "%"))
	sc.bind(name, idx)
	return idx, nil
}

// emit appends a step to the accumulator.  Steps emitted while the handler
// stack is non-empty carry a snapshot of the active handler scope.
func (c *context) emit(name symbol.ID, text string, action machine.Thunk) symbol.ID {
	step := machine.Step{Name: name, Text: text, Action: action}
	if len(c.handlers) > 0 {
		step.Handlers = make([]machine.HandlerRef, len(c.handlers))
		copy(step.Handlers, c.handlers)
	}
	c.steps = append(c.steps, step)
	return name
}

// ref records a jump target for validation.
func (c *context) ref(target symbol.ID) symbol.ID {
	c.refs = append(c.refs, target)
	return target
}

// gensym generates a unique step name with the given prefix.
func (c *context) gensym(prefix string) symbol.ID {
	return c.table.Gensym(prefix)
}

// pushHandlers extends the active handler scope for the duration of a
// protected body; the returned func restores the previous scope.
func (c *context) pushHandlers(refs []machine.HandlerRef) func() {
	n := len(c.handlers)
	c.handlers = append(c.handlers, refs...)
	return func() {
		c.handlers = c.handlers[:n]
	}
}

// finish reverses the accumulated steps into program order.
func (c *context) finish() []machine.Step {
	for i, j := 0, len(c.steps)-1; i < j; i, j = i+1, j-1 {
		c.steps[i], c.steps[j] = c.steps[j], c.steps[i]
	}
	return c.steps
}
