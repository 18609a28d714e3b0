/*
Package machine executes compiled generator step programs.  A Program is a
flat, linearly addressable array of named steps; a T holds one generator
instance's execution state and walks the array following control signals
until a suspending or terminal signal is produced.

The package is the lower of the system's two run-time layers: it knows
nothing about delegation.  The generator wrapper drives delegation by
interpreting the delegate signals a T returns.
*/
package machine

import (
	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/symbol"
)

// SignalKind discriminates control signals.
type SignalKind uint8

const (
	// SigJump continues execution at a named step within the same Run call.
	// Jump signals never escape the engine.
	SigJump SignalKind = iota
	// SigYield suspends the instance producing a value.  The resume point is
	// the next step in array order.
	SigYield
	// SigDelegate suspends the instance, handing control to a nested
	// generator carried in the signal value.  Resume is positional, the same
	// as yield.
	SigDelegate
	// SigDone terminally finishes the instance with a final value.
	SigDone
	// SigError terminally finishes the instance with an unrecovered
	// condition, unless a handler compiled into the executing step matches.
	SigError
)

var signalKindStrings = []string{
	SigJump:     "jump",
	SigYield:    "yield",
	SigDelegate: "delegate",
	SigDone:     "done",
	SigError:    "error",
}

func (k SignalKind) String() string {
	if int(k) >= len(signalKindStrings) {
		return "invalid"
	}
	return signalKindStrings[k]
}

// Signal is the value a step's action returns to direct the engine.
type Signal struct {
	kind   SignalKind
	target symbol.ID
	tag    symbol.ID
	value  lisp.LVal
}

// Jump returns a signal that continues execution at the named step.
func Jump(target symbol.ID) Signal {
	return Signal{kind: SigJump, target: target}
}

// Yield returns a suspending signal producing v.  A zero tag means the yield
// is untagged.
func Yield(v lisp.LVal, tag symbol.ID) Signal {
	return Signal{kind: SigYield, value: v, tag: tag}
}

// Delegate returns a suspending signal handing control to the nested
// generator value v.
func Delegate(v lisp.LVal) Signal {
	return Signal{kind: SigDelegate, value: v}
}

// Done returns a terminal signal with the instance's final value.
func Done(v lisp.LVal) Signal {
	return Signal{kind: SigDone, value: v}
}

// Error returns a terminal signal carrying the raised condition cond.
func Error(cond lisp.LVal) Signal {
	return Signal{kind: SigError, value: cond}
}

// Kind returns the signal's kind.
func (s Signal) Kind() SignalKind { return s.kind }

// Target returns the destination step of a jump signal.
func (s Signal) Target() symbol.ID { return s.target }

// Tag returns the tag of a yield signal, or zero.
func (s Signal) Tag() symbol.ID { return s.tag }

// Value returns the signal's payload: the yielded value, the delegate
// generator, the final value, or the raised condition.
func (s Signal) Value() lisp.LVal { return s.value }

// Thunk is the zero-argument computation body of a step.  It performs the
// step's effect against the instance state and returns a control signal.
type Thunk func(t *T) Signal

// HandlerRef is one compiled condition handler in scope at a step: a pattern
// to match raised conditions against and the entry step of the handler body.
// CatchAll is resolved by the compiler from the pattern symbol so that
// matching never depends on which symbol table interned the pattern.
type HandlerRef struct {
	Pattern  symbol.ID
	Entry    symbol.ID
	CatchAll bool
}

// Matches returns true if the handler's pattern accepts the condition cond.
func (h HandlerRef) Matches(cond lisp.LVal) bool {
	return h.CatchAll || h.Pattern == lisp.ConditionType(cond)
}

// Step is one compiled, named unit of execution.  Steps are immutable once
// compiled.  Handlers carries the step's lexically-enclosing handler set,
// outermost first, baked in at compile time; the engine consults it when the
// step's action raises a condition.
type Step struct {
	// Name uniquely identifies the step within its program.
	Name symbol.ID
	// Text is a human readable rendering of the step's effect, used only in
	// program listings and diagnostics.
	Text string
	// Handlers is the step's compiled handler scope, outermost first.
	Handlers []HandlerRef
	// Action performs the step.  A nil action is a no-op that falls through
	// to the next step.
	Action Thunk
}
