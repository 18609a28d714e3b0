package machine

import (
	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/slot"
	"github.com/ctwhite/yield/pkg/symbol"
)

// TState represents the lifecycle state of an instance engine.
type TState uint8

const (
	// TReady means the engine has a valid cursor and can Run or Resume.
	TReady TState = iota
	// TDone means the engine finished normally.  Run returns the cached
	// done signal on every subsequent call.
	TDone
	// TError means the engine terminated with an unrecovered condition.
	// Run returns the cached error signal on every subsequent call.
	TError
)

// LInternalError is the condition type of engine defects (an invalid cursor
// or a nil action position).  Programs produced by the compiler never raise
// it for valid input.
var LInternalError = symbol.Intern("machine-error")

// T holds one generator instance's execution state: the shared step program,
// the private lifted-variable storage, the cursor, and the terminal status.
// A T is driven by a single caller at a time; it performs no locking (the
// concurrency model is strictly cooperative).
type T struct {
	// Trace, when non-nil, is called with each step before its action runs.
	Trace func(offset int, step Step)

	prog      *Program
	slots     slot.Array
	valueIdx  int
	pc        int
	state     TState
	suspended bool
	pending   lisp.LVal
	hasPend   bool
	terminal  Signal
}

// NewT returns an engine for prog positioned at the program entry.  The
// slot array is the instance's private lifted storage; valueIdx is the index
// of the designated value slot that resume values are deposited into.
func NewT(prog *Program, slots slot.Array, valueIdx int) *T {
	pc, _ := prog.Offset(prog.Entry())
	return &T{
		prog:     prog,
		slots:    slots,
		valueIdx: valueIdx,
		pc:       pc,
	}
}

// Slots returns the instance's lifted-variable storage.  Step thunks access
// it with indices resolved at compile time.
func (t *T) Slots() slot.Array {
	return t.slots
}

// Value returns the current contents of the value slot: the most recently
// produced value.
func (t *T) Value() lisp.LVal {
	return t.slots.Get(t.valueIdx)
}

// SetValue deposits v into the value slot.
func (t *T) SetValue(v lisp.LVal) {
	t.slots.Set(t.valueIdx, v)
}

// State returns the engine lifecycle state.
func (t *T) State() TState {
	return t.state
}

// Suspended returns true iff the engine has a valid resume cursor and has
// not reached a terminal state.  A freshly created engine that has never run
// is not suspended.
func (t *T) Suspended() bool {
	return t.suspended && t.state == TReady
}

// SetPending records a condition to be dispatched at the current cursor on
// the next Run call.  The generator wrapper uses it to surface a delegated
// generator's failure at the delegation site, where the current step's
// compiled handler scope decides whether the condition is recovered.
func (t *T) SetPending(cond lisp.LVal) {
	t.pending = cond
	t.hasPend = true
}

// Resume deposits v into the value slot and continues execution.  The
// deposited value is what the suspended yield expression evaluates to.
func (t *T) Resume(v lisp.LVal) Signal {
	if t.state == TReady {
		t.SetValue(v)
	}
	return t.Run()
}

// Run executes steps from the current cursor, following jump signals
// synchronously, until a suspending or terminal signal is produced.  On
// yield or delegate the cursor is advanced past the executing step before
// returning, so resumption is positional.  Run on a terminal engine returns
// the cached terminal signal.
func (t *T) Run() Signal {
	if t.state != TReady {
		return t.terminal
	}
	t.suspended = false
	for {
		step, ok := t.prog.StepAt(t.pc)
		if !ok {
			return t.fail(lisp.Conditionf(LInternalError, "invalid cursor: %d", t.pc))
		}
		if t.Trace != nil {
			t.Trace(t.pc, step)
		}
		var sig Signal
		switch {
		case t.hasPend:
			cond := t.pending
			t.pending = lisp.Nil()
			t.hasPend = false
			sig = Error(cond)
		case step.Action == nil:
			t.pc++
			continue
		default:
			sig = step.Action(t)
		}
		switch sig.Kind() {
		case SigJump:
			i, ok := t.prog.Offset(sig.Target())
			if !ok {
				return t.fail(lisp.Conditionf(LInternalError, "jump target is undefined: %v", sig.Target()))
			}
			t.pc = i
		case SigYield, SigDelegate:
			t.pc++
			t.suspended = true
			return sig
		case SigDone:
			t.state = TDone
			t.terminal = sig
			return sig
		case SigError:
			entry, ok := dispatch(step.Handlers, sig.Value())
			if !ok {
				t.state = TError
				t.terminal = sig
				return sig
			}
			i, ok := t.prog.Offset(entry)
			if !ok {
				return t.fail(lisp.Conditionf(LInternalError, "handler entry is undefined: %v", entry))
			}
			t.SetValue(sig.Value())
			t.pc = i
		default:
			return t.fail(lisp.Conditionf(LInternalError, "invalid signal: %v", sig.Kind()))
		}
	}
}

func (t *T) fail(cond lisp.LVal) Signal {
	t.state = TError
	t.terminal = Error(cond)
	return t.terminal
}

// dispatch matches cond against the step's handler scope innermost first and
// returns the entry step of the first matching handler.
func dispatch(handlers []HandlerRef, cond lisp.LVal) (symbol.ID, bool) {
	for i := len(handlers) - 1; i >= 0; i-- {
		if handlers[i].Matches(cond) {
			return handlers[i].Entry, true
		}
	}
	return 0, false
}
