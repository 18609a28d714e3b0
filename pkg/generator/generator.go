// Package generator provides resumable generator definitions and instances
// on top of compiled step programs.  A Def is the immutable compiled form of
// a generator; an Instance is one execution with its own slot array and
// cursor.  Instances drive delegation themselves so the step machine stays a
// single-program interpreter.
package generator

import (
	"errors"
	"fmt"

	"github.com/ctwhite/yield/pkg/compile"
	"github.com/ctwhite/yield/pkg/gentree"
	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/machine"
	"github.com/ctwhite/yield/pkg/symbol"
)

// LGenerator tags instance values so generators can flow through programs
// as first class data (in particular, as delegation sources).
var LGenerator = symbol.Intern("generator")

// LTypeError is the condition type signaled when a value has the wrong type
// for the operation applied to it.  The handle names the type in the default
// global table; Define interns the same name through its own table.
var LTypeError = symbol.Intern("type-error")

// Def is a compiled generator definition.  A Def is immutable and safe for
// concurrent instantiation.
type Def struct {
	name    symbol.ID
	res     *compile.Result
	table   *symbol.Table
	typeErr symbol.ID
}

// Define compiles tree into a generator definition with the given
// parameters.  Call operators in the tree resolve against ops.  A nil table
// uses the process-wide default symbol table.
func Define(name symbol.ID, tree gentree.Node, params []symbol.ID, ops machine.OpMap, table *symbol.Table) (*Def, error) {
	if table == nil {
		table = symbol.DefaultGlobalTable
	}
	res, err := compile.Compile(name, tree, params, ops, table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol.String(name, table), err)
	}
	return &Def{name: name, res: res, table: table, typeErr: table.Intern("type-error")}, nil
}

// Name returns the definition's name symbol.
func (d *Def) Name() symbol.ID {
	return d.name
}

// Arity returns the number of arguments New requires.
func (d *Def) Arity() int {
	return len(d.res.ParamIndices)
}

// Program returns the compiled step program shared by all instances.
func (d *Def) Program() *machine.Program {
	return d.res.Program
}

// StatusKind classifies the outcome of advancing an instance.
type StatusKind uint8

const (
	// StatusYield reports a suspended instance with a yielded value.
	StatusYield StatusKind = iota
	// StatusDone reports a finished instance with its final value.
	StatusDone
	// StatusError reports a finished instance with an unhandled condition.
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusYield:
		return "yield"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	}
	return "invalid"
}

// Status is the observable result of one advance of an instance.  For
// StatusYield the Value is the yielded value and Tag the yield's tag (zero
// when untagged).  For StatusDone the Value is the generator's final value.
// For StatusError the Value is the unhandled condition.
type Status struct {
	Kind  StatusKind
	Value lisp.LVal
	Tag   symbol.ID
}

// Instance is a single execution of a generator definition.  An Instance is
// not safe for concurrent use.
type Instance struct {
	def      *Def
	t        *machine.T
	sub      *Instance
	cleanups []func() error
	terminal *Status
}

// New creates an instance of def with args deposited into the definition's
// parameter slots.  The instance does not run until its first Resume.
func New(def *Def, args ...lisp.LVal) (*Instance, error) {
	if len(args) != def.Arity() {
		return nil, fmt.Errorf("%s: expects %d arguments, got %d",
			symbol.String(def.name, def.table), def.Arity(), len(args))
	}
	slots := def.res.Arch.MakeArray()
	for i, idx := range def.res.ParamIndices {
		slots.Set(idx, args[i])
	}
	t := machine.NewT(def.res.Program, slots, def.res.ValueIndex)
	return &Instance{def: def, t: t}, nil
}

// Def returns the definition this instance executes.
func (in *Instance) Def() *Def {
	return in.def
}

// Done reports whether the instance has reached a terminal status.
func (in *Instance) Done() bool {
	return in.terminal != nil
}

// SetTrace installs fn to be called before every step executes, with the
// step's offset.  Tracing only covers this instance, not its delegates.
func (in *Instance) SetTrace(fn func(offset int, step machine.Step)) {
	in.t.Trace = fn
}

// Next advances the instance, resuming with a nil value.
func (in *Instance) Next() Status {
	return in.Resume(lisp.Nil())
}

// Resume advances the instance until it yields, finishes, or fails, feeding
// v as the value of the suspended yield expression.  While the instance is
// delegating, v is forwarded to the innermost active delegate.  Once a
// terminal status is reached every subsequent Resume returns that same
// status without running anything.
func (in *Instance) Resume(v lisp.LVal) Status {
	if in.terminal != nil {
		return *in.terminal
	}
	for {
		if in.sub != nil {
			st := in.sub.Resume(v)
			if st.Kind == StatusYield {
				return st
			}
			in.sub = nil
			v = st.Value
			if st.Kind == StatusError {
				// The delegate's unhandled condition surfaces at the
				// delegation site, where this instance's handlers get a
				// chance at it.
				in.t.SetPending(st.Value)
				v = lisp.Nil()
			}
		}
		sig := in.t.Resume(v)
		switch sig.Kind() {
		case machine.SigYield:
			return Status{Kind: StatusYield, Value: sig.Value(), Tag: sig.Tag()}
		case machine.SigDelegate:
			if sub, ok := FromLVal(sig.Value()); ok {
				in.sub = sub
				v = lisp.Nil()
				continue
			}
			in.t.SetPending(lisp.Conditionf(in.def.typeErr,
				"delegation source is not a generator: %s",
				lisp.FormatString(sig.Value(), in.def.table)))
			v = lisp.Nil()
		case machine.SigDone:
			return in.finish(Status{Kind: StatusDone, Value: sig.Value()})
		case machine.SigError:
			return in.finish(Status{Kind: StatusError, Value: sig.Value()})
		default:
			return in.finish(Status{Kind: StatusError, Value: lisp.Conditionf(
				machine.LInternalError, "unexpected %v signal", sig.Kind())})
		}
	}
}

// OnCleanup registers fn to run when the instance reaches a terminal status
// or is closed.  Cleanups run in reverse registration order.
func (in *Instance) OnCleanup(fn func() error) error {
	if in.terminal != nil {
		return fmt.Errorf("%s: generator already finished",
			symbol.String(in.def.name, in.def.table))
	}
	in.cleanups = append(in.cleanups, fn)
	return nil
}

// Close finishes the instance without running any more of its program,
// closing any active delegate and running registered cleanups.  Closing a
// finished instance is a no-op.
func (in *Instance) Close() error {
	if in.terminal != nil {
		return nil
	}
	var errs []error
	if in.sub != nil {
		if err := in.sub.Close(); err != nil {
			errs = append(errs, err)
		}
		in.sub = nil
	}
	if err := in.runCleanups(); err != nil {
		errs = append(errs, err)
	}
	in.terminal = &Status{Kind: StatusDone, Value: lisp.Nil()}
	return errors.Join(errs...)
}

func (in *Instance) finish(st Status) Status {
	if err := in.runCleanups(); err != nil && st.Kind != StatusError {
		st = Status{Kind: StatusError, Value: lisp.AsCondition(err)}
	}
	in.terminal = &st
	return st
}

func (in *Instance) runCleanups() error {
	var errs []error
	for i := len(in.cleanups) - 1; i >= 0; i-- {
		if err := in.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	in.cleanups = nil
	return errors.Join(errs...)
}

// Wrap boxes an instance as a tagged value.
func Wrap(in *Instance) lisp.LVal {
	return lisp.Tag(LGenerator, in)
}

// FromLVal unboxes a tagged generator instance.
func FromLVal(v lisp.LVal) (*Instance, bool) {
	typ, ok := lisp.UserType(v)
	if !ok || typ != LGenerator {
		return nil, false
	}
	in, ok := v.Native.(*Instance)
	return in, ok
}
