package machine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/slot"
	"github.com/ctwhite/yield/pkg/symbol"
)

// testProg builds a program and an engine whose value slot is slot 0.
func testProg(t *testing.T, table *symbol.Table, entry symbol.ID, steps []Step, refs []symbol.ID) *T {
	t.Helper()
	prog, err := New(table.Intern("test"), entry, steps, refs)
	require.NoError(t, err)
	arch := slot.MustArch(table.Gensym("%value"))
	return NewT(prog, arch.MakeArray(), 0)
}

func TestProgram_Validation(t *testing.T) {
	table := symbol.NewTable()
	s0 := table.Intern("s0")
	s1 := table.Intern("s1")
	steps := []Step{{Name: s0}, {Name: s1}}

	_, err := New(table.Intern("p"), s0, steps, []symbol.ID{s1})
	assert.NoError(t, err)

	_, err = New(table.Intern("p"), table.Intern("missing"), steps, nil)
	assert.ErrorContains(t, err, "entry step is undefined")

	_, err = New(table.Intern("p"), s0, steps, []symbol.ID{table.Intern("bogus")})
	assert.ErrorContains(t, err, "jump target is undefined")

	_, err = New(table.Intern("p"), s0, []Step{{Name: s0}, {Name: s0}}, nil)
	assert.ErrorContains(t, err, "duplicate step name")
}

func TestProgram_Lookup(t *testing.T) {
	table := symbol.NewTable()
	s0 := table.Intern("s0")
	s1 := table.Intern("s1")
	prog, err := New(table.Intern("p"), s0, []Step{{Name: s0}, {Name: s1}}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, prog.Len())
	assert.Equal(t, s0, prog.Entry())
	i, ok := prog.Offset(s1)
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	step, ok := prog.StepAt(1)
	assert.True(t, ok)
	assert.Equal(t, s1, step.Name)
	_, ok = prog.StepAt(2)
	assert.False(t, ok)
}

func TestProgram_Format(t *testing.T) {
	table := symbol.NewTable()
	s0 := table.Intern("s0")
	h0 := table.Intern("h0")
	prog, err := New(table.Intern("p"), s0, []Step{
		{Name: s0, Text: "(assign value (const 1))"},
		{Name: h0, Text: "(done)", Handlers: []HandlerRef{{Pattern: table.Intern("oops"), Entry: s0}}},
	}, nil)
	require.NoError(t, err)

	var sb strings.Builder
	_, err = prog.Format(&sb, table)
	require.NoError(t, err)
	out := sb.String()
	assert.Contains(t, out, "program p (entry s0)")
	assert.Contains(t, out, "(assign value (const 1))")
	assert.Contains(t, out, "[oops -> s0]")
}

func TestEngine_StraightLine(t *testing.T) {
	table := symbol.NewTable()
	s0 := table.Intern("s0")
	fin := table.Intern("fin")
	eng := testProg(t, table, s0, []Step{
		{Name: s0, Action: func(t *T) Signal {
			t.SetValue(lisp.Int(1))
			return Jump(fin)
		}},
		{Name: fin, Action: func(t *T) Signal {
			return Done(t.Value())
		}},
	}, []symbol.ID{fin})

	assert.False(t, eng.Suspended())
	sig := eng.Run()
	assert.Equal(t, SigDone, sig.Kind())
	assert.True(t, lisp.Equal(lisp.Int(1), sig.Value()))
	assert.Equal(t, TDone, eng.State())
	assert.False(t, eng.Suspended())

	// terminal signals repeat
	again := eng.Run()
	assert.Equal(t, SigDone, again.Kind())
	assert.True(t, lisp.Equal(lisp.Int(1), again.Value()))
}

func TestEngine_NilActionFallsThrough(t *testing.T) {
	table := symbol.NewTable()
	s0 := table.Intern("s0")
	s1 := table.Intern("s1")
	eng := testProg(t, table, s0, []Step{
		{Name: s0},
		{Name: s1, Action: func(t *T) Signal { return Done(lisp.Int(9)) }},
	}, nil)
	sig := eng.Run()
	assert.Equal(t, SigDone, sig.Kind())
	assert.True(t, lisp.Equal(lisp.Int(9), sig.Value()))
}

func TestEngine_YieldResume(t *testing.T) {
	table := symbol.NewTable()
	s0 := table.Intern("s0")
	s1 := table.Intern("s1")
	fin := table.Intern("fin")
	eng := testProg(t, table, s0, []Step{
		{Name: s0, Action: func(t *T) Signal { return Yield(lisp.Int(1), table.Intern("tagged")) }},
		{Name: s1, Action: func(t *T) Signal { return Jump(fin) }},
		{Name: fin, Action: func(t *T) Signal { return Done(t.Value()) }},
	}, []symbol.ID{fin})

	sig := eng.Run()
	require.Equal(t, SigYield, sig.Kind())
	assert.True(t, lisp.Equal(lisp.Int(1), sig.Value()))
	assert.Equal(t, table.Intern("tagged"), sig.Tag())
	assert.True(t, eng.Suspended())

	// the resume value becomes the yield expression's value
	sig = eng.Resume(lisp.Int(42))
	require.Equal(t, SigDone, sig.Kind())
	assert.True(t, lisp.Equal(lisp.Int(42), sig.Value()))
}

func TestEngine_Trace(t *testing.T) {
	table := symbol.NewTable()
	s0 := table.Intern("s0")
	eng := testProg(t, table, s0, []Step{
		{Name: s0, Action: func(t *T) Signal { return Done(lisp.Nil()) }},
	}, nil)
	var offsets []int
	eng.Trace = func(offset int, step Step) {
		offsets = append(offsets, offset)
	}
	eng.Run()
	assert.Equal(t, []int{0}, offsets)
}

func TestEngine_HandlerDispatch(t *testing.T) {
	table := symbol.NewTable()
	condOops := table.Intern("oops")
	s0 := table.Intern("s0")
	outer := table.Intern("outer")
	inner := table.Intern("inner")
	handlers := []HandlerRef{
		{Entry: outer, CatchAll: true},    // outermost
		{Pattern: condOops, Entry: inner}, // innermost
	}
	eng := testProg(t, table, s0, []Step{
		{Name: s0, Handlers: handlers, Action: func(t *T) Signal {
			return Error(lisp.Conditionf(condOops, "boom"))
		}},
		{Name: outer, Action: func(t *T) Signal { return Done(lisp.String("outer")) }},
		{Name: inner, Action: func(t *T) Signal {
			// the condition is deposited in the value slot
			return Done(t.Value())
		}},
	}, nil)

	sig := eng.Run()
	require.Equal(t, SigDone, sig.Kind())
	assert.Equal(t, condOops, lisp.ConditionType(sig.Value()))
}

func TestEngine_HandlerCatchAll(t *testing.T) {
	table := symbol.NewTable()
	s0 := table.Intern("s0")
	h := table.Intern("h")
	eng := testProg(t, table, s0, []Step{
		{Name: s0, Handlers: []HandlerRef{{Entry: h, CatchAll: true}}, Action: func(t *T) Signal {
			return Error(lisp.Conditionf(table.Intern("whatever"), "boom"))
		}},
		{Name: h, Action: func(t *T) Signal { return Done(lisp.String("handled")) }},
	}, nil)

	sig := eng.Run()
	require.Equal(t, SigDone, sig.Kind())
	assert.True(t, lisp.Equal(lisp.String("handled"), sig.Value()))
}

func TestEngine_UnhandledCondition(t *testing.T) {
	table := symbol.NewTable()
	condOops := table.Intern("oops")
	s0 := table.Intern("s0")
	eng := testProg(t, table, s0, []Step{
		{Name: s0, Action: func(t *T) Signal {
			return Error(lisp.Conditionf(condOops, "boom"))
		}},
	}, nil)

	sig := eng.Run()
	require.Equal(t, SigError, sig.Kind())
	assert.Equal(t, condOops, lisp.ConditionType(sig.Value()))
	assert.Equal(t, TError, eng.State())

	again := eng.Run()
	assert.Equal(t, SigError, again.Kind())
}

func TestEngine_PendingCondition(t *testing.T) {
	table := symbol.NewTable()
	condOops := table.Intern("oops")
	s0 := table.Intern("s0")
	s1 := table.Intern("s1")
	h := table.Intern("h")
	eng := testProg(t, table, s0, []Step{
		{Name: s0, Action: func(t *T) Signal { return Delegate(lisp.Nil()) }},
		// positional resume step at the delegation site carries its scope
		{Name: s1, Handlers: []HandlerRef{{Pattern: condOops, Entry: h}}, Action: func(t *T) Signal {
			return Done(lisp.String("no error"))
		}},
		{Name: h, Action: func(t *T) Signal { return Done(lisp.String("handled")) }},
	}, nil)

	sig := eng.Run()
	require.Equal(t, SigDelegate, sig.Kind())
	assert.True(t, eng.Suspended())

	eng.SetPending(lisp.Conditionf(condOops, "delegate failed"))
	sig = eng.Run()
	require.Equal(t, SigDone, sig.Kind())
	assert.True(t, lisp.Equal(lisp.String("handled"), sig.Value()))
}

func TestEngine_InvalidJump(t *testing.T) {
	table := symbol.NewTable()
	s0 := table.Intern("s0")
	eng := testProg(t, table, s0, []Step{
		{Name: s0, Action: func(t *T) Signal { return Jump(table.Intern("nowhere")) }},
	}, nil)
	sig := eng.Run()
	require.Equal(t, SigError, sig.Kind())
	assert.Equal(t, LInternalError, lisp.ConditionType(sig.Value()))
	assert.Equal(t, TError, eng.State())
}

func TestOpMap_Merge(t *testing.T) {
	table := symbol.NewTable()
	a := table.Intern("a")
	b := table.Intern("b")
	one := OpMap{a: func(args ...lisp.LVal) (lisp.LVal, error) { return lisp.Int(1), nil }}
	two := OpMap{
		a: func(args ...lisp.LVal) (lisp.LVal, error) { return lisp.Int(2), nil },
		b: func(args ...lisp.LVal) (lisp.LVal, error) { return lisp.Int(3), nil },
	}
	merged := one.Merge(two)
	v, err := merged[a]()
	require.NoError(t, err)
	assert.True(t, lisp.Equal(lisp.Int(2), v))
	v, err = merged[b]()
	require.NoError(t, err)
	assert.True(t, lisp.Equal(lisp.Int(3), v))

	// receiver unchanged
	v, err = one[a]()
	require.NoError(t, err)
	assert.True(t, lisp.Equal(lisp.Int(1), v))
}

func TestOp_Named(t *testing.T) {
	table := symbol.NewTable()
	id := table.Intern("myop")
	fn := Named(id, table, func(args ...lisp.LVal) (lisp.LVal, error) {
		if len(args) == 0 {
			return lisp.Nil(), lisp.Raisef(table.Intern("empty"), "no arguments")
		}
		return lisp.Nil(), assert.AnError
	})

	// plain errors get the operator name prefix
	_, err := fn(lisp.Int(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "myop")

	// condition errors pass through untouched
	_, err = fn()
	require.Error(t, err)
	ce, ok := err.(*lisp.ConditionError)
	require.True(t, ok)
	assert.Equal(t, table.Intern("empty"), lisp.ConditionType(ce.Cond))
}
