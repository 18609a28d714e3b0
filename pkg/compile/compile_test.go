package compile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctwhite/yield/pkg/compile"
	"github.com/ctwhite/yield/pkg/gentree"
	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/machine"
	"github.com/ctwhite/yield/pkg/symbol"
)

var (
	symN = symbol.Intern("n")
	symI = symbol.Intern("i")
	symX = symbol.Intern("x")
	symY = symbol.Intern("y")
	symE = symbol.Intern("e")
)

func testOps() machine.OpMap {
	return machine.OpMap{
		symbol.Intern("+"): func(args ...lisp.LVal) (lisp.LVal, error) {
			sum := 0
			for _, a := range args {
				x, ok := lisp.GetInt(a)
				if !ok {
					return lisp.Nil(), lisp.Raisef(symbol.Intern("type-error"), "not an int")
				}
				sum += x
			}
			return lisp.Int(sum), nil
		},
		symbol.Intern("<"): func(args ...lisp.LVal) (lisp.LVal, error) {
			a, _ := lisp.GetInt(args[0])
			b, _ := lisp.GetInt(args[1])
			return lisp.Bool(a < b), nil
		},
		symbol.Intern("boom"): func(args ...lisp.LVal) (lisp.LVal, error) {
			return lisp.Nil(), lisp.Raisef(symbol.Intern("oops"), "boom")
		},
	}
}

func mustCompile(t *testing.T, tree gentree.Node, params ...symbol.ID) *compile.Result {
	t.Helper()
	res, err := compile.Compile(symbol.Intern("test-gen"), tree, params, testOps(), nil)
	require.NoError(t, err)
	return res
}

func newEngine(res *compile.Result, args ...lisp.LVal) *machine.T {
	slots := res.Arch.MakeArray()
	for i, idx := range res.ParamIndices {
		slots.Set(idx, args[i])
	}
	return machine.NewT(res.Program, slots, res.ValueIndex)
}

func requireDone(t *testing.T, sig machine.Signal, want lisp.LVal) {
	t.Helper()
	require.Equal(t, machine.SigDone, sig.Kind(), "signal %v (%v)", sig.Kind(), sig.Value())
	assert.True(t, lisp.Equal(want, sig.Value()), "final value %v", sig.Value())
}

func requireYield(t *testing.T, sig machine.Signal, want lisp.LVal) {
	t.Helper()
	require.Equal(t, machine.SigYield, sig.Kind(), "signal %v (%v)", sig.Kind(), sig.Value())
	assert.True(t, lisp.Equal(want, sig.Value()), "yielded %v", sig.Value())
}

func TestCompile_Literal(t *testing.T) {
	res := mustCompile(t, gentree.Literal{Val: lisp.Int(5)})
	eng := newEngine(res)
	sig := eng.Run()
	requireDone(t, sig, lisp.Int(5))
	assert.True(t, lisp.Equal(lisp.Int(5), eng.Slots().Get(res.FinalIndex)))
}

func TestCompile_EmptyProgram(t *testing.T) {
	res := mustCompile(t, gentree.Seq{})
	requireDone(t, newEngine(res).Run(), lisp.Nil())
}

func TestCompile_Seq(t *testing.T) {
	res := mustCompile(t, gentree.Seq{Nodes: []gentree.Node{
		gentree.Literal{Val: lisp.Int(1)},
		gentree.Literal{Val: lisp.Int(2)},
	}})
	requireDone(t, newEngine(res).Run(), lisp.Int(2))
}

func TestCompile_Quoted(t *testing.T) {
	res := mustCompile(t, gentree.Quoted{Val: lisp.Symbol(symX)})
	sig := newEngine(res).Run()
	require.Equal(t, machine.SigDone, sig.Kind())
	id, ok := lisp.GetSymbol(sig.Value())
	assert.True(t, ok)
	assert.Equal(t, symX, id)
}

func TestCompile_Param(t *testing.T) {
	res := mustCompile(t, gentree.Var{Name: symN}, symN)
	requireDone(t, newEngine(res, lisp.Int(11)).Run(), lisp.Int(11))
}

func TestCompile_Call(t *testing.T) {
	res := mustCompile(t, gentree.Call{
		Fn: symbol.Intern("+"),
		Args: []gentree.Node{
			gentree.Literal{Val: lisp.Int(1)},
			gentree.Var{Name: symN},
			gentree.Call{Fn: symbol.Intern("+"), Args: []gentree.Node{
				gentree.Literal{Val: lisp.Int(2)},
				gentree.Literal{Val: lisp.Int(3)},
			}},
		},
	}, symN)
	requireDone(t, newEngine(res, lisp.Int(10)).Run(), lisp.Int(16))
}

func TestCompile_If(t *testing.T) {
	tree := gentree.If{
		Cond: gentree.Var{Name: symN},
		Then: gentree.Literal{Val: lisp.String("yes")},
		Else: gentree.Literal{Val: lisp.String("no")},
	}
	res := mustCompile(t, tree, symN)
	requireDone(t, newEngine(res, lisp.True()).Run(), lisp.String("yes"))
	requireDone(t, newEngine(res, lisp.False()).Run(), lisp.String("no"))
	// nil is false too
	requireDone(t, newEngine(res, lisp.Nil()).Run(), lisp.String("no"))
}

func TestCompile_IfNoElse(t *testing.T) {
	tree := gentree.If{
		Cond: gentree.Var{Name: symN},
		Then: gentree.Literal{Val: lisp.Int(1)},
	}
	res := mustCompile(t, tree, symN)
	requireDone(t, newEngine(res, lisp.False()).Run(), lisp.Nil())
}

func TestCompile_YieldResume(t *testing.T) {
	// the resume value becomes the yield expression's value
	tree := gentree.Seq{Nodes: []gentree.Node{
		gentree.Set{Name: symY, Value: gentree.Yield{Value: gentree.Literal{Val: lisp.Int(1)}}},
		gentree.Var{Name: symY},
	}}
	res := mustCompile(t, tree)
	eng := newEngine(res)
	requireYield(t, eng.Run(), lisp.Int(1))
	requireDone(t, eng.Resume(lisp.Int(42)), lisp.Int(42))
}

func TestCompile_YieldTag(t *testing.T) {
	tag := symbol.Intern("progress")
	res := mustCompile(t, gentree.Yield{Value: gentree.Literal{Val: lisp.Int(1)}, Tag: tag})
	sig := newEngine(res).Run()
	require.Equal(t, machine.SigYield, sig.Kind())
	assert.Equal(t, tag, sig.Tag())
}

func TestCompile_YieldNoValue(t *testing.T) {
	res := mustCompile(t, gentree.Yield{})
	sig := newEngine(res).Run()
	requireYield(t, sig, lisp.Nil())
}

// A counter loop exercises positional resume inside flattened control flow:
// the resume point of the yield must continue the loop body, not fall off
// the end of the program.
func TestCompile_CounterLoop(t *testing.T) {
	tree := gentree.Let{
		Binds: []gentree.Bind{{Name: symI, Init: gentree.Literal{Val: lisp.Int(0)}}},
		Body: gentree.While{
			Test: gentree.Call{Fn: symbol.Intern("<"), Args: []gentree.Node{
				gentree.Var{Name: symI}, gentree.Var{Name: symN},
			}},
			Body: gentree.Seq{Nodes: []gentree.Node{
				gentree.Yield{Value: gentree.Var{Name: symI}},
				gentree.Set{Name: symI, Value: gentree.Call{Fn: symbol.Intern("+"), Args: []gentree.Node{
					gentree.Var{Name: symI}, gentree.Literal{Val: lisp.Int(1)},
				}}},
			}},
		},
	}
	res := mustCompile(t, tree, symN)
	eng := newEngine(res, lisp.Int(3))
	requireYield(t, eng.Run(), lisp.Int(0))
	requireYield(t, eng.Resume(lisp.Nil()), lisp.Int(1))
	requireYield(t, eng.Resume(lisp.Nil()), lisp.Int(2))
	requireDone(t, eng.Resume(lisp.Nil()), lisp.Nil())
}

// Yields at the tail of both branches must resume at the step following the
// conditional.
func TestCompile_YieldInBranch(t *testing.T) {
	tree := gentree.Seq{Nodes: []gentree.Node{
		gentree.If{
			Cond: gentree.Var{Name: symN},
			Then: gentree.Yield{Value: gentree.Literal{Val: lisp.Int(1)}},
			Else: gentree.Yield{Value: gentree.Literal{Val: lisp.Int(2)}},
		},
		gentree.Literal{Val: lisp.Int(99)},
	}}
	res := mustCompile(t, tree, symN)

	eng := newEngine(res, lisp.True())
	requireYield(t, eng.Run(), lisp.Int(1))
	requireDone(t, eng.Resume(lisp.Nil()), lisp.Int(99))

	eng = newEngine(res, lisp.False())
	requireYield(t, eng.Run(), lisp.Int(2))
	requireDone(t, eng.Resume(lisp.Nil()), lisp.Int(99))
}

func TestCompile_VariableSurvivesSuspension(t *testing.T) {
	tree := gentree.Let{
		Binds: []gentree.Bind{{Name: symX, Init: gentree.Literal{Val: lisp.Int(7)}}},
		Body: gentree.Seq{Nodes: []gentree.Node{
			gentree.Yield{Value: gentree.Literal{Val: lisp.Int(1)}},
			gentree.Var{Name: symX},
		}},
	}
	res := mustCompile(t, tree)
	eng := newEngine(res)
	requireYield(t, eng.Run(), lisp.Int(1))
	requireDone(t, eng.Resume(lisp.Nil()), lisp.Int(7))
}

func TestCompile_LetSequential(t *testing.T) {
	// let* initializers see earlier bindings
	tree := gentree.Let{
		Sequential: true,
		Binds: []gentree.Bind{
			{Name: symX, Init: gentree.Literal{Val: lisp.Int(1)}},
			{Name: symY, Init: gentree.Call{Fn: symbol.Intern("+"), Args: []gentree.Node{
				gentree.Var{Name: symX}, gentree.Literal{Val: lisp.Int(1)},
			}}},
		},
		Body: gentree.Var{Name: symY},
	}
	res := mustCompile(t, tree)
	requireDone(t, newEngine(res).Run(), lisp.Int(2))
}

func TestCompile_LetSimultaneous(t *testing.T) {
	// plain let initializers see the enclosing scope, not each other
	tree := gentree.Let{
		Binds: []gentree.Bind{{Name: symX, Init: gentree.Literal{Val: lisp.Int(1)}}},
		Body: gentree.Let{
			Binds: []gentree.Bind{
				{Name: symX, Init: gentree.Literal{Val: lisp.Int(2)}},
				{Name: symY, Init: gentree.Var{Name: symX}},
			},
			Body: gentree.Var{Name: symY},
		},
	}
	res := mustCompile(t, tree)
	requireDone(t, newEngine(res).Run(), lisp.Int(1))
}

func TestCompile_LetShadowRestored(t *testing.T) {
	// the shadowed binding is visible again after the block
	tree := gentree.Let{
		Binds: []gentree.Bind{{Name: symX, Init: gentree.Literal{Val: lisp.Int(1)}}},
		Body: gentree.Seq{Nodes: []gentree.Node{
			gentree.Let{
				Binds: []gentree.Bind{{Name: symX, Init: gentree.Literal{Val: lisp.Int(2)}}},
				Body:  gentree.Var{Name: symX},
			},
			gentree.Var{Name: symX},
		}},
	}
	res := mustCompile(t, tree)
	requireDone(t, newEngine(res).Run(), lisp.Int(1))
}

func TestCompile_SetLiftsUnbound(t *testing.T) {
	tree := gentree.Seq{Nodes: []gentree.Node{
		gentree.Set{Name: symX, Value: gentree.Literal{Val: lisp.Int(3)}},
		gentree.Var{Name: symX},
	}}
	res := mustCompile(t, tree)
	requireDone(t, newEngine(res).Run(), lisp.Int(3))
}

func TestCompile_SetInBranchVisibleAfter(t *testing.T) {
	// both branches assign the same unbound name; the read after the
	// conditional resolves to the one lifted slot
	tree := gentree.Seq{Nodes: []gentree.Node{
		gentree.If{
			Cond: gentree.Var{Name: symN},
			Then: gentree.Set{Name: symY, Value: gentree.Literal{Val: lisp.Int(1)}},
			Else: gentree.Set{Name: symY, Value: gentree.Literal{Val: lisp.Int(2)}},
		},
		gentree.Var{Name: symY},
	}}
	res := mustCompile(t, tree, symN)
	requireDone(t, newEngine(res, lisp.Bool(true)).Run(), lisp.Int(1))
	requireDone(t, newEngine(res, lisp.Bool(false)).Run(), lisp.Int(2))
}

func TestCompile_SetInLoopVisibleAfter(t *testing.T) {
	// (while n (set! y 7) (set! n false)) then y
	tree := gentree.Seq{Nodes: []gentree.Node{
		gentree.While{
			Test: gentree.Var{Name: symN},
			Body: gentree.Seq{Nodes: []gentree.Node{
				gentree.Set{Name: symY, Value: gentree.Literal{Val: lisp.Int(7)}},
				gentree.Set{Name: symN, Value: gentree.Literal{Val: lisp.Bool(false)}},
			}},
		},
		gentree.Var{Name: symY},
	}}
	res := mustCompile(t, tree, symN)
	requireDone(t, newEngine(res, lisp.Bool(true)).Run(), lisp.Int(7))
}

func TestCompile_SetInLetStaysScoped(t *testing.T) {
	// an assignment to an unbound name inside a let body lifts into the let's
	// scope and is not visible after the block
	tree := gentree.Seq{Nodes: []gentree.Node{
		gentree.Let{
			Binds: []gentree.Bind{{Name: symX, Init: gentree.Literal{Val: lisp.Int(1)}}},
			Body: gentree.Seq{Nodes: []gentree.Node{
				gentree.Set{Name: symY, Value: gentree.Literal{Val: lisp.Int(9)}},
			}},
		},
		gentree.Var{Name: symY},
	}}
	_, err := compile.Compile(symbol.Intern("test-gen"), tree, nil, testOps(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbound variable")
}

func TestCompile_Delegate(t *testing.T) {
	// the engine surfaces the delegate signal; the continuation receives the
	// value the wrapper resumes with
	tree := gentree.Delegate{Source: gentree.Literal{Val: lisp.Int(5)}}
	res := mustCompile(t, tree)
	eng := newEngine(res)
	sig := eng.Run()
	require.Equal(t, machine.SigDelegate, sig.Kind())
	assert.True(t, lisp.Equal(lisp.Int(5), sig.Value()))
	requireDone(t, eng.Resume(lisp.Int(9)), lisp.Int(9))
}

func TestCompile_HandlerCatch(t *testing.T) {
	boom := gentree.Call{Fn: symbol.Intern("boom")}
	tree := gentree.Handler{
		Body: boom,
		Clauses: []gentree.Clause{{
			Pattern: symbol.Intern("oops"),
			Var:     symE,
			HasVar:  true,
			Body:    gentree.Var{Name: symE},
		}},
	}
	res := mustCompile(t, tree)
	sig := newEngine(res).Run()
	require.Equal(t, machine.SigDone, sig.Kind())
	assert.Equal(t, symbol.Intern("oops"), lisp.ConditionType(sig.Value()))
}

func TestCompile_HandlerNoMatch(t *testing.T) {
	tree := gentree.Handler{
		Body: gentree.Call{Fn: symbol.Intern("boom")},
		Clauses: []gentree.Clause{{
			Pattern: symbol.Intern("unrelated"),
			Body:    gentree.Literal{Val: lisp.Int(0)},
		}},
	}
	res := mustCompile(t, tree)
	sig := newEngine(res).Run()
	require.Equal(t, machine.SigError, sig.Kind())
	assert.Equal(t, symbol.Intern("oops"), lisp.ConditionType(sig.Value()))
}

func TestCompile_HandlerInnermostWins(t *testing.T) {
	inner := gentree.Handler{
		Body: gentree.Call{Fn: symbol.Intern("boom")},
		Clauses: []gentree.Clause{{
			Pattern: symbol.Intern("oops"),
			Body:    gentree.Literal{Val: lisp.String("inner")},
		}},
	}
	tree := gentree.Handler{
		Body: inner,
		Clauses: []gentree.Clause{{
			Pattern: lisp.AnyCondition,
			Body:    gentree.Literal{Val: lisp.String("outer")},
		}},
	}
	res := mustCompile(t, tree)
	requireDone(t, newEngine(res).Run(), lisp.String("inner"))
}

func TestCompile_HandlerScopeEnds(t *testing.T) {
	// a condition raised after the protected block is not handled by it
	tree := gentree.Seq{Nodes: []gentree.Node{
		gentree.Handler{
			Body: gentree.Literal{Val: lisp.Int(1)},
			Clauses: []gentree.Clause{{
				Pattern: lisp.AnyCondition,
				Body:    gentree.Literal{Val: lisp.Int(0)},
			}},
		},
		gentree.Call{Fn: symbol.Intern("boom")},
	}}
	res := mustCompile(t, tree)
	sig := newEngine(res).Run()
	require.Equal(t, machine.SigError, sig.Kind())
	assert.Equal(t, symbol.Intern("oops"), lisp.ConditionType(sig.Value()))
}

func TestCompile_HandlerYieldInBody(t *testing.T) {
	// conditions raised after resuming inside the protected block still
	// route to the handler
	tree := gentree.Handler{
		Body: gentree.Seq{Nodes: []gentree.Node{
			gentree.Yield{Value: gentree.Literal{Val: lisp.Int(1)}},
			gentree.Call{Fn: symbol.Intern("boom")},
		}},
		Clauses: []gentree.Clause{{
			Pattern: symbol.Intern("oops"),
			Body:    gentree.Literal{Val: lisp.String("handled")},
		}},
	}
	res := mustCompile(t, tree)
	eng := newEngine(res)
	requireYield(t, eng.Run(), lisp.Int(1))
	requireDone(t, eng.Resume(lisp.Nil()), lisp.String("handled"))
}

func TestCompile_Errors(t *testing.T) {
	for _, test := range []struct {
		name string
		tree gentree.Node
		msg  string
	}{
		{"unbound variable", gentree.Var{Name: symX}, "unbound variable"},
		{"undefined operator", gentree.Call{Fn: symbol.Intern("no-such-op")}, "undefined operator"},
		{"suspending argument", gentree.Call{Fn: symbol.Intern("+"), Args: []gentree.Node{
			gentree.Yield{},
		}}, "suspending arguments"},
		{"suspending condition", gentree.If{Cond: gentree.Yield{}, Then: gentree.Seq{}},
			"may not suspend"},
		{"bad assignment target", gentree.Set{Name: 0, Value: gentree.Seq{}},
			"assignment target"},
		{"missing initializer", gentree.Let{Binds: []gentree.Bind{{Name: symX}}, Body: gentree.Seq{}},
			"missing initializer"},
		{"missing delegate source", gentree.Delegate{}, "missing source"},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := compile.Compile(symbol.Intern("bad-gen"), test.tree, nil, testOps(), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.msg)
		})
	}
}

func TestCompile_DuplicateParam(t *testing.T) {
	_, err := compile.Compile(symbol.Intern("bad-gen"), gentree.Seq{}, []symbol.ID{symN, symN}, testOps(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate parameter")
}
