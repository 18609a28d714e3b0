// Package gentest provides helpers for testing generator programs.
package gentest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctwhite/yield/pkg/generator"
	"github.com/ctwhite/yield/pkg/genlang"
	"github.com/ctwhite/yield/pkg/lisp"
)

// MustLoad returns a fresh runtime with src loaded, failing the test on any
// parse or compile error.
func MustLoad(t *testing.T, src string) *genlang.Runtime {
	t.Helper()
	rt := genlang.NewRuntime(nil)
	require.NoError(t, rt.Load([]byte(src)))
	return rt
}

// MustInstance instantiates the named generator, failing the test on error.
func MustInstance(t *testing.T, rt *genlang.Runtime, name string, args ...lisp.LVal) *generator.Instance {
	t.Helper()
	in, err := rt.Instantiate(rt.Table().Intern(name), args...)
	require.NoError(t, err)
	return in
}

// Drain advances in until it reaches a terminal status, returning the
// yielded values in order along with the terminal status.  The test fails
// if in is still suspended after limit advances.
func Drain(t *testing.T, in *generator.Instance, limit int) ([]lisp.LVal, generator.Status) {
	t.Helper()
	var vs []lisp.LVal
	for i := 0; i < limit; i++ {
		st := in.Next()
		if st.Kind != generator.StatusYield {
			return vs, st
		}
		vs = append(vs, st.Value)
	}
	t.Fatalf("generator still suspended after %d advances", limit)
	return nil, generator.Status{}
}

// Ints asserts every value is an int and returns them as a slice.
func Ints(t *testing.T, vs []lisp.LVal) []int {
	t.Helper()
	xs := make([]int, len(vs))
	for i, v := range vs {
		x, ok := lisp.GetInt(v)
		require.True(t, ok, "value %d is not an int: %v", i, v.Type())
		xs[i] = x
	}
	return xs
}

// Yields asserts the next advance of in yields a value equal to want.
func Yields(t *testing.T, in *generator.Instance, want lisp.LVal) {
	t.Helper()
	st := in.Next()
	require.Equal(t, generator.StatusYield, st.Kind, "status %v (%v)", st.Kind, st.Value)
	require.True(t, lisp.Equal(want, st.Value), "yielded %v", st.Value)
}

// Finishes asserts the next advance of in finishes with a value equal to
// want.
func Finishes(t *testing.T, in *generator.Instance, want lisp.LVal) {
	t.Helper()
	st := in.Next()
	require.Equal(t, generator.StatusDone, st.Kind, "status %v (%v)", st.Kind, st.Value)
	require.True(t, lisp.Equal(want, st.Value), "finished with %v", st.Value)
}
