package genlang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/symbol"
)

func parse1(t *testing.T, src string) lisp.LVal {
	t.Helper()
	vs, _, err := NewParser(nil).ParseLVal([]byte(src))
	require.NoError(t, err)
	require.Len(t, vs, 1)
	return vs[0]
}

func TestParse_Terms(t *testing.T) {
	assert.True(t, lisp.Equal(lisp.Int(42), parse1(t, "42")))
	assert.True(t, lisp.Equal(lisp.Int(-7), parse1(t, "-7")))
	assert.True(t, lisp.Equal(lisp.Float(1.5), parse1(t, "1.5")))
	assert.True(t, lisp.Equal(lisp.Float(200), parse1(t, "2e2")))
	assert.True(t, lisp.Equal(lisp.String("hello world"), parse1(t, `"hello world"`)))
	assert.True(t, lisp.Equal(lisp.True(), parse1(t, "true")))
	assert.True(t, lisp.Equal(lisp.False(), parse1(t, "false")))

	id, ok := lisp.GetSymbol(parse1(t, "set!"))
	require.True(t, ok)
	assert.Equal(t, symbol.Intern("set!"), id)
	id, ok = lisp.GetSymbol(parse1(t, "<="))
	require.True(t, ok)
	assert.Equal(t, symbol.Intern("<="), id)
}

func TestParse_Lists(t *testing.T) {
	v := parse1(t, "(+ 1 2)")
	s, err := lisp.ConsSlice(v)
	require.NoError(t, err)
	require.Len(t, s, 3)
	id, ok := lisp.GetSymbol(s[0])
	require.True(t, ok)
	assert.Equal(t, symbol.Intern("+"), id)
	assert.True(t, lisp.Equal(lisp.Int(1), s[1]))

	assert.True(t, lisp.IsNil(parse1(t, "()")))

	v = parse1(t, "(a (b c) d)")
	s, err = lisp.ConsSlice(v)
	require.NoError(t, err)
	require.Len(t, s, 3)
	inner, err := lisp.ConsSlice(s[1])
	require.NoError(t, err)
	assert.Len(t, inner, 2)
}

func TestParse_Quote(t *testing.T) {
	v := parse1(t, "'x")
	q, ok := lisp.GetQuote(v)
	require.True(t, ok)
	id, ok := lisp.GetSymbol(q)
	require.True(t, ok)
	assert.Equal(t, symbol.Intern("x"), id)

	v = parse1(t, "'(1 2)")
	q, ok = lisp.GetQuote(v)
	require.True(t, ok)
	n, ok := lisp.ConsLen(q)
	require.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestParse_Multiple(t *testing.T) {
	vs, _, err := NewParser(nil).ParseLVal([]byte("1 2 (3)"))
	require.NoError(t, err)
	assert.Len(t, vs, 3)
}

func TestParse_Comments(t *testing.T) {
	vs, _, err := NewParser(nil).ParseLVal([]byte("; heading\n1 ; trailing\n2"))
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.True(t, lisp.Equal(lisp.Int(1), vs[0]))
	assert.True(t, lisp.Equal(lisp.Int(2), vs[1]))
}

func TestParse_TrailingWhitespace(t *testing.T) {
	vs, _, err := NewParser(nil).ParseLVal([]byte("(a b)\n"))
	require.NoError(t, err)
	assert.Len(t, vs, 1)

	vs, _, err = NewParser(nil).ParseLVal([]byte("1 2 ; trailing comment\n\t \n"))
	require.NoError(t, err)
	assert.Len(t, vs, 2)
}

func TestParse_Incomplete(t *testing.T) {
	_, _, err := NewParser(nil).ParseLVal([]byte("(+ 1"))
	assert.Error(t, err)
}

func TestParse_CustomTable(t *testing.T) {
	table := symbol.NewTable()
	vs, _, err := NewParser(table).ParseLVal([]byte("custom"))
	require.NoError(t, err)
	require.Len(t, vs, 1)
	id, ok := lisp.GetSymbol(vs[0])
	require.True(t, ok)
	got, _ := table.Peek("custom")
	assert.Equal(t, got, id)
}
