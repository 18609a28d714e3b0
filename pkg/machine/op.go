package machine

import (
	"fmt"

	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/symbol"
)

// Op is a primitive operator callable from compiled step programs.  An Op
// signals a raised condition by returning an error created with
// lisp.RaiseCondition (or lisp.Raisef); any other error is surfaced as an
// anonymous condition.
type Op func(args ...lisp.LVal) (lisp.LVal, error)

// OpMap resolves operator names during compilation.
type OpMap map[symbol.ID]Op

// Merge returns a map containing the operators of m overlaid with those of
// others, later maps winning.  The receiver is not modified.
func (m OpMap) Merge(others ...OpMap) OpMap {
	out := make(OpMap, len(m))
	for name, fn := range m {
		out[name] = fn
	}
	for _, other := range others {
		for name, fn := range other {
			out[name] = fn
		}
	}
	return out
}

// Named wraps fn so errors it returns are prefixed with the operator's name,
// keeping condition payloads useful without each Op formatting its own name.
func Named(name symbol.ID, table *symbol.Table, fn Op) Op {
	return func(args ...lisp.LVal) (lisp.LVal, error) {
		v, err := fn(args...)
		if err == nil {
			return v, nil
		}
		if _, ok := err.(*lisp.ConditionError); ok {
			return v, err
		}
		return v, fmt.Errorf("%s: %w", symbol.String(name, table), err)
	}
}
