package lisp

import (
	"fmt"

	"github.com/ctwhite/yield/pkg/symbol"
)

// AnyCondition is the condition type that handler patterns use to match every
// raised condition.
var AnyCondition = symbol.Intern("condition")

// ConditionData holds the payload of a raised condition.  Exactly one of
// GoError and Value is meaningful.
type ConditionData struct {
	GoError error
	Value   LVal
}

// Condition returns an LError value with the given condition type.  The data
// may be an error, an LVal payload, a message string, or nil.
func Condition(typ symbol.ID, data interface{}) LVal {
	cd := &ConditionData{}
	switch data := data.(type) {
	case nil:
		cd.Value = Nil()
	case error:
		cd.GoError = data
	case LVal:
		cd.Value = data
	case string:
		cd.Value = String(data)
	default:
		cd.GoError = fmt.Errorf("invalid condition data: %T", data)
	}
	return LVal{typ: LError, Data: uint64(typ), Native: cd}
}

// Conditionf returns an LError value whose payload is a formatted message.
func Conditionf(typ symbol.ID, format string, args ...interface{}) LVal {
	return Condition(typ, fmt.Errorf(format, args...))
}

// IsCondition returns true if v is LError.
func IsCondition(v LVal) bool {
	return v.typ == LError
}

// ConditionType returns the condition type symbol of v, or 0 if v is not a
// condition.
func ConditionType(v LVal) symbol.ID {
	if v.typ != LError {
		return 0
	}
	return symbol.ID(v.Data)
}

func conditionMessage(v LVal) string {
	cd, ok := v.Native.(*ConditionData)
	if !ok {
		return fmt.Sprintf("%v", v.Native)
	}
	if cd.GoError != nil {
		return cd.GoError.Error()
	}
	return FormatString(cd.Value, symbol.DefaultGlobalTable)
}

// ConditionError adapts a raised condition into a Go error so that operator
// functions can signal conditions through their error return.
type ConditionError struct {
	Cond LVal
}

// RaiseCondition wraps cond in a ConditionError.  RaiseCondition panics if
// cond is not an LError value.
func RaiseCondition(cond LVal) error {
	if !IsCondition(cond) {
		panic("value is not a condition")
	}
	return &ConditionError{Cond: cond}
}

// Raisef builds a condition of the given type with a formatted message and
// wraps it as an error.
func Raisef(typ symbol.ID, format string, args ...interface{}) error {
	return &ConditionError{Cond: Conditionf(typ, format, args...)}
}

// Error implements the error interface.
func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition %s: %s", ConditionType(e.Cond), conditionMessage(e.Cond))
}

// AsCondition extracts a condition from err.  Errors that are not
// ConditionError values are wrapped as AnyCondition so that every operator
// failure can be routed through handler dispatch uniformly.
func AsCondition(err error) LVal {
	if ce, ok := err.(*ConditionError); ok {
		return ce.Cond
	}
	return Condition(AnyCondition, err)
}
