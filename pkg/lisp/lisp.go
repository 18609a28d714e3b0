/*
Package lisp defines the value domain for the generator machine.  LVal is a
small tagged union covering the literals a program tree can mention, the cons
lists the front end parses, and the condition values raised during step
execution.  The machine itself treats values opaquely; only truthiness and
condition types are ever inspected.
*/
package lisp

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ctwhite/yield/pkg/symbol"
)

// LType discriminates LVal variants.
type LType uint8

const (
	// LNil is the absence of a value and also acts as an empty list.
	LNil LType = iota
	// LSymbol is a symbolic name.
	// Schema:
	//	Data: symbol.ID value
	LSymbol
	// LString is a go string value
	// Schema:
	//	Native: string value
	LString
	// LInt is a go int value
	// Schema:
	//	Data: int value
	LInt
	// LFloat is a go float64 value
	// Schema:
	//	Data: float64 bits
	LFloat
	// LBool is an integer representing a boolean value
	// Schema:
	//	Data: 0x0 if false and true otherwise
	LBool
	// LCons is a container that forms a linked list terminated by LNil
	// Schema:
	//	Native: *ConsData
	LCons
	// LQuote is a quoted value
	// Schema:
	//	Native: LVal
	LQuote
	// LTaggedVal is an application-defined value (e.g. a generator instance)
	// Schema:
	//	Data: symbol.ID value (type name)
	//	Native: user data
	LTaggedVal
	// LError is a raised condition
	// Schema:
	//	Data: symbol.ID value (condition type)
	//	Native: *ConditionData
	LError
)

var typeStrings = []string{
	LNil:       "nil",
	LSymbol:    "symbol",
	LString:    "string",
	LInt:       "int",
	LFloat:     "float",
	LBool:      "bool",
	LCons:      "pair",
	LQuote:     "quote",
	LTaggedVal: "tagged-value",
	LError:     "condition",
}

func (t LType) String() string {
	if int(t) >= len(typeStrings) {
		return "invalid"
	}
	return typeStrings[t]
}

var typeSymbols = []symbol.ID{
	LNil:       symbol.Intern("nil"),
	LSymbol:    symbol.Intern("symbol"),
	LString:    symbol.Intern("string"),
	LInt:       symbol.Intern("int"),
	LFloat:     symbol.Intern("float"),
	LBool:      symbol.Intern("bool"),
	LCons:      symbol.Intern("pair"),
	LQuote:     symbol.Intern("quote"),
	LTaggedVal: symbol.Intern("tagged-value"),
	LError:     symbol.Intern("condition"),
}

// LVal is a value.  The zero LVal is a valid LNil value.
type LVal struct {
	typ    LType
	Data   uint64
	Native interface{}
}

var lnil = LVal{}

// Type returns the variant tag of v.
func (v LVal) Type() LType {
	return v.typ
}

// GetType returns a symbol representing the type of v.  Tagged values report
// their user-defined type.
func GetType(v LVal) LVal {
	if v.typ == LTaggedVal {
		return Symbol(symbol.ID(v.Data))
	}
	return Symbol(typeSymbols[v.typ])
}

// Nil returns an LNil value.
func Nil() LVal {
	return lnil
}

// IsNil returns true if v is LNil.
func IsNil(v LVal) bool {
	return v.typ == LNil
}

// Symbol returns an LSymbol value.
func Symbol(id symbol.ID) LVal {
	return LVal{typ: LSymbol, Data: uint64(id)}
}

// GetSymbol extracts the symbol.ID from v.  GetSymbol returns false if v is
// not LSymbol.
func GetSymbol(v LVal) (symbol.ID, bool) {
	if v.typ != LSymbol {
		return 0, false
	}
	return symbol.ID(v.Data), true
}

// String returns an LString value.
func String(s string) LVal {
	return LVal{typ: LString, Native: s}
}

// GetString extracts string data from v.  GetString returns false if v is not
// LString.
func GetString(v LVal) (string, bool) {
	if v.typ != LString {
		return "", false
	}
	return v.Native.(string), true
}

// Int returns an LInt value.
func Int(x int) LVal {
	return LVal{typ: LInt, Data: uint64(x)}
}

// GetInt returns the int value from v.  GetInt returns false if v is not
// LInt.
func GetInt(v LVal) (int, bool) {
	if v.typ != LInt {
		return 0, false
	}
	return int(v.Data), true
}

// Float returns an LFloat value.
func Float(x float64) LVal {
	return LVal{typ: LFloat, Data: math.Float64bits(x)}
}

// GetFloat returns the float64 value from v.  GetFloat returns false if v is
// not LFloat.
func GetFloat(v LVal) (float64, bool) {
	if v.typ != LFloat {
		return 0, false
	}
	return math.Float64frombits(v.Data), true
}

// Bool returns an LBool with the truth value of ok.
func Bool(ok bool) LVal {
	if ok {
		return True()
	}
	return False()
}

// True returns a true LBool value.
func True() LVal {
	return LVal{typ: LBool, Data: 1}
}

// False returns a false LBool value.
func False() LVal {
	return LVal{typ: LBool, Data: 0}
}

// IsTrue returns true iff v represents a true value.  LNil and a false LBool
// are the only false values.
func IsTrue(v LVal) bool {
	return !(v.typ == LNil || (v.typ == LBool && v.Data == 0))
}

// Quote wraps v in an LQuote.
func Quote(v LVal) LVal {
	return LVal{typ: LQuote, Native: v}
}

// GetQuote returns the value being quoted by v.  GetQuote returns false if v
// is not LQuote.
func GetQuote(v LVal) (LVal, bool) {
	if v.typ != LQuote {
		return lnil, false
	}
	return v.Native.(LVal), true
}

// Tag returns an LTaggedVal with the user-defined type usertype and native as
// its underlying data.
func Tag(usertype symbol.ID, native interface{}) LVal {
	return LVal{typ: LTaggedVal, Data: uint64(usertype), Native: native}
}

// UserType returns the user-defined type of v.  UserType returns false if v
// is not LTaggedVal.
func UserType(v LVal) (symbol.ID, bool) {
	if v.typ != LTaggedVal {
		return 0, false
	}
	return symbol.ID(v.Data), true
}

// Equal returns true if v1 is identical to v2.  Tagged values with native
// components are never equal because comparing arbitrary native data can
// panic.
func Equal(v1, v2 LVal) bool {
	if v1.typ != v2.typ {
		return false
	}
	switch v1.typ {
	case LNil:
		return true
	case LSymbol, LInt, LFloat, LBool:
		return v1.Data == v2.Data
	case LString:
		return v1.Native.(string) == v2.Native.(string)
	case LCons:
		return consVal(v1).equal(consVal(v2))
	case LQuote:
		return Equal(v1.Native.(LVal), v2.Native.(LVal))
	case LError:
		if v1.Data != v2.Data {
			return false
		}
		return v1.Native == v2.Native
	default:
		return false
	}
}

// Format writes a source-code representation of v to w using table to resolve
// symbols.  A nil table uses the process-wide default symbol table.
func Format(w io.Writer, v LVal, table *symbol.Table) (int, error) {
	if table == nil {
		table = symbol.DefaultGlobalTable
	}
	switch v.typ {
	case LNil:
		return io.WriteString(w, "()")
	case LSymbol:
		id, _ := GetSymbol(v)
		return io.WriteString(w, symbol.String(id, table))
	case LString:
		s, _ := GetString(v)
		return fmt.Fprintf(w, "%q", s)
	case LInt:
		x, _ := GetInt(v)
		return fmt.Fprint(w, x)
	case LFloat:
		x, _ := GetFloat(v)
		return fmt.Fprint(w, x)
	case LBool:
		if IsTrue(v) {
			return io.WriteString(w, "true")
		}
		return io.WriteString(w, "false")
	case LCons:
		return consVal(v).format(w, table)
	case LQuote:
		n, err := io.WriteString(w, "'")
		if err != nil {
			return n, err
		}
		m, err := Format(w, v.Native.(LVal), table)
		return n + m, err
	case LTaggedVal:
		typ, _ := UserType(v)
		return fmt.Fprintf(w, "#{%s %v}", symbol.String(typ, table), v.Native)
	case LError:
		cond := ConditionType(v)
		return fmt.Fprintf(w, "#<condition %s: %s>", symbol.String(cond, table), conditionMessage(v))
	default:
		return 0, fmt.Errorf("unrecognized type: %v", v.typ)
	}
}

// FormatString renders v as a string, primarily for diagnostics and the CLI.
func FormatString(v LVal, table *symbol.Table) string {
	w := &strings.Builder{}
	_, err := Format(w, v, table)
	if err != nil {
		return fmt.Sprintf("#<unformattable %v>", v.typ)
	}
	return w.String()
}
