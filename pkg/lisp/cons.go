package lisp

import (
	"fmt"
	"io"

	"github.com/ctwhite/yield/pkg/symbol"
)

// ConsData is the native data backing an LCons value.
type ConsData struct {
	car LVal
	cdr LVal
}

// Cons returns an LCons joining car and cdr.
func Cons(car, cdr LVal) LVal {
	return LVal{typ: LCons, Native: &ConsData{car: car, cdr: cdr}}
}

// List builds a proper list from vs.
func List(vs ...LVal) LVal {
	v := Nil()
	for i := len(vs) - 1; i >= 0; i-- {
		v = Cons(vs[i], v)
	}
	return v
}

// GetCons extracts cons data from v.  GetCons returns false if v is not
// LCons.
func GetCons(v LVal) (*ConsData, bool) {
	if v.typ != LCons {
		return nil, false
	}
	return v.Native.(*ConsData), true
}

// CAR returns the head of the pair.
func (c *ConsData) CAR() LVal { return c.car }

// CDR returns the tail of the pair.
func (c *ConsData) CDR() LVal { return c.cdr }

func consVal(v LVal) *ConsData {
	return v.Native.(*ConsData)
}

func (c *ConsData) equal(other *ConsData) bool {
	return Equal(c.car, other.car) && Equal(c.cdr, other.cdr)
}

// ConsLen returns the length of the list v.  ConsLen returns false if v is
// not a proper list.
func ConsLen(v LVal) (int, bool) {
	n := 0
	it := NewListIterator(v)
	for it.Next() {
		n++
	}
	return n, it.Err() == nil
}

// ConsSlice flattens the list v into a slice.  ConsSlice returns an error if
// v is not a proper list.
func ConsSlice(v LVal) ([]LVal, error) {
	var s []LVal
	it := NewListIterator(v)
	for it.Next() {
		s = append(s, it.Value())
	}
	return s, it.Err()
}

// ListIterator walks a proper list.
type ListIterator struct {
	rest LVal
	v    LVal
	err  error
}

// NewListIterator returns an iterator over the list v.
func NewListIterator(v LVal) *ListIterator {
	return &ListIterator{rest: v}
}

// Next advances the iterator.  Next returns false at the end of the list or
// when the tail is not a cons.
func (it *ListIterator) Next() bool {
	if IsNil(it.rest) {
		return false
	}
	cons, ok := GetCons(it.rest)
	if !ok {
		it.err = fmt.Errorf("not a proper list: %v", GetType(it.rest))
		return false
	}
	it.v = cons.CAR()
	it.rest = cons.CDR()
	return true
}

// Value returns the list element at the iterator's position.
func (it *ListIterator) Value() LVal { return it.v }

// Rest returns the unconsumed tail of the list.
func (it *ListIterator) Rest() LVal { return it.rest }

// Err returns an error if the iterated value was not a proper list.
func (it *ListIterator) Err() error { return it.err }

func (c *ConsData) format(w io.Writer, table *symbol.Table) (int, error) {
	n, err := io.WriteString(w, "(")
	if err != nil {
		return n, err
	}
	first := true
	v := LVal{typ: LCons, Native: c}
	for {
		cons, ok := GetCons(v)
		if !ok {
			break
		}
		if !first {
			m, err := io.WriteString(w, " ")
			n += m
			if err != nil {
				return n, err
			}
		}
		first = false
		m, err := Format(w, cons.CAR(), table)
		n += m
		if err != nil {
			return n, err
		}
		v = cons.CDR()
		if IsNil(v) {
			break
		}
		if v.typ != LCons {
			m, err := io.WriteString(w, " . ")
			n += m
			if err != nil {
				return n, err
			}
			m, err = Format(w, v, table)
			n += m
			if err != nil {
				return n, err
			}
			break
		}
	}
	m, err := io.WriteString(w, ")")
	return n + m, err
}
