/*
Package slot provides the lifted-variable storage used by generator
instances.  Lifting relocates a local variable into an instance-private slot
so its value survives suspension.  An Arch names the slots a compiled
generator requires; each instance materializes its own Array from the Arch.
*/
package slot

import (
	"fmt"

	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/symbol"
)

// LUnsetSlot tags the value stored in each slot before its first write.
var LUnsetSlot = symbol.Intern("unset-slot")

// Unset returns the value a fresh slot holds.
func Unset() lisp.LVal {
	return lisp.Tag(LUnsetSlot, nil)
}

// IsUnset returns true if v is the unset-slot value.
func IsUnset(v lisp.LVal) bool {
	typ, ok := lisp.UserType(v)
	return ok && typ == LUnsetSlot
}

// Arch is a slot architecture: the ordered set of slot names a compiled
// generator definition requires.  Indices into an Arch are resolved once at
// compile time so step thunks access storage in constant time.
type Arch struct {
	names []symbol.ID
	index map[symbol.ID]int
}

// MakeArch creates an Arch defining a slot for each name in order.  MakeArch
// returns an error if a name appears more than once; the compiler never
// reuses a slot name, even for shadowed variables.
func MakeArch(names ...symbol.ID) (*Arch, error) {
	a := &Arch{
		names: make([]symbol.ID, len(names)),
		index: make(map[symbol.ID]int, len(names)),
	}
	copy(a.names, names)
	for i, name := range names {
		if _, ok := a.index[name]; ok {
			return nil, fmt.Errorf("slot names are not unique: %v", name)
		}
		a.index[name] = i
	}
	return a, nil
}

// MustArch is the same as MakeArch but panics when MakeArch would return an
// error.
func MustArch(names ...symbol.ID) *Arch {
	a, err := MakeArch(names...)
	if err != nil {
		panic("unable to construct slot architecture: " + err.Error())
	}
	return a
}

// Len returns the number of slots defined.
func (a *Arch) Len() int {
	return len(a.names)
}

// Names returns the ordered list of slot names defined by the architecture.
func (a *Arch) Names() []symbol.ID {
	names := make([]symbol.ID, len(a.names))
	copy(names, a.names)
	return names
}

// Index returns the index of the named slot.  If the named slot is not
// defined in the Arch then Index returns (-1, false).
func (a *Arch) Index(name symbol.ID) (int, bool) {
	i, ok := a.index[name]
	if !ok {
		return -1, false
	}
	return i, true
}

// MakeArray returns a new slot array for the architecture with every cell
// initialized to the unset value.
func (a *Arch) MakeArray() Array {
	cells := make([]lisp.LVal, len(a.names))
	for i := range cells {
		cells[i] = Unset()
	}
	return Array{arch: a, cells: cells}
}

// Array is one instance's private slot storage.
type Array struct {
	arch  *Arch
	cells []lisp.LVal
}

// Arch returns the architecture describing the array.
func (s Array) Arch() *Arch {
	return s.arch
}

// Get returns the value in slot i.  Get panics on an invalid index because
// indices are resolved at compile time and an out-of-range access is a
// compiler defect, not a runtime condition.
func (s Array) Get(i int) lisp.LVal {
	return s.cells[i]
}

// Set stores v in slot i.
func (s Array) Set(i int, v lisp.LVal) {
	s.cells[i] = v
}

// Lookup returns the value bound to the named slot.  Lookup returns false if
// the Arch does not define the name.
func (s Array) Lookup(name symbol.ID) (lisp.LVal, bool) {
	i, ok := s.arch.Index(name)
	if !ok {
		return lisp.Nil(), false
	}
	return s.cells[i], true
}
