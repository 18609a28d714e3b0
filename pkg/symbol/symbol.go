/*
Package symbol provides interned symbols.  Symbols identify steps, lifted
variable slots, operators, and condition types throughout the generator
machine.  Comparing two symbol.ID values is a single integer comparison which
keeps step dispatch and handler matching cheap.
*/
package symbol

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// An ID is the identity of an interned or generated symbol.
type ID uint64

// DefaultGlobalTable is the default symbol table.  It should be used by
// processes to intern symbols during package init to create fixed handles to
// symbols.  Short-lived applications may use DefaultGlobalTable directly.
var DefaultGlobalTable = NewTable()

// Intern uses DefaultGlobalTable to intern s and returns its ID.
func Intern(s string) ID {
	return DefaultGlobalTable.Intern(s)
}

// String returns the result of table.Symbol(id) if id is present in table.
// String otherwise returns a diagnostic string describing id.
func String(id ID, table *Table) string {
	s, ok := table.Symbol(id)
	if ok {
		return s
	}
	return fmt.Sprintf("#<SYMBOL %#x>", uint64(id))
}

// String is equivalent to calling String(id, DefaultGlobalTable).
func (id ID) String() string {
	return String(id, DefaultGlobalTable)
}

// Table maps symbol IDs to strings.  A Table may be used concurrently.
type Table struct {
	mut sync.RWMutex
	g   idGen
	i   map[ID]string
	s   map[string]ID
}

// NewTable returns an empty symbol table.
func NewTable(rows ...TableRow) *Table {
	t := &Table{
		i: make(map[ID]string),
		s: make(map[string]ID),
	}
	var max ID
	for _, r := range rows {
		t.i[r.ID] = r.Symbol
		t.s[r.Symbol] = r.ID
		if r.ID > max {
			max = r.ID
		}
	}
	t.g = idGen{lastid: uint64(max)}
	return t
}

// TableRow is one symbol mapping exported from a Table.
type TableRow struct {
	Symbol string
	ID     ID
}

// Copy returns a table initialized with the contents of t.  Symbols generated
// later in either table do not appear in the other.
func (t *Table) Copy() *Table {
	return NewTable(t.Export()...)
}

// Export returns a slice containing all table data which can be used to
// bootstrap a new Table.
func (t *Table) Export() []TableRow {
	t.mut.RLock()
	defer t.mut.RUnlock()
	rows := make([]TableRow, 0, len(t.s))
	for sym, id := range t.s {
		rows = append(rows, TableRow{Symbol: sym, ID: id})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows
}

// Len returns the number of symbols interned in the table.
func (t *Table) Len() int {
	t.mut.RLock()
	defer t.mut.RUnlock()
	return len(t.s)
}

// Intern inserts the given symbol into the table if it is not present and
// returns its ID.
func (t *Table) Intern(s string) ID {
	t.mut.Lock()
	defer t.mut.Unlock()
	return t.intern(s)
}

// InternAll performs a bulk Intern operation and returns a list of IDs that
// matches the given symbols.
func (t *Table) InternAll(symbols ...string) []ID {
	ids := make([]ID, 0, len(symbols))
	t.mut.Lock()
	defer t.mut.Unlock()
	for _, s := range symbols {
		ids = append(ids, t.intern(s))
	}
	return ids
}

func (t *Table) intern(s string) ID {
	if id, ok := t.s[s]; ok {
		return id
	}
	id := ID(t.g.newID())
	t.s[s] = id
	t.i[id] = s
	return id
}

// Peek retrieves the ID of a symbol without automatically interning it.  Peek
// returns true iff the symbol has been interned into the table.
func (t *Table) Peek(s string) (ID, bool) {
	t.mut.RLock()
	defer t.mut.RUnlock()
	id, ok := t.s[s]
	return id, ok
}

// Symbol returns the symbol associated with id.
func (t *Table) Symbol(id ID) (string, bool) {
	t.mut.RLock()
	defer t.mut.RUnlock()
	s, ok := t.i[id]
	return s, ok
}

// Gensym interns a new symbol that is guaranteed not to have been interned in
// t before.  The returned symbol's name begins with prefix followed by a
// monotonic counter value.  Gensym is how the compiler names generated steps
// and lifted slots; uniqueness is structural and does not need to survive
// across tables.
func (t *Table) Gensym(prefix string) ID {
	t.mut.Lock()
	defer t.mut.Unlock()
	for {
		n := t.g.newID()
		s := fmt.Sprintf("%s%d", prefix, n)
		if _, ok := t.s[s]; ok {
			continue
		}
		id := ID(t.g.newID())
		t.s[s] = id
		t.i[id] = s
		return id
	}
}

// idGen hands out unique numeric ids.
type idGen struct {
	lastid uint64
}

func (g *idGen) newID() uint64 {
	return atomic.AddUint64(&g.lastid, 1)
}
