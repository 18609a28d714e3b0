package machine

import (
	"fmt"
	"io"

	"github.com/ctwhite/yield/pkg/symbol"
)

// Program is a compiled step array.  A Program is immutable after New
// returns and may be shared by any number of instances of the same generator
// definition.
type Program struct {
	name  symbol.ID
	steps []Step
	index map[symbol.ID]int
	entry symbol.ID
}

// New validates the step array and returns a Program beginning execution at
// entry.  Every step name must be unique, the entry and every name in refs
// (the jump targets the compiler emitted) must resolve to a step.
func New(name symbol.ID, entry symbol.ID, steps []Step, refs []symbol.ID) (*Program, error) {
	p := &Program{
		name:  name,
		steps: steps,
		index: make(map[symbol.ID]int, len(steps)),
		entry: entry,
	}
	for i := range steps {
		if _, ok := p.index[steps[i].Name]; ok {
			return nil, fmt.Errorf("duplicate step name defined in program %v: %v", name, steps[i].Name)
		}
		p.index[steps[i].Name] = i
	}
	if _, ok := p.index[entry]; !ok {
		return nil, fmt.Errorf("program %v: entry step is undefined: %v", name, entry)
	}
	for _, ref := range refs {
		if _, ok := p.index[ref]; !ok {
			return nil, fmt.Errorf("program %v: jump target is undefined: %v", name, ref)
		}
	}
	return p, nil
}

// Name returns the program's name.  The name is used solely for diagnostics
// and is not required to be unique across programs.
func (p *Program) Name() symbol.ID {
	return p.name
}

// Entry returns the name of the program's first executable step.
func (p *Program) Entry() symbol.ID {
	return p.entry
}

// Len returns the number of steps in the program.
func (p *Program) Len() int {
	return len(p.steps)
}

// Offset returns the array index of the named step.
func (p *Program) Offset(name symbol.ID) (int, bool) {
	i, ok := p.index[name]
	return i, ok
}

// StepAt returns the step at array index i.
func (p *Program) StepAt(i int) (Step, bool) {
	if i < 0 || i >= len(p.steps) {
		return Step{}, false
	}
	return p.steps[i], true
}

// Format writes a human readable program listing to w.  Each step is
// rendered on one line with its name, its text, and any handlers in scope.
func (p *Program) Format(w io.Writer, table *symbol.Table) (int, error) {
	n, err := fmt.Fprintf(w, "program %s (entry %s)\n", symbol.String(p.name, table), symbol.String(p.entry, table))
	if err != nil {
		return n, err
	}
	for i := range p.steps {
		s := &p.steps[i]
		m, err := fmt.Fprintf(w, "%3d %-24s %s", i, symbol.String(s.Name, table), s.Text)
		n += m
		if err != nil {
			return n, err
		}
		for _, h := range s.Handlers {
			m, err = fmt.Fprintf(w, " [%s -> %s]", symbol.String(h.Pattern, table), symbol.String(h.Entry, table))
			n += m
			if err != nil {
				return n, err
			}
		}
		m, err = io.WriteString(w, "\n")
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
