package statemachine

import "fmt"

// Transition is one edge: firing On in From moves the machine to To.
type Transition[S, E comparable] struct {
	From S
	On   E
	To   S
}

// Table is a validated set of transitions. It is read-only after construction.
type Table[S, E comparable] struct {
	next map[S]map[E]S
}

// NewTable validates transitions. Repeating an edge is allowed; two edges
// leaving the same state on the same event for different targets are not.
func NewTable[S, E comparable](transitions ...Transition[S, E]) (*Table[S, E], error) {
	if len(transitions) == 0 {
		return nil, ErrEmptyTable
	}
	t := &Table[S, E]{next: make(map[S]map[E]S)}
	for _, tr := range transitions {
		edges, ok := t.next[tr.From]
		if !ok {
			edges = make(map[E]S)
			t.next[tr.From] = edges
		}
		if to, exists := edges[tr.On]; exists && to != tr.To {
			return nil, fmt.Errorf("%w: %v on %v leads to both %v and %v",
				ErrConflictingTransition, tr.From, tr.On, to, tr.To)
		}
		edges[tr.On] = tr.To
	}
	return t, nil
}

// MustTable is NewTable that panics on an invalid table. Tables are
// usually package level values, so a bad one should stop the program.
func MustTable[S, E comparable](transitions ...Transition[S, E]) *Table[S, E] {
	t, err := NewTable(transitions...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return t
}

// Next returns the target of firing e in from.
func (t *Table[S, E]) Next(from S, e E) (S, error) {
	to, ok := t.next[from][e]
	if !ok {
		var zero S
		return zero, &NoTransitionError{From: fmt.Sprint(from), Event: fmt.Sprint(e)}
	}
	return to, nil
}

// Terminal reports whether s has no outgoing transitions.
func (t *Table[S, E]) Terminal(s S) bool {
	return len(t.next[s]) == 0
}

// Start returns a machine positioned at initial.
func (t *Table[S, E]) Start(initial S) *Machine[S, E] {
	return &Machine[S, E]{table: t, current: initial, path: []S{initial}}
}

// Machine is a single run over a Table.
type Machine[S, E comparable] struct {
	table   *Table[S, E]
	current S
	path    []S
}

func (m *Machine[S, E]) Current() S {
	return m.current
}

// Fire moves the machine along the edge for e. The state is unchanged on error.
func (m *Machine[S, E]) Fire(e E) error {
	to, err := m.table.Next(m.current, e)
	if err != nil {
		return err
	}
	m.current = to
	m.path = append(m.path, to)
	return nil
}

// Can reports whether Fire(e) would succeed.
func (m *Machine[S, E]) Can(e E) bool {
	_, err := m.table.Next(m.current, e)
	return err == nil
}

// Done reports whether the machine reached a terminal state.
func (m *Machine[S, E]) Done() bool {
	return m.table.Terminal(m.current)
}

// Path returns every state visited so far, starting with the initial one.
func (m *Machine[S, E]) Path() []S {
	return append([]S(nil), m.path...)
}
