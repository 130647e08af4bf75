package ecs

import (
	"iter"
	"slices"

	"github.com/rotisserie/eris"
)

// AccessMode is how a query accesses a component.
type AccessMode uint8

const (
	// AccessRead yields a deep copy of the component. Mutations are rejected.
	AccessRead AccessMode = iota + 1
	// AccessWrite yields the stored component. Mutations are visible immediately.
	AccessWrite
	// AccessWith requires the component to be present without projecting it.
	AccessWith
)

func (m AccessMode) String() string {
	switch m {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessWith:
		return "with"
	default:
		return "unknown"
	}
}

// Declaration is a group of component names declared with one access mode.
type Declaration struct {
	mode  AccessMode
	names []string
}

// Read declares components that are projected as read-only copies.
func Read(names ...string) Declaration {
	return Declaration{mode: AccessRead, names: names}
}

// Write declares components that are projected as live, mutable values.
func Write(names ...string) Declaration {
	return Declaration{mode: AccessWrite, names: names}
}

// With declares components that must be present but are not projected.
func With(names ...string) Declaration {
	return Declaration{mode: AccessWith, names: names}
}

// accessRecorder is notified of every component declared on a query.
type accessRecorder interface {
	recordComponent(name string, mode AccessMode)
}

// Query is a declarative, access-typed view over every entity that has all declared components.
// A query is built with Read, Write and With, then locked before being handed to a system. It
// doubles as a restartable cursor over the matching rows.
//
// Rows reference storage directly, so a row is only valid until the next structural change of the
// world (adding or removing components, spawning entities).
type Query struct {
	world      *World
	modes      map[string]AccessMode
	names      []string // Every declared name, in declaration order
	projection []string // Read and write names, in declaration order
	locked     bool
	recorder   accessRecorder

	// Cursor state.
	started   bool
	archs     []*Archetype
	archIdx   int
	row       int
	peeked    Row
	hasPeeked bool
}

func newQuery(w *World, recorder accessRecorder) *Query {
	return &Query{
		world:    w,
		modes:    make(map[string]AccessMode),
		recorder: recorder,
	}
}

// Query creates an open query with the given declarations applied in order.
func (w *World) Query(decls ...Declaration) (*Query, error) {
	return buildQuery(w, nil, decls)
}

func buildQuery(w *World, recorder accessRecorder, decls []Declaration) (*Query, error) {
	q := newQuery(w, recorder)
	for _, d := range decls {
		if err := q.declare(d.mode, d.names); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// -------------------------------------------------------------------------------------------------
// Builder
// -------------------------------------------------------------------------------------------------

// Read declares components accessed read-only.
func (q *Query) Read(names ...string) error {
	return q.declare(AccessRead, names)
}

// Write declares components accessed read-write.
func (q *Query) Write(names ...string) error {
	return q.declare(AccessWrite, names)
}

// With declares components that filter the matched entities without being projected.
func (q *Query) With(names ...string) error {
	return q.declare(AccessWith, names)
}

// declare adds names with the given mode. Either every name is added or none is.
func (q *Query) declare(mode AccessMode, names []string) error {
	if q.locked {
		return ErrLockedModification
	}
	for i, name := range names {
		if _, exists := q.modes[name]; exists || slices.Contains(names[:i], name) {
			return eris.Wrapf(ErrAlreadyDeclared, "component %s", name)
		}
	}

	for _, name := range names {
		q.modes[name] = mode
		q.names = append(q.names, name)
		if mode != AccessWith {
			q.projection = append(q.projection, name)
		}
		if q.recorder != nil {
			q.recorder.recordComponent(name, mode)
		}
	}
	q.Reset()
	return nil
}

// Lock freezes the declarations. Further builder calls fail with ErrLockedModification.
func (q *Query) Lock() {
	q.locked = true
}

// Locked returns true if the query has been locked.
func (q *Query) Locked() bool {
	return q.locked
}

// Mode returns the access mode of a declared component.
func (q *Query) Mode(name string) (AccessMode, bool) {
	mode, ok := q.modes[name]
	return mode, ok
}

// Projection returns the names of the projected components in declaration order.
func (q *Query) Projection() []string {
	return slices.Clone(q.projection)
}

// -------------------------------------------------------------------------------------------------
// Cursor
// -------------------------------------------------------------------------------------------------

// Reset rewinds the cursor. The matching archetypes are collected again on the next call to Next
// or Peek.
func (q *Query) Reset() {
	q.started = false
	q.archs = nil
	q.archIdx = 0
	q.row = 0
	q.peeked = Row{}
	q.hasPeeked = false
}

// Next returns the next matching row and advances the cursor.
func (q *Query) Next() (Row, bool) {
	if q.hasPeeked {
		row := q.peeked
		q.peeked = Row{}
		q.hasPeeked = false
		return row, true
	}
	return q.advance()
}

// Peek returns the next matching row without advancing the cursor.
func (q *Query) Peek() (Row, bool) {
	if !q.hasPeeked {
		row, ok := q.advance()
		if !ok {
			return Row{}, false
		}
		q.peeked = row
		q.hasPeeked = true
	}
	return q.peeked, true
}

// All rewinds the cursor and returns a sequence over every matching row.
func (q *Query) All() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		q.Reset()
		for {
			row, ok := q.Next()
			if !ok || !yield(row) {
				return
			}
		}
	}
}

// Single rewinds the cursor and returns the first matching row. It returns ErrNotFound if nothing
// matches.
func (q *Query) Single() (Row, error) {
	q.Reset()
	row, ok := q.Peek()
	if !ok {
		return Row{}, eris.Wrapf(ErrNotFound, "no entity matches %v", q.names)
	}
	return row, nil
}

// Count rewinds the cursor and returns the number of matching rows.
func (q *Query) Count() int {
	n := 0
	for range q.All() {
		n++
	}
	q.Reset()
	return n
}

func (q *Query) advance() (Row, bool) {
	if !q.started {
		q.start()
	}

	for q.archIdx < len(q.archs) {
		arch := q.archs[q.archIdx]
		if q.row < arch.Len() {
			row := Row{Entity: arch.entities[q.row], query: q, arch: arch, row: q.row}
			q.row++
			return row, true
		}
		q.archIdx++
		q.row = 0
	}
	return Row{}, false
}

// start collects the archetypes whose signature contains every declared name. Queries never
// assign component IDs: a name no entity has ever had matches nothing.
func (q *Query) start() {
	q.started = true
	if q.world == nil {
		return
	}

	components, ok := q.world.archetypes.lookupBitmap(q.names)
	if !ok {
		return
	}
	for arch := range q.world.archetypes.All() {
		if arch.contains(components) {
			q.archs = append(q.archs, arch)
		}
	}
}
