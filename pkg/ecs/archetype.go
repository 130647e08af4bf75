package ecs

import (
	"iter"
	"slices"

	"github.com/argus-labs/ecsrt/pkg/assert"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
)

// ArchetypeID identifies an archetype within one registry. IDs are never reused, so an evicted
// archetype and the one that later replaces it for the same signature have different IDs.
type ArchetypeID = int

// Archetype stores every entity that has exactly the same set of components. Data is stored
// column-wise: row i of every column belongs to entities[i].
type Archetype struct {
	id         ArchetypeID
	components bitmap.Bitmap  // Component IDs of the signature, used for fast subset checks
	names      []string       // Signature, sorted
	index      map[string]int // Component name -> column index
	columns    []*column      // One column per component in the signature
	entities   []EntityID     // Entity stored in each row
	rows       rowIndex       // Entity -> row
}

// newArchetype creates an empty archetype. names must be free of duplicates and components must
// hold exactly one bit per name.
func newArchetype(aid ArchetypeID, names []string, components bitmap.Bitmap) *Archetype {
	assert.That(components.Count() == len(names), "mismatched number of component IDs and names")

	sorted := slices.Clone(names)
	slices.Sort(sorted)

	a := &Archetype{
		id:         aid,
		components: components,
		names:      sorted,
		index:      make(map[string]int, len(sorted)),
		columns:    make([]*column, len(sorted)),
		entities:   make([]EntityID, 0),
		rows:       newRowIndex(),
	}
	for i, name := range sorted {
		a.index[name] = i
		a.columns[i] = newColumn(name)
	}
	return a
}

// ID returns the archetype's registry-local identifier.
func (a *Archetype) ID() ArchetypeID {
	return a.id
}

// Len returns the number of entities (rows) stored in the archetype.
func (a *Archetype) Len() int {
	return len(a.entities)
}

// Signature returns the sorted component names of the archetype.
func (a *Archetype) Signature() []string {
	return slices.Clone(a.names)
}

// Has returns true if name is part of the signature.
func (a *Archetype) Has(name string) bool {
	_, ok := a.index[name]
	return ok
}

// Matches returns true if every requested name is part of the signature. An empty request
// matches every archetype.
func (a *Archetype) Matches(names ...string) bool {
	for _, name := range names {
		if !a.Has(name) {
			return false
		}
	}
	return true
}

// contains returns true if the archetype contains all of the components in the given bitmap.
func (a *Archetype) contains(components bitmap.Bitmap) bool {
	intersect := components.Clone(nil)
	intersect.And(a.components)
	return intersect.Count() == components.Count()
}

// exact returns true if the given components match the archetype's exactly.
func (a *Archetype) exact(components bitmap.Bitmap) bool {
	if len(a.names) != components.Count() {
		return false
	}
	return a.contains(components)
}

// Entities returns a copy of the entities in storage-row order.
func (a *Archetype) Entities() []EntityID {
	return slices.Clone(a.entities)
}

// Row returns the row of the entity and whether the entity is stored here.
func (a *Archetype) Row(eid EntityID) (int, bool) {
	return a.rows.get(eid)
}

// -------------------------------------------------------------------------------------------------
// Entity operations
// -------------------------------------------------------------------------------------------------

// AddEntity appends the entity as a new row. values must supply exactly the archetype's signature.
func (a *Archetype) AddEntity(eid EntityID, values map[string]any) error {
	if len(values) != len(a.names) {
		return eris.Wrapf(ErrSignatureMismatch, "got %d components, archetype has %d",
			len(values), len(a.names))
	}
	for name := range values {
		if !a.Has(name) {
			return eris.Wrapf(ErrSignatureMismatch, "component %s", name)
		}
	}
	if _, exists := a.rows.get(eid); exists {
		return eris.Errorf("entity %d is already in archetype %d", eid, a.id)
	}

	a.entities = append(a.entities, eid)
	for _, col := range a.columns {
		col.push(values[col.name])
		assert.That(col.len() == len(a.entities), "column length doesn't match entities")
	}
	a.rows.set(eid, len(a.entities)-1)
	return nil
}

// RemoveEntity removes the entity's row from every column. The remaining rows keep their relative
// order, so every row after the removed one shifts down and is re-indexed.
func (a *Archetype) RemoveEntity(eid EntityID) error {
	row, exists := a.rows.get(eid)
	if !exists {
		return eris.Wrapf(ErrNotFound, "entity %d in archetype %d", eid, a.id)
	}

	a.entities = slices.Delete(a.entities, row, row+1)
	for _, col := range a.columns {
		col.remove(row)
		assert.That(col.len() == len(a.entities), "column length doesn't match entities")
	}

	ok := a.rows.remove(eid)
	assert.That(ok, "entity isn't removed from the row index")
	a.rows.reindex(a.entities, row)
	return nil
}

// -------------------------------------------------------------------------------------------------
// Component access
// -------------------------------------------------------------------------------------------------

// ComponentAt returns the value of a component at a row.
func (a *Archetype) ComponentAt(name string, index int) (any, error) {
	col, ok := a.index[name]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "component %s in archetype %d", name, a.id)
	}
	if index < 0 || index >= len(a.entities) {
		return nil, eris.Wrapf(ErrOutOfRange, "row %d, archetype has %d rows", index, len(a.entities))
	}
	return a.columns[col].get(index), nil
}

// setComponentAt overwrites the value of a component at a row. The caller must make sure the name
// and row are valid.
func (a *Archetype) setComponentAt(name string, index int, value any) {
	col, ok := a.index[name]
	assert.That(ok, "component %s is not in archetype", name)
	a.columns[col].set(index, value)
}

// values copies every component of the row into a map keyed by name, skipping the excluded name.
func (a *Archetype) values(row int, exclude string) map[string]any {
	out := make(map[string]any, len(a.columns))
	for _, col := range a.columns {
		if col.name == exclude {
			continue
		}
		out[col.name] = col.get(row)
	}
	return out
}

// Query returns the rows of the archetype in storage order, projecting only the requested
// components in the requested order. The sequence is empty if a name is outside the signature.
// Each call of the returned sequence starts from the first row.
func (a *Archetype) Query(names ...string) iter.Seq2[EntityID, []any] {
	return func(yield func(EntityID, []any) bool) {
		cols := make([]*column, len(names))
		for i, name := range names {
			idx, ok := a.index[name]
			if !ok {
				return
			}
			cols[i] = a.columns[idx]
		}

		for row := 0; row < len(a.entities); row++ {
			projected := make([]any, len(cols))
			for i, col := range cols {
				projected[i] = col.get(row)
			}
			if !yield(a.entities[row], projected) {
				return
			}
		}
	}
}
