package ecs

import "github.com/argus-labs/ecsrt/pkg/assert"

// rowIndex is a sparse map from entity ID to the entity's row in one archetype. Entity IDs index
// the slice directly; absent entities hold noRow.
type rowIndex struct {
	rows []int
}

const (
	rowIndexInitialSize = 64
	noRow               = -1
)

func newRowIndex() rowIndex {
	idx := rowIndex{rows: make([]int, rowIndexInitialSize)}
	fillNoRow(idx.rows)
	return idx
}

func fillNoRow(rows []int) {
	for i := range rows {
		rows[i] = noRow
	}
}

// get returns the row of an entity and whether the entity is indexed.
func (idx *rowIndex) get(eid EntityID) (int, bool) {
	if int(eid) >= len(idx.rows) || idx.rows[eid] == noRow {
		return 0, false
	}
	return idx.rows[eid], true
}

// set points an entity at a row. The index doubles in size when eid is past its end.
func (idx *rowIndex) set(eid EntityID, row int) {
	assert.That(row >= 0, "row must not be negative")

	if n := len(idx.rows); int(eid) >= n {
		grown := make([]int, max(2*n, int(eid)+1))
		copy(grown, idx.rows)
		fillNoRow(grown[n:])
		idx.rows = grown
	}
	idx.rows[eid] = row
}

// remove drops an entity. Returns false if it wasn't indexed.
func (idx *rowIndex) remove(eid EntityID) bool {
	if _, ok := idx.get(eid); !ok {
		return false
	}
	idx.rows[eid] = noRow
	return true
}

// reindex points entities[from:] at their positions in entities, after the row before them was
// removed.
func (idx *rowIndex) reindex(entities []EntityID, from int) {
	for row := from; row < len(entities); row++ {
		idx.set(entities[row], row)
	}
}
