package ecs

import (
	"testing"

	"github.com/argus-labs/ecsrt/pkg/ecs/internal/codec"
	"github.com/argus-labs/ecsrt/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_Builder(t *testing.T) {
	t.Parallel()

	t.Run("duplicate names", func(t *testing.T) {
		t.Parallel()

		w := NewWorld()
		q, err := w.Query(Read(testutils.PositionName))
		require.NoError(t, err)

		require.ErrorIs(t, q.Read(testutils.PositionName), ErrAlreadyDeclared)
		require.ErrorIs(t, q.Write(testutils.PositionName), ErrAlreadyDeclared)
		require.ErrorIs(t, q.With(testutils.PositionName), ErrAlreadyDeclared)
		require.ErrorIs(t, q.Write(testutils.VelocityName, testutils.VelocityName), ErrAlreadyDeclared)

		// A failed declaration adds nothing.
		require.ErrorIs(t, q.Write(testutils.HealthName, testutils.PositionName), ErrAlreadyDeclared)
		_, declared := q.Mode(testutils.HealthName)
		assert.False(t, declared)

		_, err = w.Query(Read(testutils.PositionName), With(testutils.PositionName))
		require.ErrorIs(t, err, ErrAlreadyDeclared)
	})

	t.Run("locked", func(t *testing.T) {
		t.Parallel()

		w := NewWorld()
		q, err := w.Query(Write(testutils.PositionName))
		require.NoError(t, err)
		assert.False(t, q.Locked())

		q.Lock()
		assert.True(t, q.Locked())
		require.ErrorIs(t, q.Read(testutils.VelocityName), ErrLockedModification)
		require.ErrorIs(t, q.Write(testutils.VelocityName), ErrLockedModification)
		require.ErrorIs(t, q.With(testutils.VelocityName), ErrLockedModification)
	})

	t.Run("projection follows declaration order", func(t *testing.T) {
		t.Parallel()

		w := NewWorld()
		q, err := w.Query(
			Write(testutils.VelocityName),
			With(testutils.TagName),
			Read(testutils.PositionName, testutils.HealthName),
		)
		require.NoError(t, err)
		assert.Equal(t,
			[]string{testutils.VelocityName, testutils.PositionName, testutils.HealthName},
			q.Projection())

		mode, ok := q.Mode(testutils.TagName)
		require.True(t, ok)
		assert.Equal(t, AccessWith, mode)
	})
}

// -------------------------------------------------------------------------------------------------
// Iteration
// -------------------------------------------------------------------------------------------------
// A query over N matching entities yields exactly N rows, each carrying its own entity, in
// archetype creation order and then storage-row order. Entities missing a declared component,
// including a filter-only one, are skipped.
// -------------------------------------------------------------------------------------------------

func TestQuery_Iteration(t *testing.T) {
	t.Parallel()
	prng := testutils.NewRand(t)

	w := NewWorld()
	const entitiesMax = 200
	for range entitiesMax {
		e := w.CreateEntity()
		components := map[string]any{}
		for _, name := range testutils.ComponentNames {
			if prng.IntN(2) == 0 {
				components[name] = prng.IntN(100)
			}
		}
		require.NoError(t, w.SetComponents(e, components))
	}

	q, err := w.Query(Read(testutils.PositionName), Write(testutils.HealthName), With(testutils.TagName))
	require.NoError(t, err)

	var want []EntityID
	for arch := range w.Archetypes().All() {
		if arch.Matches(testutils.PositionName, testutils.HealthName, testutils.TagName) {
			want = append(want, arch.Entities()...)
		}
	}

	var got []EntityID
	for row := range q.All() {
		got = append(got, row.Entity)
		assert.Equal(t, 2, row.Len())

		pos, err := row.Get(0)
		require.NoError(t, err)
		stored, ok := w.GetComponent(row.Entity, testutils.PositionName)
		require.True(t, ok)
		assert.Equal(t, stored, pos)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, len(want), q.Count())
}

func TestQuery_Cursor(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	var entities []EntityID
	for i := range 3 {
		e := w.CreateEntity()
		require.NoError(t, w.AddComponent(e, testutils.HealthName, i))
		entities = append(entities, e)
	}

	q, err := w.Query(Read(testutils.HealthName))
	require.NoError(t, err)
	q.Lock()

	// Peek doesn't consume.
	peeked, ok := q.Peek()
	require.True(t, ok)
	again, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, peeked.Entity, again.Entity)

	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, entities[0], next.Entity)

	next, ok = q.Next()
	require.True(t, ok)
	assert.Equal(t, entities[1], next.Entity)

	next, ok = q.Next()
	require.True(t, ok)
	assert.Equal(t, entities[2], next.Entity)

	_, ok = q.Next()
	assert.False(t, ok)
	_, ok = q.Peek()
	assert.False(t, ok)

	// Reset restarts from the first row. Locked queries can still be iterated.
	q.Reset()
	next, ok = q.Next()
	require.True(t, ok)
	assert.Equal(t, entities[0], next.Entity)

	single, err := q.Single()
	require.NoError(t, err)
	assert.Equal(t, entities[0], single.Entity)
}

func TestQuery_SingleEmpty(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	q, err := w.Query(Read(testutils.PositionName))
	require.NoError(t, err)

	_, err = q.Single()
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, q.Count())
}

// -------------------------------------------------------------------------------------------------
// Access isolation
// -------------------------------------------------------------------------------------------------
// Values obtained in read mode are copies: writing through them is rejected and storage is
// unchanged. The same component obtained in write mode is the stored value, and writes are visible
// on the next read.
// -------------------------------------------------------------------------------------------------

func TestQuery_ReadIsolation(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	e := w.CreateEntity()
	require.NoError(t, w.SetComponents(e, map[string]any{
		testutils.PositionName: testutils.Position{X: 0, Y: 0},
		testutils.VelocityName: testutils.Velocity{DX: 1, DY: 1},
		testutils.HealthName:   &testutils.Health{HP: 10, Flags: []string{"alive"}},
	}))

	q, err := w.Query(Read(testutils.VelocityName, testutils.HealthName), Write(testutils.PositionName))
	require.NoError(t, err)
	row, err := q.Single()
	require.NoError(t, err)

	// Writes through read slots fail loudly.
	require.ErrorIs(t, row.Set(0, testutils.Velocity{DX: 5}), ErrWriteRejected)
	require.ErrorIs(t, Update(row, 0, func(v *testutils.Velocity) { v.DX = 5 }), ErrWriteRejected)
	require.ErrorIs(t, Update(row, 1, func(h *testutils.Health) { h.HP = 0 }), ErrWriteRejected)

	// Mutating a read copy doesn't reach storage, even for pointer components.
	value, err := row.Get(1)
	require.NoError(t, err)
	health, ok := value.(*testutils.Health)
	require.True(t, ok)
	health.HP = 0
	health.Flags[0] = "dead"

	stored, ok := w.GetComponent(e, testutils.HealthName)
	require.True(t, ok)
	assert.Equal(t, &testutils.Health{HP: 10, Flags: []string{"alive"}}, stored)
	vel, ok := w.GetComponent(e, testutils.VelocityName)
	require.True(t, ok)
	assert.Equal(t, testutils.Velocity{DX: 1, DY: 1}, vel)

	// Write slots reach storage.
	require.NoError(t, Update(row, 2, func(p *testutils.Position) { p.X = 3 }))
	pos, ok := w.GetComponent(e, testutils.PositionName)
	require.True(t, ok)
	assert.Equal(t, testutils.Position{X: 3}, pos)

	require.NoError(t, row.Set(2, testutils.Position{Y: 4}))
	pos, ok = w.GetComponent(e, testutils.PositionName)
	require.True(t, ok)
	assert.Equal(t, testutils.Position{Y: 4}, pos)
}

type opaque struct {
	x, y int
}

// Read slots of components that can't be copied exactly fail instead of returning zeroed or
// retyped copies. Write slots still hand out the stored value.
func TestQuery_ReadUncopyableComponent(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	e := w.CreateEntity()
	require.NoError(t, w.SetComponents(e, map[string]any{
		"opaque": opaque{x: 3, y: 4},
		"stats":  map[string]any{"hp": 10},
	}))

	reader, err := w.Query(Read("opaque", "stats"))
	require.NoError(t, err)
	row, err := reader.Single()
	require.NoError(t, err)

	_, err = row.Get(0)
	require.ErrorIs(t, err, codec.ErrUnsupported)
	_, err = row.Get(1)
	require.ErrorIs(t, err, codec.ErrUnsupported)
	_, err = row.Values()
	require.ErrorIs(t, err, codec.ErrUnsupported)

	writer, err := w.Query(Write("opaque", "stats"))
	require.NoError(t, err)
	row, err = writer.Single()
	require.NoError(t, err)

	got, err := row.Get(0)
	require.NoError(t, err)
	assert.Equal(t, opaque{x: 3, y: 4}, got)
	stats, err := row.Get(1)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hp": 10}, stats)

	w.AddResource("opaque", opaque{x: 1})
	_, err = w.Resource("opaque")
	require.ErrorIs(t, err, codec.ErrUnsupported)
	live, err := w.MutableResource("opaque")
	require.NoError(t, err)
	assert.Equal(t, opaque{x: 1}, live)
}

func TestQuery_WritePointerComponent(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	e := w.CreateEntity()
	stored := &testutils.Health{HP: 10}
	require.NoError(t, w.AddComponent(e, testutils.HealthName, stored))

	q, err := w.Query(Write(testutils.HealthName))
	require.NoError(t, err)
	row, err := q.Single()
	require.NoError(t, err)

	value, err := row.Get(0)
	require.NoError(t, err)
	assert.Same(t, stored, value)

	require.NoError(t, Update(row, 0, func(h *testutils.Health) { h.HP-- }))
	assert.Equal(t, 9, stored.HP)

	hp, err := Get[testutils.Health](row, 0)
	require.NoError(t, err)
	assert.Equal(t, 9, hp.HP)
}

func TestRow_Errors(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	e := w.CreateEntity()
	require.NoError(t, w.AddComponent(e, testutils.HealthName, 1))

	q, err := w.Query(Write(testutils.HealthName))
	require.NoError(t, err)
	row, err := q.Single()
	require.NoError(t, err)

	_, err = row.Get(1)
	require.ErrorIs(t, err, ErrOutOfRange)
	require.ErrorIs(t, row.Set(-1, 0), ErrOutOfRange)

	_, err = Get[string](row, 0)
	require.Error(t, err)
	require.Error(t, Update(row, 0, func(*string) {}))

	idx, ok := row.Index(testutils.HealthName)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, testutils.HealthName, row.Name(0))

	_, err = Row{}.Get(0)
	require.ErrorIs(t, err, ErrUninitialized)
}
