package ecs

import (
	"sync"
	"testing"

	"github.com/argus-labs/ecsrt/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ComponentID(t *testing.T) {
	t.Parallel()

	reg := NewArchetypeRegistry()
	assert.Equal(t, uint32(0), reg.ComponentID("b"))
	assert.Equal(t, uint32(1), reg.ComponentID("a"))
	assert.Equal(t, uint32(0), reg.ComponentID("b"))

	// Registries don't share IDs.
	other := NewArchetypeRegistry()
	assert.Equal(t, uint32(0), other.ComponentID("a"))
}

func TestRegistry_Key(t *testing.T) {
	t.Parallel()

	reg := NewArchetypeRegistry()
	reg.ComponentID("c") // 0
	reg.ComponentID("a") // 1
	reg.ComponentID("b") // 2

	assert.Equal(t, "0|1|2", reg.Key([]string{"a", "b", "c"}))
	assert.Equal(t, "0|1|2", reg.Key([]string{"c", "b", "a"}))
	assert.Equal(t, "0|1", reg.Key([]string{"a", "c", "a"}))
	assert.Empty(t, reg.Key(nil))
}

func TestRegistry_GetSetHasDelete(t *testing.T) {
	t.Parallel()

	reg := NewArchetypeRegistry()
	names := []string{testutils.PositionName, testutils.VelocityName}
	reversed := []string{testutils.VelocityName, testutils.PositionName}

	_, ok := reg.Get(names)
	assert.False(t, ok)
	assert.False(t, reg.Has(names))

	// Lookups don't assign component IDs.
	_, known := reg.lookupID(testutils.PositionName)
	assert.False(t, known)

	arch := reg.GetOrCreate(names)
	assert.Same(t, arch, reg.GetOrCreate(reversed))
	got, ok := reg.Get(reversed)
	require.True(t, ok)
	assert.Same(t, arch, got)
	assert.True(t, reg.Has(names))
	assert.Equal(t, 1, reg.Len())

	reg.Delete(reversed)
	assert.False(t, reg.Has(names))
	assert.Equal(t, 0, reg.Len())

	// A re-created archetype is a fresh instance with a new ID.
	fresh := reg.GetOrCreate(names)
	assert.NotSame(t, arch, fresh)
	assert.NotEqual(t, arch.ID(), fresh.ID())

	// Set replaces the stored instance.
	reg.Set(names, arch)
	got, ok = reg.Get(names)
	require.True(t, ok)
	assert.Same(t, arch, got)
}

func TestRegistry_All(t *testing.T) {
	t.Parallel()

	reg := NewArchetypeRegistry()
	a := reg.GetOrCreate([]string{"a"})
	b := reg.GetOrCreate([]string{"a", "b"})
	c := reg.GetOrCreate([]string{"c"})
	reg.Delete([]string{"a", "b"})

	var got []*Archetype
	for arch := range reg.All() {
		got = append(got, arch)
	}
	assert.Equal(t, []*Archetype{a, c}, got)
	assert.NotContains(t, got, b)
}

func TestRegistry_ConcurrentGetOrCreate(t *testing.T) {
	t.Parallel()

	reg := NewArchetypeRegistry()
	const workers = 16

	results := make([]*Archetype, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			names := []string{testutils.PositionName, testutils.VelocityName, testutils.HealthName}
			if i%2 == 0 {
				names = []string{testutils.HealthName, testutils.VelocityName, testutils.PositionName}
			}
			results[i] = reg.GetOrCreate(names)
		}()
	}
	wg.Wait()

	for _, arch := range results {
		assert.Same(t, results[0], arch)
	}
	assert.Equal(t, 1, reg.Len())
}
