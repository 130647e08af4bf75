package ecs

import (
	"iter"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/argus-labs/ecsrt/pkg/assert"
	"github.com/kelindar/bitmap"
)

// ArchetypeRegistry maps component-name sets to their archetype. Component names are interned to
// increasing integer IDs on first sight, and a set's canonical key is its sorted IDs, so the
// order in which names are given never matters. The registry belongs to one World; two worlds
// never share IDs.
type ArchetypeRegistry struct {
	catalogMu sync.RWMutex
	catalog   map[string]uint32 // Component name -> component ID
	nextCID   uint32

	mu         sync.RWMutex
	archetypes map[string]*Archetype // Canonical key -> archetype
	nextAID    ArchetypeID
}

// NewArchetypeRegistry creates an empty registry.
func NewArchetypeRegistry() *ArchetypeRegistry {
	return &ArchetypeRegistry{
		catalog:    make(map[string]uint32),
		archetypes: make(map[string]*Archetype),
	}
}

// ComponentID returns the ID of a component name, assigning the next free ID on first sight.
func (r *ArchetypeRegistry) ComponentID(name string) uint32 {
	r.catalogMu.RLock()
	id, ok := r.catalog[name]
	r.catalogMu.RUnlock()
	if ok {
		return id
	}

	r.catalogMu.Lock()
	defer r.catalogMu.Unlock()
	if id, ok := r.catalog[name]; ok {
		return id
	}
	id = r.nextCID
	r.catalog[name] = id
	r.nextCID++
	return id
}

// lookupID returns the ID of a component name without assigning one.
func (r *ArchetypeRegistry) lookupID(name string) (uint32, bool) {
	r.catalogMu.RLock()
	defer r.catalogMu.RUnlock()
	id, ok := r.catalog[name]
	return id, ok
}

// Key returns the canonical key of a set of component names, assigning IDs to new names.
func (r *ArchetypeRegistry) Key(names []string) string {
	ids := make([]uint32, 0, len(names))
	for _, name := range names {
		ids = append(ids, r.ComponentID(name))
	}
	return keyOf(ids)
}

// lookupKey is Key without assigning IDs. It returns false if a name has never been stored, in
// which case no archetype can have it.
func (r *ArchetypeRegistry) lookupKey(names []string) (string, bool) {
	ids := make([]uint32, 0, len(names))
	for _, name := range names {
		id, ok := r.lookupID(name)
		if !ok {
			return "", false
		}
		ids = append(ids, id)
	}
	return keyOf(ids), true
}

func keyOf(ids []uint32) string {
	slices.Sort(ids)
	ids = slices.Compact(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, "|")
}

// bitmapOf returns the component bitmap of names, assigning IDs to new names.
func (r *ArchetypeRegistry) bitmapOf(names []string) bitmap.Bitmap {
	var bm bitmap.Bitmap
	for _, name := range names {
		bm.Set(r.ComponentID(name))
	}
	return bm
}

// lookupBitmap is bitmapOf without assigning IDs. It returns false if a name has never been
// stored.
func (r *ArchetypeRegistry) lookupBitmap(names []string) (bitmap.Bitmap, bool) {
	var bm bitmap.Bitmap
	for _, name := range names {
		id, ok := r.lookupID(name)
		if !ok {
			return nil, false
		}
		bm.Set(id)
	}
	return bm, true
}

// Get returns the archetype for the given names. Lookups never assign component IDs.
func (r *ArchetypeRegistry) Get(names []string) (*Archetype, bool) {
	key, ok := r.lookupKey(names)
	if !ok {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	arch, ok := r.archetypes[key]
	return arch, ok
}

// Has returns true if an archetype exists for the given names.
func (r *ArchetypeRegistry) Has(names []string) bool {
	_, ok := r.Get(names)
	return ok
}

// Set stores arch under the given names, replacing any archetype stored there.
func (r *ArchetypeRegistry) Set(names []string, arch *Archetype) {
	assert.That(arch != nil, "archetype must not be nil")
	assert.That(arch.exact(r.bitmapOf(names)), "archetype signature doesn't match names")

	key := r.Key(names)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.archetypes[key] = arch
}

// Delete evicts the archetype for the given names.
func (r *ArchetypeRegistry) Delete(names []string) {
	key := r.Key(names)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.archetypes, key)
}

// GetOrCreate returns the archetype for the given names, creating and registering an empty one if
// none exists.
func (r *ArchetypeRegistry) GetOrCreate(names []string) *Archetype {
	key := r.Key(names)

	r.mu.Lock()
	defer r.mu.Unlock()
	if arch, ok := r.archetypes[key]; ok {
		return arch
	}

	unique := slices.Clone(names)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	arch := newArchetype(r.nextAID, unique, r.bitmapOf(unique))
	r.nextAID++
	r.archetypes[key] = arch
	return arch
}

// Len returns the number of registered archetypes.
func (r *ArchetypeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.archetypes)
}

// All returns the registered archetypes in creation order. The set of archetypes is captured when
// the sequence starts.
func (r *ArchetypeRegistry) All() iter.Seq[*Archetype] {
	return func(yield func(*Archetype) bool) {
		r.mu.RLock()
		archs := make([]*Archetype, 0, len(r.archetypes))
		for _, arch := range r.archetypes {
			archs = append(archs, arch)
		}
		r.mu.RUnlock()

		slices.SortFunc(archs, func(a, b *Archetype) int { return a.id - b.id })
		for _, arch := range archs {
			if !yield(arch) {
				return
			}
		}
	}
}
