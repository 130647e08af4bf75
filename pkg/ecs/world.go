package ecs

import (
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/argus-labs/ecsrt/pkg/ecs/internal/codec"
	"github.com/argus-labs/ecsrt/pkg/telemetry"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// EntityID is a unique identifier for an entity.
type EntityID uint32

// MaxEntityID is the maximum entity ID that can be created.
const MaxEntityID = math.MaxUint32 - 1

// World owns entity allocation, the archetype storage and the resources.
//
// Structural changes (creating entities, adding or removing components) take the world lock.
// Reading and writing component values inside an archetype does not: systems running in the same
// batch are kept apart by their declared access sets.
type World struct {
	mu         sync.RWMutex
	nextID     EntityID
	entityArch map[EntityID]*Archetype // nil value means the entity exists without components
	archetypes *ArchetypeRegistry

	resourcesMu sync.RWMutex
	resources   map[string]any

	logger zerolog.Logger
}

// WorldOption configures a World.
type WorldOption func(*World)

// WithLogger sets the logger used by the world.
func WithLogger(logger zerolog.Logger) WorldOption {
	return func(w *World) { w.logger = logger }
}

// NewWorld creates an empty World.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		entityArch: make(map[EntityID]*Archetype),
		archetypes: NewArchetypeRegistry(),
		resources:  make(map[string]any),
		logger:     telemetry.GetGlobalLogger("ecs.world"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Archetypes returns the world's archetype registry.
func (w *World) Archetypes() *ArchetypeRegistry {
	return w.archetypes
}

// Logger returns the world's logger.
func (w *World) Logger() *zerolog.Logger {
	return &w.logger
}

// -------------------------------------------------------------------------------------------------
// Entities
// -------------------------------------------------------------------------------------------------

// CreateEntity allocates a new entity without components. IDs are strictly increasing.
func (w *World) CreateEntity() EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.createEntityLocked()
}

func (w *World) createEntityLocked() EntityID {
	if w.nextID > MaxEntityID {
		panic("max number of entities exceeded")
	}
	eid := w.nextID
	w.nextID++
	w.entityArch[eid] = nil
	return eid
}

// HasEntity returns true if the entity was created by this world.
func (w *World) HasEntity(eid EntityID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.entityArch[eid]
	return ok
}

// EntityCount returns the number of entities, including entities without components.
func (w *World) EntityCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entityArch)
}

// Archetype returns the archetype the entity currently lives in. It returns nil for entities
// without components and ErrNotFound for unknown entities.
func (w *World) Archetype(eid EntityID) (*Archetype, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	arch, ok := w.entityArch[eid]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "entity %d", eid)
	}
	return arch, nil
}

// -------------------------------------------------------------------------------------------------
// Components
// -------------------------------------------------------------------------------------------------

// AddComponent sets a component on an entity. If the entity already has the component its value is
// overwritten in place, otherwise the entity migrates to the archetype that also has name.
func (w *World) AddComponent(eid EntityID, name string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	old, ok := w.entityArch[eid]
	if !ok {
		return eris.Wrapf(ErrNotFound, "entity %d", eid)
	}

	values := map[string]any{}
	if old != nil {
		row, exists := old.Row(eid)
		if !exists {
			return eris.Errorf("entity %d is missing from its archetype %d", eid, old.id)
		}
		if old.Has(name) {
			old.setComponentAt(name, row, value)
			return nil
		}
		// Copy the values out before the row is removed, removal shifts the rows after it.
		values = old.values(row, "")
	}
	values[name] = value

	return w.migrateLocked(eid, old, values)
}

// RemoveComponent removes a component from an entity. It is a no-op if the entity doesn't have it.
// Removing the last component leaves the entity without an archetype.
func (w *World) RemoveComponent(eid EntityID, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	old, ok := w.entityArch[eid]
	if !ok {
		return eris.Wrapf(ErrNotFound, "entity %d", eid)
	}
	if old == nil || !old.Has(name) {
		return nil
	}

	row, exists := old.Row(eid)
	if !exists {
		return eris.Errorf("entity %d is missing from its archetype %d", eid, old.id)
	}
	return w.migrateLocked(eid, old, old.values(row, name))
}

// SetComponents replaces all components of an entity with the given ones.
func (w *World) SetComponents(eid EntityID, components map[string]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	old, ok := w.entityArch[eid]
	if !ok {
		return eris.Wrapf(ErrNotFound, "entity %d", eid)
	}
	return w.migrateLocked(eid, old, maps.Clone(components))
}

// migrateLocked moves the entity out of its old archetype (if any) and into the archetype matching
// exactly the keys of values. The old archetype is evicted from the registry once it is empty.
func (w *World) migrateLocked(eid EntityID, old *Archetype, values map[string]any) error {
	if old != nil {
		if err := old.RemoveEntity(eid); err != nil {
			return eris.Wrap(err, "failed to remove entity from archetype")
		}
		if old.Len() == 0 {
			w.archetypes.Delete(old.names)
			w.logger.Trace().Int("archetype", old.id).Strs("signature", old.names).Msg("evicted archetype")
		}
	}

	if len(values) == 0 {
		w.entityArch[eid] = nil
		return nil
	}

	arch := w.archetypes.GetOrCreate(slices.Collect(maps.Keys(values)))
	if err := arch.AddEntity(eid, values); err != nil {
		return eris.Wrap(err, "failed to add entity to archetype")
	}
	w.entityArch[eid] = arch
	return nil
}

// GetComponent returns the current value of a component. It returns false if the entity doesn't
// exist, has no components or lacks name.
func (w *World) GetComponent(eid EntityID, name string) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	arch := w.entityArch[eid]
	if arch == nil {
		return nil, false
	}
	row, ok := arch.Row(eid)
	if !ok {
		return nil, false
	}
	value, err := arch.ComponentAt(name, row)
	if err != nil {
		return nil, false
	}
	return value, true
}

// Components returns a copy of the entity's component map. The values are shared with storage.
func (w *World) Components(eid EntityID) (map[string]any, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	arch, ok := w.entityArch[eid]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "entity %d", eid)
	}
	if arch == nil {
		return map[string]any{}, nil
	}
	row, _ := arch.Row(eid)
	return arch.values(row, ""), nil
}

// -------------------------------------------------------------------------------------------------
// Resources
// -------------------------------------------------------------------------------------------------

// AddResource stores a world-global value under name, replacing any previous value. Resources that
// systems mutate through MutableResource should be stored as pointers.
func (w *World) AddResource(name string, value any) {
	w.resourcesMu.Lock()
	defer w.resourcesMu.Unlock()
	w.resources[name] = value
}

// Resource returns a deep copy of a resource. Changes to the copy are not visible to the world.
func (w *World) Resource(name string) (any, error) {
	w.resourcesMu.RLock()
	value, ok := w.resources[name]
	w.resourcesMu.RUnlock()
	if !ok {
		return nil, eris.Wrapf(ErrUninitialized, "resource %s does not exist", name)
	}

	cloned, err := codec.Clone(value)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to copy resource %s", name)
	}
	return cloned, nil
}

// MutableResource returns the stored resource itself.
func (w *World) MutableResource(name string) (any, error) {
	w.resourcesMu.RLock()
	defer w.resourcesMu.RUnlock()
	value, ok := w.resources[name]
	if !ok {
		return nil, eris.Wrapf(ErrUninitialized, "resource %s does not exist", name)
	}
	return value, nil
}

// -------------------------------------------------------------------------------------------------
// Commands
// -------------------------------------------------------------------------------------------------

// Commands groups structural operations that can't be expressed as component reads and writes.
type Commands struct {
	world *World
}

// Commands returns the world's command interface.
func (w *World) Commands() *Commands {
	return &Commands{world: w}
}

// Spawn creates an entity with the given components and returns its ID.
func (c *Commands) Spawn(components map[string]any) (EntityID, error) {
	w := c.world
	w.mu.Lock()
	defer w.mu.Unlock()

	eid := w.createEntityLocked()
	if err := w.migrateLocked(eid, nil, maps.Clone(components)); err != nil {
		return eid, eris.Wrapf(err, "failed to spawn entity %d", eid)
	}
	return eid, nil
}
