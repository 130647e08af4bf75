package ecs

import (
	"maps"
	"slices"

	"github.com/rotisserie/eris"
)

// Accessor is the view of the world handed to a system's declaration function. The world itself
// is an Accessor. During registration a tracking Accessor is passed instead, which records every
// component and resource the declaration touches to derive the system's access sets.
type Accessor interface {
	// Query creates a query with the given declarations. Declarations added to the returned query
	// later are tracked as well.
	Query(decls ...Declaration) (*Query, error)
	// Resource returns a copy of a resource. Tracked as a read.
	Resource(name string) (any, error)
	// MutableResource returns the stored resource. Tracked as a write.
	MutableResource(name string) (any, error)
	// Commands returns the structural command interface. Systems that use it run alone.
	Commands() *Commands
}

var _ Accessor = (*World)(nil)

const (
	componentKeyPrefix = "component#"
	resourceKeyPrefix  = "resource#"
)

// ComponentKey returns the access-set key of a component.
func ComponentKey(name string) string {
	return componentKeyPrefix + name
}

// ResourceKey returns the access-set key of a resource.
func ResourceKey(name string) string {
	return resourceKeyPrefix + name
}

// accessSet is the derived data access of a system. A key is either read or written, never both:
// a write upgrades a previous read and a read after a write is ignored.
type accessSet struct {
	reads     map[string]struct{}
	writes    map[string]struct{}
	exclusive bool
}

func newAccessSet() *accessSet {
	return &accessSet{
		reads:  make(map[string]struct{}),
		writes: make(map[string]struct{}),
	}
}

func (s *accessSet) read(key string) {
	if _, ok := s.writes[key]; ok {
		return
	}
	s.reads[key] = struct{}{}
}

func (s *accessSet) write(key string) {
	delete(s.reads, key)
	s.writes[key] = struct{}{}
}

func (s *accessSet) recordComponent(name string, mode AccessMode) {
	switch mode {
	case AccessRead:
		s.read(ComponentKey(name))
	case AccessWrite:
		s.write(ComponentKey(name))
	case AccessWith:
		// Filter-only components are never read or written.
	}
}

func (s *accessSet) sortedReads() []string {
	return slices.Sorted(maps.Keys(s.reads))
}

func (s *accessSet) sortedWrites() []string {
	return slices.Sorted(maps.Keys(s.writes))
}

// trackingAccessor records the access of a declaration function while forwarding every call to the
// world, so the declaration runs its normal logic.
type trackingAccessor struct {
	world   *World
	access  *accessSet
	queries []*Query
}

var _ Accessor = (*trackingAccessor)(nil)

func (t *trackingAccessor) Query(decls ...Declaration) (*Query, error) {
	q, err := buildQuery(t.world, t.access, decls)
	if err != nil {
		return nil, err
	}
	t.queries = append(t.queries, q)
	return q, nil
}

func (t *trackingAccessor) Resource(name string) (any, error) {
	t.access.read(ResourceKey(name))
	return t.world.Resource(name)
}

func (t *trackingAccessor) MutableResource(name string) (any, error) {
	t.access.write(ResourceKey(name))
	return t.world.MutableResource(name)
}

func (t *trackingAccessor) Commands() *Commands {
	t.access.exclusive = true
	return t.world.Commands()
}

// bindingAccessor forwards to the world and remembers the queries it created so they can be locked
// once the declaration function returns.
type bindingAccessor struct {
	world   *World
	queries []*Query
}

var _ Accessor = (*bindingAccessor)(nil)

func (b *bindingAccessor) Query(decls ...Declaration) (*Query, error) {
	q, err := b.world.Query(decls...)
	if err != nil {
		return nil, err
	}
	b.queries = append(b.queries, q)
	return q, nil
}

func (b *bindingAccessor) Resource(name string) (any, error) {
	return b.world.Resource(name)
}

func (b *bindingAccessor) MutableResource(name string) (any, error) {
	return b.world.MutableResource(name)
}

func (b *bindingAccessor) Commands() *Commands {
	return b.world.Commands()
}

// -------------------------------------------------------------------------------------------------
// Typed resource helpers
// -------------------------------------------------------------------------------------------------

// GetResource returns a copy of a resource as T. A stored *T is dereferenced.
func GetResource[T any](a Accessor, name string) (T, error) {
	var zero T
	value, err := a.Resource(name)
	if err != nil {
		return zero, err
	}
	switch v := value.(type) {
	case T:
		return v, nil
	case *T:
		if v == nil {
			return zero, eris.Errorf("resource %s is a nil pointer", name)
		}
		return *v, nil
	default:
		return zero, eris.Errorf("resource %s is %T, not %T", name, value, zero)
	}
}

// GetMutableResource returns the stored resource. The resource must have been added as a *T.
func GetMutableResource[T any](a Accessor, name string) (*T, error) {
	value, err := a.MutableResource(name)
	if err != nil {
		return nil, err
	}
	v, ok := value.(*T)
	if !ok {
		var zero T
		return nil, eris.Errorf("resource %s is %T, not *%T", name, value, zero)
	}
	return v, nil
}
