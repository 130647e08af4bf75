package ecs

import (
	"github.com/argus-labs/ecsrt/pkg/ecs/internal/codec"
	"github.com/rotisserie/eris"
)

// Row is one entity matched by a query. Its values are the query's projected components, indexed
// in declaration order. Read slots hand out copies and refuse writes. Write slots hand out the
// stored value and write through to storage.
type Row struct {
	Entity EntityID

	query *Query
	arch  *Archetype
	row   int
}

// Len returns the number of projected components.
func (r Row) Len() int {
	if r.query == nil {
		return 0
	}
	return len(r.query.projection)
}

// Name returns the component name of slot i.
func (r Row) Name(i int) string {
	if i < 0 || i >= r.Len() {
		return ""
	}
	return r.query.projection[i]
}

// Index returns the slot of a projected component name.
func (r Row) Index(name string) (int, bool) {
	for i := range r.Len() {
		if r.query.projection[i] == name {
			return i, true
		}
	}
	return 0, false
}

// Get returns the value in slot i. Read slots return a deep copy, write slots the stored value.
func (r Row) Get(i int) (any, error) {
	name, mode, err := r.slot(i)
	if err != nil {
		return nil, err
	}

	value, err := r.arch.ComponentAt(name, r.row)
	if err != nil {
		return nil, eris.Wrapf(err, "entity %d", r.Entity)
	}
	if mode == AccessWrite {
		return value, nil
	}

	cloned, err := codec.Clone(value)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to copy component %s", name)
	}
	return cloned, nil
}

// Set replaces the value in slot i. It fails with ErrWriteRejected on read slots, leaving storage
// unchanged.
func (r Row) Set(i int, value any) error {
	name, mode, err := r.slot(i)
	if err != nil {
		return err
	}
	if mode != AccessWrite {
		return eris.Wrapf(ErrWriteRejected, "component %s of entity %d", name, r.Entity)
	}
	if r.row >= r.arch.Len() {
		return eris.Wrapf(ErrOutOfRange, "row %d, archetype has %d rows", r.row, r.arch.Len())
	}
	r.arch.setComponentAt(name, r.row, value)
	return nil
}

// Values returns every projected value, in slot order, following the rules of Get.
func (r Row) Values() ([]any, error) {
	out := make([]any, r.Len())
	for i := range out {
		value, err := r.Get(i)
		if err != nil {
			return nil, err
		}
		out[i] = value
	}
	return out, nil
}

func (r Row) slot(i int) (string, AccessMode, error) {
	if r.query == nil || r.arch == nil {
		return "", 0, eris.Wrap(ErrUninitialized, "row is not bound to a query")
	}
	if i < 0 || i >= len(r.query.projection) {
		return "", 0, eris.Wrapf(ErrOutOfRange, "slot %d, row has %d slots", i, len(r.query.projection))
	}
	name := r.query.projection[i]
	return name, r.query.modes[name], nil
}

// Get returns the value in slot i as T. A stored *T is dereferenced.
func Get[T any](r Row, i int) (T, error) {
	var zero T
	value, err := r.Get(i)
	if err != nil {
		return zero, err
	}
	switch v := value.(type) {
	case T:
		return v, nil
	case *T:
		if v == nil {
			return zero, eris.Errorf("component %s is a nil pointer", r.Name(i))
		}
		return *v, nil
	default:
		return zero, eris.Errorf("component %s is %T, not %T", r.Name(i), value, zero)
	}
}

// Update applies fn to the component in slot i and stores the result. Components stored as *T
// are mutated in place, components stored as T are copied, mutated and written back. It fails
// with ErrWriteRejected on read slots.
func Update[T any](r Row, i int, fn func(*T)) error {
	name, mode, err := r.slot(i)
	if err != nil {
		return err
	}
	if mode != AccessWrite {
		return eris.Wrapf(ErrWriteRejected, "component %s of entity %d", name, r.Entity)
	}

	value, err := r.arch.ComponentAt(name, r.row)
	if err != nil {
		return eris.Wrapf(err, "entity %d", r.Entity)
	}

	switch v := value.(type) {
	case *T:
		if v == nil {
			return eris.Errorf("component %s is a nil pointer", name)
		}
		fn(v)
		return nil
	case T:
		fn(&v)
		r.arch.setComponentAt(name, r.row, v)
		return nil
	default:
		var zero T
		return eris.Errorf("component %s is %T, not %T", name, value, zero)
	}
}
