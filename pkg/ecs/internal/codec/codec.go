// Package codec makes deep copies of component and resource values.
//
// Copies are made by round-tripping the value through JSON. Types the round trip can't reproduce
// exactly are rejected with ErrUnsupported instead of being copied lossily: structs with
// unexported or JSON-excluded fields, interface-typed fields and elements (their dynamic types
// would be lost, e.g. an int inside a map[string]any decodes as float64), channels and functions.
// Types implementing both json.Marshaler and json.Unmarshaler are trusted to round-trip.
package codec

import (
	"reflect"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// ErrUnsupported is returned for values whose type can't be copied without losing data.
var ErrUnsupported = eris.New("type can't be deep-copied")

// Clone returns a deep copy of v with the same dynamic type.
func Clone(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	t := reflect.TypeOf(v)
	if isImmutable(t.Kind()) {
		return v, nil
	}
	if err := checkType(t); err != nil {
		return nil, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to encode %s", t)
	}

	ptr := reflect.New(t)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, eris.Wrapf(err, "failed to decode %s", t)
	}
	return ptr.Elem().Interface(), nil
}

// CloneAs is the typed form of Clone.
func CloneAs[T any](v T) (T, error) {
	var zero T
	cloned, err := Clone(v)
	if err != nil {
		return zero, err
	}
	if cloned == nil {
		return zero, nil
	}
	out, ok := cloned.(T)
	if !ok {
		return zero, eris.Errorf("clone of %T produced %T", v, cloned)
	}
	return out, nil
}

// isImmutable reports whether values of kind k can be shared without copying.
func isImmutable(k reflect.Kind) bool {
	switch k { //nolint:exhaustive // everything else needs a copy
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	default:
		return false
	}
}

// -------------------------------------------------------------------------------------------------
// Type checks
// -------------------------------------------------------------------------------------------------

var checked sync.Map // reflect.Type -> error, nil for supported types

var (
	marshalerType   = reflect.TypeFor[json.Marshaler]()
	unmarshalerType = reflect.TypeFor[json.Unmarshaler]()
)

// checkType returns ErrUnsupported if values of type t don't survive a JSON round trip unchanged.
// Results are cached per type.
func checkType(t reflect.Type) error {
	if cached, ok := checked.Load(t); ok {
		err, _ := cached.(error)
		return err
	}

	var err error
	if reason := unsupported(t, make(map[reflect.Type]bool)); reason != "" {
		err = eris.Wrapf(ErrUnsupported, "%s: %s", t, reason)
	}
	checked.Store(t, err)
	return err
}

// unsupported walks t and returns why it can't round-trip, or "" if it can.
func unsupported(t reflect.Type, seen map[reflect.Type]bool) string {
	if seen[t] {
		return ""
	}
	seen[t] = true

	if t.Implements(marshalerType) && reflect.PointerTo(t).Implements(unmarshalerType) {
		return ""
	}

	switch t.Kind() { //nolint:exhaustive // scalars are always supported
	case reflect.Interface:
		return "interface-typed value " + t.String() + " loses its dynamic type"
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return t.Kind().String() + " can't be encoded"
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return unsupported(t.Elem(), seen)
	case reflect.Map:
		if reason := unsupported(t.Key(), seen); reason != "" {
			return reason
		}
		return unsupported(t.Elem(), seen)
	case reflect.Struct:
		for i := range t.NumField() {
			field := t.Field(i)
			if field.Anonymous && field.Type.Kind() == reflect.Struct {
				// Promoted fields are encoded even when the embedded type is unexported.
				if reason := unsupported(field.Type, seen); reason != "" {
					return reason
				}
				continue
			}
			if !field.IsExported() {
				return "unexported field " + field.Name
			}
			if field.Tag.Get("json") == "-" {
				return "field " + field.Name + " is excluded from JSON"
			}
			if reason := unsupported(field.Type, seen); reason != "" {
				return "field " + field.Name + ": " + reason
			}
		}
	}
	return ""
}
