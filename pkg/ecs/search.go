package ecs

import (
	"github.com/argus-labs/ecsrt/pkg/ecs/internal/codec"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
)

// SearchParam contains parameters for a search.
// The where clause uses expr lang, see https://expr-lang.org/docs/getting-started. Every component
// of the entity is available under its name and the entity ID under `_id`.
type SearchParam struct {
	Find   []string    // Component names to search for. Must be empty when Match is MatchAll.
	Match  SearchMatch // How Find is matched against archetype signatures.
	Where  string      // Optional expression filtering the results.
	Limit  uint32      // Maximum number of results (0 = unlimited)
	Offset uint32      // Number of matching results to skip
}

// SearchMatch is the type of match to use for the search.
type SearchMatch string

const (
	// MatchExact matches entities that have exactly the specified components.
	MatchExact SearchMatch = "exact"
	// MatchContains matches entities that have the specified components and possibly others.
	MatchContains SearchMatch = "contains"
	// MatchAll matches every entity that has at least one component.
	MatchAll SearchMatch = "all"
)

// Search returns the entities matching the search parameters as maps from component name to a copy
// of the component value. Results follow archetype creation order, then storage-row order. Finding a
// component name that no entity of the world has ever had fails with ErrNotFound.
func (w *World) Search(params SearchParam) ([]map[string]any, error) {
	filter, err := params.validateAndGetFilter()
	if err != nil {
		return nil, eris.Wrap(err, "invalid search params")
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	archs, err := w.findMatchingArchetypes(params.Find, params.Match)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get archetypes from components")
	}

	results := make([]map[string]any, 0)
	skipped := uint32(0)
	for _, arch := range archs {
		for eid, values := range arch.Query(arch.names...) {
			result, err := buildEntityResult(eid, arch.names, values)
			if err != nil {
				return nil, err
			}

			if filter != nil {
				matches, err := matchesFilter(filter, result)
				if err != nil {
					return nil, err
				}
				if !matches {
					continue
				}
			}

			if skipped < params.Offset {
				skipped++
				continue
			}

			results = append(results, result)
			if params.Limit != 0 && uint32(len(results)) >= params.Limit { //nolint:gosec // bounded by limit
				return results, nil
			}
		}
	}
	return results, nil
}

// validateAndGetFilter validates the parameters and compiles the where clause. The returned program
// is nil when there is no where clause.
func (s *SearchParam) validateAndGetFilter() (*vm.Program, error) {
	switch s.Match {
	case MatchAll:
		if len(s.Find) > 0 {
			return nil, eris.New("find must be empty when match is 'all'")
		}
	case MatchExact, MatchContains:
		if len(s.Find) == 0 {
			return nil, eris.New("find must not be empty when match is not 'all'")
		}
	default:
		return nil, eris.Errorf("invalid `match` value: must be one of '%s', '%s' or '%s'",
			MatchExact, MatchContains, MatchAll)
	}

	if s.Where == "" {
		return nil, nil //nolint:nilnil // no filter
	}

	filter, err := expr.Compile(s.Where, expr.AsBool())
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse where clause")
	}
	return filter, nil
}

// findMatchingArchetypes returns the archetypes matching the component names and match type.
func (w *World) findMatchingArchetypes(names []string, match SearchMatch) ([]*Archetype, error) {
	var components bitmap.Bitmap
	for _, name := range names {
		id, ok := w.archetypes.lookupID(name)
		if !ok {
			return nil, eris.Wrapf(ErrNotFound, "component %s", name)
		}
		components.Set(id)
	}

	var archs []*Archetype
	for arch := range w.archetypes.All() {
		switch match {
		case MatchExact:
			if arch.exact(components) {
				archs = append(archs, arch)
			}
		case MatchContains:
			if arch.contains(components) {
				archs = append(archs, arch)
			}
		case MatchAll:
			archs = append(archs, arch)
		}
	}
	return archs, nil
}

// buildEntityResult creates a result map from an entity and copies of its components.
func buildEntityResult(eid EntityID, names []string, values []any) (map[string]any, error) {
	result := make(map[string]any, len(names)+1)
	// expr compares numbers of the same kind, so the ID is stored as a plain uint32.
	result["_id"] = uint32(eid)

	for i, name := range names {
		cloned, err := codec.Clone(values[i])
		if err != nil {
			return nil, eris.Wrapf(err, "failed to copy component %s of entity %d", name, eid)
		}
		result[name] = cloned
	}
	return result, nil
}

// matchesFilter runs the compiled where clause with the entity as its environment.
func matchesFilter(filter *vm.Program, result map[string]any) (bool, error) {
	output, err := expr.Run(filter, result)
	if err != nil {
		return false, eris.Wrap(err, "failed to run filter expression")
	}

	// The program is compiled without an environment, so a clause over struct fields can't be type
	// checked until it runs.
	matched, ok := output.(bool)
	if !ok {
		return false, eris.New("invalid where clause")
	}
	return matched, nil
}
