package ecs

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
)

// SystemConfig describes a system. P is the parameter value the declaration function builds and the
// run function consumes, typically a struct of queries and resources.
type SystemConfig[P any] struct {
	// Name identifies the system within its phase and is used by After and Before.
	Name string
	// Declare builds the system's parameters from the world. Optional: without it Run receives
	// the zero value of P and the system has no declared access.
	Declare func(a Accessor) (P, error)
	// Run contains the system logic.
	Run func(ctx context.Context, params P) error
	// After lists systems that must finish before this one starts.
	After []string
	// Before lists systems that must not start before this one finishes.
	Before []string
	// Exclusive makes the system run alone in its batch.
	Exclusive bool
}

// System is a registered unit of per-phase logic. Its read and write sets are derived once, by
// running the declaration function against a tracking accessor, and never recomputed.
type System struct {
	name      string
	after     []string
	before    []string
	exclusive bool
	declare   func(Accessor) (any, error)
	run       func(context.Context, any) error

	access *accessSet // nil until derived
}

// NewSystem creates a system from its configuration.
func NewSystem[P any](cfg SystemConfig[P]) *System {
	s := &System{
		name:      cfg.Name,
		after:     slices.Clone(cfg.After),
		before:    slices.Clone(cfg.Before),
		exclusive: cfg.Exclusive,
	}

	if cfg.Declare != nil {
		declare := cfg.Declare
		s.declare = func(a Accessor) (any, error) { return declare(a) }
	}
	if cfg.Run != nil {
		run := cfg.Run
		s.run = func(ctx context.Context, params any) error {
			p, _ := params.(P) // params is nil when there's no declaration function
			return run(ctx, p)
		}
	}
	return s
}

// Name returns the system name.
func (s *System) Name() string {
	return s.name
}

// After returns the systems this system runs after.
func (s *System) After() []string {
	return slices.Clone(s.after)
}

// Before returns the systems this system runs before.
func (s *System) Before() []string {
	return slices.Clone(s.before)
}

// Exclusive returns true if the system was declared exclusive or uses structural commands.
func (s *System) Exclusive() bool {
	return s.exclusive || (s.access != nil && s.access.exclusive)
}

// Derived returns true once the access sets have been derived.
func (s *System) Derived() bool {
	return s.access != nil
}

// Reads returns the sorted access keys the system reads.
func (s *System) Reads() []string {
	if s.access == nil {
		return nil
	}
	return s.access.sortedReads()
}

// Writes returns the sorted access keys the system writes.
func (s *System) Writes() []string {
	if s.access == nil {
		return nil
	}
	return s.access.sortedWrites()
}

// Derive runs the declaration function once against a tracking accessor and stores the resulting
// access sets. Calling Derive on a derived system does nothing.
func (s *System) Derive(w *World) error {
	if s.access != nil {
		return nil
	}
	if s.name == "" {
		return eris.New("system name must not be empty")
	}
	if s.run == nil {
		return eris.Errorf("system %s has no run function", s.name)
	}

	access := newAccessSet()
	if s.declare != nil {
		tracker := &trackingAccessor{world: w, access: access}
		if _, err := s.declare(tracker); err != nil {
			return eris.Wrapf(err, "failed to derive access of system %s", s.name)
		}
		for _, q := range tracker.queries {
			q.Lock()
		}
	}
	s.access = access
	return nil
}

// Execute binds the system's parameters against the world, locks every query the declaration
// created and runs the system.
func (s *System) Execute(ctx context.Context, w *World) error {
	if s.run == nil {
		return eris.Errorf("system %s has no run function", s.name)
	}

	var params any
	if s.declare != nil {
		binder := &bindingAccessor{world: w}
		p, err := s.declare(binder)
		if err != nil {
			return eris.Wrapf(err, "failed to bind parameters of system %s", s.name)
		}
		for _, q := range binder.queries {
			q.Lock()
		}
		params = p
	}
	return s.run(ctx, params)
}
