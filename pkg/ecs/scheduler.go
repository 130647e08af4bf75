package ecs

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/argus-labs/ecsrt/pkg/telemetry"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// -------------------------------------------------------------------------------------------------
// Ordering
// -------------------------------------------------------------------------------------------------

// TopologicalSort orders systems so that every After and Before constraint holds. Before
// constraints are treated as After constraints on the referenced system. References to unknown
// systems are ignored. Without constraints the input order is kept. A cycle, including a system
// referencing itself, fails with ErrCircularDependency.
func TopologicalSort(systems []*System) ([]*System, error) {
	index := make(map[string]int, len(systems))
	for i, sys := range systems {
		if _, ok := index[sys.name]; !ok {
			index[sys.name] = i
		}
	}

	// deps[i] holds the systems that must run before system i.
	deps := make([][]int, len(systems))
	for i, sys := range systems {
		for _, name := range sys.after {
			if j, ok := index[name]; ok {
				deps[i] = append(deps[i], j)
			}
		}
		for _, name := range sys.before {
			if j, ok := index[name]; ok {
				deps[j] = append(deps[j], i)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make([]int, len(systems))
	stack := make([]string, 0, len(systems))
	sorted := make([]*System, 0, len(systems))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case visited:
			return nil
		case visiting:
			cycle := append(slices.Clone(stack), systems[i].name)
			return eris.Wrapf(ErrCircularDependency, "%s", strings.Join(cycle, " -> "))
		}

		state[i] = visiting
		stack = append(stack, systems[i].name)
		for _, dep := range deps[i] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = visited
		sorted = append(sorted, systems[i])
		return nil
	}

	for i := range systems {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

// unresolvedReferences returns the After and Before names that don't match any system.
func unresolvedReferences(systems []*System) []string {
	names := make(map[string]struct{}, len(systems))
	for _, sys := range systems {
		names[sys.name] = struct{}{}
	}

	var missing []string
	for _, sys := range systems {
		for _, ref := range slices.Concat(sys.after, sys.before) {
			if _, ok := names[ref]; !ok {
				missing = append(missing, sys.name+" -> "+ref)
			}
		}
	}
	return missing
}

// -------------------------------------------------------------------------------------------------
// Batching
// -------------------------------------------------------------------------------------------------

// batchEntry is a system with its access sets converted to bitmaps over interned access keys.
type batchEntry struct {
	sys    *System
	reads  bitmap.Bitmap
	writes bitmap.Bitmap
}

// Batch greedily partitions an ordered list of systems into batches that can run concurrently.
// A system joins the last batch if it conflicts with none of its members, otherwise it starts a
// new batch. Systems must have been derived.
func Batch(systems []*System) [][]*System {
	keys := make(map[string]uint32)
	intern := func(key string) uint32 {
		id, ok := keys[key]
		if !ok {
			id = uint32(len(keys)) //nolint:gosec // won't overflow
			keys[key] = id
		}
		return id
	}

	var batches [][]batchEntry
	for _, sys := range systems {
		entry := batchEntry{sys: sys}
		for _, key := range sys.Reads() {
			entry.reads.Set(intern(key))
		}
		for _, key := range sys.Writes() {
			entry.writes.Set(intern(key))
		}

		if n := len(batches); n > 0 && !conflictsWithBatch(entry, batches[n-1]) {
			batches[n-1] = append(batches[n-1], entry)
			continue
		}
		batches = append(batches, []batchEntry{entry})
	}

	out := make([][]*System, len(batches))
	for i, batch := range batches {
		out[i] = make([]*System, len(batch))
		for j, entry := range batch {
			out[i][j] = entry.sys
		}
	}
	return out
}

func conflictsWithBatch(entry batchEntry, batch []batchEntry) bool {
	return slices.ContainsFunc(batch, func(other batchEntry) bool {
		return conflicts(entry, other)
	})
}

// conflicts returns true if a and b must not run concurrently: either is exclusive, one writes
// what the other reads or writes, or one is ordered directly relative to the other.
func conflicts(a, b batchEntry) bool {
	if a.sys.Exclusive() || b.sys.Exclusive() {
		return true
	}
	if intersects(a.reads, b.writes) || intersects(a.writes, b.reads) || intersects(a.writes, b.writes) {
		return true
	}
	return ordered(a.sys, b.sys)
}

func intersects(a, b bitmap.Bitmap) bool {
	intersect := a.Clone(nil)
	intersect.And(b)
	return intersect.Count() > 0
}

func ordered(a, b *System) bool {
	return slices.Contains(a.after, b.name) || slices.Contains(a.before, b.name) ||
		slices.Contains(b.after, a.name) || slices.Contains(b.before, a.name)
}

// -------------------------------------------------------------------------------------------------
// Schedule
// -------------------------------------------------------------------------------------------------

// SystemObserver is called after every system run with its duration and result.
type SystemObserver func(system string, elapsed time.Duration, err error)

// Schedule is the precomputed execution plan of one phase: its systems in dependency order,
// partitioned into batches.
type Schedule struct {
	systems        []*System
	batches        [][]*System
	maxConcurrency int
	observer       SystemObserver
	logger         zerolog.Logger
}

// ScheduleOption configures a Schedule.
type ScheduleOption func(*Schedule)

// WithMaxConcurrency limits how many systems of one batch run at the same time. Zero or less means
// no limit.
func WithMaxConcurrency(n int) ScheduleOption {
	return func(s *Schedule) { s.maxConcurrency = n }
}

// WithSystemObserver sets a function called after every system run.
func WithSystemObserver(fn SystemObserver) ScheduleOption {
	return func(s *Schedule) { s.observer = fn }
}

// WithScheduleLogger sets the logger used by the schedule.
func WithScheduleLogger(logger zerolog.Logger) ScheduleOption {
	return func(s *Schedule) { s.logger = logger }
}

// NewSchedule sorts the systems topologically and batches them. Every system must have been
// derived, otherwise ErrUninitialized is returned.
func NewSchedule(systems []*System, opts ...ScheduleOption) (*Schedule, error) {
	s := &Schedule{logger: telemetry.GetGlobalLogger("ecs.scheduler")}
	for _, opt := range opts {
		opt(s)
	}

	for _, sys := range systems {
		if !sys.Derived() {
			return nil, eris.Wrapf(ErrUninitialized, "access of system %s was not derived", sys.name)
		}
	}
	for _, ref := range unresolvedReferences(systems) {
		s.logger.Debug().Str("reference", ref).Msg("ignoring ordering constraint on unknown system")
	}

	sorted, err := TopologicalSort(systems)
	if err != nil {
		return nil, err
	}
	s.systems = sorted
	s.batches = Batch(sorted)
	return s, nil
}

// Systems returns the systems in execution order.
func (s *Schedule) Systems() []*System {
	return slices.Clone(s.systems)
}

// Batches returns the system names of every batch, in execution order.
func (s *Schedule) Batches() [][]string {
	out := make([][]string, len(s.batches))
	for i, batch := range s.batches {
		for _, sys := range batch {
			out[i] = append(out[i], sys.name)
		}
	}
	return out
}

// Run executes the batches in order. Systems of one batch run concurrently, and the next batch
// starts only after every system of the current one has returned. A failing system doesn't stop
// its siblings, but once a batch has failed no further batch runs and the error is returned.
func (s *Schedule) Run(ctx context.Context, w *World) error {
	for i, batch := range s.batches {
		g := new(errgroup.Group)
		if s.maxConcurrency > 0 {
			g.SetLimit(s.maxConcurrency)
		}

		for _, sys := range batch {
			g.Go(func() error {
				start := time.Now()
				err := sys.Execute(ctx, w)
				if s.observer != nil {
					s.observer(sys.name, time.Since(start), err)
				}
				if err != nil {
					return eris.Wrapf(err, "system %s failed", sys.name)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			s.logger.Error().Err(err).Int("batch", i).Msg("batch failed, skipping remaining batches")
			return eris.Wrap(err, "system returned an error")
		}
	}
	return nil
}
