// Package engine drives an ecs.World through its phases. Systems are registered per phase, their
// access is derived and their order resolved once in Init, and the main loop runs FixedUpdate on a
// fixed timestep followed by Update and Render once per frame.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/argus-labs/ecsrt/pkg/ecs"
	"github.com/argus-labs/ecsrt/pkg/statsd"
	"github.com/argus-labs/ecsrt/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Engine owns a world and the systems of every phase.
type Engine struct {
	id      uuid.UUID
	world   *ecs.World
	options Options
	logger  zerolog.Logger
	tags    []string // statsd tags of this engine, sent with every metric

	mu        sync.Mutex
	systems   [phaseCount][]*ecs.System
	schedules [phaseCount]*ecs.Schedule
	initDone  bool
	running   bool
	stop      chan struct{}

	accumulator time.Duration // Simulated time not yet consumed by FixedUpdate
}

// New creates an engine. Options are read from the environment first and then overridden by the
// non-zero fields of opts.
func New(opts Options) (*Engine, error) {
	cfg, err := loadEngineConfig()
	if err != nil {
		return nil, eris.Wrap(err, "failed to load engine config")
	}

	options := newDefaultOptions()
	cfg.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid engine options")
	}

	id := uuid.New()

	var logger zerolog.Logger
	if options.Logger != nil {
		logger = *options.Logger
	} else {
		logger = telemetry.GetGlobalLogger("engine")
	}
	logger = logger.With().Str("engine", id.String()).Logger()

	if options.StatsdAddress != "" {
		if err := statsd.Init(options.StatsdAddress); err != nil {
			return nil, eris.Wrap(err, "failed to init statsd")
		}
	}

	world := options.World
	if world == nil {
		world = ecs.NewWorld(ecs.WithLogger(logger.With().Str("component", "world").Logger()))
	}

	return &Engine{
		id:      id,
		world:   world,
		options: options,
		logger:  logger,
		tags:    append([]string{"engine:" + id.String()}, options.StatsdTags...),
	}, nil
}

// ID returns the unique ID of this engine instance.
func (e *Engine) ID() uuid.UUID {
	return e.id
}

// World returns the world driven by the engine.
func (e *Engine) World() *ecs.World {
	return e.world
}

// CreateEntity creates an entity in the engine's world.
func (e *Engine) CreateEntity() ecs.EntityID {
	return e.world.CreateEntity()
}

// AddResource adds a resource to the engine's world.
func (e *Engine) AddResource(name string, value any) *Engine {
	e.world.AddResource(name, value)
	return e
}

// -------------------------------------------------------------------------------------------------
// Systems
// -------------------------------------------------------------------------------------------------

// RegisterSystems adds systems to a phase. A system that is already registered in the phase, or
// whose name is taken there, is skipped with a warning. Systems can't be registered after Init.
func (e *Engine) RegisterSystems(phase Phase, systems ...*ecs.System) error {
	if !phase.valid() {
		return eris.Errorf("invalid phase %d", phase)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initDone {
		return eris.New("cannot register systems after the engine is initialized")
	}

	names := make([]string, 0, len(systems))
	for _, sys := range systems {
		names = append(names, sys.Name())
	}
	e.logger.Debug().Stringer("phase", phase).Strs("systems", names).Msg("registering systems")

	for _, sys := range systems {
		if e.findLocked(phase, sys.Name()) != nil {
			e.logger.Warn().Stringer("phase", phase).Str("system", sys.Name()).Msg("system already registered")
			continue
		}
		e.systems[phase] = append(e.systems[phase], sys)
	}
	return nil
}

func (e *Engine) findLocked(phase Phase, name string) *ecs.System {
	for _, sys := range e.systems[phase] {
		if sys.Name() == name {
			return sys
		}
	}
	return nil
}

// Systems returns the systems of a phase in registration order.
func (e *Engine) Systems(phase Phase) []*ecs.System {
	if !phase.valid() {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*ecs.System, len(e.systems[phase]))
	copy(out, e.systems[phase])
	return out
}

// System returns the first system with the given name, searching the phases in order.
func (e *Engine) System(name string) (*ecs.System, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for phase := range Phase(phaseCount) {
		if sys := e.findLocked(phase, name); sys != nil {
			return sys, true
		}
	}
	return nil, false
}

// -------------------------------------------------------------------------------------------------
// Lifecycle
// -------------------------------------------------------------------------------------------------

// Init derives the access of every system and builds the schedule of every phase. Configuration
// errors such as circular dependencies are returned here, before any system runs. Calling Init
// again does nothing.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initDone {
		return nil
	}

	for phase := range Phase(phaseCount) {
		for _, sys := range e.systems[phase] {
			if err := sys.Derive(e.world); err != nil {
				return eris.Wrapf(err, "failed to initialize %s systems", phase)
			}
			e.logger.Debug().
				Stringer("phase", phase).
				Str("system", sys.Name()).
				Strs("reads", sys.Reads()).
				Strs("writes", sys.Writes()).
				Bool("exclusive", sys.Exclusive()).
				Msg("derived system access")
		}
	}

	for phase := range Phase(phaseCount) {
		schedule, err := ecs.NewSchedule(e.systems[phase],
			ecs.WithMaxConcurrency(e.options.MaxConcurrency),
			ecs.WithScheduleLogger(e.logger.With().Stringer("phase", phase).Logger()),
			ecs.WithSystemObserver(e.observeSystem(phase)),
		)
		if err != nil {
			return eris.Wrapf(err, "failed to schedule %s systems", phase)
		}
		e.schedules[phase] = schedule
		e.logger.Debug().Stringer("phase", phase).Interface("batches", schedule.Batches()).Msg("built schedule")
	}

	e.initDone = true
	return nil
}

func (e *Engine) observeSystem(phase Phase) ecs.SystemObserver {
	tags := append([]string{"phase:" + phase.String()}, e.tags...)
	return func(system string, elapsed time.Duration, err error) {
		statsd.EmitSystemStat(system, elapsed, err != nil, tags...)
		if err != nil {
			e.logger.Error().Err(err).Stringer("phase", phase).Str("system", system).Msg("system failed")
		}
	}
}

// Schedule returns the schedule of a phase. It fails with ecs.ErrUninitialized before Init.
func (e *Engine) Schedule(phase Phase) (*ecs.Schedule, error) {
	if !phase.valid() {
		return nil, eris.Errorf("invalid phase %d", phase)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initDone {
		return nil, eris.Wrap(ecs.ErrUninitialized, "engine is not initialized")
	}
	return e.schedules[phase], nil
}

// RunPhase runs one scheduler pass over the systems of a phase.
func (e *Engine) RunPhase(ctx context.Context, phase Phase) error {
	schedule, err := e.Schedule(phase)
	if err != nil {
		return err
	}

	start := time.Now()
	defer statsd.EmitPhaseStat(start, phase.String(), e.tags...)

	e.logger.Trace().Stringer("phase", phase).Msg("running phase")
	if err := schedule.Run(ctx, e.world); err != nil {
		return eris.Wrapf(err, "phase %s failed", phase)
	}
	return nil
}

// Step runs one frame: FixedUpdate once for every whole timestep in the accumulated time (at most
// MaxFrameSteps times), then Update and Render once. delta is the time elapsed since the previous
// frame.
func (e *Engine) Step(ctx context.Context, delta time.Duration) error {
	e.accumulator += delta

	steps := 0
	for e.accumulator >= e.options.Timestep {
		if steps == e.options.MaxFrameSteps {
			e.logger.Warn().Dur("dropped", e.accumulator).Msg("frame is too slow, dropping simulation time")
			e.accumulator = 0
			break
		}
		if err := e.RunPhase(ctx, FixedUpdate); err != nil {
			return err
		}
		e.accumulator -= e.options.Timestep
		steps++
	}

	if err := e.RunPhase(ctx, Update); err != nil {
		return err
	}
	return e.RunPhase(ctx, Render)
}

// Start initializes the engine, runs Startup once and then runs frames every FrameInterval until
// Stop is called or ctx is done. Both are only observed between frames. A phase error stops the
// loop and is returned.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Init(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return eris.New("engine is already running")
	}
	stop := make(chan struct{})
	e.running = true
	e.stop = stop
	e.accumulator = 0
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.stop = nil
		e.mu.Unlock()
	}()

	if err := e.RunPhase(ctx, Startup); err != nil {
		return err
	}
	e.logger.Info().Dur("timestep", e.options.Timestep).Msg("engine started")

	ticker := time.NewTicker(e.options.FrameInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("engine stopped, context done")
			return nil
		case <-stop:
			e.logger.Info().Msg("engine stopped")
			return nil
		case <-ticker.C:
		}

		now := time.Now()
		if err := e.Step(ctx, now.Sub(last)); err != nil {
			return err
		}
		last = now
	}
}

// Stop signals a running engine to stop after the current frame.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || e.stop == nil {
		e.logger.Warn().Msg("engine is not running, cannot stop")
		return
	}
	close(e.stop)
	e.stop = nil
}
