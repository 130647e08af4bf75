package engine

import (
	"time"

	"github.com/argus-labs/ecsrt/pkg/ecs"
	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// engineConfig holds the configuration of an Engine.
// Configuration can be set via environment variables with the specified defaults.
type engineConfig struct {
	// Duration simulated by one FixedUpdate run. The default is 60 updates per second.
	Timestep time.Duration `env:"ECS_TIMESTEP" envDefault:"16.666667ms"`

	// Wall-clock time between frames of the main loop.
	FrameInterval time.Duration `env:"ECS_FRAME_INTERVAL" envDefault:"16.666667ms"`

	// Maximum number of FixedUpdate runs per frame. Time beyond that is dropped.
	MaxFrameSteps int `env:"ECS_MAX_FRAME_STEPS" envDefault:"5"`

	// Maximum number of systems of one batch running at the same time (0 = unlimited).
	MaxConcurrency int `env:"ECS_MAX_CONCURRENCY" envDefault:"0"`

	// Address of the statsd agent. Metrics are disabled when empty.
	StatsdAddress string `env:"ECS_STATSD_ADDRESS"`

	// Tags attached to every metric.
	StatsdTags []string `env:"ECS_STATSD_TAGS" envSeparator:","`
}

// loadEngineConfig loads the engine configuration from environment variables.
func loadEngineConfig() (engineConfig, error) {
	cfg := engineConfig{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse engine config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate config")
	}

	return cfg, nil
}

// validate performs validation on the loaded configuration.
func (cfg *engineConfig) validate() error {
	if cfg.Timestep <= 0 {
		return eris.New("timestep must be positive")
	}
	if cfg.FrameInterval <= 0 {
		return eris.New("frame interval must be positive")
	}
	if cfg.MaxFrameSteps <= 0 {
		return eris.New("max frame steps must be positive")
	}
	if cfg.MaxConcurrency < 0 {
		return eris.New("max concurrency cannot be negative")
	}
	return nil
}

// applyToOptions applies the configuration values to the given Options.
func (cfg *engineConfig) applyToOptions(opt *Options) {
	opt.Timestep = cfg.Timestep
	opt.FrameInterval = cfg.FrameInterval
	opt.MaxFrameSteps = cfg.MaxFrameSteps
	opt.MaxConcurrency = cfg.MaxConcurrency
	opt.StatsdAddress = cfg.StatsdAddress
	opt.StatsdTags = cfg.StatsdTags
}

type Options struct {
	Timestep       time.Duration   // Duration simulated by one FixedUpdate run
	FrameInterval  time.Duration   // Wall-clock time between frames
	MaxFrameSteps  int             // Maximum FixedUpdate runs per frame
	MaxConcurrency int             // Maximum concurrently running systems per batch (0 = unlimited)
	StatsdAddress  string          // Address of the statsd agent, empty disables metrics
	StatsdTags     []string        // Tags attached to every metric
	Logger         *zerolog.Logger // Logger of the engine, defaults to the global logger
	World          *ecs.World      // World to drive, a new one is created when nil
}

// newDefaultOptions creates Options with default values.
func newDefaultOptions() Options {
	// Set these to invalid values so a missing config is caught by validate.
	return Options{
		Timestep:       0,
		FrameInterval:  0,
		MaxFrameSteps:  0,
		MaxConcurrency: 0,
		StatsdAddress:  "",
		StatsdTags:     nil,
		Logger:         nil,
		World:          nil,
	}
}

// apply merges the given options into the current options, overriding non-zero values.
func (opt *Options) apply(newOpt Options) {
	if newOpt.Timestep != 0 {
		opt.Timestep = newOpt.Timestep
	}
	if newOpt.FrameInterval != 0 {
		opt.FrameInterval = newOpt.FrameInterval
	}
	if newOpt.MaxFrameSteps != 0 {
		opt.MaxFrameSteps = newOpt.MaxFrameSteps
	}
	if newOpt.MaxConcurrency != 0 {
		opt.MaxConcurrency = newOpt.MaxConcurrency
	}
	if newOpt.StatsdAddress != "" {
		opt.StatsdAddress = newOpt.StatsdAddress
	}
	if newOpt.StatsdTags != nil {
		opt.StatsdTags = newOpt.StatsdTags
	}
	if newOpt.Logger != nil {
		opt.Logger = newOpt.Logger
	}
	if newOpt.World != nil {
		opt.World = newOpt.World
	}
}

// validate checks that all required options are set and valid.
func (opt *Options) validate() error {
	if opt.Timestep <= 0 {
		return eris.New("timestep must be positive")
	}
	if opt.FrameInterval <= 0 {
		return eris.New("frame interval must be positive")
	}
	if opt.MaxFrameSteps <= 0 {
		return eris.New("max frame steps must be positive")
	}
	if opt.MaxConcurrency < 0 {
		return eris.New("max concurrency cannot be negative")
	}
	return nil
}
