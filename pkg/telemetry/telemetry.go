// Package telemetry sets up zerolog loggers. A console logger is installed globally at init so
// packages can log before a service configures its own; New builds the configured service logger.
package telemetry

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Telemetry struct {
	Logger      zerolog.Logger
	serviceName string
}

// New creates the service logger from the environment configuration, overridden by opts.
func New(opts Options) (Telemetry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return Telemetry{}, eris.Wrap(err, "failed to load telemetry config")
	}

	var options Options
	cfg.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return Telemetry{}, eris.Wrap(err, "invalid telemetry options")
	}

	return Telemetry{
		Logger:      newLogger(options.Output, options.LogFormat).Level(options.level()),
		serviceName: options.ServiceName,
	}, nil
}

// GetLogger returns a logger whose component field is "<service>.<component>".
func (t *Telemetry) GetLogger(component string) zerolog.Logger {
	return t.Logger.With().Str("component", t.serviceName+"."+component).Logger()
}

func newLogger(out io.Writer, format LogFormat) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	if format == LogFormatPretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Caller().Logger()
}

func init() { //nolint:gochecknoinits // the global logger must exist before any package logs
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = newLogger(os.Stdout, LogFormatPretty) //nolint:reassign // replacing zerolog's default
}

// GetGlobalLogger returns a logger with the given component field, writing to the global console
// logger.
func GetGlobalLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// SetGlobalLogLevel sets the level below which every logger is silenced. Unknown levels fall back
// to info.
func SetGlobalLogLevel(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
