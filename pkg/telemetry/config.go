package telemetry

import (
	"io"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config is the logging configuration read from the environment. Both fields are parsed through
// their UnmarshalText methods, so invalid values fail in env.Parse.
type Config struct {
	// Minimum level written: trace, debug, info, warn, error, fatal, panic or disabled.
	LogLevel zerolog.Level `env:"ECS_LOG_LEVEL" envDefault:"info"`

	// Output format: pretty (console) or json.
	LogFormat LogFormat `env:"ECS_LOG_FORMAT" envDefault:"pretty"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse telemetry config")
	}
	return cfg, nil
}

func (cfg *Config) applyToOptions(opt *Options) {
	opt.LogLevel = cfg.LogLevel.String()
	opt.LogFormat = cfg.LogFormat
}

// Options configure the service logger. Non-zero fields override the environment.
type Options struct {
	ServiceName string    // Prefix of every component name, required
	LogLevel    string    // Minimum level written
	LogFormat   LogFormat // Output format
	Output      io.Writer // Destination, stdout when nil
}

func (opt *Options) apply(newOpt Options) {
	if newOpt.ServiceName != "" {
		opt.ServiceName = newOpt.ServiceName
	}
	if newOpt.LogLevel != "" {
		opt.LogLevel = newOpt.LogLevel
	}
	if newOpt.LogFormat != "" {
		opt.LogFormat = newOpt.LogFormat
	}
	if newOpt.Output != nil {
		opt.Output = newOpt.Output
	}
}

// level returns the parsed log level, after validate has accepted it.
func (opt *Options) level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(opt.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func (opt *Options) validate() error {
	if opt.ServiceName == "" {
		return eris.New("service name cannot be empty")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(opt.LogLevel)); err != nil {
		return eris.Wrapf(err, "invalid log level %q", opt.LogLevel)
	}
	if _, err := ParseLogFormat(string(opt.LogFormat)); err != nil {
		return err
	}
	return nil
}

// LogFormat is the output format of a logger.
type LogFormat string

const (
	LogFormatPretty LogFormat = "pretty" // zerolog.ConsoleWriter, for terminals
	LogFormatJSON   LogFormat = "json"   // One JSON object per line
)

// ParseLogFormat parses a log format name, ignoring case.
func ParseLogFormat(s string) (LogFormat, error) {
	switch format := LogFormat(strings.ToLower(s)); format {
	case LogFormatPretty, LogFormatJSON:
		return format, nil
	default:
		return "", eris.Errorf("invalid log format %q, must be %q or %q", s, LogFormatPretty, LogFormatJSON)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *LogFormat) UnmarshalText(text []byte) error {
	format, err := ParseLogFormat(string(text))
	if err != nil {
		return err
	}
	*f = format
	return nil
}
