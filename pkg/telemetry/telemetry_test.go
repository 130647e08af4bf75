package telemetry

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Setenv("ECS_LOG_LEVEL", "warn")
	t.Setenv("ECS_LOG_FORMAT", "json")

	var buf bytes.Buffer
	tel, err := New(Options{ServiceName: "ecsrt", Output: &buf})
	require.NoError(t, err)

	logger := tel.GetLogger("scheduler")
	logger.Info().Msg("filtered out")
	logger.Warn().Str("system", "movement").Msg("ran")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ecsrt.scheduler", entry["component"])
	assert.Equal(t, "movement", entry["system"])
	assert.Equal(t, "warn", entry["level"])
}

func TestNew_Validation(t *testing.T) {
	t.Run("missing service name", func(t *testing.T) {
		_, err := New(Options{})
		require.Error(t, err)
	})

	t.Run("invalid log level from env", func(t *testing.T) {
		t.Setenv("ECS_LOG_LEVEL", "loud")
		_, err := New(Options{ServiceName: "ecsrt"})
		require.Error(t, err)
	})

	t.Run("invalid log format from env", func(t *testing.T) {
		t.Setenv("ECS_LOG_FORMAT", "xml")
		_, err := New(Options{ServiceName: "ecsrt"})
		require.Error(t, err)
	})
}

func TestParseLogFormat(t *testing.T) {
	t.Parallel()

	format, err := ParseLogFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, LogFormatJSON, format)

	format, err = ParseLogFormat("pretty")
	require.NoError(t, err)
	assert.Equal(t, LogFormatPretty, format)

	_, err = ParseLogFormat("yaml")
	require.Error(t, err)

	var parsed LogFormat
	require.NoError(t, parsed.UnmarshalText([]byte("Json")))
	assert.Equal(t, LogFormatJSON, parsed)
}

func TestNew_OptionsOverrideEnv(t *testing.T) {
	t.Setenv("ECS_LOG_LEVEL", "error")

	var buf bytes.Buffer
	tel, err := New(Options{ServiceName: "ecsrt", LogLevel: "warn", LogFormat: LogFormatJSON, Output: &buf})
	require.NoError(t, err)

	logger := tel.GetLogger("engine")
	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), `"component":"ecsrt.engine"`)
	assert.Equal(t, zerolog.WarnLevel, tel.Logger.GetLevel())
}
