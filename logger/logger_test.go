package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestComponentLoggers(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	InitWithWriter(&buf)

	ForProduct("board-shop").Info().Msg("price observed")
	ForSearch("used-boards").Warn().Msg("no cards")
	ForNotifier().Error().Err(errors.New("dial failed")).Msg("send failed")

	out := buf.String()
	assert.Contains(t, out, "Logger initialized")
	assert.Contains(t, out, "product=board-shop")
	assert.Contains(t, out, "search=used-boards")
	assert.Contains(t, out, "component=notifier")
	assert.Contains(t, out, "dial failed")
	assert.True(t, IsDebugEnabled())
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("PRICEWATCH_ENVIRONMENT", "production")
	assert.Equal(t, zerolog.InfoLevel, getLogLevel())

	t.Setenv("PRICEWATCH_ENVIRONMENT", "")
	assert.Equal(t, zerolog.DebugLevel, getLogLevel())

	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, zerolog.WarnLevel, getLogLevel())

	t.Setenv("LOG_LEVEL", "nonsense")
	assert.Equal(t, zerolog.InfoLevel, getLogLevel())
}

func TestFieldHelpers(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	var buf bytes.Buffer
	InitWithWriter(&buf)

	ForWorker().
		WithFields(Fields{"entity": "board-shop", "kind": "retail"}).
		WithError(errors.New("smtp refused")).
		Error().Msg("Failed to send alert")
	LogError("worker", errors.New("disk full"), "Run failed after %d entities", 3)
	Info("Connected to %s", "redis")

	out := buf.String()
	assert.Contains(t, out, "entity=board-shop")
	assert.Contains(t, out, "kind=retail")
	assert.Contains(t, out, "smtp refused")
	assert.Contains(t, out, "Run failed after 3 entities")
	assert.Contains(t, out, "disk full")
	assert.Contains(t, out, "component=worker")
	assert.Contains(t, out, "Connected to redis")
	assert.False(t, IsDebugEnabled())
}
