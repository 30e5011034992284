package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "timed-quiz", "production", "warn")

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "app=timed-quiz")
}

func TestNewDefaultsToInfo(t *testing.T) {
	logger := NewWithWriter(&bytes.Buffer{}, "a", "dev", "shouting")
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := IntoContext(context.Background(), logger)

	FromContext(ctx).Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")

	assert.Equal(t, zerolog.Disabled, FromContext(context.Background()).GetLevel())
}

func TestFromContextEventsOnRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := IntoContext(context.Background(), zerolog.New(&buf).With().Str("request_id", "r-1").Logger())

	FromContext(ctx).Warn().Str("k", "v").Msg("warned")
	FromContext(ctx).Error().Msg("failed")

	assert.Contains(t, buf.String(), `"request_id":"r-1"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"level":"error"`)

	// Without a stored logger nothing is written and nothing panics.
	FromContext(context.Background()).Error().Msg("dropped")
}
