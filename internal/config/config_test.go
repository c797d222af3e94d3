package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EDITOR_SAVE_DEBOUNCE", "")
	t.Setenv("EDITOR_TRIGGER_MARKER", "@link")

	cfg := Load()
	assert.Equal(t, time.Second, cfg.Editor.SaveDebounce)
	assert.Equal(t, 15*time.Second, cfg.Editor.AutoTagCountdown)
	assert.Equal(t, "@link", cfg.Editor.TriggerMarker)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("EDITOR_SAVE_DEBOUNCE", "1500ms")
	t.Setenv("EDITOR_AUTOTAG_COUNTDOWN", "2000")
	t.Setenv("EDITOR_MAX_CANDIDATES", "3")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("GATEWAY_PERSISTENCE", "redis")

	cfg := Load()
	assert.Equal(t, 1500*time.Millisecond, cfg.Editor.SaveDebounce)
	assert.Equal(t, 2*time.Second, cfg.Editor.AutoTagCountdown)
	assert.Equal(t, 3, cfg.Editor.MaxCandidates)
	assert.True(t, cfg.App.OtelEnabled)
	assert.Equal(t, "redis", cfg.Gateway.Persistence)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("EDITOR_SAVE_DEBOUNCE", "soon")
	t.Setenv("EDITOR_MAX_CANDIDATES", "many")
	t.Setenv("OTEL_ENABLED", "maybe")

	cfg := Load()
	assert.Equal(t, time.Second, cfg.Editor.SaveDebounce)
	assert.Equal(t, 8, cfg.Editor.MaxCandidates)
	assert.False(t, cfg.App.OtelEnabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown persistence", func(c *Config) { c.Gateway.Persistence = "s3" }, "Config.Gateway.Persistence (oneof)"},
		{"bad base url", func(c *Config) { c.Gateway.BaseURL = "not a url" }, "Config.Gateway.BaseURL (url)"},
		{"empty marker", func(c *Config) { c.Editor.TriggerMarker = "" }, "Config.Editor.TriggerMarker (required)"},
		{"poll cap below poll", func(c *Config) { c.Editor.AutoTagPollCap = time.Millisecond }, "Config.Editor.AutoTagPollCap (gtefield)"},
		{"non-numeric port", func(c *Config) { c.MockAPI.Port = "http" }, "Config.MockAPI.Port (numeric)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			cfg.App.Environment = "test"
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
