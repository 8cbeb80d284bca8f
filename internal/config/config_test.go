package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenotune/internal/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 50, cfg.Search.NumInitialPoints)
	assert.Equal(t, 1e-4, cfg.Search.Alpha)
	assert.Equal(t, 2.6, cfg.Search.Beta)
	assert.Equal(t, 3, cfg.Search.MaxConsecutiveFailedTrials)
	assert.Equal(t, 0, cfg.Search.MaxRetriesPerTrial)
	assert.Equal(t, 2, cfg.EarlyStopping.Patience)
	assert.True(t, cfg.EarlyStopping.RestoreBestWeights)
	assert.Len(t, cfg.Space.Layers, 3)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
search:
  max_trials: 7
  seed: 42
training:
  epochs: 5
  max_trial_duration: 30s
space:
  layers:
    - {min: 2, max: 8, step: 2}
    - {min: 0, max: 4, step: 1}
  activations: [relu, tanh]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 7, cfg.Search.MaxTrials)
	assert.Equal(t, int64(42), cfg.Search.Seed)
	assert.Equal(t, 2.6, cfg.Search.Beta)
	assert.Equal(t, 5, cfg.Training.Epochs)
	assert.Equal(t, 64, cfg.Training.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Training.MaxTrialDuration)
	assert.Equal(t, []IntRange{{Min: 2, Max: 8, Step: 2}, {Min: 0, Max: 4, Step: 1}}, cfg.Space.Layers)
	assert.Equal(t, []string{"relu", "tanh"}, cfg.Space.Activations)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"max below min", func(c *Config) { c.Space.Layers[1] = IntRange{Min: 5, Max: 2, Step: 1} }},
		{"zero step", func(c *Config) { c.Space.Layers[0].Step = 0 }},
		{"first layer may vanish", func(c *Config) { c.Space.Layers[0].Min = 0 }},
		{"log scale at zero", func(c *Config) { c.Space.LearningRate.Min = 0 }},
		{"empty activations", func(c *Config) { c.Space.Activations = nil }},
		{"duplicate activation", func(c *Config) { c.Space.Activations = []string{"relu", "relu"} }},
		{"no trials", func(c *Config) { c.Search.MaxTrials = 0 }},
		{"failure limit", func(c *Config) { c.Search.MaxConsecutiveFailedTrials = 0 }},
		{"negative patience", func(c *Config) { c.EarlyStopping.Patience = -1 }},
		{"bad mode", func(c *Config) { c.EarlyStopping.Mode = "up" }},
		{"batch size", func(c *Config) { c.Training.BatchSize = 0 }},
		{"test fraction", func(c *Config) { c.Data.TestFraction = 1 }},
		{"store backend", func(c *Config) { c.Store.Backend = "s3" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeConfiguration), "got %v", err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Search.MaxTrials = 11
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 11, loaded.Search.MaxTrials)
	assert.Equal(t, cfg.Space, loaded.Space)
}

func TestLoggerConfig(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json"}.LoggerConfig()
	assert.Equal(t, "debug", string(lc.Level))
	assert.Equal(t, "json", string(lc.Format))
	assert.Equal(t, "stdout", lc.Output)
}
