package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvManagerTypedGetters(t *testing.T) {
	t.Setenv("PHENOTUNE_SEARCH_SEED", "7")
	t.Setenv("PHENOTUNE_TRAINING_MAX_TRIAL_DURATION", "90s")
	t.Setenv("PHENOTUNE_PROMETHEUS_ENABLED", "true")
	t.Setenv("PHENOTUNE_TRAINING_EPOCHS", "not-a-number")

	em := NewEnvManager("")
	assert.Equal(t, int64(7), em.GetInt64("search_seed", 1))
	assert.Equal(t, 90*time.Second, em.GetDuration("training_max_trial_duration", 0))
	assert.True(t, em.GetBool("prometheus_enabled", false))
	assert.Equal(t, 20, em.GetInt("training_epochs", 20))
	assert.Equal(t, "fallback", em.GetString("unset_key", "fallback"))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PHENOTUNE_SEARCH_MAX_TRIALS", "3")
	t.Setenv("PHENOTUNE_STORE_BACKEND", "redis")
	t.Setenv("PHENOTUNE_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnv(NewEnvManager(DefaultEnvPrefix))

	assert.Equal(t, 3, cfg.Search.MaxTrials)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 64, cfg.Training.BatchSize)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PHENOTUNE_DATA_PATH=\"/data/pheno.csv\"\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("PHENOTUNE_DATA_PATH") })

	em := NewEnvManager("")
	require.NoError(t, em.LoadFromFile(false, path))
	assert.Equal(t, "/data/pheno.csv", em.GetString("data_path", ""))

	assert.NoError(t, em.LoadFromFile(true, filepath.Join(dir, "missing.env")))
	assert.Error(t, em.LoadFromFile(false, filepath.Join(dir, "missing.env")))
}

func TestValidateRequired(t *testing.T) {
	t.Setenv("PHENOTUNE_DATABASE_PASSWORD", "secret")
	em := NewEnvManager("")
	assert.NoError(t, em.ValidateRequired([]string{"database_password"}))
	assert.Error(t, em.ValidateRequired([]string{"database_password", "redis_password"}))
}
