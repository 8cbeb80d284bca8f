package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvPrefix prefixes every environment override.
const DefaultEnvPrefix = "PHENOTUNE_"

// EnvManager manages environment variable configuration
type EnvManager struct {
	prefix string
}

// NewEnvManager creates a new environment variable manager
func NewEnvManager(prefix string) *EnvManager {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvManager{prefix: prefix}
}

// LoadFromFile loads variables from .env files without overriding ones already set.
// A missing file is not an error when optional is true.
func (em *EnvManager) LoadFromFile(optional bool, filenames ...string) error {
	for _, filename := range filenames {
		if _, err := os.Stat(filename); err != nil {
			if optional && os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to stat env file %s: %w", filename, err)
		}
		if err := godotenv.Load(filename); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", filename, err)
		}
	}
	return nil
}

// Lookup returns the raw value of a prefixed variable.
func (em *EnvManager) Lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(em.prefix + strings.ToUpper(key))
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// GetString gets a string environment variable
func (em *EnvManager) GetString(key string, defaultValue string) string {
	if value, ok := em.Lookup(key); ok {
		return value
	}
	return defaultValue
}

// GetInt gets an integer environment variable
func (em *EnvManager) GetInt(key string, defaultValue int) int {
	if value, ok := em.Lookup(key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetInt64 gets a 64-bit integer environment variable
func (em *EnvManager) GetInt64(key string, defaultValue int64) int64 {
	if value, ok := em.Lookup(key); ok {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetFloat gets a float environment variable
func (em *EnvManager) GetFloat(key string, defaultValue float64) float64 {
	if value, ok := em.Lookup(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// GetBool gets a boolean environment variable
func (em *EnvManager) GetBool(key string, defaultValue bool) bool {
	if value, ok := em.Lookup(key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration gets a duration environment variable
func (em *EnvManager) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := em.Lookup(key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// SetString sets a string environment variable
func (em *EnvManager) SetString(key string, value string) error {
	return os.Setenv(em.prefix+strings.ToUpper(key), value)
}

// ValidateRequired checks if all required environment variables are set
func (em *EnvManager) ValidateRequired(required []string) error {
	var missing []string

	for _, key := range required {
		if _, ok := em.Lookup(key); !ok {
			missing = append(missing, em.prefix+strings.ToUpper(key))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	return nil
}

// ApplyEnv overrides configuration values from prefixed environment variables.
func (c *Config) ApplyEnv(em *EnvManager) {
	c.Search.Seed = em.GetInt64("search_seed", c.Search.Seed)
	c.Search.MaxTrials = em.GetInt("search_max_trials", c.Search.MaxTrials)
	c.Search.NumInitialPoints = em.GetInt("search_num_initial_points", c.Search.NumInitialPoints)
	c.Training.Epochs = em.GetInt("training_epochs", c.Training.Epochs)
	c.Training.BatchSize = em.GetInt("training_batch_size", c.Training.BatchSize)
	c.Training.MaxTrialDuration = em.GetDuration("training_max_trial_duration", c.Training.MaxTrialDuration)
	c.Data.Path = em.GetString("data_path", c.Data.Path)

	c.Store.Backend = em.GetString("store_backend", c.Store.Backend)
	c.Store.Directory = em.GetString("store_directory", c.Store.Directory)
	c.Store.Database.Host = em.GetString("database_host", c.Store.Database.Host)
	c.Store.Database.Port = em.GetInt("database_port", c.Store.Database.Port)
	c.Store.Database.User = em.GetString("database_user", c.Store.Database.User)
	c.Store.Database.Password = em.GetString("database_password", c.Store.Database.Password)
	c.Store.Database.DBName = em.GetString("database_name", c.Store.Database.DBName)
	c.Store.Redis.Addr = em.GetString("redis_addr", c.Store.Redis.Addr)
	c.Store.Redis.Password = em.GetString("redis_password", c.Store.Redis.Password)
	c.Store.Redis.DB = em.GetInt("redis_db", c.Store.Redis.DB)

	c.Monitoring.PrometheusEnabled = em.GetBool("prometheus_enabled", c.Monitoring.PrometheusEnabled)
	c.Monitoring.PrometheusAddr = em.GetString("prometheus_addr", c.Monitoring.PrometheusAddr)
	c.Report.OutputDir = em.GetString("report_output_dir", c.Report.OutputDir)
	c.Logging.Level = em.GetString("log_level", c.Logging.Level)
	c.Logging.Format = em.GetString("log_format", c.Logging.Format)
}
