package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"phenotune/internal/errors"
	"phenotune/internal/logger"
)

// Config represents the run configuration. It is fixed at run start.
type Config struct {
	Search        SearchConfig        `yaml:"search"`
	Training      TrainingConfig      `yaml:"training"`
	EarlyStopping EarlyStoppingConfig `yaml:"early_stopping"`
	Space         SpaceConfig         `yaml:"space"`
	Loss          LossConfig          `yaml:"loss"`
	Data          DataConfig          `yaml:"data"`
	Store         StoreConfig         `yaml:"store"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Report        ReportConfig        `yaml:"report"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// SearchConfig 搜索预算与贝叶斯优化参数
type SearchConfig struct {
	Project                    string  `yaml:"project"`
	MaxTrials                  int     `yaml:"max_trials"`
	NumInitialPoints           int     `yaml:"num_initial_points"`
	Alpha                      float64 `yaml:"alpha"`
	Beta                       float64 `yaml:"beta"`
	Seed                       int64   `yaml:"seed"`
	MaxRetriesPerTrial         int     `yaml:"max_retries_per_trial"`
	MaxConsecutiveFailedTrials int     `yaml:"max_consecutive_failed_trials"`
	MaxCollisions              int     `yaml:"max_collisions"`
	NumRestarts                int     `yaml:"num_restarts"`
	TopK                       int     `yaml:"top_k"`
}

// TrainingConfig 单次试验的训练设置
type TrainingConfig struct {
	Epochs           int           `yaml:"epochs"`
	BatchSize        int           `yaml:"batch_size"`
	Shuffle          bool          `yaml:"shuffle"`
	MaxTrialDuration time.Duration `yaml:"max_trial_duration"`
}

// EarlyStoppingConfig 早停设置
type EarlyStoppingConfig struct {
	Monitor            string   `yaml:"monitor"`
	Mode               string   `yaml:"mode"`
	MinDelta           float64  `yaml:"min_delta"`
	Patience           int      `yaml:"patience"`
	RestoreBestWeights bool     `yaml:"restore_best_weights"`
	StartFromEpoch     int      `yaml:"start_from_epoch"`
	Baseline           *float64 `yaml:"baseline,omitempty"`
}

// IntRange is an inclusive integer range with a step.
type IntRange struct {
	Min  int `yaml:"min"`
	Max  int `yaml:"max"`
	Step int `yaml:"step"`
}

// FloatRange is a continuous range; Sampling is "linear" or "log".
type FloatRange struct {
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	Sampling string  `yaml:"sampling"`
}

// SpaceConfig 超参数搜索空间
type SpaceConfig struct {
	Layers       []IntRange `yaml:"layers"`
	Activations  []string   `yaml:"activations"`
	LearningRate FloatRange `yaml:"learning_rate"`
}

// LossConfig focal categorical cross-entropy parameters
type LossConfig struct {
	Alpha float64 `yaml:"alpha"`
	Gamma float64 `yaml:"gamma"`
}

// DataConfig 数据准备设置
type DataConfig struct {
	Path               string   `yaml:"path"`
	TestFraction       float64  `yaml:"test_fraction"`
	ValidationFraction float64  `yaml:"validation_fraction"`
	SplitSeed          int64    `yaml:"split_seed"`
	MaxPhenophase      float64  `yaml:"max_phenophase"`
	ExcludedRegions    []string `yaml:"excluded_regions"`
	ExcludedLandCover  []int    `yaml:"excluded_land_cover"`
	DaysPerYear        float64  `yaml:"days_per_year"`
}

// StoreConfig 试验记录存储设置
type StoreConfig struct {
	Backend   string         `yaml:"backend"` // none, memory, file, postgres, redis
	Directory string         `yaml:"directory"`
	Database  DatabaseConfig `yaml:"database"`
	Redis     RedisConfig    `yaml:"redis"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	DBName   string        `yaml:"dbname"`
	SSLMode  string        `yaml:"sslmode"`
	MaxOpen  int           `yaml:"max_open"`
	MaxIdle  int           `yaml:"max_idle"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DSN builds a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"pool_size"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// MonitoringConfig represents monitoring configuration
type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusAddr    string `yaml:"prometheus_addr"`
	PrometheusPath    string `yaml:"prometheus_path"`
}

// ReportConfig 报告输出设置
type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`
	Plots     bool   `yaml:"plots"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	Filename string `yaml:"filename"`
}

// LoggerConfig converts the logging section into a logger.Config.
func (l LoggingConfig) LoggerConfig() logger.Config {
	cfg := logger.DefaultConfig
	if l.Level != "" {
		cfg.Level = logger.LogLevel(l.Level)
	}
	if l.Format != "" {
		cfg.Format = logger.LogFormat(l.Format)
	}
	if l.Output != "" {
		cfg.Output = l.Output
	}
	cfg.Filename = l.Filename
	return cfg
}

// Default returns the configuration used by the ecoregion study.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			Project:                    "phenotune",
			MaxTrials:                  50,
			NumInitialPoints:           50,
			Alpha:                      1e-4,
			Beta:                       2.6,
			Seed:                       144,
			MaxRetriesPerTrial:         0,
			MaxConsecutiveFailedTrials: 3,
			MaxCollisions:              20,
			NumRestarts:                20,
			TopK:                       10,
		},
		Training: TrainingConfig{
			Epochs:    20,
			BatchSize: 64,
			Shuffle:   true,
		},
		EarlyStopping: EarlyStoppingConfig{
			Monitor:            "val_loss",
			Mode:               "min",
			MinDelta:           0,
			Patience:           2,
			RestoreBestWeights: true,
			StartFromEpoch:     0,
		},
		Space: SpaceConfig{
			Layers: []IntRange{
				{Min: 1, Max: 32, Step: 1},
				{Min: 0, Max: 32, Step: 1},
				{Min: 0, Max: 32, Step: 1},
			},
			Activations:  []string{"relu", "sigmoid", "tanh", "selu", "elu"},
			LearningRate: FloatRange{Min: 1e-4, Max: 1e-1, Sampling: "log"},
		},
		Loss: LossConfig{Alpha: 0.25, Gamma: 2.0},
		Data: DataConfig{
			TestFraction:       0.5,
			ValidationFraction: 0.25,
			SplitSeed:          144,
			MaxPhenophase:      1,
			ExcludedRegions:    []string{"0"},
			ExcludedLandCover:  []int{12, 13, 15},
			DaysPerYear:        365,
		},
		Store: StoreConfig{
			Backend:   "file",
			Directory: "trials",
			Database: DatabaseConfig{
				Host:    "localhost",
				Port:    5432,
				User:    "phenotune",
				DBName:  "phenotune",
				SSLMode: "disable",
				MaxOpen: 4,
				MaxIdle: 2,
				Timeout: 5 * time.Second,
			},
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				PoolSize:  4,
				KeyPrefix: "phenotune",
			},
		},
		Monitoring: MonitoringConfig{
			PrometheusAddr: ":9090",
			PrometheusPath: "/metrics",
		},
		Report: ReportConfig{OutputDir: "reports", Plots: true},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load loads configuration from a YAML file on top of Default.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Write encodes the configuration as YAML to w.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// Validate checks the configuration and returns a CONFIGURATION_ERROR on the first problem.
func (c *Config) Validate() error {
	s := c.Search
	switch {
	case s.MaxTrials <= 0:
		return errors.Configuration("search.max_trials must be positive, got %d", s.MaxTrials)
	case s.NumInitialPoints < 0:
		return errors.Configuration("search.num_initial_points must be non-negative, got %d", s.NumInitialPoints)
	case s.Alpha <= 0:
		return errors.Configuration("search.alpha must be positive, got %g", s.Alpha)
	case s.Beta < 0:
		return errors.Configuration("search.beta must be non-negative, got %g", s.Beta)
	case s.MaxRetriesPerTrial < 0:
		return errors.Configuration("search.max_retries_per_trial must be non-negative, got %d", s.MaxRetriesPerTrial)
	case s.MaxConsecutiveFailedTrials < 1:
		return errors.Configuration("search.max_consecutive_failed_trials must be at least 1, got %d", s.MaxConsecutiveFailedTrials)
	case s.MaxCollisions < 1:
		return errors.Configuration("search.max_collisions must be at least 1, got %d", s.MaxCollisions)
	case s.NumRestarts < 1:
		return errors.Configuration("search.num_restarts must be at least 1, got %d", s.NumRestarts)
	case s.TopK < 1:
		return errors.Configuration("search.top_k must be at least 1, got %d", s.TopK)
	}

	t := c.Training
	switch {
	case t.Epochs <= 0:
		return errors.Configuration("training.epochs must be positive, got %d", t.Epochs)
	case t.BatchSize <= 0:
		return errors.Configuration("training.batch_size must be positive, got %d", t.BatchSize)
	case t.MaxTrialDuration < 0:
		return errors.Configuration("training.max_trial_duration must be non-negative, got %s", t.MaxTrialDuration)
	}

	e := c.EarlyStopping
	switch {
	case e.Monitor == "":
		return errors.Configuration("early_stopping.monitor is required")
	case e.Mode != "min" && e.Mode != "max":
		return errors.Configuration("early_stopping.mode must be min or max, got %q", e.Mode)
	case e.MinDelta < 0:
		return errors.Configuration("early_stopping.min_delta must be non-negative, got %g", e.MinDelta)
	case e.Patience < 0:
		return errors.Configuration("early_stopping.patience must be non-negative, got %d", e.Patience)
	case e.StartFromEpoch < 0:
		return errors.Configuration("early_stopping.start_from_epoch must be non-negative, got %d", e.StartFromEpoch)
	}

	if err := c.Space.Validate(); err != nil {
		return err
	}

	if c.Loss.Alpha < 0 || c.Loss.Gamma < 0 {
		return errors.Configuration("loss.alpha and loss.gamma must be non-negative, got %g and %g", c.Loss.Alpha, c.Loss.Gamma)
	}

	d := c.Data
	switch {
	case d.TestFraction <= 0 || d.TestFraction >= 1:
		return errors.Configuration("data.test_fraction must be in (0,1), got %g", d.TestFraction)
	case d.ValidationFraction <= 0 || d.ValidationFraction >= 1:
		return errors.Configuration("data.validation_fraction must be in (0,1), got %g", d.ValidationFraction)
	case d.DaysPerYear <= 0:
		return errors.Configuration("data.days_per_year must be positive, got %g", d.DaysPerYear)
	}

	switch c.Store.Backend {
	case "", "none", "memory", "file", "postgres", "redis":
	default:
		return errors.Configuration("store.backend %q is not one of none, memory, file, postgres, redis", c.Store.Backend)
	}
	if c.Store.Backend == "file" && c.Store.Directory == "" {
		return errors.Configuration("store.directory is required for the file backend")
	}

	return nil
}

// Validate checks the search-space bounds.
func (s SpaceConfig) Validate() error {
	if len(s.Layers) == 0 {
		return errors.Configuration("space.layers must declare at least one hidden layer")
	}
	for i, l := range s.Layers {
		name := fmt.Sprintf("units_%d", i+1)
		switch {
		case l.Step <= 0:
			return errors.Configuration("%s: step must be positive, got %d", name, l.Step)
		case l.Min < 0:
			return errors.Configuration("%s: min must be non-negative, got %d", name, l.Min)
		case l.Max < l.Min:
			return errors.Configuration("%s: max %d < min %d", name, l.Max, l.Min)
		case i == 0 && l.Min < 1:
			return errors.Configuration("%s: the first hidden layer needs min >= 1, got %d", name, l.Min)
		}
	}
	if len(s.Activations) == 0 {
		return errors.Configuration("space.activations must not be empty")
	}
	seen := make(map[string]bool, len(s.Activations))
	for _, a := range s.Activations {
		if seen[a] {
			return errors.Configuration("space.activations lists %q twice", a)
		}
		seen[a] = true
	}
	lr := s.LearningRate
	switch {
	case lr.Max < lr.Min:
		return errors.Configuration("lr: max %g < min %g", lr.Max, lr.Min)
	case lr.Sampling == "log" && lr.Min <= 0:
		return errors.Configuration("lr: log sampling needs min > 0, got %g", lr.Min)
	case lr.Sampling != "log" && lr.Sampling != "linear" && lr.Sampling != "":
		return errors.Configuration("lr: sampling must be linear or log, got %q", lr.Sampling)
	}
	return nil
}
