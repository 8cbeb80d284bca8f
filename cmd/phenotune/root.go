package main

import (
	"github.com/spf13/cobra"

	"phenotune/internal/config"
	"phenotune/internal/logger"
)

type rootOptions struct {
	configPath string
	envFiles   []string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "phenotune",
		Short:         "Bayesian hyperparameter search for phenology ecoregion classifiers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file (defaults are used when empty)")
	flags.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, ".env files with PHENOTUNE_ overrides")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format (json, text)")

	root.AddCommand(
		newSearchCmd(opts),
		newEvaluateCmd(opts),
		newTrialsCmd(opts),
		newSpaceCmd(opts),
		newValidateConfigCmd(opts),
	)
	return root
}

// load 加载配置: 文件 -> .env -> 环境变量 -> 命令行
func (o *rootOptions) load() error {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	env := config.NewEnvManager(config.DefaultEnvPrefix)
	if err := env.LoadFromFile(true, o.envFiles...); err != nil {
		return err
	}
	cfg.ApplyEnv(env)

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	logger.Init(cfg.Logging.LoggerConfig())

	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func newValidateConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the configuration, then print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Info("Configuration is valid", "config", opts.configPath)
			return opts.cfg.Write(cmd.OutOrStdout())
		},
	}
}
