package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"phenotune/internal/config"
	"phenotune/internal/dataset"
	"phenotune/internal/earlystop"
	"phenotune/internal/errors"
	"phenotune/internal/evaluation"
	"phenotune/internal/hyperparams"
	"phenotune/internal/logger"
	"phenotune/internal/metrics"
	"phenotune/internal/report"
	"phenotune/internal/store"
	"phenotune/internal/tuner"
)

type searchResult struct {
	RunID     string
	Tuner     *tuner.Tuner
	Best      *tuner.TrialRecord
	Report    *evaluation.Report
	OutputDir string
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		runID     string
		dataPath  string
		maxTrials int
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search hyperparameters, retrain the best model and evaluate it on the test split",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if dataPath != "" {
				cfg.Data.Path = dataPath
			}
			if maxTrials > 0 {
				cfg.Search.MaxTrials = maxTrials
			}
			if outputDir != "" {
				cfg.Report.OutputDir = outputDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			_, err := runSearch(ctx, cfg, runID, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier (random UUID when empty)")
	cmd.Flags().StringVar(&dataPath, "data", "", "phenology CSV, overrides data.path")
	cmd.Flags().IntVar(&maxTrials, "max-trials", 0, "overrides search.max_trials")
	cmd.Flags().StringVar(&outputDir, "output", "", "overrides report.output_dir")
	return cmd
}

func runSearch(ctx context.Context, cfg *config.Config, runID string, out io.Writer) (*searchResult, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	log := logger.GetGlobalLogger().WithField("run_id", runID)

	data, err := loadSplits(cfg, log)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(out, "Class frequency")
	report.FrequencyTable(out, dataset.Classes, data.all.ClassFrequency())

	space, err := hyperparams.FromConfig(cfg.Space)
	if err != nil {
		return nil, err
	}
	builder := newBuilder(cfg)

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeStore, "failed to open trial store")
	}
	if st != nil {
		defer st.Close()
	}

	sm := metrics.NewSearchMetrics()
	if cfg.Monitoring.PrometheusEnabled {
		srv := serveMetrics(cfg.Monitoring, sm, log)
		defer shutdownServer(srv, log)
	}

	t, err := tuner.New(tuner.Options{
		RunID:         runID,
		Search:        cfg.Search,
		Training:      cfg.Training,
		EarlyStopping: earlystop.FromConfig(cfg.EarlyStopping),
		Space:         space,
		Builder:       builder,
		Store:         st,
		Metrics:       sm,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}

	searchErr := t.Search(ctx, tuner.Data{
		TrainX: data.train.Features,
		TrainY: data.train.Labels,
		ValX:   data.validation.Features,
		ValY:   data.validation.Labels,
	})
	if searchErr != nil && !errors.IsCode(searchErr, errors.ErrCodeSearchAborted) {
		return nil, searchErr
	}
	if err := t.ResultsSummary(out, cfg.Search.TopK); err != nil {
		return nil, err
	}
	if searchErr != nil {
		return nil, searchErr
	}

	top := t.BestTrials(3)
	if len(top) == 0 {
		return nil, errors.NewAppError(errors.ErrCodeSearchAborted, "no trial completed", nil)
	}
	for i, r := range top {
		fmt.Fprintf(out, "Model %d (%s)\n%s", i+1, r.ID, r.Topology.Summary())
	}

	best := top[0]
	log.Info("Retraining best hyperparameters", "trial_id", best.ID, "hyperparameters", best.Assignment.String())
	m, _, err := builder.Build(best.Assignment, cfg.Search.Seed)
	if err != nil {
		return nil, err
	}
	history, err := m.Fit(ctx, data.train.Features, data.train.Labels, fitOptions(cfg, data, cfg.Search.Seed, newMonitor(cfg)))
	if err != nil {
		return nil, fmt.Errorf("retraining %s: %w", best.ID, err)
	}

	dir := filepath.Join(cfg.Report.OutputDir, runID)
	rep, err := writeReport(cfg, dir, m, history, data, out, log)
	if err != nil {
		return nil, err
	}
	return &searchResult{RunID: runID, Tuner: t, Best: best, Report: rep, OutputDir: dir}, nil
}
