package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"phenotune/internal/config"
	"phenotune/internal/dataset"
	"phenotune/internal/earlystop"
	"phenotune/internal/evaluation"
	"phenotune/internal/logger"
	"phenotune/internal/metrics"
	"phenotune/internal/model"
	"phenotune/internal/nn"
	"phenotune/internal/report"
)

// BestModelFile is the name of the retrained model inside the report directory.
const BestModelFile = "best_model.json"

// splits holds the dataset and its three partitions.
type splits struct {
	all        *dataset.Dataset
	train      *dataset.Dataset
	validation *dataset.Dataset
	test       *dataset.Dataset
}

func loadSplits(cfg *config.Config, log logger.Logger) (*splits, error) {
	if cfg.Data.Path == "" {
		return nil, fmt.Errorf("no dataset configured, set data.path or PHENOTUNE_DATA_PATH")
	}
	start := time.Now()
	ds, stats, err := dataset.Load(cfg.Data.Path, dataset.FilterFromConfig(cfg.Data))
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{
		"path":     cfg.Data.Path,
		"read":     stats.Read,
		"kept":     stats.Kept,
		"duration": time.Since(start).String(),
	}
	for reason, n := range stats.Dropped {
		fields["dropped_"+reason] = n
	}
	log.WithFields(fields).Info("Dataset loaded")

	part, err := dataset.Split(ds.Rows(), dataset.SplitOptionsFromConfig(cfg.Data))
	if err != nil {
		return nil, err
	}
	s := &splits{
		all:        ds,
		train:      ds.Subset(part.Train),
		validation: ds.Subset(part.Validation),
		test:       ds.Subset(part.Test),
	}
	log.Info("Dataset split",
		"train", s.train.Rows(),
		"validation", s.validation.Rows(),
		"test", s.test.Rows())
	return s, nil
}

func newBuilder(cfg *config.Config) *model.Builder {
	b := model.NewBuilder(len(dataset.FeatureNames), len(dataset.Classes), len(cfg.Space.Layers))
	b.FocalAlpha = cfg.Loss.Alpha
	b.FocalGamma = cfg.Loss.Gamma
	return b
}

func serveMetrics(cfg config.MonitoringConfig, m *metrics.SearchMetrics, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.PrometheusPath, m.Handler())
	srv := &http.Server{
		Addr:              cfg.PrometheusAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Metrics server failed", "error", err.Error())
		}
	}()
	log.Info("Serving metrics", "addr", cfg.PrometheusAddr, "path", cfg.PrometheusPath)
	return srv
}

func shutdownServer(srv *http.Server, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("Metrics server shutdown failed", "error", err.Error())
	}
}

// writeReport evaluates m on the test split and writes tables, plots and the model.
func writeReport(cfg *config.Config, dir string, m *nn.Sequential, history *nn.History, data *splits, out io.Writer, log logger.Logger) (*evaluation.Report, error) {
	rep, err := evaluation.Evaluate(m, data.test.Features, data.test.Labels, dataset.Classes)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(out, "Test set evaluation")
	report.ClassStatsTable(out, rep)
	report.ConfusionTable(out, rep)

	w, err := report.NewWriter(dir)
	if err != nil {
		return nil, err
	}
	if _, err := w.ConfusionCSV(rep); err != nil {
		return nil, err
	}
	if err := saveModel(filepath.Join(dir, BestModelFile), m); err != nil {
		return nil, err
	}

	if cfg.Report.Plots {
		if history != nil {
			if _, err := w.TrainingCurves(history); err != nil {
				return nil, err
			}
		}
		if _, err := w.ConfusionHeatmap(rep); err != nil {
			return nil, err
		}
		points, err := evaluation.SpatialPoints(rep, data.test.Coords)
		if err != nil {
			return nil, err
		}
		if _, err := w.Maps(points, len(dataset.Classes)); err != nil {
			return nil, err
		}
	}
	log.Info("Report written", "dir", dir, "accuracy", rep.Accuracy)
	return rep, nil
}

func saveModel(path string, m *nn.Sequential) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := m.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func loadModel(path string) (*nn.Sequential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return nn.ReadJSON(f)
}

func fitOptions(cfg *config.Config, data *splits, seed int64, cb ...nn.Callback) nn.FitOptions {
	return nn.FitOptions{
		Epochs:      cfg.Training.Epochs,
		BatchSize:   cfg.Training.BatchSize,
		Shuffle:     cfg.Training.Shuffle,
		Seed:        seed,
		ValidationX: data.validation.Features,
		ValidationY: data.validation.Labels,
		Callbacks:   cb,
	}
}

func newMonitor(cfg *config.Config) *earlystop.Monitor {
	return earlystop.New(earlystop.FromConfig(cfg.EarlyStopping))
}
