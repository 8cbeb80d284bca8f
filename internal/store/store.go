// Package store persists trial records so a search can be inspected after it ends.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"phenotune/internal/config"
	"phenotune/internal/hyperparams"
)

// Float is a float64 whose non-finite values encode as JSON null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Floats converts a float64 series.
func Floats(in []float64) []Float {
	out := make([]Float, len(in))
	for i, v := range in {
		out[i] = Float(v)
	}
	return out
}

// Trial is the persisted form of one trial.
type Trial struct {
	RunID           string                 `json:"run_id"`
	TrialID         string                 `json:"trial_id"`
	Index           int                    `json:"index"`
	Status          string                 `json:"status"`
	Source          string                 `json:"source"`
	Hyperparameters hyperparams.Assignment `json:"hyperparameters"`
	ValLoss         Float                  `json:"val_loss"`
	ValAccuracy     Float                  `json:"val_accuracy"`
	BestEpoch       int                    `json:"best_epoch"`
	StoppedEpoch    int                    `json:"stopped_epoch"`
	Epochs          int                    `json:"epochs"`
	Attempts        int                    `json:"attempts"`
	ParamCount      int                    `json:"param_count"`
	Error           string                 `json:"error,omitempty"`
	History         map[string][]Float     `json:"history,omitempty"`
	StartedAt       time.Time              `json:"started_at"`
	DurationMS      int64                  `json:"duration_ms"`
}

// Completed reports whether the trial produced an objective.
func (t *Trial) Completed() bool {
	return t.Status == "completed"
}

// Store persists trials of search runs.
type Store interface {
	SaveTrial(ctx context.Context, t *Trial) error
	LoadTrials(ctx context.Context, runID string) ([]*Trial, error)
	Close() error
}

// Best returns the completed trial with the lowest validation loss, first in index order on ties.
func Best(trials []*Trial) (*Trial, bool) {
	var best *Trial
	for _, t := range sortedByIndex(trials) {
		if !t.Completed() || math.IsNaN(float64(t.ValLoss)) {
			continue
		}
		if best == nil || t.ValLoss < best.ValLoss {
			best = t
		}
	}
	return best, best != nil
}

func sortedByIndex(trials []*Trial) []*Trial {
	out := append([]*Trial(nil), trials...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Open creates the store selected by the configuration. Backend "none" returns nil.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		fs, err := NewFileStore(cfg.Directory)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "postgres":
		ps, err := NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return ps, nil
	case "redis":
		rs, err := NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
