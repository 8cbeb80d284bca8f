package tuner

import (
	"fmt"
	"math"
	"time"

	"phenotune/internal/hyperparams"
	"phenotune/internal/model"
	"phenotune/internal/nn"
	"phenotune/internal/store"
)

// TrialStatus represents the status of a trial
type TrialStatus string

const (
	TrialStatusRunning   TrialStatus = "running"
	TrialStatusCompleted TrialStatus = "completed"
	TrialStatusFailed    TrialStatus = "failed"
)

// TrialRecord is the outcome of one trial. It is not modified after the trial ends.
type TrialRecord struct {
	ID           string
	Index        int
	Source       string
	Assignment   hyperparams.Assignment
	Status       TrialStatus
	Model        *nn.Sequential
	Topology     model.Topology
	ValLoss      float64
	ValAccuracy  float64
	History      *nn.History
	BestEpoch    int
	StoppedEpoch int
	Attempts     int
	Err          error
	StartedAt    time.Time
	Duration     time.Duration
}

// TrialID formats the identifier of the trial at index.
func TrialID(index int) string {
	return fmt.Sprintf("trial-%04d", index)
}

// Completed reports whether the trial produced an objective.
func (r *TrialRecord) Completed() bool {
	return r.Status == TrialStatusCompleted
}

// Epochs returns the number of epochs trained by the successful attempt.
func (r *TrialRecord) Epochs() int {
	if r.History == nil {
		return 0
	}
	return r.History.Epochs()
}

// Document converts the record into its persisted form.
func (r *TrialRecord) Document(runID string) *store.Trial {
	doc := &store.Trial{
		RunID:           runID,
		TrialID:         r.ID,
		Index:           r.Index,
		Status:          string(r.Status),
		Source:          r.Source,
		Hyperparameters: r.Assignment.Clone(),
		ValLoss:         store.Float(r.ValLoss),
		ValAccuracy:     store.Float(r.ValAccuracy),
		BestEpoch:       r.BestEpoch,
		StoppedEpoch:    r.StoppedEpoch,
		Epochs:          r.Epochs(),
		Attempts:        r.Attempts,
		StartedAt:       r.StartedAt,
		DurationMS:      r.Duration.Milliseconds(),
	}
	if r.Model != nil {
		doc.ParamCount = r.Model.ParamCount()
	}
	if r.Err != nil {
		doc.Error = r.Err.Error()
	}
	if r.History != nil {
		doc.History = map[string][]store.Float{
			nn.LogLoss:        store.Floats(r.History.Loss),
			nn.LogAccuracy:    store.Floats(r.History.Accuracy),
			nn.LogValLoss:     store.Floats(r.History.ValLoss),
			nn.LogValAccuracy: store.Floats(r.History.ValAccuracy),
		}
	}
	return doc
}

// bestValidationEpoch returns the epoch with the lowest finite val_loss, or -1.
func bestValidationEpoch(h *nn.History) int {
	best := -1
	for i, v := range h.ValLoss {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if best < 0 || v < h.ValLoss[best] {
			best = i
		}
	}
	return best
}
