package tuner

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"phenotune/internal/config"
	"phenotune/internal/earlystop"
	"phenotune/internal/errors"
	"phenotune/internal/hyperparams"
	"phenotune/internal/logger"
	"phenotune/internal/metrics"
	"phenotune/internal/model"
	"phenotune/internal/nn"
	"phenotune/internal/store"
)

// ModelBuilder returns a freshly compiled model for an assignment.
type ModelBuilder interface {
	Build(a hyperparams.Assignment, seed int64) (*nn.Sequential, model.Topology, error)
}

// Options configures a Tuner. Store, Metrics and Logger are optional.
type Options struct {
	RunID         string
	Search        config.SearchConfig
	Training      config.TrainingConfig
	EarlyStopping earlystop.Config
	Space         *hyperparams.Space
	Builder       ModelBuilder
	Store         store.Store
	Metrics       *metrics.SearchMetrics
	Logger        logger.Logger
}

// Data holds the training and validation partitions.
type Data struct {
	TrainX, TrainY *mat.Dense
	ValX, ValY     *mat.Dense
}

// Tuner runs trials sequentially, feeding each result back to the oracle
// before the next proposal.
type Tuner struct {
	opts   Options
	oracle *Oracle
	log    logger.Logger
	perf   *logger.PerformanceLogger

	mu                  sync.RWMutex
	trials              []*TrialRecord
	consecutiveFailures int
}

// New validates the options and creates a tuner.
func New(opts Options) (*Tuner, error) {
	if opts.Space == nil {
		return nil, errors.Configuration("tuner needs a search space")
	}
	if err := opts.Space.Validate(); err != nil {
		return nil, err
	}
	if opts.Builder == nil {
		return nil, errors.Configuration("tuner needs a model builder")
	}
	if opts.Search.MaxTrials <= 0 {
		return nil, errors.Configuration("max_trials must be positive, got %d", opts.Search.MaxTrials)
	}
	if opts.Search.MaxRetriesPerTrial < 0 {
		return nil, errors.Configuration("max_retries_per_trial must be non-negative, got %d", opts.Search.MaxRetriesPerTrial)
	}
	if opts.Search.MaxConsecutiveFailedTrials <= 0 {
		opts.Search.MaxConsecutiveFailedTrials = 3
	}
	if opts.Training.Epochs <= 0 || opts.Training.BatchSize <= 0 {
		return nil, errors.Configuration("epochs and batch_size must be positive, got %d and %d",
			opts.Training.Epochs, opts.Training.BatchSize)
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetGlobalLogger()
	}

	log := opts.Logger.WithField("run_id", opts.RunID)
	return &Tuner{
		opts:   opts,
		oracle: NewOracle(opts.Space, OracleConfigFromSearch(opts.Search)),
		log:    log,
		perf:   logger.NewPerformanceLogger(log, opts.Training.MaxTrialDuration/2, opts.Training.MaxTrialDuration),
	}, nil
}

// RunID returns the identifier of this search run.
func (t *Tuner) RunID() string {
	return t.opts.RunID
}

// Search runs trials until MaxTrials is reached, the space is exhausted, ctx is
// cancelled, or MaxConsecutiveFailedTrials trials in a row fail, in which case it
// returns a SEARCH_ABORTED error.
func (t *Tuner) Search(ctx context.Context, data Data) error {
	if data.TrainX == nil || data.TrainY == nil {
		return errors.Configuration("training partition is required")
	}
	if data.ValX == nil || data.ValY == nil {
		return errors.Configuration("validation partition is required")
	}

	ctx = logger.ContextWithRunID(ctx, t.opts.RunID)
	start := time.Now()
	t.log.Info("Starting hyperparameter search",
		"max_trials", t.opts.Search.MaxTrials,
		"num_initial_points", t.opts.Search.NumInitialPoints,
		"seed", t.opts.Search.Seed)

	for index := t.trialCount(); index < t.opts.Search.MaxTrials; index++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		a, source, err := t.oracle.Propose()
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeSpaceExhausted) {
				t.log.Warn("Search space exhausted, ending search", "trials", index, "error", err.Error())
				break
			}
			return err
		}
		t.opts.Metrics.RecordProposal(source)

		rec, err := t.runTrial(ctx, index, a, source, data)
		if err != nil {
			return err
		}

		t.oracle.Observe(a, rec.ValLoss, rec.Completed())
		t.record(ctx, rec)

		if rec.Completed() {
			t.consecutiveFailures = 0
		} else {
			t.consecutiveFailures++
		}
		t.opts.Metrics.SetConsecutiveFailures(t.consecutiveFailures)

		if t.consecutiveFailures >= t.opts.Search.MaxConsecutiveFailedTrials {
			t.opts.Metrics.RecordAbort()
			t.log.Error("Aborting search after consecutive failed trials",
				"consecutive_failures", t.consecutiveFailures, "last_trial", rec.ID)
			return errors.NewAppErrorWithDetails(errors.ErrCodeSearchAborted, "search aborted",
				fmt.Sprintf("%d consecutive failed trials", t.consecutiveFailures), rec.Err).
				WithContext("consecutive_failures", t.consecutiveFailures).
				WithContext("last_trial", rec.ID)
		}
	}

	completed := len(t.Ranking())
	t.log.Info("Search finished",
		"trials", t.trialCount(),
		"completed", completed,
		"duration", time.Since(start).String())
	return nil
}

func (t *Tuner) runTrial(ctx context.Context, index int, a hyperparams.Assignment, source string, data Data) (*TrialRecord, error) {
	rec := &TrialRecord{
		ID:           TrialID(index),
		Index:        index,
		Source:       source,
		Assignment:   a,
		Status:       TrialStatusRunning,
		ValLoss:      math.NaN(),
		ValAccuracy:  math.NaN(),
		BestEpoch:    -1,
		StoppedEpoch: -1,
		StartedAt:    time.Now(),
	}
	ctx = logger.ContextWithTrialID(ctx, rec.ID)
	log := t.log.WithContext(ctx)
	log.Info("Starting trial", "source", source, "hyperparameters", a.String())

	attempts := 1 + t.opts.Search.MaxRetriesPerTrial
	for attempt := 0; attempt < attempts; attempt++ {
		rec.Attempts++
		err := t.attempt(ctx, rec, attempt, data)
		if err == nil {
			rec.Status = TrialStatusCompleted
			rec.Err = nil
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		rec.Err = err
		rec.Status = TrialStatusFailed
		log.Warn("Trial attempt failed", "attempt", attempt+1, "max_attempts", attempts, "error", err.Error())
		if errors.IsCode(err, errors.ErrCodeConfiguration) {
			break
		}
	}
	rec.Duration = time.Since(rec.StartedAt)

	if rec.Completed() {
		log.Info("Trial completed",
			"val_loss", rec.ValLoss,
			"val_accuracy", rec.ValAccuracy,
			"best_epoch", rec.BestEpoch,
			"epochs", rec.Epochs())
	}
	t.perf.LogPerformance("trial", rec.Duration, map[string]interface{}{
		"trial_id": rec.ID,
		"status":   string(rec.Status),
	})
	return rec, nil
}

// attempt builds and fits one model. Divergence and timeouts come back as
// TRIAL_DIVERGENCE and TRIAL_TIMEOUT errors.
func (t *Tuner) attempt(ctx context.Context, rec *TrialRecord, attempt int, data Data) error {
	trialCtx := ctx
	if d := t.opts.Training.MaxTrialDuration; d > 0 {
		var cancel context.CancelFunc
		trialCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	seed := t.opts.Search.Seed + int64(rec.Index)*1009 + int64(attempt)
	m, topo, err := t.opts.Builder.Build(rec.Assignment, seed)
	if err != nil {
		return err
	}

	monitor := earlystop.New(t.opts.EarlyStopping)
	history, err := m.Fit(trialCtx, data.TrainX, data.TrainY, nn.FitOptions{
		Epochs:      t.opts.Training.Epochs,
		BatchSize:   t.opts.Training.BatchSize,
		Shuffle:     t.opts.Training.Shuffle,
		Seed:        seed,
		ValidationX: data.ValX,
		ValidationY: data.ValY,
		Callbacks:   []nn.Callback{monitor},
	})
	if err != nil {
		switch {
		case stderrors.Is(err, nn.ErrNonFinite):
			return errors.NewAppError(errors.ErrCodeTrialDivergence, "training diverged", err)
		case ctx.Err() != nil:
			return ctx.Err()
		case stderrors.Is(err, context.DeadlineExceeded):
			return errors.NewAppErrorWithDetails(errors.ErrCodeTrialTimeout, "trial exceeded its time limit",
				t.opts.Training.MaxTrialDuration.String(), err)
		default:
			return errors.WrapError(err, errors.ErrCodeInternal, "training failed")
		}
	}

	best := bestValidationEpoch(history)
	if best < 0 {
		return errors.NewAppError(errors.ErrCodeTrialDivergence, "validation loss was never finite", nil)
	}

	rec.Model = m
	rec.Topology = topo
	rec.History = history
	rec.BestEpoch = best
	rec.StoppedEpoch = monitor.StoppedEpoch()
	rec.ValLoss = history.ValLoss[best]
	rec.ValAccuracy = history.ValAccuracy[best]
	return nil
}

func (t *Tuner) record(ctx context.Context, rec *TrialRecord) {
	t.mu.Lock()
	t.trials = append(t.trials, rec)
	t.mu.Unlock()

	best := math.NaN()
	if ranked := t.Ranking(); len(ranked) > 0 {
		best = ranked[0].ValLoss
	}
	t.opts.Metrics.RecordTrial(string(rec.Status), rec.Duration, rec.Epochs(), rec.ValLoss, best)

	if t.opts.Store == nil {
		return
	}
	if err := t.opts.Store.SaveTrial(ctx, rec.Document(t.opts.RunID)); err != nil {
		storeErr := errors.WrapError(err, errors.ErrCodeStore, "failed to persist trial")
		t.log.WithContext(ctx).Warn("Trial not persisted", "trial_id", rec.ID, "error", storeErr.Error())
	}
}

func (t *Tuner) trialCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.trials)
}

// Trials returns all trials in the order they ran.
func (t *Tuner) Trials() []*TrialRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*TrialRecord(nil), t.trials...)
}

// Ranking returns completed trials by ascending validation loss; ties keep trial order.
func (t *Tuner) Ranking() []*TrialRecord {
	var ranked []*TrialRecord
	for _, r := range t.Trials() {
		if r.Completed() {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ValLoss < ranked[j].ValLoss
	})
	return ranked
}

// BestTrials returns up to k top-ranked trials.
func (t *Tuner) BestTrials(k int) []*TrialRecord {
	if k <= 0 {
		return nil
	}
	ranked := t.Ranking()
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

// BestModels returns the trained models of the top k trials, restored to their best epoch.
func (t *Tuner) BestModels(k int) []*nn.Sequential {
	var out []*nn.Sequential
	for _, r := range t.BestTrials(k) {
		out = append(out, r.Model)
	}
	return out
}

// BestHyperparameters returns the assignments of the top k trials.
func (t *Tuner) BestHyperparameters(k int) []hyperparams.Assignment {
	var out []hyperparams.Assignment
	for _, r := range t.BestTrials(k) {
		out = append(out, r.Assignment.Clone())
	}
	return out
}
