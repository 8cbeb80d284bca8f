package tuner

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/optimize"

	"phenotune/internal/config"
	"phenotune/internal/errors"
	"phenotune/internal/hyperparams"
)

// Proposal sources.
const (
	SourceRandom         = "random"
	SourceBayesian       = "bayesian"
	SourceRandomFallback = "random_fallback"
)

// OracleConfig 贝叶斯优化参数
type OracleConfig struct {
	NumInitialPoints int
	Alpha            float64
	Beta             float64
	MaxCollisions    int
	NumRestarts      int
	Seed             int64
}

// OracleConfigFromSearch extracts the oracle settings.
func OracleConfigFromSearch(s config.SearchConfig) OracleConfig {
	return OracleConfig{
		NumInitialPoints: s.NumInitialPoints,
		Alpha:            s.Alpha,
		Beta:             s.Beta,
		MaxCollisions:    s.MaxCollisions,
		NumRestarts:      s.NumRestarts,
		Seed:             s.Seed,
	}
}

// Oracle proposes assignments: uniformly at random until NumInitialPoints trials
// have completed, then by minimizing the lower confidence bound mu - Beta*sigma
// of a Gaussian-process surrogate fitted to the completed trials.
type Oracle struct {
	space *hyperparams.Space
	cfg   OracleConfig
	rng   *rand.Rand

	seen map[string]bool
	xs   [][]float64
	ys   []float64
}

// NewOracle creates an oracle over space.
func NewOracle(space *hyperparams.Space, cfg OracleConfig) *Oracle {
	if cfg.MaxCollisions <= 0 {
		cfg.MaxCollisions = 20
	}
	if cfg.NumRestarts <= 0 {
		cfg.NumRestarts = 20
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = 1e-4
	}
	return &Oracle{
		space: space,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		seen:  make(map[string]bool),
	}
}

// Completed returns the number of observations the surrogate is fitted on.
func (o *Oracle) Completed() int {
	return len(o.ys)
}

// Propose returns the next unseen assignment and where it came from.
// It fails with SEARCH_SPACE_EXHAUSTED when no unseen assignment can be found.
func (o *Oracle) Propose() (hyperparams.Assignment, string, error) {
	if len(o.ys) < o.cfg.NumInitialPoints || len(o.ys) < 2 {
		a, err := o.random()
		return a, SourceRandom, err
	}

	a, ok := o.bayesian()
	if ok {
		o.seen[a.Key()] = true
		return a, SourceBayesian, nil
	}
	a, err := o.random()
	return a, SourceRandomFallback, err
}

// Observe informs the oracle of a finished trial. Failed trials are remembered
// for duplicate detection only.
func (o *Oracle) Observe(a hyperparams.Assignment, objective float64, completed bool) {
	o.seen[a.Key()] = true
	if !completed || math.IsNaN(objective) || math.IsInf(objective, 0) {
		return
	}
	x, err := o.space.Encode(a)
	if err != nil {
		return
	}
	o.xs = append(o.xs, x)
	o.ys = append(o.ys, objective)
}

func (o *Oracle) random() (hyperparams.Assignment, error) {
	for i := 0; i < o.cfg.MaxCollisions; i++ {
		a := o.space.Sample(o.rng)
		if key := a.Key(); !o.seen[key] {
			o.seen[key] = true
			return a, nil
		}
	}
	return nil, errors.NewAppErrorWithDetails(errors.ErrCodeSpaceExhausted,
		"no unseen hyperparameters left", "collision limit reached", nil).
		WithContext("max_collisions", o.cfg.MaxCollisions)
}

// bayesian minimizes the acquisition from NumRestarts random starts, each
// refined by Nelder-Mead clipped to the unit cube.
func (o *Oracle) bayesian() (hyperparams.Assignment, bool) {
	gp := newGaussianProcess(o.cfg.Alpha)
	if err := gp.fit(o.xs, o.ys); err != nil {
		return nil, false
	}

	dim := o.space.Dim()
	acquisition := func(x []float64) float64 {
		mu, sigma := gp.predict(clipUnit(x))
		return mu - o.cfg.Beta*sigma
	}

	var bestX []float64
	bestF := math.Inf(1)
	for r := 0; r < o.cfg.NumRestarts; r++ {
		start := make([]float64, dim)
		for i := range start {
			start[i] = o.rng.Float64()
		}
		x, f := start, acquisition(start)

		result, err := optimize.Minimize(
			optimize.Problem{Func: acquisition},
			start,
			&optimize.Settings{FuncEvaluations: 50 * dim},
			&optimize.NelderMead{},
		)
		if result != nil && err == nil && !math.IsNaN(result.F) && result.F < f {
			x, f = clipUnit(result.X), result.F
		}
		if f < bestF {
			bestX, bestF = x, f
		}
	}
	if bestX == nil {
		return nil, false
	}

	a := o.space.Decode(bestX)
	if o.seen[a.Key()] {
		return nil, false
	}
	return a, true
}

func clipUnit(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Max(0, math.Min(1, v))
	}
	return out
}
