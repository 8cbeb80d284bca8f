package earlystop

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"phenotune/internal/config"
	"phenotune/internal/nn"
)

func run(m *Monitor, values []float64) (stopAt int) {
	for epoch, v := range values {
		if m.Observe(epoch, v, nil) {
			return epoch
		}
	}
	return -1
}

func TestStopsAtBestPlusPatiencePlusOne(t *testing.T) {
	tests := []struct {
		name     string
		patience int
		values   []float64
		best     int
		stop     int
	}{
		{"monotone worse after first", 2, []float64{1, 2, 3, 4, 5, 6}, 0, 3},
		{"improves then plateaus", 2, []float64{5, 4, 3, 3, 3, 3, 3}, 2, 5},
		{"patience zero", 0, []float64{3, 2, 2.5}, 1, 2},
		{"recovers before patience", 2, []float64{3, 4, 4, 2, 5, 5, 5}, 3, 6},
		{"never stops", 2, []float64{5, 4, 3, 2, 1}, 4, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(Config{Monitor: nn.LogValLoss, Patience: tt.patience})
			stop := run(m, tt.values)
			_, best := m.Best()
			assert.Equal(t, tt.best, best)
			assert.Equal(t, tt.stop, stop)
			if stop >= 0 {
				assert.Equal(t, best+tt.patience+1, stop)
				assert.Equal(t, Stopped, m.Phase())
			}
		})
	}
}

func TestEqualValueIsNotImprovement(t *testing.T) {
	m := New(Config{Patience: 1})
	m.Observe(0, 1.0, nil)
	m.Observe(1, 1.0, nil)
	assert.Equal(t, Degraded, m.Phase())
	assert.Equal(t, 1, m.Wait())
}

func TestMinDelta(t *testing.T) {
	m := New(Config{Patience: 5, MinDelta: 0.1})
	m.Observe(0, 1.0, nil)
	m.Observe(1, 0.95, nil)
	best, epoch := m.Best()
	assert.Equal(t, 1.0, best)
	assert.Equal(t, 0, epoch)

	m.Observe(2, 0.85, nil)
	_, epoch = m.Best()
	assert.Equal(t, 2, epoch)
	assert.Equal(t, Observing, m.Phase())
}

func TestNonFiniteCountsAsNotImproved(t *testing.T) {
	m := New(Config{Patience: 1})
	assert.False(t, m.Observe(0, math.NaN(), nil))
	assert.Equal(t, 1, m.Wait())
	assert.True(t, m.Observe(1, math.Inf(-1), nil))
	_, epoch := m.Best()
	assert.Equal(t, -1, epoch)
}

func TestStartFromEpochAndBaseline(t *testing.T) {
	m := New(Config{Patience: 0, StartFromEpoch: 2})
	assert.False(t, m.Observe(0, 10, nil))
	assert.False(t, m.Observe(1, 20, nil))
	assert.Equal(t, Observing, m.Phase())

	baseline := 0.5
	m = New(Config{Patience: 0, Baseline: &baseline})
	assert.True(t, m.Observe(0, 0.6, nil))
}

func TestMaximizeMode(t *testing.T) {
	m := New(FromConfig(config.EarlyStoppingConfig{Monitor: nn.LogValAccuracy, Mode: "max", Patience: 1}))
	m.Observe(0, 0.5, nil)
	m.Observe(1, 0.7, nil)
	assert.False(t, m.Observe(2, 0.6, nil))
	assert.True(t, m.Observe(3, 0.6, nil))
	_, epoch := m.Best()
	assert.Equal(t, 1, epoch)
}

func TestResetClearsState(t *testing.T) {
	m := New(Config{Patience: 0})
	run(m, []float64{1, 2})
	require.Equal(t, Stopped, m.Phase())
	m.Reset()
	assert.Equal(t, Observing, m.Phase())
	assert.Equal(t, -1, m.StoppedEpoch())
}

type scripted struct {
	values []float64
	seen   [][][]float64
}

func (s *scripted) OnTrainBegin(*nn.Sequential) {}

func (s *scripted) OnEpochEnd(m *nn.Sequential, epoch int, logs nn.Logs) bool {
	logs[nn.LogValLoss] = s.values[epoch]
	s.seen = append(s.seen, m.Weights())
	return false
}

func (s *scripted) OnTrainEnd(*nn.Sequential) {}

func fitWithScript(t *testing.T, values []float64, epochs int) (*nn.Sequential, *scripted, *Monitor, *nn.History) {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	model := nn.NewSequential(2).Add(3, nn.Tanh, rng).Add(2, nn.Softmax, rng).
		Compile(nn.NewAdam(0.05), nn.NewFocalCrossEntropy())

	x := mat.NewDense(8, 2, nil)
	y := mat.NewDense(8, 2, nil)
	for i := 0; i < 8; i++ {
		x.Set(i, 0, float64(i%2))
		x.Set(i, 1, rng.Float64())
		y.Set(i, i%2, 1)
	}

	script := &scripted{values: values}
	monitor := New(DefaultConfig())
	history, err := model.Fit(context.Background(), x, y, nn.FitOptions{
		Epochs:    epochs,
		BatchSize: 4,
		Callbacks: []nn.Callback{script, monitor},
	})
	require.NoError(t, err)
	return model, script, monitor, history
}

func TestRestoresBestWeightsOnEarlyStop(t *testing.T) {
	model, script, monitor, history := fitWithScript(t, []float64{0.9, 0.5, 0.7, 0.8, 0.9, 1, 1, 1}, 8)

	assert.Equal(t, 5, history.Epochs())
	assert.Equal(t, 4, monitor.StoppedEpoch())
	assert.True(t, monitor.Restored())
	assert.Equal(t, script.seen[1], model.Weights())
}

func TestRestoresBestWeightsAtEpochCap(t *testing.T) {
	model, script, monitor, history := fitWithScript(t, []float64{0.9, 0.4, 0.6, 0.7}, 4)

	assert.Equal(t, 4, history.Epochs())
	assert.Equal(t, -1, monitor.StoppedEpoch())
	assert.True(t, monitor.Restored())
	assert.Equal(t, script.seen[1], model.Weights())
	assert.NotEqual(t, script.seen[3], model.Weights())
}
