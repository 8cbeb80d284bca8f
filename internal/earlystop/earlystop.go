// Package earlystop stops training once a monitored metric stops improving
// and restores the weights of the best epoch.
package earlystop

import (
	"fmt"
	"math"

	"phenotune/internal/config"
	"phenotune/internal/nn"
)

// Phase 监控器状态
type Phase int

const (
	Observing Phase = iota
	Degraded
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Observing:
		return "observing"
	case Degraded:
		return "degraded"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Config 早停配置
type Config struct {
	Monitor            string
	Maximize           bool
	MinDelta           float64
	Patience           int
	RestoreBestWeights bool
	StartFromEpoch     int
	Baseline           *float64
}

// DefaultConfig watches val_loss with patience 2 and restores the best weights.
func DefaultConfig() Config {
	return Config{Monitor: nn.LogValLoss, Patience: 2, RestoreBestWeights: true}
}

// FromConfig converts the YAML section.
func FromConfig(c config.EarlyStoppingConfig) Config {
	return Config{
		Monitor:            c.Monitor,
		Maximize:           c.Mode == "max",
		MinDelta:           c.MinDelta,
		Patience:           c.Patience,
		RestoreBestWeights: c.RestoreBestWeights,
		StartFromEpoch:     c.StartFromEpoch,
		Baseline:           c.Baseline,
	}
}

// Monitor is an nn.Callback. After each epoch the monitored value either improves
// (strictly beyond MinDelta) and resets the wait counter, or increments it;
// once the counter exceeds Patience training stops.
type Monitor struct {
	cfg Config

	phase        Phase
	wait         int
	best         float64
	bestEpoch    int
	bestWeights  [][]float64
	stoppedEpoch int
	restored     bool
}

// New creates a monitor in the Observing phase.
func New(cfg Config) *Monitor {
	if cfg.Monitor == "" {
		cfg.Monitor = nn.LogValLoss
	}
	m := &Monitor{cfg: cfg}
	m.Reset()
	return m
}

// Reset clears all state so the monitor can be reused for another run.
func (m *Monitor) Reset() {
	m.phase = Observing
	m.wait = 0
	m.bestEpoch = -1
	m.bestWeights = nil
	m.stoppedEpoch = -1
	m.restored = false
	switch {
	case m.cfg.Baseline != nil:
		m.best = *m.cfg.Baseline
	case m.cfg.Maximize:
		m.best = math.Inf(-1)
	default:
		m.best = math.Inf(1)
	}
}

// Phase returns the current phase.
func (m *Monitor) Phase() Phase { return m.phase }

// Wait returns the number of consecutive epochs without improvement.
func (m *Monitor) Wait() int { return m.wait }

// Best returns the best monitored value and its epoch, or -1 if nothing improved.
func (m *Monitor) Best() (float64, int) { return m.best, m.bestEpoch }

// StoppedEpoch returns the epoch at which training was stopped, or -1.
func (m *Monitor) StoppedEpoch() int { return m.stoppedEpoch }

// Restored reports whether the best weights were written back at train end.
func (m *Monitor) Restored() bool { return m.restored }

// Observe feeds one epoch's monitored value and reports whether training must stop.
// Non-finite values never count as an improvement.
func (m *Monitor) Observe(epoch int, current float64, snapshot func() [][]float64) bool {
	if m.phase == Stopped {
		return true
	}
	if epoch < m.cfg.StartFromEpoch {
		return false
	}

	if m.improved(current) {
		m.best = current
		m.bestEpoch = epoch
		m.wait = 0
		m.phase = Observing
		if m.cfg.RestoreBestWeights && snapshot != nil {
			m.bestWeights = snapshot()
		}
		return false
	}

	m.wait++
	m.phase = Degraded
	if m.wait > m.cfg.Patience {
		m.phase = Stopped
		m.stoppedEpoch = epoch
		return true
	}
	return false
}

func (m *Monitor) improved(current float64) bool {
	if math.IsNaN(current) || math.IsInf(current, 0) {
		return false
	}
	if m.cfg.Maximize {
		return current > m.best+m.cfg.MinDelta
	}
	return current < m.best-m.cfg.MinDelta
}

// OnTrainBegin implements nn.Callback.
func (m *Monitor) OnTrainBegin(*nn.Sequential) {
	m.Reset()
}

// OnEpochEnd implements nn.Callback. A missing monitored key counts as non-finite.
func (m *Monitor) OnEpochEnd(model *nn.Sequential, epoch int, logs nn.Logs) bool {
	current, ok := logs[m.cfg.Monitor]
	if !ok {
		current = math.NaN()
	}
	return m.Observe(epoch, current, model.Weights)
}

// OnTrainEnd restores the best snapshot, whether training stopped early or hit the epoch cap.
func (m *Monitor) OnTrainEnd(model *nn.Sequential) {
	if !m.cfg.RestoreBestWeights || m.bestWeights == nil {
		return
	}
	if err := model.SetWeights(m.bestWeights); err == nil {
		m.restored = true
	}
}
