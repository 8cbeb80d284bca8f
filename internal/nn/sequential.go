package nn

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNonFinite reports a NaN or infinite training loss.
var ErrNonFinite = stderrors.New("non-finite training loss")

// Sequential is a stack of dense layers trained with a loss and an optimizer.
type Sequential struct {
	InputDim  int
	Layers    []*Dense
	Loss      Loss
	Optimizer Optimizer
}

// NewSequential creates an empty model for inputs of width inputDim.
func NewSequential(inputDim int) *Sequential {
	return &Sequential{InputDim: inputDim}
}

// Add appends a dense layer fed by the previous layer's output.
func (m *Sequential) Add(units int, act Activation, rng *rand.Rand) *Sequential {
	m.Layers = append(m.Layers, NewDense(m.OutputDim(), units, act, rng))
	return m
}

// Compile attaches the optimizer and the loss.
func (m *Sequential) Compile(opt Optimizer, loss Loss) *Sequential {
	m.Optimizer = opt
	m.Loss = loss
	return m
}

// OutputDim is the width of the last layer, or the input width for an empty model.
func (m *Sequential) OutputDim() int {
	if len(m.Layers) == 0 {
		return m.InputDim
	}
	return m.Layers[len(m.Layers)-1].Out
}

// ParamCount returns the number of trainable parameters.
func (m *Sequential) ParamCount() int {
	n := 0
	for _, l := range m.Layers {
		n += l.ParamCount()
	}
	return n
}

// FitOptions controls a training run.
type FitOptions struct {
	Epochs      int
	BatchSize   int
	Shuffle     bool
	Seed        int64
	ValidationX *mat.Dense
	ValidationY *mat.Dense
	Callbacks   []Callback
}

// Fit trains on (x, y) in mini-batches. It checks ctx between batches and
// returns ErrNonFinite when an epoch's training loss is NaN or infinite.
func (m *Sequential) Fit(ctx context.Context, x, y *mat.Dense, opts FitOptions) (*History, error) {
	if m.Loss == nil || m.Optimizer == nil {
		return nil, fmt.Errorf("model is not compiled")
	}
	n, cols := x.Dims()
	if cols != m.InputDim {
		return nil, fmt.Errorf("input has %d columns, model expects %d", cols, m.InputDim)
	}
	if yr, yc := y.Dims(); yr != n || yc != m.OutputDim() {
		return nil, fmt.Errorf("targets are %dx%d, want %dx%d", yr, yc, n, m.OutputDim())
	}
	if n == 0 {
		return nil, fmt.Errorf("training set is empty")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	validate := opts.ValidationX != nil && opts.ValidationY != nil

	rng := rand.New(rand.NewSource(opts.Seed))
	history := &History{}

	for _, cb := range opts.Callbacks {
		cb.OnTrainBegin(m)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if opts.Shuffle {
			rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		var lossSum float64
		var correct int
		for start := 0; start < n; start += opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			end := start + opts.BatchSize
			if end > n {
				end = n
			}
			bx := gatherRows(x, order[start:end])
			by := gatherRows(y, order[start:end])

			pred := m.forward(bx, true)
			batchLoss := m.Loss.Compute(by, pred)
			lossSum += batchLoss * float64(end-start)
			correct += countCorrect(by, pred)

			m.backward(m.Loss.Gradient(by, pred))
			m.Optimizer.Step(m.params(), m.grads())
		}

		logs := Logs{
			LogLoss:     lossSum / float64(n),
			LogAccuracy: float64(correct) / float64(n),
		}
		if math.IsNaN(logs[LogLoss]) || math.IsInf(logs[LogLoss], 0) {
			return history, fmt.Errorf("%w: %v at epoch %d", ErrNonFinite, logs[LogLoss], epoch)
		}
		if validate {
			logs[LogValLoss], logs[LogValAccuracy] = m.Evaluate(opts.ValidationX, opts.ValidationY)
		}
		history.append(logs)

		stop := false
		for _, cb := range opts.Callbacks {
			if cb.OnEpochEnd(m, epoch, logs) {
				stop = true
			}
		}
		if stop {
			break
		}
	}

	for _, cb := range opts.Callbacks {
		cb.OnTrainEnd(m)
	}
	return history, nil
}

// Predict returns class probabilities, one row per input row.
func (m *Sequential) Predict(x *mat.Dense) *mat.Dense {
	return m.forward(x, false)
}

// Evaluate returns the mean loss and categorical accuracy on (x, y).
func (m *Sequential) Evaluate(x, y *mat.Dense) (loss, accuracy float64) {
	if n, _ := x.Dims(); n == 0 {
		return 0, 0
	}
	pred := m.Predict(x)
	n, _ := pred.Dims()
	return m.Loss.Compute(y, pred), float64(countCorrect(y, pred)) / float64(n)
}

// Weights returns a deep copy of all parameters, layer by layer (weights then bias).
func (m *Sequential) Weights() [][]float64 {
	var out [][]float64
	for _, l := range m.Layers {
		for _, p := range l.params() {
			out = append(out, append([]float64(nil), p...))
		}
	}
	return out
}

// SetWeights copies parameters produced by Weights back into the model.
func (m *Sequential) SetWeights(w [][]float64) error {
	params := m.params()
	if len(w) != len(params) {
		return fmt.Errorf("got %d parameter tensors, model has %d", len(w), len(params))
	}
	for i, p := range params {
		if len(w[i]) != len(p) {
			return fmt.Errorf("parameter tensor %d has %d values, want %d", i, len(w[i]), len(p))
		}
	}
	for i, p := range params {
		copy(p, w[i])
	}
	return nil
}

func (m *Sequential) forward(x *mat.Dense, train bool) *mat.Dense {
	out := x
	for _, l := range m.Layers {
		out = l.forward(out, train)
	}
	return out
}

func (m *Sequential) backward(grad *mat.Dense) {
	for i := len(m.Layers) - 1; i >= 0; i-- {
		grad = m.Layers[i].backward(grad)
	}
}

func (m *Sequential) params() [][]float64 {
	var out [][]float64
	for _, l := range m.Layers {
		out = append(out, l.params()...)
	}
	return out
}

func (m *Sequential) grads() [][]float64 {
	var out [][]float64
	for _, l := range m.Layers {
		out = append(out, l.grads()...)
	}
	return out
}

func gatherRows(src *mat.Dense, idx []int) *mat.Dense {
	_, c := src.Dims()
	dst := mat.NewDense(len(idx), c, nil)
	for i, j := range idx {
		copy(dst.RawRowView(i), src.RawRowView(j))
	}
	return dst
}

func countCorrect(yTrue, yPred *mat.Dense) int {
	r, _ := yPred.Dims()
	n := 0
	for i := 0; i < r; i++ {
		if floats.MaxIdx(yTrue.RawRowView(i)) == floats.MaxIdx(yPred.RawRowView(i)) {
			n++
		}
	}
	return n
}
