package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dense is a fully connected layer: a = act(x·W + b).
type Dense struct {
	In, Out    int
	Weights    *mat.Dense // In×Out
	Bias       []float64
	Activation Activation

	// forward caches for back-propagation
	x, z, a *mat.Dense
	dW      *mat.Dense
	dB      []float64
}

// NewDense creates a layer with Glorot-uniform weights and zero bias.
func NewDense(in, out int, act Activation, rng *rand.Rand) *Dense {
	limit := math.Sqrt(6 / float64(in+out))
	data := make([]float64, in*out)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return &Dense{
		In:         in,
		Out:        out,
		Weights:    mat.NewDense(in, out, data),
		Bias:       make([]float64, out),
		Activation: act,
	}
}

// ParamCount returns the number of trainable parameters.
func (d *Dense) ParamCount() int {
	return d.In*d.Out + d.Out
}

func (d *Dense) forward(x *mat.Dense, train bool) *mat.Dense {
	r, _ := x.Dims()
	z := mat.NewDense(r, d.Out, nil)
	z.Mul(x, d.Weights)
	for i := 0; i < r; i++ {
		row := z.RawRowView(i)
		for j := range row {
			row[j] += d.Bias[j]
		}
	}
	a := mat.DenseCopyOf(z)
	for i := 0; i < r; i++ {
		d.Activation.Forward(a.RawRowView(i))
	}
	if train {
		d.x, d.z, d.a = x, z, a
	}
	return a
}

// backward consumes dL/da and returns dL/dx, storing the parameter gradients.
func (d *Dense) backward(gradA *mat.Dense) *mat.Dense {
	r, _ := gradA.Dims()
	g := mat.DenseCopyOf(gradA)
	for i := 0; i < r; i++ {
		d.Activation.Backward(d.z.RawRowView(i), d.a.RawRowView(i), g.RawRowView(i))
	}

	d.dW = mat.NewDense(d.In, d.Out, nil)
	d.dW.Mul(d.x.T(), g)

	d.dB = make([]float64, d.Out)
	for i := 0; i < r; i++ {
		row := g.RawRowView(i)
		for j := range row {
			d.dB[j] += row[j]
		}
	}

	dx := mat.NewDense(r, d.In, nil)
	dx.Mul(g, d.Weights.T())
	return dx
}

func (d *Dense) params() [][]float64 {
	return [][]float64{d.Weights.RawMatrix().Data, d.Bias}
}

func (d *Dense) grads() [][]float64 {
	return [][]float64{d.dW.RawMatrix().Data, d.dB}
}
