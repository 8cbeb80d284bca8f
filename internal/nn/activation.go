package nn

import (
	"fmt"
	"math"
	"sort"
)

const (
	seluAlpha = 1.6732632423543772848170429916717
	seluScale = 1.0507009873554804934193349852946
)

// Activation transforms one row of pre-activations in place and back-propagates through it.
type Activation interface {
	Name() string
	// Forward overwrites row (pre-activations) with activations.
	Forward(row []float64)
	// Backward turns grad (dL/da) into dL/dz in place given z and a = Forward(z).
	Backward(z, a, grad []float64)
}

type elementwise struct {
	name  string
	f     func(z float64) float64
	deriv func(z, a float64) float64
}

func (e elementwise) Name() string { return e.name }

func (e elementwise) Forward(row []float64) {
	for i, z := range row {
		row[i] = e.f(z)
	}
}

func (e elementwise) Backward(z, a, grad []float64) {
	for i := range grad {
		grad[i] *= e.deriv(z[i], a[i])
	}
}

var (
	Linear = elementwise{"linear", func(z float64) float64 { return z }, func(float64, float64) float64 { return 1 }}

	ReLU = elementwise{"relu",
		func(z float64) float64 { return math.Max(0, z) },
		func(z, _ float64) float64 {
			if z > 0 {
				return 1
			}
			return 0
		}}

	Sigmoid = elementwise{"sigmoid",
		func(z float64) float64 { return 1 / (1 + math.Exp(-z)) },
		func(_, a float64) float64 { return a * (1 - a) }}

	Tanh = elementwise{"tanh",
		math.Tanh,
		func(_, a float64) float64 { return 1 - a*a }}

	SELU = elementwise{"selu",
		func(z float64) float64 {
			if z > 0 {
				return seluScale * z
			}
			return seluScale * seluAlpha * (math.Exp(z) - 1)
		},
		func(z, a float64) float64 {
			if z > 0 {
				return seluScale
			}
			return a + seluScale*seluAlpha
		}}

	ELU = elementwise{"elu",
		func(z float64) float64 {
			if z > 0 {
				return z
			}
			return math.Exp(z) - 1
		},
		func(z, a float64) float64 {
			if z > 0 {
				return 1
			}
			return a + 1
		}}
)

type softmax struct{}

// Softmax normalizes each row into a probability distribution.
var Softmax Activation = softmax{}

func (softmax) Name() string { return "softmax" }

func (softmax) Forward(row []float64) {
	peak := math.Inf(-1)
	for _, z := range row {
		if z > peak {
			peak = z
		}
	}
	sum := 0.0
	for i, z := range row {
		row[i] = math.Exp(z - peak)
		sum += row[i]
	}
	for i := range row {
		row[i] /= sum
	}
}

func (softmax) Backward(_, a, grad []float64) {
	dot := 0.0
	for i := range grad {
		dot += grad[i] * a[i]
	}
	for i := range grad {
		grad[i] = a[i] * (grad[i] - dot)
	}
}

var activations = map[string]Activation{
	Linear.Name():  Linear,
	ReLU.Name():    ReLU,
	Sigmoid.Name(): Sigmoid,
	Tanh.Name():    Tanh,
	SELU.Name():    SELU,
	ELU.Name():     ELU,
	Softmax.Name(): Softmax,
}

// ActivationByName looks up a registered activation.
func ActivationByName(name string) (Activation, error) {
	a, ok := activations[name]
	if !ok {
		return nil, fmt.Errorf("unknown activation %q", name)
	}
	return a, nil
}

// ActivationNames lists the registered activations.
func ActivationNames() []string {
	names := make([]string, 0, len(activations))
	for name := range activations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
