package nn

import "math"

// Optimizer applies gradients to flat parameter slices in place.
type Optimizer interface {
	Name() string
	Step(params, grads [][]float64)
}

// Adam implements the Adam update with bias-corrected step size.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	iterations int
	m, v       [][]float64
}

// NewAdam creates Adam with the common defaults for everything but the learning rate.
func NewAdam(learningRate float64) *Adam {
	return &Adam{LearningRate: learningRate, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-7}
}

func (a *Adam) Name() string { return "adam" }

// Iterations returns the number of steps taken.
func (a *Adam) Iterations() int { return a.iterations }

func (a *Adam) Step(params, grads [][]float64) {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, len(p))
			a.v[i] = make([]float64, len(p))
		}
	}
	a.iterations++
	t := float64(a.iterations)
	alpha := a.LearningRate * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))

	for i, p := range params {
		g, m, v := grads[i], a.m[i], a.v[i]
		for j := range p {
			m[j] += (g[j] - m[j]) * (1 - a.Beta1)
			v[j] += (g[j]*g[j] - v[j]) * (1 - a.Beta2)
			p[j] -= alpha * m[j] / (math.Sqrt(v[j]) + a.Epsilon)
		}
	}
}
