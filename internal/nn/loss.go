package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Loss scores predicted class probabilities against one-hot targets.
type Loss interface {
	Name() string
	// Compute returns the mean loss over rows.
	Compute(yTrue, yPred *mat.Dense) float64
	// Gradient returns dL/dyPred for the mean loss.
	Gradient(yTrue, yPred *mat.Dense) *mat.Dense
}

const probEpsilon = 1e-7

// FocalCrossEntropy is categorical focal cross-entropy:
// sum_k alpha * (1-p_k)^gamma * -y_k*log(p_k), averaged over rows.
// Gamma 0 with alpha 1 is plain categorical cross-entropy.
type FocalCrossEntropy struct {
	Alpha float64
	Gamma float64
}

// NewFocalCrossEntropy returns the loss with the usual defaults (alpha 0.25, gamma 2).
func NewFocalCrossEntropy() FocalCrossEntropy {
	return FocalCrossEntropy{Alpha: 0.25, Gamma: 2.0}
}

func (FocalCrossEntropy) Name() string { return "categorical_focal_crossentropy" }

func (l FocalCrossEntropy) Compute(yTrue, yPred *mat.Dense) float64 {
	r, c := yPred.Dims()
	if r == 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < r; i++ {
		sum := rowSum(yPred.RawRowView(i))
		for k := 0; k < c; k++ {
			y := yTrue.At(i, k)
			if y == 0 {
				continue
			}
			p := clipProb(yPred.At(i, k) / sum)
			total += -l.Alpha * math.Pow(1-p, l.Gamma) * y * math.Log(p)
		}
	}
	return total / float64(r)
}

func (l FocalCrossEntropy) Gradient(yTrue, yPred *mat.Dense) *mat.Dense {
	r, c := yPred.Dims()
	grad := mat.NewDense(r, c, nil)
	n := float64(r)
	for i := 0; i < r; i++ {
		sum := rowSum(yPred.RawRowView(i))
		for k := 0; k < c; k++ {
			y := yTrue.At(i, k)
			if y == 0 {
				continue
			}
			raw := yPred.At(i, k) / sum
			if raw < probEpsilon || raw > 1-probEpsilon {
				continue
			}
			p := raw
			d := -math.Pow(1-p, l.Gamma) / p
			if l.Gamma != 0 {
				d += l.Gamma * math.Pow(1-p, l.Gamma-1) * math.Log(p)
			}
			// rows come out of softmax so sum is 1 and the normalization term vanishes
			grad.Set(i, k, l.Alpha*y*d/n)
		}
	}
	return grad
}

func clipProb(p float64) float64 {
	return math.Max(probEpsilon, math.Min(1-probEpsilon, p))
}

func rowSum(row []float64) float64 {
	s := 0.0
	for _, v := range row {
		s += v
	}
	return s
}
