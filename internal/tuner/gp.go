package tuner

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// lengthScaleGrid is searched for the length scale with the highest log marginal likelihood.
var lengthScaleGrid = []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1, 1.5, 2, 3}

// gaussianProcess is a GP regressor with a unit-amplitude Matern 5/2 kernel
// over normalized targets.
type gaussianProcess struct {
	alpha       float64
	lengthScale float64
	lml         float64

	x       [][]float64
	yMean   float64
	yStd    float64
	chol    mat.Cholesky
	weights *mat.VecDense
}

func matern52(a, b []float64, lengthScale float64) float64 {
	s := math.Sqrt(5) * floats.Distance(a, b, 2) / lengthScale
	return (1 + s + s*s/3) * math.Exp(-s)
}

func newGaussianProcess(alpha float64) *gaussianProcess {
	return &gaussianProcess{alpha: alpha}
}

// fit conditions the process on (x, y), choosing the length scale from the grid.
func (gp *gaussianProcess) fit(x [][]float64, y []float64) error {
	n := len(x)
	if n == 0 || n != len(y) {
		return fmt.Errorf("gp needs matching non-empty observations, got %d points and %d targets", n, len(y))
	}

	mean, std := stat.MeanStdDev(y, nil)
	if !(std > 0) || math.IsNaN(std) {
		std = 1
	}
	yn := mat.NewVecDense(n, nil)
	for i, v := range y {
		yn.SetVec(i, (v-mean)/std)
	}

	bestLML := math.Inf(-1)
	found := false
	for _, l := range lengthScaleGrid {
		k := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v := matern52(x[i], x[j], l)
				if i == j {
					v += gp.alpha
				}
				k.SetSym(i, j, v)
			}
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(k); !ok {
			continue
		}
		w := mat.NewVecDense(n, nil)
		if err := chol.SolveVecTo(w, yn); err != nil {
			continue
		}
		lml := -0.5*mat.Dot(yn, w) - 0.5*chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi)
		if math.IsNaN(lml) || lml <= bestLML {
			continue
		}

		bestLML = lml
		found = true
		gp.lengthScale = l
		gp.lml = lml
		gp.chol = chol
		gp.weights = w
	}
	if !found {
		return fmt.Errorf("kernel matrix is not positive definite for any length scale")
	}

	gp.x = x
	gp.yMean = mean
	gp.yStd = std
	return nil
}

// predict returns the posterior mean and standard deviation at p in target units.
func (gp *gaussianProcess) predict(p []float64) (mu, sigma float64) {
	n := len(gp.x)
	kStar := mat.NewVecDense(n, nil)
	for i, xi := range gp.x {
		kStar.SetVec(i, matern52(p, xi, gp.lengthScale))
	}
	mu = mat.Dot(kStar, gp.weights)

	v := mat.NewVecDense(n, nil)
	variance := 1.0
	if err := gp.chol.SolveVecTo(v, kStar); err == nil {
		variance -= mat.Dot(kStar, v)
	}
	if variance < 0 {
		variance = 0
	}
	return mu*gp.yStd + gp.yMean, math.Sqrt(variance) * gp.yStd
}
