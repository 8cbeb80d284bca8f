package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"phenotune/internal/config"
	"phenotune/internal/errors"
	"phenotune/internal/geo"
)

// SplitOptions controls how rows are partitioned.
type SplitOptions struct {
	TestFraction       float64
	ValidationFraction float64
	Seed               int64
}

// SplitOptionsFromConfig extracts the split settings.
func SplitOptionsFromConfig(c config.DataConfig) SplitOptions {
	return SplitOptions{
		TestFraction:       c.TestFraction,
		ValidationFraction: c.ValidationFraction,
		Seed:               c.SplitSeed,
	}
}

// Partition holds disjoint row indices.
type Partition struct {
	Train      []int
	Validation []int
	Test       []int
}

// Split shuffles the n rows with the seed and takes the first ceil(n*TestFraction)
// as the test set. The validation set is the trailing ValidationFraction of what remains.
func Split(n int, opts SplitOptions) (Partition, error) {
	if !(opts.TestFraction > 0 && opts.TestFraction < 1) {
		return Partition{}, errors.Configuration("test fraction must be in (0,1), got %g", opts.TestFraction)
	}
	if !(opts.ValidationFraction > 0 && opts.ValidationFraction < 1) {
		return Partition{}, errors.Configuration("validation fraction must be in (0,1), got %g", opts.ValidationFraction)
	}

	nTest := int(math.Ceil(float64(n) * opts.TestFraction))
	nFit := n - nTest
	nTrain := int(float64(nFit) * (1 - opts.ValidationFraction))
	if nTest == 0 || nTrain == 0 || nTrain == nFit {
		return Partition{}, errors.NewAppErrorWithDetails(errors.ErrCodeDataInvalid, "too few rows to split",
			fmt.Sprintf("%d rows give %d train, %d validation, %d test", n, nTrain, nFit-nTrain, nTest), nil)
	}

	perm := rand.New(rand.NewSource(opts.Seed)).Perm(n)
	return Partition{
		Test:       perm[:nTest],
		Train:      perm[nTest : nTest+nTrain],
		Validation: perm[nTest+nTrain:],
	}, nil
}

// Subset copies the given rows into a new dataset.
func (d *Dataset) Subset(idx []int) *Dataset {
	out := &Dataset{
		Coords:  make([]geo.Coordinate, len(idx)),
		Regions: make([]string, len(idx)),
	}
	if len(idx) == 0 {
		return out
	}
	out.Features = mat.NewDense(len(idx), len(FeatureNames), nil)
	out.Labels = mat.NewDense(len(idx), len(Classes), nil)
	for i, row := range idx {
		out.Features.SetRow(i, d.Features.RawRowView(row))
		out.Labels.SetRow(i, d.Labels.RawRowView(row))
		out.Coords[i] = d.Coords[row]
		out.Regions[i] = d.Regions[row]
	}
	return out
}

// ClassFrequency counts the rows of each class, in Classes order.
func (d *Dataset) ClassFrequency() []int {
	counts := make([]int, len(Classes))
	if d.Labels == nil {
		return counts
	}
	for i := 0; i < d.Rows(); i++ {
		counts[floats.MaxIdx(d.Labels.RawRowView(i))]++
	}
	return counts
}
