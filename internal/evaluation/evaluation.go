// Package evaluation scores a trained classifier on held-out rows.
package evaluation

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"phenotune/internal/errors"
	"phenotune/internal/geo"
)

// Predictor produces one probability row per input row.
type Predictor interface {
	Predict(x *mat.Dense) *mat.Dense
}

// ClassStats summarizes one class of the confusion matrix.
type ClassStats struct {
	Label     string  `json:"label"`
	Support   int     `json:"support"`
	Predicted int     `json:"predicted"`
	Recall    float64 `json:"recall"`
	Precision float64 `json:"precision"`
}

// Report is the outcome of an evaluation. Confusion rows are true classes and
// columns predicted classes.
type Report struct {
	Classes    []string
	Confusion  [][]int
	Normalized [][]float64
	Predicted  []int
	True       []int
	Correct    []bool
	Accuracy   float64
	PerClass   []ClassStats
}

// ArgMax returns the index of the largest value. Ties resolve to the lowest index.
func ArgMax(row []float64) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}

func isOneHot(row []float64) bool {
	ones := 0
	for _, v := range row {
		switch v {
		case 0:
		case 1:
			ones++
		default:
			return false
		}
	}
	return ones == 1
}

// Evaluate predicts x and compares the result against the one-hot labels y.
func Evaluate(p Predictor, x, y *mat.Dense, classes []string) (*Report, error) {
	k := len(classes)
	if k == 0 {
		return nil, errors.EvaluationShape("no classes given")
	}
	xr, _ := x.Dims()
	yr, yc := y.Dims()
	if xr != yr {
		return nil, errors.EvaluationShape("features have %d rows, labels have %d", xr, yr)
	}
	if yc != k {
		return nil, errors.EvaluationShape("labels have %d columns, want %d classes", yc, k)
	}
	if xr == 0 {
		return nil, errors.EvaluationShape("nothing to evaluate")
	}
	for i := 0; i < yr; i++ {
		if !isOneHot(y.RawRowView(i)) {
			return nil, errors.EvaluationShape("label row %d is not one-hot", i)
		}
	}

	pred := p.Predict(x)
	pr, pc := pred.Dims()
	if pr != xr || pc != k {
		return nil, errors.EvaluationShape("predictions are %dx%d, want %dx%d", pr, pc, xr, k)
	}

	predicted := make([]int, xr)
	truth := make([]int, xr)
	for i := 0; i < xr; i++ {
		predicted[i] = ArgMax(pred.RawRowView(i))
		truth[i] = ArgMax(y.RawRowView(i))
	}
	return FromLabels(truth, predicted, classes)
}

// FromLabels builds a report from true and predicted class indices.
func FromLabels(truth, predicted []int, classes []string) (*Report, error) {
	k := len(classes)
	if len(truth) != len(predicted) {
		return nil, errors.EvaluationShape("%d true labels but %d predictions", len(truth), len(predicted))
	}

	r := &Report{
		Classes:   append([]string(nil), classes...),
		Confusion: make([][]int, k),
		Predicted: predicted,
		True:      truth,
		Correct:   make([]bool, len(truth)),
	}
	for i := range r.Confusion {
		r.Confusion[i] = make([]int, k)
	}

	correct := 0
	for i := range truth {
		t, p := truth[i], predicted[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			return nil, errors.EvaluationShape("row %d has class index outside [0,%d)", i, k)
		}
		r.Confusion[t][p]++
		if t == p {
			r.Correct[i] = true
			correct++
		}
	}
	if len(truth) > 0 {
		r.Accuracy = float64(correct) / float64(len(truth))
	}

	r.Normalized = normalizeColumns(r.Confusion)
	r.PerClass = classStats(r.Confusion, classes)
	return r, nil
}

// normalizeColumns divides each column by its sum; empty columns stay zero.
func normalizeColumns(confusion [][]int) [][]float64 {
	k := len(confusion)
	out := make([][]float64, k)
	for i := range out {
		out[i] = make([]float64, k)
	}
	col := make([]float64, k)
	for j := 0; j < k; j++ {
		for i := 0; i < k; i++ {
			col[i] = float64(confusion[i][j])
		}
		total := floats.Sum(col)
		if total == 0 {
			continue
		}
		for i := 0; i < k; i++ {
			out[i][j] = col[i] / total
		}
	}
	return out
}

func classStats(confusion [][]int, classes []string) []ClassStats {
	k := len(classes)
	out := make([]ClassStats, k)
	for c := 0; c < k; c++ {
		s := ClassStats{Label: classes[c]}
		for j := 0; j < k; j++ {
			s.Support += confusion[c][j]
			s.Predicted += confusion[j][c]
		}
		hit := float64(confusion[c][c])
		if s.Support > 0 {
			s.Recall = hit / float64(s.Support)
		}
		if s.Predicted > 0 {
			s.Precision = hit / float64(s.Predicted)
		}
		out[c] = s
	}
	return out
}

// SpatialPoint is one evaluated row placed on the map.
type SpatialPoint struct {
	geo.Coordinate
	True      int
	Predicted int
	Correct   bool
}

// SpatialPoints joins the per-row outcome with the row's location.
func SpatialPoints(r *Report, coords []geo.Coordinate) ([]SpatialPoint, error) {
	if len(coords) != len(r.True) {
		return nil, errors.EvaluationShape("%d coordinates for %d evaluated rows", len(coords), len(r.True))
	}
	out := make([]SpatialPoint, len(coords))
	for i, c := range coords {
		out[i] = SpatialPoint{
			Coordinate: c,
			True:       r.True[i],
			Predicted:  r.Predicted[i],
			Correct:    r.Correct[i],
		}
	}
	return out, nil
}
