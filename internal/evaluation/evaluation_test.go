package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"phenotune/internal/errors"
	"phenotune/internal/geo"
)

type fixedPredictor struct {
	out *mat.Dense
}

func (f fixedPredictor) Predict(*mat.Dense) *mat.Dense { return f.out }

func oneHot(labels []int, k int) *mat.Dense {
	m := mat.NewDense(len(labels), k, nil)
	for i, l := range labels {
		m.Set(i, l, 1)
	}
	return m
}

func TestArgMaxTieBreaksToLowestIndex(t *testing.T) {
	assert.Equal(t, 0, ArgMax([]float64{0.4, 0.4, 0.2}))
	assert.Equal(t, 1, ArgMax([]float64{0.2, 0.4, 0.4}))
	assert.Equal(t, 2, ArgMax([]float64{0.1, 0.2, 0.7}))
}

func TestPerfectPredictionsGiveIdentity(t *testing.T) {
	classes := []string{"a", "b", "c"}
	labels := []int{0, 1, 2, 2, 1, 0}
	y := oneHot(labels, 3)
	x := mat.NewDense(len(labels), 2, nil)

	r, err := Evaluate(fixedPredictor{out: y}, x, y, classes)
	require.NoError(t, err)

	assert.Equal(t, 1.0, r.Accuracy)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			assert.Equal(t, want, r.Normalized[i][j])
		}
	}
	for _, c := range r.Correct {
		assert.True(t, c)
	}
}

func TestTwoClassColumnNormalization(t *testing.T) {
	truth := []int{0, 0, 1, 1}
	predicted := []int{0, 1, 1, 1}

	r, err := FromLabels(truth, predicted, []string{"x", "y"})
	require.NoError(t, err)

	assert.Equal(t, [][]int{{1, 1}, {0, 2}}, r.Confusion)
	assert.Equal(t, 1.0, r.Normalized[0][0])
	assert.Equal(t, 0.0, r.Normalized[1][0])
	assert.InDelta(t, 1.0/3, r.Normalized[0][1], 1e-12)
	assert.InDelta(t, 2.0/3, r.Normalized[1][1], 1e-12)
	assert.Equal(t, 0.75, r.Accuracy)

	assert.Equal(t, ClassStats{Label: "x", Support: 2, Predicted: 1, Recall: 0.5, Precision: 1}, r.PerClass[0])
	assert.Equal(t, 2, r.PerClass[1].Support)
	assert.Equal(t, 3, r.PerClass[1].Predicted)
}

func TestEmptyPredictedColumnStaysZero(t *testing.T) {
	r, err := FromLabels([]int{0, 1, 2}, []int{0, 0, 0}, []string{"a", "b", "c"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 0.0, r.Normalized[i][1])
		assert.Equal(t, 0.0, r.Normalized[i][2])
	}
	assert.Equal(t, 0.0, r.PerClass[1].Precision)
}

func TestTiedPredictionsUseLowestClass(t *testing.T) {
	y := oneHot([]int{1}, 3)
	pred := mat.NewDense(1, 3, []float64{0.1, 0.45, 0.45})
	r, err := Evaluate(fixedPredictor{out: pred}, mat.NewDense(1, 1, nil), y, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, r.Predicted)
	assert.True(t, r.Correct[0])
}

func TestEvaluateShapeErrors(t *testing.T) {
	classes := []string{"a", "b"}
	y := oneHot([]int{0, 1}, 2)

	_, err := Evaluate(fixedPredictor{out: y}, mat.NewDense(3, 1, nil), y, classes)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEvaluationShape))

	_, err = Evaluate(fixedPredictor{out: y}, mat.NewDense(2, 1, nil), y, []string{"a", "b", "c"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeEvaluationShape))

	wide := mat.NewDense(2, 3, nil)
	_, err = Evaluate(fixedPredictor{out: wide}, mat.NewDense(2, 1, nil), y, classes)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEvaluationShape))

	_, err = FromLabels([]int{0}, []int{0, 1}, classes)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEvaluationShape))
}

func TestEvaluateRejectsNonOneHotLabels(t *testing.T) {
	classes := []string{"a", "b"}
	x := mat.NewDense(2, 1, nil)
	pred := oneHot([]int{0, 1}, 2)

	for name, y := range map[string]*mat.Dense{
		"all zero":   mat.NewDense(2, 2, []float64{1, 0, 0, 0}),
		"two ones":   mat.NewDense(2, 2, []float64{1, 0, 1, 1}),
		"fractional": mat.NewDense(2, 2, []float64{1, 0, 0.5, 0.5}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Evaluate(fixedPredictor{out: pred}, x, y, classes)
			assert.True(t, errors.IsCode(err, errors.ErrCodeEvaluationShape))
		})
	}
}

func TestSpatialPoints(t *testing.T) {
	r, err := FromLabels([]int{0, 1}, []int{0, 0}, []string{"a", "b"})
	require.NoError(t, err)

	points, err := SpatialPoints(r, []geo.Coordinate{{Latitude: 10, Longitude: 20}, {Latitude: -5, Longitude: 3}})
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.True(t, points[0].Correct)
	assert.False(t, points[1].Correct)
	assert.Equal(t, -5.0, points[1].Latitude)

	_, err = SpatialPoints(r, []geo.Coordinate{{}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeEvaluationShape))
}
