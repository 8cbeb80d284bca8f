package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenotune/internal/errors"
	"phenotune/internal/hyperparams"
)

func assignment(u1, u2, u3 int, act string, lr float64) hyperparams.Assignment {
	return hyperparams.Assignment{
		"units_1":    hyperparams.IntValue(u1),
		"units_2":    hyperparams.IntValue(u2),
		"units_3":    hyperparams.IntValue(u3),
		"activation": hyperparams.ChoiceValue(act),
		"lr":         hyperparams.FloatValue(lr),
	}
}

func TestBuildMatchesAssignment(t *testing.T) {
	b := NewBuilder(5, 15, 3)
	m, topo, err := b.Build(assignment(27, 31, 27, "sigmoid", 0.0046), 1)
	require.NoError(t, err)

	require.Len(t, m.Layers, 4)
	assert.Equal(t, []int{27, 31, 27, 15}, []int{m.Layers[0].Out, m.Layers[1].Out, m.Layers[2].Out, m.Layers[3].Out})
	assert.Equal(t, "sigmoid", m.Layers[0].Activation.Name())
	assert.Equal(t, "softmax", m.Layers[3].Activation.Name())
	assert.Equal(t, topo.ParamCount(), m.ParamCount())
}

func TestZeroWidthLayersAreAbsent(t *testing.T) {
	b := NewBuilder(5, 15, 3)
	m, topo, err := b.Build(assignment(4, 0, 9, "relu", 0.01), 1)
	require.NoError(t, err)

	assert.Equal(t, Absent, topo.Hidden[1])
	require.Len(t, m.Layers, 3)
	assert.Equal(t, 4, m.Layers[0].Out)
	assert.Equal(t, 9, m.Layers[1].Out)
	assert.Equal(t, 4, m.Layers[1].In)
	assert.Contains(t, topo.Summary(), "absent")
}

func TestFirstLayerMustBePresent(t *testing.T) {
	_, _, err := NewBuilder(5, 15, 3).Build(assignment(0, 4, 4, "relu", 0.01), 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfiguration))
}

func TestMissingParametersAreConfigurationErrors(t *testing.T) {
	a := assignment(4, 4, 4, "relu", 0.01)
	delete(a, "units_3")
	_, _, err := NewBuilder(5, 15, 3).Build(a, 1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfiguration))

	_, _, err = NewBuilder(5, 15, 3).Build(assignment(4, 4, 4, "swish", 0.01), 1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfiguration))
}

// Every sampled assignment yields output width K, a present first layer and
// one hidden layer per nonzero width.
func TestSampledTopologyProperties(t *testing.T) {
	space := hyperparams.DefaultSpace()
	b := NewBuilder(5, 15, 3)
	rng := rand.New(rand.NewSource(144))

	for i := 0; i < 300; i++ {
		a := space.Sample(rng)
		m, topo, err := b.Build(a, int64(i))
		require.NoError(t, err)

		nonzero := 0
		for j := 0; j < 3; j++ {
			if a[hyperparams.LayerParam(j)].Int() > 0 {
				nonzero++
			}
		}
		assert.True(t, topo.Hidden[0].Present)
		assert.Equal(t, nonzero, len(topo.PresentLayers()))
		assert.Equal(t, nonzero+1, len(m.Layers))
		assert.Equal(t, 15, m.OutputDim())
	}
}

func TestBuildsAreIndependent(t *testing.T) {
	b := NewBuilder(5, 15, 3)
	a := assignment(8, 8, 0, "tanh", 0.01)
	m1, _, err := b.Build(a, 7)
	require.NoError(t, err)
	m2, _, err := b.Build(a, 7)
	require.NoError(t, err)

	assert.Equal(t, m1.Weights(), m2.Weights())
	m1.Layers[0].Bias[0] = 42
	assert.NotEqual(t, m1.Weights(), m2.Weights())
}
