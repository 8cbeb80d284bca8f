package model

import (
	"math/rand"

	"phenotune/internal/errors"
	"phenotune/internal/hyperparams"
	"phenotune/internal/nn"
)

// Builder turns assignments into freshly compiled models.
type Builder struct {
	InputDim    int
	NumClasses  int
	HiddenSlots int
	FocalAlpha  float64
	FocalGamma  float64
}

// NewBuilder creates a builder with focal-loss defaults.
func NewBuilder(inputDim, numClasses, hiddenSlots int) *Builder {
	loss := nn.NewFocalCrossEntropy()
	return &Builder{
		InputDim:    inputDim,
		NumClasses:  numClasses,
		HiddenSlots: hiddenSlots,
		FocalAlpha:  loss.Alpha,
		FocalGamma:  loss.Gamma,
	}
}

// Build returns a new compiled model and its topology. Weight initialization is seeded;
// nothing is shared between calls.
func (b *Builder) Build(a hyperparams.Assignment, seed int64) (*nn.Sequential, Topology, error) {
	topo, err := ResolveTopology(a, b.InputDim, b.NumClasses, b.HiddenSlots)
	if err != nil {
		return nil, Topology{}, err
	}
	m, err := b.FromTopology(topo, seed)
	if err != nil {
		return nil, Topology{}, err
	}
	return m, topo, nil
}

// FromTopology compiles a model for an already resolved topology.
func (b *Builder) FromTopology(topo Topology, seed int64) (*nn.Sequential, error) {
	rng := rand.New(rand.NewSource(seed))
	m := nn.NewSequential(topo.InputDim)
	for _, slot := range topo.PresentLayers() {
		act, err := nn.ActivationByName(slot.Activation)
		if err != nil {
			return nil, errors.Configuration("%v", err)
		}
		m.Add(slot.Width, act, rng)
	}
	m.Add(topo.OutputWidth, nn.Softmax, rng)
	m.Compile(nn.NewAdam(topo.LearningRate), nn.FocalCrossEntropy{Alpha: b.FocalAlpha, Gamma: b.FocalGamma})
	return m, nil
}
