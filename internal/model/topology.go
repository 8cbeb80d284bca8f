package model

import (
	"fmt"
	"strings"

	"phenotune/internal/errors"
	"phenotune/internal/hyperparams"
)

// LayerSlot is one hidden-layer position. An absent slot contributes no layer.
type LayerSlot struct {
	Present    bool
	Width      int
	Activation string
}

// Absent is the empty slot.
var Absent = LayerSlot{}

// Present builds an occupied slot.
func Present(width int, activation string) LayerSlot {
	return LayerSlot{Present: true, Width: width, Activation: activation}
}

func (s LayerSlot) String() string {
	if !s.Present {
		return "absent"
	}
	return fmt.Sprintf("dense(%d, %s)", s.Width, s.Activation)
}

// Topology describes the network built for one assignment.
type Topology struct {
	InputDim         int
	Hidden           []LayerSlot
	OutputWidth      int
	OutputActivation string
	LearningRate     float64
}

// PresentLayers returns the occupied hidden slots in order.
func (t Topology) PresentLayers() []LayerSlot {
	var out []LayerSlot
	for _, s := range t.Hidden {
		if s.Present {
			out = append(out, s)
		}
	}
	return out
}

// ParamCount is the number of trainable parameters of the described network.
func (t Topology) ParamCount() int {
	n, prev := 0, t.InputDim
	for _, s := range t.PresentLayers() {
		n += prev*s.Width + s.Width
		prev = s.Width
	}
	return n + prev*t.OutputWidth + t.OutputWidth
}

// Summary renders a layer table.
func (t Topology) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %-10s %-8s %s\n", "layer", "activation", "units", "params")
	prev, total := t.InputDim, 0
	row := func(name, act string, width int) {
		params := prev*width + width
		total += params
		fmt.Fprintf(&b, "%-10s %-10s %-8d %d\n", name, act, width, params)
		prev = width
	}
	for i, s := range t.Hidden {
		if !s.Present {
			fmt.Fprintf(&b, "%-10s %-10s %-8s %d\n", fmt.Sprintf("dense_%d", i+1), "-", "absent", 0)
			continue
		}
		row(fmt.Sprintf("dense_%d", i+1), s.Activation, s.Width)
	}
	row("output", t.OutputActivation, t.OutputWidth)
	fmt.Fprintf(&b, "total params: %d (lr=%g)\n", total, t.LearningRate)
	return b.String()
}

// ResolveTopology turns an assignment into a topology with hidden slots units_1..units_n.
// A zero width makes the slot absent, except for the first layer where it is a configuration error.
func ResolveTopology(a hyperparams.Assignment, inputDim, numClasses, hiddenSlots int) (Topology, error) {
	if inputDim <= 0 || numClasses <= 0 {
		return Topology{}, errors.Configuration("input dim %d and class count %d must be positive", inputDim, numClasses)
	}
	if hiddenSlots < 1 {
		return Topology{}, errors.Configuration("at least one hidden layer slot is required, got %d", hiddenSlots)
	}

	actValue, ok := a.Get(hyperparams.ActivationParam)
	if !ok {
		return Topology{}, errors.Configuration("assignment is missing %s", hyperparams.ActivationParam)
	}
	lrValue, ok := a.Get(hyperparams.LearningRateParam)
	if !ok {
		return Topology{}, errors.Configuration("assignment is missing %s", hyperparams.LearningRateParam)
	}
	if lr := lrValue.Float(); !(lr > 0) {
		return Topology{}, errors.Configuration("%s must be positive, got %g", hyperparams.LearningRateParam, lr)
	}

	topo := Topology{
		InputDim:         inputDim,
		Hidden:           make([]LayerSlot, hiddenSlots),
		OutputWidth:      numClasses,
		OutputActivation: "softmax",
		LearningRate:     lrValue.Float(),
	}
	for i := 0; i < hiddenSlots; i++ {
		name := hyperparams.LayerParam(i)
		v, ok := a.Get(name)
		if !ok {
			return Topology{}, errors.Configuration("assignment is missing %s", name)
		}
		width := v.Int()
		switch {
		case width < 0:
			return Topology{}, errors.Configuration("%s must be non-negative, got %d", name, width)
		case width == 0 && i == 0:
			return Topology{}, errors.Configuration("%s must be at least 1, the first hidden layer is always present", name)
		case width == 0:
			topo.Hidden[i] = Absent
		default:
			topo.Hidden[i] = Present(width, actValue.Str())
		}
	}
	return topo, nil
}
