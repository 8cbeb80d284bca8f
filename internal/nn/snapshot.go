package nn

import (
	"encoding/json"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

// LayerSnapshot is the serializable form of a Dense layer.
type LayerSnapshot struct {
	In         int       `json:"in"`
	Out        int       `json:"out"`
	Activation string    `json:"activation"`
	Weights    []float64 `json:"weights"`
	Bias       []float64 `json:"bias"`
}

// Snapshot is the serializable form of a trained model.
type Snapshot struct {
	InputDim int             `json:"input_dim"`
	Loss     string          `json:"loss,omitempty"`
	Layers   []LayerSnapshot `json:"layers"`
}

// Snapshot captures the architecture and parameters.
func (m *Sequential) Snapshot() Snapshot {
	s := Snapshot{InputDim: m.InputDim}
	if m.Loss != nil {
		s.Loss = m.Loss.Name()
	}
	for _, l := range m.Layers {
		s.Layers = append(s.Layers, LayerSnapshot{
			In:         l.In,
			Out:        l.Out,
			Activation: l.Activation.Name(),
			Weights:    append([]float64(nil), l.Weights.RawMatrix().Data...),
			Bias:       append([]float64(nil), l.Bias...),
		})
	}
	return s
}

// FromSnapshot rebuilds an uncompiled model able to Predict.
func FromSnapshot(s Snapshot) (*Sequential, error) {
	m := NewSequential(s.InputDim)
	prev := s.InputDim
	for i, ls := range s.Layers {
		if ls.In != prev {
			return nil, fmt.Errorf("layer %d expects %d inputs, previous layer gives %d", i, ls.In, prev)
		}
		if ls.In <= 0 || ls.Out <= 0 || len(ls.Weights) != ls.In*ls.Out || len(ls.Bias) != ls.Out {
			return nil, fmt.Errorf("layer %d has malformed parameters", i)
		}
		act, err := ActivationByName(ls.Activation)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		m.Layers = append(m.Layers, &Dense{
			In:         ls.In,
			Out:        ls.Out,
			Weights:    mat.NewDense(ls.In, ls.Out, append([]float64(nil), ls.Weights...)),
			Bias:       append([]float64(nil), ls.Bias...),
			Activation: act,
		})
		prev = ls.Out
	}
	return m, nil
}

// WriteJSON encodes the model snapshot.
func (m *Sequential) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m.Snapshot())
}

// ReadJSON decodes a model written by WriteJSON.
func ReadJSON(r io.Reader) (*Sequential, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	return FromSnapshot(s)
}
