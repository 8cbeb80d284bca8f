package hyperparams

import (
	"fmt"
	"math"
	"math/rand"

	"phenotune/internal/config"
	"phenotune/internal/errors"
)

// Sampling 连续参数的采样尺度
type Sampling int

const (
	Linear Sampling = iota
	Log
)

func (s Sampling) String() string {
	if s == Log {
		return "log"
	}
	return "linear"
}

// Param describes one tunable hyperparameter.
type Param struct {
	Name     string
	Kind     Kind
	Min      float64
	Max      float64
	Step     float64 // 0 for continuous floats
	Sampling Sampling
	Values   []string
}

// Cardinality returns the number of discrete values, or 0 for continuous params.
func (p Param) Cardinality() int {
	switch p.Kind {
	case KindChoice:
		return len(p.Values)
	case KindInt:
		return int(math.Floor((p.Max-p.Min)/p.Step)) + 1
	default:
		if p.Step > 0 {
			return int(math.Floor((p.Max-p.Min)/p.Step)) + 1
		}
		return 0
	}
}

// Space is an ordered set of hyperparameters.
type Space struct {
	params []Param
	index  map[string]int
}

// NewSpace creates an empty search space
func NewSpace() *Space {
	return &Space{index: make(map[string]int)}
}

func (s *Space) add(p Param) *Space {
	s.index[p.Name] = len(s.params)
	s.params = append(s.params, p)
	return s
}

// Int registers an integer parameter over [min, max] with the given step.
func (s *Space) Int(name string, min, max, step int) *Space {
	return s.add(Param{Name: name, Kind: KindInt, Min: float64(min), Max: float64(max), Step: float64(step)})
}

// Float registers a continuous parameter.
func (s *Space) Float(name string, min, max float64, sampling Sampling) *Space {
	return s.add(Param{Name: name, Kind: KindFloat, Min: min, Max: max, Sampling: sampling})
}

// Choice registers a categorical parameter.
func (s *Space) Choice(name string, values ...string) *Space {
	return s.add(Param{Name: name, Kind: KindChoice, Values: append([]string(nil), values...)})
}

// Params returns the parameters in registration order.
func (s *Space) Params() []Param {
	return append([]Param(nil), s.params...)
}

// Get returns the named parameter.
func (s *Space) Get(name string) (Param, bool) {
	i, ok := s.index[name]
	if !ok {
		return Param{}, false
	}
	return s.params[i], true
}

// Dim is the dimension of the encoded unit hypercube.
func (s *Space) Dim() int {
	return len(s.params)
}

// Size returns the number of distinct assignments, or -1 when a continuous param makes it unbounded.
func (s *Space) Size() int {
	size := 1
	for _, p := range s.params {
		n := p.Cardinality()
		if n == 0 {
			return -1
		}
		size *= n
	}
	return size
}

// Validate fails fast on malformed bounds.
func (s *Space) Validate() error {
	if len(s.params) == 0 {
		return errors.Configuration("search space is empty")
	}
	seen := make(map[string]bool, len(s.params))
	for _, p := range s.params {
		if seen[p.Name] {
			return errors.Configuration("%s: declared twice", p.Name)
		}
		seen[p.Name] = true

		switch p.Kind {
		case KindInt, KindFloat:
			if p.Max < p.Min {
				return errors.Configuration("%s: max %v < min %v", p.Name, p.Max, p.Min)
			}
			if p.Kind == KindInt && p.Step <= 0 {
				return errors.Configuration("%s: step must be positive, got %v", p.Name, p.Step)
			}
			if p.Step < 0 {
				return errors.Configuration("%s: step must be non-negative, got %v", p.Name, p.Step)
			}
			if p.Sampling == Log && p.Min <= 0 {
				return errors.Configuration("%s: log sampling needs min > 0, got %v", p.Name, p.Min)
			}
		case KindChoice:
			if len(p.Values) == 0 {
				return errors.Configuration("%s: empty choice set", p.Name)
			}
			values := make(map[string]bool, len(p.Values))
			for _, v := range p.Values {
				if values[v] {
					return errors.Configuration("%s: choice %q listed twice", p.Name, v)
				}
				values[v] = true
			}
		default:
			return errors.Configuration("%s: unknown kind %v", p.Name, p.Kind)
		}
	}
	return nil
}

// Sample draws a uniformly random assignment.
func (s *Space) Sample(rng *rand.Rand) Assignment {
	x := make([]float64, len(s.params))
	for i := range x {
		x[i] = rng.Float64()
	}
	return s.Decode(x)
}

// Encode maps an assignment into the unit hypercube.
// Discrete params map to the centre of their bin.
func (s *Space) Encode(a Assignment) ([]float64, error) {
	x := make([]float64, len(s.params))
	for i, p := range s.params {
		v, ok := a[p.Name]
		if !ok {
			return nil, fmt.Errorf("assignment is missing %s", p.Name)
		}
		switch p.Kind {
		case KindChoice:
			idx := -1
			for j, c := range p.Values {
				if c == v.Str() {
					idx = j
					break
				}
			}
			if idx < 0 {
				return nil, fmt.Errorf("%s: %q is not a declared choice", p.Name, v.Str())
			}
			x[i] = (float64(idx) + 0.5) / float64(len(p.Values))
		default:
			if n := p.Cardinality(); n > 0 {
				idx := math.Round((v.Float() - p.Min) / p.Step)
				x[i] = (idx + 0.5) / float64(n)
			} else {
				x[i] = p.toUnit(v.Float())
			}
		}
		x[i] = clamp01(x[i])
	}
	return x, nil
}

// Decode maps a point of the unit hypercube back to an assignment.
// Ints snap to their grid, choices use equal-width bins.
func (s *Space) Decode(x []float64) Assignment {
	a := make(Assignment, len(s.params))
	for i, p := range s.params {
		u := clamp01(x[i])
		switch p.Kind {
		case KindChoice:
			a[p.Name] = ChoiceValue(p.Values[bin(u, len(p.Values))])
		case KindInt:
			idx := bin(u, p.Cardinality())
			a[p.Name] = IntValue(int(p.Min) + idx*int(p.Step))
		default:
			if n := p.Cardinality(); n > 0 {
				a[p.Name] = FloatValue(p.Min + float64(bin(u, n))*p.Step)
			} else {
				a[p.Name] = FloatValue(p.fromUnit(u))
			}
		}
	}
	return a
}

// Coerce converts decoded JSON values to the declared kinds and checks membership.
func (s *Space) Coerce(a Assignment) (Assignment, error) {
	out := make(Assignment, len(s.params))
	for _, p := range s.params {
		v, ok := a[p.Name]
		if !ok {
			return nil, fmt.Errorf("assignment is missing %s", p.Name)
		}
		switch p.Kind {
		case KindInt:
			if v.Kind() == KindChoice {
				return nil, fmt.Errorf("%s: expected int, got %q", p.Name, v.Str())
			}
			out[p.Name] = IntValue(int(math.Round(v.Float())))
		case KindFloat:
			if v.Kind() == KindChoice {
				return nil, fmt.Errorf("%s: expected float, got %q", p.Name, v.Str())
			}
			out[p.Name] = FloatValue(v.Float())
		case KindChoice:
			out[p.Name] = ChoiceValue(v.String())
		}
	}
	if _, err := s.Encode(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p Param) toUnit(v float64) float64 {
	if p.Max == p.Min {
		return 0.5
	}
	if p.Sampling == Log {
		return (math.Log(v) - math.Log(p.Min)) / (math.Log(p.Max) - math.Log(p.Min))
	}
	return (v - p.Min) / (p.Max - p.Min)
}

func (p Param) fromUnit(u float64) float64 {
	if p.Sampling == Log {
		return math.Exp(math.Log(p.Min) + u*(math.Log(p.Max)-math.Log(p.Min)))
	}
	return p.Min + u*(p.Max-p.Min)
}

func bin(u float64, n int) int {
	idx := int(math.Floor(u * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// LayerParam names the width parameter of hidden layer i (0-based).
func LayerParam(i int) string {
	return fmt.Sprintf("units_%d", i+1)
}

const (
	ActivationParam   = "activation"
	LearningRateParam = "lr"
)

// FromConfig builds the space declared by the configuration.
func FromConfig(cfg config.SpaceConfig) (*Space, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := NewSpace()
	for i, l := range cfg.Layers {
		s.Int(LayerParam(i), l.Min, l.Max, l.Step)
	}
	s.Choice(ActivationParam, cfg.Activations...)
	sampling := Linear
	if cfg.LearningRate.Sampling == "log" {
		sampling = Log
	}
	s.Float(LearningRateParam, cfg.LearningRate.Min, cfg.LearningRate.Max, sampling)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultSpace is the ecoregion classifier space: three widths, one activation and a log-scaled learning rate.
func DefaultSpace() *Space {
	s, err := FromConfig(config.Default().Space)
	if err != nil {
		panic(err)
	}
	return s
}
