package hyperparams

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind 超参数类型
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindChoice
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindChoice:
		return "choice"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a tagged hyperparameter value.
type Value struct {
	kind Kind
	i    int
	f    float64
	s    string
}

func IntValue(v int) Value { return Value{kind: KindInt, i: v} }

func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }

func ChoiceValue(v string) Value { return Value{kind: KindChoice, s: v} }

func (v Value) Kind() Kind { return v.kind }

// Int returns the integer payload; floats are truncated.
func (v Value) Int() int {
	if v.kind == KindFloat {
		return int(v.f)
	}
	return v.i
}

// Float returns the numeric payload as float64.
func (v Value) Float() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Str returns the choice payload.
func (v Value) Str() string {
	return v.s
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.Itoa(v.i)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return v.s
	}
}

// Interface returns the payload as int, float64 or string.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	default:
		return v.s
	}
}

// MarshalJSON encodes the payload as a bare JSON number or string.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a bare number or string. Integral numbers decode as ints;
// Space.Coerce restores the declared kind.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*v = ChoiceValue(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			*v = IntValue(int(i))
			return nil
		}
		f, err := x.Float64()
		if err != nil {
			return fmt.Errorf("invalid hyperparameter number %s: %w", x, err)
		}
		*v = FloatValue(f)
	default:
		return fmt.Errorf("unsupported hyperparameter value %s", string(data))
	}
	return nil
}

// Assignment maps parameter names to values for one trial.
type Assignment map[string]Value

// Get returns the value for name.
func (a Assignment) Get(name string) (Value, bool) {
	v, ok := a[name]
	return v, ok
}

// Names returns the parameter names in sorted order.
func (a Assignment) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Key is a canonical string used for duplicate detection.
func (a Assignment) Key() string {
	var b strings.Builder
	for i, name := range a.Names() {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(a[name].String())
	}
	return b.String()
}

// Clone returns an independent copy.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func (a Assignment) String() string {
	return "{" + strings.ReplaceAll(a.Key(), ";", ", ") + "}"
}
