package postingsource

import (
	"fmt"
	"math"
)

// Bounds are the smallest and largest value stored in a slot.
type Bounds struct {
	Lower float64
	Upper float64
}

// Transform maps a stored slot value to a weight.
type Transform interface {
	Apply(value float64, b Bounds) float64
	Name() string
}

// TransformFunc adapts a function to Transform.
type TransformFunc struct {
	Label string
	Fn    func(value float64, b Bounds) float64
}

func (t TransformFunc) Apply(value float64, b Bounds) float64 { return t.Fn(value, b) }

func (t TransformFunc) Name() string { return t.Label }

var (
	// Identity uses the stored value as the weight.
	Identity Transform = TransformFunc{"identity", func(v float64, _ Bounds) float64 { return v }}

	// LogScale dampens large values with log(1+v).
	LogScale Transform = TransformFunc{"log", func(v float64, _ Bounds) float64 {
		return math.Log1p(math.Max(v, 0))
	}}

	// Normalize maps the slot's range onto [0,1]. A slot holding a single
	// distinct value maps every document to 1.
	Normalize Transform = TransformFunc{"normalize", func(v float64, b Bounds) float64 {
		if b.Upper <= b.Lower {
			return 1
		}
		return (v - b.Lower) / (b.Upper - b.Lower)
	}}

	// Zero gives every document weight 0; the source then only matches.
	Zero Transform = TransformFunc{"zero", func(float64, Bounds) float64 { return 0 }}
)

// Scale multiplies the stored value by factor.
func Scale(factor float64) Transform {
	return TransformFunc{fmt.Sprintf("scale(%g)", factor), func(v float64, _ Bounds) float64 {
		return v * factor
	}}
}

// ParseTransform maps a configuration name to a Transform.
func ParseTransform(name string) (Transform, error) {
	switch name {
	case "", "identity":
		return Identity, nil
	case "log":
		return LogScale, nil
	case "normalize":
		return Normalize, nil
	case "zero":
		return Zero, nil
	default:
		return nil, fmt.Errorf("unknown posting source transform %q", name)
	}
}

// clamp keeps weights finite and non-negative.
func clamp(w float64) float64 {
	if math.IsNaN(w) || w < 0 {
		return 0
	}
	if math.IsInf(w, 1) {
		return math.MaxFloat64
	}
	return w
}
