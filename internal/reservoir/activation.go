package reservoir

import "math"

// Activation selects the nonlinearity applied to the reservoir state
// after each forward-pass update.
type Activation int

const (
	Tanh Activation = iota
	Sigmoid
	ReLU
	// Linear is the identity function. It has no counterpart in the
	// three-variant activation enum this reservoir design is grounded
	// on; it exists so a model can be configured with no nonlinearity
	// at all, the hybrid Euler-ESN layout spec.md §3 and §9 call for.
	Linear
)

func (a Activation) String() string {
	switch a {
	case Tanh:
		return "tanh"
	case Sigmoid:
		return "sigmoid"
	case ReLU:
		return "relu"
	case Linear:
		return "linear"
	default:
		return "unknown"
	}
}

// ParseActivation maps a metadata activation name to its tagged form.
func ParseActivation(name string) (Activation, bool) {
	switch name {
	case "tanh":
		return Tanh, true
	case "sigmoid":
		return Sigmoid, true
	case "relu":
		return ReLU, true
	case "linear":
		return Linear, true
	default:
		return 0, false
	}
}

// Apply evaluates the activation at x.
func (a Activation) Apply(x float64) float64 {
	switch a {
	case Tanh:
		return 2.0/(1.0+math.Exp(-2.0*x)) - 1.0
	case Sigmoid:
		return 1.0 / (1.0 + math.Exp(-x))
	case ReLU:
		return math.Max(0, x)
	case Linear:
		return x
	default:
		return x
	}
}
