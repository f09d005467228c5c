package reservoir

import (
	"math"
	"testing"
)

func TestTanhMatchesMathTanh(t *testing.T) {
	for _, x := range []float64{-2, -0.5, 0, 0.5, 2} {
		got := Tanh.Apply(x)
		want := math.Tanh(x)
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("Tanh.Apply(%v) = %v, want %v", x, got, want)
		}
	}
}

func TestSigmoidBounds(t *testing.T) {
	if got := Sigmoid.Apply(0); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("Sigmoid.Apply(0) = %v, want 0.5", got)
	}
	if got := Sigmoid.Apply(100); got <= 0.99 {
		t.Fatalf("Sigmoid.Apply(100) = %v, expected close to 1", got)
	}
}

func TestReLUClampsNegatives(t *testing.T) {
	if got := ReLU.Apply(-5); got != 0 {
		t.Fatalf("ReLU.Apply(-5) = %v, want 0", got)
	}
	if got := ReLU.Apply(5); got != 5 {
		t.Fatalf("ReLU.Apply(5) = %v, want 5", got)
	}
}

func TestLinearIsIdentity(t *testing.T) {
	if got := Linear.Apply(-3.5); got != -3.5 {
		t.Fatalf("Linear.Apply(-3.5) = %v, want -3.5", got)
	}
}

func TestParseActivationRoundTrip(t *testing.T) {
	cases := map[string]Activation{
		"tanh":    Tanh,
		"sigmoid": Sigmoid,
		"relu":    ReLU,
		"linear":  Linear,
	}
	for name, want := range cases {
		got, ok := ParseActivation(name)
		if !ok || got != want {
			t.Fatalf("ParseActivation(%q) = %v, %v; want %v, true", name, got, ok, want)
		}
		if got.String() != name {
			t.Fatalf("%v.String() = %q, want %q", got, got.String(), name)
		}
	}
}

func TestParseActivationRejectsUnknown(t *testing.T) {
	if _, ok := ParseActivation("gelu"); ok {
		t.Fatalf("expected ParseActivation to reject unknown name")
	}
}
