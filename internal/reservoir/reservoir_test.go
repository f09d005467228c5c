package reservoir

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"robodrummerd/internal/model"
)

func identityLikeBlob() model.Blob {
	return model.Blob{
		Size:       2,
		Inputs:     1,
		Outputs:    1,
		Visible:    2,
		LeakRate:   1.0,
		Activation: "linear",
		WeightsInRes:  model.Matrix{Rows: 2, Cols: 1, Data: []float64{1, 1}},
		WeightsResRes: model.Matrix{Rows: 2, Cols: 2, Data: []float64{0, 0, 0, 0}},
		WeightsOutRes: model.Matrix{Rows: 2, Cols: 1, Data: []float64{0, 0}},
		WeightsResOut: model.Matrix{Rows: 1, Cols: 2, Data: []float64{1, 0}},
		BiasRes:       []float64{0, 0},
		BiasOut:       []float64{0},
	}
}

func TestLoadRejectsUnknownActivation(t *testing.T) {
	b := identityLikeBlob()
	b.Activation = "gelu"
	if _, err := Load(b); err == nil {
		t.Fatalf("expected error for unknown activation")
	}
}

func TestLoadRejectsOversizedVisible(t *testing.T) {
	b := identityLikeBlob()
	b.Visible = 3
	if _, err := Load(b); err == nil {
		t.Fatalf("expected error for visible prefix exceeding reservoir size")
	}
}

func TestForwardIdentityLikeReservoir(t *testing.T) {
	b := identityLikeBlob()
	r, err := Load(b)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}

	input := mat.NewVecDense(1, []float64{2.0})
	r.Forward(input)

	if got := r.Output(0); math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("expected output 2.0, got %v", got)
	}

	state := r.State()
	if len(state) != 2 || state[0] != 2.0 || state[1] != 2.0 {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestForwardWithLeakRateBlendsPreviousState(t *testing.T) {
	b := identityLikeBlob()
	b.LeakRate = 0.5
	r, err := Load(b)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}

	// first tick: state goes from 0 to 0.5*2 = 1.0
	r.Forward(mat.NewVecDense(1, []float64{2.0}))
	state := r.State()
	if math.Abs(state[0]-1.0) > 1e-9 {
		t.Fatalf("expected state 1.0 after first leaky tick, got %v", state[0])
	}

	// second tick: new raw state = 2.0 again; blended = 0.5*1.0 + 0.5*2.0 = 1.5
	r.Forward(mat.NewVecDense(1, []float64{2.0}))
	state = r.State()
	if math.Abs(state[0]-1.5) > 1e-9 {
		t.Fatalf("expected state 1.5 after second leaky tick, got %v", state[0])
	}
}

func TestResetStateZeroesStateAndOutput(t *testing.T) {
	b := identityLikeBlob()
	r, err := Load(b)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}

	r.Forward(mat.NewVecDense(1, []float64{5.0}))
	r.ResetState()

	for i, v := range r.State() {
		if v != 0 {
			t.Fatalf("expected zeroed state at index %d, got %v", i, v)
		}
	}
	if r.Output(0) != 0 {
		t.Fatalf("expected zeroed output, got %v", r.Output(0))
	}
}

func TestSpectralRadiusOfZeroMatrixIsZero(t *testing.T) {
	b := identityLikeBlob()
	r, err := Load(b)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}

	radius, err := r.SpectralRadius()
	if err != nil {
		t.Fatalf("SpectralRadius: unexpected error: %v", err)
	}
	if radius != 0 {
		t.Fatalf("expected spectral radius 0 for zero recurrent matrix, got %v", radius)
	}
}

func TestCheckSpectralRadiusDetectsDrift(t *testing.T) {
	b := identityLikeBlob()
	r, err := Load(b)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}

	_, drifted, err := r.CheckSpectralRadius(0.97, 0.01)
	if err != nil {
		t.Fatalf("CheckSpectralRadius: unexpected error: %v", err)
	}
	if !drifted {
		t.Fatalf("expected drift to be detected against a declared radius of 0.97 with an actual of 0")
	}
}

func TestEitherOrFeedbackSnapsNonZeroEntries(t *testing.T) {
	b := identityLikeBlob()
	b.WeightsOutRes = model.Matrix{Rows: 2, Cols: 1, Data: []float64{0.37, -0.91}}
	r, err := Load(b)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	r.EitherOrFeedback(0.1, 1.0, rng) // fract=1.0: always snap to +magnitude

	rows, cols := r.weightsOutRes.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if got := r.weightsOutRes.At(i, j); got != 0.1 {
				t.Fatalf("expected entry (%d,%d) snapped to +0.1, got %v", i, j, got)
			}
		}
	}
}

func TestEitherOrFeedbackLeavesZeroEntriesAlone(t *testing.T) {
	b := identityLikeBlob() // WeightsOutRes is all zero
	r, err := Load(b)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	r.EitherOrFeedback(0.1, 1.0, rng)

	rows, cols := r.weightsOutRes.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if got := r.weightsOutRes.At(i, j); got != 0 {
				t.Fatalf("expected zero entry (%d,%d) to remain untouched, got %v", i, j, got)
			}
		}
	}
}

func TestDimensionAccessors(t *testing.T) {
	b := identityLikeBlob()
	r, err := Load(b)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}

	if r.Size() != 2 || r.Inputs() != 1 || r.Outputs() != 1 || r.Visible() != 2 {
		t.Fatalf("unexpected dimensions: size=%d inputs=%d outputs=%d visible=%d",
			r.Size(), r.Inputs(), r.Outputs(), r.Visible())
	}
}

func TestLoadDefaultsVisibleToSizeWhenZero(t *testing.T) {
	b := identityLikeBlob()
	b.Visible = 0
	r, err := Load(b)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if r.Visible() != r.Size() {
		t.Fatalf("expected Visible to default to Size, got visible=%d size=%d", r.Visible(), r.Size())
	}
}
