// Package reservoir implements the Reservoir Runtime (spec component
// C): the forward pass of a leaky-integrator echo state network.
// Training is out of scope; this package only loads a trained model
// and ticks it forward.
package reservoir

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"robodrummerd/internal/model"
)

// Reservoir holds the dense state of a loaded ESN and its immutable
// parameters, grounded directly on the forward-pass equations of the
// original implementation's Reservoir.forward.
type Reservoir struct {
	state  *mat.VecDense // N
	output *mat.VecDense // O

	weightsInRes  *mat.Dense // N x I
	weightsResRes *mat.Dense // N x N
	weightsOutRes *mat.Dense // N x O
	weightsResOut *mat.Dense // O x V

	biasRes *mat.VecDense // N
	biasOut *mat.VecDense // O

	size, inputs, outputs, visible int

	activation Activation
	leakRate   float64
}

// Load builds a Reservoir from a decoded model blob.
func Load(b model.Blob) (*Reservoir, error) {
	activation, ok := ParseActivation(b.Activation)
	if !ok {
		return nil, fmt.Errorf("reservoir: unknown activation %q", b.Activation)
	}

	visible := b.Visible
	if visible == 0 {
		visible = b.Size
	}
	if visible > b.Size {
		return nil, fmt.Errorf("reservoir: visible prefix %d exceeds reservoir size %d", visible, b.Size)
	}

	r := &Reservoir{
		state:  mat.NewVecDense(b.Size, nil),
		output: mat.NewVecDense(b.Outputs, nil),

		weightsInRes:  mat.NewDense(b.WeightsInRes.Rows, b.WeightsInRes.Cols, append([]float64(nil), b.WeightsInRes.Data...)),
		weightsResRes: mat.NewDense(b.WeightsResRes.Rows, b.WeightsResRes.Cols, append([]float64(nil), b.WeightsResRes.Data...)),
		weightsOutRes: mat.NewDense(b.WeightsOutRes.Rows, b.WeightsOutRes.Cols, append([]float64(nil), b.WeightsOutRes.Data...)),
		weightsResOut: mat.NewDense(b.WeightsResOut.Rows, b.WeightsResOut.Cols, append([]float64(nil), b.WeightsResOut.Data...)),

		biasRes: mat.NewVecDense(len(b.BiasRes), append([]float64(nil), b.BiasRes...)),
		biasOut: mat.NewVecDense(len(b.BiasOut), append([]float64(nil), b.BiasOut...)),

		size:    b.Size,
		inputs:  b.Inputs,
		outputs: b.Outputs,
		visible: visible,

		activation: activation,
		leakRate:   b.LeakRate,
	}
	return r, nil
}

// ResetState zeroes the running state and output, leaving weights
// untouched.
func (r *Reservoir) ResetState() {
	r.state = mat.NewVecDense(r.size, nil)
	r.output = mat.NewVecDense(r.outputs, nil)
}

// Forward advances the reservoir one tick given an input vector of
// length r.inputs:
//
//	newState = W_rr*state + W_in*input + W_or*output
//	newState = activation(newState)
//	state = (1-leak)*state + leak*newState
//	output = W_ro*state[:visible]
func (r *Reservoir) Forward(input *mat.VecDense) {
	var newState mat.VecDense
	newState.MulVec(r.weightsResRes, r.state)

	var fromInput mat.VecDense
	fromInput.MulVec(r.weightsInRes, input)
	newState.AddVec(&newState, &fromInput)

	var fromFeedback mat.VecDense
	fromFeedback.MulVec(r.weightsOutRes, r.output)
	newState.AddVec(&newState, &fromFeedback)

	for i := 0; i < newState.Len(); i++ {
		newState.SetVec(i, r.activation.Apply(newState.AtVec(i)))
	}

	for i := 0; i < r.state.Len(); i++ {
		blended := (1.0-r.leakRate)*r.state.AtVec(i) + r.leakRate*newState.AtVec(i)
		r.state.SetVec(i, blended)
	}

	visibleState := mat.NewVecDense(r.visible, nil)
	for i := 0; i < r.visible; i++ {
		visibleState.SetVec(i, r.state.AtVec(i))
	}
	r.output.MulVec(r.weightsResOut, visibleState)
}

// Output returns the scalar at the given output index.
func (r *Reservoir) Output(index int) float64 {
	return r.output.AtVec(index)
}

// State returns a copy of the current neuron activations.
func (r *Reservoir) State() []float64 {
	out := make([]float64, r.size)
	for i := range out {
		out[i] = r.state.AtVec(i)
	}
	return out
}

// SpectralRadius computes the spectral radius of W_rr via its
// eigenvalues, matching the original's scale() check.
func (r *Reservoir) SpectralRadius() (float64, error) {
	var eig mat.Eigen
	ok := eig.Factorize(r.weightsResRes, mat.EigenNone)
	if !ok {
		return 0, fmt.Errorf("reservoir: eigenvalue factorization failed")
	}

	values := eig.Values(nil)
	maxAbs := 0.0
	for _, v := range values {
		if m := math.Hypot(real(v), imag(v)); m > maxAbs {
			maxAbs = m
		}
	}
	return maxAbs, nil
}

// CheckSpectralRadius compares the live spectral radius against the
// metadata's declared value. Per spec.md §7, drift only warrants a
// warning: the blob is trusted once loaded, not re-validated as fatal.
func (r *Reservoir) CheckSpectralRadius(declared float64, tolerance float64) (actual float64, drifted bool, err error) {
	actual, err = r.SpectralRadius()
	if err != nil {
		return 0, false, err
	}
	return actual, math.Abs(actual-declared) > tolerance, nil
}

// EitherOrFeedback snaps every non-zero entry of W_or (the
// output-feedback weights) to +magnitude with probability fract, else
// -magnitude. This is the Go form of the original reservoir builder's
// either_or post-processing step — spec.md §9 flags its effect on
// training as unclear, so it is a separate method rather than always-on.
// Load does not call it, and nothing in the daemon reads
// config.ReservoirConfig.EitherOrFeedback to apply it.
func (r *Reservoir) EitherOrFeedback(magnitude, fract float64, rng *rand.Rand) {
	rows, cols := r.weightsOutRes.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := r.weightsOutRes.At(i, j)
			if v == 0 {
				continue
			}
			if rng.Float64() < fract {
				r.weightsOutRes.Set(i, j, magnitude)
			} else {
				r.weightsOutRes.Set(i, j, -magnitude)
			}
		}
	}
}

// Size, Inputs, Outputs and Visible expose the reservoir's fixed
// dimensions.
func (r *Reservoir) Size() int    { return r.size }
func (r *Reservoir) Inputs() int  { return r.inputs }
func (r *Reservoir) Outputs() int { return r.outputs }
func (r *Reservoir) Visible() int { return r.visible }
