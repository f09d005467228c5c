package tempo

import (
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Policy selects when hitWindow recomputes its FFT on an incoming hit.
type Policy int

const (
	// PolicyNoFourier never computes a new estimate.
	PolicyNoFourier Policy = iota
	// PolicyInterval computes every Interval-th hit.
	PolicyInterval
	// PolicyFourier computes on every hit.
	PolicyFourier
	// PolicyBandedInterval computes every Interval-th hit, then
	// tightens the band around the new estimate.
	PolicyBandedInterval
)

// HitPolicy pairs a Policy with its interval, where applicable.
type HitPolicy struct {
	Kind     Policy
	Interval uint32
}

// DefaultHitPolicy matches the default described in spec.md §4.B.
func DefaultHitPolicy() HitPolicy {
	return HitPolicy{Kind: PolicyBandedInterval, Interval: 3}
}

const (
	minimumHitsForFourier = 5
	minimumFrequencyHz    = 40.0 / 60.0
	maximumFrequencyHz    = 210.0 / 60.0
	windowLengthSeconds   = 5.0
	bandWidthFraction     = 0.3
)

// window holds the discretized hit history and FFT scratch state
// behind the tempo estimator. Not safe for concurrent use on its own;
// Estimator supplies the locking.
type window struct {
	start        time.Time
	history      []uint64 // most recent first, non-increasing
	samplePeriod float64  // seconds per discrete sampling period

	fft *fourier.FFT

	bestFrequency float64
	minBand       float64
	maxBand       float64
	hitCount      uint64

	bandTighteningFraction float64
}

// newWindow creates a window of the given size (the FFT length and the
// number of discrete hit slots retained) and sample period in seconds.
func newWindow(size int, samplePeriod float64) *window {
	return &window{
		history:                make([]uint64, size),
		samplePeriod:           samplePeriod,
		fft:                    fourier.NewFFT(size),
		bestFrequency:          2.0,
		minBand:                minimumFrequencyHz,
		maxBand:                maximumFrequencyHz,
		bandTighteningFraction: 0.15,
	}
}

// hit records one onset at time now and, depending on policy, updates
// bestFrequency. Returns true if a new estimate was computed
// (regardless of whether it differs from the previous one).
func (w *window) hit(policy HitPolicy, now time.Time) bool {
	w.hitCount++

	if w.hitCount == 1 {
		w.start = now
	}

	currentPeriod := now.Sub(w.start).Seconds() / w.samplePeriod
	discrete := uint64(currentPeriod + 0.5)

	copy(w.history[1:], w.history[:len(w.history)-1])
	w.history[0] = discrete

	if policy.Kind == PolicyNoFourier {
		return false
	}

	if policy.Kind == PolicyInterval || policy.Kind == PolicyBandedInterval {
		if policy.Interval == 0 || w.hitCount%uint64(policy.Interval) != 0 {
			return false
		}
	}

	spectrum, ok := w.computeSpectrum()
	if !ok {
		return false
	}

	spectrum.SpectralSum(w.freqPerBin())

	dominant, ok := spectrum.BandPass(w.minBand, w.maxBand).Dominant()
	if ok {
		w.bestFrequency = dominant.FrequencyHz
	}

	if policy.Kind == PolicyBandedInterval {
		w.setBand()
	}

	return true
}

func (w *window) freqPerBin() float64 {
	return 1.0 / (float64(len(w.history)) * w.samplePeriod)
}

// setBand tightens the search band to ±bandTighteningFraction around
// the current best frequency, clamped to the global plausible-tempo
// range.
func (w *window) setBand() {
	half := w.bandTighteningFraction
	w.minBand = w.bestFrequency * (1.0 - half)
	w.maxBand = w.bestFrequency * (1.0 + half)

	if w.minBand < minimumFrequencyHz {
		w.minBand = minimumFrequencyHz
	}
	if w.maxBand > maximumFrequencyHz {
		w.maxBand = maximumFrequencyHz
	}
}

// createFFTBuffer builds a dense, real-valued ramp buffer from the
// sparse discrete hit history: the sample i periods before the most
// recent hit (stored at index n-1-i, so the most recent hit is last) is
// 1.0 decaying linearly to 0.0 across windowLengthSeconds if a hit lands
// exactly on that discrete period, else 0. Returns false
// if fewer than minimumHitsForFourier hits fall within the buffer.
func (w *window) createFFTBuffer() ([]float64, bool) {
	n := len(w.history)
	if n == 0 {
		return nil, false
	}

	latest := w.history[0]
	buf := make([]float64, n)
	hits := 0
	searchFrom := 0

	for i := 0; i < n; i++ {
		elapsed := float64(i) * w.samplePeriod
		if uint64(i) > latest || elapsed > windowLengthSeconds {
			continue
		}

		target := latest - uint64(i)
		for j := searchFrom; j < n; j++ {
			if w.history[j] == target {
				searchFrom = j
				hits++
				buf[n-1-i] = 1.0 - elapsed/windowLengthSeconds
				break
			}
			if w.history[j] < target {
				break
			}
		}
	}

	if hits < minimumHitsForFourier {
		return nil, false
	}
	return buf, true
}

// computeSpectrum runs the forward FFT over the current hit buffer and
// maps bins to (frequency, magnitude) pairs. gonum's real-input FFT
// already returns only the non-redundant half of the spectrum (bins
// 0..N/2), so no negative-frequency folding is needed.
func (w *window) computeSpectrum() (Spectrum, bool) {
	buf, ok := w.createFFTBuffer()
	if !ok {
		return nil, false
	}

	coeffs := w.fft.Coefficients(nil, buf)
	freqPerBin := w.freqPerBin()

	spectrum := make(Spectrum, len(coeffs))
	for i, c := range coeffs {
		spectrum[i] = FrequencyComponent{
			FrequencyHz: float64(i) * freqPerBin,
			Magnitude:   cmplx.Abs(c),
		}
	}
	return spectrum, true
}
