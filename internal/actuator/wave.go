package actuator

import "math"

// WaveKind selects the shape of one beat's sample burst. Pulse and
// Sine are grounded directly on the original implementation's
// WaveType; Saw, Slope and SlowSaw generalize it to the five variants
// spec.md §4.G names.
type WaveKind int

const (
	Pulse WaveKind = iota
	Sine
	Saw
	Slope
	SlowSaw
)

// Wave describes one beat waveform: its shape, width in seconds, and
// (for the periodic shapes) frequency in Hz.
type Wave struct {
	Kind    WaveKind
	WidthS  float64
	FreqHz  float64 // used by Sine and Saw; ignored by Pulse, Slope, SlowSaw
}

// Generate produces the float sample burst for one beat at the given
// sample rate, in the range [-1, 1].
func (w Wave) Generate(sampleRate int) []float64 {
	width := int(float64(sampleRate) * w.WidthS)
	if width <= 0 {
		return nil
	}

	samples := make([]float64, width)

	switch w.Kind {
	case Pulse:
		for i := range samples {
			samples[i] = 1.0
		}

	case Sine:
		for i := range samples {
			t := float64(i) / float64(sampleRate)
			samples[i] = math.Sin(2 * math.Pi * w.FreqHz * t)
		}

	case Saw:
		period := float64(sampleRate) / w.FreqHz
		for i := range samples {
			phase := math.Mod(float64(i), period) / period
			samples[i] = 2*phase - 1
		}

	case Slope:
		// A single linear decay from 1.0 to 0.0 across the whole
		// burst: an envelope rather than a periodic tone.
		for i := range samples {
			samples[i] = 1.0 - float64(i)/float64(width)
		}

	case SlowSaw:
		// One sawtooth cycle spanning the entire burst width, i.e. a
		// Saw whose period is fixed to WidthS regardless of FreqHz.
		for i := range samples {
			phase := float64(i) / float64(width)
			samples[i] = 2*phase - 1
		}
	}

	return samples
}
