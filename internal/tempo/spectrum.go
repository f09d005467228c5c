package tempo

// FrequencyComponent is a single (frequency, magnitude) pair produced
// by the hit window's FFT.
type FrequencyComponent struct {
	FrequencyHz float64
	Magnitude   float64
}

// Spectrum is an ordered collection of frequency components, band-pass
// filterable the way the hit window selects a dominant tempo.
type Spectrum []FrequencyComponent

// BandPass returns the components whose frequency lies strictly
// between low and high.
func (s Spectrum) BandPass(low, high float64) Spectrum {
	out := make(Spectrum, 0, len(s))
	for _, c := range s {
		if c.FrequencyHz > low && c.FrequencyHz < high {
			out = append(out, c)
		}
	}
	return out
}

// HighPass returns components above cutoff.
func (s Spectrum) HighPass(cutoff float64) Spectrum {
	out := make(Spectrum, 0, len(s))
	for _, c := range s {
		if c.FrequencyHz > cutoff {
			out = append(out, c)
		}
	}
	return out
}

// LowPass returns components below cutoff.
func (s Spectrum) LowPass(cutoff float64) Spectrum {
	out := make(Spectrum, 0, len(s))
	for _, c := range s {
		if c.FrequencyHz < cutoff {
			out = append(out, c)
		}
	}
	return out
}

// Dominant returns the component with the largest magnitude. ok is
// false for an empty spectrum.
func (s Spectrum) Dominant() (FrequencyComponent, bool) {
	if len(s) == 0 {
		return FrequencyComponent{}, false
	}
	best := s[0]
	for _, c := range s[1:] {
		if c.Magnitude > best.Magnitude {
			best = c
		}
	}
	return best, true
}

// SpectralSum reinforces harmonic relationships: for every bin, half
// its magnitude is added to the bins nearest its 2nd through 5th
// harmonic. This is done against a snapshot of the input magnitudes so
// reinforcement from one bin never cascades into another bin's own
// contribution within the same pass.
func (s Spectrum) SpectralSum(freqPerBin float64) {
	if freqPerBin <= 0 || len(s) == 0 {
		return
	}

	original := make([]float64, len(s))
	for i, c := range s {
		original[i] = c.Magnitude
	}

	for i, c := range s {
		if c.FrequencyHz <= 0 || original[i] <= 0 {
			continue
		}
		for harmonic := 2; harmonic <= 5; harmonic++ {
			targetFreq := c.FrequencyHz * float64(harmonic)
			targetBin := int(targetFreq/freqPerBin + 0.5)
			if targetBin < 0 || targetBin >= len(s) {
				continue
			}
			s[targetBin].Magnitude += original[i] * 0.5
		}
	}
}
