package scheduler

import "sync"

// ArpeggioState holds an ordered chord and a cursor that advances
// modulo the chord length on each Next call. Ported from the original
// implementation's Arpeggio struct, generalized so UpdateChord can be
// called concurrently with Next from the chord bus consumer.
type ArpeggioState struct {
	mu           sync.Mutex
	chord        []uint8
	current      int
	durationS    float64
	octaveOffset uint8
}

// NewArpeggioState creates an arpeggio state over chord, with each note
// raised by octaveOffset semitones, and a per-note duration of
// durationS seconds.
func NewArpeggioState(chord []uint8, durationS float64, octaveOffset uint8) *ArpeggioState {
	offsetChord := make([]uint8, len(chord))
	for i, n := range chord {
		offsetChord[i] = n + octaveOffset
	}
	return &ArpeggioState{
		chord:        offsetChord,
		durationS:    durationS,
		octaveOffset: octaveOffset,
	}
}

// Next advances the cursor and returns the note it now points at.
func (a *ArpeggioState) Next() uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.chord) == 0 {
		return 0
	}
	a.current = (a.current + 1) % len(a.chord)
	return a.chord[a.current]
}

// UpdateChord replaces the chord being arpeggiated, re-applying the
// octave offset, and resets the cursor to the last note so the next
// Next call begins the new chord from its first note.
func (a *ArpeggioState) UpdateChord(chord []uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()

	offsetChord := make([]uint8, len(chord))
	for i, n := range chord {
		offsetChord[i] = n + a.octaveOffset
	}
	a.chord = offsetChord
	if len(a.chord) > 0 {
		a.current = len(a.chord) - 1
	} else {
		a.current = 0
	}
}

// DurationS returns the configured per-note duration in seconds.
func (a *ArpeggioState) DurationS() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.durationS
}
