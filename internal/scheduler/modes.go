package scheduler

import (
	"time"

	"robodrummerd/internal/actuator"
	"robodrummerd/internal/midiio"
)

// Mode is the threshold-gated output: the scheduler calls Fire only
// when CheckPrediction accepts a fresh, above-threshold value at a
// quantize boundary.
type Mode interface {
	Fire(now time.Time)
}

// ContinuousMode runs every scheduler iteration regardless of the
// quantize/threshold gate. Only CC mode implements this.
type ContinuousMode interface {
	Update(now time.Time, prediction float64, tempoHz float64)
}

// DrumMIDI fires a fixed-velocity NoteOn with no delay compensation.
type DrumMIDI struct {
	Sender   midiio.Sender
	Channel  uint8
	Note     uint8
	Velocity uint8
}

// Fire implements Mode.
func (d *DrumMIDI) Fire(now time.Time) {
	_ = d.Sender.NoteOn(d.Channel, d.Note, d.Velocity)
}

// DrumRobot fires by enqueueing a delay-compensated instant onto the
// Output Agenda; a separate goroutine running Run (or Agenda.Run
// directly) pops it and asserts the beat on the actuator.
type DrumRobot struct {
	Agenda *Agenda
	ShiftS float64
	DelayS float64
}

// Fire implements Mode.
func (d *DrumRobot) Fire(now time.Time) {
	d.Agenda.Enqueue(now.Add(time.Duration((d.ShiftS - d.DelayS) * float64(time.Second))))
}

// Run drives the agenda until it is closed, asserting a beat on a
// through every due entry.
func (d *DrumRobot) Run(a *actuator.Actuator) {
	d.Agenda.Run(a.AssertBeat)
}

// CC is the continuous mode: it smooths predictions into a
// phase-indexed Periodic-Activity Map and emits an auto-ranged MIDI CC
// value on every iteration.
type CC struct {
	Sender     midiio.Sender
	Channel    uint8
	CCNumber   uint8
	Width      int
	Offset     int
	Map        *ActivityMap
	Norm       *Normalizer
	start      time.Time
	haveStart  bool
}

// Update implements ContinuousMode.
func (c *CC) Update(now time.Time, prediction float64, tempoHz float64) {
	if !c.haveStart {
		c.start = now
		c.haveStart = true
	}
	if tempoHz <= 0 {
		return
	}

	period := 4.0 * (1.0 / tempoHz)
	elapsed := now.Sub(c.start).Seconds()
	phase := elapsed / period

	smoothed := c.Map.Update(phase, prediction)
	value := c.Norm.Normalize(smoothed, c.Width, c.Offset)

	_ = c.Sender.ControlChange(c.Channel, c.CCNumber, value)
}

// Arpeggio advances an ArpeggioState and emits NoteOn/NoteOff pairs on
// the chord channel, scheduling the NoteOff on a timer goroutine in
// the style of the teacher's position-ticker goroutines.
type Arpeggio struct {
	Sender  midiio.Sender
	Channel uint8
	State   *ArpeggioState
}

// Fire implements Mode.
func (a *Arpeggio) Fire(now time.Time) {
	note := a.State.Next()
	if err := a.Sender.NoteOn(a.Channel, note, 127); err != nil {
		return
	}

	duration := time.Duration(a.State.DurationS() * float64(time.Second))
	go func() {
		time.Sleep(duration)
		_ = a.Sender.NoteOff(a.Channel, note)
	}()
}
