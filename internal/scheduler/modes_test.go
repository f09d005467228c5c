package scheduler

import (
	"sync"
	"testing"
	"time"
)

type modeFakeSender struct {
	mu       sync.Mutex
	noteOns  []uint8
	noteOffs []uint8
}

func (f *modeFakeSender) NoteOn(channel, note, velocity uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteOns = append(f.noteOns, note)
	return nil
}

func (f *modeFakeSender) NoteOff(channel, note uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteOffs = append(f.noteOffs, note)
	return nil
}

func (f *modeFakeSender) ControlChange(channel, controller, value uint8) error {
	return nil
}

func (f *modeFakeSender) snapshot() ([]uint8, []uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint8(nil), f.noteOns...), append([]uint8(nil), f.noteOffs...)
}

func TestDrumMIDIFireSendsNoteOn(t *testing.T) {
	sender := &modeFakeSender{}
	mode := &DrumMIDI{Sender: sender, Channel: 2, Note: 40, Velocity: 100}

	mode.Fire(time.Now())

	ons, _ := sender.snapshot()
	if len(ons) != 1 || ons[0] != 40 {
		t.Fatalf("expected one NoteOn for note 40, got %v", ons)
	}
}

func TestDrumRobotFireEnqueuesShiftedInstant(t *testing.T) {
	agenda := NewAgenda()
	mode := &DrumRobot{Agenda: agenda, ShiftS: 0.05, DelayS: 0.01}

	now := time.Now()
	mode.Fire(now)

	if agenda.Len() != 1 {
		t.Fatalf("expected one agenda entry, got %d", agenda.Len())
	}
	if d := agenda.queue[0].Sub(now); d < 39*time.Millisecond || d > 41*time.Millisecond {
		t.Fatalf("expected entry shifted by ShiftS-DelayS (40ms), got %v", d)
	}
}

func TestDrumRobotRunAssertsBeatOnDueEntries(t *testing.T) {
	agenda := NewAgenda()
	mode := &DrumRobot{Agenda: agenda, ShiftS: 0, DelayS: 0}

	var fired int32
	var mu sync.Mutex
	done := make(chan struct{})

	go func() {
		agenda.Run(func() {
			mu.Lock()
			fired++
			mu.Unlock()
		})
		close(done)
	}()

	mode.Fire(time.Now())

	time.Sleep(20 * time.Millisecond)
	agenda.Close()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Fatalf("expected exactly one assertBeat call, got %d", fired)
	}
}

func TestArpeggioFireSendsNoteOnThenScheduledNoteOff(t *testing.T) {
	sender := &modeFakeSender{}
	state := NewArpeggioState([]uint8{40, 44, 47}, 0.01, 0)
	mode := &Arpeggio{Sender: sender, Channel: 0, State: state}

	mode.Fire(time.Now())

	ons, _ := sender.snapshot()
	if len(ons) != 1 {
		t.Fatalf("expected one NoteOn, got %d", len(ons))
	}

	time.Sleep(30 * time.Millisecond)

	_, offs := sender.snapshot()
	if len(offs) != 1 || offs[0] != ons[0] {
		t.Fatalf("expected a matching deferred NoteOff for note %d, got %v", ons[0], offs)
	}
}
