// Package midiio bridges the real MIDI transport onto the RoboDrummer
// core's internal event shapes. It is the only package that imports
// gitlab.com/gomidi/midi/v2 directly; everything upstream of it deals
// in plain structs so a deterministic test source can stand in for a
// real device.
package midiio

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// RawEvent is a transport-agnostic view of an incoming MIDI channel
// message: note on/off or control change.
type RawEvent struct {
	Channel  uint8
	Note     uint8
	Velocity uint8
	IsNoteOn bool
	IsCC     bool
	CCNumber uint8
	CCValue  uint8
}

// EventSource is the interface the onset receiver consumes. Satisfied
// both by InPort (a real MIDI device) and by any deterministic test
// double.
type EventSource interface {
	Events() <-chan RawEvent
	Close() error
}

// InPort listens on a real MIDI input device and decodes messages into
// RawEvent, forwarding them on a channel.
type InPort struct {
	port   drivers.In
	stop   func()
	events chan RawEvent
}

// OpenInPort opens the named MIDI input device. An empty name selects
// the system default input.
func OpenInPort(name string) (*InPort, error) {
	var in drivers.In
	var err error
	if name == "" {
		in, err = midi.InPort(0)
	} else {
		in, err = midi.FindInPort(name)
	}
	if err != nil {
		return nil, fmt.Errorf("midiio: failed to open input port %q: %w", name, err)
	}

	p := &InPort{
		port:   in,
		events: make(chan RawEvent, 64),
	}

	stop, err := midi.ListenTo(in, p.onMessage)
	if err != nil {
		return nil, fmt.Errorf("midiio: failed to listen on input port %q: %w", name, err)
	}
	p.stop = stop

	return p, nil
}

func (p *InPort) onMessage(msg midi.Message, _ int32) {
	var ch, key, vel uint8
	var controller, value uint8

	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		p.events <- RawEvent{Channel: ch, Note: key, Velocity: vel, IsNoteOn: true}
	case msg.GetNoteOff(&ch, &key, &vel):
		p.events <- RawEvent{Channel: ch, Note: key, Velocity: 0, IsNoteOn: false}
	case msg.GetControlChange(&ch, &controller, &value):
		p.events <- RawEvent{Channel: ch, IsCC: true, CCNumber: controller, CCValue: value}
	}
}

// Events exposes the decoded event stream.
func (p *InPort) Events() <-chan RawEvent {
	return p.events
}

// Close stops listening and releases the underlying device.
func (p *InPort) Close() error {
	if p.stop != nil {
		p.stop()
	}
	close(p.events)
	return p.port.Close()
}

// Sender is the output side: the scheduler and actuator modes emit
// through this interface rather than touching gomidi directly.
type Sender interface {
	NoteOn(channel, note, velocity uint8) error
	NoteOff(channel, note uint8) error
	ControlChange(channel, controller, value uint8) error
}

// OutPort sends MIDI channel messages to a real output device.
type OutPort struct {
	port drivers.Out
}

// OpenOutPort opens the named MIDI output device. An empty name
// selects the system default output.
func OpenOutPort(name string) (*OutPort, error) {
	var out drivers.Out
	var err error
	if name == "" {
		out, err = midi.OutPort(0)
	} else {
		out, err = midi.FindOutPort(name)
	}
	if err != nil {
		return nil, fmt.Errorf("midiio: failed to open output port %q: %w", name, err)
	}
	return &OutPort{port: out}, nil
}

// NoteOn sends a NoteOn message.
func (o *OutPort) NoteOn(channel, note, velocity uint8) error {
	return o.send(midi.NoteOn(channel, note, velocity))
}

// NoteOff sends a NoteOff message.
func (o *OutPort) NoteOff(channel, note uint8) error {
	return o.send(midi.NoteOff(channel, note))
}

// ControlChange sends a ControlChange message.
func (o *OutPort) ControlChange(channel, controller, value uint8) error {
	return o.send(midi.ControlChange(channel, controller, value))
}

func (o *OutPort) send(msg midi.Message) error {
	if err := o.port.Send(msg.Bytes()); err != nil {
		return fmt.Errorf("midiio: failed to send message: %w", err)
	}
	return nil
}

// Close releases the underlying device.
func (o *OutPort) Close() error {
	return o.port.Close()
}
