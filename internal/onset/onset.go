// Package onset implements the Onset Receiver (spec component A): a
// single producer that filters raw controller events and republishes
// note-on onsets to the Tempo Estimator and Reservoir Runtime.
package onset

import (
	"robodrummerd/internal/bus"
	"robodrummerd/internal/midiio"
)

// Onset is the filtered event this receiver forwards downstream.
type Onset struct {
	Note   uint8
	TimeMs int64 // monotonic, caller-supplied clock reading
}

// Clock returns the current monotonic time in milliseconds. Tests
// substitute a deterministic fake.
type Clock func() int64

// Filter narrows which incoming events are treated as onsets.
type Filter struct {
	Channel    uint8
	HasChannel bool // if false, any channel matches

	// NoteMin/NoteMax bound the accepted note range, inclusive. Zero
	// values with HasNoteRange false mean "any note".
	NoteMin, NoteMax uint8
	HasNoteRange     bool
}

func (f Filter) matches(ev midiio.RawEvent) bool {
	if f.HasChannel && ev.Channel != f.Channel {
		return false
	}
	if f.HasNoteRange && (ev.Note < f.NoteMin || ev.Note > f.NoteMax) {
		return false
	}
	return true
}

// Receiver consumes one EventSource and publishes filtered onsets onto
// the Tempo and Feel channels, and optionally a third Chord channel.
type Receiver struct {
	source EventSourceCloser
	filter Filter
	clock  Clock

	ToTempo *bus.Lossless[Onset]
	ToFeel  *bus.Lossless[Onset]
	ToChord *bus.Latest[Onset] // nil unless chord-filtering mode is enabled; latest-value, like every other chord consumer

	done chan struct{}
}

// EventSourceCloser is the subset of midiio.EventSource the receiver
// needs; named separately so test doubles don't need to import midiio.
type EventSourceCloser interface {
	Events() <-chan midiio.RawEvent
	Close() error
}

// Config configures a new Receiver.
type Config struct {
	Filter        Filter
	Clock         Clock
	ChordChannel  bool // when true, allocate ToChord
	ChannelBuffer int  // lossless channel capacity; 0 uses a sane default
}

// New creates a Receiver wired to source, ready for Run.
func New(source EventSourceCloser, cfg Config) *Receiver {
	buf := cfg.ChannelBuffer
	if buf == 0 {
		buf = 256
	}

	r := &Receiver{
		source:  source,
		filter:  cfg.Filter,
		clock:   cfg.Clock,
		ToTempo: bus.NewLossless[Onset](buf),
		ToFeel:  bus.NewLossless[Onset](buf),
		done:    make(chan struct{}),
	}
	if cfg.ChordChannel {
		r.ToChord = bus.NewLatest[Onset]()
	}
	return r
}

// Run consumes raw events until the source closes, forwarding every
// onset that passes the filter. It returns when the source's channel
// closes (transport loss per spec.md §7); downstream channels are then
// closed in turn so consumers observe orderly shutdown.
func (r *Receiver) Run() {
	defer close(r.done)
	defer r.ToTempo.Close()
	defer r.ToFeel.Close()

	for ev := range r.source.Events() {
		r.onEvent(ev)
	}
}

// onEvent applies the note-on/velocity>0/filter contract from spec.md
// §4.A: zero-velocity note-on and explicit note-off are dropped.
func (r *Receiver) onEvent(ev midiio.RawEvent) {
	if ev.IsCC {
		return
	}
	if !ev.IsNoteOn || ev.Velocity == 0 {
		return
	}
	if !r.filter.matches(ev) {
		return
	}

	o := Onset{Note: ev.Note, TimeMs: r.clock()}
	r.ToTempo.Send(o)
	r.ToFeel.Send(o)
	if r.ToChord != nil {
		r.ToChord.Send(o)
	}
}

// Done reports when Run has returned.
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

// Close releases the underlying event source.
func (r *Receiver) Close() error {
	return r.source.Close()
}
