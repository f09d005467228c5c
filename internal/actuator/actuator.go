// Package actuator implements the Robot Actuator (spec component G):
// it owns the audio output stream and turns a logical "beat" signal
// into a waveform sample burst. Grounded on the teacher's OtoOutput
// (mutex-guarded sample buffer feeding an oto.Player) and on the
// original implementation's atomic send_beat flag plus 1ms polling
// thread that stages pre-computed samples for the audio callback to
// drain.
package actuator

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/oto/v2"
)

const pollInterval = time.Millisecond

// Actuator owns an oto player and converts AssertBeat calls into a
// sample burst drained one frame at a time by the audio callback.
type Actuator struct {
	player oto.Player

	sampleRate int
	channels   int
	wave       Wave

	mu     sync.Mutex
	queue  []int16
	closed bool

	sendBeat atomic.Bool
	stopPoll chan struct{}
	pollDone chan struct{}
}

// New opens an audio output device via oto and starts the 1ms polling
// goroutine that stages samples whenever AssertBeat is called.
func New(sampleRate, channels int, wave Wave) (*Actuator, error) {
	ctx, ready, err := oto.NewContext(sampleRate, channels, 2)
	if err != nil {
		return nil, fmt.Errorf("actuator: failed to create oto context: %w", err)
	}
	<-ready

	a := &Actuator{
		sampleRate: sampleRate,
		channels:   channels,
		wave:       wave,
		stopPoll:   make(chan struct{}),
		pollDone:   make(chan struct{}),
	}
	a.player = ctx.NewPlayer(a)
	a.player.Play()

	go a.pollLoop()

	return a, nil
}

// AssertBeat signals that a beat should fire on the next poll tick.
// Safe to call from any goroutine, including the Output Scheduler's
// cooperative loop.
func (a *Actuator) AssertBeat() {
	a.sendBeat.Store(true)
}

// SetWave replaces the configured beat waveform.
func (a *Actuator) SetWave(w Wave) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.wave = w
}

func (a *Actuator) pollLoop() {
	defer close(a.pollDone)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopPoll:
			return
		case <-ticker.C:
			if !a.sendBeat.CompareAndSwap(true, false) {
				continue
			}
			a.mu.Lock()
			wave := a.wave
			a.mu.Unlock()

			samples := wave.Generate(a.sampleRate)
			pcm := make([]int16, len(samples))
			for i, s := range samples {
				pcm[i] = floatToInt16(s)
			}

			a.mu.Lock()
			a.queue = pcm
			a.mu.Unlock()
		}
	}
}

func floatToInt16(s float64) int16 {
	if s > 1 {
		s = 1
	}
	if s < -1 {
		s = -1
	}
	return int16(s * 32767)
}

// Read implements io.Reader for the oto player: one queued sample is
// replicated across every output channel per frame; an empty queue
// yields silence, matching spec.md §4.G's callback contract.
func (a *Actuator) Read(p []byte) (int, error) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return 0, io.EOF
	}

	bytesPerFrame := 2 * a.channels
	n := 0
	for n+bytesPerFrame <= len(p) {
		a.mu.Lock()
		var sample int16
		if len(a.queue) > 0 {
			sample = a.queue[0]
			a.queue = a.queue[1:]
		}
		a.mu.Unlock()

		for ch := 0; ch < a.channels; ch++ {
			off := n + ch*2
			p[off] = byte(sample)
			p[off+1] = byte(sample >> 8)
		}
		n += bytesPerFrame
	}
	return n, nil
}

// Close stops the polling goroutine and releases the audio player.
func (a *Actuator) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	close(a.stopPoll)
	<-a.pollDone

	return a.player.Close()
}

var _ io.Reader = (*Actuator)(nil)
