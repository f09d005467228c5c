// Package tempo implements the Tempo Estimator (spec component B):
// given a stream of onset times, it maintains a sliding hit window and
// produces a stream of best-frequency estimates in Hz.
package tempo

import (
	"sync"
	"time"
)

// Config configures an Estimator.
type Config struct {
	// WindowSize is both the FFT length and the number of discrete
	// hit slots retained; should be a power of two. Zero selects 1024.
	WindowSize int

	// SamplePeriodSeconds is the discretization grain applied to hit
	// timestamps. Zero selects 0.05 (50ms).
	SamplePeriodSeconds float64

	// Policy selects when the FFT is recomputed. Zero value selects
	// DefaultHitPolicy.
	Policy HitPolicy
}

// Estimator owns a hit window and republishes the best-frequency
// estimate whenever it changes. One goroutine is expected to call Hit
// repeatedly; a second calls Run to drain changes onto the channel
// passed to it.
type Estimator struct {
	mu     sync.Mutex
	cond   *sync.Cond
	w      *window
	policy HitPolicy

	version     uint64
	lastVersion uint64

	lastPublished float64
	havePublished bool

	closed bool
}

// New creates an Estimator ready for concurrent Hit/Run use.
func New(cfg Config) *Estimator {
	size := cfg.WindowSize
	if size == 0 {
		size = 1024
	}
	period := cfg.SamplePeriodSeconds
	if period == 0 {
		period = 0.05
	}
	policy := cfg.Policy
	if policy.Kind == PolicyNoFourier && policy.Interval == 0 {
		policy = DefaultHitPolicy()
	}

	e := &Estimator{
		w:      newWindow(size, period),
		policy: policy,
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Hit records one onset. Safe for a single producer goroutine; pairs
// with Run, which is woken whenever the window's estimate changes.
func (e *Estimator) Hit(now time.Time) {
	e.mu.Lock()
	changed := e.w.hit(e.policy, now)
	if changed {
		e.version++
		e.cond.Broadcast()
	}
	e.mu.Unlock()
}

// Run blocks until a new estimate differs from the last one published
// on out, then sends it, and loops until Close is called. Intended to
// run in its own goroutine, mirroring the hit-window's
// mutex-plus-condition-variable consumer from spec.md §5.
func (e *Estimator) Run(out chan<- float64) {
	e.mu.Lock()
	for {
		for e.version == e.lastVersion && !e.closed {
			e.cond.Wait()
		}
		if e.closed {
			e.mu.Unlock()
			return
		}
		e.lastVersion = e.version
		freq := e.w.bestFrequency
		shouldSend := !e.havePublished || freq != e.lastPublished
		if shouldSend {
			e.lastPublished = freq
			e.havePublished = true
		}
		e.mu.Unlock()

		if shouldSend {
			out <- freq
		}
		e.mu.Lock()
	}
}

// Close unblocks any goroutine parked in Run.
func (e *Estimator) Close() {
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()
}

// BestFrequency returns the current best-frequency estimate without
// waiting for a change.
func (e *Estimator) BestFrequency() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.w.bestFrequency
}

// HitCount returns the number of hits recorded so far.
func (e *Estimator) HitCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.w.hitCount
}
