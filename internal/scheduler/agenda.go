package scheduler

import (
	"sync"
	"time"
)

// Agenda is the Output Agenda (drum-robot mode only): a FIFO of future
// instants at which to assert a beat. Entries are non-decreasing.
type Agenda struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []time.Time
	closed bool
}

// NewAgenda creates an empty Output Agenda.
func NewAgenda() *Agenda {
	a := &Agenda{}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// Enqueue appends a future instant to the tail of the agenda.
func (a *Agenda) Enqueue(at time.Time) {
	a.mu.Lock()
	a.queue = append(a.queue, at)
	a.mu.Unlock()
	a.cond.Signal()
}

// Run pops the head of the agenda, sleeps until it is due, then calls
// assertBeat. It blocks when the agenda is empty and returns once
// Close is called and the agenda has drained.
func (a *Agenda) Run(assertBeat func()) {
	for {
		a.mu.Lock()
		for len(a.queue) == 0 && !a.closed {
			a.cond.Wait()
		}
		if len(a.queue) == 0 && a.closed {
			a.mu.Unlock()
			return
		}
		due := a.queue[0]
		a.queue = a.queue[1:]
		a.mu.Unlock()

		if d := time.Until(due); d > 0 {
			time.Sleep(d)
		}
		assertBeat()
	}
}

// Close signals Run to return once the agenda drains.
func (a *Agenda) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.cond.Broadcast()
}

// Len reports the number of pending entries.
func (a *Agenda) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}
