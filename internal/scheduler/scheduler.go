// Package scheduler implements the Output Scheduler & Quantizer (spec
// component E): a cooperative loop that, at a fixed granularity,
// decides whether to fire a beat or emit a continuous event, reading
// the Tempo Estimator's latest frequency and the Prediction Buffer's
// nearest-in-time forecast.
package scheduler

import (
	"context"
	"sync"
	"time"

	"robodrummerd/internal/bus"
	"robodrummerd/internal/prediction"
)

// Config holds the scheduler's timing and threshold parameters.
type Config struct {
	Granularity     time.Duration // loop period, default 5ms
	Subdivision     float64       // quantization subdivisions per cycle, default 4
	Threshold       float64       // prediction must exceed this to fire
	ToleranceFactor float64       // staleness tolerance = TimestepMs * ToleranceFactor
	TimestepMs      float64       // reservoir tick period, for staleness tolerance
	ActuatorDelay   time.Duration // compensates for downstream output latency
}

// Scheduler runs the cooperative quantize/threshold loop against one
// output Mode (or ContinuousMode).
type Scheduler struct {
	cfg Config

	modeMu sync.Mutex
	mode   interface{}

	thresholdMu sync.Mutex
	threshold   float64

	tempo   *bus.Latest[float64]
	predBuf *prediction.Buffer

	quantizationInterval time.Duration
	nextQuantize         time.Time
	haveNext             bool
	lastTempoHz          float64
}

// New creates a Scheduler. mode must implement Mode, ContinuousMode,
// or both.
func New(cfg Config, tempo *bus.Latest[float64], predBuf *prediction.Buffer, mode interface{}) *Scheduler {
	if cfg.Granularity <= 0 {
		cfg.Granularity = 5 * time.Millisecond
	}
	if cfg.Subdivision <= 0 {
		cfg.Subdivision = 4
	}
	if cfg.ToleranceFactor <= 0 {
		cfg.ToleranceFactor = 5.0
	}
	return &Scheduler{cfg: cfg, tempo: tempo, predBuf: predBuf, mode: mode, threshold: cfg.Threshold}
}

// SetMode swaps the active output mode. Safe to call while Run is
// driving the loop from another goroutine; takes effect on the next
// iteration.
func (s *Scheduler) SetMode(mode interface{}) {
	s.modeMu.Lock()
	s.mode = mode
	s.modeMu.Unlock()
}

// SetThreshold updates the fire threshold used by gated modes.
func (s *Scheduler) SetThreshold(threshold float64) {
	s.thresholdMu.Lock()
	s.threshold = threshold
	s.thresholdMu.Unlock()
}

func (s *Scheduler) currentThreshold() float64 {
	s.thresholdMu.Lock()
	defer s.thresholdMu.Unlock()
	return s.threshold
}

// Threshold reports the fire threshold currently in effect.
func (s *Scheduler) Threshold() float64 {
	return s.currentThreshold()
}

// Run drives the loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		iterStart := time.Now()

		s.modeMu.Lock()
		mode := s.mode
		s.modeMu.Unlock()
		continuous, isContinuous := mode.(ContinuousMode)
		gated, isGated := mode.(Mode)

		if hz, ok := s.tempo.TryRecvAll(); ok && hz != s.lastTempoHz {
			s.lastTempoHz = hz
			if hz > 0 {
				s.quantizationInterval = time.Duration((1.0 / hz / s.cfg.Subdivision) * float64(time.Second))
			}
			if !s.haveNext {
				s.nextQuantize = iterStart
				s.haveNext = true
			}
		}

		now := time.Now()

		if isContinuous {
			value, _, _ := s.predBuf.Lookup(now.Add(s.cfg.ActuatorDelay))
			continuous.Update(now, value, s.lastTempoHz)
		} else if isGated && s.haveNext && !now.Before(s.nextQuantize) {
			value, delta, ok := s.predBuf.Lookup(now.Add(s.cfg.ActuatorDelay))
			toleranceMs := s.cfg.TimestepMs * s.cfg.ToleranceFactor

			if !ok || float64(delta.Milliseconds()) >= toleranceMs {
				// Stale prediction: leave next_quantize unchanged, retry
				// next iteration.
			} else {
				if value > s.currentThreshold() {
					gated.Fire(now)
				}
				s.nextQuantize = s.nextQuantize.Add(s.quantizationInterval)
			}
		}

		if remaining := s.cfg.Granularity - time.Since(iterStart); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}
