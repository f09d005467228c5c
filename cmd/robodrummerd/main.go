// Package main is the entry point for the robodrummerd daemon.
// robodrummerd fuses a MIDI onset stream through a tempo estimator and
// a reservoir computer into timed percussion/CC/arpeggio output, and
// exposes its running state to control clients over a local IPC socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gonum.org/v1/gonum/mat"

	"robodrummerd/internal/actuator"
	"robodrummerd/internal/auth"
	"robodrummerd/internal/bus"
	"robodrummerd/internal/config"
	"robodrummerd/internal/ipc"
	"robodrummerd/internal/midiio"
	"robodrummerd/internal/model"
	"robodrummerd/internal/onset"
	"robodrummerd/internal/prediction"
	"robodrummerd/internal/reservoir"
	"robodrummerd/internal/scheduler"
	"robodrummerd/internal/status"
	"robodrummerd/internal/tempo"
	"robodrummerd/internal/wire"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Flags holds the daemon's command-line configuration.
type Flags struct {
	SocketPath string
	ConfigDir  string
	ModelName  string
	Mode       string
	TestMode   bool
	Verbose    bool
}

func main() {
	flags := parseFlags()

	if flags.Verbose {
		log.Printf("robodrummerd version %s starting...", Version)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, flags); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func parseFlags() *Flags {
	flags := &Flags{}

	flag.StringVar(&flags.SocketPath, "socket", "", "IPC socket path (default: auto-generated based on UID)")
	flag.StringVar(&flags.ConfigDir, "config", "", "Configuration directory (default: ~/.config/robodrummerd)")
	flag.StringVar(&flags.ModelName, "model", "", "Reservoir model name (default: from config)")
	flag.StringVar(&flags.Mode, "mode", "drum-midi", "Output mode: drum-midi, drum-robot, cc, arpeggio")
	flag.BoolVar(&flags.TestMode, "test-mode", false, "Run in test mode (skip pairing notifications)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.Parse()

	if flags.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		flags.ConfigDir = homeDir + "/.config/robodrummerd"
	}

	if flags.SocketPath == "" {
		flags.SocketPath = fmt.Sprintf("/tmp/robodrummerd-%d.sock", os.Getuid())
	}

	return flags
}

func run(ctx context.Context, flags *Flags) error {
	if err := os.MkdirAll(flags.ConfigDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configMgr := config.NewManager(flags.ConfigDir)
	if err := configMgr.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := configMgr.Get()
	if flags.ModelName != "" {
		cfg.Reservoir.ModelName = flags.ModelName
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = flags.ConfigDir
	}

	md, err := model.LoadMetadata(dataDir, cfg.Reservoir.ModelName)
	if err != nil {
		return fmt.Errorf("failed to load model metadata: %w", err)
	}
	blob, err := model.LoadBlob(dataDir, cfg.Reservoir.ModelName)
	if err != nil {
		return fmt.Errorf("failed to load model blob: %w", err)
	}

	res, err := reservoir.Load(blob)
	if err != nil {
		return fmt.Errorf("failed to build reservoir: %w", err)
	}

	if actual, drifted, err := res.CheckSpectralRadius(md.SpectralRadius, 0.1); err != nil {
		log.Printf("[RESERVOIR] Warning: spectral radius check failed: %v", err)
	} else if drifted {
		log.Printf("[RESERVOIR] Warning: spectral radius drifted (declared %.4f, actual %.4f)", md.SpectralRadius, actual)
	}

	telemetry, err := newTelemetryLog(dataDir)
	if err != nil {
		log.Printf("[TELEMETRY] Warning: failed to open telemetry log: %v", err)
		log.Printf("[TELEMETRY] Continuing without runtime wire-format logging")
		telemetry = nil
	} else {
		defer telemetry.Close()
	}

	statusBroadcaster, err := status.NewBroadcaster()
	if err != nil {
		log.Printf("[STATUS] Warning: failed to initialize status broadcaster: %v", err)
		log.Printf("[STATUS] Continuing without DBus status broadcast")
		statusBroadcaster = status.NewNoOpBroadcaster()
	}
	defer statusBroadcaster.Close()

	authStore, err := auth.NewStore(flags.ConfigDir + "/clients.json")
	if err != nil {
		return fmt.Errorf("failed to initialize auth store: %w", err)
	}
	authManager := auth.NewManager(authStore, flags.TestMode)

	tempoEstimator := tempo.New(tempo.Config{
		WindowSize:          nextPowerOfTwo(int(cfg.Tempo.WindowLengthSeconds * 1000 / float64(cfg.Tempo.SamplePeriodMs))),
		SamplePeriodSeconds: float64(cfg.Tempo.SamplePeriodMs) / 1000.0,
	})
	tempoBus := bus.NewLatest[float64]()
	tempoOut := make(chan float64, 4)
	go tempoEstimator.Run(tempoOut)
	go func() {
		for hz := range tempoOut {
			tempoBus.Send(hz)
			if telemetry != nil {
				telemetry.writeFrame(telemetryKindTempo, wire.EncodeTempo(hz))
			}
			if err := statusBroadcaster.Broadcast(status.Update{Component: "tempo", Level: status.LevelInfo, Message: fmt.Sprintf("%.3fHz", hz), At: time.Now()}); err != nil {
				log.Printf("[STATUS] Warning: broadcast failed: %v", err)
			}
		}
	}()
	defer tempoEstimator.Close()

	predBuf := prediction.New(256 + cfg.Prediction.CapacityPadding)

	inPort, err := midiio.OpenInPort("")
	if err != nil {
		return fmt.Errorf("failed to open MIDI input port: %w", err)
	}
	defer inPort.Close()

	receiver := onset.New(inPort, onset.Config{
		Filter: onset.Filter{
			Channel:    cfg.MIDI.Channel,
			HasChannel: true,
		},
		Clock:        func() int64 { return time.Now().UnixMilli() },
		ChordChannel: true,
	})
	go receiver.Run()

	go func() {
		for o := range receiver.ToTempo.Chan() {
			tempoEstimator.Hit(time.UnixMilli(o.TimeMs))
			if telemetry != nil {
				if frame, err := wire.EncodeOnset(wire.OnsetRecord{Tag: wire.TagInputNotes, InputNotes: []uint8{o.Note}}); err == nil {
					telemetry.writeFrame(telemetryKindOnset, frame)
				}
			}
		}
	}()

	var pulseMu sync.Mutex
	inputStepsRemaining := 0
	go func() {
		for range receiver.ToFeel.Chan() {
			pulseMu.Lock()
			inputStepsRemaining = md.InputWidth
			pulseMu.Unlock()
		}
	}()

	chordState := scheduler.NewArpeggioState([]uint8{cfg.MIDI.Note, cfg.MIDI.Note + 4, cfg.MIDI.Note + 7}, 0.25, 0)
	if receiver.ToChord != nil {
		go func() {
			ticker := time.NewTicker(5 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if o, ok := receiver.ToChord.TryRecvAll(); ok {
						chordState.UpdateChord([]uint8{o.Note})
					}
				}
			}
		}()
	}

	tickPeriod := time.Duration(cfg.Reservoir.TickPeriodMs) * time.Millisecond
	if tickPeriod <= 0 {
		tickPeriod = 20 * time.Millisecond
	}
	predShift := time.Duration(cfg.Prediction.ShiftMs) * time.Millisecond

	go func() {
		lastTempoHz := 2.0
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			iterStart := time.Now()

			// Peek, not TryRecvAll: the scheduler drains this same bus to
			// detect tempo changes, and consuming it here too would starve
			// whichever of the two reads second.
			if hz, ok := tempoBus.Peek(); ok && hz > 0 {
				lastTempoHz = hz
			}

			pulseMu.Lock()
			steps := inputStepsRemaining
			if steps > 0 {
				inputStepsRemaining--
			}
			pulseMu.Unlock()

			tick := mat.NewVecDense(res.Inputs(), nil)
			if steps > 0 {
				tick.SetVec(0, 1.0)
			}

			res.Forward(tick)
			output := res.Output(0)
			predBuf.Insert(time.Now(), predShift, output)
			if telemetry != nil {
				telemetry.writeFrame(telemetryKindFeel, wire.EncodeFeel(float32(output)))
			}

			// Effective tick period scales inversely with the current
			// tempo: equal to the nominal period at metronome_hz == 2,
			// twice it at 1 Hz.
			adjusted := time.Duration(float64(tickPeriod) * 2.0 / lastTempoHz)
			if remaining := adjusted - time.Since(iterStart); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}()

	outPort, outPortErr := midiio.OpenOutPort("")
	if outPortErr != nil {
		log.Printf("[MIDI] Warning: failed to open MIDI output port: %v", outPortErr)
		log.Printf("[MIDI] Drum-MIDI, CC and Arpeggio modes will be unavailable")
	} else {
		defer outPort.Close()
	}

	wave := actuator.Wave{
		Kind:   parseWaveKind(cfg.Actuator.WaveType),
		WidthS: cfg.Actuator.WidthMs / 1000.0,
		FreqHz: 220.0,
	}
	act, actErr := actuator.New(cfg.Actuator.SampleRate, 2, wave)
	if actErr != nil {
		log.Printf("[ACTUATOR] Warning: failed to open audio output: %v", actErr)
		log.Printf("[ACTUATOR] Drum-Robot mode will be unavailable")
	} else {
		defer act.Close()
	}

	ccMap := scheduler.NewActivityMap(40, 0.3)
	ccNorm := &scheduler.Normalizer{}
	agenda := scheduler.NewAgenda()
	if act != nil {
		go agenda.Run(act.AssertBeat)
	}
	defer agenda.Close()

	buildMode := func(name string) (interface{}, error) {
		switch name {
		case "drum-midi":
			if outPort == nil {
				return nil, fmt.Errorf("drum-midi mode requires a MIDI output port")
			}
			return &scheduler.DrumMIDI{Sender: outPort, Channel: cfg.MIDI.Channel, Note: cfg.MIDI.Note, Velocity: cfg.MIDI.Velocity}, nil
		case "drum-robot":
			if act == nil {
				return nil, fmt.Errorf("drum-robot mode requires an audio output device")
			}
			return &scheduler.DrumRobot{Agenda: agenda, ShiftS: 0, DelayS: cfg.Actuator.WidthMs / 1000.0}, nil
		case "cc":
			if outPort == nil {
				return nil, fmt.Errorf("cc mode requires a MIDI output port")
			}
			width := int(cfg.MIDI.CCMax) - int(cfg.MIDI.CCMin)
			return &scheduler.CC{
				Sender:   outPort,
				Channel:  cfg.MIDI.Channel,
				CCNumber: cfg.MIDI.CCNumber,
				Width:    width,
				Offset:   int(cfg.MIDI.CCMin),
				Map:      ccMap,
				Norm:     ccNorm,
			}, nil
		case "arpeggio":
			if outPort == nil {
				return nil, fmt.Errorf("arpeggio mode requires a MIDI output port")
			}
			return &scheduler.Arpeggio{Sender: outPort, Channel: cfg.MIDI.Channel, State: chordState}, nil
		default:
			return nil, fmt.Errorf("unknown mode %q", name)
		}
	}

	initialMode, err := buildMode(flags.Mode)
	if err != nil {
		return fmt.Errorf("failed to initialize output mode: %w", err)
	}

	sched := scheduler.New(scheduler.Config{
		Subdivision:     float64(cfg.Scheduler.Subdivision),
		Threshold:       cfg.Scheduler.Threshold,
		ToleranceFactor: cfg.Scheduler.ToleranceFactor,
		TimestepMs:      float64(md.TimestepMs),
	}, tempoBus, predBuf, initialMode)
	go sched.Run(ctx)

	ctl := &daemonControl{
		modeName:         flags.Mode,
		tempoEstimator:   tempoEstimator,
		predBuf:          predBuf,
		res:              res,
		sched:            sched,
		declaredSpectral: md.SpectralRadius,
		buildMode:        buildMode,
	}

	server, err := ipc.NewServer(flags.SocketPath, authManager, configMgr, ctl, ctl)
	if err != nil {
		return fmt.Errorf("failed to initialize IPC server: %w", err)
	}

	log.Printf("Starting IPC server on %s", flags.SocketPath)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("IPC server error: %w", err)
	}

	return nil
}

// daemonControl adapts the running components into ipc.StatusProvider
// and ipc.ModeController so the IPC layer never reaches into
// scheduler/reservoir/tempo internals directly.
type daemonControl struct {
	mu       sync.Mutex
	modeName string

	tempoEstimator   *tempo.Estimator
	predBuf          *prediction.Buffer
	res              *reservoir.Reservoir
	sched            *scheduler.Scheduler
	declaredSpectral float64

	buildMode func(name string) (interface{}, error)
}

func (d *daemonControl) Status() ipc.StatusSnapshot {
	d.mu.Lock()
	modeName := d.modeName
	d.mu.Unlock()

	hz := d.tempoEstimator.BestFrequency()
	value, _, _ := d.predBuf.Lookup(time.Now())
	actual, drifted, _ := d.res.CheckSpectralRadius(d.declaredSpectral, 0.1)

	return ipc.StatusSnapshot{
		Mode:           modeName,
		TempoHz:        hz,
		BPM:            hz * 60.0,
		HitCount:       d.tempoEstimator.HitCount(),
		LastPrediction: value,
		Threshold:      d.sched.Threshold(),
		SpectralDrift:  drifted,
		SpectralRadius: actual,
	}
}

func (d *daemonControl) SetMode(name string) error {
	newMode, err := d.buildMode(name)
	if err != nil {
		return err
	}
	d.sched.SetMode(newMode)

	d.mu.Lock()
	d.modeName = name
	d.mu.Unlock()
	return nil
}

func (d *daemonControl) SetThreshold(threshold float64) error {
	d.sched.SetThreshold(threshold)
	return nil
}

func parseWaveKind(name string) actuator.WaveKind {
	switch name {
	case "sine":
		return actuator.Sine
	case "saw":
		return actuator.Saw
	case "slope":
		return actuator.Slope
	case "slow-saw":
		return actuator.SlowSaw
	default:
		return actuator.Pulse
	}
}

// telemetryKind tags which wire-format frame follows in the log, since
// the three frame shapes in internal/wire aren't self-describing when
// interleaved in a single stream.
type telemetryKind byte

const (
	telemetryKindTempo telemetryKind = iota
	telemetryKindFeel
	telemetryKindOnset
)

// telemetryLog appends length-prefixed internal/wire frames to a file
// under the data directory, so a recorded session can be replayed or
// inspected offline the way the original implementation's
// bincode-over-a-pipe message stream could be.
type telemetryLog struct {
	mu sync.Mutex
	f  *os.File
}

func newTelemetryLog(dataDir string) (*telemetryLog, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("telemetry: failed to create data directory: %w", err)
	}
	f, err := os.OpenFile(dataDir+"/telemetry.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to open log: %w", err)
	}
	return &telemetryLog{f: f}, nil
}

// writeFrame appends [1-byte kind][4-byte big-endian length][payload].
// Best-effort: a write failure is silently dropped (neither logged nor
// propagated), since telemetry is diagnostic rather than load-bearing.
func (t *telemetryLog) writeFrame(kind telemetryKind, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	header := []byte{byte(kind), byte(len(payload) >> 24), byte(len(payload) >> 16), byte(len(payload) >> 8), byte(len(payload))}
	if _, err := t.f.Write(header); err != nil {
		return
	}
	t.f.Write(payload)
}

func (t *telemetryLog) Close() error {
	return t.f.Close()
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1024
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
