// Package config handles daemon configuration file management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the daemon configuration.
type Config struct {
	// DataDir is where to store data files (models, metadata, logs).
	DataDir string `json:"dataDir"`

	Tempo      TempoConfig      `json:"tempo"`
	Reservoir  ReservoirConfig  `json:"reservoir"`
	Prediction PredictionConfig `json:"prediction"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Actuator   ActuatorConfig   `json:"actuator"`
	MIDI       MIDIConfig       `json:"midi"`
}

// TempoConfig controls the hit window and Fourier-analysis policy.
// The daemon passes only WindowLengthSeconds and SamplePeriodMs (which
// size the estimator's window) to internal/tempo. The remaining fields
// are stored and saved with the config, but the estimator does not read
// them: it uses its own fixed values (5 hits, a 40–210 BPM band and a
// 0.15 tightening fraction).
type TempoConfig struct {
	// WindowLengthSeconds is how far back the hit window looks.
	WindowLengthSeconds float64 `json:"windowLengthSeconds"`

	// SamplePeriodMs is the discretization grain applied to hit timestamps.
	SamplePeriodMs int `json:"samplePeriodMs"`

	// MinimumHitsForFourier gates when an FFT is attempted at all.
	MinimumHitsForFourier int `json:"minimumHitsForFourier"`

	// MinFrequencyHz and MaxFrequencyHz bound plausible tempo.
	MinFrequencyHz float64 `json:"minFrequencyHz"`
	MaxFrequencyHz float64 `json:"maxFrequencyHz"`

	// BandWidthHz is the half-width of the band-pass applied before
	// picking the dominant frequency.
	BandWidthHz float64 `json:"bandWidthHz"`

	// BandTighteningFraction narrows the band around the last best
	// estimate once one is found (spec Open Question: default 0.15).
	BandTighteningFraction float64 `json:"bandTighteningFraction"`
}

// ReservoirConfig names the loaded model and its tick cadence.
// EitherOrFeedback is stored with the config but not read by the
// daemon; reservoir.Load never applies Reservoir.EitherOrFeedback.
type ReservoirConfig struct {
	ModelName     string `json:"modelName"`
	TickPeriodMs  int    `json:"tickPeriodMs"`
	EitherOrFeedback bool `json:"eitherOrFeedback"`
}

// PredictionConfig controls the prediction buffer's lookahead shift and
// ring capacity headroom.
type PredictionConfig struct {
	ShiftMs         int `json:"shiftMs"`
	CapacityPadding int `json:"capacityPadding"`
}

// SchedulerConfig controls output quantization and threshold behavior.
type SchedulerConfig struct {
	Granularity     string  `json:"granularity"`
	Subdivision     int     `json:"subdivision"`
	Threshold       float64 `json:"threshold"`
	ToleranceFactor float64 `json:"toleranceFactor"`
}

// ActuatorConfig controls the robot beat waveform.
type ActuatorConfig struct {
	WaveType   string  `json:"waveType"`
	WidthMs    float64 `json:"widthMs"`
	SampleRate int     `json:"sampleRate"`
}

// MIDIConfig controls note/CC output parameters.
type MIDIConfig struct {
	Channel    uint8 `json:"channel"`
	Note       uint8 `json:"note"`
	Velocity   uint8 `json:"velocity"`
	CCNumber   uint8 `json:"ccNumber"`
	CCMin      uint8 `json:"ccMin"`
	CCMax      uint8 `json:"ccMax"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "",
		Tempo: TempoConfig{
			WindowLengthSeconds:    5.0,
			SamplePeriodMs:         10,
			MinimumHitsForFourier:  5,
			MinFrequencyHz:         40.0 / 60.0,
			MaxFrequencyHz:         210.0 / 60.0,
			BandWidthHz:            0.3,
			BandTighteningFraction: 0.15,
		},
		Reservoir: ReservoirConfig{
			ModelName:        "default",
			TickPeriodMs:     20,
			EitherOrFeedback: false,
		},
		Prediction: PredictionConfig{
			ShiftMs:         0,
			CapacityPadding: 16,
		},
		Scheduler: SchedulerConfig{
			Granularity:     "quarter",
			Subdivision:     4,
			Threshold:       0.5,
			ToleranceFactor: 5.0,
		},
		Actuator: ActuatorConfig{
			WaveType:   "pulse",
			WidthMs:    10.0,
			SampleRate: 44100,
		},
		MIDI: MIDIConfig{
			Channel:  0,
			Note:     36,
			Velocity: 100,
			CCNumber: 1,
			CCMin:    0,
			CCMax:    127,
		},
	}
}

// Manager handles loading and saving configuration.
type Manager struct {
	configDir  string
	configPath string
	config     *Config
}

// NewManager creates a new configuration manager.
func NewManager(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configPath: filepath.Join(configDir, "config.json"),
		config:     DefaultConfig(),
	}
}

// Load reads the configuration from disk.
func (m *Manager) Load() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		m.config = DefaultConfig()
		return m.Save()
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.config = config
	return nil
}

// Save writes the configuration to disk.
func (m *Manager) Save() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	return m.config
}

// GetPath returns the config file path.
func (m *Manager) GetPath() string {
	return m.configPath
}

// Update updates the configuration and saves it.
func (m *Manager) Update(config *Config) error {
	m.config = config
	return m.Save()
}
