// Package model persists and loads reservoir models. A model is a pair
// of files under the configured data directory: name.toml (the
// human-editable metadata sidecar) and name.bin (a deterministic
// binary dump of the immutable reservoir parameters).
package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Metadata describes a reservoir model without holding its weights.
type Metadata struct {
	Inputs         int     `toml:"inputs"`
	Outputs        int     `toml:"outputs"`
	Size           int     `toml:"size"`
	TimestepMs     int     `toml:"timestep_ms"`
	SpectralRadius float64 `toml:"spectral_radius"`
	LeakRate       float64 `toml:"leak_rate"`
	InputWidth     int     `toml:"input_width"`
	Activation     string  `toml:"activation"`
	NpySource      bool    `toml:"npy_source"`
	TrainingMode   string  `toml:"training_mode"`
}

// metadataPath and blobPath resolve the two files backing a logical
// model name within a data directory.
func metadataPath(dataDir, name string) string {
	return filepath.Join(dataDir, "models", name+".toml")
}

func blobPath(dataDir, name string) string {
	return filepath.Join(dataDir, "models", name+".bin")
}

// LoadMetadata decodes a model's name.toml sidecar.
func LoadMetadata(dataDir, name string) (Metadata, error) {
	var md Metadata
	if _, err := toml.DecodeFile(metadataPath(dataDir, name), &md); err != nil {
		return Metadata{}, fmt.Errorf("model: failed to load metadata for %q: %w", name, err)
	}
	return md, nil
}

// SaveMetadata encodes a model's name.toml sidecar, creating the
// models directory if necessary.
func SaveMetadata(dataDir, name string, md Metadata) error {
	dir := filepath.Join(dataDir, "models")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("model: failed to create models directory: %w", err)
	}

	f, err := os.Create(metadataPath(dataDir, name))
	if err != nil {
		return fmt.Errorf("model: failed to create metadata file for %q: %w", name, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(md); err != nil {
		return fmt.Errorf("model: failed to encode metadata for %q: %w", name, err)
	}
	return nil
}
