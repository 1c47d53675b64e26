// Package config provides typed, validated configuration for the hybrid
// retrieval engine.
//
// Config collects every tunable named in the engine's external contract —
// BM25 parameters, RRF fusion parameters, result limits, and the on-disk
// locations of its three persisted artifacts — behind defaults that match
// a small reference corpus out of the box, and a Validate method that
// rejects out-of-range values before the engine ever opens a file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full set of engine-level knobs.
type Config struct {
	// BM25 parameters
	K1 float64 `yaml:"k1" validate:"gt=0"`
	B  float64 `yaml:"b" validate:"gte=0,lte=1"`

	// Hybrid fusion parameters
	RRFK        int `yaml:"rrf_k" validate:"gt=0"`
	CandidatesK int `yaml:"candidates_k" validate:"gt=0"`
	TopK        int `yaml:"top_k" validate:"gt=0"`

	// Sparse encoder dimension (StubEncoder's hashed vocabulary size)
	EncoderDimension int `yaml:"encoder_dimension" validate:"gt=0"`

	// Persisted artifact locations
	IndexPath       string `yaml:"index_path" validate:"required"`
	SparseIndexPath string `yaml:"sparse_index_path" validate:"required"`
	TitlesPath      string `yaml:"titles_path" validate:"required"`
}

// DefaultConfig returns the documented defaults for every parameter.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		K1:               1.5,
		B:                0.75,
		RRFK:             60,
		CandidatesK:      2000,
		TopK:             10,
		EncoderDimension: 30000,
		IndexPath:        filepath.Join(dataDir, "index.bin"),
		SparseIndexPath:  filepath.Join(dataDir, "splade_index"),
		TitlesPath:       filepath.Join(dataDir, "titles.db"),
	}
}

func defaultDataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".hybridengine")
}

// Load reads a YAML config file at path, applying DefaultConfig for any
// field the file doesn't set, then validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks all struct-tag constraints and returns a combined error
// describing every violation found.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// EnsureDataDirs creates the parent directories of every persisted
// artifact path, so a fresh Config can be handed straight to Engine.Build
// without the caller pre-creating directories.
func (c *Config) EnsureDataDirs() error {
	for _, p := range []string{c.IndexPath, c.SparseIndexPath, c.TitlesPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
	}
	return nil
}
