// Package config loads and validates the tuning parameters for the track
// matching pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root configuration for the matching pipeline. Every
// field is a pointer so a partial JSON document leaves the rest at their
// Get*-method defaults; this lets a caller override a single parameter
// without restating the whole set.
type TuningConfig struct {
	// AnalysisConfig — severity classification (C7).
	AllowedDeviance        *float64 `json:"allowed_deviance,omitempty"`
	IncrementalSeverity    *float64 `json:"incremental_severity,omitempty"`
	DirectionalDeviance    *float64 `json:"directional_deviance,omitempty"`
	MinimumContinuousError *int     `json:"minimum_continuous_error,omitempty"`

	// SnappingConfig — nearest-neighbor snapping (C6).
	ContinuityClamp *int `json:"continuity_clamp,omitempty"`

	// Grid cell size (C5), meters.
	GridCellSize *float64 `json:"grid_cell_size,omitempty"`
}

// Helper functions to create pointers.
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file is
// validated to have a .json extension and be under the max file size.
// Fields omitted from the JSON retain their default values, so partial
// configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath. It searches the current directory and common parent
// directories. Panics if the file cannot be loaded; intended for tests and
// binaries that have already validated config availability.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that every set field holds a value within its documented
// range (spec.md §6).
func (c *TuningConfig) Validate() error {
	if c.AllowedDeviance != nil && *c.AllowedDeviance <= 0 {
		return fmt.Errorf("allowed_deviance must be positive, got %f", *c.AllowedDeviance)
	}
	if c.IncrementalSeverity != nil && *c.IncrementalSeverity <= 0 {
		return fmt.Errorf("incremental_severity must be positive, got %f", *c.IncrementalSeverity)
	}
	if c.DirectionalDeviance != nil {
		if *c.DirectionalDeviance <= 0 || *c.DirectionalDeviance > 1 {
			return fmt.Errorf("directional_deviance must be in (0, 1], got %f", *c.DirectionalDeviance)
		}
	}
	if c.MinimumContinuousError != nil && *c.MinimumContinuousError < 1 {
		return fmt.Errorf("minimum_continuous_error must be >= 1, got %d", *c.MinimumContinuousError)
	}
	if c.ContinuityClamp != nil && *c.ContinuityClamp < 0 {
		return fmt.Errorf("continuity_clamp must be non-negative, got %d", *c.ContinuityClamp)
	}
	if c.GridCellSize != nil && *c.GridCellSize <= 0 {
		return fmt.Errorf("grid_cell_size must be positive, got %f", *c.GridCellSize)
	}
	return nil
}

// GetAllowedDeviance returns allowed_deviance or its default (meters).
func (c *TuningConfig) GetAllowedDeviance() float64 {
	if c.AllowedDeviance == nil {
		return 0.3
	}
	return *c.AllowedDeviance
}

// GetIncrementalSeverity returns incremental_severity or its default
// (meters per severity step).
func (c *TuningConfig) GetIncrementalSeverity() float64 {
	if c.IncrementalSeverity == nil {
		return 0.5
	}
	return *c.IncrementalSeverity
}

// GetDirectionalDeviance returns directional_deviance or its default.
func (c *TuningConfig) GetDirectionalDeviance() float64 {
	if c.DirectionalDeviance == nil {
		return 0.6
	}
	return *c.DirectionalDeviance
}

// GetMinimumContinuousError returns minimum_continuous_error or its default.
func (c *TuningConfig) GetMinimumContinuousError() int {
	if c.MinimumContinuousError == nil {
		return 3
	}
	return *c.MinimumContinuousError
}

// GetContinuityClamp returns continuity_clamp or its default.
func (c *TuningConfig) GetContinuityClamp() int {
	if c.ContinuityClamp == nil {
		return 5
	}
	return *c.ContinuityClamp
}

// GetGridCellSize returns grid_cell_size or its default (meters). 30m is a
// sensible default for typical race courses (spec.md §6).
func (c *TuningConfig) GetGridCellSize() float64 {
	if c.GridCellSize == nil {
		return 30.0
	}
	return *c.GridCellSize
}
