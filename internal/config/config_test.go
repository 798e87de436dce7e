package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	if cfg.AllowedDeviance == nil {
		t.Fatal("AllowedDeviance must be set")
	}
	if cfg.IncrementalSeverity == nil {
		t.Fatal("IncrementalSeverity must be set")
	}
	if cfg.DirectionalDeviance == nil {
		t.Fatal("DirectionalDeviance must be set")
	}
	if cfg.MinimumContinuousError == nil {
		t.Fatal("MinimumContinuousError must be set")
	}
	if cfg.ContinuityClamp == nil {
		t.Fatal("ContinuityClamp must be set")
	}
	if cfg.GridCellSize == nil {
		t.Fatal("GridCellSize must be set")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must pass Validate(): %v", err)
	}
}

func TestEmptyTuningConfig(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.AllowedDeviance != nil {
		t.Error("expected AllowedDeviance to be nil")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("an empty config must still pass Validate(): %v", err)
	}

	// Getters must fall back to documented defaults.
	if got := cfg.GetAllowedDeviance(); got != 0.3 {
		t.Errorf("GetAllowedDeviance() = %v, want 0.3", got)
	}
	if got := cfg.GetGridCellSize(); got != 30.0 {
		t.Errorf("GetGridCellSize() = %v, want 30.0", got)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "allowed_deviance": 0.25,
  "incremental_severity": 0.4,
  "directional_deviance": 0.5,
  "minimum_continuous_error": 4,
  "continuity_clamp": 3,
  "grid_cell_size": 15.0
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.GetAllowedDeviance() != 0.25 {
		t.Errorf("GetAllowedDeviance() = %v, want 0.25", cfg.GetAllowedDeviance())
	}
	if cfg.GetContinuityClamp() != 3 {
		t.Errorf("GetContinuityClamp() = %v, want 3", cfg.GetContinuityClamp())
	}
	if cfg.GetGridCellSize() != 15.0 {
		t.Errorf("GetGridCellSize() = %v, want 15.0", cfg.GetGridCellSize())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "allowed_deviance": "oops"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("expected error when loading invalid JSON, got nil")
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("expected error for file size > 1MB, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "valid config from defaults file",
			cfg:     MustLoadDefaultConfig(),
			wantErr: false,
		},
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name: "non-positive allowed deviance",
			cfg: &TuningConfig{
				AllowedDeviance: ptrFloat64(0),
			},
			wantErr: true,
		},
		{
			name: "directional deviance out of range",
			cfg: &TuningConfig{
				DirectionalDeviance: ptrFloat64(1.5),
			},
			wantErr: true,
		},
		{
			name: "zero minimum continuous error",
			cfg: &TuningConfig{
				MinimumContinuousError: ptrInt(0),
			},
			wantErr: true,
		},
		{
			name: "negative continuity clamp",
			cfg: &TuningConfig{
				ContinuityClamp: ptrInt(-1),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
