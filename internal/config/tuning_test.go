package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "multiple_scattering": false,
  "track_model": "integrated",
  "far_side_margin_mm": 2.5,
  "crossing_max_iterations": 40
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetMultipleScattering() != false {
		t.Errorf("GetMultipleScattering() = %v, want false", cfg.GetMultipleScattering())
	}
	if cfg.GetTrackModel() != TrackModelIntegrated {
		t.Errorf("GetTrackModel() = %q, want %q", cfg.GetTrackModel(), TrackModelIntegrated)
	}
	if cfg.GetFarSideMarginMM() != 2.5 {
		t.Errorf("GetFarSideMarginMM() = %v, want 2.5", cfg.GetFarSideMarginMM())
	}
	if cfg.GetCrossingMaxIterations() != 40 {
		t.Errorf("GetCrossingMaxIterations() = %d, want 40", cfg.GetCrossingMaxIterations())
	}

	// omitted fields fall back to defaults
	if cfg.GetEnergyLoss() != true {
		t.Errorf("GetEnergyLoss() = %v, want true", cfg.GetEnergyLoss())
	}
	if cfg.GetIntegratorMaxSteps() != 100000 {
		t.Errorf("GetIntegratorMaxSteps() = %d, want 100000", cfg.GetIntegratorMaxSteps())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigWrongExtension(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadTuningConfig(configPath); err == nil {
		t.Error("Expected error for non-.json file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"debug": `},
		{"wrong type", `{"far_side_margin_mm": "wide"}`},
		{"unknown model", `{"track_model": "kalman"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "invalid.json")
			if err := os.WriteFile(configPath, []byte(tt.json), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			if _, err := LoadTuningConfig(configPath); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name: "full valid config",
			cfg: &TuningConfig{
				MultipleScattering:          ptrBool(true),
				TrackModel:                  ptrString(TrackModelHelical),
				ParticleMassGeV:             ptrFloat64(0.105658),
				FarSideMarginMM:             ptrFloat64(0),
				CrossingToleranceUniform:    ptrFloat64(1e-9),
				CrossingToleranceNonUniform: ptrFloat64(1e-4),
				CrossingMaxIterations:       ptrInt(1),
			},
			wantErr: false,
		},
		{
			name:    "negative margin",
			cfg:     &TuningConfig{FarSideMarginMM: ptrFloat64(-1)},
			wantErr: true,
		},
		{
			name:    "zero mass",
			cfg:     &TuningConfig{ParticleMassGeV: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "zero tolerance",
			cfg:     &TuningConfig{IntegratorToleranceMM: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "zero iterations",
			cfg:     &TuningConfig{CrossingMaxIterations: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "zero integrator steps",
			cfg:     &TuningConfig{IntegratorMaxSteps: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "unknown track model",
			cfg:     &TuningConfig{TrackModel: ptrString("rk")},
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

func TestGettersDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetTrackModel(); got != TrackModelHelical {
		t.Errorf("GetTrackModel() = %q, want %q", got, TrackModelHelical)
	}
	if got := cfg.GetParticleMassGeV(); got != 0.13957018 {
		t.Errorf("GetParticleMassGeV() = %v, want 0.13957018", got)
	}
	if got := cfg.GetCrossingToleranceUniform(); got != 1e-8 {
		t.Errorf("GetCrossingToleranceUniform() = %v, want 1e-8", got)
	}
	if got := cfg.GetCrossingToleranceNonUniform(); got != 1e-5 {
		t.Errorf("GetCrossingToleranceNonUniform() = %v, want 1e-5", got)
	}
	if got := cfg.GetIntegratorInitialStepMM(); got != 0.01 {
		t.Errorf("GetIntegratorInitialStepMM() = %v, want 0.01", got)
	}
	if got := cfg.GetIntegratorToleranceMM(); got != 1e-7 {
		t.Errorf("GetIntegratorToleranceMM() = %v, want 1e-7", got)
	}
	if got := cfg.GetJacobianStep(); got != 1e-6 {
		t.Errorf("GetJacobianStep() = %v, want 1e-6", got)
	}
	if got := cfg.GetDebug(); got {
		t.Errorf("GetDebug() = %v, want false", got)
	}

	empty := &TuningConfig{TrackModel: ptrString("")}
	if got := empty.GetTrackModel(); got != TrackModelHelical {
		t.Errorf("GetTrackModel() with empty string = %q, want %q", got, TrackModelHelical)
	}
}

// TestDefaultsFileMatchesGetters keeps config/tuning.defaults.json and the
// built-in fallbacks in step.
func TestDefaultsFileMatchesGetters(t *testing.T) {
	file := MustLoadDefaultConfig()
	builtin := EmptyTuningConfig()

	if file.GetMultipleScattering() != builtin.GetMultipleScattering() ||
		file.GetEnergyLoss() != builtin.GetEnergyLoss() ||
		file.GetTrackModel() != builtin.GetTrackModel() ||
		file.GetParticleMassGeV() != builtin.GetParticleMassGeV() ||
		file.GetFarSideMarginMM() != builtin.GetFarSideMarginMM() ||
		file.GetCrossingToleranceUniform() != builtin.GetCrossingToleranceUniform() ||
		file.GetCrossingToleranceNonUniform() != builtin.GetCrossingToleranceNonUniform() ||
		file.GetCrossingMaxIterations() != builtin.GetCrossingMaxIterations() ||
		file.GetIntegratorInitialStepMM() != builtin.GetIntegratorInitialStepMM() ||
		file.GetIntegratorToleranceMM() != builtin.GetIntegratorToleranceMM() ||
		file.GetIntegratorMaxSteps() != builtin.GetIntegratorMaxSteps() ||
		file.GetJacobianStep() != builtin.GetJacobianStep() ||
		file.GetDebug() != builtin.GetDebug() {
		t.Errorf("%s disagrees with built-in defaults", DefaultConfigPath)
	}

	// every key is present in the file
	if file.MultipleScattering == nil || file.TrackModel == nil || file.JacobianStep == nil || file.Debug == nil {
		t.Errorf("%s is missing keys", DefaultConfigPath)
	}
}
