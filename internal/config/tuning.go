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

// Track model names accepted by track_model.
const (
	TrackModelHelical    = "helical"
	TrackModelIntegrated = "integrated"
)

// TuningConfig represents the root configuration for transport tuning
// parameters. Every field is optional; the Get* accessors fall back to the
// built-in defaults for omitted fields.
type TuningConfig struct {
	// Physics toggles
	MultipleScattering *bool    `json:"multiple_scattering,omitempty"`
	EnergyLoss         *bool    `json:"energy_loss,omitempty"`
	TrackModel         *string  `json:"track_model,omitempty"` // "helical" or "integrated"
	ParticleMassGeV    *float64 `json:"particle_mass_gev,omitempty"`

	// Crossing search
	FarSideMarginMM             *float64 `json:"far_side_margin_mm,omitempty"`
	CrossingToleranceUniform    *float64 `json:"crossing_tolerance_uniform,omitempty"`
	CrossingToleranceNonUniform *float64 `json:"crossing_tolerance_nonuniform,omitempty"`
	CrossingMaxIterations       *int     `json:"crossing_max_iterations,omitempty"`

	// Integrator
	IntegratorInitialStepMM *float64 `json:"integrator_initial_step_mm,omitempty"`
	IntegratorToleranceMM   *float64 `json:"integrator_tolerance_mm,omitempty"`
	IntegratorMaxSteps      *int     `json:"integrator_max_steps,omitempty"`
	JacobianStep            *float64 `json:"jacobian_step,omitempty"`

	Debug *bool `json:"debug,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/kaltransport/ run from cmd/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.TrackModel != nil {
		switch *c.TrackModel {
		case TrackModelHelical, TrackModelIntegrated:
		default:
			return fmt.Errorf("track_model must be %q or %q, got %q", TrackModelHelical, TrackModelIntegrated, *c.TrackModel)
		}
	}

	if c.ParticleMassGeV != nil && *c.ParticleMassGeV <= 0 {
		return fmt.Errorf("particle_mass_gev must be positive, got %g", *c.ParticleMassGeV)
	}

	if c.FarSideMarginMM != nil && *c.FarSideMarginMM < 0 {
		return fmt.Errorf("far_side_margin_mm must be non-negative, got %g", *c.FarSideMarginMM)
	}

	positive := []struct {
		name string
		v    *float64
	}{
		{"crossing_tolerance_uniform", c.CrossingToleranceUniform},
		{"crossing_tolerance_nonuniform", c.CrossingToleranceNonUniform},
		{"integrator_initial_step_mm", c.IntegratorInitialStepMM},
		{"integrator_tolerance_mm", c.IntegratorToleranceMM},
		{"jacobian_step", c.JacobianStep},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %g", p.name, *p.v)
		}
	}

	if c.CrossingMaxIterations != nil && *c.CrossingMaxIterations < 1 {
		return fmt.Errorf("crossing_max_iterations must be at least 1, got %d", *c.CrossingMaxIterations)
	}
	if c.IntegratorMaxSteps != nil && *c.IntegratorMaxSteps < 1 {
		return fmt.Errorf("integrator_max_steps must be at least 1, got %d", *c.IntegratorMaxSteps)
	}

	return nil
}

// GetMultipleScattering returns the multiple_scattering value or the default.
func (c *TuningConfig) GetMultipleScattering() bool {
	if c.MultipleScattering == nil {
		return true
	}
	return *c.MultipleScattering
}

// GetEnergyLoss returns the energy_loss value or the default.
func (c *TuningConfig) GetEnergyLoss() bool {
	if c.EnergyLoss == nil {
		return true
	}
	return *c.EnergyLoss
}

// GetTrackModel returns the track_model value or the default.
func (c *TuningConfig) GetTrackModel() string {
	if c.TrackModel == nil || *c.TrackModel == "" {
		return TrackModelHelical
	}
	return *c.TrackModel
}

// GetParticleMassGeV returns the particle_mass_gev value or the default (charged pion).
func (c *TuningConfig) GetParticleMassGeV() float64 {
	if c.ParticleMassGeV == nil {
		return 0.13957018
	}
	return *c.ParticleMassGeV
}

// GetFarSideMarginMM returns the far_side_margin_mm value or the default.
func (c *TuningConfig) GetFarSideMarginMM() float64 {
	if c.FarSideMarginMM == nil {
		return 1.0
	}
	return *c.FarSideMarginMM
}

// GetCrossingToleranceUniform returns the crossing_tolerance_uniform value or the default.
func (c *TuningConfig) GetCrossingToleranceUniform() float64 {
	if c.CrossingToleranceUniform == nil {
		return 1e-8
	}
	return *c.CrossingToleranceUniform
}

// GetCrossingToleranceNonUniform returns the crossing_tolerance_nonuniform value or the default.
func (c *TuningConfig) GetCrossingToleranceNonUniform() float64 {
	if c.CrossingToleranceNonUniform == nil {
		return 1e-5
	}
	return *c.CrossingToleranceNonUniform
}

// GetCrossingMaxIterations returns the crossing_max_iterations value or the default.
func (c *TuningConfig) GetCrossingMaxIterations() int {
	if c.CrossingMaxIterations == nil {
		return 100
	}
	return *c.CrossingMaxIterations
}

// GetIntegratorInitialStepMM returns the integrator_initial_step_mm value or the default.
func (c *TuningConfig) GetIntegratorInitialStepMM() float64 {
	if c.IntegratorInitialStepMM == nil {
		return 0.01
	}
	return *c.IntegratorInitialStepMM
}

// GetIntegratorToleranceMM returns the integrator_tolerance_mm value or the default.
func (c *TuningConfig) GetIntegratorToleranceMM() float64 {
	if c.IntegratorToleranceMM == nil {
		return 1e-7
	}
	return *c.IntegratorToleranceMM
}

// GetIntegratorMaxSteps returns the integrator_max_steps value or the default.
func (c *TuningConfig) GetIntegratorMaxSteps() int {
	if c.IntegratorMaxSteps == nil {
		return 100000
	}
	return *c.IntegratorMaxSteps
}

// GetJacobianStep returns the jacobian_step value or the default.
func (c *TuningConfig) GetJacobianStep() float64 {
	if c.JacobianStep == nil {
		return 1e-6
	}
	return *c.JacobianStep
}

// GetDebug returns the debug value or the default.
func (c *TuningConfig) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}
