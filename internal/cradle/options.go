package cradle

import (
	"fmt"

	"github.com/banshee-data/kaltrack/internal/bfield"
	"github.com/banshee-data/kaltrack/internal/config"
	"github.com/banshee-data/kaltrack/internal/track"
)

// Model selects the trajectory model used between layers.
type Model int

const (
	// ModelHelical uses the closed-form helix throughout.
	ModelHelical Model = iota
	// ModelIntegrated integrates the equations of motion between layers.
	ModelIntegrated
)

func (m Model) String() string {
	switch m {
	case ModelHelical:
		return config.TrackModelHelical
	case ModelIntegrated:
		return config.TrackModelIntegrated
	default:
		return fmt.Sprintf("Model(%d)", int(m))
	}
}

// ParseModel converts a track_model tuning value.
func ParseModel(s string) (Model, error) {
	switch s {
	case config.TrackModelHelical, "":
		return ModelHelical, nil
	case config.TrackModelIntegrated:
		return ModelIntegrated, nil
	}
	return ModelHelical, fmt.Errorf("unknown track model %q", s)
}

// Options configures a cradle.
type Options struct {
	MultipleScattering bool
	EnergyLoss         bool
	Model              Model

	// Field drives the integrated model and decides whether frames and
	// field values are propagated to destination sites. Nil means the
	// field recorded on each site, taken as uniform.
	Field bfield.Field

	// FarSideMargin is the slack (mm) before a crossing farther from the
	// start than the destination is rejected.
	FarSideMargin float64

	CrossingTolUniform    float64
	CrossingTolNonUniform float64

	Integrator track.IntegratorSettings

	// Debug logs skipped layers through monitoring.Logf.
	Debug bool
}

// DefaultOptions returns the built-in tuning defaults.
func DefaultOptions() Options {
	return OptionsFromTuning(config.EmptyTuningConfig())
}

// OptionsFromTuning maps a tuning file onto cradle options. An unknown
// track model falls back to the helix; Validate rejects it beforehand.
func OptionsFromTuning(cfg *config.TuningConfig) Options {
	model, _ := ParseModel(cfg.GetTrackModel())
	integ := track.DefaultIntegratorSettings()
	integ.InitialStep = cfg.GetIntegratorInitialStepMM()
	integ.Tolerance = cfg.GetIntegratorToleranceMM()
	integ.MaxSteps = cfg.GetIntegratorMaxSteps()
	integ.JacobianStep = cfg.GetJacobianStep()
	return Options{
		MultipleScattering:    cfg.GetMultipleScattering(),
		EnergyLoss:            cfg.GetEnergyLoss(),
		Model:                 model,
		FarSideMargin:         cfg.GetFarSideMarginMM(),
		CrossingTolUniform:    cfg.GetCrossingToleranceUniform(),
		CrossingTolNonUniform: cfg.GetCrossingToleranceNonUniform(),
		Integrator:            integ,
		Debug:                 cfg.GetDebug(),
	}
}
