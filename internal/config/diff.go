package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// audio changes require a restart and are deliberately absent.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// EntitiesChanged is true when the correction entity list or its
	// thresholds changed. The corrector is rebuilt from NewCorrection.
	EntitiesChanged bool
	NewCorrection   CorrectionConfig

	MaxStepsChanged bool
	NewMaxSteps     int
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.EntitiesChanged || d.MaxStepsChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.App.LogLevel != new.App.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.App.LogLevel
	}

	if !slices.Equal(old.Correction.Entities, new.Correction.Entities) ||
		old.Correction.PhoneticThreshold != new.Correction.PhoneticThreshold ||
		old.Correction.FuzzyThreshold != new.Correction.FuzzyThreshold {
		d.EntitiesChanged = true
		d.NewCorrection = new.Correction
	}

	if old.App.MaxSteps != new.App.MaxSteps {
		d.MaxStepsChanged = true
		d.NewMaxSteps = new.App.MaxSteps
	}

	return d
}
