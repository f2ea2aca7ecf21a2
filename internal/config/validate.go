package config

import (
	"errors"
	"fmt"

	"github.com/flemzord/pulse/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present,
// checks that all referenced module IDs exist in the registry
// and validates the telemetry section.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateTelemetry(cfg)...)

	return errors.Join(errs...)
}

func validateTelemetry(cfg *Config) []error {
	var errs []error
	if r := cfg.Telemetry.SamplingRate; r != nil && (*r < 0 || *r > 1) {
		errs = append(errs, fmt.Errorf("config: telemetry.sampling_rate must be between 0 and 1, got %g", *r))
	}
	if cfg.Telemetry.SamplingRate != nil && !cfg.Telemetry.Enabled() {
		errs = append(errs, errors.New("config: telemetry.sampling_rate is set but telemetry.otlp_endpoint is empty"))
	}
	return errs
}
