package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/edp1096/toy-strata/internal/config"
	"github.com/edp1096/toy-strata/internal/logging"
	"github.com/edp1096/toy-strata/pkg/calculator"
	"github.com/edp1096/toy-strata/pkg/dimension"
	"github.com/edp1096/toy-strata/pkg/motion"
	"github.com/edp1096/toy-strata/pkg/soil"
)

// loadConfig reads --config when given, otherwise the default locations.
func loadConfig(cmd *cobra.Command) (*config.StrataConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.StrataConfig
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLoggers(cfg *config.StrataConfig) (*slog.Logger, *logging.DecisionLogger) {
	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)

	dir := cfg.Output.DecisionsDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return logger, nil
		}
		dir = filepath.Join(home, ".strata")
	}
	return logger, logging.NewDecisionLogger(dir, cfg.Logging.Level)
}

func buildMotion(cfg config.MotionConfig) (motion.Motion, error) {
	var region motion.Region
	if err := region.UnmarshalText([]byte(cfg.Region)); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case "specified":
		m := motion.NewSpecifiedRvtMotion()
		if cfg.Name != "" {
			m.SetName(cfg.Name)
		}
		m.SetRegion(region)
		m.SetMagnitude(cfg.Magnitude)
		m.SetDistance(cfg.Distance)
		if err := m.SetSpectrum(cfg.Specified.Freq, cfg.Specified.FourierAcc); err != nil {
			return nil, err
		}
		m.SetDuration(cfg.Specified.Duration)
		return m, nil

	case "source_theory":
		var spacing dimension.Spacing
		if err := spacing.UnmarshalText([]byte(cfg.Freq.Spacing)); err != nil {
			return nil, err
		}

		m := motion.NewSourceTheoryRvtMotion()
		if cfg.Name != "" {
			m.SetName(cfg.Name)
		}
		freq := m.FreqDimension()
		freq.SetSpacing(spacing)
		freq.SetSize(cfg.Freq.Size)
		freq.SetMax(cfg.Freq.Max)
		freq.SetMin(cfg.Freq.Min)

		if c := cfg.Customized; c != nil {
			m.SetIsCustomized(true)
			m.SetRegion(region)
			m.SetStressDrop(c.StressDrop)
			m.SetPathAttenCoeff(c.PathAttenCoeff)
			m.SetPathAttenPower(c.PathAttenPower)
			m.SetShearVelocity(c.ShearVelocity)
			m.SetDensity(c.Density)
			m.SetSiteAtten(c.SiteAtten)
		} else {
			m.SetRegion(region)
		}
		m.SetMagnitude(cfg.Magnitude)
		m.SetDepth(cfg.Depth)
		m.SetDistance(cfg.Distance)
		if c := cfg.Customized; c != nil && c.GeoAtten > 0 {
			m.SetGeoAtten(c.GeoAtten)
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", motion.ErrUnknownKind, cfg.Kind)
}

func buildSoilType(cfg config.SoilTypeConfig) (*soil.SoilType, error) {
	if cfg.Model == "tabulated" {
		return &soil.SoilType{
			Name:   cfg.Name,
			UnitWt: cfg.UnitWt,
			ModulusReduction: soil.Curve{
				Strain: cfg.ModulusReduction.Strain,
				Values: cfg.ModulusReduction.Values,
			},
			Damping: soil.Curve{
				Strain: cfg.Damping.Strain,
				Values: cfg.Damping.Values,
			},
		}, nil
	}
	return soil.NewHyperbolicSoilType(cfg.Name, cfg.UnitWt, cfg.RefStrain, cfg.Curvature, cfg.MinDamping, cfg.MaxDamping)
}

func buildProfile(cfg config.ProfileConfig) (*soil.Profile, error) {
	types := make(map[string]*soil.SoilType, len(cfg.SoilTypes))
	for _, stc := range cfg.SoilTypes {
		st, err := buildSoilType(stc)
		if err != nil {
			return nil, err
		}
		types[stc.Name] = st
	}

	layers := make([]soil.Layer, len(cfg.Layers))
	for i, l := range cfg.Layers {
		st, ok := types[l.SoilType]
		if !ok {
			return nil, fmt.Errorf("layer %d: unknown soil type %q", i, l.SoilType)
		}
		layers[i] = soil.Layer{SoilType: st, Thickness: l.Thickness, ShearVel: l.ShearVel}
	}

	profile, err := soil.NewProfile(layers, soil.Bedrock{
		ShearVel: cfg.Bedrock.ShearVel,
		UnitWt:   cfg.Bedrock.UnitWt,
		Damping:  cfg.Bedrock.Damping,
	})
	if err != nil {
		return nil, err
	}
	if cfg.MaxFreq != soil.DefaultMaxFreq || cfg.WaveFraction != soil.DefaultWaveFraction {
		if err := profile.Discretize(cfg.MaxFreq, cfg.WaveFraction); err != nil {
			return nil, err
		}
	}
	return profile, nil
}

func buildCalculator(cfg config.CalculatorConfig) (calculator.Calculator, error) {
	switch cfg.Kind {
	case "linear_elastic":
		c := calculator.NewLinearElastic()
		if err := c.SetErrorTolerance(cfg.ErrorTolerance); err != nil {
			return nil, err
		}
		if err := c.SetMaxIterations(cfg.MaxIterations); err != nil {
			return nil, err
		}
		return c, nil

	case "equivalent_linear":
		c := calculator.NewEquivalentLinear()
		if err := c.SetStrainRatio(cfg.StrainRatio); err != nil {
			return nil, err
		}
		if err := c.SetErrorTolerance(cfg.ErrorTolerance); err != nil {
			return nil, err
		}
		if err := c.SetMaxIterations(cfg.MaxIterations); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", calculator.ErrUnknownKind, cfg.Kind)
}
