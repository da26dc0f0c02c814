// Package config loads run settings for strata from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// StrataConfig contains all settings for a site response run.
type StrataConfig struct {
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Motion     MotionConfig     `json:"motion" yaml:"motion"`
	Profile    ProfileConfig    `json:"profile" yaml:"profile"`
	Calculator CalculatorConfig `json:"calculator" yaml:"calculator"`
	Output     OutputConfig     `json:"output" yaml:"output"`
}

type LoggingConfig struct {
	// Level is "info" (default), "debug" or "trace". "debug" enables the
	// decisions.jsonl iteration trace; "trace" adds per-sublayer output.
	Level string `json:"level" yaml:"level"`
}

type MotionConfig struct {
	// Kind is "source_theory" (default) or "specified".
	Kind      string  `json:"kind" yaml:"kind"`
	Name      string  `json:"name,omitempty" yaml:"name,omitempty"`
	Region    string  `json:"region" yaml:"region"`
	Magnitude float64 `json:"magnitude" yaml:"magnitude"`
	Distance  float64 `json:"distance" yaml:"distance"` // km
	Depth     float64 `json:"depth" yaml:"depth"`       // km

	Freq FreqConfig `json:"freq" yaml:"freq"`

	// Customized replaces the region parameter bundle when present.
	Customized *CustomConfig `json:"customized,omitempty" yaml:"customized,omitempty"`

	// Specified holds the spectrum for the "specified" kind.
	Specified *SpecifiedConfig `json:"specified,omitempty" yaml:"specified,omitempty"`
}

type FreqConfig struct {
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Size    int     `json:"size" yaml:"size"`
	Spacing string  `json:"spacing" yaml:"spacing"` // "linear" or "log"
}

type CustomConfig struct {
	StressDrop     float64 `json:"stress_drop" yaml:"stress_drop"`
	GeoAtten       float64 `json:"geo_atten,omitempty" yaml:"geo_atten,omitempty"`
	PathAttenCoeff float64 `json:"path_atten_coeff" yaml:"path_atten_coeff"`
	PathAttenPower float64 `json:"path_atten_power" yaml:"path_atten_power"`
	ShearVelocity  float64 `json:"shear_velocity" yaml:"shear_velocity"`
	Density        float64 `json:"density" yaml:"density"`
	SiteAtten      float64 `json:"site_atten" yaml:"site_atten"`
}

type SpecifiedConfig struct {
	Freq       []float64 `json:"freq" yaml:"freq"`
	FourierAcc []float64 `json:"fourier_acc" yaml:"fourier_acc"`
	Duration   float64   `json:"duration" yaml:"duration"`
}

type ProfileConfig struct {
	SoilTypes []SoilTypeConfig `json:"soil_types" yaml:"soil_types"`
	Layers    []LayerConfig    `json:"layers" yaml:"layers"`
	Bedrock   BedrockConfig    `json:"bedrock" yaml:"bedrock"`

	// Sublayers are at most WaveFraction of the wavelength at MaxFreq.
	MaxFreq      float64 `json:"max_freq" yaml:"max_freq"`
	WaveFraction float64 `json:"wave_fraction" yaml:"wave_fraction"`
}

type SoilTypeConfig struct {
	Name   string  `json:"name" yaml:"name"`
	UnitWt float64 `json:"unit_wt" yaml:"unit_wt"` // kN/m^3

	// Model is "hyperbolic" (default) or "tabulated".
	Model      string  `json:"model" yaml:"model"`
	RefStrain  float64 `json:"ref_strain,omitempty" yaml:"ref_strain,omitempty"` // percent
	Curvature  float64 `json:"curvature,omitempty" yaml:"curvature,omitempty"`
	MinDamping float64 `json:"min_damping,omitempty" yaml:"min_damping,omitempty"` // percent
	MaxDamping float64 `json:"max_damping,omitempty" yaml:"max_damping,omitempty"` // percent

	ModulusReduction *CurveConfig `json:"modulus_reduction,omitempty" yaml:"modulus_reduction,omitempty"`
	Damping          *CurveConfig `json:"damping,omitempty" yaml:"damping,omitempty"`
}

type CurveConfig struct {
	Strain []float64 `json:"strain" yaml:"strain"`
	Values []float64 `json:"values" yaml:"values"`
}

type LayerConfig struct {
	SoilType  string  `json:"soil_type" yaml:"soil_type"`
	Thickness float64 `json:"thickness" yaml:"thickness"` // m
	ShearVel  float64 `json:"shear_vel" yaml:"shear_vel"` // m/s
}

type BedrockConfig struct {
	ShearVel float64 `json:"shear_vel" yaml:"shear_vel"`
	UnitWt   float64 `json:"unit_wt" yaml:"unit_wt"`
	Damping  float64 `json:"damping" yaml:"damping"`
}

type CalculatorConfig struct {
	// Kind is "equivalent_linear" (default) or "linear_elastic".
	Kind           string  `json:"kind" yaml:"kind"`
	StrainRatio    float64 `json:"strain_ratio" yaml:"strain_ratio"`
	ErrorTolerance float64 `json:"error_tolerance" yaml:"error_tolerance"` // percent
	MaxIterations  int     `json:"max_iterations" yaml:"max_iterations"`
}

type OutputConfig struct {
	// DBPath enables the results store when set.
	DBPath       string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	DecisionsDir string `json:"decisions_dir,omitempty" yaml:"decisions_dir,omitempty"`
}

// Default returns a run of the default source-theory motion through a
// single sand layer on soft rock.
func Default() *StrataConfig {
	return &StrataConfig{
		Logging: LoggingConfig{
			Level: "info",
		},
		Motion: MotionConfig{
			Kind:      "source_theory",
			Region:    "wus",
			Magnitude: 6.5,
			Distance:  20,
			Depth:     8,
			Freq: FreqConfig{
				Min:     0.05,
				Max:     50,
				Size:    1024,
				Spacing: "log",
			},
		},
		Profile: ProfileConfig{
			SoilTypes: []SoilTypeConfig{
				{
					Name:       "sand",
					UnitWt:     19,
					Model:      "hyperbolic",
					RefStrain:  0.05,
					Curvature:  0.9,
					MinDamping: 1,
					MaxDamping: 20,
				},
			},
			Layers: []LayerConfig{
				{SoilType: "sand", Thickness: 30, ShearVel: 300},
			},
			Bedrock: BedrockConfig{
				ShearVel: 760,
				UnitWt:   22,
				Damping:  1,
			},
			MaxFreq:      20,
			WaveFraction: 0.2,
		},
		Calculator: CalculatorConfig{
			Kind:           "equivalent_linear",
			StrainRatio:    0.65,
			ErrorTolerance: 2,
			MaxIterations:  10,
		},
	}
}

// Load reads defaults, then ~/.strata/config.yaml, then the environment.
func Load() (*StrataConfig, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".strata", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile reads a YAML file over the defaults and applies environment
// overrides.
func LoadFromFile(path string) (*StrataConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(config)

	return config, nil
}

func (c *StrataConfig) Validate() error {
	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if err := c.Motion.validate(); err != nil {
		return err
	}
	if err := c.Profile.validate(); err != nil {
		return err
	}
	return c.Calculator.validate()
}

func (m *MotionConfig) validate() error {
	switch m.Kind {
	case "source_theory":
		if m.Magnitude <= 0 {
			return fmt.Errorf("magnitude must be positive, got %g", m.Magnitude)
		}
		if m.Distance < 0 || m.Depth < 0 {
			return fmt.Errorf("distance and depth must be non-negative")
		}
		if m.Freq.Min <= 0 || m.Freq.Max <= m.Freq.Min {
			return fmt.Errorf("frequency range must satisfy 0 < min < max, got %g..%g", m.Freq.Min, m.Freq.Max)
		}
		if m.Freq.Size < 2 {
			return fmt.Errorf("frequency size must be at least 2, got %d", m.Freq.Size)
		}
		if m.Freq.Spacing != "linear" && m.Freq.Spacing != "log" {
			return fmt.Errorf("invalid frequency spacing: %s (valid: linear, log)", m.Freq.Spacing)
		}
	case "specified":
		if m.Specified == nil {
			return fmt.Errorf("specified motion requires a spectrum")
		}
		if len(m.Specified.Freq) < 2 || len(m.Specified.Freq) != len(m.Specified.FourierAcc) {
			return fmt.Errorf("specified spectrum needs matching freq/fourier_acc with at least 2 points")
		}
		if m.Specified.Duration <= 0 {
			return fmt.Errorf("specified duration must be positive, got %g", m.Specified.Duration)
		}
	default:
		return fmt.Errorf("invalid motion kind: %s (valid: source_theory, specified)", m.Kind)
	}

	if m.Region != "wus" && m.Region != "ceus" {
		return fmt.Errorf("invalid region: %s (valid: wus, ceus)", m.Region)
	}
	return nil
}

func (p *ProfileConfig) validate() error {
	if len(p.Layers) == 0 {
		return fmt.Errorf("profile requires at least one layer")
	}

	types := make(map[string]bool, len(p.SoilTypes))
	for _, st := range p.SoilTypes {
		if st.Name == "" {
			return fmt.Errorf("soil type requires a name")
		}
		if st.UnitWt <= 0 {
			return fmt.Errorf("soil type %s: unit_wt must be positive", st.Name)
		}
		switch st.Model {
		case "", "hyperbolic":
			if st.RefStrain <= 0 || st.Curvature <= 0 {
				return fmt.Errorf("soil type %s: ref_strain and curvature must be positive", st.Name)
			}
		case "tabulated":
			if st.ModulusReduction == nil || st.Damping == nil {
				return fmt.Errorf("soil type %s: tabulated model needs modulus_reduction and damping", st.Name)
			}
		default:
			return fmt.Errorf("soil type %s: invalid model %s (valid: hyperbolic, tabulated)", st.Name, st.Model)
		}
		types[st.Name] = true
	}

	for i, l := range p.Layers {
		if !types[l.SoilType] {
			return fmt.Errorf("layer %d: unknown soil type %q", i, l.SoilType)
		}
		if l.Thickness <= 0 || l.ShearVel <= 0 {
			return fmt.Errorf("layer %d: thickness and shear_vel must be positive", i)
		}
	}

	if p.Bedrock.ShearVel <= 0 || p.Bedrock.UnitWt <= 0 {
		return fmt.Errorf("bedrock shear_vel and unit_wt must be positive")
	}
	if p.MaxFreq <= 0 || p.WaveFraction <= 0 {
		return fmt.Errorf("max_freq and wave_fraction must be positive")
	}
	return nil
}

func (c *CalculatorConfig) validate() error {
	switch c.Kind {
	case "equivalent_linear":
		if c.StrainRatio <= 0 || c.StrainRatio > 1 {
			return fmt.Errorf("strain_ratio must be in (0, 1], got %g", c.StrainRatio)
		}
	case "linear_elastic":
	default:
		return fmt.Errorf("invalid calculator kind: %s (valid: equivalent_linear, linear_elastic)", c.Kind)
	}
	if c.ErrorTolerance <= 0 {
		return fmt.Errorf("error_tolerance must be positive, got %g", c.ErrorTolerance)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	return nil
}

func applyEnvOverrides(config *StrataConfig) {
	if v := os.Getenv("STRATA_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("STRATA_DB_PATH"); v != "" {
		config.Output.DBPath = v
	}

	if v := os.Getenv("STRATA_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Calculator.MaxIterations = n
		}
	}

	if v := os.Getenv("STRATA_ERROR_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Calculator.ErrorTolerance = f
		}
	}

	if v := os.Getenv("STRATA_STRAIN_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Calculator.StrainRatio = f
		}
	}
}
