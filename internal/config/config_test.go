package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if config.Motion.Kind != "source_theory" {
		t.Errorf("expected Motion.Kind 'source_theory', got '%s'", config.Motion.Kind)
	}
	if config.Motion.Freq.Size != 1024 || config.Motion.Freq.Spacing != "log" {
		t.Errorf("expected 1024 log-spaced frequencies, got %d %s", config.Motion.Freq.Size, config.Motion.Freq.Spacing)
	}
	if config.Calculator.StrainRatio != 0.65 {
		t.Errorf("expected StrainRatio 0.65, got %f", config.Calculator.StrainRatio)
	}
	if config.Calculator.MaxIterations != 10 {
		t.Errorf("expected MaxIterations 10, got %d", config.Calculator.MaxIterations)
	}
	if config.Calculator.ErrorTolerance != 2 {
		t.Errorf("expected ErrorTolerance 2, got %f", config.Calculator.ErrorTolerance)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: debug

motion:
  kind: source_theory
  region: ceus
  magnitude: 7
  distance: 50
  customized:
    stress_drop: 120
    path_atten_coeff: 500
    path_atten_power: 0.4
    shear_velocity: 3.6
    density: 2.7
    site_atten: 0.01

profile:
  soil_types:
    - name: clay
      unit_wt: 18
      model: tabulated
      modulus_reduction:
        strain: [0.0001, 0.01, 1]
        values: [1, 0.8, 0.1]
      damping:
        strain: [0.0001, 0.01, 1]
        values: [2, 5, 20]
  layers:
    - soil_type: clay
      thickness: 12
      shear_vel: 180
  bedrock:
    shear_vel: 1500
    unit_wt: 23
    damping: 0.5

calculator:
  kind: linear_elastic
  max_iterations: 1

output:
  db_path: /tmp/strata.db
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("expected level 'debug', got '%s'", config.Logging.Level)
	}
	if config.Motion.Region != "ceus" || config.Motion.Magnitude != 7 {
		t.Errorf("expected ceus M7, got %s M%g", config.Motion.Region, config.Motion.Magnitude)
	}
	if config.Motion.Depth != 8 {
		t.Errorf("expected default depth 8 to survive, got %g", config.Motion.Depth)
	}
	if config.Motion.Customized == nil || config.Motion.Customized.StressDrop != 120 {
		t.Errorf("expected customized stress drop 120, got %+v", config.Motion.Customized)
	}
	if len(config.Profile.SoilTypes) != 1 || config.Profile.SoilTypes[0].Name != "clay" {
		t.Errorf("expected soil types replaced by file, got %+v", config.Profile.SoilTypes)
	}
	if got := config.Profile.SoilTypes[0].Damping.Values; len(got) != 3 || got[2] != 20 {
		t.Errorf("expected damping values from file, got %v", got)
	}
	if config.Profile.MaxFreq != 20 {
		t.Errorf("expected default max_freq 20, got %g", config.Profile.MaxFreq)
	}
	if config.Calculator.Kind != "linear_elastic" || config.Calculator.MaxIterations != 1 {
		t.Errorf("expected linear_elastic with 1 iteration, got %+v", config.Calculator)
	}
	if config.Output.DBPath != "/tmp/strata.db" {
		t.Errorf("expected db path, got '%s'", config.Output.DBPath)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("motion: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	_, err := LoadFromFile(path)
	if err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestLoad_HomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".strata")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("motion:\n  magnitude: 5.5\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Motion.Magnitude != 5.5 {
		t.Errorf("expected magnitude 5.5, got %g", config.Motion.Magnitude)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STRATA_LOG_LEVEL", "trace")
	t.Setenv("STRATA_DB_PATH", "/var/lib/strata.db")
	t.Setenv("STRATA_MAX_ITERATIONS", "25")
	t.Setenv("STRATA_ERROR_TOLERANCE", "0.5")
	t.Setenv("STRATA_STRAIN_RATIO", "0.5")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Logging.Level != "trace" {
		t.Errorf("expected level 'trace', got '%s'", config.Logging.Level)
	}
	if config.Output.DBPath != "/var/lib/strata.db" {
		t.Errorf("expected db path override, got '%s'", config.Output.DBPath)
	}
	if config.Calculator.MaxIterations != 25 {
		t.Errorf("expected MaxIterations 25, got %d", config.Calculator.MaxIterations)
	}
	if config.Calculator.ErrorTolerance != 0.5 {
		t.Errorf("expected ErrorTolerance 0.5, got %f", config.Calculator.ErrorTolerance)
	}
	if config.Calculator.StrainRatio != 0.5 {
		t.Errorf("expected StrainRatio 0.5, got %f", config.Calculator.StrainRatio)
	}
}

func TestEnvOverrides_InvalidNumbersIgnored(t *testing.T) {
	t.Setenv("STRATA_MAX_ITERATIONS", "many")
	t.Setenv("STRATA_STRAIN_RATIO", "high")

	config := Default()
	applyEnvOverrides(config)

	if config.Calculator.MaxIterations != 10 {
		t.Errorf("expected MaxIterations unchanged, got %d", config.Calculator.MaxIterations)
	}
	if config.Calculator.StrainRatio != 0.65 {
		t.Errorf("expected StrainRatio unchanged, got %f", config.Calculator.StrainRatio)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*StrataConfig)
		wantErr string
	}{
		{"bad level", func(c *StrataConfig) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad motion kind", func(c *StrataConfig) { c.Motion.Kind = "recorded" }, "invalid motion kind"},
		{"bad region", func(c *StrataConfig) { c.Motion.Region = "pnw" }, "invalid region"},
		{"zero magnitude", func(c *StrataConfig) { c.Motion.Magnitude = 0 }, "magnitude"},
		{"inverted freq", func(c *StrataConfig) { c.Motion.Freq.Min = 60 }, "frequency range"},
		{"short freq", func(c *StrataConfig) { c.Motion.Freq.Size = 1 }, "frequency size"},
		{"bad spacing", func(c *StrataConfig) { c.Motion.Freq.Spacing = "octave" }, "spacing"},
		{"specified without spectrum", func(c *StrataConfig) { c.Motion.Kind = "specified" }, "requires a spectrum"},
		{"no layers", func(c *StrataConfig) { c.Profile.Layers = nil }, "at least one layer"},
		{"unknown soil type", func(c *StrataConfig) { c.Profile.Layers[0].SoilType = "peat" }, "unknown soil type"},
		{"bad soil model", func(c *StrataConfig) { c.Profile.SoilTypes[0].Model = "ramberg" }, "invalid model"},
		{"tabulated without curves", func(c *StrataConfig) { c.Profile.SoilTypes[0].Model = "tabulated" }, "tabulated model"},
		{"bad bedrock", func(c *StrataConfig) { c.Profile.Bedrock.ShearVel = 0 }, "bedrock"},
		{"bad calculator", func(c *StrataConfig) { c.Calculator.Kind = "nonlinear" }, "invalid calculator kind"},
		{"strain ratio", func(c *StrataConfig) { c.Calculator.StrainRatio = 1.2 }, "strain_ratio"},
		{"tolerance", func(c *StrataConfig) { c.Calculator.ErrorTolerance = 0 }, "error_tolerance"},
		{"iterations", func(c *StrataConfig) { c.Calculator.MaxIterations = 0 }, "max_iterations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.modify(config)
			err := config.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
