// Package store persists site response runs and their results.
package store

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: run not found")

type Run struct {
	ID             string          `json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	Name           string          `json:"name"`
	MotionKind     string          `json:"motion_kind"`
	CalculatorKind string          `json:"calculator_kind"`
	Motion         json.RawMessage `json:"motion"`
	Calculator     json.RawMessage `json:"calculator"`

	Converged  bool    `json:"converged"`
	Iterations int     `json:"iterations"`
	MaxError   float64 `json:"max_error"`
	InputPGA   float64 `json:"input_pga"` // g
	InputPGV   float64 `json:"input_pgv"` // cm/s
	Duration   float64 `json:"duration"`  // s
	SurfacePGA float64 `json:"surface_pga"`

	History  []Iteration     `json:"history,omitempty"`
	Layers   []Layer         `json:"layers,omitempty"`
	Spectrum []SpectrumPoint `json:"spectrum,omitempty"`
}

type Iteration struct {
	Iteration int     `json:"iteration"`
	MaxError  float64 `json:"max_error"`
}

type Layer struct {
	Depth         float64 `json:"depth"`
	Thickness     float64 `json:"thickness"`
	ShearVel      float64 `json:"shear_vel"`
	InitialStrain float64 `json:"initial_strain"`
	EffStrain     float64 `json:"eff_strain"`
	MaxStrain     float64 `json:"max_strain"`
	ShearMod      float64 `json:"shear_mod"`
	ModulusRatio  float64 `json:"modulus_ratio"`
	Damping       float64 `json:"damping"`
}

type SpectrumPoint struct {
	Freq       float64 `json:"freq"`
	InputFAS   float64 `json:"input_fas"`
	SurfaceFAS float64 `json:"surface_fas"`
}
