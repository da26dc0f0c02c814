package soil

import (
	"fmt"
	"math"

	"github.com/edp1096/toy-strata/internal/consts"
)

// SoilType groups the unit weight and nonlinear curves shared by layers of
// the same material. Damping values are in percent.
type SoilType struct {
	Name             string  `json:"name" yaml:"name"`
	UnitWt           float64 `json:"unitWt" yaml:"unit_wt"` // kN/m^3
	ModulusReduction Curve   `json:"modulusReduction" yaml:"modulus_reduction"`
	Damping          Curve   `json:"damping" yaml:"damping"`
}

// NewHyperbolicSoilType builds curves from G/Gmax = 1/(1+(γ/γr)^a) and
// D = Dmin + Dmax·(1 - G/Gmax). refStrain is in percent; damping in percent.
func NewHyperbolicSoilType(name string, unitWt, refStrain, curvature, minDamping, maxDamping float64) (*SoilType, error) {
	if refStrain <= 0 || curvature <= 0 {
		return nil, fmt.Errorf("soil: type %s: reference strain and curvature must be positive", name)
	}

	st := &SoilType{
		Name:   name,
		UnitWt: unitWt,
		ModulusReduction: Curve{
			Strain: append([]float64(nil), standardStrains...),
			Values: make([]float64, len(standardStrains)),
		},
		Damping: Curve{
			Strain: append([]float64(nil), standardStrains...),
			Values: make([]float64, len(standardStrains)),
		},
	}
	for i, s := range standardStrains {
		g := 1 / (1 + math.Pow(s/refStrain, curvature))
		st.ModulusReduction.Values[i] = g
		st.Damping.Values[i] = minDamping + maxDamping*(1-g)
	}
	return st, nil
}

func (st *SoilType) Validate() error {
	if st.UnitWt <= 0 {
		return fmt.Errorf("soil: type %s: unit weight must be positive", st.Name)
	}
	if err := st.ModulusReduction.Validate(); err != nil {
		return fmt.Errorf("soil: type %s modulus reduction: %w", st.Name, err)
	}
	if err := st.Damping.Validate(); err != nil {
		return fmt.Errorf("soil: type %s damping: %w", st.Name, err)
	}
	return nil
}

// Density in Mg/m^3, consistent with kPa moduli and m/s velocities.
func (st *SoilType) Density() float64 {
	return st.UnitWt / consts.GRAVITY
}

// InitialDamping is the damping at the smallest tabulated strain.
func (st *SoilType) InitialDamping() float64 {
	return st.Damping.Interp(0)
}
