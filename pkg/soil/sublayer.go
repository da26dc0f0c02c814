package soil

import "math/cmplx"

// SubLayer is one element of the discretized soil column. Strains are in
// percent, shear modulus in kPa, damping in percent.
type SubLayer struct {
	soilType  *SoilType
	thickness float64 // m
	depth     float64 // to the top, m
	shearVel  float64 // small-strain, m/s

	initialShearMod float64
	shearMod        float64
	damping         float64

	initialStrain float64
	effStrain     float64
	maxStrain     float64
}

func newSubLayer(st *SoilType, thickness, depth, shearVel float64) *SubLayer {
	sl := &SubLayer{
		soilType:  st,
		thickness: thickness,
		depth:     depth,
		shearVel:  shearVel,
	}
	sl.initialShearMod = st.Density() * shearVel * shearVel
	sl.Reset()
	return sl
}

func (sl *SubLayer) SoilType() *SoilType      { return sl.soilType }
func (sl *SubLayer) Thickness() float64       { return sl.thickness }
func (sl *SubLayer) Depth() float64           { return sl.depth }
func (sl *SubLayer) ShearVel() float64        { return sl.shearVel }
func (sl *SubLayer) Density() float64         { return sl.soilType.Density() }
func (sl *SubLayer) InitialShearMod() float64 { return sl.initialShearMod }
func (sl *SubLayer) ShearMod() float64        { return sl.shearMod }
func (sl *SubLayer) Damping() float64         { return sl.damping }
func (sl *SubLayer) InitialStrain() float64   { return sl.initialStrain }
func (sl *SubLayer) EffStrain() float64       { return sl.effStrain }
func (sl *SubLayer) MaxStrain() float64       { return sl.maxStrain }

// Reset restores the small-strain properties.
func (sl *SubLayer) Reset() {
	sl.initialStrain = 0
	sl.effStrain = 0
	sl.maxStrain = 0
	sl.shearMod = sl.initialShearMod
	sl.damping = sl.soilType.InitialDamping()
}

// SetInitialStrain seeds the strain estimate used before any transfer
// function exists and moves the properties to that strain.
func (sl *SubLayer) SetInitialStrain(strain float64) {
	sl.initialStrain = strain
	sl.SetStrain(strain, strain)
}

// SetStrain records the effective and peak strains and updates the
// strain-compatible modulus and damping.
func (sl *SubLayer) SetStrain(effStrain, maxStrain float64) {
	sl.effStrain = effStrain
	sl.maxStrain = maxStrain
	sl.shearMod = sl.initialShearMod * sl.soilType.ModulusReduction.Interp(effStrain)
	sl.damping = sl.soilType.Damping.Interp(effStrain)
}

// RecordStrain stores strains without touching modulus or damping.
func (sl *SubLayer) RecordStrain(effStrain, maxStrain float64) {
	sl.effStrain = effStrain
	sl.maxStrain = maxStrain
}

// CompShearMod is the complex modulus at the current state.
func (sl *SubLayer) CompShearMod() complex128 {
	return CalcCompShearMod(sl.shearMod, sl.damping/100)
}

// CalcCompShearMod returns G·(1 - 2D² + 2iD·sqrt(1 - D²)) for damping ratio D.
func CalcCompShearMod(shearMod, damping float64) complex128 {
	d := complex(damping, 0)
	return complex(shearMod, 0) * (1 - 2*d*d + 2i*d*cmplx.Sqrt(1-d*d))
}
