// Package soil holds the layered soil column and its strain-dependent
// properties.
package soil

import (
	"fmt"
	"math"

	"github.com/edp1096/toy-strata/internal/consts"
)

// Layer is a user layer before discretization.
type Layer struct {
	SoilType  *SoilType
	Thickness float64 // m
	ShearVel  float64 // m/s
}

// Bedrock is the elastic half-space below the soil column.
type Bedrock struct {
	ShearVel float64 `json:"shearVel" yaml:"shear_vel"` // m/s
	UnitWt   float64 `json:"unitWt" yaml:"unit_wt"`     // kN/m^3
	Damping  float64 `json:"damping" yaml:"damping"`    // percent
}

func (b Bedrock) Density() float64 {
	return b.UnitWt / consts.GRAVITY
}

type Profile struct {
	layers    []Layer
	subLayers []*SubLayer
	bedrock   Bedrock
}

const (
	DefaultMaxFreq      = 20.0
	DefaultWaveFraction = 0.20
)

// NewProfile validates the layers and discretizes them with the default
// maximum frequency and wavelength fraction.
func NewProfile(layers []Layer, bedrock Bedrock) (*Profile, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("soil: profile requires at least one layer")
	}
	if bedrock.ShearVel <= 0 || bedrock.UnitWt <= 0 {
		return nil, fmt.Errorf("soil: bedrock velocity and unit weight must be positive")
	}
	for i, l := range layers {
		if l.SoilType == nil {
			return nil, fmt.Errorf("soil: layer %d has no soil type", i)
		}
		if err := l.SoilType.Validate(); err != nil {
			return nil, fmt.Errorf("soil: layer %d: %w", i, err)
		}
		if l.Thickness <= 0 || l.ShearVel <= 0 {
			return nil, fmt.Errorf("soil: layer %d: thickness and shear velocity must be positive", i)
		}
	}

	p := &Profile{layers: layers, bedrock: bedrock}
	if err := p.Discretize(DefaultMaxFreq, DefaultWaveFraction); err != nil {
		return nil, err
	}
	return p, nil
}

// Discretize splits every layer so that no sublayer is thicker than
// waveFraction of the shear wavelength at maxFreq. Sublayer state is reset.
func (p *Profile) Discretize(maxFreq, waveFraction float64) error {
	if maxFreq <= 0 || waveFraction <= 0 {
		return fmt.Errorf("soil: discretization needs positive max frequency and wave fraction")
	}

	p.subLayers = p.subLayers[:0]
	depth := 0.0
	for _, l := range p.layers {
		maxThickness := waveFraction * l.ShearVel / maxFreq
		n := int(math.Ceil(l.Thickness / maxThickness))
		if n < 1 {
			n = 1
		}
		h := l.Thickness / float64(n)
		for j := 0; j < n; j++ {
			p.subLayers = append(p.subLayers, newSubLayer(l.SoilType, h, depth, l.ShearVel))
			depth += h
		}
	}
	return nil
}

func (p *Profile) Layers() []Layer { return p.layers }

func (p *Profile) SubLayerCount() int       { return len(p.subLayers) }
func (p *Profile) SubLayers() []*SubLayer   { return p.subLayers }
func (p *Profile) SubLayer(i int) *SubLayer { return p.subLayers[i] }
func (p *Profile) Bedrock() Bedrock         { return p.bedrock }
func (p *Profile) ShearMod(i int) float64   { return p.subLayers[i].shearMod }
func (p *Profile) Damping(i int) float64    { return p.subLayers[i].damping }
func (p *Profile) ShearVel(i int) float64   { return p.subLayers[i].shearVel }
func (p *Profile) Density(i int) float64    { return p.subLayers[i].Density() }
func (p *Profile) Thickness(i int) float64  { return p.subLayers[i].thickness }

func (p *Profile) TotalThickness() float64 {
	var sum float64
	for _, sl := range p.subLayers {
		sum += sl.thickness
	}
	return sum
}

func (p *Profile) Reset() {
	for _, sl := range p.subLayers {
		sl.Reset()
	}
}
