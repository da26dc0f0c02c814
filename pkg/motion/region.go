package motion

import "fmt"

type Region int

const (
	WUS Region = iota
	CEUS
)

func (r Region) String() string {
	switch r {
	case WUS:
		return "WUS"
	case CEUS:
		return "CEUS"
	}
	return fmt.Sprintf("Region(%d)", int(r))
}

func (r Region) MarshalText() ([]byte, error) {
	if r != WUS && r != CEUS {
		return nil, fmt.Errorf("motion: unknown region %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Region) UnmarshalText(b []byte) error {
	switch string(b) {
	case "WUS", "wus":
		*r = WUS
	case "CEUS", "ceus":
		*r = CEUS
	default:
		return fmt.Errorf("motion: unknown region %q", b)
	}
	return nil
}

// RegionParams is the bundle of seismological constants reset by a region change.
type RegionParams struct {
	StressDrop     float64 // bar
	PathAttenCoeff float64
	PathAttenPower float64
	ShearVelocity  float64 // km/s
	Density        float64 // g/cm^3
	SiteAtten      float64 // kappa, s
}

var regionParams = map[Region]RegionParams{
	WUS: {
		StressDrop:     100,
		PathAttenCoeff: 180,
		PathAttenPower: 0.45,
		ShearVelocity:  3.5,
		Density:        2.8,
		SiteAtten:      0.04,
	},
	CEUS: {
		StressDrop:     150,
		PathAttenCoeff: 680,
		PathAttenPower: 0.36,
		ShearVelocity:  3.6,
		Density:        2.8,
		SiteAtten:      0.006,
	},
}

// ParamsFor returns the default bundle and false for an unknown region.
func ParamsFor(r Region) (RegionParams, bool) {
	p, ok := regionParams[r]
	return p, ok
}
