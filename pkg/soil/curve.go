package soil

import (
	"fmt"
	"math"
	"sort"
)

// Curve tabulates a strain-dependent property. Strains are in percent and
// interpolation is linear in log-strain, clamped at the table ends.
type Curve struct {
	Strain []float64 `json:"strain" yaml:"strain"`
	Values []float64 `json:"values" yaml:"values"`
}

func (c Curve) Validate() error {
	if len(c.Strain) == 0 || len(c.Strain) != len(c.Values) {
		return fmt.Errorf("soil: curve needs matching non-empty strain/values, got %d/%d", len(c.Strain), len(c.Values))
	}
	for i, s := range c.Strain {
		if s <= 0 {
			return fmt.Errorf("soil: curve strain %d must be positive, got %g", i, s)
		}
		if i > 0 && s <= c.Strain[i-1] {
			return fmt.Errorf("soil: curve strains must increase at index %d", i)
		}
	}
	return nil
}

func (c Curve) Interp(strain float64) float64 {
	n := len(c.Strain)
	if n == 0 || math.IsNaN(strain) {
		return math.NaN()
	}
	if strain <= c.Strain[0] {
		return c.Values[0]
	}
	if strain >= c.Strain[n-1] {
		return c.Values[n-1]
	}

	i := sort.SearchFloat64s(c.Strain, strain)
	if c.Strain[i] == strain {
		return c.Values[i]
	}
	x0, x1 := math.Log(c.Strain[i-1]), math.Log(c.Strain[i])
	t := (math.Log(strain) - x0) / (x1 - x0)
	return c.Values[i-1] + t*(c.Values[i]-c.Values[i-1])
}

// Standard strain points (percent) used when curves are generated from a model.
var standardStrains = []float64{
	1e-4, 3e-4, 1e-3, 3e-3, 1e-2, 3e-2, 1e-1, 3e-1, 1, 3, 10,
}
