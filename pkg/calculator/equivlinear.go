package calculator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edp1096/toy-strata/pkg/motion"
	"github.com/edp1096/toy-strata/pkg/soil"
	"github.com/edp1096/toy-strata/pkg/stream"
)

const DefaultStrainRatio = 0.65

// EquivalentLinear updates each sublayer to the properties at a fixed
// fraction of its peak strain until the properties stop changing.
type EquivalentLinear struct {
	IterativeCalculator

	strainRatio float64
}

func NewEquivalentLinear() *EquivalentLinear {
	c := &EquivalentLinear{strainRatio: DefaultStrainRatio}
	c.init()
	return c
}

func (c *EquivalentLinear) Kind() Kind { return EquivalentLinearKind }

func (c *EquivalentLinear) StrainRatio() float64 { return c.strainRatio }

// SetStrainRatio sets the ratio of effective to peak strain, in (0, 1].
func (c *EquivalentLinear) SetStrainRatio(ratio float64) error {
	if !(ratio > 0 && ratio <= 1) {
		return fmt.Errorf("%w: strain ratio %g not in (0, 1]", ErrParameterBounds, ratio)
	}
	if c.strainRatio != ratio {
		c.strainRatio = ratio
		c.Changed("strainRatio", ratio)
	}
	return nil
}

func (c *EquivalentLinear) Run(ctx context.Context, m motion.Motion, profile *soil.Profile) (*Result, error) {
	return c.run(ctx, m, profile, c)
}

// EstimateInitialStrains seeds every sublayer with PGV/Vs. With PGV in cm/s
// and Vs in m/s the ratio is the strain in percent.
func (c *EquivalentLinear) EstimateInitialStrains() {
	for i, sl := range c.profile.SubLayers() {
		sl.SetInitialStrain(c.motion.PGV() / sl.ShearVel())
		c.fillShearMod(i)
	}
}

// UpdateSubLayer applies the strain transfer function to the motion and moves
// the sublayer to the strain-compatible properties. It returns false, leaving
// the sublayer untouched, when the peak strain is not a positive number.
func (c *EquivalentLinear) UpdateSubLayer(index int, strainTf []complex128) bool {
	strainMax := 100 * c.motion.CalcMaxStrain(strainTf)
	if !(strainMax > 0) {
		return false
	}

	c.profile.SubLayer(index).SetStrain(c.strainRatio*strainMax, strainMax)
	c.fillShearMod(index)
	return true
}

type equivLinearRecord struct {
	iterativeRecord
	StrainRatio float64 `json:"strainRatio"`
}

func (c *EquivalentLinear) MarshalJSON() ([]byte, error) {
	return json.Marshal(equivLinearRecord{
		iterativeRecord: c.record(EquivalentLinearKind),
		StrainRatio:     c.strainRatio,
	})
}

func (c *EquivalentLinear) UnmarshalJSON(b []byte) error {
	var rec equivLinearRecord
	if err := decodeRecord(b, &rec); err != nil {
		return err
	}
	if err := c.restore(rec.iterativeRecord); err != nil {
		return fmt.Errorf("decoding equivalent linear calculator: %w", err)
	}
	if err := c.SetStrainRatio(rec.StrainRatio); err != nil {
		return fmt.Errorf("decoding equivalent linear calculator: %w", err)
	}
	return nil
}

func (c *EquivalentLinear) WriteStream(w *stream.Writer) {
	w.Uint8(1)
	c.writeBase(w)
	w.Float64(c.strainRatio)
}

func (c *EquivalentLinear) ReadStream(r *stream.Reader) error {
	r.Version()
	base := readBase(r)
	ratio := r.Float64()
	if err := r.Err(); err != nil {
		return fmt.Errorf("reading equivalent linear calculator: %w", err)
	}
	if err := c.restore(base); err != nil {
		return fmt.Errorf("reading equivalent linear calculator: %w", err)
	}
	if err := c.SetStrainRatio(ratio); err != nil {
		return fmt.Errorf("reading equivalent linear calculator: %w", err)
	}
	return nil
}
