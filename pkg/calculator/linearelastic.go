package calculator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edp1096/toy-strata/pkg/motion"
	"github.com/edp1096/toy-strata/pkg/soil"
	"github.com/edp1096/toy-strata/pkg/stream"
)

// LinearElastic keeps the small-strain properties and only records the
// resulting strains, so a run finishes after one pass.
type LinearElastic struct {
	IterativeCalculator
}

func NewLinearElastic() *LinearElastic {
	c := &LinearElastic{}
	c.init()
	return c
}

func (c *LinearElastic) Kind() Kind { return LinearElasticKind }

func (c *LinearElastic) Run(ctx context.Context, m motion.Motion, profile *soil.Profile) (*Result, error) {
	return c.run(ctx, m, profile, c)
}

func (c *LinearElastic) EstimateInitialStrains() {
	c.profile.Reset()
	for i := 0; i < c.nsl; i++ {
		c.fillShearMod(i)
	}
}

func (c *LinearElastic) UpdateSubLayer(index int, strainTf []complex128) bool {
	strainMax := 100 * c.motion.CalcMaxStrain(strainTf)
	if !(strainMax > 0) {
		return false
	}
	c.profile.SubLayer(index).RecordStrain(strainMax, strainMax)
	return true
}

func (c *LinearElastic) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.record(LinearElasticKind))
}

func (c *LinearElastic) UnmarshalJSON(b []byte) error {
	var rec iterativeRecord
	if err := decodeRecord(b, &rec); err != nil {
		return err
	}
	if err := c.restore(rec); err != nil {
		return fmt.Errorf("decoding linear elastic calculator: %w", err)
	}
	return nil
}

func (c *LinearElastic) WriteStream(w *stream.Writer) {
	w.Uint8(1)
	c.writeBase(w)
}

func (c *LinearElastic) ReadStream(r *stream.Reader) error {
	r.Version()
	base := readBase(r)
	if err := r.Err(); err != nil {
		return fmt.Errorf("reading linear elastic calculator: %w", err)
	}
	if err := c.restore(base); err != nil {
		return fmt.Errorf("reading linear elastic calculator: %w", err)
	}
	return nil
}
