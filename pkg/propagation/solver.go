// Package propagation computes frequency-domain transfer functions of a
// layered soil column over an elastic half-space.
package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/edp1096/toy-strata/pkg/soil"
)

type Solver struct {
	logger *slog.Logger
}

func NewSolver() *Solver {
	return &Solver{}
}

func (s *Solver) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// StrainTransferFunctions returns, for every sublayer, the shear strain
// (decimal) per 1 g of outcrop acceleration at each frequency. shearMod is
// indexed [sublayer][frequency].
func (s *Solver) StrainTransferFunctions(ctx context.Context, profile *soil.Profile, shearMod [][]complex128, freq []float64) ([][]complex128, error) {
	n := profile.SubLayerCount()
	tfs := make([][]complex128, n)
	for i := range tfs {
		tfs[i] = make([]complex128, len(freq))
	}

	err := s.solve(ctx, profile, shearMod, freq, func(k int, col *Column, _ *Status) {
		for i := 0; i < n; i++ {
			tfs[i][k] = col.Strain(i)
		}
	})
	if err != nil {
		return nil, err
	}
	return tfs, nil
}

// SurfaceAccelTf returns the ratio of surface to outcrop acceleration.
func (s *Solver) SurfaceAccelTf(ctx context.Context, profile *soil.Profile, shearMod [][]complex128, freq []float64) ([]complex128, error) {
	tf := make([]complex128, len(freq))
	for k, f := range freq {
		if f <= 0 {
			tf[k] = 1
		}
	}

	err := s.solve(ctx, profile, shearMod, freq, func(k int, col *Column, status *Status) {
		tf[k] = col.Displacement(1) / col.HalfSpace().OutcropDisp(status)
	})
	if err != nil {
		return nil, err
	}
	return tf, nil
}

// solve skips non-positive frequencies, which have no dynamic response.
func (s *Solver) solve(ctx context.Context, profile *soil.Profile, shearMod [][]complex128, freq []float64, visit func(k int, col *Column, status *Status)) error {
	col, err := NewColumn(profile, shearMod, len(freq))
	if err != nil {
		return fmt.Errorf("building column: %w", err)
	}
	defer col.Destroy()

	for k, f := range freq {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f <= 0 {
			continue
		}

		status := &Status{Index: k, Frequency: f, Omega: 2 * math.Pi * f}
		if err := col.Solve(status); err != nil {
			return fmt.Errorf("solve at f=%g: %w", f, err)
		}
		visit(k, col, status)
	}

	if s.logger != nil {
		s.logger.Debug("propagation solved", "sublayers", profile.SubLayerCount(), "frequencies", len(freq))
	}
	return nil
}
