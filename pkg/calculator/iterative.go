package calculator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/edp1096/toy-strata/internal/logging"
	"github.com/edp1096/toy-strata/pkg/event"
	"github.com/edp1096/toy-strata/pkg/motion"
	"github.com/edp1096/toy-strata/pkg/propagation"
	"github.com/edp1096/toy-strata/pkg/soil"
	"github.com/edp1096/toy-strata/pkg/stream"
)

const (
	DefaultMaxIterations  = 10
	DefaultErrorTolerance = 2.0 // percent
)

// strategy is the per-layer behavior plugged into the iteration loop.
type strategy interface {
	EstimateInitialStrains()
	UpdateSubLayer(index int, strainTf []complex128) bool
}

type IterationResult struct {
	Iteration int     `json:"iteration"`
	MaxError  float64 `json:"maxError"`
}

type LayerResult struct {
	Depth         float64 `json:"depth"`
	Thickness     float64 `json:"thickness"`
	ShearVel      float64 `json:"shearVel"`
	InitialStrain float64 `json:"initialStrain"`
	EffStrain     float64 `json:"effStrain"`
	MaxStrain     float64 `json:"maxStrain"`
	ShearMod      float64 `json:"shearMod"`
	ModulusRatio  float64 `json:"modulusRatio"`
	Damping       float64 `json:"damping"`
}

// Result reports the outcome of a run. A run that reaches the iteration cap
// without meeting the tolerance returns Converged == false and no error.
type Result struct {
	Converged  bool              `json:"converged"`
	Iterations int               `json:"iterations"`
	MaxError   float64           `json:"maxError"`
	History    []IterationResult `json:"history"`
	SurfacePGA float64           `json:"surfacePga"` // g
	Freq       []float64         `json:"freq"`
	SurfaceTf  []complex128      `json:"-"`
	Layers     []LayerResult     `json:"layers"`
}

// SurfaceFourierAcc is the surface Fourier amplitude for the input spectrum.
func (r *Result) SurfaceFourierAcc(input []float64) []float64 {
	fas := make([]float64, len(r.SurfaceTf))
	for i, tf := range r.SurfaceTf {
		if i < len(input) {
			fas[i] = input[i] * math.Hypot(real(tf), imag(tf))
		}
	}
	return fas
}

// IterativeCalculator holds the convergence settings and the per-frequency
// complex shear moduli shared by the iteration strategies.
type IterativeCalculator struct {
	event.Emitter

	maxIterations  int
	errorTolerance float64

	motion   motion.Motion
	profile  *soil.Profile
	nsl      int
	nf       int
	shearMod [][]complex128

	propagator Propagator
	logger     *slog.Logger
	decisions  *logging.DecisionLogger
}

func (c *IterativeCalculator) init() {
	c.maxIterations = DefaultMaxIterations
	c.errorTolerance = DefaultErrorTolerance
	c.propagator = propagation.NewSolver()
}

func (c *IterativeCalculator) MaxIterations() int       { return c.maxIterations }
func (c *IterativeCalculator) ErrorTolerance() float64  { return c.errorTolerance }
func (c *IterativeCalculator) ShearMod() [][]complex128 { return c.shearMod }
func (c *IterativeCalculator) Profile() *soil.Profile   { return c.profile }
func (c *IterativeCalculator) Motion() motion.Motion    { return c.motion }

// loggable is implemented by propagators that report their own progress.
type loggable interface {
	SetLogger(logger *slog.Logger)
}

func (c *IterativeCalculator) SetPropagator(p Propagator) {
	c.propagator = p
	if l, ok := p.(loggable); ok && c.logger != nil {
		l.SetLogger(c.logger)
	}
}

// SetLogger also hands logger to the propagator when it accepts one.
func (c *IterativeCalculator) SetLogger(logger *slog.Logger, decisions *logging.DecisionLogger) {
	c.logger = logger
	c.decisions = decisions
	if l, ok := c.propagator.(loggable); ok {
		l.SetLogger(logger)
	}
}

func (c *IterativeCalculator) SetMaxIterations(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: max iterations %d", ErrParameterBounds, n)
	}
	if c.maxIterations != n {
		c.maxIterations = n
		c.Changed("maxIterations", n)
	}
	return nil
}

// SetErrorTolerance sets the convergence tolerance in percent.
func (c *IterativeCalculator) SetErrorTolerance(tol float64) error {
	if !(tol > 0) {
		return fmt.Errorf("%w: error tolerance %g", ErrParameterBounds, tol)
	}
	if c.errorTolerance != tol {
		c.errorTolerance = tol
		c.Changed("errorTolerance", tol)
	}
	return nil
}

// fillShearMod sets every frequency of sublayer i to the complex modulus
// of its current state.
func (c *IterativeCalculator) fillShearMod(i int) {
	g := c.profile.SubLayer(i).CompShearMod()
	row := c.shearMod[i]
	for k := range row {
		row[k] = g
	}
}

func (c *IterativeCalculator) attach(m motion.Motion, profile *soil.Profile) {
	c.motion = m
	c.profile = profile
	c.nsl = profile.SubLayerCount()
	c.nf = len(m.Freq())
	c.shearMod = make([][]complex128, c.nsl)
	for i := range c.shearMod {
		c.shearMod[i] = make([]complex128, c.nf)
	}
}

func (c *IterativeCalculator) run(ctx context.Context, m motion.Motion, profile *soil.Profile, s strategy) (*Result, error) {
	if m == nil || profile == nil {
		return nil, fmt.Errorf("calculator: motion and profile are required")
	}
	if c.propagator == nil {
		return nil, fmt.Errorf("calculator: no propagator")
	}

	c.attach(m, profile)
	freq := m.Freq()
	s.EstimateInitialStrains()

	prevG, prevD := c.snapshot()
	res := &Result{Freq: freq}

	for iter := 1; ; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
		}

		tfs, err := c.propagator.StrainTransferFunctions(ctx, profile, c.shearMod, freq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
			}
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}

		for i := 0; i < c.nsl; i++ {
			if !s.UpdateSubLayer(i, tfs[i]) {
				return nil, fmt.Errorf("iteration %d, sublayer %d: %w", iter, i, ErrDegenerateStrain)
			}
		}

		curG, curD := c.snapshot()
		maxError := math.Max(maxRelError(prevG, curG), maxRelError(prevD, curD))
		prevG, prevD = curG, curD

		res.Iterations = iter
		res.MaxError = maxError
		res.History = append(res.History, IterationResult{Iteration: iter, MaxError: maxError})
		res.Converged = maxError < c.errorTolerance

		c.logIteration(iter, maxError, res.Converged)
		c.Emit("iteration", iter)

		if res.Converged || iter >= c.maxIterations {
			break
		}
	}

	tf, err := c.propagator.SurfaceAccelTf(ctx, profile, c.shearMod, freq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		return nil, fmt.Errorf("surface transfer function: %w", err)
	}
	res.SurfaceTf = tf
	res.SurfacePGA = m.CalcMaxResponse(tf)
	res.Layers = c.layerResults()

	if c.logger != nil {
		c.logger.Info("calculation finished",
			"converged", res.Converged,
			"iterations", res.Iterations,
			"max_error", res.MaxError,
			"surface_pga", res.SurfacePGA)
	}
	return res, nil
}

func (c *IterativeCalculator) logIteration(iter int, maxError float64, converged bool) {
	if c.logger != nil {
		c.logger.Debug("iteration", "iteration", iter, "max_error", maxError, "converged", converged)
		for i, sl := range c.profile.SubLayers() {
			c.logger.Log(context.Background(), logging.LevelTrace, "sublayer",
				"index", i,
				"eff_strain", sl.EffStrain(),
				"shear_mod", sl.ShearMod(),
				"damping", sl.Damping())
		}
	}
	c.decisions.Log("iteration",
		"iteration", iter,
		"max_error", maxError,
		"tolerance", c.errorTolerance,
		"converged", converged)
}

func (c *IterativeCalculator) snapshot() (g, d []float64) {
	g = make([]float64, c.nsl)
	d = make([]float64, c.nsl)
	for i := 0; i < c.nsl; i++ {
		g[i] = c.profile.ShearMod(i)
		d[i] = c.profile.Damping(i)
	}
	return g, d
}

// maxRelError returns the largest 100·|new - old|/new over all entries.
func maxRelError(old, cur []float64) float64 {
	maxErr := 0.0
	for i := range cur {
		diff := math.Abs(cur[i] - old[i])
		if diff == 0 {
			continue
		}
		if cur[i] == 0 {
			return math.Inf(1)
		}
		maxErr = math.Max(maxErr, 100*diff/math.Abs(cur[i]))
	}
	return maxErr
}

func (c *IterativeCalculator) layerResults() []LayerResult {
	layers := make([]LayerResult, c.nsl)
	for i, sl := range c.profile.SubLayers() {
		layers[i] = LayerResult{
			Depth:         sl.Depth(),
			Thickness:     sl.Thickness(),
			ShearVel:      sl.ShearVel(),
			InitialStrain: sl.InitialStrain(),
			EffStrain:     sl.EffStrain(),
			MaxStrain:     sl.MaxStrain(),
			ShearMod:      sl.ShearMod(),
			ModulusRatio:  sl.ShearMod() / sl.InitialShearMod(),
			Damping:       sl.Damping(),
		}
	}
	return layers
}

type iterativeRecord struct {
	Type           Kind    `json:"type"`
	MaxIterations  int     `json:"maxIterations"`
	ErrorTolerance float64 `json:"errorTolerance"`
}

func (c *IterativeCalculator) record(kind Kind) iterativeRecord {
	return iterativeRecord{Type: kind, MaxIterations: c.maxIterations, ErrorTolerance: c.errorTolerance}
}

// restore applies loaded settings through the bounded setters.
func (c *IterativeCalculator) restore(rec iterativeRecord) error {
	if err := c.SetMaxIterations(rec.MaxIterations); err != nil {
		return err
	}
	return c.SetErrorTolerance(rec.ErrorTolerance)
}

func (c *IterativeCalculator) writeBase(w *stream.Writer) {
	w.Uint8(1)
	w.Int32(int32(c.maxIterations))
	w.Float64(c.errorTolerance)
}

func readBase(r *stream.Reader) iterativeRecord {
	r.Version()
	var rec iterativeRecord
	rec.MaxIterations = int(r.Int32())
	rec.ErrorTolerance = r.Float64()
	return rec
}

func decodeRecord(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding calculator record: %w", err)
	}
	return nil
}
