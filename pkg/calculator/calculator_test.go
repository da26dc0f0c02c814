package calculator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/cmplx"
	"strings"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/edp1096/toy-strata/internal/logging"
	"github.com/edp1096/toy-strata/pkg/event"
	"github.com/edp1096/toy-strata/pkg/motion"
	"github.com/edp1096/toy-strata/pkg/soil"
	"github.com/edp1096/toy-strata/pkg/stream"
)

// fakeMotion reports the magnitude of the first transfer function entry as
// the peak strain.
type fakeMotion struct {
	motion.Motion
	pgv  float64
	freq []float64
}

func (m *fakeMotion) PGV() float64    { return m.pgv }
func (m *fakeMotion) Freq() []float64 { return m.freq }

func (m *fakeMotion) CalcMaxStrain(tf []complex128) float64 {
	return cmplx.Abs(tf[0])
}

func (m *fakeMotion) CalcMaxResponse(tf []complex128) float64 {
	return 0.1
}

// fakePropagator returns strain(call, layer) for every frequency.
type fakePropagator struct {
	calls  int
	strain func(call, layer int) float64
}

func (p *fakePropagator) StrainTransferFunctions(ctx context.Context, profile *soil.Profile, shearMod [][]complex128, freq []float64) ([][]complex128, error) {
	p.calls++
	tfs := make([][]complex128, profile.SubLayerCount())
	for i := range tfs {
		tfs[i] = make([]complex128, len(freq))
		for k := range tfs[i] {
			tfs[i][k] = complex(p.strain(p.calls, i), 0)
		}
	}
	return tfs, nil
}

func (p *fakePropagator) SurfaceAccelTf(ctx context.Context, profile *soil.Profile, shearMod [][]complex128, freq []float64) ([]complex128, error) {
	tf := make([]complex128, len(freq))
	for k := range tf {
		tf[k] = 2
	}
	return tf, nil
}

func constantStrain(s float64) func(int, int) float64 {
	return func(int, int) float64 { return s }
}

func testProfile(t *testing.T) *soil.Profile {
	t.Helper()
	st, err := soil.NewHyperbolicSoilType("clay", 19.62, 0.1, 1, 1, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := soil.NewProfile(
		[]soil.Layer{{SoilType: st, Thickness: 4, ShearVel: 200}},
		soil.Bedrock{ShearVel: 760, UnitWt: 22, Damping: 1},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func testMotion() *fakeMotion {
	return &fakeMotion{pgv: 10, freq: []float64{0.5, 1, 2, 5}}
}

func TestEstimateInitialStrains(tst *testing.T) {
	chk.PrintTitle("initial strain from PGV/Vs")

	p := testProfile(tst)
	c := NewEquivalentLinear()
	c.attach(testMotion(), p)
	c.EstimateInitialStrains()

	for i, sl := range p.SubLayers() {
		chk.Float64(tst, "initial strain", 1e-15, sl.InitialStrain(), 0.05)
		chk.Float64(tst, "eff strain", 1e-15, sl.EffStrain(), 0.05)

		want := soil.CalcCompShearMod(sl.ShearMod(), sl.Damping()/100)
		for k := range c.ShearMod()[i] {
			if c.ShearMod()[i][k] != want {
				tst.Errorf("sublayer %d freq %d: expected %v, got %v", i, k, want, c.ShearMod()[i][k])
			}
		}
	}
}

func TestUpdateSubLayer(tst *testing.T) {
	chk.PrintTitle("effective strain is ratio times peak")

	for _, ratio := range []float64{0.3, 0.65, 1} {
		p := testProfile(tst)
		c := NewEquivalentLinear()
		if err := c.SetStrainRatio(ratio); err != nil {
			tst.Fatalf("unexpected error: %v", err)
		}
		c.attach(testMotion(), p)
		c.EstimateInitialStrains()

		tf := []complex128{0.002, 0.002, 0.002, 0.002}
		if !c.UpdateSubLayer(0, tf) {
			tst.Fatalf("expected update to succeed")
		}

		peak := 100 * cmplx.Abs(tf[0])
		sl := p.SubLayer(0)
		chk.Float64(tst, "max strain", 1e-15, sl.MaxStrain(), peak)
		chk.Float64(tst, "eff strain", 1e-15, sl.EffStrain(), ratio*peak)

		want := soil.CalcCompShearMod(sl.ShearMod(), sl.Damping()/100)
		if c.ShearMod()[0][3] != want {
			tst.Errorf("expected shear modulus %v, got %v", want, c.ShearMod()[0][3])
		}
	}
}

func TestUpdateSubLayerDegenerate(t *testing.T) {
	p := testProfile(t)
	c := NewEquivalentLinear()
	c.attach(testMotion(), p)
	c.EstimateInitialStrains()

	sl := p.SubLayer(0)
	effBefore, maxBefore, gBefore, dBefore := sl.EffStrain(), sl.MaxStrain(), sl.ShearMod(), sl.Damping()
	rowBefore := append([]complex128(nil), c.ShearMod()[0]...)

	if c.UpdateSubLayer(0, []complex128{0, 0, 0, 0}) {
		t.Fatalf("expected update to fail for zero peak strain")
	}

	if sl.EffStrain() != effBefore || sl.MaxStrain() != maxBefore || sl.ShearMod() != gBefore || sl.Damping() != dBefore {
		t.Errorf("expected sublayer state unchanged after failed update")
	}
	for k, v := range c.ShearMod()[0] {
		if v != rowBefore[k] {
			t.Errorf("expected shear modulus %d unchanged, got %v", k, v)
		}
	}
}

func TestSetStrainRatio(t *testing.T) {
	c := NewEquivalentLinear()
	if c.StrainRatio() != DefaultStrainRatio {
		t.Errorf("expected default %g, got %g", DefaultStrainRatio, c.StrainRatio())
	}

	var events []string
	c.Subscribe(func(ev event.Event) { events = append(events, ev.Property) })

	if err := c.SetStrainRatio(0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.SetStrainRatio(0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0] != "strainRatio" || events[1] != event.Modified {
		t.Errorf("expected one change notification, got %v", events)
	}

	for _, bad := range []float64{0, -0.1, 1.01} {
		if err := c.SetStrainRatio(bad); !errors.Is(err, ErrParameterBounds) {
			t.Errorf("expected ErrParameterBounds for %g, got %v", bad, err)
		}
	}
	if c.StrainRatio() != 0.5 {
		t.Errorf("expected ratio unchanged after rejection, got %g", c.StrainRatio())
	}
}

func TestRunConverges(tst *testing.T) {
	chk.PrintTitle("run converges for a fixed strain field")

	p := testProfile(tst)
	c := NewEquivalentLinear()
	prop := &fakePropagator{strain: constantStrain(0.001)}
	c.SetPropagator(prop)

	var iterations []int
	c.Subscribe(func(ev event.Event) {
		if ev.Property == "iteration" {
			iterations = append(iterations, ev.Value.(int))
		}
	})

	res, err := c.Run(context.Background(), testMotion(), p)
	if err != nil {
		tst.Fatalf("unexpected error: %v", err)
	}

	if !res.Converged {
		tst.Errorf("expected convergence, got %+v", res.History)
	}
	chk.Int(tst, "iterations", res.Iterations, 2)
	chk.Int(tst, "history", len(res.History), 2)
	chk.Int(tst, "events", len(iterations), 2)
	chk.Float64(tst, "final error", 1e-15, res.MaxError, 0)
	chk.Float64(tst, "surface pga", 1e-15, res.SurfacePGA, 0.1)
	chk.Int(tst, "layers", len(res.Layers), p.SubLayerCount())

	for _, l := range res.Layers {
		chk.Float64(tst, "eff strain", 1e-12, l.EffStrain, DefaultStrainRatio*0.1)
	}

	fas := res.SurfaceFourierAcc([]float64{1, 2, 3, 4})
	chk.Array(tst, "surface fas", 1e-15, fas, []float64{2, 4, 6, 8})
}

func TestRunDoesNotConverge(t *testing.T) {
	p := testProfile(t)
	c := NewEquivalentLinear()
	if err := c.SetMaxIterations(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.SetPropagator(&fakePropagator{strain: func(call, _ int) float64 {
		if call%2 == 0 {
			return 0.0001
		}
		return 0.01
	}})

	res, err := c.Run(context.Background(), testMotion(), p)
	if err != nil {
		t.Fatalf("expected no error for non-convergence, got %v", err)
	}
	if res.Converged {
		t.Errorf("expected non-convergence")
	}
	if res.Iterations != 3 {
		t.Errorf("expected 3 iterations, got %d", res.Iterations)
	}
	if res.MaxError < c.ErrorTolerance() {
		t.Errorf("expected error above tolerance, got %g", res.MaxError)
	}
}

func TestRunDegenerateAborts(t *testing.T) {
	p := testProfile(t)
	c := NewEquivalentLinear()
	c.SetPropagator(&fakePropagator{strain: func(_, layer int) float64 {
		if layer == 1 {
			return 0
		}
		return 0.001
	}})

	_, err := c.Run(context.Background(), testMotion(), p)
	if !errors.Is(err, ErrDegenerateStrain) {
		t.Errorf("expected ErrDegenerateStrain, got %v", err)
	}
}

func TestRunCanceled(t *testing.T) {
	c := NewEquivalentLinear()
	prop := &fakePropagator{strain: constantStrain(0.001)}
	c.SetPropagator(prop)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx, testMotion(), testProfile(t))
	if !errors.Is(err, ErrCanceled) || !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled error, got %v", err)
	}
	if prop.calls != 0 {
		t.Errorf("expected no propagation after cancel, got %d calls", prop.calls)
	}
}

func TestLinearElasticSinglePass(tst *testing.T) {
	chk.PrintTitle("linear elastic keeps small-strain properties")

	p := testProfile(tst)
	c := NewLinearElastic()
	c.SetPropagator(&fakePropagator{strain: constantStrain(0.001)})

	res, err := c.Run(context.Background(), testMotion(), p)
	if err != nil {
		tst.Fatalf("unexpected error: %v", err)
	}
	if !res.Converged {
		tst.Errorf("expected convergence")
	}
	chk.Int(tst, "iterations", res.Iterations, 1)
	for _, l := range res.Layers {
		chk.Float64(tst, "modulus ratio", 1e-15, l.ModulusRatio, 1)
		chk.Float64(tst, "max strain", 1e-12, l.MaxStrain, 0.1)
	}
}

func TestSetBaseParameters(t *testing.T) {
	c := NewLinearElastic()
	if err := c.SetMaxIterations(0); !errors.Is(err, ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds, got %v", err)
	}
	if err := c.SetErrorTolerance(0); !errors.Is(err, ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds, got %v", err)
	}
	if err := c.SetErrorTolerance(1.5); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if c.ErrorTolerance() != 1.5 {
		t.Errorf("expected 1.5, got %g", c.ErrorTolerance())
	}
}

func TestEquivalentLinearJSON(t *testing.T) {
	c := NewEquivalentLinear()
	_ = c.SetStrainRatio(0.55)
	_ = c.SetMaxIterations(15)
	_ = c.SetErrorTolerance(1.5)

	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rec map[string]any
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"type", "strainRatio", "errorTolerance", "maxIterations"} {
		if _, ok := rec[key]; !ok {
			t.Errorf("expected key %q in %s", key, b)
		}
	}

	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	el, ok := got.(*EquivalentLinear)
	if !ok {
		t.Fatalf("expected *EquivalentLinear, got %T", got)
	}
	if el.StrainRatio() != 0.55 || el.MaxIterations() != 15 || el.ErrorTolerance() != 1.5 {
		t.Errorf("round trip mismatch: %s", b)
	}
}

func TestCalculatorStream(t *testing.T) {
	tests := []struct {
		name string
		calc Calculator
	}{
		{"equivalent linear", func() Calculator {
			c := NewEquivalentLinear()
			_ = c.SetStrainRatio(0.8)
			_ = c.SetMaxIterations(7)
			return c
		}()},
		{"linear elastic", func() Calculator {
			c := NewLinearElastic()
			_ = c.SetErrorTolerance(0.5)
			return c
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := stream.NewWriter(&buf)
			Write(w, tt.calc)
			if err := w.Err(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got, err := Read(stream.NewReader(bytes.NewReader(buf.Bytes())))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			want, _ := json.Marshal(tt.calc)
			have, _ := json.Marshal(got)
			if string(want) != string(have) {
				t.Errorf("expected %s, got %s", want, have)
			}

			_, err = Read(stream.NewReader(bytes.NewReader(buf.Bytes()[:buf.Len()-3])))
			if !errors.Is(err, stream.ErrShortRead) {
				t.Errorf("expected ErrShortRead for truncated stream, got %v", err)
			}
		})
	}
}

func TestEquivalentLinearStreamLayout(t *testing.T) {
	c := NewEquivalentLinear()
	var buf bytes.Buffer
	c.WriteStream(stream.NewWriter(&buf))

	b := buf.Bytes()
	// version, base version, int32, float64, float64
	if len(b) != 1+1+4+8+8 {
		t.Fatalf("expected 22 bytes, got %d", len(b))
	}
	if b[0] != 1 || b[1] != 1 {
		t.Errorf("expected version bytes 1, 1, got %d, %d", b[0], b[1])
	}
}

func TestUnknownKind(t *testing.T) {
	if _, err := New(Kind(9)); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := Unmarshal([]byte(`{"type":"Nonlinear"}`)); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestLoadRejectsOutOfBounds(t *testing.T) {
	records := []string{
		`{"type":"EquivalentLinearCalculator","strainRatio":5,"errorTolerance":2,"maxIterations":10}`,
		`{"type":"EquivalentLinearCalculator","strainRatio":0.65,"errorTolerance":-1,"maxIterations":10}`,
		`{"type":"LinearElasticCalculator","errorTolerance":2,"maxIterations":0}`,
		`{"type":"EquivalentLinearCalculator"}`,
		`{"type":"LinearElasticCalculator"}`,
	}
	for _, rec := range records {
		if _, err := Unmarshal([]byte(rec)); !errors.Is(err, ErrParameterBounds) {
			t.Errorf("expected ErrParameterBounds for %s, got %v", rec, err)
		}
	}

	var buf bytes.Buffer
	w := stream.NewWriter(&buf)
	w.Uint8(uint8(EquivalentLinearKind))
	w.Uint8(1)
	w.Uint8(1)
	w.Int32(10)
	w.Float64(2)
	w.Float64(0)
	if _, err := Read(stream.NewReader(&buf)); !errors.Is(err, ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds for zero strain ratio in stream, got %v", err)
	}
}

func calculatedRvtMotion(t *testing.T) *motion.SpecifiedRvtMotion {
	t.Helper()
	m := motion.NewSpecifiedRvtMotion()
	if err := m.SetSpectrum([]float64{0.5, 1, 2, 5}, []float64{0.01, 0.03, 0.05, 0.02}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.SetDuration(8)
	if err := m.Calculate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

type sublayerUpdater interface {
	attach(m motion.Motion, profile *soil.Profile)
	EstimateInitialStrains()
	UpdateSubLayer(index int, strainTf []complex128) bool
}

func TestUpdateSubLayerDegenerateRvt(t *testing.T) {
	nan := complex(math.NaN(), 0)
	transfers := map[string][]complex128{
		"zero": {0, 0, 0, 0},
		"nan":  {nan, nan, nan, nan},
	}
	calcs := map[string]func() sublayerUpdater{
		"equivalent linear": func() sublayerUpdater { return NewEquivalentLinear() },
		"linear elastic":    func() sublayerUpdater { return NewLinearElastic() },
	}

	for cname, newCalc := range calcs {
		for tname, tf := range transfers {
			t.Run(cname+"/"+tname, func(t *testing.T) {
				p := testProfile(t)
				c := newCalc()
				c.attach(calculatedRvtMotion(t), p)
				c.EstimateInitialStrains()

				sl := p.SubLayer(0)
				eff, peak, g, d := sl.EffStrain(), sl.MaxStrain(), sl.ShearMod(), sl.Damping()

				if c.UpdateSubLayer(0, tf) {
					t.Fatalf("expected update to fail")
				}
				if sl.EffStrain() != eff || sl.MaxStrain() != peak || sl.ShearMod() != g || sl.Damping() != d {
					t.Errorf("expected sublayer state unchanged after failed update")
				}
				if math.IsNaN(sl.ShearMod()) || math.IsNaN(sl.Damping()) {
					t.Errorf("expected finite properties, got %g / %g", sl.ShearMod(), sl.Damping())
				}
			})
		}
	}
}

func TestSetLoggerReachesSolver(t *testing.T) {
	var buf bytes.Buffer
	c := NewLinearElastic()
	c.SetLogger(logging.NewLogger("debug", &buf), nil)

	if _, err := c.Run(context.Background(), calculatedRvtMotion(t), testProfile(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "propagation solved") {
		t.Errorf("expected solver debug output, got %q", buf.String())
	}
}
