package motion

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"

	"github.com/cpmech/gosl/utl"
	"gonum.org/v1/gonum/integrate"

	"github.com/edp1096/toy-strata/internal/consts"
	"github.com/edp1096/toy-strata/pkg/event"
	"github.com/edp1096/toy-strata/pkg/stream"
)

// RvtMotion holds the state shared by motions described by a Fourier
// amplitude spectrum and a duration. Peak values are estimated with random
// vibration theory.
type RvtMotion struct {
	event.Emitter

	name         string
	magnitude    float64
	distance     float64 // epicentral, km
	region       Region
	isCustomized bool
	duration     float64 // s

	freq       []float64 // Hz
	fourierAcc []float64 // g-s
	pga        float64   // g
	pgv        float64   // cm/s

	logger *slog.Logger
}

func (m *RvtMotion) SetLogger(logger *slog.Logger) { m.logger = logger }

func (m *RvtMotion) Name() string          { return m.name }
func (m *RvtMotion) Magnitude() float64    { return m.magnitude }
func (m *RvtMotion) Distance() float64     { return m.distance }
func (m *RvtMotion) Region() Region        { return m.region }
func (m *RvtMotion) IsCustomized() bool    { return m.isCustomized }
func (m *RvtMotion) Duration() float64     { return m.duration }
func (m *RvtMotion) Freq() []float64       { return m.freq }
func (m *RvtMotion) FourierAcc() []float64 { return m.fourierAcc }
func (m *RvtMotion) PGA() float64          { return m.pga }
func (m *RvtMotion) PGV() float64          { return m.pgv }

func (m *RvtMotion) SetName(name string) {
	if m.name != name {
		m.name = name
		m.Changed("name", name)
	}
}

func (m *RvtMotion) setMagnitude(magnitude float64) {
	if m.magnitude != magnitude {
		m.magnitude = magnitude
		m.Changed("magnitude", magnitude)
	}
}

func (m *RvtMotion) setDistance(distance float64) {
	if m.distance != distance {
		m.distance = distance
		m.Changed("distance", distance)
	}
}

func (m *RvtMotion) setRegion(region Region) {
	if m.region != region {
		m.region = region
		m.Changed("region", region)
	}
}

func (m *RvtMotion) SetIsCustomized(b bool) {
	if m.isCustomized != b {
		m.isCustomized = b
		m.Changed("isCustomized", b)
	}
}

func (m *RvtMotion) setDuration(duration float64) {
	m.duration = duration
	m.Emit("duration", duration)
}

// CalcMax estimates the expected peak of a process with Fourier amplitudes fas
// over the motion frequencies. Returns 0 when the spectrum or duration is
// degenerate, including NaN moments.
func (m *RvtMotion) CalcMax(fas []float64) float64 {
	if len(fas) != len(m.freq) || len(fas) < 2 || m.duration <= 0 {
		return 0
	}

	fasSqr := make([]float64, len(fas))
	for i, a := range fas {
		fasSqr[i] = a * a
	}
	m0 := spectralMoment(m.freq, fasSqr, 0)
	m2 := spectralMoment(m.freq, fasSqr, 2)
	m4 := spectralMoment(m.freq, fasSqr, 4)
	if !(m0 > 0 && m2 > 0 && m4 > 0) {
		return 0
	}

	rms := math.Sqrt(m0 / m.duration)
	return rms * peakFactor(m0, m2, m4, m.duration)
}

// CalcMaxResponse estimates the peak of the motion filtered by tf, which must
// be sampled at the motion frequencies.
func (m *RvtMotion) CalcMaxResponse(tf []complex128) float64 {
	if len(tf) != len(m.fourierAcc) {
		return 0
	}
	fas := make([]float64, len(tf))
	for i, v := range tf {
		fas[i] = m.fourierAcc[i] * cmplx.Abs(v)
	}
	return m.CalcMax(fas)
}

// CalcMaxStrain returns the peak strain (dimensionless) for a strain transfer
// function expressed per unit acceleration in g.
func (m *RvtMotion) CalcMaxStrain(strainTf []complex128) float64 {
	return m.CalcMaxResponse(strainTf)
}

func (m *RvtMotion) computePeaks() {
	m.pga = m.CalcMax(m.fourierAcc)

	vel := make([]float64, len(m.fourierAcc))
	for i, a := range m.fourierAcc {
		if m.freq[i] > 0 {
			vel[i] = a * consts.GRAVITY_CM / (2 * math.Pi * m.freq[i])
		}
	}
	m.pgv = m.CalcMax(vel)

	m.Emit("pga", m.pga)
	m.Emit("pgv", m.pgv)
	if m.logger != nil {
		m.logger.Debug("rvt peaks computed", "motion", m.name, "pga_g", m.pga, "pgv_cms", m.pgv, "duration_s", m.duration)
	}
}

// spectralMoment integrates 2·(2πf)^power·|A(f)|² over the frequency grid
// with the trapezoid rule.
func spectralMoment(freq, fasSqr []float64, power int) float64 {
	y := make([]float64, len(freq))
	for i, f := range freq {
		y[i] = math.Pow(2*math.Pi*f, float64(power)) * fasSqr[i]
	}
	return 2 * integrate.Trapezoidal(freq, y)
}

const (
	peakFactorZMax  = 10.0
	peakFactorSteps = 2000
)

// Abscissae of the peak factor integral; an odd count keeps Simpson's rule
// on uniform panels.
var peakFactorZ = utl.LinSpace(0, peakFactorZMax, peakFactorSteps+1)

// peakFactor is the Cartwright & Longuet-Higgins (1956) ratio of expected
// peak to rms.
func peakFactor(m0, m2, m4, duration float64) float64 {
	bandWidth := math.Sqrt((m2 * m2) / (m0 * m4))
	numExtrema := math.Max(2, math.Sqrt(m4/m2)*duration/math.Pi)

	f := make([]float64, len(peakFactorZ))
	for i, z := range peakFactorZ {
		f[i] = 1 - math.Pow(1-bandWidth*math.Exp(-z*z), numExtrema)
	}
	return math.Sqrt2 * integrate.Simpsons(peakFactorZ, f)
}

type rvtRecord struct {
	Type         Kind    `json:"type"`
	Name         string  `json:"name"`
	Magnitude    float64 `json:"magnitude"`
	Distance     float64 `json:"distance"`
	Region       Region  `json:"region"`
	IsCustomized bool    `json:"isCustomized"`
}

func (m *RvtMotion) record(kind Kind) rvtRecord {
	return rvtRecord{
		Type:         kind,
		Name:         m.name,
		Magnitude:    m.magnitude,
		Distance:     m.distance,
		Region:       m.region,
		IsCustomized: m.isCustomized,
	}
}

func (m *RvtMotion) writeBase(w *stream.Writer) {
	w.Uint8(1)
	w.String(m.name)
	w.Float64(m.magnitude)
	w.Float64(m.distance)
	w.Int32(int32(m.region))
	w.Bool(m.isCustomized)
}

func readBase(r *stream.Reader) rvtRecord {
	r.Version()
	return rvtRecord{
		Name:         r.String(),
		Magnitude:    r.Float64(),
		Distance:     r.Float64(),
		Region:       Region(r.Int32()),
		IsCustomized: r.Bool(),
	}
}

func decodeRecord(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding motion: %w", err)
	}
	return nil
}
