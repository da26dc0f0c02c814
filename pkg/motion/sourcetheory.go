package motion

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/edp1096/toy-strata/internal/consts"
	"github.com/edp1096/toy-strata/pkg/dimension"
	"github.com/edp1096/toy-strata/pkg/event"
	"github.com/edp1096/toy-strata/pkg/stream"
)

// Frequency bins synthesized between cancellation checks.
const calcBatch = 256

// SourceTheoryRvtMotion synthesizes a Fourier acceleration spectrum from a
// single-corner Brune point source with geometric and anelastic path
// attenuation, crustal amplification and kappa site diminution.
type SourceTheoryRvtMotion struct {
	RvtMotion

	depth          float64 // km
	stressDrop     float64 // bar
	geoAtten       float64
	pathAttenCoeff float64
	pathAttenPower float64
	shearVelocity  float64 // km/s
	density        float64 // g/cm^3
	siteAtten      float64 // kappa, s

	seismicMoment float64 // dyne-cm
	cornerFreq    float64 // Hz
	hypoDistance  float64 // km

	freqDim      *dimension.Dimension
	crustalAmp   *CrustalAmplification
	pathDuration *PathDurationModel
}

func NewSourceTheoryRvtMotion() *SourceTheoryRvtMotion {
	m := &SourceTheoryRvtMotion{}
	m.name = "Source Theory RVT Motion (M $mag @ $dist km)"
	m.magnitude = 6.5
	m.distance = 20
	m.region = WUS

	m.freqDim = dimension.New(0.05, 50, 1024, dimension.Log)
	m.freqDim.Subscribe(m.forwardModified)
	m.freq = m.freqDim.Data()
	m.fourierAcc = make([]float64, len(m.freq))

	m.crustalAmp = NewCrustalAmplification(m.region)
	m.crustalAmp.Subscribe(m.forwardModified)
	m.pathDuration = NewPathDurationModel(m.region)
	m.pathDuration.Subscribe(func(ev event.Event) {
		if ev.Property == event.Modified {
			m.calcDuration()
			m.Emit(event.Modified, nil)
		}
	})

	m.SetRegion(m.region)
	m.SetMagnitude(m.magnitude)
	m.SetDistance(m.distance)
	m.SetDepth(8)

	return m
}

func (m *SourceTheoryRvtMotion) forwardModified(ev event.Event) {
	if ev.Property == event.Modified {
		m.Emit(event.Modified, nil)
	}
}

func (m *SourceTheoryRvtMotion) Kind() Kind { return SourceTheoryKind }

func (m *SourceTheoryRvtMotion) Depth() float64          { return m.depth }
func (m *SourceTheoryRvtMotion) StressDrop() float64     { return m.stressDrop }
func (m *SourceTheoryRvtMotion) GeoAtten() float64       { return m.geoAtten }
func (m *SourceTheoryRvtMotion) PathAttenCoeff() float64 { return m.pathAttenCoeff }
func (m *SourceTheoryRvtMotion) PathAttenPower() float64 { return m.pathAttenPower }
func (m *SourceTheoryRvtMotion) ShearVelocity() float64  { return m.shearVelocity }
func (m *SourceTheoryRvtMotion) Density() float64        { return m.density }
func (m *SourceTheoryRvtMotion) SiteAtten() float64      { return m.siteAtten }
func (m *SourceTheoryRvtMotion) SeismicMoment() float64  { return m.seismicMoment }
func (m *SourceTheoryRvtMotion) CornerFreq() float64     { return m.cornerFreq }
func (m *SourceTheoryRvtMotion) HypoDistance() float64   { return m.hypoDistance }

func (m *SourceTheoryRvtMotion) FreqDimension() *dimension.Dimension { return m.freqDim }
func (m *SourceTheoryRvtMotion) CrustalAmp() *CrustalAmplification   { return m.crustalAmp }
func (m *SourceTheoryRvtMotion) PathDuration() *PathDurationModel    { return m.pathDuration }

// SetRegion hands the region to the crustal amplification and path duration
// models and re-derives geometric attenuation. The parameter bundle is reset
// only while the motion is not customized.
func (m *SourceTheoryRvtMotion) SetRegion(region Region) {
	m.setRegion(region)

	m.crustalAmp.SetRegion(region)
	m.pathDuration.SetRegion(region)
	m.calcGeoAtten()

	if m.isCustomized {
		return
	}

	if p, ok := ParamsFor(region); ok {
		m.SetStressDrop(p.StressDrop)
		m.SetPathAttenCoeff(p.PathAttenCoeff)
		m.SetPathAttenPower(p.PathAttenPower)
		m.SetShearVelocity(p.ShearVelocity)
		m.SetDensity(p.Density)
		m.SetSiteAtten(p.SiteAtten)
	}
}

func (m *SourceTheoryRvtMotion) SetMagnitude(magnitude float64) {
	m.setMagnitude(magnitude)
	m.seismicMoment = math.Pow(10, 1.5*(m.magnitude+10.7))
	m.calcCornerFreq()
}

func (m *SourceTheoryRvtMotion) SetDistance(distance float64) {
	m.setDistance(distance)
	m.calcHypoDistance()
}

func (m *SourceTheoryRvtMotion) SetDepth(depth float64) {
	if m.depth != depth {
		m.depth = depth
		m.Changed("depth", depth)
	}
	m.calcHypoDistance()
}

func (m *SourceTheoryRvtMotion) SetStressDrop(stressDrop float64) {
	if m.stressDrop != stressDrop {
		m.stressDrop = stressDrop
		m.Changed("stressDrop", stressDrop)
		m.calcCornerFreq()
	}
}

func (m *SourceTheoryRvtMotion) SetGeoAtten(geoAtten float64) {
	if m.geoAtten != geoAtten {
		m.geoAtten = geoAtten
		m.Changed("geoAtten", geoAtten)
	}
}

func (m *SourceTheoryRvtMotion) SetPathAttenCoeff(pathAttenCoeff float64) {
	if m.pathAttenCoeff != pathAttenCoeff {
		m.pathAttenCoeff = pathAttenCoeff
		m.Changed("pathAttenCoeff", pathAttenCoeff)
	}
}

func (m *SourceTheoryRvtMotion) SetPathAttenPower(pathAttenPower float64) {
	if m.pathAttenPower != pathAttenPower {
		m.pathAttenPower = pathAttenPower
		m.Changed("pathAttenPower", pathAttenPower)
	}
}

func (m *SourceTheoryRvtMotion) SetShearVelocity(shearVelocity float64) {
	if m.shearVelocity != shearVelocity {
		m.shearVelocity = shearVelocity
		m.Changed("shearVelocity", shearVelocity)
		m.calcCornerFreq()
	}
}

func (m *SourceTheoryRvtMotion) SetDensity(density float64) {
	if m.density != density {
		m.density = density
		m.Changed("density", density)
	}
}

func (m *SourceTheoryRvtMotion) SetSiteAtten(siteAtten float64) {
	if m.siteAtten != siteAtten {
		m.siteAtten = siteAtten
		m.Changed("siteAtten", siteAtten)
	}
}

func (m *SourceTheoryRvtMotion) calcHypoDistance() {
	if m.depth > 0 && m.distance > 0 {
		m.hypoDistance = math.Sqrt(m.depth*m.depth + m.distance*m.distance)
		m.Emit("hypoDistance", m.hypoDistance)

		m.calcDuration()
		m.calcGeoAtten()
	}
}

func (m *SourceTheoryRvtMotion) calcCornerFreq() {
	if m.shearVelocity > 0 && m.stressDrop > 0 && m.seismicMoment > 0 {
		m.cornerFreq = 4.9e6 * m.shearVelocity * math.Cbrt(m.stressDrop/m.seismicMoment)
		m.Emit("cornerFreq", m.cornerFreq)

		m.calcDuration()
	}
}

func (m *SourceTheoryRvtMotion) calcDuration() {
	if m.cornerFreq > 0 {
		sourceDur := 1 / m.cornerFreq
		pathDur := m.pathDuration.Duration(m.hypoDistance)
		m.setDuration(sourceDur + pathDur)
	}
}

func (m *SourceTheoryRvtMotion) calcGeoAtten() {
	if m.hypoDistance > 0 {
		m.SetGeoAtten(GeoAtten(m.region, m.hypoDistance))
	}
}

// GeoAtten is the geometric spreading at hypocentral distance r (km). The
// branches are evaluated as written; no continuity is imposed at breakpoints.
func GeoAtten(region Region, r float64) float64 {
	switch region {
	case WUS:
		if r < 40 {
			return 1 / r
		}
		return 1. / 40. * math.Sqrt(40/r)
	case CEUS:
		if r < 70 {
			return 1 / r
		} else if r < 130 {
			return 1. / 70.
		}
		return 1. / 70. * math.Sqrt(130/r)
	}
	return 0
}

// Calculate synthesizes the Fourier amplitude spectrum over the frequency
// grid and updates the peak estimates. The previous spectrum is kept if ctx
// is canceled part way.
func (m *SourceTheoryRvtMotion) Calculate(ctx context.Context) error {
	if err := m.freqDim.Validate(); err != nil {
		return fmt.Errorf("source theory motion: %w", err)
	}

	freq := m.freqDim.Data()
	fas := make([]float64, len(freq))

	// Radiation pattern 0.55 times free-surface factor 2.
	c := (0.55 * 2) / (math.Sqrt2 * 4 * math.Pi * m.density * math.Pow(m.shearVelocity, 3))

	for i, f := range freq {
		if i%calcBatch == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("source theory motion canceled at bin %d: %w", i, err)
			}
		}

		sourceComp := c * m.seismicMoment / (1 + math.Pow(f/m.cornerFreq, 2))

		pathAtten := m.pathAttenCoeff * math.Pow(f, m.pathAttenPower)
		pathComp := m.geoAtten * math.Exp((-math.Pi*f*m.hypoDistance)/(pathAtten*m.shearVelocity))

		siteAmp := m.crustalAmp.InterpAmpAt(f)
		siteDim := math.Exp(-math.Pi * m.siteAtten * f)
		siteComp := siteAmp * siteDim

		// Displacement to acceleration.
		fas[i] = consts.DYNE_CM_TO_G_SEC * math.Pow(2*math.Pi*f, 2) * sourceComp * pathComp * siteComp
	}

	m.freq = freq
	m.fourierAcc = fas
	m.Emit("fourierAcc", len(fas))
	m.computePeaks()

	if m.logger != nil {
		m.logger.Debug("source spectrum synthesized",
			"bins", len(fas), "magnitude", m.magnitude, "hypo_km", m.hypoDistance,
			"fc_hz", m.cornerFreq, "duration_s", m.duration)
	}
	return nil
}

type sourceTheoryRecord struct {
	rvtRecord
	Depth float64              `json:"depth"`
	Freq  *dimension.Dimension `json:"freq"`

	StressDrop     *float64              `json:"stressDrop,omitempty"`
	GeoAtten       *float64              `json:"geoAtten,omitempty"`
	PathAttenCoeff *float64              `json:"pathAttenCoeff,omitempty"`
	PathAttenPower *float64              `json:"pathAttenPower,omitempty"`
	ShearVelocity  *float64              `json:"shearVelocity,omitempty"`
	Density        *float64              `json:"density,omitempty"`
	SiteAtten      *float64              `json:"siteAtten,omitempty"`
	CrustalAmp     *CrustalAmplification `json:"crustalAmp,omitempty"`
	PathDuration   *PathDurationModel    `json:"pathDuration,omitempty"`
}

// customParams are persisted only while the motion is customized.
type customParams struct {
	stressDrop, geoAtten, pathAttenCoeff, pathAttenPower float64
	shearVelocity, density, siteAtten                    float64
	crustalAmp                                           *CrustalAmplification
	pathDuration                                         *PathDurationModel
}

func (m *SourceTheoryRvtMotion) MarshalJSON() ([]byte, error) {
	rec := sourceTheoryRecord{
		rvtRecord: m.record(SourceTheoryKind),
		Depth:     m.depth,
		Freq:      m.freqDim,
	}
	if m.isCustomized {
		rec.StressDrop = &m.stressDrop
		rec.GeoAtten = &m.geoAtten
		rec.PathAttenCoeff = &m.pathAttenCoeff
		rec.PathAttenPower = &m.pathAttenPower
		rec.ShearVelocity = &m.shearVelocity
		rec.Density = &m.density
		rec.SiteAtten = &m.siteAtten
		rec.CrustalAmp = m.crustalAmp
		rec.PathDuration = m.pathDuration
	}
	return json.Marshal(rec)
}

// UnmarshalJSON restores the motion and synthesizes its spectrum. Parameters
// absent because the record was not customized come from the region defaults.
func (m *SourceTheoryRvtMotion) UnmarshalJSON(b []byte) error {
	freq := dimension.New(0.05, 50, 1024, dimension.Log)
	rec := sourceTheoryRecord{Freq: freq}
	if err := decodeRecord(b, &rec); err != nil {
		return err
	}

	var custom *customParams
	if rec.IsCustomized {
		custom = &customParams{
			stressDrop:     valueOr(rec.StressDrop, m.stressDrop),
			geoAtten:       valueOr(rec.GeoAtten, m.geoAtten),
			pathAttenCoeff: valueOr(rec.PathAttenCoeff, m.pathAttenCoeff),
			pathAttenPower: valueOr(rec.PathAttenPower, m.pathAttenPower),
			shearVelocity:  valueOr(rec.ShearVelocity, m.shearVelocity),
			density:        valueOr(rec.Density, m.density),
			siteAtten:      valueOr(rec.SiteAtten, m.siteAtten),
			crustalAmp:     rec.CrustalAmp,
			pathDuration:   rec.PathDuration,
		}
	}
	m.restore(rec.rvtRecord, rec.Depth, freq, custom)
	return m.Calculate(context.Background())
}

func valueOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

func (m *SourceTheoryRvtMotion) WriteStream(w *stream.Writer) {
	w.Uint8(3)
	m.writeBase(w)
	w.Float64(m.depth)
	m.freqDim.WriteStream(w)
	if m.isCustomized {
		w.Float64(m.stressDrop)
		w.Float64(m.geoAtten)
		w.Float64(m.pathAttenCoeff)
		w.Float64(m.pathAttenPower)
		w.Float64(m.shearVelocity)
		w.Float64(m.density)
		w.Float64(m.siteAtten)
		m.crustalAmp.WriteStream(w)
		m.pathDuration.WriteStream(w)
	}
}

// ReadStream consumes the fields in the order WriteStream produced them and then
// synthesizes the spectrum.
func (m *SourceTheoryRvtMotion) ReadStream(r *stream.Reader) error {
	r.Version()
	base := readBase(r)
	depth := r.Float64()

	freq := &dimension.Dimension{}
	if err := freq.ReadStream(r); err != nil {
		return fmt.Errorf("reading source theory motion: %w", err)
	}

	var custom *customParams
	if base.IsCustomized {
		custom = &customParams{
			stressDrop:     r.Float64(),
			geoAtten:       r.Float64(),
			pathAttenCoeff: r.Float64(),
			pathAttenPower: r.Float64(),
			shearVelocity:  r.Float64(),
			density:        r.Float64(),
			siteAtten:      r.Float64(),
			crustalAmp:     &CrustalAmplification{},
			pathDuration:   &PathDurationModel{},
		}
		if err := custom.crustalAmp.ReadStream(r); err != nil {
			return fmt.Errorf("reading source theory motion: %w", err)
		}
		if err := custom.pathDuration.ReadStream(r); err != nil {
			return fmt.Errorf("reading source theory motion: %w", err)
		}
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("reading source theory motion: %w", err)
	}

	m.restore(base, depth, freq, custom)
	return m.Calculate(context.Background())
}

// restore applies loaded state through the setters so derived values are
// recomputed. Customized values are applied last so that region and
// distance recomputation cannot overwrite them.
func (m *SourceTheoryRvtMotion) restore(base rvtRecord, depth float64, freq *dimension.Dimension, custom *customParams) {
	m.SetName(base.Name)
	m.SetIsCustomized(base.IsCustomized)
	m.SetRegion(base.Region)
	m.SetMagnitude(base.Magnitude)
	m.SetDistance(base.Distance)
	m.SetDepth(depth)

	m.freqDim.SetMin(freq.Min())
	m.freqDim.SetMax(freq.Max())
	m.freqDim.SetSize(freq.Size())
	m.freqDim.SetSpacing(freq.Spacing())

	if custom == nil {
		return
	}
	if custom.crustalAmp != nil {
		m.crustalAmp.copyFrom(custom.crustalAmp)
	}
	if custom.pathDuration != nil {
		m.pathDuration.copyFrom(custom.pathDuration)
	}
	m.SetStressDrop(custom.stressDrop)
	m.SetPathAttenCoeff(custom.pathAttenCoeff)
	m.SetPathAttenPower(custom.pathAttenPower)
	m.SetShearVelocity(custom.shearVelocity)
	m.SetDensity(custom.density)
	m.SetSiteAtten(custom.siteAtten)
	m.SetGeoAtten(custom.geoAtten)
}
