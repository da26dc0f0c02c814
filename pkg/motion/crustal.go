package motion

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/edp1096/toy-strata/pkg/event"
	"github.com/edp1096/toy-strata/pkg/stream"
)

type CrustalModel int

const (
	CrustalDefault CrustalModel = iota
	CrustalSpecified
	CrustalCalculated
)

var crustalModelNames = []string{"default", "specified", "calculated"}

func (m CrustalModel) String() string {
	if m < 0 || int(m) >= len(crustalModelNames) {
		return fmt.Sprintf("CrustalModel(%d)", int(m))
	}
	return crustalModelNames[m]
}

func (m CrustalModel) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *CrustalModel) UnmarshalText(b []byte) error {
	for i, name := range crustalModelNames {
		if name == string(b) {
			*m = CrustalModel(i)
			return nil
		}
	}
	return fmt.Errorf("motion: unknown crustal model %q", b)
}

// CrustalLayer is one layer of a crustal velocity profile. The last layer of a
// profile is treated as a half-space and its thickness is ignored.
type CrustalLayer struct {
	Thickness float64 `json:"thickness" yaml:"thickness"` // km
	Velocity  float64 `json:"velocity" yaml:"velocity"`   // km/s
	Density   float64 `json:"density" yaml:"density"`     // g/cm^3
}

// Generic rock amplification (Boore & Joyner 1997) for WUS and the
// hard-rock CEUS counterpart.
var crustalTables = map[Region]struct{ freq, amp []float64 }{
	WUS: {
		freq: []float64{0.01, 0.09, 0.16, 0.51, 0.84, 1.25, 2.26, 3.17, 6.05, 16.6, 61.2, 100},
		amp:  []float64{1.00, 1.10, 1.18, 1.42, 1.58, 1.74, 2.06, 2.25, 2.58, 3.13, 4.00, 4.40},
	},
	CEUS: {
		freq: []float64{0.01, 0.10, 0.20, 0.30, 0.50, 0.90, 1.25, 1.80, 3.00, 5.30, 8.00, 14.00, 30.00, 60.00, 100.00},
		amp:  []float64{1.00, 1.02, 1.03, 1.05, 1.07, 1.09, 1.11, 1.12, 1.13, 1.14, 1.15, 1.15, 1.15, 1.15, 1.15},
	},
}

// CrustalAmplification maps frequency to the amplification accumulated by
// waves travelling up through the crust.
type CrustalAmplification struct {
	event.Emitter

	model  CrustalModel
	region Region
	freq   []float64
	amp    []float64
	layers []CrustalLayer
}

func NewCrustalAmplification(region Region) *CrustalAmplification {
	ca := &CrustalAmplification{model: CrustalDefault}
	ca.region = region
	ca.loadDefault()
	return ca
}

func (ca *CrustalAmplification) Model() CrustalModel    { return ca.model }
func (ca *CrustalAmplification) Region() Region         { return ca.region }
func (ca *CrustalAmplification) Freq() []float64        { return ca.freq }
func (ca *CrustalAmplification) Amp() []float64         { return ca.amp }
func (ca *CrustalAmplification) Layers() []CrustalLayer { return ca.layers }

func (ca *CrustalAmplification) loadDefault() {
	table := crustalTables[ca.region]
	ca.freq = append([]float64(nil), table.freq...)
	ca.amp = append([]float64(nil), table.amp...)
}

func (ca *CrustalAmplification) SetRegion(region Region) {
	if ca.region == region {
		return
	}
	ca.region = region
	if ca.model == CrustalDefault {
		ca.loadDefault()
	}
	ca.Changed("region", region)
}

func (ca *CrustalAmplification) SetModel(model CrustalModel) {
	if ca.model == model {
		return
	}
	ca.model = model
	if model == CrustalDefault {
		ca.loadDefault()
	}
	ca.Changed("model", model)
}

// SetSpecified switches to a user table. Frequencies must be positive and
// strictly increasing.
func (ca *CrustalAmplification) SetSpecified(freq, amp []float64) error {
	if err := validateTable(freq, amp); err != nil {
		return err
	}
	ca.model = CrustalSpecified
	ca.freq = append([]float64(nil), freq...)
	ca.amp = append([]float64(nil), amp...)
	ca.Changed("model", ca.model)
	return nil
}

// SetLayers switches to amplification calculated from a crustal profile.
func (ca *CrustalAmplification) SetLayers(layers []CrustalLayer) error {
	if len(layers) == 0 {
		return fmt.Errorf("motion: crustal profile requires at least one layer")
	}
	for i, l := range layers {
		if l.Velocity <= 0 || l.Density <= 0 {
			return fmt.Errorf("motion: crustal layer %d: velocity and density must be positive", i)
		}
		if i < len(layers)-1 && l.Thickness <= 0 {
			return fmt.Errorf("motion: crustal layer %d: thickness must be positive", i)
		}
	}
	ca.model = CrustalCalculated
	ca.layers = append([]CrustalLayer(nil), layers...)
	ca.loadDefault()
	ca.Changed("model", ca.model)
	return nil
}

func validateTable(freq, amp []float64) error {
	if len(freq) == 0 || len(freq) != len(amp) {
		return fmt.Errorf("motion: amplification table needs matching non-empty freq/amp, got %d/%d", len(freq), len(amp))
	}
	for i, f := range freq {
		if f <= 0 {
			return fmt.Errorf("motion: table frequency %d must be positive, got %g", i, f)
		}
		if i > 0 && f <= freq[i-1] {
			return fmt.Errorf("motion: table frequencies must increase at index %d", i)
		}
	}
	return nil
}

// InterpAmpAt returns the amplification at freq. Tables are interpolated
// linearly in log-frequency and held constant past either end.
func (ca *CrustalAmplification) InterpAmpAt(freq float64) float64 {
	if ca.model == CrustalCalculated {
		return ca.quarterWavelengthAmp(freq)
	}

	n := len(ca.freq)
	if n == 0 {
		return 1
	}
	if freq <= ca.freq[0] {
		return ca.amp[0]
	}
	if freq >= ca.freq[n-1] {
		return ca.amp[n-1]
	}

	i := sort.SearchFloat64s(ca.freq, freq)
	if ca.freq[i] == freq {
		return ca.amp[i]
	}
	x0, x1 := math.Log(ca.freq[i-1]), math.Log(ca.freq[i])
	t := (math.Log(freq) - x0) / (x1 - x0)
	return ca.amp[i-1] + t*(ca.amp[i]-ca.amp[i-1])
}

// quarterWavelengthAmp averages velocity and density down to the depth that a
// quarter wavelength at freq reaches, and compares the impedance there with
// the source (half-space) impedance.
func (ca *CrustalAmplification) quarterWavelengthAmp(freq float64) float64 {
	if len(ca.layers) == 0 || freq <= 0 {
		return 1
	}

	target := 1 / (4 * freq)
	var t, z, mass float64
	last := len(ca.layers) - 1

	for i, l := range ca.layers {
		dt := l.Thickness / l.Velocity
		if i == last || t+dt >= target {
			dz := (target - t) * l.Velocity
			z += dz
			mass += dz * l.Density
			break
		}
		t += dt
		z += l.Thickness
		mass += l.Thickness * l.Density
	}

	if z <= 0 {
		return 1
	}
	avgVel := z / target
	avgDen := mass / z
	src := ca.layers[last]
	return math.Sqrt((src.Velocity * src.Density) / (avgVel * avgDen))
}

func (ca *CrustalAmplification) copyFrom(o *CrustalAmplification) {
	ca.model = o.model
	ca.region = o.region
	ca.freq = append([]float64(nil), o.freq...)
	ca.amp = append([]float64(nil), o.amp...)
	ca.layers = append([]CrustalLayer(nil), o.layers...)
	ca.Emit(event.Modified, nil)
}

type crustalRecord struct {
	Model  CrustalModel   `json:"model"`
	Region Region         `json:"region"`
	Freq   []float64      `json:"freq,omitempty"`
	Amp    []float64      `json:"amp,omitempty"`
	Layers []CrustalLayer `json:"layers,omitempty"`
}

func (ca *CrustalAmplification) MarshalJSON() ([]byte, error) {
	rec := crustalRecord{Model: ca.model, Region: ca.region}
	switch ca.model {
	case CrustalSpecified:
		rec.Freq, rec.Amp = ca.freq, ca.amp
	case CrustalCalculated:
		rec.Layers = ca.layers
	}
	return json.Marshal(rec)
}

func (ca *CrustalAmplification) UnmarshalJSON(b []byte) error {
	var rec crustalRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return fmt.Errorf("decoding crustal amplification: %w", err)
	}

	ca.model = rec.Model
	ca.region = rec.Region
	ca.layers = nil
	switch rec.Model {
	case CrustalSpecified:
		if err := validateTable(rec.Freq, rec.Amp); err != nil {
			return err
		}
		ca.freq, ca.amp = rec.Freq, rec.Amp
	case CrustalCalculated:
		ca.layers = rec.Layers
		ca.loadDefault()
	default:
		ca.loadDefault()
	}
	return nil
}

func (ca *CrustalAmplification) WriteStream(w *stream.Writer) {
	w.Uint8(1)
	w.Int32(int32(ca.model))
	w.Int32(int32(ca.region))
	w.Float64s(ca.freq)
	w.Float64s(ca.amp)
	w.Int32(int32(len(ca.layers)))
	for _, l := range ca.layers {
		w.Float64(l.Thickness)
		w.Float64(l.Velocity)
		w.Float64(l.Density)
	}
}

func (ca *CrustalAmplification) ReadStream(r *stream.Reader) error {
	r.Version()
	ca.model = CrustalModel(r.Int32())
	ca.region = Region(r.Int32())
	ca.freq = r.Float64s()
	ca.amp = r.Float64s()
	n := int(r.Int32())
	ca.layers = nil
	for i := 0; i < n && r.Err() == nil; i++ {
		ca.layers = append(ca.layers, CrustalLayer{
			Thickness: r.Float64(),
			Velocity:  r.Float64(),
			Density:   r.Float64(),
		})
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("reading crustal amplification: %w", err)
	}
	return nil
}
