package motion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edp1096/toy-strata/pkg/event"
	"github.com/edp1096/toy-strata/pkg/stream"
)

// SpecifiedRvtMotion is a motion given directly as a Fourier amplitude
// spectrum and a ground-motion duration.
type SpecifiedRvtMotion struct {
	RvtMotion
}

func NewSpecifiedRvtMotion() *SpecifiedRvtMotion {
	m := &SpecifiedRvtMotion{}
	m.name = "RVT Motion"
	m.magnitude = 6.5
	m.distance = 20
	m.region = WUS
	return m
}

func (m *SpecifiedRvtMotion) Kind() Kind { return SpecifiedKind }

// SetSpectrum replaces the spectrum. Frequencies must be positive and increasing.
func (m *SpecifiedRvtMotion) SetSpectrum(freq, fourierAcc []float64) error {
	if err := validateTable(freq, fourierAcc); err != nil {
		return err
	}
	m.freq = append([]float64(nil), freq...)
	m.fourierAcc = append([]float64(nil), fourierAcc...)
	m.Changed("fourierAcc", len(m.fourierAcc))
	return nil
}

func (m *SpecifiedRvtMotion) SetDuration(duration float64) {
	if m.duration != duration {
		m.setDuration(duration)
		m.Emit(event.Modified, nil)
	}
}

func (m *SpecifiedRvtMotion) SetMagnitude(magnitude float64) { m.setMagnitude(magnitude) }
func (m *SpecifiedRvtMotion) SetDistance(distance float64)   { m.setDistance(distance) }
func (m *SpecifiedRvtMotion) SetRegion(region Region)        { m.setRegion(region) }

// Calculate only refreshes the peak estimates; the spectrum is user data.
func (m *SpecifiedRvtMotion) Calculate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("specified motion: %w", err)
	}
	if len(m.freq) < 2 {
		return fmt.Errorf("specified motion: spectrum needs at least 2 points, got %d", len(m.freq))
	}
	m.computePeaks()
	return nil
}

type specifiedRecord struct {
	rvtRecord
	Duration   float64   `json:"duration"`
	Freq       []float64 `json:"freq"`
	FourierAcc []float64 `json:"fourierAcc"`
}

func (m *SpecifiedRvtMotion) MarshalJSON() ([]byte, error) {
	return json.Marshal(specifiedRecord{
		rvtRecord:  m.record(SpecifiedKind),
		Duration:   m.duration,
		Freq:       m.freq,
		FourierAcc: m.fourierAcc,
	})
}

func (m *SpecifiedRvtMotion) UnmarshalJSON(b []byte) error {
	var rec specifiedRecord
	if err := decodeRecord(b, &rec); err != nil {
		return err
	}
	return m.restore(rec)
}

func (m *SpecifiedRvtMotion) WriteStream(w *stream.Writer) {
	w.Uint8(1)
	m.writeBase(w)
	w.Float64(m.duration)
	w.Float64s(m.freq)
	w.Float64s(m.fourierAcc)
}

func (m *SpecifiedRvtMotion) ReadStream(r *stream.Reader) error {
	r.Version()
	rec := specifiedRecord{rvtRecord: readBase(r)}
	rec.Duration = r.Float64()
	rec.Freq = r.Float64s()
	rec.FourierAcc = r.Float64s()
	if err := r.Err(); err != nil {
		return fmt.Errorf("reading specified motion: %w", err)
	}
	return m.restore(rec)
}

func (m *SpecifiedRvtMotion) restore(rec specifiedRecord) error {
	m.SetName(rec.Name)
	m.SetIsCustomized(rec.IsCustomized)
	m.SetRegion(rec.Region)
	m.SetMagnitude(rec.Magnitude)
	m.SetDistance(rec.Distance)
	m.SetDuration(rec.Duration)
	if err := m.SetSpectrum(rec.Freq, rec.FourierAcc); err != nil {
		return err
	}
	return m.Calculate(context.Background())
}
