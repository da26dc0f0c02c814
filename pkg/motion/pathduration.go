package motion

import (
	"encoding/json"
	"fmt"

	"github.com/edp1096/toy-strata/pkg/event"
	"github.com/edp1096/toy-strata/pkg/stream"
)

type PathDurationSource int

const (
	PathDurationDefault PathDurationSource = iota
	PathDurationSpecified
)

func (s PathDurationSource) String() string {
	if s == PathDurationSpecified {
		return "specified"
	}
	return "default"
}

func (s PathDurationSource) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *PathDurationSource) UnmarshalText(b []byte) error {
	switch string(b) {
	case "default":
		*s = PathDurationDefault
	case "specified":
		*s = PathDurationSpecified
	default:
		return fmt.Errorf("motion: unknown path duration source %q", b)
	}
	return nil
}

// Rates in s/km beginning at each distance breakpoint (km).
var pathDurationTables = map[Region]struct{ distance, rate []float64 }{
	WUS: {
		distance: []float64{0},
		rate:     []float64{0.05},
	},
	CEUS: {
		distance: []float64{0, 10, 70, 130},
		rate:     []float64{0, 0.16, -0.03, 0.04},
	},
}

// PathDurationModel gives the duration added by propagation over a
// hypocentral distance as a piecewise-linear function of distance.
type PathDurationModel struct {
	event.Emitter

	source   PathDurationSource
	region   Region
	distance []float64
	rate     []float64
}

func NewPathDurationModel(region Region) *PathDurationModel {
	m := &PathDurationModel{source: PathDurationDefault, region: region}
	m.loadDefault()
	return m
}

func (m *PathDurationModel) Source() PathDurationSource { return m.source }
func (m *PathDurationModel) Region() Region             { return m.region }
func (m *PathDurationModel) Distance() []float64        { return m.distance }
func (m *PathDurationModel) Rate() []float64            { return m.rate }

func (m *PathDurationModel) loadDefault() {
	table := pathDurationTables[m.region]
	m.distance = append([]float64(nil), table.distance...)
	m.rate = append([]float64(nil), table.rate...)
}

func (m *PathDurationModel) SetRegion(region Region) {
	if m.region == region {
		return
	}
	m.region = region
	if m.source == PathDurationDefault {
		m.loadDefault()
	}
	m.Changed("region", region)
}

func (m *PathDurationModel) SetSource(source PathDurationSource) {
	if m.source == source {
		return
	}
	m.source = source
	if source == PathDurationDefault {
		m.loadDefault()
	}
	m.Changed("source", source)
}

// SetSpecified installs a user rate table. Breakpoints must start at zero and increase.
func (m *PathDurationModel) SetSpecified(distance, rate []float64) error {
	if len(distance) == 0 || len(distance) != len(rate) {
		return fmt.Errorf("motion: path duration table needs matching non-empty distance/rate, got %d/%d", len(distance), len(rate))
	}
	if distance[0] != 0 {
		return fmt.Errorf("motion: path duration table must start at 0 km, got %g", distance[0])
	}
	for i := 1; i < len(distance); i++ {
		if distance[i] <= distance[i-1] {
			return fmt.Errorf("motion: path duration distances must increase at index %d", i)
		}
	}
	m.source = PathDurationSpecified
	m.distance = append([]float64(nil), distance...)
	m.rate = append([]float64(nil), rate...)
	m.Changed("source", m.source)
	return nil
}

// Duration integrates the rate table from zero out to dist.
func (m *PathDurationModel) Duration(dist float64) float64 {
	var dur float64
	for i := range m.distance {
		if dist <= m.distance[i] {
			break
		}
		if i+1 < len(m.distance) && dist > m.distance[i+1] {
			dur += m.rate[i] * (m.distance[i+1] - m.distance[i])
			continue
		}
		dur += m.rate[i] * (dist - m.distance[i])
		break
	}
	return dur
}

func (m *PathDurationModel) copyFrom(o *PathDurationModel) {
	m.source = o.source
	m.region = o.region
	m.distance = append([]float64(nil), o.distance...)
	m.rate = append([]float64(nil), o.rate...)
	m.Emit(event.Modified, nil)
}

type pathDurationRecord struct {
	Source   PathDurationSource `json:"source"`
	Region   Region             `json:"region"`
	Distance []float64          `json:"distance"`
	Rate     []float64          `json:"rate"`
}

func (m *PathDurationModel) MarshalJSON() ([]byte, error) {
	return json.Marshal(pathDurationRecord{
		Source:   m.source,
		Region:   m.region,
		Distance: m.distance,
		Rate:     m.rate,
	})
}

func (m *PathDurationModel) UnmarshalJSON(b []byte) error {
	var rec pathDurationRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return fmt.Errorf("decoding path duration: %w", err)
	}
	m.source = rec.Source
	m.region = rec.Region
	if rec.Source == PathDurationSpecified {
		if len(rec.Distance) != len(rec.Rate) {
			return fmt.Errorf("motion: path duration distance/rate length mismatch %d/%d", len(rec.Distance), len(rec.Rate))
		}
		m.distance, m.rate = rec.Distance, rec.Rate
	} else {
		m.loadDefault()
	}
	return nil
}

func (m *PathDurationModel) WriteStream(w *stream.Writer) {
	w.Uint8(1)
	w.Int32(int32(m.source))
	w.Int32(int32(m.region))
	w.Float64s(m.distance)
	w.Float64s(m.rate)
}

func (m *PathDurationModel) ReadStream(r *stream.Reader) error {
	r.Version()
	m.source = PathDurationSource(r.Int32())
	m.region = Region(r.Int32())
	m.distance = r.Float64s()
	m.rate = r.Float64s()
	if err := r.Err(); err != nil {
		return fmt.Errorf("reading path duration: %w", err)
	}
	if len(m.distance) != len(m.rate) {
		return fmt.Errorf("motion: path duration distance/rate length mismatch %d/%d", len(m.distance), len(m.rate))
	}
	return nil
}
