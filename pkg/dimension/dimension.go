package dimension

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/cpmech/gosl/utl"

	"github.com/edp1096/toy-strata/pkg/event"
	"github.com/edp1096/toy-strata/pkg/stream"
)

var ErrInvalidGrid = errors.New("dimension: invalid grid")

type Spacing int

const (
	Linear Spacing = iota
	Log
)

func (s Spacing) String() string {
	if s == Log {
		return "log"
	}
	return "linear"
}

func (s Spacing) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Spacing) UnmarshalText(b []byte) error {
	switch string(b) {
	case "linear", "LIN":
		*s = Linear
	case "log", "DEC":
		*s = Log
	default:
		return fmt.Errorf("dimension: unknown spacing %q", b)
	}
	return nil
}

// Dimension is an ordered grid of points between min and max inclusive.
// Points are regenerated on every change.
type Dimension struct {
	event.Emitter

	min     float64
	max     float64
	size    int
	spacing Spacing
	data    []float64
}

func New(min, max float64, size int, spacing Spacing) *Dimension {
	d := &Dimension{min: min, max: max, size: size, spacing: spacing}
	d.init()
	return d
}

func (d *Dimension) Min() float64     { return d.min }
func (d *Dimension) Max() float64     { return d.max }
func (d *Dimension) Size() int        { return d.size }
func (d *Dimension) Spacing() Spacing { return d.spacing }
func (d *Dimension) Data() []float64  { return d.data }
func (d *Dimension) At(i int) float64 { return d.data[i] }

func (d *Dimension) SetMin(min float64) {
	if d.min != min {
		d.min = min
		d.init()
		d.Changed("min", min)
	}
}

func (d *Dimension) SetMax(max float64) {
	if d.max != max {
		d.max = max
		d.init()
		d.Changed("max", max)
	}
}

func (d *Dimension) SetSize(size int) {
	if d.size != size {
		d.size = size
		d.init()
		d.Changed("size", size)
	}
}

func (d *Dimension) SetSpacing(spacing Spacing) {
	if d.spacing != spacing {
		d.spacing = spacing
		d.init()
		d.Changed("spacing", spacing)
	}
}

func (d *Dimension) Validate() error {
	if d.size < 2 {
		return fmt.Errorf("%w: size %d < 2", ErrInvalidGrid, d.size)
	}
	if !(d.min < d.max) {
		return fmt.Errorf("%w: min %g must be below max %g", ErrInvalidGrid, d.min, d.max)
	}
	if !(d.min > 0) {
		return fmt.Errorf("%w: min must be positive, got %g", ErrInvalidGrid, d.min)
	}
	return nil
}

// init leaves the previous data in place when the bounds are invalid.
func (d *Dimension) init() {
	if d.Validate() != nil {
		return
	}

	switch d.spacing {
	case Log:
		exps := utl.LinSpace(math.Log10(d.min), math.Log10(d.max), d.size)
		d.data = make([]float64, d.size)
		for i, x := range exps {
			d.data[i] = math.Pow(10, x)
		}
		// Pin the ends against round-off from the exponentiation.
		d.data[0] = d.min
		d.data[d.size-1] = d.max
	default:
		d.data = utl.LinSpace(d.min, d.max, d.size)
	}
}

type record struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Size    int     `json:"size"`
	Spacing Spacing `json:"spacing"`
}

func (d *Dimension) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{Min: d.min, Max: d.max, Size: d.size, Spacing: d.spacing})
}

func (d *Dimension) UnmarshalJSON(b []byte) error {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return fmt.Errorf("decoding dimension: %w", err)
	}
	d.min, d.max, d.size, d.spacing = r.Min, r.Max, r.Size, r.Spacing
	if err := d.Validate(); err != nil {
		return err
	}
	d.init()
	return nil
}

func (d *Dimension) WriteStream(w *stream.Writer) {
	w.Uint8(1)
	w.Float64(d.min)
	w.Float64(d.max)
	w.Int32(int32(d.size))
	w.Int32(int32(d.spacing))
}

func (d *Dimension) ReadStream(r *stream.Reader) error {
	r.Version()
	d.min = r.Float64()
	d.max = r.Float64()
	d.size = int(r.Int32())
	d.spacing = Spacing(r.Int32())
	if err := r.Err(); err != nil {
		return fmt.Errorf("reading dimension: %w", err)
	}
	if err := d.Validate(); err != nil {
		return err
	}
	d.init()
	return nil
}
