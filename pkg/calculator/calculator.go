// Package calculator drives the iterative computation of strain-compatible
// soil properties for a layered column under an input motion.
package calculator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edp1096/toy-strata/internal/logging"
	"github.com/edp1096/toy-strata/pkg/event"
	"github.com/edp1096/toy-strata/pkg/motion"
	"github.com/edp1096/toy-strata/pkg/soil"
	"github.com/edp1096/toy-strata/pkg/stream"
)

var (
	ErrDegenerateStrain = errors.New("calculator: peak strain is not positive")
	ErrParameterBounds  = errors.New("calculator: parameter out of bounds")
	ErrCanceled         = errors.New("calculator: calculation canceled")
	ErrUnknownKind      = errors.New("calculator: unknown calculator kind")
)

type Kind int

const (
	EquivalentLinearKind Kind = iota + 1
	LinearElasticKind
)

func (k Kind) String() string {
	switch k {
	case EquivalentLinearKind:
		return "EquivalentLinearCalculator"
	case LinearElasticKind:
		return "LinearElasticCalculator"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if k != EquivalentLinearKind && k != LinearElasticKind {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "EquivalentLinearCalculator", "equivalent_linear":
		*k = EquivalentLinearKind
	case "LinearElasticCalculator", "linear_elastic":
		*k = LinearElasticKind
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, b)
	}
	return nil
}

// Propagator computes wave propagation through the column for the current
// complex shear moduli, indexed [sublayer][frequency].
type Propagator interface {
	StrainTransferFunctions(ctx context.Context, profile *soil.Profile, shearMod [][]complex128, freq []float64) ([][]complex128, error)
	SurfaceAccelTf(ctx context.Context, profile *soil.Profile, shearMod [][]complex128, freq []float64) ([]complex128, error)
}

type Calculator interface {
	Kind() Kind
	Run(ctx context.Context, m motion.Motion, profile *soil.Profile) (*Result, error)
	SetPropagator(p Propagator)
	SetLogger(logger *slog.Logger, decisions *logging.DecisionLogger)
	Subscribe(l event.Listener) func()
	MaxIterations() int
	ErrorTolerance() float64

	json.Marshaler
	json.Unmarshaler
	WriteStream(w *stream.Writer)
	ReadStream(r *stream.Reader) error
}

var (
	_ Calculator = (*EquivalentLinear)(nil)
	_ Calculator = (*LinearElastic)(nil)
)

func New(kind Kind) (Calculator, error) {
	switch kind {
	case EquivalentLinearKind:
		return NewEquivalentLinear(), nil
	case LinearElasticKind:
		return NewLinearElastic(), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
}

// Unmarshal decodes a keyed record, choosing the kind from its "type" field.
func Unmarshal(b []byte) (Calculator, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, fmt.Errorf("decoding calculator type: %w", err)
	}
	c, err := New(head.Type)
	if err != nil {
		return nil, err
	}
	if err := c.UnmarshalJSON(b); err != nil {
		return nil, err
	}
	return c, nil
}

// Write prefixes the calculator stream with its kind.
func Write(w *stream.Writer, c Calculator) {
	w.Uint8(uint8(c.Kind()))
	c.WriteStream(w)
}

func Read(r *stream.Reader) (Calculator, error) {
	kind := Kind(r.Uint8())
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading calculator kind: %w", err)
	}
	c, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := c.ReadStream(r); err != nil {
		return nil, err
	}
	return c, nil
}
