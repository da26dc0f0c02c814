// Package motion provides input motions described by Fourier amplitude
// spectra: a stochastic point-source model and user-specified spectra.
package motion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edp1096/toy-strata/pkg/event"
	"github.com/edp1096/toy-strata/pkg/stream"
)

var ErrUnknownKind = errors.New("motion: unknown motion kind")

type Kind int

const (
	SourceTheoryKind Kind = iota + 1
	SpecifiedKind
)

func (k Kind) String() string {
	switch k {
	case SourceTheoryKind:
		return "SourceTheoryRvtMotion"
	case SpecifiedKind:
		return "RvtMotion"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if k != SourceTheoryKind && k != SpecifiedKind {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "SourceTheoryRvtMotion", "source_theory":
		*k = SourceTheoryKind
	case "RvtMotion", "specified":
		*k = SpecifiedKind
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, b)
	}
	return nil
}

// Motion is the capability set shared by all motion kinds.
type Motion interface {
	Kind() Kind
	Name() string
	Freq() []float64
	FourierAcc() []float64
	Duration() float64
	PGA() float64
	PGV() float64
	CalcMax(fas []float64) float64
	CalcMaxResponse(tf []complex128) float64
	CalcMaxStrain(strainTf []complex128) float64
	Calculate(ctx context.Context) error
	Subscribe(l event.Listener) func()
	SetLogger(logger *slog.Logger)

	json.Marshaler
	json.Unmarshaler
	WriteStream(w *stream.Writer)
	ReadStream(r *stream.Reader) error
}

var (
	_ Motion = (*SourceTheoryRvtMotion)(nil)
	_ Motion = (*SpecifiedRvtMotion)(nil)
)

// New returns a motion of the given kind with default parameters.
func New(kind Kind) (Motion, error) {
	switch kind {
	case SourceTheoryKind:
		return NewSourceTheoryRvtMotion(), nil
	case SpecifiedKind:
		return NewSpecifiedRvtMotion(), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
}

// Unmarshal decodes a keyed record, choosing the kind from its "type" field.
func Unmarshal(b []byte) (Motion, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, fmt.Errorf("decoding motion type: %w", err)
	}
	m, err := New(head.Type)
	if err != nil {
		return nil, err
	}
	if err := m.UnmarshalJSON(b); err != nil {
		return nil, err
	}
	return m, nil
}

// Write prefixes the motion stream with its kind.
func Write(w *stream.Writer, m Motion) {
	w.Uint8(uint8(m.Kind()))
	m.WriteStream(w)
}

func Read(r *stream.Reader) (Motion, error) {
	kind := Kind(r.Uint8())
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading motion kind: %w", err)
	}
	m, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := m.ReadStream(r); err != nil {
		return nil, err
	}
	return m, nil
}
