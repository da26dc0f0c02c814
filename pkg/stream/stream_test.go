package stream

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Uint8(3)
	w.Bool(true)
	w.Int32(-1024)
	w.Float64(0.65)
	w.String("Source Theory")
	w.Float64s([]float64{0.05, 1, 50})
	if err := w.Err(); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	r := NewReader(&buf)
	if v := r.Version(); v != 3 {
		t.Errorf("expected version 3, got %d", v)
	}
	if !r.Bool() {
		t.Error("expected true")
	}
	if v := r.Int32(); v != -1024 {
		t.Errorf("expected -1024, got %d", v)
	}
	if v := r.Float64(); v != 0.65 {
		t.Errorf("expected 0.65, got %g", v)
	}
	if v := r.String(); v != "Source Theory" {
		t.Errorf("unexpected string %q", v)
	}
	v := r.Float64s()
	if len(v) != 3 || v[0] != 0.05 || v[2] != 50 {
		t.Errorf("unexpected vector %v", v)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("read failed: %v", err)
	}
}

func TestShortRead(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 0, 0}))
	r.Uint8()
	if v := r.Float64(); v != 0 {
		t.Errorf("expected zero value after short read, got %g", v)
	}
	if !errors.Is(r.Err(), ErrShortRead) {
		t.Errorf("expected ErrShortRead, got %v", r.Err())
	}
	// Sticky: later reads keep the first error.
	r.Int32()
	if !errors.Is(r.Err(), ErrShortRead) {
		t.Errorf("expected sticky ErrShortRead, got %v", r.Err())
	}
}

func TestLengthLimit(t *testing.T) {
	huge := []byte{0x7f, 0xff, 0xff, 0xff}

	r := NewReader(bytes.NewReader(huge))
	if s := r.String(); s != "" {
		t.Errorf("expected empty string, got %q", s)
	}
	if !errors.Is(r.Err(), ErrLengthLimit) {
		t.Errorf("expected ErrLengthLimit for string, got %v", r.Err())
	}

	r = NewReader(bytes.NewReader(huge))
	if v := r.Float64s(); v != nil {
		t.Errorf("expected nil vector, got %d values", len(v))
	}
	if !errors.Is(r.Err(), ErrLengthLimit) {
		t.Errorf("expected ErrLengthLimit for vector, got %v", r.Err())
	}
}
