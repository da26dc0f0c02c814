// Package stream implements the versioned sequential binary format used to
// persist motions and calculators. Values are big-endian and order-significant;
// every object begins with a one-byte version tag.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var ErrShortRead = errors.New("stream: unexpected end of data")

// ErrLengthLimit is set when a length prefix exceeds MaxLength.
var ErrLengthLimit = errors.New("stream: length prefix exceeds limit")

// MaxLength bounds the element count of a single string or vector.
const MaxLength = 1 << 24

// Writer records the first error and ignores every write after it.
type Writer struct {
	w   io.Writer
	buf [8]byte
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (s *Writer) Err() error { return s.err }

func (s *Writer) write(p []byte) {
	if s.err != nil {
		return
	}
	if _, err := s.w.Write(p); err != nil {
		s.err = fmt.Errorf("stream write: %w", err)
	}
}

func (s *Writer) Uint8(v uint8) {
	s.buf[0] = v
	s.write(s.buf[:1])
}

func (s *Writer) Bool(v bool) {
	if v {
		s.Uint8(1)
	} else {
		s.Uint8(0)
	}
}

func (s *Writer) Int32(v int32) {
	binary.BigEndian.PutUint32(s.buf[:4], uint32(v))
	s.write(s.buf[:4])
}

func (s *Writer) Float64(v float64) {
	binary.BigEndian.PutUint64(s.buf[:8], math.Float64bits(v))
	s.write(s.buf[:8])
}

func (s *Writer) String(v string) {
	s.Int32(int32(len(v)))
	s.write([]byte(v))
}

// Float64s writes a length-prefixed vector.
func (s *Writer) Float64s(v []float64) {
	s.Int32(int32(len(v)))
	for _, x := range v {
		s.Float64(x)
	}
}

// Reader mirrors Writer. Once an error occurs every read returns the zero value.
type Reader struct {
	r   io.Reader
	buf [8]byte
	err error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (s *Reader) Err() error { return s.err }

func (s *Reader) read(n int) []byte {
	if s.err != nil {
		for i := range s.buf {
			s.buf[i] = 0
		}
		return s.buf[:n]
	}
	if _, err := io.ReadFull(s.r, s.buf[:n]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.err = ErrShortRead
		} else {
			s.err = fmt.Errorf("stream read: %w", err)
		}
		for i := range s.buf {
			s.buf[i] = 0
		}
	}
	return s.buf[:n]
}

func (s *Reader) Uint8() uint8 {
	return s.read(1)[0]
}

func (s *Reader) Bool() bool {
	return s.Uint8() != 0
}

func (s *Reader) Int32() int32 {
	return int32(binary.BigEndian.Uint32(s.read(4)))
}

func (s *Reader) Float64() float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(s.read(8)))
}

func (s *Reader) String() string {
	n := s.Int32()
	if s.err != nil {
		return ""
	}
	if n < 0 {
		s.err = fmt.Errorf("stream read: negative string length %d", n)
		return ""
	}
	if n > MaxLength {
		s.err = fmt.Errorf("%w: string length %d", ErrLengthLimit, n)
		return ""
	}
	p := make([]byte, n)
	if _, err := io.ReadFull(s.r, p); err != nil {
		s.err = ErrShortRead
		return ""
	}
	return string(p)
}

func (s *Reader) Float64s() []float64 {
	n := s.Int32()
	if s.err != nil {
		return nil
	}
	if n < 0 {
		s.err = fmt.Errorf("stream read: negative vector length %d", n)
		return nil
	}
	if n > MaxLength {
		s.err = fmt.Errorf("%w: vector length %d", ErrLengthLimit, n)
		return nil
	}
	v := make([]float64, n)
	for i := range v {
		v[i] = s.Float64()
	}
	if s.err != nil {
		return nil
	}
	return v
}

// Version reads the leading version tag. The tag is consumed but does not
// select a layout; all versions written so far share one field order.
func (s *Reader) Version() uint8 {
	return s.Uint8()
}
