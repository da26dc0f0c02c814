package matrix

import (
	"fmt"

	"github.com/edp1096/sparse"
)

// SystemMatrix is a 1-based complex sparse system with separated real and
// imaginary right-hand side vectors.
type SystemMatrix struct {
	Size         int
	matrix       *sparse.Matrix
	rhs          []float64
	rhsImag      []float64
	solution     []float64
	solutionImag []float64
	config       *sparse.Configuration
}

func NewSystemMatrix(size int) (*SystemMatrix, error) {
	if size <= 0 {
		return nil, fmt.Errorf("matrix size must be positive, got %d", size)
	}

	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 true,
		SeparatedComplexVectors: true,
		Expandable:              true,
		Translate:               true,
		ModifiedNodal:           true,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("creating sparse matrix: %w", err)
	}

	return &SystemMatrix{
		Size:         size,
		matrix:       mat,
		rhs:          make([]float64, size+1), // 1-based indexing
		rhsImag:      make([]float64, size+1),
		solution:     make([]float64, size+1),
		solutionImag: make([]float64, size+1),
		config:       config,
	}, nil
}

// SetupElements allocates the tridiagonal band so the fill pattern is
// fixed before the first factorization.
func (m *SystemMatrix) SetupElements() {
	for i := 1; i <= m.Size; i++ {
		m.matrix.GetElement(int64(i), int64(i))
		if i > 1 {
			m.matrix.GetElement(int64(i), int64(i-1))
			m.matrix.GetElement(int64(i-1), int64(i))
		}
	}
}

func (m *SystemMatrix) AddComplexElement(i, j int, value complex128) {
	if i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		return
	}

	element := m.matrix.GetElement(int64(i), int64(j))
	element.Real += real(value)
	element.Imag += imag(value)
}

func (m *SystemMatrix) AddComplexRHS(i int, value complex128) {
	if i <= 0 || i > m.Size {
		return
	}
	m.rhs[i] += real(value)
	m.rhsImag[i] += imag(value)
}

func (m *SystemMatrix) Clear() {
	m.matrix.Clear()
	for i := range m.rhs {
		m.rhs[i] = 0
		m.rhsImag[i] = 0
	}
}

func (m *SystemMatrix) Solve() error {
	var err error

	err = m.matrix.Factor()
	if err != nil {
		return fmt.Errorf("matrix factorization failed: %w", err)
	}

	m.solution, m.solutionImag, err = m.matrix.SolveComplex(m.rhs, m.rhsImag)
	if err != nil {
		return fmt.Errorf("matrix solve failed: %w", err)
	}

	return nil
}

func (m *SystemMatrix) Solution(i int) complex128 {
	if i <= 0 || i > m.Size || i >= len(m.solution) {
		return 0
	}
	return complex(m.solution[i], m.solutionImag[i])
}

func (m *SystemMatrix) Destroy() {
	if m.matrix != nil {
		m.matrix.Destroy()
		m.matrix = nil
	}
}
