package propagation

import (
	"math/cmplx"

	"github.com/edp1096/toy-strata/pkg/matrix"
)

// Status carries the frequency being assembled.
type Status struct {
	Index     int // into the frequency grid
	Frequency float64
	Omega     float64
}

type Element interface {
	GetName() string
	GetNodes() []int
	Stamp(matrix matrix.ElementMatrix, status *Status) error
}

// LayerElement is a viscoelastic shear layer between two nodes. It stamps
// the exact dynamic stiffness of a continuous layer, so a single element
// per sublayer is sufficient at any frequency.
type LayerElement struct {
	Name      string
	Nodes     []int
	Thickness float64      // m
	Density   float64      // Mg/m^3
	ShearMod  []complex128 // kPa, one per frequency
}

var _ Element = (*LayerElement)(nil)

func (l *LayerElement) GetName() string { return l.Name }
func (l *LayerElement) GetNodes() []int { return l.Nodes }

// Stiffness returns the diagonal and off-diagonal dynamic stiffness terms.
func (l *LayerElement) Stiffness(status *Status) (kii, kij complex128) {
	g := l.ShearMod[status.Index]
	h := complex(l.Thickness, 0)
	rho := complex(l.Density, 0)
	omega := complex(status.Omega, 0)

	kh := omega * cmplx.Sqrt(rho/g) * h
	if cmplx.Abs(kh) < 1e-6 {
		// Series limit: static stiffness with consistent mass.
		kii = g/h - omega*omega*rho*h/3
		kij = -g/h - omega*omega*rho*h/6
		return kii, kij
	}

	factor := g * kh / (h * cmplx.Sin(kh))
	return factor * cmplx.Cos(kh), -factor
}

func (l *LayerElement) Stamp(matrix matrix.ElementMatrix, status *Status) error {
	n1, n2 := l.Nodes[0], l.Nodes[1]
	kii, kij := l.Stiffness(status)

	matrix.AddComplexElement(n1, n1, kii)
	matrix.AddComplexElement(n1, n2, kij)
	matrix.AddComplexElement(n2, n1, kij)
	matrix.AddComplexElement(n2, n2, kii)
	return nil
}

// HalfSpace is the transmitting boundary at the base of the column. It adds
// the dashpot iωZ and the force of an outcrop acceleration OutcropAccel
// (m/s^2), where Z is the complex rock impedance.
type HalfSpace struct {
	Name         string
	Nodes        []int
	Impedance    complex128
	OutcropAccel float64
}

var _ Element = (*HalfSpace)(nil)

func (hs *HalfSpace) GetName() string { return hs.Name }
func (hs *HalfSpace) GetNodes() []int { return hs.Nodes }

func (hs *HalfSpace) Stamp(matrix matrix.ElementMatrix, status *Status) error {
	n := hs.Nodes[0]
	dashpot := complex(0, status.Omega) * hs.Impedance

	matrix.AddComplexElement(n, n, dashpot)
	matrix.AddComplexRHS(n, dashpot*hs.OutcropDisp(status))
	return nil
}

// OutcropDisp is the outcrop displacement for the configured acceleration.
func (hs *HalfSpace) OutcropDisp(status *Status) complex128 {
	return complex(-hs.OutcropAccel/(status.Omega*status.Omega), 0)
}
