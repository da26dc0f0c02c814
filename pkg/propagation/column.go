package propagation

import (
	"fmt"
	"math/cmplx"

	"github.com/edp1096/toy-strata/internal/consts"
	"github.com/edp1096/toy-strata/pkg/matrix"
	"github.com/edp1096/toy-strata/pkg/soil"
)

// Column is the assembled soil column: node i is the top of sublayer i-1 and
// the last node sits on the half-space.
type Column struct {
	layers    []*LayerElement
	halfSpace *HalfSpace
	elements  []Element
	matrix    *matrix.SystemMatrix
}

func NewColumn(profile *soil.Profile, shearMod [][]complex128, nFreq int) (*Column, error) {
	n := profile.SubLayerCount()
	if len(shearMod) != n {
		return nil, fmt.Errorf("shear modulus rows: expected %d, got %d", n, len(shearMod))
	}

	c := &Column{}
	for i, sl := range profile.SubLayers() {
		if len(shearMod[i]) != nFreq {
			return nil, fmt.Errorf("sublayer %d: expected %d shear moduli, got %d", i, nFreq, len(shearMod[i]))
		}
		layer := &LayerElement{
			Name:      fmt.Sprintf("L%d", i+1),
			Nodes:     []int{i + 1, i + 2},
			Thickness: sl.Thickness(),
			Density:   sl.Density(),
			ShearMod:  shearMod[i],
		}
		c.layers = append(c.layers, layer)
		c.elements = append(c.elements, layer)
	}

	rock := profile.Bedrock()
	rockMod := soil.CalcCompShearMod(rock.Density()*rock.ShearVel*rock.ShearVel, rock.Damping/100)
	c.halfSpace = &HalfSpace{
		Name:         "HS",
		Nodes:        []int{n + 1},
		Impedance:    cmplx.Sqrt(complex(rock.Density(), 0) * rockMod),
		OutcropAccel: consts.GRAVITY,
	}
	c.elements = append(c.elements, c.halfSpace)

	mat, err := matrix.NewSystemMatrix(n + 1)
	if err != nil {
		return nil, err
	}
	mat.SetupElements()
	c.matrix = mat

	return c, nil
}

func (c *Column) Stamp(status *Status) error {
	for _, elem := range c.elements {
		if err := elem.Stamp(c.matrix, status); err != nil {
			return fmt.Errorf("stamping element %s: %w", elem.GetName(), err)
		}
	}
	return nil
}

// Solve assembles and solves the column at one frequency.
func (c *Column) Solve(status *Status) error {
	c.matrix.Clear()
	if err := c.Stamp(status); err != nil {
		return err
	}
	return c.matrix.Solve()
}

// Displacement at node i (1-based), m per 1 g of outcrop acceleration.
func (c *Column) Displacement(i int) complex128 {
	return c.matrix.Solution(i)
}

// Strain in sublayer i (0-based), averaged over its thickness.
func (c *Column) Strain(i int) complex128 {
	l := c.layers[i]
	return (c.Displacement(l.Nodes[0]) - c.Displacement(l.Nodes[1])) / complex(l.Thickness, 0)
}

func (c *Column) HalfSpace() *HalfSpace { return c.halfSpace }

func (c *Column) Destroy() {
	if c.matrix != nil {
		c.matrix.Destroy()
	}
}
