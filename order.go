/*
Copyright © 2018 the InMAP authors.
This file is part of cubeload.

cubeload is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

cubeload is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with cubeload.  If not, see <http://www.gnu.org/licenses/>.
*/

package cubeload

import (
	"fmt"
	"strings"
)

// Anchor specifies which end of the dimension list reordered
// dimensions are moved to.
type Anchor int

// These are the available anchors.
const (
	AnchorStart Anchor = iota
	AnchorEnd
)

// ProbabilisticCoords are the names of the coordinates that are moved
// to the start of a cube, in this order, by Canonicalize. A name also
// matches coordinates whose names contain it, so "percentile_over"
// matches "percentile_over_realization".
var ProbabilisticCoords = []string{"realization", "percentile_over", "probability"}

// HorizontalAxes are the axis roles whose dimensions are moved to the
// end of a cube, in this order, by Canonicalize.
var HorizontalAxes = []AxisRole{AxisY, AxisX}

// Canonicalize returns a copy of c with its dimensions in canonical
// order: the dimensions named in ProbabilisticCoords first, then the
// other dimensions in their existing order, then the y and x
// dimensions. It returns a *LoadError of kind MissingAxis if c does
// not have exactly one y-axis and one x-axis dimension.
// Canonicalize is idempotent.
func Canonicalize(c *Cube) (*Cube, error) {
	c, err := EnforceCoordinateOrdering(c, ProbabilisticCoords, AnchorStart)
	if err != nil {
		return nil, err
	}
	dims := make([]int, 0, len(HorizontalAxes))
	for _, axis := range HorizontalAxes {
		_, d, err := c.CoordByAxis(axis)
		if err != nil {
			return nil, &LoadError{Kind: MissingAxis, Err: err}
		}
		if len(d) != 1 {
			return nil, &LoadError{Kind: MissingAxis,
				Err: fmt.Errorf("%s-axis coordinate spans %d dimensions", axis, len(d))}
		}
		if containsInt(dims, d[0]) {
			return nil, &LoadError{Kind: MissingAxis,
				Err: fmt.Errorf("%s-axis coordinate shares dimension %d with another axis", axis, d[0])}
		}
		dims = append(dims, d[0])
	}
	return moveDims(c, dims, AnchorEnd)
}

// EnforceCoordinateOrdering returns a copy of c in which the
// dimensions whose coordinates are named in names are moved to the
// start or end of the cube, as specified by anchor, in the order of
// names. The other dimensions keep their relative order.
//
// An exact name match is preferred; otherwise a name matches any
// dimension whose coordinate name contains it. Names that match no
// dimension are ignored, and names that match more than one dimension
// cause a *CoordError.
func EnforceCoordinateOrdering(c *Cube, names []string, anchor Anchor) (*Cube, error) {
	var dims []int
	for _, name := range names {
		d, ok, err := c.dimByName(name)
		if err != nil {
			return nil, err
		}
		if ok && !containsInt(dims, d) {
			dims = append(dims, d)
		}
	}
	return moveDims(c, dims, anchor)
}

// moveDims returns a copy of c with the given dimensions moved,
// in the given order, to the start or end of the dimension list.
func moveDims(c *Cube, dims []int, anchor Anchor) (*Cube, error) {
	rest := make([]int, 0, c.NDim())
	for i := 0; i < c.NDim(); i++ {
		if !containsInt(dims, i) {
			rest = append(rest, i)
		}
	}
	var order []int
	switch anchor {
	case AnchorStart:
		order = append(append(order, dims...), rest...)
	case AnchorEnd:
		order = append(append(order, rest...), dims...)
	default:
		return nil, fmt.Errorf("cubeload: invalid anchor %d", anchor)
	}
	return c.Transpose(order)
}

// dimByName returns the dimension whose coordinate (or, for anonymous
// dimensions, whose dimension name) matches name, and whether there
// was one.
func (c *Cube) dimByName(name string) (int, bool, error) {
	var exact, partial []int
	for i, d := range c.Dims {
		dc := c.DimCoords[i]
		switch {
		case dc != nil && dc.hasName(name), dc == nil && d == name:
			exact = append(exact, i)
		case dc != nil && (strings.Contains(dc.Name(), name) || strings.Contains(dc.VarName, name)),
			dc == nil && strings.Contains(d, name):
			partial = append(partial, i)
		}
	}
	found := exact
	if len(found) == 0 {
		found = partial
	}
	switch len(found) {
	case 0:
		return -1, false, nil
	case 1:
		return found[0], true, nil
	default:
		return -1, false, &CoordError{Name: name, Found: len(found)}
	}
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
