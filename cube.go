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

// Package cubeload loads gridded atmospheric data into labeled
// N-dimensional arrays ("cubes") and puts their dimensions into a
// canonical order: probabilistic coordinates first, then any other
// dimensions, then the horizontal y and x dimensions.
package cubeload

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Coord holds the values of a coordinate along with its metadata.
type Coord struct {
	VarName      string
	StandardName string
	LongName     string
	Units        string

	// Axis is the spatial or temporal role of the coordinate.
	Axis AxisRole

	// Points holds the coordinate values in row-major order over the
	// dimensions the coordinate spans.
	Points []float64

	Attributes map[string]interface{}
}

// NewCoord creates a coordinate with the given variable name and
// points. Its axis role is guessed from its name.
func NewCoord(varName string, points ...float64) *Coord {
	c := &Coord{VarName: varName, Points: points}
	c.Axis = guessAxis(c)
	return c
}

// Name returns the standard name of the coordinate if it has one,
// otherwise its long name or variable name.
func (c *Coord) Name() string {
	return firstName(c.StandardName, c.LongName, c.VarName)
}

// hasName returns whether any of the names of c equal name.
func (c *Coord) hasName(name string) bool {
	return name != "" && (name == c.Name() || name == c.VarName ||
		name == c.StandardName || name == c.LongName)
}

// Range returns the minimum and maximum points of the coordinate.
// They are NaN if the coordinate has no points.
func (c *Coord) Range() (min, max float64) {
	if len(c.Points) == 0 {
		return math.NaN(), math.NaN()
	}
	return floats.Min(c.Points), floats.Max(c.Points)
}

// AuxCoord is a coordinate that is not the dimension coordinate
// of a cube.
type AuxCoord struct {
	*Coord

	// Dims holds the cube dimensions spanned by the coordinate, in the
	// order of the coordinate's own dimensions. It is empty for
	// scalar coordinates.
	Dims []int
}

// Cube is a labeled N-dimensional array.
type Cube struct {
	VarName      string
	StandardName string
	LongName     string
	Units        string
	Attributes   map[string]interface{}

	// Dims holds the names of the array dimensions.
	Dims []string

	// DimCoords holds the coordinate describing each dimension, or
	// nil for dimensions that have no coordinate.
	DimCoords []*Coord

	AuxCoords []AuxCoord

	shape []int
	data  *sparse.DenseArray

	// read returns the data for a cube whose data have
	// not been read yet.
	read func() (*sparse.DenseArray, error)
}

// NewCube creates a cube holding data with the given dimension
// coordinates, one for each dimension of data. A nil coordinate
// creates an anonymous dimension.
func NewCube(varName string, data *sparse.DenseArray, dimCoords ...*Coord) (*Cube, error) {
	if data == nil {
		return nil, fmt.Errorf("cubeload: cube %s has no data", varName)
	}
	if len(dimCoords) != len(data.Shape) {
		return nil, fmt.Errorf("cubeload: cube %s has %d dimensions but %d coordinates",
			varName, len(data.Shape), len(dimCoords))
	}
	c := &Cube{
		VarName:    varName,
		Attributes: make(map[string]interface{}),
		Dims:       make([]string, len(dimCoords)),
		DimCoords:  dimCoords,
		shape:      append([]int(nil), data.Shape...),
		data:       data,
	}
	for i, dc := range dimCoords {
		if dc == nil {
			c.Dims[i] = fmt.Sprintf("dim%d", i)
			continue
		}
		if len(dc.Points) != data.Shape[i] {
			return nil, fmt.Errorf("cubeload: coordinate %s has %d points but dimension %d has length %d",
				dc.Name(), len(dc.Points), i, data.Shape[i])
		}
		c.Dims[i] = firstName(dc.VarName, dc.Name())
	}
	return c, nil
}

// Name returns the standard name of the cube if it has one,
// otherwise its long name or variable name.
func (c *Cube) Name() string {
	return firstName(c.StandardName, c.LongName, c.VarName)
}

func (c *Cube) hasName(name string) bool {
	return name != "" && (name == c.Name() || name == c.VarName ||
		name == c.StandardName || name == c.LongName)
}

// Shape returns the lengths of the cube dimensions.
func (c *Cube) Shape() []int { return append([]int(nil), c.shape...) }

// NDim returns the number of dimensions of the cube.
func (c *Cube) NDim() int { return len(c.shape) }

// DimNames returns the name of each dimension: the name of its
// coordinate or, for anonymous dimensions, the dimension name.
func (c *Cube) DimNames() []string {
	names := make([]string, len(c.Dims))
	for i, d := range c.Dims {
		if c.DimCoords[i] != nil {
			names[i] = c.DimCoords[i].Name()
		} else {
			names[i] = d
		}
	}
	return names
}

// Data returns the values of the cube, reading them first if
// necessary.
func (c *Cube) Data() (*sparse.DenseArray, error) {
	if c.data != nil {
		return c.data, nil
	}
	d, err := c.load()
	if err != nil {
		return nil, err
	}
	c.data = d
	c.read = nil
	return d, nil
}

// load returns the data of c without keeping them.
func (c *Cube) load() (*sparse.DenseArray, error) {
	if c.data != nil {
		return c.data, nil
	}
	if c.read == nil {
		return nil, fmt.Errorf("cubeload: cube %s has no data", c.Name())
	}
	d, err := c.read()
	if err != nil {
		return nil, err
	}
	if !equalInts(d.Shape, c.shape) {
		return nil, fmt.Errorf("cubeload: cube %s: read data with shape %v, want %v",
			c.Name(), d.Shape, c.shape)
	}
	return d, nil
}

// Coords returns all coordinates of the cube with the dimensions
// they span, dimension coordinates first.
func (c *Cube) Coords() []AuxCoord {
	var o []AuxCoord
	for i, dc := range c.DimCoords {
		if dc != nil {
			o = append(o, AuxCoord{Coord: dc, Dims: []int{i}})
		}
	}
	return append(o, c.AuxCoords...)
}

// Coord returns the coordinate with the given name and the cube
// dimensions it spans.
func (c *Cube) Coord(name string) (*Coord, []int, error) {
	var found []AuxCoord
	for _, ac := range c.Coords() {
		if ac.hasName(name) {
			found = append(found, ac)
		}
	}
	if len(found) != 1 {
		return nil, nil, &CoordError{Name: name, Found: len(found)}
	}
	return found[0].Coord, append([]int(nil), found[0].Dims...), nil
}

// CoordByAxis returns the coordinate with the given axis role and the
// cube dimensions it spans. If exactly one dimension coordinate has
// the role it is returned; otherwise all coordinates are searched and
// exactly one must have the role.
func (c *Cube) CoordByAxis(axis AxisRole) (*Coord, []int, error) {
	var dimFound, found []AuxCoord
	for _, ac := range c.Coords() {
		if ac.Axis != axis {
			continue
		}
		found = append(found, ac)
		if len(ac.Dims) == 1 && c.DimCoords[ac.Dims[0]] == ac.Coord {
			dimFound = append(dimFound, ac)
		}
	}
	if len(dimFound) == 1 {
		found = dimFound
	}
	if len(found) != 1 {
		return nil, nil, &CoordError{Axis: axis, Found: len(found)}
	}
	return found[0].Coord, append([]int(nil), found[0].Dims...), nil
}

// clone returns a copy of the metadata of c. Coordinates are shared.
func (c *Cube) clone() *Cube {
	o := *c
	o.Attributes = make(map[string]interface{}, len(c.Attributes))
	for k, v := range c.Attributes {
		o.Attributes[k] = v
	}
	o.Dims = append([]string(nil), c.Dims...)
	o.DimCoords = append([]*Coord(nil), c.DimCoords...)
	o.AuxCoords = make([]AuxCoord, len(c.AuxCoords))
	for i, ac := range c.AuxCoords {
		o.AuxCoords[i] = AuxCoord{Coord: ac.Coord, Dims: append([]int(nil), ac.Dims...)}
	}
	o.shape = append([]int(nil), c.shape...)
	return &o
}

// Transpose returns a new cube whose dimension i is dimension order[i]
// of c. c itself is not changed.
func (c *Cube) Transpose(order []int) (*Cube, error) {
	if err := checkPermutation(order, len(c.shape)); err != nil {
		return nil, fmt.Errorf("cubeload: transposing cube %s: %v", c.Name(), err)
	}
	o := c.clone()
	newPos := make([]int, len(order))
	for i, old := range order {
		o.Dims[i] = c.Dims[old]
		o.DimCoords[i] = c.DimCoords[old]
		o.shape[i] = c.shape[old]
		newPos[old] = i
	}
	for i := range o.AuxCoords {
		for j, d := range o.AuxCoords[i].Dims {
			o.AuxCoords[i].Dims[j] = newPos[d]
		}
	}
	if isIdentity(order) {
		return o, nil
	}
	if c.data != nil {
		o.data = transposeDense(c.data, order)
		return o, nil
	}
	o.read = func() (*sparse.DenseArray, error) {
		d, err := c.load()
		if err != nil {
			return nil, err
		}
		return transposeDense(d, order), nil
	}
	return o, nil
}

// subset returns a new cube holding only the given indices along
// dimension dim.
func (c *Cube) subset(dim int, keep []int) *Cube {
	o := c.clone()
	o.shape[dim] = len(keep)
	if dc := c.DimCoords[dim]; dc != nil {
		nc := *dc
		nc.Points = make([]float64, len(keep))
		for i, k := range keep {
			nc.Points[i] = dc.Points[k]
		}
		o.DimCoords[dim] = &nc
	}
	for i, ac := range c.AuxCoords {
		for j, d := range ac.Dims {
			if d != dim {
				continue
			}
			shape := make([]int, len(ac.Dims))
			for k, dd := range ac.Dims {
				shape[k] = c.shape[dd]
			}
			nc := *ac.Coord
			nc.Points = take(nc.Points, shape, j, keep)
			o.AuxCoords[i].Coord = &nc
		}
	}
	if c.data != nil {
		o.data = takeDense(c.data, dim, keep)
		return o
	}
	o.read = func() (*sparse.DenseArray, error) {
		d, err := c.load()
		if err != nil {
			return nil, err
		}
		return takeDense(d, dim, keep), nil
	}
	return o
}

// strides returns the row-major element strides for shape.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	n := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = n
		n *= shape[i]
	}
	return s
}

// transposeDense returns a copy of a whose dimension i is
// dimension order[i] of a.
func transposeDense(a *sparse.DenseArray, order []int) *sparse.DenseArray {
	shape := make([]int, len(order))
	for i, old := range order {
		shape[i] = a.Shape[old]
	}
	out := sparse.ZerosDense(shape...)
	inStrides := strides(a.Shape)
	step := make([]int, len(order))
	for i, old := range order {
		step[i] = inStrides[old]
	}
	idx := make([]int, len(shape))
	src := 0
	for i := range out.Elements {
		out.Elements[i] = a.Elements[src]
		// Advance the output index like an odometer, tracking the
		// matching offset in the input.
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			src += step[d]
			if idx[d] < shape[d] {
				break
			}
			src -= step[d] * shape[d]
			idx[d] = 0
		}
	}
	return out
}

// take returns the values of the row-major array vals with the given
// shape, keeping only the given indices along dimension dim.
func take(vals []float64, shape []int, dim int, keep []int) []float64 {
	outer := 1
	for _, n := range shape[:dim] {
		outer *= n
	}
	inner := 1
	for _, n := range shape[dim+1:] {
		inner *= n
	}
	out := make([]float64, 0, outer*len(keep)*inner)
	for o := 0; o < outer; o++ {
		for _, k := range keep {
			start := (o*shape[dim] + k) * inner
			out = append(out, vals[start:start+inner]...)
		}
	}
	return out
}

func takeDense(a *sparse.DenseArray, dim int, keep []int) *sparse.DenseArray {
	shape := append([]int(nil), a.Shape...)
	shape[dim] = len(keep)
	out := sparse.ZerosDense(shape...)
	copy(out.Elements, take(a.Elements, a.Shape, dim, keep))
	return out
}

func checkPermutation(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("permutation %v has %d entries for %d dimensions", order, len(order), n)
	}
	seen := make([]bool, n)
	for _, o := range order {
		if o < 0 || o >= n || seen[o] {
			return fmt.Errorf("%v is not a permutation of %d dimensions", order, n)
		}
		seen[o] = true
	}
	return nil
}

func isIdentity(order []int) bool {
	for i, o := range order {
		if i != o {
			return false
		}
	}
	return true
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func firstName(names ...string) string {
	for _, n := range names {
		if n != "" {
			return n
		}
	}
	return "unknown"
}
