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
	"math"
	"os"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// A Decoder lists the cubes stored in a file. The data of the
// returned cubes may be read lazily, when Cube.Data is called.
type Decoder interface {
	Decode(path string) ([]*Cube, error)
}

// NetCDF is a Decoder for NetCDF classic (CDF-1 and CDF-2) files that
// follow the CF conventions.
type NetCDF struct{}

// Variable attributes that refer to other variables, which are
// therefore not read as cubes themselves.
var referenceAttributes = []string{"coordinates", "bounds", "grid_mapping", "ancillary_variables"}

// Decode returns one cube for each data variable in the file at path.
// Coordinates are read immediately; data are read when requested,
// from a separately opened file.
func (NetCDF) Decode(path string) ([]*Cube, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("cubeload: opening netcdf file %s: %v", path, err)
	}
	r := ncfReader{f: ff, size: fi.Size()}

	referenced := make(map[string]bool)
	for _, v := range ff.Header.Variables() {
		for _, a := range referenceAttributes {
			for _, name := range strings.Fields(r.stringAttribute(v, a)) {
				referenced[name] = true
			}
		}
	}

	var cubes []*Cube
	for _, v := range ff.Header.Variables() {
		if referenced[v] || r.isCoordinateVariable(v) || !r.isNumeric(v) {
			continue
		}
		c, err := r.cube(path, v)
		if err != nil {
			return nil, fmt.Errorf("cubeload: reading %s from %s: %v", v, path, err)
		}
		cubes = append(cubes, c)
	}
	return cubes, nil
}

// ncfReader reads variables from an open NetCDF file.
type ncfReader struct {
	f    *cdf.File
	size int64
}

// isCoordinateVariable returns whether v is a one-dimensional
// variable with the same name as its dimension.
func (r ncfReader) isCoordinateVariable(v string) bool {
	dims := r.f.Header.Dimensions(v)
	return len(dims) == 1 && dims[0] == v
}

func (r ncfReader) isNumeric(v string) bool {
	_, isChar := r.f.Header.ZeroValue(v, 0).(string)
	return !isChar
}

// lengths returns the dimension lengths of v, with the length of
// the record dimension calculated from the file size.
func (r ncfReader) lengths(v string) []int {
	l := append([]int(nil), r.f.Header.Lengths(v)...)
	if r.f.Header.IsRecordVariable(v) {
		l[0] = int(r.f.Header.NumRecs(r.size))
	}
	return l
}

// cube creates a cube for data variable v, whose data will be
// read from the file at path.
func (r ncfReader) cube(path, v string) (*Cube, error) {
	h := r.f.Header
	dims := h.Dimensions(v)
	c := &Cube{
		VarName:      v,
		StandardName: r.stringAttribute(v, "standard_name"),
		LongName:     r.stringAttribute(v, "long_name"),
		Units:        r.stringAttribute(v, "units"),
		Attributes:   r.attributes(v),
		Dims:         dims,
		DimCoords:    make([]*Coord, len(dims)),
		shape:        r.lengths(v),
	}
	for i, d := range dims {
		if !r.isCoordinateVariable(d) {
			continue
		}
		coord, err := r.coord(d)
		if err != nil {
			return nil, err
		}
		c.DimCoords[i] = coord
	}
	for _, name := range strings.Fields(r.stringAttribute(v, "coordinates")) {
		ac, ok, err := r.auxCoord(name, dims)
		if err != nil {
			return nil, err
		}
		if ok {
			c.AuxCoords = append(c.AuxCoords, ac)
		}
	}
	shape := c.Shape()
	c.read = func() (*sparse.DenseArray, error) {
		return readNCFVariable(path, v, shape)
	}
	return c, nil
}

// coord reads variable v as a coordinate.
func (r ncfReader) coord(v string) (*Coord, error) {
	if !r.isNumeric(v) {
		return nil, fmt.Errorf("coordinate variable %s is not numeric", v)
	}
	points, err := r.values(v)
	if err != nil {
		return nil, err
	}
	c := &Coord{
		VarName:      v,
		StandardName: r.stringAttribute(v, "standard_name"),
		LongName:     r.stringAttribute(v, "long_name"),
		Units:        r.stringAttribute(v, "units"),
		Points:       points,
		Attributes:   r.attributes(v),
	}
	c.Axis = guessAxis(c)
	return c, nil
}

// auxCoord reads variable v as an auxiliary coordinate of a data
// variable with the given dimensions. It returns false if v does not
// exist or spans a dimension that the data variable does not.
func (r ncfReader) auxCoord(v string, dataDims []string) (AuxCoord, bool, error) {
	vDims := r.f.Header.Dimensions(v)
	if vDims == nil {
		return AuxCoord{}, false, nil
	}
	ac := AuxCoord{Dims: make([]int, len(vDims))}
	for i, d := range vDims {
		ac.Dims[i] = indexOf(dataDims, d)
		if ac.Dims[i] < 0 {
			return AuxCoord{}, false, nil
		}
	}
	coord, err := r.coord(v)
	if err != nil {
		return AuxCoord{}, false, err
	}
	ac.Coord = coord
	return ac, true, nil
}

// values reads all values of variable v, decoded following the CF
// conventions.
func (r ncfReader) values(v string) ([]float64, error) {
	lengths := r.lengths(v)
	n := 1
	for _, l := range lengths {
		n *= l
	}
	if n == 0 {
		return []float64{}, nil
	}
	var end []int
	if r.f.Header.IsRecordVariable(v) {
		end = make([]int, len(lengths))
		for i, l := range lengths {
			end[i] = l - 1
		}
	}
	rd := r.f.Reader(v, nil, end)
	buf := rd.Zero(n)
	if _, err := rd.Read(buf); err != nil {
		return nil, fmt.Errorf("reading netcdf variable %s: %v", v, err)
	}
	out, fill := toFloat64(buf, r.f.Header.FillValue(v))
	scale, hasScale := r.numberAttribute(v, "scale_factor")
	offset, hasOffset := r.numberAttribute(v, "add_offset")
	for i, x := range out {
		switch {
		case fill != nil && fill(i):
			out[i] = math.NaN()
		case hasScale || hasOffset:
			if !hasScale {
				scale = 1
			}
			out[i] = x*scale + offset
		}
	}
	return out, nil
}

// toFloat64 converts the values read from a NetCDF file to float64.
// The returned function reports whether the value at an index
// equals fillValue.
func toFloat64(buf, fillValue interface{}) ([]float64, func(int) bool) {
	switch b := buf.(type) {
	case []float64:
		out := append([]float64(nil), b...)
		fv, ok := fillValue.(float64)
		return out, func(i int) bool { return ok && b[i] == fv }
	case []float32:
		out := make([]float64, len(b))
		for i, x := range b {
			out[i] = float64(x)
		}
		fv, ok := fillValue.(float32)
		return out, func(i int) bool { return ok && b[i] == fv }
	case []int32:
		out := make([]float64, len(b))
		for i, x := range b {
			out[i] = float64(x)
		}
		fv, ok := fillValue.(int32)
		return out, func(i int) bool { return ok && b[i] == fv }
	case []int16:
		out := make([]float64, len(b))
		for i, x := range b {
			out[i] = float64(x)
		}
		fv, ok := fillValue.(int16)
		return out, func(i int) bool { return ok && b[i] == fv }
	case []uint8:
		out := make([]float64, len(b))
		for i, x := range b {
			out[i] = float64(int8(x))
		}
		var fv int8
		ok := false
		switch f := fillValue.(type) {
		case int8:
			fv, ok = f, true
		case uint8:
			fv, ok = int8(f), true
		}
		return out, func(i int) bool { return ok && int8(b[i]) == fv }
	}
	panic(fmt.Errorf("cubeload: unsupported netcdf value type %T", buf))
}

// stringAttribute returns the value of string attribute a of
// variable v, or "" if it doesn't exist.
func (r ncfReader) stringAttribute(v, a string) string {
	s, ok := r.f.Header.GetAttribute(v, a).(string)
	if !ok {
		return ""
	}
	return strings.TrimRight(s, "\x00")
}

// numberAttribute returns the value of single-valued numeric
// attribute a of variable v.
func (r ncfReader) numberAttribute(v, a string) (float64, bool) {
	x, ok := attributeScalar(r.f.Header.GetAttribute(v, a)).(float64)
	return x, ok
}

// attributes returns a copy of all the attributes of variable v.
func (r ncfReader) attributes(v string) map[string]interface{} {
	h := r.f.Header
	names := h.Attributes(v)
	o := make(map[string]interface{}, len(names))
	for _, a := range names {
		o[a] = h.GetAttribute(v, a)
	}
	return o
}

// readNCFVariable opens the NetCDF file at path and reads variable v,
// which should have the given shape.
func readNCFVariable(path, v string, shape []int) (*sparse.DenseArray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("cubeload: opening netcdf file %s: %v", path, err)
	}
	r := ncfReader{f: ff, size: fi.Size()}
	if l := r.lengths(v); !equalInts(l, shape) {
		return nil, fmt.Errorf("cubeload: %s: variable %s has shape %v, want %v", path, v, l, shape)
	}
	vals, err := r.values(v)
	if err != nil {
		return nil, fmt.Errorf("cubeload: %s: %v", path, err)
	}
	data := sparse.ZerosDense(shape...)
	copy(data.Elements, vals)
	return data, nil
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
