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
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/ctessum/cdf"
)

// Attributes that are set from cube and coordinate fields when
// writing, or that would change the meaning of decoded values if
// they were copied.
var skipAttributes = map[string]bool{
	"standard_name": true, "long_name": true, "units": true, "axis": true,
	"coordinates": true, "bounds": true, "grid_mapping": true, "ancillary_variables": true,
	"_FillValue": true, "missing_value": true, "scale_factor": true, "add_offset": true,
}

// ncfVar is a variable to be written to a NetCDF file.
type ncfVar struct {
	name   string
	dims   []string
	values []float64
	attrs  map[string]interface{}
}

// WriteNetCDF writes cubes to w as a NetCDF file, with their
// dimension and auxiliary coordinates. All values are written as
// double precision. Cubes that share a dimension name must agree on
// its length.
func WriteNetCDF(w cdf.ReaderWriterAt, cubes ...*Cube) error {
	var (
		dims    []string
		lengths []int
		vars    []ncfVar
	)
	dimIndex := make(map[string]int)
	varNames := make(map[string]bool)

	addVar := func(v ncfVar) bool {
		if varNames[v.name] {
			return false
		}
		varNames[v.name] = true
		vars = append(vars, v)
		return true
	}

	for _, c := range cubes {
		shape := c.Shape()
		for i, d := range c.Dims {
			if j, ok := dimIndex[d]; ok {
				if lengths[j] != shape[i] {
					return fmt.Errorf("cubeload: writing netcdf: dimension %s has lengths %d and %d",
						d, lengths[j], shape[i])
				}
				continue
			}
			if shape[i] == 0 {
				return fmt.Errorf("cubeload: writing netcdf: dimension %s has length 0", d)
			}
			dimIndex[d] = len(dims)
			dims = append(dims, d)
			lengths = append(lengths, shape[i])
		}
	}

	for _, c := range cubes {
		for i, dc := range c.DimCoords {
			if dc != nil {
				addVar(coordVar(c.Dims[i], []string{c.Dims[i]}, dc))
			}
		}
		var coordNames []string
		for _, ac := range c.AuxCoords {
			name := firstName(ac.VarName, ac.Name())
			cdims := make([]string, len(ac.Dims))
			for i, d := range ac.Dims {
				cdims[i] = c.Dims[d]
			}
			addVar(coordVar(name, cdims, ac.Coord))
			coordNames = append(coordNames, name)
		}

		data, err := c.Data()
		if err != nil {
			return err
		}
		v := ncfVar{
			name:   firstName(c.VarName, c.Name()),
			dims:   c.Dims,
			values: data.Elements,
			attrs:  copyAttributes(c.Attributes),
		}
		setStringAttr(v.attrs, "standard_name", c.StandardName)
		setStringAttr(v.attrs, "long_name", c.LongName)
		setStringAttr(v.attrs, "units", c.Units)
		setStringAttr(v.attrs, "coordinates", strings.Join(coordNames, " "))
		if !addVar(v) {
			return fmt.Errorf("cubeload: writing netcdf: more than one variable named %s", v.name)
		}
	}

	h := cdf.NewHeader(dims, lengths)
	for _, v := range vars {
		h.AddVariable(v.name, v.dims, []float64{})
		keys := make([]string, 0, len(v.attrs))
		for k := range v.attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.AddAttribute(v.name, k, v.attrs[k])
		}
	}
	h.Define()
	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("cubeload: writing netcdf: %v", err)
	}
	for _, v := range vars {
		if len(v.values) == 0 {
			continue
		}
		if err := writeNCFVariable(f, v.name, nil, nil, v.values); err != nil {
			return fmt.Errorf("cubeload: writing netcdf variable %s: %v", v.name, err)
		}
	}
	return nil
}

// writeNCFVariable writes vals to variable v of f, starting at index
// begin and ending no later than index end. Writers report io.EOF when
// they reach end, which is not an error if all of vals were written.
func writeNCFVariable(f *cdf.File, v string, begin, end []int, vals interface{}) error {
	n, err := f.Writer(v, begin, end).Write(vals)
	if err == io.EOF && n == reflect.ValueOf(vals).Len() {
		return nil
	}
	return err
}

func coordVar(name string, dims []string, c *Coord) ncfVar {
	v := ncfVar{
		name:   name,
		dims:   dims,
		values: c.Points,
		attrs:  copyAttributes(c.Attributes),
	}
	setStringAttr(v.attrs, "standard_name", c.StandardName)
	setStringAttr(v.attrs, "long_name", c.LongName)
	setStringAttr(v.attrs, "units", c.Units)
	setStringAttr(v.attrs, "axis", strings.ToUpper(c.Axis.String()))
	return v
}

// copyAttributes returns the attributes in a that can be stored in a
// NetCDF file and are not set from other fields.
func copyAttributes(a map[string]interface{}) map[string]interface{} {
	o := make(map[string]interface{}, len(a))
	for k, v := range a {
		if skipAttributes[k] {
			continue
		}
		switch v.(type) {
		case string, []uint8, []int16, []int32, []float32, []float64:
			o[k] = v
		}
	}
	return o
}

func setStringAttr(a map[string]interface{}, name, value string) {
	if value != "" {
		a[name] = value
	}
}
