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
	"regexp"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/spf13/cast"
)

// A Constraint selects cubes, and optionally parts of cubes, when
// loading.
type Constraint interface {
	// Extract returns the part of c that satisfies the constraint and
	// true, or false if no part of c does. c is not modified.
	Extract(c *Cube) (*Cube, bool)

	// String describes the constraint.
	String() string
}

// predicate is a Constraint that keeps or discards whole cubes.
type predicate struct {
	desc string
	f    func(*Cube) bool
}

func (p predicate) Extract(c *Cube) (*Cube, bool) {
	if p.f(c) {
		return c, true
	}
	return nil, false
}

func (p predicate) String() string { return p.desc }

// Func returns a constraint that selects the cubes for which f
// returns true. desc describes the constraint in error messages.
func Func(desc string, f func(*Cube) bool) Constraint {
	return predicate{desc: desc, f: f}
}

// Name returns a constraint that selects cubes whose name, variable
// name, standard name or long name is name.
func Name(name string) Constraint {
	return predicate{
		desc: fmt.Sprintf("name=%q", name),
		f:    func(c *Cube) bool { return c.hasName(name) },
	}
}

// NamePattern returns a constraint that selects cubes with a name,
// variable name, standard name or long name matching the regular
// expression expr.
func NamePattern(expr string) (Constraint, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("cubeload: name pattern: %v", err)
	}
	return predicate{
		desc: fmt.Sprintf("name~%q", expr),
		f: func(c *Cube) bool {
			for _, n := range []string{c.Name(), c.VarName, c.StandardName, c.LongName} {
				if n != "" && re.MatchString(n) {
					return true
				}
			}
			return false
		},
	}, nil
}

// Attribute returns a constraint that selects cubes that have the
// named attribute with the given value. Numeric attributes are
// compared by their string representation.
func Attribute(name, value string) Constraint {
	return predicate{
		desc: fmt.Sprintf("%s=%q", name, value),
		f: func(c *Cube) bool {
			v, ok := c.Attributes[name]
			if !ok {
				return false
			}
			s, err := cast.ToStringE(attributeScalar(v))
			return err == nil && s == value
		},
	}
}

// Expression returns a constraint that selects cubes for which the
// boolean expression expr is true. The expression can refer to the
// parameters name, var_name, standard_name, long_name, units, ndim,
// and coords (a list of coordinate names, for use with the IN
// operator), as well as to any scalar attribute of the cube, for
// example:
//
//	units == 'K' && ndim >= 3 && 'realization' IN coords
func Expression(expr string) (Constraint, error) {
	e, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("cubeload: constraint expression: %v", err)
	}
	return predicate{
		desc: fmt.Sprintf("expression %q", expr),
		f: func(c *Cube) bool {
			result, err := e.Evaluate(expressionParameters(c))
			if err != nil {
				return false
			}
			b, ok := result.(bool)
			return ok && b
		},
	}, nil
}

// expressionParameters returns the parameters that are available to
// constraint expressions.
func expressionParameters(c *Cube) map[string]interface{} {
	p := make(map[string]interface{}, len(c.Attributes)+7)
	for k, v := range c.Attributes {
		switch s := attributeScalar(v).(type) {
		case string:
			p[k] = s
		case float64:
			p[k] = s
		}
	}
	var coords []interface{}
	for _, ac := range c.Coords() {
		coords = append(coords, ac.Name())
	}
	p["name"] = c.Name()
	p["var_name"] = c.VarName
	p["standard_name"] = c.StandardName
	p["long_name"] = c.LongName
	p["units"] = c.Units
	p["ndim"] = float64(c.NDim())
	p["coords"] = coords
	return p
}

// attributeScalar returns single-element numeric attribute values as
// a float64, strings as themselves, and other values unchanged.
func attributeScalar(v interface{}) interface{} {
	switch a := v.(type) {
	case string:
		return strings.TrimRight(a, "\x00")
	case []float64:
		if len(a) == 1 {
			return a[0]
		}
	case []float32:
		if len(a) == 1 {
			return float64(a[0])
		}
	case []int32:
		if len(a) == 1 {
			return float64(a[0])
		}
	case []int16:
		if len(a) == 1 {
			return float64(a[0])
		}
	case []uint8:
		if len(a) == 1 {
			return float64(a[0])
		}
	}
	return v
}

// coordRange is a Constraint that keeps the points of a coordinate
// that are within a range.
type coordRange struct {
	name     string
	min, max float64
}

// CoordRange returns a constraint that keeps only the points of the
// named coordinate that are within [min, max], subsetting the cube
// along that coordinate's dimension. Cubes without the coordinate or
// without any points in the range are not selected.
func CoordRange(name string, min, max float64) Constraint {
	return coordRange{name: name, min: min, max: max}
}

func (r coordRange) Extract(c *Cube) (*Cube, bool) {
	coord, dims, err := c.Coord(r.name)
	if err != nil {
		return nil, false
	}
	in := func(v float64) bool { return v >= r.min && v <= r.max }
	switch len(dims) {
	case 0:
		if len(coord.Points) == 1 && in(coord.Points[0]) {
			return c, true
		}
		return nil, false
	case 1:
		if c.DimCoords[dims[0]] != coord {
			return nil, false
		}
	default:
		return nil, false
	}
	var keep []int
	for i, v := range coord.Points {
		if in(v) {
			keep = append(keep, i)
		}
	}
	switch len(keep) {
	case 0:
		return nil, false
	case len(coord.Points):
		return c, true
	}
	return c.subset(dims[0], keep), true
}

func (r coordRange) String() string {
	return fmt.Sprintf("%g<=%s<=%g", r.min, r.name, r.max)
}

// all is a Constraint that applies several constraints in turn.
type all []Constraint

// All returns a constraint that applies each of cs in turn. A cube is
// selected only if every constraint selects it.
func All(cs ...Constraint) Constraint { return all(cs) }

func (a all) Extract(c *Cube) (*Cube, bool) {
	for _, con := range a {
		if con == nil {
			continue
		}
		var ok bool
		if c, ok = con.Extract(c); !ok {
			return nil, false
		}
	}
	return c, true
}

func (a all) String() string {
	s := make([]string, 0, len(a))
	for _, con := range a {
		if con != nil {
			s = append(s, con.String())
		}
	}
	return "(" + strings.Join(s, " & ") + ")"
}

// describe returns a description of c, which may be nil.
func describe(c Constraint) string {
	if c == nil {
		return "<none>"
	}
	return c.String()
}

// selectOne returns the single cube among cubes that satisfies c.
// A nil c selects every cube.
func selectOne(path string, cubes []*Cube, c Constraint) (*Cube, error) {
	var matches []*Cube
	for _, cube := range cubes {
		if c == nil {
			matches = append(matches, cube)
			continue
		}
		if m, ok := c.Extract(cube); ok {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, &LoadError{Kind: NoMatch, Path: path, Constraint: describe(c)}
	default:
		return nil, &LoadError{Kind: AmbiguousMatch, Path: path, Constraint: describe(c),
			Matches: len(matches)}
	}
}
