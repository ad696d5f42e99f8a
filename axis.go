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

import "strings"

// AxisRole specifies the spatial or temporal role of a coordinate.
type AxisRole int

// These are the axis roles a coordinate can have.
const (
	AxisNone AxisRole = iota
	AxisX             // horizontal, West-East
	AxisY             // horizontal, South-North
	AxisZ             // vertical
	AxisT             // time
)

var axisNames = []string{"", "x", "y", "z", "t"}

func (a AxisRole) String() string {
	if a < 0 || int(a) >= len(axisNames) {
		return "unknown"
	}
	return axisNames[a]
}

// ParseAxis returns the axis role named by s ("x", "y", "z" or "t",
// in either case), or AxisNone.
func ParseAxis(s string) AxisRole {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range axisNames {
		if i > 0 && n == s {
			return AxisRole(i)
		}
	}
	return AxisNone
}

// Coordinate names that identify the horizontal axes, following the
// CF conventions plus common short variable names.
var (
	xNames = map[string]bool{
		"longitude": true, "grid_longitude": true, "projection_x_coordinate": true,
		"lon": true, "x": true,
	}
	yNames = map[string]bool{
		"latitude": true, "grid_latitude": true, "projection_y_coordinate": true,
		"lat": true, "y": true,
	}
	zNames = map[string]bool{
		"height": true, "altitude": true, "depth": true, "pressure": true,
		"air_pressure": true, "model_level_number": true,
	}
	pressureUnits = map[string]bool{"Pa": true, "hPa": true, "mbar": true, "millibar": true, "kPa": true}
)

// guessAxis returns the axis role of c based on its "axis" attribute,
// its names, and its units.
func guessAxis(c *Coord) AxisRole {
	if a, ok := c.Attributes["axis"].(string); ok {
		if r := ParseAxis(a); r != AxisNone {
			return r
		}
	}
	for _, n := range []string{c.StandardName, c.VarName} {
		n = strings.ToLower(n)
		switch {
		case xNames[n]:
			return AxisX
		case yNames[n]:
			return AxisY
		case zNames[n]:
			return AxisZ
		case n == "time":
			return AxisT
		}
	}
	if p, ok := c.Attributes["positive"].(string); ok {
		if p = strings.ToLower(p); p == "up" || p == "down" {
			return AxisZ
		}
	}
	if pressureUnits[c.Units] {
		return AxisZ
	}
	if strings.Contains(c.Units, " since ") {
		return AxisT
	}
	return AxisNone
}
