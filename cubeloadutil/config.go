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

package cubeloadutil

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/cubeload"
	"github.com/spf13/cast"
)

// newLoader returns a loader that logs at the configured level and
// retries remote downloads the configured number of times.
func newLoader(cfg *viper.Viper) (*cubeload.Loader, error) {
	level, err := logrus.ParseLevel(cfg.GetString("loglevel"))
	if err != nil {
		return nil, fmt.Errorf("cubeload: invalid log level: %v", err)
	}
	log := logrus.New()
	log.Out = os.Stderr
	log.SetLevel(level)

	retries, err := cast.ToIntE(cfg.Get("retries"))
	if err != nil {
		return nil, fmt.Errorf("cubeload: invalid number of retries: %v", err)
	}
	if retries < 0 {
		return nil, fmt.Errorf("cubeload: number of retries must not be negative; have %d", retries)
	}

	l := cubeload.NewLoader()
	l.Log = log
	l.FetchRetries = uint64(retries)
	return l, nil
}

// constraintFromConfig combines the constraint options in cfg.
// It returns nil if no constraint options are set.
func constraintFromConfig(cfg *viper.Viper) (cubeload.Constraint, error) {
	var cs []cubeload.Constraint
	if name := cfg.GetString("name"); name != "" {
		cs = append(cs, cubeload.Name(name))
	}
	if pattern := cfg.GetString("pattern"); pattern != "" {
		c, err := cubeload.NamePattern(pattern)
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	attrs, err := getStringSlice("attribute", cfg)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		i := strings.Index(a, "=")
		if i <= 0 {
			return nil, fmt.Errorf("cubeload: invalid attribute constraint %q; the format is name=value", a)
		}
		cs = append(cs, cubeload.Attribute(a[:i], a[i+1:]))
	}
	if expr := cfg.GetString("expression"); expr != "" {
		c, err := cubeload.Expression(expr)
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	ranges, err := getStringSlice("coordrange", cfg)
	if err != nil {
		return nil, err
	}
	for _, r := range ranges {
		c, err := parseCoordRange(r)
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}

	switch len(cs) {
	case 0:
		return nil, nil
	case 1:
		return cs[0], nil
	default:
		return cubeload.All(cs...), nil
	}
}

// getStringSlice returns a []string from a viper configuration,
// accounting for the fact that it might be a comma-separated list
// if it was set from an environment variable.
func getStringSlice(varName string, cfg *viper.Viper) ([]string, error) {
	i := cfg.Get(varName)
	if i == nil {
		return nil, nil
	}
	if s, ok := i.(string); ok {
		if s == "" {
			return nil, nil
		}
		return strings.Split(s, ","), nil
	}
	o, err := cast.ToStringSliceE(i)
	if err != nil {
		return nil, fmt.Errorf("cubeload: invalid value for %s: %v", varName, err)
	}
	return o, nil
}

// parseCoordRange parses a coordinate range in the format coord:min:max.
func parseCoordRange(s string) (cubeload.Constraint, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" {
		return nil, fmt.Errorf("cubeload: invalid coordinate range %q; the format is coord:min:max", s)
	}
	min, err := cast.ToFloat64E(parts[1])
	if err != nil {
		return nil, fmt.Errorf("cubeload: invalid coordinate range %q: %v", s, err)
	}
	max, err := cast.ToFloat64E(parts[2])
	if err != nil {
		return nil, fmt.Errorf("cubeload: invalid coordinate range %q: %v", s, err)
	}
	if min > max {
		return nil, fmt.Errorf("cubeload: invalid coordinate range %q: minimum is greater than maximum", s)
	}
	return cubeload.CoordRange(parts[0], min, max), nil
}

// pathSet treats a single argument as a glob pattern and
// more than one as a list of files.
func pathSet(args []string) cubeload.PathSet {
	if len(args) == 1 {
		return cubeload.Glob(os.ExpandEnv(args[0]))
	}
	p := make(cubeload.Paths, len(args))
	for i, a := range args {
		p[i] = os.ExpandEnv(a)
	}
	return p
}

// describeCubes writes a summary of each cube to w. If dump is true,
// all of the cube metadata is written as well.
func describeCubes(w io.Writer, cubes []*cubeload.Cube, dump bool) error {
	printer := spew.ConfigState{
		Indent:                  "  ",
		SortKeys:                true,
		DisableMethods:          true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	for _, c := range cubes {
		if _, err := fmt.Fprintf(w, "%s (%s) %v\n", c.Name(), c.Units, c.Shape()); err != nil {
			return err
		}
		for i, dim := range c.Dims {
			line := fmt.Sprintf("  %-16s %6d", dim, c.Shape()[i])
			if coord := c.DimCoords[i]; coord != nil {
				min, max := coord.Range()
				if coord.Axis != cubeload.AxisNone {
					line += fmt.Sprintf("  axis=%s", coord.Axis)
				}
				line += fmt.Sprintf("  [%g, %g] %s", min, max, coord.Units)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		for _, aux := range c.AuxCoords {
			if _, err := fmt.Fprintf(w, "  aux %s %v\n", aux.Name(), auxDims(c, aux)); err != nil {
				return err
			}
		}
		if dump {
			meta := struct {
				VarName, StandardName, LongName, Units string
				Attributes                             map[string]interface{}
			}{c.VarName, c.StandardName, c.LongName, c.Units, c.Attributes}
			printer.Fdump(w, meta)
		}
	}
	return nil
}

// auxDims returns the names of the dimensions spanned by an
// auxiliary coordinate.
func auxDims(c *cubeload.Cube, aux cubeload.AuxCoord) []string {
	o := make([]string, len(aux.Dims))
	for i, d := range aux.Dims {
		o[i] = c.Dims[d]
	}
	return o
}
