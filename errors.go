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
	"errors"
	"fmt"
)

// ErrorKind specifies why a cube could not be loaded.
type ErrorKind int

const (
	// NoMatch means that no cube in a file satisfied the constraint.
	NoMatch ErrorKind = iota + 1

	// AmbiguousMatch means that more than one cube in a file
	// satisfied the constraint.
	AmbiguousMatch

	// MissingAxis means that the loaded cube does not have exactly one
	// y-axis and one x-axis dimension coordinate.
	MissingAxis
)

func (k ErrorKind) String() string {
	switch k {
	case NoMatch:
		return "no match"
	case AmbiguousMatch:
		return "ambiguous match"
	case MissingAxis:
		return "missing axis"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// LoadError is returned when a file was read but a single, canonically
// ordered cube could not be produced from it.
type LoadError struct {
	Kind ErrorKind

	// Path is the file being loaded.
	Path string

	// Constraint describes the constraint that was applied.
	Constraint string

	// Matches is the number of cubes that satisfied the constraint.
	Matches int

	// Err is the underlying error, if any.
	Err error
}

func (e *LoadError) Error() string {
	switch e.Kind {
	case NoMatch:
		return fmt.Sprintf("cubeload: %s: no cubes match constraint %s", e.Path, e.Constraint)
	case AmbiguousMatch:
		return fmt.Sprintf("cubeload: %s: %d cubes match constraint %s; expected exactly one",
			e.Path, e.Matches, e.Constraint)
	default:
		if e.Err != nil {
			return fmt.Sprintf("cubeload: %s: %s: %v", e.Path, e.Kind, e.Err)
		}
		return fmt.Sprintf("cubeload: %s: %s", e.Path, e.Kind)
	}
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error { return e.Err }

// IsKind returns whether err is, or wraps, a *LoadError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Kind == kind
}

// CoordError is returned when a coordinate lookup does not find
// exactly one coordinate.
type CoordError struct {
	// Name is the coordinate name that was looked up, if any.
	Name string

	// Axis is the axis role that was looked up, if Name is empty.
	Axis AxisRole

	// Found is the number of coordinates that matched.
	Found int
}

func (e *CoordError) Error() string {
	what := fmt.Sprintf("coordinate %q", e.Name)
	if e.Name == "" {
		what = fmt.Sprintf("coordinate with axis %s", e.Axis)
	}
	if e.Found == 0 {
		return fmt.Sprintf("no %s", what)
	}
	return fmt.Sprintf("%d matches for %s; expected exactly one", e.Found, what)
}
