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
	"context"

	"github.com/sirupsen/logrus"
)

// Loader loads cubes from files.
type Loader struct {
	// Decoder lists the cubes in a file.
	Decoder Decoder

	// Log receives messages about loading progress.
	Log logrus.FieldLogger

	// FetchRetries is the number of times a failed download of a
	// remote file is retried.
	FetchRetries uint64
}

// NewLoader returns a Loader that reads NetCDF files and logs to the
// standard logger.
func NewLoader() *Loader {
	return &Loader{
		Decoder:      NetCDF{},
		Log:          logrus.StandardLogger(),
		FetchRetries: 3,
	}
}

// Load loads the single cube in the file at path that satisfies
// constraint c and returns it with its dimensions in canonical order
// and its data read into memory. A nil constraint selects every cube.
//
// If no cube or more than one cube satisfies the constraint, or the
// selected cube does not have exactly one y-axis and one x-axis
// dimension, the returned error is a *LoadError. Errors opening or
// reading the file are returned as they are.
func (l *Loader) Load(path string, c Constraint) (*Cube, error) {
	local := path
	if IsRemote(path) {
		var cleanup func()
		var err error
		local, cleanup, err = fetch(context.Background(), path, l.FetchRetries, l.logger())
		if err != nil {
			return nil, err
		}
		defer cleanup()
	}

	cubes, err := l.decoder().Decode(local)
	if err != nil {
		return nil, err
	}
	cube, err := selectOne(path, cubes, c)
	if err != nil {
		return nil, err
	}
	cube, err = Canonicalize(cube)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.Path = path
			le.Constraint = describe(c)
		}
		return nil, err
	}
	if _, err = cube.Data(); err != nil {
		return nil, err
	}
	l.logger().WithFields(logrus.Fields{
		"path": path,
		"cube": cube.Name(),
		"dims": cube.DimNames(),
	}).Debug("cubeload: loaded cube")
	return cube, nil
}

// LoadMany loads one cube from each of the files in paths, in order,
// using Load. Files without a cube satisfying c are skipped; any other
// error stops loading and is returned. If no cubes are loaded, the
// result is empty but not nil.
func (l *Loader) LoadMany(paths PathSet, c Constraint) ([]*Cube, error) {
	files, err := paths.Resolve()
	if err != nil {
		return nil, err
	}
	cubes := make([]*Cube, 0, len(files))
	for _, f := range files {
		cube, err := l.Load(f, c)
		if IsKind(err, NoMatch) {
			l.logger().WithFields(logrus.Fields{
				"path":       f,
				"constraint": describe(c),
			}).Info("cubeload: no matching cube; skipping file")
			continue
		}
		if err != nil {
			return nil, err
		}
		cubes = append(cubes, cube)
	}
	return cubes, nil
}

func (l *Loader) decoder() Decoder {
	if l.Decoder == nil {
		return NetCDF{}
	}
	return l.Decoder
}

func (l *Loader) logger() logrus.FieldLogger {
	if l.Log == nil {
		return logrus.StandardLogger()
	}
	return l.Log
}

// Load loads a cube from the file at path using a default Loader.
func Load(path string, c Constraint) (*Cube, error) {
	return NewLoader().Load(path, c)
}

// LoadMany loads cubes from the files in paths using a default Loader.
func LoadMany(paths PathSet, c Constraint) ([]*Cube, error) {
	return NewLoader().LoadMany(paths, c)
}
