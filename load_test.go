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
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
)

// quietLoader returns a Loader that doesn't log anything.
func quietLoader() *Loader {
	l := NewLoader()
	log := logrus.New()
	log.Out = ioutil.Discard
	l.Log = log
	return l
}

// probabilisticCube returns a cube with dimensions
// (x, probability, y, realization) and the given source attribute.
func probabilisticCube(t *testing.T, source string) *Cube {
	c := indexCube(t, "tas",
		NewCoord("x", seq(2)...),
		NewCoord("probability", seq(3)...),
		NewCoord("y", seq(4)...),
		NewCoord("realization", seq(5)...),
	)
	c.StandardName = "air_temperature"
	c.Units = "K"
	c.Attributes["source"] = source
	return c
}

func TestLoad(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()
	path := writeTestFile(t, dir, "tas.nc", probabilisticCube(t, "a"))

	c, err := quietLoader().Load(path, Name("air_temperature"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"realization", "probability", "y", "x"}
	if !reflect.DeepEqual(c.DimNames(), want) {
		t.Errorf("dims: have %v, want %v", c.DimNames(), want)
	}
	if c.data == nil {
		t.Error("data were not read")
	}
	checkTransposed(t, c, []int{2, 3, 4, 5}, []int{3, 1, 2, 0})
	if c.Units != "K" {
		t.Errorf("units: %s", c.Units)
	}

	t.Run("package function", func(t *testing.T) {
		c, err := Load(path, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(c.DimNames(), want) {
			t.Errorf("dims: have %v, want %v", c.DimNames(), want)
		}
	})
}

func TestLoadErrors(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()

	tas := probabilisticCube(t, "a")
	tasmax := probabilisticCube(t, "b")
	tasmax.VarName = "tasmax"
	ambiguous := writeTestFile(t, dir, "ambiguous.nc", tas, tasmax)

	noX := indexCube(t, "orog", NewCoord("realization", seq(2)...), NewCoord("y", seq(3)...))
	missingAxis := writeTestFile(t, dir, "noaxis.nc", noX)

	l := quietLoader()

	t.Run("ambiguous", func(t *testing.T) {
		_, err := l.Load(ambiguous, Name("air_temperature"))
		if !IsKind(err, AmbiguousMatch) {
			t.Fatalf("have %v", err)
		}
		le := err.(*LoadError)
		if le.Matches != 2 || le.Path != ambiguous {
			t.Errorf("have %+v", le)
		}
	})
	t.Run("no match", func(t *testing.T) {
		_, err := l.Load(ambiguous, Name("precipitation"))
		if !IsKind(err, NoMatch) {
			t.Fatalf("have %v", err)
		}
	})
	t.Run("missing axis", func(t *testing.T) {
		_, err := l.Load(missingAxis, nil)
		if !IsKind(err, MissingAxis) {
			t.Fatalf("have %v", err)
		}
		if le := err.(*LoadError); le.Path != missingAxis || le.Constraint != "<none>" {
			t.Errorf("have %+v", le)
		}
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := l.Load(filepath.Join(dir, "missing.nc"), nil)
		if !os.IsNotExist(err) {
			t.Errorf("have %v", err)
		}
	})
}

// errDecoder is a Decoder that always fails.
type errDecoder struct{ err error }

func (d errDecoder) Decode(string) ([]*Cube, error) { return nil, d.err }

// memDecoder is a Decoder that returns cubes held in memory.
type memDecoder map[string][]*Cube

func (d memDecoder) Decode(path string) ([]*Cube, error) {
	c, ok := d[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return c, nil
}

func TestLoadDecoder(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		decodeErr := errors.New("decode failed")
		l := quietLoader()
		l.Decoder = errDecoder{err: decodeErr}
		if _, err := l.Load("file.nc", nil); err != decodeErr {
			t.Errorf("have %v, want %v", err, decodeErr)
		}
		if _, err := l.LoadMany(Paths{"file.nc"}, nil); err != decodeErr {
			t.Errorf("LoadMany: have %v, want %v", err, decodeErr)
		}
	})
	t.Run("memory", func(t *testing.T) {
		c := probabilisticCube(t, "a")
		l := quietLoader()
		l.Decoder = memDecoder{"a": {c}}
		o, err := l.Load("a", nil)
		if err != nil {
			t.Fatal(err)
		}
		if o == c || c.Dims[0] != "x" {
			t.Error("the decoded cube was modified")
		}
	})
}

func TestLoadMany(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()

	a := writeTestFile(t, dir, "a.nc", probabilisticCube(t, "a"))
	orog := indexCube(t, "orog", NewCoord("y", seq(4)...), NewCoord("x", seq(2)...))
	b := writeTestFile(t, dir, "b.nc", orog)
	c := writeTestFile(t, dir, "c.nc", probabilisticCube(t, "c"))

	l := quietLoader()
	sources := func(cubes []*Cube) []interface{} {
		var o []interface{}
		for _, c := range cubes {
			o = append(o, attributeScalar(c.Attributes["source"]))
		}
		return o
	}

	t.Run("skip no match", func(t *testing.T) {
		cubes, err := l.LoadMany(Paths{a, b, c}, Name("air_temperature"))
		if err != nil {
			t.Fatal(err)
		}
		if s := sources(cubes); !reflect.DeepEqual(s, []interface{}{"a", "c"}) {
			t.Errorf("have %v, want [a c]", s)
		}
		for _, cube := range cubes {
			if !reflect.DeepEqual(cube.DimNames(), []string{"realization", "probability", "y", "x"}) {
				t.Errorf("dims: %v", cube.DimNames())
			}
		}
	})
	t.Run("order", func(t *testing.T) {
		cubes, err := l.LoadMany(Paths{c, a}, Name("air_temperature"))
		if err != nil {
			t.Fatal(err)
		}
		if s := sources(cubes); !reflect.DeepEqual(s, []interface{}{"c", "a"}) {
			t.Errorf("have %v, want [c a]", s)
		}
	})
	t.Run("glob", func(t *testing.T) {
		cubes, err := l.LoadMany(Glob(filepath.Join(dir, "*.nc")), Name("air_temperature"))
		if err != nil {
			t.Fatal(err)
		}
		if s := sources(cubes); !reflect.DeepEqual(s, []interface{}{"a", "c"}) {
			t.Errorf("have %v, want [a c]", s)
		}
	})
	t.Run("glob without matches", func(t *testing.T) {
		cubes, err := l.LoadMany(Glob(filepath.Join(dir, "*.grib")), nil)
		if err != nil {
			t.Fatal(err)
		}
		if cubes == nil || len(cubes) != 0 {
			t.Errorf("have %#v, want an empty slice", cubes)
		}
	})
	t.Run("nothing matches", func(t *testing.T) {
		cubes, err := LoadMany(Paths{a, c}, Name("precipitation"))
		if err != nil {
			t.Fatal(err)
		}
		if cubes == nil || len(cubes) != 0 {
			t.Errorf("have %#v, want an empty slice", cubes)
		}
	})
	t.Run("other errors stop loading", func(t *testing.T) {
		_, err := l.LoadMany(Paths{a, filepath.Join(dir, "missing.nc"), c}, nil)
		if !os.IsNotExist(err) {
			t.Errorf("have %v", err)
		}
		_, err = l.LoadMany(Paths{b, a}, nil)
		if err != nil {
			t.Fatal(err)
		}
	})
	t.Run("malformed glob", func(t *testing.T) {
		if _, err := l.LoadMany(Glob(filepath.Join(dir, "[")), nil); err == nil {
			t.Error("expected an error")
		}
		if m, err := Glob(filepath.Join(dir, "[")).Resolve(); err == nil || m != nil {
			t.Errorf("Resolve: have %v, %v", m, err)
		}
	})
}

func TestLoadManyLiteralStar(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()
	star := writeTestFile(t, dir, "tas_*.nc", probabilisticCube(t, "star"))
	writeTestFile(t, dir, "tas_1.nc", probabilisticCube(t, "one"))

	l := quietLoader()
	cubes, err := l.LoadMany(Paths{star}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cubes) != 1 || attributeScalar(cubes[0].Attributes["source"]) != "star" {
		t.Errorf("explicit list: have %d cubes", len(cubes))
	}

	cubes, err = l.LoadMany(Glob(star), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cubes) != 2 {
		t.Fatalf("glob: have %d cubes, want 2", len(cubes))
	}
	// "*" sorts before "1".
	if s := attributeScalar(cubes[0].Attributes["source"]); s != "star" {
		t.Errorf("glob order: first cube is %v", s)
	}
}
