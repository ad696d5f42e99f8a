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
	"path/filepath"
	"sort"
)

// A PathSet specifies a set of files to load.
type PathSet interface {
	// Resolve returns the paths of the files in the set, in the
	// order they should be loaded.
	Resolve() ([]string, error)
}

// Glob is a PathSet holding a shell file name pattern, as accepted by
// filepath.Match. Remote URLs are not expanded.
type Glob string

// Resolve returns the files matching the pattern, sorted
// lexicographically. A pattern that matches nothing gives an empty
// list, but a malformed pattern, such as one with an unclosed "[",
// is an error.
func (g Glob) Resolve() ([]string, error) {
	if IsRemote(string(g)) {
		return []string{string(g)}, nil
	}
	matches, err := filepath.Glob(string(g))
	if err != nil {
		return nil, fmt.Errorf("cubeload: expanding %q: %v", string(g), err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Paths is a PathSet holding an explicit list of paths, which are
// used as they are.
type Paths []string

// Resolve returns a copy of p.
func (p Paths) Resolve() ([]string, error) {
	return append([]string{}, p...), nil
}
