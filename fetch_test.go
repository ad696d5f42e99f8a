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
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func TestIsRemote(t *testing.T) {
	for path, want := range map[string]bool{
		"http://example.com/a.nc": true,
		"https://example.com/a.nc": true,
		"gs://bucket/a.nc":         true,
		"s3://bucket/a.nc":         true,
		"file:///tmp/a.nc":         true,
		"/tmp/a.nc":                false,
		"a.nc":                     false,
		"http_data/a.nc":           false,
	} {
		if IsRemote(path) != want {
			t.Errorf("%s: have %v, want %v", path, !want, want)
		}
	}
}

func TestFetchHTTP(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()
	writeTestFile(t, dir, "tas.nc", probabilisticCube(t, "remote"))

	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	l := quietLoader()
	t.Run("load", func(t *testing.T) {
		c, err := l.Load(srv.URL+"/tas.nc", nil)
		if err != nil {
			t.Fatal(err)
		}
		if s := attributeScalar(c.Attributes["source"]); s != "remote" {
			t.Errorf("source: %v", s)
		}
		if !reflect.DeepEqual(c.DimNames(), []string{"realization", "probability", "y", "x"}) {
			t.Errorf("dims: %v", c.DimNames())
		}
	})
	t.Run("copy removed", func(t *testing.T) {
		local, rm, err := fetch(context.Background(), srv.URL+"/tas.nc", 0, l.Log)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasSuffix(local, "tas.nc") {
			t.Errorf("local path: %s", local)
		}
		if _, err := os.Stat(local); err != nil {
			t.Fatal(err)
		}
		rm()
		if _, err := os.Stat(local); !os.IsNotExist(err) {
			t.Errorf("local copy was not removed: %v", err)
		}
	})
	t.Run("not found", func(t *testing.T) {
		l := quietLoader()
		l.FetchRetries = 0
		_, err := l.Load(srv.URL+"/missing.nc", nil)
		if err == nil || !strings.Contains(err.Error(), "404") {
			t.Errorf("have %v", err)
		}
	})
	t.Run("many", func(t *testing.T) {
		cubes, err := l.LoadMany(Glob(srv.URL+"/tas.nc"), nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(cubes) != 1 {
			t.Errorf("have %d cubes, want 1", len(cubes))
		}
	})
}

func TestFetchFileBlob(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()
	path := writeTestFile(t, dir, "tas.nc", probabilisticCube(t, "blob"))

	c, err := quietLoader().Load("file://"+filepath.ToSlash(path), Name("air_temperature"))
	if err != nil {
		t.Fatal(err)
	}
	if s := attributeScalar(c.Attributes["source"]); s != "blob" {
		t.Errorf("source: %v", s)
	}

	l := quietLoader()
	l.FetchRetries = 0
	if _, err := l.Load("file://"+filepath.ToSlash(filepath.Join(dir, "missing.nc")), nil); err == nil {
		t.Error("missing blob: expected an error")
	}
}

func TestFetchTempFilesRemoved(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()
	writeTestFile(t, dir, "tas.nc", probabilisticCube(t, "a"))
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	before := cubeloadTempDirs(t)
	if _, err := quietLoader().Load(srv.URL+"/tas.nc", nil); err != nil {
		t.Fatal(err)
	}
	if after := cubeloadTempDirs(t); after > before {
		t.Errorf("%d temporary directories left behind", after-before)
	}
}

// cubeloadTempDirs returns the number of download directories in the
// system temporary directory.
func cubeloadTempDirs(t *testing.T) int {
	infos, err := ioutil.ReadDir(os.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, fi := range infos {
		if fi.IsDir() && strings.HasPrefix(fi.Name(), "cubeload") && !strings.HasPrefix(fi.Name(), "cubeload_test") {
			n++
		}
	}
	return n
}

func TestRetryPolicy(t *testing.T) {
	if d := retryPolicy(0).NextBackOff(); d != backoff.Stop {
		t.Errorf("zero retries: have %v, want stop", d)
	}
	b := retryPolicy(2)
	b.Reset()
	for i := 0; i < 2; i++ {
		if d := b.NextBackOff(); d == backoff.Stop {
			t.Fatalf("retry %d: stopped early", i)
		}
	}
	if d := b.NextBackOff(); d != backoff.Stop {
		t.Errorf("third retry: have %v, want stop", d)
	}
}

func TestFetchRetries(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		switch r.URL.Path {
		case "/unavailable.nc":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	for _, test := range []struct {
		name         string
		path         string
		retries      uint64
		wantRequests int32
		wantWarnings int
	}{
		{name: "not found", path: "/missing.nc", retries: 3, wantRequests: 1},
		{name: "unavailable", path: "/unavailable.nc", retries: 1, wantRequests: 2, wantWarnings: 1},
		{name: "unavailable without retries", path: "/unavailable.nc", retries: 0, wantRequests: 1},
	} {
		t.Run(test.name, func(t *testing.T) {
			atomic.StoreInt32(&requests, 0)
			log, hook := logtest.NewNullLogger()
			l := NewLoader()
			l.Log = log
			l.FetchRetries = test.retries

			start := time.Now()
			if _, err := l.Load(srv.URL+test.path, nil); err == nil {
				t.Fatal("expected an error")
			}
			if test.wantWarnings == 0 {
				if d := time.Since(start); d > 5*time.Second {
					t.Errorf("took %v", d)
				}
			}
			if n := atomic.LoadInt32(&requests); n != test.wantRequests {
				t.Errorf("requests: have %d, want %d", n, test.wantRequests)
			}
			if n := len(hook.AllEntries()); n != test.wantWarnings {
				t.Errorf("retry warnings: have %d, want %d", n, test.wantWarnings)
			}
		})
	}

	t.Run("missing blob", func(t *testing.T) {
		dir, cleanup := tempDir(t)
		defer cleanup()
		log, hook := logtest.NewNullLogger()
		l := NewLoader()
		l.Log = log
		_, err := l.Load("file://"+filepath.ToSlash(filepath.Join(dir, "missing.nc")), nil)
		if err == nil {
			t.Fatal("expected an error")
		}
		if n := len(hook.AllEntries()); n != 0 {
			t.Errorf("retry warnings: have %d, want 0", n)
		}
	})
}
