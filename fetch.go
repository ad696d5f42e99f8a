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
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
	"github.com/sirupsen/logrus"
)

var remotePrefixes = []string{"http://", "https://", "gs://", "s3://", "file://"}

// IsRemote returns whether path is a URL that must be downloaded
// before it can be loaded, i.e., whether it starts with `http://`,
// `https://`, `gs://`, `s3://`, or `file://`.
func IsRemote(path string) bool {
	for _, p := range remotePrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// fetch copies the file at the remote location rawURL into a new
// temporary directory, retrying failed attempts up to retries times.
// It returns the local path of the copy and a function that
// removes it.
func fetch(ctx context.Context, rawURL string, retries uint64, log logrus.FieldLogger) (string, func(), error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("cubeload: fetching %s: %v", rawURL, err)
	}
	dir, err := ioutil.TempDir("", "cubeload")
	if err != nil {
		return "", nil, fmt.Errorf("cubeload: creating temporary download directory: %v", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "download"
	}
	local := filepath.Join(dir, name)

	var get func() (io.ReadCloser, error)
	switch u.Scheme {
	case "http", "https":
		get = func() (io.ReadCloser, error) { return httpReader(rawURL) }
	default:
		bucket, key, err := openBucket(ctx, u)
		if err != nil {
			cleanup()
			return "", nil, fmt.Errorf("cubeload: fetching %s: %v", rawURL, err)
		}
		get = func() (io.ReadCloser, error) { return bucket.NewReader(ctx, key) }
	}

	err = backoff.RetryNotify(
		func() error { return copyTo(local, get) },
		retryPolicy(retries),
		func(err error, d time.Duration) {
			log.WithFields(logrus.Fields{
				"url":   rawURL,
				"retry": d,
			}).WithError(err).Warn("cubeload: fetch failed")
		},
	)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("cubeload: fetching %s: %v", rawURL, err)
	}
	return local, cleanup, nil
}

// retryPolicy returns a backoff policy that retries at most retries
// times. WithMaxRetries treats a limit of zero as no limit.
func retryPolicy(retries uint64) backoff.BackOff {
	if retries == 0 {
		return &backoff.StopBackOff{}
	}
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries)
}

// copyTo writes the contents of the reader returned by get to a
// file at path, replacing any previous contents. Errors that
// retrying cannot fix are returned as *backoff.PermanentError.
func copyTo(path string, get func() (io.ReadCloser, error)) error {
	r, err := get()
	if err != nil {
		if blob.IsNotExist(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	defer r.Close()
	w, err := os.Create(path)
	if err != nil {
		return backoff.Permanent(err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func httpReader(rawURL string) (io.ReadCloser, error) {
	resp, err := http.Get(rawURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		err = fmt.Errorf("http status %s", resp.Status)
		if permanentStatus(resp.StatusCode) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return resp.Body, nil
}

// permanentStatus returns whether a request that failed with the
// given HTTP status code would fail again if repeated.
func permanentStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return code >= 400 && code < 500
}

// openBucket returns the blob storage bucket holding the object at
// u and the object's key within it. For `file://` URLs, the bucket
// is the directory containing the file. For `gs://` and `s3://`
// URLs, the host is the bucket name and the path is the key.
func openBucket(ctx context.Context, u *url.URL) (*blob.Bucket, string, error) {
	switch u.Scheme {
	case "file":
		p := filepath.FromSlash(u.Path)
		b, err := fileblob.NewBucket(filepath.Join(u.Host, filepath.Dir(p)))
		return b, filepath.Base(p), err
	case "gs":
		b, err := gsBucket(ctx, u.Hostname())
		return b, strings.TrimPrefix(u.Path, "/"), err
	case "s3":
		b, err := s3Bucket(ctx, u.Hostname())
		return b, strings.TrimPrefix(u.Path, "/"), err
	default:
		return nil, "", fmt.Errorf("invalid storage provider %q", u.Scheme)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, name, c)
}

// s3Bucket opens an s3 storage bucket. It reads the region and
// credentials from the AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY environment variables.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, s, name)
}
