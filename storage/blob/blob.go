// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/gorse-io/recsys/config"
	"github.com/juju/errors"
)

// Store is a flat namespace of named blobs.
type Store interface {
	// Open a blob for reading. A missing blob is reported as errors.NotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create a blob for writing. The blob is committed when the writer is closed, and Close reports any upload error.
	Create(ctx context.Context, name string) (Writer, error)
	// List names of all blobs.
	List(ctx context.Context) ([]string, error)
	// Remove a blob.
	Remove(ctx context.Context, name string) error
}

// Writer commits on Close. Abort discards everything written and leaves the previous blob untouched.
type Writer interface {
	io.WriteCloser
	Abort() error
}

var errAborted = errors.New("upload aborted")

const (
	schemeS3    = "s3"
	schemeGCS   = "gs"
	schemeAzure = "azblob"
	schemeFile  = "file"
)

// Open a store by location:
//
//	s3://bucket/prefix
//	gs://bucket/prefix
//	azblob://container/prefix
//	file:///path or /path
func Open(location string, cfg config.ArtifactConfig) (Store, error) {
	if !strings.Contains(location, "://") {
		return NewPOSIX(location), nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to parse artifact location %s", location)
	}
	prefix := strings.Trim(u.Path, "/")
	var store Store
	switch u.Scheme {
	case schemeFile:
		return NewPOSIX(u.Path), nil
	case schemeS3:
		store, err = NewS3(cfg.S3, u.Host, prefix)
	case schemeGCS:
		store, err = NewGCS(cfg.GCS, u.Host, prefix)
	case schemeAzure:
		store, err = NewAzureBlob(cfg.Azure, u.Host, prefix)
	default:
		return nil, errors.NotSupportedf("artifact location scheme %s", u.Scheme)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return store, nil
}

// pipeWriter streams writes into an upload running in the background.
type pipeWriter struct {
	*io.PipeWriter
	done chan struct{}
	err  error
}

// newPipeWriter starts upload with the read end of a pipe.
func newPipeWriter(upload func(r io.Reader) error) *pipeWriter {
	pr, pw := io.Pipe()
	w := &pipeWriter{PipeWriter: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		w.err = upload(pr)
		// Unblock pending writes if the upload quits early.
		_ = pr.CloseWithError(w.err)
	}()
	return w
}

// Close flushes the pipe and waits for the upload to finish.
func (w *pipeWriter) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return errors.Trace(err)
	}
	<-w.done
	return errors.Trace(w.err)
}

func (w *pipeWriter) Abort() error {
	_ = w.PipeWriter.CloseWithError(errAborted)
	<-w.done
	return nil
}

// trimPrefix converts an object key back to a blob name.
func trimPrefix(key, prefix string) string {
	name := strings.TrimPrefix(key, prefix)
	return strings.TrimPrefix(name, "/")
}
