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
	"path"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestPOSIX(t *testing.T) {
	ctx := context.Background()
	// create client
	client := NewPOSIX(path.Join(t.TempDir(), "blob"))

	// list empty store
	names, err := client.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, names)

	// write a temp file
	w, err := client.Create(ctx, "test")
	assert.NoError(t, err)
	_, err = w.Write([]byte("hello world"))
	assert.NoError(t, err)
	_, err = client.Open(ctx, "test")
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.NoError(t, w.Close())

	// read the file
	r, err := client.Open(ctx, "test")
	assert.NoError(t, err)
	content, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(content))
	assert.NoError(t, r.Close())

	// list files
	w, err = client.Create(ctx, "sub/file")
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	names, err = client.List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"sub/file", "test"}, names)

	// abort keeps the committed file
	w, err = client.Create(ctx, "test")
	assert.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	assert.NoError(t, err)
	assert.NoError(t, w.Abort())
	r, err = client.Open(ctx, "test")
	assert.NoError(t, err)
	content, err = io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(content))
	assert.NoError(t, r.Close())
	names, err = client.List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"sub/file", "test"}, names)

	// remove file
	assert.NoError(t, client.Remove(ctx, "test"))
	_, err = client.Open(ctx, "test")
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.True(t, errors.Is(client.Remove(ctx, "test"), errors.NotFound))
}
