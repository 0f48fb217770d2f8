// Copyright 2026 gorse Project Authors
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

package base

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestAnnotatedErrors(t *testing.T) {
	err := errors.Annotatef(ErrUnknownIdentifier, "user %d", 42)
	assert.ErrorIs(t, err, ErrUnknownIdentifier)
	assert.ErrorIs(t, err, errors.NotFound)
	assert.Contains(t, err.Error(), "user 42")

	err = errors.Trace(errors.Annotatef(ErrInvalidWeight, "cell (%d, %d)", 1, 2))
	assert.ErrorIs(t, err, ErrInvalidWeight)
	assert.ErrorIs(t, err, errors.NotValid)
	assert.NotErrorIs(t, err, ErrEmptyDataset)
}
