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

package dataset

import (
	"encoding/json"
	"testing"

	"github.com/gorse-io/recsys/base"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestEncodeIDs(t *testing.T) {
	ids := []int64{196, 186, 22, 196, 244, 22, 166}
	m := EncodeIDs(ids)
	assert.Equal(t, 5, m.Count())
	assert.Equal(t, []int64{196, 186, 22, 244, 166}, m.IDs())
	for _, id := range ids {
		index, err := m.Index(id)
		assert.NoError(t, err)
		decoded, err := m.ID(index)
		assert.NoError(t, err)
		assert.Equal(t, id, decoded)
	}
	index, err := m.Index(244)
	assert.NoError(t, err)
	assert.Equal(t, int32(3), index)
	assert.True(t, m.Contains(166))
	assert.False(t, m.Contains(1))
}

func TestIDMap_Unknown(t *testing.T) {
	m := EncodeIDs([]int64{1, 2})
	_, err := m.Index(3)
	assert.ErrorIs(t, err, base.ErrUnknownIdentifier)
	assert.ErrorIs(t, err, errors.NotFound)
	_, err = m.ID(2)
	assert.ErrorIs(t, err, base.ErrUnknownIdentifier)
	_, err = m.ID(-1)
	assert.ErrorIs(t, err, base.ErrUnknownIdentifier)
}

func TestIDMap_Empty(t *testing.T) {
	m := EncodeIDs(nil)
	assert.Zero(t, m.Count())
	assert.Empty(t, m.IDs())
}

func TestIDMap_JSON(t *testing.T) {
	m := EncodeIDs([]int64{30, 10, 20})
	data, err := json.Marshal(m)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"30":0,"10":1,"20":2}`, string(data))

	var decoded IDMap
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, m.IDs(), decoded.IDs())
	index, err := decoded.Index(20)
	assert.NoError(t, err)
	assert.Equal(t, int32(2), index)
}

func TestIDMap_JSONNotBijection(t *testing.T) {
	var m IDMap
	err := json.Unmarshal([]byte(`{"1":0,"2":0}`), &m)
	assert.ErrorIs(t, err, errors.NotValid)
	err = json.Unmarshal([]byte(`{"1":0,"2":2}`), &m)
	assert.ErrorIs(t, err, errors.NotValid)
	err = json.Unmarshal([]byte(`{"abc":0}`), &m)
	assert.ErrorIs(t, err, errors.NotValid)
	err = json.Unmarshal([]byte(`{"1":0,"01":1}`), &m)
	assert.ErrorIs(t, err, errors.NotValid)
}
