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
	"strconv"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/recsys/base"
	"github.com/juju/errors"
)

// IDMap is a bijection between external identifiers and dense indices in [0, n).
// Indices are assigned in first-seen order. An IDMap is immutable once built.
type IDMap struct {
	si map[int64]int32
	is []int64
}

// EncodeIDs assigns a dense index to every distinct id in order of first appearance.
func EncodeIDs(ids []int64) *IDMap {
	m := &IDMap{si: make(map[int64]int32)}
	for _, id := range ids {
		if _, ok := m.si[id]; !ok {
			m.si[id] = int32(len(m.is))
			m.is = append(m.is, id)
		}
	}
	return m
}

func (m *IDMap) Count() int {
	return len(m.is)
}

func (m *IDMap) Contains(id int64) bool {
	_, ok := m.si[id]
	return ok
}

// Index returns the dense index of an external id.
func (m *IDMap) Index(id int64) (int32, error) {
	if index, ok := m.si[id]; ok {
		return index, nil
	}
	return 0, errors.Annotatef(base.ErrUnknownIdentifier, "id %d", id)
}

// ID returns the external id of a dense index.
func (m *IDMap) ID(index int32) (int64, error) {
	if index < 0 || int(index) >= len(m.is) {
		return 0, errors.Annotatef(base.ErrUnknownIdentifier, "index %d", index)
	}
	return m.is[index], nil
}

// IDs returns external ids ordered by dense index.
func (m *IDMap) IDs() []int64 {
	return append([]int64(nil), m.is...)
}

func (m *IDMap) MarshalJSON() ([]byte, error) {
	doc := make(map[string]int32, len(m.is))
	for index, id := range m.is {
		doc[strconv.FormatInt(id, 10)] = int32(index)
	}
	return json.Marshal(doc)
}

func (m *IDMap) UnmarshalJSON(data []byte) error {
	var doc map[string]int32
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Trace(err)
	}
	is := make([]int64, len(doc))
	assigned := bitset.New(uint(len(doc)))
	si := make(map[int64]int32, len(doc))
	for key, index := range doc {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return errors.NotValidf("identifier %q", key)
		}
		// "1" and "01" are the same identifier
		if _, exist := si[id]; exist {
			return errors.NotValidf("duplicated identifier %d", id)
		}
		si[id] = index
		if index < 0 || int(index) >= len(doc) {
			return errors.NotValidf("index %d of identifier %d", index, id)
		}
		if assigned.Test(uint(index)) {
			return errors.NotValidf("duplicated index %d", index)
		}
		assigned.Set(uint(index))
		is[index] = id
	}
	m.is = is
	m.si = si
	return nil
}
