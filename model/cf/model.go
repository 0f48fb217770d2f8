// Copyright 2021 gorse Project Authors
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

package cf

import (
	"encoding/binary"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/recsys/base"
	"github.com/gorse-io/recsys/base/encoding"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

const modelName = "als"

// Marshal model into byte stream: name, hyper-parameters, shape, then user and item factors.
func (als *ALS) Marshal(w io.Writer) error {
	if err := encoding.WriteString(w, modelName); err != nil {
		return errors.Trace(err)
	}
	// write params
	if err := encoding.WriteGob(w, als.Params); err != nil {
		return errors.Trace(err)
	}
	// write shape
	shape := []int64{int64(als.CountUsers()), int64(als.CountItems())}
	if err := binary.Write(w, binary.LittleEndian, shape); err != nil {
		return errors.Trace(err)
	}
	// write latent factors
	if err := encoding.WriteMatrix(w, als.UserFactor); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, als.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (als *ALS) Unmarshal(r io.Reader) error {
	name, err := encoding.ReadString(r)
	if err != nil {
		return errors.Trace(err)
	}
	if name != modelName {
		return errors.NotValidf("model %q", name)
	}
	// read params
	var params Params
	if err = encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	if err = params.Validate(); err != nil {
		return errors.Trace(err)
	}
	// read shape
	shape := make([]int64, 2)
	if err = binary.Read(r, binary.LittleEndian, shape); err != nil {
		return errors.Trace(err)
	}
	if shape[0] < 0 || shape[1] < 0 {
		return errors.NotValidf("shape (%d, %d)", shape[0], shape[1])
	}
	// read latent factors
	userFactor := base.NewMatrix32(int(shape[0]), params.Factors)
	if err = encoding.ReadMatrix(r, userFactor); err != nil {
		return errors.Trace(err)
	}
	itemFactor := base.NewMatrix32(int(shape[1]), params.Factors)
	if err = encoding.ReadMatrix(r, itemFactor); err != nil {
		return errors.Trace(err)
	}
	als.Params = params
	als.UserFactor = userFactor
	als.ItemFactor = itemFactor
	als.UserPredictable = nonZeroRows(userFactor)
	als.ItemPredictable = nonZeroRows(itemFactor)
	als.cache = &gramCache{}
	return nil
}

// nonZeroRows flags trained rows. Rows without observations are solved to zero.
func nonZeroRows(m [][]float32) *bitset.BitSet {
	flags := bitset.New(uint(len(m)))
	for i, row := range m {
		if lo.SomeBy(row, func(v float32) bool { return v != 0 }) {
			flags.Set(uint(i))
		}
	}
	return flags
}

// UnmarshalALS reads an ALS model from byte stream.
func UnmarshalALS(r io.Reader) (*ALS, error) {
	als := &ALS{cache: &gramCache{}}
	if err := als.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return als, nil
}
