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
	"github.com/gorse-io/recsys/base"
	"github.com/gorse-io/recsys/base/log"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type PrepareOptions struct {
	Weight WeightPolicy
	Filter *Filter
}

// Prepared is a dataset snapshot in dense index space.
type Prepared struct {
	UserMap    *IDMap
	ItemMap    *IDMap
	Train      *SparseMatrix
	TestPairs  []TestPair
	ItemTitles map[int32]string
}

// Prepare filters raw interactions, encodes identifiers in first-seen order, holds out the
// latest interaction of each user and builds the training matrix.
func Prepare(raw []RawInteraction, titles map[int64]string, opts PrepareOptions) (*Prepared, error) {
	kept := make([]RawInteraction, 0, len(raw))
	for _, record := range raw {
		ok, err := opts.Filter.Keep(record)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if ok {
			kept = append(kept, record)
		}
	}
	if len(kept) == 0 {
		return nil, errors.Annotatef(base.ErrEmptyDataset, "%d interactions before filtering", len(raw))
	}

	p := &Prepared{
		UserMap:    EncodeIDs(lo.Map(kept, func(r RawInteraction, _ int) int64 { return r.UserID })),
		ItemMap:    EncodeIDs(lo.Map(kept, func(r RawInteraction, _ int) int64 { return r.ItemID })),
		ItemTitles: make(map[int32]string),
	}
	records := make([]Interaction, len(kept))
	for i, r := range kept {
		userIndex, _ := p.UserMap.Index(r.UserID)
		itemIndex, _ := p.ItemMap.Index(r.ItemID)
		records[i] = Interaction{UserIndex: userIndex, ItemIndex: itemIndex, Rating: r.Rating, Timestamp: r.Timestamp}
	}
	train, test := LeaveLastOut(records)
	var err error
	p.Train, err = BuildMatrix(train, p.UserMap.Count(), p.ItemMap.Count(), opts.Weight)
	if err != nil {
		return nil, errors.Trace(err)
	}
	p.TestPairs = test
	for id, title := range titles {
		if index, err := p.ItemMap.Index(id); err == nil {
			p.ItemTitles[index] = title
		}
	}
	log.Logger().Info("prepare dataset",
		zap.Int("n_users", p.UserMap.Count()),
		zap.Int("n_items", p.ItemMap.Count()),
		zap.Int("n_train", p.Train.NNZ()),
		zap.Int("n_test", len(p.TestPairs)),
		zap.Int("n_filtered", len(raw)-len(kept)))
	return p, nil
}
