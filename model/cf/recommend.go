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

package cf

import (
	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/recsys/base"
	"github.com/gorse-io/recsys/common/floats"
	"github.com/gorse-io/recsys/common/heap"
	"github.com/gorse-io/recsys/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Predict returns the affinity of a user to an item.
func (als *ALS) Predict(userIndex, itemIndex int32) float32 {
	return floats.Dot(als.UserFactor[userIndex], als.ItemFactor[itemIndex])
}

// Recommend returns top n items for a trained user by descending score. Items in seen are
// excluded and equal scores go to the smaller item index.
func (als *ALS) Recommend(userIndex int32, n int, seen mapset.Set[int32]) ([]int32, []float32, error) {
	if userIndex < 0 || int(userIndex) >= als.CountUsers() {
		return nil, nil, errors.Annotatef(base.ErrUnknownIdentifier, "user index %d", userIndex)
	}
	items, scores := als.RecommendFactor(als.UserFactor[userIndex], n, seen)
	return items, scores, nil
}

// RecommendFactor ranks items for an arbitrary user factor.
func (als *ALS) RecommendFactor(userFactor []float32, n int, seen mapset.Set[int32]) ([]int32, []float32) {
	filter := heap.NewTopKFilter[int32, float32](n)
	for i, itemFactor := range als.ItemFactor {
		itemIndex := int32(i)
		if seen != nil && seen.Contains(itemIndex) {
			continue
		}
		filter.Push(itemIndex, floats.Dot(userFactor, itemFactor))
	}
	return filter.PopAll()
}

// FoldIn estimates a fresh user factor from a row of weights by one least-squares step
// against fixed item factors. Weights are scaled by Alpha like training data.
func (als *ALS) FoldIn(row []dataset.Entry) ([]float32, error) {
	for _, e := range row {
		if e.Index < 0 || int(e.Index) >= als.CountItems() {
			return nil, errors.Annotatef(base.ErrUnknownIdentifier, "item index %d", e.Index)
		}
		if e.Value < 0 || math32.IsNaN(e.Value) || math32.IsInf(e.Value, 0) {
			return nil, errors.Annotatef(base.ErrInvalidWeight, "item index %d = %v", e.Index, e.Value)
		}
	}
	userFactor := make([]float32, als.Params.Factors)
	err := SolveRow(als.itemGram(), als.ItemFactor, mergeRow(dataset.ScaleRow(row, als.Params.Alpha)), als.Params.Regularization, userFactor)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return userFactor, nil
}

// RecommendVector recommends items for a user described only by a row of weights.
func (als *ALS) RecommendVector(row []dataset.Entry, n int, filterSeen bool) ([]int32, []float32, error) {
	userFactor, err := als.FoldIn(row)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	var seen mapset.Set[int32]
	if filterSeen {
		seen = mapset.NewThreadUnsafeSet(lo.Map(row, func(e dataset.Entry, _ int) int32 { return e.Index })...)
	}
	items, scores := als.RecommendFactor(userFactor, n, seen)
	return items, scores, nil
}

// mergeRow sums duplicated columns of a row.
func mergeRow(row []dataset.Entry) []dataset.Entry {
	if len(lo.UniqBy(row, func(e dataset.Entry) int32 { return e.Index })) == len(row) {
		return row
	}
	merged := make(map[int32]float32, len(row))
	order := make([]int32, 0, len(row))
	for _, e := range row {
		if _, exist := merged[e.Index]; !exist {
			order = append(order, e.Index)
		}
		merged[e.Index] += e.Value
	}
	return lo.Map(order, func(index int32, _ int) dataset.Entry {
		return dataset.Entry{Index: index, Value: merged[index]}
	})
}
