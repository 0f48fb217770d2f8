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
	"context"
	"sort"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/recsys/common/parallel"
	"github.com/gorse-io/recsys/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

type EvalConfig struct {
	TopK int
	// Recalculate folds the training row of a user in before ranking instead of
	// using the trained user factor.
	Recalculate bool
	Jobs        int
}

func NewEvalConfig() *EvalConfig {
	return &EvalConfig{
		TopK:        10,
		Recalculate: true,
		Jobs:        1,
	}
}

// Evaluate ranks TopK+5 unseen items for every user in test pairs and scores the lists.
func Evaluate(ctx context.Context, als *ALS, train *dataset.SparseMatrix, pairs []dataset.TestPair, config *EvalConfig) (Score, error) {
	users := lo.Uniq(lo.Map(pairs, func(p dataset.TestPair, _ int) int32 { return p.UserIndex }))
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	nUsers, _ := train.Shape()
	lists := make([][]int32, len(users))
	n := config.TopK + 5
	err := parallel.Parallel(ctx, len(users), config.Jobs, func(_, jobId int) error {
		userIndex := users[jobId]
		if userIndex < 0 || int(userIndex) >= nUsers || int(userIndex) >= als.CountUsers() {
			// missing users contribute zero hits
			return nil
		}
		row := train.Row(int(userIndex))
		seen := mapset.NewThreadUnsafeSet(lo.Map(row, func(e dataset.Entry, _ int) int32 { return e.Index })...)
		userFactor := als.UserFactor[userIndex]
		if config.Recalculate {
			var err error
			if userFactor, err = als.FoldIn(row); err != nil {
				return errors.Annotatef(err, "user index %d", userIndex)
			}
		}
		lists[jobId], _ = als.RecommendFactor(userFactor, n, seen)
		return nil
	})
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	recs := make(map[int32][]int32, len(users))
	for i, userIndex := range users {
		if lists[i] != nil {
			recs[userIndex] = lists[i]
		}
	}
	return Score{
		Recall: Recall(recs, pairs, config.TopK),
		NDCG:   NDCG(recs, pairs, config.TopK),
	}, nil
}

// rank returns the zero-based position of item within the first k entries of list, or -1.
func rank(list []int32, item int32, k int) int {
	if k <= 0 {
		return -1
	}
	for i, v := range list[:min(k, len(list))] {
		if v == item {
			return i
		}
	}
	return -1
}

// Recall is the fraction of test pairs whose item appears within the first k recommendations
// of its user. Users absent from recs count as misses.
func Recall(recs map[int32][]int32, pairs []dataset.TestPair, k int) float32 {
	if len(pairs) == 0 {
		return 0
	}
	hit := 0
	for _, pair := range pairs {
		if rank(recs[pair.UserIndex], pair.ItemIndex, k) >= 0 {
			hit++
		}
	}
	return float32(hit) / float32(len(pairs))
}

// NDCG means Normalized Discounted Cumulative Gain. With a single relevant item per pair,
// the gain of a hit at zero-based rank r is 1/log2(r+2), averaged over all test pairs.
func NDCG(recs map[int32][]int32, pairs []dataset.TestPair, k int) float32 {
	if len(pairs) == 0 {
		return 0
	}
	var sum float32
	for _, pair := range pairs {
		if r := rank(recs[pair.UserIndex], pair.ItemIndex, k); r >= 0 {
			sum += 1 / math32.Log2(float32(r)+2)
		}
	}
	return sum / float32(len(pairs))
}
