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
	"bytes"
	"context"
	"math/rand"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/recsys/base"
	"github.com/gorse-io/recsys/common/floats"
	"github.com/gorse-io/recsys/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// clusteredData creates users 0..n/2-1 interacting with items 0..m/2-1 and the rest
// of users interacting with the rest of items.
func clusteredData(nUsers, nItems int, seed int64) ([]dataset.Interaction, int, int) {
	rng := rand.New(rand.NewSource(seed))
	var records []dataset.Interaction
	half := nItems / 2
	for u := 0; u < nUsers; u++ {
		offset := 0
		if u >= nUsers/2 {
			offset = half
		}
		for t := 0; t < 6; t++ {
			records = append(records, dataset.Interaction{
				UserIndex: int32(u),
				ItemIndex: int32(offset + rng.Intn(half)),
				Rating:    float32(1 + rng.Intn(5)),
				Timestamp: int64(t),
			})
		}
	}
	return records, nUsers, nItems
}

func smallParams() Params {
	params := NewParams()
	params.Factors = 4
	params.Iterations = 10
	params.Regularization = 0.1
	return params
}

type ALSTestSuite struct {
	suite.Suite
	train *dataset.SparseMatrix
	test  []dataset.TestPair
}

func (suite *ALSTestSuite) SetupSuite() {
	records, nUsers, nItems := clusteredData(40, 20, 0)
	train, test := dataset.LeaveLastOut(records)
	var err error
	suite.train, err = dataset.BuildMatrix(train, nUsers, nItems, dataset.WeightLog)
	suite.NoError(err)
	suite.test = test
}

func (suite *ALSTestSuite) TestFit() {
	m, err := NewALS(smallParams())
	suite.NoError(err)
	var iterations []int
	var losses []float32
	config := NewFitConfig().SetCalculateLoss(true).SetCallback(func(iteration int, loss float32) {
		iterations = append(iterations, iteration)
		losses = append(losses, loss)
	})
	score, err := m.Fit(context.Background(), suite.train, suite.test, config)
	suite.NoError(err)
	suite.Equal([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, iterations)
	for i := 1; i < len(losses); i++ {
		suite.LessOrEqual(losses[i], losses[i-1]*(1+1e-4))
	}
	suite.Equal(losses[len(losses)-1], score.Loss)
	suite.InDelta(score.Loss, m.Loss(suite.train), 1e-2)
	suite.Greater(score.Recall, float32(0))
	suite.Greater(score.NDCG, float32(0))
	suite.Equal(40, m.CountUsers())
	suite.Equal(20, m.CountItems())
	suite.True(m.IsUserPredictable(0))
	suite.False(m.IsUserPredictable(40))
	suite.False(m.IsItemPredictable(-1))
}

func (suite *ALSTestSuite) TestFit_Parallel() {
	single, err := NewALS(smallParams())
	suite.NoError(err)
	_, err = single.Fit(context.Background(), suite.train, nil, NewFitConfig())
	suite.NoError(err)
	multiple, err := NewALS(smallParams())
	suite.NoError(err)
	_, err = multiple.Fit(context.Background(), suite.train, nil, NewFitConfig().SetJobs(4))
	suite.NoError(err)
	suite.Equal(single.UserFactor, multiple.UserFactor)
	suite.Equal(single.ItemFactor, multiple.ItemFactor)
}

func (suite *ALSTestSuite) TestFit_Cancel() {
	m, err := NewALS(smallParams())
	suite.NoError(err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Fit(ctx, suite.train, nil, NewFitConfig())
	suite.ErrorIs(err, context.Canceled)
}

func (suite *ALSTestSuite) TestFit_FoldInAfterEvaluation() {
	m, err := NewALS(smallParams())
	suite.NoError(err)
	// evaluation at iteration 2 folds in users before training ends
	_, err = m.Fit(context.Background(), suite.train, suite.test, NewFitConfig().SetVerbose(2))
	suite.NoError(err)
	row := suite.train.Row(0)
	factor, err := m.FoldIn(row)
	suite.NoError(err)
	expected := make([]float32, m.Params.Factors)
	suite.NoError(SolveRow(Gram(m.ItemFactor, m.Params.Factors), m.ItemFactor,
		dataset.ScaleRow(row, m.Params.Alpha), m.Params.Regularization, expected))
	suite.Equal(expected, factor)
}

func (suite *ALSTestSuite) TestMarshal() {
	m, err := NewALS(smallParams())
	suite.NoError(err)
	_, err = m.Fit(context.Background(), suite.train, nil, NewFitConfig())
	suite.NoError(err)
	buf := bytes.NewBuffer(nil)
	suite.NoError(m.Marshal(buf))
	loaded, err := UnmarshalALS(buf)
	suite.NoError(err)
	suite.Equal(m.Params, loaded.Params)
	suite.Equal(m.UserFactor, loaded.UserFactor)
	suite.Equal(m.ItemFactor, loaded.ItemFactor)
	suite.Equal(m.UserPredictable.Count(), loaded.UserPredictable.Count())
	for userIndex := int32(0); userIndex < 5; userIndex++ {
		expectedItems, expectedScores, err := m.Recommend(userIndex, 5, nil)
		suite.NoError(err)
		items, scores, err := loaded.Recommend(userIndex, 5, nil)
		suite.NoError(err)
		suite.Equal(expectedItems, items)
		suite.Equal(expectedScores, scores)
	}
	// truncated stream
	buf.Reset()
	suite.NoError(m.Marshal(buf))
	_, err = UnmarshalALS(bytes.NewReader(buf.Bytes()[:buf.Len()/2]))
	suite.Error(err)
}

func TestALS(t *testing.T) {
	suite.Run(t, new(ALSTestSuite))
}

func TestALS_InvalidWeight(t *testing.T) {
	train, err := dataset.BuildMatrix([]dataset.Interaction{
		{UserIndex: 0, ItemIndex: 0, Rating: 1},
		{UserIndex: 1, ItemIndex: 1, Rating: -3},
	}, 2, 2, dataset.WeightRaw)
	assert.NoError(t, err)
	m, err := NewALS(smallParams())
	assert.NoError(t, err)
	_, err = m.Fit(context.Background(), train, nil, NewFitConfig())
	assert.ErrorIs(t, err, base.ErrInvalidWeight)
}

func TestALS_EmptyRows(t *testing.T) {
	// user 2 and item 2 have no observations
	train, err := dataset.BuildMatrix([]dataset.Interaction{
		{UserIndex: 0, ItemIndex: 0, Rating: 1},
		{UserIndex: 0, ItemIndex: 1, Rating: 1},
		{UserIndex: 1, ItemIndex: 1, Rating: 1},
	}, 3, 3, dataset.WeightBinary)
	assert.NoError(t, err)
	m, err := NewALS(smallParams())
	assert.NoError(t, err)
	_, err = m.Fit(context.Background(), train, nil, NewFitConfig())
	assert.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, m.UserFactor[2])
	assert.Equal(t, []float32{0, 0, 0, 0}, m.ItemFactor[2])
	assert.False(t, m.IsUserPredictable(2))
	assert.False(t, m.IsItemPredictable(2))
	assert.True(t, m.IsUserPredictable(1))

	// observed items score higher than the unobserved one
	items, _, err := m.Recommend(0, 3, nil)
	assert.NoError(t, err)
	assert.Equal(t, int32(2), items[2])
	assert.Greater(t, m.Predict(0, 0), m.Predict(0, 2))
	assert.InDelta(t, floats.Dot(m.UserFactor[0], m.ItemFactor[1]), m.Predict(0, 1), 1e-6)
}

func TestALS_Recommend(t *testing.T) {
	m, err := NewALS(Params{Factors: 2, Iterations: 1, Alpha: 1, Regularization: 0.1})
	assert.NoError(t, err)
	m.UserFactor = [][]float32{{1, 0}}
	m.ItemFactor = [][]float32{{1, 0}, {3, 0}, {2, 0}, {3, 0}, {-1, 0}}

	items, scores, err := m.Recommend(0, 3, nil)
	assert.NoError(t, err)
	// ties go to the smaller item index
	assert.Equal(t, []int32{1, 3, 2}, items)
	assert.Equal(t, []float32{3, 3, 2}, scores)

	items, _, err = m.Recommend(0, 10, mapset.NewSet[int32](1, 2))
	assert.NoError(t, err)
	assert.Equal(t, []int32{3, 0, 4}, items)

	items, _, err = m.Recommend(0, 0, nil)
	assert.NoError(t, err)
	assert.Empty(t, items)

	items, _, err = m.Recommend(0, 3, mapset.NewSet[int32](0, 1, 2, 3, 4))
	assert.NoError(t, err)
	assert.Empty(t, items)

	_, _, err = m.Recommend(1, 3, nil)
	assert.ErrorIs(t, err, base.ErrUnknownIdentifier)
	_, _, err = m.Recommend(-1, 3, nil)
	assert.ErrorIs(t, err, base.ErrUnknownIdentifier)
}

func TestALS_RecommendNeverReturnsSeen(t *testing.T) {
	records, nUsers, nItems := clusteredData(20, 30, 1)
	train, err := dataset.BuildMatrix(records, nUsers, nItems, dataset.WeightBinary)
	assert.NoError(t, err)
	m, err := NewALS(smallParams())
	assert.NoError(t, err)
	_, err = m.Fit(context.Background(), train, nil, NewFitConfig())
	assert.NoError(t, err)
	rng := rand.New(rand.NewSource(0))
	for userIndex := int32(0); userIndex < int32(nUsers); userIndex++ {
		seen := mapset.NewSet[int32]()
		for _, e := range train.Row(int(userIndex)) {
			seen.Add(e.Index)
		}
		n := rng.Intn(40)
		items, scores, err := m.Recommend(userIndex, n, seen)
		assert.NoError(t, err)
		assert.LessOrEqual(t, len(items), n)
		assert.LessOrEqual(t, len(items), nItems-seen.Cardinality())
		assert.Len(t, scores, len(items))
		for i, item := range items {
			assert.False(t, seen.Contains(item))
			if i > 0 {
				assert.GreaterOrEqual(t, scores[i-1], scores[i])
			}
		}
	}
}

func TestALS_ColdStart(t *testing.T) {
	records, nUsers, nItems := clusteredData(40, 20, 2)
	train, err := dataset.BuildMatrix(records, nUsers, nItems, dataset.WeightBinary)
	assert.NoError(t, err)
	m, err := NewALS(smallParams())
	assert.NoError(t, err)
	_, err = m.Fit(context.Background(), train, nil, NewFitConfig())
	assert.NoError(t, err)

	// a new user who likes items of the second cluster
	row := []dataset.Entry{{Index: 10, Value: 1}, {Index: 11, Value: 1}, {Index: 12, Value: 1}}
	items, _, err := m.RecommendVector(row, 5, true)
	assert.NoError(t, err)
	assert.Len(t, items, 5)
	for _, item := range items {
		assert.GreaterOrEqual(t, item, int32(10))
		assert.NotContains(t, []int32{10, 11, 12}, item)
	}
	items, _, err = m.RecommendVector(row, 20, false)
	assert.NoError(t, err)
	assert.Len(t, items, 20)

	// fold-in is the same row solve as training
	factor, err := m.FoldIn(row)
	assert.NoError(t, err)
	expected := make([]float32, 4)
	assert.NoError(t, SolveRow(Gram(m.ItemFactor, 4), m.ItemFactor, dataset.ScaleRow(row, m.Params.Alpha), m.Params.Regularization, expected))
	assert.Equal(t, expected, factor)

	// duplicated items are merged
	merged, err := m.FoldIn([]dataset.Entry{{Index: 10, Value: 1}, {Index: 10, Value: 1}})
	assert.NoError(t, err)
	twice, err := m.FoldIn([]dataset.Entry{{Index: 10, Value: 2}})
	assert.NoError(t, err)
	assert.Equal(t, twice, merged)

	// no history yields zero scores ordered by item index
	items, scores, err := m.RecommendVector(nil, 3, true)
	assert.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 2}, items)
	assert.Equal(t, []float32{0, 0, 0}, scores)

	_, _, err = m.RecommendVector([]dataset.Entry{{Index: 20, Value: 1}}, 3, true)
	assert.ErrorIs(t, err, base.ErrUnknownIdentifier)
	_, _, err = m.RecommendVector([]dataset.Entry{{Index: 0, Value: -1}}, 3, true)
	assert.ErrorIs(t, err, base.ErrInvalidWeight)
}
