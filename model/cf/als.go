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
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/recsys/base"
	"github.com/gorse-io/recsys/base/log"
	"github.com/gorse-io/recsys/common/floats"
	"github.com/gorse-io/recsys/common/parallel"
	"github.com/gorse-io/recsys/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

type Score struct {
	NDCG   float32
	Recall float32
	Loss   float32
}

type FitConfig struct {
	Jobs          int
	Verbose       int
	CalculateLoss bool
	// Callback is called after every iteration with the training loss, which is
	// zero unless CalculateLoss is set.
	Callback func(iteration int, loss float32)
	Eval     *EvalConfig
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
		Eval:    NewEvalConfig(),
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	if config.Eval != nil {
		config.Eval.Jobs = jobs
	}
	return config
}

func (config *FitConfig) SetCalculateLoss(calculateLoss bool) *FitConfig {
	config.CalculateLoss = calculateLoss
	return config
}

// SetEval replaces the evaluation config. A nil config disables evaluation during fitting.
func (config *FitConfig) SetEval(eval *EvalConfig) *FitConfig {
	config.Eval = eval
	return config
}

func (config *FitConfig) SetCallback(callback func(iteration int, loss float32)) *FitConfig {
	config.Callback = callback
	return config
}

// ALS is the implicit alternating least squares model [Hu, Koren, Volinsky, 2008].
// Confidences c_ui = alpha * w_ui are derived from the training matrix and the loss is
//
//	\sum_{u,i} c_ui (p_ui - x_u^T y_i)^2 + reg (\sum_u |x_u|^2 + \sum_i |y_i|^2)
//
// where p_ui = 1 and c_ui = alpha * w_ui for observed cells, p_ui = 0 and c_ui = 1 otherwise.
// After fitting, factors are read-only and the model is safe for concurrent recommendation.
type ALS struct {
	Params          Params
	UserFactor      [][]float32 // x_u
	ItemFactor      [][]float32 // y_i
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet

	cache *gramCache
}

type gramCache struct {
	once sync.Once
	gram *mat.SymDense
}

// NewALS creates an ALS model. Invalid hyper-parameters are rejected eagerly.
func NewALS(params Params) (*ALS, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &ALS{Params: params, cache: &gramCache{}}, nil
}

func (als *ALS) CountUsers() int {
	return len(als.UserFactor)
}

func (als *ALS) CountItems() int {
	return len(als.ItemFactor)
}

// IsUserPredictable returns false if user has no feedback and its embedding vector never be trained.
func (als *ALS) IsUserPredictable(userIndex int32) bool {
	if als.UserPredictable == nil || userIndex < 0 || int(userIndex) >= als.CountUsers() {
		return false
	}
	return als.UserPredictable.Test(uint(userIndex))
}

// IsItemPredictable returns false if item has no feedback and its embedding vector never be trained.
func (als *ALS) IsItemPredictable(itemIndex int32) bool {
	if als.ItemPredictable == nil || itemIndex < 0 || int(itemIndex) >= als.CountItems() {
		return false
	}
	return als.ItemPredictable.Test(uint(itemIndex))
}

func (als *ALS) init(nUsers, nItems int) {
	rng := base.NewRandomGenerator(als.Params.RandomState)
	als.UserFactor = rng.NormalMatrix(nUsers, als.Params.Factors, 0, als.Params.InitStdDev)
	als.ItemFactor = rng.NormalMatrix(nItems, als.Params.Factors, 0, als.Params.InitStdDev)
	als.cache = &gramCache{}
}

// Fit the ALS model on a weight matrix of shape (n_users, n_items). Exactly Params.Iterations
// passes are run. Each pass solves every user row against fixed item factors and then every
// item row against fixed user factors; a half-pass completes before the next one starts.
// If test pairs are given, the model is evaluated every Verbose iterations and after the last one.
func (als *ALS) Fit(ctx context.Context, train *dataset.SparseMatrix, test []dataset.TestPair, config *FitConfig) (Score, error) {
	if config == nil {
		config = NewFitConfig()
	}
	nUsers, nItems := train.Shape()
	log.Logger().Info("fit als",
		zap.Int("n_users", nUsers),
		zap.Int("n_items", nItems),
		zap.Int("train_set_size", train.NNZ()),
		zap.Int("test_set_size", len(test)),
		zap.Any("params", als.Params),
		zap.Int("jobs", config.Jobs))
	if err := train.Validate(); err != nil {
		return Score{}, errors.Trace(err)
	}
	userConfidence := train.Scale(als.Params.Alpha)
	itemConfidence := userConfidence.Transpose()
	als.init(nUsers, nItems)
	als.UserPredictable = predictable(userConfidence)
	als.ItemPredictable = predictable(itemConfidence)

	var score Score
	for ep := 1; ep <= als.Params.Iterations; ep++ {
		fitStart := time.Now()
		// update user factors
		if err := als.solve(ctx, als.UserFactor, als.ItemFactor, userConfidence, config.Jobs); err != nil {
			return Score{}, errors.Trace(err)
		}
		// update item factors
		if err := als.solve(ctx, als.ItemFactor, als.UserFactor, itemConfidence, config.Jobs); err != nil {
			return Score{}, errors.Trace(err)
		}
		// item factors changed, drop the cached gram matrix
		als.cache = &gramCache{}
		fitTime := time.Since(fitStart)
		if config.CalculateLoss {
			score.Loss = als.loss(userConfidence)
		}
		fields := []zap.Field{zap.String("fit_time", fitTime.String())}
		if config.CalculateLoss {
			fields = append(fields, zap.Float32("loss", score.Loss))
		}
		if len(test) > 0 && config.Eval != nil && (ep%max(config.Verbose, 1) == 0 || ep == als.Params.Iterations) {
			evalStart := time.Now()
			s, err := Evaluate(ctx, als, train, test, config.Eval)
			if err != nil {
				return Score{}, errors.Trace(err)
			}
			score.NDCG, score.Recall = s.NDCG, s.Recall
			fields = append(fields,
				zap.String("eval_time", time.Since(evalStart).String()),
				zap.Float32(fmt.Sprintf("NDCG@%v", config.Eval.TopK), score.NDCG),
				zap.Float32(fmt.Sprintf("Recall@%v", config.Eval.TopK), score.Recall))
		}
		log.Logger().Debug(fmt.Sprintf("fit als %v/%v", ep, als.Params.Iterations), fields...)
		if config.Callback != nil {
			config.Callback(ep, score.Loss)
		}
	}
	log.Logger().Info("fit als complete",
		zap.Float32("loss", score.Loss),
		zap.Float32("NDCG", score.NDCG),
		zap.Float32("Recall", score.Recall))
	return score, nil
}

// solve updates every row of x against fixed y. It returns after all rows are solved.
func (als *ALS) solve(ctx context.Context, x, y [][]float32, confidence *dataset.SparseMatrix, jobs int) error {
	gram := Gram(y, als.Params.Factors)
	return parallel.Parallel(ctx, len(x), jobs, func(_, i int) error {
		if err := SolveRow(gram, y, confidence.Row(i), als.Params.Regularization, x[i]); err != nil {
			return errors.Annotatef(err, "row %d", i)
		}
		return nil
	})
}

// Loss returns the training loss of a weight matrix.
func (als *ALS) Loss(train *dataset.SparseMatrix) float32 {
	return als.loss(train.Scale(als.Params.Alpha))
}

func (als *ALS) loss(confidence *dataset.SparseMatrix) float32 {
	gram := Gram(als.ItemFactor, als.Params.Factors)
	k := als.Params.Factors
	x := make([]float64, k)
	xVec := mat.NewVecDense(k, x)
	var loss, reg float64
	for u, xu := range als.UserFactor {
		floats.ToFloat64(xu, x)
		// unobserved cells of the whole row: x^T (Y^T Y) x
		loss += mat.Inner(xVec, gram, xVec)
		for _, e := range confidence.Row(u) {
			p := float64(floats.Dot(xu, als.ItemFactor[e.Index]))
			c := float64(e.Value)
			loss += c*(1-p)*(1-p) - p*p
		}
		reg += float64(floats.SquaredNorm(xu))
	}
	for _, yi := range als.ItemFactor {
		reg += float64(floats.SquaredNorm(yi))
	}
	return float32(loss + float64(als.Params.Regularization)*reg)
}

func predictable(m *dataset.SparseMatrix) *bitset.BitSet {
	nRows, _ := m.Shape()
	flags := bitset.New(uint(nRows))
	for i := 0; i < nRows; i++ {
		if len(m.Row(i)) > 0 {
			flags.Set(uint(i))
		}
	}
	return flags
}

// itemGram returns Y^T Y of item factors, computed once and shared by readers.
func (als *ALS) itemGram() *mat.SymDense {
	als.cache.once.Do(func() {
		als.cache.gram = Gram(als.ItemFactor, als.Params.Factors)
	})
	return als.cache.gram
}
