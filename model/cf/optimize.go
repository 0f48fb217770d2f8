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
	"time"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/recsys/base/log"
	"github.com/gorse-io/recsys/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// ParamsSearchResult contains the return of hyper-parameter search.
type ParamsSearchResult struct {
	BestParams Params
	BestScore  Score
	BestIndex  int
	Scores     []Score
	Params     []Params
}

func (r *ParamsSearchResult) AddScore(params Params, score Score) {
	if len(r.Scores) == 0 || score.NDCG > r.BestScore.NDCG {
		r.BestScore = score
		r.BestParams = params
		r.BestIndex = len(r.Scores)
	}
	r.Scores = append(r.Scores, score)
	r.Params = append(r.Params, params)
}

// SuggestParams samples factors, regularization and alpha. Other fields are kept from base.
func SuggestParams(trial goptuna.Trial, base Params) (Params, error) {
	params := base
	factors, err := trial.SuggestDiscreteFloat("factors", 16, 128, 16)
	if err != nil {
		return params, errors.Trace(err)
	}
	params.Factors = int(factors)
	reg, err := trial.SuggestLogFloat("regularization", 0.001, 1)
	if err != nil {
		return params, errors.Trace(err)
	}
	params.Regularization = float32(reg)
	alpha, err := trial.SuggestLogFloat("alpha", 1, 100)
	if err != nil {
		return params, errors.Trace(err)
	}
	params.Alpha = float32(alpha)
	return params, nil
}

// ParamsSearch fits a model per trial and scores it by NDCG on test pairs.
type ParamsSearch struct {
	ctx     context.Context
	train   *dataset.SparseMatrix
	test    []dataset.TestPair
	base    Params
	config  *FitConfig
	suggest func(goptuna.Trial, Params) (Params, error)
	result  ParamsSearchResult
}

func NewParamsSearch(ctx context.Context, train *dataset.SparseMatrix, test []dataset.TestPair, base Params, config *FitConfig) *ParamsSearch {
	return &ParamsSearch{
		ctx:     ctx,
		train:   train,
		test:    test,
		base:    base,
		config:  config,
		suggest: SuggestParams,
	}
}

func (ps *ParamsSearch) Objective(trial goptuna.Trial) (float64, error) {
	params, err := ps.suggest(trial, ps.base)
	if err != nil {
		return 0, errors.Trace(err)
	}
	m, err := NewALS(params)
	if err != nil {
		return 0, errors.Trace(err)
	}
	log.Logger().Info(fmt.Sprintf("search params (%v)", len(ps.result.Scores)+1), zap.Any("params", params))
	score, err := m.Fit(ps.ctx, ps.train, ps.test, ps.config)
	if err != nil {
		return 0, errors.Trace(err)
	}
	ps.result.AddScore(params, score)
	return float64(score.NDCG), nil
}

func (ps *ParamsSearch) Result() ParamsSearchResult {
	return ps.result
}

// Tune searches hyper-parameters with a TPE sampler, maximizing NDCG.
func Tune(ctx context.Context, train *dataset.SparseMatrix, test []dataset.TestPair, base Params, trials int, config *FitConfig) (ParamsSearchResult, error) {
	if len(test) == 0 {
		return ParamsSearchResult{}, errors.NotValidf("empty test pairs for tuning")
	}
	startTime := time.Now()
	search := NewParamsSearch(ctx, train, test, base, config)
	study, err := goptuna.CreateStudy("recsys-als",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMaximize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		return ParamsSearchResult{}, errors.Trace(err)
	}
	if err = study.Optimize(search.Objective, trials); err != nil {
		return ParamsSearchResult{}, errors.Trace(err)
	}
	result := search.Result()
	log.Logger().Info("complete params search",
		zap.Float32("NDCG", result.BestScore.NDCG),
		zap.Float32("Recall", result.BestScore.Recall),
		zap.Any("params", result.BestParams),
		zap.String("search_time", time.Since(startTime).String()))
	return result, nil
}
