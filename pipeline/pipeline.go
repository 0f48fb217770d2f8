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

package pipeline

import (
	"context"
	"time"

	"github.com/gorse-io/recsys/base/log"
	"github.com/gorse-io/recsys/config"
	"github.com/gorse-io/recsys/dataset"
	"github.com/gorse-io/recsys/model/cf"
	"github.com/gorse-io/recsys/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Pipeline trains a model and publishes it as a bundle: prepare, fit, evaluate, then save. Steps run sequentially
// and a failed step persists nothing.
type Pipeline struct {
	Config *config.Config
	Store  blob.Store
	// Verbose renders a progress bar while downloading.
	Verbose bool
	// Callback is called after every training iteration.
	Callback func(iteration int, loss float32)
}

func NewPipeline(cfg *config.Config, store blob.Store) *Pipeline {
	return &Pipeline{Config: cfg, Store: store}
}

// Load downloads the configured built-in dataset if needed and reads it.
func (p *Pipeline) Load(ctx context.Context) ([]dataset.RawInteraction, map[int64]string, error) {
	defer timer(StepLoad)()
	if err := dataset.Download(ctx, p.Config.Data.Dataset, p.Config.Data.Dir, p.Verbose); err != nil {
		return nil, nil, errors.Trace(err)
	}
	raw, titles, err := dataset.LoadBuiltIn(p.Config.Data.Dir, p.Config.Data.Dataset)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return raw, titles, nil
}

// Prepare applies the configured weight policy and filter to raw interactions, then encodes and splits them.
func (p *Pipeline) Prepare(raw []dataset.RawInteraction, titles map[int64]string) (*dataset.Prepared, dataset.WeightPolicy, error) {
	defer timer(StepPrepare)()
	weight, err := dataset.ParseWeightPolicy(p.Config.Data.Weight)
	if err != nil {
		return nil, weight, errors.Trace(err)
	}
	filter, err := dataset.NewFilter(p.Config.Data.Filter)
	if err != nil {
		return nil, weight, errors.Trace(err)
	}
	prepared, err := dataset.Prepare(raw, titles, dataset.PrepareOptions{Weight: weight, Filter: filter})
	if err != nil {
		return nil, weight, errors.Trace(err)
	}
	return prepared, weight, nil
}

// Run trains on raw interactions and saves the bundle.
func (p *Pipeline) Run(ctx context.Context, raw []dataset.RawInteraction, titles map[int64]string) (*Bundle, error) {
	start := time.Now()
	prepared, weight, err := p.Prepare(raw, titles)
	if err != nil {
		return nil, errors.Trace(err)
	}

	// fit
	done := timer(StepFit)
	model, err := cf.NewALS(p.Config.Train.Params())
	if err != nil {
		return nil, errors.Trace(err)
	}
	fitConfig := p.Config.FitConfig().SetCallback(p.Callback)
	if _, err = model.Fit(ctx, prepared.Train, nil, fitConfig); err != nil {
		return nil, errors.Annotate(err, "failed to fit model")
	}
	done()

	// evaluate
	done = timer(StepEvaluate)
	evalConfig := p.Config.EvalConfig()
	score, err := cf.Evaluate(ctx, model, prepared.Train, prepared.TestPairs, evalConfig)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ScoreVec.WithLabelValues("ndcg").Set(float64(score.NDCG))
	ScoreVec.WithLabelValues("recall").Set(float64(score.Recall))
	done()

	// save
	done = timer(StepSave)
	bundle := NewBundle(p.Config.Data.Dataset, weight, prepared, model, score, evalConfig.TopK)
	if err = SaveBundle(ctx, p.Store, bundle); err != nil {
		return nil, errors.Trace(err)
	}
	done()

	TotalSeconds.Set(time.Since(start).Seconds())
	log.Logger().Info("complete training pipeline",
		zap.String("bundle", bundle.Manifest.ID),
		zap.Any("metrics", bundle.Metrics),
		zap.Duration("elapsed", time.Since(start)))
	return bundle, nil
}

// Train loads the configured dataset and runs the pipeline against the configured artifact location.
// The callback, if any, is called after every training iteration.
func Train(ctx context.Context, cfg *config.Config, verbose bool, callback func(iteration int, loss float32)) (*Bundle, error) {
	store, err := blob.Open(cfg.Artifact.Location, cfg.Artifact)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open artifact store %s", cfg.Artifact.Location)
	}
	p := NewPipeline(cfg, store)
	p.Verbose = verbose
	p.Callback = callback
	raw, titles, err := p.Load(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "failed to load dataset")
	}
	return p.Run(ctx, raw, titles)
}
