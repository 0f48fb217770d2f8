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

package main

import (
	"fmt"

	"github.com/gorse-io/recsys/base/log"
	"github.com/gorse-io/recsys/pipeline"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainFlags = []flagBinding{
	{"data.dir", "data-dir"},
	{"data.dataset", "dataset"},
	{"data.weight", "weight"},
	{"data.filter", "filter"},
	{"train.factors", "factors"},
	{"train.regularization", "regularization"},
	{"train.iterations", "iterations"},
	{"train.alpha", "alpha"},
	{"train.random_state", "random-state"},
	{"train.jobs", "jobs"},
	{"eval.top_k", "top-k"},
	{"artifact.location", "artifacts"},
}

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train a model and save the artifact bundle.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd.Flags(), trainFlags...)
		ctx, cancel := signalContext()
		defer cancel()
		bar := progressbar.Default(int64(cfg.Train.Iterations), "Training")
		bundle, err := pipeline.Train(ctx, cfg, true, func(int, float32) {
			_ = bar.Add(1)
		})
		if err != nil {
			log.Logger().Fatal("failed to train model", zap.Error(err))
		}
		_ = bar.Finish()
		for name, value := range bundle.Metrics {
			fmt.Printf("%s = %.4f\n", name, value)
		}
	},
}

func init() {
	flags := trainCommand.Flags()
	flags.String("data-dir", "data", "directory of datasets")
	flags.String("dataset", "ml-100k", "name of the built-in dataset")
	flags.String("weight", "log", "confidence weight policy (binary, log or raw)")
	flags.String("filter", "", "expression selecting interactions to keep")
	flags.Int("factors", 64, "number of latent factors")
	flags.Float32("regularization", 0.01, "L2 regularization")
	flags.Int("iterations", 20, "number of iterations")
	flags.Float32("alpha", 40, "confidence scaling")
	flags.Int64("random-state", 0, "seed of the random generator")
	flags.Int("jobs", 1, "number of workers")
	flags.Int("top-k", 10, "length of recommendation lists for evaluation")
	flags.String("artifacts", "artifacts", "location of the artifact bundle")
	rootCommand.AddCommand(trainCommand)
}
