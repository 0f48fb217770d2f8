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
	"os"
	"strconv"
	"time"

	"github.com/gorse-io/recsys/base/encoding"
	"github.com/gorse-io/recsys/base/log"
	"github.com/gorse-io/recsys/model/cf"
	"github.com/gorse-io/recsys/pipeline"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tuneCommand = &cobra.Command{
	Use:   "tune",
	Short: "Search hyper-parameters by TPE.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd.Flags(), append(dataFlags,
			flagBinding{"train.trials", "trials"},
			flagBinding{"train.jobs", "jobs"},
			flagBinding{"eval.top_k", "top-k"})...)
		ctx, cancel := signalContext()
		defer cancel()
		p := pipeline.NewPipeline(cfg, nil)
		p.Verbose = true
		raw, titles, err := p.Load(ctx)
		if err != nil {
			log.Logger().Fatal("failed to load dataset", zap.Error(err))
		}
		prepared, _, err := p.Prepare(raw, titles)
		if err != nil {
			log.Logger().Fatal("failed to prepare dataset", zap.Error(err))
		}
		// Search
		start := time.Now()
		result, err := cf.Tune(ctx, prepared.Train, prepared.TestPairs, cfg.Train.Params(), cfg.Train.Trials, cfg.FitConfig())
		if err != nil {
			log.Logger().Fatal("failed to tune hyper-parameters", zap.Error(err))
		}
		elapsed := time.Since(start)
		// Render table
		topK := cfg.Eval.TopK
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("#", fmt.Sprintf("NDCG@%d", topK), fmt.Sprintf("Recall@%d", topK), "Factors", "Regularization", "Alpha")
		for i := range result.Params {
			score, params := result.Scores[i], result.Params[i]
			if err = table.Append([]string{
				strconv.Itoa(i),
				encoding.FormatFloat32(score.NDCG),
				encoding.FormatFloat32(score.Recall),
				strconv.Itoa(params.Factors),
				encoding.FormatFloat32(params.Regularization),
				encoding.FormatFloat32(params.Alpha),
			}); err != nil {
				log.Logger().Fatal("failed to render table", zap.Error(err))
			}
		}
		if err = table.Render(); err != nil {
			log.Logger().Fatal("failed to render table", zap.Error(err))
		}
		log.Logger().Info("complete hyper-parameter search",
			zap.Int("best_index", result.BestIndex),
			zap.Any("best_params", result.BestParams),
			zap.Float32("best_ndcg", result.BestScore.NDCG),
			zap.Duration("elapsed", elapsed))
	},
}

func init() {
	flags := tuneCommand.Flags()
	flags.String("data-dir", "data", "directory of datasets")
	flags.String("dataset", "ml-100k", "name of the built-in dataset")
	flags.Int("trials", 10, "number of trials")
	flags.Int("jobs", 1, "number of workers")
	flags.Int("top-k", 10, "length of recommendation lists for evaluation")
	rootCommand.AddCommand(tuneCommand)
}
