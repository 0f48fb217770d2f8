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
	"github.com/gorse-io/recsys/base/log"
	"github.com/gorse-io/recsys/dataset"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var downloadCommand = &cobra.Command{
	Use:   "download",
	Short: "Download the built-in dataset.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd.Flags(), dataFlags...)
		ctx, cancel := signalContext()
		defer cancel()
		if err := dataset.Download(ctx, cfg.Data.Dataset, cfg.Data.Dir, true); err != nil {
			log.Logger().Fatal("failed to download dataset", zap.String("dataset", cfg.Data.Dataset), zap.Error(err))
		}
	},
}

var dataFlags = []flagBinding{
	{"data.dir", "data-dir"},
	{"data.dataset", "dataset"},
}

func init() {
	downloadCommand.Flags().String("data-dir", "data", "directory of datasets")
	downloadCommand.Flags().String("dataset", "ml-100k", "name of the built-in dataset")
	rootCommand.AddCommand(downloadCommand)
}
