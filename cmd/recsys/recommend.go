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

	"github.com/gorse-io/recsys/base/encoding"
	"github.com/gorse-io/recsys/base/log"
	"github.com/gorse-io/recsys/pipeline"
	"github.com/gorse-io/recsys/storage/blob"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recommendCommand = &cobra.Command{
	Use:   "recommend <user-id>",
	Short: "Print top recommendations for a user.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.Logger().Fatal("invalid user id", zap.String("user_id", args[0]), zap.Error(err))
		}
		n, _ := cmd.Flags().GetInt("n")
		cfg := loadConfig(cmd.Flags(), flagBinding{"artifact.location", "artifacts"})
		ctx, cancel := signalContext()
		defer cancel()
		store, err := blob.Open(cfg.Artifact.Location, cfg.Artifact)
		if err != nil {
			log.Logger().Fatal("failed to open artifact store", zap.String("location", cfg.Artifact.Location), zap.Error(err))
		}
		bundle, err := pipeline.LoadBundle(ctx, store)
		if err != nil {
			log.Logger().Fatal("failed to load artifact bundle", zap.Error(err))
		}
		recommendations, err := bundle.RecommendUser(userID, n)
		if err != nil {
			log.Logger().Fatal("failed to recommend", zap.Int64("user_id", userID), zap.Error(err))
		}
		// Render table
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("#", "Item", "Title", "Score")
		for i, r := range recommendations {
			if err = table.Append([]string{
				strconv.Itoa(i + 1),
				strconv.FormatInt(r.ItemID, 10),
				r.Title,
				encoding.FormatFloat32(r.Score),
			}); err != nil {
				log.Logger().Fatal("failed to render table", zap.Error(err))
			}
		}
		if err = table.Render(); err != nil {
			log.Logger().Fatal("failed to render table", zap.Error(err))
		}
		fmt.Printf("Recommended %d items for user %d\n", len(recommendations), userID)
	},
}

func init() {
	recommendCommand.Flags().IntP("n", "n", 10, "number of recommended items")
	recommendCommand.Flags().String("artifacts", "artifacts", "location of the artifact bundle")
	rootCommand.AddCommand(recommendCommand)
}
