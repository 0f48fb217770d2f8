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
	"github.com/gorse-io/recsys/pipeline"
	"github.com/gorse-io/recsys/server"
	"github.com/gorse-io/recsys/storage/blob"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Serve recommendations over HTTP.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd.Flags(),
			flagBinding{"artifact.location", "artifacts"},
			flagBinding{"server.host", "host"},
			flagBinding{"server.port", "port"})
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
		s, err := server.NewServer(cfg.Server, bundle)
		if err != nil {
			log.Logger().Fatal("failed to create server", zap.Error(err))
		}
		if err = s.Serve(ctx); err != nil {
			log.Logger().Fatal("failed to serve", zap.Error(err))
		}
		log.Logger().Info("stop server successfully")
	},
}

func init() {
	serveCommand.Flags().String("artifacts", "artifacts", "location of the artifact bundle")
	serveCommand.Flags().String("host", "0.0.0.0", "host of the server")
	serveCommand.Flags().Int("port", 8087, "port of the server")
	rootCommand.AddCommand(serveCommand)
}
