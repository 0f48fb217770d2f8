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

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/gorse-io/recsys/base/log"
	"github.com/gorse-io/recsys/config"
	"github.com/gorse-io/recsys/pipeline"
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves recommendations from a loaded bundle. The bundle is read-only, so requests are served concurrently.
type Server struct {
	Config    config.ServerConfig
	bundle    *pipeline.Bundle
	cache     *ttlcache.Cache[string, []pipeline.Recommendation]
	container *restful.Container
}

// NewServer creates a server for a bundle. A server never starts without a bundle.
func NewServer(cfg config.ServerConfig, bundle *pipeline.Bundle) (*Server, error) {
	if bundle == nil {
		return nil, errors.NotValidf("nil bundle")
	}
	s := &Server{
		Config: cfg,
		bundle: bundle,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, []pipeline.Recommendation](cfg.CacheTTL),
			ttlcache.WithDisableTouchOnHit[string, []pipeline.Recommendation](),
		),
		container: restful.NewContainer(),
	}
	s.container.Add(s.CreateWebService())
	s.container.Handle("/metrics", promhttp.Handler())
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.container
}

// Serve listens on the configured address until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	go s.cache.Start()
	defer s.cache.Stop()
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port),
		Handler: s.container,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Logger().Error("failed to shutdown http server", zap.Error(err))
		}
	}()
	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s", httpServer.Addr)),
		zap.String("bundle", s.bundle.Manifest.ID))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Trace(err)
	}
	return nil
}
