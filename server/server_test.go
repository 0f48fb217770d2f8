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
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorse-io/recsys/base/log"
	"github.com/gorse-io/recsys/config"
	"github.com/gorse-io/recsys/dataset"
	"github.com/gorse-io/recsys/pipeline"
	"github.com/gorse-io/recsys/storage/blob"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ServerTestSuite struct {
	suite.Suite
	bundle *pipeline.Bundle
	server *Server
}

func (suite *ServerTestSuite) SetupSuite() {
	log.CloseLogger()
	// two groups of users, each interacting with its own half of the items
	var raw []dataset.RawInteraction
	for u := int64(0); u < 20; u++ {
		for i := int64(0); i < 5; i++ {
			if (u+i)%4 == 0 {
				continue
			}
			raw = append(raw, dataset.RawInteraction{
				UserID:    u,
				ItemID:    100 + (u%2)*5 + i,
				Rating:    4,
				Timestamp: u*10 + i,
			})
		}
	}
	titles := map[int64]string{100: "Toy Story (1995)", 101: "GoldenEye (1995)"}
	cfg := config.GetDefaultConfig()
	cfg.Train.Factors = 4
	cfg.Train.Iterations = 5
	cfg.Train.Alpha = 10
	cfg.Train.Regularization = 0.1
	cfg.Eval.TopK = 3
	var err error
	suite.bundle, err = pipeline.NewPipeline(cfg, blob.NewPOSIX(suite.T().TempDir())).Run(context.Background(), raw, titles)
	suite.Require().NoError(err)
}

func (suite *ServerTestSuite) SetupTest() {
	cfg := config.GetDefaultConfig().Server
	cfg.DefaultN = 3
	var err error
	suite.server, err = NewServer(cfg, suite.bundle)
	suite.Require().NoError(err)
}

func (suite *ServerTestSuite) marshal(v interface{}) string {
	s, err := json.Marshal(v)
	suite.NoError(err)
	return string(s)
}

func (suite *ServerTestSuite) TestHealth() {
	t := suite.T()
	apitest.New().
		Handler(suite.server.Handler()).
		Get("/api/health").
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(HealthStatus{
			Ready:     true,
			BundleID:  suite.bundle.Manifest.ID,
			CreatedAt: suite.bundle.Manifest.CreatedAt,
			NumUsers:  20,
			NumItems:  10,
		})).
		End()
}

func (suite *ServerTestSuite) TestGetRecommend() {
	t := suite.T()
	expected, err := suite.bundle.RecommendUser(0, 3)
	suite.NoError(err)
	apitest.New().
		Handler(suite.server.Handler()).
		Get("/api/recommend/0").
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
	expected, err = suite.bundle.RecommendUser(1, 5)
	suite.NoError(err)
	apitest.New().
		Handler(suite.server.Handler()).
		Get("/api/recommend/1").
		Query("n", "5").
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
	apitest.New().
		Handler(suite.server.Handler()).
		Get("/api/recommend/1").
		Query("n", "0").
		Expect(t).
		Status(http.StatusOK).
		Body(`[]`).
		End()
}

func (suite *ServerTestSuite) TestGetRecommend_Cache() {
	t := suite.T()
	before := testutil.ToFloat64(CacheHitsTotal)
	for i := 0; i < 2; i++ {
		apitest.New().
			Handler(suite.server.Handler()).
			Get("/api/recommend/2").
			Expect(t).
			Status(http.StatusOK).
			End()
	}
	suite.Equal(before+1, testutil.ToFloat64(CacheHitsTotal))

	// caching is disabled without ttl
	suite.server.Config.CacheTTL = 0
	before = testutil.ToFloat64(CacheHitsTotal)
	apitest.New().
		Handler(suite.server.Handler()).
		Get("/api/recommend/2").
		Expect(t).
		Status(http.StatusOK).
		End()
	suite.Equal(before, testutil.ToFloat64(CacheHitsTotal))
}

func (suite *ServerTestSuite) TestGetRecommend_Invalid() {
	t := suite.T()
	apitest.New().
		Handler(suite.server.Handler()).
		Get("/api/recommend/12345").
		Expect(t).
		Status(http.StatusNotFound).
		End()
	apitest.New().
		Handler(suite.server.Handler()).
		Get("/api/recommend/abc").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	apitest.New().
		Handler(suite.server.Handler()).
		Get("/api/recommend/0").
		Query("n", "many").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestPostRecommend() {
	t := suite.T()
	feedback := []pipeline.Feedback{
		{ItemID: 100, Rating: 5},
		{ItemID: 101, Rating: 4},
		{ItemID: 9999, Rating: 5},
	}
	expected, err := suite.bundle.RecommendFeedback(feedback, 2)
	suite.NoError(err)
	suite.Len(expected, 2)
	apitest.New().
		Handler(suite.server.Handler()).
		Post("/api/recommend").
		Query("n", "2").
		JSON(feedback).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
	apitest.New().
		Handler(suite.server.Handler()).
		Post("/api/recommend").
		JSON([]pipeline.Feedback{{ItemID: 100, Rating: -3}}).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	apitest.New().
		Handler(suite.server.Handler()).
		Post("/api/recommend").
		JSON(`{"item_id": "x"`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestRequestID() {
	t := suite.T()
	apitest.New().
		Handler(suite.server.Handler()).
		Get("/api/health").
		Header(requestIDHeader, "request-1").
		Expect(t).
		Status(http.StatusOK).
		Header(requestIDHeader, "request-1").
		End()
	apitest.New().
		Handler(suite.server.Handler()).
		Get("/api/health").
		Expect(t).
		Status(http.StatusOK).
		HeaderPresent(requestIDHeader).
		End()
}

func (suite *ServerTestSuite) TestMetrics() {
	t := suite.T()
	apitest.New().
		Handler(suite.server.Handler()).
		Get("/api/health").
		Expect(t).
		Status(http.StatusOK).
		End()
	suite.Greater(testutil.CollectAndCount(RequestsTotal), 0)
	apitest.New().
		Handler(suite.server.Handler()).
		Get("/metrics").
		Expect(t).
		Status(http.StatusOK).
		End()
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func TestNewServer_NilBundle(t *testing.T) {
	_, err := NewServer(config.GetDefaultConfig().Server, nil)
	assert.Error(t, err)
}

func TestServe(t *testing.T) {
	log.CloseLogger()
	bundle := &pipeline.Bundle{Manifest: pipeline.Manifest{ID: "test"}}
	cfg := config.GetDefaultConfig().Server
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	s, err := NewServer(cfg, bundle)
	assert.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- s.Serve(ctx)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
