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
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/gorse-io/recsys/base"
	"github.com/gorse-io/recsys/base/log"
	"github.com/gorse-io/recsys/pipeline"
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// HealthStatus reports the bundle being served.
type HealthStatus struct {
	Ready     bool      `json:"ready"`
	BundleID  string    `json:"bundle_id"`
	CreatedAt time.Time `json:"created_at"`
	NumUsers  int       `json:"n_users"`
	NumItems  int       `json:"n_items"`
}

// CreateWebService creates web service.
func (s *Server) CreateWebService() *restful.WebService {
	ws := new(restful.WebService)
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(RequestIDFilter)
	ws.Filter(LogFilter)
	ws.Filter(MetricsFilter)

	ws.Route(ws.GET("/health").To(s.getHealth).
		Doc("Get status of the server.").
		Returns(http.StatusOK, "OK", HealthStatus{}).
		Writes(HealthStatus{}))
	ws.Route(ws.GET("/recommend/{user-id}").To(s.getRecommend).
		Doc("Get recommendation for a known user.").
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned items").DataType("integer")).
		Returns(http.StatusOK, "OK", []pipeline.Recommendation{}).
		Returns(http.StatusNotFound, "unknown user", nil).
		Writes([]pipeline.Recommendation{}))
	ws.Route(ws.POST("/recommend").To(s.postRecommend).
		Doc("Get recommendation for a new user by feedback.").
		Param(ws.QueryParameter("n", "number of returned items").DataType("integer")).
		Reads([]pipeline.Feedback{}).
		Returns(http.StatusOK, "OK", []pipeline.Recommendation{}).
		Writes([]pipeline.Recommendation{}))
	return ws
}

// RequestIDFilter assigns a request id unless the client sends one.
func RequestIDFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	requestID := req.HeaderParameter(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	resp.Header().Set(requestIDHeader, requestID)
	chain.ProcessFilter(req, resp)
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	chain.ProcessFilter(req, resp)
	log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
		zap.Int("status_code", resp.StatusCode()))
}

func MetricsFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)
	route := req.SelectedRoutePath()
	RequestSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
	RequestsTotal.WithLabelValues(route, strconv.Itoa(resp.StatusCode())).Inc()
}

// ParseInt parses integers from the query parameter.
func ParseInt(request *restful.Request, name string, fallback int) (value int, err error) {
	valueString := request.QueryParameter(name)
	value, err = strconv.Atoi(valueString)
	if err != nil && valueString == "" {
		value = fallback
		err = nil
	}
	return
}

func (s *Server) getHealth(_ *restful.Request, response *restful.Response) {
	Ok(response, HealthStatus{
		Ready:     true,
		BundleID:  s.bundle.Manifest.ID,
		CreatedAt: s.bundle.Manifest.CreatedAt,
		NumUsers:  s.bundle.UserMap.Count(),
		NumItems:  s.bundle.ItemMap.Count(),
	})
}

func (s *Server) getRecommend(request *restful.Request, response *restful.Response) {
	userID, err := strconv.ParseInt(request.PathParameter("user-id"), 10, 64)
	if err != nil {
		BadRequest(response, err)
		return
	}
	n, err := ParseInt(request, "n", s.Config.DefaultN)
	if err != nil {
		BadRequest(response, err)
		return
	}
	key := fmt.Sprintf("%d/%d", userID, n)
	if s.Config.CacheTTL > 0 {
		if item := s.cache.Get(key); item != nil {
			CacheHitsTotal.Inc()
			Ok(response, item.Value())
			return
		}
	}
	recommendations, err := s.bundle.RecommendUser(userID, n)
	if errors.Is(err, base.ErrUnknownIdentifier) {
		PageNotFound(response, err)
		return
	} else if err != nil {
		InternalServerError(response, err)
		return
	}
	if s.Config.CacheTTL > 0 {
		s.cache.Set(key, recommendations, ttlcache.DefaultTTL)
	}
	Ok(response, recommendations)
}

func (s *Server) postRecommend(request *restful.Request, response *restful.Response) {
	n, err := ParseInt(request, "n", s.Config.DefaultN)
	if err != nil {
		BadRequest(response, err)
		return
	}
	var feedback []pipeline.Feedback
	if err = request.ReadEntity(&feedback); err != nil {
		BadRequest(response, err)
		return
	}
	recommendations, err := s.bundle.RecommendFeedback(feedback, n)
	if errors.Is(err, base.ErrInvalidWeight) {
		BadRequest(response, err)
		return
	} else if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, recommendations)
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	log.ResponseLogger(response).Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	if err := response.WriteError(http.StatusNotFound, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content interface{}) {
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}
