// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ec-recommender/internal/api/http/middleware"
	"ec-recommender/internal/recommender"
	"ec-recommender/pkg/metrics"
)

// fakeRecommender 记录输入，按输入返回预置结果
type fakeRecommender struct {
	mu     sync.Mutex
	inputs []string
	reply  recommender.Reply
}

func (f *fakeRecommender) Recommend(_ context.Context, in string) recommender.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if strings.TrimSpace(in) == "" {
		return recommender.Reply{Text: recommender.FallbackReply, Outcome: recommender.OutcomeFallback}
	}
	return f.reply
}

func buildRouterForTest(f *fakeRecommender, setup func(r *Router)) *server.Hertz {
	r := NewRouter(NewHandler(f), middleware.NewMiddleware(middleware.WithRateLimit(1)))
	if setup != nil {
		setup(r)
	}
	return r.Build(":0")
}

func doJSON(h *server.Hertz, method, path, body string, headers ...ut.Header) *ut.ResponseRecorder {
	b := []byte(body)
	return ut.PerformRequest(h.Engine, method, path, &ut.Body{Body: bytes.NewReader(b), Len: len(b)}, headers...)
}

func decodeReply(t *testing.T, w *ut.ResponseRecorder) string {
	t.Helper()
	var resp RecommendResponse
	require.NoError(t, json.Unmarshal(w.Result().Body(), &resp))
	return resp.Reply
}

func TestRouter_RecommendRoutes(t *testing.T) {
	f := &fakeRecommender{reply: recommender.Reply{Text: "<div>cards</div>", Outcome: recommender.OutcomeOK}}
	h := buildRouterForTest(f, nil)

	for _, tc := range []struct{ method, path string }{
		{"POST", "/"},
		{"GET", "/"},
		{"POST", "/api/recommend"},
	} {
		w := doJSON(h, tc.method, tc.path, `{"user_response":"I love robots"}`, ut.Header{Key: "Content-Type", Value: "application/json"})
		assert.Equal(t, 200, w.Result().StatusCode(), tc.method+" "+tc.path)
		assert.Equal(t, "<div>cards</div>", decodeReply(t, w))
		assert.NotEmpty(t, w.Result().Header.Get(middleware.HeaderRequestID))
	}
	assert.Equal(t, []string{"I love robots", "I love robots", "I love robots"}, f.inputs)
}

func TestRouter_FallbackForMissingInput(t *testing.T) {
	f := &fakeRecommender{}
	h := buildRouterForTest(f, nil)

	for _, body := range []string{"", "{}", `{"user_response":""}`, `{"user_response":"   "}`, `not json`, `{"user_response": 5}`} {
		w := doJSON(h, "POST", "/", body)
		assert.Equal(t, 200, w.Result().StatusCode(), body)
		assert.Equal(t, recommender.FallbackReply, decodeReply(t, w), body)
	}
}

func TestRouter_FailureStatus(t *testing.T) {
	tests := []struct {
		outcome recommender.Outcome
		status  int
	}{
		{recommender.OutcomeUnavailable, 502},
		{recommender.OutcomeMalformed, 502},
		{recommender.OutcomeLoopExceeded, 502},
		{recommender.OutcomeNoAnswer, 502},
		{recommender.OutcomeTimeout, 504},
		{recommender.OutcomeCancelled, 503},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			f := &fakeRecommender{reply: recommender.Reply{Text: recommender.FailureReply, Outcome: tt.outcome}}
			h := buildRouterForTest(f, nil)
			w := doJSON(h, "POST", "/api/recommend", `{"user_response":"robots"}`)
			assert.Equal(t, tt.status, w.Result().StatusCode())
			assert.Equal(t, recommender.FailureReply, decodeReply(t, w))
		})
	}
}

func TestRouter_RequestIDPropagated(t *testing.T) {
	h := buildRouterForTest(&fakeRecommender{}, nil)
	w := doJSON(h, "POST", "/", "{}", ut.Header{Key: middleware.HeaderRequestID, Value: "req-42"})
	assert.Equal(t, "req-42", w.Result().Header.Get(middleware.HeaderRequestID))
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	h := buildRouterForTest(&fakeRecommender{}, nil)

	w := doJSON(h, "GET", "/api/health", "")
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.JSONEq(t, `{"status":"ok"}`, string(w.Result().Body()))

	w = doJSON(h, "GET", "/metrics", "")
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "ec_inflight_runs")
}

func TestRouter_RateLimit(t *testing.T) {
	f := &fakeRecommender{reply: recommender.Reply{Text: "ok", Outcome: recommender.OutcomeOK}}
	h := buildRouterForTest(f, func(r *Router) { r.EnableRateLimit(true) })

	rejected := testutil.ToFloat64(metrics.RateLimitRejectedTotal.WithLabelValues("http"))
	statuses := []int{}
	for i := 0; i < 3; i++ {
		w := doJSON(h, "POST", "/api/recommend", `{"user_response":"x"}`)
		statuses = append(statuses, w.Result().StatusCode())
	}
	assert.Equal(t, 200, statuses[0])
	assert.Contains(t, statuses[1:], 429)
	var n429 float64
	for _, st := range statuses {
		if st == 429 {
			n429++
		}
	}
	assert.Equal(t, rejected+n429, testutil.ToFloat64(metrics.RateLimitRejectedTotal.WithLabelValues("http")))

	// 健康检查不受限流影响
	w := doJSON(h, "GET", "/api/health", "")
	assert.Equal(t, 200, w.Result().StatusCode())
}

func TestRouter_CORS(t *testing.T) {
	h := buildRouterForTest(&fakeRecommender{}, func(r *Router) { r.EnableCORS(true) })

	w := doJSON(h, "OPTIONS", "/api/recommend", "", ut.Header{Key: "Origin", Value: "https://example.com"})
	assert.Equal(t, 204, w.Result().StatusCode())
	assert.Equal(t, "*", w.Result().Header.Get("Access-Control-Allow-Origin"))

	w = doJSON(h, "POST", "/", "{}", ut.Header{Key: "Origin", Value: "https://example.com"})
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "*", w.Result().Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_JWTRequired(t *testing.T) {
	auth, err := middleware.NewJWTAuth([]byte("test-key"), time.Hour, time.Hour)
	require.NoError(t, err)
	f := &fakeRecommender{reply: recommender.Reply{Text: "ok", Outcome: recommender.OutcomeOK}}
	h := buildRouterForTest(f, func(r *Router) { r.SetJWT(auth) })

	w := doJSON(h, "POST", "/api/recommend", `{"user_response":"x"}`)
	assert.Equal(t, 401, w.Result().StatusCode())

	w = doJSON(h, "POST", "/api/recommend", `{"user_response":"x"}`, ut.Header{Key: "Authorization", Value: "Bearer not-a-token"})
	assert.Equal(t, 401, w.Result().StatusCode())
	assert.Empty(t, f.inputs)

	w = doJSON(h, "GET", "/api/health", "")
	assert.Equal(t, 200, w.Result().StatusCode())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 200, StatusFor(recommender.OutcomeOK))
	assert.Equal(t, 200, StatusFor(recommender.OutcomeFallback))
	assert.Equal(t, 502, StatusFor(recommender.Outcome("other")))
}
