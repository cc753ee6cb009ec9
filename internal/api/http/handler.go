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

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/prometheus/common/expfmt"

	"ec-recommender/internal/recommender"
	"ec-recommender/pkg/metrics"
)

// Recommender 处理一条用户输入；*recommender.Service 实现
type Recommender interface {
	Recommend(ctx context.Context, userResponse string) recommender.Reply
}

// Handler HTTP 处理器
type Handler struct {
	recommender Recommender
}

// NewHandler 创建 Handler
func NewHandler(r Recommender) *Handler {
	return &Handler{recommender: r}
}

// RecommendRequest POST / 与 POST /api/recommend 请求体
type RecommendRequest struct {
	UserResponse string `json:"user_response"`
}

// RecommendResponse 响应体；失败时也是 reply，内容为通用提示
type RecommendResponse struct {
	Reply string `json:"reply"`
}

// Recommend 推荐接口。缺失或非法的请求体按空输入处理，返回兜底回复。
// POST /, GET /, POST /api/recommend
func (h *Handler) Recommend(c context.Context, ctx *app.RequestContext) {
	var req RecommendRequest
	if body := bytes.TrimSpace(ctx.Request.Body()); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			hlog.CtxWarnf(c, "invalid recommend request body: %v", err)
			req = RecommendRequest{}
		}
	}

	reply := h.recommender.Recommend(c, req.UserResponse)
	ctx.JSON(StatusFor(reply.Outcome), RecommendResponse{Reply: reply.Text})
}

// StatusFor 结果到 HTTP 状态码
func StatusFor(o recommender.Outcome) int {
	switch o {
	case recommender.OutcomeOK, recommender.OutcomeFallback:
		return consts.StatusOK
	case recommender.OutcomeTimeout:
		return consts.StatusGatewayTimeout
	case recommender.OutcomeCancelled:
		return consts.StatusServiceUnavailable
	default:
		return consts.StatusBadGateway
	}
}

// HealthCheck GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

// Metrics GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		hlog.CtxErrorf(c, "write metrics: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to gather metrics"})
		return
	}
	ctx.Data(consts.StatusOK, string(expfmt.FmtText), buf.Bytes())
}
