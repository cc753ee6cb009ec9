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

package middleware

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"ec-recommender/internal/recommender"
	"ec-recommender/pkg/log"
	"ec-recommender/pkg/metrics"
)

// HeaderRequestID 请求 id 头
const HeaderRequestID = "X-Request-ID"

// Middleware HTTP 中间件集合
type Middleware struct {
	logger       *log.Logger
	allowOrigins []string
	limiter      *rate.Limiter
}

// Option 可选配置
type Option func(*Middleware)

// WithLogger 请求日志使用的 Logger
func WithLogger(l *log.Logger) Option {
	return func(m *Middleware) {
		m.logger = l
	}
}

// WithAllowOrigins CORS 允许的来源，空或包含 "*" 表示全部
func WithAllowOrigins(origins []string) Option {
	return func(m *Middleware) {
		m.allowOrigins = origins
	}
}

// WithRateLimit 全局每秒请求数，<=0 不限
func WithRateLimit(rps int) Option {
	return func(m *Middleware) {
		if rps > 0 {
			m.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

// NewMiddleware 创建中间件
func NewMiddleware(opts ...Option) *Middleware {
	m := &Middleware{}
	for _, o := range opts {
		o(m)
	}
	return m
}

// RequestID 读取或生成请求 id，写入响应头与 context，并把带 request_id 的 Logger 放入 context
func (m *Middleware) RequestID() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		id := strings.TrimSpace(string(ctx.GetHeader(HeaderRequestID)))
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set("request_id", id)
		ctx.Header(HeaderRequestID, id)

		c = recommender.WithRequestID(c, id)
		if m.logger != nil {
			c = log.WithContext(c, m.logger.With("request_id", id))
		}
		ctx.Next(c)
	}
}

// AccessLog 请求结束后记录一行访问日志
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		log.FromContext(c).Info("http request",
			"method", string(ctx.Method()),
			"path", string(ctx.Path()),
			"status", ctx.Response.StatusCode(),
			"client_ip", ctx.ClientIP(),
			"latency", time.Since(start).String(),
		)
	}
}

// CORS CORS 中间件
func (m *Middleware) CORS() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		origin := string(ctx.GetHeader("Origin"))
		if allowed := m.allowOrigin(origin); allowed != "" {
			ctx.Header("Access-Control-Allow-Origin", allowed)
			ctx.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			ctx.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
			ctx.Header("Access-Control-Expose-Headers", "X-Request-ID")
			ctx.Header("Access-Control-Max-Age", "86400")
		}
		if string(ctx.Method()) == consts.MethodOptions {
			ctx.AbortWithStatus(consts.StatusNoContent)
			return
		}
		ctx.Next(c)
	}
}

func (m *Middleware) allowOrigin(origin string) string {
	if len(m.allowOrigins) == 0 || slices.Contains(m.allowOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(m.allowOrigins, origin) {
		return origin
	}
	return ""
}

// RateLimit 令牌桶限流，超限返回 429
func (m *Middleware) RateLimit() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		if m.limiter != nil && !m.limiter.Allow() {
			metrics.RateLimitRejectedTotal.WithLabelValues("http").Inc()
			ctx.AbortWithStatusJSON(consts.StatusTooManyRequests, map[string]string{
				"error": "too many requests, please retry later",
			})
			return
		}
		ctx.Next(c)
	}
}
