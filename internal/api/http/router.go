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
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/hertz-contrib/jwt"

	"ec-recommender/internal/api/http/middleware"
)

// Router 路由装配
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	jwt        *jwt.HertzJWTMiddleware
	cors       bool
	rateLimit  bool
	global     []app.HandlerFunc
}

// NewRouter 创建 Router
func NewRouter(h *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: h, middleware: mw}
}

// SetJWT 启用推荐接口的 JWT 校验
func (r *Router) SetJWT(j *jwt.HertzJWTMiddleware) { r.jwt = j }

// EnableCORS 启用 CORS
func (r *Router) EnableCORS(enable bool) { r.cors = enable }

// EnableRateLimit 启用全局限流
func (r *Router) EnableRateLimit(enable bool) { r.rateLimit = enable }

// Use 追加全局中间件，先于内置中间件执行（如链路追踪）；需在 Build 前调用
func (r *Router) Use(mw ...app.HandlerFunc) { r.global = append(r.global, mw...) }

// Build 创建 Hertz 实例并注册路由；opts 透传给 server.Default（如 tracer）
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(opts...)

	if len(r.global) > 0 {
		h.Use(r.global...)
	}
	h.Use(r.middleware.RequestID())
	h.Use(r.middleware.AccessLog())
	if r.cors {
		h.Use(r.middleware.CORS())
		// 预检请求由 CORS 中间件直接应答
		preflight := func(context.Context, *app.RequestContext) {}
		h.OPTIONS("/", preflight)
		h.OPTIONS("/api/recommend", preflight)
	}

	h.GET("/api/health", r.handler.HealthCheck)
	h.GET("/metrics", r.handler.Metrics)

	recommend := []app.HandlerFunc{}
	if r.rateLimit {
		recommend = append(recommend, r.middleware.RateLimit())
	}
	if r.jwt != nil {
		recommend = append(recommend, r.jwt.MiddlewareFunc())
	}
	recommend = append(recommend, r.handler.Recommend)

	h.POST("/", recommend...)
	h.GET("/", recommend...)
	h.POST("/api/recommend", recommend...)
	return h
}
