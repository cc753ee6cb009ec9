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

package api

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"google.golang.org/grpc"

	apigrpc "ec-recommender/internal/api/grpc"
	"ec-recommender/internal/api/http"
	"ec-recommender/internal/api/http/middleware"
	"ec-recommender/internal/app"
	appconfig "ec-recommender/pkg/config"
	"ec-recommender/pkg/tracing"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware 与可选 gRPC）
type App struct {
	bootstrap *app.Bootstrap
	router    *http.Router

	// mu 保护以下字段：Run 与 Shutdown 运行在不同 goroutine
	mu           sync.Mutex
	closed       bool
	hertz        *server.Hertz
	grpcServer   *grpcRun
	otelProvider otelProviderShutdown
}

// grpcRun 持有 gRPC Server 与 Listener，用于 GracefulStop 时关闭
type grpcRun struct {
	srv *grpc.Server
	lis net.Listener
}

func (g *grpcRun) GracefulStop() {
	if g.srv != nil {
		g.srv.GracefulStop()
	}
	if g.lis != nil {
		_ = g.lis.Close()
	}
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	mw := middleware.NewMiddleware(
		middleware.WithLogger(bootstrap.Logger),
		middleware.WithAllowOrigins(cfg.API.CORS.AllowOrigins),
		middleware.WithRateLimit(cfg.API.Middleware.RateLimitRPS),
	)
	router := http.NewRouter(http.NewHandler(bootstrap.Service), mw)
	router.EnableCORS(cfg.API.CORS.Enable)
	router.EnableRateLimit(cfg.API.Middleware.RateLimit)

	if cfg.API.Middleware.Auth {
		if cfg.API.Middleware.JWTKey == "" {
			return nil, fmt.Errorf("api.middleware.auth 已启用但未配置 jwt_key")
		}
		timeout, err := appconfig.ParseDuration(cfg.API.Middleware.JWTTimeout, 0)
		if err != nil {
			return nil, err
		}
		maxRefresh, err := appconfig.ParseDuration(cfg.API.Middleware.JWTMaxRefresh, 0)
		if err != nil {
			return nil, err
		}
		auth, err := middleware.NewJWTAuth([]byte(cfg.API.Middleware.JWTKey), timeout, maxRefresh)
		if err != nil {
			return nil, fmt.Errorf("初始化 JWT 失败: %w", err)
		}
		router.SetJWT(auth)
	}

	return &App{bootstrap: bootstrap, router: router}, nil
}

// Run 启动 HTTP 服务（阻塞），addr 如 ":8000"
func (a *App) Run(addr string) error {
	logger := a.bootstrap.Logger
	logger.Info("API 服务启动", "addr", addr)

	// Hertz 内部日志与业务日志共用输出与级别
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(logger.Output()),
		hertzslog.WithLevel(logger.Level()),
	))

	h, err := a.start(addr)
	if err != nil || h == nil {
		return err
	}
	return h.Run()
}

// start 在锁内完成装配；已 Shutdown 时返回 nil
func (a *App) start(addr string) (*server.Hertz, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, nil
	}
	cfg := a.bootstrap.Config

	var opts []config.Option
	if cfg.Monitoring.Tracing.Enable {
		tracerOpt, err := a.setupTracing(cfg.Monitoring.Tracing)
		if err != nil {
			return nil, err
		}
		if tracerOpt != nil {
			opts = append(opts, *tracerOpt)
		}
	}

	if cfg.API.Grpc.Enable {
		g, err := startGRPC(a.bootstrap, cfg.API.Grpc.Port)
		if err != nil {
			return nil, fmt.Errorf("启动 gRPC 服务失败: %w", err)
		}
		a.grpcServer = g
		a.bootstrap.Logger.Info("gRPC 服务启动", "port", cfg.API.Grpc.Port)
	}

	a.hertz = a.router.Build(addr, opts...)
	return a.hertz, nil
}

// setupTracing 启用 OpenTelemetry；grpc 导出走 hertz-contrib provider，http 导出走 pkg/tracing。
// 调用方持有 a.mu
func (a *App) setupTracing(tc appconfig.TracingConfig) (*config.Option, error) {
	logger := a.bootstrap.Logger
	endpoint := tc.ExportEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		logger.Warn("链路追踪已启用但未配置 export_endpoint，跳过")
		return nil, nil
	}

	switch tc.Exporter {
	case "http":
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    tc.ServiceName,
			ExportEndpoint: endpoint,
			Insecure:       tc.Insecure,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化 tracer 失败: %w", err)
		}
		a.otelProvider = tp
	case "", "grpc":
		opts := []provider.Option{
			provider.WithServiceName(tc.ServiceName),
			provider.WithExportEndpoint(endpoint),
		}
		if tc.Insecure {
			opts = append(opts, provider.WithInsecure())
		}
		a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %q", tc.Exporter)
	}

	tracerOpt, tcfg := hertztracing.NewServerTracer()
	a.router.Use(hertztracing.ServerMiddleware(tcfg))
	logger.Info("链路追踪已启用", "service_name", tc.ServiceName, "endpoint", endpoint, "exporter", tc.Exporter)
	return &tracerOpt, nil
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	g, h, p := a.grpcServer, a.hertz, a.otelProvider
	a.mu.Unlock()

	if g != nil {
		g.GracefulStop()
	}
	var err error
	if h != nil {
		err = h.Shutdown(ctx)
	}
	if p != nil {
		_ = p.Shutdown(ctx)
	}
	_ = a.bootstrap.Close()
	return err
}

// startGRPC 创建并启动 gRPC 服务（在 goroutine 中 Serve）
func startGRPC(b *app.Bootstrap, port int) (*grpcRun, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	srv := grpc.NewServer()
	apigrpc.NewServer(b.Service).Register(srv)
	go func() {
		if err := srv.Serve(lis); err != nil {
			b.Logger.Error("gRPC 服务异常退出", "error", err)
		}
	}()
	return &grpcRun{srv: srv, lis: lis}, nil
}
