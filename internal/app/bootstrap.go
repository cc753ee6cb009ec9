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

package app

import (
	"context"
	"fmt"

	"ec-recommender/internal/agent"
	"ec-recommender/internal/model/llm"
	"ec-recommender/internal/recommender"
	"ec-recommender/internal/tool/registry"
	"ec-recommender/internal/tool/websearch"
	"ec-recommender/pkg/config"
	"ec-recommender/pkg/log"
	"ec-recommender/pkg/secrets"
)

// Bootstrap 统一初始化：日志、密钥、模型、工具、推荐循环
type Bootstrap struct {
	Config  *config.Config
	Logger  *log.Logger
	Secrets secrets.Store
	Tools   *registry.Registry
	Loop    *agent.Loop
	Service *recommender.Service
}

// NewBootstrap 根据配置装配推荐服务
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	store, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Vault: secrets.VaultConfig{
			Address:   cfg.Secrets.Vault.Address,
			Token:     cfg.Secrets.Vault.Token,
			MountPath: cfg.Secrets.Vault.MountPath,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("初始化密钥存储失败: %w", err)
	}
	if err := resolveSecrets(ctx, store, cfg); err != nil {
		return nil, err
	}

	tools := registry.New()
	search := cfg.Search.Google
	searchTimeout, _ := config.ParseDuration(search.Timeout, 0)
	if search.APIKey == "" || search.EngineID == "" {
		logger.Warn("google search credentials missing, search_web will fail upstream")
	}
	tools.Register(websearch.New(websearch.Config{
		APIKey:   search.APIKey,
		EngineID: search.EngineID,
		BaseURL:  search.BaseURL,
		Num:      search.Num,
		Timeout:  searchTimeout,
		QPS:      cfg.RateLimits.Tools[websearch.ToolName].QPS,
	}))

	responder, err := newResponder(ctx, cfg, tools)
	if err != nil {
		return nil, err
	}

	stepTimeout, _ := config.ParseDuration(cfg.Agent.StepTimeout, agent.DefaultStepTimeout)
	loop, err := agent.NewLoop(responder, tools, agent.Config{
		MaxSteps:         cfg.Agent.MaxSteps,
		StepTimeout:      stepTimeout,
		ParallelTools:    cfg.Agent.ParallelTools,
		MaxParallelTools: cfg.Agent.MaxParallelTools,
	}, agent.WithObserver(recommender.TranscriptObserver(logger)))
	if err != nil {
		return nil, fmt.Errorf("初始化推荐循环失败: %w", err)
	}

	requestTimeout, _ := config.ParseDuration(cfg.API.Timeout, 0)
	svc := recommender.NewService(loop,
		recommender.WithConcurrency(cfg.Worker.Concurrency),
		recommender.WithRequestTimeout(requestTimeout),
		recommender.WithLogger(logger),
	)

	return &Bootstrap{
		Config:  cfg,
		Logger:  logger,
		Secrets: store,
		Tools:   tools,
		Loop:    loop,
		Service: svc,
	}, nil
}

// newResponder 创建默认 LLM 对应的 Responder，外层套 provider 维度限流
func newResponder(ctx context.Context, cfg *config.Config, tools *registry.Registry) (agent.Responder, error) {
	provider, pc, mi, err := cfg.DefaultLLM()
	if err != nil {
		return nil, fmt.Errorf("解析默认模型失败: %w", err)
	}
	timeout, _ := config.ParseDuration(pc.Timeout, 0)
	mc := llm.ChatModelConfig{
		Provider: provider,
		Model:    mi.Name,
		APIKey:   pc.APIKey,
		BaseURL:  pc.BaseURL,
		Timeout:  timeout,
	}
	if mi.Temperature > 0 {
		t := float32(mi.Temperature)
		mc.Temperature = &t
	}
	if mi.MaxTokens > 0 {
		n := mi.MaxTokens
		mc.MaxTokens = &n
	}
	cm, err := llm.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("初始化模型失败: %w", err)
	}

	instruction := llm.DefaultSystemInstruction()
	if cfg.Agent.SystemPromptFile != "" {
		instruction, err = llm.LoadSystemInstruction(cfg.Agent.SystemPromptFile)
		if err != nil {
			return nil, err
		}
	}
	inner, err := llm.NewResponder(cm, tools.ToolInfos(), llm.WithSystemInstruction(instruction))
	if err != nil {
		return nil, err
	}

	limits := make(map[string]llm.LimitConfig, len(cfg.RateLimits.LLM))
	for name, l := range cfg.RateLimits.LLM {
		limits[name] = llm.LimitConfig{
			TokensPerMinute:   l.TokensPerMinute,
			RequestsPerMinute: l.RequestsPerMinute,
			MaxConcurrent:     l.MaxConcurrent,
		}
	}
	limiter := llm.NewRateLimiter(limits, nil)
	return llm.NewRateLimitedResponder(inner, limiter, provider), nil
}

// resolveSecrets 把 secret://<key> 形式的配置值替换为实际值
func resolveSecrets(ctx context.Context, store secrets.Store, cfg *config.Config) error {
	fields := []*string{
		&cfg.Search.Google.APIKey,
		&cfg.Search.Google.EngineID,
		&cfg.API.Middleware.JWTKey,
	}
	for _, f := range fields {
		v, err := secrets.Resolve(ctx, store, *f)
		if err != nil {
			return err
		}
		*f = v
	}
	for name, pc := range cfg.Model.LLM.Providers {
		v, err := secrets.Resolve(ctx, store, pc.APIKey)
		if err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
		pc.APIKey = v
		cfg.Model.LLM.Providers[name] = pc
	}
	return nil
}

// Close 释放日志文件等资源
func (b *Bootstrap) Close() error {
	if b.Logger != nil {
		return b.Logger.Close()
	}
	return nil
}
