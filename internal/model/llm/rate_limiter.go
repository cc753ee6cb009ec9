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

package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ec-recommender/pkg/metrics"
)

// LimitConfig 单个 Provider 的限流配置
type LimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`   // 每分钟 token 配额
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"` // 每分钟请求数
	MaxConcurrent     int     `mapstructure:"max_concurrent"`      // 最大并发请求数
}

// DefaultLimitConfig 未单独配置的 provider 使用
var DefaultLimitConfig = LimitConfig{
	TokensPerMinute:   90000,
	RequestsPerMinute: 3500,
	MaxConcurrent:     50,
}

// RateLimiter Provider 维度的限流器：请求速率 + token 预算 + 并发
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*providerLimiter
	defaults LimitConfig
}

type providerLimiter struct {
	requests  *rate.Limiter
	tokens    *rate.Limiter
	semaphore chan struct{}
	config    LimitConfig

	mu               sync.Mutex
	tokensUsedMinute int
	minuteStart      time.Time
}

// NewRateLimiter 创建限流器；defaults 为 nil 时使用 DefaultLimitConfig
func NewRateLimiter(configs map[string]LimitConfig, defaults *LimitConfig) *RateLimiter {
	l := &RateLimiter{
		limiters: make(map[string]*providerLimiter),
		defaults: DefaultLimitConfig,
	}
	if defaults != nil {
		l.defaults = *defaults
	}
	for provider, c := range configs {
		l.limiters[provider] = newProviderLimiter(c)
	}
	return l
}

func newProviderLimiter(c LimitConfig) *providerLimiter {
	p := &providerLimiter{config: c, minuteStart: time.Now()}

	// burst = 2 秒的配额
	if c.RequestsPerMinute > 0 {
		burst := max(int(c.RequestsPerMinute/60.0*2), 1)
		p.requests = rate.NewLimiter(rate.Limit(c.RequestsPerMinute/60.0), burst)
	}
	if c.TokensPerMinute > 0 {
		burst := max(c.TokensPerMinute/60*2, 1)
		p.tokens = rate.NewLimiter(rate.Limit(float64(c.TokensPerMinute)/60.0), burst)
	}
	if c.MaxConcurrent > 0 {
		p.semaphore = make(chan struct{}, c.MaxConcurrent)
	}
	return p
}

func (l *RateLimiter) get(provider string) *providerLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.limiters[provider]
	if !ok {
		p = newProviderLimiter(l.defaults)
		l.limiters[provider] = p
	}
	return p
}

// Wait 阻塞直到可以执行；成功后必须调用 Release。
// estimatedTokens 先从 token 桶扣除，实际用量由 RecordTokenUsage 补扣。
func (l *RateLimiter) Wait(ctx context.Context, provider string, estimatedTokens int) error {
	p := l.get(provider)

	if p.requests != nil {
		if err := p.requests.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}

	if p.tokens != nil && estimatedTokens > 0 {
		// 超过 burst 的单次请求只扣 burst，否则 WaitN 永远失败
		n := min(estimatedTokens, p.tokens.Burst())
		if err := p.tokens.WaitN(ctx, n); err != nil {
			return fmt.Errorf("token budget wait failed: %w", err)
		}
	}

	if p.semaphore != nil {
		select {
		case p.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	l.publish(provider)
	return nil
}

// Release 释放并发 slot
func (l *RateLimiter) Release(provider string) {
	p := l.get(provider)
	if p.semaphore == nil {
		return
	}
	select {
	case <-p.semaphore:
	default:
	}
	l.publish(provider)
}

// RecordTokenUsage 记录实际使用的 tokens；超出 Wait 时估算的部分从 token 桶补扣，
// 由后续请求的 Wait 承担
func (l *RateLimiter) RecordTokenUsage(provider string, actualTokens, estimatedTokens int) {
	if actualTokens <= 0 {
		return
	}
	p := l.get(provider)
	p.record(actualTokens)
	if extra := actualTokens - estimatedTokens; extra > 0 && p.tokens != nil {
		p.tokens.ReserveN(time.Now(), min(extra, p.tokens.Burst()))
	}
	l.publish(provider)
}

func (p *providerLimiter) record(tokens int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if now.Sub(p.minuteStart) > time.Minute {
		p.tokensUsedMinute = tokens
		p.minuteStart = now
		return
	}
	p.tokensUsedMinute += tokens
}

// publish 把 Stats 同步到 Prometheus
func (l *RateLimiter) publish(provider string) {
	stats := l.Stats(provider)
	metrics.LLMTokensUsedMinute.WithLabelValues(provider).Set(float64(stats["tokens_used_minute"].(int)))
	if n, ok := stats["current_concurrent"].(int); ok {
		metrics.LLMConcurrent.WithLabelValues(provider).Set(float64(n))
	}
}

// Stats 限流统计
func (l *RateLimiter) Stats(provider string) map[string]any {
	p := l.get(provider)
	p.mu.Lock()
	used := p.tokensUsedMinute
	if time.Since(p.minuteStart) > time.Minute {
		used = 0
	}
	p.mu.Unlock()

	stats := map[string]any{
		"requests_per_minute": p.config.RequestsPerMinute,
		"tokens_per_minute":   p.config.TokensPerMinute,
		"tokens_used_minute":  used,
		"max_concurrent":      p.config.MaxConcurrent,
	}
	if p.semaphore != nil {
		stats["current_concurrent"] = len(p.semaphore)
		stats["available_slots"] = cap(p.semaphore) - len(p.semaphore)
	}
	return stats
}
