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
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"ec-recommender/internal/agent"
	"ec-recommender/pkg/metrics"
)

// Responder 基于 eino ToolCallingChatModel 实现 agent.Responder。
// 模型无状态：每次调用都前置系统指令并发送完整对话。
type Responder struct {
	model       model.ToolCallingChatModel
	instruction string
}

// ResponderOption 可选配置
type ResponderOption func(*Responder)

// WithSystemInstruction 覆盖内置系统指令
func WithSystemInstruction(s string) ResponderOption {
	return func(r *Responder) {
		r.instruction = s
	}
}

// NewResponder 绑定工具并创建 Responder；tools 为空时不绑定
func NewResponder(cm model.ToolCallingChatModel, tools []*schema.ToolInfo, opts ...ResponderOption) (*Responder, error) {
	if cm == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	bound := cm
	if len(tools) > 0 {
		var err error
		bound, err = cm.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
	}
	r := &Responder{model: bound, instruction: DefaultSystemInstruction()}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Respond 实现 agent.Responder
func (r *Responder) Respond(ctx context.Context, conv []agent.Message) (agent.Reply, error) {
	if len(conv) == 0 {
		return nil, fmt.Errorf("%w: empty conversation", agent.ErrResponderMalformed)
	}
	msgs, err := toSchemaMessages(r.instruction, conv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", agent.ErrResponderMalformed, err)
	}

	out, err := r.model.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", agent.ErrResponderUnavailable, err)
	}
	recordUsage(ctx, out)
	return fromSchemaMessage(out)
}

type usageKey struct{}

// withUsageSink 让下游 Respond 把实际 token 用量写入 *total
func withUsageSink(ctx context.Context, total *int) context.Context {
	return context.WithValue(ctx, usageKey{}, total)
}

func recordUsage(ctx context.Context, m *schema.Message) {
	if m == nil || m.ResponseMeta == nil || m.ResponseMeta.Usage == nil {
		return
	}
	u := m.ResponseMeta.Usage
	metrics.LLMTokensTotal.WithLabelValues("input").Add(float64(u.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues("output").Add(float64(u.CompletionTokens))

	if sink, ok := ctx.Value(usageKey{}).(*int); ok && sink != nil {
		total := u.TotalTokens
		if total == 0 {
			total = u.PromptTokens + u.CompletionTokens
		}
		*sink = total
	}
}

// RateLimitedResponder 在真实调用前后执行 provider 维度限流
type RateLimitedResponder struct {
	inner    agent.Responder
	limiter  *RateLimiter
	provider string
}

// NewRateLimitedResponder limiter 为 nil 时退化为直接调用
func NewRateLimitedResponder(inner agent.Responder, limiter *RateLimiter, provider string) *RateLimitedResponder {
	return &RateLimitedResponder{inner: inner, limiter: limiter, provider: provider}
}

// Respond 实现 agent.Responder
func (r *RateLimitedResponder) Respond(ctx context.Context, conv []agent.Message) (agent.Reply, error) {
	if r.limiter == nil {
		return r.inner.Respond(ctx, conv)
	}
	estimated := estimateTokens(conv)
	start := time.Now()
	if err := r.limiter.Wait(ctx, r.provider, estimated); err != nil {
		return nil, fmt.Errorf("%w: %w", agent.ErrResponderUnavailable, err)
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		metrics.RateLimitWait.WithLabelValues("llm", r.provider).Observe(waited.Seconds())
	}
	defer r.limiter.Release(r.provider)

	var used int
	reply, err := r.inner.Respond(withUsageSink(ctx, &used), conv)
	r.limiter.RecordTokenUsage(r.provider, used, estimated)
	return reply, err
}

// estimateTokens 粗略估算（4 字符 ≈ 1 token）
func estimateTokens(conv []agent.Message) int {
	n := 0
	for _, m := range conv {
		n += len(m.Content)
		for _, req := range m.ToolRequests {
			n += len(req.RawArguments)
		}
	}
	return max(n/4, 1)
}
