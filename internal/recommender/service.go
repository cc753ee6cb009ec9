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

package recommender

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"ec-recommender/internal/agent"
	"ec-recommender/pkg/log"
	"ec-recommender/pkg/metrics"
	"ec-recommender/pkg/tracing"
)

// Outcome 一次请求的结果分类，用于指标与传输层状态码
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeFallback     Outcome = "fallback"
	OutcomeLoopExceeded Outcome = "loop_exceeded"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeUnavailable  Outcome = "unavailable"
	OutcomeMalformed    Outcome = "malformed"
	OutcomeNoAnswer     Outcome = "no_answer"
	OutcomeCancelled    Outcome = "cancelled"
)

// Failed 是否为失败结果（返回 FailureReply）
func (o Outcome) Failed() bool {
	return o != OutcomeOK && o != OutcomeFallback
}

// Classify 将循环错误归类
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, agent.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	case errors.Is(err, agent.ErrLoopExceeded):
		return OutcomeLoopExceeded
	case errors.Is(err, agent.ErrResponderMalformed):
		return OutcomeMalformed
	case errors.Is(err, agent.ErrNoAnswer):
		return OutcomeNoAnswer
	default:
		return OutcomeUnavailable
	}
}

// Runner 执行一次推荐循环；*agent.Loop 实现
type Runner interface {
	Run(ctx context.Context, query string) (*agent.RunResult, error)
}

// Reply 返回给传输层的结果
type Reply struct {
	Text    string
	Outcome Outcome
	Steps   int
	// Err 失败原因，只用于日志，不返回给用户
	Err error
}

// Service 接收一条用户输入，运行循环并返回最终回答或通用回复
type Service struct {
	runner  Runner
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *log.Logger
}

// Option 可选配置
type Option func(*Service)

// WithConcurrency 同时执行的循环数上限，<=0 不限
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithRequestTimeout 单次请求总超时，<=0 不限
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithLogger 设置默认 Logger；请求 context 中的 Logger 优先
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService 创建 Service
func NewService(runner Runner, opts ...Option) *Service {
	s := &Service{runner: runner}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Recommend 处理一条用户输入。空白输入直接返回 FallbackReply。
func (s *Service) Recommend(ctx context.Context, userResponse string) Reply {
	logger := s.loggerFor(ctx)
	query := strings.TrimSpace(userResponse)
	if query == "" {
		metrics.AgentRunTotal.WithLabelValues(string(OutcomeFallback)).Inc()
		logger.Info("empty user response, returning fallback")
		return Reply{Text: FallbackReply, Outcome: OutcomeFallback}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return s.fail(ctx, logger, err, 0)
		}
		defer s.sem.Release(1)
	}

	metrics.InflightRuns.Inc()
	defer metrics.InflightRuns.Dec()

	ctx, span := tracing.StartRunSpan(ctx, requestID(ctx))
	start := time.Now()
	res, err := s.runner.Run(ctx, query)
	tracing.EndSpan(span, err)
	metrics.AgentRunDuration.Observe(time.Since(start).Seconds())

	steps := 0
	if res != nil {
		steps = res.Steps
		metrics.AgentSteps.Observe(float64(steps))
		logTail(logger, res.Conversation)
	}
	if err != nil {
		return s.fail(ctx, logger, err, steps)
	}

	metrics.AgentRunTotal.WithLabelValues(string(OutcomeOK)).Inc()
	logger.Info("recommendation done", "steps", steps, "duration", time.Since(start).String())
	return Reply{Text: res.Answer, Outcome: OutcomeOK, Steps: steps}
}

func (s *Service) fail(_ context.Context, logger *log.Logger, err error, steps int) Reply {
	outcome := Classify(err)
	metrics.AgentRunTotal.WithLabelValues(string(outcome)).Inc()
	logger.Error("recommendation failed", "outcome", string(outcome), "steps", steps, "error", err)
	return Reply{Text: FailureReply, Outcome: outcome, Steps: steps, Err: err}
}

func (s *Service) loggerFor(ctx context.Context) *log.Logger {
	if l, ok := log.Lookup(ctx); ok {
		return l
	}
	if s.logger != nil {
		return s.logger
	}
	return log.FromContext(ctx)
}
