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

package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ec-recommender/pkg/tracing"
)

// State 循环状态
type State string

const (
	StateRunAgent   State = "run_agent"
	StateInvokeTool State = "invoke_tool"
	StateDone       State = "done"
)

const (
	DefaultMaxSteps         = 10
	DefaultStepTimeout      = 60 * time.Second
	DefaultMaxParallelTools = 4
)

// Config Loop 配置；零值字段使用默认值
type Config struct {
	MaxSteps         int           // RunAgent 最大进入次数
	StepTimeout      time.Duration // 单次 Responder / 工具调用超时
	ParallelTools    bool          // 同一批工具请求并发执行，结果仍按请求顺序追加
	MaxParallelTools int
}

func (c Config) withDefaults() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = DefaultStepTimeout
	}
	if c.MaxParallelTools <= 0 {
		c.MaxParallelTools = DefaultMaxParallelTools
	}
	return c
}

// RunResult 一次 Run 的结果；失败时 Answer 为空，Conversation 仍为当时的对话
type RunResult struct {
	Answer       string        `json:"answer"`
	Steps        int           `json:"steps"`
	Duration     time.Duration `json:"duration"`
	Conversation []Message     `json:"conversation"`
}

// Loop ReAct 状态机：RunAgent -> (InvokeTool -> RunAgent)* -> Done
type Loop struct {
	responder Responder
	tools     ToolInvoker
	cfg       Config
	observer  Observer
}

// LoopOption 可选配置
type LoopOption func(*Loop)

// WithObserver 设置状态迁移观察者
func WithObserver(o Observer) LoopOption {
	return func(l *Loop) {
		l.observer = o
	}
}

// NewLoop 创建 Loop
func NewLoop(responder Responder, tools ToolInvoker, cfg Config, opts ...LoopOption) (*Loop, error) {
	if responder == nil {
		return nil, errors.New("responder is required")
	}
	if tools == nil {
		return nil, errors.New("tool invoker is required")
	}
	l := &Loop{responder: responder, tools: tools, cfg: cfg.withDefaults()}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Config 返回生效配置
func (l *Loop) Config() Config { return l.cfg }

// Run 以 query 作为唯一 Human 消息开始，驱动状态机直到 Done 或失败
func (l *Loop) Run(ctx context.Context, query string) (*RunResult, error) {
	start := time.Now()
	conv := NewConversation(query)
	res := &RunResult{}
	finish := func(err error) (*RunResult, error) {
		res.Duration = time.Since(start)
		res.Conversation = conv.Messages()
		return res, err
	}

	state := StateRunAgent
	for {
		if err := ctx.Err(); err != nil {
			return finish(contextError(err))
		}
		switch state {
		case StateRunAgent:
			if res.Steps >= l.cfg.MaxSteps {
				return finish(fmt.Errorf("%w (%d)", ErrLoopExceeded, l.cfg.MaxSteps))
			}
			res.Steps++
			l.notify(ctx, res.Steps, state, conv)
			if err := l.runAgent(ctx, conv); err != nil {
				return finish(err)
			}
		case StateInvokeTool:
			l.notify(ctx, res.Steps, state, conv)
			if err := l.invokeTools(ctx, conv); err != nil {
				return finish(err)
			}
		case StateDone:
			l.notify(ctx, res.Steps, state, conv)
			answer, err := FinalAnswer(conv)
			if err != nil {
				return finish(err)
			}
			res.Answer = answer
			return finish(nil)
		}

		next, err := transition(conv)
		if err != nil {
			return finish(err)
		}
		state = next
	}
}

// transition 只看最近一条消息决定下一状态
func transition(c *Conversation) (State, error) {
	last, ok := c.Last()
	if !ok {
		return "", ErrNoAnswer
	}
	switch {
	case len(last.PendingRequests()) > 0:
		return StateInvokeTool, nil
	case last.Role == RoleTool, last.Role == RoleHuman:
		return StateRunAgent, nil
	case last.IsAnswer():
		return StateDone, nil
	default:
		return "", fmt.Errorf("%w: cannot continue after %s message", ErrResponderMalformed, last.Role)
	}
}

func (l *Loop) runAgent(ctx context.Context, conv *Conversation) (err error) {
	ctx, span := tracing.StartStepSpan(ctx, string(StateRunAgent), conv.Len())
	defer func() { tracing.EndSpan(span, err) }()

	callCtx, cancel := context.WithTimeout(ctx, l.cfg.StepTimeout)
	defer cancel()

	reply, err := l.responder.Respond(callCtx, conv.Messages())
	if err != nil {
		return responderError(ctx, callCtx, err)
	}
	if reply == nil {
		return fmt.Errorf("%w: nil reply", ErrResponderMalformed)
	}
	_, err = conv.appendReply(reply)
	return err
}

func (l *Loop) invokeTools(ctx context.Context, conv *Conversation) (err error) {
	ctx, span := tracing.StartStepSpan(ctx, string(StateInvokeTool), conv.Len())
	defer func() { tracing.EndSpan(span, err) }()

	last, _ := conv.Last()
	reqs := last.PendingRequests()
	results := make([]ToolResult, len(reqs))

	if l.cfg.ParallelTools && len(reqs) > 1 {
		var g errgroup.Group
		g.SetLimit(l.cfg.MaxParallelTools)
		for i, req := range reqs {
			i, req := i, req
			g.Go(func() error {
				r, err := l.invokeOne(ctx, req)
				results[i] = r
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for i, req := range reqs {
			r, err := l.invokeOne(ctx, req)
			if err != nil {
				return err
			}
			results[i] = r
		}
	}

	for _, r := range results {
		if err := conv.appendResult(r); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) invokeOne(ctx context.Context, req ToolRequest) (ToolResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.cfg.StepTimeout)
	defer cancel()

	r := l.tools.Invoke(callCtx, req.Name, req.Arguments)
	if err := ctx.Err(); err != nil {
		return ToolResult{}, contextError(err)
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return ToolResult{}, fmt.Errorf("%w: tool %s", ErrTimeout, req.Name)
	}
	r.RequestID = req.ID
	return r, nil
}

func (l *Loop) notify(ctx context.Context, step int, state State, conv *Conversation) {
	if l.observer == nil {
		return
	}
	last, _ := conv.Last()
	l.observer(ctx, Transition{Step: step, State: state, Last: last})
}

// responderError 归类 Responder 错误：超时优先，其次保留已分类的哨兵，其余视为不可用
func responderError(ctx, callCtx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError(ctxErr)
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: responder: %v", ErrTimeout, err)
	}
	if errors.Is(err, ErrResponderMalformed) || errors.Is(err, ErrResponderUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrResponderUnavailable, err)
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
