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
	"unicode/utf8"

	"ec-recommender/internal/agent"
	"ec-recommender/pkg/log"
)

type requestIDKey struct{}

// WithRequestID 传输层写入请求 id
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

const logContentLimit = 300

// TranscriptObserver 在 debug 级别记录每次状态迁移
func TranscriptObserver(fallback *log.Logger) agent.Observer {
	return func(ctx context.Context, t agent.Transition) {
		logger := fallback
		if l, ok := log.Lookup(ctx); ok {
			logger = l
		}
		if logger == nil {
			return
		}
		logger.Debug("agent transition",
			"step", t.Step,
			"state", string(t.State),
			"last_role", string(t.Last.Role),
			"tool_requests", len(t.Last.ToolRequests),
		)
	}
}

// logTail 记录对话最后三条消息
func logTail(logger *log.Logger, conv []agent.Message) {
	start := max(len(conv)-3, 0)
	for _, m := range conv[start:] {
		attrs := []any{"role", string(m.Role), "content", truncate(m.Content, logContentLimit)}
		if m.ToolResultFor != "" {
			attrs = append(attrs, "tool_result_for", m.ToolResultFor, "failed", m.Failed)
		}
		for _, r := range m.ToolRequests {
			attrs = append(attrs, "tool_request", r.Name+" "+r.RawArguments)
		}
		logger.Debug("transcript", attrs...)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
