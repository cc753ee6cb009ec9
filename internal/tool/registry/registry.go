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

package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"ec-recommender/internal/agent"
	"ec-recommender/internal/tool"
	"ec-recommender/pkg/metrics"
	"ec-recommender/pkg/tracing"
)

// Registry 工具注册表：注册、发现、按名称执行；实现 agent.ToolInvoker
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tool.Tool
}

// New 创建新的 ToolRegistry
func New() *Registry {
	return &Registry{
		tools: make(map[string]tool.Tool),
	}
}

// Register 注册工具，同名覆盖
func (r *Registry) Register(t tool.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get 按名称获取工具
func (r *Registry) Get(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List 返回所有已注册工具，按名称排序
func (r *Registry) List() []tool.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tool.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// ToolInfos 返回所有工具供模型绑定的描述
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	list := r.List()
	infos := make([]*schema.ToolInfo, 0, len(list))
	for _, t := range list {
		infos = append(infos, tool.Info(t))
	}
	return infos
}

// Invoke 实现 agent.ToolInvoker：未知工具、执行错误均转为失败载荷
func (r *Registry) Invoke(ctx context.Context, name string, arguments map[string]any) agent.ToolResult {
	t, ok := r.Get(name)
	if !ok {
		metrics.ToolFailuresTotal.WithLabelValues(name).Inc()
		return agent.ToolResult{Err: fmt.Sprintf("unknown tool: %q", name)}
	}

	ctx, span := tracing.StartToolSpan(ctx, name)
	start := time.Now()
	res, err := t.Execute(ctx, arguments)
	metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		res = tool.ToolResult{Err: err.Error()}
	}

	var spanErr error
	if res.Err != "" {
		metrics.ToolFailuresTotal.WithLabelValues(name).Inc()
		spanErr = errors.New(res.Err)
	}
	tracing.EndSpan(span, spanErr)

	return agent.ToolResult{Content: res.Content, Err: res.Err}
}
