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

import "context"

// Responder 根据当前对话给出下一步：Answer 或 ActionRequest。
// 实现方负责在每次调用时前置系统指令；conversation 为只读副本。
// 失败返回 ErrResponderUnavailable / ErrResponderMalformed（可包装）。
type Responder interface {
	Respond(ctx context.Context, conversation []Message) (Reply, error)
}

// ToolInvoker 执行一个具名工具。失败以 ToolResult.Err 返回，不返回 error；
// RequestID 由 Loop 回填。
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, arguments map[string]any) ToolResult
}

// Transition 状态机进入某状态时的快照
type Transition struct {
	Step  int
	State State
	Last  Message
}

// Observer 观察状态迁移（日志、测试）
type Observer func(ctx context.Context, t Transition)
