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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"ec-recommender/internal/agent"
)

// toSchemaMessages 前置系统指令并转换整段对话
func toSchemaMessages(instruction string, conv []agent.Message) ([]*schema.Message, error) {
	out := make([]*schema.Message, 0, len(conv)+1)
	if instruction != "" {
		out = append(out, schema.SystemMessage(instruction))
	}
	for i, m := range conv {
		sm, err := toSchemaMessage(m)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, sm)
	}
	return out, nil
}

func toSchemaMessage(m agent.Message) (*schema.Message, error) {
	switch m.Role {
	case agent.RoleHuman:
		return schema.UserMessage(m.Content), nil
	case agent.RoleSystem:
		return schema.SystemMessage(m.Content), nil
	case agent.RoleTool:
		return schema.ToolMessage(m.Content, m.ToolResultFor), nil
	case agent.RoleAgent:
		calls := make([]schema.ToolCall, 0, len(m.ToolRequests))
		for _, req := range m.ToolRequests {
			args, err := encodeArguments(req)
			if err != nil {
				return nil, err
			}
			calls = append(calls, schema.ToolCall{
				ID:       req.ID,
				Type:     "function",
				Function: schema.FunctionCall{Name: req.Name, Arguments: args},
			})
		}
		if len(calls) == 0 {
			calls = nil
		}
		return schema.AssistantMessage(m.Content, calls), nil
	default:
		return nil, fmt.Errorf("unknown role %q", m.Role)
	}
}

// encodeArguments 优先回传模型原文，保证模型看到的是自己写的参数
func encodeArguments(req agent.ToolRequest) (string, error) {
	if req.RawArguments != "" {
		return req.RawArguments, nil
	}
	if req.Arguments == nil {
		return "{}", nil
	}
	b, err := json.Marshal(req.Arguments)
	if err != nil {
		return "", fmt.Errorf("encode arguments of %s: %w", req.ID, err)
	}
	return string(b), nil
}

// fromSchemaMessage 将模型输出归为 Answer 或 ActionRequest
func fromSchemaMessage(m *schema.Message) (agent.Reply, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil message", agent.ErrResponderMalformed)
	}
	if len(m.ToolCalls) == 0 {
		if strings.TrimSpace(m.Content) == "" {
			return nil, fmt.Errorf("%w: empty content without tool calls", agent.ErrResponderMalformed)
		}
		return agent.Answer{Text: m.Content}, nil
	}

	reqs := make([]agent.ToolRequest, 0, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		if tc.Function.Name == "" {
			return nil, fmt.Errorf("%w: tool call without name", agent.ErrResponderMalformed)
		}
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		reqs = append(reqs, agent.ToolRequest{
			ID:           id,
			Name:         tc.Function.Name,
			Arguments:    decodeArguments(tc.Function.Arguments),
			RawArguments: tc.Function.Arguments,
		})
	}
	return agent.ActionRequest{Content: m.Content, Requests: reqs}, nil
}

// decodeArguments 非法 JSON 返回 nil，由工具层报告参数错误
func decodeArguments(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil
	}
	return args
}
