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
	"fmt"
	"maps"
)

// Role 消息作者
type Role string

const (
	RoleHuman  Role = "human"
	RoleAgent  Role = "agent"
	RoleTool   Role = "tool"
	RoleSystem Role = "system"
)

// ToolRequest 模型发起的一次工具调用请求；ID 在一次对话内唯一
type ToolRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	// RawArguments 模型给出的原始 JSON 参数文本；解析失败时 Arguments 为 nil
	RawArguments string `json:"raw_arguments,omitempty"`
}

// ToolResult 工具执行结果：Content 为成功载荷，Err 为失败文本，二者只有其一
type ToolResult struct {
	RequestID string `json:"request_id"`
	Content   string `json:"content,omitempty"`
	Err       string `json:"error,omitempty"`
}

// Failed 是否为失败载荷
func (r ToolResult) Failed() bool { return r.Err != "" }

// Text 写入 Tool 消息的文本
func (r ToolResult) Text() string {
	if r.Failed() {
		return r.Err
	}
	return r.Content
}

// Message 对话中的一轮记录，追加后不再修改
type Message struct {
	Role          Role          `json:"role"`
	Content       string        `json:"content"`
	ToolRequests  []ToolRequest `json:"tool_requests,omitempty"`
	ToolResultFor string        `json:"tool_result_for,omitempty"`
	// Failed 仅对 Tool 消息有意义：结果为失败载荷
	Failed bool `json:"failed,omitempty"`
}

// HumanMessage 用户消息
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// SystemMessage 系统指令
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// ToolMessage 将 ToolResult 包装为 Tool 消息
func ToolMessage(result ToolResult) Message {
	return Message{
		Role:          RoleTool,
		Content:       result.Text(),
		ToolResultFor: result.RequestID,
		Failed:        result.Failed(),
	}
}

// PendingRequests Agent 消息中待执行的请求；其它角色返回 nil
func (m Message) PendingRequests() []ToolRequest {
	if m.Role != RoleAgent {
		return nil
	}
	return m.ToolRequests
}

// IsAnswer 是否为终止性的 Agent 回答
func (m Message) IsAnswer() bool {
	return m.Role == RoleAgent && len(m.ToolRequests) == 0 && m.Content != ""
}

// Reply Responder 的输出，只有 Answer 与 ActionRequest 两种
type Reply interface {
	message() Message
}

// Answer 最终回答
type Answer struct {
	Text string
}

func (a Answer) message() Message {
	return Message{Role: RoleAgent, Content: a.Text}
}

// ActionRequest 一批工具调用请求，Content 为模型同时给出的可选文本
type ActionRequest struct {
	Content  string
	Requests []ToolRequest
}

func (a ActionRequest) message() Message {
	reqs := make([]ToolRequest, len(a.Requests))
	for i, r := range a.Requests {
		reqs[i] = r
		if r.Arguments != nil {
			reqs[i].Arguments = maps.Clone(r.Arguments)
		}
	}
	return Message{Role: RoleAgent, Content: a.Content, ToolRequests: reqs}
}

// Conversation 单次请求内的对话累加器，只追加
type Conversation struct {
	messages []Message
	// issued 已发出的请求 id -> 是否已回答
	issued map[string]bool
}

// NewConversation 以一条 Human 消息开始对话
func NewConversation(query string) *Conversation {
	return &Conversation{
		messages: []Message{HumanMessage(query)},
		issued:   make(map[string]bool),
	}
}

// Len 消息条数
func (c *Conversation) Len() int { return len(c.messages) }

// Last 最近一条消息
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Messages 返回副本，调用方修改不影响对话
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// appendReply 追加一条 Agent 消息，校验请求 id 非空且对话内唯一
func (c *Conversation) appendReply(r Reply) (Message, error) {
	m := r.message()
	switch r.(type) {
	case Answer:
		if m.Content == "" {
			return Message{}, fmt.Errorf("%w: empty answer", ErrResponderMalformed)
		}
	case ActionRequest:
		if len(m.ToolRequests) == 0 {
			return Message{}, fmt.Errorf("%w: action request without tool requests", ErrResponderMalformed)
		}
	default:
		return Message{}, fmt.Errorf("%w: unknown reply %T", ErrResponderMalformed, r)
	}
	seen := make(map[string]bool, len(m.ToolRequests))
	for _, req := range m.ToolRequests {
		if req.ID == "" || req.Name == "" {
			return Message{}, fmt.Errorf("%w: tool request needs id and name", ErrResponderMalformed)
		}
		if _, dup := c.issued[req.ID]; dup || seen[req.ID] {
			return Message{}, fmt.Errorf("%w: duplicate tool request id %q", ErrResponderMalformed, req.ID)
		}
		seen[req.ID] = true
	}
	for id := range seen {
		c.issued[id] = false
	}
	c.messages = append(c.messages, m)
	return m, nil
}

// appendResult 追加 Tool 消息；每个请求 id 只能被回答一次
func (c *Conversation) appendResult(res ToolResult) error {
	answered, ok := c.issued[res.RequestID]
	if !ok {
		return fmt.Errorf("tool result for unknown request %q", res.RequestID)
	}
	if answered {
		return fmt.Errorf("tool request %q already answered", res.RequestID)
	}
	c.issued[res.RequestID] = true
	c.messages = append(c.messages, ToolMessage(res))
	return nil
}

// FinalAnswer 返回终止 Agent 回答的内容；最后一条不是回答时返回 ErrNoAnswer
func FinalAnswer(c *Conversation) (string, error) {
	if c == nil {
		return "", ErrNoAnswer
	}
	last, ok := c.Last()
	if !ok || !last.IsAnswer() {
		return "", ErrNoAnswer
	}
	return last.Content, nil
}
