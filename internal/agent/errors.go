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

import "errors"

var (
	// ErrInvalidArguments 工具参数不合法；在工具层转为失败载荷，不中断循环
	ErrInvalidArguments = errors.New("invalid arguments")
	// ErrProviderTransport 外部服务网络/状态错误
	ErrProviderTransport = errors.New("provider transport error")
	// ErrResponderUnavailable 模型调用失败（网络、鉴权）
	ErrResponderUnavailable = errors.New("responder unavailable")
	// ErrResponderMalformed 模型输出无法解释为回答或工具请求
	ErrResponderMalformed = errors.New("responder output malformed")
	// ErrLoopExceeded RunAgent 进入次数超过上限
	ErrLoopExceeded = errors.New("agent loop exceeded max steps")
	// ErrTimeout 单次外部调用超时
	ErrTimeout = errors.New("external call timed out")
	// ErrNoAnswer 对话未以 Agent 回答结束
	ErrNoAnswer = errors.New("no answer generated")
)
