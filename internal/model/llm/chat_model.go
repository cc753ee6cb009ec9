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

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// ChatModelConfig 创建 ChatModel 所需参数（由 config.ModelConfig 解析而来）
type ChatModelConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	Temperature *float32
	MaxTokens   *int
}

// NewChatModel 创建支持工具调用的 ChatModel。
// openai 之外的 provider 按 OpenAI 兼容接口接入，必须配置 base_url。
func NewChatModel(ctx context.Context, cfg ChatModelConfig) (model.ToolCallingChatModel, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key for provider %q is required", cfg.Provider)
	}
	if cfg.Provider != "" && cfg.Provider != "openai" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider %q needs base_url (OpenAI compatible endpoint)", cfg.Provider)
	}

	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s chat model: %w", cfg.Provider, err)
	}
	return cm, nil
}
