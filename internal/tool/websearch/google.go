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

package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"ec-recommender/internal/agent"
	"ec-recommender/internal/tool"
	"ec-recommender/pkg/metrics"
)

const (
	// ToolName 暴露给模型的工具名
	ToolName = "search_web"
	// DefaultBaseURL Google Custom Search JSON API
	DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"
)

// Config Google 搜索配置
type Config struct {
	APIKey   string
	EngineID string
	BaseURL  string
	Num      int // 每次返回条数，0 使用上游默认
	Timeout  time.Duration
	QPS      float64 // 客户端限流，0 不限
}

// Result 精简后的搜索条目；上游缺失的字段不输出
type Result struct {
	Title   *string `json:"title,omitempty"`
	Snippet *string `json:"snippet,omitempty"`
	Link    *string `json:"link,omitempty"`
}

type searchResponse struct {
	Items []Result `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Tool 实现 search_web：调用 Google Custom Search，不重试、不缓存
type Tool struct {
	cfg     Config
	client  *resty.Client
	limiter *rate.Limiter
}

// New 创建 search_web 工具
func New(cfg Config) *Tool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(0)

	t := &Tool{cfg: cfg, client: client}
	if cfg.QPS > 0 {
		burst := int(cfg.QPS)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.QPS), burst)
	}
	return t
}

// Name 实现 tool.Tool
func (t *Tool) Name() string { return ToolName }

// Description 实现 tool.Tool
func (t *Tool) Description() string {
	return "Searches the web using Google Custom Search and returns the top results as a JSON list of {title, snippet, link}. Use it to find official or trustworthy links."
}

// Schema 实现 tool.Tool
func (t *Tool) Schema() tool.Schema {
	return tool.Schema{
		Type:        "object",
		Description: "web search parameters",
		Properties: map[string]tool.SchemaProperty{
			"query": {Type: "string", Description: "the search query"},
		},
		Required: []string{"query"},
	}
}

// Execute 实现 tool.Tool；所有失败都以 ToolResult.Err 返回
func (t *Tool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	query, _ := input["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return tool.ToolResult{Err: fmt.Sprintf("%v: query must be a non-empty string", agent.ErrInvalidArguments)}, nil
	}

	if t.limiter != nil {
		start := time.Now()
		if err := t.limiter.Wait(ctx); err != nil {
			return tool.ToolResult{Err: fmt.Sprintf("%v: %v", agent.ErrProviderTransport, err)}, nil
		}
		if waited := time.Since(start); waited > 100*time.Millisecond {
			metrics.RateLimitWait.WithLabelValues("tool", ToolName).Observe(waited.Seconds())
		}
	}

	params := map[string]string{
		"key": t.cfg.APIKey,
		"cx":  t.cfg.EngineID,
		"q":   query,
	}
	if t.cfg.Num > 0 {
		params["num"] = strconv.Itoa(t.cfg.Num)
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(t.cfg.BaseURL)
	if err != nil {
		return tool.ToolResult{Err: fmt.Sprintf("%v: %v", agent.ErrProviderTransport, err)}, nil
	}

	var body searchResponse
	decodeErr := json.Unmarshal(resp.Body(), &body)

	switch {
	case body.Error != nil:
		return tool.ToolResult{Err: fmt.Sprintf("search provider error %d: %s", body.Error.Code, body.Error.Message)}, nil
	case resp.StatusCode() != http.StatusOK:
		return tool.ToolResult{Err: fmt.Sprintf("%v: search provider returned status %d", agent.ErrProviderTransport, resp.StatusCode())}, nil
	case decodeErr != nil:
		return tool.ToolResult{Err: fmt.Sprintf("%v: decode search response: %v", agent.ErrProviderTransport, decodeErr)}, nil
	case len(body.Items) == 0:
		return tool.ToolResult{Err: fmt.Sprintf("search returned no results for %q", query)}, nil
	}

	out, err := json.Marshal(body.Items)
	if err != nil {
		return tool.ToolResult{}, err
	}
	return tool.ToolResult{Content: string(out)}, nil
}
