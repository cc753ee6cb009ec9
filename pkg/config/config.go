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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Model      ModelConfig      `mapstructure:"model"`
	Search     SearchConfig     `mapstructure:"search"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"` // 单次请求总超时，如 "5m"；空则不限
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Grpc       GrpcConfig       `mapstructure:"grpc"`
}

// GrpcConfig gRPC 服务配置
type GrpcConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool   `mapstructure:"auth"`
	RateLimit     bool   `mapstructure:"rate_limit"`
	RateLimitRPS  int    `mapstructure:"rate_limit_rps"`
	JWTKey        string `mapstructure:"jwt_key"`
	JWTTimeout    string `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string `mapstructure:"jwt_max_refresh"` // 如 "1h"
}

// AgentConfig 推荐循环配置
type AgentConfig struct {
	MaxSteps         int    `mapstructure:"max_steps"`          // RunAgent 最大次数，默认 10
	StepTimeout      string `mapstructure:"step_timeout"`       // 单次模型/工具调用超时，默认 "60s"
	ParallelTools    bool   `mapstructure:"parallel_tools"`     // 同批工具请求并发执行
	MaxParallelTools int    `mapstructure:"max_parallel_tools"` // 并发上限
	SystemPromptFile string `mapstructure:"system_prompt_file"` // 为空使用内置指令
}

// WorkerConfig 同时执行的循环数
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Timeout string               `mapstructure:"timeout"`
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型，格式 provider.model_key
type DefaultsConfig struct {
	LLM string `mapstructure:"llm"`
}

// SearchConfig 搜索工具配置
type SearchConfig struct {
	Google GoogleSearchConfig `mapstructure:"google"`
}

// GoogleSearchConfig Google Custom Search 配置
type GoogleSearchConfig struct {
	APIKey   string `mapstructure:"api_key"`
	EngineID string `mapstructure:"engine_id"`
	BaseURL  string `mapstructure:"base_url"`
	Num      int    `mapstructure:"num"`
	Timeout  string `mapstructure:"timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
	// Exporter grpc（默认）或 http
	Exporter string `mapstructure:"exporter"`
}

// RateLimitsConfig 限流配置（Tool + LLM）
type RateLimitsConfig struct {
	Tools map[string]ToolRateLimitConfig `mapstructure:"tools"`
	LLM   map[string]LLMRateLimitConfig  `mapstructure:"llm"`
}

// ToolRateLimitConfig 单个 Tool 的限流配置
type ToolRateLimitConfig struct {
	QPS float64 `mapstructure:"qps"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// SecretsConfig 密钥来源；配置值写作 secret://<key> 时从这里解析
type SecretsConfig struct {
	Provider string      `mapstructure:"provider"` // env | memory | vault，默认 env
	Vault    VaultConfig `mapstructure:"vault"`
}

// VaultConfig HashiCorp Vault KV v2
type VaultConfig struct {
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
}

const (
	defaultStepTimeout   = 60 * time.Second
	defaultSearchTimeout = 30 * time.Second
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.grpc.port", 9000)
	v.SetDefault("api.middleware.rate_limit_rps", 10)
	v.SetDefault("agent.max_steps", 10)
	v.SetDefault("agent.step_timeout", "60s")
	v.SetDefault("agent.max_parallel_tools", 4)
	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("model.defaults.llm", "openai.gpt_4o")
	v.SetDefault("model.llm.providers.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("model.llm.providers.openai.models.gpt_4o.name", "gpt-4o")
	v.SetDefault("search.google.timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.tracing.service_name", "ec-recommender")
	v.SetDefault("monitoring.tracing.exporter", "grpc")
	v.SetDefault("secrets.provider", "env")
}

// LoadConfig 加载配置文件；configPath 为空时只使用默认值与环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// 与部署平台约定的变量名
	_ = v.BindEnv("api.port", "PORT")
	_ = v.BindEnv("search.google.api_key", "GOOGLE_API_KEY")
	_ = v.BindEnv("search.google.engine_id", "GOOGLE_CSE_ID")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// replaceEnvVars 展开 ${VAR} 形式的密钥字段；变量未设置时置空
func replaceEnvVars(config *Config) {
	for provider, pc := range config.Model.LLM.Providers {
		pc.APIKey = expandEnv(pc.APIKey)
		pc.BaseURL = expandEnv(pc.BaseURL)
		config.Model.LLM.Providers[provider] = pc
	}
	config.Search.Google.APIKey = expandEnv(config.Search.Google.APIKey)
	config.Search.Google.EngineID = expandEnv(config.Search.Google.EngineID)
	config.API.Middleware.JWTKey = expandEnv(config.API.Middleware.JWTKey)
	config.Secrets.Vault.Token = expandEnv(config.Secrets.Vault.Token)
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s
	}
	return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}"))
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port 非法: %d", c.API.Port)
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps 必须大于 0: %d", c.Agent.MaxSteps)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency 必须大于 0: %d", c.Worker.Concurrency)
	}
	for key, s := range map[string]string{
		"api.timeout":           c.API.Timeout,
		"agent.step_timeout":    c.Agent.StepTimeout,
		"search.google.timeout": c.Search.Google.Timeout,
	} {
		if _, err := ParseDuration(s, 0); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	// 搜索须先于单步超时返回，才能以失败载荷交还模型
	step, _ := ParseDuration(c.Agent.StepTimeout, defaultStepTimeout)
	search, _ := ParseDuration(c.Search.Google.Timeout, defaultSearchTimeout)
	if search >= step {
		return fmt.Errorf("search.google.timeout (%s) 必须小于 agent.step_timeout (%s)", search, step)
	}
	return nil
}

// ParseDuration 解析时长字符串，空串返回 def
func ParseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// ParseDefaultKey 解析 "provider.model_key"
func ParseDefaultKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 openai.gpt_4o，当前: %q", key)
	}
	return parts[0], parts[1], nil
}

// DefaultLLM 解析 model.defaults.llm 指向的 provider 与模型
func (c *Config) DefaultLLM() (string, ProviderConfig, ModelInfo, error) {
	provider, modelKey, err := ParseDefaultKey(c.Model.Defaults.LLM)
	if err != nil {
		return "", ProviderConfig{}, ModelInfo{}, err
	}
	pc, ok := c.Model.LLM.Providers[provider]
	if !ok {
		return "", ProviderConfig{}, ModelInfo{}, fmt.Errorf("provider %q 未配置", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok || mi.Name == "" {
		return "", ProviderConfig{}, ModelInfo{}, fmt.Errorf("model %q 未在 provider %q 下配置", modelKey, provider)
	}
	return provider, pc, mi, nil
}
