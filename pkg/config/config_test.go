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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
api:
  port: 9000
  host: "127.0.0.1"
agent:
  max_steps: 4
  step_timeout: "15s"
  parallel_tools: true
search:
  google:
    timeout: "10s"
worker:
  concurrency: 3
log:
  level: "debug"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, "127.0.0.1", cfg.API.Host)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Agent.MaxSteps)
	assert.True(t, cfg.Agent.ParallelTools)
	assert.Equal(t, 3, cfg.Worker.Concurrency)

	d, err := ParseDuration(cfg.Agent.StepTimeout, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, d)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.API.Port)
	assert.Equal(t, 10, cfg.Agent.MaxSteps)
	assert.Equal(t, "60s", cfg.Agent.StepTimeout)
	assert.Equal(t, 1, cfg.Worker.Concurrency)
	assert.Equal(t, "env", cfg.Secrets.Provider)

	provider, _, mi, err := cfg.DefaultLLM()
	require.NoError(t, err)
	assert.Equal(t, "openai", provider)
	assert.Equal(t, "gpt-4o", mi.Name)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8123")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("GOOGLE_CSE_ID", "cse-1")
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	path := writeConfig(t, `
model:
  llm:
    providers:
      openai:
        api_key: "${TEST_OPENAI_KEY}"
        models:
          gpt_4o:
            name: "gpt-4o"
      qwen:
        api_key: "${TEST_UNSET_KEY}"
        base_url: "https://dashscope.example.com/v1"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8123, cfg.API.Port)
	assert.Equal(t, "g-key", cfg.Search.Google.APIKey)
	assert.Equal(t, "cse-1", cfg.Search.Google.EngineID)
	assert.Equal(t, "sk-test", cfg.Model.LLM.Providers["openai"].APIKey)
	assert.Empty(t, cfg.Model.LLM.Providers["qwen"].APIKey)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "agent:\n  step_timeout: \"soon\"\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "worker:\n  concurrency: -1\n"))
	assert.Error(t, err)
}

func TestValidate_SearchTimeoutBelowStepTimeout(t *testing.T) {
	// 默认 search 30s 不小于 step 15s
	_, err := LoadConfig(writeConfig(t, "agent:\n  step_timeout: \"15s\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.google.timeout")

	_, err = LoadConfig(writeConfig(t, "agent:\n  step_timeout: \"60s\"\nsearch:\n  google:\n    timeout: \"60s\"\n"))
	assert.Error(t, err)

	cfg, err := LoadConfig(writeConfig(t, "agent:\n  step_timeout: \"20s\"\nsearch:\n  google:\n    timeout: \"5s\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "5s", cfg.Search.Google.Timeout)
}

func TestParseDefaultKey(t *testing.T) {
	p, m, err := ParseDefaultKey("openai.gpt_4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", p)
	assert.Equal(t, "gpt_4o", m)

	for _, bad := range []string{"", "openai", ".gpt", "openai."} {
		_, _, err := ParseDefaultKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestDefaultLLM_Missing(t *testing.T) {
	cfg := &Config{Model: ModelConfig{Defaults: DefaultsConfig{LLM: "claude.sonnet"}}}
	_, _, _, err := cfg.DefaultLLM()
	assert.Error(t, err)
}
