package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ec-recommender/internal/tool/websearch"
	"ec-recommender/pkg/config"
	"ec-recommender/pkg/errors"
)

func TestNewBootstrap_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("GOOGLE_CSE_ID", "cx")
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	b, err := NewBootstrap(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, ok := b.Tools.Get(websearch.ToolName)
	assert.True(t, ok)
	assert.Equal(t, 10, b.Loop.Config().MaxSteps)
	assert.Equal(t, 60*time.Second, b.Loop.Config().StepTimeout)
	assert.NotNil(t, b.Service)
}

func TestNewBootstrap_ResolvesSecretRefs(t *testing.T) {
	t.Setenv("EC_TEST_OPENAI", "sk-from-secret")
	t.Setenv("EC_TEST_GOOGLE", "g-from-secret")
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Model.LLM.Providers["openai"] = config.ProviderConfig{
		APIKey: "secret://EC_TEST_OPENAI",
		Models: cfg.Model.LLM.Providers["openai"].Models,
	}
	cfg.Search.Google.APIKey = "secret://EC_TEST_GOOGLE"

	b, err := NewBootstrap(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	assert.Equal(t, "sk-from-secret", cfg.Model.LLM.Providers["openai"].APIKey)
	assert.Equal(t, "g-from-secret", cfg.Search.Google.APIKey)
}

func TestNewBootstrap_MissingSecret(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Search.Google.APIKey = "secret://EC_TEST_DOES_NOT_EXIST"

	_, err = NewBootstrap(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestNewBootstrap_MissingModelKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	_, err = NewBootstrap(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewBootstrap_SystemPromptFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("custom instruction"), 0o600))

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Agent.SystemPromptFile = path
	b, err := NewBootstrap(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	cfg.Agent.SystemPromptFile = filepath.Join(t.TempDir(), "missing.txt")
	_, err = NewBootstrap(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewBootstrap_NilConfig(t *testing.T) {
	_, err := NewBootstrap(context.Background(), nil)
	assert.Error(t, err)
}
