package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ec-recommender/internal/tool"
)

type echoTool struct {
	name string
	err  error
}

func (e *echoTool) Name() string        { return e.name }
func (e *echoTool) Description() string { return "echo input" }
func (e *echoTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"text": {Type: "string", Description: "text to echo"},
		},
		Required: []string{"text"},
	}
}

func (e *echoTool) Execute(_ context.Context, input map[string]any) (tool.ToolResult, error) {
	if e.err != nil {
		return tool.ToolResult{}, e.err
	}
	s, _ := input["text"].(string)
	if s == "" {
		return tool.ToolResult{Err: "text is required"}, nil
	}
	return tool.ToolResult{Content: s}, nil
}

func TestRegistry_Invoke(t *testing.T) {
	r := New()
	r.Register(&echoTool{name: "echo"})
	r.Register(&echoTool{name: "broken", err: errors.New("internal")})

	res := r.Invoke(context.Background(), "echo", map[string]any{"text": "hi"})
	assert.Equal(t, "hi", res.Content)
	assert.False(t, res.Failed())

	res = r.Invoke(context.Background(), "echo", nil)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, "required")

	res = r.Invoke(context.Background(), "broken", map[string]any{"text": "hi"})
	assert.Equal(t, "internal", res.Err)

	res = r.Invoke(context.Background(), "missing", nil)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, "unknown tool")
}

func TestRegistry_ToolInfos(t *testing.T) {
	r := New()
	r.Register(&echoTool{name: "b"})
	r.Register(&echoTool{name: "a"})

	infos := r.ToolInfos()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, "b", infos[1].Name)
	assert.Equal(t, "echo input", infos[0].Desc)
	assert.NotNil(t, infos[0].ParamsOneOf)
}

func TestRegistry_GetAndOverride(t *testing.T) {
	r := New()
	first := &echoTool{name: "x"}
	second := &echoTool{name: "x"}
	r.Register(first)
	r.Register(second)
	got, ok := r.Get("x")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Len(t, r.List(), 1)
}
