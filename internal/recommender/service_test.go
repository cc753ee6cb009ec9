package recommender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ec-recommender/internal/agent"
	"ec-recommender/pkg/log"
)

type runnerFunc func(ctx context.Context, query string) (*agent.RunResult, error)

func (f runnerFunc) Run(ctx context.Context, query string) (*agent.RunResult, error) {
	return f(ctx, query)
}

// scripted Responder：先搜索一次，再回答
type searchThenAnswer struct {
	mu    sync.Mutex
	calls int
}

func (s *searchThenAnswer) Respond(_ context.Context, conv []agent.Message) (agent.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if conv[len(conv)-1].Role == agent.RoleHuman {
		return agent.ActionRequest{Requests: []agent.ToolRequest{{
			ID: "call_1", Name: "search_web",
			Arguments: map[string]any{"query": "robotics competitions for high schoolers"},
		}}}, nil
	}
	return agent.Answer{Text: "<div>" + conv[len(conv)-1].Content + "</div>"}, nil
}

type countingInvoker struct{ calls atomic.Int32 }

func (c *countingInvoker) Invoke(_ context.Context, _ string, args map[string]any) agent.ToolResult {
	c.calls.Add(1)
	return agent.ToolResult{Content: fmt.Sprintf(`[{"title":"%v"}]`, args["query"])}
}

func TestService_EmptyInputFallback(t *testing.T) {
	resp := &searchThenAnswer{}
	inv := &countingInvoker{}
	loop, err := agent.NewLoop(resp, inv, agent.Config{})
	require.NoError(t, err)
	svc := NewService(loop)

	for _, in := range []string{"", "   ", "\n\t"} {
		r := svc.Recommend(context.Background(), in)
		assert.Equal(t, FallbackReply, r.Text)
		assert.Equal(t, OutcomeFallback, r.Outcome)
		assert.False(t, r.Outcome.Failed())
	}
	assert.Zero(t, resp.calls)
	assert.Zero(t, inv.calls.Load())
}

func TestService_OneSearchEndToEnd(t *testing.T) {
	resp := &searchThenAnswer{}
	inv := &countingInvoker{}
	loop, err := agent.NewLoop(resp, inv, agent.Config{})
	require.NoError(t, err)
	svc := NewService(loop, WithConcurrency(1))

	r := svc.Recommend(context.Background(), "I'm in 10th grade and love robots")
	assert.Equal(t, OutcomeOK, r.Outcome)
	assert.Equal(t, `<div>[{"title":"robotics competitions for high schoolers"}]</div>`, r.Text)
	assert.Equal(t, 2, r.Steps)
	assert.Equal(t, 2, resp.calls)
	assert.EqualValues(t, 1, inv.calls.Load())
}

func TestService_FailuresMapToGenericReply(t *testing.T) {
	tests := []struct {
		err  error
		want Outcome
	}{
		{fmt.Errorf("%w: dial", agent.ErrResponderUnavailable), OutcomeUnavailable},
		{fmt.Errorf("%w: empty", agent.ErrResponderMalformed), OutcomeMalformed},
		{fmt.Errorf("%w (10)", agent.ErrLoopExceeded), OutcomeLoopExceeded},
		{fmt.Errorf("%w: tool", agent.ErrTimeout), OutcomeTimeout},
		{agent.ErrNoAnswer, OutcomeNoAnswer},
		{context.Canceled, OutcomeCancelled},
		{errors.New("boom"), OutcomeUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			svc := NewService(runnerFunc(func(context.Context, string) (*agent.RunResult, error) {
				return &agent.RunResult{Steps: 3}, tt.err
			}))
			r := svc.Recommend(context.Background(), "hi")
			assert.Equal(t, FailureReply, r.Text)
			assert.Equal(t, tt.want, r.Outcome)
			assert.True(t, r.Outcome.Failed())
			assert.Equal(t, 3, r.Steps)
			assert.ErrorIs(t, r.Err, tt.err)
			// 原始错误不出现在回复中
			assert.NotContains(t, r.Text, tt.err.Error())
		})
	}
}

func TestService_QueryIsTrimmed(t *testing.T) {
	var got string
	svc := NewService(runnerFunc(func(_ context.Context, q string) (*agent.RunResult, error) {
		got = q
		return &agent.RunResult{Answer: "ok", Steps: 1}, nil
	}))
	r := svc.Recommend(context.Background(), "  robots \n")
	assert.Equal(t, "ok", r.Text)
	assert.Equal(t, "robots", got)
}

func TestService_ConcurrencyLimit(t *testing.T) {
	var running, peak atomic.Int32
	svc := NewService(runnerFunc(func(context.Context, string) (*agent.RunResult, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return &agent.RunResult{Answer: "ok", Steps: 1}, nil
	}), WithConcurrency(2))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Recommend(context.Background(), "q")
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestService_WaitingHonoursContext(t *testing.T) {
	release := make(chan struct{})
	svc := NewService(runnerFunc(func(context.Context, string) (*agent.RunResult, error) {
		<-release
		return &agent.RunResult{Answer: "ok", Steps: 1}, nil
	}), WithConcurrency(1))

	done := make(chan Reply)
	go func() { done <- svc.Recommend(context.Background(), "first") }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r := svc.Recommend(ctx, "second")
	assert.Equal(t, OutcomeTimeout, r.Outcome)
	assert.Equal(t, FailureReply, r.Text)

	close(release)
	assert.Equal(t, OutcomeOK, (<-done).Outcome)
}

func TestService_RequestTimeout(t *testing.T) {
	svc := NewService(runnerFunc(func(ctx context.Context, _ string) (*agent.RunResult, error) {
		<-ctx.Done()
		return &agent.RunResult{}, fmt.Errorf("%w: %v", agent.ErrTimeout, ctx.Err())
	}), WithRequestTimeout(10*time.Millisecond))
	r := svc.Recommend(context.Background(), "q")
	assert.Equal(t, OutcomeTimeout, r.Outcome)
}

func TestService_LogsToContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := log.NewWithWriter(&buf, &log.Config{Level: "debug"})
	ctx := log.WithContext(WithRequestID(context.Background(), "req-1"), l.With("request_id", "req-1"))

	svc := NewService(runnerFunc(func(context.Context, string) (*agent.RunResult, error) {
		return &agent.RunResult{Answer: "ok", Steps: 1, Conversation: []agent.Message{
			agent.HumanMessage("q"), {Role: agent.RoleAgent, Content: "ok"},
		}}, nil
	}))
	svc.Recommend(ctx, "q")
	assert.Contains(t, buf.String(), "recommendation done")
	assert.Contains(t, buf.String(), "req-1")
	assert.Contains(t, buf.String(), "transcript")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
	// 不切断多字节字符
	assert.Equal(t, "...", truncate("推荐", 2))
}
