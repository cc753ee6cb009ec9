package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 私有 Registry，供 API 暴露 /metrics
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		AgentRunDuration, AgentRunTotal, AgentSteps,
		ToolDuration, ToolFailuresTotal,
		LLMTokensTotal, LLMTokensUsedMinute, LLMConcurrent,
		RateLimitWait, RateLimitRejectedTotal,
		InflightRuns,
	)
}

// AgentRunDuration 一次推荐循环耗时（秒）
var AgentRunDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ec_agent_run_duration_seconds",
		Help:    "Agent 循环耗时（秒）",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	},
)

// AgentRunTotal 循环总数（按结果）
var AgentRunTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ec_agent_run_total",
		Help: "Agent 循环总数（按结果）",
	},
	[]string{"status"}, // ok | fallback | loop_exceeded | timeout | unavailable | malformed | no_answer | cancelled
)

// AgentSteps 每次循环的 RunAgent 次数
var AgentSteps = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ec_agent_steps",
		Help:    "每次循环的模型调用次数",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	},
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ec_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolFailuresTotal 工具失败载荷数
var ToolFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ec_tool_failures_total",
		Help: "工具失败载荷总数",
	},
	[]string{"tool"},
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ec_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// RateLimitWait 限流等待耗时（秒），只记录超过阈值的等待
var RateLimitWait = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ec_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "name"}, // kind: llm | tool
)

// RateLimitRejectedTotal 被限流直接拒绝的请求数
var RateLimitRejectedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ec_rate_limit_rejected_total",
		Help: "被限流拒绝的请求总数",
	},
	[]string{"kind"}, // http
)

// LLMTokensUsedMinute 当前分钟窗口内各 provider 实际消耗的 token
var LLMTokensUsedMinute = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "ec_llm_tokens_used_minute",
		Help: "当前分钟窗口内 LLM 实际 token 用量",
	},
	[]string{"provider"},
)

// LLMConcurrent 各 provider 正在进行的调用数
var LLMConcurrent = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "ec_llm_concurrent",
		Help: "LLM 并发调用数",
	},
	[]string{"provider"},
)

// InflightRuns 当前正在执行的循环数
var InflightRuns = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "ec_inflight_runs",
		Help: "当前正在执行的 Agent 循环数",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
