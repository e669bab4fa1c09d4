package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interview_sessions_active",
		Help: "Currently connected interview sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_sessions_total",
		Help: "Total interview sessions accepted",
	})

	SessionFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_fetch_duration_seconds",
		Help:    "Latency of the interview-session API lookup",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	})

	SessionFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_fetch_failures_total",
		Help: "Interview-session lookups that failed, by reason",
	}, []string{"reason"})

	PromptRenders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prompt_render_total",
		Help: "System prompts handed to the agent runtime, by source (session or fallback)",
	}, []string{"source"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_turn_duration_seconds",
		Help:    "End-of-turn to last synthesized sentence",
		Buckets: []float64{0.2, 0.5, 0.8, 1.0, 1.5, 2.0, 3.0, 5.0, 8.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})

	AudioChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audio_chunks_processed_total",
		Help: "Total audio chunks received",
	})

	SpeechSegments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vad_speech_segments_total",
		Help: "Candidate turns detected by VAD",
	})

	Interruptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_interruptions_total",
		Help: "Agent replies cut short because the candidate started speaking",
	})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tool_calls_total",
		Help: "LLM tool invocations by tool and status",
	}, []string{"tool", "status"})
)
