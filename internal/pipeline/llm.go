package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/Himanshu7614/voicegrow-be/internal/metrics"
)

// TokenCallback receives each streamed text delta.
type TokenCallback func(token string)

// Exchange is one completed candidate/interviewer pair. Either side may be
// empty (a greeting has no candidate line).
type Exchange struct {
	Candidate   string
	Interviewer string
}

// ReplyRequest is everything the model sees for one turn.
type ReplyRequest struct {
	Instructions string
	History      []Exchange
	Input        string
}

// Reply is the model's full answer for a turn.
type Reply struct {
	Text               string  `json:"text"`
	LatencyMs          float64 `json:"latency_ms"`
	TimeToFirstTokenMs float64 `json:"ttft_ms"`
}

// Responder streams an interviewer reply.
type Responder interface {
	Reply(ctx context.Context, req ReplyRequest, onToken TokenCallback) (*Reply, error)
}

// AgentLLM answers turns through openai-agents-go. Tools registered here are
// available to the model on every turn.
type AgentLLM struct {
	provider  agents.ModelProvider
	model     string
	maxTokens int
	tools     []agents.Tool
}

// A tool call and the answer that uses it are separate model turns.
const agentMaxTurns = 4

// NewAgentLLM creates a Responder for provider/model.
func NewAgentLLM(provider agents.ModelProvider, model string, maxTokens int, tools ...agents.Tool) *AgentLLM {
	return &AgentLLM{
		provider:  provider,
		model:     model,
		maxTokens: maxTokens,
		tools:     tools,
	}
}

// Reply streams one model response for req, calling onToken per text delta.
func (a *AgentLLM) Reply(ctx context.Context, req ReplyRequest, onToken TokenCallback) (*Reply, error) {
	agent := agents.New("interviewer").
		WithInstructions(req.Instructions).
		WithModel(a.model).
		WithModelSettings(modelsettings.ModelSettings{
			MaxTokens: param.NewOpt(int64(a.maxTokens)),
		})
	for _, t := range a.tools {
		agent.AddTool(t)
	}

	runner := agents.Runner{Config: agents.RunConfig{
		ModelProvider:   a.provider,
		MaxTurns:        agentMaxTurns,
		TracingDisabled: true,
	}}

	start := time.Now()
	events, errCh, err := runner.RunStreamedChan(ctx, agent, FormatInput(req.History, req.Input))
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "start").Inc()
		return nil, fmt.Errorf("llm stream start: %w", err)
	}

	var text strings.Builder
	var firstToken time.Time
	for ev := range events {
		raw, ok := ev.(agents.RawResponsesStreamEvent)
		if !ok || raw.Data.Type != "response.output_text.delta" {
			continue
		}
		if firstToken.IsZero() {
			firstToken = time.Now()
		}
		if onToken != nil {
			onToken(raw.Data.Delta)
		}
		text.WriteString(raw.Data.Delta)
	}
	if streamErr := <-errCh; streamErr != nil {
		metrics.Errors.WithLabelValues("llm", "stream").Inc()
		return nil, fmt.Errorf("llm stream: %w", streamErr)
	}

	latency := time.Since(start)
	metrics.StageDuration.WithLabelValues("llm").Observe(latency.Seconds())

	var ttft float64
	if !firstToken.IsZero() {
		ttft = float64(firstToken.Sub(start).Milliseconds())
	}
	return &Reply{
		Text:               text.String(),
		LatencyMs:          float64(latency.Milliseconds()),
		TimeToFirstTokenMs: ttft,
	}, nil
}

// FormatInput renders prior exchanges followed by the new candidate line as a
// plain transcript.
func FormatInput(history []Exchange, input string) string {
	if len(history) == 0 {
		return input
	}
	var b strings.Builder
	for _, ex := range history {
		if ex.Candidate != "" {
			fmt.Fprintf(&b, "Candidate: %s\n", ex.Candidate)
		}
		if ex.Interviewer != "" {
			fmt.Fprintf(&b, "Interviewer: %s\n", ex.Interviewer)
		}
	}
	fmt.Fprintf(&b, "Candidate: %s", input)
	return b.String()
}
