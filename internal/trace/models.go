package trace

import "time"

// Session is one participant connection and the prompt it was given.
type Session struct {
	ID                 string     `json:"id"`
	InterviewSessionID string     `json:"interview_session_id,omitempty"`
	PromptSource       string     `json:"prompt_source"`
	PromptFingerprint  string     `json:"prompt_fingerprint"`
	StartedAt          time.Time  `json:"started_at"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
	TurnCount          int        `json:"turn_count,omitempty"`
}

// Turn is one candidate utterance and the interviewer's reply.
type Turn struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
	Reply      string    `json:"reply,omitempty"`
	Status     string    `json:"status"`
	SpanCount  int       `json:"span_count,omitempty"`
}

// Span is one stage (stt, llm, tts, tool) inside a turn.
type Span struct {
	ID         string    `json:"id"`
	TurnID     string    `json:"turn_id"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms"`
	Input      string    `json:"input,omitempty"`
	Output     string    `json:"output,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// Turn statuses.
const (
	StatusRunning     = "running"
	StatusOK          = "ok"
	StatusError       = "error"
	StatusFiltered    = "filtered"
	StatusInterrupted = "interrupted"
)
