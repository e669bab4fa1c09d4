// Package agent defines the capability a conversational voice runtime
// offers to the gateway. The gateway configures a runtime with the rendered
// system prompt and then hands it the live session; the runtime owns the
// conversational loop from there.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrDisconnected is returned (wrapped) by Session.Recv when the connection
// drops without the participant ending the call.
var ErrDisconnected = errors.New("participant disconnected")

// Options tune a runtime's turn handling.
type Options struct {
	// AllowInterruptions lets new participant speech cancel an in-flight reply.
	AllowInterruptions bool
	// EndOfTurnSilence is how much trailing silence ends a participant turn.
	EndOfTurnSilence time.Duration
	// Greeting, when set, is spoken once as soon as the session starts.
	Greeting string
}

// DefaultOptions matches the behaviour of the hosted agent: interruptions on,
// 500ms end-of-turn silence, no greeting.
func DefaultOptions() Options {
	return Options{AllowInterruptions: true, EndOfTurnSilence: 500 * time.Millisecond}
}

// Event is an outbound message for the participant.
type Event struct {
	Type string
	Data map[string]any
	// Audio, when non-nil, follows the JSON event as a binary frame.
	Audio []byte
}

// MarshalJSON flattens Data next to the type: {"type":"transcript","text":"..."}.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		m[k] = v
	}
	m["type"] = e.Type
	return json.Marshal(m)
}

// Event types emitted by runtimes.
const (
	EventPromptReady = "prompt_ready"
	EventTranscript  = "transcript"
	EventToken       = "llm_token"
	EventReplyDone   = "llm_done"
	EventAudio       = "tts_ready"
	EventInterrupted = "interrupted"
	EventMetrics     = "metrics"
	EventError       = "error"
)

// Session is the participant side of one call.
type Session interface {
	ID() string
	// Recv blocks for the next PCM16 audio frame. It returns io.EOF once the
	// participant has ended the call and ErrDisconnected if the connection was
	// lost.
	Recv(ctx context.Context) ([]byte, error)
	// Emit must be safe for concurrent use.
	Emit(ev Event) error
}

// Runtime is a conversational agent that can be configured with a system
// prompt and then started against a session.
type Runtime interface {
	Configure(systemPrompt string, opts Options) error
	// Start runs the conversation and returns when the session's audio ends
	// or ctx is cancelled.
	Start(ctx context.Context, sess Session) error
	// Say speaks text outside of a participant turn.
	Say(ctx context.Context, sess Session, text string) error
}
