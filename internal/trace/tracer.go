package trace

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxIOLen    = 500
	writeBuffer = 64
)

// Writer is the subset of Store the tracer writes through.
type Writer interface {
	CreateSession(ctx context.Context, sess Session) error
	EndSession(ctx context.Context, id string, at time.Time) error
	CreateTurn(ctx context.Context, t Turn) error
	UpdateTurn(ctx context.Context, t Turn) error
	CreateSpan(ctx context.Context, sp Span) error
}

// Tracer records one session's turns and spans asynchronously. Writes are
// applied in order by a single goroutine. A nil *Tracer is a no-op.
type Tracer struct {
	w         Writer
	sessionID string
	ch        chan func(context.Context) error
	done      chan struct{}
}

// NewTracer registers the session and starts the writer goroutine. Close
// must be called when the session ends.
func NewTracer(w Writer, sess Session) *Tracer {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	t := &Tracer{
		w:         w,
		sessionID: sess.ID,
		ch:        make(chan func(context.Context) error, writeBuffer),
		done:      make(chan struct{}),
	}
	go t.drain()
	t.enqueue(func(ctx context.Context) error { return w.CreateSession(ctx, sess) })
	return t
}

// SessionID is the trace id of the session, not the interview session id.
func (t *Tracer) SessionID() string {
	if t == nil {
		return ""
	}
	return t.sessionID
}

func (t *Tracer) drain() {
	defer close(t.done)
	for write := range t.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := write(ctx); err != nil {
			slog.Warn("trace write failed", "session", t.sessionID, "error", err)
		}
		cancel()
	}
}

func (t *Tracer) enqueue(fn func(context.Context) error) {
	t.ch <- fn
}

// StartTurn opens a turn and returns its id.
func (t *Tracer) StartTurn() string {
	if t == nil {
		return ""
	}
	turn := Turn{ID: uuid.NewString(), SessionID: t.sessionID, StartedAt: time.Now(), Status: StatusRunning}
	t.enqueue(func(ctx context.Context) error { return t.w.CreateTurn(ctx, turn) })
	return turn.ID
}

// EndTurn stores the turn's outcome.
func (t *Tracer) EndTurn(turnID string, duration time.Duration, transcript, reply, status string) {
	if t == nil || turnID == "" {
		return
	}
	turn := Turn{
		ID:         turnID,
		SessionID:  t.sessionID,
		DurationMs: float64(duration.Milliseconds()),
		Transcript: truncate(transcript, maxIOLen),
		Reply:      truncate(reply, maxIOLen),
		Status:     status,
	}
	t.enqueue(func(ctx context.Context) error { return t.w.UpdateTurn(ctx, turn) })
}

// RecordSpan stores a finished stage. A non-nil err marks the span failed.
func (t *Tracer) RecordSpan(turnID, name string, startedAt time.Time, input, output string, err error) {
	if t == nil || turnID == "" {
		return
	}
	sp := Span{
		ID:         uuid.NewString(),
		TurnID:     turnID,
		Name:       name,
		StartedAt:  startedAt,
		DurationMs: float64(time.Since(startedAt).Milliseconds()),
		Input:      truncate(input, maxIOLen),
		Output:     truncate(output, maxIOLen),
		Status:     StatusOK,
	}
	if err != nil {
		sp.Status, sp.Error = StatusError, err.Error()
	}
	t.enqueue(func(ctx context.Context) error { return t.w.CreateSpan(ctx, sp) })
}

// Close marks the session ended, flushes pending writes and stops the writer.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	ended := time.Now()
	t.enqueue(func(ctx context.Context) error { return t.w.EndSession(ctx, t.sessionID, ended) })
	close(t.ch)
	<-t.done
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
