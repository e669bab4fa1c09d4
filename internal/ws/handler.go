package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Himanshu7614/voicegrow-be/internal/agent"
	"github.com/Himanshu7614/voicegrow-be/internal/interview"
	"github.com/Himanshu7614/voicegrow-be/internal/metrics"
	"github.com/Himanshu7614/voicegrow-be/internal/trace"
)

const (
	writeTimeout = 10 * time.Second
	// maxFrameBytes caps one inbound frame: a 20ms PCM16 chunk at 48kHz is under 2KB.
	maxFrameBytes = 64 << 10

	minSampleRate = 8000
	maxSampleRate = 48000
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Metadata is the participant's join frame. Raw is passed to prompt assembly
// untouched; the other fields are optional per-call overrides.
type Metadata struct {
	Raw        string `json:"-"`
	SampleRate int    `json:"sample_rate"`
	TTSEngine  string `json:"tts_engine"`
	STTEngine  string `json:"stt_engine"`
}

// Call is everything a runtime factory needs to build one session's runtime.
type Call struct {
	Metadata Metadata
	Prompt   interview.Result
	Tracer   *trace.Tracer
}

// RuntimeFactory builds a fresh runtime for one call.
type RuntimeFactory func(call Call) agent.Runtime

// HandlerConfig holds what every interview session shares.
type HandlerConfig struct {
	Assembler     *interview.Assembler
	NewRuntime    RuntimeFactory
	Options       agent.Options
	MaxConcurrent int
	// Traces, when non-nil, receives per-session traces.
	Traces trace.Writer
}

// Handler serves /ws/interview with admission control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
}

// NewHandler creates the interview WebSocket handler.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 100
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, maxConc),
	}
}

// ServeHTTP upgrades the connection and runs the interview.
// Returns 503 if at max concurrent session capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.Inc()
	defer metrics.SessionsActive.Dec()

	h.runSession(conn)
}

func (h *Handler) runSession(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	meta, err := readMetadata(conn)
	if err != nil {
		slog.Error("read participant metadata", "error", err)
		return
	}

	sess := newConnSession(conn, uuid.NewString())
	prompt := h.cfg.Assembler.FromMetadata(ctx, meta.Raw)

	var tracer *trace.Tracer
	if h.cfg.Traces != nil {
		tracer = trace.NewTracer(h.cfg.Traces, trace.Session{
			InterviewSessionID: prompt.SessionID,
			PromptSource:       prompt.Source,
			PromptFingerprint:  prompt.Fingerprint,
		})
		defer tracer.Close()
	}

	slog.Info("interview started",
		"session", sess.ID(),
		"interview_session_id", prompt.SessionID,
		"prompt_source", prompt.Source,
		"sample_rate", meta.SampleRate,
		"tts_engine", meta.TTSEngine,
		"stt_engine", meta.STTEngine,
	)
	sess.Emit(agent.Event{Type: agent.EventPromptReady, Data: map[string]any{
		"session_id":  prompt.SessionID,
		"source":      prompt.Source,
		"fingerprint": prompt.Fingerprint,
	}})

	rt := h.cfg.NewRuntime(Call{Metadata: *meta, Prompt: prompt, Tracer: tracer})
	if err = rt.Configure(prompt.Prompt, h.cfg.Options); err != nil {
		h.fail(sess, "configure", err)
		return
	}
	if err = rt.Start(ctx, sess); err != nil {
		if errors.Is(err, agent.ErrDisconnected) {
			slog.Info("participant disconnected", "session", sess.ID(), "error", err)
			return
		}
		h.fail(sess, "start", err)
		return
	}
	slog.Info("interview ended", "session", sess.ID())
}

// fail ends the session: runtime errors are reported, never retried. Only this
// participant's session ends; the gateway keeps serving other calls, since a
// configure or start failure here reflects this call's prompt or audio rather
// than the process. Boot-time misconfiguration exits in main instead.
func (h *Handler) fail(sess *connSession, stage string, err error) {
	slog.Error("agent runtime failed", "session", sess.ID(), "stage", stage, "error", err)
	metrics.Errors.WithLabelValues("runtime", stage).Inc()
	sess.Emit(agent.Event{Type: agent.EventError, Data: map[string]any{"stage": stage, "text": err.Error()}})
	sess.close(websocket.CloseInternalServerErr, stage+" failed")
}

// readMetadata consumes the first frame. Its text is kept verbatim even when
// it is not JSON; extracting the session id is the assembler's job.
func readMetadata(conn *websocket.Conn) (*Metadata, error) {
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if msgType != websocket.TextMessage {
		return nil, errors.New("first frame must be text metadata")
	}
	meta := Metadata{}
	if err = json.Unmarshal(data, &meta); err != nil {
		meta = Metadata{}
	}
	if meta.SampleRate != 0 && (meta.SampleRate < minSampleRate || meta.SampleRate > maxSampleRate) {
		slog.Warn("unsupported sample rate, using default", "sample_rate", meta.SampleRate)
		meta.SampleRate = 0
	}
	meta.Raw = string(data)
	return &meta, nil
}

// connSession adapts a WebSocket connection to agent.Session.
type connSession struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func newConnSession(conn *websocket.Conn, id string) *connSession {
	return &connSession{id: id, conn: conn}
}

func (s *connSession) ID() string { return s.id }

// Recv returns the next binary audio frame. A text frame or a close frame
// ends the session cleanly; any other read error means the participant is gone.
func (s *connSession) Recv(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgType, data, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			slog.Info("connection closed", "session", s.id)
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %w", agent.ErrDisconnected, err)
	}
	if msgType != websocket.BinaryMessage {
		return nil, io.EOF
	}
	return data, nil
}

// Emit writes the event as JSON, followed by its audio as a binary frame.
func (s *connSession) Emit(ev agent.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err = s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		slog.Error("write event", "session", s.id, "type", ev.Type, "error", err)
		return err
	}
	if ev.Audio == nil {
		return nil
	}
	if err = s.conn.WriteMessage(websocket.BinaryMessage, ev.Audio); err != nil {
		slog.Error("write audio", "session", s.id, "error", err)
		return err
	}
	return nil
}

func (s *connSession) close(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		slog.Warn("write close", "session", s.id, "error", err)
	}
}
