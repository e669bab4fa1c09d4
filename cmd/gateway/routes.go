package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Himanshu7614/voicegrow-be/internal/interview"
	"github.com/Himanshu7614/voicegrow-be/internal/pipeline"
	"github.com/Himanshu7614/voicegrow-be/internal/trace"
)

// defaultTraceSessionLimit is how many trace sessions are returned
// when the caller omits the ?limit= query parameter.
const defaultTraceSessionLimit = 20

// traceReader is the read side of trace.Store.
type traceReader interface {
	ListSessions(ctx context.Context, limit, offset int) ([]trace.Session, int, error)
	GetSession(ctx context.Context, id string) (*trace.Session, []trace.Turn, error)
	GetTurn(ctx context.Context, sessionID, turnID string) (*trace.Turn, []trace.Span, error)
}

type deps struct {
	llmModel  string
	assembler *interview.Assembler
	sttRouter *pipeline.STTRouter
	ttsRouter *pipeline.TTSRouter
	wsHandler http.Handler
	// traces is nil when tracing is disabled.
	traces traceReader
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("/ws/interview", d.wsHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("GET /api/engines", d.handleEngines)
	mux.HandleFunc("GET /api/prompts/{sessionId}", d.handlePrompt)
	mux.HandleFunc("POST /api/tts/warmup", d.handleTTSWarmup)
	mux.HandleFunc("GET /api/tts/health", d.handleTTSHealth)
	registerTraceRoutes(mux, d.traces)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (d deps) handleEngines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"stt": map[string]any{"engines": d.sttRouter.Engines(), "default": d.sttRouter.Default()},
		"llm": map[string]any{"model": d.llmModel},
		"tts": map[string]any{"engines": d.ttsRouter.Engines(), "default": d.ttsRouter.Default()},
	})
}

// handlePrompt renders the prompt a participant joining with this session id
// would get. Fallbacks are reported through "source", not as an error status.
func (d deps) handlePrompt(w http.ResponseWriter, r *http.Request) {
	res := d.assembler.ForSession(r.Context(), r.PathValue("sessionId"))
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":  res.SessionID,
		"source":      res.Source,
		"fingerprint": res.Fingerprint,
		"prompt":      res.Prompt,
	})
}

func (d deps) handleTTSWarmup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Engine string `json:"engine"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !d.ttsRouter.Has(req.Engine) {
		http.Error(w, "engine not available", http.StatusNotFound)
		return
	}
	slog.Info("warming up tts engine", "engine", req.Engine)
	if _, err := d.ttsRouter.Synthesize(r.Context(), "Hello.", req.Engine, pipeline.TTSOptions{}); err != nil {
		slog.Error("tts warmup", "engine", req.Engine, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d deps) handleTTSHealth(w http.ResponseWriter, r *http.Request) {
	engine := r.URL.Query().Get("engine")
	if !d.ttsRouter.Has(engine) {
		http.Error(w, "engine not available", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "engine": engine})
}

func registerTraceRoutes(mux *http.ServeMux, store traceReader) {
	mux.HandleFunc("GET /api/traces/sessions", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		limit := queryInt(r, "limit", defaultTraceSessionLimit)
		offset := queryInt(r, "offset", 0)
		sessions, total, err := store.ListSessions(r.Context(), limit, offset)
		if err != nil {
			slog.Error("list trace sessions", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "total": total})
	})

	mux.HandleFunc("GET /api/traces/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		sess, turns, err := store.GetSession(r.Context(), r.PathValue("id"))
		if err != nil {
			traceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": sess, "turns": turns})
	})

	mux.HandleFunc("GET /api/traces/sessions/{id}/turns/{turnId}", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		turn, spans, err := store.GetTurn(r.Context(), r.PathValue("id"), r.PathValue("turnId"))
		if err != nil {
			traceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"turn": turn, "spans": spans})
	})
}

func traceError(w http.ResponseWriter, err error) {
	if errors.Is(err, trace.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	slog.Error("read trace", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
