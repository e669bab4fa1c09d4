package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Himanshu7614/voicegrow-be/internal/interview"
	"github.com/Himanshu7614/voicegrow-be/internal/pipeline"
	"github.com/Himanshu7614/voicegrow-be/internal/prompts"
	"github.com/Himanshu7614/voicegrow-be/internal/session"
	"github.com/Himanshu7614/voicegrow-be/internal/trace"
)

type missingSessions struct{}

func (missingSessions) Fetch(ctx context.Context, id string) (*session.Record, error) {
	return nil, session.ErrRetrieval
}

type staticSynth struct{}

func (staticSynth) Synthesize(ctx context.Context, text string, opts pipeline.TTSOptions) ([]byte, error) {
	return []byte("wav"), nil
}

type fakeTraces struct{}

func (fakeTraces) ListSessions(ctx context.Context, limit, offset int) ([]trace.Session, int, error) {
	return []trace.Session{{ID: "t1", PromptSource: interview.SourceSession}}, 1, nil
}

func (fakeTraces) GetSession(ctx context.Context, id string) (*trace.Session, []trace.Turn, error) {
	if id != "t1" {
		return nil, nil, trace.ErrNotFound
	}
	return &trace.Session{ID: "t1"}, []trace.Turn{{ID: "turn-1", Status: trace.StatusOK}}, nil
}

func (fakeTraces) GetTurn(ctx context.Context, sessionID, turnID string) (*trace.Turn, []trace.Span, error) {
	return nil, nil, trace.ErrNotFound
}

func newTestMux(t *testing.T, traces traceReader) *http.ServeMux {
	t.Helper()
	renderer, err := prompts.NewRenderer(prompts.DefaultConfig())
	require.NoError(t, err)

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		llmModel:  "gpt-4o-mini",
		assembler: interview.New(missingSessions{}, renderer, ""),
		sttRouter: pipeline.NewSTTRouter(nil, "deepgram"),
		ttsRouter: pipeline.NewTTSRouter(map[string]pipeline.Synthesizer{"openai": staticSynth{}}, "openai"),
		wsHandler: http.NotFoundHandler(),
		traces:    traces,
	})
	return mux
}

func serve(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestPromptPreviewFallsBack(t *testing.T) {
	rec := serve(newTestMux(t, nil), "GET", "/api/prompts/unknown-session", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unknown-session", body["session_id"])
	assert.Equal(t, interview.SourceFetchFailed, body["source"])
	assert.Equal(t, prompts.DefaultFallback, body["prompt"])
	assert.Equal(t, interview.Fingerprint(prompts.DefaultFallback), body["fingerprint"])
}

func TestHealthAndMetrics(t *testing.T) {
	mux := newTestMux(t, nil)
	assert.Equal(t, "ok", serve(mux, "GET", "/health", "").Body.String())

	rec := serve(mux, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "interview_sessions_active")
}

func TestTTSWarmup(t *testing.T) {
	mux := newTestMux(t, nil)
	assert.Equal(t, http.StatusOK, serve(mux, "POST", "/api/tts/warmup", `{"engine":"openai"}`).Code)
	assert.Equal(t, http.StatusNotFound, serve(mux, "POST", "/api/tts/warmup", `{"engine":"piper"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(mux, "POST", "/api/tts/warmup", `{`).Code)
}

func TestTraceRoutes(t *testing.T) {
	disabled := newTestMux(t, nil)
	assert.Equal(t, http.StatusNotFound, serve(disabled, "GET", "/api/traces/sessions", "").Code)

	mux := newTestMux(t, fakeTraces{})
	rec := serve(mux, "GET", "/api/traces/sessions?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = serve(mux, "GET", "/api/traces/sessions/t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"turn-1"`)

	assert.Equal(t, http.StatusNotFound, serve(mux, "GET", "/api/traces/sessions/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(mux, "GET", "/api/traces/sessions/t1/turns/x", "").Code)
}
