package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Himanshu7614/voicegrow-be/internal/agent"
	"github.com/Himanshu7614/voicegrow-be/internal/interview"
	"github.com/Himanshu7614/voicegrow-be/internal/prompts"
	"github.com/Himanshu7614/voicegrow-be/internal/session"
)

type fakeFetcher struct {
	rec   *session.Record
	err   error
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, id string) (*session.Record, error) {
	f.calls.Add(1)
	return f.rec, f.err
}

func fixtureRecord(t *testing.T) *session.Record {
	t.Helper()
	data, err := os.ReadFile("../session/testdata/session.json")
	require.NoError(t, err)
	var env struct {
		Data session.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	return &env.Data
}

// fakeRuntime emits one audio event, then collects frames until the
// session ends. Receive errors other than io.EOF go to lost when it is set.
type fakeRuntime struct {
	configureErr error
	prompt       string
	opts         agent.Options
	done         chan [][]byte
	lost         chan error
}

func (f *fakeRuntime) Configure(systemPrompt string, opts agent.Options) error {
	f.prompt, f.opts = systemPrompt, opts
	return f.configureErr
}

func (f *fakeRuntime) Start(ctx context.Context, sess agent.Session) error {
	sess.Emit(agent.Event{Type: agent.EventAudio, Data: map[string]any{"text": "Hello."}, Audio: []byte{1, 2, 3}})
	var frames [][]byte
	for {
		frame, err := sess.Recv(ctx)
		if errors.Is(err, io.EOF) {
			f.done <- frames
			return nil
		}
		if err != nil {
			if f.lost != nil {
				f.lost <- err
			}
			return err
		}
		frames = append(frames, frame)
	}
}

func (f *fakeRuntime) Say(ctx context.Context, sess agent.Session, text string) error { return nil }

type harness struct {
	url     string
	fetcher *fakeFetcher
	rt      *fakeRuntime
	calls   chan Call
}

func newHarness(t *testing.T, fetcher *fakeFetcher, rt *fakeRuntime, maxConcurrent int) *harness {
	t.Helper()
	renderer, err := prompts.NewRenderer(prompts.DefaultConfig())
	require.NoError(t, err)

	h := &harness{fetcher: fetcher, rt: rt, calls: make(chan Call, 4)}
	handler := NewHandler(HandlerConfig{
		Assembler: interview.New(fetcher, renderer, ""),
		NewRuntime: func(call Call) agent.Runtime {
			h.calls <- call
			return rt
		},
		Options:       agent.DefaultOptions(),
		MaxConcurrent: maxConcurrent,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	h.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return h
}

func (h *harness) dial(t *testing.T, metadata string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(metadata)))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, msgType)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestInterviewSession(t *testing.T) {
	rt := &fakeRuntime{done: make(chan [][]byte, 1)}
	h := newHarness(t, &fakeFetcher{rec: fixtureRecord(t)}, rt, 0)

	conn := h.dial(t, `{"sessionId":"66b1f0c2a4e5d6f7a8b9c0d1","sample_rate":24000,"tts_engine":"elevenlabs"}`)

	ready := readEvent(t, conn)
	assert.Equal(t, agent.EventPromptReady, ready["type"])
	assert.Equal(t, interview.SourceSession, ready["source"])
	assert.Equal(t, "66b1f0c2a4e5d6f7a8b9c0d1", ready["session_id"])
	assert.Len(t, ready["fingerprint"], 64)

	audioEv := readEvent(t, conn)
	assert.Equal(t, agent.EventAudio, audioEv["type"])
	assert.Equal(t, "Hello.", audioEv["text"])
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, []byte{1, 2, 3}, data)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{10, 0}))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{20, 0}))
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	select {
	case frames := <-rt.done:
		assert.Equal(t, [][]byte{{10, 0}, {20, 0}}, frames)
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not see the end of the session")
	}

	call := <-h.calls
	assert.Equal(t, 24000, call.Metadata.SampleRate)
	assert.Equal(t, "elevenlabs", call.Metadata.TTSEngine)
	assert.Equal(t, interview.SourceSession, call.Prompt.Source)
	assert.Contains(t, rt.prompt, "Priya Sharma")
	assert.True(t, rt.opts.AllowInterruptions)
	assert.Equal(t, int32(1), h.fetcher.calls.Load())
}

func TestInterviewSessionFallbacks(t *testing.T) {
	t.Run("metadata without session id", func(t *testing.T) {
		rt := &fakeRuntime{done: make(chan [][]byte, 1)}
		h := newHarness(t, &fakeFetcher{}, rt, 0)

		conn := h.dial(t, `{not valid json`)
		ready := readEvent(t, conn)
		assert.Equal(t, interview.SourceNoSessionID, ready["source"])
		assert.Equal(t, "", ready["session_id"])

		call := <-h.calls
		assert.Equal(t, `{not valid json`, call.Metadata.Raw)
		assert.Equal(t, 0, call.Metadata.SampleRate)
		assert.Equal(t, int32(0), h.fetcher.calls.Load())
	})

	t.Run("session lookup fails", func(t *testing.T) {
		rt := &fakeRuntime{done: make(chan [][]byte, 1)}
		h := newHarness(t, &fakeFetcher{err: session.ErrRetrieval}, rt, 0)

		conn := h.dial(t, `{"sessionId":"missing"}`)
		ready := readEvent(t, conn)
		assert.Equal(t, interview.SourceFetchFailed, ready["source"])
		assert.Equal(t, "missing", ready["session_id"])

		<-h.calls
		readEvent(t, conn)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		<-rt.done
		assert.Equal(t, prompts.DefaultFallback, rt.prompt)
	})
}

func TestRuntimeConfigureErrorEndsSession(t *testing.T) {
	rt := &fakeRuntime{configureErr: errors.New("voice agent: empty system prompt"), done: make(chan [][]byte, 1)}
	h := newHarness(t, &fakeFetcher{rec: fixtureRecord(t)}, rt, 0)

	conn := h.dial(t, `{"sessionId":"66b1f0c2a4e5d6f7a8b9c0d1"}`)
	assert.Equal(t, agent.EventPromptReady, readEvent(t, conn)["type"])

	ev := readEvent(t, conn)
	assert.Equal(t, agent.EventError, ev["type"])
	assert.Equal(t, "configure", ev["stage"])
	assert.Equal(t, "voice agent: empty system prompt", ev["text"])

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseInternalServerErr), "got %v", err)
}

func TestHandlerAtCapacity(t *testing.T) {
	rt := &fakeRuntime{done: make(chan [][]byte, 1)}
	h := newHarness(t, &fakeFetcher{err: session.ErrRetrieval}, rt, 1)

	first := h.dial(t, `{"sessionId":"a"}`)
	readEvent(t, first)

	_, resp, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSampleRateOutOfRangeUsesDefault(t *testing.T) {
	cases := map[string]int{
		`{"sample_rate":1}`:      0,
		`{"sample_rate":-16000}`: 0,
		`{"sample_rate":96000}`:  0,
		`{"sample_rate":8000}`:   8000,
		`{"sample_rate":48000}`:  48000,
	}
	for metadata, want := range cases {
		t.Run(metadata, func(t *testing.T) {
			rt := &fakeRuntime{done: make(chan [][]byte, 1)}
			h := newHarness(t, &fakeFetcher{}, rt, 0)

			conn := h.dial(t, metadata)
			readEvent(t, conn)
			call := <-h.calls
			assert.Equal(t, want, call.Metadata.SampleRate)
			assert.Equal(t, metadata, call.Metadata.Raw)
		})
	}
}

func TestDroppedConnectionReportsDisconnect(t *testing.T) {
	t.Run("abrupt close", func(t *testing.T) {
		rt := &fakeRuntime{done: make(chan [][]byte, 1), lost: make(chan error, 1)}
		h := newHarness(t, &fakeFetcher{}, rt, 0)

		conn := h.dial(t, `{}`)
		readEvent(t, conn)
		readEvent(t, conn)
		require.NoError(t, conn.UnderlyingConn().Close())

		select {
		case err := <-rt.lost:
			assert.ErrorIs(t, err, agent.ErrDisconnected)
		case <-rt.done:
			t.Fatal("dropped connection was treated as a clean end")
		case <-time.After(5 * time.Second):
			t.Fatal("runtime did not see the disconnect")
		}
	})

	t.Run("oversized frame", func(t *testing.T) {
		rt := &fakeRuntime{done: make(chan [][]byte, 1), lost: make(chan error, 1)}
		h := newHarness(t, &fakeFetcher{}, rt, 0)

		conn := h.dial(t, `{}`)
		readEvent(t, conn)
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, maxFrameBytes+1)))

		select {
		case err := <-rt.lost:
			assert.ErrorIs(t, err, agent.ErrDisconnected)
			assert.ErrorIs(t, err, websocket.ErrReadLimit)
		case <-time.After(5 * time.Second):
			t.Fatal("oversized frame was accepted")
		}
	})
}
