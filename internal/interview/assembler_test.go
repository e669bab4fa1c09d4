package interview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Himanshu7614/voicegrow-be/internal/prompts"
	"github.com/Himanshu7614/voicegrow-be/internal/session"
)

func newAssembler(t *testing.T, handler http.HandlerFunc) (*Assembler, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	renderer, err := prompts.NewRenderer(prompts.DefaultConfig())
	require.NoError(t, err)
	return New(session.NewClient(srv.URL, time.Second, srv.Client()), renderer, ""), &calls
}

func serveFixture(t *testing.T) http.HandlerFunc {
	body, err := os.ReadFile("../session/testdata/session.json")
	require.NoError(t, err)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

func TestFromMetadataRendersSessionPrompt(t *testing.T) {
	a, calls := newAssembler(t, serveFixture(t))

	res := a.FromMetadata(context.Background(), `{"sessionId":"66b1f0c2a4e5d6f7a8b9c0d1"}`)
	assert.Equal(t, SourceSession, res.Source)
	assert.False(t, res.Fallback())
	assert.Equal(t, "66b1f0c2a4e5d6f7a8b9c0d1", res.SessionID)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, res.Prompt, "Priya Sharma")
	assert.Contains(t, res.Prompt, "priya.sharma@example.com")
	assert.Contains(t, res.Prompt, "DETAILED CANDIDATE RESUME:")
	assert.Equal(t, Fingerprint(res.Prompt), res.Fingerprint)
	require.NotNil(t, res.Record)

	// experience blocks keep input order
	assert.Less(t, strings.Index(res.Prompt, "Company: Razorpay"), strings.Index(res.Prompt, "Company: Flipkart"))
}

func TestNotFoundYieldsFallbackExactly(t *testing.T) {
	a, calls := newAssembler(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"message":"Session not found"}`, http.StatusNotFound)
	})

	res := a.FromMetadata(context.Background(), `{"sessionId":"missing"}`)
	assert.Equal(t, prompts.DefaultFallback, res.Prompt)
	assert.Equal(t, SourceFetchFailed, res.Source)
	assert.True(t, res.Fallback())
	assert.Equal(t, int32(1), calls.Load())
}

func TestBadMetadataSkipsFetch(t *testing.T) {
	a, calls := newAssembler(t, serveFixture(t))

	for _, md := range []string{"{not valid json", "", `{"sessionId":""}`} {
		var res Result
		assert.NotPanics(t, func() { res = a.FromMetadata(context.Background(), md) })
		assert.Equal(t, prompts.DefaultFallback, res.Prompt)
		assert.Equal(t, SourceNoSessionID, res.Source)
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestMissingCandidateYieldsFallback(t *testing.T) {
	a, _ := newAssembler(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"_id":"s1","interviewAgentId":{"companyName":"Acme"}}}`))
	})

	res := a.ForSession(context.Background(), "s1")
	assert.Equal(t, prompts.DefaultFallback, res.Prompt)
	assert.Equal(t, SourceRenderFailed, res.Source)
}

type stubFetcher struct {
	rec *session.Record
	err error
}

func (s stubFetcher) Fetch(context.Context, string) (*session.Record, error) { return s.rec, s.err }

func TestCustomFallback(t *testing.T) {
	renderer, err := prompts.NewRenderer(prompts.DefaultConfig())
	require.NoError(t, err)
	a := New(stubFetcher{err: errors.New("boom")}, renderer, "Be brief.")

	res := a.ForSession(context.Background(), "s1")
	assert.Equal(t, "Be brief.", res.Prompt)
	assert.Equal(t, Fingerprint("Be brief."), res.Fingerprint)
}

func TestFingerprint(t *testing.T) {
	assert.Len(t, Fingerprint("x"), 64)
	assert.Equal(t, Fingerprint("same"), Fingerprint("same"))
	assert.NotEqual(t, Fingerprint("a"), Fingerprint("b"))
}
