// Package interview turns a participant's join metadata into the system
// prompt for the agent runtime: extract the session id, fetch the session,
// render the prompt, and fall back to a generic prompt on any failure.
package interview

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/Himanshu7614/voicegrow-be/internal/metrics"
	"github.com/Himanshu7614/voicegrow-be/internal/prompts"
	"github.com/Himanshu7614/voicegrow-be/internal/session"
)

// Prompt sources, also used as the prompt_render_total label.
const (
	SourceSession      = "session"
	SourceNoSessionID  = "fallback_no_session_id"
	SourceFetchFailed  = "fallback_fetch_failed"
	SourceRenderFailed = "fallback_render_failed"
)

// Fetcher loads a session record by id.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (*session.Record, error)
}

// Result is the prompt handed to the runtime plus how it was obtained.
type Result struct {
	Prompt      string
	SessionID   string
	Source      string
	Fingerprint string
	Record      *session.Record
}

// Fallback reports whether the generic prompt was used.
func (r Result) Fallback() bool { return r.Source != SourceSession }

// Assembler builds prompts. The zero value is not usable; use New.
type Assembler struct {
	fetcher  Fetcher
	renderer *prompts.Renderer
	fallback string
}

// New creates an Assembler. An empty fallback uses prompts.DefaultFallback.
func New(fetcher Fetcher, renderer *prompts.Renderer, fallback string) *Assembler {
	return &Assembler{
		fetcher:  fetcher,
		renderer: renderer,
		fallback: prompts.Fallback(fallback),
	}
}

// FromMetadata resolves the prompt for a participant's join metadata.
// It never fails.
func (a *Assembler) FromMetadata(ctx context.Context, metadata string) Result {
	id, ok := session.ExtractID(metadata)
	if !ok {
		slog.Warn("no session id in participant metadata, using fallback prompt")
		return a.result("", SourceNoSessionID, a.fallback, nil)
	}
	return a.ForSession(ctx, id)
}

// ForSession resolves the prompt for a known session id. It never fails.
func (a *Assembler) ForSession(ctx context.Context, id string) Result {
	start := time.Now()
	rec, err := a.fetcher.Fetch(ctx, id)
	if err != nil {
		slog.Error("fetch interview session", "session_id", id, "error", err)
		return a.result(id, SourceFetchFailed, a.fallback, nil)
	}

	out, err := a.render(rec)
	if err != nil {
		slog.Error("render interview prompt", "session_id", id, "error", err)
		return a.result(id, SourceRenderFailed, a.fallback, rec)
	}

	res := a.result(id, SourceSession, out, rec)
	slog.Info("interview prompt ready",
		"session_id", id,
		"prompt_chars", len(out),
		"has_resume", rec.ParsedResume() != nil,
		"fingerprint", res.Fingerprint,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func (a *Assembler) render(rec *session.Record) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("render panic: %v\n%s", p, debug.Stack())
		}
	}()
	return a.renderer.Render(rec)
}

func (a *Assembler) result(id, source, prompt string, rec *session.Record) Result {
	metrics.PromptRenders.WithLabelValues(source).Inc()
	return Result{
		Prompt:      prompt,
		SessionID:   id,
		Source:      source,
		Fingerprint: Fingerprint(prompt),
		Record:      rec,
	}
}

// Fingerprint is the hex SHA-256 of a prompt; traces store this instead of
// the prompt itself.
func Fingerprint(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
