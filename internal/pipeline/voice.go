package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Himanshu7614/voicegrow-be/internal/agent"
	"github.com/Himanshu7614/voicegrow-be/internal/audio"
	"github.com/Himanshu7614/voicegrow-be/internal/metrics"
	"github.com/Himanshu7614/voicegrow-be/internal/trace"
)

var (
	ErrNotConfigured  = errors.New("voice agent: not configured")
	ErrAlreadyStarted = errors.New("voice agent: already started")
	ErrEmptyPrompt    = errors.New("voice agent: empty system prompt")
)

const defaultMaxHistory = 20

// VoiceConfig wires the stages of a VoiceAgent.
type VoiceConfig struct {
	STT        *STTRouter
	STTEngine  string
	LLM        Responder
	TTS        *TTSRouter
	TTSEngine  string
	TTSOptions TTSOptions
	VAD        audio.VADConfig
	// SampleRate of incoming PCM16 frames. Zero means STTSampleRate.
	SampleRate int
	MaxHistory int
	Tracer     *trace.Tracer
}

// VoiceAgent is an agent.Runtime built from VAD, speech-to-text, a streamed
// LLM reply and sentence-pipelined speech synthesis. One VoiceAgent serves
// one session.
type VoiceAgent struct {
	cfg VoiceConfig

	mu         sync.Mutex
	prompt     string
	opts       agent.Options
	configured bool
	started    bool
	history    []Exchange
	cancelTurn context.CancelFunc
}

var _ agent.Runtime = (*VoiceAgent)(nil)

// Supported input sample rates. Anything outside falls back to STTSampleRate.
const (
	minSampleRate = 8000
	maxSampleRate = 48000
)

// NewVoiceAgent creates a runtime for one session.
func NewVoiceAgent(cfg VoiceConfig) *VoiceAgent {
	if cfg.SampleRate < minSampleRate || cfg.SampleRate > maxSampleRate {
		cfg.SampleRate = STTSampleRate
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = defaultMaxHistory
	}
	return &VoiceAgent{cfg: cfg}
}

// Configure sets the system prompt and turn options. It must be called
// before Start.
func (a *VoiceAgent) Configure(systemPrompt string, opts agent.Options) error {
	if strings.TrimSpace(systemPrompt) == "" {
		return ErrEmptyPrompt
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return ErrAlreadyStarted
	}
	a.prompt, a.opts, a.configured = systemPrompt, opts, true
	return nil
}

// Start runs the conversation until the session's audio ends or ctx is done.
// Segments still queued when the audio ends cleanly are answered before
// returning; a dropped connection abandons them along with the reply in flight.
func (a *VoiceAgent) Start(ctx context.Context, sess agent.Session) error {
	a.mu.Lock()
	switch {
	case !a.configured:
		a.mu.Unlock()
		return ErrNotConfigured
	case a.started:
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	opts := a.opts
	a.mu.Unlock()

	vadCfg := a.cfg.VAD
	vadCfg.SampleRate = STTSampleRate
	if opts.EndOfTurnSilence > 0 {
		vadCfg.EndOfTurnSilence = opts.EndOfTurnSilence
	}
	vad := audio.NewVAD(vadCfg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	segments := make(chan []float32, 4)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.work(ctx, sess, opts.Greeting, segments)
	}()

	err := a.listen(ctx, sess, vad, opts.AllowInterruptions, segments)
	if err != nil {
		cancel()
	}
	close(segments)
	wg.Wait()
	return err
}

func (a *VoiceAgent) listen(ctx context.Context, sess agent.Session, vad *audio.VAD, interruptible bool, segments chan<- []float32) error {
	for {
		frame, err := sess.Recv(ctx)
		if errors.Is(err, io.EOF) {
			if seg := vad.Flush(); seg != nil {
				metrics.SpeechSegments.Inc()
				segments <- seg
			}
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receive audio: %w", err)
		}
		metrics.AudioChunks.Inc()

		samples := audio.Resample(audio.DecodePCM16(frame), a.cfg.SampleRate, STTSampleRate)
		res := vad.Process(samples)
		if res.SpeechStarted && interruptible {
			a.interrupt(sess)
		}
		if !res.SpeechEnded {
			continue
		}
		metrics.SpeechSegments.Inc()
		select {
		case segments <- res.Audio:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// work answers segments one at a time, after speaking the greeting.
func (a *VoiceAgent) work(ctx context.Context, sess agent.Session, greeting string, segments <-chan []float32) {
	if greeting != "" {
		turnCtx, cancel := context.WithCancel(ctx)
		a.arm(cancel)
		if err := a.Say(turnCtx, sess, greeting); err != nil && turnCtx.Err() == nil {
			slog.Error("greeting", "session", sess.ID(), "error", err)
		}
		a.disarm(cancel)
	}
	for seg := range segments {
		if ctx.Err() != nil {
			continue
		}
		a.runTurn(ctx, sess, seg)
	}
}

// arm lets new participant speech cancel the current turn. Only the agent's
// own speech is interruptible, so turns arm once transcription is done.
func (a *VoiceAgent) arm(cancel context.CancelFunc) {
	a.mu.Lock()
	a.cancelTurn = cancel
	a.mu.Unlock()
}

func (a *VoiceAgent) disarm(cancel context.CancelFunc) {
	a.mu.Lock()
	a.cancelTurn = nil
	a.mu.Unlock()
	cancel()
}

// interrupt cancels the armed turn, if any.
func (a *VoiceAgent) interrupt(sess agent.Session) {
	a.mu.Lock()
	cancel := a.cancelTurn
	a.cancelTurn = nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	metrics.Interruptions.Inc()
	slog.Info("agent interrupted", "session", sess.ID())
	a.emit(sess, agent.Event{Type: agent.EventInterrupted})
}

func (a *VoiceAgent) runTurn(ctx context.Context, sess agent.Session, samples []float32) {
	turnCtx, cancel := context.WithCancel(ctx)
	defer a.disarm(cancel)

	start := time.Now()
	tracer := a.cfg.Tracer
	turnID := tracer.StartTurn()

	sttStart := time.Now()
	tr, err := a.cfg.STT.Transcribe(turnCtx, samples, a.cfg.STTEngine)
	tracer.RecordSpan(turnID, "stt", sttStart, fmt.Sprintf("samples=%d", len(samples)), transcriptText(tr), err)
	if err != nil {
		tracer.EndTurn(turnID, time.Since(start), "", "", a.failTurn(turnCtx, sess, "stt", err))
		return
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" || isNoiseTranscript(text) {
		tracer.EndTurn(turnID, time.Since(start), text, "", trace.StatusFiltered)
		return
	}
	a.arm(cancel)
	slog.Info("transcript", "session", sess.ID(), "text", text, "stt_ms", tr.LatencyMs)
	a.emit(sess, agent.Event{Type: agent.EventTranscript, Data: map[string]any{"text": text, "latency_ms": tr.LatencyMs}})

	reply, spoken, ttsMs, err := a.respond(turnCtx, sess, turnID, text)
	if err != nil {
		if spoken != "" {
			a.remember(Exchange{Candidate: text, Interviewer: spoken})
		} else {
			a.remember(Exchange{Candidate: text})
		}
		tracer.EndTurn(turnID, time.Since(start), text, spoken, a.failTurn(turnCtx, sess, "reply", err))
		return
	}
	a.remember(Exchange{Candidate: text, Interviewer: reply.Text})

	total := time.Since(start)
	metrics.TurnDuration.Observe(total.Seconds())
	slog.Info("turn done", "session", sess.ID(), "total_ms", total.Milliseconds(), "stt_ms", tr.LatencyMs, "llm_ms", reply.LatencyMs, "tts_ms", ttsMs)
	a.emit(sess, agent.Event{Type: agent.EventMetrics, Data: map[string]any{
		"stt_ms":   tr.LatencyMs,
		"llm_ms":   reply.LatencyMs,
		"ttft_ms":  reply.TimeToFirstTokenMs,
		"tts_ms":   ttsMs,
		"total_ms": float64(total.Milliseconds()),
	}})
	tracer.EndTurn(turnID, total, text, reply.Text, trace.StatusOK)
}

// failTurn reports a failed turn and returns its trace status. Turns cut
// short by an interruption or disconnect are not errors.
func (a *VoiceAgent) failTurn(turnCtx context.Context, sess agent.Session, stage string, err error) string {
	if turnCtx.Err() != nil {
		return trace.StatusInterrupted
	}
	slog.Error("turn failed", "session", sess.ID(), "stage", stage, "error", err)
	a.emit(sess, agent.Event{Type: agent.EventError, Data: map[string]any{"stage": stage, "text": err.Error()}})
	return trace.StatusError
}

// respond streams the model reply into TTS sentence by sentence. spoken is
// the text that was actually synthesized, which is all the participant heard
// if the turn was interrupted.
func (a *VoiceAgent) respond(ctx context.Context, sess agent.Session, turnID, input string) (reply *Reply, spoken string, ttsMs float64, err error) {
	a.mu.Lock()
	req := ReplyRequest{Instructions: a.prompt, History: slices.Clone(a.history), Input: input}
	a.mu.Unlock()

	sentences := make(chan string, 4)
	var said strings.Builder
	ttsDone := make(chan error, 1)
	go func() { ttsDone <- a.speak(ctx, sess, turnID, sentences, &ttsMs, &said) }()

	var sb sentenceBuffer
	var cf codeFilter
	send := func(s string) {
		select {
		case sentences <- s:
		case <-ctx.Done():
		}
	}

	llmStart := time.Now()
	reply, err = a.cfg.LLM.Reply(ctx, req, func(token string) {
		a.emit(sess, agent.Event{Type: agent.EventToken, Data: map[string]any{"token": token}})
		if s := sb.Add(cf.Filter(token)); s != "" {
			send(s)
		}
	})
	if err == nil {
		if rest := sb.Flush(); rest != "" {
			send(rest)
		}
	}
	close(sentences)
	ttsErr := <-ttsDone

	a.cfg.Tracer.RecordSpan(turnID, "llm", llmStart, input, replyText(reply), err)
	spoken = strings.TrimSpace(said.String())
	if err != nil {
		return nil, spoken, ttsMs, fmt.Errorf("llm: %w", err)
	}

	slog.Info("llm reply", "session", sess.ID(), "text", reply.Text, "llm_ms", reply.LatencyMs, "ttft_ms", reply.TimeToFirstTokenMs)
	a.emit(sess, agent.Event{Type: agent.EventReplyDone, Data: map[string]any{
		"text":       reply.Text,
		"latency_ms": reply.LatencyMs,
		"ttft_ms":    reply.TimeToFirstTokenMs,
	}})
	if ttsErr != nil {
		return reply, spoken, ttsMs, fmt.Errorf("tts: %w", ttsErr)
	}
	return reply, spoken, ttsMs, nil
}

// speak synthesizes sentences in order until the channel closes. After the
// first failure it keeps draining so the producer never blocks.
func (a *VoiceAgent) speak(ctx context.Context, sess agent.Session, turnID string, sentences <-chan string, totalMs *float64, said *strings.Builder) error {
	var firstErr error
	for s := range sentences {
		if firstErr != nil || ctx.Err() != nil {
			continue
		}
		s = speakable(s)
		if s == "" {
			continue
		}
		start := time.Now()
		speech, err := a.cfg.TTS.Synthesize(ctx, s, a.cfg.TTSEngine, a.cfg.TTSOptions)
		a.cfg.Tracer.RecordSpan(turnID, "tts", start, s, audioSummary(speech), err)
		if err != nil {
			firstErr = err
			continue
		}
		*totalMs += speech.LatencyMs
		said.WriteString(s)
		said.WriteByte(' ')
		a.emit(sess, agent.Event{
			Type:  agent.EventAudio,
			Data:  map[string]any{"text": s, "latency_ms": speech.LatencyMs},
			Audio: speech.Audio,
		})
	}
	if firstErr == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return firstErr
}

// Say speaks text outside a participant turn and adds it to the history.
func (a *VoiceAgent) Say(ctx context.Context, sess agent.Session, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sb sentenceBuffer
	sentences := make(chan string, 16)
	for _, s := range []string{sb.Add(text + " "), sb.Flush()} {
		if s != "" {
			sentences <- s
		}
	}
	close(sentences)

	var ms float64
	var said strings.Builder
	err := a.speak(ctx, sess, "", sentences, &ms, &said)
	if spoken := strings.TrimSpace(said.String()); spoken != "" {
		a.remember(Exchange{Interviewer: spoken})
		a.emit(sess, agent.Event{Type: agent.EventReplyDone, Data: map[string]any{"text": spoken, "latency_ms": ms}})
	}
	return err
}

func (a *VoiceAgent) remember(ex Exchange) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, ex)
	if over := len(a.history) - a.cfg.MaxHistory; over > 0 {
		a.history = slices.Delete(a.history, 0, over)
	}
}

// History returns a copy of the conversation so far.
func (a *VoiceAgent) History() []Exchange {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.history)
}

func (a *VoiceAgent) emit(sess agent.Session, ev agent.Event) {
	if err := sess.Emit(ev); err != nil {
		slog.Warn("emit event", "session", sess.ID(), "type", ev.Type, "error", err)
	}
}

func transcriptText(t *Transcript) string {
	if t == nil {
		return ""
	}
	return t.Text
}

func replyText(r *Reply) string {
	if r == nil {
		return ""
	}
	return r.Text
}

func audioSummary(s *Speech) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("audio_bytes=%d", len(s.Audio))
}

// noiseTranscripts are common STT outputs for breathing and background noise.
var noiseTranscripts = map[string]bool{
	"static": true, "silence": true, "noise": true, "inaudible": true,
	"unintelligible": true, "background noise": true, "music": true,
	"typing": true, "breathing": true, "sigh": true, "cough": true,
	"um": true, "uh": true, "hmm": true, "mhm": true,
}

func isNoiseTranscript(text string) bool {
	for _, pair := range [][2]string{{"*", "*"}, {"[", "]"}, {"(", ")"}} {
		if strings.HasPrefix(text, pair[0]) && strings.HasSuffix(text, pair[1]) {
			return true
		}
	}
	return noiseTranscripts[strings.ToLower(strings.Trim(text, ".!? "))]
}
