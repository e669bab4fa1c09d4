package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Himanshu7614/voicegrow-be/internal/metrics"
)

// TTSOptions holds per-call synthesis tuning.
type TTSOptions struct {
	Voice string
	Speed float64
}

// Synthesizer produces audio for one sentence.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts TTSOptions) ([]byte, error)
}

// Speech is synthesized audio with its latency.
type Speech struct {
	Audio     []byte
	LatencyMs float64
}

// TTSRouter selects a text-to-speech backend by engine name.
type TTSRouter struct {
	*Router[Synthesizer]
}

// NewTTSRouter routes synthesis by engine name.
func NewTTSRouter(backends map[string]Synthesizer, fallback string) *TTSRouter {
	return &TTSRouter{Router: NewRouter(backends, fallback)}
}

// Synthesize routes to engine and records stage latency.
func (r *TTSRouter) Synthesize(ctx context.Context, text, engine string, opts TTSOptions) (*Speech, error) {
	backend, err := r.Route(engine)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	data, err := backend.Synthesize(ctx, text, opts)
	if err != nil {
		metrics.Errors.WithLabelValues("tts", "synth").Inc()
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("tts").Observe(time.Since(start).Seconds())
	return &Speech{Audio: data, LatencyMs: float64(time.Since(start).Milliseconds())}, nil
}

// --- OpenAI /v1/audio/speech (OpenAI itself, or any compatible server such as Kokoro) ---

const DefaultOpenAIURL = "https://api.openai.com"

type openaiSynthesizer struct {
	url    string
	apiKey string
	model  string
	voice  string
	client *http.Client
}

// NewOpenAISynthesizer creates an OpenAI-compatible backend. apiKey may be
// empty for self-hosted servers.
func NewOpenAISynthesizer(baseURL, apiKey, model, voice string, client *http.Client) Synthesizer {
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	return &openaiSynthesizer{url: strings.TrimRight(baseURL, "/"), apiKey: apiKey, model: model, voice: voice, client: client}
}

func (o *openaiSynthesizer) Synthesize(ctx context.Context, text string, opts TTSOptions) ([]byte, error) {
	body, err := json.Marshal(struct {
		Input          string  `json:"input"`
		Model          string  `json:"model"`
		Voice          string  `json:"voice"`
		Speed          float64 `json:"speed,omitempty"`
		ResponseFormat string  `json:"response_format"`
	}{Input: text, Model: o.model, Voice: firstNonEmpty(opts.Voice, o.voice), Speed: opts.Speed, ResponseFormat: "wav"})
	if err != nil {
		return nil, fmt.Errorf("marshal openai tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.url+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create openai tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	return doAudio(o.client, req, "openai-tts")
}

// --- ElevenLabs ---

const DefaultElevenLabsURL = "https://api.elevenlabs.io"

type elevenlabsSynthesizer struct {
	url     string
	apiKey  string
	voiceID string
	modelID string
	client  *http.Client
}

// NewElevenLabsSynthesizer uses the ElevenLabs text-to-speech API. An empty
// baseURL means the public endpoint.
func NewElevenLabsSynthesizer(baseURL, apiKey, voiceID, modelID string, client *http.Client) Synthesizer {
	if baseURL == "" {
		baseURL = DefaultElevenLabsURL
	}
	return &elevenlabsSynthesizer{url: strings.TrimRight(baseURL, "/"), apiKey: apiKey, voiceID: voiceID, modelID: modelID, client: client}
}

func (e *elevenlabsSynthesizer) Synthesize(ctx context.Context, text string, opts TTSOptions) ([]byte, error) {
	body, err := json.Marshal(struct {
		Text    string `json:"text"`
		ModelID string `json:"model_id"`
	}{Text: text, ModelID: e.modelID})
	if err != nil {
		return nil, fmt.Errorf("marshal elevenlabs request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", e.url, firstNonEmpty(opts.Voice, e.voiceID))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create elevenlabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Accept", "audio/mpeg")
	return doAudio(e.client, req, "elevenlabs")
}

// --- Piper (local neural TTS, returns WAV) ---

type piperSynthesizer struct {
	url    string
	voice  string
	client *http.Client
}

// NewPiperSynthesizer targets a Piper HTTP server.
func NewPiperSynthesizer(baseURL, voice string, client *http.Client) Synthesizer {
	return &piperSynthesizer{url: strings.TrimRight(baseURL, "/"), voice: voice, client: client}
}

func (p *piperSynthesizer) Synthesize(ctx context.Context, text string, opts TTSOptions) ([]byte, error) {
	body, err := json.Marshal(struct {
		Text  string `json:"text"`
		Voice string `json:"voice"`
	}{Text: text, Voice: firstNonEmpty(opts.Voice, p.voice)})
	if err != nil {
		return nil, fmt.Errorf("marshal piper request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.url+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create piper request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return doAudio(p.client, req, "piper")
}

func doAudio(client *http.Client, req *http.Request, label string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s status %d: %s", label, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return io.ReadAll(resp.Body)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
