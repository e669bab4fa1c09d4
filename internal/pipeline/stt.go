package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Himanshu7614/voicegrow-be/internal/audio"
	"github.com/Himanshu7614/voicegrow-be/internal/metrics"
)

// STTSampleRate is the rate audio is resampled to before transcription.
const STTSampleRate = 16000

// Transcriber turns one speech segment (mono, STTSampleRate) into text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32) (*Transcript, error)
}

// Transcript is a transcription with its latency.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	LatencyMs  float64 `json:"latency_ms"`
}

// STTRouter selects a speech-to-text backend by engine name.
type STTRouter struct {
	*Router[Transcriber]
}

// NewSTTRouter routes transcription by engine name.
func NewSTTRouter(backends map[string]Transcriber, fallback string) *STTRouter {
	return &STTRouter{Router: NewRouter(backends, fallback)}
}

// Transcribe routes to engine and records stage latency.
func (r *STTRouter) Transcribe(ctx context.Context, samples []float32, engine string) (*Transcript, error) {
	backend, err := r.Route(engine)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	t, err := backend.Transcribe(ctx, samples)
	if err != nil {
		return nil, err
	}
	t.LatencyMs = float64(time.Since(start).Milliseconds())
	metrics.StageDuration.WithLabelValues("stt").Observe(time.Since(start).Seconds())
	return t, nil
}

// --- Whisper-compatible multipart backend (whisper.cpp server, faster-whisper) ---

// WhisperClient posts WAV audio as multipart form data.
type WhisperClient struct {
	url      string
	endpoint string
	client   *http.Client
}

// NewWhisperClient targets a whisper.cpp style server (POST /inference).
func NewWhisperClient(baseURL string, client *http.Client) *WhisperClient {
	return &WhisperClient{url: strings.TrimRight(baseURL, "/"), endpoint: "/inference", client: client}
}

// Transcribe posts samples as a 16kHz WAV file.
func (c *WhisperClient) Transcribe(ctx context.Context, samples []float32) (*Transcript, error) {
	body, contentType, err := multipartWAV(samples)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.url+c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create whisper request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var out struct {
		Text string `json:"text"`
	}
	if err = doJSON(c.client, req, "whisper", &out); err != nil {
		return nil, err
	}
	return &Transcript{Text: strings.TrimSpace(out.Text)}, nil
}

func multipartWAV(samples []float32) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err = part.Write(audio.EncodeWAV(samples, STTSampleRate)); err != nil {
		return nil, "", fmt.Errorf("write wav data: %w", err)
	}
	if err = w.WriteField("response_format", "json"); err != nil {
		return nil, "", fmt.Errorf("write form field: %w", err)
	}
	if err = w.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}
	return &body, w.FormDataContentType(), nil
}

// --- Deepgram prerecorded backend ---

const DefaultDeepgramURL = "https://api.deepgram.com"

// DeepgramClient transcribes a finished segment with Deepgram's /v1/listen.
type DeepgramClient struct {
	url      string
	apiKey   string
	model    string
	language string
	client   *http.Client
}

// NewDeepgramClient creates a Deepgram client. An empty baseURL uses the
// public API.
func NewDeepgramClient(baseURL, apiKey, model, language string, client *http.Client) *DeepgramClient {
	if baseURL == "" {
		baseURL = DefaultDeepgramURL
	}
	return &DeepgramClient{
		url:      strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		model:    model,
		language: language,
		client:   client,
	}
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe posts samples as a 16kHz WAV body to the listen endpoint.
func (c *DeepgramClient) Transcribe(ctx context.Context, samples []float32) (*Transcript, error) {
	q := url.Values{}
	q.Set("model", c.model)
	q.Set("language", c.language)
	q.Set("smart_format", "true")

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/v1/listen?"+q.Encode(),
		bytes.NewReader(audio.EncodeWAV(samples, STTSampleRate)))
	if err != nil {
		return nil, fmt.Errorf("create deepgram request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	var out deepgramResponse
	if err = doJSON(c.client, req, "deepgram", &out); err != nil {
		return nil, err
	}
	if len(out.Results.Channels) == 0 || len(out.Results.Channels[0].Alternatives) == 0 {
		return &Transcript{}, nil
	}
	alt := out.Results.Channels[0].Alternatives[0]
	return &Transcript{Text: strings.TrimSpace(alt.Transcript), Confidence: alt.Confidence}, nil
}

// doJSON performs req and decodes a 200 JSON body into out. label names the
// upstream in errors and metrics.
func doJSON(client *http.Client, req *http.Request, label string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues(label, "http").Inc()
		return fmt.Errorf("%s request: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.Errors.WithLabelValues(label, "status").Inc()
		return fmt.Errorf("%s status %d: %s", label, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.Errors.WithLabelValues(label, "decode").Inc()
		return fmt.Errorf("decode %s response: %w", label, err)
	}
	return nil
}
