package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Himanshu7614/voicegrow-be/internal/metrics"
)

// ErrFetch is the single failure kind callers see from Fetch. ErrRetrieval
// and ErrValidation both wrap it.
var (
	ErrFetch      = errors.New("session fetch failed")
	ErrRetrieval  = fmt.Errorf("%w: retrieval", ErrFetch)
	ErrValidation = fmt.Errorf("%w: validation", ErrFetch)
)

const sessionsPath = "/api/interview-sessions/"

// Client looks up interview sessions on the session API.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewClient creates a session API client. timeout bounds each Fetch; zero
// leaves only the http.Client's own limits in place.
func NewClient(baseURL string, timeout time.Duration, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  client,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Fetch performs a single GET for the session. It does not retry.
func (c *Client) Fetch(ctx context.Context, id string) (*Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		metrics.SessionFetchFailures.WithLabelValues("empty_id").Inc()
		return nil, fmt.Errorf("%w: empty session id", ErrValidation)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() { metrics.SessionFetchDuration.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+sessionsPath+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrRetrieval, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.SessionFetchFailures.WithLabelValues("http").Inc()
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.SessionFetchFailures.WithLabelValues("status").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Warn("session api non-success", "session_id", id, "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: status %d", ErrRetrieval, resp.StatusCode)
	}

	var env envelope
	if err = json.NewDecoder(resp.Body).Decode(&env); err != nil {
		metrics.SessionFetchFailures.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: decode body: %v", ErrValidation, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		metrics.SessionFetchFailures.WithLabelValues("no_data").Inc()
		return nil, fmt.Errorf("%w: response has no data (message %q)", ErrValidation, env.Message)
	}

	var rec Record
	if err = json.Unmarshal(env.Data, &rec); err != nil {
		metrics.SessionFetchFailures.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: decode data: %v", ErrValidation, err)
	}
	return &rec, nil
}
