// Package tools holds the function tools exposed to the interviewer model.
package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nlpodyssey/openai-agents-go/agents"

	"github.com/Himanshu7614/voicegrow-be/internal/metrics"
)

// ErrWeather is returned when the weather service cannot answer.
var ErrWeather = errors.New("weather lookup failed")

const DefaultWeatherURL = "https://wttr.in"

// WeatherArgs is the tool's JSON argument schema.
type WeatherArgs struct {
	Location string `json:"location" jsonschema_description:"The location to get the weather for"`
}

// Weather answers small-talk weather questions using wttr.in's one-line format.
type Weather struct {
	baseURL string
	client  *http.Client
}

// NewWeather creates the weather tool backend. An empty baseURL uses wttr.in.
func NewWeather(baseURL string, client *http.Client) *Weather {
	if baseURL == "" {
		baseURL = DefaultWeatherURL
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Weather{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Lookup returns "The weather in <location> right now is <conditions>."
func (w *Weather) Lookup(ctx context.Context, args WeatherArgs) (string, error) {
	location := strings.TrimSpace(args.Location)
	if location == "" {
		metrics.ToolCalls.WithLabelValues("weather", "invalid").Inc()
		return "", fmt.Errorf("%w: location is required", ErrWeather)
	}
	slog.Info("tool call", "tool", "weather", "location", location)

	req, err := http.NewRequestWithContext(ctx, "GET", w.baseURL+"/"+url.PathEscape(location)+"?format=%25C+%25t", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWeather, err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		metrics.ToolCalls.WithLabelValues("weather", "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrWeather, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		metrics.ToolCalls.WithLabelValues("weather", "error").Inc()
		return "", fmt.Errorf("%w: read body: %v", ErrWeather, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ToolCalls.WithLabelValues("weather", "error").Inc()
		return "", fmt.Errorf("%w: status %d", ErrWeather, resp.StatusCode)
	}

	metrics.ToolCalls.WithLabelValues("weather", "ok").Inc()
	return fmt.Sprintf("The weather in %s right now is %s.", location, strings.TrimSpace(string(body))), nil
}

// Tool exposes Lookup to the model as the "weather" function tool.
func (w *Weather) Tool() agents.FunctionTool {
	return agents.NewFunctionTool(
		"weather",
		"Get the current weather in a location. Use only when the candidate makes small talk about the weather.",
		w.Lookup,
	)
}
