// Command promptctl prints the interviewer system prompt for a session, either
// fetched from the session API or read from a JSON file, so prompt content can
// be reviewed without starting a call.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/Himanshu7614/voicegrow-be/internal/env"
	"github.com/Himanshu7614/voicegrow-be/internal/interview"
	"github.com/Himanshu7614/voicegrow-be/internal/prompts"
	"github.com/Himanshu7614/voicegrow-be/internal/session"
)

type options struct {
	sessionID    string
	file         string
	section      string
	configPath   string
	templateDir  string
	apiURL       string
	timeout      time.Duration
	strict       bool
	fingerprint  bool
	listSections bool
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	env.Load(".env.local")

	var opts options
	pflag.StringVarP(&opts.sessionID, "session", "s", "", "Interview session id to fetch from the session API")
	pflag.StringVarP(&opts.file, "file", "f", "", "Session JSON file (bare record or {\"data\": record} envelope)")
	pflag.StringVar(&opts.section, "section", "", "Render only this section")
	pflag.StringVarP(&opts.configPath, "config", "c", env.Str("PROMPT_CONFIG_PATH", ""), "Prompt config YAML (default: built-in)")
	pflag.StringVar(&opts.templateDir, "template-dir", env.Str("PROMPT_TEMPLATE_DIR", ""), "Directory of <section>.tmpl overrides")
	pflag.StringVar(&opts.apiURL, "api-url", env.Str("SESSION_API_URL", "http://localhost:3000"), "Session API base URL")
	pflag.DurationVar(&opts.timeout, "timeout", env.Duration("SESSION_API_TIMEOUT", 10*time.Second), "Session API timeout")
	pflag.BoolVar(&opts.strict, "strict", false, "Fail on render errors instead of printing the fallback prompt")
	pflag.BoolVar(&opts.fingerprint, "fingerprint", false, "Print the prompt's SHA-256 fingerprint after the prompt")
	pflag.BoolVar(&opts.listSections, "list-sections", false, "List section names and exit")
	pflag.Parse()

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "promptctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.listSections {
		_, err := fmt.Fprintln(out, strings.Join(prompts.SectionNames(), "\n"))
		return err
	}
	if (opts.sessionID == "") == (opts.file == "") {
		return errors.New("exactly one of --session or --file is required")
	}

	cfg, err := prompts.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	var renderOpts []prompts.Option
	if opts.templateDir != "" {
		renderOpts = append(renderOpts, prompts.WithTemplateDir(opts.templateDir))
	}
	renderer, err := prompts.NewRenderer(cfg, renderOpts...)
	if err != nil {
		return err
	}

	rec, err := loadRecord(ctx, opts)
	if err != nil {
		return err
	}

	var prompt string
	switch {
	case opts.section != "":
		prompt, err = renderer.Section(opts.section, rec)
	case opts.strict:
		prompt, err = renderer.Render(rec)
	default:
		prompt = renderer.RenderOr(rec, prompts.DefaultFallback)
	}
	if err != nil {
		return err
	}

	if _, err = fmt.Fprintln(out, prompt); err != nil {
		return err
	}
	if opts.fingerprint {
		_, err = fmt.Fprintf(out, "\nfingerprint: %s\n", interview.Fingerprint(prompt))
	}
	return err
}

func loadRecord(ctx context.Context, opts options) (*session.Record, error) {
	if opts.sessionID != "" {
		return session.NewClient(opts.apiURL, opts.timeout, nil).Fetch(ctx, opts.sessionID)
	}
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

// decodeRecord accepts either the session API envelope or a bare record.
func decodeRecord(data []byte) (*session.Record, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		data = envelope.Data
	}
	var rec session.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &rec, nil
}
