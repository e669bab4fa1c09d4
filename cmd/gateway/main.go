package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/Himanshu7614/voicegrow-be/internal/agent"
	"github.com/Himanshu7614/voicegrow-be/internal/interview"
	"github.com/Himanshu7614/voicegrow-be/internal/pipeline"
	"github.com/Himanshu7614/voicegrow-be/internal/prompts"
	"github.com/Himanshu7614/voicegrow-be/internal/session"
	"github.com/Himanshu7614/voicegrow-be/internal/tools"
	"github.com/Himanshu7614/voicegrow-be/internal/trace"
	"github.com/Himanshu7614/voicegrow-be/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()
	if cfg.openaiAPIKey == "" {
		fatal("OPENAI_API_KEY is required")
	}

	// Prompt assembly
	promptCfg, err := prompts.LoadConfig(cfg.promptConfigPath)
	if err != nil {
		fatal("load prompt config", "error", err)
	}
	var renderOpts []prompts.Option
	if cfg.promptTemplateDir != "" {
		renderOpts = append(renderOpts, prompts.WithTemplateDir(cfg.promptTemplateDir))
	}
	renderer, err := prompts.NewRenderer(promptCfg, renderOpts...)
	if err != nil {
		fatal("load prompt templates", "error", err)
	}
	httpClient := pipeline.NewPooledHTTPClient(cfg.httpPoolSize, 30*time.Second)
	sessions := session.NewClient(cfg.sessionAPIURL, cfg.sessionAPITimeout, httpClient)
	assembler := interview.New(sessions, renderer, cfg.promptFallback)

	// STT backends
	sttBackends := map[string]pipeline.Transcriber{}
	if cfg.deepgramAPIKey != "" {
		sttBackends["deepgram"] = pipeline.NewDeepgramClient(cfg.deepgramURL, cfg.deepgramAPIKey, cfg.deepgramModel, cfg.deepgramLanguage, httpClient)
	}
	if cfg.whisperServerURL != "" {
		sttBackends["whisper"] = pipeline.NewWhisperClient(cfg.whisperServerURL, httpClient)
	}
	sttRouter := pipeline.NewSTTRouter(sttBackends, cfg.sttEngine)
	if len(sttRouter.Engines()) == 0 {
		fatal("no speech-to-text backend configured (set DEEPGRAM_API_KEY or WHISPER_SERVER_URL)")
	}
	if !sttRouter.Has(cfg.sttEngine) {
		fallback := sttRouter.Engines()[0]
		slog.Warn("stt engine not configured, using another", "requested", cfg.sttEngine, "using", fallback)
		sttRouter = pipeline.NewSTTRouter(sttBackends, fallback)
	}

	// LLM
	providerParams := agents.OpenAIProviderParams{
		APIKey:       param.NewOpt(cfg.openaiAPIKey),
		UseResponses: param.NewOpt(false),
	}
	if cfg.openaiBaseURL != "" {
		providerParams.BaseURL = param.NewOpt(cfg.openaiBaseURL)
	}
	weather := tools.NewWeather(cfg.weatherURL, httpClient)
	llm := pipeline.NewAgentLLM(agents.NewOpenAIProvider(providerParams), cfg.llmModel, cfg.llmMaxTokens, weather.Tool())

	// TTS backends
	ttsBackends := map[string]pipeline.Synthesizer{
		"openai": pipeline.NewOpenAISynthesizer(cfg.openaiTTSURL, cfg.openaiAPIKey, cfg.openaiTTSModel, cfg.openaiTTSVoice, httpClient),
	}
	if cfg.elevenlabsAPIKey != "" {
		ttsBackends["elevenlabs"] = pipeline.NewElevenLabsSynthesizer("", cfg.elevenlabsAPIKey, cfg.elevenlabsVoiceID, cfg.elevenlabsModelID, httpClient)
	}
	if cfg.piperURL != "" {
		ttsBackends["piper"] = pipeline.NewPiperSynthesizer(cfg.piperURL, cfg.piperVoice, httpClient)
	}
	ttsRouter := pipeline.NewTTSRouter(ttsBackends, cfg.ttsEngine)
	if !ttsRouter.Has(cfg.ttsEngine) {
		fatal("tts engine not configured", "engine", cfg.ttsEngine, "available", ttsRouter.Engines())
	}

	// Trace store (optional)
	var traceStore *trace.Store
	var traces trace.Writer
	var traceQueries traceReader
	if cfg.traceDatabaseURL != "" {
		initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
		traceStore, err = trace.Open(initCtx, cfg.traceDatabaseURL)
		initCancel()
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
			traceStore = nil
		} else {
			traces, traceQueries = traceStore, traceStore
			slog.Info("tracing enabled")
		}
	}

	newRuntime := func(call ws.Call) agent.Runtime {
		return pipeline.NewVoiceAgent(pipeline.VoiceConfig{
			STT:        sttRouter,
			STTEngine:  call.Metadata.STTEngine,
			LLM:        llm,
			TTS:        ttsRouter,
			TTSEngine:  call.Metadata.TTSEngine,
			VAD:        cfg.vadConfig,
			SampleRate: call.Metadata.SampleRate,
			Tracer:     call.Tracer,
		})
	}

	handler := ws.NewHandler(ws.HandlerConfig{
		Assembler:  assembler,
		NewRuntime: newRuntime,
		Options: agent.Options{
			AllowInterruptions: cfg.allowInterruptions,
			EndOfTurnSilence:   cfg.endOfTurnSilence,
			Greeting:           cfg.greeting,
		},
		MaxConcurrent: cfg.maxConcurrentSessions,
		Traces:        traces,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		llmModel:  cfg.llmModel,
		assembler: assembler,
		sttRouter: sttRouter,
		ttsRouter: ttsRouter,
		wsHandler: handler,
		traces:    traceQueries,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("gateway starting",
		"addr", addr,
		"max_concurrent", cfg.maxConcurrentSessions,
		"session_api", cfg.sessionAPIURL,
		"llm_model", cfg.llmModel,
		"stt_engines", sttRouter.Engines(),
		"tts_engines", ttsRouter.Engines(),
	)

	if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	if traceStore != nil {
		traceStore.Close()
	}
	slog.Info("gateway stopped")
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
