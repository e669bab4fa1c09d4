package main

import (
	"time"

	"github.com/Himanshu7614/voicegrow-be/internal/audio"
	"github.com/Himanshu7614/voicegrow-be/internal/env"
	"github.com/Himanshu7614/voicegrow-be/internal/tools"
)

type config struct {
	port                  string
	maxConcurrentSessions int
	httpPoolSize          int

	sessionAPIURL     string
	sessionAPITimeout time.Duration
	promptConfigPath  string
	promptTemplateDir string
	promptFallback    string

	openaiAPIKey  string
	openaiBaseURL string
	llmModel      string
	llmMaxTokens  int
	weatherURL    string

	sttEngine        string
	whisperServerURL string
	deepgramAPIKey   string
	deepgramURL      string
	deepgramModel    string
	deepgramLanguage string

	ttsEngine         string
	openaiTTSURL      string
	openaiTTSModel    string
	openaiTTSVoice    string
	elevenlabsAPIKey  string
	elevenlabsVoiceID string
	elevenlabsModelID string
	piperURL          string
	piperVoice        string

	allowInterruptions bool
	endOfTurnSilence   time.Duration
	greeting           string
	vadConfig          audio.VADConfig

	traceDatabaseURL string
}

func loadConfig() config {
	env.Load(".env.local")

	vad := audio.DefaultVADConfig()
	vad.SpeechThresholdDB = env.Float("VAD_SPEECH_THRESHOLD_DB", vad.SpeechThresholdDB)
	vad.MinSpeechDuration = env.Duration("VAD_MIN_SPEECH", vad.MinSpeechDuration)

	return config{
		port:                  env.Str("GATEWAY_PORT", "8000"),
		maxConcurrentSessions: env.Int("MAX_CONCURRENT_SESSIONS", 100),
		httpPoolSize:          env.Int("HTTP_POOL_SIZE", 50),

		sessionAPIURL:     env.Str("SESSION_API_URL", "http://localhost:3000"),
		sessionAPITimeout: env.Duration("SESSION_API_TIMEOUT", 10*time.Second),
		promptConfigPath:  env.Str("PROMPT_CONFIG_PATH", ""),
		promptTemplateDir: env.Str("PROMPT_TEMPLATE_DIR", ""),
		promptFallback:    env.Str("PROMPT_FALLBACK", ""),

		openaiAPIKey:  env.Str("OPENAI_API_KEY", ""),
		openaiBaseURL: env.Str("OPENAI_BASE_URL", ""),
		llmModel:      env.Str("LLM_MODEL", "gpt-4o-mini"),
		llmMaxTokens:  env.Int("LLM_MAX_TOKENS", 300),
		weatherURL:    env.Str("WEATHER_URL", tools.DefaultWeatherURL),

		sttEngine:        env.Str("STT_ENGINE", "deepgram"),
		whisperServerURL: env.Str("WHISPER_SERVER_URL", ""),
		deepgramAPIKey:   env.Str("DEEPGRAM_API_KEY", ""),
		deepgramURL:      env.Str("DEEPGRAM_URL", ""),
		deepgramModel:    env.Str("DEEPGRAM_MODEL", "nova-3-general"),
		deepgramLanguage: env.Str("DEEPGRAM_LANGUAGE", "en-US"),

		ttsEngine:         env.Str("TTS_ENGINE", "openai"),
		openaiTTSURL:      env.Str("OPENAI_TTS_URL", ""),
		openaiTTSModel:    env.Str("OPENAI_TTS_MODEL", "gpt-4o-mini-tts"),
		openaiTTSVoice:    env.Str("OPENAI_TTS_VOICE", "alloy"),
		elevenlabsAPIKey:  env.Str("ELEVENLABS_API_KEY", ""),
		elevenlabsVoiceID: env.Str("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		elevenlabsModelID: env.Str("ELEVENLABS_MODEL_ID", "eleven_turbo_v2_5"),
		piperURL:          env.Str("PIPER_URL", ""),
		piperVoice:        env.Str("PIPER_VOICE", "en_US-lessac-medium"),

		allowInterruptions: env.Bool("ALLOW_INTERRUPTIONS", true),
		endOfTurnSilence:   env.Duration("END_OF_TURN_SILENCE", 500*time.Millisecond),
		greeting:           env.Str("AGENT_GREETING", ""),
		vadConfig:          vad,

		traceDatabaseURL: env.Str("TRACE_DATABASE_URL", ""),
	}
}
