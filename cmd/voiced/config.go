package main

import (
	"time"

	"github.com/sera-labs/voicekit/internal/env"
	"github.com/sera-labs/voicekit/internal/interpret"
)

type config struct {
	port    string
	dbPath  string
	traceDB string
	userID  string

	commandEngine    string
	systemPrompt     string
	interpretTimeout time.Duration
	maxTokens        int

	ollamaURL   string
	ollamaModel string
	llmPoolSize int

	openaiAPIKey  string
	openaiBaseURL string
	openaiModel   string

	feedbackEngine string
	piperURL       string
	piperVoice     string
	speechURL      string
	speechModel    string
	speechVoice    string
	ttsPoolSize    int

	autoExecuteThreshold  float64
	silenceTimeout        time.Duration
	autoCloseDelay        time.Duration
	maxConcurrentSessions int
}

func loadConfig() config {
	return config{
		port:    env.Str("VOICED_PORT", "8000"),
		dbPath:  env.Str("VOICE_DB_PATH", "data/voicekit.db"),
		traceDB: env.Str("TRACE_DATABASE_URL", ""),
		userID:  env.Str("VOICE_USER_ID", "local"),

		commandEngine:    env.Str("COMMAND_ENGINE", "ollama"),
		systemPrompt:     env.Str("COMMAND_SYSTEM_PROMPT", interpret.DefaultSystemPrompt),
		interpretTimeout: env.Dur("INTERPRET_TIMEOUT", 10*time.Second),
		maxTokens:        env.Int("COMMAND_MAX_TOKENS", 300),

		ollamaURL:   env.Str("OLLAMA_URL", "http://localhost:11434"),
		ollamaModel: env.Str("OLLAMA_MODEL", "llama3.2:3b"),
		llmPoolSize: env.Int("LLM_POOL_SIZE", 50),

		openaiAPIKey:  env.Str("OPENAI_API_KEY", ""),
		openaiBaseURL: env.Str("OPENAI_BASE_URL", ""),
		openaiModel:   env.Str("OPENAI_MODEL", "gpt-4o-mini"),

		feedbackEngine: env.Str("FEEDBACK_ENGINE", "piper"),
		piperURL:       env.Str("PIPER_URL", ""),
		piperVoice:     env.Str("PIPER_VOICE", "en_US-lessac-medium"),
		speechURL:      env.Str("SPEECH_URL", ""),
		speechModel:    env.Str("SPEECH_MODEL", "kokoro"),
		speechVoice:    env.Str("SPEECH_VOICE", "af_heart"),
		ttsPoolSize:    env.Int("TTS_POOL_SIZE", 50),

		autoExecuteThreshold:  env.Float("AUTO_EXECUTE_THRESHOLD", 0.8),
		silenceTimeout:        env.Dur("SILENCE_TIMEOUT", 1500*time.Millisecond),
		autoCloseDelay:        env.Dur("AUTO_CLOSE_DELAY", 2000*time.Millisecond),
		maxConcurrentSessions: env.Int("MAX_CONCURRENT_SESSIONS", 100),
	}
}
