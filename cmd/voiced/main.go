package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nlpodyssey/openai-agents-go/agents"

	"github.com/sera-labs/voicekit/internal/command"
	"github.com/sera-labs/voicekit/internal/feedback"
	"github.com/sera-labs/voicekit/internal/httpx"
	"github.com/sera-labs/voicekit/internal/interpret"
	"github.com/sera-labs/voicekit/internal/store"
	"github.com/sera-labs/voicekit/internal/trace"
	"github.com/sera-labs/voicekit/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file", "error", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()

	db, err := store.Open(cfg.dbPath)
	if err != nil {
		slog.Error("open store", "path", cfg.dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var traceStore *trace.Store
	if cfg.traceDB != "" {
		traceStore, err = trace.Open(cfg.traceDB)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer traceStore.Close()
			slog.Info("tracing enabled")
		}
	}

	// Command processor backends. Ollama is always available as the local
	// fallback; OpenAI-backed engines register when a key is present.
	processors := map[string]interpret.Processor{
		"ollama": interpret.NewOllamaProcessor(cfg.ollamaURL, cfg.ollamaModel, cfg.systemPrompt, cfg.maxTokens, cfg.llmPoolSize),
	}
	if cfg.openaiAPIKey != "" {
		processors["openai"] = interpret.NewOpenAIProcessor(cfg.openaiAPIKey, cfg.openaiBaseURL, cfg.openaiModel, cfg.systemPrompt)
		processors["agent"] = interpret.NewAgentProcessor(
			agents.NewOpenAIProvider(agents.OpenAIProviderParams{}),
			cfg.openaiModel, cfg.systemPrompt, cfg.maxTokens,
		)
	}
	interpreter := interpret.New(interpret.Config{
		Processors: interpret.NewRegistry(processors, "ollama"),
		Engine:     cfg.commandEngine,
		Timeout:    cfg.interpretTimeout,
	})

	router := command.NewRouter(db, nil)

	var speaker feedback.Speaker
	ttsHTTP := httpx.NewPooledClient(cfg.ttsPoolSize, 30*time.Second)
	switch {
	case cfg.feedbackEngine == "piper" && cfg.piperURL != "":
		speaker = feedback.NewPiperSpeaker(cfg.piperURL, cfg.piperVoice, ttsHTTP)
	case cfg.feedbackEngine == "openai" && cfg.speechURL != "":
		speaker = feedback.NewOpenAISpeaker(cfg.speechURL, cfg.speechModel, cfg.speechVoice, ttsHTTP)
	default:
		slog.Info("spoken feedback disabled")
	}
	synth := feedback.NewSynthesizer(speaker)

	wsHandler := ws.NewHandler(ws.HandlerConfig{
		Interpreter:          interpreter,
		Router:               router,
		Feedback:             synth,
		History:              db,
		TraceStore:           traceStore,
		AutoExecuteThreshold: cfg.autoExecuteThreshold,
		SilenceTimeout:       cfg.silenceTimeout,
		AutoCloseDelay:       cfg.autoCloseDelay,
		MaxConcurrent:        cfg.maxConcurrentSessions,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		cfg:         cfg,
		db:          db,
		interpreter: interpreter,
		router:      router,
		traceStore:  traceStore,
		wsHandler:   wsHandler,
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

	slog.Info("voiced starting",
		"addr", addr,
		"engine", cfg.commandEngine,
		"auto_execute_threshold", cfg.autoExecuteThreshold,
		"max_concurrent", cfg.maxConcurrentSessions,
	)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("voiced stopped")
}
