// Command interviewsim is the entry point for the interview simulation
// backend: it loads configuration, wires the core collaborators (Rate
// Governor, Store Gateway, Event Bus, Session Registry, Speech Task
// Tracker), and serves the HTTP/WebSocket API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvidlabs/interviewsim/internal/config"
	"github.com/corvidlabs/interviewsim/internal/coach"
	"github.com/corvidlabs/interviewsim/internal/eventbus"
	"github.com/corvidlabs/interviewsim/internal/httpapi"
	"github.com/corvidlabs/interviewsim/internal/interviewer"
	"github.com/corvidlabs/interviewsim/internal/observe"
	"github.com/corvidlabs/interviewsim/internal/ratelimit"
	"github.com/corvidlabs/interviewsim/internal/session"
	"github.com/corvidlabs/interviewsim/internal/speech"
	"github.com/corvidlabs/interviewsim/internal/store"
	"github.com/corvidlabs/interviewsim/pkg/provider/llm"
	"github.com/corvidlabs/interviewsim/pkg/provider/llm/anyllm"
	"github.com/corvidlabs/interviewsim/pkg/provider/llm/openai"
	"github.com/corvidlabs/interviewsim/pkg/provider/stt"
	"github.com/corvidlabs/interviewsim/pkg/provider/stt/deepgram"
	"github.com/corvidlabs/interviewsim/pkg/provider/tts"
	"github.com/corvidlabs/interviewsim/pkg/provider/tts/coqui"
	"github.com/corvidlabs/interviewsim/pkg/provider/tts/elevenlabs"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "interviewsim: config file %q not found; copy config.example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "interviewsim: %v\n", err)
		}
		return 1
	}

	applyEnvOverrides(cfg)

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("interviewsim starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"store_backend", cfg.Store.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.Setup(ctx, "interviewsim")
	if err != nil {
		slog.Error("failed to initialize telemetry providers", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	storeGW, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to build store gateway", "err", err)
		return 1
	}
	if closeStore != nil {
		defer closeStore()
	}

	governor := ratelimit.NewWithTimeout(ratelimit.Capacities{
		STTBatch:  cfg.RateLimit.STTBatchCapacity,
		TTS:       cfg.RateLimit.TTSCapacity,
		STTStream: cfg.RateLimit.STTStreamCapacity,
		Search:    cfg.RateLimit.SearchCapacity,
	}, cfg.RateLimit.AcquireTimeout)

	llmProvider, err := buildLLMProvider(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to build LLM provider", "err", err)
		return 1
	}
	if llmProvider == nil {
		slog.Warn("running without an LLM provider; interviewer and coach operate in fallback-only mode")
	}

	sttProvider, err := buildSTTProvider(cfg.Providers.STT)
	if err != nil {
		slog.Error("failed to build STT provider", "err", err)
		return 1
	}

	ttsProvider, err := buildTTSProvider(cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to build TTS provider", "err", err)
		return 1
	}

	searcher := buildSearcher(cfg.Providers.Search, governor, logger)

	bus := eventbus.New()
	bus.SubscribeAll(func(evt eventbus.Event) {
		logger.Debug("event", "type", evt.Type, "session_id", evt.SessionID)
	})

	registry := session.New(storeGW, bus, logger, newOrchestratorFactory(bus, logger, llmProvider, searcher))
	registry.StartCleanupTask(
		cfg.Session.SweepInterval.Minutes(),
		cfg.Session.IdleTimeout.Minutes(),
	)
	defer registry.StopCleanupTask()

	tracker := speech.New(storeGW, governor, sttProvider, ttsProvider, logger, cfg.Speech.MaxRetries)

	deps := &httpapi.Deps{
		Registry:         registry,
		Speech:           tracker,
		Governor:         governor,
		Store:            storeGW,
		Metrics:          metrics,
		Logger:           logger,
		DefaultVoiceID:   cfg.Speech.DefaultVoice,
		MaxIdleMinutes:   cfg.Session.IdleTimeout.Minutes(),
		DefaultQuestions: cfg.Session.DefaultTargetQuestionCount,
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready, press Ctrl+C to shut down", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
	case err := <-errCh:
		if err != nil {
			slog.Error("server error", "err", err)
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "err", err)
	}
	registry.Shutdown(shutdownCtx)

	slog.Info("goodbye")
	return 0
}

// buildStore selects the Store Gateway implementation named by
// cfg.Store.Backend and, for the Postgres backend, runs its schema
// migration before returning. The returned close func is non-nil only for
// backends that own a connection pool.
func buildStore(ctx context.Context, cfg *config.Config) (store.Gateway, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		gw := store.NewPostgresGateway(pool)
		if err := gw.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres schema: %w", err)
		}
		return gw, pool.Close, nil
	default:
		return store.NewMemoryGateway(), nil, nil
	}
}

// buildLLMProvider constructs the Interviewer/Coach's shared LLM
// collaborator from the configured provider entry. A blank provider name
// leaves both agents in fallback-only mode.
//
// "openai" selects the native openai-go-backed provider directly, bypassing
// the any-llm-go abstraction layer; every other name routes through
// any-llm-go's provider registry, which is where this module gets its
// Anthropic/Gemini/Ollama reach without an adapter package per provider.
func buildLLMProvider(entry config.ProviderEntry) (llm.Provider, error) {
	switch entry.Name {
	case "":
		return nil, nil
	case "openai":
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, modelOrDefault(entry.Model, "gpt-4o"), opts...)
	default:
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(entry.Name, modelOrDefault(entry.Model, entry.Name), opts...)
	}
}

// buildSTTProvider constructs the batch/stream transcription collaborator
// the Speech Task Tracker governs, or nil if no STT provider is configured.
func buildSTTProvider(entry config.ProviderEntry) (stt.Provider, error) {
	if entry.Name == "" {
		return nil, nil
	}
	var opts []deepgram.Option
	if entry.Model != "" {
		opts = append(opts, deepgram.WithModel(entry.Model))
	}
	return deepgram.New(entry.APIKey, opts...)
}

// buildTTSProvider constructs the synthesis collaborator the Speech Task
// Tracker governs, or nil if no TTS provider is configured.
func buildTTSProvider(entry config.ProviderEntry) (tts.Provider, error) {
	switch entry.Name {
	case "":
		return nil, nil
	case "coqui":
		var opts []coqui.Option
		return coqui.New(entry.BaseURL, opts...)
	default:
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	}
}

// buildSearcher constructs the Coach's learning-resource search
// collaborator, or nil if no search provider is configured.
func buildSearcher(entry config.ProviderEntry, governor *ratelimit.Governor, logger *slog.Logger) coach.ResourceSearcher {
	if entry.Name == "" || entry.APIKey == "" {
		return nil
	}
	return coach.NewSerperSearchService(entry.APIKey, governor, logger)
}

// newOrchestratorFactory returns the session.NewOrchestratorFunc the
// Registry calls on a cold session load; it closes over the shared LLM
// provider and search collaborator and builds a fresh Interviewer/Coach
// pair per session.
func newOrchestratorFactory(bus *eventbus.Bus, logger *slog.Logger, llmProvider llm.Provider, searcher coach.ResourceSearcher) session.NewOrchestratorFunc {
	searchTool := coach.NewSearchTool(searcher, logger)
	return func(sessionID, ownerUserID string, cfg types.SessionConfig) *session.Orchestrator {
		newInterviewer := func() session.InterviewerAgent { return interviewer.New(llmProvider, cfg, logger) }
		newCoach := func() session.CoachAgent {
			return coach.NewEvaluator(llmProvider, searchTool, cfg.ResumeText, cfg.JobDescription, logger)
		}
		return session.NewOrchestrator(sessionID, ownerUserID, cfg, bus, logger, newInterviewer, newCoach)
	}
}

// applyEnvOverrides fills in provider API credentials and the store DSN
// from the environment when the YAML config leaves them blank. Committed
// config files are expected to omit secrets entirely.
func applyEnvOverrides(cfg *config.Config) {
	if cfg.Providers.LLM.APIKey == "" {
		cfg.Providers.LLM.APIKey = firstNonEmptyEnv("INTERVIEWSIM_LLM_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY")
	}
	if cfg.Providers.STT.APIKey == "" {
		cfg.Providers.STT.APIKey = firstNonEmptyEnv("INTERVIEWSIM_STT_API_KEY", "DEEPGRAM_API_KEY")
	}
	if cfg.Providers.TTS.APIKey == "" {
		cfg.Providers.TTS.APIKey = firstNonEmptyEnv("INTERVIEWSIM_TTS_API_KEY", "ELEVENLABS_API_KEY")
	}
	if cfg.Providers.Search.APIKey == "" {
		cfg.Providers.Search.APIKey = firstNonEmptyEnv("INTERVIEWSIM_SEARCH_API_KEY", "SERPER_API_KEY")
	}
	if cfg.Store.PostgresDSN == "" {
		cfg.Store.PostgresDSN = os.Getenv("INTERVIEWSIM_POSTGRES_DSN")
	}
}

func firstNonEmptyEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func modelOrDefault(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
