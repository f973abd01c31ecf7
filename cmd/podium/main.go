// Command podium is the presentation-coaching API server.
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

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/podiumlabs/podium/internal/api"
	"github.com/podiumlabs/podium/internal/coach"
	"github.com/podiumlabs/podium/internal/config"
	"github.com/podiumlabs/podium/internal/gamify"
	"github.com/podiumlabs/podium/internal/health"
	"github.com/podiumlabs/podium/internal/observe"
	"github.com/podiumlabs/podium/internal/pipeline"
	"github.com/podiumlabs/podium/internal/qa"
	"github.com/podiumlabs/podium/internal/resilience"
	"github.com/podiumlabs/podium/internal/store"
	"github.com/podiumlabs/podium/pkg/provider/asr"
	"github.com/podiumlabs/podium/pkg/provider/asr/whisper"
	"github.com/podiumlabs/podium/pkg/provider/extract"
	"github.com/podiumlabs/podium/pkg/provider/extract/plaintext"
	"github.com/podiumlabs/podium/pkg/provider/llm"
	"github.com/podiumlabs/podium/pkg/provider/llm/anyllm"
	"github.com/podiumlabs/podium/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	audioDir := flag.String("audio-dir", "data/audio", "directory for uploaded recordings")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "podium: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "podium: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("podium starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"storage", cfg.Storage.Driver,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "podium"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Storage ───────────────────────────────────────────────────────────────
	st, dbPing, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise storage", "err", err)
		return 1
	}
	defer closeStore()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	asrProvider, llmProvider, extractProvider, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Core wiring ───────────────────────────────────────────────────────────
	engine := gamify.NewEngine(st)
	feedbackCoach := coach.New(llmProvider)
	questions := qa.New(llmProvider)

	pipe := pipeline.New(st, asrProvider, feedbackCoach, engine,
		pipeline.WithTranscribeTimeout(cfg.Pipeline.TranscribeTimeout),
		pipeline.WithGenerateTimeout(cfg.Pipeline.GenerateTimeout),
	)
	hub := api.NewHub(logger)
	runner := pipeline.NewRunner(pipe, cfg.Pipeline.MaxConcurrent,
		pipeline.WithOnDone(hub.Publish),
	)
	defer runner.Close()

	server := api.New(st, runner, extractProvider, questions, engine, hub,
		api.WithAudioDir(*audioDir),
	)

	// ── Config hot reload ─────────────────────────────────────────────────────
	// prev is touched only inside the callback; the watcher serializes calls.
	prev := cfg
	watcher, err := config.NewWatcher(*configPath, func(_, next *config.Config) {
		diff := config.Diff(prev, next)
		if diff.LogLevelChanged {
			logLevel.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level reloaded", "log_level", diff.NewLogLevel)
		}
		if diff.PipelineChanged {
			pipe.SetTimeouts(diff.NewPipeline.TranscribeTimeout, diff.NewPipeline.GenerateTimeout)
			slog.Info("pipeline timeouts reloaded",
				"transcribe_timeout", diff.NewPipeline.TranscribeTimeout,
				"generate_timeout", diff.NewPipeline.GenerateTimeout,
			)
		}
		prev = next
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP surface ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	server.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(healthCheckers(cfg.Providers.ASR.Name, dbPing)...).Register(mux)

	handler := observe.Middleware(observe.DefaultMetrics())(mux)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "listen_addr", listenAddr)
		if tls := cfg.Server.TLS; tls != nil {
			serveErr <- httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			serveErr <- httpServer.ListenAndServe()
		}
	}()

	select {
	case err := <-serveErr:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Storage wiring ────────────────────────────────────────────────────────────

// buildStore creates the configured store. It returns the store, a readiness
// ping, and a close function.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(context.Context) error, func(), error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		slog.Info("postgres store ready")
		return pg, pool.Ping, pool.Close, nil
	default:
		slog.Info("in-memory store ready — data is lost on restart")
		noPing := func(context.Context) error { return nil }
		return store.NewMemStore(), noPing, func() {}, nil
	}
}

// healthCheckers assembles the readiness checks.
func healthCheckers(asrName string, dbPing func(context.Context) error) []health.Checker {
	return []health.Checker{
		{Name: "database", Check: dbPing},
		{Name: "providers", Check: func(context.Context) error {
			if asrName == "" {
				return errors.New("no asr provider configured")
			}
			return nil
		}},
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── ASR ───────────────────────────────────────────────────────────────────

	reg.RegisterASR("whisper", func(entry config.ProviderEntry) (asr.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterASR("whisper-native", func(entry config.ProviderEntry) (asr.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────

	// openai uses the native SDK-backed provider; everything else goes through
	// the any-llm gateway.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── Extract ───────────────────────────────────────────────────────────────

	reg.RegisterExtract("plaintext", func(entry config.ProviderEntry) (extract.Provider, error) {
		return plaintext.New(), nil
	})
}

// buildProviders instantiates the providers named in cfg, wrapping each in its
// circuit-breaking fallback group. The LLM provider may be nil; coach and qa
// degrade to deterministic fallbacks.
func buildProviders(cfg *config.Config, reg *config.Registry) (asr.Provider, llm.Provider, extract.Provider, error) {
	var asrProvider asr.Provider
	if name := cfg.Providers.ASR.Name; name != "" {
		p, err := reg.CreateASR(cfg.Providers.ASR)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create asr provider %q: %w", name, err)
		}
		asrProvider = resilience.NewASRFallback(p, name, resilience.FallbackConfig{})
		slog.Info("provider created", "kind", "asr", "name", name)
	} else {
		return nil, nil, nil, errors.New("providers.asr is required")
	}

	var llmProvider llm.Provider
	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		llmProvider = resilience.NewLLMFallback(p, name, resilience.FallbackConfig{})
		slog.Info("provider created", "kind", "llm", "name", name)
	} else {
		slog.Warn("no llm provider configured — feedback and questions use deterministic fallbacks")
	}

	extractProvider := extract.Provider(plaintext.New())
	if name := cfg.Providers.Extract.Name; name != "" {
		p, err := reg.CreateExtract(cfg.Providers.Extract)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create extract provider %q: %w", name, err)
		}
		extractProvider = p
		slog.Info("provider created", "kind", "extract", "name", name)
	}

	return asrProvider, llmProvider, extractProvider, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
