// Command talkdown is the main entry point for the Talkdown game server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/redis/go-redis/v9"

	"github.com/kallevis/talkdown/internal/config"
	"github.com/kallevis/talkdown/internal/game"
	"github.com/kallevis/talkdown/internal/game/level"
	"github.com/kallevis/talkdown/internal/health"
	"github.com/kallevis/talkdown/internal/observe"
	"github.com/kallevis/talkdown/internal/replystore"
	"github.com/kallevis/talkdown/internal/server"
	"github.com/kallevis/talkdown/pkg/provider/emotion"
	"github.com/kallevis/talkdown/pkg/provider/emotion/wavlm"
	"github.com/kallevis/talkdown/pkg/provider/llm"
	"github.com/kallevis/talkdown/pkg/provider/llm/anyllm"
	oaillm "github.com/kallevis/talkdown/pkg/provider/llm/openai"
	"github.com/kallevis/talkdown/pkg/provider/stt"
	"github.com/kallevis/talkdown/pkg/provider/stt/whisper"
	"github.com/kallevis/talkdown/pkg/provider/tts"
	"github.com/kallevis/talkdown/pkg/provider/tts/elevenlabs"
	"github.com/kallevis/talkdown/pkg/provider/tts/polly"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "talkdown: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "talkdown: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("talkdown starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "talkdown",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Reply store ───────────────────────────────────────────────────────────
	store, readyChecks, err := buildReplyStore(cfg)
	if err != nil {
		slog.Error("failed to build reply store", "err", err)
		return 1
	}
	if providers.Emotion != nil {
		if hc, ok := providers.Emotion.(interface {
			Health(ctx context.Context) error
		}); ok {
			readyChecks = append(readyChecks, health.Checker{Name: "emotion_sidecar", Check: hc.Health})
		}
	}

	// ── Evaluator and HTTP server ─────────────────────────────────────────────
	metrics := observe.DefaultMetrics()
	evaluator := game.NewEvaluator(providers.LLM, level.DefaultTable(), store, metrics, game.EvaluatorConfig{
		GatewayTimeout: time.Duration(cfg.Game.GatewayTimeoutSeconds) * time.Second,
	})

	srv := server.New(server.Config{
		ListenAddr:   cfg.Server.ListenAddr,
		Evaluator:    evaluator,
		Metrics:      metrics,
		STT:          providers.STT,
		TTS:          providers.TTS,
		Emotion:      providers.Emotion,
		DefaultVoice: cfg.Game.DefaultVoice,
		ReadyChecks:  readyChecks,
	})

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newLogger builds the process logger at the configured level.
func newLogger(lvl config.LogLevel) *slog.Logger {
	var level slog.Level
	switch lvl {
	case config.LogDebug:
		level = slog.LevelDebug
	case config.LogWarn:
		level = slog.LevelWarn
	case config.LogError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai goes through the native SDK; the rest share the any-llm pattern
	// of optional APIKey + optional BaseURL.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
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

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, elevenlabs.WithVoice(voice))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("polly", func(entry config.ProviderEntry) (tts.Provider, error) {
		return polly.New(context.Background(), polly.Config{
			Region:  optString(entry.Options, "region"),
			VoiceID: optString(entry.Options, "voice"),
			Engine:  optString(entry.Options, "engine"),
		})
	})

	// ── Emotion ───────────────────────────────────────────────────────────────

	reg.RegisterEmotion("wavlm", func(entry config.ProviderEntry) (emotion.Provider, error) {
		return wavlm.New(entry.BaseURL)
	})
}

// serverProviders holds the external collaborators built from configuration.
// Any of them may be nil; the server degrades per endpoint.
type serverProviders struct {
	LLM     llm.Provider
	STT     stt.Provider
	TTS     tts.Provider
	Emotion emotion.Provider
}

// buildProviders instantiates all providers named in cfg using the registry.
func buildProviders(cfg *config.Config, reg *config.Registry) (*serverProviders, error) {
	ps := &serverProviders{}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", name)
	}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.STT = p
		slog.Info("provider created", "kind", "stt", "name", name)
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ps.TTS = p
		slog.Info("provider created", "kind", "tts", "name", name)
	}

	if name := cfg.Providers.Emotion.Name; name != "" {
		p, err := reg.CreateEmotion(cfg.Providers.Emotion)
		if err != nil {
			return nil, fmt.Errorf("create emotion provider %q: %w", name, err)
		}
		ps.Emotion = p
		slog.Info("provider created", "kind", "emotion", "name", name)
	}

	return ps, nil
}

// buildReplyStore constructs the spoken-line dedup store and any readiness
// checks it contributes.
func buildReplyStore(cfg *config.Config) (replystore.Store, []health.Checker, error) {
	rs := cfg.Game.ReplyStore
	switch rs.Backend {
	case config.ReplyStoreRedis:
		client := redis.NewClient(&redis.Options{Addr: rs.RedisAddr})
		store := replystore.NewRedisStore(client, rs.Capacity)
		check := health.Checker{Name: "reply_store", Check: store.Ping}
		slog.Info("reply store ready", "backend", "redis", "addr", rs.RedisAddr)
		return store, []health.Checker{check}, nil
	case config.ReplyStoreMemory, "":
		return replystore.NewMemoryStore(rs.Capacity), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown reply store backend %q", rs.Backend)
	}
}

// optString reads a string value from a provider options map.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	if v, ok := opts[key].(string); ok {
		return v
	}
	return ""
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Talkdown — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Oracle", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Emotion", cfg.Providers.Emotion.Name, cfg.Providers.Emotion.Model)
	backend := cfg.Game.ReplyStore.Backend
	if backend == "" {
		backend = config.ReplyStoreMemory
	}
	fmt.Printf("║  Reply store     : %-19s ║\n", backend)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", kind, value)
}
