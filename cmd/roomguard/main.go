// Command roomguard is the main entry point for the Roomguard agent.
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
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/roomguard/internal/config"
	"github.com/MrWong99/roomguard/internal/dialogue"
	"github.com/MrWong99/roomguard/internal/faceid"
	"github.com/MrWong99/roomguard/internal/guard"
	"github.com/MrWong99/roomguard/internal/identity"
	identitymem "github.com/MrWong99/roomguard/internal/identity/memory"
	identitypg "github.com/MrWong99/roomguard/internal/identity/postgres"
	"github.com/MrWong99/roomguard/internal/notify"
	"github.com/MrWong99/roomguard/internal/observe"
	"github.com/MrWong99/roomguard/internal/server"
	"github.com/MrWong99/roomguard/internal/trust"
	trustmem "github.com/MrWong99/roomguard/internal/trust/memory"
	trustpg "github.com/MrWong99/roomguard/internal/trust/postgres"
	"github.com/MrWong99/roomguard/pkg/capture/pipe"
	"github.com/MrWong99/roomguard/pkg/provider/llm"
	"github.com/MrWong99/roomguard/pkg/provider/llm/anyllm"
	"github.com/MrWong99/roomguard/pkg/provider/stt"
	"github.com/MrWong99/roomguard/pkg/provider/stt/whisper"
	"github.com/MrWong99/roomguard/pkg/provider/tts"
	oaitts "github.com/MrWong99/roomguard/pkg/provider/tts/openai"
	"github.com/MrWong99/roomguard/pkg/provider/tts/pcmplayer"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

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
			fmt.Fprintf(os.Stderr, "roomguard: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "roomguard: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("roomguard starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitMetrics(version)
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Playback and capture devices ──────────────────────────────────────────
	player, err := pcmplayer.New(cfg.Audio.PlaybackCommand)
	if err != nil {
		slog.Error("failed to create playback device", "err", err)
		return 1
	}
	audio, err := pipe.NewAudioSource(cfg.Audio.CaptureCommand, cfg.Audio.SampleRate)
	if err != nil {
		slog.Error("failed to create audio source", "err", err)
		return 1
	}
	camera, err := pipe.NewCamera(cfg.Vision.CameraCommand, cfg.Vision.FrameInterval)
	if err != nil {
		slog.Error("failed to create camera", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, player)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Stores ────────────────────────────────────────────────────────────────
	trustStore, identityStore, err := buildStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise storage", "err", err)
		return 1
	}

	trustManager, err := trust.NewManager(ctx, trustStore)
	if err != nil {
		slog.Error("failed to load trust records", "err", err)
		return 1
	}

	// ── Vision ────────────────────────────────────────────────────────────────
	encoder, err := faceid.NewClient(cfg.Vision.EncoderURL)
	if err != nil {
		slog.Error("failed to create face encoder client", "err", err)
		return 1
	}
	visionSvc, err := faceid.NewService(encoder, identityStore)
	if err != nil {
		slog.Error("failed to create vision service", "err", err)
		return 1
	}

	// ── Discord alerts (optional) ─────────────────────────────────────────────
	var notifier notify.Notifier
	if cfg.Discord.BotToken != "" {
		session, err := notify.NewDiscordSession(cfg.Discord.BotToken)
		if err != nil {
			slog.Error("failed to connect Discord bot", "err", err)
			return 1
		}
		defer session.Close()

		notifier, err = notify.NewDiscord(session, cfg.Discord.ChannelID)
		if err != nil {
			slog.Error("failed to create Discord notifier", "err", err)
			return 1
		}
		slog.Info("discord alerts enabled", "channel_id", cfg.Discord.ChannelID)
	}

	// ── Guard agent ───────────────────────────────────────────────────────────
	// The controller's hooks point back at the agent, which does not exist
	// yet; the indirection resolves once the agent is assigned below.
	var agent *guard.Agent
	controller := dialogue.NewController(providers.LLM, providers.TTS,
		dialogue.WithMaxSilence(cfg.Dialogue.MaxSilence),
		dialogue.WithCheckInterval(cfg.Dialogue.CheckInterval),
		dialogue.WithOnEscalated(func(level int) {
			if agent != nil {
				agent.OnEscalated(level)
			}
		}),
		dialogue.WithOnEnd(func(sum dialogue.Summary) {
			if agent != nil {
				agent.OnConversationEnd(sum)
			}
		}),
	)

	hub := server.NewHub()
	agent, err = guard.New(guard.Config{
		SampleRate:              cfg.Audio.SampleRate,
		ChunkDuration:           cfg.Audio.ChunkDuration,
		AudioQueueSize:          cfg.Audio.QueueSize,
		FrameQueueSize:          cfg.Vision.QueueSize,
		ActivationPhrases:       cfg.Activation.Phrases,
		DeactivationPhrases:     cfg.Activation.DeactivationPhrases,
		SimilarityThreshold:     cfg.Activation.SimilarityThreshold,
		RecognitionThreshold:    cfg.Vision.RecognitionThreshold,
		FrameInterval:           cfg.Vision.FrameInterval,
		EscalationFrameInterval: cfg.Vision.EscalationFrameInterval,
		RequiredTrustLevel:      trust.ParseLevel(cfg.Trust.RequiredLevel),
		IdleWindow:              cfg.Trust.IdleWindow,
	}, guard.Deps{
		Audio:       audio,
		Camera:      camera,
		Transcriber: providers.STT,
		Vision:      visionSvc,
		Trust:       trustManager,
		Identities:  identityStore,
		Controller:  controller,
		Notifier:    notifier,
		Metrics:     observe.DefaultMetrics(),
		Events:      hub,
	})
	if err != nil {
		slog.Error("failed to initialise guard agent", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return agent.Run(gctx) })
	if cfg.Server.ListenAddr != "" {
		srv := server.New(cfg.Server.ListenAddr, agent, hub, server.WithRoster(agent))
		g.Go(func() error { return srv.Run(gctx) })
	}

	slog.Info("guard ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// The TTS factories share the playback device.
func registerBuiltinProviders(reg *config.Registry, player tts.Player) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Speaker, error) {
		var opts []oaitts.Option
		if entry.Model != "" {
			opts = append(opts, oaitts.WithModel(entry.Model))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, oaitts.WithVoice(voice))
		}
		return oaitts.New(entry.APIKey, player, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Generator, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Generator, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts)
	})
}

// providerSet holds the instantiated pipeline providers. All three are
// required: the guard cannot listen, speak, or confront without them.
type providerSet struct {
	STT stt.Transcriber
	TTS tts.Speaker
	LLM llm.Generator
}

// buildProviders instantiates the providers named in cfg using the registry.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	ps := &providerSet{}

	if cfg.Providers.STT.Name == "" {
		return nil, fmt.Errorf("providers.stt.name is required")
	}
	sttP, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	ps.STT = sttP
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	if cfg.Providers.TTS.Name == "" {
		return nil, fmt.Errorf("providers.tts.name is required")
	}
	ttsP, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	ps.TTS = ttsP
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	if cfg.Providers.LLM.Name == "" {
		return nil, fmt.Errorf("providers.llm.name is required")
	}
	llmP, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	ps.LLM = llmP
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)

	return ps, nil
}

// buildStores creates the trust and identity stores: Postgres when a DSN is
// configured, volatile in-memory stores otherwise.
func buildStores(ctx context.Context, cfg *config.Config) (trust.Store, identity.Store, error) {
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("no postgres_dsn configured; trust scores and enrollments are volatile")
		return trustmem.NewStore(), identitymem.NewStore(), nil
	}

	trustStore, err := trustpg.NewStore(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("trust store: %w", err)
	}
	identityStore, err := identitypg.NewStore(ctx, cfg.Storage.PostgresDSN, cfg.Vision.EncodingDimensions)
	if err != nil {
		return nil, nil, fmt.Errorf("identity store: %w", err)
	}
	slog.Info("postgres storage connected", "encoding_dimensions", cfg.Vision.EncodingDimensions)
	return trustStore, identityStore, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Roomguard — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printRow("Trust level", cfg.Trust.RequiredLevel)
	if cfg.Storage.PostgresDSN != "" {
		printRow("Storage", "postgres")
	} else {
		printRow("Storage", "in-memory")
	}
	if cfg.Discord.BotToken != "" {
		printRow("Discord", "connected")
	} else {
		printRow("Discord", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
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
	printRow(kind, value)
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

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
