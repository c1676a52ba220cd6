package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper-native"},
	"tts": {"openai"},
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// validTrustLevels are the accepted trust.required_level values.
var validTrustLevels = []string{"low", "medium", "high", "maximum"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.defaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)

	// Activation
	if t := cfg.Activation.SimilarityThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("activation.similarity_threshold %.2f is out of range (0, 1]", t))
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.ChunkDuration <= 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_duration %v must be positive", cfg.Audio.ChunkDuration))
	}

	// Vision
	if t := cfg.Vision.RecognitionThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("vision.recognition_threshold %.2f is out of range (0, 1]", t))
	}
	if cfg.Vision.EscalationFrameInterval < cfg.Vision.FrameInterval {
		slog.Warn("vision.escalation_frame_interval is shorter than vision.frame_interval; face checks will speed up during confrontations",
			"frame_interval", cfg.Vision.FrameInterval,
			"escalation_frame_interval", cfg.Vision.EscalationFrameInterval,
		)
	}

	// Trust
	if !slices.Contains(validTrustLevels, cfg.Trust.RequiredLevel) {
		errs = append(errs, fmt.Errorf("trust.required_level %q is invalid; valid values: low, medium, high, maximum", cfg.Trust.RequiredLevel))
	}

	// Discord needs both halves or neither.
	if (cfg.Discord.BotToken == "") != (cfg.Discord.ChannelID == "") {
		errs = append(errs, fmt.Errorf("discord.bot_token and discord.channel_id must be set together"))
	}

	// Storage availability warning
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; trust scores and enrolled identities will not persist across restarts")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
