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
	"llm":     {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":     {"whisper"},
	"tts":     {"elevenlabs", "polly"},
	"emotion": {"wavlm"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("emotion", cfg.Providers.Emotion.Name)

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; every turn will be answered by the safe fallback")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; the audio turn endpoint will reject uploads")
	}

	if cfg.Game.GatewayTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("game.gateway_timeout_seconds %d must not be negative", cfg.Game.GatewayTimeoutSeconds))
	}
	if cfg.Game.ReplyStore.Capacity < 0 {
		errs = append(errs, fmt.Errorf("game.reply_store.capacity %d must not be negative", cfg.Game.ReplyStore.Capacity))
	}
	if b := cfg.Game.ReplyStore.Backend; b != "" && !b.IsValid() {
		errs = append(errs, fmt.Errorf("game.reply_store.backend %q is invalid; valid values: memory, redis", b))
	}
	if cfg.Game.ReplyStore.Backend == ReplyStoreRedis && cfg.Game.ReplyStore.RedisAddr == "" {
		errs = append(errs, errors.New("game.reply_store.redis_addr is required when backend is redis"))
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
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
