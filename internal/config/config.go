// Package config provides the configuration schema, loader, and provider
// registry for the Talkdown game server.
package config

// LogLevel controls log verbosity for the Talkdown server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ReplyStoreBackend selects where spoken NPC lines are tracked for dedup.
type ReplyStoreBackend string

const (
	// ReplyStoreMemory keeps lines in process memory. Default.
	ReplyStoreMemory ReplyStoreBackend = "memory"

	// ReplyStoreRedis keeps lines in Redis so multiple server processes
	// share one line inventory per session.
	ReplyStoreRedis ReplyStoreBackend = "redis"
)

// IsValid reports whether b is a recognised reply store backend.
func (b ReplyStoreBackend) IsValid() bool {
	return b == ReplyStoreMemory || b == ReplyStoreRedis
}

// Config is the root configuration structure for Talkdown.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Game      GameConfig      `yaml:"game"`
}

// ServerConfig holds network and logging settings for the Talkdown server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation to use for each
// external collaborator. Each field selects a named provider registered in
// the [Registry].
type ProvidersConfig struct {
	// LLM is the narrative oracle backend. Required.
	LLM ProviderEntry `yaml:"llm"`

	// STT is the speech-to-text backend used by the audio turn endpoint.
	STT ProviderEntry `yaml:"stt"`

	// TTS is the speech synthesis backend used by the speak endpoint.
	TTS ProviderEntry `yaml:"tts"`

	// Emotion is the vocal emotion classifier. Optional; turns without it
	// simply carry no emotion signal.
	Emotion ProviderEntry `yaml:"emotion"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the
// [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "openai", "whisper", "polly").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "gpt-4o-mini", "ggml-base.en").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// GameConfig tunes the turn evaluation engine.
type GameConfig struct {
	// GatewayTimeoutSeconds bounds one narrative oracle call. Zero means
	// the built-in default.
	GatewayTimeoutSeconds int `yaml:"gateway_timeout_seconds"`

	// ReplyStore configures the spoken-line dedup store.
	ReplyStore ReplyStoreConfig `yaml:"reply_store"`

	// DefaultVoice is the TTS voice used when a speak request names none.
	DefaultVoice string `yaml:"default_voice"`
}

// ReplyStoreConfig configures the spoken-line dedup store.
type ReplyStoreConfig struct {
	// Backend selects the store implementation. Empty means "memory".
	Backend ReplyStoreBackend `yaml:"backend"`

	// RedisAddr is the Redis host:port, required for the redis backend.
	RedisAddr string `yaml:"redis_addr"`

	// Capacity is the per-session line cap. Zero means the built-in
	// default.
	Capacity int `yaml:"capacity"`
}
