package config

import (
	"strings"
	"testing"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  stt:
    name: whisper
    base_url: http://localhost:8178
  tts:
    name: polly
  emotion:
    name: wavlm
    base_url: http://localhost:8123
game:
  gateway_timeout_seconds: 20
  default_voice: Matthew
  reply_store:
    backend: memory
    capacity: 64
`

func TestLoadFromReaderValid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" || cfg.Server.LogLevel != LogInfo {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != "gpt-4o-mini" {
		t.Errorf("llm = %+v", cfg.Providers.LLM)
	}
	if cfg.Game.GatewayTimeoutSeconds != 20 || cfg.Game.ReplyStore.Capacity != 64 {
		t.Errorf("game = %+v", cfg.Game)
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	yaml := `
server:
  listen_addr: ":8080"
  lug_level: info
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantSub: "server.log_level",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Game.GatewayTimeoutSeconds = -1 },
			wantSub: "gateway_timeout_seconds",
		},
		{
			name:    "bad reply store backend",
			mutate:  func(c *Config) { c.Game.ReplyStore.Backend = "etcd" },
			wantSub: "reply_store.backend",
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Game.ReplyStore.Backend = ReplyStoreRedis
				c.Game.ReplyStore.RedisAddr = ""
			},
			wantSub: "redis_addr",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadFromReader(strings.NewReader(validYAML))
			if err != nil {
				t.Fatalf("baseline config invalid: %v", err)
			}
			tc.mutate(cfg)
			err = Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("Validate = %v, want error containing %q", err, tc.wantSub)
			}
		})
	}
}

func TestValidateJoinsAllErrors(t *testing.T) {
	cfg := &Config{}
	cfg.Server.LogLevel = "loud"
	cfg.Game.GatewayTimeoutSeconds = -5
	cfg.Game.ReplyStore.Capacity = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted a broken config")
	}
	for _, sub := range []string{"server.log_level", "gateway_timeout_seconds", "reply_store.capacity"} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("joined error missing %q: %v", sub, err)
		}
	}
}
