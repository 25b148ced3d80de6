package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string // secret store account for secret keys
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
	// validate, when set, checks a value given to `config set`.
	validate func(raw string) error
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "FLOWCRAFT_SERVER_PORT",
		apply:    func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract:  func(cfg Config) any { return cfg.Server.Port },
		validate: portNumber,
	},
	{
		key: "server.allowed_origins", typ: kString, env: "FLOWCRAFT_SERVER_ALLOWED_ORIGINS",
		apply:    func(cfg *Config, v any) { cfg.Server.AllowedOrigins = v.(string) },
		extract:  func(cfg Config) any { return cfg.Server.AllowedOrigins },
		validate: originList,
	},
	{
		key: "storage.data_dir", typ: kString, env: "FLOWCRAFT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "providers.openai_api_key", typ: kString, env: "FLOWCRAFT_OPENAI_API_KEY",
		secret: true, account: "openai_api_key",
		apply:   func(cfg *Config, v any) { cfg.Providers.OpenAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.OpenAIAPIKey },
	},
	{
		key: "providers.huggingface_api_key", typ: kString, env: "FLOWCRAFT_HUGGINGFACE_API_KEY",
		secret: true, account: "huggingface_api_key",
		apply:   func(cfg *Config, v any) { cfg.Providers.HuggingFaceAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.HuggingFaceAPIKey },
	},
	{
		key: "providers.replicate_api_key", typ: kString, env: "FLOWCRAFT_REPLICATE_API_KEY",
		secret: true, account: "replicate_api_key",
		apply:   func(cfg *Config, v any) { cfg.Providers.ReplicateAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.ReplicateAPIKey },
	},
	{
		key: "providers.elevenlabs_api_key", typ: kString, env: "FLOWCRAFT_ELEVENLABS_API_KEY",
		secret: true, account: "elevenlabs_api_key",
		apply:   func(cfg *Config, v any) { cfg.Providers.ElevenLabsAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.ElevenLabsAPIKey },
	},
	{
		key: "providers.openai_base_url", typ: kString, env: "FLOWCRAFT_OPENAI_BASE_URL",
		apply:    func(cfg *Config, v any) { cfg.Providers.OpenAIBaseURL = v.(string) },
		extract:  func(cfg Config) any { return cfg.Providers.OpenAIBaseURL },
		validate: urlWithScheme("http", "https"),
	},
	{
		key: "providers.huggingface_base_url", typ: kString, env: "FLOWCRAFT_HUGGINGFACE_BASE_URL",
		apply:    func(cfg *Config, v any) { cfg.Providers.HuggingFaceBaseURL = v.(string) },
		extract:  func(cfg Config) any { return cfg.Providers.HuggingFaceBaseURL },
		validate: urlWithScheme("http", "https"),
	},
	{
		key: "providers.replicate_base_url", typ: kString, env: "FLOWCRAFT_REPLICATE_BASE_URL",
		apply:    func(cfg *Config, v any) { cfg.Providers.ReplicateBaseURL = v.(string) },
		extract:  func(cfg Config) any { return cfg.Providers.ReplicateBaseURL },
		validate: urlWithScheme("http", "https"),
	},
	{
		key: "providers.elevenlabs_base_url", typ: kString, env: "FLOWCRAFT_ELEVENLABS_BASE_URL",
		apply:    func(cfg *Config, v any) { cfg.Providers.ElevenLabsBaseURL = v.(string) },
		extract:  func(cfg Config) any { return cfg.Providers.ElevenLabsBaseURL },
		validate: urlWithScheme("http", "https"),
	},
	{
		key: "providers.request_timeout", typ: kString, env: "FLOWCRAFT_PROVIDERS_REQUEST_TIMEOUT",
		apply:    func(cfg *Config, v any) { cfg.Providers.RequestTimeout = v.(string) },
		extract:  func(cfg Config) any { return cfg.Providers.RequestTimeout },
		validate: positiveDuration,
	},
	{
		key: "cache.redis_url", typ: kString, env: "FLOWCRAFT_CACHE_REDIS_URL",
		apply:    func(cfg *Config, v any) { cfg.Cache.RedisURL = v.(string) },
		extract:  func(cfg Config) any { return cfg.Cache.RedisURL },
		validate: urlWithScheme("redis", "rediss"),
	},
	{
		key: "cache.ttl", typ: kString, env: "FLOWCRAFT_CACHE_TTL",
		apply:    func(cfg *Config, v any) { cfg.Cache.TTL = v.(string) },
		extract:  func(cfg Config) any { return cfg.Cache.TTL },
		validate: positiveDuration,
	},
	{
		key: "worker.poll_interval", typ: kString, env: "FLOWCRAFT_WORKER_POLL_INTERVAL",
		apply:    func(cfg *Config, v any) { cfg.Worker.PollInterval = v.(string) },
		extract:  func(cfg Config) any { return cfg.Worker.PollInterval },
		validate: positiveDuration,
	},
	{
		key: "log.level", typ: kString, env: "FLOWCRAFT_LOG_LEVEL",
		apply:    func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract:  func(cfg Config) any { return cfg.Log.Level },
		validate: oneOf("debug", "info", "warn", "error"),
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("ignoring non-integer env override", "var", s.env, "value", raw, "error", err)
			}
		}
	}
}
