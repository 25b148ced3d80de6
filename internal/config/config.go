package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Providers ProvidersConfig
	Cache     CacheConfig
	Worker    WorkerConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           int
	AllowedOrigins string // comma-separated
}

type StorageConfig struct {
	DataDir string
}

// ProvidersConfig holds fallback credentials and endpoints for the generative
// providers. Keys stored in the user's model configuration take precedence.
type ProvidersConfig struct {
	OpenAIAPIKey      string
	HuggingFaceAPIKey string
	ReplicateAPIKey   string
	ElevenLabsAPIKey  string

	OpenAIBaseURL      string
	HuggingFaceBaseURL string
	ReplicateBaseURL   string
	ElevenLabsBaseURL  string

	RequestTimeout string
}

type CacheConfig struct {
	RedisURL string // empty disables the generation cache
	TTL      string
}

type WorkerConfig struct {
	PollInterval string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           4100,
			AllowedOrigins: "http://localhost:3000",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Providers: ProvidersConfig{
			RequestTimeout: "120s",
		},
		Cache: CacheConfig{
			TTL: "24h",
		},
		Worker: WorkerConfig{
			PollInterval: "500ms",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Origins returns the CORS origin list.
func (c ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Load reads configuration from a .env file in the working directory (if
// any), the JSON config file at $XDG_CONFIG_HOME/flowcraft/config.json,
// FLOWCRAFT_* environment variables and finally the secrets file for
// provider API keys that are still empty.
//
// Environment variables override file values.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not load .env: %v\n", err)
	}
	return loadWith(newPlatformBackend(), NewSecretStore())
}

// secretReader abstracts the secret store for testing.
type secretReader interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, secrets secretReader) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, secrets)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}

	return cfg, nil
}

func applySecrets(cfg *Config, secrets secretReader) {
	for _, s := range specs {
		if !s.secret || s.account == "" {
			continue
		}
		if cur, _ := s.extract(*cfg).(string); cur != "" {
			continue
		}
		if v, err := secrets.Get(secretService, s.account); err == nil && v != "" {
			s.apply(cfg, strings.TrimSpace(v))
		}
	}
}
