package aimodel

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by UserConfig.Validate.
var ErrInvalidConfig = errors.New("invalid configuration structure")

// Keys carries fallback API keys, typically from the service configuration.
type Keys struct {
	OpenAI      string
	HuggingFace string
	Replicate   string
	ElevenLabs  string
}

// Validate checks the structure of cfg: every provider list must be present
// and every model must name a known provider and modality.
func (cfg UserConfig) Validate() error {
	lists := []struct {
		provider Provider
		models   []Config
	}{
		{ProviderHuggingFace, cfg.HuggingFace.Models},
		{ProviderOpenAI, cfg.OpenAI.Models},
		{ProviderReplicate, cfg.Replicate.Models},
	}
	for _, l := range lists {
		if l.models == nil {
			return fmt.Errorf("%w: %s.models is required", ErrInvalidConfig, l.provider)
		}
		for i, m := range l.models {
			if m.ID == "" || m.ModelID == "" {
				return fmt.Errorf("%w: %s.models[%d] needs id and modelId", ErrInvalidConfig, l.provider, i)
			}
			if !m.Provider.Valid() {
				return fmt.Errorf("%w: %s.models[%d]: unknown provider %q", ErrInvalidConfig, l.provider, i, m.Provider)
			}
			if !m.Type.Valid() {
				return fmt.Errorf("%w: %s.models[%d]: unknown type %q", ErrInvalidConfig, l.provider, i, m.Type)
			}
		}
	}
	return nil
}

// Normalize replaces nil model lists with empty ones.
func (cfg UserConfig) Normalize() UserConfig {
	if cfg.HuggingFace.Models == nil {
		cfg.HuggingFace.Models = []Config{}
	}
	if cfg.OpenAI.Models == nil {
		cfg.OpenAI.Models = []Config{}
	}
	if cfg.Replicate.Models == nil {
		cfg.Replicate.Models = []Config{}
	}
	return cfg
}

// Redacted returns a copy of cfg with API keys masked.
func (cfg UserConfig) Redacted() UserConfig {
	cfg.HuggingFace.APIKey = mask(cfg.HuggingFace.APIKey)
	cfg.OpenAI.APIKey = mask(cfg.OpenAI.APIKey)
	cfg.Replicate.APIKey = mask(cfg.Replicate.APIKey)
	cfg.ElevenLabs.APIKey = mask(cfg.ElevenLabs.APIKey)
	return cfg
}

// WithFallbackKeys fills empty API keys of cfg from k.
func (cfg UserConfig) WithFallbackKeys(k Keys) UserConfig {
	if cfg.HuggingFace.APIKey == "" {
		cfg.HuggingFace.APIKey = k.HuggingFace
	}
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = k.OpenAI
	}
	if cfg.Replicate.APIKey == "" {
		cfg.Replicate.APIKey = k.Replicate
	}
	if cfg.ElevenLabs.APIKey == "" {
		cfg.ElevenLabs.APIKey = k.ElevenLabs
	}
	return cfg
}

// APIKey returns the key configured for p.
func (cfg UserConfig) APIKey(p Provider) string {
	switch p {
	case ProviderHuggingFace:
		return cfg.HuggingFace.APIKey
	case ProviderOpenAI:
		return cfg.OpenAI.APIKey
	case ProviderReplicate:
		return cfg.Replicate.APIKey
	case ProviderElevenLabs:
		return cfg.ElevenLabs.APIKey
	}
	return ""
}

// Models returns the model list stored for p. ElevenLabs has none.
func (cfg UserConfig) Models(p Provider) []Config {
	switch p {
	case ProviderHuggingFace:
		return cfg.HuggingFace.Models
	case ProviderOpenAI:
		return cfg.OpenAI.Models
	case ProviderReplicate:
		return cfg.Replicate.Models
	}
	return nil
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
