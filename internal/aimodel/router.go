package aimodel

import (
	"errors"
	"fmt"
	"maps"
)

// ErrUnknownModality is returned when a modality has no built-in default.
var ErrUnknownModality = errors.New("unknown modality")

var defaults = map[Modality]Config{
	Text: {
		ID:          "gpt-4",
		Name:        "GPT-4",
		Provider:    ProviderOpenAI,
		ModelID:     "gpt-4",
		Type:        Text,
		Description: "Advanced language model for text generation",
		Parameters:  map[string]any{},
		IsEnabled:   true,
	},
	Image: {
		ID:          "sdxl",
		Name:        "Stable Diffusion XL",
		Provider:    ProviderHuggingFace,
		ModelID:     "stabilityai/stable-diffusion-xl-base-1.0",
		Type:        Image,
		Description: "High-quality image generation model",
		Parameters:  map[string]any{"negative_prompt": "blurry, bad quality, distorted"},
		IsEnabled:   true,
	},
	Video: {
		ID:          "zeroscope",
		Name:        "Zeroscope",
		Provider:    ProviderReplicate,
		ModelID:     "anotherjesse/zeroscope-v2-xl:9f747673945c62801b13b84701c783929c0ee784e4748ec062204894dda1a351",
		Type:        Video,
		Description: "Advanced video generation model",
		Parameters:  map[string]any{"frames": 50, "fps": 30},
		IsEnabled:   true,
	},
	Audio: {
		ID:          "bark",
		Name:        "Bark",
		Provider:    ProviderReplicate,
		ModelID:     "suno/bark:b76242b40d67c76ab6742e987628478ed2fb5265e6f09fd3f7b06aa6067072d5",
		Type:        Audio,
		Description: "Text-to-speech synthesis model",
		Parameters:  map[string]any{"voice_preset": "v2/en_speaker_6"},
		IsEnabled:   true,
	},
	Voice: {
		ID:          "elevenlabs",
		Name:        "ElevenLabs",
		Provider:    ProviderElevenLabs,
		ModelID:     "elevenlabs",
		Type:        Voice,
		Description: "Text-to-speech synthesis model",
		Parameters:  map[string]any{"voice_preset": "elevenlabs"},
		IsEnabled:   true,
	},
}

// Default returns the built-in model for m.
func Default(m Modality) (Config, error) {
	c, ok := defaults[m]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownModality, m)
	}
	return c.Clone(), nil
}

// DraftingModel is the text model used for flow drafting and content
// optimization. It is fixed and does not go through Select.
func DraftingModel() Config {
	return defaults[Text].Clone()
}

// Select returns the first enabled model of modality m, scanning the
// HuggingFace, OpenAI and Replicate lists in that order. When none matches,
// the built-in default for m is returned.
func Select(cfg UserConfig, m Modality) (Config, error) {
	for _, c := range cfg.allModels() {
		if c.IsEnabled && c.Type == m {
			return c.Clone(), nil
		}
	}
	return Default(m)
}

// SelectPreferred returns the enabled model of modality m whose ID equals
// modelID. An empty or unmatched modelID falls back to Select.
func SelectPreferred(cfg UserConfig, m Modality, modelID string) (Config, error) {
	if modelID != "" {
		for _, c := range cfg.allModels() {
			if c.IsEnabled && c.Type == m && (c.ID == modelID || c.ModelID == modelID) {
				return c.Clone(), nil
			}
		}
	}
	return Select(cfg, m)
}

func (cfg UserConfig) allModels() []Config {
	all := make([]Config, 0, len(cfg.HuggingFace.Models)+len(cfg.OpenAI.Models)+len(cfg.Replicate.Models))
	all = append(all, cfg.HuggingFace.Models...)
	all = append(all, cfg.OpenAI.Models...)
	all = append(all, cfg.Replicate.Models...)
	return all
}

// DefaultParams returns suggested generation parameters for a freshly
// validated model of modality m. Modalities without suggestions get an empty
// map.
func DefaultParams(m Modality) map[string]any {
	switch m {
	case Text:
		return map[string]any{"max_length": 1000, "temperature": 0.7, "top_p": 0.9}
	case Image:
		return map[string]any{"width": 1024, "height": 1024, "num_inference_steps": 50, "guidance_scale": 7.5}
	case Video:
		return map[string]any{"num_frames": 50, "fps": 30, "width": 1024, "height": 1024}
	case Audio:
		return map[string]any{"sample_rate": 44100, "duration": 10}
	}
	return map[string]any{}
}

// MergeParams returns a new map with the keys of base overridden by
// override.
func MergeParams(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	maps.Copy(out, base)
	maps.Copy(out, override)
	return out
}

func cloneParams(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}
