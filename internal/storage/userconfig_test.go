package storage

import (
	"testing"

	"github.com/kalambet/flowcraft/internal/aimodel"
)

func TestGetUserConfigEmpty(t *testing.T) {
	s := openTestStore(t)

	cfg, err := s.GetUserConfig()
	if err != nil {
		t.Fatalf("GetUserConfig: %v", err)
	}
	if cfg.OpenAI.Models == nil || cfg.HuggingFace.Models == nil || cfg.Replicate.Models == nil {
		t.Error("model lists should be non-nil")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate: %v", err)
	}
}

func TestPutUserConfigReplacesWhole(t *testing.T) {
	s := openTestStore(t)

	first := aimodel.UserConfig{
		OpenAI: aimodel.ProviderConfig{APIKey: "sk-1", Models: []aimodel.Config{
			{ID: "dall-e-3", Provider: aimodel.ProviderOpenAI, ModelID: "dall-e-3", Type: aimodel.Image, IsEnabled: true,
				Parameters: map[string]any{"quality": "hd"}},
		}},
		ElevenLabs: aimodel.VoiceConfig{APIKey: "xi-1"},
	}
	if err := s.PutUserConfig(first); err != nil {
		t.Fatalf("PutUserConfig: %v", err)
	}

	got, err := s.GetUserConfig()
	if err != nil {
		t.Fatalf("GetUserConfig: %v", err)
	}
	if got.OpenAI.APIKey != "sk-1" || got.ElevenLabs.APIKey != "xi-1" {
		t.Errorf("keys = %q %q", got.OpenAI.APIKey, got.ElevenLabs.APIKey)
	}
	if len(got.OpenAI.Models) != 1 || got.OpenAI.Models[0].Parameters["quality"] != "hd" {
		t.Errorf("OpenAI models = %+v", got.OpenAI.Models)
	}

	second := aimodel.UserConfig{Replicate: aimodel.ProviderConfig{APIKey: "r8"}}
	if err := s.PutUserConfig(second); err != nil {
		t.Fatalf("PutUserConfig second: %v", err)
	}
	got, err = s.GetUserConfig()
	if err != nil {
		t.Fatal(err)
	}
	if got.OpenAI.APIKey != "" || len(got.OpenAI.Models) != 0 || got.ElevenLabs.APIKey != "" {
		t.Errorf("previous config leaked: %+v", got)
	}
	if got.Replicate.APIKey != "r8" {
		t.Errorf("Replicate key = %q", got.Replicate.APIKey)
	}
}
