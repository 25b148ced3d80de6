package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kalambet/flowcraft/internal/aimodel"
)

// GetUserConfig returns the stored model configuration. An empty database
// yields an empty configuration with non-nil model lists.
func (s *Store) GetUserConfig() (aimodel.UserConfig, error) {
	rows, err := s.db.Query(`SELECT provider, api_key, models_json FROM ai_providers`)
	if err != nil {
		return aimodel.UserConfig{}, err
	}
	defer rows.Close()

	var cfg aimodel.UserConfig
	for rows.Next() {
		var provider, apiKey, modelsJSON string
		if err := rows.Scan(&provider, &apiKey, &modelsJSON); err != nil {
			return aimodel.UserConfig{}, err
		}
		var models []aimodel.Config
		if err := json.Unmarshal([]byte(modelsJSON), &models); err != nil {
			return aimodel.UserConfig{}, fmt.Errorf("decoding %s models: %w", provider, err)
		}
		switch aimodel.Provider(provider) {
		case aimodel.ProviderHuggingFace:
			cfg.HuggingFace = aimodel.ProviderConfig{APIKey: apiKey, Models: models}
		case aimodel.ProviderOpenAI:
			cfg.OpenAI = aimodel.ProviderConfig{APIKey: apiKey, Models: models}
		case aimodel.ProviderReplicate:
			cfg.Replicate = aimodel.ProviderConfig{APIKey: apiKey, Models: models}
		case aimodel.ProviderElevenLabs:
			cfg.ElevenLabs = aimodel.VoiceConfig{APIKey: apiKey}
		}
	}
	if err := rows.Err(); err != nil {
		return aimodel.UserConfig{}, err
	}
	return cfg.Normalize(), nil
}

// PutUserConfig replaces the whole model configuration.
func (s *Store) PutUserConfig(cfg aimodel.UserConfig) error {
	cfg = cfg.Normalize()
	now := formatTime(time.Now())

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning config transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM ai_providers`); err != nil {
		return fmt.Errorf("clearing providers: %w", err)
	}
	for _, p := range aimodel.Providers() {
		models := cfg.Models(p)
		if models == nil {
			models = []aimodel.Config{}
		}
		data, err := json.Marshal(models)
		if err != nil {
			return fmt.Errorf("encoding %s models: %w", p, err)
		}
		if _, err := tx.Exec(`INSERT INTO ai_providers (provider, api_key, models_json, updated_at) VALUES (?, ?, ?, ?)`,
			string(p), cfg.APIKey(p), string(data), now); err != nil {
			return fmt.Errorf("saving provider %s: %w", p, err)
		}
	}
	return tx.Commit()
}
