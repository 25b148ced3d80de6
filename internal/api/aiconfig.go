package api

import (
	"errors"
	"net/http"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/provider"
)

// ValidateModelRequest is the body of POST /ai-config/validate.
type ValidateModelRequest struct {
	Model  *aimodel.Config `json:"model"`
	APIKey string          `json:"apiKey"`
}

// ValidateModelResponse reports a reachable model and its modality defaults.
type ValidateModelResponse struct {
	IsValid       bool           `json:"isValid"`
	DefaultParams map[string]any `json:"defaultParams"`
}

func handleGetAIConfig(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := deps.Store.GetUserConfig()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load ai configuration: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, cfg.Redacted())
	}
}

func handlePutAIConfig(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg aimodel.UserConfig
		if !decodeBody(w, r, &cfg) {
			return
		}
		if err := cfg.Validate(); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err := deps.Store.PutUserConfig(cfg); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save ai configuration: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, cfg.Normalize().Redacted())
	}
}

func handleValidateModel(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ValidateModelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Model == nil || req.APIKey == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "missing required fields: model and apiKey")
			return
		}

		var keys aimodel.Keys
		switch req.Model.Provider {
		case aimodel.ProviderHuggingFace:
			keys.HuggingFace = req.APIKey
		case aimodel.ProviderOpenAI:
			keys.OpenAI = req.APIKey
		case aimodel.ProviderReplicate:
			keys.Replicate = req.APIKey
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid provider %q", req.Model.Provider)
			return
		}

		ok, err := provider.Validate(r.Context(), deps.Backends(keys), *req.Model)
		if errors.Is(err, provider.ErrUnknownProvider) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil || !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid model ID or API key")
			return
		}

		writeJSON(w, http.StatusOK, ValidateModelResponse{
			IsValid:       true,
			DefaultParams: aimodel.DefaultParams(req.Model.Type),
		})
	}
}
