package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/flowcraft/internal/marketing"
	"github.com/kalambet/flowcraft/internal/storage"
	"github.com/kalambet/flowcraft/internal/worker"
)

// GenerateRequest is the body of POST /content/generate. Async requests are
// queued and answered with a generation ID.
type GenerateRequest struct {
	marketing.GenerateRequest
	Async bool `json:"async,omitempty"`
}

// OptimizeRequest is the body of POST /content/optimize.
type OptimizeRequest struct {
	Content     string             `json:"content"`
	Channel     marketing.Channel  `json:"channel"`
	Performance map[string]float64 `json:"performance"`
}

// GenerationResponse is a stored generation.
type GenerationResponse struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Prompt      string          `json:"prompt"`
	ContentType string          `json:"contentType"`
	Channel     string          `json:"channel"`
	Content     json.RawMessage `json:"content,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func handleGenerate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Prompt == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "prompt is required")
			return
		}
		if _, err := marketing.ModalityFor(req.ContentType); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if !req.Channel.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid channel %q", req.Channel)
			return
		}

		if req.Async {
			id := deps.NewID()
			if err := worker.Enqueue(deps.Store, id, req.GenerateRequest); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to queue generation: %v", err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "queued"})
			return
		}

		engine, err := deps.Engines(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load model configuration: %v", err)
			return
		}
		content, err := engine.Generator.Generate(r.Context(), req.GenerateRequest)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "generation failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, content)
	}
}

func handleGetGeneration(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := deps.Store.GetGeneration(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "generation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get generation: %v", err)
			return
		}

		resp := GenerationResponse{
			ID:          g.ID,
			Status:      g.Status,
			Prompt:      g.Prompt,
			ContentType: g.ContentType,
			Channel:     g.Channel,
			Error:       g.Error,
			CreatedAt:   g.CreatedAt,
			UpdatedAt:   g.UpdatedAt,
		}
		if g.OutputJSON != "" {
			resp.Content = json.RawMessage(g.OutputJSON)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleOptimize(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OptimizeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}
		if !req.Channel.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid channel %q", req.Channel)
			return
		}

		engine, err := deps.Engines(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load model configuration: %v", err)
			return
		}
		optimized, err := engine.Optimizer.Optimize(r.Context(), req.Content, req.Channel, req.Performance)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "optimization failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"content": optimized})
	}
}
