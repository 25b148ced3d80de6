package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/marketing"
	"github.com/kalambet/flowcraft/internal/provider"
	"github.com/kalambet/flowcraft/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// EngineFactory builds an engine from the current model configuration.
type EngineFactory func(ctx context.Context) (*marketing.Engine, error)

// BackendsFactory builds provider clients for the given credentials.
type BackendsFactory func(keys aimodel.Keys) provider.Backends

// Deps holds the dependencies of the HTTP API.
type Deps struct {
	Store          *storage.Store
	Token          string
	AllowedOrigins []string
	Engines        EngineFactory
	Backends       BackendsFactory

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}

// NewHandler returns the REST API. /health is public; every other route
// requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	deps = deps.withDefaults()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/channels", handleChannels)

		r.Get("/flows", handleListFlows(deps))
		r.Post("/flows", handleCompileFlow(deps))
		r.Get("/flows/{id}", handleGetFlow(deps))
		r.Delete("/flows/{id}", handleDeleteFlow(deps))
		r.Put("/flows/{id}/status", handleFlowStatus(deps))
		r.Put("/flows/{id}/ab-tests/{name}", handleAttachABTest(deps))
		r.Post("/flows/{id}/analytics", handleFlowAnalytics(deps))

		r.Post("/content/generate", handleGenerate(deps))
		r.Get("/content/generations/{id}", handleGetGeneration(deps))
		r.Post("/content/optimize", handleOptimize(deps))

		r.Get("/ai-config", handleGetAIConfig(deps))
		r.Put("/ai-config", handlePutAIConfig(deps))
		r.Post("/ai-config/validate", handleValidateModel(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleChannels(w http.ResponseWriter, r *http.Request) {
	specs := make(map[marketing.Channel]marketing.ChannelSpec)
	for _, c := range marketing.AllChannels() {
		specs[c], _ = marketing.LookupSpec(c)
	}
	writeJSON(w, http.StatusOK, specs)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
