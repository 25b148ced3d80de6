package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/marketing"
	"github.com/kalambet/flowcraft/internal/storage"
)

// CompileFlowRequest is the body of POST /flows. Channels are plain strings
// so unknown names can be reported back.
type CompileFlowRequest struct {
	Objective   string               `json:"objective"`
	Channels    []string             `json:"channels"`
	Constraints map[string]any       `json:"constraints,omitempty"`
	AIConfig    *aimodel.Preferences `json:"aiConfig,omitempty"`
}

// StatusRequest is the body of PUT /flows/{id}/status.
type StatusRequest struct {
	Status marketing.Status `json:"status"`
}

// AnalyticsRequest is the body of POST /flows/{id}/analytics. Metrics are
// appended to the named A/B tests before the flow analytics are recomputed.
type AnalyticsRequest struct {
	Metrics map[string][]marketing.Metric `json:"metrics,omitempty"`
}

func handleListFlows(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := storage.FlowFilter{
			Status:  marketing.Status(q.Get("status")),
			Channel: marketing.Channel(q.Get("channel")),
			Limit:   parseIntParam(r, "limit", 0, 500),
		}

		flows, err := deps.Store.ListFlows(filter)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list flows: %v", err)
			return
		}
		if flows == nil {
			flows = []*marketing.Flow{}
		}
		writeJSON(w, http.StatusOK, flows)
	}
}

func handleCompileFlow(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CompileFlowRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Objective == "" || len(req.Channels) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "missing required fields: objective and channels")
			return
		}

		channels, err := marketing.ParseChannels(req.Channels)
		var invalid *marketing.InvalidChannelsError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{
					"message": invalid.Error(),
					"type":    "invalid_request_error",
				},
				"validChannels": marketing.AllChannels(),
			})
			return
		}

		engine, err := deps.Engines(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load model configuration: %v", err)
			return
		}

		flow, err := engine.Compiler.Compile(r.Context(), marketing.CompileRequest{
			Objective:   req.Objective,
			Channels:    channels,
			Constraints: req.Constraints,
			Preferences: req.AIConfig,
		})
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to compile flow: %v", err)
			return
		}

		if err := deps.Store.SaveFlow(flow); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save flow: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, flow)
	}
}

func handleGetFlow(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flow, ok := loadFlow(w, deps, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, flow)
	}
}

func handleDeleteFlow(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteFlow(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "flow not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete flow: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleFlowStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StatusRequest
		if !decodeBody(w, r, &req) {
			return
		}
		flow, ok := loadFlow(w, deps, chi.URLParam(r, "id"))
		if !ok {
			return
		}

		if err := flow.SetStatus(req.Status, deps.Now()); err != nil {
			httpError(w, http.StatusConflict, "invalid_request_error", "%v", err)
			return
		}
		if err := deps.Store.SaveFlow(flow); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save flow: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, flow)
	}
}

func handleAttachABTest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var test marketing.ABTest
		if !decodeBody(w, r, &test) {
			return
		}
		flow, ok := loadFlow(w, deps, chi.URLParam(r, "id"))
		if !ok {
			return
		}

		if err := flow.AttachABTest(chi.URLParam(r, "name"), test, deps.Now()); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err := deps.Store.SaveFlow(flow); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save flow: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, flow)
	}
}

func handleFlowAnalytics(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalyticsRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		flow, ok := loadFlow(w, deps, chi.URLParam(r, "id"))
		if !ok {
			return
		}

		for name, metrics := range req.Metrics {
			if _, exists := flow.ABTests[name]; !exists {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown a/b test %q", name)
				return
			}
			for i, m := range metrics {
				if err := m.Validate(); err != nil {
					httpError(w, http.StatusBadRequest, "invalid_request_error", "a/b test %q: metric %d: %v", name, i, err)
					return
				}
			}
		}
		for name, metrics := range req.Metrics {
			test := flow.ABTests[name]
			test.Metrics = append(test.Metrics, metrics...)
			flow.ABTests[name] = test
		}

		marketing.UpdateAnalytics(flow)
		flow.UpdatedAt = deps.Now().UTC()
		if err := deps.Store.SaveFlow(flow); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save flow: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, flow)
	}
}

func loadFlow(w http.ResponseWriter, deps Deps, id string) (*marketing.Flow, bool) {
	flow, err := deps.Store.GetFlow(id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "flow not found")
		return nil, false
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get flow: %v", err)
		return nil, false
	}
	return flow, true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
