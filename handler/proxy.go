// Package handler implements the public HTTP surface of §6: the chat
// completions endpoint, model listing/lookup, and the admin model
// patch route. Orchestration lives in the pipeline package — this
// package only decodes/encodes JSON and maps pipelineerr.Kind to HTTP
// status codes.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/relayforge/gateway/chatmodel"
	"github.com/relayforge/gateway/middleware"
	"github.com/relayforge/gateway/modelmanager"
	"github.com/relayforge/gateway/pipeline"
	"github.com/relayforge/gateway/pipelineerr"
	"github.com/rs/zerolog"
)

// ProxyHandler serves the chat-completions and model-catalogue routes.
type ProxyHandler struct {
	logger   zerolog.Logger
	pipeline *pipeline.Pipeline
	models   *modelmanager.Manager
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(logger zerolog.Logger, p *pipeline.Pipeline, models *modelmanager.Manager) *ProxyHandler {
	return &ProxyHandler{logger: logger, pipeline: p, models: models}
}

// ChatCompletions handles POST /v1/chat/completions.
func (h *ProxyHandler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")

	var req chatmodel.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, reqID, pipelineerr.New(pipelineerr.BadRequest, "failed to parse request body: "+err.Error()))
		return
	}
	if req.Model == "" {
		h.writeError(w, reqID, pipelineerr.New(pipelineerr.BadRequest, "model field is required"))
		return
	}
	if len(req.Messages) == 0 {
		h.writeError(w, reqID, pipelineerr.New(pipelineerr.BadRequest, "messages field must not be empty"))
		return
	}

	credentialKey := middleware.GetAPIKey(r.Context())
	resp, err := h.pipeline.Handle(r.Context(), req, credentialKey)
	if err != nil {
		h.writeError(w, reqID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode chat completion response")
	}
}

// ListModels handles GET /v1/models.
func (h *ProxyHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	models, err := h.models.ListActive(r.Context())
	if err != nil {
		h.writeError(w, reqID, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"object": "list", "data": models})
}

// GetModel handles GET /v1/models/{id}.
func (h *ProxyHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	modelID := chi.URLParam(r, "id")
	model, err := h.models.Get(r.Context(), modelID)
	if err != nil {
		h.writeError(w, reqID, err)
		return
	}
	if model == nil {
		h.writeError(w, reqID, pipelineerr.New(pipelineerr.NotFound, "unknown model"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(model)
}

// UpdateModel handles PUT /v1/admin/models/{id}.
func (h *ProxyHandler) UpdateModel(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	modelID := chi.URLParam(r, "id")

	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, reqID, pipelineerr.New(pipelineerr.BadRequest, "failed to parse patch body: "+err.Error()))
		return
	}
	if err := h.models.Update(r.Context(), modelID, patch); err != nil {
		h.writeError(w, reqID, err)
		return
	}
	model, err := h.models.Get(r.Context(), modelID)
	if err != nil {
		h.writeError(w, reqID, err)
		return
	}
	if model == nil {
		h.writeError(w, reqID, pipelineerr.New(pipelineerr.NotFound, "unknown model"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(model)
}

// Health handles GET /health.
func (h *ProxyHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "timestamp": time.Now().UTC()})
}

// writeError renders the §6 error envelope and maps the pipelineerr
// kind to its HTTP status code.
func (h *ProxyHandler) writeError(w http.ResponseWriter, requestID string, err error) {
	pe, ok := pipelineerr.As(err)
	kind := pipelineerr.Internal
	message := err.Error()
	if ok {
		kind = pe.Kind
		message = pe.Message
	}
	status := pipelineerr.StatusCode(kind)

	if status >= 500 {
		h.logger.Error().Err(err).Str("request_id", requestID).Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message":    message,
			"type":       "api_error",
			"code":       status,
			"request_id": requestID,
		},
	})
}
