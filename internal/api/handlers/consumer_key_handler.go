package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ricbatera/credentials-fullstack/internal/core/services"
)

type ConsumerKeyRequest struct {
	ConsumerName       string     `json:"consumer_name" validate:"required,max=100"`
	ConsumerIdentifier string     `json:"consumer_identifier" validate:"required,max=100"`
	PublicKey          string     `json:"public_key" validate:"required"`
	ExpiresAt          *time.Time `json:"expires_at"`
	Description        string     `json:"description" validate:"omitempty,max=500"`
}

type ConsumerKeyHandler struct {
	registry *services.KeyRegistry
	validate *validator.Validate
	logger   *slog.Logger
}

func NewConsumerKeyHandler(registry *services.KeyRegistry, logger *slog.Logger) *ConsumerKeyHandler {
	return &ConsumerKeyHandler{
		registry: registry,
		validate: validator.New(),
		logger:   logger,
	}
}

// List handles GET /api/consumer-keys
func (h *ConsumerKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.registry.List(r.Context())
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// ListValid handles GET /api/consumer-keys/valid
func (h *ConsumerKeyHandler) ListValid(w http.ResponseWriter, r *http.Request) {
	keys, err := h.registry.ListValid(r.Context())
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// Register handles POST /api/consumer-keys
func (h *ConsumerKeyHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req ConsumerKeyRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	key, err := h.registry.Register(r.Context(), services.RegisterKeyInput{
		ConsumerName:       req.ConsumerName,
		ConsumerIdentifier: req.ConsumerIdentifier,
		PublicKey:          req.PublicKey,
		ExpiresAt:          req.ExpiresAt,
		Description:        req.Description,
	})
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

// GetByID handles GET /api/consumer-keys/{id}
func (h *ConsumerKeyHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	key, err := h.registry.GetByID(r.Context(), id)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

// GetByIdentifier handles GET /api/consumer-keys/consumer/{consumerIdentifier}
func (h *ConsumerKeyHandler) GetByIdentifier(w http.ResponseWriter, r *http.Request) {
	key, err := h.registry.GetByIdentifier(r.Context(), chi.URLParam(r, "consumerIdentifier"))
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

// HasValidKey handles GET /api/consumer-keys/consumer/{consumerIdentifier}/valid
func (h *ConsumerKeyHandler) HasValidKey(w http.ResponseWriter, r *http.Request) {
	has, err := h.registry.HasValidKey(r.Context(), chi.URLParam(r, "consumerIdentifier"))
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_valid_key": has})
}

// Update handles PUT /api/consumer-keys/{id}
func (h *ConsumerKeyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	var req ConsumerKeyRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	key, err := h.registry.Update(r.Context(), id, services.UpdateKeyInput{
		ConsumerName: req.ConsumerName,
		PublicKey:    req.PublicKey,
		ExpiresAt:    req.ExpiresAt,
		Description:  req.Description,
	})
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

// Deactivate handles DELETE /api/consumer-keys/{id}
func (h *ConsumerKeyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	found, err := h.registry.Deactivate(r.Context(), id)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeactivateByIdentifier handles DELETE /api/consumer-keys/consumer/{consumerIdentifier}
func (h *ConsumerKeyHandler) DeactivateByIdentifier(w http.ResponseWriter, r *http.Request) {
	found, err := h.registry.DeactivateByIdentifier(r.Context(), chi.URLParam(r, "consumerIdentifier"))
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
