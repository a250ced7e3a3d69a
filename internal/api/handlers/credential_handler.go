package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ricbatera/credentials-fullstack/internal/core/domain"
	"github.com/ricbatera/credentials-fullstack/internal/core/services"
)

// ==============================================================================
// 1. Request Payloads (Input Validation)
// ==============================================================================

type CredentialRequest struct {
	MallName        string `json:"mall_name" validate:"required,max=255"`
	CNPJ            string `json:"cnpj" validate:"omitempty,max=18"`
	PortalURL       string `json:"portal_url" validate:"required,url,max=500"`
	Username        string `json:"username" validate:"required,max=100"`
	Password        string `json:"password" validate:"required,max=255"`
	InvoicePassword string `json:"invoice_password" validate:"omitempty,max=255"`
	Active          *bool  `json:"active"`
}

type VerifyPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

type EncryptPasswordRequest struct {
	Password string `json:"password" validate:"required,max=245"`
}

// BasicCredential is the trimmed robot-facing projection of a distribution
// bundle: connection data plus the RSA-encrypted passwords, nothing else.
type BasicCredential struct {
	PortalURL       string `json:"portal_url"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	InvoicePassword string `json:"invoice_password,omitempty"`
	MallName        string `json:"mall_name"`
}

// ==============================================================================
// 2. The Handler Struct (Dependency Injection)
// ==============================================================================

type CredentialHandler struct {
	service  *services.CredentialService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewCredentialHandler(service *services.CredentialService, logger *slog.Logger) *CredentialHandler {
	return &CredentialHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// ==============================================================================
// 3. CRUD
// ==============================================================================

// List handles GET /api/credentials
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	creds, err := h.service.List(r.Context())
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

// Create handles POST /api/credentials
func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	cred, err := h.service.Create(r.Context(), toCredentialInput(req))
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, cred)
}

// GetByID handles GET /api/credentials/{id}
func (h *CredentialHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	cred, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

// GetByCNPJ handles GET /api/credentials/cnpj/{cnpj}
func (h *CredentialHandler) GetByCNPJ(w http.ResponseWriter, r *http.Request) {
	cred, err := h.service.GetByCNPJ(r.Context(), chi.URLParam(r, "cnpj"))
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

// Search handles GET /api/credentials/search?mallName=
func (h *CredentialHandler) Search(w http.ResponseWriter, r *http.Request) {
	mallName := r.URL.Query().Get("mallName")
	if mallName == "" {
		HandleError(w, r, h.logger, domain.NewValidationError("mallName query parameter is required"))
		return
	}

	creds, err := h.service.FindByMallName(r.Context(), mallName)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

// Update handles PUT /api/credentials/{id}
func (h *CredentialHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	var req CredentialRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	cred, err := h.service.Update(r.Context(), id, toCredentialInput(req))
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

// Delete handles DELETE /api/credentials/{id}
func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	found, err := h.service.Delete(r.Context(), id)
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

// ==============================================================================
// 4. Password Verification & Distribution
// ==============================================================================

// VerifyPassword handles POST /api/credentials/{id}/verify-password
func (h *CredentialHandler) VerifyPassword(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	var req VerifyPasswordRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	valid, err := h.service.VerifyPassword(r.Context(), id, req.Password)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// ListEncrypted handles GET /api/credentials/encrypted/{consumerIdentifier}
func (h *CredentialHandler) ListEncrypted(w http.ResponseWriter, r *http.Request) {
	consumer := chi.URLParam(r, "consumerIdentifier")

	bundles, err := h.service.EncryptAllForConsumer(r.Context(), consumer)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bundles)
}

// GetEncrypted handles GET /api/credentials/{id}/encrypted/{consumerIdentifier}
func (h *CredentialHandler) GetEncrypted(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	consumer := chi.URLParam(r, "consumerIdentifier")

	bundle, err := h.service.EncryptForConsumer(r.Context(), id, consumer)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

// BasicCredentials handles GET /api/consumer-keys/credentials. Robots
// identify themselves with the X-Consumer-Identifier header and receive
// every active credential with both passwords encrypted under their key.
func (h *CredentialHandler) BasicCredentials(w http.ResponseWriter, r *http.Request) {
	consumer := r.Header.Get("X-Consumer-Identifier")
	if consumer == "" {
		HandleError(w, r, h.logger, domain.NewValidationError("X-Consumer-Identifier header is required"))
		return
	}

	bundles, err := h.service.EncryptAllForConsumer(r.Context(), consumer)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	out := make([]BasicCredential, 0, len(bundles))
	for _, b := range bundles {
		out = append(out, BasicCredential{
			PortalURL:       b.PortalURL,
			Username:        b.Username,
			Password:        b.EncryptedPassword,
			InvoicePassword: b.EncryptedInvoicePassword,
			MallName:        b.MallName,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// EncryptPassword handles POST /api/credentials/encrypt-password/{consumerIdentifier}
func (h *CredentialHandler) EncryptPassword(w http.ResponseWriter, r *http.Request) {
	consumer := chi.URLParam(r, "consumerIdentifier")

	var req EncryptPasswordRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		HandleError(w, r, h.logger, err)
		return
	}

	ciphertext, err := h.service.EncryptPlaintextForConsumer(r.Context(), req.Password, consumer)
	if err != nil {
		HandleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"encrypted_password":  ciphertext,
		"consumer_identifier": consumer,
		"algorithm":           "RSA",
	})
}

func toCredentialInput(req CredentialRequest) services.CredentialInput {
	return services.CredentialInput{
		MallName:        req.MallName,
		CNPJ:            req.CNPJ,
		PortalURL:       req.PortalURL,
		Username:        req.Username,
		Password:        req.Password,
		InvoicePassword: req.InvoicePassword,
		Active:          req.Active,
	}
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, domain.NewValidationError("invalid id")
	}
	return id, nil
}
