package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/ricbatera/credentials-fullstack/internal/core/domain"
)

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// HandleError maps the service error taxonomy onto HTTP statuses.
// Authorization, validation, conflict and not-found outcomes surface with
// their own messages; crypto failures are logged server-side and answered
// with a generic 500 so cipher internals never reach external callers.
func HandleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		ve *domain.ValidationError
		ue *domain.UnauthorizedError
		ce *domain.ConflictError
		cr *domain.CryptoError
	)

	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.As(err, &ue):
		writeError(w, http.StatusUnauthorized, ue.Error())
	case errors.As(err, &ce):
		writeError(w, http.StatusConflict, ce.Message)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found")
	case errors.As(err, &cr):
		logger.Error("cryptographic failure",
			slog.String("path", r.URL.Path),
			slog.String("op", cr.Op),
			slog.Any("error", cr.Err))
		writeError(w, http.StatusInternalServerError, "internal encryption failure")
	default:
		logger.Error("unhandled error",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeAndValidate parses a JSON body into dst and runs its validate tags.
func decodeAndValidate(r *http.Request, v *validator.Validate, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.NewValidationError("invalid JSON payload")
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.NewValidationError("invalid field %q", verrs[0].Field())
		}
		return domain.NewValidationError("invalid request payload")
	}
	return nil
}
