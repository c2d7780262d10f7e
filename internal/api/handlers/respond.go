package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/medicare/medicare/backend/internal/api/middleware"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/infrastructure/observability"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
)

const internalErrorMessage = "internal server error"

// errorResponse is the body of every non-2xx response
type errorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string, kind apperrors.ErrorType) {
	respondWithJSON(w, statusCode, errorResponse{Message: message, Kind: string(kind)})
}

// respondWithAppError maps err onto its status code. Internal details are
// logged, never returned.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.TypeOf(err)
	status := apperrors.HTTPStatus(err)

	message := internalErrorMessage
	var appErr *apperrors.AppError
	if kind != apperrors.ErrorTypeInternal && errors.As(err, &appErr) {
		message = appErr.Message
	}
	if kind == apperrors.ErrorTypeInternal {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	respondWithError(w, status, message, kind)
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return apperrors.NewValidationError("invalid request payload")
	}
	return nil
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (entities.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required", apperrors.ErrorTypeUnauthorized)
	}
	return identity, ok
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.NewValidationError(name + " must be a non-negative integer")
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.NewValidationError(name + " must be true or false")
	}
	return b, nil
}

func queryDate(r *http.Request, name string) (*entities.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := entities.ParseDate(raw)
	if err != nil {
		return nil, apperrors.NewValidationError(name + " must be YYYY-MM-DD")
	}
	return &d, nil
}
