package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/repository"
	"studybuddy-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var parseErr *services.DocumentParseError

	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
	case errors.Is(err, repository.ErrSessionBusy):
		writeJSON(w, http.StatusConflict, errorResp("SESSION_BUSY", "A question is already being answered for this session", r))
	case errors.As(err, &parseErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("EXTRACTION_FAILED", parseErr.Notice(), r))
	case errors.Is(err, services.ErrNoExtractableText):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("EXTRACTION_FAILED", services.NoticeNoExtractableText, r))
	case errors.Is(err, services.ErrCredentialMissing):
		writeJSON(w, http.StatusBadRequest, errorResp("CREDENTIAL_MISSING", services.NoticeCredentialMissing, r))
	case errors.Is(err, services.ErrNoDocument):
		writeJSON(w, http.StatusConflict, errorResp("NO_DOCUMENT", services.NoticeNoDocument, r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
