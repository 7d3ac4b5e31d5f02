package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arueira/pjetrust/credential"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// mapError translates the credential error taxonomy onto HTTP status
// codes. Every kind is recoverable at this boundary: the client surfaces
// the message and retries with corrected input.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, credential.ErrNotFound),
		errors.Is(err, credential.ErrNoCredential):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, credential.ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, credential.ErrExpired),
		errors.Is(err, credential.ErrNotYetValid),
		errors.Is(err, credential.ErrKeyUnavailable):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, credential.ErrPlatformUnsupported),
		errors.Is(err, credential.ErrNotImplemented):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, credential.ErrLoad):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
