package utils

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"recipebox/db"
	"recipebox/logging"
)

func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, map[string]string{"error": msg})
}

// Sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

type M map[string]any

// RespondWithStoreError maps the store error taxonomy onto HTTP statuses and logs
// anything that is not a plain not-found.
func RespondWithStoreError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		RespondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, db.ErrUnavailable):
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(msg)
		RespondWithError(w, http.StatusServiceUnavailable, "Store unavailable, try again later")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(msg)
		RespondWithError(w, http.StatusInternalServerError, msg)
	}
}
