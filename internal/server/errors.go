package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/321david123/spotify-feature/internal/shared"
	"github.com/charmbracelet/log"
)

// errorBody is the JSON error shape shared by the API routes.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
	Status  int    `json:"status,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

// configError renders a missing-credentials failure as plain text.
func configError(w http.ResponseWriter, logger *log.Logger, err error) {
	logger.Error("server configuration error", "error", err)
	writeText(w, http.StatusInternalServerError,
		"Server Configuration Error: "+configDetail(err)+". Please ensure the required environment variables are configured.")
}

func configDetail(err error) string {
	return strings.TrimPrefix(err.Error(), shared.ErrMissingCredentials.Error()+": ")
}

// internalError logs err and renders a generic 500 that does not leak it.
func internalError(w http.ResponseWriter, logger *log.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Error:   "Internal server error",
		Message: msg,
	})
}

// providerStatus returns the upstream status of a [shared.ProviderError], or fallback.
func providerStatus(err error, fallback int) int {
	if pe, ok := shared.AsProviderError(err); ok && pe.StatusCode >= 400 {
		return pe.StatusCode
	}
	return fallback
}

// providerDetails returns the upstream payload as JSON when it is JSON, else as a string.
func providerDetails(pe *shared.ProviderError) any {
	if len(pe.Body) == 0 {
		return nil
	}
	if json.Valid(pe.Body) {
		return json.RawMessage(pe.Body)
	}
	return string(pe.Body)
}

// providerDescription extracts error_description from an OAuth error payload.
func providerDescription(pe *shared.ProviderError, fallback string) string {
	var body struct {
		Description string `json:"error_description"`
	}
	if json.Unmarshal(pe.Body, &body) == nil && body.Description != "" {
		return body.Description
	}
	return fallback
}
