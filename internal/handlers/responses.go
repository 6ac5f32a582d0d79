package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cursor2b-collab/vip-sub000/internal/upstream"
)

func writeJSONResponse(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, map[string]string{"error": message})
}

// writeUpstreamError maps the platform error taxonomy onto HTTP. Auth-kind
// errors get a 401 so the shell redirects to login; every other kind is
// marked retryable so the shell renders an inline retry state instead of a
// dead screen.
func writeUpstreamError(w http.ResponseWriter, err error) {
	kind := upstream.KindOf(err)

	var status int
	var message string
	switch kind {
	case upstream.KindNotAuthenticated:
		status = http.StatusUnauthorized
		message = "User not authenticated"
	case upstream.KindMissingParameter:
		status = http.StatusBadRequest
		message = errMessage(err, "missing required parameter")
	case upstream.KindTimeout:
		status = http.StatusGatewayTimeout
		message = "request timed out, please retry"
	case upstream.KindNetwork:
		status = http.StatusBadGateway
		message = "network error, please check your connection"
	case upstream.KindEmptyPayload:
		status = http.StatusBadGateway
		message = "unexpected platform response, please retry"
	default: // KindBusiness, message already translated at the client boundary
		status = http.StatusBadRequest
		message = errMessage(err, "operation failed")
	}

	writeJSONResponse(w, status, map[string]interface{}{
		"error":     message,
		"kind":      string(kind),
		"retryable": kind != upstream.KindNotAuthenticated,
	})
}

func errMessage(err error, fallback string) string {
	var ue *upstream.Error
	if errors.As(err, &ue) && ue.Message != "" {
		return ue.Message
	}
	return fallback
}
