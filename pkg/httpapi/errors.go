// Package httpapi maps workflow errors onto HTTP responses.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/blackwolfsec/soc-sdk/pkg/errors"
)

// ErrorResponse is the JSON body written for failed requests.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable kind and a human message.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StatusForKind maps an error kind to an HTTP status code. Misuse of the
// workflow (wrong stage, stale version, repeated resolution) is a client
// error; only unknown and internal kinds are 5xx.
func StatusForKind(kind errors.Kind) int {
	switch kind {
	case errors.KindInvalidInput:
		return http.StatusBadRequest
	case errors.KindInvalidStage, errors.KindTerminalStage, errors.KindInvalidState:
		return http.StatusUnprocessableEntity
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindAlreadyResolved:
		return http.StatusConflict
	case errors.KindConflict:
		return http.StatusConflict
	case errors.KindNotEligible:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error response with the status derived
// from its kind. Internal error details are not exposed to clients.
func WriteError(w http.ResponseWriter, err error) {
	kind := errors.GetKind(err)
	status := StatusForKind(kind)

	message := "internal error"
	if status < http.StatusInternalServerError {
		if e, ok := err.(*errors.Error); ok && e.Message != "" {
			message = e.Message
		} else {
			message = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Kind:    kind.String(),
			Message: message,
		},
	})
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
