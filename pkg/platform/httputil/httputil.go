// Package httputil translates coded domain errors into JSON HTTP responses.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "garita/pkg/domain-errors"
)

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:          http.StatusBadRequest,
	dErrors.CodeValidation:          http.StatusUnprocessableEntity,
	dErrors.CodeNotFound:            http.StatusNotFound,
	dErrors.CodeConflict:            http.StatusConflict,
	dErrors.CodeInvariantViolation:  http.StatusConflict,
	dErrors.CodeFinalizedSubmission: http.StatusConflict,
	dErrors.CodeQuotaExceeded:       http.StatusTooManyRequests,
	dErrors.CodeExtractionFailed:    http.StatusBadGateway,
	dErrors.CodeInvalidImage:        http.StatusUnprocessableEntity,
	dErrors.CodeUnauthorized:        http.StatusUnauthorized,
	dErrors.CodeTimeout:             http.StatusGatewayTimeout,
	dErrors.CodeInternal:            http.StatusInternalServerError,
}

// WriteError writes a JSON error envelope. Internal errors omit the
// description so infrastructure details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
		code = dErrors.CodeInternal
	}

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
