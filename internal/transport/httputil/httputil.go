// Package httputil provides shared JSON response helpers and the mapping
// from domain error codes to HTTP status codes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "labgate/pkg/domain-errors"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps a domain error onto an HTTP status and writes the error
// envelope. Unknown errors become opaque 500s.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := StatusOf(code)
	message := "internal server error"
	if status != http.StatusInternalServerError {
		var domErr *dErrors.Error
		if errors.As(err, &domErr) {
			message = domErr.Message
		}
	}
	WriteJSON(w, status, ErrorBody{Error: ErrorDetail{
		Code:    string(code),
		Message: message,
	}})
}

// StatusOf maps a domain error code to an HTTP status.
//
// Backpressure and the provider's login block both map to 429: the client's
// correct reaction in every case is to slow down and retry later.
func StatusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized, dErrors.CodeAuthExpired:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeProviderBlocked, dErrors.CodeQueueFull, dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeCircuitOpen, dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
