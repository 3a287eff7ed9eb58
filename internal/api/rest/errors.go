package rest

import (
	"encoding/json"
	"net/http"

	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// statusFor maps error kinds to HTTP status codes and stable codes
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, errors.ErrUnknownModel):
		return http.StatusNotFound, "unknown_model"
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errors.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, errors.ErrHistoryUnavailable):
		return http.StatusServiceUnavailable, "history_unavailable"
	case errors.Is(err, errors.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err. Internal errors are logged and their text is not exposed.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status, code := statusFor(err)

	detail := errorDetail{Code: code, Message: err.Error()}
	var ve *errors.ValidationError
	if errors.As(err, &ve) {
		detail.Field = ve.Field
		detail.Message = ve.Message
	}

	if status >= http.StatusInternalServerError {
		log.Errorw("Request failed", "status", status, "error", err)
		if status == http.StatusInternalServerError {
			detail.Message = "internal error"
		}
	}

	writeJSON(w, status, errorBody{Error: detail})
}
