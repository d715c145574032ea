package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/smukkama/landslide-monitor/internal/logger"
)

// ErrorCode is a string type for consistent error codes.
type ErrorCode string

const (
	ErrorCodeInternalServerError  ErrorCode = "internal_server_error"
	ErrorCodeBadRequest           ErrorCode = "bad_request"
	ErrorCodeNotFound             ErrorCode = "not_found"
	ErrorCodeMissingParameter     ErrorCode = "missing_parameter"
	ErrorCodeUnsupportedMediaType ErrorCode = "unsupported_media_type"
	ErrorCodeSourceUnavailable    ErrorCode = "source_unavailable"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	StatusCode int       `json:"-"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details any, statusCode int) APIError {
	return APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// respondWithError writes apiErr as JSON with its status code.
func respondWithError(w http.ResponseWriter, apiErr APIError) {
	respondWithJSON(w, apiErr.StatusCode, apiErr)
}

// respondWithJSON writes payload as JSON.
func respondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log := logger.WithComponent("api")
		log.Warn().Err(err).Msg("failed to encode JSON response")
	}
}
