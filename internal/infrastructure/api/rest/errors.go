package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/smilemakc/floorplan/pkg/models"
)

// APIError is the envelope every error response is serialized as.
type APIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(code, message string, httpStatus int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func NewAPIErrorWithDetails(code, message string, httpStatus int, details map[string]interface{}) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: httpStatus}
}

var (
	ErrBadRequest       = NewAPIError("BAD_REQUEST", "invalid request", http.StatusBadRequest)
	ErrNotFound         = NewAPIError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidationFailed = NewAPIError("VALIDATION_FAILED", "validation failed", http.StatusBadRequest)
	ErrInternalServer   = NewAPIError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrTooManyRequests  = NewAPIError("RATE_LIMIT_EXCEEDED", "too many requests", http.StatusTooManyRequests)
	ErrInvalidJSON      = NewAPIError("INVALID_JSON", "invalid JSON in request body", http.StatusBadRequest)
	ErrMissingParameter = NewAPIError("MISSING_PARAMETER", "required parameter is missing", http.StatusBadRequest)
)

// TranslateError maps a domain error from the error taxonomy onto an
// HTTP status and a stable machine-readable code.
func TranslateError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var agentErr *models.AgentError
	if errors.As(err, &agentErr) {
		return NewAPIErrorWithDetails("AGENT_FAILURE", agentErr.Error(), http.StatusBadGateway, map[string]interface{}{
			"agent": agentErr.AgentName,
		})
	}

	var validatorErr *models.ValidatorError
	if errors.As(err, &validatorErr) {
		return NewAPIError("VALIDATOR_INTERNAL", validatorErr.Error(), http.StatusInternalServerError)
	}

	var configErr *models.ConfigError
	if errors.As(err, &configErr) {
		return NewAPIErrorWithDetails("CONFIG_INVALID", configErr.Error(), http.StatusBadRequest, map[string]interface{}{
			"field": configErr.Field,
		})
	}

	switch {
	case errors.Is(err, models.ErrJobNotFound):
		return NewAPIError("JOB_NOT_FOUND", "job not found", http.StatusNotFound)
	case errors.Is(err, models.ErrMissingPlotDimensions):
		return NewAPIError("CONFIG_INVALID", err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrNoRequirements):
		return NewAPIError("CONFIG_INVALID", err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrInvalidStrictnessTag):
		return NewAPIError("CONFIG_INVALID", err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrRunDeadlineExceeded), errors.Is(err, models.ErrCallDeadlineExceeded):
		return NewAPIError("TIMEOUT", err.Error(), http.StatusGatewayTimeout)
	case errors.Is(err, models.ErrJobCancelled):
		return NewAPIError("CANCELLED", err.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrAgentFallbackExhausted), errors.Is(err, models.ErrAgentUnparseableOutput):
		return NewAPIError("AGENT_FAILURE", err.Error(), http.StatusBadGateway)
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "not found") {
		return NewAPIError("NOT_FOUND", "resource not found", http.StatusNotFound)
	}

	return NewAPIError("INTERNAL_ERROR", "an unexpected error occurred", http.StatusInternalServerError)
}
