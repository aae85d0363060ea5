package models

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"balance-aggregator/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Sentinel errors surfaced by the aggregation engine and its adapters.
// Adapters wrap them with %w so callers can classify with errors.Is.
var (
	// Configuration errors
	ErrMissingChain   = errors.New("missing chain identifier")
	ErrNoChainHandler = errors.New("no handler for chain")
	ErrNotAnLP        = errors.New("asset is not a recognized LP token")
	ErrUnmappedPool   = errors.New("no reserve asset of the pool has a price mapping")
	ErrInvalidRequest = errors.New("invalid request")

	// Transport errors
	ErrUpstream = errors.New("upstream request failed")

	// Data errors
	ErrUnknownAsset  = errors.New("asset not present in resource")
	ErrInvalidAmount = errors.New("invalid amount")
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Authentication errors
	ErrorCodeMissingAPIKey ErrorCode = "MISSING_API_KEY"
	ErrorCodeInvalidAPIKey ErrorCode = "INVALID_API_KEY"

	// Rate limiting errors
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Configuration and validation errors
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeMalformedJSON  ErrorCode = "MALFORMED_JSON"
	ErrorCodeMissingChain   ErrorCode = "MISSING_CHAIN"
	ErrorCodeNoChainHandler ErrorCode = "NO_CHAIN_HANDLER"
	ErrorCodeNotAnLP        ErrorCode = "NOT_AN_LP"
	ErrorCodeUnmappedPool   ErrorCode = "UNMAPPED_POOL"

	// Upstream errors
	ErrorCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrorCodeUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"

	// Data errors
	ErrorCodeDataError ErrorCode = "DATA_ERROR"

	// Internal errors
	ErrorCodeRequestCancelled ErrorCode = "REQUEST_CANCELLED"
	ErrorCodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// ErrorResponse represents the standardized error response format
type ErrorResponse struct {
	Error     ErrorDetail `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
}

// HTTPStatusCode returns the appropriate HTTP status code for each error type
func (e ErrorCode) HTTPStatusCode() int {
	switch e {
	case ErrorCodeMissingAPIKey, ErrorCodeInvalidAPIKey:
		return http.StatusUnauthorized
	case ErrorCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorCodeInvalidRequest, ErrorCodeMalformedJSON, ErrorCodeMissingChain, ErrorCodeNotAnLP, ErrorCodeUnmappedPool:
		return http.StatusBadRequest
	case ErrorCodeNoChainHandler:
		return http.StatusNotFound
	case ErrorCodeDataError:
		return http.StatusUnprocessableEntity
	case ErrorCodeUpstreamUnavailable:
		return http.StatusBadGateway
	case ErrorCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case ErrorCodeRequestCancelled:
		return 499
	case ErrorCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorResponse creates a new error response with timestamp
func NewErrorResponse(code ErrorCode, message, details string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorResponseWithCorrelation creates a new error response with correlation ID
func NewErrorResponseWithCorrelation(code ErrorCode, message, details, correlationID string) *ErrorResponseWithCorrelation {
	return &ErrorResponseWithCorrelation{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// ErrorResponseWithCorrelation represents error response with correlation ID
type ErrorResponseWithCorrelation struct {
	Error         ErrorDetail `json:"error"`
	Timestamp     time.Time   `json:"timestamp"`
	CorrelationID string      `json:"correlation_id"`
}

// AppError represents an application error with context
type AppError struct {
	Code       ErrorCode
	Message    string
	Details    string
	Cause      error
	Context    map[string]interface{}
	StatusCode int
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: code.HTTPStatusCode(),
		Context:    make(map[string]interface{}),
	}
}

// NewAppErrorWithCause creates a new application error with underlying cause
func NewAppErrorWithCause(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: code.HTTPStatusCode(),
		Context:    make(map[string]interface{}),
	}
}

// NewAppErrorWithDetails creates a new application error with details
func NewAppErrorWithDetails(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: code.HTTPStatusCode(),
		Context:    make(map[string]interface{}),
	}
}

// ClassifyError maps an engine error onto the public error taxonomy.
// Configuration errors become 4xx, transport errors 502/504 and data errors 422.
func ClassifyError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var netErr net.Error
	switch {
	case errors.Is(err, ErrMissingChain):
		return NewAppErrorWithCause(ErrorCodeMissingChain, "Chain identifier is required", err)
	case errors.Is(err, ErrNoChainHandler):
		return NewAppErrorWithCause(ErrorCodeNoChainHandler, "No handler registered for chain", err)
	case errors.Is(err, ErrNotAnLP):
		return NewAppErrorWithCause(ErrorCodeNotAnLP, "Asset is not a recognized LP token", err)
	case errors.Is(err, ErrUnmappedPool):
		return NewAppErrorWithCause(ErrorCodeUnmappedPool, "Pool has no priced reserve asset", err)
	case errors.Is(err, ErrInvalidRequest):
		return NewAppErrorWithCause(ErrorCodeInvalidRequest, "Invalid request", err)
	case errors.Is(err, ErrUnknownAsset), errors.Is(err, ErrInvalidAmount):
		return NewAppErrorWithCause(ErrorCodeDataError, "Upstream data is inconsistent", err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return NewAppErrorWithCause(ErrorCodeUpstreamTimeout, "Upstream request timed out", err)
	case errors.Is(err, context.Canceled):
		return NewAppErrorWithCause(ErrorCodeRequestCancelled, "Request cancelled", err)
	case errors.Is(err, ErrUpstream):
		return NewAppErrorWithCause(ErrorCodeUpstreamUnavailable, "Upstream request failed", err)
	default:
		return NewAppErrorWithCause(ErrorCodeInternalError, "Internal server error", err)
	}
}

// HandleError handles application errors and sends appropriate HTTP response
func HandleError(c *gin.Context, err error, log *logger.Logger) {
	ctx := c.Request.Context()

	correlationID := logger.GetCorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = c.GetString(string(logger.CorrelationIDKey))
	}

	appErr := ClassifyError(err)
	if appErr.Details == "" && appErr.Cause != nil && appErr.StatusCode < 500 {
		appErr.Details = appErr.Cause.Error()
	}

	// Add request context to error
	appErr.WithContext("method", c.Request.Method).
		WithContext("path", c.Request.URL.Path).
		WithContext("client_ip", c.ClientIP())

	if log != nil {
		contextLogger := log.WithContext(ctx)

		logFields := []zap.Field{
			zap.String("error_code", string(appErr.Code)),
			zap.String("error_message", appErr.Message),
			zap.Any("error_context", appErr.Context),
		}

		if appErr.Cause != nil {
			logFields = append(logFields, zap.Error(appErr.Cause))
		}

		if appErr.StatusCode >= 500 {
			contextLogger.Error("Application error", logFields...)
		} else {
			contextLogger.Warn("Client error", logFields...)
		}
	}

	var response interface{}
	if correlationID != "" {
		response = NewErrorResponseWithCorrelation(
			appErr.Code,
			appErr.Message,
			appErr.Details,
			correlationID,
		)
	} else {
		response = NewErrorResponse(
			appErr.Code,
			appErr.Message,
			appErr.Details,
		)
	}

	c.JSON(appErr.StatusCode, response)
}

// Common error constructors for specific scenarios

// NewValidationError creates a validation error
func NewValidationError(message, details string) *AppError {
	return NewAppErrorWithDetails(ErrorCodeInvalidRequest, message, details)
}

// NewAuthenticationError creates an authentication error
func NewAuthenticationError(message string) *AppError {
	return NewAppError(ErrorCodeInvalidAPIKey, message)
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError() *AppError {
	return NewAppError(ErrorCodeRateLimitExceeded, "Rate limit exceeded")
}

// NewUpstreamError creates an upstream availability error
func NewUpstreamError(message string, cause error) *AppError {
	return NewAppErrorWithCause(ErrorCodeUpstreamUnavailable, message, cause)
}
