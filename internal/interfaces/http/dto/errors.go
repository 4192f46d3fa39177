package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation and input error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeUnknownKind is used when a sync kind is not recognized
	ErrCodeUnknownKind = "ERR_UNKNOWN_KIND"
)

// Resource and state error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeSyncInProgress is used when another run holds the sync lock
	ErrCodeSyncInProgress = "ERR_SYNC_IN_PROGRESS"
)

// Upstream error codes
const (
	// ErrCodeConfiguration is used when upstream credentials are missing
	ErrCodeConfiguration = "ERR_CONFIGURATION"
	// ErrCodeUpstreamAuth is used when the upstream rejects the credentials
	ErrCodeUpstreamAuth = "ERR_UPSTREAM_AUTH"
	// ErrCodeUpstreamUnavailable is used for upstream transport failures
	ErrCodeUpstreamUnavailable = "ERR_UPSTREAM_UNAVAILABLE"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	// ErrCodeRequestTooLarge is used when the body exceeds the limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeUnknownKind:  http.StatusBadRequest,

	ErrCodeNotFound:       http.StatusNotFound,
	ErrCodeInvalidState:   http.StatusUnprocessableEntity,
	ErrCodeSyncInProgress: http.StatusConflict,

	// The service itself is misconfigured, not the caller
	ErrCodeConfiguration:       http.StatusServiceUnavailable,
	ErrCodeUpstreamAuth:        http.StatusBadGateway,
	ErrCodeUpstreamUnavailable: http.StatusBadGateway,

	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNKNOWN_KIND":         ErrCodeUnknownKind,
	"SYNC_IN_PROGRESS":     ErrCodeSyncInProgress,
	"CONFIGURATION":        ErrCodeConfiguration,
	"UPSTREAM_AUTH":        ErrCodeUpstreamAuth,
	"UPSTREAM_UNAVAILABLE": ErrCodeUpstreamUnavailable,
	"RATE_LIMITED":         ErrCodeRateLimited,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
