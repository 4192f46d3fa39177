package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithMessage returns a copy of the error carrying a more specific message
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{Code: e.Code, Message: message}
}

// Common domain errors
var (
	ErrInvalidState = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	ErrUnknownKind         = NewDomainError("UNKNOWN_KIND", "Unknown sync kind")
	ErrSyncInProgress      = NewDomainError("SYNC_IN_PROGRESS", "A sync run is already in progress")
	ErrConfiguration       = NewDomainError("CONFIGURATION", "Upstream credentials are not configured")
	ErrUpstreamAuth        = NewDomainError("UPSTREAM_AUTH", "Upstream rejected the credentials")
	ErrUpstreamUnavailable = NewDomainError("UPSTREAM_UNAVAILABLE", "Upstream service unavailable")
	ErrRateLimited         = NewDomainError("RATE_LIMITED", "Upstream rate limit reached")
)
