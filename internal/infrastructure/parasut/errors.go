package parasut

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/erp/ledgersync/internal/domain/reconcile"
)

// HTTPError is a non-2xx response from the API
type HTTPError struct {
	StatusCode int
	Endpoint   string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("parasut: %s returned HTTP %d", e.Endpoint, e.StatusCode)
}

// Is maps 429 to ErrRateLimited and every status to ErrTransport
func (e *HTTPError) Is(target error) bool {
	switch target {
	case reconcile.ErrRateLimited:
		return e.IsRateLimited()
	case reconcile.ErrTransport:
		return true
	}
	return false
}

// IsRateLimited reports whether the API asked the caller to back off
func (e *HTTPError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func isUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}
