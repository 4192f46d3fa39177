package reconcile

import (
	"errors"
	"fmt"
)

// Error taxonomy. Configuration and authentication failures are fatal for a
// run; the others are recovered locally and only show up in logs and counts.
var (
	ErrConfiguration       = errors.New("reconcile: configuration incomplete")
	ErrAuthentication      = errors.New("reconcile: authentication failed")
	ErrTransport           = errors.New("reconcile: transport failure")
	ErrRateLimited         = errors.New("reconcile: rate limited")
	ErrUnresolvedReference = errors.New("reconcile: unresolved reference")
	ErrValuationAmbiguity  = errors.New("reconcile: all price fields empty")
	ErrUnknownKind         = errors.New("reconcile: unknown sync kind")
	ErrInvalidAttributes   = errors.New("reconcile: invalid attributes")
)

// UnresolvedReferenceError reports a required cross-reference that could not
// be resolved; the record carrying it is skipped
type UnresolvedReferenceError struct {
	Kind         string
	ExternalID   string
	Relationship string
	TargetID     string
}

// Error implements the error interface
func (e *UnresolvedReferenceError) Error() string {
	if e.TargetID == "" {
		return fmt.Sprintf("%s %s: missing %s", e.Kind, e.ExternalID, e.Relationship)
	}
	return fmt.Sprintf("%s %s: %s %s not found locally", e.Kind, e.ExternalID, e.Relationship, e.TargetID)
}

// Unwrap lets errors.Is match ErrUnresolvedReference
func (e *UnresolvedReferenceError) Unwrap() error {
	return ErrUnresolvedReference
}

// IsFatal reports whether err must abort the whole run
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrAuthentication)
}
