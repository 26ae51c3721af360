package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Fatal pipeline categories
	ErrConfiguration  = fmt.Errorf("configuration error")
	ErrAuthentication = fmt.Errorf("authentication error")
	ErrFetch          = fmt.Errorf("fetch error")
	ErrSubscribe      = fmt.Errorf("subscribe error")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("%w: configuration not found", ErrConfiguration)
	ErrMissingCredentials = fmt.Errorf("%w: missing credentials", ErrConfiguration)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrConfiguration)

	// Authentication errors
	ErrConsentDeclined = fmt.Errorf("%w: consent declined", ErrAuthentication)
	ErrRefreshFailed   = fmt.Errorf("%w: token refresh failed", ErrAuthentication)
	ErrNoToken         = fmt.Errorf("no stored token")

	// API and service errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrRunNotFound        = fmt.Errorf("transfer run not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// SubscribeError describes a failed subscribe request for a single channel.
//
// It matches both [ErrSubscribe] and the underlying cause with [errors.Is].
type SubscribeError struct {
	ChannelID string
	Title     string
	Reason    string
	Err       error
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("subscribe to %q (%s) failed: %s", e.Title, e.ChannelID, e.Reason)
}

func (e *SubscribeError) Unwrap() []error {
	return []error{ErrSubscribe, e.Err}
}

// IsFatal reports whether err belongs to a category that must stop a run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrAuthentication) || errors.Is(err, ErrFetch)
}
