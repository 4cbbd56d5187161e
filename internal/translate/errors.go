package translate

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed translation attempt. The retry policy
// keys off this: auth failures are terminal, everything else is
// transient.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindServer    ErrorKind = "server"
	KindNetwork   ErrorKind = "network"
)

// APIError is the classified failure of one translation request.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindAuth
}

// IsRetryable reports whether err is worth retrying: rate limits,
// network problems and server-side failures are, invalid credentials
// are not.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Kind {
	case KindRateLimit, KindNetwork, KindServer:
		return true
	default:
		return false
	}
}
