package domain

import (
	"errors"
	"fmt"
)

// UserNotConnectedError means the Telegram account is not linked to a
// memestorage account. It is the only failure that changes user-facing copy.
type UserNotConnectedError struct {
	Message string
}

func (e *UserNotConnectedError) Error() string {
	if e.Message == "" {
		return "user not connected"
	}
	return "user not connected: " + e.Message
}

// TransportError is a connectivity failure talking to the backend,
// including timeouts.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnexpectedStatusError is a non-2xx, non-404 backend response.
type UnexpectedStatusError struct {
	Op   string
	Code int
	Body string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

// IsUserNotConnected reports whether err is (or wraps) a UserNotConnectedError.
func IsUserNotConnected(err error) bool {
	var target *UserNotConnectedError
	return errors.As(err, &target)
}
