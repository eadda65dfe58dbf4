package webhook

import (
	"errors"
	"fmt"
)

var (
	ErrAuthenticity     = errors.New("webhook signature verification failed")
	ErrSourceNotAllowed = errors.New("webhook source address is not allowed")
	ErrPayloadTooLarge  = errors.New("webhook payload exceeds maximum size")
)

// ShapeError reports a required header or payload field that is absent.
type ShapeError struct {
	Field string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("missing required field '%s'", e.Field)
}

// AuthorizationError reports a repository owner outside of the allow-list.
type AuthorizationError struct {
	Owner  string
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("unauthorized repository owner '%s': %s", e.Owner, e.Reason)
}
