package hass

import (
	"errors"
	"fmt"
)

// Client errors.
var (
	// ErrClosed indicates the connection is closed.
	ErrClosed = errors.New("hass: connection closed")

	// ErrAuthFailed indicates the server rejected the access token.
	ErrAuthFailed = errors.New("hass: authentication failed")

	// ErrUnexpectedMessage indicates a frame that does not fit the protocol.
	ErrUnexpectedMessage = errors.New("hass: unexpected message")

	// ErrTemplateError indicates a template rendered with an error.
	ErrTemplateError = errors.New("hass: template error")
)

// ResultError is an unsuccessful command result.
type ResultError struct {
	Code    string
	Message string
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("hass: %s: %s", e.Code, e.Message)
}
