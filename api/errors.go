package api

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload marks a response body that could not be normalized.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrInvalidPrice is returned when a quote carries a non-positive or non-numeric price.
	ErrInvalidPrice = fmt.Errorf("%w: invalid price", ErrMalformedPayload)

	// ErrEmptySymbol is returned before any request is made for a blank symbol.
	ErrEmptySymbol = errors.New("symbol is required")

	// ErrEmptyQuery is returned before any request is made for a blank search.
	ErrEmptyQuery = errors.New("search query is required")
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// RejectedError is a business rejection: the backend answered with success=false.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "request rejected by server"
	}
	return e.Message
}

// IsRejected reports whether err is a business rejection and returns the server message.
func IsRejected(err error) (string, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Message, true
	}
	return "", false
}
