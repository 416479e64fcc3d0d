package story

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a lookup by id or slug has no match
	ErrNotFound = errors.New("story not found")

	// ErrMalformed marks a response that does not have the expected shape
	ErrMalformed = errors.New("malformed story data")
)

// StatusError is a non-2xx answer from the stories service
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d for URL %s", e.Code, e.URL)
}

// Is lets a 404 match ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// NetworkError wraps any failure to obtain story data. Malformed payloads are
// reported through it as well so callers only need one recoverable error kind.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetwork reports whether err is a recoverable fetch failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
