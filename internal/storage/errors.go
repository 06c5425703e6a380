package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates nothing is cached for the request.
	ErrNotFound = errors.New("not cached")

	// ErrClosed indicates the cache has been closed.
	ErrClosed = errors.New("cache is closed")
)

// NotFoundError wraps ErrNotFound with what was looked up.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("no cached %s", e.Entity)
	}
	return fmt.Sprintf("no cached %s for %s", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
