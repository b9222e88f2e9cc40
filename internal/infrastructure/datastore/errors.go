package datastore

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound means the collection file is missing or was quarantined. Store recovers it by seeding.
	ErrNotFound = errors.New("collection not found")
	// ErrWriteFailed wraps every failure to durably persist a collection.
	ErrWriteFailed = errors.New("collection write failed")
	// ErrWriteTimeout is reported (wrapped in ErrWriteFailed) when a write exceeds the store write timeout.
	ErrWriteTimeout = errors.New("collection write timed out")
	// ErrUnknownCollection is returned for names that cannot map to a file in the data directory.
	ErrUnknownCollection = errors.New("invalid collection name")
)

var collectionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateName reports whether name is usable as a collection name.
func ValidateName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return nil
}

// UpdaterError wraps a panic raised by a queued operation.
type UpdaterError struct {
	Collection string
	Value      interface{}
}

func (e *UpdaterError) Error() string {
	return fmt.Sprintf("operation on %s panicked: %v", e.Collection, e.Value)
}
