package lookup

import (
	"errors"
	"fmt"
)

// ErrNotFound means the source answered but had nothing for the key.
var ErrNotFound = errors.New("property not found")

// NormalizationError is returned when a payload could not be mapped to a record at all.
// Callers treat it as not found.
type NormalizationError struct {
	Key string
	Err error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("failed to normalize payload for %q: %v", e.Key, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

func (e *NormalizationError) Is(target error) bool { return target == ErrNotFound }

// UpstreamError wraps a failed call to an external source.
type UpstreamError struct {
	Key string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream source failed for %q: %v", e.Key, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StoreError wraps a failed read or write against the Lookup Store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
