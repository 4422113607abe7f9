package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrAuthenticationRequired is returned when an operation needs a
	// logged-in user and none was supplied.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrInvalidCredentials covers unknown users, inactive accounts and
	// wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ValidationError collects per-field form errors.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// StorageError wraps a persistence failure.  The operation was aborted and
// left no partial state.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": storage: " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// RemoteProcessorError wraps a failed call to the payment processor.
type RemoteProcessorError struct {
	Op  string
	Err error
}

func (e *RemoteProcessorError) Error() string { return e.Op + ": payment processor: " + e.Err.Error() }
func (e *RemoteProcessorError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error { return &StorageError{Op: op, Err: err} }
