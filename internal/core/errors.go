package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by ledger operations. Callers match them with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Invalid marks err as an ErrInvalidArgument while keeping its message.
func Invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
}

// Invalidf builds an ErrInvalidArgument with a formatted message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// NotFoundf builds an ErrNotFound naming the missing entity.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// StorageError carries a failure reported by the storage layer. The driver
// error is kept as-is and reachable through Unwrap.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Storage wraps err as a StorageError unless it already is a ledger error kind.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidArgument) || errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
