package catalog

import "fmt"

// ErrorKind classifies a StoreError for the Error Mapper.
type ErrorKind string

const (
	ErrIO       ErrorKind = "IO"
	ErrNotFound ErrorKind = "NotFound"
	ErrConflict ErrorKind = "Conflict"
	ErrInvalid  ErrorKind = "Invalid"
)

// StoreError is the uniform error type every CatalogueStore operation
// returns on failure.
type StoreError struct {
	Kind  ErrorKind
	Cause error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("catalog: %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("catalog: %s", e.Kind)
}

func (e *StoreError) Unwrap() error { return e.Cause }

func newErr(kind ErrorKind, cause error) *StoreError {
	return &StoreError{Kind: kind, Cause: cause}
}

func NotFoundErr(cause error) *StoreError { return newErr(ErrNotFound, cause) }
func ConflictErr(cause error) *StoreError { return newErr(ErrConflict, cause) }
func InvalidErr(cause error) *StoreError  { return newErr(ErrInvalid, cause) }
func IOErr(cause error) *StoreError       { return newErr(ErrIO, cause) }

// ioWrap classifies cause as an IO StoreError, passing nil through unchanged
// so callers can return it directly from (value, error) tails.
func ioWrap(cause error) error {
	if cause == nil {
		return nil
	}
	return IOErr(cause)
}
