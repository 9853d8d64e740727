// Package gatewayerr implements the error mapper: a fixed
// mapping from gateway error kinds to HTTP status codes and a single JSON
// error envelope shape.
package gatewayerr

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/pool"
)

// Kind enumerates the gateway's error taxonomy. Each Kind maps to exactly
// one HTTP status code.
type Kind string

const (
	KindBadRequest          Kind = "BAD_REQUEST"
	KindNotFound            Kind = "NOT_FOUND"
	KindConflict            Kind = "CONFLICT"
	KindDatabaseUnavailable Kind = "DATABASE_UNAVAILABLE"
	KindInternal            Kind = "INTERNAL_ERROR"
)

var statusByKind = map[Kind]int{
	KindBadRequest:          http.StatusBadRequest,
	KindNotFound:            http.StatusNotFound,
	KindConflict:            http.StatusConflict,
	KindDatabaseUnavailable: http.StatusServiceUnavailable,
	KindInternal:            http.StatusInternalServerError,
}

// GatewayError is a typed error carrying the Kind the Error Mapper needs to
// pick a status code and envelope, without requiring every caller to know
// about HTTP.
type GatewayError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *GatewayError) Unwrap() error { return e.Cause }

func BadRequest(msg string) *GatewayError { return &GatewayError{Kind: KindBadRequest, Message: msg} }
func NotFound(msg string) *GatewayError   { return &GatewayError{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *GatewayError   { return &GatewayError{Kind: KindConflict, Message: msg} }

func Unavailable(msg string, cause error) *GatewayError {
	return &GatewayError{Kind: KindDatabaseUnavailable, Message: msg, Cause: cause}
}

func Internal(cause error) *GatewayError {
	return &GatewayError{Kind: KindInternal, Message: "internal error", Cause: cause}
}

// envelope is the fixed JSON error shape every non-2xx response carries.
type envelope struct {
	Error     bool   `json:"error"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

// timestampLayout is the fixed "YYYY-MM-DD HH:MM:SS" wire format of the
// error envelope's timestamp.
const timestampLayout = "2006-01-02 15:04:05"

// Classify maps an arbitrary error (possibly from catalog or pool) to a
// GatewayError, defaulting to KindInternal when nothing more specific
// matches.
func Classify(err error) *GatewayError {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}

	var storeErr *catalog.StoreError
	if errors.As(err, &storeErr) {
		switch storeErr.Kind {
		case catalog.ErrNotFound:
			return NotFound(storeErr.Error())
		case catalog.ErrConflict:
			return Conflict(storeErr.Error())
		case catalog.ErrInvalid:
			return BadRequest(storeErr.Error())
		default:
			return Internal(err)
		}
	}

	var unavailable *pool.ErrDatabaseUnavailable
	if errors.As(err, &unavailable) {
		return Unavailable(unavailable.Error(), err)
	}
	var unknown *pool.ErrDatabaseUnknown
	if errors.As(err, &unknown) {
		return NotFound(unknown.Error())
	}

	return Internal(err)
}

// StatusFor returns the fixed HTTP status code for kind.
func StatusFor(kind Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// MapToHTTP writes err to w as the fixed JSON error envelope, choosing the
// status code from err's Kind (classifying err first if needed). Returns
// the status code written.
func MapToHTTP(w http.ResponseWriter, err error, path string) int {
	ge := Classify(err)
	status := StatusFor(ge.Kind)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Error:     true,
		ErrorCode: string(ge.Kind),
		Message:   ge.Message,
		Path:      path,
		Timestamp: time.Now().UTC().Format(timestampLayout),
	})
	return status
}
