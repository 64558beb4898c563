// responses.go -- Package-wide HTTP response helpers and the error envelope.
//
// Every failure leaves the handlers as an *Error rendered by writeError, so
// clients always see {message, error, errors?, retry_after?}.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MGallo-Code/ticklist/internal/i18n"
)

// Error codes. Never localized.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	CodeInternal           = "INTERNAL_ERROR"
)

// timeFormat renders timestamps as UTC RFC 3339 with milliseconds.
const timeFormat = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// Error is a client-facing failure. MessageKey is an i18n catalog key;
// Fields holds per-field validation messages (also catalog keys).
type Error struct {
	Status     int
	Code       string
	MessageKey string
	Fields     map[string][]string
	RetryAfter int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Code)
}

func errValidation(fields map[string][]string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: CodeValidation, MessageKey: i18n.MsgValidationFailed, Fields: fields}
}

// fieldError is shorthand for a single-field validation failure.
func fieldError(field, msg string) *Error {
	return errValidation(map[string][]string{field: {msg}})
}

var (
	errUnauthenticated    = &Error{Status: http.StatusUnauthorized, Code: CodeUnauthenticated, MessageKey: i18n.MsgUnauthenticated}
	errInvalidCredentials = &Error{Status: http.StatusUnauthorized, Code: CodeInvalidCredentials, MessageKey: i18n.MsgInvalidCreds}
	errForbidden          = &Error{Status: http.StatusForbidden, Code: CodeForbidden, MessageKey: i18n.MsgForbidden}
	errNotFound           = &Error{Status: http.StatusNotFound, Code: CodeNotFound, MessageKey: i18n.MsgNotFound}
	errInternal           = &Error{Status: http.StatusInternalServerError, Code: CodeInternal, MessageKey: i18n.MsgInternal}
)

func errRateLimited(retryAfter int) *Error {
	return &Error{Status: http.StatusTooManyRequests, Code: CodeRateLimited, MessageKey: i18n.MsgTooManyRequests, RetryAfter: retryAfter}
}

// errorBody is the wire shape of an Error.
type errorBody struct {
	Message    string              `json:"message"`
	Error      string              `json:"error"`
	Errors     map[string][]string `json:"errors,omitempty"`
	RetryAfter int                 `json:"retry_after,omitempty"`
}

// writeError renders e in the request's language.
func writeError(w http.ResponseWriter, r *http.Request, e *Error) {
	loc := i18n.FromRequest(r)
	writeJSON(w, e.Status, errorBody{
		Message:    loc.T(e.MessageKey),
		Error:      e.Code,
		Errors:     loc.Fields(e.Fields),
		RetryAfter: e.RetryAfter,
	})
}

// InternalServerError logs the error and returns a generic 500 envelope.
// Never exposes internal error details to prevent information leakage.
func InternalServerError(w http.ResponseWriter, r *http.Request, err error) {
	logError(r, "internal server error", "error", err)
	writeError(w, r, errInternal)
}

// writeJSON encodes v with status. Encoding errors can only come from a broken
// connection at this point, so they are dropped.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeRawJSON writes an already-encoded body (cache hits).
func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// messageBody is the {message, status} shape used by logout and delete.
type messageBody struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// NotFound renders the 404 envelope for unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, errNotFound)
}
