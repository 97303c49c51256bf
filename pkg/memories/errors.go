package memories

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error types, the top-level taxonomy of the error envelope.
const (
	TypeValidation = "validation_error"
	TypeNetwork    = "network_error"
	TypeHTTP       = "http_error"
)

// Error codes produced locally. Upstream-reported errors carry their own codes,
// and non-envelope upstream failures use HTTP_<status>.
const (
	CodeMissingEnv            = "MISSING_ENV"
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeUpstreamRequestFailed = "UPSTREAM_REQUEST_FAILED"
	CodeInvalidJSON           = "INVALID_JSON"
	CodeUpstreamError         = "UPSTREAM_ERROR"
	CodeInternal              = "INTERNAL_ERROR"
)

// ErrorBody is the "error" member of a failed response envelope.
type ErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error is a classified failure with the HTTP status it surfaces as.
type Error struct {
	Status int
	Body   ErrorBody

	// Raw is the error object reported by the upstream envelope, forwarded
	// to callers byte for byte. Body holds its best-effort parse.
	Raw json.RawMessage

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s/%s (HTTP %d)", e.Body.Type, e.Body.Code, e.Status)
	if e.Body.Message != "" {
		msg += ": " + e.Body.Message
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Payload returns the value to place under "error" in the response envelope.
func (e *Error) Payload() any {
	if len(e.Raw) > 0 {
		return e.Raw
	}
	return e.Body
}

func newError(status int, typ, code, message string, cause error) *Error {
	return &Error{
		Status: status,
		Body: ErrorBody{
			Type:    typ,
			Code:    code,
			Message: message,
		},
		Err: cause,
	}
}

// Issue is a single input validation failure.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every problem found in one input.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+": "+issue.Message)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// Add records an issue for field.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Issues = append(e.Issues, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns e when it holds issues and nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}

// AsError classifies any error returned by this package into an *Error.
// Validation failures become 422 INVALID_REQUEST; unknown errors become a
// 500 INTERNAL_ERROR.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		out := newError(http.StatusUnprocessableEntity, TypeValidation, CodeInvalidRequest, ve.Error(), err)
		out.Body.Details = ve.Issues
		return out
	}

	return newError(http.StatusInternalServerError, TypeHTTP, CodeInternal, err.Error(), err)
}
