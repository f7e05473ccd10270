package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - Logged with full technical details, request id and conversion id
//   - Mapped via core.MapError to a user-facing message, action and code
//   - Returned as JSON with an HTTP status derived from the error type
//
// Client errors (4xx) also carry the technical detail, since it names the
// offending header, row or key.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/seconvert/internal/core"
	"github.com/JonMunkholm/seconvert/internal/logging"
	"github.com/JonMunkholm/seconvert/internal/schema"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	Action       string `json:"action,omitempty"`
	Code         string `json:"code"`
	Detail       string `json:"detail,omitempty"`
	ConversionID string `json:"conversion_id,omitempty"`
}

// statusError attaches an HTTP status to an error.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func withStatus(status int, err error) error {
	return &statusError{status: status, err: err}
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var (
		se       *statusError
		tooLarge *http.MaxBytesError
		convErr  *core.ConversionError
		contract *core.ObserverContractError
		incompat *schema.IncompatibleError
	)
	switch {
	case errors.As(err, &se):
		return se.status
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyConversions):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.As(err, &convErr), errors.As(err, &contract), errors.As(err, &incompat),
		errors.Is(err, core.ErrInvalidPolicy):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes it as a JSON error response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	resp := ErrorResponse{
		Error:        userMsg.Message,
		Message:      userMsg.Message,
		Action:       userMsg.Action,
		Code:         userMsg.Code,
		ConversionID: core.ConversionIDFromContext(r.Context()),
	}
	if status < http.StatusInternalServerError {
		resp.Detail = err.Error()
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSONStatus(w, status, resp)
}
