package web

// errors.go maps failures to HTTP responses.
//
// Every error is logged with its technical detail and the request id, and
// returned to the client as core.MapError's user message plus support code.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/fileprocessor/internal/core"
	"github.com/JonMunkholm/fileprocessor/internal/detect"
	"github.com/JonMunkholm/fileprocessor/internal/logging"
	"github.com/JonMunkholm/fileprocessor/internal/pgload"
	"github.com/JonMunkholm/fileprocessor/internal/record"
	"github.com/JonMunkholm/fileprocessor/internal/scratch"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var errNoFile = errors.New("no file provided")

// fieldError reports a form field that could not be parsed.
type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("invalid request field %q: %s", e.field, e.reason)
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	writeJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status for an error.
func statusFor(err error) int {
	var (
		maxBytes *http.MaxBytesError
		field    *fieldError
		decode   *scratch.DecodeError
		parse    *record.ParseError
	)
	switch {
	case errors.As(err, &maxBytes), strings.Contains(err.Error(), "request body too large"):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile), errors.As(err, &field):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyInspections), errors.Is(err, pgload.ErrDatabaseDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &decode), errors.As(err, &parse),
		errors.Is(err, detect.ErrUnsupportedEncoding),
		errors.Is(err, pgload.ErrNoHeaders), errors.Is(err, pgload.ErrFieldCount),
		errors.Is(err, core.ErrSourceUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
