// Package respond writes JSON responses and maps errors to HTTP statuses.
package respond

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/dalemusser/freshershub/internal/app/system/inputval"
	"github.com/dalemusser/freshershub/internal/app/system/observability"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

// ErrBadRequest wraps request bodies that cannot be decoded.
var ErrBadRequest = errors.New("malformed request body")

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string                `json:"error"`
	Fields []inputval.FieldError `json:"fields,omitempty"`
}

// fielder is implemented by the stores' validation errors.
type fielder interface {
	Fields() []inputval.FieldError
}

type mapping struct {
	err    error
	status int
}

var (
	mu       sync.RWMutex
	mappings = []mapping{
		{ErrBadRequest, http.StatusBadRequest},
		{backend.ErrNotFound, http.StatusNotFound},
		{backend.ErrObjectNotFound, http.StatusNotFound},
		{backend.ErrNoSession, http.StatusUnauthorized},
		{backend.ErrInvalidToken, http.StatusUnauthorized},
		{backend.ErrInvalidCredentials, http.StatusUnauthorized},
		{backend.ErrEmailTaken, http.StatusConflict},
		{backend.ErrConflict, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
)

// Register maps errs (matched with errors.Is) to status. Feature packages
// call it from init for their store sentinels.
func Register(status int, errs ...error) {
	mu.Lock()
	defer mu.Unlock()
	for _, e := range errs {
		mappings = append(mappings, mapping{err: e, status: status})
	}
}

// StatusFor returns the status err maps to; unknown errors are 500.
func StatusFor(err error) int {
	var fe fielder
	if errors.As(err, &fe) {
		return http.StatusUnprocessableEntity
	}
	mu.RLock()
	defer mu.RUnlock()
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func OK(w http.ResponseWriter, r *http.Request, v any) {
	JSON(w, r, http.StatusOK, v)
}

func Created(w http.ResponseWriter, r *http.Request, v any) {
	JSON(w, r, http.StatusCreated, v)
}

func NoContent(w http.ResponseWriter, r *http.Request) {
	render.NoContent(w, r)
}

// Error writes err as an ErrorBody. Server errors are logged and sent to
// Sentry with a generic message.
func Error(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := StatusFor(err)
	body := ErrorBody{Error: err.Error()}
	var fe fielder
	if errors.As(err, &fe) {
		body.Error = "validation failed"
		body.Fields = fe.Fields()
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
		observability.CaptureWithTags(err, map[string]string{"path": r.URL.Path})
		body.Error = http.StatusText(status)
	}
	JSON(w, r, status, body)
}

// Message writes a plain error message with status.
func Message(w http.ResponseWriter, r *http.Request, status int, msg string) {
	JSON(w, r, status, ErrorBody{Error: msg})
}

// Decode reads a JSON body into v.
func Decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}
