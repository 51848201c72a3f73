package api

import (
	"errors"
	"net/http"

	service "github.com/okian/vnclub/internal/app"
	"github.com/okian/vnclub/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// Error carries the failing handler, a sentinel kind and the cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

// NewKind returns an error of kind with no further cause.
func NewKind(op string, kind error) *Error {
	return &Error{Op: op, Kind: kind}
}

// Wrap attaches op to err.
func Wrap(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

// WrapKind attaches op and kind to err.
func WrapKind(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Kind != nil:
		return e.Op + ": " + e.Kind.Error()
	default:
		return e.Op
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// statusFor maps an error to its HTTP status and response code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrDuplicateTitle), errors.Is(err, model.ErrDuplicateCompletion):
		return http.StatusConflict, "conflict"
	case errors.Is(err, model.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
