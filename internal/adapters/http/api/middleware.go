package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/vnclub/pkg/logger"
	"github.com/okian/vnclub/pkg/metrics"
)

// HTTP status code constants.
const (
	statusBadRequest    = 400
	statusNotFound      = 404
	statusConflict      = 409
	statusInternalError = 500
)

// MetricsMiddleware records request counts and latency labelled by the
// matched route pattern, so path parameters do not explode cardinality.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		durationMs := float64(time.Since(start).Milliseconds())
		statusCodeStr := strconv.Itoa(status)

		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)

		if status >= statusBadRequest {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, getErrorType(status))
		}
	})
}

// LoggingMiddleware logs every request at debug level and server errors at
// error level.
func LoggingMiddleware(l logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := []logger.Field{
				logger.String("request_id", middleware.GetReqID(r.Context())),
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", ww.Status()),
				logger.Duration("elapsed", time.Since(start)),
			}
			if ww.Status() >= statusInternalError {
				l.Error(r.Context(), "request failed", fields...)
				return
			}
			l.Debug(r.Context(), "request served", fields...)
		})
	}
}

// getErrorType returns a standardized error type based on HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "server_error"
	case statusCode == statusConflict:
		return "conflict"
	case statusCode == statusNotFound:
		return "not_found"
	case statusCode >= statusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}
