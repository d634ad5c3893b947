// Package middleware holds the HTTP middleware shared by every route.
//
// Every middleware here has the chi shape:
//
//	func(next http.Handler) http.Handler
//
// It wraps next, may do work before and after calling it, and may answer the
// request itself instead (RequireArea does that for a redirect).
//
// ORDER MATTERS:
// The server mounts RequestID, RealIP, Logger, Recoverer, then the auth and
// area gates per route group. Logger sits outside Recoverer so a panic that
// Recoverer turns into a 500 is still logged with its status and request id.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// responseWriter records the status code and body size for the access log.
//
// http.ResponseWriter never reports what status was sent, so the wrapper
// remembers it on the way through. A handler that writes a body without
// calling WriteHeader gets an implicit 200, which is the starting value.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer, which
// the event stream needs for flushing and deadlines.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger logs one line per request once it completes.
//
// Fields: request_id (from chi's RequestID), method, path, status, duration
// and bytes. The query string is left out because OAuth callbacks carry a
// one-time code in it. A long-lived event stream is logged once, when it
// ends, with its whole duration.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("request completed",
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
			)
		})
	}
}
