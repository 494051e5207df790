package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mkrupp/practice-tracker/internal/infra/logging"
)

// StatusRecorder wraps http.ResponseWriter to capture the status code and body size.
type StatusRecorder struct {
	http.ResponseWriter
	StatusCode int
	BytesSent  int

	wroteHeader bool
}

// NewStatusRecorder wraps w. The status defaults to 200 until WriteHeader is called.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	if sr, ok := w.(*StatusRecorder); ok {
		return sr
	}

	return &StatusRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (w *StatusRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.StatusCode = code
		w.wroteHeader = true
	}

	w.ResponseWriter.WriteHeader(code)
}

func (w *StatusRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	w.BytesSent += len(b)

	n, err := w.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}

	return n, nil
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *StatusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// LoggingMiddleware logs requests at DEBUG and responses at a level derived from the status:
// ERROR for 5xx, WARN for 4xx, INFO otherwise.
func LoggingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	//nolint:varnamelen
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		log.DebugContext(r.Context(), "request", slog.Group("http",
			"uri", r.RequestURI,
			"method", r.Method,
		))

		rec := NewStatusRecorder(w)

		next.ServeHTTP(rec, r)

		var level logging.Level

		switch {
		case rec.StatusCode >= http.StatusInternalServerError:
			level = logging.LevelError
		case rec.StatusCode >= http.StatusBadRequest:
			level = logging.LevelWarn
		default:
			level = logging.LevelInfo
		}

		log.Log(r.Context(), level, "response", slog.Group("http",
			"uri", r.RequestURI,
			"method", r.Method,
			"status", rec.StatusCode,
			"bytes_sent", rec.BytesSent,
			"duration_ms", time.Since(start).Milliseconds(),
		))
	})
}
