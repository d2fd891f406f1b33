package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture the status code and
// response size for the access log.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// sensitiveParams are query parameters that may carry credentials. Their
// values are masked before the URL reaches the access log.
var sensitiveParams = []string{"api_key", "apikey", "token", "access_token"}

// Logger returns the access-log middleware. Request headers are never
// logged: both auth schemes travel in headers (X-API-Key and Authorization
// bearer tokens), and a key that reaches the logs is a key that leaked.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", wrapped.status),
				slog.Int("bytes", wrapped.bytes),
				slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}

			if query := maskedQuery(r.URL); query != "" {
				attrs = append(attrs, slog.String("query", query))
			}
			if traceID := GetTraceID(r.Context()); traceID != "" {
				attrs = append(attrs, slog.String("trace_id", traceID))
			}

			logger.LogAttrs(r.Context(), levelForStatus(wrapped.status), "http request", attrs...)
		})
	}
}

// levelForStatus maps response classes to log levels.
func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// maskedQuery renders the query string with credential-bearing values
// masked. Keys do not belong in query strings, but a client that puts one
// there must not have it immortalized in the logs.
func maskedQuery(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}

	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		// Unparseable query strings stay out of the logs entirely.
		return ""
	}

	for _, param := range sensitiveParams {
		if values.Has(param) {
			values.Set(param, "[redacted]")
		}
	}

	return values.Encode()
}
