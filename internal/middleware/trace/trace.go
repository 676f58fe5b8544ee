package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	applog "expensetracker/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// maxLoggedBody caps how much of a request body is read for debug logging.
	maxLoggedBody = 64 << 10
)

// redactedKeys are masked in logged JSON bodies.
var redactedKeys = []string{"password"}

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *applog.Logger
	sl        *applog.StructuredLogger
}

func NewMiddleware(logger *applog.Logger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		extractIP: extractIP,
		logger:    logger,
		sl:        applog.NewStructuredLogger(logger),
	}
}

// Middleware logs request start and completion, and the JSON body at debug level.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = applog.WithContext(ctx, m.logger.With(applog.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		m.sl.LogHTTPStart(ctx, r, requestID, clientIP)
		if r.Body != nil && r.ContentLength != 0 && m.logger.Enabled(ctx, slog.LevelDebug) {
			m.logBody(ctx, r, requestID)
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		durationMs := time.Since(start).Milliseconds()

		m.sl.LogHTTPEnd(ctx, r, requestID, rw.statusCode, durationMs, clientIP)
	})
}

// logBody reads the body for logging and puts it back for the handler.
func (m *Middleware) logBody(ctx context.Context, r *http.Request, requestID string) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody))
	if err != nil {
		return
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
	m.sl.LogHTTPBody(ctx, requestID, RedactBody(raw))
}

// RedactBody masks password values in a JSON object body. Anything that is not
// a JSON object is replaced by a placeholder.
func RedactBody(raw []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "[unparsed body]"
	}
	for _, key := range redactedKeys {
		if _, ok := obj[key]; ok {
			obj[key] = "[REDACTED]"
		}
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return "[unparsed body]"
	}
	return string(out)
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
