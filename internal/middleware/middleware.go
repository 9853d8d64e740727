// Package middleware provides the request-scoped context plumbing shared by
// every handler in the HTTP surface: request and trace identifiers.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"sqlgateway/internal/logger"
)

type ctxKey string

const (
	KeyRequestID ctxKey = "request_id"
	KeyTraceID   ctxKey = "trace_id"
)

// WithRequestContext assigns a request ID (propagated from X-Request-Id or
// minted fresh) and a trace ID (propagated from AH-Trace-Id or X-Trace-Id,
// falling back to the request ID) to every inbound request, echoing both
// back as response headers.
func WithRequestContext(next http.Handler) http.Handler {
	log := logger.WithComponent("middleware")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = newID()
		}
		traceID := r.Header.Get("AH-Trace-Id")
		if traceID == "" {
			traceID = r.Header.Get("X-Trace-Id")
		}
		if traceID == "" {
			traceID = reqID
		}

		w.Header().Set("X-Request-Id", reqID)
		w.Header().Set("X-Trace-Id", traceID)

		log.Debug("request context initialized", "request_id", reqID, "trace_id", traceID, "path", r.URL.Path, "method", r.Method)

		ctx := context.WithValue(r.Context(), KeyRequestID, reqID)
		ctx = context.WithValue(ctx, KeyTraceID, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(KeyRequestID).(string)
	return v
}

func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(KeyTraceID).(string)
	return v
}

func newID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
