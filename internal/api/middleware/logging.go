// Package middleware provides HTTP middleware for the read API.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/narvanalabs/lnsync/pkg/logger"
)

// RequestLogger returns a middleware that logs each request once it completes.
// Server errors are logged at error level and client errors at warn level.
// The chi request ID is also stored in the context for downstream loggers.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			requestID := middleware.GetReqID(r.Context())

			defer func() {
				level := slog.LevelInfo
				switch status := ww.Status(); {
				case status >= http.StatusInternalServerError:
					level = slog.LevelError
				case status >= http.StatusBadRequest:
					level = slog.LevelWarn
				}

				log.Log(r.Context(), level, "request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start).String(),
					"request_id", requestID,
					"remote_addr", r.RemoteAddr,
				)
			}()

			ctx := logger.ContextWithRequestID(r.Context(), requestID)
			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}
