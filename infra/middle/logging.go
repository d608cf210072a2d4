package middle

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mstgnz/mediapay/infra/logger"
)

// AccessLogMiddleware writes one structured log line per request. Bodies are not logged;
// provider callbacks carry card and bank data.
func AccessLogMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ctx := logger.LogContext{
				RequestID: requestID(r),
				Provider:  chi.URLParam(r, "provider"),
				OrderID:   chi.URLParam(r, "orderID"),
				Fields: map[string]any{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      status,
					"bytes":       ww.BytesWritten(),
					"client_ip":   GetClientIP(r),
					"duration_ms": time.Since(started).Milliseconds(),
				},
			}

			switch {
			case status >= http.StatusInternalServerError:
				logger.Warn("HTTP request failed", ctx)
			default:
				logger.Debug("HTTP request", ctx)
			}
		})
	}
}

// RoutePattern returns the matched chi route pattern of r
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
