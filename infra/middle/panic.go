package middle

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mstgnz/mediapay/infra/logger"
	"github.com/mstgnz/mediapay/infra/response"
)

// PanicRecoveryMiddleware logs panics and converts them to HTTP 500 responses
func PanicRecoveryMiddleware() func(http.Handler) http.Handler {
	return PanicRecoveryWithCustomHandler(func(w http.ResponseWriter, r *http.Request, recovered any) {
		logger.Error("Panic recovered", fmt.Errorf("%v", recovered), logger.LogContext{
			RequestID: requestID(r),
			Fields: map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
				"stack":  string(debug.Stack()),
			},
		})

		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		response.Error(w, http.StatusInternalServerError, "Internal server error", errors.New("an unexpected error occurred"))
	})
}

// PanicRecoveryWithCustomHandler allows custom panic handling
func PanicRecoveryWithCustomHandler(handler func(http.ResponseWriter, *http.Request, any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					if recovered == http.ErrAbortHandler {
						panic(recovered)
					}
					handler(w, r, recovered)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(middleware.RequestIDHeader)
}
