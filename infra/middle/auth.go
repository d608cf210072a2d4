package middle

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mstgnz/mediapay/infra/response"
)

// AuthMiddleware guards the admin API with a static bearer API key
func AuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				response.Error(w, http.StatusInternalServerError, "API key not configured", nil)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Error(w, http.StatusUnauthorized, "Authorization header required", nil)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.Error(w, http.StatusUnauthorized, "Invalid authorization format. Use: Bearer <api_key>", nil)
				return
			}

			given := strings.TrimPrefix(authHeader, "Bearer ")
			if given == "" {
				response.Error(w, http.StatusUnauthorized, "API key required", nil)
				return
			}
			if subtle.ConstantTimeCompare([]byte(given), []byte(apiKey)) != 1 {
				response.Error(w, http.StatusUnauthorized, "Invalid API key", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
