package main

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Expose-Headers", headerLLMStart+", "+headerLLMResponse)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// apiKeyAuth accepts the key as "Authorization: Bearer <key>", a bare Authorization value, or X-API-Key.
func apiKeyAuth(key string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := providedKey(r)
			if provided == "" {
				log.Warn("api key missing", slog.String("path", r.URL.Path))
				http.Error(w, "API key required", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				log.Warn("invalid api key", slog.String("path", r.URL.Path))
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func providedKey(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		parts := strings.Fields(auth)
		switch {
		case len(parts) == 2 && strings.EqualFold(parts[0], "bearer"):
			return parts[1]
		case len(parts) == 1:
			return parts[0]
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
