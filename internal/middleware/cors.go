// Package middleware provides HTTP middleware for the prompt runner API.
package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// CORSConfig describes the cross-origin policy.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// DefaultCORS allows any origin to POST JSON.
var DefaultCORS = CORSConfig{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{http.MethodPost, http.MethodOptions},
	AllowedHeaders: []string{"Content-Type"},
}

// CORS returns middleware that sets CORS headers on every response and
// answers preflight requests with an empty 200.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	wildcard := slices.Contains(cfg.AllowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			switch {
			case wildcard:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && slices.Contains(cfg.AllowedOrigins, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
