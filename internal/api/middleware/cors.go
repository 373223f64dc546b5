package middleware

import (
	"bidding-engine/pkg/logger"
	"net/http"

	"github.com/gorilla/mux"
)

const (
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Accept, Content-Type, Content-Length, Authorization, X-Requested-With"
)

// CORS answers preflight requests and stamps CORS headers on the bidding
// routes. An empty allowedOrigins allows any origin.
func CORS(allowedOrigins []string, log logger.Logger) mux.MiddlewareFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case origin == "":
			case len(allowed) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			default:
				log.Debug("CORS origin not allowed", "origin", origin, "path", r.URL.Path)
			}
			w.Header().Set("Access-Control-Allow-Methods", allowMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
