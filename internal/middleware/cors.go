package middleware

import (
	"log/slog"
	"net/http"
	"slices"
)

// CORS answers preflight requests and sets the CORS headers for the listed
// origins. A "*" entry allows any origin.
func CORS(origins []string, log *slog.Logger) func(http.Handler) http.Handler {
	anyOrigin := slices.Contains(origins, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (anyOrigin || slices.Contains(origins, origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Access-Control-Allow-Headers, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				log.Debug("[CORS] Handled OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
