package web

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// authMiddleware protects all API routes with basic auth against the configured
// bcrypt password hash. User name is fixed to "scrapn".
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ping" {
			next.ServeHTTP(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if ok && username == "scrapn" {
			if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="Scrapn API"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}
