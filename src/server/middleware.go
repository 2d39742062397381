package server

import (
	"net/http"
	"time"
)

// withCORS applies an open CORS policy so the frontend can be served
// from anywhere during development
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAuth enforces basic auth against the credential store when
// authentication is enabled
func (s *Server) withAuth(next http.Handler) http.Handler {
	if !s.AuthEnabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="robotaxi"`)
			writeJSON(w, http.StatusUnauthorized, errorBody("Authentication required"))
			return
		}
		valid, _, err := s.users.VerifyCredentials(username, password)
		if err != nil || !valid {
			writeJSON(w, http.StatusUnauthorized, errorBody("Invalid credentials"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging logs every request with its duration
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Infow("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"remoteAddr", r.RemoteAddr,
			"duration", time.Since(start))
	})
}
