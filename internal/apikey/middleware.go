package apikey

import (
	"crypto/subtle"
	"net/http"
)

const HeaderName = "x-api-key"

const unauthorizedBody = `{"error":"Unauthorized: Invalid or missing API key."}`

// Guard rejects requests whose x-api-key header does not match the
// configured secret. An empty secret disables the gate.
type Guard struct {
	Key string
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Key != "" && !g.allowed(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(unauthorizedBody))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) allowed(r *http.Request) bool {
	provided := r.Header.Get(HeaderName)
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(g.Key)) == 1
}
