package server

import (
	"net/http"

	"github.com/scimdrift/scimd/base"
)

// authenticated wraps a handler with HTTP Basic auth, passed through to
// the backend rather than checked against any local credential store.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="scim"`)
			writeError(w, base.NewUnAuthorizedError("missing credentials"))
			return
		}

		ar := &base.AuthRequest{Username: username, Password: password, ClientIP: r.RemoteAddr}
		if err := s.backend.Authenticate(r.Context(), ar); err != nil {
			writeError(w, err)
			return
		}

		next(w, r)
	}
}

func opContext(r *http.Request) *base.OpContext {
	return &base.OpContext{ClientIP: r.RemoteAddr, Endpoint: r.URL.Path}
}
