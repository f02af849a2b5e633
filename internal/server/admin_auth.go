package server

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"statsvault/internal/auth"
)

// authorizeAdmin checks the bearer token against the configured bcrypt hash.
// It writes the error response and returns false when the request must stop.
func (s *Server) authorizeAdmin(w http.ResponseWriter, r *http.Request) bool {
	if s.adminTokenHash == "" {
		s.writeErrorReq(w, r, http.StatusForbidden, makeAPIError(http.StatusForbidden, "forbidden", ErrCodeForbidden, fmt.Errorf("admin api is disabled")))
		return false
	}

	now := time.Now()
	key := clientKey(r)
	if !s.adminLimiter.Allow(key, now) {
		s.writeErrorReq(w, r, http.StatusTooManyRequests, makeAPIError(http.StatusTooManyRequests, "resource_exhausted", ErrCodeResourceExhausted, fmt.Errorf("too many failed admin attempts")))
		return false
	}

	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok || !auth.VerifyToken(s.adminTokenHash, token) {
		s.adminLimiter.RegisterFailure(key, now)
		s.writeErrorReq(w, r, http.StatusUnauthorized, makeAPIError(http.StatusUnauthorized, "unauthorized", ErrCodeUnauthorized, fmt.Errorf("invalid admin token")))
		return false
	}

	s.adminLimiter.Reset(key)
	return true
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
