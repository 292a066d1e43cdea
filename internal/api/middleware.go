// Package api implements the folio REST API using chi.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, r, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type userKey struct{}

// UserHeader carries the acting user id.
const UserHeader = "X-User-ID"

// UserMiddleware stores the acting user id in the request context, taken
// from the X-User-ID header or defaultUID when the header is absent.
func UserMiddleware(defaultUID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := defaultUID
			if raw := r.Header.Get(UserHeader); raw != "" {
				v, err := strconv.ParseInt(raw, 10, 64)
				if err != nil || v <= 0 {
					writeJSON(w, r, http.StatusBadRequest, errorBody("invalid "+UserHeader+" header"))
					return
				}
				uid = v
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, uid)))
		})
	}
}

func userID(r *http.Request) int64 {
	uid, _ := r.Context().Value(userKey{}).(int64)
	return uid
}
