package http

import (
	"context"
	"net/http"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/httputil"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity extracts the caller identity resolved by the edge gateway from
// trusted headers and stores it on the request context. Requests carrying
// both a user and a guest identity are rejected here, before any handler
// runs.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := domain.Identity{
			UserID:  r.Header.Get("X-User-ID"),
			GuestID: r.Header.Get("X-Guest-ID"),
			Role:    r.Header.Get("X-User-Role"),
		}
		if id.UserID != "" && id.GuestID != "" {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "request cannot carry both a user and a guest identity"},
			})
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityFrom returns the caller identity stored by the Identity middleware.
func identityFrom(r *http.Request) domain.Identity {
	id, _ := r.Context().Value(identityKey).(domain.Identity)
	return id
}

// RequireIdentity rejects requests with no resolvable owner.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identityFrom(r).Valid() {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "a user or guest identity is required"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose identity does not carry the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identityFrom(r).IsAdmin() {
			httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "FORBIDDEN", Message: "administrator role required"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ContentTypeJSON sets the response content type for API routes.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
