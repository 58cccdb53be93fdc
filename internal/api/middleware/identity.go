package middleware

import (
	"context"
	"net/http"

	"github.com/dealhub/dealhub/internal/service"
)

type contextKey struct{ name string }

var identityKey = &contextKey{"identity"}

// Identity extracts the caller identity the upstream auth gateway attaches as
// request headers and stores it on the context. The service itself issues no
// credentials and verifies nothing; these headers are trusted facts.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := service.Identity{
			UserID:   r.Header.Get("X-User-Id"),
			Verified: r.Header.Get("X-User-Verified") == "true",
			Role:     r.Header.Get("X-User-Role"),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

// IdentityFrom returns the caller identity stored by the Identity middleware.
func IdentityFrom(ctx context.Context) service.Identity {
	if id, ok := ctx.Value(identityKey).(service.Identity); ok {
		return id
	}
	return service.Identity{}
}

// RequireUser rejects requests that carry no user identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFrom(r.Context()).UserID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":"error","message":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose identity lacks the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFrom(r.Context()).IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"status":"error","message":"admin access required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
