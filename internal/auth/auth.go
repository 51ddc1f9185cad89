// Package auth reads the caller identity established by the upstream gateway.
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/furniture-store/pkg/apperr"
	"github.com/dmehra2102/furniture-store/pkg/httpx"
)

const (
	HeaderUserID = "X-User-ID"
	HeaderEmail  = "X-User-Email"
	HeaderRole   = "X-User-Role"

	RoleAdmin = "admin"
)

type Identity struct {
	UserID string
	Email  string
	Role   string
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// UserID is used to scope idempotency keys.
func UserID(r *http.Request) string {
	id, _ := FromContext(r.Context())
	return id.UserID
}

func Middleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Identity{
				UserID: r.Header.Get(HeaderUserID),
				Email:  r.Header.Get(HeaderEmail),
				Role:   r.Header.Get(HeaderRole),
			}
			if id.UserID == "" {
				httpx.Error(w, log, apperr.New(apperr.Unauthorized, "missing caller identity"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func RequireAdmin(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, _ := FromContext(r.Context()); id.Role != RoleAdmin {
				httpx.Error(w, log, apperr.New(apperr.Unauthorized, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
