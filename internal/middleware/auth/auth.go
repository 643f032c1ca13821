// Package auth resolves bearer tokens to users.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"expensa/internal/core"
	"expensa/internal/log"
	"expensa/internal/storage"
)

type ContextKey string

const UserKey ContextKey = "user"

var (
	ErrMissingToken = errors.New("Missing or invalid Authorization header")
	ErrInvalidToken = errors.New("Invalid or expired token")
)

// UserResolver looks a user up by the clear-text token. Storage hashes it.
type UserResolver interface {
	UserByToken(ctx context.Context, token string) (core.User, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <t>" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Middleware rejects requests without a valid token. onError renders the
// 401 (or 500 when the lookup itself fails).
func Middleware(users UserResolver, onError func(http.ResponseWriter, *http.Request, int, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				onError(w, r, http.StatusUnauthorized, ErrMissingToken)
				return
			}
			user, err := users.UserByToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					onError(w, r, http.StatusUnauthorized, ErrInvalidToken)
					return
				}
				log.FromContext(r.Context()).ErrorContext(r.Context(), "Token lookup failed",
					log.FieldComponent, log.ComponentAuth, log.FieldError, err)
				onError(w, r, http.StatusInternalServerError, errors.New("authentication unavailable"))
				return
			}

			logger := log.FromContext(r.Context()).With(log.FieldUserID, user.ID)
			ctx := context.WithValue(r.Context(), UserKey, user)
			ctx = log.IntoContext(ctx, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFrom returns the authenticated user stored by Middleware.
func UserFrom(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(UserKey).(core.User)
	return u, ok
}
