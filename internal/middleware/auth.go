package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"lorry-backend/internal/models"
	"lorry-backend/pkg/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

// Auth validates the bearer token and adds the user claims to the request context
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Printf("❌ AUTH: no authorization header (%s %s)", r.Method, r.URL.Path)
				utils.RespondError(w, http.StatusUnauthorized, "Authorization header missing")
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(tokenString) == "" {
				log.Printf("❌ AUTH: invalid authorization header format (%s %s)", r.Method, r.URL.Path)
				utils.RespondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			claims, err := ParseToken(secret, strings.TrimSpace(tokenString))
			if err != nil {
				log.Printf("❌ AUTH: invalid token: %v", err)
				utils.RespondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows the request through only for the given roles (must be used after Auth)
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userClaims, ok := GetUserFromContext(r)
			if !ok {
				log.Println("❌ User claims not found in context")
				utils.RespondError(w, http.StatusUnauthorized, "Authorization header missing")
				return
			}

			for _, role := range roles {
				if userClaims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			log.Printf("❌ Insufficient permissions: required %v, got %s", roles, userClaims.Role)
			utils.RespondError(w, http.StatusForbidden, "Forbidden")
		})
	}
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(r *http.Request) (UserClaims, bool) {
	userClaims, ok := r.Context().Value(UserContextKey).(UserClaims)
	return userClaims, ok
}

// WithUser returns ctx carrying claims, as Auth does
func WithUser(ctx context.Context, claims UserClaims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}
