package server

import (
	"context"
	"net/http"
	"strings"

	"securenight/backend/snd/internal/auth/jwt"
	"securenight/backend/snd/internal/users"
	"securenight/backend/snd/pkg/httpx"
)

type ctxKey string

const ctxUser ctxKey = "user"

func userFrom(ctx context.Context) (users.User, bool) {
	u, ok := ctx.Value(ctxUser).(users.User)
	return u, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// withUser resolves the bearer access token to a user record and stores it
// on the context. Invalid or absent tokens pass through anonymously.
func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := bearerToken(r); tok != "" {
			if claims, err := s.tokens.Verify(tok, jwt.UseAccess); err == nil {
				if u, err := s.users.Get(claims.UserID); err == nil && u.Active {
					r = r.WithContext(context.WithValue(r.Context(), ctxUser, u))
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userFrom(r.Context()); !ok {
			httpx.WriteTypedError(w, http.StatusUnauthorized, "auth.required", "authentication required", 0)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := userFrom(r.Context())
		if !ok {
			httpx.WriteTypedError(w, http.StatusUnauthorized, "auth.required", "authentication required", 0)
			return
		}
		if !u.IsAdmin() {
			httpx.WriteTypedError(w, http.StatusForbidden, "auth.admin_required", "admin privileges required", 0)
			return
		}
		next.ServeHTTP(w, r)
	})
}
