package admin

import (
	"log/slog"
	"net/http"

	"github.com/supportiq-platform/supportiq/internal/api"
	"github.com/supportiq-platform/supportiq/internal/auth"
	"github.com/supportiq-platform/supportiq/internal/users"
)

// RequirePermission gates a route on the role claim carried in the
// access token. Role changes apply to tokens issued after the change.
func RequirePermission(perm users.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.GetUserClaims(r.Context())
			if claims == nil {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			role, err := users.ParseRole(claims.Role)
			if err != nil || !users.HasPermission(role, perm) {
				slog.Warn("permission denied",
					"user_id", claims.UserID,
					"role", claims.Role,
					"permission", string(perm),
					"path", r.URL.Path,
				)
				api.HandleError(w, api.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
