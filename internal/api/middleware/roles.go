package middleware

import (
	"net/http"
	"slices"

	"github.com/phrazzld/taskhub/internal/api/shared"
	"github.com/phrazzld/taskhub/internal/domain"
)

// RequireRoles rejects authenticated callers whose role is not listed. It
// must run after AuthMiddleware.Authenticate. Finer-grained checks stay in
// the services; this only guards whole route groups.
func RequireRoles(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !slices.Contains(roles, principal.User.Role) {
				shared.RespondWithErrorAndLog(w, r, http.StatusForbidden,
					"You are not allowed to perform this action", nil, shared.WithElevatedLogLevel())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
