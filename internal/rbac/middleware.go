package rbac

import (
	"net/http"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

// RequirePermission rejects callers that lack an unconditional grant of
// action on subject. Anonymous callers get 401, authenticated ones 403.
func (p Policy) RequirePermission(action, subject string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
				return
			}
			if !p.Can(principal, action, subject, nil) {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
