package middleware

import (
	helpers "hoursrelay/internal/utils/helpres"
	"net/http"
)

// AnyRole пропускает запрос, если роль из service JWT входит в список.
// Должен стоять ПОСЛЕ ServiceAuth.
func AnyRole(allowedRoles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{})
	for _, r := range allowedRoles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authDisabled(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			userRole, ok := RoleFrom(r.Context())
			if !ok {
				helpers.Error(w, http.StatusForbidden, "Unable to determine caller role")
				return
			}
			if _, found := roleSet[userRole]; !found {
				helpers.Error(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
