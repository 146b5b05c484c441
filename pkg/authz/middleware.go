package authz

import (
	"encoding/json"
	"net/http"
)

// RoleHeader is the request header carrying the caller role.
const RoleHeader = "X-User-Role"

// RoleMiddleware returns HTTP middleware that reads the caller role from the
// X-User-Role header and stores it in the request context. A missing header
// resolves to DefaultRole; an unknown role is rejected with 400.
func RoleMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, err := ParseRole(r.Header.Get(RoleHeader))
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "Invalid role",
					"code":  "INVALID_ROLE",
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRole(r.Context(), role)))
		})
	}
}
