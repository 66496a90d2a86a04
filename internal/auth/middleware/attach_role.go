package auth

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/mind-engage/mindengage-materials/internal/rbac"
)

// AttachRoleFromDB replaces the token's role claim with users.role, so a
// demoted or deleted account loses access before its token expires. Runs
// after JWTMiddleware.
func AttachRoleFromDB(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, ok := PrincipalFromContext(ctx)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			var role string
			err := db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, p.UserID).Scan(&role)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			case err != nil:
				http.Error(w, "role lookup failed", http.StatusInternalServerError)
				return
			}
			p.Role = role
			ctx = WithPrincipal(ctx, p)
			next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
		})
	}
}
