package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/go-chi/jwtauth/v5"
)

// RequireSettlementRole restricts approve, pay and cancel to settling roles.
func RequireSettlementRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.HandleError(w, auth.ErrInvalidToken)
			return
		}

		roleStr, ok := claims["role"].(string)
		if !ok {
			response.HandleError(w, auth.ErrInsufficientRole)
			return
		}

		role, err := auth.ParseRole(roleStr)
		if err != nil || !role.CanSettle() {
			response.HandleError(w, auth.ErrInsufficientRole)
			return
		}

		next.ServeHTTP(w, r)
	})
}
