package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/ports"
)

// RequireRole admits requests whose session identity currently holds at least
// required. The role is resolved per request, so a revoked role takes effect
// immediately.
func RequireRole(lookup ports.RoleLookup, required domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFrom(c)
			if id == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "session required"})
			}
			if !domain.HasPermission(lookup.RoleOf(id), required) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
