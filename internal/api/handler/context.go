package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/seedboard/internal/api/middleware"
	"github.com/99minutos/seedboard/internal/core/domain"
)

// ctxSession returns the identity and name injected by the session
// middleware. Both are empty for anonymous viewers.
func ctxSession(c echo.Context) (domain.Identity, string) {
	name, _ := c.Get(middleware.ContextName).(string)
	return middleware.IdentityFrom(c), name
}
