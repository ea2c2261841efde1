package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/seedboard/internal/core/ports"
)

// BoardHandler serves read-only views of the board.
type BoardHandler struct {
	service ports.BoardService
}

func NewBoardHandler(service ports.BoardService) *BoardHandler {
	return &BoardHandler{service: service}
}

// Board handles GET /api/board: decorated posts, newest first.
//
// @Summary      Current board
// @Tags         board
// @Produce      json
// @Success      200  {object}  ports.BoardView
// @Router       /api/board [get]
func (h *BoardHandler) Board(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.View())
}

// Session handles GET /api/session: who the session cookie says the caller is.
//
// @Summary      Current session
// @Tags         board
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /api/session [get]
func (h *BoardHandler) Session(c echo.Context) error {
	id, name := ctxSession(c)
	return c.JSON(http.StatusOK, sessionResponse{
		Identity: id,
		Name:     name,
		Role:     h.service.RoleOf(id).String(),
	})
}

// Moderation handles GET /api/moderation: NG words, restriction flags and
// role membership. Mounted behind RequireRole.
//
// @Summary      Moderation state
// @Tags         moderation
// @Produce      json
// @Success      200  {object}  ports.ModerationView
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /api/moderation [get]
func (h *BoardHandler) Moderation(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Moderation())
}
