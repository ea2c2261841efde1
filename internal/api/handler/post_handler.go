package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/seedboard/internal/api/metrics"
	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/ports"
)

// SessionIssuer sets the viewer session cookie after a successful submission.
type SessionIssuer interface {
	Issue(c echo.Context, name string, identity domain.Identity) error
}

// PostHandler handles inbound posts and commands.
type PostHandler struct {
	service  ports.BoardService
	sessions SessionIssuer
}

// NewPostHandler creates a PostHandler. sessions may be nil.
func NewPostHandler(service ports.BoardService, sessions SessionIssuer) *PostHandler {
	return &PostHandler{service: service, sessions: sessions}
}

// Submit handles POST /post: appends a post or runs a command.
//
// @Summary      Submit a post or command
// @Tags         board
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        body  body      postRequest  true  "Name, message and seed"
// @Success      200   {object}  postResponse  "command applied"
// @Success      201   {object}  postResponse  "post created"
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /post [post]
func (h *PostHandler) Submit(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.SubmissionDuration.Observe(time.Since(start).Seconds()) }()

	var req postRequest
	if err := c.Bind(&req); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("bad_payload").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	fields := SubmittedFields{Name: req.Name, Message: req.Message}
	if err := c.Validate(&req); err != nil {
		metrics.SubmissionsTotal.WithLabelValues(outcome(err)).Inc()
		return &SubmissionError{Err: err, Fields: fields}
	}

	res, err := h.service.Submit(c.Request().Context(), ports.SubmitInput{
		Name:    req.Name,
		Message: req.Message,
		Seed:    req.Seed,
	})
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(outcome(err)).Inc()
		return &SubmissionError{Err: err, Fields: fields}
	}

	if h.sessions != nil {
		if err := h.sessions.Issue(c, req.Name, res.Identity); err != nil {
			c.Logger().Warnf("issue session: %v", err)
		}
	}

	resp := postResponse{
		Identity:    res.Identity,
		DisplayName: req.Name + "@" + string(res.Identity),
		Role:        res.Role.String(),
		Post:        res.Post,
		Command:     res.Command,
		Reply:       res.Reply,
	}
	if res.Command != "" {
		metrics.SubmissionsTotal.WithLabelValues("command").Inc()
		metrics.CommandsTotal.WithLabelValues(strings.TrimPrefix(res.Command, "/")).Inc()
		return c.JSON(http.StatusOK, resp)
	}
	metrics.SubmissionsTotal.WithLabelValues("post").Inc()
	return c.JSON(http.StatusCreated, resp)
}

// outcome names the error category for the submissions counter.
func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, domain.ErrPermission):
		return "permission"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrContentRejected):
		return "content_rejected"
	case errors.Is(err, domain.ErrNotEligible), errors.Is(err, domain.ErrNothingToDo):
		return "conflict"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence"
	default:
		return "error"
	}
}
