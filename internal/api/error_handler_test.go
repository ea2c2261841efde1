package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/seedboard/internal/api/handler"
	"github.com/99minutos/seedboard/internal/core/domain"
)

func TestHTTPErrorHandler_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"validation", fmt.Errorf("%w: seed required", domain.ErrValidation), http.StatusBadRequest, ""},
		{"unknown command", fmt.Errorf("%w: /nope", domain.ErrUnknownCommand), http.StatusBadRequest, ""},
		{"permission", domain.ErrPermission, http.StatusForbidden, ""},
		{"not found", domain.ErrNotFound, http.StatusNotFound, ""},
		{"content rejected", domain.ErrContentRejected, http.StatusUnprocessableEntity, ""},
		{"not eligible", domain.ErrNotEligible, http.StatusConflict, ""},
		{"nothing to do", domain.ErrNothingToDo, http.StatusConflict, ""},
		{"persistence", fmt.Errorf("%w: disk full", domain.ErrPersistence), http.StatusInternalServerError, domain.ErrPersistence.Error()},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), http.StatusMethodNotAllowed, "nope"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	e := echo.New()
	h := NewHTTPErrorHandler(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/post", nil), rec)
			h(tt.err, c)

			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			want := tt.msg
			if want == "" {
				want = tt.err.Error()
			}
			if resp.Error != want {
				t.Fatalf("expected message %q, got %q", want, resp.Error)
			}
			if resp.Submitted != nil {
				t.Fatalf("unexpected submitted fields")
			}
		})
	}
}

func TestHTTPErrorHandler_EchoesSubmittedFields(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/post", nil), rec)

	err := &handler.SubmissionError{
		Err:    domain.ErrPermission,
		Fields: handler.SubmittedFields{Name: "alice", Message: "/clear"},
	}
	NewHTTPErrorHandler(zerolog.Nop())(err, c)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Submitted == nil || resp.Submitted.Name != "alice" || resp.Submitted.Message != "/clear" {
		t.Fatalf("submitted fields not echoed: %+v", resp.Submitted)
	}
}
