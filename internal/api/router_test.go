package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/99minutos/seedboard/internal/api/middleware"
	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/service"
	"github.com/99minutos/seedboard/internal/infrastructure/db/memory"
)

const (
	operatorName = "root"
	operatorSeed = "root-seed"
)

func newTestRouter(t *testing.T) *echo.Echo {
	t.Helper()
	log := zerolog.Nop()
	repo := memory.NewSnapshotRepository()
	op := domain.ResolveIdentity(operatorName, operatorSeed)

	roles := service.NewRoleStore(repo, []domain.Identity{op}, log)
	board := service.NewBoardState(repo, "Welcome", 10, log)
	if err := roles.Load(context.Background()); err != nil {
		t.Fatalf("load roles: %v", err)
	}
	if err := board.Load(context.Background()); err != nil {
		t.Fatalf("load board: %v", err)
	}
	svc := service.NewBoardService(roles, board, service.DefaultPolicy(), nil, nil, log)

	reg := prometheus.NewRegistry()
	return NewRouter(Deps{
		Service:    svc,
		Sessions:   middleware.NewSessions("test-secret", time.Hour, false),
		Log:        log,
		Registerer: reg,
		Gatherer:   reg,
	})
}

func do(e *echo.Echo, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.CookieName {
			return ck
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestRouter_PostThenRead(t *testing.T) {
	e := newTestRouter(t)

	rec := do(e, http.MethodPost, "/post", `{"name":"alice","message":"hello","seed":"a"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	ck := sessionCookie(t, rec)

	rec = do(e, http.MethodGet, "/api/board", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"body":"hello"`) {
		t.Fatalf("board missing post: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/api/session", "", ck)
	if !strings.Contains(rec.Body.String(), `"name":"alice"`) || !strings.Contains(rec.Body.String(), `"role":"blue_id"`) {
		t.Fatalf("unexpected session: %s", rec.Body.String())
	}
}

func TestRouter_RejectionEchoesFields(t *testing.T) {
	e := newTestRouter(t)

	rec := do(e, http.MethodPost, "/post", `{"name":"alice","message":"/clear","seed":"a"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"submitted":{"name":"alice","message":"/clear"}`) {
		t.Fatalf("fields not echoed: %s", rec.Body.String())
	}
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.CookieName {
			t.Fatalf("rejected submission must not issue a session")
		}
	}
}

func TestRouter_ModerationRequiresRole(t *testing.T) {
	e := newTestRouter(t)

	if rec := do(e, http.MethodGet, "/api/moderation", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", rec.Code)
	}

	rec := do(e, http.MethodPost, "/post", `{"name":"bob","message":"hi","seed":"b"}`)
	if rec := do(e, http.MethodGet, "/api/moderation", "", sessionCookie(t, rec)); rec.Code != http.StatusForbidden {
		t.Fatalf("blue_id: expected 403, got %d", rec.Code)
	}

	rec = do(e, http.MethodPost, "/post", `{"name":"`+operatorName+`","message":"/topic moderated","seed":"`+operatorSeed+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("operator command: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(e, http.MethodGet, "/api/moderation", "", sessionCookie(t, rec))
	if rec.Code != http.StatusOK {
		t.Fatalf("operator: expected 200, got %d", rec.Code)
	}
}

func TestRouter_OpsEndpoints(t *testing.T) {
	e := newTestRouter(t)

	for _, path := range []string{"/health", "/health/ready", "/metrics"} {
		if rec := do(e, http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
	if rec := do(e, http.MethodGet, "/ws", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("/ws without a hub: expected 404, got %d", rec.Code)
	}
}
