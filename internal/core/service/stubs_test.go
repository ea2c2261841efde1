package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub repository
// ---------------------------------------------------------------------------

type stubRepo struct {
	mu           sync.Mutex
	roles        domain.RoleSnapshot
	board        domain.BoardSnapshot
	loadRolesErr error
	loadBoardErr error
	saveErr      error // if set, every Save returns this error
	roleSaves    int
	boardSaves   int
}

func (r *stubRepo) LoadRoles(_ context.Context) (domain.RoleSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roles.Clone(), r.loadRolesErr
}

func (r *stubRepo) SaveRoles(_ context.Context, snap domain.RoleSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.roles = snap.Clone()
	r.roleSaves++
	return nil
}

func (r *stubRepo) LoadBoard(_ context.Context) (domain.BoardSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board.Clone(), r.loadBoardErr
}

func (r *stubRepo) SaveBoard(_ context.Context, snap domain.BoardSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.board = snap.Clone()
	r.boardSaves++
	return nil
}

func (r *stubRepo) failSaves(err error) {
	r.mu.Lock()
	r.saveErr = err
	r.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Recording publisher and duplicate guard
// ---------------------------------------------------------------------------

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(events ...domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

type stubGuard struct {
	seen map[string]bool
}

func (g *stubGuard) Seen(_ context.Context, id domain.Identity, body string) (bool, error) {
	key := string(id) + "|" + body
	if g.seen[key] {
		return true, nil
	}
	g.seen[key] = true
	return false, nil
}

func (g *stubGuard) Forget(_ context.Context, id domain.Identity, body string) error {
	delete(g.seen, string(id)+"|"+body)
	return nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

var (
	rootName = "root"
	rootSeed = "root-seed"
	rootID   = domain.ResolveIdentity(rootName, rootSeed)
)

type fixture struct {
	svc   *BoardService
	roles *RoleStore
	board *BoardState
	repo  *stubRepo
	pub   *recordingPublisher
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := &stubRepo{}
	roles := NewRoleStore(repo, []domain.Identity{rootID}, zerolog.Nop())
	if err := roles.Load(context.Background()); err != nil {
		t.Fatalf("load roles: %v", err)
	}
	board := NewBoardState(repo, "Welcome", 100, zerolog.Nop())
	if err := board.Load(context.Background()); err != nil {
		t.Fatalf("load board: %v", err)
	}
	pub := &recordingPublisher{}
	f := &fixture{
		roles: roles,
		board: board,
		repo:  repo,
		pub:   pub,
		now:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewBoardService(roles, board, DefaultPolicy(), pub, nil, zerolog.Nop())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) submit(name, seed, message string) (*ports.SubmitResult, error) {
	return f.svc.Submit(context.Background(), ports.SubmitInput{Name: name, Seed: seed, Message: message})
}

// mustSubmit fails the test on error.
func (f *fixture) mustSubmit(t *testing.T, name, seed, message string) *ports.SubmitResult {
	t.Helper()
	res, err := f.submit(name, seed, message)
	if err != nil {
		t.Fatalf("submit %q as %s: %v", message, name, err)
	}
	return res
}

// asRole grants role to the identity of name/seed directly through the store.
func (f *fixture) asRole(t *testing.T, name, seed string, role domain.Role) domain.Identity {
	t.Helper()
	id := domain.ResolveIdentity(name, seed)
	if err := f.roles.Grant(context.Background(), id, role); err != nil {
		t.Fatalf("grant %s to %s: %v", role, id, err)
	}
	return id
}
