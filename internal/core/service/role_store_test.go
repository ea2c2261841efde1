package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"

	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/ports"
)

func newRoleStore(t *testing.T, repo *stubRepo) *RoleStore {
	t.Helper()
	s := NewRoleStore(repo, []domain.Identity{rootID}, zerolog.Nop())
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

// bucketsOf counts how many buckets hold id.
func bucketsOf(snap domain.RoleSnapshot, id domain.Identity) int {
	n := 0
	for _, ids := range snap.Roles {
		for _, member := range ids {
			if member == id {
				n++
			}
		}
	}
	return n
}

func TestRoleStore_RoleOf(t *testing.T) {
	s := newRoleStore(t, &stubRepo{})
	ctx := context.Background()

	if got := s.RoleOf(""); got != domain.RoleDefault {
		t.Fatalf("empty identity: expected default, got %s", got)
	}
	if got := s.RoleOf("abcdef0"); got != domain.RoleBlueID {
		t.Fatalf("unassigned identity: expected blue_id, got %s", got)
	}
	if got := s.RoleOf(rootID); got != domain.RoleOperator {
		t.Fatalf("allow-listed identity: expected operator, got %s", got)
	}
	if err := s.Grant(ctx, "abcdef0", domain.RoleManager); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if got := s.RoleOf("abcdef0"); got != domain.RoleManager {
		t.Fatalf("expected manager, got %s", got)
	}
}

func TestRoleStore_GrantMovesBetweenBuckets(t *testing.T) {
	repo := &stubRepo{}
	s := newRoleStore(t, repo)
	ctx := context.Background()
	id := domain.Identity("abcdef0")

	if err := s.Grant(ctx, id, domain.RoleModerator); err != nil {
		t.Fatalf("grant moderator: %v", err)
	}
	if err := s.Grant(ctx, id, domain.RoleSummit); err != nil {
		t.Fatalf("grant summit: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Roles[domain.RoleModerator]) != 0 {
		t.Fatalf("identity still listed as moderator: %v", snap.Roles)
	}
	if bucketsOf(snap, id) != 1 || snap.Roles[domain.RoleSummit][0] != id {
		t.Fatalf("expected identity only in summit, got %v", snap.Roles)
	}
	if bucketsOf(repo.roles, id) != 1 {
		t.Fatalf("persisted snapshot diverged: %v", repo.roles.Roles)
	}
}

func TestRoleStore_GrantRejections(t *testing.T) {
	s := newRoleStore(t, &stubRepo{})
	ctx := context.Background()

	if err := s.Grant(ctx, "abcdef0", domain.RoleOperator); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("granting operator: expected ErrValidation, got %v", err)
	}
	if err := s.Grant(ctx, "abcdef0", domain.RoleBlueID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("granting blue_id: expected ErrValidation, got %v", err)
	}
	if err := s.Grant(ctx, rootID, domain.RoleSpeaker); !errors.Is(err, domain.ErrNotEligible) {
		t.Fatalf("granting to operator: expected ErrNotEligible, got %v", err)
	}
	if err := s.Grant(ctx, "abcdef0", domain.RoleSpeaker); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := s.Grant(ctx, "abcdef0", domain.RoleSpeaker); !errors.Is(err, domain.ErrNothingToDo) {
		t.Fatalf("re-grant: expected ErrNothingToDo, got %v", err)
	}
}

func TestRoleStore_RevokeToDefault(t *testing.T) {
	repo := &stubRepo{}
	s := newRoleStore(t, repo)
	ctx := context.Background()

	if err := s.RevokeToDefault(ctx, "abcdef0"); !errors.Is(err, domain.ErrNothingToDo) {
		t.Fatalf("expected ErrNothingToDo, got %v", err)
	}
	if repo.roleSaves != 0 {
		t.Fatalf("no-op revoke must not write, got %d saves", repo.roleSaves)
	}
	if err := s.RevokeToDefault(ctx, rootID); !errors.Is(err, domain.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible for operator, got %v", err)
	}

	if err := s.Grant(ctx, "abcdef0", domain.RoleSummit); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := s.RevokeToDefault(ctx, "abcdef0"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if got := s.RoleOf("abcdef0"); got != domain.RoleBlueID {
		t.Fatalf("expected blue_id after revoke, got %s", got)
	}
}

func TestRoleStore_Demote(t *testing.T) {
	s := newRoleStore(t, &stubRepo{})
	ctx := context.Background()

	if err := s.Grant(ctx, "abcdef0", domain.RoleModerator); err != nil {
		t.Fatalf("grant: %v", err)
	}
	next, err := s.Demote(ctx, "abcdef0", domain.RoleModerator)
	if err != nil {
		t.Fatalf("demote: %v", err)
	}
	if next != domain.RoleManager || s.RoleOf("abcdef0") != domain.RoleManager {
		t.Fatalf("expected manager, got %s / %s", next, s.RoleOf("abcdef0"))
	}

	if _, err := s.Demote(ctx, "abcdef0", domain.RoleSummit); !errors.Is(err, domain.ErrNothingToDo) {
		t.Fatalf("demoting from a role not held: expected ErrNothingToDo, got %v", err)
	}

	if err := s.Grant(ctx, "abcdef1", domain.RoleSpeaker); err != nil {
		t.Fatalf("grant: %v", err)
	}
	next, err = s.Demote(ctx, "abcdef1", domain.RoleSpeaker)
	if err != nil {
		t.Fatalf("demote speaker: %v", err)
	}
	if next != domain.RoleBlueID || bucketsOf(s.Snapshot(), "abcdef1") != 0 {
		t.Fatalf("speaker must drop out of the store, got %s", next)
	}
}

func TestRoleStore_RollsBackOnPersistenceFailure(t *testing.T) {
	repo := &stubRepo{}
	s := newRoleStore(t, repo)
	ctx := context.Background()

	repo.failSaves(errors.New("disk full"))
	err := s.Grant(ctx, "abcdef0", domain.RoleManager)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if got := s.RoleOf("abcdef0"); got != domain.RoleBlueID {
		t.Fatalf("in-memory grant must be rolled back, got %s", got)
	}

	repo.failSaves(nil)
	if err := s.Grant(ctx, "abcdef0", domain.RoleManager); err != nil {
		t.Fatalf("grant after recovery: %v", err)
	}
}

func TestRoleStore_LoadCorruptStartsEmpty(t *testing.T) {
	repo := &stubRepo{loadRolesErr: fmt.Errorf("%w: bad json", ports.ErrCorruptSnapshot)}
	s := newRoleStore(t, repo)
	if n := len(s.Snapshot().Roles); n != 0 {
		t.Fatalf("expected empty store, got %d buckets", n)
	}
}

func TestRoleStore_LoadBackendErrorFails(t *testing.T) {
	repo := &stubRepo{loadRolesErr: errors.New("connection refused")}
	s := NewRoleStore(repo, nil, zerolog.Nop())
	if err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestRoleStore_LoadNormalizes(t *testing.T) {
	repo := &stubRepo{roles: domain.RoleSnapshot{
		Scheme: domain.IdentitySchemeVersion,
		Roles: map[domain.Role][]domain.Identity{
			domain.RoleSpeaker:   {"abcdef0", "abcdef1"},
			domain.RoleModerator: {"abcdef0"},
			domain.RoleSummit:    {rootID},
		},
	}}
	s := newRoleStore(t, repo)

	if got := s.RoleOf("abcdef0"); got != domain.RoleModerator {
		t.Fatalf("expected highest bucket to win, got %s", got)
	}
	snap := s.Snapshot()
	if bucketsOf(snap, "abcdef0") != 1 {
		t.Fatalf("identity listed more than once: %v", snap.Roles)
	}
	if bucketsOf(snap, rootID) != 0 {
		t.Fatalf("operator must not be stored: %v", snap.Roles)
	}
}

func TestRoleStore_SingleBucketInvariant(t *testing.T) {
	s := newRoleStore(t, &stubRepo{})
	ctx := context.Background()
	ids := []domain.Identity{"0000001", "0000002", "0000003", "0000004"}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		id := ids[rng.Intn(len(ids))]
		role := domain.MutableRoles[rng.Intn(len(domain.MutableRoles))]
		switch rng.Intn(3) {
		case 0:
			_ = s.Grant(ctx, id, role)
		case 1:
			_, _ = s.Demote(ctx, id, role)
		case 2:
			_ = s.RevokeToDefault(ctx, id)
		}
		snap := s.Snapshot()
		for _, id := range ids {
			if n := bucketsOf(snap, id); n > 1 {
				t.Fatalf("step %d: %s in %d buckets: %v", i, id, n, snap.Roles)
			}
		}
	}
}
