package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/ports"
)

// RoleStore is the authoritative identity → role mapping. Operators come from
// configuration and are never stored; every other role lives in exactly one
// bucket of the persisted snapshot.
type RoleStore struct {
	mu        sync.RWMutex
	repo      ports.RoleRepository
	operators map[domain.Identity]struct{}
	snap      domain.RoleSnapshot
	log       zerolog.Logger
}

// NewRoleStore returns an empty store. Call Load before serving requests.
func NewRoleStore(repo ports.RoleRepository, operators []domain.Identity, log zerolog.Logger) *RoleStore {
	ops := make(map[domain.Identity]struct{}, len(operators))
	for _, id := range operators {
		ops[id] = struct{}{}
	}
	return &RoleStore{
		repo:      repo,
		operators: ops,
		snap:      emptyRoleSnapshot(),
		log:       log,
	}
}

func emptyRoleSnapshot() domain.RoleSnapshot {
	return domain.RoleSnapshot{
		Scheme: domain.IdentitySchemeVersion,
		Roles:  make(map[domain.Role][]domain.Identity),
	}
}

// Load reads the persisted mapping. A corrupt snapshot is logged and replaced
// by an empty one; only backend failures are returned.
func (s *RoleStore) Load(ctx context.Context) error {
	snap, err := s.repo.LoadRoles(ctx)
	if err != nil {
		if !errors.Is(err, ports.ErrCorruptSnapshot) {
			return fmt.Errorf("load roles: %w", err)
		}
		s.log.Warn().Err(err).Msg("role store corrupt, reinitialising empty")
		snap = emptyRoleSnapshot()
	}
	if snap.Roles == nil {
		snap.Roles = make(map[domain.Role][]domain.Identity)
	}
	if snap.Scheme != 0 && snap.Scheme != domain.IdentitySchemeVersion {
		s.log.Warn().
			Int("stored_scheme", snap.Scheme).
			Int("current_scheme", domain.IdentitySchemeVersion).
			Msg("role store was written under another identity scheme; stored identities will not match")
	}
	snap.Scheme = domain.IdentitySchemeVersion

	s.mu.Lock()
	s.snap = s.normalize(snap)
	s.mu.Unlock()

	s.log.Info().Int("identities", s.count()).Msg("role store loaded")
	return nil
}

// normalize drops unknown roles and operators and keeps each identity in the
// highest bucket it was found in.
func (s *RoleStore) normalize(snap domain.RoleSnapshot) domain.RoleSnapshot {
	out := emptyRoleSnapshot()
	seen := make(map[domain.Identity]struct{})
	for i := len(domain.MutableRoles) - 1; i >= 0; i-- {
		r := domain.MutableRoles[i]
		for _, id := range snap.Roles[r] {
			if _, op := s.operators[id]; op {
				continue
			}
			if _, dup := seen[id]; dup {
				s.log.Warn().Str("identity", string(id)).Str("role", r.String()).Msg("identity held several roles, keeping the highest")
				continue
			}
			seen[id] = struct{}{}
			out.Roles[r] = append(out.Roles[r], id)
		}
	}
	return out
}

func (s *RoleStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, ids := range s.snap.Roles {
		n += len(ids)
	}
	return n
}

// RoleOf returns operator for allow-listed identities, the stored mutable role
// otherwise, blue_id for any other non-empty identity and default for "".
func (s *RoleStore) RoleOf(id domain.Identity) domain.Role {
	if id == "" {
		return domain.RoleDefault
	}
	if s.IsOperator(id) {
		return domain.RoleOperator
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := bucketOf(s.snap, id); ok {
		return r
	}
	return domain.RoleBlueID
}

// IsOperator reports whether id is on the immutable allow-list.
func (s *RoleStore) IsOperator(id domain.Identity) bool {
	_, ok := s.operators[id]
	return ok
}

// Operators returns the allow-list, sorted.
func (s *RoleStore) Operators() []domain.Identity {
	out := make([]domain.Identity, 0, len(s.operators))
	for id := range s.operators {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot returns a copy of the mutable mapping.
func (s *RoleStore) Snapshot() domain.RoleSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Grant moves id into role, removing it from any other bucket first.
func (s *RoleStore) Grant(ctx context.Context, id domain.Identity, role domain.Role) error {
	if !role.IsMutable() {
		return fmt.Errorf("%w: %s cannot be granted", domain.ErrValidation, role)
	}
	if s.IsOperator(id) {
		return fmt.Errorf("%w: %s is an operator", domain.ErrNotEligible, id)
	}
	return s.mutate(ctx, func(snap *domain.RoleSnapshot) error {
		if cur, ok := bucketOf(*snap, id); ok && cur == role {
			return fmt.Errorf("%w: %s is already %s", domain.ErrNothingToDo, id, role)
		}
		removeEverywhere(snap, id)
		snap.Roles[role] = append(snap.Roles[role], id)
		return nil
	})
}

// Demote drops id from role to the next mutable role below it, or out of the
// store entirely when role is the lowest. It returns the resulting role.
func (s *RoleStore) Demote(ctx context.Context, id domain.Identity, role domain.Role) (domain.Role, error) {
	if !role.IsMutable() {
		return domain.RoleDefault, fmt.Errorf("%w: %s cannot be revoked", domain.ErrValidation, role)
	}
	if s.IsOperator(id) {
		return domain.RoleOperator, fmt.Errorf("%w: %s is an operator", domain.ErrNotEligible, id)
	}
	next := role.Below()
	err := s.mutate(ctx, func(snap *domain.RoleSnapshot) error {
		if cur, ok := bucketOf(*snap, id); !ok || cur != role {
			return fmt.Errorf("%w: %s is not %s", domain.ErrNothingToDo, id, role)
		}
		removeEverywhere(snap, id)
		if next.IsMutable() {
			snap.Roles[next] = append(snap.Roles[next], id)
		}
		return nil
	})
	if err != nil {
		return domain.RoleDefault, err
	}
	return next, nil
}

// RevokeToDefault removes id from every mutable bucket.
func (s *RoleStore) RevokeToDefault(ctx context.Context, id domain.Identity) error {
	if s.IsOperator(id) {
		return fmt.Errorf("%w: operators cannot step down in-band", domain.ErrNotEligible)
	}
	return s.mutate(ctx, func(snap *domain.RoleSnapshot) error {
		if _, ok := bucketOf(*snap, id); !ok {
			return fmt.Errorf("%w: %s holds no role", domain.ErrNothingToDo, id)
		}
		removeEverywhere(snap, id)
		return nil
	})
}

// mutate applies fn to a copy, persists the copy and only then swaps it in,
// so a failed write leaves memory and storage identical.
func (s *RoleStore) mutate(ctx context.Context, fn func(*domain.RoleSnapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.repo.SaveRoles(ctx, next); err != nil {
		s.log.Error().Err(err).Msg("failed to persist roles, change rolled back")
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	s.snap = next
	return nil
}

func bucketOf(snap domain.RoleSnapshot, id domain.Identity) (domain.Role, bool) {
	for r, ids := range snap.Roles {
		for _, member := range ids {
			if member == id {
				return r, true
			}
		}
	}
	return domain.RoleDefault, false
}

func removeEverywhere(snap *domain.RoleSnapshot, id domain.Identity) {
	for r, ids := range snap.Roles {
		kept := ids[:0]
		for _, member := range ids {
			if member != id {
				kept = append(kept, member)
			}
		}
		if len(kept) == 0 {
			delete(snap.Roles, r)
			continue
		}
		snap.Roles[r] = kept
	}
}
