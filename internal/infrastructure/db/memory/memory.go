// Package memory provides the ephemeral storage variant: snapshots live only
// in process memory and are lost on restart.
package memory

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	"github.com/99minutos/seedboard/internal/core/domain"
)

// SnapshotRepository implements ports.RoleRepository and ports.BoardRepository.
type SnapshotRepository struct {
	mu    sync.Mutex
	roles domain.RoleSnapshot
	board domain.BoardSnapshot
}

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{}
}

func (r *SnapshotRepository) LoadRoles(_ context.Context) (domain.RoleSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roles.Clone(), nil
}

func (r *SnapshotRepository) SaveRoles(_ context.Context, snap domain.RoleSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles = snap.Clone()
	return nil
}

func (r *SnapshotRepository) LoadBoard(_ context.Context) (domain.BoardSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board.Clone(), nil
}

func (r *SnapshotRepository) SaveBoard(_ context.Context, snap domain.BoardSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.board = snap.Clone()
	return nil
}

// DuplicateGuard remembers (identity, body) pairs for a fixed window.
type DuplicateGuard struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[[sha256.Size]byte]time.Time
	now    func() time.Time
}

func NewDuplicateGuard(window time.Duration) *DuplicateGuard {
	return &DuplicateGuard{
		window: window,
		seen:   make(map[[sha256.Size]byte]time.Time),
		now:    time.Now,
	}
}

func guardKey(identity domain.Identity, body string) [sha256.Size]byte {
	return sha256.Sum256([]byte(string(identity) + "\x00" + body))
}

func (g *DuplicateGuard) Seen(_ context.Context, identity domain.Identity, body string) (bool, error) {
	key := guardKey(identity, body)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for k, exp := range g.seen {
		if !now.Before(exp) {
			delete(g.seen, k)
		}
	}
	if _, ok := g.seen[key]; ok {
		return true, nil
	}
	g.seen[key] = now.Add(g.window)
	return false, nil
}

func (g *DuplicateGuard) Forget(_ context.Context, identity domain.Identity, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, guardKey(identity, body))
	return nil
}
