package ports

import (
	"context"

	"github.com/99minutos/seedboard/internal/core/domain"
)

// RoleRepository persists the whole mutable role mapping. Save replaces the
// stored mapping atomically; a reader never observes a partial write.
type RoleRepository interface {
	LoadRoles(ctx context.Context) (domain.RoleSnapshot, error)
	SaveRoles(ctx context.Context, snap domain.RoleSnapshot) error
}

// BoardRepository persists the whole board snapshot with the same
// load-whole / rewrite-whole discipline as RoleRepository.
type BoardRepository interface {
	LoadBoard(ctx context.Context) (domain.BoardSnapshot, error)
	SaveBoard(ctx context.Context, snap domain.BoardSnapshot) error
}

// EventRepository appends broadcast events to an audit trail.
type EventRepository interface {
	InsertEvent(ctx context.Context, event domain.Event) error
}

// DuplicateGuard rejects a repeated body from the same identity inside a
// short window. Seen records the submission and reports whether it was
// already present. Forget drops a record whose submission was not committed.
type DuplicateGuard interface {
	Seen(ctx context.Context, identity domain.Identity, body string) (bool, error)
	Forget(ctx context.Context, identity domain.Identity, body string) error
}
