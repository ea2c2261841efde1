package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/ports"
)

// SnapshotRepository stores each snapshot as one JSON string key. SET replaces
// the whole value in a single command, so readers never see a partial write.
type SnapshotRepository struct {
	client *redis.Client
	prefix string
}

func NewSnapshotRepository(client *redis.Client, prefix string) *SnapshotRepository {
	return &SnapshotRepository{client: client, prefix: prefix}
}

func (r *SnapshotRepository) rolesKey() string { return r.prefix + ":roles" }
func (r *SnapshotRepository) boardKey() string { return r.prefix + ":board" }

func (r *SnapshotRepository) LoadRoles(ctx context.Context) (domain.RoleSnapshot, error) {
	var snap domain.RoleSnapshot
	err := r.get(ctx, r.rolesKey(), &snap)
	return snap, err
}

func (r *SnapshotRepository) SaveRoles(ctx context.Context, snap domain.RoleSnapshot) error {
	return r.set(ctx, r.rolesKey(), snap)
}

func (r *SnapshotRepository) LoadBoard(ctx context.Context) (domain.BoardSnapshot, error) {
	var snap domain.BoardSnapshot
	err := r.get(ctx, r.boardKey(), &snap)
	return snap, err
}

func (r *SnapshotRepository) SaveBoard(ctx context.Context, snap domain.BoardSnapshot) error {
	return r.set(ctx, r.boardKey(), snap)
}

func (r *SnapshotRepository) get(ctx context.Context, key string, v any) error {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ports.ErrCorruptSnapshot, key, err)
	}
	return nil
}

func (r *SnapshotRepository) set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, b, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
