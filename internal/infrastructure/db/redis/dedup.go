package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/seedboard/internal/core/domain"
)

const defaultDedupWindow = 10 * time.Second

// DuplicateGuard rejects repeated posts backed by Redis.
// Key format: <prefix>:dup:<identity>:<sha256(body)>
type DuplicateGuard struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// NewDuplicateGuard creates a DuplicateGuard wrapping the given Redis client.
func NewDuplicateGuard(client *redis.Client, prefix string, window time.Duration) *DuplicateGuard {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &DuplicateGuard{client: client, prefix: prefix, window: window}
}

// Seen marks the post and reports whether the same identity already sent the
// same body within the window. SET NX makes check-and-mark a single step.
func (d *DuplicateGuard) Seen(ctx context.Context, identity domain.Identity, body string) (bool, error) {
	created, err := d.client.SetNX(ctx, d.key(identity, body), "1", d.window).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return !created, nil
}

// Forget deletes the mark left by Seen.
func (d *DuplicateGuard) Forget(ctx context.Context, identity domain.Identity, body string) error {
	if err := d.client.Del(ctx, d.key(identity, body)).Err(); err != nil {
		return fmt.Errorf("dedup release: %w", err)
	}
	return nil
}

func (d *DuplicateGuard) key(identity domain.Identity, body string) string {
	sum := sha256.Sum256([]byte(body))
	return fmt.Sprintf("%s:dup:%s:%s", d.prefix, identity, hex.EncodeToString(sum[:8]))
}
