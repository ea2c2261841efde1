package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/ports"
)

const (
	rolesDocID = "roles"
	boardDocID = "board"
)

// MaxRetainedPosts caps the board size on this backend. The whole board is a
// single document, and MongoDB rejects documents over 16MB; 1500 posts of
// 2000 four-byte runes stay below that with room for decorations.
const MaxRetainedPosts = 1500

// SnapshotRepository stores the role mapping and the board as two documents
// of the board_state collection. Each save is a single-document replace, which
// MongoDB applies atomically.
type SnapshotRepository struct {
	coll *mongo.Collection
}

func NewSnapshotRepository(db *mongo.Database) *SnapshotRepository {
	return &SnapshotRepository{coll: db.Collection(collectionState)}
}

type mongoRoles struct {
	ID     string              `bson:"_id"`
	Scheme int                 `bson:"scheme"`
	Roles  map[string][]string `bson:"roles"`
}

type mongoBoard struct {
	ID                   string `bson:"_id"`
	domain.BoardSnapshot `bson:",inline"`
}

func (r *SnapshotRepository) LoadRoles(ctx context.Context) (domain.RoleSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoRoles
	if err := r.find(ctx, rolesDocID, &doc); err != nil {
		return domain.RoleSnapshot{}, err
	}

	snap := domain.RoleSnapshot{Scheme: doc.Scheme, Roles: make(map[domain.Role][]domain.Identity, len(doc.Roles))}
	for name, ids := range doc.Roles {
		role, ok := domain.ParseRole(name)
		if !ok {
			return domain.RoleSnapshot{}, fmt.Errorf("%w: unknown role %q", ports.ErrCorruptSnapshot, name)
		}
		for _, id := range ids {
			snap.Roles[role] = append(snap.Roles[role], domain.Identity(id))
		}
	}
	return snap, nil
}

func (r *SnapshotRepository) SaveRoles(ctx context.Context, snap domain.RoleSnapshot) error {
	doc := mongoRoles{ID: rolesDocID, Scheme: snap.Scheme, Roles: make(map[string][]string, len(snap.Roles))}
	for role, ids := range snap.Roles {
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = string(id)
		}
		doc.Roles[role.String()] = out
	}
	return r.replace(ctx, rolesDocID, doc)
}

func (r *SnapshotRepository) LoadBoard(ctx context.Context) (domain.BoardSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoBoard
	if err := r.find(ctx, boardDocID, &doc); err != nil {
		return domain.BoardSnapshot{}, err
	}
	return doc.BoardSnapshot, nil
}

func (r *SnapshotRepository) SaveBoard(ctx context.Context, snap domain.BoardSnapshot) error {
	return r.replace(ctx, boardDocID, mongoBoard{ID: boardDocID, BoardSnapshot: snap})
}

// find decodes the document with id into v. A missing document leaves v zero.
func (r *SnapshotRepository) find(ctx context.Context, id string, v any) error {
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil
	case isDecodeError(err):
		return fmt.Errorf("%w: %s: %v", ports.ErrCorruptSnapshot, id, err)
	default:
		return fmt.Errorf("find %s: %w", id, err)
	}
}

func (r *SnapshotRepository) replace(ctx context.Context, id string, doc any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace %s: %w", id, err)
	}
	return nil
}

// isDecodeError separates malformed stored documents from transport failures.
func isDecodeError(err error) bool {
	var cmdErr mongo.CommandError
	var srvErr mongo.ServerError
	if errors.As(err, &cmdErr) || errors.As(err, &srvErr) {
		return false
	}
	return !mongo.IsNetworkError(err) && !mongo.IsTimeout(err)
}
