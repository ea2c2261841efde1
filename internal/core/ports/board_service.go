package ports

import (
	"context"
	"time"

	"github.com/99minutos/seedboard/internal/core/domain"
)

// SubmitInput is the DTO passed from the transport layer to BoardService.
type SubmitInput struct {
	Name    string
	Message string
	Seed    string
}

// SubmitResult reports what a submission did. Post is set for plain posts;
// Command and Reply are set for commands.
type SubmitResult struct {
	Identity domain.Identity
	Role     domain.Role
	Post     *domain.PostView
	Command  string
	Reply    string
	Events   []domain.Event
}

// BoardView is the decorated board as rendered to a requester.
type BoardView struct {
	Topic    string            `json:"topic"`
	MaxPosts int               `json:"max_posts"`
	Posts    []domain.PostView `json:"posts"`
}

// ModerationView exposes the private moderation state.
type ModerationView struct {
	NGWords      []string                          `json:"ng_words"`
	Restrictions domain.Restrictions               `json:"restrictions"`
	Roles        map[domain.Role][]domain.Identity `json:"roles"`
	Operators    []domain.Identity                 `json:"operators"`
	Now          time.Time                         `json:"now"`
}

// EventPublisher hands events to the Broadcast Gateway. It must not block on
// viewer I/O.
type EventPublisher interface {
	Publish(events ...domain.Event)
}

// RoleLookup resolves the effective role of an identity.
type RoleLookup interface {
	RoleOf(identity domain.Identity) domain.Role
}

// BoardService is the use-case surface of the board.
type BoardService interface {
	Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error)
	View() BoardView
	Moderation() ModerationView
	RoleOf(identity domain.Identity) domain.Role
}
