package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/ports"
)

// BoardService runs the submission pipeline: resolve identity, screen content,
// then either interpret a command or append a plain post, and hand the
// resulting events to the publisher.
type BoardService struct {
	// writeMu serializes submissions from screening through publication, so
	// events reach the publisher in commit order. Publish never blocks.
	writeMu sync.Mutex

	roles     *RoleStore
	board     *BoardState
	policy    Policy
	commands  *CommandRegistry
	publisher ports.EventPublisher
	guard     ports.DuplicateGuard
	log       zerolog.Logger
	now       func() time.Time
}

// NewBoardService wires the stores together. guard may be nil to disable the
// duplicate-post check.
func NewBoardService(
	roles *RoleStore,
	board *BoardState,
	policy Policy,
	publisher ports.EventPublisher,
	guard ports.DuplicateGuard,
	log zerolog.Logger,
) *BoardService {
	return &BoardService{
		roles:     roles,
		board:     board,
		policy:    policy,
		commands:  NewCommandRegistry(policy),
		publisher: publisher,
		guard:     guard,
		log:       log,
		now:       time.Now,
	}
}

// Submit validates and applies one inbound post. Every rejection happens
// before any state is touched, so a failed submission has no side effect.
func (s *BoardService) Submit(ctx context.Context, in ports.SubmitInput) (*ports.SubmitResult, error) {
	if missing := missingFields(in); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s required", domain.ErrValidation, strings.Join(missing, ", "))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !editsNGList(in.Message) {
		if _, hit := s.board.MatchNGWord(in.Message); hit {
			return nil, fmt.Errorf("%w: message contains a banned word", domain.ErrContentRejected)
		}
	}

	identity := domain.ResolveIdentity(in.Name, in.Seed)
	role := s.roles.RoleOf(identity)
	now := s.now()

	if strings.HasPrefix(in.Message, "/") {
		return s.runCommand(ctx, identity, role, in, now)
	}
	return s.appendPost(ctx, identity, role, in, now)
}

func (s *BoardService) runCommand(ctx context.Context, identity domain.Identity, role domain.Role, in ports.SubmitInput, now time.Time) (*ports.SubmitResult, error) {
	inv := &invocation{
		ctx:   ctx,
		actor: identity,
		role:  role,
		now:   now,
	}
	name, reply, events, err := s.commands.Dispatch(s, inv, in.Message)
	if err != nil {
		s.log.Info().
			Err(err).
			Str("identity", string(identity)).
			Str("role", role.String()).
			Str("command", name).
			Msg("command rejected")
		return nil, err
	}

	s.publish(events)
	s.log.Info().
		Str("identity", string(identity)).
		Str("role", role.String()).
		Str("command", name).
		Int("events", len(events)).
		Msg("command applied")

	return &ports.SubmitResult{
		Identity: identity,
		Role:     role,
		Command:  name,
		Reply:    reply,
		Events:   events,
	}, nil
}

func (s *BoardService) appendPost(ctx context.Context, identity domain.Identity, role domain.Role, in ports.SubmitInput, now time.Time) (*ports.SubmitResult, error) {
	if err := s.policy.CheckPlainPost(role, s.board.Restrictions(), now); err != nil {
		return nil, err
	}
	if s.guard != nil {
		dup, err := s.guard.Seen(ctx, identity, in.Message)
		if err != nil {
			s.log.Warn().Err(err).Str("identity", string(identity)).Msg("duplicate check failed, accepting post")
		} else if dup {
			return nil, fmt.Errorf("%w: duplicate post", domain.ErrContentRejected)
		}
	}

	post, evicted, err := s.board.Append(ctx, identity, in.Name, in.Message, now)
	if err != nil {
		s.forgetDuplicate(ctx, identity, in.Message)
		return nil, err
	}

	view := s.decorate(post, s.board.Decoration(post.Author))
	events := []domain.Event{
		domain.NewEvent(domain.EventUpdatePosts, domain.UpdatePostsData{
			Posts: []domain.PostView{view},
			Topic: s.board.Topic(),
		}),
	}
	if len(evicted) > 0 {
		events = append(events, domain.NewEvent(domain.EventPostDeleted, domain.PostDeletedData{IDs: evicted}))
	}
	s.publish(events)

	s.log.Debug().
		Int("post_id", post.ID).
		Str("identity", string(identity)).
		Msg("post appended")

	return &ports.SubmitResult{
		Identity: identity,
		Role:     role,
		Post:     &view,
		Events:   events,
	}, nil
}

// forgetDuplicate releases the guard mark of a post that was not stored, so
// a retry is not mistaken for a repeat.
func (s *BoardService) forgetDuplicate(ctx context.Context, identity domain.Identity, body string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Forget(ctx, identity, body); err != nil {
		s.log.Warn().Err(err).Str("identity", string(identity)).Msg("failed to release duplicate mark")
	}
}

func (s *BoardService) publish(events []domain.Event) {
	if len(events) == 0 || s.publisher == nil {
		return
	}
	s.publisher.Publish(events...)
}

// RoleOf resolves the effective role of identity.
func (s *BoardService) RoleOf(identity domain.Identity) domain.Role {
	return s.roles.RoleOf(identity)
}

// View renders the board newest post first.
func (s *BoardService) View() ports.BoardView {
	snap := s.board.Snapshot()
	posts := make([]domain.PostView, 0, len(snap.Posts))
	for i := len(snap.Posts) - 1; i >= 0; i-- {
		p := snap.Posts[i]
		posts = append(posts, s.decorate(p, snap.Decorations[p.Author]))
	}
	return ports.BoardView{
		Topic:    snap.Topic,
		MaxPosts: snap.MaxPosts,
		Posts:    posts,
	}
}

// SnapshotEvent renders the whole board as one update_posts event, sent to a
// viewer when it connects.
func (s *BoardService) SnapshotEvent() domain.Event {
	v := s.View()
	return domain.NewEvent(domain.EventUpdatePosts, domain.UpdatePostsData{
		Posts: v.Posts,
		Topic: v.Topic,
	})
}

// Moderation exposes NG words, restriction flags and role membership.
func (s *BoardService) Moderation() ports.ModerationView {
	snap := s.board.Snapshot()
	return ports.ModerationView{
		NGWords:      snap.NGWords,
		Restrictions: snap.Restrictions,
		Roles:        s.roles.Snapshot().Roles,
		Operators:    s.roles.Operators(),
		Now:          s.now().UTC(),
	}
}

// decorate merges the author's role style with their personal decoration;
// the personal decoration wins field by field.
func (s *BoardService) decorate(p domain.Post, d domain.Decoration) domain.PostView {
	role := s.roles.RoleOf(p.Author)
	style := s.policy.Style(role)

	v := domain.PostView{
		ID:          p.ID,
		Author:      p.Author,
		Name:        p.Name,
		DisplayName: p.DisplayName(),
		Body:        p.Body,
		CreatedAt:   p.CreatedAt,
		Role:        role.String(),
		NameColor:   style.Color,
		Suffix:      style.Suffix,
		SuffixColor: style.Color,
	}
	if d.NameColor != "" {
		v.NameColor = d.NameColor
	}
	if d.Suffix != "" {
		v.Suffix = d.Suffix
		v.SuffixColor = d.SuffixColor
	}
	return v
}

// editsNGList reports whether message is /NG or /OK, whose argument is an NG
// word by definition.
func editsNGList(message string) bool {
	if !strings.HasPrefix(message, "/") {
		return false
	}
	name, _ := ParseCommand(message)
	return name == "ng" || name == "ok"
}

func missingFields(in ports.SubmitInput) []string {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Message) == "" {
		missing = append(missing, "message")
	}
	if strings.TrimSpace(in.Seed) == "" {
		missing = append(missing, "seed")
	}
	return missing
}
