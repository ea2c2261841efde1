package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/ports"
)

// BoardState owns posts, topic, decorations, NG words and restriction flags.
// Every mutation runs on a copy that is persisted before it becomes visible.
type BoardState struct {
	mu   sync.RWMutex
	repo ports.BoardRepository
	snap domain.BoardSnapshot
	log  zerolog.Logger

	initialTopic string
	maxPosts     int
}

// NewBoardState returns a board with the given first-boot defaults. Call Load
// before serving requests.
func NewBoardState(repo ports.BoardRepository, initialTopic string, maxPosts int, log zerolog.Logger) *BoardState {
	if maxPosts <= 0 {
		maxPosts = domain.DefaultMaxPosts
	}
	b := &BoardState{
		repo:         repo,
		log:          log,
		initialTopic: initialTopic,
		maxPosts:     maxPosts,
	}
	b.snap = b.fresh()
	return b
}

func (b *BoardState) fresh() domain.BoardSnapshot {
	return domain.BoardSnapshot{
		Topic:       b.initialTopic,
		MaxPosts:    b.maxPosts,
		Decorations: make(map[domain.Identity]domain.Decoration),
	}
}

// Load reads the persisted board. A corrupt snapshot is logged and replaced by
// first-boot defaults.
func (b *BoardState) Load(ctx context.Context) error {
	snap, err := b.repo.LoadBoard(ctx)
	if err != nil {
		if !errors.Is(err, ports.ErrCorruptSnapshot) {
			return fmt.Errorf("load board: %w", err)
		}
		b.log.Warn().Err(err).Msg("board store corrupt, reinitialising")
		snap = b.fresh()
	}
	if snap.Topic == "" {
		snap.Topic = b.initialTopic
	}
	if snap.MaxPosts <= 0 {
		snap.MaxPosts = b.maxPosts
	}
	if snap.Decorations == nil {
		snap.Decorations = make(map[domain.Identity]domain.Decoration)
	}
	for _, p := range snap.Posts {
		if p.ID > snap.LastID {
			snap.LastID = p.ID
		}
	}

	b.mu.Lock()
	b.snap = snap
	b.mu.Unlock()

	b.log.Info().Int("posts", len(snap.Posts)).Int("last_id", snap.LastID).Msg("board loaded")
	return nil
}

// Snapshot returns a deep copy of the current board.
func (b *BoardState) Snapshot() domain.BoardSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.Clone()
}

// MatchNGWord reports the first NG word contained in text.
func (b *BoardState) MatchNGWord(text string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.MatchNGWord(text)
}

// Restrictions returns the current posting restriction flags.
func (b *BoardState) Restrictions() domain.Restrictions {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.Restrictions
}

// Topic returns the current topic.
func (b *BoardState) Topic() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.Topic
}

// Decoration returns the decoration set for id, if any.
func (b *BoardState) Decoration(id domain.Identity) domain.Decoration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.Decorations[id]
}

// Append adds a post with the next id and evicts the oldest posts beyond the
// retained maximum. It returns the stored post and the evicted ids.
func (b *BoardState) Append(ctx context.Context, author domain.Identity, name, body string, now time.Time) (domain.Post, []int, error) {
	var (
		post    domain.Post
		evicted []int
	)
	err := b.mutate(ctx, func(s *domain.BoardSnapshot) error {
		s.LastID++
		post = domain.Post{
			ID:        s.LastID,
			Author:    author,
			Name:      name,
			Body:      body,
			CreatedAt: now.UTC(),
		}
		s.Posts = append(s.Posts, post)
		evicted = evictOldest(s)
		return nil
	})
	return post, evicted, err
}

// Delete removes the posts with the given ids. Ids that do not exist are
// returned in missing; they do not fail the call.
func (b *BoardState) Delete(ctx context.Context, ids []int) (deleted, missing []int, err error) {
	err = b.mutate(ctx, func(s *domain.BoardSnapshot) error {
		want := make(map[int]bool, len(ids))
		for _, id := range ids {
			want[id] = false
		}
		kept := s.Posts[:0]
		for _, p := range s.Posts {
			if _, ok := want[p.ID]; ok {
				want[p.ID] = true
				continue
			}
			kept = append(kept, p)
		}
		s.Posts = kept
		for _, id := range ids {
			found, pending := want[id]
			if !pending {
				continue
			}
			if found {
				deleted = append(deleted, id)
			} else {
				missing = append(missing, id)
			}
			delete(want, id)
		}
		if len(deleted) == 0 {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		err = nil
	}
	return deleted, missing, err
}

// DeleteMatching removes every post whose body contains substr.
func (b *BoardState) DeleteMatching(ctx context.Context, substr string) ([]int, error) {
	var deleted []int
	err := b.mutate(ctx, func(s *domain.BoardSnapshot) error {
		kept := s.Posts[:0]
		for _, p := range s.Posts {
			if strings.Contains(p.Body, substr) {
				deleted = append(deleted, p.ID)
				continue
			}
			kept = append(kept, p)
		}
		s.Posts = kept
		if len(deleted) == 0 {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		err = nil
	}
	return deleted, err
}

// Clear removes every post and resets the id sequence so the next post is 1.
func (b *BoardState) Clear(ctx context.Context) (int, error) {
	var n int
	err := b.mutate(ctx, func(s *domain.BoardSnapshot) error {
		n = len(s.Posts)
		s.Posts = nil
		s.LastID = 0
		return nil
	})
	return n, err
}

// SetTopic replaces the topic.
func (b *BoardState) SetTopic(ctx context.Context, topic string) error {
	return b.mutate(ctx, func(s *domain.BoardSnapshot) error {
		s.Topic = topic
		return nil
	})
}

// SetMax changes the retained post count and evicts the oldest posts over it.
func (b *BoardState) SetMax(ctx context.Context, n int) ([]int, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: maximum must be at least 1", domain.ErrValidation)
	}
	var evicted []int
	err := b.mutate(ctx, func(s *domain.BoardSnapshot) error {
		s.MaxPosts = n
		evicted = evictOldest(s)
		return nil
	})
	return evicted, err
}

// UpdateDecoration applies fn to the decoration of id and returns the result.
func (b *BoardState) UpdateDecoration(ctx context.Context, id domain.Identity, fn func(*domain.Decoration)) (domain.Decoration, error) {
	var out domain.Decoration
	err := b.mutate(ctx, func(s *domain.BoardSnapshot) error {
		d := s.Decorations[id]
		fn(&d)
		if d.IsZero() {
			delete(s.Decorations, id)
		} else {
			s.Decorations[id] = d
		}
		out = d
		return nil
	})
	return out, err
}

// AddNGWord adds word to the NG list and returns the new list size.
func (b *BoardState) AddNGWord(ctx context.Context, word string) (int, error) {
	var n int
	err := b.mutate(ctx, func(s *domain.BoardSnapshot) error {
		for _, w := range s.NGWords {
			if w == word {
				return fmt.Errorf("%w: already an NG word", domain.ErrNothingToDo)
			}
		}
		s.NGWords = append(s.NGWords, word)
		n = len(s.NGWords)
		return nil
	})
	return n, err
}

// RemoveNGWord removes word from the NG list and returns the new list size.
func (b *BoardState) RemoveNGWord(ctx context.Context, word string) (int, error) {
	var n int
	err := b.mutate(ctx, func(s *domain.BoardSnapshot) error {
		kept := s.NGWords[:0]
		for _, w := range s.NGWords {
			if w != word {
				kept = append(kept, w)
			}
		}
		if len(kept) == len(s.NGWords) {
			return fmt.Errorf("%w: not an NG word", domain.ErrNothingToDo)
		}
		s.NGWords = kept
		n = len(kept)
		return nil
	})
	return n, err
}

// UpdateRestrictions applies fn to the restriction flags and returns the result.
func (b *BoardState) UpdateRestrictions(ctx context.Context, fn func(*domain.Restrictions)) (domain.Restrictions, error) {
	var out domain.Restrictions
	err := b.mutate(ctx, func(s *domain.BoardSnapshot) error {
		fn(&s.Restrictions)
		out = s.Restrictions
		return nil
	})
	return out, err
}

// errNoChange aborts a mutation that turned out to be a no-op, skipping the write.
var errNoChange = errors.New("no change")

func (b *BoardState) mutate(ctx context.Context, fn func(*domain.BoardSnapshot) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.snap.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := b.repo.SaveBoard(ctx, next); err != nil {
		b.log.Error().Err(err).Msg("failed to persist board, change rolled back")
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	b.snap = next
	return nil
}

// evictOldest trims s.Posts from the front down to s.MaxPosts.
func evictOldest(s *domain.BoardSnapshot) []int {
	over := len(s.Posts) - s.MaxPosts
	if s.MaxPosts <= 0 || over <= 0 {
		return nil
	}
	evicted := make([]int, 0, over)
	for _, p := range s.Posts[:over] {
		evicted = append(evicted, p.ID)
	}
	s.Posts = append([]domain.Post(nil), s.Posts[over:]...)
	return evicted
}
