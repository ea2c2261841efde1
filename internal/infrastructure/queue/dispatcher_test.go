package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/99minutos/seedboard/internal/core/domain"
)

type recordingSink struct {
	name  string
	mu    sync.Mutex
	got   []domain.EventType
	block chan struct{}
	err   error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(ctx context.Context, e domain.Event) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.got = append(s.got, e.Type)
	s.mu.Unlock()
	return s.err
}

func (s *recordingSink) received() []domain.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.EventType(nil), s.got...)
}

func TestDispatcher_DeliversInOrderToEverySink(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b", err: errors.New("sink down")}
	d := NewDispatcher(8, zerolog.Nop(), a, nil, b)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	d.Publish(
		domain.NewEvent(domain.EventUpdatePosts, nil),
		domain.NewEvent(domain.EventPostDeleted, nil),
		domain.NewEvent(domain.EventTopicUpdated, nil),
	)

	want := []domain.EventType{domain.EventUpdatePosts, domain.EventPostDeleted, domain.EventTopicUpdated}
	require.Eventually(t, func() bool {
		return len(a.received()) == 3 && len(b.received()) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, a.received())
	assert.Equal(t, want, b.received(), "a failing sink still sees every event")

	cancel()
	d.Wait()
}

func TestDispatcher_DropsWhenSinkQueueFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	slow := &recordingSink{name: "slow", block: make(chan struct{})}
	fast := &recordingSink{name: "fast"}
	d := NewDispatcher(2, zerolog.Nop(), slow, fast)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	// The slow worker holds one event in Deliver and two in its queue; the
	// rest are dropped for it without delaying the fast sink.
	for i := 0; i < 10; i++ {
		d.Publish(domain.NewEvent(domain.EventUpdatePosts, nil))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(fast.received()) == 10 }, time.Second, 5*time.Millisecond)

	close(slow.block)
	// Once the backlog drains the slow sink is told to resync, exactly once.
	require.Eventually(t, func() bool {
		got := slow.received()
		return len(got) > 0 && got[len(got)-1] == domain.EventRequestPostsUpdate
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	got := slow.received()
	assert.LessOrEqual(t, len(got), 4)
	resyncs := 0
	for _, typ := range got {
		if typ == domain.EventRequestPostsUpdate {
			resyncs++
		}
	}
	assert.Equal(t, 1, resyncs)
	assert.NotContains(t, fast.received(), domain.EventRequestPostsUpdate)

	cancel()
	d.Wait()
}

type stubEventRepo struct {
	events []domain.Event
}

func (r *stubEventRepo) InsertEvent(_ context.Context, e domain.Event) error {
	r.events = append(r.events, e)
	return nil
}

func TestAuditSink(t *testing.T) {
	repo := &stubEventRepo{}
	sink := NewAuditSink(repo)
	assert.Equal(t, "audit", sink.Name())

	e := domain.NewEvent(domain.EventPostsCleared, nil)
	require.NoError(t, sink.Deliver(context.Background(), e))
	require.Len(t, repo.events, 1)
	assert.Equal(t, e.ID, repo.events[0].ID)
}
