package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/99minutos/seedboard/internal/api/metrics"
	"github.com/99minutos/seedboard/internal/core/domain"
)

const defaultBuffer = 256

// Sink consumes broadcast events. Each sink gets its own worker, so a slow
// sink only ever delays itself.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event domain.Event) error
}

type sinkWorker struct {
	sink Sink
	ch   chan domain.Event
	// resync is set when an event was dropped for this sink; the worker then
	// delivers one request_posts_update once its queue has drained.
	resync atomic.Bool
}

// Dispatcher fans committed events out to every sink through bounded queues.
// Publish never blocks: when a sink queue is full the event is dropped for
// that sink, counted, and followed later by a resync event.
type Dispatcher struct {
	workers []*sinkWorker
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with one queue of buffer events per sink.
// If buffer <= 0, defaultBuffer is used.
func NewDispatcher(buffer int, log zerolog.Logger, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	d := &Dispatcher{
		workers: make([]*sinkWorker, 0, len(sinks)),
		log:     log,
	}
	for _, s := range sinks {
		if s == nil {
			continue
		}
		d.workers = append(d.workers, &sinkWorker{sink: s, ch: make(chan domain.Event, buffer)})
	}
	return d
}

// Start launches one worker per sink. Workers stop when ctx is cancelled;
// call Wait to block until they have returned.
func (d *Dispatcher) Start(ctx context.Context) {
	for _, w := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, w)
	}
}

// Wait blocks until every worker started by Start has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Publish enqueues events, in order, on every sink queue.
func (d *Dispatcher) Publish(events ...domain.Event) {
	for _, w := range d.workers {
		name := w.sink.Name()
		for _, e := range events {
			select {
			case w.ch <- e:
			default:
				w.resync.Store(true)
				metrics.BroadcastDroppedTotal.WithLabelValues(name).Inc()
				d.log.Warn().
					Str("sink", name).
					Str("event_type", string(e.Type)).
					Msg("sink queue full, event dropped")
			}
		}
		metrics.BroadcastQueueDepth.WithLabelValues(name).Set(float64(len(w.ch)))
	}
}

func (d *Dispatcher) runWorker(ctx context.Context, w *sinkWorker) {
	defer d.wg.Done()
	name := w.sink.Name()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-w.ch:
			metrics.BroadcastQueueDepth.WithLabelValues(name).Set(float64(len(w.ch)))
			d.deliver(ctx, w, e)
			if len(w.ch) == 0 && w.resync.CompareAndSwap(true, false) {
				d.log.Info().Str("sink", name).Msg("events were dropped, asking viewers to resync")
				d.deliver(ctx, w, domain.NewEvent(domain.EventRequestPostsUpdate, nil))
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, w *sinkWorker, e domain.Event) {
	if err := w.sink.Deliver(ctx, e); err != nil {
		metrics.BroadcastErrorsTotal.WithLabelValues(w.sink.Name()).Inc()
		d.log.Error().Err(err).
			Str("sink", w.sink.Name()).
			Str("event_id", e.ID).
			Str("event_type", string(e.Type)).
			Msg("event delivery failed")
	}
}
