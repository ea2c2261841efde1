// Package ws is the websocket Broadcast Gateway: it keeps the set of connected
// viewers and pushes every dispatched event to each of them.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/99minutos/seedboard/internal/api/metrics"
	"github.com/99minutos/seedboard/internal/core/domain"
)

const (
	defaultSendBuffer = 64
	writeWait         = 5 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4 * 1024
)

// BootstrapFunc builds the event a viewer receives right after connecting.
type BootstrapFunc func() domain.Event

type viewer struct {
	id   uint64
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (v *viewer) close() {
	v.once.Do(func() { close(v.done) })
}

// Hub tracks connected viewers. A viewer whose send buffer is full is
// disconnected instead of blocking delivery to the others.
type Hub struct {
	mu        sync.Mutex
	viewers   map[uint64]*viewer
	nextID    atomic.Uint64
	upgrader  websocket.Upgrader
	bootstrap BootstrapFunc
	buffer    int
	log       zerolog.Logger
}

// NewHub returns a hub. bootstrap may be nil.
func NewHub(bootstrap BootstrapFunc, buffer int, log zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Hub{
		viewers:   make(map[uint64]*viewer),
		bootstrap: bootstrap,
		buffer:    buffer,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) Name() string { return "viewers" }

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Deliver encodes event once and queues it for every viewer.
func (h *Hub) Deliver(_ context.Context, event domain.Event) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.Type, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, v := range h.viewers {
		select {
		case v.out <- b:
		default:
			h.log.Warn().Uint64("viewer", id).Msg("viewer too slow, disconnecting")
			metrics.ViewersDroppedTotal.Inc()
			h.removeLocked(id)
		}
	}
	return nil
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.viewers {
		h.removeLocked(id)
	}
}

// register adds v and queues the bootstrap event ahead of anything Deliver
// sends afterwards.
func (h *Hub) register(v *viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bootstrap != nil {
		if b, err := json.Marshal(h.bootstrap()); err == nil {
			v.out <- b
		} else {
			h.log.Error().Err(err).Msg("encode bootstrap event")
		}
	}
	h.viewers[v.id] = v
	metrics.ViewersConnected.Set(float64(len(h.viewers)))
}

func (h *Hub) unregister(v *viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.viewers[v.id]; ok {
		h.removeLocked(v.id)
	}
	v.close()
}

func (h *Hub) removeLocked(id uint64) {
	if v, ok := h.viewers[id]; ok {
		v.close()
		delete(h.viewers, id)
	}
	metrics.ViewersConnected.Set(float64(len(h.viewers)))
}

// ServeHTTP upgrades the request and streams events until the viewer leaves.
// Viewers are read-only; anything they send is discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	v := &viewer{
		id:   h.nextID.Add(1),
		out:  make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}
	h.register(v)
	defer h.unregister(v)
	h.log.Debug().Uint64("viewer", v.id).Str("remote", r.RemoteAddr).Msg("viewer connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, v)
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	v.close()
	select {
	case <-writerDone:
	case <-time.After(writeWait):
	}
	h.log.Debug().Uint64("viewer", v.id).Msg("viewer disconnected")
}

func (h *Hub) writeLoop(conn *websocket.Conn, v *viewer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-v.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))
			_ = conn.Close()
			return
		case b := <-v.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
