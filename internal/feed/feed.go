// Package feed broadcasts pipeline events to websocket subscribers.
//
// A [Hub] is a [pipeline.Sink]: every event is encoded to JSON once and
// offered to each connected client without blocking. A client whose queue is
// full is disconnected with StatusPolicyViolation so the processing loop is
// never held up by a slow reader.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/voxgate/internal/observe"
	"github.com/MrWong99/voxgate/internal/pipeline"
)

const (
	defaultBuffer = 32
	writeTimeout  = 5 * time.Second
)

// Option configures a [Hub].
type Option func(*Hub)

// WithBuffer sets the number of events queued per subscriber before it is
// considered too slow. Default: 32.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithMetrics sets the metrics the subscriber gauge is recorded on.
// Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithOriginPatterns allows cross-origin browser clients whose Origin host
// matches one of patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = append(h.origins, patterns...) }
}

// Hub fans pipeline events out to websocket clients. It is safe for
// concurrent use.
type Hub struct {
	buffer  int
	metrics *observe.Metrics
	origins []string

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	msgs      chan []byte
	closeSlow func()
}

var _ pipeline.Sink = (*Hub)(nil)

// New returns an empty Hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		buffer: defaultBuffer,
		subs:   make(map[*subscriber]struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// Emit implements [pipeline.Sink]. It never blocks.
func (h *Hub) Emit(e pipeline.Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		slog.Error("feed: encode event", "kind", e.Kind, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.msgs <- msg:
		default:
			h.removeLocked(s)
			go s.closeSlow()
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request to a websocket and streams events until the
// client disconnects, falls behind or the hub is closed. Messages from the
// client are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("feed: websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer c.CloseNow()

	s := &subscriber{
		msgs: make(chan []byte, h.buffer),
		closeSlow: func() {
			c.Close(websocket.StatusPolicyViolation, "connection too slow to keep up with events")
		},
	}
	if !h.add(s) {
		c.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(s)
	slog.Debug("feed: subscriber connected", "remote", r.RemoteAddr)

	ctx := c.CloseRead(r.Context())
	err = h.stream(ctx, c, s)
	switch {
	case err == nil:
		c.Close(websocket.StatusGoingAway, "server shutting down")
	case errors.Is(err, context.Canceled),
		websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
	default:
		slog.Debug("feed: subscriber dropped", "remote", r.RemoteAddr, "err", err)
	}
}

func (h *Hub) stream(ctx context.Context, c *websocket.Conn, s *subscriber) error {
	for {
		select {
		case msg, ok := <-s.msgs:
			if !ok {
				return nil
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		h.removeLocked(s)
		close(s.msgs)
	}
}

func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[s] = struct{}{}
	h.metrics.FeedSubscribers.Add(context.Background(), 1)
	return true
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	h.metrics.FeedSubscribers.Add(context.Background(), -1)
}
