// Package feed broadcasts committed receipt events to websocket clients.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"meme-presale/internal/domain"
	"meme-presale/internal/observability"
)

const (
	// Disconnection timeout.
	wsPongLimit = 60 * time.Second

	// Ping period for connection liveness check.
	wsPingPeriod = wsPongLimit / 2

	// Write deadline.
	wsWriteLimit = wsPingPeriod / 2

	// Clients only send control frames.
	wsReadLimit = 512

	// DefaultMaxClients is the default maximum number of websocket clients per Hub.
	DefaultMaxClients = 256

	// DefaultBufferSize is the default per-client message buffer depth.
	DefaultBufferSize = 256
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("feed closed")

// subscriber is one websocket client.
type subscriber struct {
	writer chan *websocket.PreparedMessage
	launch string // only events of this launch, empty for all
}

// Options configures a Hub.
type Options struct {
	Logger     logrus.FieldLogger // defaults to the logrus standard logger
	MaxClients int                // defaults to DefaultMaxClients
	BufferSize int                // defaults to DefaultBufferSize
}

// Hub fans receipt events out to websocket subscribers. A subscriber whose buffer is full
// misses the event; Publish never blocks on a slow client.
type Hub struct {
	log        logrus.FieldLogger
	maxClients int
	bufSize    int
	upgrader   websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	shutdown    chan struct{}
	closeOnce   sync.Once
}

// NewHub creates a Hub.
func NewHub(opts Options) *Hub {
	h := &Hub{
		log:         opts.Logger,
		maxClients:  opts.MaxClients,
		bufSize:     opts.BufferSize,
		subscribers: make(map[*subscriber]struct{}),
		shutdown:    make(chan struct{}),
	}
	if h.log == nil {
		h.log = logrus.StandardLogger()
	}
	if h.maxClients <= 0 {
		h.maxClients = DefaultMaxClients
	}
	if h.bufSize <= 0 {
		h.bufSize = DefaultBufferSize
	}
	return h
}

// Publish broadcasts ev to every matching subscriber.
func (h *Hub) Publish(_ context.Context, ev *domain.ReceiptEvent) error {
	select {
	case <-h.shutdown:
		return ErrClosed
	default:
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal receipt event: %w", err)
	}
	msg, err := websocket.NewPreparedMessage(websocket.TextMessage, b)
	if err != nil {
		return fmt.Errorf("prepare receipt message: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		if sub.launch != "" && sub.launch != ev.Launch {
			continue
		}
		select {
		case sub.writer <- msg:
		default:
			observability.RecordFeedDrop()
		}
	}
	return nil
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber. Publish fails afterwards.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.shutdown) })
}

// ServeHTTP upgrades the request and streams receipt events until the client disconnects.
// The optional "launch" query parameter ("creator/index") filters events to one launch.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	launch := r.URL.Query().Get("launch")
	if launch != "" {
		if _, err := domain.ParseLaunchKey(launch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	// Racy against concurrent registrations; a few extra clients may get in.
	if h.Clients() >= h.maxClients {
		http.Error(w, "websocket client limit reached", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Infof("websocket connection upgrade failed: %v", err)
		return
	}

	sub := &subscriber{
		writer: make(chan *websocket.PreparedMessage, h.bufSize),
		launch: launch,
	}
	h.register(sub)

	done := make(chan struct{})
	go h.handleWrites(ws, sub, done)
	h.handleReads(ws, done)
	h.unregister(sub)
}

func (h *Hub) register(sub *subscriber) {
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()
	observability.SetFeedClients(n)
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	n := len(h.subscribers)
	h.mu.Unlock()
	observability.SetFeedClients(n)
}

// handleWrites writes events and pings until the connection fails, the reader
// finishes or the hub shuts down.
func (h *Hub) handleWrites(ws *websocket.Conn, sub *subscriber, done <-chan struct{}) {
	pingTicker := time.NewTicker(wsPingPeriod)
	defer pingTicker.Stop()
	defer ws.Close()

	for {
		select {
		case <-h.shutdown:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteLimit))
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"))
			return
		case <-done:
			return
		case msg := <-sub.writer:
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				return
			}
			if err := ws.WritePreparedMessage(msg); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				return
			}
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

// handleReads consumes control frames until the client goes away.
func (h *Hub) handleReads(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	ws.SetReadLimit(wsReadLimit)
	err := ws.SetReadDeadline(time.Now().Add(wsPongLimit))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(wsPongLimit)) })
	for err == nil {
		_, _, err = ws.ReadMessage()
	}
}
