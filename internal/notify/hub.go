package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/tilequest/missionengine/internal/channel"
	"github.com/tilequest/missionengine/pkg/core"
)

const (
	sendQueueSize = 256
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = pongWait * 9 / 10
	maxReadSize   = 512
)

// Hub pushes notifications to participants connected over websocket.
// Clients connect with ?participant=<id>; a participant may hold several
// connections. Clients never send anything but control frames.
type Hub struct {
	upgrader ws.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[core.ParticipantID]map[*client]struct{}
	closed  bool
}

type client struct {
	hub         *Hub
	participant core.ParticipantID
	conn        *ws.Conn
	out         channel.Channel[[]byte]
	done        chan struct{}
	once        sync.Once
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:   logger,
		clients:  make(map[core.ParticipantID]map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	participant := core.ParticipantID(r.URL.Query().Get("participant"))
	if participant == "" {
		http.Error(w, "participant query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "participant", participant, "error", err)
		return
	}

	c := &client{
		hub:         h,
		participant: participant,
		conn:        conn,
		out:         channel.New[[]byte](sendQueueSize),
		done:        make(chan struct{}),
	}
	if !h.add(c) {
		_ = conn.Close()
		return
	}

	if hello, err := marshalEnvelope(TypeHello, HelloPayload{Participant: string(participant)}); err == nil {
		c.out.TrySend(hello)
	}

	go c.writeLoop()
	go c.readLoop()
	h.logger.Debug("websocket client connected", "participant", participant)
}

// Present sends n to every connection of participant p. Slow clients whose
// queue is full miss the message.
func (h *Hub) Present(p core.ParticipantID, n core.Notification) {
	data, err := marshalEnvelope(TypeNotification, n)
	if err != nil {
		h.logger.Error("failed to encode notification", "mission", n.MissionID, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[p] {
		if !c.out.TrySend(data) {
			h.logger.Warn("websocket client queue full, dropping notification",
				"participant", p, "mission", n.MissionID, "kind", n.Kind)
		}
	}
}

// Connections returns how many connections participant p holds.
func (h *Hub) Connections(p core.ParticipantID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[p])
}

// Close disconnects every client. The hub refuses new clients afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		c.shutdown()
	}
}

// Serve runs an HTTP server exposing the hub at /ws until ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	h.logger.Info("notification hub listening", "addr", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("notification hub: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("notification hub shutdown: %w", err)
	}
	return nil
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[c.participant]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.participant] = set
	}
	set[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.participant]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.participant)
	}
}

// shutdown unregisters the client and stops both loops.
func (c *client) shutdown() {
	c.once.Do(func() {
		c.hub.remove(c)
		close(c.done)
		c.out.Close()
	})
}

// writeLoop is the only writer on conn.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.out.Receive():
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.shutdown()
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.hub.logger.Debug("websocket write failed", "participant", c.participant, "error", err)
				c.shutdown()
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.shutdown()
				return
			}
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}

// readLoop discards client frames and notices disconnects.
func (c *client) readLoop() {
	defer c.shutdown()

	c.conn.SetReadLimit(maxReadSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			select {
			case <-c.done:
			default:
				c.hub.logger.Debug("websocket client disconnected", "participant", c.participant, "error", err)
			}
			return
		}
	}
}
