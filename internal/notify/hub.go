package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultSendBuffer is the per-connection outbound queue length.
	DefaultSendBuffer = 16
	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 10 * time.Second

	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 4096
)

// Client messages.
const (
	JoinRoom  = "join-room"
	LeaveRoom = "leave-room"
)

var (
	// ErrHubClosed is returned by Serve and Emit after Close.
	ErrHubClosed = errors.New("hub closed")
	// ErrNoMembers is returned by Emit when nobody has joined the group.
	ErrNoMembers = errors.New("no connections in group")
	// ErrAllDropped is returned by Emit when every connection in the group
	// had a full outbound queue.
	ErrAllDropped = errors.New("every connection dropped the message")
)

// inbound is a frame sent by a client.
type inbound struct {
	Type string `json:"type"`
}

// HubOptions tunes a Hub. Zero values take the defaults.
type HubOptions struct {
	SendBuffer   int
	WriteTimeout time.Duration
	// CheckOrigin overrides the upgrader's origin check.
	CheckOrigin func(r *http.Request) bool
}

// Hub tracks websocket connections and the single group each has joined.
type Hub struct {
	upgrader     websocket.Upgrader
	sendBuffer   int
	writeTimeout time.Duration
	logger       *slog.Logger

	mu      sync.RWMutex
	groups  map[string]map[*conn]struct{}
	members map[*conn]string
	closed  bool
}

var _ Channel = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub(opts HubOptions, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		sendBuffer:   opts.SendBuffer,
		writeTimeout: opts.WriteTimeout,
		logger:       log.With(slog.String("component", "websocket_hub")),
		groups:       make(map[string]map[*conn]struct{}),
		members:      make(map[*conn]string),
	}
}

// conn is one live websocket.
type conn struct {
	ws       *websocket.Conn
	identity uuid.UUID
	send     chan []byte
	done     chan struct{}
	once     sync.Once
}

func (c *conn) shutdown() {
	c.once.Do(func() { close(c.done) })
}

// Serve upgrades the request and pumps frames until the connection ends.
// identity is the authenticated caller; a join-room message joins its group.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, identity uuid.UUID) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "real-time channel closed", http.StatusServiceUnavailable)
		return ErrHubClosed
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return fmt.Errorf("websocket upgrade failed: %w", err)
	}

	c := &conn{
		ws:       ws,
		identity: identity,
		send:     make(chan []byte, h.sendBuffer),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	h.members[c] = ""
	h.mu.Unlock()

	log := h.logger.With(slog.String("identity", identity.String()))
	log.Debug("websocket connected")

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return h.readPump(c) })
	g.Go(func() error { return h.writePump(ctx, c) })
	err = g.Wait()

	h.remove(c)

	if err != nil && !isNormalClose(err) {
		log.Warn("websocket closed abnormally", slog.String("reason", err.Error()))
	} else {
		log.Debug("websocket closed")
	}
	return nil
}

func (h *Hub) readPump(c *conn) error {
	defer c.shutdown()

	c.ws.SetReadLimit(maxInboundSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("ignoring malformed client frame", slog.String("error", err.Error()))
			continue
		}
		switch msg.Type {
		case JoinRoom:
			h.join(c, GroupFor(c.identity))
		case LeaveRoom:
			h.leave(c)
		default:
			h.logger.Debug("ignoring unknown client frame", slog.String("type", msg.Type))
		}
	}
}

func (h *Hub) writePump(ctx context.Context, c *conn) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	// Closing the socket unblocks the reader.
	defer c.ws.Close()

	write := func(kind int, data []byte) error {
		if err := c.ws.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
			return err
		}
		return c.ws.WriteMessage(kind, data)
	}

	for {
		select {
		case data := <-c.send:
			if err := write(websocket.TextMessage, data); err != nil {
				c.shutdown()
				return err
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return err
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.writeTimeout))
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// join moves c into group, leaving any group it joined before.
func (h *Hub) join(c *conn, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.detachLocked(c)
	set, ok := h.groups[group]
	if !ok {
		set = make(map[*conn]struct{})
		h.groups[group] = set
	}
	set[c] = struct{}{}
	h.members[c] = group
}

func (h *Hub) leave(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(c)
	if _, ok := h.members[c]; ok {
		h.members[c] = ""
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(c)
	delete(h.members, c)
}

func (h *Hub) detachLocked(c *conn) {
	group := h.members[c]
	if group == "" {
		return
	}
	if set, ok := h.groups[group]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.groups, group)
		}
	}
}

// HasMembers implements Channel.
func (h *Hub) HasMembers(group string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group]) > 0
}

// Emit implements Channel. Connections whose outbound queue is full miss
// the message; when that is every connection in group, Emit returns
// ErrAllDropped.
func (h *Hub) Emit(group string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}

	members := h.groups[group]
	if len(members) == 0 {
		return ErrNoMembers
	}

	var dropped int
	for c := range members {
		select {
		case c.send <- data:
		default:
			dropped++
		}
	}
	if dropped == 0 {
		return nil
	}
	h.logger.Warn("slow websocket connections missed a notification",
		slog.String("group", group), slog.Int("dropped", dropped), slog.Int("members", len(members)))
	if dropped == len(members) {
		return ErrAllDropped
	}
	return nil
}

// Connections reports the number of live connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// Close disconnects every client. Subsequent Serve calls fail.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*conn, 0, len(h.members))
	for c := range h.members {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.shutdown()
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
