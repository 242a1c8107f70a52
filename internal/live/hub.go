package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"friends-scoreboard/internal/constants"
	"friends-scoreboard/internal/events"
	"friends-scoreboard/internal/service"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Ranker computes a leaderboard view; satisfied by *service.LeaderboardService.
type Ranker interface {
	Get(ctx context.Context, q service.LeaderboardQuery) (*service.LeaderboardView, error)
}

type MessageType string

const (
	TypeLeaderboard MessageType = "leaderboard"
	TypeError       MessageType = "error"
)

// Message is what the hub pushes to clients.
type Message struct {
	Type  MessageType              `json:"type"`
	Data  *service.LeaderboardView `json:"data,omitempty"`
	Error string                   `json:"error,omitempty"`
}

// Hub serves /live: every connected client gets its leaderboard pushed
// again whenever the backend reports a change or the client sends a new
// query.
type Hub struct {
	ranker   Ranker
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	unsubscribe func()
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	query service.LeaderboardQuery

	refresher *Refresher[*service.LeaderboardView]
}

func NewHub(ranker Ranker, bus *events.Bus, logger zerolog.Logger) *Hub {
	h := &Hub{
		ranker:  ranker,
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	h.unsubscribe = events.Subscribe(bus, h.onTablesChanged)
	return h
}

func (h *Hub) onTablesChanged(ev events.TablesChanged) {
	h.logger.Debug().Str("table", ev.Table).Str("source", ev.Source).Msg("tables changed, refreshing live clients")
	h.refreshAll()
}

func (h *Hub) refreshAll() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.refresh()
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, constants.LiveSendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	c.refresher = NewRefresher(c.deliver)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info().Str("remote", r.RemoteAddr).Msg("live client connected")

	go c.writePump()
	c.refresh()
	c.readPump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if !ok {
		return
	}

	c.cancel()
	c.refresher.Close()
	close(c.send)
	h.logger.Info().Msg("live client disconnected")
}

// Close disconnects every client and stops listening for changes.
func (h *Hub) Close() {
	h.unsubscribe()

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

func (c *client) currentQuery() service.LeaderboardQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

func (c *client) refresh() {
	q := c.currentQuery()
	c.refresher.Trigger(c.ctx, func(ctx context.Context) (*service.LeaderboardView, error) {
		return c.hub.ranker.Get(ctx, q)
	})
}

func (c *client) deliver(view *service.LeaderboardView, err error) {
	msg := Message{Type: TypeLeaderboard, Data: view}
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		msg = Message{Type: TypeError, Error: err.Error()}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error().Err(err).Msg("failed to marshal live message")
		return
	}

	// a newer snapshot replaces the oldest queued one
	for {
		select {
		case c.send <- data:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(constants.LivePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(constants.LivePongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug().Err(err).Msg("live client read error")
			}
			return
		}

		var q service.LeaderboardQuery
		if err := json.Unmarshal(data, &q); err != nil {
			c.hub.logger.Debug().Err(err).Msg("ignoring malformed live query")
			continue
		}
		c.mu.Lock()
		c.query = q
		c.mu.Unlock()
		c.refresh()
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(constants.LivePingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.LiveWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.LiveWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
