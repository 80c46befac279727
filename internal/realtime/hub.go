package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Hub forwards broker events to websocket clients. Each client chooses
// its tables with ?table=a,b (all tables when omitted).
type Hub struct {
	broker     Broker
	log        zerolog.Logger
	upgrader   websocket.Upgrader
	clients    map[*client]struct{}
	clientsMu  sync.RWMutex
	register   chan *client
	unregister chan *client
	broadcast  chan Event
	done       chan struct{}
}

type client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	tables map[string]bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the hub logger.
func WithHubLogger(log zerolog.Logger) HubOption {
	return func(h *Hub) { h.log = log }
}

// WithCheckOrigin overrides the websocket origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

// NewHub creates a hub over broker. Call Run before serving clients.
func NewHub(broker Broker, opts ...HubOption) *Hub {
	h := &Hub{
		broker: broker,
		log:    zerolog.Nop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run subscribes to every table and serves clients until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	var cancels []func()
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
		close(h.done)
	}()
	for _, table := range Tables() {
		cancel, err := h.broker.Subscribe(table, func(e Event) {
			select {
			case h.broadcast <- e:
			case <-ctx.Done():
			}
		})
		if err != nil {
			return err
		}
		cancels = append(cancels, cancel)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case c := <-h.register:
			h.clientsMu.Lock()
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.clientsMu.Unlock()
			h.log.Debug().Str("client", c.id).Int("clients", total).Msg("realtime client connected")
		case c := <-h.unregister:
			h.remove(c)
		case e := <-h.broadcast:
			h.fanOut(e)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.log.Debug().Str("client", c.id).Int("clients", len(h.clients)).Msg("realtime client disconnected")
	}
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) fanOut(e Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		return
	}
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for c := range h.clients {
		if len(c.tables) > 0 && !c.tables[e.Table] {
			continue
		}
		select {
		case c.send <- msg:
		default:
			// client already has events queued and will re-list anyway
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// ParseTables splits a table query value, rejecting unknown names.
func ParseTables(raw string) (map[string]bool, bool) {
	tables := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !ValidTable(part) {
			return nil, false
		}
		tables[part] = true
	}
	return tables, true
}

// HandleWebSocket upgrades the request and registers the client.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	tables, ok := ParseTables(strings.Join(c.QueryArray("table"), ","))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown table"})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	cl := &client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		tables: tables,
	}
	select {
	case h.register <- cl:
	case <-h.done:
		conn.Close()
		return
	}

	go cl.writePump()
	go cl.readPump()
}

// readPump only drains control frames; clients never send data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Str("client", c.id).Msg("websocket read")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
