package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"devconnector/auth"
	"devconnector/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 512
	sendBuffer = 256
)

// envelope is the frame sent to clients.
type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub fans post events out to every connected client. The client set is
// owned by the Run goroutine.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	connected atomic.Int64
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	log       zerolog.Logger
}

type Client struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
	pong   chan struct{}
	hub    *Hub
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connected.Store(int64(len(h.clients)))
			h.log.Debug().Str("user_id", c.userID).Int("clients", len(h.clients)).Msg("WebSocket client registered")

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow reader
					h.drop(c)
				}
			}

		case <-h.stop:
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.connected.Store(int64(len(h.clients)))
	h.log.Debug().Str("user_id", c.userID).Int("clients", len(h.clients)).Msg("WebSocket client unregistered")
}

// Stop disconnects every client and waits for Run to return.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *Hub) Connected() int {
	return int(h.connected.Load())
}

// Notify broadcasts ev to every connected client.
func (h *Hub) Notify(ctx context.Context, ev models.PostEvent) {
	msg, err := json.Marshal(envelope{Type: ev.Type, Payload: ev})
	if err != nil {
		h.log.Error().Err(err).Msg("Marshal post event")
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.stop:
	case <-ctx.Done():
		h.log.Warn().Str("type", ev.Type).Msg("Post event dropped")
	}
}

// Verifier validates the token a client connects with.
type Verifier interface {
	Verify(token string) (auth.Principal, error)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler upgrades requests carrying a valid token in ?token= or
// x-auth-token and registers the connection with the hub.
func Handler(h *Hub, verifier Verifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token == "" {
			token = strings.TrimSpace(r.Header.Get("x-auth-token"))
		}
		if token == "" {
			writeUnauthorized(w, "No token, authorization denied")
			return
		}
		principal, err := verifier.Verify(token)
		if err != nil {
			writeUnauthorized(w, "Token is not valid")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		c := &Client{
			conn:   conn,
			userID: principal.UserID,
			send:   make(chan []byte, sendBuffer),
			pong:   make(chan struct{}, 1),
			hub:    h,
		}
		welcome, _ := json.Marshal(envelope{
			Type: "connected",
			Payload: map[string]interface{}{
				"userId": principal.UserID,
				"time":   time.Now().Unix(),
			},
		})
		c.send <- welcome

		select {
		case h.register <- c:
		case <-h.stop:
			conn.Close()
			return
		}

		go c.writePump()
		go c.readPump()
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(models.NewUnauthorizedError(message))
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Str("user_id", c.userID).Msg("WebSocket read error")
			}
			return
		}

		var in envelope
		if err := json.Unmarshal(message, &in); err != nil {
			continue
		}
		if in.Type == "ping" {
			select {
			case c.pong <- struct{}{}:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
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

		case <-c.pong:
			msg, _ := json.Marshal(envelope{
				Type:    "pong",
				Payload: map[string]interface{}{"time": time.Now().Unix()},
			})
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
