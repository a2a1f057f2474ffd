package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Page clients connect from platform origins; the loopback bind
		// is the real boundary.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

type Client struct {
	ID      string
	PageURL string
	Conn    *websocket.Conn
	Send    chan []byte
	Hub     *Hub
}

// LoginRequest is the LOGIN envelope payload.
type LoginRequest struct {
	Token string `json:"token"`
}

// AuthResult is the payload of LOGIN_RESPONSE, LOGOUT_RESPONSE and
// AUTH_UPDATE envelopes.
type AuthResult struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
	Username      string `json:"username,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("page client read error", "client_id", c.ID, "error", err)
			}
			break
		}

		var envelope models.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.Hub.log.Warn("skipping malformed envelope", "client_id", c.ID, "error", err)
			continue
		}

		// Handled inline so events from one page reach the relay in the
		// order the page observed them.
		c.handleEnvelope(envelope)
	}
}

func (c *Client) handleEnvelope(envelope models.Envelope) {
	switch envelope.Type {
	case models.TypeVTTEvent:
		c.handleVTTEvent(envelope.Payload)
	case models.TypeGetStatus:
		c.send(models.NewEnvelope(models.TypeStatusResponse, c.Hub.relay.Status()))
	case models.TypeLogin:
		c.handleLogin(envelope.Payload)
	case models.TypeLogout:
		c.handleLogout()
	case models.TypeConnectFumblebot:
		c.Hub.relay.Connect()
	case models.TypeDisconnectFumblebot:
		c.Hub.relay.Disconnect()
	case models.TypeSendToDiscord:
		c.handleSendToDiscord(envelope.Payload)
	default:
		c.Hub.log.Debug("unknown envelope type", "client_id", c.ID, "type", envelope.Type)
	}
}

// handleVTTEvent forwards one captured event to the relay and, when an
// archive is wired, records it. Delivery is fire and forget; the page
// client never learns whether the relay accepted it.
func (c *Client) handleVTTEvent(payload json.RawMessage) {
	var event models.VTTEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.Hub.log.Warn("skipping malformed vtt event", "client_id", c.ID, "error", err)
		return
	}
	if event.Kind == "" {
		c.Hub.log.Warn("skipping vtt event without kind", "client_id", c.ID)
		return
	}

	if c.Hub.archive != nil {
		c.Hub.archive.ArchiveEvent(event)
	}
	c.Hub.relay.Publish(models.RemoteEvent{Type: event.Kind, Data: payload})
}

func (c *Client) handleLogin(payload json.RawMessage) {
	var req LoginRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.Token == "" {
		c.send(models.NewEnvelope(models.TypeLoginResponse, AuthResult{Error: "token is required"}))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state, err := c.Hub.relay.Login(ctx, req.Token)
	if err != nil {
		c.send(models.NewEnvelope(models.TypeLoginResponse, AuthResult{Error: err.Error()}))
		return
	}

	result := AuthResult{Authenticated: true, UserID: state.UserID, Username: state.Username}
	c.send(models.NewEnvelope(models.TypeLoginResponse, result))
	c.Hub.Broadcast(models.NewEnvelope(models.TypeAuthUpdate, result))
}

func (c *Client) handleLogout() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Hub.relay.Logout(ctx); err != nil {
		c.send(models.NewEnvelope(models.TypeLogoutResponse, AuthResult{Error: err.Error()}))
		return
	}
	c.send(models.NewEnvelope(models.TypeLogoutResponse, AuthResult{}))
	c.Hub.Broadcast(models.NewEnvelope(models.TypeAuthUpdate, AuthResult{}))
}

func (c *Client) handleSendToDiscord(payload json.RawMessage) {
	var event models.RemoteEvent
	if err := json.Unmarshal(payload, &event); err != nil || event.Type == "" {
		c.Hub.log.Warn("skipping malformed send-to-discord payload", "client_id", c.ID)
		return
	}
	c.Hub.relay.Publish(event)
}

func (c *Client) send(envelope models.Envelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		c.Hub.log.Error("marshaling envelope", "error", err, "type", envelope.Type)
		return
	}
	// The hub closes Send when it evicts a client, always under its
	// lock; sending under the same lock after a membership check keeps
	// this from racing that close.
	c.Hub.mu.Lock()
	defer c.Hub.mu.Unlock()
	if _, ok := c.Hub.clients[c]; !ok {
		return
	}
	select {
	case c.Send <- data:
	default:
		c.Hub.log.Warn("dropping envelope for slow client", "client_id", c.ID, "type", envelope.Type)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Drain anything queued behind the first message, one frame
			// per envelope.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func ServeWs(hub *Hub, c *gin.Context) {
	clientID := c.Query("clientId")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clientId is required"})
		return
	}
	pageURL := c.Query("pageUrl")
	if pageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pageUrl is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Error("upgrading connection", "error", err)
		return
	}
	conn.EnableWriteCompression(true)

	client := &Client{
		ID:      clientID,
		PageURL: pageURL,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Hub:     hub,
	}
	// Queue the current status ahead of registration; the membership
	// check in send would drop it until the hub applies the register.
	if data, err := json.Marshal(models.NewEnvelope(models.TypeStatusResponse, hub.relay.Status())); err == nil {
		client.Send <- data
	}
	hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
