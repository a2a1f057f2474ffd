// Package ws implements the page side of the page channel: a
// fire-and-forget WebSocket client that forwards envelopes to the
// background service and surfaces inbound envelopes.
package ws

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Outbound buffer; sends beyond it are dropped, not blocked on.
	sendBuffer = 256
)

// Client is one page's connection to the background service.
type Client struct {
	conn    *websocket.Conn
	send    chan models.Envelope
	inbound chan models.Envelope
	done    chan struct{}
	log     *logger.Logger
}

// Dial connects a page client to the background service. clientID and
// pageURL identify the page for inbound dispatch.
func Dial(serviceURL, clientID, pageURL string, log *logger.Logger) (*Client, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("clientId", clientID)
	q.Set("pageUrl", pageURL)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:    conn,
		send:    make(chan models.Envelope, sendBuffer),
		inbound: make(chan models.Envelope, sendBuffer),
		done:    make(chan struct{}),
		log:     log.WithClientID(clientID),
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

// Send queues an envelope for delivery. Fire-and-forget: when the
// buffer is full the envelope is dropped and the drop is logged.
func (c *Client) Send(env models.Envelope) {
	select {
	case c.send <- env:
	default:
		c.log.Warn("page channel backed up, dropping envelope", "type", env.Type)
	}
}

// Inbound returns envelopes forwarded from the background service. The
// channel closes when the connection ends.
func (c *Client) Inbound() <-chan models.Envelope {
	return c.inbound
}

// Close tears the connection down.
func (c *Client) Close() {
	c.conn.Close()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(env)
			if err != nil {
				c.log.Warn("dropping unmarshalable envelope", "type", env.Type)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		close(c.done)
		close(c.inbound)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("page channel closed", "error", err.Error())
			}
			return
		}
		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn("skipping malformed inbound envelope", "error", err.Error())
			continue
		}
		select {
		case c.inbound <- env:
		default:
			c.log.Warn("inbound buffer full, dropping envelope", "type", env.Type)
		}
	}
}
