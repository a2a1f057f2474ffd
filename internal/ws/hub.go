// Package ws is the privilege boundary between page clients and the
// background service. Page capture clients connect here over WebSocket;
// the hub routes their envelopes to the relay and pushes inbound
// events back to the pages they belong on.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/extract"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/relay"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/logger"
)

// Relay is the subset of the relay manager the hub drives.
type Relay interface {
	Publish(event models.RemoteEvent)
	Status() models.ConnectionStatus
	Login(ctx context.Context, token string) (relay.AuthState, error)
	Logout(ctx context.Context) error
	Connect()
	Disconnect()
}

// Archiver persists captured events. Implementations are best-effort;
// the hub never blocks on them.
type Archiver interface {
	ArchiveEvent(event models.VTTEvent)
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.Envelope

	relay   Relay
	archive Archiver
	log     *logger.Logger
	mu      sync.Mutex
}

func NewHub(r Relay, archive Archiver, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.Envelope),
		relay:      r,
		archive:    archive,
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Info("page client registered", "client_id", client.ID, "page_url", client.PageURL)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Info("page client unregistered", "client_id", client.ID)
			}
			h.mu.Unlock()

		case envelope := <-h.broadcast:
			data, err := json.Marshal(envelope)
			if err != nil {
				h.log.Error("marshaling broadcast envelope", "error", err, "type", envelope.Type)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- data:
				default:
					close(client.Send)
					delete(h.clients, client)
					h.log.Warn("page client removed, send buffer full", "client_id", client.ID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues an envelope for every connected page client.
func (h *Hub) Broadcast(envelope models.Envelope) {
	h.broadcast <- envelope
}

// BroadcastStatus pushes a STATUS_UPDATE to all pages. It is wired as
// the relay's status listener.
func (h *Hub) BroadcastStatus(status models.ConnectionStatus) {
	h.Broadcast(models.NewEnvelope(models.TypeStatusUpdate, status))
}

// Dispatch routes an inbound remote event to page clients. Only clients
// whose page URL belongs to a supported platform receive it; anything
// else connected to the hub is ignored.
func (h *Hub) Dispatch(event models.RemoteEvent) {
	var typ string
	switch event.Type {
	case models.RemoteDiscordMessage:
		typ = models.TypeDiscordMessage
	case models.RemoteDiscordRoll:
		typ = models.TypeDiscordRoll
	default:
		h.log.Debug("ignoring inbound event of unknown type", "type", event.Type)
		return
	}

	envelope := models.Envelope{Type: typ, Payload: event.Data}
	data, err := json.Marshal(envelope)
	if err != nil {
		h.log.Error("marshaling inbound envelope", "error", err, "type", typ)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if _, ok := extract.PlatformForURL(client.PageURL); !ok {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.log.Warn("dropping inbound event for slow client", "client_id", client.ID, "type", typ)
		}
	}
}
