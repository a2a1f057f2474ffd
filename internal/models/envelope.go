package models

import "encoding/json"

// Cross-context envelope type tags. Page clients and the background
// service exchange envelopes over the page channel; the same tags are
// mirrored on the HTTP surface where that makes sense.
const (
	TypeVTTEvent            = "VTT_EVENT"
	TypeGetStatus           = "GET_STATUS"
	TypeStatusResponse      = "STATUS_RESPONSE"
	TypeLogin               = "LOGIN"
	TypeLoginResponse       = "LOGIN_RESPONSE"
	TypeLogout              = "LOGOUT"
	TypeLogoutResponse      = "LOGOUT_RESPONSE"
	TypeConnectFumblebot    = "CONNECT_FUMBLEBOT"
	TypeDisconnectFumblebot = "DISCONNECT_FUMBLEBOT"
	TypeSendToDiscord       = "SEND_TO_DISCORD"
	TypeStatusUpdate        = "STATUS_UPDATE"
	TypeAuthUpdate          = "AUTH_UPDATE"
	TypeDiscordMessage      = "DISCORD_MESSAGE"
	TypeDiscordRoll         = "DISCORD_ROLL"
)

// Envelope is the cross-context message wrapper.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope wraps payload in an envelope, marshaling it to JSON.
// Marshal failures yield an envelope with an empty payload; the type
// tag alone still identifies the event.
func NewEnvelope(typ string, payload any) Envelope {
	if payload == nil {
		return Envelope{Type: typ}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{Type: typ}
	}
	return Envelope{Type: typ, Payload: data}
}

// VTT event kinds carried inside a VTT_EVENT payload.
const (
	EventRoll         = "roll"
	EventMessage      = "message"
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventError        = "error"
)

// VTTEvent is the payload of a VTT_EVENT envelope: one normalized roll,
// message, or session lifecycle signal.
type VTTEvent struct {
	Kind    string       `json:"kind"`
	Roll    *Roll        `json:"roll,omitempty"`
	Message *Message     `json:"message,omitempty"`
	Session *SessionInfo `json:"session,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// RemoteEvent is the wire shape shared by the outbound endpoint and the
// inbound stream: one JSON object {type, data} per event.
type RemoteEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound stream event types.
const (
	RemoteDiscordMessage = "discord-message"
	RemoteDiscordRoll    = "discord-roll"
)
