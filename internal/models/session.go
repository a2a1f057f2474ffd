package models

import "time"

// Participant is one member of a game session roster.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IsGM bool   `json:"isGM"`
}

// SessionInfo is a snapshot of the current game and its participants as
// observed on a platform. It is re-derived wholesale when the roster
// changes, never patched in place.
type SessionInfo struct {
	Platform    Platform      `json:"platform"`
	GameID      string        `json:"gameId"`
	GameName    string        `json:"gameName"`
	CurrentUser Participant   `json:"currentUser"`
	Players     []Participant `json:"players"`
}

// Equal reports whether two snapshots describe the same session state.
func (s SessionInfo) Equal(other SessionInfo) bool {
	if s.Platform != other.Platform || s.GameID != other.GameID ||
		s.GameName != other.GameName || s.CurrentUser != other.CurrentUser {
		return false
	}
	if len(s.Players) != len(other.Players) {
		return false
	}
	for i := range s.Players {
		if s.Players[i] != other.Players[i] {
			return false
		}
	}
	return true
}

// ConnState is the remote-connection lifecycle state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateError        ConnState = "error"
)

// ConnectionStatus is the authoritative current view of the remote
// connection. Exactly one instance exists per process; its lifecycle is
// owned by the relay manager and it is mutated in place there.
type ConnectionStatus struct {
	Platform     Platform   `json:"platform,omitempty"`
	State        ConnState  `json:"state"`
	GameID       string     `json:"gameId,omitempty"`
	GameName     string     `json:"gameName,omitempty"`
	UserID       string     `json:"userId,omitempty"`
	Username     string     `json:"username,omitempty"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
	Error        string     `json:"error,omitempty"`
}
