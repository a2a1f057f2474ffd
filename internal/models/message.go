package models

import "time"

// MessageType categorizes a captured chat message.
type MessageType string

const (
	MessageChat    MessageType = "chat"
	MessageEmote   MessageType = "emote"
	MessageWhisper MessageType = "whisper"
	MessageSystem  MessageType = "system"
)

// Message is a canonical chat message captured from a platform.
type Message struct {
	ID            string      `json:"id"`
	Platform      Platform    `json:"platform"`
	Timestamp     time.Time   `json:"timestamp"`
	Sender        Roller      `json:"sender"`
	Content       string      `json:"content"`
	Type          MessageType `json:"type"`
	CharacterName string      `json:"characterName,omitempty"`
	Raw           string      `json:"raw,omitempty"`
}
