package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Platform identifies a supported capture source.
type Platform string

const (
	PlatformRoll20    Platform = "roll20"
	PlatformDNDBeyond Platform = "dndbeyond"
	PlatformDemiplane Platform = "demiplane"
)

// GameSystem identifies the tabletop ruleset in effect for a roll.
type GameSystem string

const (
	SystemGeneric   GameSystem = "generic"
	SystemCypher    GameSystem = "cypher"
	SystemDnd5e     GameSystem = "dnd5e"
	SystemDnd5e2024 GameSystem = "dnd5e-2024"
	SystemPF2e      GameSystem = "pf2e"
	SystemCoC       GameSystem = "coc"
	SystemSWADE     GameSystem = "swade"
)

// RollType categorizes what a roll was made for.
type RollType string

const (
	RollAttack     RollType = "attack"
	RollDamage     RollType = "damage"
	RollSave       RollType = "save"
	RollInitiative RollType = "initiative"
	RollSkill      RollType = "skill"
	RollAbility    RollType = "ability"
	RollCheck      RollType = "check"
	RollCustom     RollType = "custom"
)

// CypherEffect is the special-result tier unique to the Cypher system.
type CypherEffect string

const (
	EffectMinor       CypherEffect = "minor"
	EffectMajor       CypherEffect = "major"
	EffectGMIntrusion CypherEffect = "gm-intrusion"
)

// Roller identifies who made a roll or sent a message.
type Roller struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Roll is the canonical dice-roll event. Immutable once created.
//
// Total is the total as reported by the host platform when it could be
// observed; it is not guaranteed to equal sum(Results) plus modifiers.
type Roll struct {
	ID            string       `json:"id"`
	Platform      Platform     `json:"platform"`
	GameSystem    GameSystem   `json:"gameSystem"`
	Timestamp     time.Time    `json:"timestamp"`
	Roller        Roller       `json:"roller"`
	Expression    string       `json:"expression"`
	Results       []int        `json:"results"`
	Total         int          `json:"total"`
	Label         string       `json:"label,omitempty"`
	CharacterName string       `json:"characterName,omitempty"`
	RollType      RollType     `json:"rollType"`
	Critical      bool         `json:"critical"`
	Fumble        bool         `json:"fumble"`
	CypherEffect  CypherEffect `json:"cypherEffect,omitempty"`
	Raw           string       `json:"raw,omitempty"`
}

// NewEventID builds an opaque globally-unique event id embedding the
// source platform and capture time.
func NewEventID(platform Platform) string {
	return fmt.Sprintf("%s-%d-%s", platform, time.Now().UnixMilli(), uuid.NewString()[:8])
}
