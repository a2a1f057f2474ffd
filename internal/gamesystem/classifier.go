// Package gamesystem infers the active tabletop ruleset from whatever
// signals a platform exposes.
package gamesystem

import (
	"strings"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
)

// Signals carries everything a platform exposed that can identify the
// ruleset. Any field may be empty.
type Signals struct {
	// ExplicitID is a system identifier from the host page's own data
	// model, e.g. a campaign setting or sheet attribute.
	ExplicitID string
	// PageMarkers are structural or CSS-class markers observed on the
	// page, e.g. sheet-type indicators.
	PageMarkers []string
	// TemplateHint is text from rendered roll-template output, e.g. a
	// template named for a ruleset.
	TemplateHint string
}

// explicitIDs maps host data-model identifiers to systems.
var explicitIDs = map[string]models.GameSystem{
	"cypher":          models.SystemCypher,
	"cyphersystem":    models.SystemCypher,
	"numenera":        models.SystemCypher,
	"dnd5e":           models.SystemDnd5e,
	"5e":              models.SystemDnd5e,
	"dnd2024":         models.SystemDnd5e2024,
	"dnd5e-2024":      models.SystemDnd5e2024,
	"pf2e":            models.SystemPF2e,
	"pathfinder2e":    models.SystemPF2e,
	"coc":             models.SystemCoC,
	"call-of-cthulhu": models.SystemCoC,
	"swade":           models.SystemSWADE,
	"savage-worlds":   models.SystemSWADE,
}

// markerSystems maps sheet-type page markers to systems. Checked in
// order so marker precedence is stable.
var markerSystems = []struct {
	marker string
	system models.GameSystem
}{
	{"sheet-cypher", models.SystemCypher},
	{"cypher-sheet", models.SystemCypher},
	{"sheet-dnd5e", models.SystemDnd5e},
	{"charsheet-5e", models.SystemDnd5e},
	{"sheet-pf2e", models.SystemPF2e},
	{"sheet-coc", models.SystemCoC},
	{"sheet-swade", models.SystemSWADE},
}

// templateHints maps substrings of rendered roll-template text to
// systems. Checked in order.
var templateHints = []struct {
	fragment string
	system   models.GameSystem
}{
	{"cypher", models.SystemCypher},
	{"numenera", models.SystemCypher},
	{"dnd5e", models.SystemDnd5e},
	{"5e-", models.SystemDnd5e},
	{"pf2e", models.SystemPF2e},
	{"pathfinder", models.SystemPF2e},
	{"cthulhu", models.SystemCoC},
	{"swade", models.SystemSWADE},
	{"savage", models.SystemSWADE},
}

// Classify resolves the game system from sig. Precedence, first match
// wins: explicit host identifier, page markers, template hints, then
// the generic fallback. Callers re-run this per extraction event
// because character-sheet switches can change the effective system
// mid-session.
func Classify(sig Signals) models.GameSystem {
	if id := normalize(sig.ExplicitID); id != "" {
		if system, ok := explicitIDs[id]; ok {
			return system
		}
	}

	for _, marker := range sig.PageMarkers {
		m := normalize(marker)
		for _, entry := range markerSystems {
			if strings.Contains(m, entry.marker) {
				return entry.system
			}
		}
	}

	if hint := normalize(sig.TemplateHint); hint != "" {
		for _, entry := range templateHints {
			if strings.Contains(hint, entry.fragment) {
				return entry.system
			}
		}
	}

	return models.SystemGeneric
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
