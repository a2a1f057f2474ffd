// Package extract implements the per-platform capture strategies that
// turn observed page content into raw roll, message, and session
// records.
package extract

import (
	"math/rand"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/gamesystem"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/normalize"
)

// Extractor is the capture strategy for one platform. An extractor is
// selected once per page based on the page URL, not re-evaluated per
// event. All Extract methods are best-effort: they report ok=false
// instead of failing when the expected markup is absent, and each field
// is sourced from a prioritized list of fallback locations
// independently of the other fields.
type Extractor interface {
	Platform() models.Platform
	// Matches reports whether this extractor handles pages at pageURL.
	Matches(pageURL string) bool
	// Signals gathers game-system classification signals from frag.
	Signals(frag Fragment) gamesystem.Signals
	// ExtractRoll attempts roll extraction. Callers try this before
	// ExtractMessage because roll markup is frequently a superset of
	// message markup.
	ExtractRoll(frag Fragment) (normalize.RawRoll, bool)
	// ExtractMessage attempts chat-message extraction.
	ExtractMessage(frag Fragment) (models.Message, bool)
	// ExtractSession attempts session-info extraction from a snapshot.
	ExtractSession(frag Fragment) (models.SessionInfo, bool)
}

// All returns every platform extractor. The rng backs the
// simulate-on-observe fallback for notation-only sources, and
// maxDieGroups bounds how much of a notation that fallback will roll.
func All(rng *rand.Rand, maxDieGroups int) []Extractor {
	return []Extractor{
		NewRoll20(),
		NewDNDBeyond(rng, maxDieGroups),
		NewDemiplane(),
	}
}

// ForURL selects the extractor for a page, or ok=false when the page is
// not a supported platform.
func ForURL(pageURL string, rng *rand.Rand, maxDieGroups int) (Extractor, bool) {
	for _, e := range All(rng, maxDieGroups) {
		if e.Matches(pageURL) {
			return e, true
		}
	}
	return nil, false
}

// PlatformForURL reports which supported platform serves pageURL. It is
// the allowlist check used when routing inbound events to pages.
func PlatformForURL(pageURL string) (models.Platform, bool) {
	e, ok := ForURL(pageURL, nil, 0)
	if !ok {
		return "", false
	}
	return e.Platform(), true
}
