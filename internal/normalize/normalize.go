// Package normalize turns raw platform-specific roll records into
// canonical Roll entities, applying game-system special-result rules.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/dice"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
)

// RawRoll is a platform-specific roll record as observed by an
// extractor, before normalization. Fields are best-effort: any of them
// may be empty or malformed.
type RawRoll struct {
	Platform      models.Platform
	Expression    string
	Results       []int
	Total         string // as rendered by the host; non-numeric degrades
	RollerID      string
	RollerName    string
	Label         string
	CharacterName string
	TypeHint      string
	// HostCritical/HostFumble carry an explicit crit/fumble signal from
	// the host platform's own rendered markup, when one was present.
	HostCritical *bool
	HostFumble   *bool
	Raw          string
	Timestamp    time.Time
}

// Roll normalizes raw into a canonical Roll for the given game system.
// It never fails: malformed numeric fields degrade to zero or empty and
// a best-effort Roll is always returned.
//
// When the host markup carried its own crit/fumble marker, that signal
// overrides the value computed from the special-result table. The host
// may be applying house rules or modifiers this code cannot see, so
// computed classification is a fallback, not the source of truth.
func Roll(raw RawRoll, system models.GameSystem) models.Roll {
	expression := Clean(raw.Platform, raw.Expression)
	groups := dice.Clamp(dice.Parse(expression), dice.DefaultMaxGroups)
	results := sanitizeResults(groups, raw.Results)

	critical, fumble, effect := false, false, models.CypherEffect("")
	if face, ok := primaryD20Face(groups, raw.Results); ok {
		critical, fumble, effect = specialResult(system, face)
	}

	if raw.HostCritical != nil {
		critical = *raw.HostCritical
	}
	if raw.HostFumble != nil {
		fumble = *raw.HostFumble
	}
	// A cypher fumble always carries a GM intrusion, and minor/major
	// effects never accompany one.
	if system == models.SystemCypher {
		if fumble {
			effect = models.EffectGMIntrusion
		} else if effect == models.EffectGMIntrusion {
			effect = ""
		}
	}

	timestamp := raw.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	return models.Roll{
		ID:            models.NewEventID(raw.Platform),
		Platform:      raw.Platform,
		GameSystem:    system,
		Timestamp:     timestamp,
		Roller:        models.Roller{ID: raw.RollerID, Name: raw.RollerName},
		Expression:    expression,
		Results:       results,
		Total:         total(raw.Total, groups, results),
		Label:         raw.Label,
		CharacterName: raw.CharacterName,
		RollType:      rollType(raw.TypeHint, raw.Label),
		Critical:      critical,
		Fumble:        fumble,
		CypherEffect:  effect,
		Raw:           raw.Raw,
	}
}

// Roll20 inline rolls carry operator suffixes that are valid on the
// platform but are not dice notation: keep/drop, rerolls, exploding
// dice, crit range overrides, and target-number comparisons.
var roll20Noise = []*regexp.Regexp{
	regexp.MustCompile(`cs[<>]?=?\d+`),
	regexp.MustCompile(`cf[<>]?=?\d+`),
	regexp.MustCompile(`k(?:[hl]\d*|\d+)`),
	regexp.MustCompile(`ro?[<>=]*\d+`),
	regexp.MustCompile(`![!p]?\d*`),
	regexp.MustCompile(`[<>]=?\d+`),
	regexp.MustCompile(`\[[^\]]*\]`), // inline labels
}

var spaces = regexp.MustCompile(`\s+`)

// Clean strips platform-specific operator noise from a raw expression
// so the dice parser only sees plain notation. Cleaning happens before
// parsing, and is a no-op for text that carries no noise.
func Clean(platform models.Platform, expr string) string {
	expr = strings.ToLower(strings.TrimSpace(expr))
	switch platform {
	case models.PlatformRoll20:
		for _, re := range roll20Noise {
			expr = re.ReplaceAllString(expr, "")
		}
	case models.PlatformDNDBeyond, models.PlatformDemiplane:
		// These hosts render plain notation; only whitespace differs.
	}
	return strings.TrimSpace(spaces.ReplaceAllString(expr, " "))
}

// sanitizeResults keeps only face values that are plausible for the
// parsed groups: positive, and within the side count of the group the
// value aligns with. With no parsed groups only positivity is checked.
func sanitizeResults(groups []dice.Group, observed []int) []int {
	results := make([]int, 0, len(observed))
	if len(groups) == 0 {
		for _, v := range observed {
			if v >= 1 {
				results = append(results, v)
			}
		}
		return results
	}
	i := 0
	for _, g := range groups {
		for n := 0; n < g.Count && i < len(observed); n++ {
			v := observed[i]
			i++
			if v >= 1 && v <= g.Sides {
				results = append(results, v)
			}
		}
	}
	// Values past the parsed groups have unknown bounds.
	for ; i < len(observed); i++ {
		if observed[i] >= 1 {
			results = append(results, observed[i])
		}
	}
	return results
}

// primaryD20Face returns the observed face of the first die in the
// primary d20 group, when one exists and a result was observed.
func primaryD20Face(groups []dice.Group, observed []int) (int, bool) {
	idx := dice.PrimaryD20(groups)
	if idx < 0 || len(observed) == 0 {
		return 0, false
	}
	offset := 0
	for i := 0; i < idx; i++ {
		offset += groups[i].Count
	}
	// The d20 group's results were not observed; a face from an earlier
	// group must not stand in for it.
	if offset >= len(observed) {
		return 0, false
	}
	face := observed[offset]
	if face < 1 || face > 20 {
		return 0, false
	}
	return face, true
}

// specialResult applies the per-system special-result table to the
// primary d20 face.
func specialResult(system models.GameSystem, face int) (critical, fumble bool, effect models.CypherEffect) {
	switch system {
	case models.SystemCypher:
		switch {
		case face == 1:
			fumble = true
			effect = models.EffectGMIntrusion
		case face == 17:
			effect = models.EffectMinor
		case face == 18 || face == 19:
			effect = models.EffectMajor
		case face == 20:
			critical = true
			effect = models.EffectMajor
		}
	case models.SystemCoC:
		// No auto-crit rule on 20.
		fumble = face == 1
	default:
		// dnd5e, dnd5e-2024, pf2e, swade, generic.
		critical = face == 20
		fumble = face == 1
	}
	return critical, fumble, effect
}

// total parses the host-reported total, falling back to the sum of the
// sanitized results plus modifiers when the host value is unusable.
func total(reported string, groups []dice.Group, results []int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(reported)); err == nil {
		return n
	}
	if len(results) == 0 {
		return 0
	}
	sum := 0
	for _, v := range results {
		sum += v
	}
	for _, g := range groups {
		sum += g.Modifier
	}
	return sum
}

var typeHints = map[string]models.RollType{
	"attack":     models.RollAttack,
	"damage":     models.RollDamage,
	"save":       models.RollSave,
	"initiative": models.RollInitiative,
	"skill":      models.RollSkill,
	"ability":    models.RollAbility,
	"check":      models.RollCheck,
	"custom":     models.RollCustom,
}

// Ordered so "saving throw (attack)" style labels resolve stably.
var labelKeywords = []struct {
	keyword string
	typ     models.RollType
}{
	{"attack", models.RollAttack},
	{"damage", models.RollDamage},
	{"saving", models.RollSave},
	{"save", models.RollSave},
	{"initiative", models.RollInitiative},
	{"skill", models.RollSkill},
	{"ability", models.RollAbility},
	{"check", models.RollCheck},
}

func rollType(hint, label string) models.RollType {
	if t, ok := typeHints[strings.ToLower(strings.TrimSpace(hint))]; ok {
		return t
	}
	l := strings.ToLower(label)
	for _, entry := range labelKeywords {
		if strings.Contains(l, entry.keyword) {
			return entry.typ
		}
	}
	return models.RollCustom
}
