package extract

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/dice"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/gamesystem"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/normalize"
)

// DNDBeyond captures from the D&D Beyond reference site. Pages often
// render clickable dice notation without a rolled outcome; in that case
// the extractor simulates the indicated dice itself so every captured
// roll carries results and a total.
type DNDBeyond struct {
	rng       *rand.Rand
	maxGroups int
}

// NewDNDBeyond creates the extractor. maxDieGroups bounds how many dice
// groups the notation-only tier will simulate; values below one use the
// default bound.
func NewDNDBeyond(rng *rand.Rand, maxDieGroups int) *DNDBeyond {
	return &DNDBeyond{rng: rng, maxGroups: maxDieGroups}
}

func (d *DNDBeyond) Platform() models.Platform { return models.PlatformDNDBeyond }

func (d *DNDBeyond) Matches(pageURL string) bool {
	return strings.Contains(pageURL, "dndbeyond.com")
}

func (d *DNDBeyond) Signals(frag Fragment) gamesystem.Signals {
	sig := gamesystem.Signals{}
	root := parseHTML(frag.HTML)
	if root == nil {
		return sig
	}
	// The whole site is one ruleset; the sheet edition attribute is the
	// only explicit signal that varies.
	sig.ExplicitID = firstNonEmpty(
		func() string { return attr(findByAttr(root, "data-rule-edition"), "data-rule-edition") },
		func() string { return "dnd5e" },
	)
	sig.PageMarkers = classes(root)
	return sig
}

func (d *DNDBeyond) ExtractRoll(frag Fragment) (normalize.RawRoll, bool) {
	root := parseHTML(frag.HTML)
	if root == nil {
		return normalize.RawRoll{}, false
	}

	// Tier one: the dice toolbar rendered an actual roll.
	if result := findByClass(root, "dice_result"); result != nil {
		var results []int
		for _, node := range findAllByClass(root, "dice_result__die") {
			if v, err := strconv.Atoi(text(node)); err == nil {
				results = append(results, v)
			}
		}
		raw := normalize.RawRoll{
			Platform: models.PlatformDNDBeyond,
			Expression: firstNonEmpty(
				func() string { return attr(result, "data-dicenotation") },
				func() string { return text(findByClass(root, "dice_result__info__dicenotation")) },
			),
			Results: results,
			Total: firstNonEmpty(
				func() string { return attr(result, "data-rolltotal") },
				func() string { return text(findByClass(root, "dice_result__total")) },
			),
			RollerName: firstNonEmpty(
				func() string { return text(findByClass(root, "dice_result__info__rolldetail")) },
			),
			Label: text(findByClass(root, "dice_result__info__title")),
			TypeHint: firstNonEmpty(
				func() string { return attr(result, "data-rolltype") },
				func() string { return text(findByClass(root, "dice_result__rolltype")) },
			),
			CharacterName: text(findByClass(root, "ddbc-character-name")),
			Raw:           frag.HTML,
			Timestamp:     frag.ObservedAt,
		}
		if raw.Expression == "" && raw.Total == "" {
			return normalize.RawRoll{}, false
		}
		return raw, true
	}

	// Tier two: static clickable notation with no outcome. Simulate the
	// indicated dice so downstream consumers still get a total.
	notation := firstNonEmpty(
		func() string { return attr(findByAttr(root, "data-dicenotation"), "data-dicenotation") },
		func() string { return text(findByClass(root, "integrated-dice__container")) },
	)
	// The notation is page-supplied; clamp it before simulating so a
	// claimed million-die roll cannot balloon the results slice.
	groups := dice.Clamp(dice.Parse(notation), d.maxGroups)
	if len(groups) == 0 {
		return normalize.RawRoll{}, false
	}
	results, total := dice.Simulate(groups, d.rng)

	return normalize.RawRoll{
		Platform:      models.PlatformDNDBeyond,
		Expression:    notation,
		Results:       results,
		Total:         strconv.Itoa(total),
		Label:         text(findByClass(root, "ddbc-tooltip")),
		CharacterName: text(findByClass(root, "ddbc-character-name")),
		Raw:           frag.HTML,
		Timestamp:     frag.ObservedAt,
	}, true
}

// ExtractMessage reports false for most fragments: the reference site
// has no chat surface, only the dice-log sidebar notices.
func (d *DNDBeyond) ExtractMessage(frag Fragment) (models.Message, bool) {
	root := parseHTML(frag.HTML)
	if root == nil {
		return models.Message{}, false
	}
	notice := findByClass(root, "noty_text")
	if notice == nil {
		return models.Message{}, false
	}
	content := text(notice)
	if content == "" {
		return models.Message{}, false
	}
	return models.Message{
		ID:        models.NewEventID(models.PlatformDNDBeyond),
		Platform:  models.PlatformDNDBeyond,
		Timestamp: frag.ObservedAt,
		Sender:    models.Roller{Name: "D&D Beyond"},
		Content:   content,
		Type:      models.MessageSystem,
		Raw:       frag.HTML,
	}, true
}

func (d *DNDBeyond) ExtractSession(frag Fragment) (models.SessionInfo, bool) {
	root := parseHTML(frag.HTML)
	if root == nil {
		return models.SessionInfo{}, false
	}

	info := models.SessionInfo{Platform: models.PlatformDNDBeyond}
	info.GameID = attr(findByAttr(root, "data-campaign-id"), "data-campaign-id")
	info.GameName = firstNonEmpty(
		func() string { return text(findByClass(root, "ddbc-campaign-summary__name")) },
		func() string { return text(findByClass(root, "campaign-name")) },
	)

	name := firstNonEmpty(
		func() string { return text(findByClass(root, "user-interactions-profile-nickname")) },
		func() string { return attr(findByAttr(root, "data-username"), "data-username") },
	)
	if name != "" {
		info.CurrentUser = models.Participant{Name: name}
	}

	for _, node := range findAllByClass(root, "ddbc-campaign-summary__character") {
		p := models.Participant{
			ID:   attr(node, "data-user-id"),
			Name: text(findByClass(node, "ddbc-campaign-summary__character-username")),
		}
		if p.ID != "" || p.Name != "" {
			info.Players = append(info.Players, p)
		}
	}

	if info.GameID == "" && info.GameName == "" && name == "" {
		return models.SessionInfo{}, false
	}
	return info, true
}
