package extract

import (
	"strconv"
	"strings"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/gamesystem"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/normalize"
)

// Demiplane captures from Demiplane Nexus character sheets. The sheet
// renders roll results into a dice history drawer with reasonably
// structured data attributes, so the regex tier is rarely reached.
type Demiplane struct{}

func NewDemiplane() *Demiplane { return &Demiplane{} }

func (d *Demiplane) Platform() models.Platform { return models.PlatformDemiplane }

func (d *Demiplane) Matches(pageURL string) bool {
	return strings.Contains(pageURL, "demiplane.com")
}

func (d *Demiplane) Signals(frag Fragment) gamesystem.Signals {
	sig := gamesystem.Signals{}
	root := parseHTML(frag.HTML)
	if root == nil {
		return sig
	}
	// Nexus URLs and sheet wrappers both name the licensed system.
	sig.ExplicitID = firstNonEmpty(
		func() string { return attr(findByAttr(root, "data-game-system"), "data-game-system") },
		func() string { return nexusSystemFromURL(frag.URL) },
	)
	sig.PageMarkers = classes(root)
	return sig
}

// nexusSystemFromURL pulls the system slug out of a
// app.demiplane.com/nexus/<system>/... URL.
func nexusSystemFromURL(pageURL string) string {
	const marker = "/nexus/"
	i := strings.Index(pageURL, marker)
	if i < 0 {
		return ""
	}
	rest := pageURL[i+len(marker):]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

func (d *Demiplane) ExtractRoll(frag Fragment) (normalize.RawRoll, bool) {
	root := parseHTML(frag.HTML)
	if root == nil {
		return normalize.RawRoll{}, false
	}
	entry := findByClass(root, "dice-roll-result")
	if entry == nil {
		entry = findByClass(root, "dice-history-item")
	}
	if entry == nil {
		return normalize.RawRoll{}, false
	}

	var results []int
	for _, node := range findAllByClass(entry, "die-result") {
		if v, err := strconv.Atoi(text(node)); err == nil {
			results = append(results, v)
		}
	}

	raw := normalize.RawRoll{
		Platform: models.PlatformDemiplane,
		Expression: firstNonEmpty(
			func() string { return attr(entry, "data-dice-notation") },
			func() string { return text(findByClass(entry, "dice-notation")) },
		),
		Results: results,
		Total: firstNonEmpty(
			func() string { return attr(entry, "data-roll-total") },
			func() string { return text(findByClass(entry, "roll-total")) },
			func() string {
				if m := trailingInt.FindStringSubmatch(text(entry)); m != nil {
					return m[1]
				}
				return ""
			},
		),
		RollerName: firstNonEmpty(
			func() string { return attr(entry, "data-roller") },
			func() string { return text(findByClass(entry, "roller-name")) },
		),
		Label: firstNonEmpty(
			func() string { return attr(entry, "data-roll-name") },
			func() string { return text(findByClass(entry, "roll-name")) },
		),
		TypeHint:      attr(entry, "data-roll-type"),
		CharacterName: text(findByClass(root, "character-name")),
		Raw:           frag.HTML,
		Timestamp:     frag.ObservedAt,
	}

	// The sheet renders its own special-result flair.
	if findByClass(entry, "critical-success") != nil {
		t := true
		raw.HostCritical = &t
	}
	if findByClass(entry, "critical-failure") != nil {
		t := true
		raw.HostFumble = &t
	}

	if raw.Expression == "" && raw.Total == "" && len(results) == 0 {
		return normalize.RawRoll{}, false
	}
	return raw, true
}

func (d *Demiplane) ExtractMessage(frag Fragment) (models.Message, bool) {
	root := parseHTML(frag.HTML)
	if root == nil {
		return models.Message{}, false
	}
	entry := findByClass(root, "game-log-entry")
	if entry == nil {
		return models.Message{}, false
	}

	content := firstNonEmpty(
		func() string { return text(findByClass(entry, "log-entry-text")) },
		func() string { return text(entry) },
	)
	if content == "" {
		return models.Message{}, false
	}

	msgType := models.MessageChat
	if hasClass(entry, "system-entry") {
		msgType = models.MessageSystem
	}

	return models.Message{
		ID:        models.NewEventID(models.PlatformDemiplane),
		Platform:  models.PlatformDemiplane,
		Timestamp: frag.ObservedAt,
		Sender: models.Roller{
			ID:   attr(entry, "data-user-id"),
			Name: text(findByClass(entry, "log-entry-author")),
		},
		Content: content,
		Type:    msgType,
		Raw:     frag.HTML,
	}, true
}

func (d *Demiplane) ExtractSession(frag Fragment) (models.SessionInfo, bool) {
	root := parseHTML(frag.HTML)
	if root == nil {
		return models.SessionInfo{}, false
	}

	info := models.SessionInfo{Platform: models.PlatformDemiplane}
	info.GameID = attr(findByAttr(root, "data-campaign-id"), "data-campaign-id")
	info.GameName = firstNonEmpty(
		func() string { return text(findByClass(root, "campaign-header-title")) },
		func() string { return attr(findByAttr(root, "data-campaign-name"), "data-campaign-name") },
	)

	for _, node := range findAllByClass(root, "campaign-member") {
		p := models.Participant{
			ID:   attr(node, "data-user-id"),
			Name: text(findByClass(node, "member-name")),
			IsGM: hasClass(node, "game-master"),
		}
		if p.ID == "" && p.Name == "" {
			continue
		}
		info.Players = append(info.Players, p)
		if hasClass(node, "current-user") {
			info.CurrentUser = p
		}
	}

	if info.GameID == "" && info.GameName == "" && len(info.Players) == 0 {
		return models.SessionInfo{}, false
	}
	return info, true
}
