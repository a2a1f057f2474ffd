package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/gamesystem"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/normalize"
)

// Roll20 captures from the Roll20 virtual tabletop. Roll20 exposes a
// native chat:message hook; hook-sourced records take precedence over
// the DOM change stream, which independently renders the same events.
type Roll20 struct{}

func NewRoll20() *Roll20 { return &Roll20{} }

func (r *Roll20) Platform() models.Platform { return models.PlatformRoll20 }

func (r *Roll20) Matches(pageURL string) bool {
	return strings.Contains(pageURL, "roll20.net")
}

// roll20Hook is the shape of a chat:message hook payload.
type roll20Hook struct {
	Type         string `json:"type"`
	Who          string `json:"who"`
	PlayerID     string `json:"playerid"`
	Content      string `json:"content"`
	OrigRoll     string `json:"origRoll"`
	RollTemplate string `json:"rolltemplate"`
}

// roll20RollContent is the JSON body of a rollresult hook's content.
type roll20RollContent struct {
	Total json.Number `json:"total"`
	Rolls []struct {
		Sides   int `json:"sides"`
		Results []struct {
			V int `json:"v"`
		} `json:"results"`
	} `json:"rolls"`
}

func (r *Roll20) Signals(frag Fragment) gamesystem.Signals {
	sig := gamesystem.Signals{}
	if frag.Kind == FragmentHook {
		var hook roll20Hook
		if json.Unmarshal(frag.Hook, &hook) == nil {
			sig.TemplateHint = hook.RollTemplate
		}
		return sig
	}
	root := parseHTML(frag.HTML)
	if root == nil {
		return sig
	}
	if n := findByAttr(root, "data-gamesystem"); n != nil {
		sig.ExplicitID = attr(n, "data-gamesystem")
	}
	sig.PageMarkers = classes(root)
	if _, name := findByClassPrefix(root, "rolltemplate-"); name != "" {
		sig.TemplateHint = strings.TrimPrefix(name, "rolltemplate-")
	}
	return sig
}

func (r *Roll20) ExtractRoll(frag Fragment) (normalize.RawRoll, bool) {
	if frag.Kind == FragmentHook {
		return r.rollFromHook(frag)
	}
	return r.rollFromDOM(frag)
}

func (r *Roll20) rollFromHook(frag Fragment) (normalize.RawRoll, bool) {
	var hook roll20Hook
	if err := json.Unmarshal(frag.Hook, &hook); err != nil || hook.Type != "rollresult" {
		return normalize.RawRoll{}, false
	}

	var content roll20RollContent
	_ = json.Unmarshal([]byte(hook.Content), &content)

	var results []int
	for _, group := range content.Rolls {
		for _, die := range group.Results {
			results = append(results, die.V)
		}
	}

	return normalize.RawRoll{
		Platform:   models.PlatformRoll20,
		Expression: hook.OrigRoll,
		Results:    results,
		Total:      content.Total.String(),
		RollerID:   hook.PlayerID,
		RollerName: strings.TrimSuffix(hook.Who, " (GM)"),
		TypeHint:   hook.RollTemplate,
		Raw:        string(frag.Hook),
		Timestamp:  frag.ObservedAt,
	}, true
}

var (
	rollingExpr  = regexp.MustCompile(`(?i)rolling ([^=]+?)(?:=|$)`)
	parenResults = regexp.MustCompile(`\((\d+)\)`)
	trailingInt  = regexp.MustCompile(`(-?\d+)\s*$`)
)

func (r *Roll20) rollFromDOM(frag Fragment) (normalize.RawRoll, bool) {
	root := parseHTML(frag.HTML)
	if root == nil {
		return normalize.RawRoll{}, false
	}

	// Roll markup is a .message carrying either a rollresult class or
	// an inline roll child; plain chat has neither.
	message := findByClass(root, "message")
	if message == nil {
		return normalize.RawRoll{}, false
	}
	inline := findByClass(root, "inlinerollresult")
	isRoll := hasClass(message, "rollresult") || inline != nil
	if !isRoll {
		return normalize.RawRoll{}, false
	}

	title := attr(inline, "title")

	// Each field independently walks its fallback tiers: structured
	// attribute, class-scoped child, then regex over rendered text.
	expression := firstNonEmpty(
		func() string { return attr(message, "data-origroll") },
		func() string { return text(findByClass(root, "formula")) },
		func() string {
			if m := rollingExpr.FindStringSubmatch(title); m != nil {
				return m[1]
			}
			return ""
		},
	)

	totalText := firstNonEmpty(
		func() string { return attr(message, "data-total") },
		func() string { return text(findByClass(root, "rolled")) },
		func() string {
			if inline == nil {
				return ""
			}
			return text(inline)
		},
		func() string {
			if m := trailingInt.FindStringSubmatch(text(message)); m != nil {
				return m[1]
			}
			return ""
		},
	)

	var results []int
	for _, m := range parenResults.FindAllStringSubmatch(title, -1) {
		if v, err := strconv.Atoi(m[1]); err == nil {
			results = append(results, v)
		}
	}
	if len(results) == 0 {
		for _, die := range findAllByClass(root, "diceroll") {
			if v, err := strconv.Atoi(text(findByClass(die, "didroll"))); err == nil {
				results = append(results, v)
			}
		}
	}

	rollerName := firstNonEmpty(
		func() string { return strings.TrimSuffix(text(findByClass(root, "by")), ":") },
		func() string { return attr(message, "data-who") },
	)

	raw := normalize.RawRoll{
		Platform:      models.PlatformRoll20,
		Expression:    expression,
		Results:       results,
		Total:         totalText,
		RollerID:      playerIDFromClasses(message),
		RollerName:    rollerName,
		Label:         text(findByClass(root, "sheet-label")),
		CharacterName: text(findByClass(root, "sheet-charname")),
		Raw:           frag.HTML,
		Timestamp:     frag.ObservedAt,
	}

	// Roll20 renders its own crit/fumble judgement as marker classes on
	// the inline result; that markup reflects crit-range overrides the
	// normalizer cannot re-derive.
	if inline != nil {
		switch {
		case hasClass(inline, "fullcrit"), hasClass(inline, "importantroll") && strings.Contains(title, "20"):
			t := true
			raw.HostCritical = &t
		case hasClass(inline, "fullfail"):
			t := true
			raw.HostFumble = &t
		}
	}

	if expression == "" && totalText == "" && len(results) == 0 {
		return normalize.RawRoll{}, false
	}
	return raw, true
}

func (r *Roll20) ExtractMessage(frag Fragment) (models.Message, bool) {
	if frag.Kind == FragmentHook {
		return r.messageFromHook(frag)
	}

	root := parseHTML(frag.HTML)
	if root == nil {
		return models.Message{}, false
	}
	message := findByClass(root, "message")
	if message == nil {
		return models.Message{}, false
	}

	msgType := models.MessageChat
	switch {
	case hasClass(message, "emote"):
		msgType = models.MessageEmote
	case hasClass(message, "whisper"):
		msgType = models.MessageWhisper
	case hasClass(message, "system"):
		msgType = models.MessageSystem
	}

	sender := strings.TrimSuffix(text(findByClass(root, "by")), ":")
	content := firstNonEmpty(
		func() string { return text(findByClass(root, "content")) },
		func() string { return strings.TrimPrefix(text(message), sender+":") },
	)
	if content == "" {
		return models.Message{}, false
	}

	return models.Message{
		ID:        models.NewEventID(models.PlatformRoll20),
		Platform:  models.PlatformRoll20,
		Timestamp: frag.ObservedAt,
		Sender:    models.Roller{ID: playerIDFromClasses(message), Name: sender},
		Content:   strings.TrimSpace(content),
		Type:      msgType,
		Raw:       frag.HTML,
	}, true
}

func (r *Roll20) messageFromHook(frag Fragment) (models.Message, bool) {
	var hook roll20Hook
	if err := json.Unmarshal(frag.Hook, &hook); err != nil {
		return models.Message{}, false
	}
	var msgType models.MessageType
	switch hook.Type {
	case "general":
		msgType = models.MessageChat
	case "emote":
		msgType = models.MessageEmote
	case "whisper":
		msgType = models.MessageWhisper
	default:
		return models.Message{}, false
	}
	if hook.Content == "" {
		return models.Message{}, false
	}
	return models.Message{
		ID:        models.NewEventID(models.PlatformRoll20),
		Platform:  models.PlatformRoll20,
		Timestamp: frag.ObservedAt,
		Sender:    models.Roller{ID: hook.PlayerID, Name: strings.TrimSuffix(hook.Who, " (GM)")},
		Content:   hook.Content,
		Type:      msgType,
		Raw:       string(frag.Hook),
	}, true
}

func (r *Roll20) ExtractSession(frag Fragment) (models.SessionInfo, bool) {
	root := parseHTML(frag.HTML)
	if root == nil {
		return models.SessionInfo{}, false
	}

	info := models.SessionInfo{Platform: models.PlatformRoll20}
	info.GameID = firstNonEmpty(
		func() string { return attr(findByAttr(root, "data-campaignid"), "data-campaignid") },
	)
	info.GameName = firstNonEmpty(
		func() string { return text(findByClass(root, "campaign-title")) },
		func() string { return attr(findByAttr(root, "data-campaignname"), "data-campaignname") },
	)

	for _, node := range findAllByClass(root, "player") {
		p := models.Participant{
			ID:   attr(node, "data-playerid"),
			Name: text(findByClass(node, "playername")),
			IsGM: hasClass(node, "gm"),
		}
		if p.ID == "" && p.Name == "" {
			continue
		}
		info.Players = append(info.Players, p)
		if hasClass(node, "currentplayer") {
			info.CurrentUser = p
		}
	}

	if info.GameID == "" && info.GameName == "" && len(info.Players) == 0 {
		return models.SessionInfo{}, false
	}
	return info, true
}

// playerIDFromClasses reads the player id Roll20 encodes as a
// player--<id> marker class.
func playerIDFromClasses(message *html.Node) string {
	if message == nil {
		return ""
	}
	for _, c := range strings.Fields(attr(message, "class")) {
		if strings.HasPrefix(c, "player--") {
			return strings.TrimPrefix(c, "player--")
		}
	}
	return ""
}
