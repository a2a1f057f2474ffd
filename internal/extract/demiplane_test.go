package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/gamesystem"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
)

func TestDemiplaneRollFromDataAttributes(t *testing.T) {
	d := NewDemiplane()
	frag := domFragment(`<div class="dice-roll-result" data-dice-notation="1d20+3" data-roll-total="17"
		data-roller="Bob" data-roll-name="Perception" data-roll-type="skill">
		<span class="die-result">14</span>
	</div>`)

	raw, ok := d.ExtractRoll(frag)
	require.True(t, ok)
	assert.Equal(t, "1d20+3", raw.Expression)
	assert.Equal(t, "17", raw.Total)
	assert.Equal(t, []int{14}, raw.Results)
	assert.Equal(t, "Bob", raw.RollerName)
	assert.Equal(t, "Perception", raw.Label)
	assert.Equal(t, "skill", raw.TypeHint)
}

func TestDemiplaneRollClassFallbacks(t *testing.T) {
	d := NewDemiplane()
	frag := domFragment(`<div class="dice-history-item">
		<span class="dice-notation">2d6</span>
		<span class="roll-total">7</span>
		<span class="roller-name">Bob</span>
	</div>`)

	raw, ok := d.ExtractRoll(frag)
	require.True(t, ok)
	assert.Equal(t, "2d6", raw.Expression)
	assert.Equal(t, "7", raw.Total)
	assert.Equal(t, "Bob", raw.RollerName)
}

func TestDemiplaneHostSpecialMarkers(t *testing.T) {
	d := NewDemiplane()
	frag := domFragment(`<div class="dice-roll-result" data-dice-notation="1d20" data-roll-total="20">
		<span class="critical-success">Critical!</span>
	</div>`)

	raw, ok := d.ExtractRoll(frag)
	require.True(t, ok)
	require.NotNil(t, raw.HostCritical)
	assert.True(t, *raw.HostCritical)

	frag = domFragment(`<div class="dice-roll-result" data-dice-notation="1d20" data-roll-total="1">
		<span class="critical-failure">Fumble!</span>
	</div>`)
	raw, ok = d.ExtractRoll(frag)
	require.True(t, ok)
	require.NotNil(t, raw.HostFumble)
	assert.True(t, *raw.HostFumble)
}

func TestDemiplaneNoRollMarkup(t *testing.T) {
	d := NewDemiplane()
	_, ok := d.ExtractRoll(domFragment(`<div class="sheet-sidebar">inventory</div>`))
	assert.False(t, ok)
}

func TestDemiplaneNexusURLSignal(t *testing.T) {
	d := NewDemiplane()
	frag := Fragment{
		Kind:       FragmentDOM,
		URL:        "https://app.demiplane.com/nexus/cyphersystem/character-sheet/abc",
		HTML:       `<div class="sheet"></div>`,
		ObservedAt: time.Now(),
	}

	sig := d.Signals(frag)
	assert.Equal(t, "cyphersystem", sig.ExplicitID)
	assert.Equal(t, models.SystemCypher, gamesystem.Classify(sig))
}

func TestDemiplaneExplicitAttributeBeatsURL(t *testing.T) {
	d := NewDemiplane()
	frag := Fragment{
		Kind: FragmentDOM,
		URL:  "https://app.demiplane.com/nexus/pathfinder2e/sheet",
		HTML: `<div data-game-system="coc"></div>`,
	}

	sig := d.Signals(frag)
	assert.Equal(t, models.SystemCoC, gamesystem.Classify(sig))
}

func TestDemiplaneGameLogMessages(t *testing.T) {
	d := NewDemiplane()
	frag := domFragment(`<div class="game-log-entry" data-user-id="u-7">
		<span class="log-entry-author">Bob</span>
		<span class="log-entry-text">short rest?</span>
	</div>`)

	msg, ok := d.ExtractMessage(frag)
	require.True(t, ok)
	assert.Equal(t, "short rest?", msg.Content)
	assert.Equal(t, "Bob", msg.Sender.Name)
	assert.Equal(t, "u-7", msg.Sender.ID)
	assert.Equal(t, models.MessageChat, msg.Type)
}

func TestDemiplaneExtractSession(t *testing.T) {
	d := NewDemiplane()
	frag := domFragment(`<div data-campaign-id="camp-1">
		<h1 class="campaign-header-title">The Devil's Dance</h1>
		<div class="campaign-member game-master" data-user-id="u-1"><span class="member-name">Alice</span></div>
		<div class="campaign-member current-user" data-user-id="u-2"><span class="member-name">Bob</span></div>
	</div>`)

	info, ok := d.ExtractSession(frag)
	require.True(t, ok)
	assert.Equal(t, "camp-1", info.GameID)
	require.Len(t, info.Players, 2)
	assert.True(t, info.Players[0].IsGM)
	assert.Equal(t, "Bob", info.CurrentUser.Name)
}
