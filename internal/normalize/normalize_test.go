package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
)

func boolPtr(b bool) *bool { return &b }

func TestRollDnd5eSpecialResults(t *testing.T) {
	tests := []struct {
		name     string
		face     int
		critical bool
		fumble   bool
	}{
		{"natural twenty", 20, true, false},
		{"natural one", 1, false, true},
		{"plain result", 13, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roll := Roll(RawRoll{
				Platform:   models.PlatformRoll20,
				Expression: "1d20+5",
				Results:    []int{tt.face},
				Total:      "18",
			}, models.SystemDnd5e)

			assert.Equal(t, tt.critical, roll.Critical)
			assert.Equal(t, tt.fumble, roll.Fumble)
			assert.Empty(t, roll.CypherEffect)
		})
	}
}

func TestRollCypherSpecialResults(t *testing.T) {
	tests := []struct {
		name     string
		face     int
		critical bool
		fumble   bool
		effect   models.CypherEffect
	}{
		{"one is fumble plus intrusion", 1, false, true, models.EffectGMIntrusion},
		{"seventeen is minor effect", 17, false, false, models.EffectMinor},
		{"eighteen is major effect", 18, false, false, models.EffectMajor},
		{"nineteen is major effect", 19, false, false, models.EffectMajor},
		{"twenty is crit plus major", 20, true, false, models.EffectMajor},
		{"ten is nothing", 10, false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roll := Roll(RawRoll{
				Platform:   models.PlatformRoll20,
				Expression: "1d20",
				Results:    []int{tt.face},
				Total:      "7",
			}, models.SystemCypher)

			assert.Equal(t, tt.critical, roll.Critical)
			assert.Equal(t, tt.fumble, roll.Fumble)
			assert.Equal(t, tt.effect, roll.CypherEffect)
		})
	}
}

func TestRollCoCNoAutoCrit(t *testing.T) {
	roll := Roll(RawRoll{
		Platform:   models.PlatformRoll20,
		Expression: "1d20",
		Results:    []int{20},
	}, models.SystemCoC)

	assert.False(t, roll.Critical)
	assert.False(t, roll.Fumble)
}

func TestRollNoD20SkipsSpecialResults(t *testing.T) {
	roll := Roll(RawRoll{
		Platform:   models.PlatformRoll20,
		Expression: "2d6+3",
		Results:    []int{4, 5},
		Total:      "12",
	}, models.SystemGeneric)

	assert.False(t, roll.Critical)
	assert.False(t, roll.Fumble)
	assert.Equal(t, 12, roll.Total)
	assert.Equal(t, []int{4, 5}, roll.Results)
}

func TestRollHostMarkerOverridesComputed(t *testing.T) {
	// Host rendered a crit marker even though the face says otherwise;
	// the host's own business logic wins.
	roll := Roll(RawRoll{
		Platform:     models.PlatformRoll20,
		Expression:   "1d20+5",
		Results:      []int{14},
		HostCritical: boolPtr(true),
	}, models.SystemDnd5e)
	assert.True(t, roll.Critical)

	roll = Roll(RawRoll{
		Platform:     models.PlatformRoll20,
		Expression:   "1d20",
		Results:      []int{20},
		HostCritical: boolPtr(false),
	}, models.SystemDnd5e)
	assert.False(t, roll.Critical)
}

func TestRollHostFumbleOverrideKeepsCypherInvariant(t *testing.T) {
	roll := Roll(RawRoll{
		Platform:   models.PlatformRoll20,
		Expression: "1d20",
		Results:    []int{17},
		HostFumble: boolPtr(true),
	}, models.SystemCypher)

	assert.True(t, roll.Fumble)
	assert.Equal(t, models.EffectGMIntrusion, roll.CypherEffect)
}

func TestRollMalformedFieldsDegrade(t *testing.T) {
	roll := Roll(RawRoll{
		Platform:   models.PlatformDNDBeyond,
		Expression: "1d20+2",
		Total:      "not-a-number",
	}, models.SystemDnd5e)

	assert.Equal(t, 0, roll.Total)
	assert.Empty(t, roll.Results)
	assert.False(t, roll.Critical)
	assert.False(t, roll.Fumble)
}

func TestRollTotalFallsBackToResults(t *testing.T) {
	roll := Roll(RawRoll{
		Platform:   models.PlatformDNDBeyond,
		Expression: "2d6+3",
		Results:    []int{4, 5},
	}, models.SystemGeneric)

	assert.Equal(t, 12, roll.Total)
}

func TestRollIdempotent(t *testing.T) {
	raw := RawRoll{
		Platform:   models.PlatformRoll20,
		Expression: "1d20+5 [fire]",
		Results:    []int{20},
		Total:      "25",
		RollerName: "Mira",
		Label:      "Greatsword Attack",
		Timestamp:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	a := Roll(raw, models.SystemDnd5e)
	b := Roll(raw, models.SystemDnd5e)

	// Byte-identical except the random id.
	a.ID, b.ID = "", ""
	assert.Equal(t, a, b)
}

func TestCleanRoll20Noise(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2d20kh1+5", "2d20+5"},
		{"1d6!", "1d6"},
		{"1d20ro<2+3", "1d20+3"},
		{"4d6k3", "4d6"},
		{"1d20cs>19+2", "1d20+2"},
		{"1d20+5 [slashing]", "1d20+5"},
		{"1d100<=45", "1d100"},
		{"2d6+3", "2d6+3"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Clean(models.PlatformRoll20, tt.in), tt.in)
	}
}

func TestRollTypeFromLabel(t *testing.T) {
	roll := Roll(RawRoll{
		Platform:   models.PlatformRoll20,
		Expression: "1d20",
		Label:      "Dexterity Saving Throw",
	}, models.SystemDnd5e)
	assert.Equal(t, models.RollSave, roll.RollType)

	roll = Roll(RawRoll{
		Platform:   models.PlatformRoll20,
		Expression: "1d20",
		TypeHint:   "initiative",
	}, models.SystemDnd5e)
	assert.Equal(t, models.RollInitiative, roll.RollType)

	roll = Roll(RawRoll{
		Platform:   models.PlatformRoll20,
		Expression: "1d20",
	}, models.SystemDnd5e)
	assert.Equal(t, models.RollCustom, roll.RollType)
}

func TestRollPartialResultsSkipSpecialResults(t *testing.T) {
	// Only the d6 faces were observed; the trailing d20 group has no
	// result, so a leading 1 must not register as a fumble.
	roll := Roll(RawRoll{
		Platform:   models.PlatformRoll20,
		Expression: "2d6 1d20",
		Results:    []int{1},
	}, models.SystemDnd5e)

	assert.False(t, roll.Fumble)
	assert.False(t, roll.Critical)
}

func TestRollResultsBoundedBySides(t *testing.T) {
	roll := Roll(RawRoll{
		Platform:   models.PlatformRoll20,
		Expression: "2d6",
		Results:    []int{4, 9}, // 9 is impossible on a d6
	}, models.SystemGeneric)

	assert.Equal(t, []int{4}, roll.Results)
}
