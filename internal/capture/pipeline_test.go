package capture

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/extract"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/gamesystem"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/normalize"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/logger"
)

// scriptedExtractor returns canned results, keyed by fragment HTML.
type scriptedExtractor struct {
	rolls    map[string]normalize.RawRoll
	messages map[string]models.Message
	sessions map[string]models.SessionInfo
	panicOn  string
}

func (s *scriptedExtractor) Platform() models.Platform { return models.PlatformRoll20 }
func (s *scriptedExtractor) Matches(string) bool       { return true }

func (s *scriptedExtractor) Signals(frag extract.Fragment) gamesystem.Signals {
	return gamesystem.Signals{}
}

func (s *scriptedExtractor) ExtractRoll(frag extract.Fragment) (normalize.RawRoll, bool) {
	if frag.HTML == s.panicOn && s.panicOn != "" {
		panic("bad markup")
	}
	raw, ok := s.rolls[frag.HTML]
	return raw, ok
}

func (s *scriptedExtractor) ExtractMessage(frag extract.Fragment) (models.Message, bool) {
	msg, ok := s.messages[frag.HTML]
	return msg, ok
}

func (s *scriptedExtractor) ExtractSession(frag extract.Fragment) (models.SessionInfo, bool) {
	info, ok := s.sessions[frag.HTML]
	return info, ok
}

type collectEmitter struct {
	mu     sync.Mutex
	events []models.VTTEvent
}

func (c *collectEmitter) Emit(event models.VTTEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *collectEmitter) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.events {
		out = append(out, e.Kind)
	}
	return out
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func newPipeline(ex extract.Extractor, em Emitter) *Pipeline {
	return New(ex, em, 2*time.Second, nil, quietLogger())
}

func TestPipelineEmitsRoll(t *testing.T) {
	ex := &scriptedExtractor{rolls: map[string]normalize.RawRoll{
		"roll-a": {Platform: models.PlatformRoll20, Expression: "1d20+5", Total: "23", RollerName: "Alice"},
	}}
	em := &collectEmitter{}
	p := newPipeline(ex, em)

	p.Handle(extract.Fragment{Kind: extract.FragmentDOM, HTML: "roll-a"})

	require.Len(t, em.events, 1)
	assert.Equal(t, models.EventRoll, em.events[0].Kind)
	require.NotNil(t, em.events[0].Roll)
	assert.Equal(t, "1d20+5", em.events[0].Roll.Expression)
	assert.Equal(t, 23, em.events[0].Roll.Total)
}

func TestPipelineDeduplicatesHookAndDOM(t *testing.T) {
	// The same roll arrives twice, once via hook and once via the DOM
	// render. Only one event goes out.
	raw := normalize.RawRoll{Platform: models.PlatformRoll20, Expression: "1d20+5", Total: "23", RollerName: "Alice"}
	ex := &scriptedExtractor{rolls: map[string]normalize.RawRoll{"hook-roll": raw, "dom-roll": raw}}
	em := &collectEmitter{}
	p := newPipeline(ex, em)

	at := time.Now()
	p.Handle(extract.Fragment{Kind: extract.FragmentHook, HTML: "hook-roll", ObservedAt: at})
	p.Handle(extract.Fragment{Kind: extract.FragmentDOM, HTML: "dom-roll", ObservedAt: at.Add(100 * time.Millisecond)})

	assert.Equal(t, []string{models.EventRoll}, em.kinds())
}

func TestPipelinePanicIsolation(t *testing.T) {
	ex := &scriptedExtractor{
		panicOn: "poison",
		rolls: map[string]normalize.RawRoll{
			"roll-a": {Platform: models.PlatformRoll20, Expression: "1d6", Total: "4"},
		},
	}
	em := &collectEmitter{}
	p := newPipeline(ex, em)

	p.Handle(extract.Fragment{Kind: extract.FragmentDOM, HTML: "poison"})
	p.Handle(extract.Fragment{Kind: extract.FragmentDOM, HTML: "roll-a"})

	assert.Equal(t, []string{models.EventRoll}, em.kinds())
}

func TestPipelineSessionChangeEmitsConnected(t *testing.T) {
	sessionA := models.SessionInfo{Platform: models.PlatformRoll20, GameID: "g1", GameName: "Game",
		Players: []models.Participant{{ID: "p1", Name: "Alice", IsGM: true}}}
	sessionB := sessionA
	sessionB.Players = append([]models.Participant{}, sessionA.Players...)
	sessionB.Players = append(sessionB.Players, models.Participant{ID: "p2", Name: "Bob"})

	ex := &scriptedExtractor{sessions: map[string]models.SessionInfo{
		"snap-a": sessionA,
		"snap-b": sessionB,
	}}
	em := &collectEmitter{}
	p := newPipeline(ex, em)

	p.Handle(extract.Fragment{Kind: extract.FragmentSnapshot, HTML: "snap-a"})
	p.Handle(extract.Fragment{Kind: extract.FragmentSnapshot, HTML: "snap-a"})
	p.Handle(extract.Fragment{Kind: extract.FragmentSnapshot, HTML: "snap-b"})

	// An unchanged snapshot is silent; a roster change re-emits.
	require.Equal(t, []string{models.EventConnected, models.EventConnected}, em.kinds())
	assert.Len(t, em.events[1].Session.Players, 2)
}

func TestPipelineResnapshotReemitsSession(t *testing.T) {
	session := models.SessionInfo{Platform: models.PlatformRoll20, GameID: "g1", GameName: "Game"}
	ex := &scriptedExtractor{sessions: map[string]models.SessionInfo{"snap-a": session}}
	em := &collectEmitter{}
	p := newPipeline(ex, em)

	// Before any snapshot there is nothing to re-extract.
	p.Resnapshot()
	assert.Empty(t, em.kinds())

	p.Handle(extract.Fragment{Kind: extract.FragmentSnapshot, HTML: "snap-a"})
	p.Resnapshot()

	// The timed pass emits a fresh connected event even though the
	// roster did not change.
	assert.Equal(t, []string{models.EventConnected, models.EventConnected}, em.kinds())
}

func TestPipelineMessageAfterRollMiss(t *testing.T) {
	ex := &scriptedExtractor{messages: map[string]models.Message{
		"chat-a": {Platform: models.PlatformRoll20, Sender: models.Roller{Name: "Alice"}, Content: "hello", Type: models.MessageChat},
	}}
	em := &collectEmitter{}
	p := newPipeline(ex, em)

	p.Handle(extract.Fragment{Kind: extract.FragmentDOM, HTML: "chat-a"})

	require.Len(t, em.events, 1)
	assert.Equal(t, models.EventMessage, em.events[0].Kind)
	assert.Equal(t, "hello", em.events[0].Message.Content)
}

func TestStreamFragmentsSkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"kind":"dom","html":"<div>a</div>"}`,
		`{not json`,
		``,
		`{"kind":"snapshot","html":"<div>b</div>"}`,
	}, "\n")

	ch := StreamFragments(strings.NewReader(input), quietLogger())

	var got []extract.Fragment
	for frag := range ch {
		got = append(got, frag)
	}
	require.Len(t, got, 2)
	assert.Equal(t, extract.FragmentDOM, got[0].Kind)
	assert.Equal(t, extract.FragmentSnapshot, got[1].Kind)
}
