// Package capture runs the page-side pipeline: it consumes the page's
// fragment stream, drives the platform extractor, classifier, and
// normalizer, and forwards the resulting events across the page channel.
package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/extract"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/gamesystem"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/normalize"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/logger"
	"github.com/Crit-Fumble/fumblebot-sub002/shared/observability"
)

// Emitter forwards events across the privilege boundary to the
// background session manager. Implementations are fire-and-forget: no
// acknowledgment is awaited and there is no page-side retry.
type Emitter interface {
	Emit(event models.VTTEvent)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(models.VTTEvent)

func (f EmitterFunc) Emit(event models.VTTEvent) { f(event) }

// Pipeline processes one page's fragment stream with one extractor.
type Pipeline struct {
	extractor extract.Extractor
	emitter   Emitter
	dedup     *extract.Dedup
	metrics   *observability.Metrics
	log       *logger.Logger

	// mu guards the snapshot state; Resnapshot runs off a timer while
	// Run owns the fragment stream.
	mu sync.Mutex
	// lastSession is the previous roster snapshot; a change triggers a
	// fresh connected event rather than a diff.
	lastSession  models.SessionInfo
	hasSession   bool
	lastSnapshot extract.Fragment
	hasSnapshot  bool
}

// New creates a pipeline for one page.
func New(extractor extract.Extractor, emitter Emitter, dedupWindow time.Duration, metrics *observability.Metrics, log *logger.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		emitter:   emitter,
		dedup:     extract.NewDedup(dedupWindow),
		metrics:   metrics,
		log:       log.WithPlatform(string(extractor.Platform())),
	}
}

// Run consumes fragments until the channel closes (page unload). Each
// fragment is an independent unit of work: a failure while processing
// one never prevents subsequent fragments from being processed.
func (p *Pipeline) Run(fragments <-chan extract.Fragment) {
	for frag := range fragments {
		p.Handle(frag)
	}
	p.log.Info("fragment stream ended")
}

// Handle processes a single fragment.
func (p *Pipeline) Handle(frag extract.Fragment) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("fragment processing panicked", "panic", fmt.Sprint(r), "kind", string(frag.Kind))
		}
	}()

	if frag.ObservedAt.IsZero() {
		frag.ObservedAt = time.Now()
	}

	if frag.Kind == extract.FragmentSnapshot {
		p.handleSnapshot(frag)
		return
	}

	// Re-classified per fragment: a character-sheet switch can change
	// the effective system mid-session.
	system := gamesystem.Classify(p.extractor.Signals(frag))

	// Rolls first; roll markup is frequently a superset of message
	// markup, so the order matters.
	if raw, ok := p.extractor.ExtractRoll(frag); ok {
		if p.dedup.Seen(p.extractor.Platform(), raw.RollerName, raw.Expression+"|"+raw.Total, frag.ObservedAt) {
			p.metrics.Deduplicated(p.extractor.Platform())
			return
		}
		roll := normalize.Roll(raw, system)
		p.metrics.Extracted(roll.Platform, models.EventRoll)
		p.emitter.Emit(models.VTTEvent{Kind: models.EventRoll, Roll: &roll})
		return
	}

	if msg, ok := p.extractor.ExtractMessage(frag); ok {
		if p.dedup.Seen(msg.Platform, msg.Sender.Name, msg.Content, frag.ObservedAt) {
			p.metrics.Deduplicated(msg.Platform)
			return
		}
		p.metrics.Extracted(msg.Platform, models.EventMessage)
		p.emitter.Emit(models.VTTEvent{Kind: models.EventMessage, Message: &msg})
	}
}

// handleSnapshot re-extracts session info. Rosters and GM status change
// during a session, so snapshots arrive periodically; any change
// supersedes the previous session wholesale via a fresh connected event.
func (p *Pipeline) handleSnapshot(frag extract.Fragment) {
	info, ok := p.extractor.ExtractSession(frag)
	if !ok {
		return
	}

	p.mu.Lock()
	p.lastSnapshot = frag
	p.hasSnapshot = true
	unchanged := p.hasSession && p.lastSession.Equal(info)
	p.lastSession = info
	p.hasSession = true
	p.mu.Unlock()

	if unchanged {
		return
	}
	p.emitSession(info)
}

// Resnapshot re-extracts session info from the most recent snapshot
// markup and emits a fresh connected event, even when nothing changed.
// The client calls this on a timer so the remote side keeps a current
// roster for pages that rarely push snapshots.
func (p *Pipeline) Resnapshot() {
	p.mu.Lock()
	frag := p.lastSnapshot
	ok := p.hasSnapshot
	p.mu.Unlock()
	if !ok {
		return
	}

	frag.ObservedAt = time.Now()
	info, extracted := p.extractor.ExtractSession(frag)
	if !extracted {
		return
	}

	p.mu.Lock()
	p.lastSession = info
	p.hasSession = true
	p.mu.Unlock()

	p.emitSession(info)
}

func (p *Pipeline) emitSession(info models.SessionInfo) {
	p.metrics.Extracted(info.Platform, models.EventConnected)
	p.emitter.Emit(models.VTTEvent{Kind: models.EventConnected, Session: &info})
	p.log.Info("session info updated", "game", info.GameName, "players", len(info.Players))
}
