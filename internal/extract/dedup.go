package extract

import (
	"fmt"
	"time"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/cache"
)

// Dedup suppresses duplicate records observed through both a platform's
// native event hook and its DOM change stream. Records are keyed on a
// content+author+timestamp-bucket tuple inside a short window; the
// first observation wins, which gives hook-sourced records precedence
// because hooks fire before the DOM renders.
type Dedup struct {
	window time.Duration
	seen   *cache.Cache
}

// NewDedup creates a deduplicator with the given suppression window.
func NewDedup(window time.Duration) *Dedup {
	return &Dedup{
		window: window,
		seen:   cache.NewCache(window, 2*window),
	}
}

// Seen records the tuple and reports whether an equivalent record was
// already observed inside the window.
func (d *Dedup) Seen(platform models.Platform, author, content string, at time.Time) bool {
	bucket := int64(0)
	if d.window > 0 {
		bucket = at.UnixNano() / int64(d.window)
	}
	key := fmt.Sprintf("%s|%s|%s|%d", platform, author, content, bucket)
	if _, ok := d.seen.Get(key); ok {
		return true
	}
	// Also check the adjacent bucket so a pair straddling a boundary
	// still collapses.
	prev := fmt.Sprintf("%s|%s|%s|%d", platform, author, content, bucket-1)
	if _, ok := d.seen.Get(prev); ok {
		return true
	}
	d.seen.Set(key, struct{}{})
	return false
}
