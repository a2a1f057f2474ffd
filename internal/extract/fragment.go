package extract

import (
	"encoding/json"
	"time"
)

// FragmentKind discriminates how a fragment was observed.
type FragmentKind string

const (
	// FragmentDOM is a content-added notification from the page's
	// change stream: one rendered chunk of markup.
	FragmentDOM FragmentKind = "dom"
	// FragmentHook is a record delivered by a host platform's native
	// event-hook API, bypassing the change stream.
	FragmentHook FragmentKind = "hook"
	// FragmentSnapshot is a periodic capture of the page region that
	// carries session info (game name, roster, current user).
	FragmentSnapshot FragmentKind = "snapshot"
)

// Fragment is one unit of observed page content. Fragments form a lazy,
// infinite, non-restartable sequence scoped to the page's lifetime.
type Fragment struct {
	Kind       FragmentKind    `json:"kind"`
	URL        string          `json:"url,omitempty"`
	HTML       string          `json:"html,omitempty"`
	Hook       json.RawMessage `json:"hook,omitempty"`
	ObservedAt time.Time       `json:"observedAt"`
}
