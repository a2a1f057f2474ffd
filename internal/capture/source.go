package capture

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/extract"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/logger"
)

// maxFragmentSize bounds a single serialized fragment. Roll markup is
// small; anything larger is a page dumping unrelated DOM.
const maxFragmentSize = 1 << 20

// StreamFragments decodes newline-delimited JSON fragments from r into
// a channel. The channel models the page's change stream: lazy,
// infinite, non-restartable, closed when r reaches EOF (page unload).
// Malformed lines are logged and skipped, never fatal.
func StreamFragments(r io.Reader, log *logger.Logger) <-chan extract.Fragment {
	ch := make(chan extract.Fragment)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxFragmentSize)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var frag extract.Fragment
			if err := json.Unmarshal(line, &frag); err != nil {
				log.Warn("skipping malformed fragment", "error", err.Error())
				continue
			}
			ch <- frag
		}
		if err := scanner.Err(); err != nil {
			log.Warn("fragment stream read error", "error", err.Error())
		}
	}()
	return ch
}
