package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
)

// maxStreamLine bounds a single inbound event payload.
const maxStreamLine = 1 << 20

// runStream is the reconnect loop for one generation of the inbound
// stream. It keeps retrying with a fixed delay until the generation is
// cancelled; there is no attempt cap and no backoff growth.
func (m *Manager) runStream(ctx context.Context, gen uint64) {
	for {
		err := m.consume(ctx, gen)
		if ctx.Err() != nil || !m.current(gen) {
			return
		}

		msg := "stream closed"
		if err != nil {
			msg = err.Error()
		}
		if !m.setState(gen, models.StateError, msg) {
			return
		}
		m.metrics.Reconnect()
		m.log.Warn("inbound stream lost, reconnecting", "error", msg, "delay", m.reconnectDelay())

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.reconnectDelay()):
		}
		if !m.setState(gen, models.StateConnecting, "") {
			return
		}
	}
}

// consume opens the inbound stream and reads events until it fails.
func (m *Manager) consume(ctx context.Context, gen uint64) error {
	m.mu.Lock()
	token := m.auth.Token
	m.mu.Unlock()
	if token == "" {
		return fmt.Errorf("no credential")
	}

	// The stream endpoint takes the credential as a query parameter;
	// only the outbound endpoint takes a bearer header.
	u, err := url.Parse(m.cfg.StreamURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := m.streamClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned %d", resp.StatusCode)
	}

	if !m.setState(gen, models.StateConnected, "") {
		return nil
	}
	m.log.Info("inbound stream connected", "url", m.cfg.StreamURL)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, ":"):
			// SSE comment, typically a keepalive.
			m.touch(gen)
			continue
		case strings.HasPrefix(line, "data:"):
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if line == "" {
			continue
		}

		var event models.RemoteEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			m.log.Warn("skipping malformed inbound event", "error", err)
			continue
		}
		m.touch(gen)
		if !m.current(gen) {
			return nil
		}
		if m.dispatcher != nil {
			m.dispatcher.Dispatch(event)
		}
	}
	return scanner.Err()
}

// streamClient returns a client without a request timeout; the stream
// is expected to stay open indefinitely.
func (m *Manager) streamClient() *http.Client {
	return &http.Client{Timeout: 0}
}

func jsonMarshal(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
