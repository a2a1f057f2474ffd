package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/config"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/jwt"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/logger"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/resilience"
	"github.com/Crit-Fumble/fumblebot-sub002/shared/observability"
)

// Dispatcher receives events that arrive on the inbound stream. The
// websocket hub implements it.
type Dispatcher interface {
	Dispatch(event models.RemoteEvent)
}

// StatusListener is notified whenever the connection status changes.
type StatusListener func(status models.ConnectionStatus)

// Manager owns the long-lived connection to the remote relay service.
// It runs in the background process, reconnects with a fixed delay for
// as long as a usable credential exists, and forwards outbound events
// one HTTP request at a time.
type Manager struct {
	cfg     config.RemoteConfig
	store   AuthStore
	client  *http.Client
	breaker *resilience.CircuitBreaker
	metrics *observability.Metrics
	log     *logger.Logger

	mu         sync.Mutex
	auth       AuthState
	status     models.ConnectionStatus
	generation uint64
	cancel     context.CancelFunc

	dispatcher Dispatcher
	listener   StatusListener
}

func NewManager(cfg config.RemoteConfig, store AuthStore, metrics *observability.Metrics, log *logger.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		store:   store,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("relay-outbound"), log),
		metrics: metrics,
		log:     log,
		status:  models.ConnectionStatus{State: models.StateDisconnected},
	}
}

// SetDispatcher wires the inbound event sink. Must be called before
// Start; kept as a setter to break the construction cycle with the hub.
func (m *Manager) SetDispatcher(d Dispatcher) { m.dispatcher = d }

// SetStatusListener wires the status broadcast hook.
func (m *Manager) SetStatusListener(l StatusListener) { m.listener = l }

// Start restores persisted auth and, when the stored credential is
// still usable, begins connecting immediately.
func (m *Manager) Start(ctx context.Context) error {
	state, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading auth state: %w", err)
	}
	if !state.Valid() {
		m.log.Info("no stored credential, staying disconnected")
		return nil
	}
	if !jwt.Usable(state.Token) {
		m.log.Warn("stored credential expired, clearing", "user_id", state.UserID)
		if err := m.store.Clear(ctx); err != nil {
			m.log.Error("clearing expired credential", "error", err)
		}
		return nil
	}

	m.mu.Lock()
	m.auth = state
	m.status.UserID = state.UserID
	m.status.Username = state.Username
	m.mu.Unlock()

	m.log.Info("restored credential, connecting", "user_id", state.UserID)
	m.Connect()
	return nil
}

// Login stores a new credential. It does not connect; the caller
// decides when to open the stream.
func (m *Manager) Login(ctx context.Context, token string) (AuthState, error) {
	claims, err := jwt.Inspect(token)
	if err != nil {
		return AuthState{}, err
	}
	state := AuthState{Token: token, UserID: claims.UserID, Username: claims.Username}
	if err := m.store.Save(ctx, state); err != nil {
		return AuthState{}, fmt.Errorf("persisting auth state: %w", err)
	}

	m.mu.Lock()
	m.auth = state
	m.status.UserID = state.UserID
	m.status.Username = state.Username
	m.mu.Unlock()

	m.log.Info("logged in", "user_id", state.UserID, "username", state.Username)
	return state, nil
}

// Logout disconnects and forgets the credential.
func (m *Manager) Logout(ctx context.Context) error {
	m.Disconnect()
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing auth state: %w", err)
	}

	m.mu.Lock()
	m.auth = AuthState{}
	m.status.UserID = ""
	m.status.Username = ""
	m.mu.Unlock()

	m.log.Info("logged out")
	return nil
}

// Auth returns the current auth state.
func (m *Manager) Auth() AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auth
}

// Status returns a snapshot of the connection status.
func (m *Manager) Status() models.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connect starts the inbound stream loop. A second call while a loop
// is already running replaces it; the old loop observes its stale
// generation and exits.
func (m *Manager) Connect() {
	m.mu.Lock()
	if !m.auth.Valid() {
		m.mu.Unlock()
		m.log.Warn("connect requested without credential")
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.generation++
	gen := m.generation
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.setStateLocked(models.StateConnecting, "")
	m.mu.Unlock()

	go m.runStream(ctx, gen)
}

// Disconnect stops the stream loop and marks the session disconnected.
// The credential is kept.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.generation++
	m.setStateLocked(models.StateDisconnected, "")
	m.mu.Unlock()
}

// current reports whether gen is still the live stream generation.
func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.generation
}

func (m *Manager) setState(gen uint64, state models.ConnState, errMsg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return false
	}
	m.setStateLocked(state, errMsg)
	return true
}

// setStateLocked mutates the status and notifies the listener. Callers
// hold m.mu.
func (m *Manager) setStateLocked(state models.ConnState, errMsg string) {
	m.status.State = state
	m.status.Error = errMsg
	if state == models.StateConnected {
		t := now()
		m.status.LastActivity = &t
	}
	if m.listener != nil {
		snapshot := m.status
		go m.listener(snapshot)
	}
}

// touch records inbound activity on the stream.
func (m *Manager) touch(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return
	}
	t := now()
	m.status.LastActivity = &t
}

// Publish sends one event to the remote service. Delivery is
// at-most-once: a failure is logged and counted, never retried.
func (m *Manager) Publish(event models.RemoteEvent) {
	m.mu.Lock()
	token := m.auth.Token
	m.mu.Unlock()
	if token == "" {
		m.log.Debug("dropping outbound event, not authenticated", "type", event.Type)
		m.metrics.Dropped(event.Type)
		return
	}

	err := m.breaker.Execute(func() error {
		return m.post(token, event)
	})
	if err != nil {
		m.log.Warn("outbound event dropped", "type", event.Type, "error", err)
		m.metrics.Dropped(event.Type)
		return
	}
	m.metrics.Relayed(event.Type)
}

func (m *Manager) post(token string, event models.RemoteEvent) error {
	body, err := jsonMarshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.OutboundURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote returned %d", resp.StatusCode)
	}
	return nil
}

func (m *Manager) reconnectDelay() time.Duration {
	if m.cfg.ReconnectDelay > 0 {
		return m.cfg.ReconnectDelay
	}
	return 5 * time.Second
}
