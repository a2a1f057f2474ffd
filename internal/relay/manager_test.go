package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/config"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/jwt"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/logger"
)

func testToken(t *testing.T, userID, username string, expiry time.Duration) string {
	t.Helper()
	claims := jwt.Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(expiry)),
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.RemoteEvent
}

func (d *recordingDispatcher) Dispatch(event models.RemoteEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestLoginStoresAuthState(t *testing.T) {
	store := NewMemoryAuthStore()
	m := NewManager(config.RemoteConfig{RequestTimeout: time.Second}, store, nil, testLogger())

	token := testToken(t, "user-1", "alice", time.Hour)
	state, err := m.Login(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", state.UserID)
	assert.Equal(t, "alice", state.Username)

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, persisted.Token)

	status := m.Status()
	assert.Equal(t, models.StateDisconnected, status.State)
	assert.Equal(t, "alice", status.Username)
}

func TestLoginRejectsExpiredToken(t *testing.T) {
	m := NewManager(config.RemoteConfig{}, NewMemoryAuthStore(), nil, testLogger())

	_, err := m.Login(context.Background(), testToken(t, "user-1", "alice", -time.Hour))
	assert.ErrorIs(t, err, jwt.ErrExpiredToken)
}

func TestLogoutClearsAuthState(t *testing.T) {
	store := NewMemoryAuthStore()
	m := NewManager(config.RemoteConfig{}, store, nil, testLogger())

	_, err := m.Login(context.Background(), testToken(t, "user-1", "alice", time.Hour))
	require.NoError(t, err)
	require.NoError(t, m.Logout(context.Background()))

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, persisted.Valid())
	assert.Equal(t, models.StateDisconnected, m.Status().State)
	assert.Empty(t, m.Status().Username)
}

func TestStartSkipsExpiredCredential(t *testing.T) {
	store := NewMemoryAuthStore()
	require.NoError(t, store.Save(context.Background(), AuthState{
		Token:  testToken(t, "user-1", "alice", -time.Hour),
		UserID: "user-1",
	}))

	m := NewManager(config.RemoteConfig{}, store, nil, testLogger())
	require.NoError(t, m.Start(context.Background()))

	assert.Equal(t, models.StateDisconnected, m.Status().State)
	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, persisted.Valid())
}

func TestStreamDispatchesInboundEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("token"))
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, ": keepalive\n\n")
		fmt.Fprintf(w, "data: {\"type\":\"discord-message\",\"data\":{\"content\":\"hi\"}}\n\n")
		fmt.Fprintf(w, "data: {\"type\":\"discord-roll\",\"data\":{}}\n\n")
		flusher.Flush()
		// Hold the stream open until the client goes away.
		<-r.Context().Done()
	}))
	defer srv.Close()

	dispatcher := &recordingDispatcher{}
	m := NewManager(config.RemoteConfig{
		StreamURL:      srv.URL,
		ReconnectDelay: 10 * time.Millisecond,
		RequestTimeout: time.Second,
	}, NewMemoryAuthStore(), nil, testLogger())
	m.SetDispatcher(dispatcher)

	_, err := m.Login(context.Background(), testToken(t, "user-1", "alice", time.Hour))
	require.NoError(t, err)
	m.Connect()
	defer m.Disconnect()

	waitFor(t, func() bool { return dispatcher.count() == 2 }, "inbound events")
	assert.Equal(t, models.StateConnected, m.Status().State)
	assert.NotNil(t, m.Status().LastActivity)
	assert.Equal(t, models.RemoteDiscordMessage, dispatcher.events[0].Type)
	assert.Equal(t, models.RemoteDiscordRoll, dispatcher.events[1].Type)
}

func TestStreamReconnectsIndefinitelyWithFixedDelay(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		// Each connection dies immediately, forcing a reconnect.
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewManager(config.RemoteConfig{
		StreamURL:      srv.URL,
		ReconnectDelay: 10 * time.Millisecond,
		RequestTimeout: time.Second,
	}, NewMemoryAuthStore(), nil, testLogger())

	_, err := m.Login(context.Background(), testToken(t, "user-1", "alice", time.Hour))
	require.NoError(t, err)
	m.Connect()
	defer m.Disconnect()

	// Well past any plausible retry cap.
	waitFor(t, func() bool { return attempts.Load() >= 5 }, "repeated reconnect attempts")
}

func TestDisconnectStopsReconnectLoop(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewManager(config.RemoteConfig{
		StreamURL:      srv.URL,
		ReconnectDelay: 10 * time.Millisecond,
		RequestTimeout: time.Second,
	}, NewMemoryAuthStore(), nil, testLogger())

	_, err := m.Login(context.Background(), testToken(t, "user-1", "alice", time.Hour))
	require.NoError(t, err)
	m.Connect()
	waitFor(t, func() bool { return attempts.Load() >= 2 }, "initial attempts")

	m.Disconnect()
	assert.Equal(t, models.StateDisconnected, m.Status().State)

	settled := attempts.Load()
	time.Sleep(100 * time.Millisecond)
	// One in-flight attempt may still land after Disconnect.
	assert.LessOrEqual(t, attempts.Load(), settled+1)
}

func TestPublishSendsBearerAndDoesNotRetry(t *testing.T) {
	var posts atomic.Int64
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewManager(config.RemoteConfig{
		OutboundURL:    srv.URL,
		RequestTimeout: time.Second,
	}, NewMemoryAuthStore(), nil, testLogger())

	token := testToken(t, "user-1", "alice", time.Hour)
	_, err := m.Login(context.Background(), token)
	require.NoError(t, err)

	m.Publish(models.RemoteEvent{Type: "roll"})

	assert.Equal(t, int64(1), posts.Load(), "a failed delivery must not be retried")
	assert.Equal(t, "Bearer "+token, gotAuth)
}

func TestPublishWithoutCredentialDrops(t *testing.T) {
	var posts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
	}))
	defer srv.Close()

	m := NewManager(config.RemoteConfig{OutboundURL: srv.URL, RequestTimeout: time.Second},
		NewMemoryAuthStore(), nil, testLogger())

	m.Publish(models.RemoteEvent{Type: "roll"})
	assert.Equal(t, int64(0), posts.Load())
}
