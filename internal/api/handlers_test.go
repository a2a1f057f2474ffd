package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/relay"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/logger"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/middleware"
)

type stubRelay struct {
	status   models.ConnectionStatus
	loginErr error
}

func (s *stubRelay) Status() models.ConnectionStatus { return s.status }

func (s *stubRelay) Login(ctx context.Context, token string) (relay.AuthState, error) {
	if s.loginErr != nil {
		return relay.AuthState{}, s.loginErr
	}
	return relay.AuthState{Token: token, UserID: "user-1", Username: "alice"}, nil
}

func (s *stubRelay) Logout(ctx context.Context) error { return nil }
func (s *stubRelay) Connect()                         {}
func (s *stubRelay) Disconnect()                      {}

type stubBroadcaster struct {
	mu        sync.Mutex
	envelopes []models.Envelope
}

func (s *stubBroadcaster) Broadcast(envelope models.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelopes = append(s.envelopes, envelope)
}

func newTestRouter(r Relay, b Broadcaster) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	router := gin.New()
	handler := NewHandler(r, b, nil, log)
	handler.RegisterRoutes(router, middleware.NewRateLimiter(log))
	return router
}

func TestGetStatus(t *testing.T) {
	router := newTestRouter(&stubRelay{status: models.ConnectionStatus{State: models.StateConnected}}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"connected"`)
}

func TestLoginSuccessBroadcastsAuthUpdate(t *testing.T) {
	broadcaster := &stubBroadcaster{}
	router := newTestRouter(&stubRelay{}, broadcaster)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"token":"tok"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)

	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if assert.Len(t, broadcaster.envelopes, 1) {
		assert.Equal(t, models.TypeAuthUpdate, broadcaster.envelopes[0].Type)
	}
}

func TestLoginRejectsBadToken(t *testing.T) {
	router := newTestRouter(&stubRelay{loginErr: errors.New("token has expired")}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"token":"tok"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRequiresToken(t *testing.T) {
	router := newTestRouter(&stubRelay{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecentRollsWithoutArchive(t *testing.T) {
	router := newTestRouter(&stubRelay{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rolls/recent", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
