package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Crit-Fumble/fumblebot-sub002/shared/redis"
)

// AuthState is the persisted authentication state: the bearer
// credential issued by the external auth provider plus the identity it
// belongs to.
type AuthState struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Valid reports whether any credential is present at all.
func (a AuthState) Valid() bool { return a.Token != "" }

// AuthStore persists authentication state across restarts.
type AuthStore interface {
	Load(ctx context.Context) (AuthState, error)
	Save(ctx context.Context, state AuthState) error
	Clear(ctx context.Context) error
}

const authKey = "fumblebot:auth"

// RedisAuthStore keeps the auth state in Redis.
type RedisAuthStore struct {
	client *redis.RedisClient
}

func NewRedisAuthStore(client *redis.RedisClient) *RedisAuthStore {
	return &RedisAuthStore{client: client}
}

func (s *RedisAuthStore) Load(ctx context.Context) (AuthState, error) {
	raw, err := s.client.Get(ctx, authKey)
	if err != nil {
		if redis.IsNotFound(err) {
			return AuthState{}, nil
		}
		return AuthState{}, err
	}
	var state AuthState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// A corrupt blob is treated as logged out rather than an error.
		return AuthState{}, nil
	}
	return state, nil
}

func (s *RedisAuthStore) Save(ctx context.Context, state AuthState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, authKey, string(data), 0)
}

func (s *RedisAuthStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, authKey)
}

// MemoryAuthStore is an in-process AuthStore for tests and for running
// without Redis.
type MemoryAuthStore struct {
	state AuthState
}

func NewMemoryAuthStore() *MemoryAuthStore { return &MemoryAuthStore{} }

func (s *MemoryAuthStore) Load(ctx context.Context) (AuthState, error) { return s.state, nil }

func (s *MemoryAuthStore) Save(ctx context.Context, state AuthState) error {
	s.state = state
	return nil
}

func (s *MemoryAuthStore) Clear(ctx context.Context) error {
	s.state = AuthState{}
	return nil
}

// now is indirected for tests.
var now = time.Now
