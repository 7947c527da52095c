package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// TokenStore persists user tokens between sessions.
type TokenStore interface {
	// Load returns ErrTokenMissing when nothing is stored under key.
	Load(ctx context.Context, key string) (*oauth2.Token, error)
	Save(ctx context.Context, key string, tok *oauth2.Token) error
	Delete(ctx context.Context, key string) error
}

// RedisTokenStore keeps tokens as JSON in Redis without expiry; the refresh
// token outlives the access token it is stored with.
type RedisTokenStore struct {
	redis *redis.Client
}

// NewRedisTokenStore creates a token store with Redis backend.
func NewRedisTokenStore(redisClient *redis.Client) *RedisTokenStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisTokenStore{redis: redisClient}
}

// Load implements TokenStore.
func (s *RedisTokenStore) Load(ctx context.Context, key string) (*oauth2.Token, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenMissing
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("%w: stored token unreadable: %v", ErrTokenInvalid, err)
	}
	return &tok, nil
}

// Save implements TokenStore.
func (s *RedisTokenStore) Save(ctx context.Context, key string, tok *oauth2.Token) error {
	if tok == nil {
		return fmt.Errorf("token cannot be nil")
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	if err := s.redis.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements TokenStore.
func (s *RedisTokenStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// MemoryTokenStore keeps tokens for the lifetime of the process.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]oauth2.Token
}

// NewMemoryTokenStore creates an empty in-process token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]oauth2.Token)}
}

// Load implements TokenStore.
func (s *MemoryTokenStore) Load(_ context.Context, key string) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, ok := s.tokens[key]
	if !ok {
		return nil, ErrTokenMissing
	}
	return &tok, nil
}

// Save implements TokenStore.
func (s *MemoryTokenStore) Save(_ context.Context, key string, tok *oauth2.Token) error {
	if tok == nil {
		return fmt.Errorf("token cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = *tok
	return nil
}

// Delete implements TokenStore.
func (s *MemoryTokenStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, key)
	return nil
}
