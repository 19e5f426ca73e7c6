package momo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Token is an access token together with the local time after which it must not be used.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenStore caches one access token per MoMo product. Get never returns a token past its
// ExpiresAt.
type TokenStore interface {
	Get(ctx context.Context, product string) (Token, bool, error)
	Put(ctx context.Context, product string, token Token) error
	Invalidate(ctx context.Context, product string) error
}

// MemoryTokenStore keeps tokens in process memory. It is owned by a single Client.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]Token
	now    func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens: make(map[string]Token),
		now:    time.Now,
	}
}

func (s *MemoryTokenStore) Get(_ context.Context, product string) (Token, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[product]
	if !ok || !s.now().Before(tok.ExpiresAt) {
		delete(s.tokens, product)
		return Token{}, false, nil
	}
	return tok, true, nil
}

func (s *MemoryTokenStore) Put(_ context.Context, product string, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[product] = token
	return nil
}

func (s *MemoryTokenStore) Invalidate(_ context.Context, product string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, product)
	return nil
}

// RedisTokenStore shares tokens between instances. Redis expires the key at ExpiresAt, so
// an entry that is readable is still inside its local validity window.
type RedisTokenStore struct {
	client    redis.UniversalClient
	namespace string
	now       func() time.Time
}

func NewRedisTokenStore(client redis.UniversalClient) *RedisTokenStore {
	return &RedisTokenStore{
		client:    client,
		namespace: "momo:token",
		now:       time.Now,
	}
}

func (s *RedisTokenStore) key(product string) string {
	return s.namespace + ":" + product
}

func (s *RedisTokenStore) Get(ctx context.Context, product string) (Token, bool, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, s.key(product))
	ttlCmd := pipe.PTTL(ctx, s.key(product))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Token{}, false, err
	}

	value, err := getCmd.Result()
	if errors.Is(err, redis.Nil) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, err
	}
	ttl := ttlCmd.Val()
	if ttl <= 0 {
		// no expiry set or already gone; never trust it
		return Token{}, false, nil
	}
	return Token{Value: value, ExpiresAt: s.now().Add(ttl)}, true, nil
}

func (s *RedisTokenStore) Put(ctx context.Context, product string, token Token) error {
	ttl := token.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(product), token.Value, ttl).Err()
}

func (s *RedisTokenStore) Invalidate(ctx context.Context, product string) error {
	return s.client.Del(ctx, s.key(product)).Err()
}
