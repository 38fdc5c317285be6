package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const nonceKeyPrefix = "auth:nonce:"

// NonceStore issues single-use challenge nonces bound to a wallet.
type NonceStore interface {
	Issue(ctx context.Context, wallet string) (string, error)
	// Consume reports whether nonce was issued to wallet and not used or expired. A nonce
	// is spent by the first Consume call either way.
	Consume(ctx context.Context, nonce, wallet string) (bool, error)
}

// RedisNonceStore shares nonces between API replicas.
type RedisNonceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisNonceStore(rdb *redis.Client, ttl time.Duration) *RedisNonceStore {
	return &RedisNonceStore{rdb: rdb, ttl: ttl}
}

func (s *RedisNonceStore) Issue(ctx context.Context, wallet string) (string, error) {
	nonce := uuid.NewString()
	if err := s.rdb.Set(ctx, nonceKeyPrefix+nonce, wallet, s.ttl).Err(); err != nil {
		return "", err
	}
	return nonce, nil
}

func (s *RedisNonceStore) Consume(ctx context.Context, nonce, wallet string) (bool, error) {
	owner, err := s.rdb.GetDel(ctx, nonceKeyPrefix+nonce).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner == wallet, nil
}

type nonceEntry struct {
	wallet  string
	expires time.Time
}

// MemoryNonceStore is the single-process fallback when Redis is unavailable.
type MemoryNonceStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	nowFn   func() time.Time
	entries map[string]nonceEntry
}

func NewMemoryNonceStore(ttl time.Duration) *MemoryNonceStore {
	return &MemoryNonceStore{ttl: ttl, nowFn: time.Now, entries: make(map[string]nonceEntry)}
}

func (s *MemoryNonceStore) Issue(_ context.Context, wallet string) (string, error) {
	nonce := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[nonce] = nonceEntry{wallet: wallet, expires: now.Add(s.ttl)}
	return nonce, nil
}

func (s *MemoryNonceStore) Consume(_ context.Context, nonce, wallet string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[nonce]
	delete(s.entries, nonce)
	if !ok || s.nowFn().After(e.expires) {
		return false, nil
	}
	return e.wallet == wallet, nil
}
