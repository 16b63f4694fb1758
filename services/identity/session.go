package identity

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sistemaeducativo/gradebook/core"
)

var ErrSessionNotFound = errors.New("session not found")

type (
	Session struct {
		ID          string    `json:"id"`
		PrincipalID string    `json:"principal_id"`
		Email       string    `json:"email"`
		ExpiresAt   time.Time `json:"expires_at"`
	}

	// SessionStore keeps sessions until they expire or are deleted.
	SessionStore interface {
		Set(ctx context.Context, sess Session) error
		Get(ctx context.Context, id string) (Session, error)
		Delete(ctx context.Context, id string) error
	}
)

func (s Session) Principal() core.Principal {
	return core.Principal{ID: s.PrincipalID, Email: s.Email, SessionID: s.ID}
}

func (s Session) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (s *MemorySessionStore) Set(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if sess.expired(NowFunc()) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

const sessionKeyPrefix = "session:"

// RedisSessionStore keeps sessions in Redis; expiry is delegated to key TTLs.
type RedisSessionStore struct {
	rdb *redis.Client
}

var _ SessionStore = (*RedisSessionStore)(nil)

func NewRedisSessionStore(conf *core.Config) *RedisSessionStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return &RedisSessionStore{rdb: rdb}
}

func (s *RedisSessionStore) Set(ctx context.Context, sess Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !sess.ExpiresAt.IsZero() {
		if ttl = sess.ExpiresAt.Sub(NowFunc()); ttl <= 0 {
			return nil
		}
	}
	return s.rdb.Set(ctx, sessionKeyPrefix+sess.ID, string(b), ttl).Err()
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (Session, error) {
	val, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}

	var sess Session
	if err = json.Unmarshal([]byte(val), &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+id).Err()
}

func (s *RedisSessionStore) Close() error {
	return s.rdb.Close()
}
