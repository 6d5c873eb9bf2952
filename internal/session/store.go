// Package session issues access tokens backed by server-side session records,
// so a sign-out takes effect immediately and can be observed by live connections.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session is one signed-in device.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrNoSession is returned by Store.Load for an unknown or expired session.
var ErrNoSession = errors.New("session not found")

// Store persists sessions.
type Store interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	// DeleteUser removes every session of userID and returns their ids.
	DeleteUser(ctx context.Context, userID string) ([]string, error)
}

const (
	sessionPrefix = "session:"
	userPrefix    = "session:user:"
)

// RedisStore keeps each session under its own key with a TTL and indexes
// sessions per user in a set.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", sess.ID)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionPrefix+sess.ID, data, ttl)
	pipe.SAdd(ctx, userPrefix+sess.UserID, sess.ID)
	pipe.Expire(ctx, userPrefix+sess.UserID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	sess, err := s.Load(ctx, id)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionPrefix+id)
	pipe.SRem(ctx, userPrefix+sess.UserID, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, userPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionPrefix+id)
	}
	keys = append(keys, userPrefix+userID)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return nil, fmt.Errorf("delete user sessions: %w", err)
	}
	return ids, nil
}

// MemoryStore is a process-local Store for tests and single-node development.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, id)
		return nil, ErrNoSession
	}
	return &sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			ids = append(ids, id)
			delete(s.sessions, id)
		}
	}
	return ids, nil
}
