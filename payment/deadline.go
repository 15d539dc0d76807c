package payment

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DeadlineStore persists the absolute expiry instant of a payment
// session so a restarted process (or a reloaded client) resumes the
// same countdown instead of resetting it. The deadline is the only
// state this subsystem persists.
type DeadlineStore interface {
	// Ensure returns the deadline already recorded for the session,
	// or records now+window and returns that. A deadline is fixed at
	// first call and never extended.
	Ensure(ctx context.Context, sessionID string, window time.Duration) (time.Time, error)
	// Remaining returns max(0, deadline-now) for the session.
	Remaining(ctx context.Context, sessionID string) (time.Duration, error)
	// Clear removes the entry. Called once, on terminal transition.
	Clear(ctx context.Context, sessionID string) error
}

// ErrNoDeadline is returned by Remaining when no entry exists for the
// session.
var ErrNoDeadline = fmt.Errorf("payment: no deadline recorded for session")

// MemoryDeadlineStore keeps deadlines in process memory. It backs tests
// and persistence-disabled deployments, and serves as the fallback
// inside RedisDeadlineStore. Resume-after-restart is lost; everything
// else behaves identically.
type MemoryDeadlineStore struct {
	mu        sync.RWMutex
	deadlines map[string]time.Time
	now       func() time.Time
}

func NewMemoryDeadlineStore() *MemoryDeadlineStore {
	return &MemoryDeadlineStore{
		deadlines: make(map[string]time.Time),
		now:       time.Now,
	}
}

func (s *MemoryDeadlineStore) Ensure(_ context.Context, sessionID string, window time.Duration) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.deadlines[sessionID]; ok {
		return at, nil
	}
	at := s.now().Add(window)
	s.deadlines[sessionID] = at
	return at, nil
}

func (s *MemoryDeadlineStore) Remaining(_ context.Context, sessionID string) (time.Duration, error) {
	s.mu.RLock()
	at, ok := s.deadlines[sessionID]
	s.mu.RUnlock()
	if !ok {
		return 0, ErrNoDeadline
	}
	if rem := at.Sub(s.now()); rem > 0 {
		return rem, nil
	}
	return 0, nil
}

func (s *MemoryDeadlineStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.deadlines, sessionID)
	s.mu.Unlock()
	return nil
}

// RedisDeadlineStore persists deadlines in Redis, one key per session.
// Every write is mirrored into an in-memory store so that if Redis
// becomes unavailable mid-session the countdown still completes
// correctly for the current process; only resume-after-restart is lost.
type RedisDeadlineStore struct {
	client   *redis.Client
	fallback *MemoryDeadlineStore
	logger   *zap.Logger
}

func NewRedisDeadlineStore(client *redis.Client, logger *zap.Logger) *RedisDeadlineStore {
	return &RedisDeadlineStore{
		client:   client,
		fallback: NewMemoryDeadlineStore(),
		logger:   logger,
	}
}

func (s *RedisDeadlineStore) key(sessionID string) string {
	return "payment:deadline:" + sessionID
}

func (s *RedisDeadlineStore) Ensure(ctx context.Context, sessionID string, window time.Duration) (time.Time, error) {
	key := s.key(sessionID)
	at := time.Now().Add(window)

	// The TTL outlives the window by a margin so an entry whose Clear
	// was missed still self-cleans.
	ok, err := s.client.SetNX(ctx, key, at.UnixMilli(), window+time.Minute).Result()
	if err != nil {
		s.logger.Warn("deadline store unavailable, using in-memory fallback",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return s.fallback.Ensure(ctx, sessionID, window)
	}
	if !ok {
		// Entry already present: a resumed session keeps its original deadline.
		val, err := s.client.Get(ctx, key).Result()
		if err != nil {
			return s.fallback.Ensure(ctx, sessionID, window)
		}
		millis, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("payment: corrupt deadline entry for session %s: %w", sessionID, err)
		}
		at = time.UnixMilli(millis)
	}

	// Mirror so Remaining keeps working if Redis drops later.
	s.fallback.mu.Lock()
	s.fallback.deadlines[sessionID] = at
	s.fallback.mu.Unlock()
	return at, nil
}

func (s *RedisDeadlineStore) Remaining(ctx context.Context, sessionID string) (time.Duration, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return 0, ErrNoDeadline
	}
	if err != nil {
		return s.fallback.Remaining(ctx, sessionID)
	}
	millis, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("payment: corrupt deadline entry for session %s: %w", sessionID, err)
	}
	if rem := time.Until(time.UnixMilli(millis)); rem > 0 {
		return rem, nil
	}
	return 0, nil
}

func (s *RedisDeadlineStore) Clear(ctx context.Context, sessionID string) error {
	_ = s.fallback.Clear(ctx, sessionID)
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}
