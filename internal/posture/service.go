// Package posture answers "how risky is this user right now" from the latest
// alert, caching answers in Redis.
package posture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/insiderwatch/insiderwatch/internal/platform/httpx"
	"github.com/insiderwatch/insiderwatch/internal/risk"
)

const (
	keyPrefix = "posture:"
	genPrefix = "posture-gen:"
	genTTL    = 24 * time.Hour
)

var errStaleLoad = errors.New("posture: invalidated during load")

// Store is the read side the posture query needs.
type Store interface {
	UserByID(ctx context.Context, userID string) (risk.User, error)
	RoleByID(ctx context.Context, roleID int64) (risk.Role, error)
	LatestAlert(ctx context.Context, userID string) (risk.Alert, error)
}

// Service resolves postures. A nil Redis client disables caching.
type Service struct {
	store  Store
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewService constructs the posture service.
func NewService(store Store, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, ttl: ttl, logger: logger}
}

// CacheKey returns the Redis key of a user's posture.
func CacheKey(userID string) string {
	return keyPrefix + userID
}

// GenerationKey returns the Redis counter bumped on every invalidation of
// userID. A load only caches its result when the counter is unchanged.
func GenerationKey(userID string) string {
	return genPrefix + userID
}

// Get returns the user's posture. Unknown users yield an httpx not-found error.
func (s *Service) Get(ctx context.Context, userID string) (risk.Posture, error) {
	key := CacheKey(userID)
	if p, ok := s.cached(ctx, key); ok {
		return p, nil
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		gen, genOK := s.generation(ctx, userID)
		p, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		if genOK {
			s.remember(ctx, userID, gen, p)
		}
		return p, nil
	})
	select {
	case <-ctx.Done():
		return risk.Posture{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return risk.Posture{}, res.Err
		}
		return res.Val.(risk.Posture), nil
	}
}

// Invalidate drops the cached posture of userID and bumps its generation so
// loads already in flight do not write their result back.
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	s.group.Forget(CacheKey(userID))
	if s.cache == nil {
		return nil
	}
	genKey := GenerationKey(userID)
	_, err := s.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, genTTL)
		pipe.Del(ctx, CacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("posture: invalidate %s: %w", userID, err)
	}
	return nil
}

func (s *Service) generation(ctx context.Context, userID string) (int64, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return 0, false
	}
	gen, err := s.cache.Get(ctx, GenerationKey(userID)).Int64()
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, redis.Nil):
		return 0, true
	default:
		s.logger.Warn("posture generation read failed", slog.String("user_id", userID), slog.Any("error", err))
		return 0, false
	}
}

func (s *Service) load(ctx context.Context, userID string) (risk.Posture, error) {
	user, err := s.store.UserByID(ctx, userID)
	if errors.Is(err, risk.ErrNotFound) {
		return risk.Posture{}, httpx.NotFound(fmt.Sprintf("User %s not found", userID))
	}
	if err != nil {
		return risk.Posture{}, fmt.Errorf("posture: load user: %w", err)
	}

	var role *risk.Role
	switch r, err := s.store.RoleByID(ctx, user.RoleID); {
	case err == nil:
		role = &r
	case !errors.Is(err, risk.ErrNotFound):
		return risk.Posture{}, fmt.Errorf("posture: load role: %w", err)
	}

	var latest *risk.Alert
	switch a, err := s.store.LatestAlert(ctx, userID); {
	case err == nil:
		latest = &a
	case !errors.Is(err, risk.ErrNotFound):
		return risk.Posture{}, fmt.Errorf("posture: load latest alert: %w", err)
	}

	return risk.DerivePosture(user, role, latest), nil
}

func (s *Service) cached(ctx context.Context, key string) (risk.Posture, bool) {
	if s.cache == nil {
		return risk.Posture{}, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("posture cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return risk.Posture{}, false
	}
	var p risk.Posture
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn("posture cache entry corrupt", slog.String("key", key), slog.Any("error", err))
		return risk.Posture{}, false
	}
	return p, true
}

func (s *Service) remember(ctx context.Context, userID string, gen int64, p risk.Posture) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	key, genKey := CacheKey(userID), GenerationKey(userID)
	err = s.cache.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleLoad
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleLoad), errors.Is(err, redis.TxFailedErr):
		s.logger.Debug("posture cache write skipped", slog.String("key", key))
	default:
		s.logger.Warn("posture cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}
