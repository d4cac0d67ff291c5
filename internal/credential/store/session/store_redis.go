package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shelteraccess/internal/audit"
	"shelteraccess/internal/credential/models"
	"shelteraccess/pkg/platform/sentinel"
)

const (
	userKeyPrefix = "session:user:"
	credKeyPrefix = "session:cred:"

	// Keys outlive the logical expiry so the engine, not Redis, decides
	// when a session expires and writes the Expired audit entry. The
	// grace TTL only bounds garbage left by a crashed process.
	expiryGrace = 24 * time.Hour
)

// RedisStore keeps sessions in Redis for deployments running more than one
// engine replica. DEL return counts arbitrate races so each expiry or
// revocation is audited at most once across replicas.
type RedisStore struct {
	client  *redis.Client
	auditor Auditor
	clock   Clock
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock sets the clock function for testability.
func WithRedisClock(clock Clock) RedisOption {
	return func(s *RedisStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewRedisStore(client *redis.Client, auditor Auditor, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, auditor: auditor, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) Put(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt) + expiryGrace

	prior, err := s.client.GetSet(ctx, userKeyPrefix+session.UserID, payload).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("store session: %w", err)
	}
	if err == nil && prior != "" {
		var old models.Session
		if jsonErr := json.Unmarshal([]byte(prior), &old); jsonErr == nil {
			s.client.Del(ctx, credKeyPrefix+old.CredentialID)
		}
	}

	pipe := s.client.Pipeline()
	pipe.Expire(ctx, userKeyPrefix+session.UserID, ttl)
	pipe.Set(ctx, credKeyPrefix+session.CredentialID, session.UserID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*models.Session, error) {
	payload, err := s.client.Get(ctx, userKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var stored models.Session
	if err := json.Unmarshal([]byte(payload), &stored); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	if stored.Expired(s.clock()) {
		removed, err := s.removeExpired(ctx, &stored)
		if err != nil {
			return nil, err
		}
		if removed {
			if err := s.auditExpired(ctx, &stored); err != nil {
				return nil, err
			}
		}
		return nil, sentinel.ErrExpired
	}
	return &stored, nil
}

func (s *RedisStore) GetByCredentialID(ctx context.Context, credentialID string) (*models.Session, error) {
	userID, err := s.client.Get(ctx, credKeyPrefix+credentialID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *RedisStore) Revoke(ctx context.Context, userID, reason string) (bool, error) {
	payload, err := s.client.GetDel(ctx, userKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}

	var stored models.Session
	if err := json.Unmarshal([]byte(payload), &stored); err != nil {
		return true, fmt.Errorf("decode session: %w", err)
	}
	s.client.Del(ctx, credKeyPrefix+stored.CredentialID)

	if stored.Expired(s.clock()) {
		// Raced its own expiry; the lifecycle entry is Expired, not Revoked.
		if err := s.auditExpired(ctx, &stored); err != nil {
			return false, err
		}
		return false, nil
	}

	err = s.auditor.Append(ctx, audit.Entry{
		UserID:       stored.UserID,
		Action:       audit.ActionRevoked,
		Level:        stored.Level,
		CredentialID: stored.CredentialID,
		Reason:       reason,
	})
	if err != nil {
		return true, err
	}
	return true, nil
}

func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	var removed int
	iter := s.client.Scan(ctx, 0, userKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		payload, err := s.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("sweep session: %w", err)
		}
		var stored models.Session
		if err := json.Unmarshal([]byte(payload), &stored); err != nil {
			continue
		}
		if !stored.Expired(now) {
			continue
		}
		gone, err := s.removeExpired(ctx, &stored)
		if err != nil {
			return removed, err
		}
		if gone {
			if err := s.auditExpired(ctx, &stored); err != nil {
				return removed, err
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("sweep scan: %w", err)
	}
	return removed, nil
}

func (s *RedisStore) ActiveCount(ctx context.Context) (int, error) {
	now := s.clock()
	var count int
	iter := s.client.Scan(ctx, 0, userKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		payload, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var stored models.Session
		if err := json.Unmarshal([]byte(payload), &stored); err != nil {
			continue
		}
		if !stored.Expired(now) {
			count++
		}
	}
	if err := iter.Err(); err != nil {
		return count, fmt.Errorf("count scan: %w", err)
	}
	return count, nil
}

// removeExpired deletes the expired session's keys. The DEL count decides
// which racing caller owns the Expired audit entry.
func (s *RedisStore) removeExpired(ctx context.Context, stored *models.Session) (bool, error) {
	deleted, err := s.client.Del(ctx, userKeyPrefix+stored.UserID).Result()
	if err != nil {
		return false, fmt.Errorf("remove expired session: %w", err)
	}
	s.client.Del(ctx, credKeyPrefix+stored.CredentialID)
	return deleted == 1, nil
}

func (s *RedisStore) auditExpired(ctx context.Context, stored *models.Session) error {
	return s.auditor.Append(ctx, audit.Entry{
		UserID:       stored.UserID,
		Action:       audit.ActionExpired,
		Level:        stored.Level,
		CredentialID: stored.CredentialID,
		Reason:       "validity period elapsed",
	})
}
