package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	apperrors "github.com/sundaybox/weekplanner/internal/errors"
)

const tokenIndexKey = "sessions:tokens"

// RedisManager is the Redis-backed session registry. Session keys carry the
// TTL so Redis expires them on its own; a token index set lets Sweep report
// how many were purged.
type RedisManager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisManager connects to Redis and returns a session registry.
func NewRedisManager(redisHost, redisPort string, ttl time.Duration) (*RedisManager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", redisHost, redisPort),
		Password:     "", // no password
		DB:           0,  // default DB
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisManager{client: client, ttl: ttl}, nil
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// Create issues a fresh unique token expiring one TTL from now.
func (m *RedisManager) Create(ctx context.Context, owner, deviceInfo string) (*Session, error) {
	now := time.Now()
	s := &Session{
		Token:      uuid.NewString(),
		Owner:      owner,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
		LastActive: now,
	}

	if err := m.save(ctx, s, m.ttl); err != nil {
		return nil, err
	}
	if err := m.client.SAdd(ctx, tokenIndexKey, s.Token).Err(); err != nil {
		return nil, fmt.Errorf("failed to index session: %w", err)
	}
	return s, nil
}

// Validate returns the session if the token exists and has not expired.
func (m *RedisManager) Validate(ctx context.Context, token string) (*Session, error) {
	return m.load(ctx, token)
}

// Touch updates last_active only. The key TTL is preserved so the hard
// lifetime never slides.
func (m *RedisManager) Touch(ctx context.Context, token string) error {
	s, err := m.load(ctx, token)
	if err != nil {
		return err
	}
	s.LastActive = time.Now()
	return m.save(ctx, s, redis.KeepTTL)
}

// AttachPlan binds the session to a plan so another device can resume it.
func (m *RedisManager) AttachPlan(ctx context.Context, token string, planID uint) error {
	s, err := m.load(ctx, token)
	if err != nil {
		return err
	}
	s.PlanID = planID
	return m.save(ctx, s, redis.KeepTTL)
}

// Sweep drops index entries whose session keys Redis already expired and
// returns how many were removed.
func (m *RedisManager) Sweep(ctx context.Context) (int, error) {
	tokens, err := m.client.SMembers(ctx, tokenIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	removed := 0
	for _, token := range tokens {
		exists, err := m.client.Exists(ctx, sessionKey(token)).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to check session %s: %w", token, err)
		}
		if exists == 0 {
			if err := m.client.SRem(ctx, tokenIndexKey, token).Err(); err != nil {
				return removed, fmt.Errorf("failed to unindex session %s: %w", token, err)
			}
			removed++
		}
	}
	return removed, nil
}

// Close closes the Redis connection.
func (m *RedisManager) Close() error {
	return m.client.Close()
}

func (m *RedisManager) load(ctx context.Context, token string) (*Session, error) {
	result := m.client.Get(ctx, sessionKey(token))
	if result.Err() == redis.Nil {
		return nil, apperrors.ErrSessionNotFound
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("failed to load session: %w", result.Err())
	}

	var s Session
	if err := json.Unmarshal([]byte(result.Val()), &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if !time.Now().Before(s.ExpiresAt) {
		return nil, apperrors.ErrSessionNotFound
	}
	return &s, nil
}

func (m *RedisManager) save(ctx context.Context, s *Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := m.client.Set(ctx, sessionKey(s.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}
