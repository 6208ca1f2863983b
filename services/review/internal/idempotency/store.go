package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "idempotency:review:"

	// DefaultPendingTTL bounds how long an unfinished claim blocks retries.
	// It outlives the router's request timeout.
	DefaultPendingTTL = 35 * time.Second

	maxBeginAttempts = 2
)

var (
	// ErrInFlight is returned when a request with the same key is still running.
	ErrInFlight = errors.New("a request with this idempotency key is in progress")
	// ErrKeyMismatch is returned when a key is reused for a different request.
	ErrKeyMismatch = errors.New("idempotency key was already used for a different request")
)

// Response is the stored outcome of a completed request.
type Response struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type record struct {
	Fingerprint string    `json:"fingerprint"`
	Response    *Response `json:"response,omitempty"`
}

// Fingerprint identifies a submission by its target and raw request body.
func Fingerprint(target string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(target))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Store deduplicates client retries of review submissions. Keys are scoped
// per user so two users cannot collide on the same token.
type Store struct {
	client     *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

// NewStore keeps completed responses for ttl. Pending claims expire after
// DefaultPendingTTL, or ttl when that is shorter.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	pendingTTL := DefaultPendingTTL
	if ttl < pendingTTL {
		pendingTTL = ttl
	}
	return &Store{client: client, ttl: ttl, pendingTTL: pendingTTL}
}

func redisKey(userID, key string) string {
	return keyPrefix + userID + ":" + key
}

// Begin claims key for userID and the request identified by fingerprint. It
// returns (nil, nil) when the caller owns the key and must run the request,
// the stored response when the same request already completed, ErrInFlight
// while another attempt holds the key, or ErrKeyMismatch when the key belongs
// to a different request.
func (s *Store) Begin(ctx context.Context, userID, key, fingerprint string) (*Response, error) {
	rk := redisKey(userID, key)

	claim, err := json.Marshal(record{Fingerprint: fingerprint})
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency claim: %w", err)
	}

	for range maxBeginAttempts {
		claimed, err := s.client.SetNX(ctx, rk, claim, s.pendingTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx idempotency key: %w", err)
		}
		if claimed {
			return nil, nil
		}

		data, err := s.client.Get(ctx, rk).Bytes()
		if errors.Is(err, redis.Nil) {
			// Expired between SETNX and GET.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get idempotency key: %w", err)
		}

		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal idempotency record: %w", err)
		}
		if rec.Fingerprint != fingerprint {
			return nil, ErrKeyMismatch
		}
		if rec.Response == nil {
			return nil, ErrInFlight
		}
		return rec.Response, nil
	}

	return nil, ErrInFlight
}

// Complete stores the final response for replay.
func (s *Store) Complete(ctx context.Context, userID, key, fingerprint string, resp Response) error {
	data, err := json.Marshal(record{Fingerprint: fingerprint, Response: &resp})
	if err != nil {
		return fmt.Errorf("marshal idempotent response: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(userID, key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set idempotency key: %w", err)
	}
	return nil
}

// Release drops a claimed key so the client may retry after a failure that
// should not be replayed.
func (s *Store) Release(ctx context.Context, userID, key string) error {
	if err := s.client.Del(ctx, redisKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("redis del idempotency key: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
