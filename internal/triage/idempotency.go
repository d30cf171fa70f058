package triage

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

// IdempotencyStore remembers finished outcomes per (patient, key) so a client
// retry replays the first result instead of creating another consultation.
type IdempotencyStore interface {
	Lookup(ctx context.Context, patientID, key string) (Outcome, bool, error)
	Remember(ctx context.Context, patientID, key string, outcome Outcome) error
}

const idempotencyKeyPrefix = "triage:idempotency:"

// RedisIdempotencyStore keeps outcomes in Redis with a TTL. Two concurrent
// requests with the same key can both run; the later one wins the entry.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	if client == nil {
		panic("triage: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) Lookup(ctx context.Context, patientID, key string) (Outcome, bool, error) {
	raw, err := s.client.Get(ctx, idempotencyKey(patientID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Outcome{}, false, nil
	}
	if err != nil {
		return Outcome{}, false, fmt.Errorf("triage: idempotency lookup: %w", err)
	}
	var outcome Outcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return Outcome{}, false, fmt.Errorf("triage: decode remembered outcome: %w", err)
	}
	return outcome, true, nil
}

func (s *RedisIdempotencyStore) Remember(ctx context.Context, patientID, key string, outcome Outcome) error {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("triage: encode outcome: %w", err)
	}
	if err := s.client.Set(ctx, idempotencyKey(patientID, key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("triage: idempotency remember: %w", err)
	}
	return nil
}

// idempotencyKey hashes the client-supplied key so arbitrary header values
// stay out of the keyspace.
func idempotencyKey(patientID, key string) string {
	sum := sha256.Sum256([]byte(key))
	return idempotencyKeyPrefix + patientID + ":" + hex.EncodeToString(sum[:])
}
