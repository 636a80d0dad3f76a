package session

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const storeSchemaVersion = 1

var (
	// ErrRedisUnavailable wraps transport-level Redis failures so callers can
	// distinguish an outage from a missing or corrupt record.
	ErrRedisUnavailable = errors.New("session store: redis unavailable")
	// ErrNotFound is returned when no record exists under the given ID.
	ErrNotFound = errors.New("session store: not found")
	// ErrRecordCorrupt is returned when a stored record cannot be decoded.
	// Corrupt records are deleted on read.
	ErrRecordCorrupt = errors.New("session store: record corrupt")
)

// record is the stored JSON envelope. ExpiresAt carries the absolute
// deadline so sliding refreshes can never extend a session past it.
type record struct {
	Version   int            `json:"v"`
	IssuedAt  int64          `json:"iat"`
	ExpiresAt int64          `json:"exp"`
	Data      map[string]any `json:"data"`
}

// StoreConfig carries the knobs for a [Store].
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	// Prefix namespaces the Redis keys. Defaults to "bs".
	Prefix string
	// AbsoluteLifetime caps how long a record may live regardless of
	// activity. Required, must be positive.
	AbsoluteLifetime time.Duration
	// SlidingExpiration refreshes the key TTL on every read, bounded by the
	// absolute deadline.
	SlidingExpiration bool
	// JitterEnabled spreads TTLs by a random offset so a burst of sessions
	// created together does not expire together.
	JitterEnabled bool
	// JitterRange bounds the random offset. Defaults to 30s.
	JitterRange time.Duration
	// Clock supplies the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Store persists session mappings in Redis under opaque IDs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	client   redis.UniversalClient
	prefix   string
	lifetime time.Duration
	sliding  bool
	jitter   bool
	jitterIn time.Duration
	clock    func() time.Time
}

// NewID returns a fresh opaque session ID.
func NewID() string { return uuid.NewString() }

// NewStore validates cfg and returns a [Store] on client.
//
// NewStore may return an error when input validation, dependency calls, or security checks fail.
func NewStore(client redis.UniversalClient, cfg StoreConfig) (*Store, error) {
	if client == nil {
		return nil, errors.New("session store: redis client required")
	}
	if cfg.AbsoluteLifetime <= 0 {
		return nil, errors.New("session store: absolute lifetime must be positive")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "bs"
	}
	jitterIn := cfg.JitterRange
	if jitterIn <= 0 {
		jitterIn = 30 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		client:   client,
		prefix:   prefix,
		lifetime: cfg.AbsoluteLifetime,
		sliding:  cfg.SlidingExpiration,
		jitter:   cfg.JitterEnabled,
		jitterIn: jitterIn,
		clock:    clock,
	}, nil
}

func (s *Store) key(id string) string {
	return s.prefix + ":session:" + id
}

// Save writes values under id with a fresh absolute deadline.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Save(ctx context.Context, id string, values map[string]any) error {
	if id == "" {
		return errors.New("session store: empty id")
	}
	now := s.clock()
	rec := record{
		Version:   storeSchemaVersion,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.lifetime).Unix(),
		Data:      values,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session store: encode record: %w", err)
	}
	ttl := s.lifetime + s.randomJitter()
	if err := s.client.Set(ctx, s.key(id), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the mapping stored under id, refreshing the TTL when sliding
// expiration is on. Corrupt records are deleted and reported as such.
//
// Get may return an error when input validation, dependency calls, or security checks fail.
// Get does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Get(ctx context.Context, id string) (map[string]any, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := decodeRecord(payload)
	if err != nil {
		// Best effort; the TTL reaps it anyway if the delete fails.
		s.client.Del(ctx, s.key(id))
		return nil, err
	}

	remaining := s.remainingAbsoluteTTL(rec)
	if remaining <= 0 {
		s.client.Del(ctx, s.key(id))
		return nil, ErrNotFound
	}
	if s.sliding {
		s.client.Expire(ctx, s.key(id), remaining+s.randomJitter())
	}
	return rec.Data, nil
}

// Delete removes the record under id. Deleting a missing record is not an
// error.
//
// Delete may return an error when input validation, dependency calls, or security checks fail.
// Delete does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping verifies the Redis connection.
//
// Ping may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func decodeRecord(payload []byte) (record, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var rec record
	if err := dec.Decode(&rec); err != nil {
		return record{}, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	if rec.Version != storeSchemaVersion {
		return record{}, fmt.Errorf("%w: schema version %d", ErrRecordCorrupt, rec.Version)
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	return rec, nil
}

// remainingAbsoluteTTL returns how long the record may still live under its
// original deadline. Sliding refreshes never extend past it.
func (s *Store) remainingAbsoluteTTL(rec record) time.Duration {
	return time.Unix(rec.ExpiresAt, 0).Sub(s.clock())
}

// randomJitter returns a random offset in [0, jitterIn) when jitter is on.
func (s *Store) randomJitter() time.Duration {
	if !s.jitter || s.jitterIn <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(s.jitterIn)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
