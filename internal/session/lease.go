// Package session provides the per-document edit lease. Only one holder at a
// time may commit patches to a document; the lease is advisory on top of the
// store's version check, not a replacement for it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld means another editor currently holds the document's lease.
var ErrLeaseHeld = errors.New("edit lease held by another editor")

// ErrLeaseLost means a refresh or release found the lease gone or owned by
// someone else, usually after the TTL expired.
var ErrLeaseLost = errors.New("edit lease lost")

type leaseData struct {
	OwnerID    string    `json:"owner_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// LeaseStore manages edit leases in Redis.
type LeaseStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewLeaseStore connects to Redis and verifies the connection.
func NewLeaseStore(redisURL string, ttl time.Duration) (*LeaseStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewLeaseStoreWithClient(client, ttl), nil
}

// NewLeaseStoreWithClient creates a store from an existing Redis client.
func NewLeaseStoreWithClient(client *redis.Client, ttl time.Duration) *LeaseStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &LeaseStore{
		client: client,
		prefix: "lease:",
		ttl:    ttl,
	}
}

func (s *LeaseStore) key(documentID string) string {
	return s.prefix + documentID
}

// Acquire takes the lease for ownerID. Re-acquiring a lease you already hold
// succeeds and refreshes the TTL.
func (s *LeaseStore) Acquire(ctx context.Context, documentID, ownerID string) error {
	data, err := json.Marshal(leaseData{OwnerID: ownerID, AcquiredAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal lease data: %w", err)
	}

	key := s.key(documentID)
	ok, err := s.client.SetNX(ctx, key, data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if ok {
		return nil
	}

	holder, err := s.holder(ctx, documentID)
	if err != nil {
		return err
	}
	if holder != ownerID {
		return ErrLeaseHeld
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return fmt.Errorf("refresh lease ttl: %w", err)
	}
	return nil
}

// Refresh extends the TTL of a lease the caller still holds.
func (s *LeaseStore) Refresh(ctx context.Context, documentID, ownerID string) error {
	holder, err := s.holder(ctx, documentID)
	if err != nil {
		return err
	}
	if holder != ownerID {
		return ErrLeaseLost
	}
	if err := s.client.Expire(ctx, s.key(documentID), s.ttl).Err(); err != nil {
		return fmt.Errorf("refresh lease ttl: %w", err)
	}
	return nil
}

// Release drops the lease if the caller holds it. Releasing an already
// expired lease is not an error.
func (s *LeaseStore) Release(ctx context.Context, documentID, ownerID string) error {
	holder, err := s.holder(ctx, documentID)
	if errors.Is(err, ErrLeaseLost) {
		return nil
	}
	if err != nil {
		return err
	}
	if holder != ownerID {
		return ErrLeaseLost
	}
	if err := s.client.Del(ctx, s.key(documentID)).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// Holder reports who currently holds the lease, or "" when free.
func (s *LeaseStore) Holder(ctx context.Context, documentID string) (string, error) {
	holder, err := s.holder(ctx, documentID)
	if errors.Is(err, ErrLeaseLost) {
		return "", nil
	}
	return holder, err
}

func (s *LeaseStore) holder(ctx context.Context, documentID string) (string, error) {
	raw, err := s.client.Get(ctx, s.key(documentID)).Result()
	if err == redis.Nil {
		return "", ErrLeaseLost
	}
	if err != nil {
		return "", fmt.Errorf("lookup lease: %w", err)
	}
	var data leaseData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return "", fmt.Errorf("unmarshal lease data: %w", err)
	}
	return data.OwnerID, nil
}

// Close releases the underlying Redis connection.
func (s *LeaseStore) Close() error {
	return s.client.Close()
}
