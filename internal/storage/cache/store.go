// --- File: internal/storage/cache/store.go ---
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/tinywideclouds/go-push-subscription/pkg/push"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedSubscriptionStore adds read-aside caching to any SubscriptionStore.
type CachedSubscriptionStore struct {
	realStore push.SubscriptionStore
	cache     CacheClient
	ttl       time.Duration
}

func NewCachedSubscriptionStore(realStore push.SubscriptionStore, cache CacheClient, ttl time.Duration) *CachedSubscriptionStore {
	return &CachedSubscriptionStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

func (s *CachedSubscriptionStore) List(ctx context.Context, user urn.URN) ([]push.SubscriptionRecord, error) {
	key := s.cacheKey(user)

	var cached []push.SubscriptionRecord
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	fresh, err := s.realStore.List(ctx, user)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization; a Redis outage just means serving from the DB.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)
	return fresh, nil
}

// Save also invalidates the previous owner's listing when the endpoint
// changes hands.
func (s *CachedSubscriptionStore) Save(ctx context.Context, user urn.URN, record push.SubscriptionRecord) error {
	previous, owned, err := s.realStore.Owner(ctx, record.Endpoint)
	if err != nil {
		owned = false
	}
	if err := s.realStore.Save(ctx, user, record); err != nil {
		return err
	}
	if owned && previous.String() != user.String() {
		_ = s.invalidate(ctx, previous)
	}
	return s.invalidate(ctx, user)
}

// Remove must clear the cache even though the DB is the source of truth, so
// a disabled device stops appearing immediately.
func (s *CachedSubscriptionStore) Remove(ctx context.Context, user urn.URN, endpoint string) error {
	if err := s.realStore.Remove(ctx, user, endpoint); err != nil {
		return err
	}
	return s.invalidate(ctx, user)
}

// Owner is not cached: it is only read on the write path.
func (s *CachedSubscriptionStore) Owner(ctx context.Context, endpoint string) (urn.URN, bool, error) {
	return s.realStore.Owner(ctx, endpoint)
}

func (s *CachedSubscriptionStore) invalidate(ctx context.Context, user urn.URN) error {
	return s.cache.Del(ctx, s.cacheKey(user))
}

func (s *CachedSubscriptionStore) cacheKey(user urn.URN) string {
	return fmt.Sprintf("push:subscriptions:%s", user.String())
}
