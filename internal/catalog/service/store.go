package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/pos/internal/cache"
	"github.com/smallbiznis/pos/internal/catalog/domain"
	"github.com/smallbiznis/pos/internal/config"
	"go.uber.org/zap"
)

const defaultSnapshotTTL = 30 * time.Second

// SnapshotStore caches catalog snapshots per tenant, in redis when one is
// configured and in process memory otherwise.
type SnapshotStore struct {
	log    *zap.Logger
	ttl    time.Duration
	memory cache.Cache[string, *domain.Snapshot]
	redis  *cache.RedisJSON[domain.Snapshot]
}

func NewSnapshotStore(cfg config.Config, client *redis.Client, log *zap.Logger) *SnapshotStore {
	ttl := cfg.Sales.CatalogCacheTTL
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}

	store := &SnapshotStore{
		log: log.Named("catalog.cache"),
		ttl: ttl,
	}
	if client != nil {
		store.redis = cache.NewRedisJSON[domain.Snapshot](client, "pos:catalog:")
	} else {
		store.memory = cache.NewTTLCache[string, *domain.Snapshot]()
	}
	return store
}

func (s *SnapshotStore) Get(ctx context.Context, orgID snowflake.ID) (*domain.Snapshot, bool) {
	key := orgID.String()
	if s.redis == nil {
		return s.memory.Get(key)
	}

	snapshot, ok, err := s.redis.Get(ctx, key)
	if err != nil {
		s.log.Warn("catalog cache read failed", zap.String("org_id", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return &snapshot, true
}

func (s *SnapshotStore) Set(ctx context.Context, orgID snowflake.ID, snapshot *domain.Snapshot) {
	if snapshot == nil {
		return
	}
	key := orgID.String()
	if s.redis == nil {
		s.memory.Set(key, snapshot, s.ttl)
		return
	}
	if err := s.redis.Set(ctx, key, *snapshot, s.ttl); err != nil {
		s.log.Warn("catalog cache write failed", zap.String("org_id", key), zap.Error(err))
	}
}

func (s *SnapshotStore) Invalidate(ctx context.Context, orgID snowflake.ID) {
	key := orgID.String()
	if s.redis == nil {
		s.memory.Delete(key)
		return
	}
	if err := s.redis.Delete(ctx, key); err != nil {
		s.log.Warn("catalog cache invalidation failed", zap.String("org_id", key), zap.Error(err))
	}
}
