package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/logger"
)

const marketSnapshotKey = "market:snapshot"

// Snapshots caches the serialized market listing in Redis with a short TTL.
// Constructed with a nil client it degrades to a pass-through, so the service
// runs without Redis.
type Snapshots struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSnapshots(rdb *redis.Client, ttl time.Duration) *Snapshots {
	return &Snapshots{rdb: rdb, ttl: ttl}
}

func (s *Snapshots) Get(ctx context.Context) ([]byte, bool) {
	if s == nil || s.rdb == nil {
		return nil, false
	}
	payload, err := s.rdb.Get(ctx, marketSnapshotKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("snapshot cache read failed", zap.Error(err))
		}
		return nil, false
	}
	return payload, true
}

func (s *Snapshots) Set(ctx context.Context, payload []byte) {
	if s == nil || s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, marketSnapshotKey, payload, s.ttl).Err(); err != nil {
		logger.Log.Warn("snapshot cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached listing after anything mutates prices or
// inventory.
func (s *Snapshots) Invalidate(ctx context.Context) {
	if s == nil || s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, marketSnapshotKey).Err(); err != nil {
		logger.Log.Warn("snapshot cache invalidation failed", zap.Error(err))
	}
}
